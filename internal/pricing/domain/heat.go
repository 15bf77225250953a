package domain

import "math"

// heatTransform 把 Black-Scholes 方程化为热方程 u_τ = u_ξξ。
//
//	x = ln(S/K), μ = r-q-½σ², t' 为剩余期限
//	ξ = x + μ·t', τ = ½σ²·t', V = K·e^{-r·t'}·u
//
// 坐标随漂移移动，u 只是贴现前的收益与行权价之比，不含 e^{k·x} 型权重，低波动率下不会溢出。
type heatTransform struct {
	strike   float64
	sign     float64
	american bool
	halfVar  float64
	rate     float64
	drift    float64
	shift    float64 // μ·T，到期时间轴上 ξ 相对 x 的平移
}

func newHeatTransform(opt Option) heatTransform {
	t := opt.Contract()
	halfVar := 0.5 * t.Underlying.Volatility * t.Underlying.Volatility
	drift := t.Underlying.Rate - t.Underlying.Dividend - halfVar
	return heatTransform{
		strike:   t.Strike,
		sign:     t.Type.Sign(),
		american: opt.Style() == StyleAmerican,
		halfVar:  halfVar,
		rate:     t.Underlying.Rate,
		drift:    drift,
		shift:    drift * t.Expiry,
	}
}

// tau 把剩余期限换算为无量纲时间
func (h heatTransform) tau(expiry float64) float64 { return h.halfVar * expiry }

// years 把无量纲时间换算回剩余期限
func (h heatTransform) years(tau float64) float64 { return tau / h.halfVar }

// xi 定价时刻网格节点 x 对应的 ξ
func (h heatTransform) xi(x float64) float64 { return x + h.shift }

// initial τ=0 时的初值，即 payoff/K
func (h heatTransform) initial(xi float64) float64 {
	return math.Max(h.sign*math.Expm1(xi), 0)
}

// forward 深度实值或虚值时的远期价值：S·e^{-qt'} - K·e^{-rt'} 在 u 空间为 e^{ξ+τ} - 1
func (h heatTransform) forward(xi, tau float64) float64 {
	return math.Max(h.sign*math.Expm1(xi+tau), 0)
}

// boundary 两端边界，美式期权再与提前行权约束取大
func (h heatTransform) boundary(xi, tau float64) float64 {
	v := h.forward(xi, tau)
	if h.american {
		v = math.Max(v, h.obstacle(xi, tau))
	}
	return v
}

// obstacle 提前行权约束 e^{rt'}·payoff(K·e^{ξ-μt'})/K
func (h heatTransform) obstacle(xi, tau float64) float64 {
	years := h.years(tau)
	payoff := math.Max(h.sign*math.Expm1(xi-h.drift*years), 0)
	if payoff == 0 {
		return 0
	}
	return math.Exp(h.rate*years) * payoff
}

// value 由 u 还原期权价格
func (h heatTransform) value(tau, u float64) float64 {
	return h.strike * math.Exp(-h.rate*h.years(tau)) * u
}
