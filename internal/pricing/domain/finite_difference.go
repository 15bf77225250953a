package domain

import (
	"context"
	"fmt"
	"math"
)

// Scheme 差分格式
type Scheme int

const (
	SchemeExplicit Scheme = iota // 显式前向差分，要求 alpha <= 0.5
	SchemeImplicit               // 全隐式，无条件稳定
)

const (
	cancelCheckInterval = 64
	minTimeSteps        = 50 // 低波动率时 τ 很小，按 DT 划分的步数不足
)

// FiniteDifferencePricer 在热方程变换后的网格上求解，一次求解覆盖整个网格，因此数组定价只需一次求解
type FiniteDifferencePricer struct {
	grid   Grid
	scheme Scheme
}

// NewExplicitPricer 创建显式差分定价器
func NewExplicitPricer(g Grid) *FiniteDifferencePricer {
	return &FiniteDifferencePricer{grid: g, scheme: SchemeExplicit}
}

// NewImplicitPricer 创建隐式差分定价器
func NewImplicitPricer(g Grid) *FiniteDifferencePricer {
	return &FiniteDifferencePricer{grid: g, scheme: SchemeImplicit}
}

func (p *FiniteDifferencePricer) Model() Model {
	if p.scheme == SchemeExplicit {
		return ModelExplicitFD
	}
	return ModelImplicitFD
}

// Grid 返回所用网格
func (p *FiniteDifferencePricer) Grid() Grid { return p.grid }

func (p *FiniteDifferencePricer) Supports(style ExerciseStyle) bool {
	return style == StyleEuropean || style == StyleAmerican
}

// PriceAt 单点定价
func (p *FiniteDifferencePricer) PriceAt(ctx context.Context, opt Option, spot float64) (float64, error) {
	if err := validateSpot(spot); err != nil {
		return 0, err
	}
	sol, err := p.Solve(ctx, opt)
	if err != nil {
		return 0, err
	}
	return sol.At(spot)
}

// PriceCurve 一次求解后在各现价上插值
func (p *FiniteDifferencePricer) PriceCurve(ctx context.Context, opt Option, spots []float64) ([]float64, error) {
	for _, s := range spots {
		if err := validateSpot(s); err != nil {
			return nil, err
		}
	}
	sol, err := p.Solve(ctx, opt)
	if err != nil {
		return nil, err
	}
	out := make([]float64, len(spots))
	for i, s := range spots {
		if out[i], err = sol.At(s); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// Solution 网格节点上的期权价格
type Solution struct {
	grid   Grid
	opt    Option
	values []float64
}

// At 在现价处线性插值。到期时直接返回内在价值，美式期权的结果不低于内在价值。
func (s *Solution) At(spot float64) (float64, error) {
	if err := validateSpot(spot); err != nil {
		return 0, err
	}
	terms := s.opt.Contract()
	if terms.Expiry == 0 {
		return s.opt.Payoff(spot), nil
	}
	v, err := s.grid.Interpolate(s.values, math.Log(spot/terms.Strike))
	if err != nil {
		return 0, err
	}
	if !finite(v) {
		return 0, fmt.Errorf("%w: at spot %v", ErrNonFinite, spot)
	}
	if s.opt.Style() == StyleAmerican {
		v = math.Max(v, s.opt.Payoff(spot))
	}
	return v, nil
}

// Values 节点价格副本
func (s *Solution) Values() []float64 {
	out := make([]float64, len(s.values))
	copy(out, s.values)
	return out
}

// Solve 从到期日向当前时刻推进，返回各节点的期权价格
func (p *FiniteDifferencePricer) Solve(ctx context.Context, opt Option) (*Solution, error) {
	if err := opt.Validate(); err != nil {
		return nil, err
	}
	if err := p.grid.Validate(); err != nil {
		return nil, err
	}

	g := p.grid
	n := g.NumX()
	terms := opt.Contract()
	sol := &Solution{grid: g, opt: opt, values: make([]float64, n)}

	if terms.Expiry == 0 {
		for i := range sol.values {
			sol.values[i] = opt.Payoff(terms.Strike * math.Exp(g.X(i)))
		}
		return sol, nil
	}

	h := newHeatTransform(opt)
	tau := h.tau(terms.Expiry)
	steps, dt := g.Steps(tau)
	if steps < minTimeSteps {
		steps, dt = minTimeSteps, tau/minTimeSteps
	}

	// 节点在 ξ 上等距，求解结束时恰好落回 x 网格
	xs := make([]float64, n)
	u := make([]float64, n)
	for i := range u {
		xs[i] = h.xi(g.X(i))
		u[i] = h.initial(xs[i])
	}

	var err error
	switch p.scheme {
	case SchemeExplicit:
		u, err = p.explicit(ctx, h, xs, u, steps, dt)
	case SchemeImplicit:
		u, err = p.implicit(ctx, h, xs, u, steps, dt)
	default:
		err = fmt.Errorf("%w: unknown scheme %d", ErrUnsupportedModel, p.scheme)
	}
	if err != nil {
		return nil, err
	}

	for i := range u {
		sol.values[i] = h.value(tau, u[i])
	}
	return sol, nil
}

func (p *FiniteDifferencePricer) explicit(ctx context.Context, h heatTransform, xs, u []float64, steps int, dt float64) ([]float64, error) {
	g := p.grid
	alpha := g.Alpha(dt)
	if alpha > 0.5 {
		return nil, fmt.Errorf("%w (alpha=%.4f, dt=%g, dx=%g)", ErrUnstableScheme, alpha, dt, g.DX)
	}

	n := len(u)
	next := make([]float64, n)
	for k := 1; k <= steps; k++ {
		if k%cancelCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		tau := float64(k) * dt
		for i := 1; i < n-1; i++ {
			next[i] = u[i] + alpha*(u[i+1]-2*u[i]+u[i-1])
		}
		next[0] = h.boundary(xs[0], tau)
		next[n-1] = h.boundary(xs[n-1], tau)
		project(h, xs, next, tau)
		u, next = next, u
	}
	return u, nil
}

func (p *FiniteDifferencePricer) implicit(ctx context.Context, h heatTransform, xs, u []float64, steps int, dt float64) ([]float64, error) {
	alpha := p.grid.Alpha(dt)
	n := len(u)
	m := n - 2

	// 三对角矩阵 (-α, 1+2α, -α) 的 LU 分解，系数不随时间变化
	diag := 1 + 2*alpha
	off := -alpha
	pivot := make([]float64, m)
	ratio := make([]float64, m)
	for i := 0; i < m; i++ {
		pivot[i] = diag
		if i > 0 {
			pivot[i] -= off * ratio[i-1]
		}
		if math.Abs(pivot[i]) < 1e-14 {
			return nil, fmt.Errorf("%w: zero pivot at row %d", ErrSingularSystem, i)
		}
		ratio[i] = off / pivot[i]
	}

	y := make([]float64, m)
	for k := 1; k <= steps; k++ {
		if k%cancelCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		tau := float64(k) * dt
		lo := h.boundary(xs[0], tau)
		hi := h.boundary(xs[n-1], tau)

		for i := 0; i < m; i++ {
			rhs := u[i+1]
			if i == 0 {
				rhs += alpha * lo
			}
			if i == m-1 {
				rhs += alpha * hi
			}
			if i > 0 {
				rhs -= off * y[i-1]
			}
			y[i] = rhs / pivot[i]
		}
		for i := m - 2; i >= 0; i-- {
			y[i] -= ratio[i] * y[i+1]
		}

		u[0], u[n-1] = lo, hi
		copy(u[1:n-1], y)
		project(h, xs, u, tau)
	}
	return u, nil
}

// project 美式期权的提前行权投影 u = max(u, g)
func project(h heatTransform, xs, u []float64, tau float64) {
	if !h.american {
		return
	}
	for i := 1; i < len(u)-1; i++ {
		if g := h.obstacle(xs[i], tau); u[i] < g {
			u[i] = g
		}
	}
}
