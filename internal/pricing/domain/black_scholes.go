package domain

import (
	"context"
	"math"

	"gonum.org/v1/gonum/stat/distuv"
)

// BlackScholesInput Black-Scholes 模型输入
type BlackScholesInput struct {
	S float64 // 标的资产价格
	K float64 // 执行价格
	T float64 // 到期时间 (年)
	R float64 // 无风险利率
	Q float64 // 股息率
	V float64 // 波动率
}

// BlackScholesResult Black-Scholes 模型输出
type BlackScholesResult struct {
	Price float64
	Greeks
}

// CalculateBlackScholes 计算含连续股息的 Black-Scholes 价格与希腊字母。T 为 0 时返回内在价值。
func CalculateBlackScholes(optionType OptionType, in BlackScholesInput) BlackScholesResult {
	sign := optionType.Sign()
	if in.T <= 0 {
		res := BlackScholesResult{Price: math.Max(sign*(in.S-in.K), 0)}
		if sign*(in.S-in.K) > 0 {
			res.Delta = sign
		}
		return res
	}

	sqrtT := math.Sqrt(in.T)
	d1 := (math.Log(in.S/in.K) + (in.R-in.Q+0.5*in.V*in.V)*in.T) / (in.V * sqrtT)
	d2 := d1 - in.V*sqrtT
	dq := math.Exp(-in.Q * in.T)
	dr := math.Exp(-in.R * in.T)
	pdf := distuv.UnitNormal.Prob(d1)

	nd1 := distuv.UnitNormal.CDF(sign * d1)
	nd2 := distuv.UnitNormal.CDF(sign * d2)

	return BlackScholesResult{
		Price: sign * (in.S*dq*nd1 - in.K*dr*nd2),
		Greeks: Greeks{
			Delta: sign * dq * nd1,
			Gamma: dq * pdf / (in.S * in.V * sqrtT),
			Theta: -in.S*dq*pdf*in.V/(2*sqrtT) - sign*in.R*in.K*dr*nd2 + sign*in.Q*in.S*dq*nd1,
			Vega:  in.S * dq * pdf * sqrtT,
			Rho:   sign * in.K * in.T * dr * nd2,
		},
	}
}

// BlackScholesPricer 解析解定价
type BlackScholesPricer struct{}

// NewBlackScholesPricer 创建解析解定价器
func NewBlackScholesPricer() *BlackScholesPricer { return &BlackScholesPricer{} }

func (*BlackScholesPricer) Model() Model { return ModelBlackScholes }

func (*BlackScholesPricer) Supports(style ExerciseStyle) bool { return style == StyleEuropean }

// PriceAt 单点定价
func (p *BlackScholesPricer) PriceAt(ctx context.Context, opt Option, spot float64) (float64, error) {
	res, err := p.Evaluate(ctx, opt, spot)
	if err != nil {
		return 0, err
	}
	return res.Price, nil
}

// PriceCurve 对一组现价定价
func (p *BlackScholesPricer) PriceCurve(ctx context.Context, opt Option, spots []float64) ([]float64, error) {
	out := make([]float64, len(spots))
	for i, s := range spots {
		v, err := p.PriceAt(ctx, opt, s)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

// Evaluate 返回价格与解析希腊字母
func (p *BlackScholesPricer) Evaluate(ctx context.Context, opt Option, spot float64) (BlackScholesResult, error) {
	if err := ctx.Err(); err != nil {
		return BlackScholesResult{}, err
	}
	if !p.Supports(opt.Style()) {
		return BlackScholesResult{}, unsupported(ModelBlackScholes, opt.Style())
	}
	if err := opt.Validate(); err != nil {
		return BlackScholesResult{}, err
	}
	if err := validateSpot(spot); err != nil {
		return BlackScholesResult{}, err
	}
	t := opt.Contract()
	return CalculateBlackScholes(t.Type, BlackScholesInput{
		S: spot,
		K: t.Strike,
		T: t.Expiry,
		R: t.Underlying.Rate,
		Q: t.Underlying.Dividend,
		V: t.Underlying.Volatility,
	}), nil
}
