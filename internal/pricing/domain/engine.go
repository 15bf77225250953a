package domain

import (
	"context"
	"fmt"
	"math"

	"golang.org/x/sync/errgroup"
)

// SpotGrid 未给定现价时的定价网格，以行权价的倍数表示
type SpotGrid struct {
	Lower  float64 `json:"lower"`
	Upper  float64 `json:"upper"`
	Points int     `json:"points"`
}

// DefaultSpotGrid 0.5K 到 1.5K 共 21 个点
func DefaultSpotGrid() SpotGrid { return SpotGrid{Lower: 0.5, Upper: 1.5, Points: 21} }

// Validate 校验网格
func (g SpotGrid) Validate() error {
	if g.Points < 2 || !finite(g.Lower) || !finite(g.Upper) || g.Lower <= 0 || g.Upper <= g.Lower {
		return fmt.Errorf("%w: spot grid needs 0 < lower < upper and at least 2 points, got %+v", ErrInvalidParameters, g)
	}
	return nil
}

// Spots 行权价为 strike 时的现价序列
func (g SpotGrid) Spots(strike float64) []float64 {
	out := make([]float64, g.Points)
	step := (g.Upper - g.Lower) / float64(g.Points-1)
	for i := range out {
		out[i] = strike * (g.Lower + float64(i)*step)
	}
	return out
}

// Curve 数组定价结果
type Curve struct {
	Spots  []float64 `json:"spots"`
	Prices []float64 `json:"prices"`
}

// Valuation 定价结果：给定现价时为单个价格，否则为价格曲线
type Valuation struct {
	Model  Model   `json:"model"`
	Scalar bool    `json:"scalar"`
	Spot   float64 `json:"spot,omitempty"`
	Price  float64 `json:"price"`
	Curve  *Curve  `json:"curve,omitempty"`
}

// Values 以切片形式返回结果，单点定价时长度为 1
func (v *Valuation) Values() []float64 {
	if v.Scalar {
		return []float64{v.Price}
	}
	out := make([]float64, len(v.Curve.Prices))
	copy(out, v.Curve.Prices)
	return out
}

// EngineConfig 引擎配置
type EngineConfig struct {
	Grid       Grid
	SpotGrid   SpotGrid
	MonteCarlo MonteCarloConfig
	// 欧式期权未指定模型时使用的模型，空值为 BlackScholes
	DefaultEuropean Model
	// 美式期权未指定模型时使用的模型，空值为 ImplicitFD
	DefaultAmerican Model
}

// DefaultEngineConfig 默认配置
func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		Grid:       ReasonableDefaults(),
		SpotGrid:   DefaultSpotGrid(),
		MonteCarlo: DefaultMonteCarloConfig(),
	}
}

// Engine 定价引擎。构造后只读，可并发使用。
type Engine struct {
	pricers  map[Model]Pricer
	spotGrid SpotGrid
	defaults map[ExerciseStyle]Model
}

// NewEngine 注册全部内置模型，extra 可覆盖同名模型
func NewEngine(cfg EngineConfig, extra ...Pricer) *Engine {
	e := &Engine{
		pricers:  make(map[Model]Pricer),
		spotGrid: cfg.SpotGrid,
		defaults: map[ExerciseStyle]Model{
			StyleEuropean: DefaultModel(StyleEuropean),
			StyleAmerican: DefaultModel(StyleAmerican),
		},
	}
	if cfg.DefaultEuropean != "" {
		e.defaults[StyleEuropean] = cfg.DefaultEuropean
	}
	if cfg.DefaultAmerican != "" {
		e.defaults[StyleAmerican] = cfg.DefaultAmerican
	}
	builtin := []Pricer{
		NewBlackScholesPricer(),
		NewExplicitPricer(cfg.Grid),
		NewImplicitPricer(cfg.Grid),
		NewMonteCarloPricer(cfg.MonteCarlo),
		NewLSMPricer(cfg.MonteCarlo),
	}
	for _, p := range append(builtin, extra...) {
		e.pricers[p.Model()] = p
	}
	return e
}

// WithSpotGrid 返回使用新曲线网格的引擎副本
func (e *Engine) WithSpotGrid(g SpotGrid) *Engine {
	cp := *e
	cp.spotGrid = g
	return &cp
}

// SpotGrid 当前曲线网格
func (e *Engine) SpotGrid() SpotGrid { return e.spotGrid }

// DefaultFor 行权方式的默认模型
func (e *Engine) DefaultFor(style ExerciseStyle) Model { return e.defaults[style] }

// Resolve 选择定价器，model 为空时按行权方式取默认模型
func (e *Engine) Resolve(model Model, opt Option) (Pricer, error) {
	if model == "" {
		model = e.defaults[opt.Style()]
	}
	p, ok := e.pricers[model]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedModel, model)
	}
	if !p.Supports(opt.Style()) {
		return nil, unsupported(model, opt.Style())
	}
	return p, nil
}

// Price 单点定价
func (e *Engine) Price(ctx context.Context, model Model, opt Option, spot float64) (float64, error) {
	p, err := e.Resolve(model, opt)
	if err != nil {
		return 0, err
	}
	return p.PriceAt(ctx, opt, spot)
}

// Curve 在引擎的曲线网格上定价
func (e *Engine) Curve(ctx context.Context, model Model, opt Option) (*Curve, error) {
	return e.CurveOn(ctx, model, opt, e.spotGrid)
}

// CurveOn 在指定网格上定价
func (e *Engine) CurveOn(ctx context.Context, model Model, opt Option, grid SpotGrid) (*Curve, error) {
	if err := grid.Validate(); err != nil {
		return nil, err
	}
	if err := opt.Validate(); err != nil {
		return nil, err
	}
	p, err := e.Resolve(model, opt)
	if err != nil {
		return nil, err
	}
	spots := grid.Spots(opt.Contract().Strike)
	prices, err := p.PriceCurve(ctx, opt, spots)
	if err != nil {
		return nil, err
	}
	return &Curve{Spots: spots, Prices: prices}, nil
}

// Valuate 给定现价返回单个价格，spot 为 nil 时返回曲线网格上的价格数组
func (e *Engine) Valuate(ctx context.Context, model Model, opt Option, spot *float64) (*Valuation, error) {
	p, err := e.Resolve(model, opt)
	if err != nil {
		return nil, err
	}
	if spot == nil {
		curve, err := e.CurveOn(ctx, p.Model(), opt, e.spotGrid)
		if err != nil {
			return nil, err
		}
		return &Valuation{Model: p.Model(), Curve: curve}, nil
	}
	price, err := p.PriceAt(ctx, opt, *spot)
	if err != nil {
		return nil, err
	}
	return &Valuation{Model: p.Model(), Scalar: true, Spot: *spot, Price: price}, nil
}

// Greeks BlackScholes 使用解析式，其余模型使用中心差分重定价
func (e *Engine) Greeks(ctx context.Context, model Model, opt Option, spot float64) (Greeks, error) {
	p, err := e.Resolve(model, opt)
	if err != nil {
		return Greeks{}, err
	}
	if bs, ok := p.(*BlackScholesPricer); ok {
		res, err := bs.Evaluate(ctx, opt, spot)
		if err != nil {
			return Greeks{}, err
		}
		return res.Greeks, nil
	}
	return bumpGreeks(ctx, p, opt, spot)
}

// PriceWithGreeks 同时返回价格与希腊字母
func (e *Engine) PriceWithGreeks(ctx context.Context, model Model, opt Option, spot float64) (Model, float64, Greeks, error) {
	p, err := e.Resolve(model, opt)
	if err != nil {
		return "", 0, Greeks{}, err
	}
	if bs, ok := p.(*BlackScholesPricer); ok {
		res, err := bs.Evaluate(ctx, opt, spot)
		if err != nil {
			return "", 0, Greeks{}, err
		}
		return p.Model(), res.Price, res.Greeks, nil
	}
	price, err := p.PriceAt(ctx, opt, spot)
	if err != nil {
		return "", 0, Greeks{}, err
	}
	g, err := bumpGreeks(ctx, p, opt, spot)
	if err != nil {
		return "", 0, Greeks{}, err
	}
	return p.Model(), price, g, nil
}

// bumpGreeks 现价、波动率、利率做中心差分，时间做前向差分。蒙特卡洛模型种子固定，各次重定价共用随机数。
func bumpGreeks(ctx context.Context, p Pricer, opt Option, spot float64) (Greeks, error) {
	if err := validateSpot(spot); err != nil {
		return Greeks{}, err
	}
	t := opt.Contract()
	hs := 0.02 * spot
	hv := math.Min(0.01, 0.5*t.Underlying.Volatility)
	const hr = 1e-3
	ht := math.Min(1.0/365, t.Expiry)

	bumped := func(mut func(*Terms)) Option {
		nt := t
		mut(&nt)
		return withTerms(opt, nt)
	}

	var (
		spotCurve        []float64
		volUp, volDown   float64
		rateUp, rateDown float64
		earlier          float64
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		spotCurve, err = p.PriceCurve(gctx, opt, []float64{spot - hs, spot, spot + hs})
		return err
	})
	g.Go(func() (err error) {
		volUp, err = p.PriceAt(gctx, bumped(func(n *Terms) { n.Underlying.Volatility += hv }), spot)
		return err
	})
	g.Go(func() (err error) {
		volDown, err = p.PriceAt(gctx, bumped(func(n *Terms) { n.Underlying.Volatility -= hv }), spot)
		return err
	})
	g.Go(func() (err error) {
		rateUp, err = p.PriceAt(gctx, bumped(func(n *Terms) { n.Underlying.Rate += hr }), spot)
		return err
	})
	g.Go(func() (err error) {
		rateDown, err = p.PriceAt(gctx, bumped(func(n *Terms) { n.Underlying.Rate -= hr }), spot)
		return err
	})
	if ht > 0 {
		g.Go(func() (err error) {
			earlier, err = p.PriceAt(gctx, bumped(func(n *Terms) { n.Expiry -= ht }), spot)
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return Greeks{}, err
	}

	out := Greeks{
		Delta: (spotCurve[2] - spotCurve[0]) / (2 * hs),
		Gamma: (spotCurve[2] - 2*spotCurve[1] + spotCurve[0]) / (hs * hs),
		Vega:  (volUp - volDown) / (2 * hv),
		Rho:   (rateUp - rateDown) / (2 * hr),
	}
	if ht > 0 {
		out.Theta = (earlier - spotCurve[1]) / ht
	}
	return out, nil
}

func unsupported(model Model, style ExerciseStyle) error {
	return fmt.Errorf("%w: %s does not price %s options", ErrUnsupportedModel, model, style)
}
