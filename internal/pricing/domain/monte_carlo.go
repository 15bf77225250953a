package domain

import (
	"context"
	"fmt"
	"math"
	"math/rand"

	"golang.org/x/sync/errgroup"
)

// MonteCarloConfig 蒙特卡洛参数
type MonteCarloConfig struct {
	Paths int   // 路径数（按对偶变量成对生成）
	Steps int   // 时间步数，仅 Longstaff-Schwartz 使用
	Seed  int64 // 固定种子，保证结果可复现且 bump 时共用随机数
}

// DefaultMonteCarloConfig 默认参数
func DefaultMonteCarloConfig() MonteCarloConfig {
	return MonteCarloConfig{Paths: 50000, Steps: 50, Seed: 42}
}

// Validate 校验参数
func (c MonteCarloConfig) Validate() error {
	if c.Paths < 2 || c.Steps < 1 {
		return fmt.Errorf("%w: monte carlo needs paths >= 2 and steps >= 1 (paths=%d, steps=%d)",
			ErrInvalidParameters, c.Paths, c.Steps)
	}
	return nil
}

func (c MonteCarloConfig) pairs() int { return (c.Paths + 1) / 2 }

// Estimate 蒙特卡洛估计值
type Estimate struct {
	Price  float64 `json:"price"`
	StdErr float64 `json:"std_err"`
}

// MonteCarloPricer 欧式期权的几何布朗运动终值抽样
type MonteCarloPricer struct {
	cfg MonteCarloConfig
}

// NewMonteCarloPricer 创建蒙特卡洛定价器
func NewMonteCarloPricer(cfg MonteCarloConfig) *MonteCarloPricer {
	return &MonteCarloPricer{cfg: cfg}
}

func (*MonteCarloPricer) Model() Model { return ModelMonteCarlo }

func (*MonteCarloPricer) Supports(style ExerciseStyle) bool { return style == StyleEuropean }

// PriceAt 单点定价
func (p *MonteCarloPricer) PriceAt(ctx context.Context, opt Option, spot float64) (float64, error) {
	est, err := p.Estimate(ctx, opt, spot)
	if err != nil {
		return 0, err
	}
	return est.Price, nil
}

// PriceCurve 各现价并发模拟，共用同一种子
func (p *MonteCarloPricer) PriceCurve(ctx context.Context, opt Option, spots []float64) ([]float64, error) {
	return priceConcurrently(ctx, spots, func(ctx context.Context, s float64) (float64, error) {
		return p.PriceAt(ctx, opt, s)
	})
}

// Estimate 返回价格与标准误差
func (p *MonteCarloPricer) Estimate(ctx context.Context, opt Option, spot float64) (Estimate, error) {
	if !p.Supports(opt.Style()) {
		return Estimate{}, unsupported(ModelMonteCarlo, opt.Style())
	}
	if err := opt.Validate(); err != nil {
		return Estimate{}, err
	}
	if err := validateSpot(spot); err != nil {
		return Estimate{}, err
	}
	if err := p.cfg.Validate(); err != nil {
		return Estimate{}, err
	}

	t := opt.Contract()
	if t.Expiry == 0 {
		return Estimate{Price: opt.Payoff(spot)}, nil
	}

	sigma := t.Underlying.Volatility
	drift := (t.Underlying.Rate - t.Underlying.Dividend - 0.5*sigma*sigma) * t.Expiry
	vol := sigma * math.Sqrt(t.Expiry)
	discount := math.Exp(-t.Underlying.Rate * t.Expiry)

	rng := rand.New(rand.NewSource(p.cfg.Seed))
	pairs := p.cfg.pairs()
	var sum, sumSq float64
	for i := 0; i < pairs; i++ {
		if i%4096 == 0 {
			if err := ctx.Err(); err != nil {
				return Estimate{}, err
			}
		}
		z := rng.NormFloat64()
		up := opt.Payoff(spot * math.Exp(drift+vol*z))
		down := opt.Payoff(spot * math.Exp(drift-vol*z))
		v := 0.5 * (up + down)
		sum += v
		sumSq += v * v
	}

	n := float64(pairs)
	mean := sum / n
	variance := math.Max(sumSq/n-mean*mean, 0)
	return Estimate{
		Price:  discount * mean,
		StdErr: discount * math.Sqrt(variance/n),
	}, nil
}

// priceConcurrently 对每个现价并发调用 fn，结果保持输入顺序
func priceConcurrently(ctx context.Context, spots []float64, fn func(context.Context, float64) (float64, error)) ([]float64, error) {
	out := make([]float64, len(spots))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(curveParallelism)
	for i, s := range spots {
		g.Go(func() error {
			v, err := fn(gctx, s)
			if err != nil {
				return err
			}
			out[i] = v
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

const curveParallelism = 4
