package domain

import (
	"context"
	"errors"
	"math"
	"math/rand"

	"gonum.org/v1/gonum/mat"
)

// LSMPricer 实现了 Longstaff-Schwartz (LSM) 算法：对实值路径的继续持有价值做 [1, s, s²] 回归
type LSMPricer struct {
	cfg MonteCarloConfig
}

// NewLSMPricer 创建 LSM 定价器
func NewLSMPricer(cfg MonteCarloConfig) *LSMPricer {
	return &LSMPricer{cfg: cfg}
}

func (*LSMPricer) Model() Model { return ModelLongstaffSchwartz }

func (*LSMPricer) Supports(style ExerciseStyle) bool { return style == StyleAmerican }

// PriceCurve 各现价并发模拟
func (p *LSMPricer) PriceCurve(ctx context.Context, opt Option, spots []float64) ([]float64, error) {
	return priceConcurrently(ctx, spots, func(ctx context.Context, s float64) (float64, error) {
		return p.PriceAt(ctx, opt, s)
	})
}

// PriceAt 计算美式期权的当前公允价值
func (p *LSMPricer) PriceAt(ctx context.Context, opt Option, spot float64) (float64, error) {
	if !p.Supports(opt.Style()) {
		return 0, unsupported(ModelLongstaffSchwartz, opt.Style())
	}
	if err := opt.Validate(); err != nil {
		return 0, err
	}
	if err := validateSpot(spot); err != nil {
		return 0, err
	}
	if err := p.cfg.Validate(); err != nil {
		return 0, err
	}

	t := opt.Contract()
	if t.Expiry == 0 {
		return opt.Payoff(spot), nil
	}

	paths := p.simulate(t, spot)
	steps := p.cfg.Steps
	dt := t.Expiry / float64(steps)
	disc := math.Exp(-t.Underlying.Rate * dt)

	cash := make([]float64, len(paths))
	for i, path := range paths {
		cash[i] = opt.Payoff(path[steps])
	}

	itm := make([]int, 0, len(paths))
	for step := steps - 1; step >= 1; step-- {
		if err := ctx.Err(); err != nil {
			return 0, err
		}
		for i := range cash {
			cash[i] *= disc
		}

		itm = itm[:0]
		for i, path := range paths {
			if opt.Payoff(path[step]) > 0 {
				itm = append(itm, i)
			}
		}
		if len(itm) < 3 {
			continue
		}

		beta, err := regressContinuation(paths, cash, itm, step, t.Strike)
		if err != nil {
			continue
		}
		for _, i := range itm {
			s := paths[i][step] / t.Strike
			continuation := beta[0] + beta[1]*s + beta[2]*s*s
			if exercise := opt.Payoff(paths[i][step]); exercise > continuation {
				cash[i] = exercise
			}
		}
	}

	var sum float64
	for _, c := range cash {
		sum += c
	}
	price := disc * sum / float64(len(cash))
	return math.Max(price, opt.Payoff(spot)), nil
}

// simulate 生成对偶路径，path[k] 为第 k 个时间点的价格
func (p *LSMPricer) simulate(t Terms, spot float64) [][]float64 {
	steps := p.cfg.Steps
	dt := t.Expiry / float64(steps)
	sigma := t.Underlying.Volatility
	drift := (t.Underlying.Rate - t.Underlying.Dividend - 0.5*sigma*sigma) * dt
	vol := sigma * math.Sqrt(dt)

	rng := rand.New(rand.NewSource(p.cfg.Seed))
	pairs := p.cfg.pairs()
	paths := make([][]float64, 2*pairs)
	for i := 0; i < pairs; i++ {
		up := make([]float64, steps+1)
		down := make([]float64, steps+1)
		up[0], down[0] = spot, spot
		for k := 1; k <= steps; k++ {
			z := rng.NormFloat64()
			up[k] = up[k-1] * math.Exp(drift+vol*z)
			down[k] = down[k-1] * math.Exp(drift-vol*z)
		}
		paths[2*i], paths[2*i+1] = up, down
	}
	return paths
}

// regressContinuation 最小二乘拟合继续持有价值
func regressContinuation(paths [][]float64, cash []float64, itm []int, step int, strike float64) ([3]float64, error) {
	x := mat.NewDense(len(itm), 3, nil)
	y := mat.NewVecDense(len(itm), nil)
	for row, i := range itm {
		s := paths[i][step] / strike
		x.Set(row, 0, 1)
		x.Set(row, 1, s)
		x.Set(row, 2, s*s)
		y.SetVec(row, cash[i])
	}

	var beta mat.VecDense
	if err := beta.SolveVec(x, y); err != nil {
		// 病态矩阵仍给出解，只有真正奇异时才放弃本步
		var cond mat.Condition
		if !errors.As(err, &cond) {
			return [3]float64{}, err
		}
	}
	return [3]float64{beta.AtVec(0), beta.AtVec(1), beta.AtVec(2)}, nil
}
