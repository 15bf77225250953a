package domain

import (
	"context"
	"fmt"
	"math"
)

const (
	minImpliedVol   = 1e-4
	maxImpliedVol   = 5.0
	maxImpliedIters = 100
)

// ImpliedVolatility 反解使模型价格等于 target 的波动率。
// Newton 迭代以 Black-Scholes vega 为导数，越出区间时退化为二分。
func (e *Engine) ImpliedVolatility(ctx context.Context, model Model, opt Option, spot, target float64) (float64, error) {
	p, err := e.Resolve(model, opt)
	if err != nil {
		return 0, err
	}
	if err := opt.Validate(); err != nil {
		return 0, err
	}
	if err := validateSpot(spot); err != nil {
		return 0, err
	}
	t := opt.Contract()
	if t.Expiry == 0 {
		return 0, fmt.Errorf("%w: implied volatility undefined at expiry", ErrInvalidParameters)
	}
	lo, hi := arbitrageBounds(opt, spot)
	if !finite(target) || target < lo-1e-12 || target >= hi {
		return 0, fmt.Errorf("%w: price %v outside no-arbitrage bounds [%v, %v)", ErrInvalidParameters, target, lo, hi)
	}

	tol := 1e-6
	if _, ok := p.(*BlackScholesPricer); ok {
		tol = 1e-10
	}

	sigmaLo, sigmaHi := minImpliedVol, maxImpliedVol
	sigma := t.Underlying.Volatility
	if sigma <= sigmaLo || sigma >= sigmaHi {
		sigma = 0.2
	}

	for i := 0; i < maxImpliedIters; i++ {
		nt := t
		nt.Underlying.Volatility = sigma
		price, err := p.PriceAt(ctx, withTerms(opt, nt), spot)
		if err != nil {
			return 0, err
		}
		diff := price - target
		if math.Abs(diff) < tol {
			return sigma, nil
		}
		if diff > 0 {
			sigmaHi = sigma
		} else {
			sigmaLo = sigma
		}

		vega := CalculateBlackScholes(t.Type, BlackScholesInput{
			S: spot, K: t.Strike, T: t.Expiry, R: t.Underlying.Rate, Q: t.Underlying.Dividend, V: sigma,
		}).Vega
		next := 0.5 * (sigmaLo + sigmaHi)
		if vega > 1e-12 {
			if n := sigma - diff/vega; n > sigmaLo && n < sigmaHi {
				next = n
			}
		}
		if math.Abs(next-sigma) < 1e-12 {
			return next, nil
		}
		sigma = next
	}
	return 0, fmt.Errorf("%w after %d iterations", ErrNoConvergence, maxImpliedIters)
}

// arbitrageBounds 期权价格的无套利上下界
func arbitrageBounds(opt Option, spot float64) (float64, float64) {
	t := opt.Contract()
	dq := math.Exp(-t.Underlying.Dividend * t.Expiry)
	dr := math.Exp(-t.Underlying.Rate * t.Expiry)
	lower := math.Max(t.Type.Sign()*(spot*dq-t.Strike*dr), 0)
	upper := spot * dq
	if t.Type == OptionTypePut {
		upper = t.Strike * dr
	}
	if opt.Style() == StyleAmerican {
		lower = math.Max(lower, opt.Payoff(spot))
		if t.Type == OptionTypePut {
			upper = t.Strike
		} else {
			upper = spot
		}
	}
	return lower, upper
}
