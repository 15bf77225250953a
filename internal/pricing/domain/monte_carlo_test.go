package domain

import (
	"context"
	"errors"
	"math"
	"testing"
)

func TestMonteCarloWithinStandardErrors(t *testing.T) {
	p := NewMonteCarloPricer(DefaultMonteCarloConfig())
	ctx := context.Background()
	for _, typ := range []OptionType{OptionTypeCall, OptionTypePut} {
		opt := NewEuropean(100, 1, typ, Asset{Volatility: 0.2, Rate: 0.05, Dividend: 0.01})
		est, err := p.Estimate(ctx, opt, 100)
		if err != nil {
			t.Fatal(err)
		}
		want := CalculateBlackScholes(typ, BlackScholesInput{S: 100, K: 100, T: 1, R: 0.05, Q: 0.01, V: 0.2}).Price
		if est.StdErr <= 0 || est.StdErr > 0.1 {
			t.Fatalf("%s std err = %v", typ, est.StdErr)
		}
		if math.Abs(est.Price-want) > 4*est.StdErr {
			t.Errorf("%s mc = %.4f ± %.4f, bs = %.4f", typ, est.Price, est.StdErr, want)
		}
	}
}

func TestMonteCarloDeterministic(t *testing.T) {
	p := NewMonteCarloPricer(MonteCarloConfig{Paths: 2000, Steps: 1, Seed: 7})
	opt := NewEuropean(100, 0.5, OptionTypeCall, Asset{Volatility: 0.3, Rate: 0.02})
	a, _ := p.PriceAt(context.Background(), opt, 95)
	b, _ := p.PriceAt(context.Background(), opt, 95)
	if a != b {
		t.Fatalf("same seed gave %v and %v", a, b)
	}
}

func TestMonteCarloRejectsAmerican(t *testing.T) {
	p := NewMonteCarloPricer(DefaultMonteCarloConfig())
	opt := NewAmerican(100, 1, OptionTypePut, Asset{Volatility: 0.2})
	if _, err := p.PriceAt(context.Background(), opt, 100); !errors.Is(err, ErrUnsupportedModel) {
		t.Fatalf("expected ErrUnsupportedModel, got %v", err)
	}
}

func TestLongstaffSchwartzAmericanPut(t *testing.T) {
	p := NewLSMPricer(MonteCarloConfig{Paths: 20000, Steps: 50, Seed: 42})
	opt := NewAmerican(40, 1, OptionTypePut, Asset{Volatility: 0.2, Rate: 0.06})
	got, err := p.PriceAt(context.Background(), opt, 36)
	if err != nil {
		t.Fatal(err)
	}
	if math.Abs(got-4.4867) > 0.1 {
		t.Fatalf("lsm american put = %.4f, want about 4.4867", got)
	}
	if _, err := p.PriceAt(context.Background(), NewEuropean(40, 1, OptionTypePut, opt.Underlying), 36); !errors.Is(err, ErrUnsupportedModel) {
		t.Fatalf("european via lsm: %v", err)
	}
}
