package domain

import (
	"context"
	"errors"
	"math"
	"testing"
)

func TestBlackScholesReferenceValues(t *testing.T) {
	in := BlackScholesInput{S: 100, K: 100, T: 1, R: 0.05, V: 0.2}
	call := CalculateBlackScholes(OptionTypeCall, in)
	put := CalculateBlackScholes(OptionTypePut, in)

	if math.Abs(call.Price-10.4506) > 1e-3 {
		t.Errorf("call = %.6f, want 10.4506", call.Price)
	}
	if math.Abs(put.Price-5.5735) > 1e-3 {
		t.Errorf("put = %.6f, want 5.5735", put.Price)
	}
	if math.Abs(call.Delta-0.6368) > 1e-3 || math.Abs(put.Delta+0.3632) > 1e-3 {
		t.Errorf("delta call=%.4f put=%.4f", call.Delta, put.Delta)
	}
	if math.Abs(call.Gamma-put.Gamma) > 1e-12 || math.Abs(call.Vega-put.Vega) > 1e-9 {
		t.Error("gamma and vega must not depend on side")
	}
	if math.Abs(call.Gamma-0.018762) > 1e-5 {
		t.Errorf("gamma = %.6f", call.Gamma)
	}
	if math.Abs(call.Vega-37.524) > 1e-2 {
		t.Errorf("vega = %.4f", call.Vega)
	}
	if math.Abs(call.Theta+6.414) > 1e-2 {
		t.Errorf("theta = %.4f", call.Theta)
	}
	if math.Abs(call.Rho-53.232) > 1e-2 {
		t.Errorf("rho = %.4f", call.Rho)
	}
}

func TestPutCallParity(t *testing.T) {
	cases := []BlackScholesInput{
		{S: 60, K: 50, T: 0.5, R: 0.05, V: 0.2},
		{S: 70, K: 50, T: 0.5, R: 0.05, V: 0.2},
		{S: 100, K: 120, T: 2, R: 0.01, Q: 0.03, V: 0.45},
		{S: 10, K: 8, T: 0.1, R: -0.005, Q: 0, V: 0.8},
	}
	for _, in := range cases {
		c := CalculateBlackScholes(OptionTypeCall, in).Price
		p := CalculateBlackScholes(OptionTypePut, in).Price
		want := in.S*math.Exp(-in.Q*in.T) - in.K*math.Exp(-in.R*in.T)
		if math.Abs(c-p-want) > 1e-9 {
			t.Errorf("%+v: C-P = %.12f, want %.12f", in, c-p, want)
		}
	}
}

func TestBlackScholesAtExpiry(t *testing.T) {
	res := CalculateBlackScholes(OptionTypeCall, BlackScholesInput{S: 60, K: 50, T: 0, V: 0.2})
	if res.Price != 10 || res.Delta != 1 || res.Gamma != 0 {
		t.Fatalf("expired call = %+v", res)
	}
	res = CalculateBlackScholes(OptionTypePut, BlackScholesInput{S: 60, K: 50, T: 0, V: 0.2})
	if res.Price != 0 || res.Delta != 0 {
		t.Fatalf("expired otm put = %+v", res)
	}
}

func TestBlackScholesPricerRejects(t *testing.T) {
	p := NewBlackScholesPricer()
	ctx := context.Background()

	am := NewAmerican(50, 1, OptionTypePut, Asset{Volatility: 0.2})
	if _, err := p.PriceAt(ctx, am, 50); !errors.Is(err, ErrUnsupportedModel) {
		t.Fatalf("american: %v", err)
	}
	eu := NewEuropean(50, 1, OptionTypePut, Asset{Volatility: 0.2})
	if _, err := p.PriceAt(ctx, eu, -1); !errors.Is(err, ErrInvalidParameters) {
		t.Fatalf("negative spot: %v", err)
	}
	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	if _, err := p.PriceAt(cancelled, eu, 50); !errors.Is(err, context.Canceled) {
		t.Fatalf("cancelled: %v", err)
	}
}
