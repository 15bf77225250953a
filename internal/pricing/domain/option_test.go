package domain

import (
	"errors"
	"math"
	"testing"
)

func TestParametersIsACopy(t *testing.T) {
	opt := NewEuropean(50, 0.5, OptionTypePut, Asset{Volatility: 0.2, Rate: 0.05})
	p := opt.Parameters()
	if p[ParamStrike] != 50 || p[ParamExpiry] != 0.5 || p[ParamSide] != -1 || p[ParamVolatility] != 0.2 {
		t.Fatalf("unexpected parameters: %v", p)
	}
	p[ParamStrike] = 999
	if opt.Strike != 50 || opt.Parameters()[ParamStrike] != 50 {
		t.Fatal("mutating returned parameters changed the option")
	}
}

func TestFromParametersRoundTrip(t *testing.T) {
	orig := NewAmerican(40, 1, OptionTypePut, Asset{Volatility: 0.2, Rate: 0.06, Dividend: 0.01})
	got, err := FromParameters(StyleAmerican, orig.Parameters())
	if err != nil {
		t.Fatalf("FromParameters: %v", err)
	}
	if got.Style() != StyleAmerican || got.Contract() != orig.Terms {
		t.Fatalf("round trip mismatch: %+v vs %+v", got.Contract(), orig.Terms)
	}

	if _, err := FromParameters(StyleEuropean, Parameters{ParamStrike: 1}); !errors.Is(err, ErrInvalidParameters) {
		t.Fatalf("missing keys: got %v", err)
	}
	bad := orig.Parameters()
	bad[ParamSide] = 0
	if _, err := FromParameters(StyleEuropean, bad); !errors.Is(err, ErrInvalidParameters) {
		t.Fatalf("bad side: got %v", err)
	}
}

func TestValidate(t *testing.T) {
	good := Terms{Strike: 100, Expiry: 1, Type: OptionTypeCall, Underlying: Asset{Volatility: 0.2, Rate: 0.05}}
	tests := []struct {
		name   string
		mutate func(*Terms)
		ok     bool
	}{
		{"valid", func(*Terms) {}, true},
		{"expired is allowed", func(t *Terms) { t.Expiry = 0 }, true},
		{"negative rate is allowed", func(t *Terms) { t.Underlying.Rate = -0.01 }, true},
		{"zero strike", func(t *Terms) { t.Strike = 0 }, false},
		{"nan strike", func(t *Terms) { t.Strike = math.NaN() }, false},
		{"negative expiry", func(t *Terms) { t.Expiry = -1 }, false},
		{"zero vol", func(t *Terms) { t.Underlying.Volatility = 0 }, false},
		{"inf vol", func(t *Terms) { t.Underlying.Volatility = math.Inf(1) }, false},
		{"inf rate", func(t *Terms) { t.Underlying.Rate = math.Inf(-1) }, false},
		{"negative dividend", func(t *Terms) { t.Underlying.Dividend = -0.1 }, false},
		{"unknown type", func(t *Terms) { t.Type = "STRADDLE" }, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			terms := good
			tt.mutate(&terms)
			err := (&European{terms}).Validate()
			if tt.ok && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !tt.ok && !errors.Is(err, ErrInvalidParameters) {
				t.Fatalf("expected ErrInvalidParameters, got %v", err)
			}
		})
	}
}

func TestParsers(t *testing.T) {
	if typ, err := ParseOptionType("p"); err != nil || typ != OptionTypePut {
		t.Fatalf("ParseOptionType(p) = %v, %v", typ, err)
	}
	if _, err := ParseOptionType("x"); !errors.Is(err, ErrInvalidParameters) {
		t.Fatalf("ParseOptionType(x) = %v", err)
	}
	if s, err := ParseExerciseStyle(""); err != nil || s != StyleEuropean {
		t.Fatalf("ParseExerciseStyle('') = %v, %v", s, err)
	}
	if m, err := ParseModel("implicitfd"); err != nil || m != ModelImplicitFD {
		t.Fatalf("ParseModel = %v, %v", m, err)
	}
	if _, err := ParseModel("binomial"); !errors.Is(err, ErrUnsupportedModel) {
		t.Fatalf("ParseModel(binomial) = %v", err)
	}
}

func TestPayoff(t *testing.T) {
	asset := Asset{Volatility: 0.2}
	if got := NewEuropean(50, 1, OptionTypeCall, asset).Payoff(60); got != 10 {
		t.Fatalf("call payoff = %v", got)
	}
	if got := NewEuropean(50, 1, OptionTypePut, asset).Payoff(60); got != 0 {
		t.Fatalf("put payoff = %v", got)
	}
	if got := NewAmerican(50, 1, OptionTypePut, asset).Payoff(45); got != 5 {
		t.Fatalf("american put payoff = %v", got)
	}
}
