package mysql

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/wyfcoding/optionspricing/internal/pricing/domain"
)

func TestPricingResultModelMapping(t *testing.T) {
	opt := domain.NewAmerican(40, 1, domain.OptionTypePut, domain.Asset{Volatility: 0.2, Rate: 0.06, Dividend: 0.01})
	at := time.UnixMilli(1_760_000_000_000)
	res := domain.NewPricingResult("ABC-P40", domain.ModelImplicitFD, opt, 36, 4.4867,
		domain.Greeks{Delta: -0.69, Gamma: 0.07, Theta: -0.8, Vega: 12.1, Rho: -9.5}, at)

	m := toPricingResultModel(res)
	if m.TableName() != "pricing_results" || m.Style != "AMERICAN" || m.OptionType != "PUT" {
		t.Fatalf("model = %+v", m)
	}
	back := toPricingResult(m)
	if !back.OptionPrice.Equal(res.OptionPrice) || !back.StrikePrice.Equal(decimal.NewFromInt(40)) {
		t.Fatalf("prices = %s / %s", back.OptionPrice, back.StrikePrice)
	}
	if back.Style != domain.StyleAmerican || back.DividendYield != 0.01 || back.CalculatedAt != at.UnixMilli() {
		t.Fatalf("round trip = %+v", back)
	}
	if !back.Delta.Equal(decimal.NewFromFloat(-0.69)) {
		t.Fatalf("delta = %s", back.Delta)
	}
}

func TestParseDecimalFallsBackToZero(t *testing.T) {
	if !parseDecimal("").IsZero() || !parseDecimal("nope").IsZero() {
		t.Fatal("invalid decimals must map to zero")
	}
	if toPricingResultModel(nil) != nil || toPricingResult(nil) != nil {
		t.Fatal("nil mapping")
	}
}
