package domain

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Model 定价模型
type Model string

const (
	ModelBlackScholes      Model = "BlackScholes"      // 解析解，仅欧式
	ModelExplicitFD        Model = "ExplicitFD"        // 显式前向差分
	ModelImplicitFD        Model = "ImplicitFD"        // 全隐式差分
	ModelMonteCarlo        Model = "MonteCarlo"        // 蒙特卡洛，仅欧式
	ModelLongstaffSchwartz Model = "LongstaffSchwartz" // 最小二乘蒙特卡洛，仅美式
)

// Models 全部已知模型
func Models() []Model {
	return []Model{ModelBlackScholes, ModelExplicitFD, ModelImplicitFD, ModelMonteCarlo, ModelLongstaffSchwartz}
}

// ParseModel 解析模型名，大小写不敏感；空字符串返回空模型，由引擎按行权方式选择默认模型
func ParseModel(s string) (Model, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", nil
	}
	for _, m := range Models() {
		if strings.EqualFold(s, string(m)) {
			return m, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnsupportedModel, s)
}

// DefaultModel 行权方式对应的默认模型
func DefaultModel(style ExerciseStyle) Model {
	if style == StyleAmerican {
		return ModelImplicitFD
	}
	return ModelBlackScholes
}

// Pricer 定价模型实现。PriceAt 对应单点定价，PriceCurve 对应一组现价的数组定价。
type Pricer interface {
	Model() Model
	Supports(style ExerciseStyle) bool
	PriceAt(ctx context.Context, opt Option, spot float64) (float64, error)
	PriceCurve(ctx context.Context, opt Option, spots []float64) ([]float64, error)
}

// YearsBetween 按 365 天年化
func YearsBetween(from, to time.Time) float64 {
	d := to.Sub(from)
	if d <= 0 {
		return 0
	}
	return d.Hours() / 24 / 365
}

// Greeks 希腊字母。Theta 为每年的日历时间导数，Vega 与 Rho 对应 1.0 的波动率与利率变化。
type Greeks struct {
	Delta float64 `json:"delta"`
	Gamma float64 `json:"gamma"`
	Theta float64 `json:"theta"`
	Vega  float64 `json:"vega"`
	Rho   float64 `json:"rho"`
}

// PricingResult 定价结果实体
type PricingResult struct {
	ID              uint            `json:"id"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
	Symbol          string          `json:"symbol"`
	Style           ExerciseStyle   `json:"style"`
	OptionType      OptionType      `json:"option_type"`
	StrikePrice     decimal.Decimal `json:"strike_price"`
	Expiry          float64         `json:"expiry"`
	Volatility      float64         `json:"volatility"`
	RiskFreeRate    float64         `json:"risk_free_rate"`
	DividendYield   float64         `json:"dividend_yield"`
	OptionPrice     decimal.Decimal `json:"option_price"`
	UnderlyingPrice decimal.Decimal `json:"underlying_price"`
	Delta           decimal.Decimal `json:"delta"`
	Gamma           decimal.Decimal `json:"gamma"`
	Theta           decimal.Decimal `json:"theta"`
	Vega            decimal.Decimal `json:"vega"`
	Rho             decimal.Decimal `json:"rho"`
	CalculatedAt    int64           `json:"calculated_at"`
	PricingModel    string          `json:"pricing_model"`
}

// NewPricingResult 由期权、现价、价格与希腊字母构造定价结果
func NewPricingResult(symbol string, model Model, opt Option, spot, price float64, g Greeks, at time.Time) *PricingResult {
	t := opt.Contract()
	return &PricingResult{
		Symbol:          symbol,
		Style:           opt.Style(),
		OptionType:      t.Type,
		StrikePrice:     decimal.NewFromFloat(t.Strike),
		Expiry:          t.Expiry,
		Volatility:      t.Underlying.Volatility,
		RiskFreeRate:    t.Underlying.Rate,
		DividendYield:   t.Underlying.Dividend,
		OptionPrice:     decimal.NewFromFloat(price),
		UnderlyingPrice: decimal.NewFromFloat(spot),
		Delta:           decimal.NewFromFloat(g.Delta),
		Gamma:           decimal.NewFromFloat(g.Gamma),
		Theta:           decimal.NewFromFloat(g.Theta),
		Vega:            decimal.NewFromFloat(g.Vega),
		Rho:             decimal.NewFromFloat(g.Rho),
		CalculatedAt:    at.UnixMilli(),
		PricingModel:    string(model),
	}
}
