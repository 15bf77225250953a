package mysql

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/wyfcoding/optionspricing/internal/pricing/domain"
)

// PricingResultModel 定价结果数据库模型
type PricingResultModel struct {
	ID              uint      `gorm:"primaryKey;autoIncrement"`
	CreatedAt       time.Time `gorm:"column:created_at;index"`
	UpdatedAt       time.Time `gorm:"column:updated_at"`
	Symbol          string    `gorm:"column:symbol;type:varchar(64);index:idx_symbol_calc,priority:1;not null"`
	Style           string    `gorm:"column:style;type:varchar(16);not null"`
	OptionType      string    `gorm:"column:option_type;type:varchar(8);not null"`
	StrikePrice     string    `gorm:"column:strike_price;type:decimal(32,18);not null"`
	Expiry          float64   `gorm:"column:expiry;not null"`
	Volatility      float64   `gorm:"column:volatility;not null"`
	RiskFreeRate    float64   `gorm:"column:risk_free_rate"`
	DividendYield   float64   `gorm:"column:dividend_yield"`
	OptionPrice     string    `gorm:"column:option_price;type:decimal(32,18);not null"`
	UnderlyingPrice string    `gorm:"column:underlying_price;type:decimal(32,18);not null"`
	Delta           string    `gorm:"column:delta;type:decimal(32,18)"`
	Gamma           string    `gorm:"column:gamma;type:decimal(32,18)"`
	Theta           string    `gorm:"column:theta;type:decimal(32,18)"`
	Vega            string    `gorm:"column:vega;type:decimal(32,18)"`
	Rho             string    `gorm:"column:rho;type:decimal(32,18)"`
	CalculatedAt    int64     `gorm:"column:calculated_at;type:bigint;index:idx_symbol_calc,priority:2;not null"`
	PricingModel    string    `gorm:"column:pricing_model;type:varchar(32)"`
}

func (PricingResultModel) TableName() string { return "pricing_results" }

func toPricingResultModel(res *domain.PricingResult) *PricingResultModel {
	if res == nil {
		return nil
	}
	return &PricingResultModel{
		ID:              res.ID,
		CreatedAt:       res.CreatedAt,
		UpdatedAt:       res.UpdatedAt,
		Symbol:          res.Symbol,
		Style:           string(res.Style),
		OptionType:      string(res.OptionType),
		StrikePrice:     res.StrikePrice.String(),
		Expiry:          res.Expiry,
		Volatility:      res.Volatility,
		RiskFreeRate:    res.RiskFreeRate,
		DividendYield:   res.DividendYield,
		OptionPrice:     res.OptionPrice.String(),
		UnderlyingPrice: res.UnderlyingPrice.String(),
		Delta:           res.Delta.String(),
		Gamma:           res.Gamma.String(),
		Theta:           res.Theta.String(),
		Vega:            res.Vega.String(),
		Rho:             res.Rho.String(),
		CalculatedAt:    res.CalculatedAt,
		PricingModel:    res.PricingModel,
	}
}

func toPricingResult(m *PricingResultModel) *domain.PricingResult {
	if m == nil {
		return nil
	}
	return &domain.PricingResult{
		ID:              m.ID,
		CreatedAt:       m.CreatedAt,
		UpdatedAt:       m.UpdatedAt,
		Symbol:          m.Symbol,
		Style:           domain.ExerciseStyle(m.Style),
		OptionType:      domain.OptionType(m.OptionType),
		StrikePrice:     parseDecimal(m.StrikePrice),
		Expiry:          m.Expiry,
		Volatility:      m.Volatility,
		RiskFreeRate:    m.RiskFreeRate,
		DividendYield:   m.DividendYield,
		OptionPrice:     parseDecimal(m.OptionPrice),
		UnderlyingPrice: parseDecimal(m.UnderlyingPrice),
		Delta:           parseDecimal(m.Delta),
		Gamma:           parseDecimal(m.Gamma),
		Theta:           parseDecimal(m.Theta),
		Vega:            parseDecimal(m.Vega),
		Rho:             parseDecimal(m.Rho),
		CalculatedAt:    m.CalculatedAt,
		PricingModel:    m.PricingModel,
	}
}

// parseDecimal 空串与非法值按 0 处理
func parseDecimal(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}
