package domain

import (
	"errors"
	"time"
)

const (
	OptionPricedEventType          = "OptionPriced"
	GreeksCalculatedEventType      = "GreeksCalculated"
	PricingErrorEventType          = "PricingError"
	BatchPricingCompletedEventType = "BatchPricingCompleted"
	VolatilityImpliedEventType     = "VolatilityImplied"
)

// OptionPricedEvent 期权定价完成事件
type OptionPricedEvent struct {
	Symbol          string        `json:"symbol"`
	Style           ExerciseStyle `json:"style"`
	OptionType      OptionType    `json:"option_type"`
	StrikePrice     float64       `json:"strike_price"`
	Expiry          float64       `json:"expiry"`
	OptionPrice     float64       `json:"option_price"`
	UnderlyingPrice float64       `json:"underlying_price"`
	Volatility      float64       `json:"volatility"`
	RiskFreeRate    float64       `json:"risk_free_rate"`
	DividendYield   float64       `json:"dividend_yield"`
	PricingModel    string        `json:"pricing_model"`
	CalculatedAt    int64         `json:"calculated_at"`
	OccurredOn      time.Time     `json:"occurred_on"`
}

// GreeksCalculatedEvent 希腊字母计算完成事件
type GreeksCalculatedEvent struct {
	Symbol          string     `json:"symbol"`
	OptionType      OptionType `json:"option_type"`
	StrikePrice     float64    `json:"strike_price"`
	UnderlyingPrice float64    `json:"underlying_price"`
	Greeks
	PricingModel string    `json:"pricing_model"`
	CalculatedAt int64     `json:"calculated_at"`
	OccurredOn   time.Time `json:"occurred_on"`
}

// PricingErrorEvent 定价错误事件
type PricingErrorEvent struct {
	Symbol       string     `json:"symbol"`
	OptionType   OptionType `json:"option_type"`
	StrikePrice  float64    `json:"strike_price"`
	PricingModel string     `json:"pricing_model"`
	Error        string     `json:"error"`
	ErrorCode    string     `json:"error_code"`
	OccurredAt   int64      `json:"occurred_at"`
	OccurredOn   time.Time  `json:"occurred_on"`
}

// BatchPricingCompletedEvent 批量定价完成事件
type BatchPricingCompletedEvent struct {
	BatchID        string    `json:"batch_id"`
	Symbols        []string  `json:"symbols"`
	TotalContracts int       `json:"total_contracts"`
	SuccessCount   int       `json:"success_count"`
	FailureCount   int       `json:"failure_count"`
	AverageTime    float64   `json:"average_time"`
	CompletedAt    int64     `json:"completed_at"`
	OccurredOn     time.Time `json:"occurred_on"`
}

// VolatilityImpliedEvent 隐含波动率反解完成事件
type VolatilityImpliedEvent struct {
	Symbol          string     `json:"symbol"`
	OptionType      OptionType `json:"option_type"`
	StrikePrice     float64    `json:"strike_price"`
	UnderlyingPrice float64    `json:"underlying_price"`
	MarketPrice     float64    `json:"market_price"`
	Volatility      float64    `json:"volatility"`
	PricingModel    string     `json:"pricing_model"`
	OccurredOn      time.Time  `json:"occurred_on"`
}

// ErrorCode 把领域错误映射为事件中的错误码
func ErrorCode(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrInvalidParameters):
		return "INVALID_PARAMETERS"
	case errors.Is(err, ErrUnsupportedModel):
		return "UNSUPPORTED_MODEL"
	case errors.Is(err, ErrSpotOutsideGrid):
		return "SPOT_OUTSIDE_GRID"
	case errors.Is(err, ErrUnstableScheme):
		return "UNSTABLE_SCHEME"
	case errors.Is(err, ErrSingularSystem), errors.Is(err, ErrNonFinite):
		return "NUMERICAL_FAILURE"
	case errors.Is(err, ErrNoConvergence):
		return "NO_CONVERGENCE"
	}
	return "INTERNAL"
}
