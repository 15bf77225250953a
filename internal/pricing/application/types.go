package application

import (
	"fmt"
	"time"

	"github.com/wyfcoding/optionspricing/internal/pricing/domain"
)

// OptionSpec 期权描述，命令与查询共用
type OptionSpec struct {
	Symbol     string
	Style      string
	OptionType string
	// 行权价
	StrikePrice float64
	// 到期时间（毫秒时间戳），未给出 Expiry 时使用
	ExpiryDate int64
	// 剩余期限（年），0 表示已到期
	Expiry        *float64
	Volatility    float64
	RiskFreeRate  float64
	DividendYield float64
	// 为空时按行权方式选择默认模型
	PricingModel string
}

// build 构造领域期权并解析模型
func (s OptionSpec) build(now time.Time) (domain.Option, domain.Model, error) {
	style, err := domain.ParseExerciseStyle(s.Style)
	if err != nil {
		return nil, "", err
	}
	typ, err := domain.ParseOptionType(s.OptionType)
	if err != nil {
		return nil, "", err
	}
	model, err := domain.ParseModel(s.PricingModel)
	if err != nil {
		return nil, "", err
	}

	var expiry float64
	switch {
	case s.Expiry != nil:
		expiry = *s.Expiry
	case s.ExpiryDate > 0:
		expiry = domain.YearsBetween(now, time.UnixMilli(s.ExpiryDate))
	default:
		return nil, "", fmt.Errorf("%w: expiry or expiry_date is required", domain.ErrInvalidParameters)
	}

	opt, err := domain.NewOption(style, domain.Terms{
		Strike: s.StrikePrice,
		Expiry: expiry,
		Type:   typ,
		Underlying: domain.Asset{
			Volatility: s.Volatility,
			Rate:       s.RiskFreeRate,
			Dividend:   s.DividendYield,
		},
	})
	if err != nil {
		return nil, "", err
	}
	if err := opt.Validate(); err != nil {
		return nil, "", err
	}
	return opt, model, nil
}

// PriceOptionCommand 期权定价命令
type PriceOptionCommand struct {
	OptionSpec
	UnderlyingPrice float64
}

// PriceCurveCommand 无现价的数组定价命令
type PriceCurveCommand struct {
	OptionSpec
	// 为空时使用引擎默认曲线网格
	SpotGrid *domain.SpotGrid
}

// ImplyVolatilityCommand 隐含波动率反解命令
type ImplyVolatilityCommand struct {
	OptionSpec
	UnderlyingPrice float64
	MarketPrice     float64
}

// GreeksQuery 希腊字母查询
type GreeksQuery struct {
	OptionSpec
	UnderlyingPrice float64
}

// BatchPriceOptionsCommand 批量定价命令
type BatchPriceOptionsCommand struct {
	Contracts []PriceOptionCommand
	BatchID   string
}

// BatchItem 批量定价中单个合约的结果
type BatchItem struct {
	Symbol string                `json:"symbol"`
	Result *domain.PricingResult `json:"result,omitempty"`
	Error  string                `json:"error,omitempty"`
}

// BatchPricingResult 批量定价结果，Items 与输入顺序一致
type BatchPricingResult struct {
	BatchID      string      `json:"batch_id"`
	Items        []BatchItem `json:"items"`
	SuccessCount int         `json:"success_count"`
	FailureCount int         `json:"failure_count"`
	// 平均耗时（秒）
	AverageTime float64 `json:"average_time"`
}

// CurveResult 数组定价结果
type CurveResult struct {
	Symbol string       `json:"symbol"`
	Model  domain.Model `json:"model"`
	domain.Curve
}

// GreeksResult 希腊字母查询结果
type GreeksResult struct {
	Symbol string       `json:"symbol"`
	Model  domain.Model `json:"model"`
	Price  float64      `json:"price"`
	domain.Greeks
}

// ImpliedVolatilityResult 隐含波动率结果
type ImpliedVolatilityResult struct {
	Symbol     string       `json:"symbol"`
	Model      domain.Model `json:"model"`
	Volatility float64      `json:"volatility"`
}
