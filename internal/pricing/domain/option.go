// Package domain 期权定价引擎的领域模型：期权品种、定价模型与希腊字母
package domain

import (
	"fmt"
	"math"
	"strings"
)

// OptionType 期权类型
type OptionType string

const (
	OptionTypeCall OptionType = "CALL" // 看涨期权
	OptionTypePut  OptionType = "PUT"  // 看跌期权
)

// Sign 看涨为 +1，看跌为 -1
func (t OptionType) Sign() float64 {
	if t == OptionTypePut {
		return -1
	}
	return 1
}

// ParseOptionType 解析期权类型，大小写不敏感，支持 C/P 简写
func ParseOptionType(s string) (OptionType, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "CALL", "C":
		return OptionTypeCall, nil
	case "PUT", "P":
		return OptionTypePut, nil
	}
	return "", fmt.Errorf("%w: unknown option type %q", ErrInvalidParameters, s)
}

// OptionTypeFromSign 由 ±1 还原期权类型
func OptionTypeFromSign(v float64) (OptionType, error) {
	switch v {
	case 1:
		return OptionTypeCall, nil
	case -1:
		return OptionTypePut, nil
	}
	return "", fmt.Errorf("%w: side must be +1 or -1, got %v", ErrInvalidParameters, v)
}

// ExerciseStyle 行权方式
type ExerciseStyle string

const (
	StyleEuropean ExerciseStyle = "EUROPEAN" // 仅到期日行权
	StyleAmerican ExerciseStyle = "AMERICAN" // 到期前任意时刻行权
)

// ParseExerciseStyle 解析行权方式，空字符串视为欧式
func ParseExerciseStyle(s string) (ExerciseStyle, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "", "EUROPEAN", "E":
		return StyleEuropean, nil
	case "AMERICAN", "A":
		return StyleAmerican, nil
	}
	return "", fmt.Errorf("%w: unknown exercise style %q", ErrInvalidParameters, s)
}

// Asset 标的资产的市场状态
type Asset struct {
	Volatility float64 // 年化波动率
	Rate       float64 // 连续复利无风险利率
	Dividend   float64 // 连续股息率
}

// Terms 期权条款
type Terms struct {
	Strike     float64    // 行权价
	Expiry     float64    // 剩余期限（年）
	Type       OptionType // CALL/PUT
	Underlying Asset
}

// Parameters 期权参数的只读快照
type Parameters map[string]float64

// 参数键
const (
	ParamStrike     = "strike"
	ParamExpiry     = "expiry"
	ParamVolatility = "volatility"
	ParamRate       = "rate"
	ParamDividend   = "dividend"
	ParamSide       = "side"
)

// Option 期权。实现仅限本包的 European 与 American。
type Option interface {
	Style() ExerciseStyle
	Contract() Terms
	Parameters() Parameters
	Payoff(spot float64) float64
	Validate() error
	sealed()
}

// European 欧式期权
type European struct{ Terms }

// American 美式期权
type American struct{ Terms }

// NewEuropean 创建欧式期权
func NewEuropean(strike, expiry float64, typ OptionType, asset Asset) *European {
	return &European{Terms{Strike: strike, Expiry: expiry, Type: typ, Underlying: asset}}
}

// NewAmerican 创建美式期权
func NewAmerican(strike, expiry float64, typ OptionType, asset Asset) *American {
	return &American{Terms{Strike: strike, Expiry: expiry, Type: typ, Underlying: asset}}
}

// NewOption 按行权方式创建期权
func NewOption(style ExerciseStyle, terms Terms) (Option, error) {
	switch style {
	case StyleEuropean, "":
		return &European{terms}, nil
	case StyleAmerican:
		return &American{terms}, nil
	}
	return nil, fmt.Errorf("%w: unknown exercise style %q", ErrInvalidParameters, style)
}

// FromParameters 由参数表重建期权，缺失的利率与股息率按 0 处理
func FromParameters(style ExerciseStyle, p Parameters) (Option, error) {
	for _, k := range []string{ParamStrike, ParamExpiry, ParamVolatility, ParamSide} {
		if _, ok := p[k]; !ok {
			return nil, fmt.Errorf("%w: missing parameter %q", ErrInvalidParameters, k)
		}
	}
	typ, err := OptionTypeFromSign(p[ParamSide])
	if err != nil {
		return nil, err
	}
	opt, err := NewOption(style, Terms{
		Strike: p[ParamStrike],
		Expiry: p[ParamExpiry],
		Type:   typ,
		Underlying: Asset{
			Volatility: p[ParamVolatility],
			Rate:       p[ParamRate],
			Dividend:   p[ParamDividend],
		},
	})
	if err != nil {
		return nil, err
	}
	return opt, opt.Validate()
}

func (*European) Style() ExerciseStyle { return StyleEuropean }
func (*European) sealed()              {}

func (*American) Style() ExerciseStyle { return StyleAmerican }
func (*American) sealed()              {}

// Contract 返回条款副本
func (t Terms) Contract() Terms { return t }

// Parameters 返回参数副本，修改返回值不会影响期权本身
func (t Terms) Parameters() Parameters {
	return Parameters{
		ParamStrike:     t.Strike,
		ParamExpiry:     t.Expiry,
		ParamVolatility: t.Underlying.Volatility,
		ParamRate:       t.Underlying.Rate,
		ParamDividend:   t.Underlying.Dividend,
		ParamSide:       t.Type.Sign(),
	}
}

// Payoff 内在价值
func (t Terms) Payoff(spot float64) float64 {
	return math.Max(t.Type.Sign()*(spot-t.Strike), 0)
}

// Validate 校验条款
func (t Terms) Validate() error {
	switch {
	case t.Type != OptionTypeCall && t.Type != OptionTypePut:
		return fmt.Errorf("%w: unknown option type %q", ErrInvalidParameters, t.Type)
	case !finite(t.Strike) || t.Strike <= 0:
		return fmt.Errorf("%w: strike must be positive, got %v", ErrInvalidParameters, t.Strike)
	case !finite(t.Expiry) || t.Expiry < 0:
		return fmt.Errorf("%w: expiry must be non-negative, got %v", ErrInvalidParameters, t.Expiry)
	case !finite(t.Underlying.Volatility) || t.Underlying.Volatility <= 0:
		return fmt.Errorf("%w: volatility must be positive, got %v", ErrInvalidParameters, t.Underlying.Volatility)
	case !finite(t.Underlying.Rate):
		return fmt.Errorf("%w: rate must be finite, got %v", ErrInvalidParameters, t.Underlying.Rate)
	case !finite(t.Underlying.Dividend) || t.Underlying.Dividend < 0:
		return fmt.Errorf("%w: dividend must be non-negative, got %v", ErrInvalidParameters, t.Underlying.Dividend)
	}
	return nil
}

// withTerms 以相同行权方式替换条款，用于 bump 与隐含波动率搜索
func withTerms(opt Option, t Terms) Option {
	if opt.Style() == StyleAmerican {
		return &American{t}
	}
	return &European{t}
}

func validateSpot(spot float64) error {
	if !finite(spot) || spot <= 0 {
		return fmt.Errorf("%w: spot must be positive, got %v", ErrInvalidParameters, spot)
	}
	return nil
}

func finite(v float64) bool { return !math.IsNaN(v) && !math.IsInf(v, 0) }
