// Package native 动态库导出函数背后的纯 Go 逻辑，cmd/libpricing 只负责 C 类型转换
package native

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"

	"github.com/wyfcoding/optionspricing/internal/pricing/application"
	"github.com/wyfcoding/optionspricing/internal/pricing/domain"
	"github.com/wyfcoding/optionspricing/pkg/config"
)

// ErrOverflow 结果超出 int32 范围
var ErrOverflow = errors.New("int32 overflow")

// Twice 返回 2x，溢出时按补码回绕
func Twice(x int32) int32 { return x * 2 }

// TwiceChecked 返回 2x，溢出时报错
func TwiceChecked(x int32) (int32, error) {
	if x > math.MaxInt32/2 || x < math.MinInt32/2 {
		return 0, fmt.Errorf("%w: twice(%d)", ErrOverflow, x)
	}
	return x * 2, nil
}

// Foo 与 C 侧 struct { int32_t bar; double tab; } 对应
type Foo struct {
	Bar int32
	Tab float64
}

// Sum bar + tab
func (f Foo) Sum() float64 { return float64(f.Bar) + f.Tab }

// AddWrapper f 为 nil 时返回 NaN
func AddWrapper(f *Foo) float64 {
	if f == nil {
		return math.NaN()
	}
	return f.Sum()
}

// Mode 定价模式
type Mode int32

const (
	ModeScalar Mode = 0 // 使用 OptionParams.Spot 单点定价
	ModeArray  Mode = 1 // 在曲线网格上定价
)

// Status 返回给调用方的状态码
type Status int32

const (
	StatusOK Status = iota
	StatusInvalidParameters
	StatusUnsupportedModel
	StatusNumericalFailure
	StatusNullArgument
)

// StatusOf 把错误映射为状态码
func StatusOf(err error) Status {
	switch {
	case err == nil:
		return StatusOK
	case errors.Is(err, domain.ErrUnsupportedModel):
		return StatusUnsupportedModel
	case errors.Is(err, domain.ErrInvalidParameters), errors.Is(err, domain.ErrSpotOutsideGrid):
		return StatusInvalidParameters
	}
	return StatusNumericalFailure
}

// 模型编号
const (
	ModelDefault int32 = iota
	ModelBlackScholes
	ModelExplicitFD
	ModelImplicitFD
	ModelMonteCarlo
	ModelLongstaffSchwartz
)

var modelCodes = map[int32]domain.Model{
	ModelDefault:           "",
	ModelBlackScholes:      domain.ModelBlackScholes,
	ModelExplicitFD:        domain.ModelExplicitFD,
	ModelImplicitFD:        domain.ModelImplicitFD,
	ModelMonteCarlo:        domain.ModelMonteCarlo,
	ModelLongstaffSchwartz: domain.ModelLongstaffSchwartz,
}

// OptionParams 与 C 侧参数结构体对应。Style 0 欧式 1 美式；Side +1 看涨 -1 看跌。
type OptionParams struct {
	Style      int32
	Side       int32
	Model      int32
	Strike     float64
	Expiry     float64
	Volatility float64
	Rate       float64
	Dividend   float64
	Spot       float64
}

// Option 构造领域期权并解析模型
func (p *OptionParams) Option() (domain.Option, domain.Model, error) {
	var style domain.ExerciseStyle
	switch p.Style {
	case 0:
		style = domain.StyleEuropean
	case 1:
		style = domain.StyleAmerican
	default:
		return nil, "", fmt.Errorf("%w: style must be 0 or 1, got %d", domain.ErrInvalidParameters, p.Style)
	}
	model, ok := modelCodes[p.Model]
	if !ok {
		return nil, "", fmt.Errorf("%w: model code %d", domain.ErrUnsupportedModel, p.Model)
	}

	opt, err := domain.FromParameters(style, domain.Parameters{
		domain.ParamStrike:     p.Strike,
		domain.ParamExpiry:     p.Expiry,
		domain.ParamSide:       float64(p.Side),
		domain.ParamVolatility: p.Volatility,
		domain.ParamRate:       p.Rate,
		domain.ParamDividend:   p.Dividend,
	})
	if err != nil {
		return nil, "", err
	}
	return opt, model, nil
}

// Library 动态库持有的引擎，曲线网格可在运行时调整
type Library struct {
	mu     sync.RWMutex
	engine *domain.Engine
}

// NewLibrary 基于给定引擎创建
func NewLibrary(engine *domain.Engine) *Library {
	return &Library{engine: engine}
}

// Open 从配置文件构建引擎，文件不存在时使用默认值与环境变量
func Open(configPath string) (*Library, error) {
	cfg, err := config.LoadWithDefaults(configPath)
	if err != nil {
		return nil, err
	}
	engine, err := application.NewEngine(cfg.Pricing)
	if err != nil {
		return nil, err
	}
	return NewLibrary(engine), nil
}

// SetSpotGrid 替换数组模式使用的曲线网格
func (l *Library) SetSpotGrid(lower, upper float64, points int32) error {
	g := domain.SpotGrid{Lower: lower, Upper: upper, Points: int(points)}
	if err := g.Validate(); err != nil {
		return err
	}
	l.mu.Lock()
	l.engine = l.engine.WithSpotGrid(g)
	l.mu.Unlock()
	return nil
}

// SpotGrid 当前曲线网格
func (l *Library) SpotGrid() domain.SpotGrid {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.engine.SpotGrid()
}

// PriceExtern 单点模式返回长度为 1 的切片，数组模式返回曲线网格上的价格
func (l *Library) PriceExtern(ctx context.Context, p *OptionParams, mode Mode) ([]float64, Status) {
	if p == nil {
		return nil, StatusNullArgument
	}
	opt, model, err := p.Option()
	if err != nil {
		return nil, StatusOf(err)
	}

	var spot *float64
	switch mode {
	case ModeScalar:
		spot = &p.Spot
	case ModeArray:
	default:
		return nil, StatusInvalidParameters
	}

	l.mu.RLock()
	engine := l.engine
	l.mu.RUnlock()

	v, err := engine.Valuate(ctx, model, opt, spot)
	if err != nil {
		return nil, StatusOf(err)
	}
	return v.Values(), StatusOK
}
