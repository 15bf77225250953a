package application

import (
	"github.com/wyfcoding/optionspricing/internal/pricing/domain"
	"github.com/wyfcoding/optionspricing/pkg/config"
)

// EngineConfigFrom 把配置文件中的定价参数转换为引擎配置
func EngineConfigFrom(cfg config.PricingConfig) (domain.EngineConfig, error) {
	model, err := domain.ParseModel(cfg.DefaultModel)
	if err != nil {
		return domain.EngineConfig{}, err
	}
	ec := domain.EngineConfig{
		Grid: domain.Grid{
			DX:    cfg.Grid.DX,
			DT:    cfg.Grid.DT,
			Minus: cfg.Grid.Minus,
			Plus:  cfg.Grid.Plus,
		},
		SpotGrid: domain.SpotGrid{
			Lower:  cfg.SpotGrid.Lower,
			Upper:  cfg.SpotGrid.Upper,
			Points: cfg.SpotGrid.Points,
		},
		MonteCarlo: domain.MonteCarloConfig{
			Paths: cfg.MonteCarlo.Paths,
			Steps: cfg.MonteCarlo.Steps,
			Seed:  cfg.MonteCarlo.Seed,
		},
	}
	// 有限差分模型同时作为两种行权方式的默认模型
	switch model {
	case "":
	case domain.ModelLongstaffSchwartz:
		ec.DefaultAmerican = model
	case domain.ModelExplicitFD, domain.ModelImplicitFD:
		ec.DefaultEuropean = model
		ec.DefaultAmerican = model
	default:
		ec.DefaultEuropean = model
	}
	if err := ec.Grid.Validate(); err != nil {
		return domain.EngineConfig{}, err
	}
	if err := ec.SpotGrid.Validate(); err != nil {
		return domain.EngineConfig{}, err
	}
	if err := ec.MonteCarlo.Validate(); err != nil {
		return domain.EngineConfig{}, err
	}
	return ec, nil
}

// NewEngine 由配置构造定价引擎
func NewEngine(cfg config.PricingConfig) (*domain.Engine, error) {
	ec, err := EngineConfigFrom(cfg)
	if err != nil {
		return nil, err
	}
	return domain.NewEngine(ec), nil
}
