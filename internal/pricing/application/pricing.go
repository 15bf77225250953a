package application

import (
	"context"
	"time"

	"github.com/wyfcoding/optionspricing/internal/pricing/domain"
	"github.com/wyfcoding/optionspricing/pkg/metrics"
)

// PricingService 定价门面服务。
type PricingService struct {
	Command *PricingCommandService
	Query   *PricingQueryService
}

// NewPricingService 构造函数。
func NewPricingService(engine *domain.Engine, repo domain.PricingRepository, publisher domain.EventPublisher, collector metrics.Collector, workers int) *PricingService {
	return &PricingService{
		Command: NewPricingCommandService(engine, repo, publisher, collector, workers),
		Query:   NewPricingQueryService(engine, repo),
	}
}

// --- Command Facade ---

func (s *PricingService) PriceOption(ctx context.Context, cmd PriceOptionCommand) (*domain.PricingResult, error) {
	return s.Command.PriceOption(ctx, cmd)
}

func (s *PricingService) PriceCurve(ctx context.Context, cmd PriceCurveCommand) (*CurveResult, error) {
	return s.Command.PriceCurve(ctx, cmd)
}

func (s *PricingService) BatchPriceOptions(ctx context.Context, cmd BatchPriceOptionsCommand) (*BatchPricingResult, error) {
	return s.Command.BatchPriceOptions(ctx, cmd)
}

func (s *PricingService) ImplyVolatility(ctx context.Context, cmd ImplyVolatilityCommand) (*ImpliedVolatilityResult, error) {
	return s.Command.ImplyVolatility(ctx, cmd)
}

func (s *PricingService) CleanupResults(ctx context.Context, retention time.Duration) (int64, error) {
	return s.Command.CleanupResults(ctx, retention)
}

// --- Query Facade ---

func (s *PricingService) GetGreeks(ctx context.Context, query GreeksQuery) (*GreeksResult, error) {
	return s.Query.GetGreeks(ctx, query)
}

func (s *PricingService) GetLatestResult(ctx context.Context, symbol string) (*domain.PricingResult, error) {
	return s.Query.GetLatestResult(ctx, symbol)
}

func (s *PricingService) GetHistory(ctx context.Context, symbol string, limit int) ([]*domain.PricingResult, error) {
	return s.Query.GetHistory(ctx, symbol, limit)
}
