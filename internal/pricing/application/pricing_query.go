package application

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/wyfcoding/optionspricing/internal/pricing/domain"
)

const (
	defaultHistoryLimit = 20
	maxHistoryLimit     = 500
)

// PricingQueryService 处理所有定价相关的查询操作（Queries）。
type PricingQueryService struct {
	engine *domain.Engine
	repo   domain.PricingRepository
	now    func() time.Time
}

// NewPricingQueryService 构造函数。
func NewPricingQueryService(engine *domain.Engine, repo domain.PricingRepository) *PricingQueryService {
	return &PricingQueryService{engine: engine, repo: repo, now: time.Now}
}

// GetGreeks 计算价格与希腊字母，不落库
func (q *PricingQueryService) GetGreeks(ctx context.Context, query GreeksQuery) (*GreeksResult, error) {
	opt, model, err := query.build(q.now())
	if err != nil {
		return nil, err
	}
	resolved, price, greeks, err := q.engine.PriceWithGreeks(ctx, model, opt, query.UnderlyingPrice)
	if err != nil {
		return nil, err
	}
	return &GreeksResult{Symbol: query.Symbol, Model: resolved, Price: price, Greeks: greeks}, nil
}

// GetLatestResult 获取最新定价结果
func (q *PricingQueryService) GetLatestResult(ctx context.Context, symbol string) (*domain.PricingResult, error) {
	if strings.TrimSpace(symbol) == "" {
		return nil, fmt.Errorf("%w: symbol is required", domain.ErrInvalidParameters)
	}
	return q.repo.GetLatest(ctx, symbol)
}

// GetHistory 按计算时间倒序返回历史定价结果
func (q *PricingQueryService) GetHistory(ctx context.Context, symbol string, limit int) ([]*domain.PricingResult, error) {
	if strings.TrimSpace(symbol) == "" {
		return nil, fmt.Errorf("%w: symbol is required", domain.ErrInvalidParameters)
	}
	switch {
	case limit <= 0:
		limit = defaultHistoryLimit
	case limit > maxHistoryLimit:
		limit = maxHistoryLimit
	}
	return q.repo.GetHistory(ctx, symbol, limit)
}
