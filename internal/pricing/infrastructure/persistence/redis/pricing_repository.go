// Package redis 最新定价结果的 Redis 缓存
package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/wyfcoding/optionspricing/internal/pricing/domain"
	"github.com/wyfcoding/optionspricing/pkg/cache"
)

const resultPrefix = "pricing_result:"

// PricingResultCache 按合约缓存最新定价结果
type PricingResultCache struct {
	cache *cache.RedisCache
	ttl   time.Duration
}

// NewPricingResultCache ttl 为 0 时使用 15 分钟
func NewPricingResultCache(c *cache.RedisCache, ttl time.Duration) *PricingResultCache {
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	return &PricingResultCache{cache: c, ttl: ttl}
}

// GetLatest 未命中时返回 nil, false, nil
func (r *PricingResultCache) GetLatest(ctx context.Context, symbol string) (*domain.PricingResult, bool, error) {
	if symbol == "" {
		return nil, false, nil
	}
	var result domain.PricingResult
	found, err := r.cache.GetJSON(ctx, ResultKey(symbol), &result)
	if err != nil || !found {
		return nil, false, err
	}
	return &result, true, nil
}

func (r *PricingResultCache) SetLatest(ctx context.Context, result *domain.PricingResult) error {
	if result == nil {
		return nil
	}
	return r.cache.SetJSON(ctx, ResultKey(result.Symbol), result, r.ttl)
}

func (r *PricingResultCache) Invalidate(ctx context.Context, symbol string) error {
	return r.cache.Delete(ctx, ResultKey(symbol))
}

// ResultKey 缓存键
func ResultKey(symbol string) string {
	return fmt.Sprintf("%s%s", resultPrefix, symbol)
}
