// Package persistence 组合数据库仓储与结果缓存
package persistence

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/wyfcoding/optionspricing/internal/pricing/domain"
	"github.com/wyfcoding/optionspricing/pkg/logger"
	"github.com/wyfcoding/optionspricing/pkg/metrics"
)

// ResultCache 最新定价结果缓存
type ResultCache interface {
	GetLatest(ctx context.Context, symbol string) (*domain.PricingResult, bool, error)
	SetLatest(ctx context.Context, result *domain.PricingResult) error
	Invalidate(ctx context.Context, symbol string) error
}

// CachedRepository 在仓储外加一层最新结果缓存。
// 事务内保存的结果在提交后才写入缓存；缓存故障只记录日志，读写回落到数据库。
// 清理历史结果后，计算时间早于清理点的缓存视为失效。
type CachedRepository struct {
	domain.PricingRepository
	cache   ResultCache
	metrics metrics.Collector
	cutoff  atomic.Int64 // 最近一次清理点，unix 毫秒
}

// NewCachedRepository 创建带缓存的仓储
func NewCachedRepository(repo domain.PricingRepository, cache ResultCache, collector metrics.Collector) *CachedRepository {
	if collector == nil {
		collector = metrics.Nop{}
	}
	return &CachedRepository{PricingRepository: repo, cache: cache, metrics: collector}
}

type pendingKey struct{}

type pending struct {
	mu      sync.Mutex
	results []*domain.PricingResult
}

func (r *CachedRepository) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, nested := ctx.Value(pendingKey{}).(*pending); nested {
		return r.PricingRepository.WithTx(ctx, fn)
	}
	p := &pending{}
	err := r.PricingRepository.WithTx(ctx, func(txCtx context.Context) error {
		return fn(context.WithValue(txCtx, pendingKey{}, p))
	})
	if err != nil {
		return err
	}
	for _, res := range p.results {
		r.set(ctx, res)
	}
	return nil
}

func (r *CachedRepository) Save(ctx context.Context, result *domain.PricingResult) error {
	if err := r.PricingRepository.Save(ctx, result); err != nil {
		return err
	}
	if p, ok := ctx.Value(pendingKey{}).(*pending); ok {
		p.mu.Lock()
		p.results = append(p.results, result)
		p.mu.Unlock()
		return nil
	}
	r.set(ctx, result)
	return nil
}

func (r *CachedRepository) GetLatest(ctx context.Context, symbol string) (*domain.PricingResult, error) {
	cached, found, err := r.cache.GetLatest(ctx, symbol)
	switch {
	case err != nil:
		r.metrics.RecordCache("get", "error")
		logger.Warn(ctx, "pricing cache read failed", "symbol", symbol, "error", err)
	case found && cached.CalculatedAt < r.cutoff.Load():
		r.metrics.RecordCache("get", "stale")
		if err := r.cache.Invalidate(ctx, symbol); err != nil {
			logger.Warn(ctx, "pricing cache invalidate failed", "symbol", symbol, "error", err)
		}
	case found:
		r.metrics.RecordCache("get", "hit")
		return cached, nil
	default:
		r.metrics.RecordCache("get", "miss")
	}

	result, err := r.PricingRepository.GetLatest(ctx, symbol)
	if err != nil {
		return nil, err
	}
	r.set(ctx, result)
	return result, nil
}

// DeleteBefore 删除历史结果并推进清理点
func (r *CachedRepository) DeleteBefore(ctx context.Context, before time.Time) (int64, error) {
	n, err := r.PricingRepository.DeleteBefore(ctx, before)
	if err != nil {
		return n, err
	}
	ms := before.UnixMilli()
	for {
		cur := r.cutoff.Load()
		if ms <= cur || r.cutoff.CompareAndSwap(cur, ms) {
			break
		}
	}
	return n, nil
}

func (r *CachedRepository) set(ctx context.Context, result *domain.PricingResult) {
	if err := r.cache.SetLatest(ctx, result); err != nil {
		r.metrics.RecordCache("set", "error")
		logger.Warn(ctx, "pricing cache write failed", "symbol", result.Symbol, "error", err)
		// 写失败时删除旧值，避免读到过期结果
		_ = r.cache.Invalidate(ctx, result.Symbol)
		return
	}
	r.metrics.RecordCache("set", "ok")
}
