package persistence

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/wyfcoding/optionspricing/internal/pricing/domain"
)

type stubRepo struct {
	latest map[string]*domain.PricingResult
	gets   int
	failTx bool
}

func (r *stubRepo) WithTx(ctx context.Context, fn func(context.Context) error) error {
	if err := fn(ctx); err != nil {
		return err
	}
	if r.failTx {
		return errors.New("commit failed")
	}
	return nil
}

func (r *stubRepo) Save(_ context.Context, res *domain.PricingResult) error {
	r.latest[res.Symbol] = res
	return nil
}

func (r *stubRepo) GetLatest(_ context.Context, symbol string) (*domain.PricingResult, error) {
	r.gets++
	if res, ok := r.latest[symbol]; ok {
		return res, nil
	}
	return nil, domain.ErrNotFound
}

func (r *stubRepo) GetHistory(context.Context, string, int) ([]*domain.PricingResult, error) {
	return nil, nil
}

func (r *stubRepo) DeleteBefore(_ context.Context, before time.Time) (int64, error) {
	var n int64
	for symbol, res := range r.latest {
		if res.CalculatedAt < before.UnixMilli() {
			delete(r.latest, symbol)
			n++
		}
	}
	return n, nil
}

type stubCache struct {
	items   map[string]*domain.PricingResult
	failSet bool
	failGet bool
	dropped []string
}

func (c *stubCache) GetLatest(_ context.Context, symbol string) (*domain.PricingResult, bool, error) {
	if c.failGet {
		return nil, false, errors.New("redis down")
	}
	res, ok := c.items[symbol]
	return res, ok, nil
}

func (c *stubCache) SetLatest(_ context.Context, res *domain.PricingResult) error {
	if c.failSet {
		return errors.New("redis down")
	}
	c.items[res.Symbol] = res
	return nil
}

func (c *stubCache) Invalidate(_ context.Context, symbol string) error {
	delete(c.items, symbol)
	c.dropped = append(c.dropped, symbol)
	return nil
}

func newStubs() (*stubRepo, *stubCache) {
	return &stubRepo{latest: map[string]*domain.PricingResult{}}, &stubCache{items: map[string]*domain.PricingResult{}}
}

func TestCachedRepositoryReadThrough(t *testing.T) {
	repo, cache := newStubs()
	repo.latest["X"] = &domain.PricingResult{Symbol: "X", ID: 1}
	r := NewCachedRepository(repo, cache, nil)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		res, err := r.GetLatest(ctx, "X")
		if err != nil || res.ID != 1 {
			t.Fatalf("GetLatest = %+v, %v", res, err)
		}
	}
	if repo.gets != 1 {
		t.Fatalf("database hit %d times, want 1", repo.gets)
	}
	if _, err := r.GetLatest(ctx, "MISSING"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("missing: %v", err)
	}
}

func TestCachedRepositoryWritesAfterCommit(t *testing.T) {
	repo, cache := newStubs()
	r := NewCachedRepository(repo, cache, nil)
	ctx := context.Background()

	err := r.WithTx(ctx, func(txCtx context.Context) error {
		if err := r.Save(txCtx, &domain.PricingResult{Symbol: "A", ID: 7}); err != nil {
			return err
		}
		if _, ok := cache.items["A"]; ok {
			t.Fatal("cache written before commit")
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	if cache.items["A"] == nil || cache.items["A"].ID != 7 {
		t.Fatal("cache not written after commit")
	}

	repo.failTx = true
	_ = r.WithTx(ctx, func(txCtx context.Context) error {
		return r.Save(txCtx, &domain.PricingResult{Symbol: "B"})
	})
	if _, ok := cache.items["B"]; ok {
		t.Fatal("rolled back result must not be cached")
	}
}

func TestCachedRepositoryCacheFailures(t *testing.T) {
	repo, cache := newStubs()
	repo.latest["X"] = &domain.PricingResult{Symbol: "X", ID: 3}
	cache.failGet = true
	cache.failSet = true
	r := NewCachedRepository(repo, cache, nil)

	res, err := r.GetLatest(context.Background(), "X")
	if err != nil || res.ID != 3 {
		t.Fatalf("fallback read = %+v, %v", res, err)
	}
	if err := r.Save(context.Background(), &domain.PricingResult{Symbol: "Y"}); err != nil {
		t.Fatalf("cache failure must not fail save: %v", err)
	}
	if len(cache.dropped) != 2 {
		t.Fatalf("invalidated = %v", cache.dropped)
	}
}

func TestCachedRepositoryDeleteBeforeDropsStaleCache(t *testing.T) {
	ctx := context.Background()
	repo, cache := newStubs()
	r := NewCachedRepository(repo, cache, nil)

	now := time.Now()
	old := &domain.PricingResult{Symbol: "OLD", CalculatedAt: now.Add(-48 * time.Hour).UnixMilli()}
	fresh := &domain.PricingResult{Symbol: "NEW", CalculatedAt: now.UnixMilli()}
	for _, res := range []*domain.PricingResult{old, fresh} {
		if err := r.Save(ctx, res); err != nil {
			t.Fatal(err)
		}
	}

	n, err := r.DeleteBefore(ctx, now.Add(-24*time.Hour))
	if err != nil || n != 1 {
		t.Fatalf("DeleteBefore = %d, %v", n, err)
	}
	if _, ok := cache.items["OLD"]; !ok {
		t.Fatal("cache entry should still exist before the next read")
	}

	if _, err := r.GetLatest(ctx, "OLD"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("deleted result served from cache: %v", err)
	}
	if _, ok := cache.items["OLD"]; ok {
		t.Fatal("stale cache entry not invalidated")
	}

	gets := repo.gets
	got, err := r.GetLatest(ctx, "NEW")
	if err != nil || got != fresh || repo.gets != gets {
		t.Fatalf("fresh result = %+v, %v (db reads %d->%d)", got, err, gets, repo.gets)
	}

	// 更早的清理点不会回退
	if _, err := r.DeleteBefore(ctx, now.Add(-72*time.Hour)); err != nil {
		t.Fatal(err)
	}
	if r.cutoff.Load() != now.Add(-24*time.Hour).UnixMilli() {
		t.Fatalf("cutoff moved back to %d", r.cutoff.Load())
	}
}
