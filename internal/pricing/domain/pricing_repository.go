package domain

import (
	"context"
	"time"
)

// PricingRepository 定价结果仓储接口
type PricingRepository interface {
	// WithTx 在事务中执行 fn，事务通过 ctx 传递
	WithTx(ctx context.Context, fn func(txCtx context.Context) error) error
	Save(ctx context.Context, result *PricingResult) error
	// GetLatest 不存在时返回 ErrNotFound
	GetLatest(ctx context.Context, symbol string) (*PricingResult, error)
	GetHistory(ctx context.Context, symbol string, limit int) ([]*PricingResult, error)
	DeleteBefore(ctx context.Context, before time.Time) (int64, error)
}
