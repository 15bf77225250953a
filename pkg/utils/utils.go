// Package utils 提供重试退避与指针等通用工具
package utils

import (
	"context"
	"time"
)

// Backoff 指数退避参数
type Backoff struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	// 每次失败后延迟乘以该系数，小于等于 1 时使用 1.5
	Multiplier float64
}

// RetryWithBackoff 带指数退避的重试，ctx 取消时立即返回
func RetryWithBackoff(ctx context.Context, b Backoff, fn func(ctx context.Context) error) error {
	if b.MaxAttempts <= 0 {
		b.MaxAttempts = 1
	}
	if b.Multiplier <= 1 {
		b.Multiplier = 1.5
	}
	delay := b.InitialDelay

	var lastErr error
	for attempt := 0; attempt < b.MaxAttempts; attempt++ {
		if lastErr = fn(ctx); lastErr == nil {
			return nil
		}
		if attempt == b.MaxAttempts-1 {
			break
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}

		delay = time.Duration(float64(delay) * b.Multiplier)
		if b.MaxDelay > 0 && delay > b.MaxDelay {
			delay = b.MaxDelay
		}
	}
	return lastErr
}

// Float64Ptr 返回 float64 指针
func Float64Ptr(f float64) *float64 {
	return &f
}

// DerefFloat64 解引用，nil 返回 0
func DerefFloat64(f *float64) float64 {
	if f == nil {
		return 0
	}
	return *f
}
