package middleware

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/wyfcoding/optionspricing/pkg/config"
	"github.com/wyfcoding/optionspricing/pkg/logger"
	"github.com/wyfcoding/optionspricing/pkg/ratelimit"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/peer"
	"google.golang.org/grpc/status"
)

// GinRateLimit 按客户端 IP 限流，限流器故障时放行
func GinRateLimit(limiter ratelimit.RateLimiter, cfg config.RateLimitConfig) gin.HandlerFunc {
	limit := ratelimit.PerSecond(cfg.Rate, cfg.Burst)
	return func(c *gin.Context) {
		if !cfg.Enabled || limiter == nil {
			c.Next()
			return
		}

		res, err := limiter.Allow(c.Request.Context(), "ratelimit:http:"+c.ClientIP(), limit)
		if err != nil {
			logger.Warn(c.Request.Context(), "rate limiter unavailable", "error", err)
			c.Next()
			return
		}

		c.Header("X-RateLimit-Limit", strconv.Itoa(limit.Burst))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(res.Remaining))
		c.Header("X-RateLimit-Reset", strconv.FormatInt(int64(res.ResetAfter/time.Second), 10))

		if !res.Allowed {
			c.Header("Retry-After", strconv.FormatInt(int64(res.RetryAfter/time.Second)+1, 10))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"code":        http.StatusTooManyRequests,
				"message":     "too many requests",
				"retry_after": res.RetryAfter.String(),
			})
			return
		}
		c.Next()
	}
}

// GRPCRateLimit 按对端地址限流
func GRPCRateLimit(limiter ratelimit.RateLimiter, cfg config.RateLimitConfig) grpc.UnaryServerInterceptor {
	limit := ratelimit.PerSecond(cfg.Rate, cfg.Burst)
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		if !cfg.Enabled || limiter == nil {
			return handler(ctx, req)
		}
		key := "ratelimit:grpc:unknown"
		if p, ok := peer.FromContext(ctx); ok && p.Addr != nil {
			key = fmt.Sprintf("ratelimit:grpc:%s", hostOnly(p.Addr.String()))
		}

		res, err := limiter.Allow(ctx, key, limit)
		if err != nil {
			logger.Warn(ctx, "rate limiter unavailable", "error", err)
			return handler(ctx, req)
		}
		if !res.Allowed {
			return nil, status.Errorf(codes.ResourceExhausted, "rate limit exceeded, retry after %s", res.RetryAfter)
		}
		return handler(ctx, req)
	}
}

func hostOnly(addr string) string {
	if host, _, err := net.SplitHostPort(addr); err == nil {
		return host
	}
	return addr
}
