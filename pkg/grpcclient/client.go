// Package grpcclient 提供 gRPC 客户端工厂，支持超时、重试与 trace 注入
package grpcclient

import (
	"context"
	"time"

	"github.com/wyfcoding/optionspricing/pkg/logger"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/keepalive"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

// TraceIDHeader trace id 所在的 metadata 键
const TraceIDHeader = "x-trace-id"

// ClientConfig gRPC 客户端配置
type ClientConfig struct {
	// 目标地址
	Target string
	// 单次请求超时
	RequestTimeout time.Duration
	// 最大重试次数
	MaxRetries int
	// 重试间隔
	RetryDelay time.Duration
	// Keepalive 间隔，0 表示关闭
	KeepaliveInterval time.Duration
}

// NewClient 创建 gRPC 客户端连接，连接在首次调用时建立
func NewClient(cfg ClientConfig) (*grpc.ClientConn, error) {
	opts := []grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithDefaultCallOptions(grpc.MaxCallRecvMsgSize(64 << 20)),
		grpc.WithUnaryInterceptor(unaryClientInterceptor(cfg)),
	}
	if cfg.KeepaliveInterval > 0 {
		opts = append(opts, grpc.WithKeepaliveParams(keepalive.ClientParameters{
			Time:                cfg.KeepaliveInterval,
			Timeout:             10 * time.Second,
			PermitWithoutStream: true,
		}))
	}

	conn, err := grpc.NewClient(cfg.Target, opts...)
	if err != nil {
		logger.Error(context.Background(), "failed to create gRPC client", "target", cfg.Target, "error", err)
		return nil, err
	}
	logger.Debug(context.Background(), "gRPC client created", "target", cfg.Target)
	return conn, nil
}

// unaryClientInterceptor 注入 trace id，附加超时并按状态码重试
func unaryClientInterceptor(cfg ClientConfig) grpc.UnaryClientInterceptor {
	return func(ctx context.Context, method string, req, reply any, cc *grpc.ClientConn, invoker grpc.UnaryInvoker, opts ...grpc.CallOption) error {
		if traceID := logger.TraceID(ctx); traceID != "" {
			ctx = metadata.AppendToOutgoingContext(ctx, TraceIDHeader, traceID)
		}

		start := time.Now()
		var lastErr error
		for attempt := 0; attempt <= cfg.MaxRetries; attempt++ {
			lastErr = invokeOnce(ctx, cfg.RequestTimeout, method, req, reply, cc, invoker, opts...)
			if lastErr == nil {
				logger.Debug(ctx, "gRPC request succeeded", "method", method, "duration", time.Since(start))
				return nil
			}
			st, ok := status.FromError(lastErr)
			if !ok || !shouldRetry(st.Code()) || attempt == cfg.MaxRetries {
				break
			}

			select {
			case <-time.After(cfg.RetryDelay):
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		logger.Warn(ctx, "gRPC request failed", "method", method, "duration", time.Since(start), "error", lastErr)
		return lastErr
	}
}

func invokeOnce(ctx context.Context, timeout time.Duration, method string, req, reply any, cc *grpc.ClientConn, invoker grpc.UnaryInvoker, opts ...grpc.CallOption) error {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	return invoker(ctx, method, req, reply, cc, opts...)
}

// shouldRetry 判断是否应该重试
func shouldRetry(code codes.Code) bool {
	switch code {
	case codes.Unavailable, codes.ResourceExhausted:
		return true
	default:
		return false
	}
}
