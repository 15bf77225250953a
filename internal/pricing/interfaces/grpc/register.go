package grpc

import (
	"github.com/wyfcoding/optionspricing/pkg/config"
	"github.com/wyfcoding/optionspricing/pkg/metrics"
	"github.com/wyfcoding/optionspricing/pkg/middleware"
	"github.com/wyfcoding/optionspricing/pkg/ratelimit"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
)

// ServerOptions 构造 gRPC 服务所需的依赖
type ServerOptions struct {
	Config    config.GRPCConfig
	RateLimit config.RateLimitConfig
	Limiter   ratelimit.RateLimiter
	Collector metrics.Collector
}

// NewServer 创建 gRPC 服务，注册定价服务、健康检查与可选的 reflection
func NewServer(h *Handler, opts ServerOptions) (*grpc.Server, *health.Server) {
	serverOpts := []grpc.ServerOption{
		grpc.ChainUnaryInterceptor(
			middleware.GRPCRecovery(),
			middleware.GRPCTrace(),
			middleware.GRPCLogging(opts.Collector),
			middleware.GRPCRateLimit(opts.Limiter, opts.RateLimit),
		),
	}
	if opts.Config.MaxConcurrentStreams > 0 {
		serverOpts = append(serverOpts, grpc.MaxConcurrentStreams(opts.Config.MaxConcurrentStreams))
	}

	s := grpc.NewServer(serverOpts...)
	RegisterPricingServer(s, h)

	hs := health.NewServer()
	healthpb.RegisterHealthServer(s, hs)
	hs.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_SERVING)

	if opts.Config.Reflection {
		reflection.Register(s)
	}
	return s, hs
}
