// Package middleware 提供 Gin 与 gRPC 的通用中间件（trace、日志、指标、panic recover、限流）
package middleware

import (
	"context"
	"fmt"
	"net/http"
	"runtime/debug"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/wyfcoding/optionspricing/pkg/logger"
	"github.com/wyfcoding/optionspricing/pkg/metrics"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

const (
	RequestIDHeader = "X-Request-ID"
	TraceIDHeader   = "X-Trace-ID"

	grpcTraceIDKey = "x-trace-id"
)

// GinTrace 为请求分配 request id 与 trace id，写入 ctx 与响应头
func GinTrace() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader(RequestIDHeader)
		if requestID == "" {
			requestID = uuid.NewString()
		}
		traceID := c.GetHeader(TraceIDHeader)
		if traceID == "" {
			traceID = uuid.NewString()
		}

		ctx := logger.ContextWithRequestID(c.Request.Context(), requestID)
		ctx = logger.ContextWithTraceID(ctx, traceID)
		c.Request = c.Request.WithContext(ctx)

		c.Header(RequestIDHeader, requestID)
		c.Header(TraceIDHeader, traceID)
		c.Next()
	}
}

// GinLogging 记录请求日志并上报 HTTP 指标
func GinLogging(collector metrics.Collector) gin.HandlerFunc {
	if collector == nil {
		collector = metrics.Nop{}
	}
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		duration := time.Since(start)
		statusCode := c.Writer.Status()
		collector.RecordHTTPRequest(c.Request.Method, path, statusCode, duration)

		args := []any{
			"method", c.Request.Method,
			"path", path,
			"status", statusCode,
			"client_ip", c.ClientIP(),
			"duration", duration,
		}
		if len(c.Errors) > 0 {
			args = append(args, "errors", c.Errors.String())
		}
		if statusCode >= http.StatusInternalServerError {
			logger.Error(c.Request.Context(), "http request failed", args...)
			return
		}
		logger.Info(c.Request.Context(), "http request", args...)
	}
}

// GinRecovery panic 恢复，返回 500
func GinRecovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if rec := recover(); rec != nil {
				logger.Error(c.Request.Context(), "http request panicked",
					"panic", fmt.Sprint(rec),
					"stack", string(debug.Stack()),
				)
				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
					"code":       http.StatusInternalServerError,
					"message":    "internal server error",
					"request_id": logger.RequestID(c.Request.Context()),
				})
			}
		}()
		c.Next()
	}
}

// GRPCTrace 从 metadata 读取 trace id，缺失时生成
func GRPCTrace() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		traceID := ""
		if md, ok := metadata.FromIncomingContext(ctx); ok {
			if vals := md.Get(grpcTraceIDKey); len(vals) > 0 {
				traceID = vals[0]
			}
		}
		if traceID == "" {
			traceID = uuid.NewString()
		}
		ctx = logger.ContextWithTraceID(ctx, traceID)
		ctx = logger.ContextWithRequestID(ctx, uuid.NewString())
		return handler(ctx, req)
	}
}

// GRPCLogging 记录 gRPC 调用日志并上报指标
func GRPCLogging(collector metrics.Collector) grpc.UnaryServerInterceptor {
	if collector == nil {
		collector = metrics.Nop{}
	}
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()
		resp, err := handler(ctx, req)
		duration := time.Since(start)

		code := status.Code(err)
		collector.RecordGRPCRequest(info.FullMethod, code.String(), duration)
		if err != nil {
			logger.Warn(ctx, "grpc request failed",
				"method", info.FullMethod,
				"code", code.String(),
				"error", err,
				"duration", duration,
			)
			return resp, err
		}
		logger.Info(ctx, "grpc request", "method", info.FullMethod, "duration", duration)
		return resp, nil
	}
}

// GRPCRecovery panic 恢复，返回 codes.Internal
func GRPCRecovery() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (resp any, err error) {
		defer func() {
			if rec := recover(); rec != nil {
				logger.Error(ctx, "grpc request panicked",
					"method", info.FullMethod,
					"panic", fmt.Sprint(rec),
					"stack", string(debug.Stack()),
				)
				resp, err = nil, status.Error(codes.Internal, "internal server error")
			}
		}()
		return handler(ctx, req)
	}
}
