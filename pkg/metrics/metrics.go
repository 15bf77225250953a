// Package metrics 基于 Prometheus 的指标定义与采集
package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/wyfcoding/optionspricing/pkg/logger"
)

const namespace = "optionspricing"

// Metrics 指标集合
type Metrics struct {
	registry *prometheus.Registry

	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
	GRPCRequestsTotal   *prometheus.CounterVec
	GRPCRequestDuration *prometheus.HistogramVec

	// 定价请求，按模型、模式（scalar/array）与结果统计
	PricingRequestsTotal *prometheus.CounterVec
	PricingDuration      *prometheus.HistogramVec
	BatchSize            prometheus.Histogram

	CacheOpsTotal       *prometheus.CounterVec
	OutboxMessagesTotal *prometheus.CounterVec
}

// New 创建指标实例，指标注册在独立的 registry 上
func New(serviceName string) *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		HTTPRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: serviceName,
			Name: "http_requests_total", Help: "Total HTTP requests",
		}, []string{"method", "path", "status"}),
		HTTPRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Subsystem: serviceName,
			Name: "http_request_duration_seconds", Help: "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "path"}),
		GRPCRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: serviceName,
			Name: "grpc_requests_total", Help: "Total gRPC requests",
		}, []string{"method", "code"}),
		GRPCRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Subsystem: serviceName,
			Name: "grpc_request_duration_seconds", Help: "gRPC request duration in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"method"}),
		PricingRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: serviceName,
			Name: "pricing_requests_total", Help: "Total option pricing requests",
		}, []string{"model", "mode", "status"}),
		PricingDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Subsystem: serviceName,
			Name: "pricing_duration_seconds", Help: "Option pricing latency in seconds",
			Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		}, []string{"model", "mode"}),
		BatchSize: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace, Subsystem: serviceName,
			Name: "batch_size", Help: "Contracts per batch pricing request",
			Buckets: prometheus.ExponentialBuckets(1, 2, 12),
		}),
		CacheOpsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: serviceName,
			Name: "cache_ops_total", Help: "Pricing result cache operations",
		}, []string{"op", "result"}),
		OutboxMessagesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: serviceName,
			Name: "outbox_messages_total", Help: "Outbox messages relayed to the broker",
		}, []string{"status"}),
	}
	return m
}

// Register 注册所有指标及 Go 运行时指标
func (m *Metrics) Register() error {
	cs := []prometheus.Collector{
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.GRPCRequestsTotal,
		m.GRPCRequestDuration,
		m.PricingRequestsTotal,
		m.PricingDuration,
		m.BatchSize,
		m.CacheOpsTotal,
		m.OutboxMessagesTotal,
	}
	for _, c := range cs {
		if err := m.registry.Register(c); err != nil {
			var already prometheus.AlreadyRegisteredError
			if errors.As(err, &already) {
				continue
			}
			logger.Error(context.Background(), "failed to register metric", "error", err)
			return err
		}
	}
	return nil
}

// Registry 返回底层 registry
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler 返回 /metrics 处理器
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Collector 指标收集器接口
type Collector interface {
	RecordHTTPRequest(method, path string, statusCode int, duration time.Duration)
	RecordGRPCRequest(method, code string, duration time.Duration)
	RecordPricing(model, mode, status string, duration time.Duration)
	RecordBatch(size int)
	RecordCache(op, result string)
	RecordOutbox(status string, n int)
}

// DefaultCollector 写入 Metrics 的收集器
type DefaultCollector struct {
	metrics *Metrics
}

// NewCollector 创建收集器
func NewCollector(m *Metrics) *DefaultCollector { return &DefaultCollector{metrics: m} }

func (c *DefaultCollector) RecordHTTPRequest(method, path string, statusCode int, d time.Duration) {
	c.metrics.HTTPRequestsTotal.WithLabelValues(method, path, http.StatusText(statusCode)).Inc()
	c.metrics.HTTPRequestDuration.WithLabelValues(method, path).Observe(d.Seconds())
}

func (c *DefaultCollector) RecordGRPCRequest(method, code string, d time.Duration) {
	c.metrics.GRPCRequestsTotal.WithLabelValues(method, code).Inc()
	c.metrics.GRPCRequestDuration.WithLabelValues(method).Observe(d.Seconds())
}

func (c *DefaultCollector) RecordPricing(model, mode, status string, d time.Duration) {
	c.metrics.PricingRequestsTotal.WithLabelValues(model, mode, status).Inc()
	c.metrics.PricingDuration.WithLabelValues(model, mode).Observe(d.Seconds())
}

func (c *DefaultCollector) RecordBatch(size int) { c.metrics.BatchSize.Observe(float64(size)) }

func (c *DefaultCollector) RecordCache(op, result string) {
	c.metrics.CacheOpsTotal.WithLabelValues(op, result).Inc()
}

func (c *DefaultCollector) RecordOutbox(status string, n int) {
	c.metrics.OutboxMessagesTotal.WithLabelValues(status).Add(float64(n))
}

// Nop 不做任何记录的收集器
type Nop struct{}

func (Nop) RecordHTTPRequest(string, string, int, time.Duration) {}
func (Nop) RecordGRPCRequest(string, string, time.Duration)      {}
func (Nop) RecordPricing(string, string, string, time.Duration)  {}
func (Nop) RecordBatch(int)                                      {}
func (Nop) RecordCache(string, string)                           {}
func (Nop) RecordOutbox(string, int)                             {}

// StartHTTPServer 启动独立的指标 HTTP 服务，ctx 取消时关闭
func StartHTTPServer(ctx context.Context, addr, path string, m *Metrics) error {
	if path == "" {
		path = "/metrics"
	}
	mux := http.NewServeMux()
	mux.Handle(path, m.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.Info(ctx, "starting metrics server", "addr", addr, "path", path)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
