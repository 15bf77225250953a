package grpc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/wyfcoding/optionspricing/internal/pricing/application"
	"github.com/wyfcoding/optionspricing/internal/pricing/domain"
	"github.com/wyfcoding/optionspricing/pkg/logger"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

// OptionMessage gRPC 请求体，字段含义同 HTTP 接口
type OptionMessage struct {
	Symbol     string  `json:"symbol,omitempty"`
	Style      string  `json:"style,omitempty"`
	OptionType string  `json:"option_type,omitempty"`
	Strike     float64 `json:"strike_price,omitempty"`
	// 到期时间（毫秒时间戳）
	ExpiryDate      int64            `json:"expiry_date,omitempty"`
	Expiry          *float64         `json:"expiry,omitempty"`
	Volatility      float64          `json:"volatility,omitempty"`
	RiskFreeRate    float64          `json:"risk_free_rate,omitempty"`
	DividendYield   float64          `json:"dividend_yield,omitempty"`
	PricingModel    string           `json:"pricing_model,omitempty"`
	UnderlyingPrice *float64         `json:"underlying_price,omitempty"`
	MarketPrice     float64          `json:"market_price,omitempty"`
	SpotGrid        *domain.SpotGrid `json:"spot_grid,omitempty"`
}

func (m *OptionMessage) spec() application.OptionSpec {
	return application.OptionSpec{
		Symbol:        m.Symbol,
		Style:         m.Style,
		OptionType:    m.OptionType,
		StrikePrice:   m.Strike,
		ExpiryDate:    m.ExpiryDate,
		Expiry:        m.Expiry,
		Volatility:    m.Volatility,
		RiskFreeRate:  m.RiskFreeRate,
		DividendYield: m.DividendYield,
		PricingModel:  m.PricingModel,
	}
}

// Handler gRPC 处理器
// 负责处理与定价相关的 gRPC 请求
type Handler struct {
	app *application.PricingService
}

// NewHandler 创建 gRPC 处理器实例
func NewHandler(app *application.PricingService) *Handler {
	return &Handler{app: app}
}

// PriceOption 给定现价时单点定价，否则返回价格曲线
func (h *Handler) PriceOption(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	req, err := decode(in)
	if err != nil {
		return nil, err
	}
	if req.UnderlyingPrice == nil {
		curve, err := h.app.PriceCurve(ctx, application.PriceCurveCommand{OptionSpec: req.spec()})
		if err != nil {
			return nil, toStatus(ctx, err)
		}
		return toStruct(map[string]any{"mode": "array", "model": curve.Model, "spots": curve.Spots, "prices": curve.Prices})
	}

	result, err := h.app.PriceOption(ctx, application.PriceOptionCommand{
		OptionSpec:      req.spec(),
		UnderlyingPrice: *req.UnderlyingPrice,
	})
	if err != nil {
		return nil, toStatus(ctx, err)
	}
	return toStruct(map[string]any{
		"mode":             "scalar",
		"price":            result.OptionPrice.InexactFloat64(),
		"result":           result,
		"calculation_time": time.UnixMilli(result.CalculatedAt).UTC().Format(time.RFC3339Nano),
	})
}

// GetGreeks 计算希腊字母
func (h *Handler) GetGreeks(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	req, err := decode(in)
	if err != nil {
		return nil, err
	}
	if req.UnderlyingPrice == nil {
		return nil, status.Error(codes.InvalidArgument, "underlying_price is required")
	}
	res, err := h.app.GetGreeks(ctx, application.GreeksQuery{OptionSpec: req.spec(), UnderlyingPrice: *req.UnderlyingPrice})
	if err != nil {
		return nil, toStatus(ctx, err)
	}
	return toStruct(res)
}

// PriceCurve 在指定或默认现价网格上定价
func (h *Handler) PriceCurve(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	req, err := decode(in)
	if err != nil {
		return nil, err
	}
	res, err := h.app.PriceCurve(ctx, application.PriceCurveCommand{OptionSpec: req.spec(), SpotGrid: req.SpotGrid})
	if err != nil {
		return nil, toStatus(ctx, err)
	}
	return toStruct(res)
}

// ImplyVolatility 由市场价格反解波动率
func (h *Handler) ImplyVolatility(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	req, err := decode(in)
	if err != nil {
		return nil, err
	}
	if req.UnderlyingPrice == nil {
		return nil, status.Error(codes.InvalidArgument, "underlying_price is required")
	}
	res, err := h.app.ImplyVolatility(ctx, application.ImplyVolatilityCommand{
		OptionSpec:      req.spec(),
		UnderlyingPrice: *req.UnderlyingPrice,
		MarketPrice:     req.MarketPrice,
	})
	if err != nil {
		return nil, toStatus(ctx, err)
	}
	return toStruct(res)
}

// GetLatestResult 获取最新定价结果
func (h *Handler) GetLatestResult(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	req, err := decode(in)
	if err != nil {
		return nil, err
	}
	res, err := h.app.GetLatestResult(ctx, req.Symbol)
	if err != nil {
		return nil, toStatus(ctx, err)
	}
	return toStruct(res)
}

// CodeFor 把领域错误映射为 gRPC 状态码
func CodeFor(err error) codes.Code {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return codes.NotFound
	case domain.IsClientError(err):
		return codes.InvalidArgument
	case errors.Is(err, domain.ErrNoConvergence):
		return codes.FailedPrecondition
	case errors.Is(err, context.DeadlineExceeded):
		return codes.DeadlineExceeded
	case errors.Is(err, context.Canceled):
		return codes.Canceled
	}
	return codes.Internal
}

func toStatus(ctx context.Context, err error) error {
	code := CodeFor(err)
	if code == codes.Internal {
		logger.Error(ctx, "pricing rpc failed", "error", err)
	}
	return status.Error(code, err.Error())
}

func decode(in *structpb.Struct) (*OptionMessage, error) {
	raw, err := json.Marshal(in.AsMap())
	if err != nil {
		return nil, status.Errorf(codes.InvalidArgument, "invalid request: %v", err)
	}
	var req OptionMessage
	if err := json.Unmarshal(raw, &req); err != nil {
		return nil, status.Errorf(codes.InvalidArgument, "invalid request: %v", err)
	}
	return &req, nil
}

func toStruct(v any) (*structpb.Struct, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to encode response: %w", err)
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("failed to encode response: %w", err)
	}
	s, err := structpb.NewStruct(m)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "failed to encode response: %v", err)
	}
	return s, nil
}
