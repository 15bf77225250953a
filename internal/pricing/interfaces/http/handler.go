package http

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/wyfcoding/optionspricing/internal/pricing/application"
	"github.com/wyfcoding/optionspricing/internal/pricing/domain"
	"github.com/wyfcoding/optionspricing/pkg/logger"
	"github.com/wyfcoding/optionspricing/pkg/response"
)

// PricingHandler HTTP 处理器
// 负责处理与定价相关的 HTTP 请求
type PricingHandler struct {
	app *application.PricingService
}

// NewPricingHandler 创建 HTTP 处理器实例
func NewPricingHandler(app *application.PricingService) *PricingHandler {
	return &PricingHandler{app: app}
}

// RegisterRoutes 将处理器方法绑定到 Gin 路由
func (h *PricingHandler) RegisterRoutes(router gin.IRouter) {
	api := router.Group("/api/v1/pricing")
	{
		api.POST("/option/price", h.PriceOption)
		api.POST("/option/greeks", h.GetGreeks)
		api.POST("/option/curve", h.PriceCurve)
		api.POST("/option/implied-volatility", h.ImplyVolatility)
		api.POST("/batch", h.BatchPrice)
		api.GET("/results/:symbol", h.GetLatestResult)
		api.GET("/results/:symbol/history", h.GetHistory)
		api.GET("/stream", h.Stream)
	}
}

// OptionRequest 期权描述
type OptionRequest struct {
	Symbol     string `json:"symbol"`
	Style      string `json:"style"`
	OptionType string `json:"option_type" binding:"required"`
	// 行权价
	StrikePrice float64 `json:"strike_price" binding:"required"`
	// 到期日与剩余期限（年）二选一，剩余期限优先
	ExpiryDate    *time.Time `json:"expiry_date"`
	Expiry        *float64   `json:"expiry"`
	Volatility    float64    `json:"volatility" binding:"required"`
	RiskFreeRate  float64    `json:"risk_free_rate"`
	DividendYield float64    `json:"dividend_yield"`
	PricingModel  string     `json:"pricing_model"`
}

func (r OptionRequest) spec() application.OptionSpec {
	s := application.OptionSpec{
		Symbol:        r.Symbol,
		Style:         r.Style,
		OptionType:    r.OptionType,
		StrikePrice:   r.StrikePrice,
		Expiry:        r.Expiry,
		Volatility:    r.Volatility,
		RiskFreeRate:  r.RiskFreeRate,
		DividendYield: r.DividendYield,
		PricingModel:  r.PricingModel,
	}
	if r.ExpiryDate != nil {
		s.ExpiryDate = r.ExpiryDate.UnixMilli()
	}
	return s
}

// PricingRequest 定价请求，缺少 underlying_price 时返回价格曲线
type PricingRequest struct {
	OptionRequest
	UnderlyingPrice *float64 `json:"underlying_price"`
}

// CurveRequest 价格曲线请求
type CurveRequest struct {
	OptionRequest
	SpotGrid *domain.SpotGrid `json:"spot_grid"`
}

// ImpliedVolatilityRequest 隐含波动率请求，volatility 作为初值可省略
type ImpliedVolatilityRequest struct {
	Symbol          string     `json:"symbol"`
	Style           string     `json:"style"`
	OptionType      string     `json:"option_type" binding:"required"`
	StrikePrice     float64    `json:"strike_price" binding:"required"`
	ExpiryDate      *time.Time `json:"expiry_date"`
	Expiry          *float64   `json:"expiry"`
	Volatility      float64    `json:"volatility"`
	RiskFreeRate    float64    `json:"risk_free_rate"`
	DividendYield   float64    `json:"dividend_yield"`
	PricingModel    string     `json:"pricing_model"`
	UnderlyingPrice float64    `json:"underlying_price" binding:"required"`
	MarketPrice     float64    `json:"market_price" binding:"required"`
}

// BatchRequest 批量定价请求
type BatchRequest struct {
	BatchID   string           `json:"batch_id"`
	Contracts []PricingRequest `json:"contracts" binding:"required,min=1,dive"`
}

// PriceOption 给定现价时单点定价并保存结果，否则返回现价网格上的价格数组
func (h *PricingHandler) PriceOption(c *gin.Context) {
	var req PricingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorWithStatus(c, http.StatusBadRequest, "invalid request", err.Error())
		return
	}

	ctx := c.Request.Context()
	if req.UnderlyingPrice == nil {
		curve, err := h.app.PriceCurve(ctx, application.PriceCurveCommand{OptionSpec: req.spec()})
		if err != nil {
			h.fail(c, "failed to price option curve", err)
			return
		}
		response.Success(c, gin.H{"mode": "array", "model": curve.Model, "spots": curve.Spots, "prices": curve.Prices})
		return
	}

	result, err := h.app.PriceOption(ctx, application.PriceOptionCommand{
		OptionSpec:      req.spec(),
		UnderlyingPrice: *req.UnderlyingPrice,
	})
	if err != nil {
		h.fail(c, "failed to price option", err)
		return
	}
	response.Success(c, gin.H{"mode": "scalar", "price": result.OptionPrice, "result": result})
}

// GetGreeks 计算希腊字母
func (h *PricingHandler) GetGreeks(c *gin.Context) {
	var req PricingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorWithStatus(c, http.StatusBadRequest, "invalid request", err.Error())
		return
	}
	if req.UnderlyingPrice == nil {
		response.ErrorWithStatus(c, http.StatusBadRequest, "invalid request", "underlying_price is required")
		return
	}

	greeks, err := h.app.GetGreeks(c.Request.Context(), application.GreeksQuery{
		OptionSpec:      req.spec(),
		UnderlyingPrice: *req.UnderlyingPrice,
	})
	if err != nil {
		h.fail(c, "failed to calculate greeks", err)
		return
	}
	response.Success(c, greeks)
}

// PriceCurve 在指定或默认现价网格上定价
func (h *PricingHandler) PriceCurve(c *gin.Context) {
	var req CurveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorWithStatus(c, http.StatusBadRequest, "invalid request", err.Error())
		return
	}
	curve, err := h.app.PriceCurve(c.Request.Context(), application.PriceCurveCommand{
		OptionSpec: req.spec(),
		SpotGrid:   req.SpotGrid,
	})
	if err != nil {
		h.fail(c, "failed to price option curve", err)
		return
	}
	response.Success(c, curve)
}

// ImplyVolatility 由市场价格反解波动率
func (h *PricingHandler) ImplyVolatility(c *gin.Context) {
	var req ImpliedVolatilityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorWithStatus(c, http.StatusBadRequest, "invalid request", err.Error())
		return
	}
	spec := OptionRequest{
		Symbol:        req.Symbol,
		Style:         req.Style,
		OptionType:    req.OptionType,
		StrikePrice:   req.StrikePrice,
		ExpiryDate:    req.ExpiryDate,
		Expiry:        req.Expiry,
		Volatility:    req.Volatility,
		RiskFreeRate:  req.RiskFreeRate,
		DividendYield: req.DividendYield,
		PricingModel:  req.PricingModel,
	}.spec()

	res, err := h.app.ImplyVolatility(c.Request.Context(), application.ImplyVolatilityCommand{
		OptionSpec:      spec,
		UnderlyingPrice: req.UnderlyingPrice,
		MarketPrice:     req.MarketPrice,
	})
	if err != nil {
		h.fail(c, "failed to imply volatility", err)
		return
	}
	response.Success(c, res)
}

// BatchPrice 批量定价，单个合约失败体现在对应条目中
func (h *PricingHandler) BatchPrice(c *gin.Context) {
	var req BatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorWithStatus(c, http.StatusBadRequest, "invalid request", err.Error())
		return
	}

	cmd := application.BatchPriceOptionsCommand{
		BatchID:   req.BatchID,
		Contracts: make([]application.PriceOptionCommand, len(req.Contracts)),
	}
	for i, item := range req.Contracts {
		if item.UnderlyingPrice == nil {
			response.ErrorWithStatus(c, http.StatusBadRequest, "invalid request",
				"contracts["+strconv.Itoa(i)+"].underlying_price is required")
			return
		}
		cmd.Contracts[i] = application.PriceOptionCommand{
			OptionSpec:      item.spec(),
			UnderlyingPrice: *item.UnderlyingPrice,
		}
	}

	res, err := h.app.BatchPriceOptions(c.Request.Context(), cmd)
	if err != nil {
		h.fail(c, "failed to price batch", err)
		return
	}
	response.Success(c, res)
}

// GetLatestResult 获取最新定价结果
func (h *PricingHandler) GetLatestResult(c *gin.Context) {
	res, err := h.app.GetLatestResult(c.Request.Context(), c.Param("symbol"))
	if err != nil {
		h.fail(c, "failed to get pricing result", err)
		return
	}
	response.Success(c, res)
}

// GetHistory 获取历史定价结果
func (h *PricingHandler) GetHistory(c *gin.Context) {
	limit := 0
	if s := c.Query("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil {
			response.ErrorWithStatus(c, http.StatusBadRequest, "invalid request", "limit must be an integer")
			return
		}
		limit = n
	}
	res, err := h.app.GetHistory(c.Request.Context(), c.Param("symbol"), limit)
	if err != nil {
		h.fail(c, "failed to get pricing history", err)
		return
	}
	response.Success(c, res)
}

func (h *PricingHandler) fail(c *gin.Context, msg string, err error) {
	status := StatusFor(err)
	if status >= http.StatusInternalServerError {
		logger.Error(c.Request.Context(), msg, "error", err)
	}
	response.ErrorWithStatus(c, status, msg, err.Error())
}

// StatusFor 把领域错误映射为 HTTP 状态码
func StatusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case domain.IsClientError(err):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrNoConvergence):
		return http.StatusUnprocessableEntity
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	}
	return http.StatusInternalServerError
}
