package application

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/wyfcoding/optionspricing/internal/pricing/domain"
	"github.com/wyfcoding/optionspricing/pkg/logger"
	"github.com/wyfcoding/optionspricing/pkg/metrics"
	"golang.org/x/sync/errgroup"
)

const (
	modeScalar = "scalar"
	modeArray  = "array"
)

// PricingCommandService 处理定价相关的命令操作
// 定价结果与领域事件在同一事务中写入，事件经 Outbox 投递
type PricingCommandService struct {
	engine    *domain.Engine
	repo      domain.PricingRepository
	publisher domain.EventPublisher
	metrics   metrics.Collector
	workers   int
	now       func() time.Time
}

// NewPricingCommandService 创建新的 PricingCommandService 实例
func NewPricingCommandService(engine *domain.Engine, repo domain.PricingRepository, publisher domain.EventPublisher, collector metrics.Collector, workers int) *PricingCommandService {
	if collector == nil {
		collector = metrics.Nop{}
	}
	if workers <= 0 {
		workers = 1
	}
	return &PricingCommandService{
		engine:    engine,
		repo:      repo,
		publisher: publisher,
		metrics:   collector,
		workers:   workers,
		now:       time.Now,
	}
}

// PriceOption 单点定价，计算希腊字母并保存结果
func (c *PricingCommandService) PriceOption(ctx context.Context, cmd PriceOptionCommand) (*domain.PricingResult, error) {
	if strings.TrimSpace(cmd.Symbol) == "" {
		return nil, fmt.Errorf("%w: symbol is required", domain.ErrInvalidParameters)
	}
	now := c.now()
	opt, model, err := cmd.build(now)
	if err != nil {
		c.metrics.RecordPricing(modelLabel(model), modeScalar, "invalid", 0)
		return nil, err
	}

	start := time.Now()
	resolved, price, greeks, err := c.engine.PriceWithGreeks(ctx, model, opt, cmd.UnderlyingPrice)
	if err != nil {
		c.metrics.RecordPricing(modelLabel(model), modeScalar, "error", time.Since(start))
		c.publishError(ctx, cmd.Symbol, opt, model, err)
		return nil, err
	}
	c.metrics.RecordPricing(string(resolved), modeScalar, "ok", time.Since(start))

	result := domain.NewPricingResult(cmd.Symbol, resolved, opt, cmd.UnderlyingPrice, price, greeks, now)
	err = c.repo.WithTx(ctx, func(txCtx context.Context) error {
		if err := c.repo.Save(txCtx, result); err != nil {
			return err
		}
		if c.publisher == nil {
			return nil
		}

		terms := opt.Contract()
		optionEvent := domain.OptionPricedEvent{
			Symbol:          cmd.Symbol,
			Style:           opt.Style(),
			OptionType:      terms.Type,
			StrikePrice:     terms.Strike,
			Expiry:          terms.Expiry,
			OptionPrice:     price,
			UnderlyingPrice: cmd.UnderlyingPrice,
			Volatility:      terms.Underlying.Volatility,
			RiskFreeRate:    terms.Underlying.Rate,
			DividendYield:   terms.Underlying.Dividend,
			PricingModel:    string(resolved),
			CalculatedAt:    result.CalculatedAt,
			OccurredOn:      now,
		}
		if err := c.publisher.Publish(txCtx, domain.OptionPricedEventType, cmd.Symbol, optionEvent); err != nil {
			return err
		}

		greeksEvent := domain.GreeksCalculatedEvent{
			Symbol:          cmd.Symbol,
			OptionType:      terms.Type,
			StrikePrice:     terms.Strike,
			UnderlyingPrice: cmd.UnderlyingPrice,
			Greeks:          greeks,
			PricingModel:    string(resolved),
			CalculatedAt:    result.CalculatedAt,
			OccurredOn:      now,
		}
		return c.publisher.Publish(txCtx, domain.GreeksCalculatedEventType, cmd.Symbol, greeksEvent)
	})
	if err != nil {
		logger.Error(ctx, "failed to persist pricing result", "symbol", cmd.Symbol, "error", err)
		return nil, err
	}

	logger.Debug(ctx, "option priced", "symbol", cmd.Symbol, "model", resolved, "price", price)
	return result, nil
}

// PriceCurve 未给定现价时按现价网格返回价格数组，不落库
func (c *PricingCommandService) PriceCurve(ctx context.Context, cmd PriceCurveCommand) (*CurveResult, error) {
	opt, model, err := cmd.build(c.now())
	if err != nil {
		c.metrics.RecordPricing(modelLabel(model), modeArray, "invalid", 0)
		return nil, err
	}
	pricer, err := c.engine.Resolve(model, opt)
	if err != nil {
		c.metrics.RecordPricing(modelLabel(model), modeArray, "invalid", 0)
		return nil, err
	}

	grid := c.engine.SpotGrid()
	if cmd.SpotGrid != nil {
		grid = *cmd.SpotGrid
	}

	start := time.Now()
	curve, err := c.engine.CurveOn(ctx, pricer.Model(), opt, grid)
	if err != nil {
		c.metrics.RecordPricing(string(pricer.Model()), modeArray, "error", time.Since(start))
		c.publishError(ctx, cmd.Symbol, opt, pricer.Model(), err)
		return nil, err
	}
	c.metrics.RecordPricing(string(pricer.Model()), modeArray, "ok", time.Since(start))

	return &CurveResult{Symbol: cmd.Symbol, Model: pricer.Model(), Curve: *curve}, nil
}

// BatchPriceOptions 批量定价，合约间并发执行，单个失败不影响其余合约
func (c *PricingCommandService) BatchPriceOptions(ctx context.Context, cmd BatchPriceOptionsCommand) (*BatchPricingResult, error) {
	if len(cmd.Contracts) == 0 {
		return nil, fmt.Errorf("%w: batch has no contracts", domain.ErrInvalidParameters)
	}
	if cmd.BatchID == "" {
		cmd.BatchID = uuid.NewString()
	}

	items := make([]BatchItem, len(cmd.Contracts))
	elapsed := make([]time.Duration, len(cmd.Contracts))

	var g errgroup.Group
	g.SetLimit(c.workers)
	for i, contract := range cmd.Contracts {
		g.Go(func() error {
			start := time.Now()
			result, err := c.PriceOption(ctx, contract)
			elapsed[i] = time.Since(start)
			items[i] = BatchItem{Symbol: contract.Symbol, Result: result}
			if err != nil {
				items[i].Error = err.Error()
			}
			return nil
		})
	}
	_ = g.Wait()

	out := &BatchPricingResult{BatchID: cmd.BatchID, Items: items}
	var total time.Duration
	for i, item := range items {
		total += elapsed[i]
		if item.Error != "" {
			out.FailureCount++
		} else {
			out.SuccessCount++
		}
	}
	out.AverageTime = total.Seconds() / float64(len(items))
	c.metrics.RecordBatch(len(items))

	if c.publisher != nil {
		now := c.now()
		event := domain.BatchPricingCompletedEvent{
			BatchID:        cmd.BatchID,
			Symbols:        extractSymbols(cmd.Contracts),
			TotalContracts: len(cmd.Contracts),
			SuccessCount:   out.SuccessCount,
			FailureCount:   out.FailureCount,
			AverageTime:    out.AverageTime,
			CompletedAt:    now.UnixMilli(),
			OccurredOn:     now,
		}
		if err := c.publisher.Publish(ctx, domain.BatchPricingCompletedEventType, cmd.BatchID, event); err != nil {
			logger.Warn(ctx, "failed to publish batch completion", "batch_id", cmd.BatchID, "error", err)
		}
	}

	logger.Info(ctx, "batch pricing completed", "batch_id", cmd.BatchID, "success", out.SuccessCount, "failure", out.FailureCount)
	return out, nil
}

// ImplyVolatility 由市场价格反解波动率，命令中的波动率作为迭代初值
func (c *PricingCommandService) ImplyVolatility(ctx context.Context, cmd ImplyVolatilityCommand) (*ImpliedVolatilityResult, error) {
	if cmd.Volatility == 0 {
		cmd.Volatility = 0.2
	}
	opt, model, err := cmd.build(c.now())
	if err != nil {
		return nil, err
	}
	pricer, err := c.engine.Resolve(model, opt)
	if err != nil {
		return nil, err
	}

	vol, err := c.engine.ImpliedVolatility(ctx, pricer.Model(), opt, cmd.UnderlyingPrice, cmd.MarketPrice)
	if err != nil {
		return nil, err
	}

	if c.publisher != nil {
		terms := opt.Contract()
		event := domain.VolatilityImpliedEvent{
			Symbol:          cmd.Symbol,
			OptionType:      terms.Type,
			StrikePrice:     terms.Strike,
			UnderlyingPrice: cmd.UnderlyingPrice,
			MarketPrice:     cmd.MarketPrice,
			Volatility:      vol,
			PricingModel:    string(pricer.Model()),
			OccurredOn:      c.now(),
		}
		if err := c.publisher.Publish(ctx, domain.VolatilityImpliedEventType, cmd.Symbol, event); err != nil {
			logger.Warn(ctx, "failed to publish implied volatility", "symbol", cmd.Symbol, "error", err)
		}
	}
	return &ImpliedVolatilityResult{Symbol: cmd.Symbol, Model: pricer.Model(), Volatility: vol}, nil
}

// CleanupResults 删除早于保留期的定价结果
func (c *PricingCommandService) CleanupResults(ctx context.Context, retention time.Duration) (int64, error) {
	if retention <= 0 {
		return 0, fmt.Errorf("%w: retention must be positive", domain.ErrInvalidParameters)
	}
	n, err := c.repo.DeleteBefore(ctx, c.now().Add(-retention))
	if err != nil {
		return 0, err
	}
	if n > 0 {
		logger.Info(ctx, "pricing results cleaned up", "deleted", n, "retention", retention)
	}
	return n, nil
}

// publishError 尽力发布定价错误事件，发布失败只记录日志
func (c *PricingCommandService) publishError(ctx context.Context, symbol string, opt domain.Option, model domain.Model, cause error) {
	if c.publisher == nil {
		return
	}
	terms := opt.Contract()
	now := c.now()
	event := domain.PricingErrorEvent{
		Symbol:       symbol,
		OptionType:   terms.Type,
		StrikePrice:  terms.Strike,
		PricingModel: modelLabel(model),
		Error:        cause.Error(),
		ErrorCode:    domain.ErrorCode(cause),
		OccurredAt:   now.UnixMilli(),
		OccurredOn:   now,
	}
	if err := c.publisher.Publish(ctx, domain.PricingErrorEventType, symbol, event); err != nil {
		logger.Warn(ctx, "failed to publish pricing error", "symbol", symbol, "error", err)
	}
}

// 辅助函数：提取去重后的合约符号
func extractSymbols(contracts []PriceOptionCommand) []string {
	symbols := make([]string, 0, len(contracts))
	seen := make(map[string]bool)
	for _, contract := range contracts {
		if !seen[contract.Symbol] {
			symbols = append(symbols, contract.Symbol)
			seen[contract.Symbol] = true
		}
	}
	return symbols
}

func modelLabel(m domain.Model) string {
	if m == "" {
		return "default"
	}
	return string(m)
}
