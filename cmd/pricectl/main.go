// pricectl 命令行定价工具，默认在本地引擎上计算，指定 --addr 时调用远程 gRPC 服务
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/pflag"
	"github.com/wyfcoding/optionspricing/internal/pricing/application"
	"github.com/wyfcoding/optionspricing/internal/pricing/domain"
	grpchandler "github.com/wyfcoding/optionspricing/internal/pricing/interfaces/grpc"
	"github.com/wyfcoding/optionspricing/pkg/config"
	"github.com/wyfcoding/optionspricing/pkg/grpcclient"
)

const usage = `usage: pricectl <price|greeks|iv> [flags]

  price   单点定价；不指定 --spot 时返回曲线网格上的价格数组
  greeks  价格与希腊字母，需要 --spot
  iv      由 --market-price 反解隐含波动率，需要 --spot
`

type options struct {
	addr       string
	configPath string
	timeout    time.Duration

	symbol   string
	style    string
	side     string
	model    string
	strike   float64
	expiry   float64
	vol      float64
	rate     float64
	dividend float64
	spot     float64
	market   float64

	hasExpiry bool
}

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, "pricectl:", err)
		os.Exit(1)
	}
}

func run(args []string, out io.Writer) error {
	if len(args) == 0 {
		return errors.New(usage)
	}
	cmd := args[0]

	var o options
	fs := pflag.NewFlagSet(cmd, pflag.ContinueOnError)
	fs.StringVar(&o.addr, "addr", "", "远程 gRPC 地址，为空时使用本地引擎")
	fs.StringVar(&o.configPath, "config", "", "本地引擎配置文件")
	fs.DurationVar(&o.timeout, "timeout", 30*time.Second, "请求超时")
	fs.StringVar(&o.symbol, "symbol", "CLI", "合约代码")
	fs.StringVar(&o.style, "style", "EUROPEAN", "EUROPEAN 或 AMERICAN")
	fs.StringVarP(&o.side, "type", "t", "CALL", "CALL 或 PUT")
	fs.StringVarP(&o.model, "model", "m", "", "定价模型，为空时按行权方式选择")
	fs.Float64VarP(&o.strike, "strike", "k", 0, "行权价")
	fs.Float64VarP(&o.expiry, "expiry", "T", 0, "剩余期限（年）")
	fs.Float64Var(&o.vol, "vol", 0.2, "波动率")
	fs.Float64VarP(&o.rate, "rate", "r", 0, "无风险利率")
	fs.Float64VarP(&o.dividend, "dividend", "q", 0, "股息率")
	fs.Float64VarP(&o.spot, "spot", "s", 0, "标的现价")
	fs.Float64Var(&o.market, "market-price", 0, "期权市场价格")
	if err := fs.Parse(args[1:]); err != nil {
		return err
	}
	hasSpot := fs.Changed("spot")
	o.hasExpiry = fs.Changed("expiry")

	ctx, cancel := context.WithTimeout(context.Background(), o.timeout)
	defer cancel()

	var (
		res any
		err error
	)
	if o.addr != "" {
		res, err = remote(ctx, cmd, o, hasSpot)
	} else {
		res, err = local(ctx, cmd, o, hasSpot)
	}
	if err != nil {
		return err
	}

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(res)
}

// expiryPtr 未指定 --expiry 时为 nil，交由服务端报错
func (o options) expiryPtr() *float64 {
	if !o.hasExpiry {
		return nil
	}
	expiry := o.expiry
	return &expiry
}

func (o options) spec() application.OptionSpec {
	return application.OptionSpec{
		Symbol:        o.symbol,
		Style:         o.style,
		OptionType:    o.side,
		StrikePrice:   o.strike,
		Expiry:        o.expiryPtr(),
		Volatility:    o.vol,
		RiskFreeRate:  o.rate,
		DividendYield: o.dividend,
		PricingModel:  o.model,
	}
}

func local(ctx context.Context, cmd string, o options, hasSpot bool) (any, error) {
	cfg, err := config.LoadWithDefaults(o.configPath)
	if err != nil {
		return nil, err
	}
	engine, err := application.NewEngine(cfg.Pricing)
	if err != nil {
		return nil, err
	}
	query := application.NewPricingQueryService(engine, nil)
	command := application.NewPricingCommandService(engine, nil, nil, nil, 1)

	switch cmd {
	case "price":
		if !hasSpot {
			return command.PriceCurve(ctx, application.PriceCurveCommand{OptionSpec: o.spec()})
		}
		res, err := query.GetGreeks(ctx, application.GreeksQuery{OptionSpec: o.spec(), UnderlyingPrice: o.spot})
		if err != nil {
			return nil, err
		}
		return map[string]any{"model": res.Model, "spot": o.spot, "price": res.Price}, nil
	case "greeks":
		if !hasSpot {
			return nil, fmt.Errorf("%w: --spot is required", domain.ErrInvalidParameters)
		}
		return query.GetGreeks(ctx, application.GreeksQuery{OptionSpec: o.spec(), UnderlyingPrice: o.spot})
	case "iv":
		if !hasSpot {
			return nil, fmt.Errorf("%w: --spot is required", domain.ErrInvalidParameters)
		}
		return command.ImplyVolatility(ctx, application.ImplyVolatilityCommand{
			OptionSpec:      o.spec(),
			UnderlyingPrice: o.spot,
			MarketPrice:     o.market,
		})
	}
	return nil, fmt.Errorf("unknown command %q\n%s", cmd, usage)
}

func remote(ctx context.Context, cmd string, o options, hasSpot bool) (any, error) {
	conn, err := grpcclient.NewClient(grpcclient.ClientConfig{
		Target:         o.addr,
		RequestTimeout: o.timeout,
		MaxRetries:     2,
		RetryDelay:     200 * time.Millisecond,
	})
	if err != nil {
		return nil, err
	}
	defer func() { _ = conn.Close() }()
	client := grpchandler.NewPricingClient(conn)

	msg := &grpchandler.OptionMessage{
		Symbol:        o.symbol,
		Style:         o.style,
		OptionType:    o.side,
		Strike:        o.strike,
		Expiry:        o.expiryPtr(),
		Volatility:    o.vol,
		RiskFreeRate:  o.rate,
		DividendYield: o.dividend,
		PricingModel:  o.model,
		MarketPrice:   o.market,
	}
	if hasSpot {
		msg.UnderlyingPrice = &o.spot
	}

	switch cmd {
	case "price":
		return client.PriceOption(ctx, msg)
	case "greeks":
		return client.GetGreeks(ctx, msg)
	case "iv":
		return client.ImplyVolatility(ctx, msg)
	}
	return nil, fmt.Errorf("unknown command %q\n%s", cmd, usage)
}
