package application

import (
	"context"
	"errors"
	"math"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/wyfcoding/optionspricing/internal/pricing/domain"
	"github.com/wyfcoding/optionspricing/pkg/config"
	"github.com/wyfcoding/optionspricing/pkg/utils"
)

type memRepo struct {
	mu      sync.Mutex
	results []*domain.PricingResult
	txCount int
	failTx  error
}

func (r *memRepo) WithTx(ctx context.Context, fn func(context.Context) error) error {
	r.mu.Lock()
	r.txCount++
	fail := r.failTx
	r.mu.Unlock()
	if fail != nil {
		return fail
	}
	return fn(ctx)
}

func (r *memRepo) Save(_ context.Context, res *domain.PricingResult) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	res.ID = uint(len(r.results) + 1)
	r.results = append(r.results, res)
	return nil
}

func (r *memRepo) GetLatest(ctx context.Context, symbol string) (*domain.PricingResult, error) {
	h, _ := r.GetHistory(ctx, symbol, 1)
	if len(h) == 0 {
		return nil, domain.ErrNotFound
	}
	return h[0], nil
}

func (r *memRepo) GetHistory(_ context.Context, symbol string, limit int) ([]*domain.PricingResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.PricingResult
	for _, res := range r.results {
		if res.Symbol == symbol {
			out = append(out, res)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *memRepo) DeleteBefore(_ context.Context, before time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	kept := r.results[:0]
	var n int64
	for _, res := range r.results {
		if res.CalculatedAt < before.UnixMilli() {
			n++
			continue
		}
		kept = append(kept, res)
	}
	r.results = kept
	return n, nil
}

type published struct {
	eventType string
	key       string
	event     any
}

type memPublisher struct {
	mu     sync.Mutex
	events []published
}

func (p *memPublisher) Publish(_ context.Context, eventType, key string, event any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, published{eventType, key, event})
	return nil
}

func (p *memPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.events))
	for i, e := range p.events {
		out[i] = e.eventType
	}
	return out
}

func newTestService(t *testing.T) (*PricingService, *memRepo, *memPublisher) {
	t.Helper()
	cfg := config.PricingConfig{
		Grid:       config.GridConfig{DX: 0.01, DT: 3e-5, Minus: -1000, Plus: 1000},
		SpotGrid:   config.SpotGridConfig{Lower: 0.5, Upper: 1.5, Points: 21},
		MonteCarlo: config.MonteCarloConfig{Paths: 10000, Steps: 20, Seed: 7},
	}
	engine, err := NewEngine(cfg)
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	repo := &memRepo{}
	pub := &memPublisher{}
	svc := NewPricingService(engine, repo, pub, nil, 4)
	return svc, repo, pub
}

func europeanCall(symbol string) OptionSpec {
	return OptionSpec{
		Symbol:       symbol,
		OptionType:   "CALL",
		StrikePrice:  100,
		Expiry:       utils.Float64Ptr(1),
		Volatility:   0.2,
		RiskFreeRate: 0.05,
	}
}

func TestPriceOptionPersistsAndPublishes(t *testing.T) {
	svc, repo, pub := newTestService(t)
	ctx := context.Background()

	res, err := svc.PriceOption(ctx, PriceOptionCommand{OptionSpec: europeanCall("AAPL-C100"), UnderlyingPrice: 100})
	if err != nil {
		t.Fatal(err)
	}
	if math.Abs(res.OptionPrice.InexactFloat64()-10.4506) > 1e-3 {
		t.Fatalf("price = %s", res.OptionPrice)
	}
	if res.PricingModel != string(domain.ModelBlackScholes) || res.Style != domain.StyleEuropean {
		t.Fatalf("result = %+v", res)
	}
	if repo.txCount != 1 || len(repo.results) != 1 {
		t.Fatalf("tx=%d saved=%d", repo.txCount, len(repo.results))
	}
	got := pub.types()
	if len(got) != 2 || got[0] != domain.OptionPricedEventType || got[1] != domain.GreeksCalculatedEventType {
		t.Fatalf("events = %v", got)
	}

	latest, err := svc.GetLatestResult(ctx, "AAPL-C100")
	if err != nil || latest.ID != res.ID {
		t.Fatalf("latest = %+v, %v", latest, err)
	}
}

func TestPriceOptionFailurePublishesError(t *testing.T) {
	svc, repo, pub := newTestService(t)
	spec := europeanCall("X")
	spec.PricingModel = "LongstaffSchwartz"

	_, err := svc.PriceOption(context.Background(), PriceOptionCommand{OptionSpec: spec, UnderlyingPrice: 100})
	if !errors.Is(err, domain.ErrUnsupportedModel) {
		t.Fatalf("err = %v", err)
	}
	if len(repo.results) != 0 {
		t.Fatal("failed pricing must not be saved")
	}
	if got := pub.types(); len(got) != 1 || got[0] != domain.PricingErrorEventType {
		t.Fatalf("events = %v", got)
	}
	ev := pub.events[0].event.(domain.PricingErrorEvent)
	if ev.ErrorCode != "UNSUPPORTED_MODEL" {
		t.Fatalf("error code = %s", ev.ErrorCode)
	}
}

func TestPriceOptionValidation(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()
	cases := []struct {
		name string
		cmd  PriceOptionCommand
	}{
		{"no symbol", PriceOptionCommand{OptionSpec: OptionSpec{OptionType: "CALL", StrikePrice: 100, Expiry: utils.Float64Ptr(1), Volatility: 0.2}, UnderlyingPrice: 100}},
		{"no expiry", PriceOptionCommand{OptionSpec: OptionSpec{Symbol: "X", OptionType: "CALL", StrikePrice: 100, Volatility: 0.2}, UnderlyingPrice: 100}},
		{"bad type", PriceOptionCommand{OptionSpec: OptionSpec{Symbol: "X", OptionType: "STRADDLE", StrikePrice: 100, Expiry: utils.Float64Ptr(1), Volatility: 0.2}, UnderlyingPrice: 100}},
		{"zero vol", PriceOptionCommand{OptionSpec: OptionSpec{Symbol: "X", OptionType: "PUT", StrikePrice: 100, Expiry: utils.Float64Ptr(1)}, UnderlyingPrice: 100}},
		{"negative spot", PriceOptionCommand{OptionSpec: europeanCall("X"), UnderlyingPrice: -1}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := svc.PriceOption(ctx, tc.cmd); !errors.Is(err, domain.ErrInvalidParameters) {
				t.Fatalf("err = %v", err)
			}
		})
	}
}

func TestPriceOptionAtExpiry(t *testing.T) {
	svc, _, _ := newTestService(t)
	spec := europeanCall("X-P50")
	spec.Style, spec.OptionType, spec.StrikePrice = "AMERICAN", "PUT", 50
	spec.Expiry = utils.Float64Ptr(0)
	spec.ExpiryDate = time.Now().Add(24 * time.Hour).UnixMilli()

	res, err := svc.PriceOption(context.Background(), PriceOptionCommand{OptionSpec: spec, UnderlyingPrice: 45})
	if err != nil {
		t.Fatal(err)
	}
	if res.Expiry != 0 || res.PricingModel != string(domain.ModelImplicitFD) || !res.OptionPrice.Equal(decimal.NewFromInt(5)) {
		t.Fatalf("result = %+v", res)
	}
}

func TestPriceOptionExpiryDate(t *testing.T) {
	svc, _, _ := newTestService(t)
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	svc.Command.now = func() time.Time { return now }

	spec := europeanCall("X")
	spec.Expiry = nil
	spec.ExpiryDate = now.Add(365 * 24 * time.Hour).UnixMilli()
	res, err := svc.PriceOption(context.Background(), PriceOptionCommand{OptionSpec: spec, UnderlyingPrice: 100})
	if err != nil {
		t.Fatal(err)
	}
	if math.Abs(res.Expiry-1) > 1e-9 || res.CalculatedAt != now.UnixMilli() {
		t.Fatalf("expiry=%v calculated_at=%d", res.Expiry, res.CalculatedAt)
	}
}

func TestPriceCurve(t *testing.T) {
	svc, repo, _ := newTestService(t)
	spec := europeanCall("X")
	spec.Style = "AMERICAN"
	spec.OptionType = "PUT"

	res, err := svc.PriceCurve(context.Background(), PriceCurveCommand{OptionSpec: spec})
	if err != nil {
		t.Fatal(err)
	}
	if res.Model != domain.ModelImplicitFD || len(res.Prices) != 21 {
		t.Fatalf("curve = %+v", res)
	}
	for i, p := range res.Prices {
		if p < spec.StrikePrice-res.Spots[i]-1e-2 {
			t.Fatalf("american put below intrinsic at %v: %v", res.Spots[i], p)
		}
	}
	if len(repo.results) != 0 {
		t.Fatal("curve pricing must not persist")
	}

	res, err = svc.PriceCurve(context.Background(), PriceCurveCommand{
		OptionSpec: spec,
		SpotGrid:   &domain.SpotGrid{Lower: 0.8, Upper: 1.2, Points: 5},
	})
	if err != nil || len(res.Spots) != 5 || math.Abs(res.Spots[0]-80) > 1e-9 {
		t.Fatalf("custom grid = %+v, %v", res, err)
	}
}

func TestBatchPriceOptionsKeepsOrder(t *testing.T) {
	svc, _, pub := newTestService(t)
	bad := europeanCall("BAD")
	bad.Volatility = -1

	contracts := []PriceOptionCommand{
		{OptionSpec: europeanCall("A"), UnderlyingPrice: 90},
		{OptionSpec: bad, UnderlyingPrice: 100},
		{OptionSpec: europeanCall("C"), UnderlyingPrice: 110},
	}
	res, err := svc.BatchPriceOptions(context.Background(), BatchPriceOptionsCommand{Contracts: contracts})
	if err != nil {
		t.Fatal(err)
	}
	if res.BatchID == "" || res.SuccessCount != 2 || res.FailureCount != 1 {
		t.Fatalf("batch = %+v", res)
	}
	for i, item := range res.Items {
		if item.Symbol != contracts[i].Symbol {
			t.Fatalf("item %d symbol %s", i, item.Symbol)
		}
	}
	if res.Items[1].Error == "" || res.Items[1].Result != nil {
		t.Fatalf("bad item = %+v", res.Items[1])
	}
	if !res.Items[0].Result.OptionPrice.LessThan(res.Items[2].Result.OptionPrice) {
		t.Fatal("call price should increase with spot")
	}

	found := false
	for _, typ := range pub.types() {
		found = found || typ == domain.BatchPricingCompletedEventType
	}
	if !found {
		t.Fatal("batch completion event not published")
	}

	if _, err := svc.BatchPriceOptions(context.Background(), BatchPriceOptionsCommand{}); !errors.Is(err, domain.ErrInvalidParameters) {
		t.Fatalf("empty batch: %v", err)
	}
}

func TestImplyVolatility(t *testing.T) {
	svc, _, pub := newTestService(t)
	spec := europeanCall("X")
	spec.Volatility = 0.5

	res, err := svc.ImplyVolatility(context.Background(), ImplyVolatilityCommand{
		OptionSpec:      spec,
		UnderlyingPrice: 100,
		MarketPrice:     10.450583572185565,
	})
	if err != nil {
		t.Fatal(err)
	}
	if math.Abs(res.Volatility-0.2) > 1e-6 || res.Model != domain.ModelBlackScholes {
		t.Fatalf("implied = %+v", res)
	}
	if got := pub.types(); len(got) != 1 || got[0] != domain.VolatilityImpliedEventType {
		t.Fatalf("events = %v", got)
	}
}

func TestGetGreeksAndHistory(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	g, err := svc.GetGreeks(ctx, GreeksQuery{OptionSpec: europeanCall("X"), UnderlyingPrice: 100})
	if err != nil {
		t.Fatal(err)
	}
	if math.Abs(g.Delta-0.6368) > 1e-3 || g.Gamma <= 0 {
		t.Fatalf("greeks = %+v", g)
	}

	for _, spot := range []float64{95, 100, 105} {
		if _, err := svc.PriceOption(ctx, PriceOptionCommand{OptionSpec: europeanCall("H"), UnderlyingPrice: spot}); err != nil {
			t.Fatal(err)
		}
	}
	h, err := svc.GetHistory(ctx, "H", 0)
	if err != nil || len(h) != 3 {
		t.Fatalf("history = %d, %v", len(h), err)
	}
	if h[0].UnderlyingPrice.InexactFloat64() != 105 {
		t.Fatalf("history not newest first: %s", h[0].UnderlyingPrice)
	}
	if _, err := svc.GetLatestResult(ctx, "MISSING"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("missing: %v", err)
	}
}

func TestCleanupResults(t *testing.T) {
	svc, repo, _ := newTestService(t)
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	svc.Command.now = func() time.Time { return now.Add(-48 * time.Hour) }
	if _, err := svc.PriceOption(ctx, PriceOptionCommand{OptionSpec: europeanCall("OLD"), UnderlyingPrice: 100}); err != nil {
		t.Fatal(err)
	}
	svc.Command.now = func() time.Time { return now }
	if _, err := svc.PriceOption(ctx, PriceOptionCommand{OptionSpec: europeanCall("NEW"), UnderlyingPrice: 100}); err != nil {
		t.Fatal(err)
	}

	n, err := svc.CleanupResults(ctx, 24*time.Hour)
	if err != nil || n != 1 || len(repo.results) != 1 || repo.results[0].Symbol != "NEW" {
		t.Fatalf("cleanup n=%d err=%v left=%d", n, err, len(repo.results))
	}
}

func TestEngineConfigFromDefaultModel(t *testing.T) {
	base := config.PricingConfig{
		Grid:       config.GridConfig{DX: 0.01, DT: 3e-5, Minus: -1000, Plus: 1000},
		SpotGrid:   config.SpotGridConfig{Lower: 0.5, Upper: 1.5, Points: 21},
		MonteCarlo: config.MonteCarloConfig{Paths: 1000, Steps: 10, Seed: 1},
	}

	cfg := base
	cfg.DefaultModel = "explicitfd"
	ec, err := EngineConfigFrom(cfg)
	if err != nil {
		t.Fatal(err)
	}
	if ec.DefaultEuropean != domain.ModelExplicitFD || ec.DefaultAmerican != domain.ModelExplicitFD {
		t.Fatalf("defaults = %s/%s", ec.DefaultEuropean, ec.DefaultAmerican)
	}

	cfg.DefaultModel = "Binomial"
	if _, err := EngineConfigFrom(cfg); !errors.Is(err, domain.ErrUnsupportedModel) {
		t.Fatalf("unknown model: %v", err)
	}

	cfg = base
	cfg.SpotGrid.Points = 1
	if _, err := EngineConfigFrom(cfg); !errors.Is(err, domain.ErrInvalidParameters) {
		t.Fatalf("bad spot grid: %v", err)
	}
}
