package native

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"testing"

	"github.com/wyfcoding/optionspricing/internal/pricing/domain"
)

func TestTwice(t *testing.T) {
	if got := Twice(9); got != 18 {
		t.Fatalf("Twice(9) = %d", got)
	}
	for _, x := range []int32{0, 1, -1, 1 << 29, -(1 << 30), 1<<30 - 1} {
		if got := Twice(x); int64(got) != 2*int64(x) {
			t.Errorf("Twice(%d) = %d", x, got)
		}
	}
	if got := Twice(math.MaxInt32); got != -2 {
		t.Errorf("Twice(MaxInt32) = %d, want -2", got)
	}
	if got := Twice(math.MinInt32); got != 0 {
		t.Errorf("Twice(MinInt32) = %d, want 0", got)
	}

	if _, err := TwiceChecked(math.MaxInt32); !errors.Is(err, ErrOverflow) {
		t.Errorf("TwiceChecked(MaxInt32) err = %v", err)
	}
	if _, err := TwiceChecked(math.MinInt32/2 - 1); !errors.Is(err, ErrOverflow) {
		t.Errorf("TwiceChecked(MinInt32/2-1) err = %v", err)
	}
	if got, err := TwiceChecked(math.MinInt32 / 2); err != nil || got != math.MinInt32 {
		t.Errorf("TwiceChecked(MinInt32/2) = %d, %v", got, err)
	}
}

func TestAddWrapper(t *testing.T) {
	if got := AddWrapper(&Foo{Bar: 5, Tab: 6.0}); got != 11.0 {
		t.Fatalf("AddWrapper = %v", got)
	}
	if got := AddWrapper(&Foo{Bar: -3, Tab: 0.25}); got != -2.75 {
		t.Fatalf("AddWrapper = %v", got)
	}
	if got := AddWrapper(nil); !math.IsNaN(got) {
		t.Fatalf("AddWrapper(nil) = %v", got)
	}
}

func atmCall() *OptionParams {
	return &OptionParams{Side: 1, Strike: 100, Expiry: 1, Volatility: 0.2, Rate: 0.05, Spot: 100}
}

func TestPriceExtern(t *testing.T) {
	lib := NewLibrary(domain.NewEngine(domain.DefaultEngineConfig()))
	ctx := context.Background()

	prices, st := lib.PriceExtern(ctx, atmCall(), ModeScalar)
	if st != StatusOK || len(prices) != 1 || math.Abs(prices[0]-10.450583572185565) > 1e-9 {
		t.Fatalf("scalar = %v, %d", prices, st)
	}

	prices, st = lib.PriceExtern(ctx, atmCall(), ModeArray)
	if st != StatusOK || len(prices) != domain.DefaultSpotGrid().Points {
		t.Fatalf("array = %v, %d", prices, st)
	}
	for i := 1; i < len(prices); i++ {
		if prices[i] < prices[i-1] {
			t.Fatalf("call prices not increasing in spot: %v", prices)
		}
	}

	if err := lib.SetSpotGrid(0.9, 1.1, 3); err != nil {
		t.Fatal(err)
	}
	prices, st = lib.PriceExtern(ctx, atmCall(), ModeArray)
	if st != StatusOK || len(prices) != 3 || math.Abs(prices[1]-10.450583572185565) > 1e-9 {
		t.Fatalf("custom grid = %v, %d", prices, st)
	}
	if err := lib.SetSpotGrid(1.1, 0.9, 3); !errors.Is(err, domain.ErrInvalidParameters) {
		t.Fatalf("inverted grid err = %v", err)
	}
	if lib.SpotGrid().Points != 3 {
		t.Fatalf("grid changed after rejected update: %+v", lib.SpotGrid())
	}
}

func TestPriceExternStatus(t *testing.T) {
	lib := NewLibrary(domain.NewEngine(domain.DefaultEngineConfig()))
	ctx := context.Background()

	cases := []struct {
		name string
		edit func(*OptionParams)
		mode Mode
		want Status
	}{
		{"negative volatility", func(p *OptionParams) { p.Volatility = -0.1 }, ModeScalar, StatusInvalidParameters},
		{"bad side", func(p *OptionParams) { p.Side = 0 }, ModeScalar, StatusInvalidParameters},
		{"bad style", func(p *OptionParams) { p.Style = 7 }, ModeScalar, StatusInvalidParameters},
		{"zero spot", func(p *OptionParams) { p.Spot = 0 }, ModeScalar, StatusInvalidParameters},
		{"unknown model", func(p *OptionParams) { p.Model = 42 }, ModeScalar, StatusUnsupportedModel},
		{"bs for american", func(p *OptionParams) { p.Style, p.Model = 1, ModelBlackScholes }, ModeScalar, StatusUnsupportedModel},
		{"bad mode", func(*OptionParams) {}, Mode(9), StatusInvalidParameters},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p := atmCall()
			tc.edit(p)
			if _, st := lib.PriceExtern(ctx, p, tc.mode); st != tc.want {
				t.Fatalf("status = %d, want %d", st, tc.want)
			}
		})
	}
	if _, st := lib.PriceExtern(ctx, nil, ModeScalar); st != StatusNullArgument {
		t.Fatalf("nil params status = %d", st)
	}
}

func TestStatusOf(t *testing.T) {
	cases := map[error]Status{
		nil:                        StatusOK,
		domain.ErrUnsupportedModel: StatusUnsupportedModel,
		fmt.Errorf("w: %w", domain.ErrSpotOutsideGrid): StatusInvalidParameters,
		domain.ErrSingularSystem:                       StatusNumericalFailure,
		domain.ErrNonFinite:                            StatusNumericalFailure,
	}
	for err, want := range cases {
		if got := StatusOf(err); got != want {
			t.Errorf("StatusOf(%v) = %d, want %d", err, got, want)
		}
	}
}

func TestLibraryConcurrentUse(t *testing.T) {
	lib := NewLibrary(domain.NewEngine(domain.DefaultEngineConfig()))
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if i%2 == 0 {
				_ = lib.SetSpotGrid(0.5, 1.5, int32(5+i))
				return
			}
			if _, st := lib.PriceExtern(ctx, atmCall(), ModeArray); st != StatusOK {
				t.Errorf("status = %d", st)
			}
		}()
	}
	wg.Wait()
}

func TestOpenWithoutConfigFile(t *testing.T) {
	lib, err := Open("does-not-exist.toml")
	if err != nil {
		t.Fatal(err)
	}
	if _, st := lib.PriceExtern(context.Background(), atmCall(), ModeScalar); st != StatusOK {
		t.Fatalf("status = %d", st)
	}
}
