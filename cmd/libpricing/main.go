// libpricing 以 C ABI 导出定价引擎，构建方式：go build -buildmode=c-shared -o libpricing.so ./cmd/libpricing
package main

/*
#include <stdint.h>
#include <stdlib.h>

typedef struct {
    int32_t bar;
    double tab;
} Foo;

typedef struct {
    int32_t style;
    int32_t side;
    int32_t model;
    double strike;
    double expiry;
    double volatility;
    double rate;
    double dividend;
    double spot;
} OptionParams;
*/
import "C"

import (
	"context"
	"sync"
	"unsafe"

	"github.com/wyfcoding/optionspricing/internal/native"
	"github.com/wyfcoding/optionspricing/internal/pricing/domain"
	"github.com/wyfcoding/optionspricing/pkg/logger"
)

var (
	libMu sync.Mutex
	lib   *native.Library
)

func library() *native.Library {
	libMu.Lock()
	defer libMu.Unlock()
	if lib == nil {
		lib = native.NewLibrary(domain.NewEngine(domain.DefaultEngineConfig()))
	}
	return lib
}

//export pricing_init
func pricing_init(configPath *C.char) C.int32_t {
	path := ""
	if configPath != nil {
		path = C.GoString(configPath)
	}
	l, err := native.Open(path)
	if err != nil {
		logger.Error(context.Background(), "failed to initialize pricing library", "path", path, "error", err)
		return C.int32_t(native.StatusInvalidParameters)
	}
	libMu.Lock()
	lib = l
	libMu.Unlock()
	return C.int32_t(native.StatusOK)
}

//export twice
func twice(x C.int32_t) C.int32_t {
	return C.int32_t(native.Twice(int32(x)))
}

//export add_wrapper
func add_wrapper(f *C.Foo) C.double {
	if f == nil {
		return C.double(native.AddWrapper(nil))
	}
	return C.double(native.AddWrapper(&native.Foo{Bar: int32(f.bar), Tab: float64(f.tab)}))
}

// price_extern 返回的缓冲区由调用方通过 pricing_free 释放
//
//export price_extern
func price_extern(p *C.OptionParams, mode C.int32_t, outLen *C.size_t, status *C.int32_t) *C.double {
	setStatus := func(s native.Status) {
		if status != nil {
			*status = C.int32_t(s)
		}
	}
	if outLen != nil {
		*outLen = 0
	}
	if p == nil || outLen == nil {
		setStatus(native.StatusNullArgument)
		return nil
	}

	params := &native.OptionParams{
		Style:      int32(p.style),
		Side:       int32(p.side),
		Model:      int32(p.model),
		Strike:     float64(p.strike),
		Expiry:     float64(p.expiry),
		Volatility: float64(p.volatility),
		Rate:       float64(p.rate),
		Dividend:   float64(p.dividend),
		Spot:       float64(p.spot),
	}
	prices, st := library().PriceExtern(context.Background(), params, native.Mode(mode))
	if st != native.StatusOK {
		setStatus(st)
		return nil
	}

	buf := (*C.double)(C.malloc(C.size_t(len(prices)) * C.size_t(unsafe.Sizeof(C.double(0)))))
	if buf == nil {
		setStatus(native.StatusNumericalFailure)
		return nil
	}
	out := unsafe.Slice(buf, len(prices))
	for i, v := range prices {
		out[i] = C.double(v)
	}
	*outLen = C.size_t(len(prices))
	setStatus(native.StatusOK)
	return buf
}

//export pricing_free
func pricing_free(buf *C.double) {
	if buf != nil {
		C.free(unsafe.Pointer(buf))
	}
}

//export price_spot_grid
func price_spot_grid(lower, upper C.double, points C.int32_t) C.int32_t {
	if err := library().SetSpotGrid(float64(lower), float64(upper), int32(points)); err != nil {
		return C.int32_t(native.StatusOf(err))
	}
	return C.int32_t(native.StatusOK)
}

func main() {}
