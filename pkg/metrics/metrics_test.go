package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestCollectorRecordsPricing(t *testing.T) {
	m := New("pricing")
	if err := m.Register(); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if err := m.Register(); err != nil {
		t.Fatalf("second Register must be idempotent: %v", err)
	}

	c := NewCollector(m)
	c.RecordPricing("BlackScholes", "scalar", "ok", time.Millisecond)
	c.RecordPricing("BlackScholes", "scalar", "ok", time.Millisecond)
	c.RecordPricing("ImplicitFD", "array", "error", time.Millisecond)
	c.RecordOutbox("sent", 3)

	if got := testutil.ToFloat64(m.PricingRequestsTotal.WithLabelValues("BlackScholes", "scalar", "ok")); got != 2 {
		t.Fatalf("pricing ok count = %v", got)
	}
	if got := testutil.ToFloat64(m.OutboxMessagesTotal.WithLabelValues("sent")); got != 3 {
		t.Fatalf("outbox sent = %v", got)
	}

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if !strings.Contains(rec.Body.String(), "optionspricing_pricing_pricing_requests_total") {
		t.Fatalf("metrics output missing pricing counter:\n%s", rec.Body.String())
	}
}
