package redis

import (
	"testing"
	"time"
)

func TestResultKeyAndTTL(t *testing.T) {
	if got := ResultKey("AAPL-C150"); got != "pricing_result:AAPL-C150" {
		t.Fatalf("key = %s", got)
	}
	if c := NewPricingResultCache(nil, 0); c.ttl != 15*time.Minute {
		t.Fatalf("default ttl = %v", c.ttl)
	}
}
