package messaging

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/wyfcoding/optionspricing/internal/pricing/domain"
)

func TestOutboxMessageEnvelope(t *testing.T) {
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	event := domain.OptionPricedEvent{Symbol: "ABC-C100", OptionPrice: 10.45, PricingModel: "BlackScholes"}

	msg, err := newOutboxMessage(domain.OptionPricedEventType, "ABC-C100", event, now)
	if err != nil {
		t.Fatal(err)
	}
	if msg.Status != StatusPending || msg.ID == "" || msg.TableName() != "pricing_outbox_messages" {
		t.Fatalf("message = %+v", msg)
	}

	raw, err := msg.envelope()
	if err != nil {
		t.Fatal(err)
	}
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		t.Fatal(err)
	}
	if env.EventID != msg.ID || env.EventType != domain.OptionPricedEventType || env.Key != "ABC-C100" || !env.OccurredAt.Equal(now) {
		t.Fatalf("envelope = %+v", env)
	}
	var back domain.OptionPricedEvent
	if err := json.Unmarshal(env.Payload, &back); err != nil || back.OptionPrice != 10.45 {
		t.Fatalf("payload = %s, %v", env.Payload, err)
	}
}

func TestNewOutboxMessageRejectsUnencodable(t *testing.T) {
	if _, err := newOutboxMessage("Bad", "k", make(chan int), time.Now()); err == nil {
		t.Fatal("expected marshal error")
	}
}

func TestTruncate(t *testing.T) {
	if truncate("abcdef", 3) != "abc" || truncate("ab", 3) != "ab" {
		t.Fatal("truncate")
	}
}
