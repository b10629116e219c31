package kafka

import (
	"encoding/json"
	"testing"

	"github.com/segmentio/kafka-go"
)

func TestUnwrapPayload(t *testing.T) {
	type payload struct {
		BookingID string `json:"booking_id"`
	}
	p, err := UnwrapPayload[payload](json.RawMessage(`{"booking_id":"b-1"}`))
	if err != nil || p.BookingID != "b-1" {
		t.Fatalf("got %+v, %v", p, err)
	}
	if _, err := UnwrapPayload[payload](json.RawMessage(`[`)); err == nil {
		t.Error("expected error for broken payload")
	}
}

func TestEventHeaders(t *testing.T) {
	m := kafka.Message{Headers: EventHeaders("BookingPaid")}
	if got := HeaderValue(m, "x-event-type"); got != "BookingPaid" {
		t.Errorf("x-event-type = %q", got)
	}
	if got := HeaderValue(m, "x-event-version"); got != "1" {
		t.Errorf("x-event-version = %q", got)
	}
	if got := HeaderValue(m, "missing"); got != "" {
		t.Errorf("missing = %q", got)
	}
}
