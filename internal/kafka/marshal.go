package kafka

import (
	"encoding/json"
	"fmt"

	"github.com/segmentio/kafka-go"
)

func MustMarshal(v any) []byte {
	b, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return b
}

// UnwrapPayload decodes the event-specific part of an envelope.
func UnwrapPayload[T any](payload json.RawMessage) (T, error) {
	var t T
	if err := json.Unmarshal(payload, &t); err != nil {
		return t, fmt.Errorf("decode payload: %w", err)
	}
	return t, nil
}

// EventHeaders lets consumers route on type without decoding the body.
func EventHeaders(eventType string) []kafka.Header {
	return []kafka.Header{
		{Key: "x-event-type", Value: []byte(eventType)},
		{Key: "x-event-version", Value: []byte("1")},
	}
}

// HeaderValue returns the value of header key on m, or "".
func HeaderValue(m kafka.Message, key string) string {
	for _, h := range m.Headers {
		if h.Key == key {
			return string(h.Value)
		}
	}
	return ""
}
