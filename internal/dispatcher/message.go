package dispatcher

import (
	"fmt"

	"github.com/oklog/ulid/v2"
	"github.com/shopspring/decimal"
)

// Kind is the kind of a side-effect message
type Kind string

const (
	KindHistory      Kind = "history"
	KindNotification Kind = "notification"
	KindTransaction  Kind = "transaction"
	KindStats        Kind = "stats"
)

// Message is a side-effect message published by the reconciliation engine
type Message struct {
	ID      ulid.ULID
	Kind    Kind
	Payload map[string]any
}

// NewMessage creates a message with a fresh ULID
func NewMessage(kind Kind, payload map[string]any) Message {
	if payload == nil {
		payload = map[string]any{}
	}
	return Message{
		ID:      ulid.Make(),
		Kind:    kind,
		Payload: payload,
	}
}

// String reads a string payload value. Missing keys yield an empty string.
func (m Message) String(key string) (string, error) {
	v, ok := m.Payload[key]
	if !ok || v == nil {
		return "", nil
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("payload %q: expected string, got %T", key, v)
	}
	return s, nil
}

// Int64 reads a required integer payload value
func (m Message) Int64(key string) (int64, error) {
	p, err := m.OptionalInt64(key)
	if err != nil {
		return 0, err
	}
	if p == nil {
		return 0, fmt.Errorf("payload %q: missing", key)
	}
	return *p, nil
}

// OptionalInt64 reads an integer payload value that may be absent
func (m Message) OptionalInt64(key string) (*int64, error) {
	v, ok := m.Payload[key]
	if !ok || v == nil {
		return nil, nil
	}
	switch n := v.(type) {
	case int64:
		return &n, nil
	case *int64:
		return n, nil
	case int:
		i := int64(n)
		return &i, nil
	default:
		return nil, fmt.Errorf("payload %q: expected integer, got %T", key, v)
	}
}

// Decimal reads a decimal payload value. Missing keys yield zero.
func (m Message) Decimal(key string) (decimal.Decimal, error) {
	v, ok := m.Payload[key]
	if !ok || v == nil {
		return decimal.Zero, nil
	}
	switch d := v.(type) {
	case decimal.Decimal:
		return d, nil
	case *decimal.Decimal:
		if d == nil {
			return decimal.Zero, nil
		}
		return *d, nil
	case string:
		return decimal.NewFromString(d)
	default:
		return decimal.Zero, fmt.Errorf("payload %q: expected decimal, got %T", key, v)
	}
}

// Has reports whether the payload carries a non-nil value for key
func (m Message) Has(key string) bool {
	v, ok := m.Payload[key]
	if !ok || v == nil {
		return false
	}
	switch p := v.(type) {
	case *int64:
		return p != nil
	case *decimal.Decimal:
		return p != nil
	}
	return true
}
