// Package source defines where raw contract events come from. A source is either a
// live chain subscription, a durable broker consumer or an in-memory replay.
package source

import (
	"context"
	"errors"
	"fmt"

	"github.com/feral-file/ff-marketplace/internal/domain"
)

// ErrPermanent marks handler failures that redelivering the event cannot fix
var ErrPermanent = errors.New("permanent failure")

// Permanent wraps err so sources stop redelivering the event
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrPermanent, err)
}

// IsPermanent reports whether err was marked with Permanent
func IsPermanent(err error) bool {
	return errors.Is(err, ErrPermanent)
}

// Handler processes one raw event. A nil error acknowledges the event, a permanent
// error drops it and any other error asks the source to deliver it again.
type Handler func(ctx context.Context, event *domain.RawEvent) error

// EventSource delivers raw contract events of one chain in emission order.
// Its lifecycle is Connect, Subscribe, Close.
//
//go:generate mockgen -source=source.go -destination=../mocks/event_source.go -package=mocks -mock_names=EventSource=MockEventSource
type EventSource interface {
	// Connect opens the underlying connection
	Connect(ctx context.Context) error
	// Subscribe delivers events starting at fromBlock until ctx is done or the
	// subscription fails. Sources that track their own position ignore fromBlock.
	Subscribe(ctx context.Context, fromBlock uint64, handler Handler) error
	// LatestBlock returns the current head of the chain
	LatestBlock(ctx context.Context) (uint64, error)
	// Close releases the connection
	Close()
}
