package messaging

import (
	"context"

	"github.com/feral-file/ff-marketplace/internal/domain"
)

// Publisher defines the interface for publishing raw contract events to the message broker
//
//go:generate mockgen -source=publisher.go -destination=../mocks/publisher.go -package=mocks -mock_names=Publisher=MockPublisher
type Publisher interface {
	// PublishEvent publishes a raw contract event. Publishing the same event twice is
	// de-duplicated by the broker through the event key.
	PublishEvent(ctx context.Context, event *domain.RawEvent) error
	// Close closes the connection
	Close()
}
