package jetstream

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/nats-io/nats.go/jetstream"
	"go.uber.org/zap"

	"github.com/feral-file/ff-marketplace/internal/adapter"
	"github.com/feral-file/ff-marketplace/internal/domain"
	"github.com/feral-file/ff-marketplace/internal/logger"
	"github.com/feral-file/ff-marketplace/internal/source"
)

// ConsumerConfig holds the configuration of a durable consumer of one chain's raw events
type ConsumerConfig struct {
	Config
	Chain        string
	ConsumerName string
	AckWait      time.Duration
	MaxDeliver   int

	// NakDelay is how long a failed event waits before it is redelivered
	NakDelay time.Duration
}

// durableName is unique per chain so each chain keeps its own position in the stream
func (c ConsumerConfig) durableName() string {
	return fmt.Sprintf("%s-%s", c.ConsumerName, c.Chain)
}

var errNotConnected = errors.New("consumer is not connected")

type consumer struct {
	config ConsumerConfig
	natsJS adapter.NatsJetStream
	json   adapter.JSON

	mu sync.Mutex
	nc adapter.NatsConn
	js adapter.JetStream
}

// NewConsumer creates an event source that reads a chain's raw events from the stream.
// Events are acknowledged only after the handler returns, so an event that was not
// reconciled is redelivered after a crash.
func NewConsumer(cfg ConsumerConfig, natsJS adapter.NatsJetStream, jsonAdapter adapter.JSON) source.EventSource {
	return &consumer{
		config: cfg,
		natsJS: natsJS,
		json:   jsonAdapter,
	}
}

// Connect connects to NATS and makes sure the stream exists
func (c *consumer) Connect(ctx context.Context) error {
	nc, js, err := connect(c.config.Config, c.natsJS)
	if err != nil {
		return err
	}

	if err := ensureStream(ctx, js, c.config.Config); err != nil {
		nc.Close()
		return err
	}

	c.mu.Lock()
	c.nc = nc
	c.js = js
	c.mu.Unlock()

	return nil
}

// Subscribe consumes the chain's events one at a time. The durable consumer tracks the
// position, so fromBlock is ignored.
func (c *consumer) Subscribe(ctx context.Context, _ uint64, handler source.Handler) error {
	c.mu.Lock()
	js := c.js
	c.mu.Unlock()
	if js == nil {
		return errNotConnected
	}

	logger.InfoCtx(ctx, "Starting consumer",
		zap.String("stream", c.config.StreamName),
		zap.String("consumer", c.config.durableName()))

	// One outstanding message at a time keeps the chain's events in order
	cons, err := js.CreateOrUpdateConsumer(ctx, c.config.StreamName, jetstream.ConsumerConfig{
		Durable:       c.config.durableName(),
		AckPolicy:     jetstream.AckExplicitPolicy,
		AckWait:       c.config.AckWait,
		MaxDeliver:    c.config.MaxDeliver,
		MaxAckPending: 1,
		DeliverPolicy: jetstream.DeliverAllPolicy,
		FilterSubject: c.config.Subject(c.config.Chain, ">"),
	})
	if err != nil {
		return fmt.Errorf("failed to create/update consumer: %w", err)
	}

	info, err := cons.Info(ctx)
	if err != nil {
		return fmt.Errorf("failed to get consumer info: %w", err)
	}
	logger.InfoCtx(ctx, "Consumer created/retrieved",
		zap.String("consumer", info.Name),
		zap.Uint64("pending", info.NumPending))

	msgChan := make(chan adapter.Message, 16)
	sub, err := cons.Consume(func(msg adapter.Message) {
		select {
		case msgChan <- msg:
		case <-ctx.Done():
		}
	})
	if err != nil {
		return fmt.Errorf("failed to create subscription: %w", err)
	}
	defer sub.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.InfoCtx(ctx, "Shutting down consumer", zap.String("consumer", c.config.durableName()))
			return ctx.Err()
		case msg := <-msgChan:
			c.handleMessage(ctx, msg, handler)
		}
	}
}

// handleMessage hands one message to the handler and settles it with the broker
func (c *consumer) handleMessage(ctx context.Context, msg adapter.Message, handler source.Handler) {
	var deliveries uint64
	if metadata, err := msg.Metadata(); err == nil && metadata != nil {
		deliveries = metadata.NumDelivered
	}

	var event domain.RawEvent
	if err := c.json.Unmarshal(msg.Data(), &event); err != nil {
		logger.ErrorCtx(ctx, err, zap.String("message", "Failed to unmarshal event"))
		// Terminate message for unparseable data
		if err := msg.Term(); err != nil {
			logger.ErrorCtx(ctx, err, zap.String("message", "Failed to terminate message"))
		}
		return
	}

	logger.DebugCtx(ctx, "Received event",
		zap.String("eventKey", event.Key()),
		zap.String("name", event.Name),
		zap.Uint64("deliveryCount", deliveries))

	err := handler(ctx, &event)
	switch {
	case err == nil:
		if err := msg.Ack(); err != nil {
			logger.ErrorCtx(ctx, err, zap.String("message", "Failed to ACK message"))
		}
	case source.IsPermanent(err):
		logger.WarnCtx(ctx, "Dropping event", zap.String("eventKey", event.Key()), zap.Error(err))
		if err := msg.Term(); err != nil {
			logger.ErrorCtx(ctx, err, zap.String("message", "Failed to terminate message"))
		}
	default:
		logger.ErrorCtx(ctx, err,
			zap.String("message", "Failed to handle event, redelivering"),
			zap.String("eventKey", event.Key()),
			zap.Uint64("deliveryCount", deliveries))
		if err := msg.NakWithDelay(c.config.NakDelay); err != nil {
			logger.ErrorCtx(ctx, err, zap.String("message", "Failed to NAK message"))
		}
	}
}

// LatestBlock is not tracked by the broker and always returns 0
func (c *consumer) LatestBlock(context.Context) (uint64, error) {
	return 0, nil
}

// Close closes the NATS connection
func (c *consumer) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.nc == nil {
		return
	}

	c.nc.Close()
	c.nc = nil
	c.js = nil
}
