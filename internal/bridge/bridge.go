package bridge

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"github.com/feral-file/ff-marketplace/internal/domain"
	"github.com/feral-file/ff-marketplace/internal/logger"
	"github.com/feral-file/ff-marketplace/internal/metrics"
	"github.com/feral-file/ff-marketplace/internal/normalizer"
	"github.com/feral-file/ff-marketplace/internal/reconciler"
	"github.com/feral-file/ff-marketplace/internal/source"
)

// Config holds the configuration for the event bridge
type Config struct {
	Chain string
	// StartBlock is only used by sources that do not track their own position
	StartBlock uint64

	// Resubscription backoff
	RetryInitialInterval time.Duration
	RetryMaxInterval     time.Duration
	RetryMaxElapsedTime  time.Duration // 0 retries forever
}

// Bridge defines the interface for the event bridge
type Bridge interface {
	// Run starts the event bridge
	Run(ctx context.Context) error
	// Close closes the bridge and cleans up resources
	Close()
}

// bridge feeds the raw events of one chain through the normalizer into the engine.
// Events are handled one at a time on the goroutine that calls Run.
type bridge struct {
	source     source.EventSource
	normalizer normalizer.Normalizer
	engine     reconciler.Engine
	config     Config

	lastBlock uint64
}

// NewBridge creates a new event bridge
func NewBridge(
	cfg Config,
	src source.EventSource,
	n normalizer.Normalizer,
	engine reconciler.Engine,
) Bridge {
	return &bridge{
		source:     src,
		normalizer: n,
		engine:     engine,
		config:     cfg,
	}
}

// Run connects the source and reconciles its events until ctx is done or the source
// is exhausted. A failed subscription is retried with exponential backoff.
func (b *bridge) Run(ctx context.Context) error {
	ctx = logger.WithFields(ctx, zap.String("chain", b.config.Chain))

	if err := b.source.Connect(ctx); err != nil {
		return fmt.Errorf("failed to connect event source: %w", err)
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = b.config.RetryInitialInterval
	if bo.InitialInterval <= 0 {
		bo.InitialInterval = time.Second
	}
	bo.MaxInterval = b.config.RetryMaxInterval
	if bo.MaxInterval <= 0 {
		bo.MaxInterval = time.Minute
	}
	bo.MaxElapsedTime = b.config.RetryMaxElapsedTime

	fromBlock := b.config.StartBlock
	operation := func() error {
		logger.InfoCtx(ctx, "Starting event bridge", zap.Uint64("fromBlock", fromBlock))

		err := b.source.Subscribe(ctx, fromBlock, b.handle)
		if ctx.Err() != nil {
			return backoff.Permanent(ctx.Err())
		}
		if err != nil && b.lastBlock > 0 {
			fromBlock = b.lastBlock
		}
		return err
	}
	notify := func(err error, next time.Duration) {
		logger.WarnCtx(ctx, "Event source failed, resubscribing",
			zap.Error(err),
			zap.Uint64("fromBlock", fromBlock),
			zap.Duration("next_retry_in", next))
	}

	err := backoff.RetryNotify(operation, backoff.WithContext(bo, ctx), notify)
	if ctx.Err() != nil {
		logger.InfoCtx(ctx, "Shutting down event bridge")
		return ctx.Err()
	}
	if err != nil {
		return fmt.Errorf("failed to consume %s events: %w", b.config.Chain, err)
	}

	logger.InfoCtx(ctx, "Event source exhausted", zap.Uint64("lastBlock", b.lastBlock))
	return nil
}

// handle reconciles one raw event. The returned error tells the source how to settle
// the event: nil acknowledges it, a permanent error drops it and anything else asks for
// a redelivery.
func (b *bridge) handle(ctx context.Context, raw *domain.RawEvent) error {
	ctx = logger.WithFields(ctx,
		zap.String("name", raw.Name),
		zap.String("txHash", raw.TxHash),
		zap.Uint("logIndex", raw.LogIndex),
	)

	if raw.Chain != "" && raw.Chain != b.config.Chain {
		logger.WarnCtx(ctx, "Dropping event of another chain", zap.String("eventChain", raw.Chain))
		return source.Permanent(fmt.Errorf("%w: %s", domain.ErrUnknownChain, raw.Chain))
	}

	event, ok, err := b.normalizer.Normalize(ctx, b.config.Chain, raw)
	if err != nil {
		logger.WarnCtx(ctx, "Dropping malformed event", zap.Error(err), zap.Any("payload", raw))
		metrics.Pipeline().RecordEvent(b.config.Chain, "", metrics.OutcomeInvalid, 0)
		return source.Permanent(err)
	}
	if !ok {
		metrics.Pipeline().RecordEvent(b.config.Chain, "", metrics.OutcomeUnknown, 0)
		return nil
	}

	err = b.engine.Apply(ctx, event)
	switch {
	case err == nil, domain.IsBenign(err):
		b.markBlock(raw.BlockNumber)
		return nil
	case domain.IsPermanent(err), errors.Is(err, domain.ErrUnknownEvent):
		b.markBlock(raw.BlockNumber)
		return source.Permanent(err)
	default:
		return err
	}
}

func (b *bridge) markBlock(block uint64) {
	if block > b.lastBlock {
		b.lastBlock = block
	}
}

// Close closes the bridge and cleans up resources
func (b *bridge) Close() {
	b.source.Close()
}
