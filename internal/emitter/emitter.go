package emitter

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"github.com/feral-file/ff-marketplace/internal/adapter"
	"github.com/feral-file/ff-marketplace/internal/domain"
	"github.com/feral-file/ff-marketplace/internal/logger"
	"github.com/feral-file/ff-marketplace/internal/messaging"
	"github.com/feral-file/ff-marketplace/internal/metrics"
	"github.com/feral-file/ff-marketplace/internal/source"
	"github.com/feral-file/ff-marketplace/internal/store"
)

// Config holds the configuration for the event emitter
type Config struct {
	Chain           string
	StartBlock      uint64
	CursorSaveFreq  uint64        // Save cursor every N blocks
	CursorSaveDelay time.Duration // Or save cursor every N seconds

	// Resubscription backoff
	RetryInitialInterval time.Duration
	RetryMaxInterval     time.Duration
	RetryMaxElapsedTime  time.Duration // 0 retries forever
}

// Emitter defines the interface for the event emitter
//
//go:generate mockgen -source=emitter.go -destination=../mocks/emitter.go -package=mocks -mock_names=Emitter=MockEmitter
type Emitter interface {
	// Run starts the event emitter
	Run(ctx context.Context) error
	// Close closes the emitter and cleans up resources
	Close()
}

// emitter forwards raw contract events from a chain source to the broker. It only runs
// on the goroutine that calls Run, so its counters need no locking.
type emitter struct {
	source    source.EventSource
	publisher messaging.Publisher
	cursors   store.CursorStore
	config    Config
	clock     adapter.Clock

	lastBlock    uint64 // highest block with a published event
	savedBlock   uint64 // last checkpoint
	lastSaveTime time.Time
}

// NewEmitter creates a new event emitter
func NewEmitter(
	src source.EventSource,
	pub messaging.Publisher,
	cursors store.CursorStore,
	cfg Config,
	clock adapter.Clock,
) Emitter {
	return &emitter{
		source:    src,
		publisher: pub,
		cursors:   cursors,
		config:    cfg,
		clock:     clock,
	}
}

// Run starts the event emitter. It returns when ctx is done, when the source is
// exhausted or when resubscribing gives up.
func (e *emitter) Run(ctx context.Context) error {
	ctx = logger.WithFields(ctx, zap.String("chain", e.config.Chain))

	startBlock, err := e.startBlock(ctx)
	if err != nil {
		return err
	}
	if startBlock > 0 {
		e.savedBlock = startBlock - 1
	}
	e.lastSaveTime = e.clock.Now()

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = e.config.RetryInitialInterval
	if b.InitialInterval <= 0 {
		b.InitialInterval = time.Second
	}
	b.MaxInterval = e.config.RetryMaxInterval
	if b.MaxInterval <= 0 {
		b.MaxInterval = time.Minute
	}
	b.MaxElapsedTime = e.config.RetryMaxElapsedTime

	fromBlock := startBlock
	operation := func() error {
		logger.InfoCtx(ctx, "Starting event subscription", zap.Uint64("fromBlock", fromBlock))

		err := e.source.Subscribe(ctx, fromBlock, e.handle)
		if ctx.Err() != nil {
			return backoff.Permanent(ctx.Err())
		}
		if err != nil && e.lastBlock > 0 {
			// The last block may be partially published; the broker drops the repeats
			fromBlock = e.lastBlock
		}
		return err
	}
	notify := func(err error, next time.Duration) {
		logger.WarnCtx(ctx, "Subscription failed, resubscribing",
			zap.Error(err),
			zap.Uint64("fromBlock", fromBlock),
			zap.Duration("next_retry_in", next))
	}

	err = backoff.RetryNotify(operation, backoff.WithContext(b, ctx), notify)

	// Checkpoint what was published even when ctx is already done
	e.checkpoint(context.WithoutCancel(ctx), true)

	if ctx.Err() != nil {
		return ctx.Err()
	}
	if err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", e.config.Chain, err)
	}

	logger.InfoCtx(ctx, "Event source exhausted", zap.Uint64("lastBlock", e.lastBlock))
	return nil
}

// startBlock resumes after the checkpoint, never before the configured start block.
// Without either it starts from the chain head.
func (e *emitter) startBlock(ctx context.Context) (uint64, error) {
	cursor, err := e.cursors.GetBlockCursor(ctx, e.config.Chain)
	if err != nil {
		return 0, fmt.Errorf("failed to get block cursor: %w", err)
	}

	switch {
	case cursor > 0 && cursor+1 > e.config.StartBlock:
		logger.InfoCtx(ctx, "Resuming from last processed block", zap.Uint64("block", cursor+1))
		return cursor + 1, nil
	case e.config.StartBlock > 0:
		logger.InfoCtx(ctx, "Starting from configured block", zap.Uint64("block", e.config.StartBlock))
		return e.config.StartBlock, nil
	}

	latestBlock, err := e.source.LatestBlock(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to get latest block number: %w", err)
	}
	logger.InfoCtx(ctx, "Starting from latest block", zap.Uint64("block", latestBlock))
	return latestBlock, nil
}

// handle publishes one raw event. A publish failure ends the subscription so the event
// is delivered again after resubscribing.
func (e *emitter) handle(ctx context.Context, event *domain.RawEvent) error {
	if err := e.publisher.PublishEvent(ctx, event); err != nil {
		return fmt.Errorf("failed to publish event %s: %w", event.Key(), err)
	}

	metrics.Pipeline().RecordPublished(e.config.Chain)

	if event.BlockNumber > e.lastBlock {
		e.lastBlock = event.BlockNumber
	}
	e.checkpoint(ctx, false)
	return nil
}

// checkpoint saves the last block whose events were all published. Events of one block
// arrive together, so every block before the latest one is complete.
func (e *emitter) checkpoint(ctx context.Context, force bool) {
	if e.lastBlock == 0 {
		return
	}

	block := e.lastBlock - 1
	if block <= e.savedBlock {
		return
	}

	if !force &&
		block-e.savedBlock < e.config.CursorSaveFreq &&
		e.clock.Since(e.lastSaveTime) < e.config.CursorSaveDelay {
		return
	}

	if err := e.cursors.SetBlockCursor(ctx, e.config.Chain, block); err != nil {
		if !errors.Is(err, context.Canceled) {
			logger.ErrorCtx(ctx, err, zap.String("message", "Failed to save block cursor"), zap.Uint64("block", block))
		}
		return
	}

	e.savedBlock = block
	e.lastSaveTime = e.clock.Now()
	logger.DebugCtx(ctx, "Saved block cursor", zap.Uint64("block", block))
}

// Close closes the emitter and cleans up resources
func (e *emitter) Close() {
	e.source.Close()
}
