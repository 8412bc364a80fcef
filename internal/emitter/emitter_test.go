package emitter_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/feral-file/ff-marketplace/internal/domain"
	"github.com/feral-file/ff-marketplace/internal/emitter"
	"github.com/feral-file/ff-marketplace/internal/logger"
	"github.com/feral-file/ff-marketplace/internal/mocks"
	"github.com/feral-file/ff-marketplace/internal/source"
)

func TestMain(m *testing.M) {
	// Initialize logger for tests
	err := logger.Initialize(logger.Config{
		Debug: false,
	})
	if err != nil {
		panic(err)
	}

	code := m.Run()
	os.Exit(code)
}

// testEmitterMocks contains all the mocks needed for testing the emitter
type testEmitterMocks struct {
	ctrl      *gomock.Controller
	source    *mocks.MockEventSource
	publisher *mocks.MockPublisher
	cursors   *mocks.MockCursorStore
	clock     *mocks.MockClock
}

// setupTestEmitter creates all the mocks for testing
func setupTestEmitter(t *testing.T) *testEmitterMocks {
	ctrl := gomock.NewController(t)

	tm := &testEmitterMocks{
		ctrl:      ctrl,
		source:    mocks.NewMockEventSource(ctrl),
		publisher: mocks.NewMockPublisher(ctrl),
		cursors:   mocks.NewMockCursorStore(ctrl),
		clock:     mocks.NewMockClock(ctrl),
	}

	tm.clock.EXPECT().Now().Return(time.Now()).AnyTimes()
	tm.clock.EXPECT().Since(gomock.Any()).Return(time.Duration(0)).AnyTimes()

	return tm
}

func (tm *testEmitterMocks) emitter(cfg emitter.Config) emitter.Emitter {
	cfg.Chain = domain.CHAIN_ETHEREUM
	if cfg.CursorSaveDelay == 0 {
		cfg.CursorSaveDelay = time.Minute
	}
	cfg.RetryInitialInterval = time.Millisecond
	cfg.RetryMaxInterval = 5 * time.Millisecond
	return emitter.NewEmitter(tm.source, tm.publisher, tm.cursors, cfg, tm.clock)
}

func rawEvent(block uint64, logIndex uint) *domain.RawEvent {
	return &domain.RawEvent{
		Chain:       domain.CHAIN_ETHEREUM,
		Contract:    "0x2222222222222222222222222222222222222222",
		Name:        domain.EventNameNewBid,
		Fields:      map[string]any{"bid": "1", "bidder": "0xb0b", "aucId": "1"},
		TxHash:      fmt.Sprintf("0x%x", block),
		BlockNumber: block,
		LogIndex:    logIndex,
		Timestamp:   time.Now(),
	}
}

// deliver returns a Subscribe implementation that hands the events to the handler and
// then cancels the run
func deliver(t *testing.T, cancel context.CancelFunc, events ...*domain.RawEvent) func(context.Context, uint64, source.Handler) error {
	return func(ctx context.Context, _ uint64, handler source.Handler) error {
		for _, event := range events {
			require.NoError(t, handler(ctx, event))
		}
		cancel()
		return ctx.Err()
	}
}

func TestEmitter_Run_WithStartBlock(t *testing.T) {
	tm := setupTestEmitter(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	events := []*domain.RawEvent{rawEvent(1001, 0), rawEvent(1002, 0)}

	tm.cursors.EXPECT().GetBlockCursor(gomock.Any(), domain.CHAIN_ETHEREUM).Return(uint64(0), nil)
	tm.source.EXPECT().Subscribe(gomock.Any(), uint64(1000), gomock.Any()).DoAndReturn(deliver(t, cancel, events...))
	for _, event := range events {
		tm.publisher.EXPECT().PublishEvent(gomock.Any(), event).Return(nil)
	}
	// A block is complete once an event of a later block arrives
	gomock.InOrder(
		tm.cursors.EXPECT().SetBlockCursor(gomock.Any(), domain.CHAIN_ETHEREUM, uint64(1000)).Return(nil),
		tm.cursors.EXPECT().SetBlockCursor(gomock.Any(), domain.CHAIN_ETHEREUM, uint64(1001)).Return(nil),
	)

	err := tm.emitter(emitter.Config{StartBlock: 1000, CursorSaveFreq: 1}).Run(ctx)

	// Should return context canceled error
	assert.Equal(t, context.Canceled, err)
}

func TestEmitter_Run_StartBlock(t *testing.T) {
	tests := []struct {
		name       string
		startBlock uint64
		cursor     uint64
		latest     uint64
		expected   uint64
	}{
		{name: "resumes after cursor", cursor: 500, expected: 501},
		{name: "cursor ahead of start block", startBlock: 100, cursor: 500, expected: 501},
		{name: "start block ahead of cursor", startBlock: 900, cursor: 500, expected: 900},
		{name: "latest block without cursor", latest: 1000, expected: 1000},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tm := setupTestEmitter(t)

			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			tm.cursors.EXPECT().GetBlockCursor(gomock.Any(), domain.CHAIN_ETHEREUM).Return(tt.cursor, nil)
			if tt.latest > 0 {
				tm.source.EXPECT().LatestBlock(gomock.Any()).Return(tt.latest, nil)
			}
			tm.source.EXPECT().Subscribe(gomock.Any(), tt.expected, gomock.Any()).DoAndReturn(deliver(t, cancel))

			err := tm.emitter(emitter.Config{StartBlock: tt.startBlock, CursorSaveFreq: 10}).Run(ctx)
			assert.Equal(t, context.Canceled, err)
		})
	}
}

func TestEmitter_Run_CursorSaveByBlockFrequency(t *testing.T) {
	tm := setupTestEmitter(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	events := []*domain.RawEvent{
		rawEvent(1000, 0),
		rawEvent(1000, 1),
		rawEvent(1003, 0),
		rawEvent(1006, 0),
		rawEvent(1012, 0),
	}

	tm.cursors.EXPECT().GetBlockCursor(gomock.Any(), domain.CHAIN_ETHEREUM).Return(uint64(0), nil)
	tm.source.EXPECT().Subscribe(gomock.Any(), uint64(1000), gomock.Any()).DoAndReturn(deliver(t, cancel, events...))
	tm.publisher.EXPECT().PublishEvent(gomock.Any(), gomock.Any()).Return(nil).Times(len(events))

	// Saves when at least 5 complete blocks have passed since the last save
	gomock.InOrder(
		tm.cursors.EXPECT().SetBlockCursor(gomock.Any(), domain.CHAIN_ETHEREUM, uint64(1005)).Return(nil),
		tm.cursors.EXPECT().SetBlockCursor(gomock.Any(), domain.CHAIN_ETHEREUM, uint64(1011)).Return(nil),
	)

	err := tm.emitter(emitter.Config{StartBlock: 1000, CursorSaveFreq: 5}).Run(ctx)
	assert.Equal(t, context.Canceled, err)
}

func TestEmitter_Run_CursorSaveByDelay(t *testing.T) {
	ctrl := gomock.NewController(t)
	src := mocks.NewMockEventSource(ctrl)
	pub := mocks.NewMockPublisher(ctrl)
	cursors := mocks.NewMockCursorStore(ctrl)
	clock := mocks.NewMockClock(ctrl)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	clock.EXPECT().Now().Return(time.Now()).AnyTimes()
	clock.EXPECT().Since(gomock.Any()).Return(time.Minute).AnyTimes()

	cursors.EXPECT().GetBlockCursor(gomock.Any(), domain.CHAIN_ETHEREUM).Return(uint64(0), nil)
	src.EXPECT().Subscribe(gomock.Any(), uint64(1000), gomock.Any()).
		DoAndReturn(deliver(t, cancel, rawEvent(1000, 0), rawEvent(1002, 0)))
	pub.EXPECT().PublishEvent(gomock.Any(), gomock.Any()).Return(nil).Times(2)
	cursors.EXPECT().SetBlockCursor(gomock.Any(), domain.CHAIN_ETHEREUM, uint64(1001)).Return(nil)

	e := emitter.NewEmitter(src, pub, cursors, emitter.Config{
		Chain:           domain.CHAIN_ETHEREUM,
		StartBlock:      1000,
		CursorSaveFreq:  100,
		CursorSaveDelay: 30 * time.Second,
	}, clock)

	assert.Equal(t, context.Canceled, e.Run(ctx))
}

func TestEmitter_Run_SavesCursorOnShutdown(t *testing.T) {
	tm := setupTestEmitter(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	tm.cursors.EXPECT().GetBlockCursor(gomock.Any(), domain.CHAIN_ETHEREUM).Return(uint64(0), nil)
	tm.source.EXPECT().Subscribe(gomock.Any(), uint64(1000), gomock.Any()).
		DoAndReturn(deliver(t, cancel, rawEvent(1000, 0), rawEvent(1003, 0)))
	tm.publisher.EXPECT().PublishEvent(gomock.Any(), gomock.Any()).Return(nil).Times(2)
	tm.cursors.EXPECT().
		SetBlockCursor(gomock.Any(), domain.CHAIN_ETHEREUM, uint64(1002)).
		DoAndReturn(func(ctx context.Context, _ string, _ uint64) error {
			assert.NoError(t, ctx.Err())
			return nil
		})

	err := tm.emitter(emitter.Config{StartBlock: 1000, CursorSaveFreq: 100}).Run(ctx)
	assert.Equal(t, context.Canceled, err)
}

func TestEmitter_Run_ResubscribesFromLastPublishedBlock(t *testing.T) {
	tm := setupTestEmitter(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	tm.cursors.EXPECT().GetBlockCursor(gomock.Any(), domain.CHAIN_ETHEREUM).Return(uint64(0), nil)
	tm.publisher.EXPECT().PublishEvent(gomock.Any(), gomock.Any()).Return(nil).Times(2)
	tm.cursors.EXPECT().SetBlockCursor(gomock.Any(), domain.CHAIN_ETHEREUM, gomock.Any()).Return(nil).AnyTimes()

	gomock.InOrder(
		tm.source.EXPECT().
			Subscribe(gomock.Any(), uint64(1000), gomock.Any()).
			DoAndReturn(func(ctx context.Context, _ uint64, handler source.Handler) error {
				require.NoError(t, handler(ctx, rawEvent(1005, 0)))
				return fmt.Errorf("%w: websocket closed", domain.ErrSubscriptionFailed)
			}),
		tm.source.EXPECT().
			Subscribe(gomock.Any(), uint64(1005), gomock.Any()).
			DoAndReturn(deliver(t, cancel, rawEvent(1006, 0))),
	)

	err := tm.emitter(emitter.Config{StartBlock: 1000, CursorSaveFreq: 100}).Run(ctx)
	assert.Equal(t, context.Canceled, err)
}

func TestEmitter_Run_PublishFailureRedelivers(t *testing.T) {
	tm := setupTestEmitter(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	event := rawEvent(1000, 0)
	publishErr := errors.New("no responders")

	tm.cursors.EXPECT().GetBlockCursor(gomock.Any(), domain.CHAIN_ETHEREUM).Return(uint64(0), nil)
	gomock.InOrder(
		tm.source.EXPECT().
			Subscribe(gomock.Any(), uint64(1000), gomock.Any()).
			DoAndReturn(func(ctx context.Context, _ uint64, handler source.Handler) error {
				err := handler(ctx, event)
				assert.ErrorIs(t, err, publishErr)
				return err
			}),
		tm.source.EXPECT().
			Subscribe(gomock.Any(), uint64(1000), gomock.Any()).
			DoAndReturn(deliver(t, cancel, event)),
	)
	gomock.InOrder(
		tm.publisher.EXPECT().PublishEvent(gomock.Any(), event).Return(publishErr),
		tm.publisher.EXPECT().PublishEvent(gomock.Any(), event).Return(nil),
	)

	err := tm.emitter(emitter.Config{StartBlock: 1000, CursorSaveFreq: 100}).Run(ctx)
	assert.Equal(t, context.Canceled, err)
}

func TestEmitter_Run_SourceExhausted(t *testing.T) {
	tm := setupTestEmitter(t)

	tm.cursors.EXPECT().GetBlockCursor(gomock.Any(), domain.CHAIN_ETHEREUM).Return(uint64(0), nil)
	tm.source.EXPECT().
		Subscribe(gomock.Any(), uint64(1), gomock.Any()).
		DoAndReturn(func(ctx context.Context, _ uint64, handler source.Handler) error {
			require.NoError(t, handler(ctx, rawEvent(1, 0)))
			require.NoError(t, handler(ctx, rawEvent(2, 0)))
			return nil
		})
	tm.publisher.EXPECT().PublishEvent(gomock.Any(), gomock.Any()).Return(nil).Times(2)
	tm.cursors.EXPECT().SetBlockCursor(gomock.Any(), domain.CHAIN_ETHEREUM, uint64(1)).Return(nil)

	err := tm.emitter(emitter.Config{StartBlock: 1, CursorSaveFreq: 100}).Run(context.Background())
	assert.NoError(t, err)
}

func TestEmitter_Run_GetBlockCursorError(t *testing.T) {
	tm := setupTestEmitter(t)

	tm.cursors.EXPECT().GetBlockCursor(gomock.Any(), domain.CHAIN_ETHEREUM).Return(uint64(0), assert.AnError)

	err := tm.emitter(emitter.Config{}).Run(context.Background())
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "failed to get block cursor")
}

func TestEmitter_Run_GetLatestBlockError(t *testing.T) {
	tm := setupTestEmitter(t)

	tm.cursors.EXPECT().GetBlockCursor(gomock.Any(), domain.CHAIN_ETHEREUM).Return(uint64(0), nil)
	tm.source.EXPECT().LatestBlock(gomock.Any()).Return(uint64(0), assert.AnError)

	err := tm.emitter(emitter.Config{}).Run(context.Background())
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "failed to get latest block number")
}

func TestEmitter_Run_GivesUp(t *testing.T) {
	tm := setupTestEmitter(t)

	tm.cursors.EXPECT().GetBlockCursor(gomock.Any(), domain.CHAIN_ETHEREUM).Return(uint64(0), nil)
	tm.source.EXPECT().Subscribe(gomock.Any(), uint64(1000), gomock.Any()).Return(domain.ErrSubscriptionFailed).MinTimes(1)

	e := emitter.NewEmitter(tm.source, tm.publisher, tm.cursors, emitter.Config{
		Chain:                domain.CHAIN_ETHEREUM,
		StartBlock:           1000,
		RetryInitialInterval: time.Millisecond,
		RetryMaxInterval:     time.Millisecond,
		RetryMaxElapsedTime:  20 * time.Millisecond,
	}, tm.clock)

	err := e.Run(context.Background())
	assert.ErrorIs(t, err, domain.ErrSubscriptionFailed)
}

func TestEmitter_Close(t *testing.T) {
	tm := setupTestEmitter(t)
	tm.source.EXPECT().Close()

	tm.emitter(emitter.Config{}).Close()
}
