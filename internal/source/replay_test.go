package source_test

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/feral-file/ff-marketplace/internal/adapter"
	"github.com/feral-file/ff-marketplace/internal/domain"
	"github.com/feral-file/ff-marketplace/internal/logger"
	"github.com/feral-file/ff-marketplace/internal/source"
)

func TestMain(m *testing.M) {
	if err := logger.Initialize(logger.Config{Debug: false}); err != nil {
		panic(err)
	}

	code := m.Run()
	os.Exit(code)
}

func raw(block uint64, logIndex uint, name string) *domain.RawEvent {
	return &domain.RawEvent{
		Chain:       domain.CHAIN_ETHEREUM,
		Name:        name,
		TxHash:      "0xabc",
		BlockNumber: block,
		LogIndex:    logIndex,
	}
}

func TestReplay_DeliversInOrderFromBlock(t *testing.T) {
	replay := source.NewReplay(
		raw(12, 0, "NewBid"),
		raw(10, 1, "NewAuction"),
		raw(10, 0, "Transfer"),
		raw(11, 0, "NewSale"),
	)
	require.NoError(t, replay.Connect(context.Background()))

	var names []string
	err := replay.Subscribe(context.Background(), 11, func(ctx context.Context, event *domain.RawEvent) error {
		names = append(names, event.Name)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"NewSale", "NewBid"}, names)

	latest, err := replay.LatestBlock(context.Background())
	require.NoError(t, err)
	assert.EqualValues(t, 12, latest)
}

func TestReplay_RequiresConnect(t *testing.T) {
	replay := source.NewReplay(raw(1, 0, "NewBid"))

	err := replay.Subscribe(context.Background(), 0, func(ctx context.Context, event *domain.RawEvent) error {
		return nil
	})
	assert.ErrorIs(t, err, source.ErrNotConnected)

	require.NoError(t, replay.Connect(context.Background()))
	replay.Close()
	err = replay.Subscribe(context.Background(), 0, func(ctx context.Context, event *domain.RawEvent) error {
		return nil
	})
	assert.ErrorIs(t, err, source.ErrNotConnected)
}

func TestReplay_RetriesTransientFailures(t *testing.T) {
	transient := raw(1, 0, "NewBid")
	permanent := raw(2, 0, "NewBid")
	replay := source.NewReplay(transient, permanent)
	replay.MaxAttempts = 3
	require.NoError(t, replay.Connect(context.Background()))

	calls := map[string]int{}
	err := replay.Subscribe(context.Background(), 0, func(ctx context.Context, event *domain.RawEvent) error {
		calls[event.Key()]++
		if event.BlockNumber == 1 {
			if calls[event.Key()] < 2 {
				return errors.New("connection reset")
			}
			return nil
		}
		return source.Permanent(domain.ErrAuctionNotFound)
	})
	require.NoError(t, err)

	assert.Equal(t, 2, calls[transient.Key()])
	assert.Equal(t, 1, calls[permanent.Key()])

	deliveries := replay.Deliveries()
	require.Len(t, deliveries, 3)
	assert.Error(t, deliveries[0].Err)
	assert.NoError(t, deliveries[1].Err)
	assert.True(t, source.IsPermanent(deliveries[2].Err))
	assert.ErrorIs(t, deliveries[2].Err, domain.ErrAuctionNotFound)
}

func TestReplay_StopsOnCancel(t *testing.T) {
	replay := source.NewReplay(raw(1, 0, "NewBid"), raw(2, 0, "NewBid"))
	require.NoError(t, replay.Connect(context.Background()))

	ctx, cancel := context.WithCancel(context.Background())
	delivered := 0
	err := replay.Subscribe(ctx, 0, func(ctx context.Context, event *domain.RawEvent) error {
		delivered++
		cancel()
		return nil
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, delivered)
}

func TestLoadReplay(t *testing.T) {
	input := strings.Join([]string{
		`{"chain":"ethereum","contract":"0x2222222222222222222222222222222222222222","name":"NewBid","fields":{"aucId":"115792089237316195423570985008687907853269984665640564039457584007913129639935","bid":150},"tx_hash":"0x01","block_number":5,"log_index":2}`,
		``,
		`{"chain":"polygon","name":"ClaimBack","fields":{"aucId":"3"},"tx_hash":"0x02","block_number":4,"log_index":0}`,
	}, "\n")

	replay, err := source.LoadReplay(strings.NewReader(input), adapter.NewJSON())
	require.NoError(t, err)
	require.NoError(t, replay.Connect(context.Background()))

	var events []*domain.RawEvent
	require.NoError(t, replay.Subscribe(context.Background(), 0, func(ctx context.Context, event *domain.RawEvent) error {
		events = append(events, event)
		return nil
	}))

	require.Len(t, events, 2)
	assert.Equal(t, "ClaimBack", events[0].Name)
	assert.Equal(t, "ethereum:0x01:2", events[1].Key())
	assert.Equal(t, json.Number("150"), events[1].Fields["bid"])

	_, err = source.LoadReplay(strings.NewReader("{not json"), adapter.NewJSON())
	assert.Error(t, err)
}

func TestLoadChainReplays(t *testing.T) {
	input := strings.Join([]string{
		`{"chain":"ethereum","name":"NewBid","fields":{"aucId":"1","bid":"10"},"tx_hash":"0x03","block_number":9,"log_index":0}`,
		`{"chain":"polygon","name":"ClaimBack","fields":{"aucId":"3"},"tx_hash":"0x02","block_number":4,"log_index":0}`,
		`{"chain":"ethereum","name":"NewAuction","fields":{"aucId":"1"},"tx_hash":"0x01","block_number":7,"log_index":1}`,
	}, "\n")

	replays, err := source.LoadChainReplays(strings.NewReader(input), adapter.NewJSON())
	require.NoError(t, err)
	require.Len(t, replays, 2)

	ethereum := replays[domain.CHAIN_ETHEREUM]
	require.NotNil(t, ethereum)
	require.NoError(t, ethereum.Connect(context.Background()))

	var names []string
	require.NoError(t, ethereum.Subscribe(context.Background(), 0, func(ctx context.Context, event *domain.RawEvent) error {
		names = append(names, event.Name)
		return nil
	}))
	assert.Equal(t, []string{"NewAuction", "NewBid"}, names)

	latest, err := replays[domain.CHAIN_POLYGON].LatestBlock(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(4), latest)
}

func TestPermanent(t *testing.T) {
	assert.NoError(t, source.Permanent(nil))
	assert.False(t, source.IsPermanent(errors.New("timeout")))

	err := source.Permanent(domain.ErrUserNotFound)
	assert.True(t, source.IsPermanent(err))
	assert.True(t, domain.IsLookupError(err))
}
