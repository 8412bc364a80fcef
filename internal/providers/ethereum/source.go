package ethereum

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"

	"github.com/feral-file/ff-marketplace/internal/adapter"
	"github.com/feral-file/ff-marketplace/internal/domain"
	"github.com/feral-file/ff-marketplace/internal/logger"
	"github.com/feral-file/ff-marketplace/internal/source"
)

// Config holds the configuration for an Ethereum-style chain subscription
type Config struct {
	Chain        domain.Chain
	WebSocketURL string // e.g. wss://mainnet.infura.io/ws/v3/YOUR_PROJECT_ID
	// Collections are deployed collection contracts whose Transfer events are watched
	// in addition to the mint and auction contracts
	Collections []string
	// DialTimeout bounds the retries of Connect
	DialTimeout time.Duration
}

// errWatchListChanged restarts the subscription after a new collection was deployed
var errWatchListChanged = errors.New("watch list changed")

type ethSource struct {
	config Config
	dialer adapter.EthClientDialer
	clock  adapter.Clock

	mu      sync.Mutex
	client  adapter.EthClient
	watched map[common.Address]struct{}
}

// NewSource creates an event source over the marketplace contracts of one chain
func NewSource(cfg Config, dialer adapter.EthClientDialer, clock adapter.Clock) source.EventSource {
	s := &ethSource{
		config:  cfg,
		dialer:  dialer,
		clock:   clock,
		watched: make(map[common.Address]struct{}),
	}

	for _, address := range append([]string{cfg.Chain.MintContract, cfg.Chain.AuctionContract}, cfg.Collections...) {
		if common.IsHexAddress(address) {
			s.watched[common.HexToAddress(address)] = struct{}{}
		}
	}

	return s
}

// Connect dials the websocket endpoint, retrying with exponential backoff
func (s *ethSource) Connect(ctx context.Context) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = time.Second
	b.MaxInterval = 30 * time.Second
	b.MaxElapsedTime = s.config.DialTimeout
	if b.MaxElapsedTime == 0 {
		b.MaxElapsedTime = 2 * time.Minute
	}

	var client adapter.EthClient
	operation := func() error {
		c, err := s.dialer.Dial(ctx, s.config.WebSocketURL)
		if err != nil {
			return err
		}
		client = c
		return nil
	}
	notify := func(err error, next time.Duration) {
		logger.WarnCtx(ctx, "Failed to dial chain, retrying",
			zap.String("chain", s.config.Chain.Name),
			zap.Error(err),
			zap.Duration("next_retry_in", next))
	}

	if err := backoff.RetryNotify(operation, backoff.WithContext(b, ctx), notify); err != nil {
		return fmt.Errorf("failed to dial %s: %w", s.config.Chain.Name, err)
	}

	s.mu.Lock()
	s.client = client
	s.mu.Unlock()

	logger.InfoCtx(ctx, "Connected to chain", zap.String("chain", s.config.Chain.Name))
	return nil
}

// Subscribe replays the logs from fromBlock to the head, then follows new logs.
// Permanent handler errors are logged and skipped; any other handler error ends the
// subscription so the caller can resume from its last checkpoint.
func (s *ethSource) Subscribe(ctx context.Context, fromBlock uint64, handler source.Handler) error {
	client, err := s.getClient()
	if err != nil {
		return err
	}

	for {
		next, err := s.subscribe(ctx, client, fromBlock, handler)
		if !errors.Is(err, errWatchListChanged) {
			return err
		}

		logger.InfoCtx(ctx, "Resubscribing with new collection",
			zap.String("chain", s.config.Chain.Name),
			zap.Uint64("fromBlock", next))
		fromBlock = next
	}
}

func (s *ethSource) subscribe(ctx context.Context, client adapter.EthClient, fromBlock uint64, handler source.Handler) (uint64, error) {
	query := ethereum.FilterQuery{
		Addresses: s.addresses(),
		Topics:    [][]common.Hash{eventTopics},
	}

	// Subscribe first so no log falls between the backfill and the live stream
	logs := make(chan types.Log, 128)
	sub, err := client.SubscribeFilterLogs(ctx, query, logs)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", domain.ErrSubscriptionFailed, err)
	}
	defer func() {
		logger.InfoCtx(ctx, "Unsubscribing from chain logs", zap.String("chain", s.config.Chain.Name))
		sub.Unsubscribe()
	}()

	head, err := s.LatestBlock(ctx)
	if err != nil {
		return 0, err
	}

	if fromBlock > 0 && fromBlock <= head {
		backlog, err := filterLogs(ctx, client, query, fromBlock, head)
		if err != nil {
			return 0, err
		}
		sort.SliceStable(backlog, func(i, j int) bool {
			if backlog[i].BlockNumber != backlog[j].BlockNumber {
				return backlog[i].BlockNumber < backlog[j].BlockNumber
			}
			return backlog[i].Index < backlog[j].Index
		})

		logger.InfoCtx(ctx, "Replaying chain backlog",
			zap.String("chain", s.config.Chain.Name),
			zap.Uint64("fromBlock", fromBlock),
			zap.Uint64("toBlock", head),
			zap.Int("logs", len(backlog)))

		for _, vLog := range backlog {
			if err := s.deliver(ctx, vLog, handler); err != nil {
				return vLog.BlockNumber, err
			}
		}
	}

	for {
		select {
		case <-ctx.Done():
			return 0, ctx.Err()
		case err := <-sub.Err():
			return 0, fmt.Errorf("%w: %v", domain.ErrSubscriptionFailed, err)
		case vLog := <-logs:
			if fromBlock > 0 && vLog.BlockNumber <= head {
				// Already delivered by the backlog
				continue
			}
			if err := s.deliver(ctx, vLog, handler); err != nil {
				return vLog.BlockNumber, err
			}
		}
	}
}

// deliver decodes one log and hands it to the handler
func (s *ethSource) deliver(ctx context.Context, vLog types.Log, handler source.Handler) error {
	if vLog.Removed {
		logger.WarnCtx(ctx, "Ignoring log removed by a reorg",
			zap.String("txHash", vLog.TxHash.Hex()),
			zap.Uint("logIndex", vLog.Index))
		return nil
	}

	event, err := decodeLog(s.config.Chain.Name, vLog, s.clock.Now())
	if err != nil {
		logger.ErrorCtx(ctx, err, zap.String("txHash", vLog.TxHash.Hex()), zap.Uint("logIndex", vLog.Index))
		return nil
	}
	if event == nil {
		return nil
	}

	if err := handler(ctx, event); err != nil {
		if source.IsPermanent(err) {
			logger.WarnCtx(ctx, "Dropping event", zap.String("eventKey", event.Key()), zap.Error(err))
			return nil
		}
		return fmt.Errorf("failed to handle event %s: %w", event.Key(), err)
	}

	if event.Name == EventNewCollection && s.config.Chain.IsMintContract(event.Contract) {
		if address, ok := event.Fields["CollectionAddress"].(string); ok && s.watch(address) {
			return errWatchListChanged
		}
	}

	return nil
}

// LatestBlock returns the latest block number
func (s *ethSource) LatestBlock(ctx context.Context) (uint64, error) {
	client, err := s.getClient()
	if err != nil {
		return 0, err
	}

	header, err := client.HeaderByNumber(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to get latest block: %w", err)
	}
	return header.Number.Uint64(), nil
}

// Close closes the connection
func (s *ethSource) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.client == nil {
		return
	}

	s.client.Close()
	s.client = nil
	logger.Info("Chain connection closed", zap.String("chain", s.config.Chain.Name))
}

func (s *ethSource) getClient() (adapter.EthClient, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.client == nil {
		return nil, fmt.Errorf("%w: %s is not connected", domain.ErrSubscriptionFailed, s.config.Chain.Name)
	}
	return s.client, nil
}

// watch adds a collection contract and reports whether it was new
func (s *ethSource) watch(address string) bool {
	if !common.IsHexAddress(address) {
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	a := common.HexToAddress(address)
	if _, ok := s.watched[a]; ok {
		return false
	}
	s.watched[a] = struct{}{}
	return true
}

func (s *ethSource) addresses() []common.Address {
	s.mu.Lock()
	defer s.mu.Unlock()

	addresses := make([]common.Address, 0, len(s.watched))
	for a := range s.watched {
		addresses = append(addresses, a)
	}
	sort.Slice(addresses, func(i, j int) bool {
		return addresses[i].Big().Cmp(addresses[j].Big()) < 0
	})
	return addresses
}
