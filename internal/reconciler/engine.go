package reconciler

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"go.uber.org/zap"

	"github.com/feral-file/ff-marketplace/internal/adapter"
	"github.com/feral-file/ff-marketplace/internal/dispatcher"
	"github.com/feral-file/ff-marketplace/internal/domain"
	"github.com/feral-file/ff-marketplace/internal/logger"
	"github.com/feral-file/ff-marketplace/internal/metrics"
	"github.com/feral-file/ff-marketplace/internal/store"
)

// Config holds the configuration for the reconciliation engine
type Config struct {
	// Chains are the chains the engine accepts events from
	Chains []domain.Chain
}

// Store is the part of the entity store the engine reads and mutates
type Store interface {
	store.EntityReader
	store.TransitionWriter
}

// ChainReader reads marketplace contract state of one chain. It fills in the details
// an event payload does not carry.
//
//go:generate mockgen -source=engine.go -destination=../mocks/chain_reader.go -package=mocks -mock_names=ChainReader=MockChainReader,Engine=MockEngine
type ChainReader interface {
	// AuctionList returns the on-chain state of an auction
	AuctionList(ctx context.Context, auctionID *big.Int) (*domain.AuctionInfo, error)
	// SaleList returns the on-chain state of a fixed-price sale
	SaleList(ctx context.Context, saleID *big.Int) (*domain.SaleInfo, error)
	// TokenURI returns the metadata URI of a token
	TokenURI(ctx context.Context, contract string, tokenID *big.Int) (string, error)
}

// Engine applies canonical events to the entity store
type Engine interface {
	// Apply applies one canonical event. Duplicates return an error wrapping
	// domain.ErrAlreadyApplied without mutating anything; every other error leaves the
	// store unchanged as well.
	Apply(ctx context.Context, event *domain.Event) error
}

type handlerFunc func(ctx context.Context, chain domain.Chain, event *domain.Event) ([]dispatcher.Message, error)

type engine struct {
	chains     map[string]domain.Chain
	readers    map[string]ChainReader
	store      Store
	dispatcher dispatcher.Dispatcher
	clock      adapter.Clock
	locks      *keyLock
	handlers   map[domain.Kind]handlerFunc
}

// New creates a reconciliation engine. readers is keyed by chain name and may miss chains,
// in which case events are applied from their payload alone.
func New(cfg Config, st Store, readers map[string]ChainReader, d dispatcher.Dispatcher, clock adapter.Clock) Engine {
	e := &engine{
		chains:     make(map[string]domain.Chain, len(cfg.Chains)),
		readers:    readers,
		store:      st,
		dispatcher: d,
		clock:      clock,
		locks:      newKeyLock(),
	}
	if e.readers == nil {
		e.readers = map[string]ChainReader{}
	}
	for _, c := range cfg.Chains {
		e.chains[c.Name] = c
	}

	e.handlers = map[domain.Kind]handlerFunc{
		domain.KindCollectionDeployed:     e.collectionDeployed,
		domain.KindTokenTransferred:       e.tokenTransferred,
		domain.KindAuctionOpened:          e.auctionOpened,
		domain.KindBidPlaced:              e.bidPlaced,
		domain.KindAuctionClaimedByBidder: e.auctionClaimedByBidder,
		domain.KindAuctionClaimedByOwner:  e.auctionClaimedByOwner,
		domain.KindAuctionCancelled:       e.auctionCancelled,
		domain.KindSaleOpened:             e.saleOpened,
		domain.KindSaleCancelled:          e.saleCancelled,
		domain.KindSaleCompleted:          e.saleCompleted,
	}

	return e
}

// Apply applies one canonical event
func (e *engine) Apply(ctx context.Context, event *domain.Event) (err error) {
	if event == nil {
		return fmt.Errorf("%w: nil event", domain.ErrInvalidEvent)
	}

	start := e.clock.Now()
	ctx = logger.WithFields(ctx,
		zap.String("chain", event.Chain),
		zap.String("kind", string(event.Kind)),
		zap.String("eventKey", event.EventKey),
		zap.String("txHash", event.TxHash),
	)
	defer func() {
		metrics.Pipeline().RecordEvent(event.Chain, string(event.Kind), outcome(err), e.clock.Since(start))
		e.log(ctx, event, err)
	}()

	chain, ok := e.chains[event.Chain]
	if !ok {
		return fmt.Errorf("%w: %s", domain.ErrUnknownChain, event.Chain)
	}
	if err := event.Validate(); err != nil {
		return err
	}

	handler, ok := e.handlers[event.Kind]
	if !ok {
		return fmt.Errorf("%w: %s", domain.ErrUnknownEvent, event.Kind)
	}

	msgs, err := handler(ctx, chain, event)
	if err != nil {
		return err
	}

	// Side effects only follow a committed transition
	if len(msgs) > 0 {
		report := e.dispatcher.Dispatch(ctx, msgs...)
		if !report.OK() {
			logger.WarnCtx(ctx, "Event applied with failed side effects",
				zap.Int("failures", len(report.Failures)),
				zap.Int("delivered", report.Delivered))
		}
	}

	return nil
}

// log reports the result of an event at the level its error class calls for
func (e *engine) log(ctx context.Context, event *domain.Event, err error) {
	switch {
	case err == nil:
		logger.InfoCtx(ctx, "Event applied")
	case domain.IsBenign(err):
		logger.InfoCtx(ctx, "Duplicate event ignored", zap.String("reason", err.Error()))
	case domain.IsLookupError(err):
		logger.ErrorCtx(ctx, fmt.Errorf("event references a missing entity: %w", err), zap.Any("payload", event))
	case errors.Is(err, domain.ErrInvariantViolation):
		logger.WarnCtx(ctx, "Event rejected by artwork state machine", zap.Error(err), zap.Any("payload", event))
	case errors.Is(err, domain.ErrUnknownEvent), errors.Is(err, domain.ErrUnknownChain):
		logger.WarnCtx(ctx, "Event dropped", zap.Error(err))
	default:
		logger.ErrorCtx(ctx, fmt.Errorf("failed to apply event: %w", err), zap.Any("payload", event))
	}
}

// outcome maps an Apply result onto the events_total outcome label
func outcome(err error) string {
	switch {
	case err == nil:
		return metrics.OutcomeApplied
	case domain.IsBenign(err):
		return metrics.OutcomeDuplicate
	case domain.IsLookupError(err):
		return metrics.OutcomeLookupMiss
	case errors.Is(err, domain.ErrInvariantViolation):
		return metrics.OutcomeInvariant
	case errors.Is(err, domain.ErrInvalidEvent), errors.Is(err, domain.ErrUnknownChain):
		return metrics.OutcomeInvalid
	case errors.Is(err, domain.ErrUnknownEvent):
		return metrics.OutcomeUnknown
	default:
		return metrics.OutcomeError
	}
}

func artworkKey(artworkID int64) string {
	return fmt.Sprintf("artwork:%d", artworkID)
}
