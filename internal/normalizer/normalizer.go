package normalizer

import (
	"context"
	"fmt"
	"math/big"

	"go.uber.org/zap"

	"github.com/feral-file/ff-marketplace/internal/domain"
	"github.com/feral-file/ff-marketplace/internal/logger"
)

// Normalizer converts raw contract events into canonical events
//
//go:generate mockgen -source=normalizer.go -destination=../mocks/normalizer.go -package=mocks -mock_names=Normalizer=MockNormalizer
type Normalizer interface {
	// Normalize converts a raw event of the given chain into a canonical event.
	// It returns ok=false for unknown chains and unrecognized event names, which are
	// logged and dropped. An error is only returned when a recognized event carries
	// malformed fields.
	Normalize(ctx context.Context, chainName string, raw *domain.RawEvent) (event *domain.Event, ok bool, err error)
}

type normalizer struct {
	chains map[string]domain.Chain
}

// New creates a normalizer for the given chains
func New(chains []domain.Chain) Normalizer {
	n := &normalizer{chains: make(map[string]domain.Chain, len(chains))}
	for _, c := range chains {
		n.chains[c.Name] = c
	}
	return n
}

type decodeFunc func(chain domain.Chain, f fields, e *domain.Event) error

var decoders = map[string]struct {
	kind   domain.Kind
	decode decodeFunc
}{
	domain.EventNameNewCollection: {domain.KindCollectionDeployed, decodeNewCollection},
	domain.EventNameTransfer:      {domain.KindTokenTransferred, decodeTransfer},
	domain.EventNameNewAuction:    {domain.KindAuctionOpened, decodeNewAuction},
	domain.EventNameNewBid:        {domain.KindBidPlaced, decodeNewBid},
	domain.EventNameNFTClaim:      {domain.KindAuctionClaimedByBidder, decodeNFTClaim},
	domain.EventNameNFTSale:       {domain.KindAuctionClaimedByOwner, decodeNFTSale},
	domain.EventNameClaimBack:     {domain.KindAuctionCancelled, decodeAuctionID},
	domain.EventNameNewSale:       {domain.KindSaleOpened, decodeNewSale},
	domain.EventNameSaleCancelled: {domain.KindSaleCancelled, decodeSaleID},
	domain.EventNameSaleCompleted: {domain.KindSaleCompleted, decodeSaleCompleted},
}

// Normalize converts a raw event of the given chain into a canonical event
func (n *normalizer) Normalize(ctx context.Context, chainName string, raw *domain.RawEvent) (*domain.Event, bool, error) {
	if raw == nil {
		return nil, false, nil
	}

	chain, ok := n.chains[chainName]
	if !ok {
		logger.WarnCtx(ctx, "Dropping event from unknown chain",
			zap.String("chain", chainName),
			zap.String("event", raw.Name))
		return nil, false, nil
	}

	decoder, ok := decoders[raw.Name]
	if !ok {
		logger.WarnCtx(ctx, "Dropping unrecognized event",
			zap.String("chain", chainName),
			zap.String("event", raw.Name),
			zap.String("contract", raw.Contract),
			zap.Any("fields", raw.Fields))
		return nil, false, nil
	}

	event := &domain.Event{
		Kind:        decoder.kind,
		Chain:       chain.Name,
		Contract:    domain.NormalizeAddress(raw.Contract),
		EventKey:    raw.Key(),
		TxHash:      raw.TxHash,
		BlockNumber: raw.BlockNumber,
	}
	if err := decoder.decode(chain, fields(raw.Fields), event); err != nil {
		return nil, false, fmt.Errorf("%w: %s: %v", domain.ErrInvalidEvent, raw.Name, err)
	}
	if err := event.Validate(); err != nil {
		return nil, false, err
	}

	return event, true, nil
}

func decodeNewCollection(_ domain.Chain, f fields, e *domain.Event) (err error) {
	if e.CollectionAddress, err = f.address("CollectionAddress"); err != nil {
		return err
	}
	if e.Owner, err = f.address("owner"); err != nil {
		return err
	}
	e.CollectionName, err = f.string("colName")
	return err
}

func decodeTransfer(_ domain.Chain, f fields, e *domain.Event) (err error) {
	if e.From, err = f.address("from"); err != nil {
		return err
	}
	if e.To, err = f.address("to"); err != nil {
		return err
	}
	e.TokenID, err = f.bigInt("tokenId")
	return err
}

func decodeNewAuction(_ domain.Chain, f fields, e *domain.Event) (err error) {
	if e.CollectionAddress, err = f.address("colAddress"); err != nil {
		return err
	}
	if e.TokenID, err = f.bigInt("tokenId"); err != nil {
		return err
	}
	e.AuctionID, err = f.bigInt("aucId")
	return err
}

func decodeNewBid(chain domain.Chain, f fields, e *domain.Event) (err error) {
	if e.AuctionID, err = f.bigInt("aucId"); err != nil {
		return err
	}
	if e.Bidder, err = f.address("bidder"); err != nil {
		return err
	}
	bid, err := f.bigInt("bid")
	if err != nil {
		return err
	}
	e.Amount = chain.FromWei(bid)
	return nil
}

func decodeNFTClaim(chain domain.Chain, f fields, e *domain.Event) (err error) {
	if e.AuctionID, err = f.bigInt("aucId"); err != nil {
		return err
	}
	if e.NewOwner, err = f.address("newOwner"); err != nil {
		return err
	}
	// latestBid is not part of the contract event; replayed or enriched payloads may carry it
	if f.has("latestBid") {
		latestBid, err := f.bigInt("latestBid")
		if err != nil {
			return err
		}
		e.Amount = chain.FromWei(latestBid)
	}
	return nil
}

func decodeNFTSale(chain domain.Chain, f fields, e *domain.Event) (err error) {
	if e.AuctionID, err = f.bigInt("aucId"); err != nil {
		return err
	}
	if f.has("owner") {
		if e.Owner, err = f.address("owner"); err != nil {
			return err
		}
	}
	if f.has("amount") {
		amount, err := f.bigInt("amount")
		if err != nil {
			return err
		}
		e.Amount = chain.FromWei(amount)
	}
	return nil
}

func decodeAuctionID(_ domain.Chain, f fields, e *domain.Event) (err error) {
	e.AuctionID, err = f.bigInt("aucId")
	return err
}

func decodeNewSale(chain domain.Chain, f fields, e *domain.Event) (err error) {
	if e.CollectionAddress, err = f.address("colAddress"); err != nil {
		return err
	}
	if e.TokenID, err = f.bigInt("tokenId"); err != nil {
		return err
	}
	if e.SaleID, err = f.bigInt("saleId"); err != nil {
		return err
	}
	price, err := f.bigInt("price")
	if err != nil {
		return err
	}
	e.Price = chain.FromWei(price)
	return nil
}

func decodeSaleID(_ domain.Chain, f fields, e *domain.Event) (err error) {
	e.SaleID, err = f.bigInt("saleId")
	return err
}

func decodeSaleCompleted(_ domain.Chain, f fields, e *domain.Event) (err error) {
	if e.SaleID, err = f.bigInt("saleId"); err != nil {
		return err
	}
	e.NewOwner, err = f.address("newOwner")
	return err
}

// zeroIfNil keeps decoders from storing typed nil big.Int pointers
func zeroIfNil(v *big.Int) *big.Int {
	if v == nil {
		return new(big.Int)
	}
	return v
}
