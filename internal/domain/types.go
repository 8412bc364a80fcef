package domain

import (
	"fmt"
	"math/big"
	"time"

	"github.com/shopspring/decimal"
)

// RawEvent is a contract event as delivered by a chain subscription: the event name
// plus its decoded return values, tagged with the chain and emitting contract.
// This is the format published to NATS.
type RawEvent struct {
	Chain       string         `json:"chain"`        // chain name, e.g. "ethereum"
	Contract    string         `json:"contract"`     // emitting contract address
	Name        string         `json:"name"`         // event name, e.g. "NewAuction"
	Fields      map[string]any `json:"fields"`       // decoded return values
	TxHash      string         `json:"tx_hash"`      // transaction hash
	BlockNumber uint64         `json:"block_number"` // block number
	LogIndex    uint           `json:"log_index"`    // log index in the block
	Timestamp   time.Time      `json:"timestamp"`    // time the event was observed
}

// Key returns the delivery identity of the event. Re-deliveries of the same log share it.
func (e *RawEvent) Key() string {
	return fmt.Sprintf("%s:%s:%d", e.Chain, e.TxHash, e.LogIndex)
}

// Kind is the canonical event kind produced by the normalizer
type Kind string

const (
	KindCollectionDeployed     Kind = "CollectionDeployed"
	KindTokenTransferred       Kind = "TokenTransferred"
	KindAuctionOpened          Kind = "AuctionOpened"
	KindBidPlaced              Kind = "BidPlaced"
	KindAuctionClaimedByBidder Kind = "AuctionClaimedByBidder"
	KindAuctionClaimedByOwner  Kind = "AuctionClaimedByOwner"
	KindAuctionCancelled       Kind = "AuctionCancelled"
	KindSaleOpened             Kind = "SaleOpened"
	KindSaleCancelled          Kind = "SaleCancelled"
	KindSaleCompleted          Kind = "SaleCompleted"
)

// Event is the canonical, chain-agnostic representation of a marketplace contract event.
// Addresses are lower-cased and monetary amounts are decimal display units.
type Event struct {
	Kind        Kind
	Chain       string
	Contract    string
	EventKey    string
	TxHash      string
	BlockNumber uint64

	// CollectionDeployed
	CollectionAddress string
	CollectionName    string

	// TokenTransferred
	From string
	To   string

	// Shared on-chain keys
	TokenID   *big.Int
	AuctionID *big.Int
	SaleID    *big.Int

	// Parties
	Owner    string
	Bidder   string
	NewOwner string

	// Amounts
	Amount decimal.Decimal
	Price  decimal.Decimal
}

// Validate checks that every field required by the event kind is present
func (e *Event) Validate() error {
	missing := func(field string) error {
		return fmt.Errorf("%w: %s requires %s", ErrInvalidEvent, e.Kind, field)
	}

	if e.Chain == "" {
		return missing("chain")
	}

	switch e.Kind {
	case KindCollectionDeployed:
		if e.CollectionAddress == "" {
			return missing("collection address")
		}
		if e.Owner == "" {
			return missing("owner")
		}
	case KindTokenTransferred:
		if e.TokenID == nil {
			return missing("token id")
		}
		if e.Contract == "" {
			return missing("contract")
		}
	case KindAuctionOpened:
		if e.AuctionID == nil {
			return missing("auction id")
		}
		if e.TokenID == nil || e.CollectionAddress == "" {
			return missing("collection address and token id")
		}
	case KindBidPlaced:
		if e.AuctionID == nil {
			return missing("auction id")
		}
		if e.Bidder == "" {
			return missing("bidder")
		}
	case KindAuctionClaimedByBidder:
		if e.AuctionID == nil {
			return missing("auction id")
		}
		if e.NewOwner == "" {
			return missing("new owner")
		}
	case KindAuctionClaimedByOwner, KindAuctionCancelled:
		if e.AuctionID == nil {
			return missing("auction id")
		}
	case KindSaleOpened:
		if e.SaleID == nil {
			return missing("sale id")
		}
		if e.TokenID == nil || e.CollectionAddress == "" {
			return missing("collection address and token id")
		}
	case KindSaleCancelled:
		if e.SaleID == nil {
			return missing("sale id")
		}
	case KindSaleCompleted:
		if e.SaleID == nil {
			return missing("sale id")
		}
		if e.NewOwner == "" {
			return missing("new owner")
		}
	default:
		return fmt.Errorf("%w: %s", ErrUnknownEvent, e.Kind)
	}

	return nil
}
