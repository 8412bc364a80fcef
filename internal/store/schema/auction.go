package schema

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/feral-file/ff-marketplace/internal/domain"
)

// Auction represents the auctions table - one on-chain auction of an artwork
type Auction struct {
	// ID is the internal database primary key
	ID int64 `gorm:"column:id;primaryKey;autoIncrement"`
	// Chain is the chain the auction contract runs on
	Chain string `gorm:"column:chain;not null;type:text;uniqueIndex:idx_auctions_chain_contract_auc_id,priority:1"`
	// ContractAucID is the auction id assigned by the auction contract
	ContractAucID string `gorm:"column:contract_auc_id;not null;type:text;uniqueIndex:idx_auctions_chain_contract_auc_id,priority:2"`
	// ArtworkID references the auctioned artwork
	ArtworkID int64 `gorm:"column:artwork_id;not null;index"`
	// OwnerID references the user who opened the auction
	OwnerID int64 `gorm:"column:owner_id;not null;index"`
	// CreatorID references the artwork creator
	CreatorID int64 `gorm:"column:creator_id;not null"`
	// WinnerID references the bidder who claimed the artwork
	WinnerID *int64 `gorm:"column:winner_id;index"`
	// InitialPrice is the auction start price
	InitialPrice decimal.Decimal `gorm:"column:initial_price;type:decimal(36,18);not null;default:0"`
	// LatestBid is the highest bid recorded so far
	LatestBid decimal.Decimal `gorm:"column:latest_bid;type:decimal(36,18);not null;default:0"`
	// EndTime is the auction deadline
	EndTime *time.Time `gorm:"column:end_time"`
	// Status is OPEN until a claim or a claim-back closes the auction
	Status domain.AuctionStatus `gorm:"column:status;not null;type:text;default:'OPEN';index"`
	// Cancelled is set when the owner claimed the artwork back
	Cancelled bool `gorm:"column:cancelled;not null;default:false"`
	// NFTClaim is set when the winning bidder claimed the artwork
	NFTClaim bool `gorm:"column:nft_claim;not null;default:false"`
	// OwnerClaim is set when the owner claimed the auction proceeds
	OwnerClaim bool `gorm:"column:owner_claim;not null;default:false"`
	// CreatedAt is the timestamp when the auction was recorded
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	// UpdatedAt is the timestamp when the auction was last updated
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`

	// Associations
	Artwork *Artwork `gorm:"foreignKey:ArtworkID"`
	Bids    []Bid    `gorm:"foreignKey:AuctionID"`
}

// TableName specifies the table name for the Auction model
func (Auction) TableName() string {
	return "auctions"
}

// Unsold reports whether the auction ended without a winning bid
func (a *Auction) Unsold() bool {
	return !a.NFTClaim && a.LatestBid.IsZero()
}

// Bid represents the bids table - append-only bids placed on an auction
type Bid struct {
	// ID is the internal database primary key
	ID int64 `gorm:"column:id;primaryKey;autoIncrement"`
	// EventKey is the delivery identity of the NewBid log, used to drop re-deliveries
	EventKey string `gorm:"column:event_key;not null;type:text;uniqueIndex"`
	// AuctionID references the auction the bid was placed on
	AuctionID int64 `gorm:"column:auction_id;not null;index"`
	// ArtworkID references the auctioned artwork
	ArtworkID int64 `gorm:"column:artwork_id;not null;index"`
	// BidderID references the bidding user
	BidderID int64 `gorm:"column:bidder_id;not null;index"`
	// OwnerID references the auction owner at the time of the bid
	OwnerID int64 `gorm:"column:owner_id;not null"`
	// Amount is the bid amount
	Amount decimal.Decimal `gorm:"column:amount;type:decimal(36,18);not null"`
	// CreatedAt is the timestamp when the bid was recorded
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
}

// TableName specifies the table name for the Bid model
func (Bid) TableName() string {
	return "bids"
}
