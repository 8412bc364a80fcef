package store

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/feral-file/ff-marketplace/internal/domain"
	"github.com/feral-file/ff-marketplace/internal/store/schema"
)

// Store defines the interface for database operations
type Store interface {
	EntityReader
	TransitionWriter
	SideEffectWriter
	QueryReader
	CursorStore
}

// EntityReader resolves entities by their on-chain keys.
// Getters return (nil, nil) when no row matches.
type EntityReader interface {
	// GetUserByID retrieves a user by internal id
	GetUserByID(ctx context.Context, id int64) (*schema.User, error)
	// GetUserByAddress retrieves a user by wallet address (case-insensitive)
	GetUserByAddress(ctx context.Context, address string) (*schema.User, error)
	// GetCollectionByAddress retrieves a deployed collection by contract address
	GetCollectionByAddress(ctx context.Context, address string) (*schema.Collection, error)
	// ListCollectionAddresses lists the contract addresses of the deployed collections of a chain
	ListCollectionAddresses(ctx context.Context, chain string) ([]string, error)
	// GetCollectionByOwnerAndName retrieves a collection by owner and name
	GetCollectionByOwnerAndName(ctx context.Context, ownerID int64, name string) (*schema.Collection, error)
	// GetArtworkByID retrieves an artwork by internal id
	GetArtworkByID(ctx context.Context, id int64) (*schema.Artwork, error)
	// GetArtworkByCollectionToken retrieves an artwork by collection and token id
	GetArtworkByCollectionToken(ctx context.Context, collectionID int64, tokenID string) (*schema.Artwork, error)
	// GetArtworkByChainToken retrieves an artwork minted through the chain's shared mint contract
	GetArtworkByChainToken(ctx context.Context, chain string, tokenID string) (*schema.Artwork, error)
	// GetUnmintedArtworkByMetaURL retrieves the artwork awaiting a token id for the given metadata URL
	GetUnmintedArtworkByMetaURL(ctx context.Context, chain string, metaURL string) (*schema.Artwork, error)
	// GetAuctionByContractID retrieves an auction by its on-chain id
	GetAuctionByContractID(ctx context.Context, chain string, contractAucID string) (*schema.Auction, error)
	// GetSaleByContractID retrieves a sale by its on-chain id
	GetSaleByContractID(ctx context.Context, chain string, contractSaleID string) (*schema.BuySell, error)
}

// TransitionWriter applies artwork state transitions. Each method runs in one database
// transaction, re-checks its guard against fresh rows and returns domain.ErrAlreadyApplied
// or domain.ErrInvariantViolation without writing when the guard does not hold.
type TransitionWriter interface {
	// SetCollectionAddress records the deployed contract address of a collection
	SetCollectionAddress(ctx context.Context, collectionID int64, address string) error
	// AssignTokenID records the minted token id of an artwork
	AssignTokenID(ctx context.Context, input AssignTokenIDInput) error
	// TransferArtwork moves an owned artwork to another registered user
	TransferArtwork(ctx context.Context, input TransferArtworkInput) (*TransitionResult, error)
	// DeleteArtwork removes an artwork that left marketplace custody, with its auctions, bids and sales
	DeleteArtwork(ctx context.Context, artworkID int64) (*DeleteArtworkResult, error)
	// OpenAuction creates an auction and escrows the artwork
	OpenAuction(ctx context.Context, input OpenAuctionInput) (*TransitionResult, error)
	// PlaceBid appends a bid to an open auction
	PlaceBid(ctx context.Context, input PlaceBidInput) (*PlaceBidResult, error)
	// ClaimAuctionByBidder closes an auction and hands the artwork to the winning bidder
	ClaimAuctionByBidder(ctx context.Context, input ClaimAuctionInput) (*TransitionResult, error)
	// ClaimAuctionByOwner marks the auction proceeds as claimed by the owner
	ClaimAuctionByOwner(ctx context.Context, chain string, contractAucID string) (*TransitionResult, error)
	// CancelAuction closes a cancelled auction and restores the artwork to its owner
	CancelAuction(ctx context.Context, chain string, contractAucID string) (*TransitionResult, error)
	// OpenSale creates a fixed-price sale and escrows the artwork
	OpenSale(ctx context.Context, input OpenSaleInput) (*TransitionResult, error)
	// CancelSale cancels an open sale and restores the artwork to its owner
	CancelSale(ctx context.Context, chain string, contractSaleID string) (*TransitionResult, error)
	// CompleteSale completes an open sale and hands the artwork to the buyer
	CompleteSale(ctx context.Context, input CompleteSaleInput) (*TransitionResult, error)
}

// SideEffectWriter persists records derived from transitions
type SideEffectWriter interface {
	// CreateHistory appends a history entry
	CreateHistory(ctx context.Context, history *schema.History) error
	// CreateNotification stores a notification
	CreateNotification(ctx context.Context, notification *schema.Notification) error
	// CreateTransaction records a debit or credit
	CreateTransaction(ctx context.Context, transaction *schema.Transaction) error
	// IncrementStats atomically increments a user's stats
	IncrementStats(ctx context.Context, input StatsIncrementInput) error
}

// QueryReader serves the read projections
type QueryReader interface {
	// ListArtworks lists artworks matching the filter
	ListArtworks(ctx context.Context, filter ArtworkFilter, limit int, offset int) ([]schema.Artwork, int64, error)
	// GetArtworkWithCollection retrieves an artwork with its collection
	GetArtworkWithCollection(ctx context.Context, id int64) (*schema.Artwork, error)
	// IncrementArtworkViews increments the view counter of an artwork
	IncrementArtworkViews(ctx context.Context, artworkID int64) (int64, error)
	// ListHistories lists history entries of an artwork, newest first
	ListHistories(ctx context.Context, artworkID int64, limit int, offset int) ([]schema.History, int64, error)
	// ListBids lists bids of an auction, highest first
	ListBids(ctx context.Context, auctionID int64, limit int, offset int) ([]schema.Bid, int64, error)
	// GetAuctionByID retrieves an auction by internal id
	GetAuctionByID(ctx context.Context, id int64) (*schema.Auction, error)
	// GetSaleByID retrieves a sale by internal id
	GetSaleByID(ctx context.Context, id int64) (*schema.BuySell, error)
	// ListNotifications lists notifications of a user, newest first
	ListNotifications(ctx context.Context, userID int64, limit int, offset int) ([]schema.Notification, int64, error)
	// ListTransactions lists transactions of a user, newest first
	ListTransactions(ctx context.Context, userID int64, limit int, offset int) ([]schema.Transaction, int64, error)
	// GetStats retrieves the stats of a user
	GetStats(ctx context.Context, userID int64) (*schema.Stats, error)
	// ListAuctions lists auctions matching the filter
	ListAuctions(ctx context.Context, filter AuctionFilter, limit int, offset int) ([]schema.Auction, int64, error)
	// ListCollections lists collections of a user
	ListCollections(ctx context.Context, ownerID int64, limit int, offset int) ([]schema.Collection, int64, error)
	// ListFavouriteArtworks lists artworks a user liked
	ListFavouriteArtworks(ctx context.Context, userID int64, limit int, offset int) ([]schema.Artwork, int64, error)
	// ListFollowers lists users following the given user
	ListFollowers(ctx context.Context, userID int64, limit int, offset int) ([]schema.User, int64, error)
	// ListFollowing lists users the given user follows
	ListFollowing(ctx context.Context, userID int64, limit int, offset int) ([]schema.User, int64, error)
}

// AssignTokenIDInput represents the input for recording a minted token id
type AssignTokenIDInput struct {
	ArtworkID    int64
	CollectionID *int64
	TokenID      string
}

// TransferArtworkInput represents a direct wallet transfer between registered users
type TransferArtworkInput struct {
	ArtworkID int64
	ToUserID  int64
}

// OpenAuctionInput represents the input for opening an auction
type OpenAuctionInput struct {
	Chain         string
	ContractAucID string
	ArtworkID     int64
	InitialPrice  decimal.Decimal
	EndTime       *time.Time
}

// PlaceBidInput represents the input for placing a bid
type PlaceBidInput struct {
	EventKey      string
	Chain         string
	ContractAucID string
	BidderID      int64
	Amount        decimal.Decimal
}

// ClaimAuctionInput represents the input for a winning bidder's claim
type ClaimAuctionInput struct {
	Chain         string
	ContractAucID string
	NewOwnerID    int64
	Amount        decimal.Decimal
}

// OpenSaleInput represents the input for opening a fixed-price sale
type OpenSaleInput struct {
	Chain          string
	ContractSaleID string
	ArtworkID      int64
	Price          decimal.Decimal
}

// CompleteSaleInput represents the input for completing a sale
type CompleteSaleInput struct {
	Chain          string
	ContractSaleID string
	BuyerID        int64
}

// TransitionResult carries the rows a transition touched.
// Artwork is the artwork as it was before the transition.
type TransitionResult struct {
	Artwork *schema.Artwork
	Auction *schema.Auction
	Sale    *schema.BuySell
}

// PlaceBidResult carries the created bid and its auction
type PlaceBidResult struct {
	Bid     *schema.Bid
	Auction *schema.Auction
}

// DeleteArtworkResult carries the rows removed with an artwork
type DeleteArtworkResult struct {
	Artwork  *schema.Artwork
	Auctions []schema.Auction
	Sales    []schema.BuySell
}

// StatsIncrementInput represents one stats update
type StatsIncrementInput struct {
	UserID int64
	Update domain.StatsUpdate
	Amount decimal.Decimal
}

// ArtworkFilter represents the filter of ListArtworks
type ArtworkFilter struct {
	ArtworkType   *domain.ArtworkType
	IsAuctionOpen *bool
	OpenForSale   *bool
	CreatorID     *int64
	OwnerID       *int64
	CollectionID  *int64
	Genre         *string
}

// AuctionFilter represents the filter of ListAuctions
type AuctionFilter struct {
	OwnerID   *int64
	WinnerID  *int64
	Status    *domain.AuctionStatus
	NFTClaim  *bool
	EndBefore *time.Time
}
