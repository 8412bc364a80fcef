package domain

// AuctionStatus represents the lifecycle status of an auction
type AuctionStatus string

const (
	AuctionStatusOpen   AuctionStatus = "OPEN"
	AuctionStatusClosed AuctionStatus = "CLOSED"
)

// SaleStatus represents the lifecycle status of a fixed-price sale
type SaleStatus string

const (
	SaleStatusOpen      SaleStatus = "OPEN"
	SaleStatusCancelled SaleStatus = "CANCELLED"
	SaleStatusCompleted SaleStatus = "COMPLETED"
)

// MintStatus represents whether an artwork's on-chain mint was confirmed
type MintStatus string

const (
	MintStatusPending  MintStatus = "PENDING"
	MintStatusComplete MintStatus = "COMPLETE"
)

// HistoryType is the reason code of a history entry
type HistoryType string

const (
	HistoryTypeArtworkCreated HistoryType = "ARTWORK_CREATED"
	HistoryTypeAuctionStarted HistoryType = "AUCTION_STARTED"
	HistoryTypeBidPlaced      HistoryType = "BID_PLACED"
	HistoryTypeOwnership      HistoryType = "OWNERSHIP"
	HistoryTypeArtworkDeleted HistoryType = "ARTWORK_DELETED"
	HistoryTypeSaleStarted    HistoryType = "SALE_STARTED"
)

// NotificationType is the kind of a user notification
type NotificationType string

const (
	NotificationTypeNewBid     NotificationType = "NEW_BID"
	NotificationTypeAuctionWin NotificationType = "AUCTION_WIN"
	NotificationTypeNFTBuy     NotificationType = "NFT_BUY"
)

// TransactionType is the direction of a user's transaction
type TransactionType string

const (
	TransactionTypeDebit  TransactionType = "DEBIT"
	TransactionTypeCredit TransactionType = "CREDIT"
)

// ActivityType is the marketplace activity that produced a transaction
type ActivityType string

const (
	ActivityTypeNFTClaim ActivityType = "NFT_CLAIM"
	ActivityTypeNFTSale  ActivityType = "NFT_SALE"
	ActivityTypeBuyOp    ActivityType = "BUY_OP"
)

// StatsUpdate is the kind of a user stats increment
type StatsUpdate string

const (
	StatsUpdateOwnedArts     StatsUpdate = "ownedArts"
	StatsUpdatePurchasedArts StatsUpdate = "purchasedArts"
	StatsUpdateSoldArts      StatsUpdate = "soldArts"
)

// ArtworkType is the media type of an artwork
type ArtworkType string

const (
	ArtworkTypeImage ArtworkType = "image"
	ArtworkTypeAudio ArtworkType = "audio"
	ArtworkTypeVideo ArtworkType = "video"
)

// IsValid checks if the artwork type is supported
func (t ArtworkType) IsValid() bool {
	return t == ArtworkTypeImage || t == ArtworkTypeAudio || t == ArtworkTypeVideo
}
