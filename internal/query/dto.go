package query

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"

	"github.com/feral-file/ff-marketplace/internal/domain"
	"github.com/feral-file/ff-marketplace/internal/store/schema"
)

// List is one page of a projection with the total number of matching rows
type List[T any] struct {
	Items []T   `json:"items"`
	Total int64 `json:"total"`
}

func newList[S any, T any](rows []S, total int64, mapper func(*S) T) *List[T] {
	items := make([]T, 0, len(rows))
	for i := range rows {
		items = append(items, mapper(&rows[i]))
	}
	return &List[T]{Items: items, Total: total}
}

// ArtworkResponse represents an artwork
type ArtworkResponse struct {
	ID                int64              `json:"id"`
	Chain             string             `json:"chain"`
	CreatorID         int64              `json:"creator_id"`
	OwnerID           *int64             `json:"owner_id"`
	CollectionID      *int64             `json:"collection_id"`
	TokenID           *string            `json:"token_id"`
	Name              string             `json:"name"`
	Description       *string            `json:"description,omitempty"`
	ArtworkURL        string             `json:"artwork_url"`
	ThumbnailURL      *string            `json:"thumbnail_url,omitempty"`
	MetaURL           string             `json:"meta_url"`
	ArtworkType       domain.ArtworkType `json:"artwork_type"`
	Genre             *string            `json:"genre,omitempty"`
	Price             decimal.Decimal    `json:"price"`
	BasePrice         decimal.Decimal    `json:"base_price"`
	IsAuctionOpen     bool               `json:"is_auction_open"`
	OpenForSale       bool               `json:"open_for_sale"`
	AuctionID         *int64             `json:"auction_id"`
	SaleID            *int64             `json:"sale_id"`
	AuctionMintStatus *domain.MintStatus `json:"auction_mint_status"`
	Views             int64              `json:"views"`
	NumberOfLikes     int64              `json:"number_of_likes"`
	CreatedAt         time.Time          `json:"created_at"`
	UpdatedAt         time.Time          `json:"updated_at"`

	// Expansions
	Collection *CollectionResponse `json:"collection,omitempty"`
	Auction    *AuctionResponse    `json:"auction,omitempty"`
	Sale       *SaleResponse       `json:"sale,omitempty"`
}

// AuctionResponse represents an auction
type AuctionResponse struct {
	ID            int64                `json:"id"`
	Chain         string               `json:"chain"`
	ContractAucID string               `json:"contract_auc_id"`
	ArtworkID     int64                `json:"artwork_id"`
	OwnerID       int64                `json:"owner_id"`
	CreatorID     int64                `json:"creator_id"`
	WinnerID      *int64               `json:"winner_id"`
	InitialPrice  decimal.Decimal      `json:"initial_price"`
	LatestBid     decimal.Decimal      `json:"latest_bid"`
	EndTime       *time.Time           `json:"end_time"`
	Status        domain.AuctionStatus `json:"status"`
	Cancelled     bool                 `json:"cancelled"`
	NFTClaim      bool                 `json:"nft_claim"`
	OwnerClaim    bool                 `json:"owner_claim"`
	CreatedAt     time.Time            `json:"created_at"`
	UpdatedAt     time.Time            `json:"updated_at"`
}

// BidResponse represents a bid on an auction
type BidResponse struct {
	ID        int64           `json:"id"`
	AuctionID int64           `json:"auction_id"`
	ArtworkID int64           `json:"artwork_id"`
	BidderID  int64           `json:"bidder_id"`
	Amount    decimal.Decimal `json:"amount"`
	CreatedAt time.Time       `json:"created_at"`
}

// SaleResponse represents a fixed-price sale
type SaleResponse struct {
	ID             int64             `json:"id"`
	Chain          string            `json:"chain"`
	ContractSaleID string            `json:"contract_sale_id"`
	ArtworkID      int64             `json:"artwork_id"`
	OwnerID        int64             `json:"owner_id"`
	BuyerID        *int64            `json:"buyer_id"`
	Price          decimal.Decimal   `json:"price"`
	Status         domain.SaleStatus `json:"status"`
	CreatedAt      time.Time         `json:"created_at"`
	UpdatedAt      time.Time         `json:"updated_at"`
}

// CollectionResponse represents a collection
type CollectionResponse struct {
	ID              int64     `json:"id"`
	OwnerID         int64     `json:"owner_id"`
	Name            string    `json:"name"`
	Symbol          string    `json:"symbol"`
	Description     *string   `json:"description,omitempty"`
	Chain           string    `json:"chain"`
	ContractAddress *string   `json:"contract_address"`
	CreatedAt       time.Time `json:"created_at"`
}

// HistoryResponse represents an artwork history entry
type HistoryResponse struct {
	ID           int64              `json:"id"`
	ArtworkID    *int64             `json:"artwork_id"`
	OwnerID      *int64             `json:"owner_id"`
	AuctionID    *int64             `json:"auction_id,omitempty"`
	BidID        *int64             `json:"bid_id,omitempty"`
	CollectionID *int64             `json:"collection_id,omitempty"`
	Type         domain.HistoryType `json:"type"`
	Message      string             `json:"message"`
	CreatedAt    time.Time          `json:"created_at"`
}

// NotificationResponse represents a user notification
type NotificationResponse struct {
	ID        int64                   `json:"id"`
	Type      domain.NotificationType `json:"type"`
	Message   string                  `json:"message"`
	Amount    *decimal.Decimal        `json:"amount,omitempty"`
	ExtraData datatypes.JSON          `json:"extra_data,omitempty"`
	Read      bool                    `json:"read"`
	CreatedAt time.Time               `json:"created_at"`
}

// TransactionResponse represents a debit or credit of a user
type TransactionResponse struct {
	ID        int64                  `json:"id"`
	Type      domain.TransactionType `json:"type"`
	Activity  domain.ActivityType    `json:"activity"`
	Amount    decimal.Decimal        `json:"amount"`
	Chain     string                 `json:"chain"`
	ExtraData datatypes.JSON         `json:"extra_data,omitempty"`
	CreatedAt time.Time              `json:"created_at"`
}

// StatsResponse represents the trading counters of a user
type StatsResponse struct {
	UserID               int64           `json:"user_id"`
	OwnedArts            int64           `json:"owned_arts"`
	PurchasedArts        int64           `json:"purchased_arts"`
	SoldArts             int64           `json:"sold_arts"`
	TotalPurchasesAmount decimal.Decimal `json:"total_purchases_amount"`
	TotalSoldAmount      decimal.Decimal `json:"total_sold_amount"`
	BiggestPurchase      decimal.Decimal `json:"biggest_purchase"`
}

// UserResponse represents the public profile of a user
type UserResponse struct {
	ID         int64     `json:"id"`
	Address    string    `json:"address"`
	UserName   string    `json:"user_name"`
	ProfilePic *string   `json:"profile_pic,omitempty"`
	Bio        *string   `json:"bio,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// MapArtworkToDTO maps a schema.Artwork to ArtworkResponse
func MapArtworkToDTO(a *schema.Artwork) ArtworkResponse {
	resp := ArtworkResponse{
		ID:                a.ID,
		Chain:             a.Chain,
		CreatorID:         a.CreatorID,
		OwnerID:           a.OwnerID,
		CollectionID:      a.CollectionID,
		TokenID:           a.TokenID,
		Name:              a.Name,
		Description:       a.Description,
		ArtworkURL:        a.ArtworkURL,
		ThumbnailURL:      a.ThumbnailURL,
		MetaURL:           a.MetaURL,
		ArtworkType:       a.ArtworkType,
		Genre:             a.Genre,
		Price:             a.Price,
		BasePrice:         a.BasePrice,
		IsAuctionOpen:     a.IsAuctionOpen,
		OpenForSale:       a.OpenForSale,
		AuctionID:         a.AuctionID,
		SaleID:            a.SaleID,
		AuctionMintStatus: a.AuctionMintStatus,
		Views:             a.Views,
		NumberOfLikes:     a.NumberOfLikes,
		CreatedAt:         a.CreatedAt,
		UpdatedAt:         a.UpdatedAt,
	}
	if a.Collection != nil {
		collection := MapCollectionToDTO(a.Collection)
		resp.Collection = &collection
	}
	return resp
}

// MapAuctionToDTO maps a schema.Auction to AuctionResponse
func MapAuctionToDTO(a *schema.Auction) AuctionResponse {
	return AuctionResponse{
		ID:            a.ID,
		Chain:         a.Chain,
		ContractAucID: a.ContractAucID,
		ArtworkID:     a.ArtworkID,
		OwnerID:       a.OwnerID,
		CreatorID:     a.CreatorID,
		WinnerID:      a.WinnerID,
		InitialPrice:  a.InitialPrice,
		LatestBid:     a.LatestBid,
		EndTime:       a.EndTime,
		Status:        a.Status,
		Cancelled:     a.Cancelled,
		NFTClaim:      a.NFTClaim,
		OwnerClaim:    a.OwnerClaim,
		CreatedAt:     a.CreatedAt,
		UpdatedAt:     a.UpdatedAt,
	}
}

// MapBidToDTO maps a schema.Bid to BidResponse
func MapBidToDTO(b *schema.Bid) BidResponse {
	return BidResponse{
		ID:        b.ID,
		AuctionID: b.AuctionID,
		ArtworkID: b.ArtworkID,
		BidderID:  b.BidderID,
		Amount:    b.Amount,
		CreatedAt: b.CreatedAt,
	}
}

// MapSaleToDTO maps a schema.BuySell to SaleResponse
func MapSaleToDTO(s *schema.BuySell) SaleResponse {
	return SaleResponse{
		ID:             s.ID,
		Chain:          s.Chain,
		ContractSaleID: s.ContractSaleID,
		ArtworkID:      s.ArtworkID,
		OwnerID:        s.OwnerID,
		BuyerID:        s.BuyerID,
		Price:          s.Price,
		Status:         s.Status,
		CreatedAt:      s.CreatedAt,
		UpdatedAt:      s.UpdatedAt,
	}
}

// MapCollectionToDTO maps a schema.Collection to CollectionResponse
func MapCollectionToDTO(c *schema.Collection) CollectionResponse {
	return CollectionResponse{
		ID:              c.ID,
		OwnerID:         c.OwnerID,
		Name:            c.Name,
		Symbol:          c.Symbol,
		Description:     c.Description,
		Chain:           c.Chain,
		ContractAddress: c.ContractAddress,
		CreatedAt:       c.CreatedAt,
	}
}

// MapHistoryToDTO maps a schema.History to HistoryResponse
func MapHistoryToDTO(h *schema.History) HistoryResponse {
	return HistoryResponse{
		ID:           h.ID,
		ArtworkID:    h.ArtworkID,
		OwnerID:      h.OwnerID,
		AuctionID:    h.AuctionID,
		BidID:        h.BidID,
		CollectionID: h.CollectionID,
		Type:         h.Type,
		Message:      h.Message,
		CreatedAt:    h.CreatedAt,
	}
}

// MapNotificationToDTO maps a schema.Notification to NotificationResponse
func MapNotificationToDTO(n *schema.Notification) NotificationResponse {
	return NotificationResponse{
		ID:        n.ID,
		Type:      n.Type,
		Message:   n.Message,
		Amount:    n.Amount,
		ExtraData: n.ExtraData,
		Read:      n.Read,
		CreatedAt: n.CreatedAt,
	}
}

// MapTransactionToDTO maps a schema.Transaction to TransactionResponse
func MapTransactionToDTO(t *schema.Transaction) TransactionResponse {
	return TransactionResponse{
		ID:        t.ID,
		Type:      t.Type,
		Activity:  t.Activity,
		Amount:    t.Amount,
		Chain:     t.Chain,
		ExtraData: t.ExtraData,
		CreatedAt: t.CreatedAt,
	}
}

// MapStatsToDTO maps a schema.Stats to StatsResponse
func MapStatsToDTO(s *schema.Stats) StatsResponse {
	return StatsResponse{
		UserID:               s.UserID,
		OwnedArts:            s.OwnedArts,
		PurchasedArts:        s.PurchasedArts,
		SoldArts:             s.SoldArts,
		TotalPurchasesAmount: s.TotalPurchasesAmount,
		TotalSoldAmount:      s.TotalSoldAmount,
		BiggestPurchase:      s.BiggestPurchase,
	}
}

// MapUserToDTO maps a schema.User to UserResponse
func MapUserToDTO(u *schema.User) UserResponse {
	return UserResponse{
		ID:         u.ID,
		Address:    u.Address,
		UserName:   u.UserName,
		ProfilePic: u.ProfilePic,
		Bio:        u.Bio,
		CreatedAt:  u.CreatedAt,
	}
}
