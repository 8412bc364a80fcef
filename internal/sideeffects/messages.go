package sideeffects

import (
	"github.com/shopspring/decimal"

	"github.com/feral-file/ff-marketplace/internal/dispatcher"
	"github.com/feral-file/ff-marketplace/internal/domain"
)

// Payload keys shared by the message builders and the writers
const (
	keyUserID       = "user_id"
	keyArtworkID    = "artwork_id"
	keyOwnerID      = "owner_id"
	keyAuctionID    = "auction_id"
	keyBidID        = "bid_id"
	keySaleID       = "sale_id"
	keyCollectionID = "collection_id"
	keyType         = "type"
	keyActivity     = "activity"
	keyMessage      = "message"
	keyAmount       = "amount"
	keyChain        = "chain"
	keyUpdate       = "update"
	keyEventKey     = "event_key"
)

// History describes an artwork history entry
type History struct {
	Type         domain.HistoryType
	Message      string
	ArtworkID    *int64
	OwnerID      *int64
	AuctionID    *int64
	BidID        *int64
	CollectionID *int64
	EventKey     string
}

// Notification describes a user notification
type Notification struct {
	UserID    int64
	Type      domain.NotificationType
	Message   string
	Amount    *decimal.Decimal
	ArtworkID *int64
	AuctionID *int64
	SaleID    *int64
	EventKey  string
}

// Transaction describes a debit or credit record
type Transaction struct {
	UserID    int64
	Type      domain.TransactionType
	Activity  domain.ActivityType
	Amount    decimal.Decimal
	Chain     string
	ArtworkID *int64
	AuctionID *int64
	SaleID    *int64
	EventKey  string
}

// Stats describes a stats update of a user
type Stats struct {
	UserID int64
	Update domain.StatsUpdate
	Amount decimal.Decimal
}

// HistoryMessage builds the side-effect message of a history entry
func HistoryMessage(h History) dispatcher.Message {
	return dispatcher.NewMessage(dispatcher.KindHistory, map[string]any{
		keyType:         string(h.Type),
		keyMessage:      h.Message,
		keyArtworkID:    h.ArtworkID,
		keyOwnerID:      h.OwnerID,
		keyAuctionID:    h.AuctionID,
		keyBidID:        h.BidID,
		keyCollectionID: h.CollectionID,
		keyEventKey:     h.EventKey,
	})
}

// NotificationMessage builds the side-effect message of a notification
func NotificationMessage(n Notification) dispatcher.Message {
	payload := map[string]any{
		keyUserID:    n.UserID,
		keyType:      string(n.Type),
		keyMessage:   n.Message,
		keyArtworkID: n.ArtworkID,
		keyAuctionID: n.AuctionID,
		keySaleID:    n.SaleID,
		keyEventKey:  n.EventKey,
	}
	if n.Amount != nil {
		payload[keyAmount] = *n.Amount
	}
	return dispatcher.NewMessage(dispatcher.KindNotification, payload)
}

// TransactionMessage builds the side-effect message of a transaction record
func TransactionMessage(t Transaction) dispatcher.Message {
	return dispatcher.NewMessage(dispatcher.KindTransaction, map[string]any{
		keyUserID:    t.UserID,
		keyType:      string(t.Type),
		keyActivity:  string(t.Activity),
		keyAmount:    t.Amount,
		keyChain:     t.Chain,
		keyArtworkID: t.ArtworkID,
		keyAuctionID: t.AuctionID,
		keySaleID:    t.SaleID,
		keyEventKey:  t.EventKey,
	})
}

// StatsMessage builds the side-effect message of a stats update
func StatsMessage(s Stats) dispatcher.Message {
	return dispatcher.NewMessage(dispatcher.KindStats, map[string]any{
		keyUserID: s.UserID,
		keyUpdate: string(s.Update),
		keyAmount: s.Amount,
	})
}
