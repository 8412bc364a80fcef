package schema

import (
	"time"

	"gorm.io/datatypes"

	"github.com/feral-file/ff-marketplace/internal/domain"
)

// History represents the histories table - the append-only audit log of an artwork
type History struct {
	// ID is the internal database primary key
	ID int64 `gorm:"column:id;primaryKey;autoIncrement"`
	// ArtworkID references the artwork (kept after the artwork is deleted)
	ArtworkID *int64 `gorm:"column:artwork_id;index"`
	// OwnerID references the user the entry is about
	OwnerID *int64 `gorm:"column:owner_id"`
	// AuctionID references the related auction
	AuctionID *int64 `gorm:"column:auction_id"`
	// BidID references the related bid
	BidID *int64 `gorm:"column:bid_id"`
	// CollectionID references the related collection
	CollectionID *int64 `gorm:"column:collection_id"`
	// Type is the reason code
	Type domain.HistoryType `gorm:"column:type;not null;type:text"`
	// Message is the human readable entry
	Message string `gorm:"column:message;not null;type:text"`
	// Payload holds the event identity the entry was derived from
	Payload datatypes.JSON `gorm:"column:payload"`
	// CreatedAt is the timestamp of the entry
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime;index"`
}

// TableName specifies the table name for the History model
func (History) TableName() string {
	return "histories"
}
