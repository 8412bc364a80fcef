package schema

import (
	"time"

	"github.com/shopspring/decimal"
)

// Stats represents the stats table - per-user trading counters, only ever incremented
type Stats struct {
	// UserID is the owning user, one stats row per user
	UserID int64 `gorm:"column:user_id;primaryKey;autoIncrement:false"`
	// OwnedArts is the number of artworks currently owned
	OwnedArts int64 `gorm:"column:owned_arts;not null;default:0"`
	// PurchasedArts is the number of artworks bought or won
	PurchasedArts int64 `gorm:"column:purchased_arts;not null;default:0"`
	// SoldArts is the number of artworks sold
	SoldArts int64 `gorm:"column:sold_arts;not null;default:0"`
	// TotalPurchasesAmount is the sum of all purchase amounts
	TotalPurchasesAmount decimal.Decimal `gorm:"column:total_purchases_amount;type:decimal(36,18);not null;default:0"`
	// TotalSoldAmount is the sum of all sale amounts
	TotalSoldAmount decimal.Decimal `gorm:"column:total_sold_amount;type:decimal(36,18);not null;default:0"`
	// BiggestPurchase is the largest single purchase amount
	BiggestPurchase decimal.Decimal `gorm:"column:biggest_purchase;type:decimal(36,18);not null;default:0"`
	// UpdatedAt is the timestamp of the last increment
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

// TableName specifies the table name for the Stats model
func (Stats) TableName() string {
	return "stats"
}
