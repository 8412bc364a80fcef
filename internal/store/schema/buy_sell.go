package schema

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/feral-file/ff-marketplace/internal/domain"
)

// BuySell represents the buy_sells table - a fixed-price sale of an artwork
type BuySell struct {
	// ID is the internal database primary key
	ID int64 `gorm:"column:id;primaryKey;autoIncrement"`
	// Chain is the chain the sale contract runs on
	Chain string `gorm:"column:chain;not null;type:text;uniqueIndex:idx_buy_sells_chain_contract_sale_id,priority:1"`
	// ContractSaleID is the sale id assigned by the auction contract
	ContractSaleID string `gorm:"column:contract_sale_id;not null;type:text;uniqueIndex:idx_buy_sells_chain_contract_sale_id,priority:2"`
	// ArtworkID references the artwork on sale
	ArtworkID int64 `gorm:"column:artwork_id;not null;index"`
	// OwnerID references the seller
	OwnerID int64 `gorm:"column:owner_id;not null;index"`
	// BuyerID references the buyer (nil until completed)
	BuyerID *int64 `gorm:"column:buyer_id;index"`
	// Price is the listing price
	Price decimal.Decimal `gorm:"column:price;type:decimal(36,18);not null"`
	// Status is OPEN until the sale is cancelled or completed
	Status domain.SaleStatus `gorm:"column:status;not null;type:text;default:'OPEN';index"`
	// CreatedAt is the timestamp when the sale was recorded
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	// UpdatedAt is the timestamp when the sale was last updated
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`

	// Associations
	Artwork *Artwork `gorm:"foreignKey:ArtworkID"`
}

// TableName specifies the table name for the BuySell model
func (BuySell) TableName() string {
	return "buy_sells"
}
