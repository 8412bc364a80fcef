package schema

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"

	"github.com/feral-file/ff-marketplace/internal/domain"
)

// Transaction represents the transactions table - debits and credits of a user
type Transaction struct {
	// ID is the internal database primary key
	ID int64 `gorm:"column:id;primaryKey;autoIncrement"`
	// UserID references the user the money moved for
	UserID int64 `gorm:"column:user_id;not null;index"`
	// Type is DEBIT or CREDIT
	Type domain.TransactionType `gorm:"column:type;not null;type:text"`
	// Activity is the marketplace activity behind the transaction
	Activity domain.ActivityType `gorm:"column:activity;not null;type:text"`
	// Amount is the transferred amount
	Amount decimal.Decimal `gorm:"column:amount;type:decimal(36,18);not null"`
	// Chain is the chain the payment happened on
	Chain string `gorm:"column:chain;not null;type:text"`
	// ExtraData holds references to the auction or sale
	ExtraData datatypes.JSON `gorm:"column:extra_data"`
	// CreatedAt is the timestamp of the transaction
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
}

// TableName specifies the table name for the Transaction model
func (Transaction) TableName() string {
	return "transactions"
}
