package schema

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"

	"github.com/feral-file/ff-marketplace/internal/domain"
)

// Notification represents the notifications table - messages delivered to a user
type Notification struct {
	// ID is the internal database primary key
	ID int64 `gorm:"column:id;primaryKey;autoIncrement"`
	// UserID references the receiver
	UserID int64 `gorm:"column:user_id;not null;index"`
	// Type is the notification kind
	Type domain.NotificationType `gorm:"column:type;not null;type:text"`
	// Message is the human readable notification
	Message string `gorm:"column:message;not null;type:text"`
	// Amount is the bid or sale amount the notification is about
	Amount *decimal.Decimal `gorm:"column:amount;type:decimal(36,18)"`
	// ExtraData holds references to the bid, auction or sale
	ExtraData datatypes.JSON `gorm:"column:extra_data"`
	// Read is set once the user has seen the notification
	Read bool `gorm:"column:read;not null;default:false"`
	// CreatedAt is the timestamp of the notification
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
}

// TableName specifies the table name for the Notification model
func (Notification) TableName() string {
	return "notifications"
}
