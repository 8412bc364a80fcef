package schema

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/feral-file/ff-marketplace/internal/domain"
)

// User represents the users table - marketplace accounts identified by their wallet address
type User struct {
	// ID is the internal database primary key
	ID int64 `gorm:"column:id;primaryKey;autoIncrement"`
	// Address is the lower-cased wallet address, immutable after creation
	Address string `gorm:"column:address;not null;uniqueIndex;type:text"`
	// UserName is the display name
	UserName string `gorm:"column:user_name;type:text"`
	// Email is the contact email
	Email *string `gorm:"column:email;type:text"`
	// ProfilePic is the URL of the profile picture
	ProfilePic *string `gorm:"column:profile_pic;type:text"`
	// Bio is the free-form profile description
	Bio *string `gorm:"column:bio;type:text"`
	// Role is the account role (user, admin)
	Role string `gorm:"column:role;not null;type:text;default:'user'"`
	// PlatformFee is the marketplace fee percentage charged to this user
	PlatformFee decimal.Decimal `gorm:"column:platform_fee;type:decimal(10,4);not null;default:0"`
	// Royalty is the creator royalty percentage
	Royalty decimal.Decimal `gorm:"column:royalty;type:decimal(10,4);not null;default:0"`
	// CreatedAt is the timestamp when the user registered
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	// UpdatedAt is the timestamp when the profile was last updated
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`

	// Associations
	Stats       *Stats       `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE"`
	Collections []Collection `gorm:"foreignKey:OwnerID"`
}

// TableName specifies the table name for the User model
func (User) TableName() string {
	return "users"
}

// BeforeSave keeps the stored address lower-cased so the unique index ignores case
func (u *User) BeforeSave(tx *gorm.DB) error {
	u.Address = domain.NormalizeAddress(u.Address)
	return nil
}

// UserFollow represents the user_follows table - the follower/following relation between users
type UserFollow struct {
	// FollowerID is the user who follows
	FollowerID int64 `gorm:"column:follower_id;primaryKey"`
	// FolloweeID is the user being followed
	FolloweeID int64 `gorm:"column:followee_id;primaryKey;index"`
	// CreatedAt is the timestamp when the follow happened
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
}

// TableName specifies the table name for the UserFollow model
func (UserFollow) TableName() string {
	return "user_follows"
}

// FavouriteArtwork represents the favourite_artworks table - artworks a user liked
type FavouriteArtwork struct {
	UserID    int64     `gorm:"column:user_id;primaryKey"`
	ArtworkID int64     `gorm:"column:artwork_id;primaryKey;index"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
}

// TableName specifies the table name for the FavouriteArtwork model
func (FavouriteArtwork) TableName() string {
	return "favourite_artworks"
}
