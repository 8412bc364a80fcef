package schema

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/feral-file/ff-marketplace/internal/domain"
)

// Artwork represents the artworks table - the NFT being traded on the marketplace.
// OwnerID is nil exactly while the artwork is escrowed by an open auction or sale,
// and at most one of AuctionID and SaleID is set.
type Artwork struct {
	// ID is the internal database primary key
	ID int64 `gorm:"column:id;primaryKey;autoIncrement"`
	// Chain is the chain the artwork is minted on
	Chain string `gorm:"column:chain;not null;type:text;index:idx_artworks_chain_token,priority:1"`
	// CreatorID references the user who created the artwork
	CreatorID int64 `gorm:"column:creator_id;not null;index"`
	// OwnerID references the current owner (nil while escrowed)
	OwnerID *int64 `gorm:"column:owner_id;index"`
	// CollectionID references the collection the artwork is minted in
	CollectionID *int64 `gorm:"column:collection_id;uniqueIndex:idx_artworks_collection_token,priority:1"`
	// TokenID is the on-chain token id (nil until the mint is confirmed)
	TokenID *string `gorm:"column:token_id;type:text;uniqueIndex:idx_artworks_collection_token,priority:2;index:idx_artworks_chain_token,priority:2"`
	// Name is the artwork title
	Name string `gorm:"column:name;not null;type:text"`
	// Description is the artwork description
	Description *string `gorm:"column:description;type:text"`
	// ArtworkURL is the URL of the media file
	ArtworkURL string `gorm:"column:artwork_url;not null;type:text"`
	// ThumbnailURL is the URL of the preview image
	ThumbnailURL *string `gorm:"column:thumbnail_url;type:text"`
	// MetaURL is the token metadata URL, matched against tokenURI when the mint is confirmed
	MetaURL string `gorm:"column:meta_url;not null;type:text;index"`
	// ArtworkType is the media type (image, audio, video)
	ArtworkType domain.ArtworkType `gorm:"column:artwork_type;not null;type:text;default:'image'"`
	// Genre is the optional music genre of audio artworks
	Genre *string `gorm:"column:genre;type:text"`
	// IsAudioNFT marks audio artworks
	IsAudioNFT bool `gorm:"column:is_audio_nft;not null;default:false"`
	// IsAlbum marks artworks that belong to a music album
	IsAlbum bool `gorm:"column:is_album;not null;default:false"`
	// Price is the current price
	Price decimal.Decimal `gorm:"column:price;type:decimal(36,18);not null;default:0"`
	// BasePrice is the price the artwork was previously traded at
	BasePrice decimal.Decimal `gorm:"column:base_price;type:decimal(36,18);not null;default:0"`
	// IsAuctionOpen is true while an auction escrows the artwork
	IsAuctionOpen bool `gorm:"column:is_auction_open;not null;default:false"`
	// OpenForSale is true while a fixed-price sale escrows the artwork
	OpenForSale bool `gorm:"column:open_for_sale;not null;default:false"`
	// AuctionID references the open auction
	AuctionID *int64 `gorm:"column:auction_id"`
	// SaleID references the open sale
	SaleID *int64 `gorm:"column:sale_id"`
	// AuctionMintStatus tracks whether the auction-mint of the artwork is confirmed
	AuctionMintStatus *domain.MintStatus `gorm:"column:auction_mint_status;type:text"`
	// Views is the view counter
	Views int64 `gorm:"column:views;not null;default:0"`
	// NumberOfLikes is the like counter
	NumberOfLikes int64 `gorm:"column:number_of_likes;not null;default:0"`
	// CreatedAt is the timestamp when the artwork was created
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	// UpdatedAt is the timestamp when the artwork was last updated
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`

	// Associations
	Collection *Collection `gorm:"foreignKey:CollectionID"`
	Creator    *User       `gorm:"foreignKey:CreatorID"`
}

// TableName specifies the table name for the Artwork model
func (Artwork) TableName() string {
	return "artworks"
}

// Escrowed reports whether an auction or a sale currently holds the artwork
func (a *Artwork) Escrowed() bool {
	return a.AuctionID != nil || a.SaleID != nil || a.IsAuctionOpen || a.OpenForSale
}
