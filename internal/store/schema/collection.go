package schema

import "time"

// Collection represents the collections table - groups of artworks minted through one contract
type Collection struct {
	// ID is the internal database primary key
	ID int64 `gorm:"column:id;primaryKey;autoIncrement"`
	// OwnerID references the user owning the collection
	OwnerID int64 `gorm:"column:owner_id;not null;uniqueIndex:idx_collections_owner_symbol,priority:1;index:idx_collections_owner_name,priority:1"`
	// Name is the collection name, also used as the on-chain collection name
	Name string `gorm:"column:name;not null;type:text;index:idx_collections_owner_name,priority:2"`
	// Symbol is the token symbol, unique per owner
	Symbol string `gorm:"column:symbol;not null;type:text;uniqueIndex:idx_collections_owner_symbol,priority:2"`
	// Description is the collection description
	Description *string `gorm:"column:description;type:text"`
	// Chain is the chain the collection is deployed to
	Chain string `gorm:"column:chain;not null;type:text"`
	// ContractAddress is the lower-cased deployed contract address (nil until the chain confirms deployment)
	ContractAddress *string `gorm:"column:contract_address;type:text;index"`
	// CreatedAt is the timestamp when the collection was created
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	// UpdatedAt is the timestamp when the collection was last updated
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

// TableName specifies the table name for the Collection model
func (Collection) TableName() string {
	return "collections"
}
