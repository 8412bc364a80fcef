// Package storetest provides an in-memory SQLite store and fixtures for tests
package storetest

import (
	"fmt"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/feral-file/ff-marketplace/internal/domain"
	"github.com/feral-file/ff-marketplace/internal/store"
	"github.com/feral-file/ff-marketplace/internal/store/schema"
)

// NewDB opens a migrated in-memory SQLite database private to the test
func NewDB(t testing.TB) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	// SQLite allows a single writer; one connection keeps transactions serialized
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, store.Migrate(db))

	t.Cleanup(func() {
		_ = sqlDB.Close()
	})

	return db
}

// NewStore opens a store on a fresh in-memory database
func NewStore(t testing.TB) (store.Store, *Fixtures) {
	t.Helper()

	db := NewDB(t)
	return store.NewPGStore(db), NewFixtures(t, db)
}

// NewFixtures creates fixtures writing to db
func NewFixtures(t testing.TB, db *gorm.DB) *Fixtures {
	return &Fixtures{t: t, DB: db}
}

// Fixtures inserts rows directly, bypassing the store's transitions
type Fixtures struct {
	t  testing.TB
	DB *gorm.DB
}

// User creates a registered user
func (f *Fixtures) User(address string) *schema.User {
	f.t.Helper()

	user := &schema.User{
		Address:  address,
		UserName: address,
		Role:     "user",
	}
	require.NoError(f.t, f.DB.Create(user).Error)
	return user
}

// Collection creates a collection, deployed when address is not empty
func (f *Fixtures) Collection(owner *schema.User, chain, name, address string) *schema.Collection {
	f.t.Helper()

	collection := &schema.Collection{
		OwnerID: owner.ID,
		Name:    name,
		Symbol:  name,
		Chain:   chain,
	}
	if address != "" {
		a := domain.NormalizeAddress(address)
		collection.ContractAddress = &a
	}
	require.NoError(f.t, f.DB.Create(collection).Error)
	return collection
}

// ArtworkOptions customizes the artwork created by Fixtures.Artwork
type ArtworkOptions struct {
	Chain      string
	Creator    *schema.User
	Owner      *schema.User
	Collection *schema.Collection
	TokenID    string
	MetaURL    string
	Price      decimal.Decimal
}

// Artwork creates an artwork owned by its creator unless another owner is given
func (f *Fixtures) Artwork(opts ArtworkOptions) *schema.Artwork {
	f.t.Helper()

	if opts.Chain == "" {
		opts.Chain = domain.CHAIN_ETHEREUM
	}
	if opts.Owner == nil {
		opts.Owner = opts.Creator
	}
	if opts.MetaURL == "" {
		opts.MetaURL = "ipfs://" + uuid.NewString()
	}

	ownerID := opts.Owner.ID
	artwork := &schema.Artwork{
		Chain:       opts.Chain,
		CreatorID:   opts.Creator.ID,
		OwnerID:     &ownerID,
		Name:        "Artwork " + opts.MetaURL,
		ArtworkURL:  "https://cdn.example.com/" + opts.MetaURL,
		MetaURL:     opts.MetaURL,
		ArtworkType: domain.ArtworkTypeImage,
		Price:       opts.Price,
		BasePrice:   opts.Price,
	}
	if opts.Collection != nil {
		artwork.CollectionID = &opts.Collection.ID
	}
	if opts.TokenID != "" {
		tokenID := opts.TokenID
		artwork.TokenID = &tokenID
	}
	require.NoError(f.t, f.DB.Create(artwork).Error)
	return artwork
}

// Reload reads the current row of an artwork
func (f *Fixtures) Reload(artwork *schema.Artwork) *schema.Artwork {
	f.t.Helper()

	var current schema.Artwork
	require.NoError(f.t, f.DB.First(&current, artwork.ID).Error)
	return &current
}

// Count counts the rows of a model matching the optional condition
func (f *Fixtures) Count(model any, query string, args ...any) int64 {
	f.t.Helper()

	var count int64
	q := f.DB.Model(model)
	if query != "" {
		q = q.Where(query, args...)
	}
	require.NoError(f.t, q.Count(&count).Error)
	return count
}
