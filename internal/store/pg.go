package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/feral-file/ff-marketplace/internal/domain"
	"github.com/feral-file/ff-marketplace/internal/store/schema"
)

type pgStore struct {
	db *gorm.DB
}

// NewPGStore creates a new store on top of a gorm connection.
// Production runs on PostgreSQL; the queries stay portable so tests can run on SQLite.
func NewPGStore(db *gorm.DB) Store {
	return &pgStore{db: db}
}

// Models lists every table managed by the store, in dependency order
func Models() []any {
	return []any{
		&schema.User{},
		&schema.Stats{},
		&schema.UserFollow{},
		&schema.Collection{},
		&schema.Artwork{},
		&schema.FavouriteArtwork{},
		&schema.Auction{},
		&schema.Bid{},
		&schema.BuySell{},
		&schema.History{},
		&schema.Notification{},
		&schema.Transaction{},
		&schema.KeyValueStore{},
	}
}

// Migrate creates or updates every table
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(Models()...); err != nil {
		return fmt.Errorf("failed to migrate schema: %w", err)
	}
	return nil
}

// ConfigureConnectionPool configures the connection pool settings for a GORM database connection.
// If any of the pool settings are 0, defaults are used:
//   - MaxOpenConns: 20
//   - MaxIdleConns: 5
//   - ConnMaxLifetime: 5 minutes
//   - ConnMaxIdleTime: 10 minutes
func ConfigureConnectionPool(db *gorm.DB, maxOpenConns, maxIdleConns int, connMaxLifetime, connMaxIdleTime time.Duration) error {
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	if maxOpenConns == 0 {
		maxOpenConns = 20
	}
	if maxIdleConns == 0 {
		maxIdleConns = 5
	}
	if connMaxLifetime == 0 {
		connMaxLifetime = 5 * time.Minute
	}
	if connMaxIdleTime == 0 {
		connMaxIdleTime = 10 * time.Minute
	}
	maxIdleConns = min(maxIdleConns, maxOpenConns)

	sqlDB.SetMaxOpenConns(maxOpenConns)
	sqlDB.SetMaxIdleConns(maxIdleConns)
	sqlDB.SetConnMaxLifetime(connMaxLifetime)
	sqlDB.SetConnMaxIdleTime(connMaxIdleTime)

	return nil
}

// first runs the query into dest and maps a missing row to (false, nil)
func first(query *gorm.DB, dest any) (bool, error) {
	err := query.First(dest).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// GetUserByID retrieves a user by internal id
func (s *pgStore) GetUserByID(ctx context.Context, id int64) (*schema.User, error) {
	var user schema.User
	found, err := first(s.db.WithContext(ctx).Where("id = ?", id), &user)
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	if !found {
		return nil, nil
	}
	return &user, nil
}

// GetUserByAddress retrieves a user by wallet address
func (s *pgStore) GetUserByAddress(ctx context.Context, address string) (*schema.User, error) {
	address = domain.NormalizeAddress(address)
	if address == "" {
		return nil, nil
	}

	var user schema.User
	found, err := first(s.db.WithContext(ctx).Where("address = ?", address), &user)
	if err != nil {
		return nil, fmt.Errorf("failed to get user by address: %w", err)
	}
	if !found {
		return nil, nil
	}
	return &user, nil
}

// GetCollectionByAddress retrieves a deployed collection by contract address
func (s *pgStore) GetCollectionByAddress(ctx context.Context, address string) (*schema.Collection, error) {
	address = domain.NormalizeAddress(address)
	if address == "" {
		return nil, nil
	}

	var collection schema.Collection
	found, err := first(s.db.WithContext(ctx).Where("contract_address = ?", address), &collection)
	if err != nil {
		return nil, fmt.Errorf("failed to get collection by address: %w", err)
	}
	if !found {
		return nil, nil
	}
	return &collection, nil
}

// ListCollectionAddresses lists the contract addresses of the deployed collections of a chain
func (s *pgStore) ListCollectionAddresses(ctx context.Context, chain string) ([]string, error) {
	var addresses []string
	err := s.db.WithContext(ctx).
		Model(&schema.Collection{}).
		Where("chain = ? AND contract_address IS NOT NULL", chain).
		Order("id").
		Pluck("contract_address", &addresses).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list collection addresses: %w", err)
	}
	return addresses, nil
}

// GetCollectionByOwnerAndName retrieves a collection by owner and name
func (s *pgStore) GetCollectionByOwnerAndName(ctx context.Context, ownerID int64, name string) (*schema.Collection, error) {
	var collection schema.Collection
	found, err := first(s.db.WithContext(ctx).Where("owner_id = ? AND name = ?", ownerID, name).Order("id"), &collection)
	if err != nil {
		return nil, fmt.Errorf("failed to get collection by owner and name: %w", err)
	}
	if !found {
		return nil, nil
	}
	return &collection, nil
}

// GetArtworkByID retrieves an artwork by internal id
func (s *pgStore) GetArtworkByID(ctx context.Context, id int64) (*schema.Artwork, error) {
	var artwork schema.Artwork
	found, err := first(s.db.WithContext(ctx).Where("id = ?", id), &artwork)
	if err != nil {
		return nil, fmt.Errorf("failed to get artwork: %w", err)
	}
	if !found {
		return nil, nil
	}
	return &artwork, nil
}

// GetArtworkByCollectionToken retrieves an artwork by collection and token id
func (s *pgStore) GetArtworkByCollectionToken(ctx context.Context, collectionID int64, tokenID string) (*schema.Artwork, error) {
	var artwork schema.Artwork
	found, err := first(s.db.WithContext(ctx).Where("collection_id = ? AND token_id = ?", collectionID, tokenID), &artwork)
	if err != nil {
		return nil, fmt.Errorf("failed to get artwork by token: %w", err)
	}
	if !found {
		return nil, nil
	}
	return &artwork, nil
}

// GetArtworkByChainToken retrieves an artwork minted through the chain's shared mint contract,
// i.e. one whose collection has no contract of its own
func (s *pgStore) GetArtworkByChainToken(ctx context.Context, chain string, tokenID string) (*schema.Artwork, error) {
	var artwork schema.Artwork
	query := s.db.WithContext(ctx).
		Where("chain = ? AND token_id = ?", chain, tokenID).
		Where("collection_id IS NULL OR collection_id IN (?)",
			s.db.Model(&schema.Collection{}).Select("id").Where("contract_address IS NULL")).
		Order("id")
	found, err := first(query, &artwork)
	if err != nil {
		return nil, fmt.Errorf("failed to get artwork by chain token: %w", err)
	}
	if !found {
		return nil, nil
	}
	return &artwork, nil
}

// GetUnmintedArtworkByMetaURL retrieves the oldest artwork awaiting a token id for the metadata URL
func (s *pgStore) GetUnmintedArtworkByMetaURL(ctx context.Context, chain string, metaURL string) (*schema.Artwork, error) {
	var artwork schema.Artwork
	query := s.db.WithContext(ctx).
		Where("chain = ? AND meta_url = ? AND token_id IS NULL", chain, metaURL).
		Order("id")
	found, err := first(query, &artwork)
	if err != nil {
		return nil, fmt.Errorf("failed to get artwork by meta url: %w", err)
	}
	if !found {
		return nil, nil
	}
	return &artwork, nil
}

// GetAuctionByContractID retrieves an auction by its on-chain id
func (s *pgStore) GetAuctionByContractID(ctx context.Context, chain string, contractAucID string) (*schema.Auction, error) {
	var auction schema.Auction
	found, err := first(s.db.WithContext(ctx).Where("chain = ? AND contract_auc_id = ?", chain, contractAucID), &auction)
	if err != nil {
		return nil, fmt.Errorf("failed to get auction: %w", err)
	}
	if !found {
		return nil, nil
	}
	return &auction, nil
}

// GetSaleByContractID retrieves a sale by its on-chain id
func (s *pgStore) GetSaleByContractID(ctx context.Context, chain string, contractSaleID string) (*schema.BuySell, error) {
	var sale schema.BuySell
	found, err := first(s.db.WithContext(ctx).Where("chain = ? AND contract_sale_id = ?", chain, contractSaleID), &sale)
	if err != nil {
		return nil, fmt.Errorf("failed to get sale: %w", err)
	}
	if !found {
		return nil, nil
	}
	return &sale, nil
}
