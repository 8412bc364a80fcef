package store

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/feral-file/ff-marketplace/internal/store/schema"
)

// paginate counts the rows matched by query and loads one page of them into dest
func paginate(query *gorm.DB, dest any, order string, limit int, offset int) (int64, error) {
	var total int64
	if err := query.Count(&total).Error; err != nil {
		return 0, err
	}
	if total == 0 {
		return 0, nil
	}
	if err := query.Order(order).Limit(limit).Offset(offset).Find(dest).Error; err != nil {
		return 0, err
	}
	return total, nil
}

// ListArtworks lists artworks matching the filter, newest first
func (s *pgStore) ListArtworks(ctx context.Context, filter ArtworkFilter, limit int, offset int) ([]schema.Artwork, int64, error) {
	query := s.db.WithContext(ctx).Model(&schema.Artwork{})
	if filter.ArtworkType != nil {
		query = query.Where("artwork_type = ?", *filter.ArtworkType)
	}
	if filter.IsAuctionOpen != nil {
		query = query.Where("is_auction_open = ?", *filter.IsAuctionOpen)
	}
	if filter.OpenForSale != nil {
		query = query.Where("open_for_sale = ?", *filter.OpenForSale)
	}
	if filter.CreatorID != nil {
		query = query.Where("creator_id = ?", *filter.CreatorID)
	}
	if filter.OwnerID != nil {
		query = query.Where("owner_id = ?", *filter.OwnerID)
	}
	if filter.CollectionID != nil {
		query = query.Where("collection_id = ?", *filter.CollectionID)
	}
	if filter.Genre != nil {
		query = query.Where("genre = ?", *filter.Genre)
	}

	var artworks []schema.Artwork
	total, err := paginate(query, &artworks, "created_at DESC, id DESC", limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list artworks: %w", err)
	}
	return artworks, total, nil
}

// GetArtworkWithCollection retrieves an artwork by internal id with its collection preloaded
func (s *pgStore) GetArtworkWithCollection(ctx context.Context, id int64) (*schema.Artwork, error) {
	var artwork schema.Artwork
	found, err := first(s.db.WithContext(ctx).Preload("Collection").Where("id = ?", id), &artwork)
	if err != nil {
		return nil, fmt.Errorf("failed to get artwork: %w", err)
	}
	if !found {
		return nil, nil
	}
	return &artwork, nil
}

// IncrementArtworkViews increments the view counter of an artwork and returns the new count
func (s *pgStore) IncrementArtworkViews(ctx context.Context, artworkID int64) (int64, error) {
	var views int64
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&schema.Artwork{}).
			Where("id = ?", artworkID).
			UpdateColumn("views", gorm.Expr("views + ?", 1))
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return tx.Model(&schema.Artwork{}).Where("id = ?", artworkID).Pluck("views", &views).Error
	})
	if err != nil {
		return 0, fmt.Errorf("failed to increment artwork views: %w", err)
	}
	return views, nil
}

// ListHistories lists history entries of an artwork, newest first
func (s *pgStore) ListHistories(ctx context.Context, artworkID int64, limit int, offset int) ([]schema.History, int64, error) {
	var histories []schema.History
	query := s.db.WithContext(ctx).Model(&schema.History{}).Where("artwork_id = ?", artworkID)
	total, err := paginate(query, &histories, "created_at DESC, id DESC", limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list histories: %w", err)
	}
	return histories, total, nil
}

// ListBids lists bids of an auction, highest first
func (s *pgStore) ListBids(ctx context.Context, auctionID int64, limit int, offset int) ([]schema.Bid, int64, error) {
	var bids []schema.Bid
	query := s.db.WithContext(ctx).Model(&schema.Bid{}).Where("auction_id = ?", auctionID)
	total, err := paginate(query, &bids, "amount DESC, id DESC", limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list bids: %w", err)
	}
	return bids, total, nil
}

// GetAuctionByID retrieves an auction by internal id
func (s *pgStore) GetAuctionByID(ctx context.Context, id int64) (*schema.Auction, error) {
	var auction schema.Auction
	found, err := first(s.db.WithContext(ctx).Where("id = ?", id), &auction)
	if err != nil {
		return nil, fmt.Errorf("failed to get auction: %w", err)
	}
	if !found {
		return nil, nil
	}
	return &auction, nil
}

// GetSaleByID retrieves a sale by internal id
func (s *pgStore) GetSaleByID(ctx context.Context, id int64) (*schema.BuySell, error) {
	var sale schema.BuySell
	found, err := first(s.db.WithContext(ctx).Where("id = ?", id), &sale)
	if err != nil {
		return nil, fmt.Errorf("failed to get sale: %w", err)
	}
	if !found {
		return nil, nil
	}
	return &sale, nil
}

// ListNotifications lists notifications of a user, newest first
func (s *pgStore) ListNotifications(ctx context.Context, userID int64, limit int, offset int) ([]schema.Notification, int64, error) {
	var notifications []schema.Notification
	query := s.db.WithContext(ctx).Model(&schema.Notification{}).Where("user_id = ?", userID)
	total, err := paginate(query, &notifications, "created_at DESC, id DESC", limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list notifications: %w", err)
	}
	return notifications, total, nil
}

// ListTransactions lists transactions of a user, newest first
func (s *pgStore) ListTransactions(ctx context.Context, userID int64, limit int, offset int) ([]schema.Transaction, int64, error) {
	var transactions []schema.Transaction
	query := s.db.WithContext(ctx).Model(&schema.Transaction{}).Where("user_id = ?", userID)
	total, err := paginate(query, &transactions, "created_at DESC, id DESC", limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list transactions: %w", err)
	}
	return transactions, total, nil
}

// GetStats retrieves the stats of a user
func (s *pgStore) GetStats(ctx context.Context, userID int64) (*schema.Stats, error) {
	var stats schema.Stats
	found, err := first(s.db.WithContext(ctx).Where("user_id = ?", userID), &stats)
	if err != nil {
		return nil, fmt.Errorf("failed to get stats: %w", err)
	}
	if !found {
		return nil, nil
	}
	return &stats, nil
}

// ListAuctions lists auctions matching the filter, newest first
func (s *pgStore) ListAuctions(ctx context.Context, filter AuctionFilter, limit int, offset int) ([]schema.Auction, int64, error) {
	query := s.db.WithContext(ctx).Model(&schema.Auction{})
	if filter.OwnerID != nil {
		query = query.Where("owner_id = ?", *filter.OwnerID)
	}
	if filter.WinnerID != nil {
		query = query.Where("winner_id = ?", *filter.WinnerID)
	}
	if filter.Status != nil {
		query = query.Where("status = ?", *filter.Status)
	}
	if filter.NFTClaim != nil {
		query = query.Where("nft_claim = ?", *filter.NFTClaim)
	}
	if filter.EndBefore != nil {
		query = query.Where("end_time IS NOT NULL AND end_time < ?", *filter.EndBefore)
	}

	var auctions []schema.Auction
	total, err := paginate(query, &auctions, "created_at DESC, id DESC", limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list auctions: %w", err)
	}
	return auctions, total, nil
}

// ListCollections lists collections of a user
func (s *pgStore) ListCollections(ctx context.Context, ownerID int64, limit int, offset int) ([]schema.Collection, int64, error) {
	var collections []schema.Collection
	query := s.db.WithContext(ctx).Model(&schema.Collection{}).Where("owner_id = ?", ownerID)
	total, err := paginate(query, &collections, "id ASC", limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list collections: %w", err)
	}
	return collections, total, nil
}

// ListFavouriteArtworks lists artworks a user liked, most recently liked first
func (s *pgStore) ListFavouriteArtworks(ctx context.Context, userID int64, limit int, offset int) ([]schema.Artwork, int64, error) {
	var artworks []schema.Artwork
	query := s.db.WithContext(ctx).Model(&schema.Artwork{}).
		Joins("JOIN favourite_artworks ON favourite_artworks.artwork_id = artworks.id").
		Where("favourite_artworks.user_id = ?", userID)
	total, err := paginate(query, &artworks, "favourite_artworks.created_at DESC, artworks.id DESC", limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list favourite artworks: %w", err)
	}
	return artworks, total, nil
}

// ListFollowers lists users following the given user
func (s *pgStore) ListFollowers(ctx context.Context, userID int64, limit int, offset int) ([]schema.User, int64, error) {
	var users []schema.User
	query := s.db.WithContext(ctx).Model(&schema.User{}).
		Joins("JOIN user_follows ON user_follows.follower_id = users.id").
		Where("user_follows.followee_id = ?", userID)
	total, err := paginate(query, &users, "user_follows.created_at DESC, users.id DESC", limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list followers: %w", err)
	}
	return users, total, nil
}

// ListFollowing lists users the given user follows
func (s *pgStore) ListFollowing(ctx context.Context, userID int64, limit int, offset int) ([]schema.User, int64, error) {
	var users []schema.User
	query := s.db.WithContext(ctx).Model(&schema.User{}).
		Joins("JOIN user_follows ON user_follows.followee_id = users.id").
		Where("user_follows.follower_id = ?", userID)
	total, err := paginate(query, &users, "user_follows.created_at DESC, users.id DESC", limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list following: %w", err)
	}
	return users, total, nil
}
