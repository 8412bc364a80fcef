// Package query serves the read projections of the marketplace
package query

import (
	"context"
	"fmt"

	"github.com/feral-file/ff-marketplace/internal/adapter"
	"github.com/feral-file/ff-marketplace/internal/domain"
	"github.com/feral-file/ff-marketplace/internal/store"
)

const (
	DEFAULT_LIMIT = 20
	MAX_LIMIT     = 100
)

// Page selects a window of a projection
type Page struct {
	Offset int
	Limit  int
}

// normalize applies the default limit and caps it
func (p Page) normalize() Page {
	if p.Limit <= 0 {
		p.Limit = DEFAULT_LIMIT
	}
	if p.Limit > MAX_LIMIT {
		p.Limit = MAX_LIMIT
	}
	if p.Offset < 0 {
		p.Offset = 0
	}
	return p
}

// Service defines the read operations behind the REST API.
// Missing entities are reported with the domain lookup errors.
type Service interface {
	// ListArtworks lists artworks matching the filter, newest first
	ListArtworks(ctx context.Context, filter store.ArtworkFilter, page Page) (*List[ArtworkResponse], error)
	// GetArtwork retrieves an artwork with its collection and open auction or sale
	GetArtwork(ctx context.Context, id int64) (*ArtworkResponse, error)
	// IncrementViews counts a view of an artwork and returns the new total
	IncrementViews(ctx context.Context, id int64) (int64, error)
	// ListArtworkHistory lists the history of an artwork, newest first
	ListArtworkHistory(ctx context.Context, artworkID int64, page Page) (*List[HistoryResponse], error)
	// ListAuctionBids lists the bids of an auction, highest first
	ListAuctionBids(ctx context.Context, auctionID int64, page Page) (*List[BidResponse], error)
	// ListUserNotifications lists the notifications of a user, newest first
	ListUserNotifications(ctx context.Context, userID int64, page Page) (*List[NotificationResponse], error)
	// ListUserTransactions lists the transactions of a user, newest first
	ListUserTransactions(ctx context.Context, userID int64, page Page) (*List[TransactionResponse], error)
	// GetUserStats retrieves the trading counters of a user
	GetUserStats(ctx context.Context, userID int64) (*StatsResponse, error)
	// ListWonAuctions lists auctions the user won and claimed
	ListWonAuctions(ctx context.Context, userID int64, page Page) (*List[AuctionResponse], error)
	// ListSoldAuctions lists auctions of the user whose artwork was claimed by a bidder
	ListSoldAuctions(ctx context.Context, userID int64, page Page) (*List[AuctionResponse], error)
	// ListExpiredAuctions lists open auctions of the user past their end time
	ListExpiredAuctions(ctx context.Context, userID int64, page Page) (*List[AuctionResponse], error)
	// ListCollections lists the collections of a user
	ListCollections(ctx context.Context, ownerID int64, page Page) (*List[CollectionResponse], error)
	// ListFavouriteArtworks lists artworks the user liked
	ListFavouriteArtworks(ctx context.Context, userID int64, page Page) (*List[ArtworkResponse], error)
	// ListFollowers lists users following the user
	ListFollowers(ctx context.Context, userID int64, page Page) (*List[UserResponse], error)
	// ListFollowing lists users the user follows
	ListFollowing(ctx context.Context, userID int64, page Page) (*List[UserResponse], error)
}

type service struct {
	store store.Store
	clock adapter.Clock
}

// New creates a query service
func New(st store.Store, clock adapter.Clock) Service {
	return &service{store: st, clock: clock}
}

func (s *service) ListArtworks(ctx context.Context, filter store.ArtworkFilter, page Page) (*List[ArtworkResponse], error) {
	page = page.normalize()

	artworks, total, err := s.store.ListArtworks(ctx, filter, page.Limit, page.Offset)
	if err != nil {
		return nil, err
	}
	return newList(artworks, total, MapArtworkToDTO), nil
}

func (s *service) GetArtwork(ctx context.Context, id int64) (*ArtworkResponse, error) {
	artwork, err := s.store.GetArtworkWithCollection(ctx, id)
	if err != nil {
		return nil, err
	}
	if artwork == nil {
		return nil, domain.ErrArtworkNotFound
	}

	resp := MapArtworkToDTO(artwork)

	if artwork.AuctionID != nil {
		auction, err := s.store.GetAuctionByID(ctx, *artwork.AuctionID)
		if err != nil {
			return nil, err
		}
		if auction != nil {
			a := MapAuctionToDTO(auction)
			resp.Auction = &a
		}
	}

	if artwork.SaleID != nil {
		sale, err := s.store.GetSaleByID(ctx, *artwork.SaleID)
		if err != nil {
			return nil, err
		}
		if sale != nil {
			sl := MapSaleToDTO(sale)
			resp.Sale = &sl
		}
	}

	return &resp, nil
}

func (s *service) IncrementViews(ctx context.Context, id int64) (int64, error) {
	artwork, err := s.store.GetArtworkByID(ctx, id)
	if err != nil {
		return 0, err
	}
	if artwork == nil {
		return 0, domain.ErrArtworkNotFound
	}

	return s.store.IncrementArtworkViews(ctx, id)
}

func (s *service) ListArtworkHistory(ctx context.Context, artworkID int64, page Page) (*List[HistoryResponse], error) {
	page = page.normalize()

	// History outlives deleted artworks, so the artwork is not required to exist
	histories, total, err := s.store.ListHistories(ctx, artworkID, page.Limit, page.Offset)
	if err != nil {
		return nil, err
	}
	return newList(histories, total, MapHistoryToDTO), nil
}

func (s *service) ListAuctionBids(ctx context.Context, auctionID int64, page Page) (*List[BidResponse], error) {
	page = page.normalize()

	auction, err := s.store.GetAuctionByID(ctx, auctionID)
	if err != nil {
		return nil, err
	}
	if auction == nil {
		return nil, domain.ErrAuctionNotFound
	}

	bids, total, err := s.store.ListBids(ctx, auctionID, page.Limit, page.Offset)
	if err != nil {
		return nil, err
	}
	return newList(bids, total, MapBidToDTO), nil
}

func (s *service) ListUserNotifications(ctx context.Context, userID int64, page Page) (*List[NotificationResponse], error) {
	page = page.normalize()
	if err := s.requireUser(ctx, userID); err != nil {
		return nil, err
	}

	notifications, total, err := s.store.ListNotifications(ctx, userID, page.Limit, page.Offset)
	if err != nil {
		return nil, err
	}
	return newList(notifications, total, MapNotificationToDTO), nil
}

func (s *service) ListUserTransactions(ctx context.Context, userID int64, page Page) (*List[TransactionResponse], error) {
	page = page.normalize()
	if err := s.requireUser(ctx, userID); err != nil {
		return nil, err
	}

	transactions, total, err := s.store.ListTransactions(ctx, userID, page.Limit, page.Offset)
	if err != nil {
		return nil, err
	}
	return newList(transactions, total, MapTransactionToDTO), nil
}

func (s *service) GetUserStats(ctx context.Context, userID int64) (*StatsResponse, error) {
	if err := s.requireUser(ctx, userID); err != nil {
		return nil, err
	}

	stats, err := s.store.GetStats(ctx, userID)
	if err != nil {
		return nil, err
	}

	// Users without any trade have no stats row yet
	if stats == nil {
		return &StatsResponse{UserID: userID}, nil
	}

	resp := MapStatsToDTO(stats)
	return &resp, nil
}

func (s *service) ListWonAuctions(ctx context.Context, userID int64, page Page) (*List[AuctionResponse], error) {
	claimed := true
	return s.listAuctions(ctx, userID, page, store.AuctionFilter{
		WinnerID: &userID,
		NFTClaim: &claimed,
	})
}

func (s *service) ListSoldAuctions(ctx context.Context, userID int64, page Page) (*List[AuctionResponse], error) {
	claimed := true
	return s.listAuctions(ctx, userID, page, store.AuctionFilter{
		OwnerID:  &userID,
		NFTClaim: &claimed,
	})
}

func (s *service) ListExpiredAuctions(ctx context.Context, userID int64, page Page) (*List[AuctionResponse], error) {
	status := domain.AuctionStatusOpen
	claimed := false
	now := s.clock.Now()
	return s.listAuctions(ctx, userID, page, store.AuctionFilter{
		OwnerID:   &userID,
		Status:    &status,
		NFTClaim:  &claimed,
		EndBefore: &now,
	})
}

func (s *service) listAuctions(ctx context.Context, userID int64, page Page, filter store.AuctionFilter) (*List[AuctionResponse], error) {
	page = page.normalize()
	if err := s.requireUser(ctx, userID); err != nil {
		return nil, err
	}

	auctions, total, err := s.store.ListAuctions(ctx, filter, page.Limit, page.Offset)
	if err != nil {
		return nil, err
	}
	return newList(auctions, total, MapAuctionToDTO), nil
}

func (s *service) ListCollections(ctx context.Context, ownerID int64, page Page) (*List[CollectionResponse], error) {
	page = page.normalize()
	if err := s.requireUser(ctx, ownerID); err != nil {
		return nil, err
	}

	collections, total, err := s.store.ListCollections(ctx, ownerID, page.Limit, page.Offset)
	if err != nil {
		return nil, err
	}
	return newList(collections, total, MapCollectionToDTO), nil
}

func (s *service) ListFavouriteArtworks(ctx context.Context, userID int64, page Page) (*List[ArtworkResponse], error) {
	page = page.normalize()
	if err := s.requireUser(ctx, userID); err != nil {
		return nil, err
	}

	artworks, total, err := s.store.ListFavouriteArtworks(ctx, userID, page.Limit, page.Offset)
	if err != nil {
		return nil, err
	}
	return newList(artworks, total, MapArtworkToDTO), nil
}

func (s *service) ListFollowers(ctx context.Context, userID int64, page Page) (*List[UserResponse], error) {
	page = page.normalize()
	if err := s.requireUser(ctx, userID); err != nil {
		return nil, err
	}

	users, total, err := s.store.ListFollowers(ctx, userID, page.Limit, page.Offset)
	if err != nil {
		return nil, err
	}
	return newList(users, total, MapUserToDTO), nil
}

func (s *service) ListFollowing(ctx context.Context, userID int64, page Page) (*List[UserResponse], error) {
	page = page.normalize()
	if err := s.requireUser(ctx, userID); err != nil {
		return nil, err
	}

	users, total, err := s.store.ListFollowing(ctx, userID, page.Limit, page.Offset)
	if err != nil {
		return nil, err
	}
	return newList(users, total, MapUserToDTO), nil
}

// requireUser maps an unknown user id to domain.ErrUserNotFound
func (s *service) requireUser(ctx context.Context, userID int64) error {
	user, err := s.store.GetUserByID(ctx, userID)
	if err != nil {
		return err
	}
	if user == nil {
		return fmt.Errorf("%w: id %d", domain.ErrUserNotFound, userID)
	}
	return nil
}
