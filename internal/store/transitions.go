package store

import (
	"context"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/feral-file/ff-marketplace/internal/domain"
	"github.com/feral-file/ff-marketplace/internal/store/schema"
)

// releaseArtwork returns the artwork column set that clears every escrow reference
func releaseArtwork(ownerID int64) map[string]any {
	return map[string]any{
		"owner_id":            ownerID,
		"auction_id":          nil,
		"sale_id":             nil,
		"is_auction_open":     false,
		"open_for_sale":       false,
		"auction_mint_status": nil,
	}
}

func lockedArtwork(tx *gorm.DB, artworkID int64) (*schema.Artwork, error) {
	var artwork schema.Artwork
	found, err := first(tx.Clauses(clause.Locking{Strength: "UPDATE"}).Where("id = ?", artworkID), &artwork)
	if err != nil {
		return nil, fmt.Errorf("failed to get artwork: %w", err)
	}
	if !found {
		return nil, domain.ErrArtworkNotFound
	}
	return &artwork, nil
}

func auctionByContractID(tx *gorm.DB, chain, contractAucID string) (*schema.Auction, error) {
	var auction schema.Auction
	found, err := first(tx.Where("chain = ? AND contract_auc_id = ?", chain, contractAucID), &auction)
	if err != nil {
		return nil, fmt.Errorf("failed to get auction: %w", err)
	}
	if !found {
		return nil, domain.ErrAuctionNotFound
	}
	return &auction, nil
}

func saleByContractID(tx *gorm.DB, chain, contractSaleID string) (*schema.BuySell, error) {
	var sale schema.BuySell
	found, err := first(tx.Where("chain = ? AND contract_sale_id = ?", chain, contractSaleID), &sale)
	if err != nil {
		return nil, fmt.Errorf("failed to get sale: %w", err)
	}
	if !found {
		return nil, domain.ErrSaleNotFound
	}
	return &sale, nil
}

// updateArtwork applies values only when the artwork still matches the condition.
// A zero row count means a concurrent writer changed the artwork first.
func updateArtwork(tx *gorm.DB, artworkID int64, condition string, values map[string]any, args ...any) error {
	query := tx.Model(&schema.Artwork{}).Where("id = ?", artworkID)
	if condition != "" {
		query = query.Where(condition, args...)
	}
	res := query.Updates(values)
	if res.Error != nil {
		return fmt.Errorf("failed to update artwork: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: artwork %d changed concurrently", domain.ErrInvariantViolation, artworkID)
	}
	return nil
}

// SetCollectionAddress records the deployed contract address of a collection
func (s *pgStore) SetCollectionAddress(ctx context.Context, collectionID int64, address string) error {
	address = domain.NormalizeAddress(address)

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var collection schema.Collection
		found, err := first(tx.Where("id = ?", collectionID), &collection)
		if err != nil {
			return fmt.Errorf("failed to get collection: %w", err)
		}
		if !found {
			return domain.ErrCollectionNotFound
		}

		if collection.ContractAddress != nil {
			if *collection.ContractAddress == address {
				return fmt.Errorf("%w: collection %d already deployed", domain.ErrAlreadyApplied, collectionID)
			}
			return fmt.Errorf("%w: collection %d already deployed at %s", domain.ErrInvariantViolation, collectionID, *collection.ContractAddress)
		}

		if err := tx.Model(&schema.Collection{}).
			Where("id = ? AND contract_address IS NULL", collectionID).
			Update("contract_address", address).Error; err != nil {
			return fmt.Errorf("failed to update collection address: %w", err)
		}

		return nil
	})
}

// AssignTokenID records the minted token id of an artwork
func (s *pgStore) AssignTokenID(ctx context.Context, input AssignTokenIDInput) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		artwork, err := lockedArtwork(tx, input.ArtworkID)
		if err != nil {
			return err
		}

		if artwork.TokenID != nil {
			if *artwork.TokenID == input.TokenID {
				return fmt.Errorf("%w: artwork %d already minted", domain.ErrAlreadyApplied, artwork.ID)
			}
			return fmt.Errorf("%w: artwork %d already minted as token %s", domain.ErrInvariantViolation, artwork.ID, *artwork.TokenID)
		}

		values := map[string]any{
			"token_id":            input.TokenID,
			"auction_mint_status": domain.MintStatusComplete,
		}
		if artwork.CollectionID == nil && input.CollectionID != nil {
			values["collection_id"] = *input.CollectionID
		}

		return updateArtwork(tx, artwork.ID, "token_id IS NULL", values)
	})
}

// TransferArtwork moves an owned artwork to another registered user
func (s *pgStore) TransferArtwork(ctx context.Context, input TransferArtworkInput) (*TransitionResult, error) {
	var result TransitionResult
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		artwork, err := lockedArtwork(tx, input.ArtworkID)
		if err != nil {
			return err
		}

		if artwork.OwnerID != nil && *artwork.OwnerID == input.ToUserID {
			return fmt.Errorf("%w: artwork %d already owned by user %d", domain.ErrAlreadyApplied, artwork.ID, input.ToUserID)
		}
		if artwork.Escrowed() || artwork.OwnerID == nil {
			return fmt.Errorf("%w: artwork %d is escrowed", domain.ErrInvariantViolation, artwork.ID)
		}

		if err := updateArtwork(tx, artwork.ID, "owner_id = ?", map[string]any{"owner_id": input.ToUserID}, *artwork.OwnerID); err != nil {
			return err
		}

		result.Artwork = artwork
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// DeleteArtwork removes an artwork that left marketplace custody, with its auctions, bids and sales
func (s *pgStore) DeleteArtwork(ctx context.Context, artworkID int64) (*DeleteArtworkResult, error) {
	var result DeleteArtworkResult
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		artwork, err := lockedArtwork(tx, artworkID)
		if err != nil {
			return err
		}
		result.Artwork = artwork

		if err := tx.Where("artwork_id = ?", artworkID).Find(&result.Auctions).Error; err != nil {
			return fmt.Errorf("failed to get auctions: %w", err)
		}
		if err := tx.Where("artwork_id = ?", artworkID).Find(&result.Sales).Error; err != nil {
			return fmt.Errorf("failed to get sales: %w", err)
		}

		for _, model := range []any{&schema.Bid{}, &schema.Auction{}, &schema.BuySell{}, &schema.FavouriteArtwork{}} {
			if err := tx.Where("artwork_id = ?", artworkID).Delete(model).Error; err != nil {
				return fmt.Errorf("failed to delete artwork dependents: %w", err)
			}
		}

		if err := tx.Delete(&schema.Artwork{}, artworkID).Error; err != nil {
			return fmt.Errorf("failed to delete artwork: %w", err)
		}

		return nil
	})
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// OpenAuction creates an auction and escrows the artwork.
// The artwork keeps its listed price until the auction is claimed.
func (s *pgStore) OpenAuction(ctx context.Context, input OpenAuctionInput) (*TransitionResult, error) {
	var result TransitionResult
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		existing, err := auctionByContractID(tx, input.Chain, input.ContractAucID)
		if err == nil {
			return fmt.Errorf("%w: auction %s already recorded as %d", domain.ErrAlreadyApplied, input.ContractAucID, existing.ID)
		}
		if !domain.IsLookupError(err) {
			return err
		}

		artwork, err := lockedArtwork(tx, input.ArtworkID)
		if err != nil {
			return err
		}
		if artwork.IsAuctionOpen || artwork.AuctionID != nil {
			return fmt.Errorf("%w: artwork %d is already on auction", domain.ErrAlreadyApplied, artwork.ID)
		}
		if artwork.OpenForSale || artwork.SaleID != nil {
			return fmt.Errorf("%w: artwork %d is on sale", domain.ErrInvariantViolation, artwork.ID)
		}
		if artwork.OwnerID == nil {
			return fmt.Errorf("%w: artwork %d has no owner", domain.ErrInvariantViolation, artwork.ID)
		}

		auction := schema.Auction{
			Chain:         input.Chain,
			ContractAucID: input.ContractAucID,
			ArtworkID:     artwork.ID,
			OwnerID:       *artwork.OwnerID,
			CreatorID:     artwork.CreatorID,
			InitialPrice:  input.InitialPrice,
			EndTime:       input.EndTime,
			Status:        domain.AuctionStatusOpen,
		}
		if err := tx.Create(&auction).Error; err != nil {
			return fmt.Errorf("failed to create auction: %w", err)
		}

		if err := updateArtwork(tx, artwork.ID, "auction_id IS NULL AND sale_id IS NULL", map[string]any{
			"owner_id":            nil,
			"auction_id":          auction.ID,
			"is_auction_open":     true,
			"auction_mint_status": domain.MintStatusComplete,
		}); err != nil {
			return err
		}

		result.Artwork = artwork
		result.Auction = &auction
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// PlaceBid appends a bid to an open auction
func (s *pgStore) PlaceBid(ctx context.Context, input PlaceBidInput) (*PlaceBidResult, error) {
	var result PlaceBidResult
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		auction, err := auctionByContractID(tx, input.Chain, input.ContractAucID)
		if err != nil {
			return err
		}

		var existing schema.Bid
		found, err := first(tx.Where("event_key = ?", input.EventKey), &existing)
		if err != nil {
			return fmt.Errorf("failed to get bid: %w", err)
		}
		if found {
			return fmt.Errorf("%w: bid %s already recorded", domain.ErrAlreadyApplied, input.EventKey)
		}

		if auction.Status != domain.AuctionStatusOpen {
			return fmt.Errorf("%w: auction %s is closed", domain.ErrInvariantViolation, input.ContractAucID)
		}

		bid := schema.Bid{
			EventKey:  input.EventKey,
			AuctionID: auction.ID,
			ArtworkID: auction.ArtworkID,
			BidderID:  input.BidderID,
			OwnerID:   auction.OwnerID,
			Amount:    input.Amount,
		}
		res := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "event_key"}},
			DoNothing: true,
		}).Create(&bid)
		if res.Error != nil {
			return fmt.Errorf("failed to create bid: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("%w: bid %s already recorded", domain.ErrAlreadyApplied, input.EventKey)
		}

		if err := tx.Model(&schema.Auction{}).
			Where("id = ? AND latest_bid < ?", auction.ID, input.Amount).
			Update("latest_bid", input.Amount).Error; err != nil {
			return fmt.Errorf("failed to update latest bid: %w", err)
		}
		if input.Amount.GreaterThan(auction.LatestBid) {
			auction.LatestBid = input.Amount
		}

		result.Bid = &bid
		result.Auction = auction
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// ClaimAuctionByBidder closes an auction and hands the artwork to the winning bidder
func (s *pgStore) ClaimAuctionByBidder(ctx context.Context, input ClaimAuctionInput) (*TransitionResult, error) {
	var result TransitionResult
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		auction, err := auctionByContractID(tx, input.Chain, input.ContractAucID)
		if err != nil {
			return err
		}
		if auction.NFTClaim {
			return fmt.Errorf("%w: auction %s already claimed", domain.ErrAlreadyApplied, input.ContractAucID)
		}
		if auction.Cancelled {
			return fmt.Errorf("%w: auction %s was cancelled", domain.ErrInvariantViolation, input.ContractAucID)
		}

		artwork, err := lockedArtwork(tx, auction.ArtworkID)
		if err != nil {
			return err
		}
		if artwork.AuctionID == nil || *artwork.AuctionID != auction.ID {
			return fmt.Errorf("%w: artwork %d is not escrowed by auction %s", domain.ErrInvariantViolation, artwork.ID, input.ContractAucID)
		}

		res := tx.Model(&schema.Auction{}).
			Where("id = ? AND nft_claim = ?", auction.ID, false).
			Updates(map[string]any{
				"nft_claim":  true,
				"status":     domain.AuctionStatusClosed,
				"winner_id":  input.NewOwnerID,
				"latest_bid": input.Amount,
			})
		if res.Error != nil {
			return fmt.Errorf("failed to close auction: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("%w: auction %s already claimed", domain.ErrAlreadyApplied, input.ContractAucID)
		}

		values := releaseArtwork(input.NewOwnerID)
		values["base_price"] = artwork.Price
		values["price"] = input.Amount
		if err := updateArtwork(tx, artwork.ID, "auction_id = ?", values, auction.ID); err != nil {
			return err
		}

		auction.NFTClaim = true
		auction.Status = domain.AuctionStatusClosed
		auction.WinnerID = &input.NewOwnerID
		auction.LatestBid = input.Amount

		result.Artwork = artwork
		result.Auction = auction
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// ClaimAuctionByOwner marks the auction proceeds as claimed by the owner.
// An auction that never received a bid is closed and the artwork returns to its owner.
func (s *pgStore) ClaimAuctionByOwner(ctx context.Context, chain string, contractAucID string) (*TransitionResult, error) {
	var result TransitionResult
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		auction, err := auctionByContractID(tx, chain, contractAucID)
		if err != nil {
			return err
		}
		if auction.OwnerClaim {
			return fmt.Errorf("%w: auction %s proceeds already claimed", domain.ErrAlreadyApplied, contractAucID)
		}
		if auction.Cancelled {
			return fmt.Errorf("%w: auction %s was cancelled", domain.ErrInvariantViolation, contractAucID)
		}

		artwork, err := lockedArtwork(tx, auction.ArtworkID)
		if err != nil && !domain.IsLookupError(err) {
			return err
		}
		result.Artwork = artwork

		// Without a bid the owner is reclaiming the artwork itself
		reclaim := auction.Unsold()
		values := map[string]any{"owner_claim": true}
		if reclaim {
			values["status"] = domain.AuctionStatusClosed
		}

		res := tx.Model(&schema.Auction{}).
			Where("id = ? AND owner_claim = ?", auction.ID, false).
			Updates(values)
		if res.Error != nil {
			return fmt.Errorf("failed to mark owner claim: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("%w: auction %s proceeds already claimed", domain.ErrAlreadyApplied, contractAucID)
		}

		if reclaim && artwork != nil && artwork.AuctionID != nil && *artwork.AuctionID == auction.ID {
			if err := updateArtwork(tx, artwork.ID, "auction_id = ?", releaseArtwork(auction.OwnerID), auction.ID); err != nil {
				return err
			}
		}

		auction.OwnerClaim = true
		if reclaim {
			auction.Status = domain.AuctionStatusClosed
		}
		result.Auction = auction
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// CancelAuction closes a cancelled auction and restores the artwork to its owner
func (s *pgStore) CancelAuction(ctx context.Context, chain string, contractAucID string) (*TransitionResult, error) {
	var result TransitionResult
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		auction, err := auctionByContractID(tx, chain, contractAucID)
		if err != nil {
			return err
		}
		if auction.Cancelled {
			return fmt.Errorf("%w: auction %s already cancelled", domain.ErrAlreadyApplied, contractAucID)
		}
		if auction.NFTClaim {
			return fmt.Errorf("%w: auction %s was claimed by the winner", domain.ErrInvariantViolation, contractAucID)
		}

		artwork, err := lockedArtwork(tx, auction.ArtworkID)
		if err != nil {
			return err
		}

		res := tx.Model(&schema.Auction{}).
			Where("id = ? AND cancelled = ?", auction.ID, false).
			Updates(map[string]any{
				"cancelled": true,
				"status":    domain.AuctionStatusClosed,
			})
		if res.Error != nil {
			return fmt.Errorf("failed to cancel auction: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("%w: auction %s already cancelled", domain.ErrAlreadyApplied, contractAucID)
		}

		// The artwork may already have moved on to a newer auction or sale
		if artwork.AuctionID != nil && *artwork.AuctionID == auction.ID {
			if err := updateArtwork(tx, artwork.ID, "auction_id = ?", releaseArtwork(auction.OwnerID), auction.ID); err != nil {
				return err
			}
		}

		auction.Cancelled = true
		auction.Status = domain.AuctionStatusClosed

		result.Artwork = artwork
		result.Auction = auction
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// OpenSale creates a fixed-price sale and escrows the artwork
func (s *pgStore) OpenSale(ctx context.Context, input OpenSaleInput) (*TransitionResult, error) {
	var result TransitionResult
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		existing, err := saleByContractID(tx, input.Chain, input.ContractSaleID)
		if err == nil {
			return fmt.Errorf("%w: sale %s already recorded as %d", domain.ErrAlreadyApplied, input.ContractSaleID, existing.ID)
		}
		if !domain.IsLookupError(err) {
			return err
		}

		artwork, err := lockedArtwork(tx, input.ArtworkID)
		if err != nil {
			return err
		}
		if artwork.OpenForSale {
			return fmt.Errorf("%w: artwork %d is already on sale", domain.ErrAlreadyApplied, artwork.ID)
		}
		if artwork.IsAuctionOpen || artwork.AuctionID != nil || artwork.SaleID != nil {
			return fmt.Errorf("%w: artwork %d is escrowed by an auction", domain.ErrInvariantViolation, artwork.ID)
		}
		if artwork.OwnerID == nil {
			return fmt.Errorf("%w: artwork %d has no owner", domain.ErrInvariantViolation, artwork.ID)
		}

		sale := schema.BuySell{
			Chain:          input.Chain,
			ContractSaleID: input.ContractSaleID,
			ArtworkID:      artwork.ID,
			OwnerID:        *artwork.OwnerID,
			Price:          input.Price,
			Status:         domain.SaleStatusOpen,
		}
		if err := tx.Create(&sale).Error; err != nil {
			return fmt.Errorf("failed to create sale: %w", err)
		}

		if err := updateArtwork(tx, artwork.ID, "auction_id IS NULL AND sale_id IS NULL", map[string]any{
			"owner_id":      nil,
			"sale_id":       sale.ID,
			"open_for_sale": true,
		}); err != nil {
			return err
		}

		result.Artwork = artwork
		result.Sale = &sale
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// CancelSale cancels an open sale and restores the artwork to its owner
func (s *pgStore) CancelSale(ctx context.Context, chain string, contractSaleID string) (*TransitionResult, error) {
	var result TransitionResult
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		sale, err := saleByContractID(tx, chain, contractSaleID)
		if err != nil {
			return err
		}
		switch sale.Status {
		case domain.SaleStatusCancelled:
			return fmt.Errorf("%w: sale %s already cancelled", domain.ErrAlreadyApplied, contractSaleID)
		case domain.SaleStatusCompleted:
			return fmt.Errorf("%w: sale %s was completed", domain.ErrInvariantViolation, contractSaleID)
		}

		artwork, err := lockedArtwork(tx, sale.ArtworkID)
		if err != nil {
			return err
		}

		res := tx.Model(&schema.BuySell{}).
			Where("id = ? AND status = ?", sale.ID, domain.SaleStatusOpen).
			Update("status", domain.SaleStatusCancelled)
		if res.Error != nil {
			return fmt.Errorf("failed to cancel sale: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("%w: sale %s is no longer open", domain.ErrAlreadyApplied, contractSaleID)
		}

		if artwork.SaleID != nil && *artwork.SaleID == sale.ID {
			if err := updateArtwork(tx, artwork.ID, "sale_id = ?", releaseArtwork(sale.OwnerID), sale.ID); err != nil {
				return err
			}
		}

		sale.Status = domain.SaleStatusCancelled

		result.Artwork = artwork
		result.Sale = sale
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// CompleteSale completes an open sale and hands the artwork to the buyer
func (s *pgStore) CompleteSale(ctx context.Context, input CompleteSaleInput) (*TransitionResult, error) {
	var result TransitionResult
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		sale, err := saleByContractID(tx, input.Chain, input.ContractSaleID)
		if err != nil {
			return err
		}
		switch sale.Status {
		case domain.SaleStatusCompleted:
			return fmt.Errorf("%w: sale %s already completed", domain.ErrAlreadyApplied, input.ContractSaleID)
		case domain.SaleStatusCancelled:
			return fmt.Errorf("%w: sale %s was cancelled", domain.ErrInvariantViolation, input.ContractSaleID)
		}

		artwork, err := lockedArtwork(tx, sale.ArtworkID)
		if err != nil {
			return err
		}
		if artwork.SaleID == nil || *artwork.SaleID != sale.ID {
			return fmt.Errorf("%w: artwork %d is not escrowed by sale %s", domain.ErrInvariantViolation, artwork.ID, input.ContractSaleID)
		}

		res := tx.Model(&schema.BuySell{}).
			Where("id = ? AND status = ?", sale.ID, domain.SaleStatusOpen).
			Updates(map[string]any{
				"status":   domain.SaleStatusCompleted,
				"buyer_id": input.BuyerID,
			})
		if res.Error != nil {
			return fmt.Errorf("failed to complete sale: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("%w: sale %s is no longer open", domain.ErrAlreadyApplied, input.ContractSaleID)
		}

		values := releaseArtwork(input.BuyerID)
		values["base_price"] = artwork.Price
		values["price"] = sale.Price
		if err := updateArtwork(tx, artwork.ID, "sale_id = ?", values, sale.ID); err != nil {
			return err
		}

		sale.Status = domain.SaleStatusCompleted
		sale.BuyerID = &input.BuyerID

		result.Artwork = artwork
		result.Sale = sale
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &result, nil
}
