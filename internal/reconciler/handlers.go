package reconciler

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/feral-file/ff-marketplace/internal/dispatcher"
	"github.com/feral-file/ff-marketplace/internal/domain"
	"github.com/feral-file/ff-marketplace/internal/logger"
	"github.com/feral-file/ff-marketplace/internal/sideeffects"
	"github.com/feral-file/ff-marketplace/internal/store"
	"github.com/feral-file/ff-marketplace/internal/store/schema"
)

// collectionDeployed records the contract address of a collection deployed by its owner
func (e *engine) collectionDeployed(ctx context.Context, chain domain.Chain, event *domain.Event) ([]dispatcher.Message, error) {
	owner, err := e.userByAddress(ctx, event.Owner)
	if err != nil {
		return nil, err
	}

	collection, err := e.store.GetCollectionByOwnerAndName(ctx, owner.ID, event.CollectionName)
	if err != nil {
		return nil, fmt.Errorf("failed to get collection: %w", err)
	}
	if collection == nil {
		return nil, fmt.Errorf("%w: %q of user %d", domain.ErrCollectionNotFound, event.CollectionName, owner.ID)
	}

	unlock := e.locks.Lock(fmt.Sprintf("collection:%d", collection.ID))
	defer unlock()

	if err := e.store.SetCollectionAddress(ctx, collection.ID, event.CollectionAddress); err != nil {
		return nil, err
	}

	return nil, nil
}

// tokenTransferred classifies a Transfer by its addresses: mint, marketplace custody
// movement, transfer between registered users, or a transfer out of the marketplace
func (e *engine) tokenTransferred(ctx context.Context, chain domain.Chain, event *domain.Event) ([]dispatcher.Message, error) {
	if domain.IsZeroAddress(event.From) {
		return e.tokenMinted(ctx, chain, event)
	}

	if chain.IsMarketplaceContract(event.From) || chain.IsMarketplaceContract(event.To) {
		logger.DebugCtx(ctx, "Ignoring marketplace custody transfer",
			zap.String("from", event.From),
			zap.String("to", event.To))
		return nil, nil
	}

	artwork, err := e.resolveArtwork(ctx, chain, event.Contract, event.TokenID)
	if err != nil {
		return nil, err
	}

	recipient, err := e.store.GetUserByAddress(ctx, event.To)
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	unlock := e.locks.Lock(artworkKey(artwork.ID))
	defer unlock()

	if recipient != nil {
		if _, err := e.store.TransferArtwork(ctx, store.TransferArtworkInput{
			ArtworkID: artwork.ID,
			ToUserID:  recipient.ID,
		}); err != nil {
			return nil, err
		}

		return []dispatcher.Message{
			sideeffects.HistoryMessage(sideeffects.History{
				Type:         domain.HistoryTypeOwnership,
				Message:      fmt.Sprintf("Transferred to %s", event.To),
				ArtworkID:    &artwork.ID,
				OwnerID:      &recipient.ID,
				CollectionID: artwork.CollectionID,
				EventKey:     event.EventKey,
			}),
		}, nil
	}

	result, err := e.store.DeleteArtwork(ctx, artwork.ID)
	if err != nil {
		return nil, err
	}

	return []dispatcher.Message{
		sideeffects.HistoryMessage(sideeffects.History{
			Type: domain.HistoryTypeArtworkDeleted,
			Message: fmt.Sprintf("Token %s of %s transferred to unregistered address %s; artwork %d removed with %d auctions and %d sales",
				event.TokenID, event.Contract, event.To, result.Artwork.ID, len(result.Auctions), len(result.Sales)),
			OwnerID:      result.Artwork.OwnerID,
			CollectionID: result.Artwork.CollectionID,
			EventKey:     event.EventKey,
		}),
	}, nil
}

// tokenMinted assigns the minted token id to the artwork whose metadata URL the token points at
func (e *engine) tokenMinted(ctx context.Context, chain domain.Chain, event *domain.Event) ([]dispatcher.Message, error) {
	existing, err := e.findArtwork(ctx, chain, event.Contract, event.TokenID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, fmt.Errorf("%w: token %s already assigned to artwork %d", domain.ErrAlreadyApplied, event.TokenID, existing.ID)
	}

	reader, ok := e.readers[chain.Name]
	if !ok {
		return nil, fmt.Errorf("%w: no chain reader to resolve token %s", domain.ErrArtworkNotFound, event.TokenID)
	}
	uri, err := reader.TokenURI(ctx, event.Contract, event.TokenID)
	if err != nil {
		return nil, fmt.Errorf("failed to read token URI: %w", err)
	}

	artwork, err := e.store.GetUnmintedArtworkByMetaURL(ctx, chain.Name, uri)
	if err != nil {
		return nil, fmt.Errorf("failed to get artwork: %w", err)
	}
	if artwork == nil {
		return nil, fmt.Errorf("%w: no unminted artwork with metadata %s", domain.ErrArtworkNotFound, uri)
	}

	var collectionID *int64
	collection, err := e.store.GetCollectionByAddress(ctx, event.Contract)
	if err != nil {
		return nil, fmt.Errorf("failed to get collection: %w", err)
	}
	if collection != nil {
		collectionID = &collection.ID
	}

	unlock := e.locks.Lock(artworkKey(artwork.ID))
	defer unlock()

	if err := e.store.AssignTokenID(ctx, store.AssignTokenIDInput{
		ArtworkID:    artwork.ID,
		CollectionID: collectionID,
		TokenID:      event.TokenID.String(),
	}); err != nil {
		return nil, err
	}

	ownerID := artwork.CreatorID
	if artwork.OwnerID != nil {
		ownerID = *artwork.OwnerID
	}
	if collectionID == nil {
		collectionID = artwork.CollectionID
	}

	return []dispatcher.Message{
		sideeffects.StatsMessage(sideeffects.Stats{
			UserID: ownerID,
			Update: domain.StatsUpdateOwnedArts,
		}),
		sideeffects.HistoryMessage(sideeffects.History{
			Type:         domain.HistoryTypeArtworkCreated,
			Message:      fmt.Sprintf("Minted as token %s", event.TokenID),
			ArtworkID:    &artwork.ID,
			OwnerID:      &ownerID,
			CollectionID: collectionID,
			EventKey:     event.EventKey,
		}),
	}, nil
}

// auctionOpened escrows the artwork into a new auction
func (e *engine) auctionOpened(ctx context.Context, chain domain.Chain, event *domain.Event) ([]dispatcher.Message, error) {
	artwork, err := e.resolveArtwork(ctx, chain, event.CollectionAddress, event.TokenID)
	if err != nil {
		return nil, err
	}

	input := store.OpenAuctionInput{
		Chain:         chain.Name,
		ContractAucID: event.AuctionID.String(),
		ArtworkID:     artwork.ID,
		InitialPrice:  artwork.Price,
	}
	if reader, ok := e.readers[chain.Name]; ok {
		info, err := reader.AuctionList(ctx, event.AuctionID)
		if err != nil {
			return nil, fmt.Errorf("failed to read auction %s: %w", event.AuctionID, err)
		}
		if info.StartPrice != nil {
			input.InitialPrice = chain.FromWei(info.StartPrice)
		}
		if !info.EndTime.IsZero() {
			endTime := info.EndTime
			input.EndTime = &endTime
		}
	}

	unlock := e.locks.Lock(artworkKey(artwork.ID))
	defer unlock()

	result, err := e.store.OpenAuction(ctx, input)
	if err != nil {
		return nil, err
	}

	return []dispatcher.Message{
		sideeffects.HistoryMessage(sideeffects.History{
			Type:         domain.HistoryTypeAuctionStarted,
			Message:      fmt.Sprintf("Auction %s started at %s", event.AuctionID, input.InitialPrice),
			ArtworkID:    &artwork.ID,
			OwnerID:      result.Artwork.OwnerID,
			AuctionID:    &result.Auction.ID,
			CollectionID: artwork.CollectionID,
			EventKey:     event.EventKey,
		}),
	}, nil
}

// bidPlaced records a bid and notifies the auction owner
func (e *engine) bidPlaced(ctx context.Context, chain domain.Chain, event *domain.Event) ([]dispatcher.Message, error) {
	auction, err := e.auctionByContractID(ctx, chain, event.AuctionID)
	if err != nil {
		return nil, err
	}
	bidder, err := e.userByAddress(ctx, event.Bidder)
	if err != nil {
		return nil, err
	}

	unlock := e.locks.Lock(artworkKey(auction.ArtworkID))
	defer unlock()

	result, err := e.store.PlaceBid(ctx, store.PlaceBidInput{
		EventKey:      event.EventKey,
		Chain:         chain.Name,
		ContractAucID: event.AuctionID.String(),
		BidderID:      bidder.ID,
		Amount:        event.Amount,
	})
	if err != nil {
		return nil, err
	}

	amount := event.Amount
	return []dispatcher.Message{
		sideeffects.HistoryMessage(sideeffects.History{
			Type:      domain.HistoryTypeBidPlaced,
			Message:   fmt.Sprintf("Bid of %s placed by %s", amount, event.Bidder),
			ArtworkID: &result.Auction.ArtworkID,
			OwnerID:   &bidder.ID,
			AuctionID: &result.Auction.ID,
			BidID:     &result.Bid.ID,
			EventKey:  event.EventKey,
		}),
		sideeffects.NotificationMessage(sideeffects.Notification{
			UserID:    result.Auction.OwnerID,
			Type:      domain.NotificationTypeNewBid,
			Message:   fmt.Sprintf("New bid of %s on your auction", amount),
			Amount:    &amount,
			ArtworkID: &result.Auction.ArtworkID,
			AuctionID: &result.Auction.ID,
			EventKey:  event.EventKey,
		}),
	}, nil
}

// auctionClaimedByBidder hands the artwork to the winning bidder
func (e *engine) auctionClaimedByBidder(ctx context.Context, chain domain.Chain, event *domain.Event) ([]dispatcher.Message, error) {
	auction, err := e.auctionByContractID(ctx, chain, event.AuctionID)
	if err != nil {
		return nil, err
	}
	winner, err := e.userByAddress(ctx, event.NewOwner)
	if err != nil {
		return nil, err
	}

	amount, err := e.claimAmount(ctx, chain, event, auction)
	if err != nil {
		return nil, err
	}

	unlock := e.locks.Lock(artworkKey(auction.ArtworkID))
	defer unlock()

	result, err := e.store.ClaimAuctionByBidder(ctx, store.ClaimAuctionInput{
		Chain:         chain.Name,
		ContractAucID: event.AuctionID.String(),
		NewOwnerID:    winner.ID,
		Amount:        amount,
	})
	if err != nil {
		return nil, err
	}

	artworkID := result.Auction.ArtworkID
	auctionID := result.Auction.ID
	return []dispatcher.Message{
		sideeffects.HistoryMessage(sideeffects.History{
			Type:         domain.HistoryTypeOwnership,
			Message:      fmt.Sprintf("Won auction %s for %s", event.AuctionID, amount),
			ArtworkID:    &artworkID,
			OwnerID:      &winner.ID,
			AuctionID:    &auctionID,
			CollectionID: result.Artwork.CollectionID,
			EventKey:     event.EventKey,
		}),
		sideeffects.TransactionMessage(sideeffects.Transaction{
			UserID:    winner.ID,
			Type:      domain.TransactionTypeDebit,
			Activity:  domain.ActivityTypeNFTClaim,
			Amount:    amount,
			Chain:     chain.Name,
			ArtworkID: &artworkID,
			AuctionID: &auctionID,
			EventKey:  event.EventKey,
		}),
		sideeffects.StatsMessage(sideeffects.Stats{
			UserID: winner.ID,
			Update: domain.StatsUpdatePurchasedArts,
			Amount: amount,
		}),
		sideeffects.NotificationMessage(sideeffects.Notification{
			UserID:    result.Auction.OwnerID,
			Type:      domain.NotificationTypeAuctionWin,
			Message:   fmt.Sprintf("Your auction was won for %s", amount),
			Amount:    &amount,
			ArtworkID: &artworkID,
			AuctionID: &auctionID,
			EventKey:  event.EventKey,
		}),
	}, nil
}

// claimAmount is the winning bid of an auction: the event amount when present, then the
// contract's latest bid, then the latest bid recorded from NewBid events
func (e *engine) claimAmount(ctx context.Context, chain domain.Chain, event *domain.Event, auction *schema.Auction) (decimal.Decimal, error) {
	if event.Amount.IsPositive() {
		return event.Amount, nil
	}

	if reader, ok := e.readers[chain.Name]; ok {
		info, err := reader.AuctionList(ctx, event.AuctionID)
		if err != nil {
			return decimal.Zero, fmt.Errorf("failed to read auction %s: %w", event.AuctionID, err)
		}
		if info.LatestBid != nil && info.LatestBid.Sign() > 0 {
			return chain.FromWei(info.LatestBid), nil
		}
	}

	return auction.LatestBid, nil
}

// auctionClaimedByOwner credits the auction proceeds to the owner, or returns
// an unsold artwork to them
func (e *engine) auctionClaimedByOwner(ctx context.Context, chain domain.Chain, event *domain.Event) ([]dispatcher.Message, error) {
	auction, err := e.auctionByContractID(ctx, chain, event.AuctionID)
	if err != nil {
		return nil, err
	}

	ownerID := auction.OwnerID
	if event.Owner != "" {
		owner, err := e.userByAddress(ctx, event.Owner)
		if err != nil {
			return nil, err
		}
		ownerID = owner.ID
	}

	unlock := e.locks.Lock(artworkKey(auction.ArtworkID))
	defer unlock()

	result, err := e.store.ClaimAuctionByOwner(ctx, chain.Name, event.AuctionID.String())
	if err != nil {
		return nil, err
	}

	// Nothing was sold, the owner only took the artwork back
	if result.Auction.Unsold() {
		return nil, nil
	}

	amount := event.Amount
	if !amount.IsPositive() {
		amount = result.Auction.LatestBid
	}

	artworkID := result.Auction.ArtworkID
	auctionID := result.Auction.ID
	return []dispatcher.Message{
		sideeffects.TransactionMessage(sideeffects.Transaction{
			UserID:    ownerID,
			Type:      domain.TransactionTypeCredit,
			Activity:  domain.ActivityTypeNFTSale,
			Amount:    amount,
			Chain:     chain.Name,
			ArtworkID: &artworkID,
			AuctionID: &auctionID,
			EventKey:  event.EventKey,
		}),
		sideeffects.StatsMessage(sideeffects.Stats{
			UserID: ownerID,
			Update: domain.StatsUpdateSoldArts,
			Amount: amount,
		}),
	}, nil
}

// auctionCancelled closes the auction and returns the artwork to its owner
func (e *engine) auctionCancelled(ctx context.Context, chain domain.Chain, event *domain.Event) ([]dispatcher.Message, error) {
	auction, err := e.auctionByContractID(ctx, chain, event.AuctionID)
	if err != nil {
		return nil, err
	}

	unlock := e.locks.Lock(artworkKey(auction.ArtworkID))
	defer unlock()

	if _, err := e.store.CancelAuction(ctx, chain.Name, event.AuctionID.String()); err != nil {
		return nil, err
	}

	return nil, nil
}

// saleOpened escrows the artwork into a new fixed-price sale
func (e *engine) saleOpened(ctx context.Context, chain domain.Chain, event *domain.Event) ([]dispatcher.Message, error) {
	artwork, err := e.resolveArtwork(ctx, chain, event.CollectionAddress, event.TokenID)
	if err != nil {
		return nil, err
	}

	unlock := e.locks.Lock(artworkKey(artwork.ID))
	defer unlock()

	result, err := e.store.OpenSale(ctx, store.OpenSaleInput{
		Chain:          chain.Name,
		ContractSaleID: event.SaleID.String(),
		ArtworkID:      artwork.ID,
		Price:          event.Price,
	})
	if err != nil {
		return nil, err
	}

	return []dispatcher.Message{
		sideeffects.HistoryMessage(sideeffects.History{
			Type:         domain.HistoryTypeSaleStarted,
			Message:      fmt.Sprintf("Listed for sale at %s", event.Price),
			ArtworkID:    &artwork.ID,
			OwnerID:      result.Artwork.OwnerID,
			CollectionID: artwork.CollectionID,
			EventKey:     event.EventKey,
		}),
	}, nil
}

// saleCancelled closes the sale and returns the artwork to its owner
func (e *engine) saleCancelled(ctx context.Context, chain domain.Chain, event *domain.Event) ([]dispatcher.Message, error) {
	sale, err := e.saleByContractID(ctx, chain, event.SaleID)
	if err != nil {
		return nil, err
	}

	unlock := e.locks.Lock(artworkKey(sale.ArtworkID))
	defer unlock()

	if _, err := e.store.CancelSale(ctx, chain.Name, event.SaleID.String()); err != nil {
		return nil, err
	}

	return nil, nil
}

// saleCompleted hands the artwork to the buyer and settles both parties
func (e *engine) saleCompleted(ctx context.Context, chain domain.Chain, event *domain.Event) ([]dispatcher.Message, error) {
	sale, err := e.saleByContractID(ctx, chain, event.SaleID)
	if err != nil {
		return nil, err
	}
	buyer, err := e.userByAddress(ctx, event.NewOwner)
	if err != nil {
		return nil, err
	}

	unlock := e.locks.Lock(artworkKey(sale.ArtworkID))
	defer unlock()

	result, err := e.store.CompleteSale(ctx, store.CompleteSaleInput{
		Chain:          chain.Name,
		ContractSaleID: event.SaleID.String(),
		BuyerID:        buyer.ID,
	})
	if err != nil {
		return nil, err
	}

	price := result.Sale.Price
	sellerID := result.Sale.OwnerID
	artworkID := result.Sale.ArtworkID
	saleID := result.Sale.ID
	return []dispatcher.Message{
		sideeffects.HistoryMessage(sideeffects.History{
			Type:         domain.HistoryTypeOwnership,
			Message:      fmt.Sprintf("Bought for %s", price),
			ArtworkID:    &artworkID,
			OwnerID:      &buyer.ID,
			CollectionID: result.Artwork.CollectionID,
			EventKey:     event.EventKey,
		}),
		sideeffects.TransactionMessage(sideeffects.Transaction{
			UserID:    buyer.ID,
			Type:      domain.TransactionTypeDebit,
			Activity:  domain.ActivityTypeBuyOp,
			Amount:    price,
			Chain:     chain.Name,
			ArtworkID: &artworkID,
			SaleID:    &saleID,
			EventKey:  event.EventKey,
		}),
		sideeffects.TransactionMessage(sideeffects.Transaction{
			UserID:    sellerID,
			Type:      domain.TransactionTypeCredit,
			Activity:  domain.ActivityTypeBuyOp,
			Amount:    price,
			Chain:     chain.Name,
			ArtworkID: &artworkID,
			SaleID:    &saleID,
			EventKey:  event.EventKey,
		}),
		sideeffects.StatsMessage(sideeffects.Stats{
			UserID: buyer.ID,
			Update: domain.StatsUpdatePurchasedArts,
			Amount: price,
		}),
		sideeffects.StatsMessage(sideeffects.Stats{
			UserID: sellerID,
			Update: domain.StatsUpdateSoldArts,
			Amount: price,
		}),
		sideeffects.NotificationMessage(sideeffects.Notification{
			UserID:    sellerID,
			Type:      domain.NotificationTypeNFTBuy,
			Message:   fmt.Sprintf("Your artwork was bought for %s", price),
			Amount:    &price,
			ArtworkID: &artworkID,
			SaleID:    &saleID,
			EventKey:  event.EventKey,
		}),
	}, nil
}
