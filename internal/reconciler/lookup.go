package reconciler

import (
	"context"
	"fmt"
	"math/big"

	"github.com/feral-file/ff-marketplace/internal/domain"
	"github.com/feral-file/ff-marketplace/internal/store/schema"
)

func (e *engine) userByAddress(ctx context.Context, address string) (*schema.User, error) {
	user, err := e.store.GetUserByAddress(ctx, address)
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	if user == nil {
		return nil, fmt.Errorf("%w: %s", domain.ErrUserNotFound, address)
	}
	return user, nil
}

func (e *engine) auctionByContractID(ctx context.Context, chain domain.Chain, auctionID *big.Int) (*schema.Auction, error) {
	auction, err := e.store.GetAuctionByContractID(ctx, chain.Name, auctionID.String())
	if err != nil {
		return nil, fmt.Errorf("failed to get auction: %w", err)
	}
	if auction == nil {
		return nil, fmt.Errorf("%w: %s on %s", domain.ErrAuctionNotFound, auctionID, chain.Name)
	}
	return auction, nil
}

func (e *engine) saleByContractID(ctx context.Context, chain domain.Chain, saleID *big.Int) (*schema.BuySell, error) {
	sale, err := e.store.GetSaleByContractID(ctx, chain.Name, saleID.String())
	if err != nil {
		return nil, fmt.Errorf("failed to get sale: %w", err)
	}
	if sale == nil {
		return nil, fmt.Errorf("%w: %s on %s", domain.ErrSaleNotFound, saleID, chain.Name)
	}
	return sale, nil
}

// resolveArtwork finds the artwork of a token or fails with a lookup error
func (e *engine) resolveArtwork(ctx context.Context, chain domain.Chain, contract string, tokenID *big.Int) (*schema.Artwork, error) {
	artwork, err := e.findArtwork(ctx, chain, contract, tokenID)
	if err != nil {
		return nil, err
	}
	if artwork == nil {
		return nil, fmt.Errorf("%w: token %s of %s", domain.ErrArtworkNotFound, tokenID, contract)
	}
	return artwork, nil
}

// findArtwork looks a token up in the collection deployed at contract. Tokens of the
// chain's shared mint contract fall back to artworks without a deployed collection.
// Token ids are never inferred from other tokens.
func (e *engine) findArtwork(ctx context.Context, chain domain.Chain, contract string, tokenID *big.Int) (*schema.Artwork, error) {
	collection, err := e.store.GetCollectionByAddress(ctx, contract)
	if err != nil {
		return nil, fmt.Errorf("failed to get collection: %w", err)
	}

	if collection != nil {
		artwork, err := e.store.GetArtworkByCollectionToken(ctx, collection.ID, tokenID.String())
		if err != nil {
			return nil, fmt.Errorf("failed to get artwork: %w", err)
		}
		if artwork != nil {
			return artwork, nil
		}
	}

	if !chain.IsMintContract(contract) {
		return nil, nil
	}

	artwork, err := e.store.GetArtworkByChainToken(ctx, chain.Name, tokenID.String())
	if err != nil {
		return nil, fmt.Errorf("failed to get artwork: %w", err)
	}
	return artwork, nil
}
