package store_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/feral-file/ff-marketplace/internal/domain"
	"github.com/feral-file/ff-marketplace/internal/store"
	"github.com/feral-file/ff-marketplace/internal/store/schema"
	"github.com/feral-file/ff-marketplace/internal/store/storetest"
)

// NewStoreFunc opens an empty store and fixtures writing to the same database
type NewStoreFunc func(t *testing.T) (store.Store, *storetest.Fixtures)

// RunStoreTests runs every store test against the given implementation
func RunStoreTests(t *testing.T, newStore NewStoreFunc) {
	tests := []struct {
		name string
		fn   func(t *testing.T, st store.Store, fx *storetest.Fixtures)
	}{
		{"BlockCursor", testBlockCursor},
		{"EntityLookups", testEntityLookups},
		{"SetCollectionAddress", testSetCollectionAddress},
		{"AssignTokenID", testAssignTokenID},
		{"TransferArtwork", testTransferArtwork},
		{"DeleteArtwork", testDeleteArtwork},
		{"AuctionClaimedByBidder", testAuctionClaimedByBidder},
		{"AuctionCancelled", testAuctionCancelled},
		{"ClaimAuctionByOwner", testClaimAuctionByOwner},
		{"PlaceBid", testPlaceBid},
		{"SaleCompleted", testSaleCompleted},
		{"SaleCancelled", testSaleCancelled},
		{"IncrementStats", testIncrementStats},
		{"SideEffects", testSideEffects},
		{"ListArtworks", testListArtworks},
		{"ListAuctions", testListAuctions},
		{"SocialProjections", testSocialProjections},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st, fx := newStore(t)
			tt.fn(t, st, fx)
		})
	}
}

// =============================================================================
// Test Data Builders
// =============================================================================

const (
	aliceAddress = "0xA11CE00000000000000000000000000000000001"
	bobAddress   = "0xb0b0000000000000000000000000000000000002"
	carolAddress = "0xc0c0000000000000000000000000000000000003"
)

func openAuction(t *testing.T, st store.Store, artwork *schema.Artwork, contractAucID string, initial int64) *store.TransitionResult {
	t.Helper()

	result, err := st.OpenAuction(context.Background(), store.OpenAuctionInput{
		Chain:         domain.CHAIN_ETHEREUM,
		ContractAucID: contractAucID,
		ArtworkID:     artwork.ID,
		InitialPrice:  decimal.NewFromInt(initial),
	})
	require.NoError(t, err)
	return result
}

func openSale(t *testing.T, st store.Store, artwork *schema.Artwork, contractSaleID string, price int64) *store.TransitionResult {
	t.Helper()

	result, err := st.OpenSale(context.Background(), store.OpenSaleInput{
		Chain:          domain.CHAIN_ETHEREUM,
		ContractSaleID: contractSaleID,
		ArtworkID:      artwork.ID,
		Price:          decimal.NewFromInt(price),
	})
	require.NoError(t, err)
	return result
}

func placeBid(st store.Store, eventKey, contractAucID string, bidder *schema.User, amount int64) (*store.PlaceBidResult, error) {
	return st.PlaceBid(context.Background(), store.PlaceBidInput{
		EventKey:      eventKey,
		Chain:         domain.CHAIN_ETHEREUM,
		ContractAucID: contractAucID,
		BidderID:      bidder.ID,
		Amount:        decimal.NewFromInt(amount),
	})
}

// =============================================================================
// Test: Block cursor
// =============================================================================

func testBlockCursor(t *testing.T, st store.Store, _ *storetest.Fixtures) {
	ctx := context.Background()

	block, err := st.GetBlockCursor(ctx, domain.CHAIN_ETHEREUM)
	require.NoError(t, err)
	assert.Zero(t, block)

	require.NoError(t, st.SetBlockCursor(ctx, domain.CHAIN_ETHEREUM, 100))
	require.NoError(t, st.SetBlockCursor(ctx, domain.CHAIN_ETHEREUM, 150))
	require.NoError(t, st.SetBlockCursor(ctx, domain.CHAIN_POLYGON, 7))

	block, err = st.GetBlockCursor(ctx, domain.CHAIN_ETHEREUM)
	require.NoError(t, err)
	assert.Equal(t, uint64(150), block)

	block, err = st.GetBlockCursor(ctx, domain.CHAIN_POLYGON)
	require.NoError(t, err)
	assert.Equal(t, uint64(7), block)
}

// =============================================================================
// Test: Entity lookups
// =============================================================================

func testEntityLookups(t *testing.T, st store.Store, fx *storetest.Fixtures) {
	ctx := context.Background()

	alice := fx.User(aliceAddress)
	collection := fx.Collection(alice, domain.CHAIN_ETHEREUM, "Genesis", "0x3333333333333333333333333333333333333333")
	minted := fx.Artwork(storetest.ArtworkOptions{Creator: alice, Collection: collection, TokenID: "9"})
	shared := fx.Artwork(storetest.ArtworkOptions{Creator: alice, TokenID: "12"})
	pending := fx.Artwork(storetest.ArtworkOptions{Creator: alice, MetaURL: "ipfs://pending"})

	t.Run("user by address ignores case", func(t *testing.T) {
		user, err := st.GetUserByAddress(ctx, "0xa11ce00000000000000000000000000000000001")
		require.NoError(t, err)
		require.NotNil(t, user)
		assert.Equal(t, alice.ID, user.ID)

		user, err = st.GetUserByAddress(ctx, carolAddress)
		require.NoError(t, err)
		assert.Nil(t, user)
	})

	t.Run("user address is unique regardless of case", func(t *testing.T) {
		assert.Equal(t, "0xa11ce00000000000000000000000000000000001", alice.Address)

		err := fx.DB.Transaction(func(tx *gorm.DB) error {
			return tx.Create(&schema.User{Address: "0xA11CE00000000000000000000000000000000001", Role: "user"}).Error
		})
		assert.Error(t, err)
		assert.EqualValues(t, 1, fx.Count(&schema.User{}, "address = ?", "0xa11ce00000000000000000000000000000000001"))
	})

	t.Run("collection by address", func(t *testing.T) {
		found, err := st.GetCollectionByAddress(ctx, "0x3333333333333333333333333333333333333333")
		require.NoError(t, err)
		require.NotNil(t, found)
		assert.Equal(t, collection.ID, found.ID)

		found, err = st.GetCollectionByAddress(ctx, "")
		require.NoError(t, err)
		assert.Nil(t, found)
	})

	t.Run("artworks by token", func(t *testing.T) {
		found, err := st.GetArtworkByCollectionToken(ctx, collection.ID, "9")
		require.NoError(t, err)
		require.NotNil(t, found)
		assert.Equal(t, minted.ID, found.ID)

		found, err = st.GetArtworkByChainToken(ctx, domain.CHAIN_ETHEREUM, "12")
		require.NoError(t, err)
		require.NotNil(t, found)
		assert.Equal(t, shared.ID, found.ID)

		found, err = st.GetArtworkByChainToken(ctx, domain.CHAIN_POLYGON, "12")
		require.NoError(t, err)
		assert.Nil(t, found)
	})

	t.Run("unminted artwork by metadata URL", func(t *testing.T) {
		found, err := st.GetUnmintedArtworkByMetaURL(ctx, domain.CHAIN_ETHEREUM, "ipfs://pending")
		require.NoError(t, err)
		require.NotNil(t, found)
		assert.Equal(t, pending.ID, found.ID)
	})

	t.Run("collection addresses per chain", func(t *testing.T) {
		fx.Collection(alice, domain.CHAIN_ETHEREUM, "Drafts", "")
		fx.Collection(alice, domain.CHAIN_POLYGON, "Side", "0x4444444444444444444444444444444444444444")

		addresses, err := st.ListCollectionAddresses(ctx, domain.CHAIN_ETHEREUM)
		require.NoError(t, err)
		assert.Equal(t, []string{"0x3333333333333333333333333333333333333333"}, addresses)
	})
}

// =============================================================================
// Test: Collection deployment and minting
// =============================================================================

func testSetCollectionAddress(t *testing.T, st store.Store, fx *storetest.Fixtures) {
	ctx := context.Background()

	alice := fx.User(aliceAddress)
	collection := fx.Collection(alice, domain.CHAIN_ETHEREUM, "Genesis", "")

	require.NoError(t, st.SetCollectionAddress(ctx, collection.ID, "0xABCDEF0000000000000000000000000000000001"))

	found, err := st.GetCollectionByAddress(ctx, "0xabcdef0000000000000000000000000000000001")
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, collection.ID, found.ID)

	err = st.SetCollectionAddress(ctx, collection.ID, "0xabcdef0000000000000000000000000000000001")
	assert.ErrorIs(t, err, domain.ErrAlreadyApplied)

	err = st.SetCollectionAddress(ctx, collection.ID, "0x9999999999999999999999999999999999999999")
	assert.ErrorIs(t, err, domain.ErrInvariantViolation)

	err = st.SetCollectionAddress(ctx, 4242, "0x9999999999999999999999999999999999999999")
	assert.ErrorIs(t, err, domain.ErrCollectionNotFound)
}

func testAssignTokenID(t *testing.T, st store.Store, fx *storetest.Fixtures) {
	ctx := context.Background()

	alice := fx.User(aliceAddress)
	collection := fx.Collection(alice, domain.CHAIN_ETHEREUM, "Genesis", "0x3333333333333333333333333333333333333333")
	artwork := fx.Artwork(storetest.ArtworkOptions{Creator: alice})

	require.NoError(t, st.AssignTokenID(ctx, store.AssignTokenIDInput{
		ArtworkID:    artwork.ID,
		CollectionID: &collection.ID,
		TokenID:      "77",
	}))

	current := fx.Reload(artwork)
	require.NotNil(t, current.TokenID)
	assert.Equal(t, "77", *current.TokenID)
	require.NotNil(t, current.CollectionID)
	assert.Equal(t, collection.ID, *current.CollectionID)
	require.NotNil(t, current.AuctionMintStatus)
	assert.Equal(t, domain.MintStatusComplete, *current.AuctionMintStatus)

	err := st.AssignTokenID(ctx, store.AssignTokenIDInput{ArtworkID: artwork.ID, TokenID: "77"})
	assert.ErrorIs(t, err, domain.ErrAlreadyApplied)

	err = st.AssignTokenID(ctx, store.AssignTokenIDInput{ArtworkID: artwork.ID, TokenID: "78"})
	assert.ErrorIs(t, err, domain.ErrInvariantViolation)

	err = st.AssignTokenID(ctx, store.AssignTokenIDInput{ArtworkID: 999, TokenID: "1"})
	assert.ErrorIs(t, err, domain.ErrArtworkNotFound)
}

// =============================================================================
// Test: Transfers
// =============================================================================

func testTransferArtwork(t *testing.T, st store.Store, fx *storetest.Fixtures) {
	ctx := context.Background()

	alice := fx.User(aliceAddress)
	bob := fx.User(bobAddress)
	artwork := fx.Artwork(storetest.ArtworkOptions{Creator: alice, TokenID: "1"})

	result, err := st.TransferArtwork(ctx, store.TransferArtworkInput{ArtworkID: artwork.ID, ToUserID: bob.ID})
	require.NoError(t, err)
	assert.Equal(t, alice.ID, *result.Artwork.OwnerID)
	assert.Equal(t, bob.ID, *fx.Reload(artwork).OwnerID)

	_, err = st.TransferArtwork(ctx, store.TransferArtworkInput{ArtworkID: artwork.ID, ToUserID: bob.ID})
	assert.ErrorIs(t, err, domain.ErrAlreadyApplied)

	escrowed := fx.Artwork(storetest.ArtworkOptions{Creator: alice, TokenID: "2"})
	openAuction(t, st, escrowed, "5", 1)

	_, err = st.TransferArtwork(ctx, store.TransferArtworkInput{ArtworkID: escrowed.ID, ToUserID: bob.ID})
	assert.ErrorIs(t, err, domain.ErrInvariantViolation)
}

func testDeleteArtwork(t *testing.T, st store.Store, fx *storetest.Fixtures) {
	ctx := context.Background()

	alice := fx.User(aliceAddress)
	bob := fx.User(bobAddress)
	artwork := fx.Artwork(storetest.ArtworkOptions{Creator: alice, TokenID: "1"})
	other := fx.Artwork(storetest.ArtworkOptions{Creator: alice, TokenID: "2"})

	opened := openAuction(t, st, artwork, "1", 1)
	_, err := placeBid(st, "ethereum:0x01:0", "1", bob, 3)
	require.NoError(t, err)
	require.NoError(t, fx.DB.Create(&schema.FavouriteArtwork{UserID: bob.ID, ArtworkID: artwork.ID}).Error)

	result, err := st.DeleteArtwork(ctx, artwork.ID)
	require.NoError(t, err)
	assert.Equal(t, artwork.ID, result.Artwork.ID)
	require.Len(t, result.Auctions, 1)
	assert.Equal(t, opened.Auction.ID, result.Auctions[0].ID)
	assert.Empty(t, result.Sales)

	assert.Zero(t, fx.Count(&schema.Artwork{}, "id = ?", artwork.ID))
	assert.Zero(t, fx.Count(&schema.Auction{}, "artwork_id = ?", artwork.ID))
	assert.Zero(t, fx.Count(&schema.Bid{}, "artwork_id = ?", artwork.ID))
	assert.Zero(t, fx.Count(&schema.FavouriteArtwork{}, "artwork_id = ?", artwork.ID))
	assert.Equal(t, int64(1), fx.Count(&schema.Artwork{}, "id = ?", other.ID))

	_, err = st.DeleteArtwork(ctx, artwork.ID)
	assert.ErrorIs(t, err, domain.ErrArtworkNotFound)
}

// =============================================================================
// Test: Auctions
// =============================================================================

func testAuctionClaimedByBidder(t *testing.T, st store.Store, fx *storetest.Fixtures) {
	ctx := context.Background()

	alice := fx.User(aliceAddress)
	bob := fx.User(bobAddress)
	artwork := fx.Artwork(storetest.ArtworkOptions{Creator: alice, TokenID: "1", Price: decimal.NewFromInt(2)})

	opened := openAuction(t, st, artwork, "10", 4)
	assert.Equal(t, alice.ID, *opened.Artwork.OwnerID)
	assert.Equal(t, alice.ID, opened.Auction.OwnerID)
	assert.Equal(t, domain.AuctionStatusOpen, opened.Auction.Status)

	escrowed := fx.Reload(artwork)
	assert.Nil(t, escrowed.OwnerID)
	assert.True(t, escrowed.IsAuctionOpen)
	require.NotNil(t, escrowed.AuctionID)
	assert.Equal(t, opened.Auction.ID, *escrowed.AuctionID)
	assert.True(t, escrowed.Price.Equal(decimal.NewFromInt(2)))

	_, err := st.OpenAuction(ctx, store.OpenAuctionInput{
		Chain:         domain.CHAIN_ETHEREUM,
		ContractAucID: "10",
		ArtworkID:     artwork.ID,
		InitialPrice:  decimal.NewFromInt(4),
	})
	assert.ErrorIs(t, err, domain.ErrAlreadyApplied)

	_, err = st.OpenSale(ctx, store.OpenSaleInput{
		Chain:          domain.CHAIN_ETHEREUM,
		ContractSaleID: "1",
		ArtworkID:      artwork.ID,
		Price:          decimal.NewFromInt(1),
	})
	assert.ErrorIs(t, err, domain.ErrInvariantViolation)

	claimed, err := st.ClaimAuctionByBidder(ctx, store.ClaimAuctionInput{
		Chain:         domain.CHAIN_ETHEREUM,
		ContractAucID: "10",
		NewOwnerID:    bob.ID,
		Amount:        decimal.NewFromInt(9),
	})
	require.NoError(t, err)
	assert.True(t, claimed.Auction.NFTClaim)
	assert.Equal(t, domain.AuctionStatusClosed, claimed.Auction.Status)
	assert.Equal(t, bob.ID, *claimed.Auction.WinnerID)

	released := fx.Reload(artwork)
	require.NotNil(t, released.OwnerID)
	assert.Equal(t, bob.ID, *released.OwnerID)
	assert.Nil(t, released.AuctionID)
	assert.False(t, released.IsAuctionOpen)
	assert.True(t, released.Price.Equal(decimal.NewFromInt(9)))
	assert.True(t, released.BasePrice.Equal(decimal.NewFromInt(2)))

	_, err = st.ClaimAuctionByBidder(ctx, store.ClaimAuctionInput{
		Chain:         domain.CHAIN_ETHEREUM,
		ContractAucID: "10",
		NewOwnerID:    bob.ID,
		Amount:        decimal.NewFromInt(9),
	})
	assert.ErrorIs(t, err, domain.ErrAlreadyApplied)

	_, err = st.CancelAuction(ctx, domain.CHAIN_ETHEREUM, "10")
	assert.ErrorIs(t, err, domain.ErrInvariantViolation)

	ownerClaim, err := st.ClaimAuctionByOwner(ctx, domain.CHAIN_ETHEREUM, "10")
	require.NoError(t, err)
	assert.True(t, ownerClaim.Auction.OwnerClaim)
	require.NotNil(t, ownerClaim.Artwork)
	assert.Equal(t, artwork.ID, ownerClaim.Artwork.ID)

	_, err = st.ClaimAuctionByOwner(ctx, domain.CHAIN_ETHEREUM, "10")
	assert.ErrorIs(t, err, domain.ErrAlreadyApplied)

	_, err = st.ClaimAuctionByOwner(ctx, domain.CHAIN_ETHEREUM, "404")
	assert.ErrorIs(t, err, domain.ErrAuctionNotFound)
}

func testAuctionCancelled(t *testing.T, st store.Store, fx *storetest.Fixtures) {
	ctx := context.Background()

	alice := fx.User(aliceAddress)
	artwork := fx.Artwork(storetest.ArtworkOptions{Creator: alice, TokenID: "1", Price: decimal.NewFromInt(6)})
	openAuction(t, st, artwork, "3", 1)

	result, err := st.CancelAuction(ctx, domain.CHAIN_ETHEREUM, "3")
	require.NoError(t, err)
	assert.True(t, result.Auction.Cancelled)
	assert.Equal(t, domain.AuctionStatusClosed, result.Auction.Status)

	restored := fx.Reload(artwork)
	require.NotNil(t, restored.OwnerID)
	assert.Equal(t, alice.ID, *restored.OwnerID)
	assert.False(t, restored.Escrowed())
	assert.True(t, restored.Price.Equal(decimal.NewFromInt(6)))

	_, err = st.CancelAuction(ctx, domain.CHAIN_ETHEREUM, "3")
	assert.ErrorIs(t, err, domain.ErrAlreadyApplied)

	_, err = st.ClaimAuctionByOwner(ctx, domain.CHAIN_ETHEREUM, "3")
	assert.ErrorIs(t, err, domain.ErrInvariantViolation)

	// A cancelled auction leaves the artwork free for the next one
	openAuction(t, st, artwork, "4", 1)
}

func testClaimAuctionByOwner(t *testing.T, st store.Store, fx *storetest.Fixtures) {
	ctx := context.Background()

	alice := fx.User(aliceAddress)
	bob := fx.User(bobAddress)

	t.Run("unsold auction returns the artwork", func(t *testing.T) {
		artwork := fx.Artwork(storetest.ArtworkOptions{Creator: alice, TokenID: "1", Price: decimal.NewFromInt(3)})
		openAuction(t, st, artwork, "7", 5)

		result, err := st.ClaimAuctionByOwner(ctx, domain.CHAIN_ETHEREUM, "7")
		require.NoError(t, err)
		assert.True(t, result.Auction.OwnerClaim)
		assert.True(t, result.Auction.Unsold())
		assert.Equal(t, domain.AuctionStatusClosed, result.Auction.Status)

		var auction schema.Auction
		require.NoError(t, fx.DB.First(&auction, result.Auction.ID).Error)
		assert.Equal(t, domain.AuctionStatusClosed, auction.Status)
		assert.True(t, auction.OwnerClaim)
		assert.False(t, auction.Cancelled)

		restored := fx.Reload(artwork)
		require.NotNil(t, restored.OwnerID)
		assert.Equal(t, alice.ID, *restored.OwnerID)
		assert.False(t, restored.Escrowed())
		assert.True(t, restored.Price.Equal(decimal.NewFromInt(3)))

		_, err = st.ClaimAuctionByOwner(ctx, domain.CHAIN_ETHEREUM, "7")
		assert.ErrorIs(t, err, domain.ErrAlreadyApplied)

		_, err = st.ClaimAuctionByBidder(ctx, store.ClaimAuctionInput{
			Chain:         domain.CHAIN_ETHEREUM,
			ContractAucID: "7",
			NewOwnerID:    bob.ID,
			Amount:        decimal.NewFromInt(5),
		})
		assert.ErrorIs(t, err, domain.ErrInvariantViolation)

		openAuction(t, st, artwork, "8", 5)
	})

	t.Run("proceeds before the winner claims", func(t *testing.T) {
		artwork := fx.Artwork(storetest.ArtworkOptions{Creator: alice, TokenID: "2"})
		openAuction(t, st, artwork, "9", 1)
		_, err := placeBid(st, "ethereum:0x09:0", "9", bob, 4)
		require.NoError(t, err)

		result, err := st.ClaimAuctionByOwner(ctx, domain.CHAIN_ETHEREUM, "9")
		require.NoError(t, err)
		assert.True(t, result.Auction.OwnerClaim)
		assert.False(t, result.Auction.Unsold())
		assert.Equal(t, domain.AuctionStatusOpen, result.Auction.Status)

		// The artwork stays escrowed for the winning bidder
		escrowed := fx.Reload(artwork)
		assert.Nil(t, escrowed.OwnerID)
		require.NotNil(t, escrowed.AuctionID)
		assert.Equal(t, result.Auction.ID, *escrowed.AuctionID)

		_, err = st.ClaimAuctionByBidder(ctx, store.ClaimAuctionInput{
			Chain:         domain.CHAIN_ETHEREUM,
			ContractAucID: "9",
			NewOwnerID:    bob.ID,
			Amount:        decimal.NewFromInt(4),
		})
		require.NoError(t, err)
		assert.Equal(t, bob.ID, *fx.Reload(artwork).OwnerID)
	})
}

func testPlaceBid(t *testing.T, st store.Store, fx *storetest.Fixtures) {
	alice := fx.User(aliceAddress)
	bob := fx.User(bobAddress)
	carol := fx.User(carolAddress)
	artwork := fx.Artwork(storetest.ArtworkOptions{Creator: alice, TokenID: "1"})
	openAuction(t, st, artwork, "8", 1)

	first, err := placeBid(st, "ethereum:0x01:0", "8", bob, 5)
	require.NoError(t, err)
	assert.Equal(t, alice.ID, first.Bid.OwnerID)
	assert.True(t, first.Auction.LatestBid.Equal(decimal.NewFromInt(5)))

	// A lower bid delivered late does not lower the latest bid
	second, err := placeBid(st, "ethereum:0x00:3", "8", carol, 3)
	require.NoError(t, err)
	assert.True(t, second.Auction.LatestBid.Equal(decimal.NewFromInt(5)))

	_, err = placeBid(st, "ethereum:0x01:0", "8", bob, 5)
	assert.ErrorIs(t, err, domain.ErrAlreadyApplied)

	_, err = placeBid(st, "ethereum:0x02:0", "99", bob, 5)
	assert.ErrorIs(t, err, domain.ErrAuctionNotFound)

	bids, total, err := st.ListBids(context.Background(), first.Auction.ID, 10, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	require.Len(t, bids, 2)
	assert.Equal(t, bob.ID, bids[0].BidderID)
	assert.Equal(t, carol.ID, bids[1].BidderID)

	_, err = st.CancelAuction(context.Background(), domain.CHAIN_ETHEREUM, "8")
	require.NoError(t, err)

	_, err = placeBid(st, "ethereum:0x03:0", "8", bob, 50)
	assert.ErrorIs(t, err, domain.ErrInvariantViolation)
}

// =============================================================================
// Test: Fixed-price sales
// =============================================================================

func testSaleCompleted(t *testing.T, st store.Store, fx *storetest.Fixtures) {
	ctx := context.Background()

	alice := fx.User(aliceAddress)
	bob := fx.User(bobAddress)
	artwork := fx.Artwork(storetest.ArtworkOptions{Creator: alice, TokenID: "1", Price: decimal.NewFromInt(2)})

	opened := openSale(t, st, artwork, "20", 6)
	assert.Equal(t, domain.SaleStatusOpen, opened.Sale.Status)

	escrowed := fx.Reload(artwork)
	assert.Nil(t, escrowed.OwnerID)
	assert.True(t, escrowed.OpenForSale)

	_, err := st.OpenAuction(ctx, store.OpenAuctionInput{
		Chain:         domain.CHAIN_ETHEREUM,
		ContractAucID: "1",
		ArtworkID:     artwork.ID,
		InitialPrice:  decimal.NewFromInt(1),
	})
	assert.ErrorIs(t, err, domain.ErrInvariantViolation)

	completed, err := st.CompleteSale(ctx, store.CompleteSaleInput{
		Chain:          domain.CHAIN_ETHEREUM,
		ContractSaleID: "20",
		BuyerID:        bob.ID,
	})
	require.NoError(t, err)
	assert.Equal(t, domain.SaleStatusCompleted, completed.Sale.Status)
	assert.Equal(t, bob.ID, *completed.Sale.BuyerID)
	assert.Equal(t, alice.ID, completed.Sale.OwnerID)

	released := fx.Reload(artwork)
	require.NotNil(t, released.OwnerID)
	assert.Equal(t, bob.ID, *released.OwnerID)
	assert.False(t, released.Escrowed())
	assert.True(t, released.Price.Equal(decimal.NewFromInt(6)))
	assert.True(t, released.BasePrice.Equal(decimal.NewFromInt(2)))

	_, err = st.CompleteSale(ctx, store.CompleteSaleInput{
		Chain:          domain.CHAIN_ETHEREUM,
		ContractSaleID: "20",
		BuyerID:        bob.ID,
	})
	assert.ErrorIs(t, err, domain.ErrAlreadyApplied)

	_, err = st.CancelSale(ctx, domain.CHAIN_ETHEREUM, "20")
	assert.ErrorIs(t, err, domain.ErrInvariantViolation)

	_, err = st.CompleteSale(ctx, store.CompleteSaleInput{
		Chain:          domain.CHAIN_ETHEREUM,
		ContractSaleID: "404",
		BuyerID:        bob.ID,
	})
	assert.ErrorIs(t, err, domain.ErrSaleNotFound)
}

func testSaleCancelled(t *testing.T, st store.Store, fx *storetest.Fixtures) {
	ctx := context.Background()

	alice := fx.User(aliceAddress)
	bob := fx.User(bobAddress)
	artwork := fx.Artwork(storetest.ArtworkOptions{Creator: alice, TokenID: "1"})
	openSale(t, st, artwork, "21", 3)

	result, err := st.CancelSale(ctx, domain.CHAIN_ETHEREUM, "21")
	require.NoError(t, err)
	assert.Equal(t, domain.SaleStatusCancelled, result.Sale.Status)

	restored := fx.Reload(artwork)
	require.NotNil(t, restored.OwnerID)
	assert.Equal(t, alice.ID, *restored.OwnerID)
	assert.False(t, restored.OpenForSale)
	assert.Nil(t, restored.SaleID)

	_, err = st.CancelSale(ctx, domain.CHAIN_ETHEREUM, "21")
	assert.ErrorIs(t, err, domain.ErrAlreadyApplied)

	_, err = st.CompleteSale(ctx, store.CompleteSaleInput{
		Chain:          domain.CHAIN_ETHEREUM,
		ContractSaleID: "21",
		BuyerID:        bob.ID,
	})
	assert.ErrorIs(t, err, domain.ErrInvariantViolation)
}

// =============================================================================
// Test: Side effects
// =============================================================================

func testIncrementStats(t *testing.T, st store.Store, fx *storetest.Fixtures) {
	ctx := context.Background()

	alice := fx.User(aliceAddress)

	stats, err := st.GetStats(ctx, alice.ID)
	require.NoError(t, err)
	assert.Nil(t, stats)

	for _, amount := range []int64{2, 5} {
		require.NoError(t, st.IncrementStats(ctx, store.StatsIncrementInput{
			UserID: alice.ID,
			Update: domain.StatsUpdatePurchasedArts,
			Amount: decimal.NewFromInt(amount),
		}))
	}
	require.NoError(t, st.IncrementStats(ctx, store.StatsIncrementInput{
		UserID: alice.ID,
		Update: domain.StatsUpdateSoldArts,
		Amount: decimal.NewFromInt(4),
	}))
	require.NoError(t, st.IncrementStats(ctx, store.StatsIncrementInput{
		UserID: alice.ID,
		Update: domain.StatsUpdateOwnedArts,
	}))

	stats, err = st.GetStats(ctx, alice.ID)
	require.NoError(t, err)
	require.NotNil(t, stats)
	assert.Equal(t, int64(2), stats.PurchasedArts)
	assert.Equal(t, int64(1), stats.SoldArts)
	assert.Equal(t, int64(2), stats.OwnedArts)
	assert.True(t, stats.TotalPurchasesAmount.Equal(decimal.NewFromInt(7)))
	assert.True(t, stats.TotalSoldAmount.Equal(decimal.NewFromInt(4)))
	assert.True(t, stats.BiggestPurchase.Equal(decimal.NewFromInt(5)))

	err = st.IncrementStats(ctx, store.StatsIncrementInput{UserID: alice.ID, Update: "bogus"})
	assert.Error(t, err)
}

func testSideEffects(t *testing.T, st store.Store, fx *storetest.Fixtures) {
	ctx := context.Background()

	alice := fx.User(aliceAddress)
	artwork := fx.Artwork(storetest.ArtworkOptions{Creator: alice})

	for _, historyType := range []domain.HistoryType{domain.HistoryTypeArtworkCreated, domain.HistoryTypeAuctionStarted} {
		require.NoError(t, st.CreateHistory(ctx, &schema.History{
			ArtworkID: &artwork.ID,
			OwnerID:   &alice.ID,
			Type:      historyType,
			Message:   string(historyType),
		}))
	}

	histories, total, err := st.ListHistories(ctx, artwork.ID, 10, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	require.Len(t, histories, 2)

	amount := decimal.NewFromInt(3)
	require.NoError(t, st.CreateNotification(ctx, &schema.Notification{
		UserID:  alice.ID,
		Type:    domain.NotificationTypeNewBid,
		Message: "New bid",
		Amount:  &amount,
	}))
	notifications, total, err := st.ListNotifications(ctx, alice.ID, 10, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, notifications, 1)
	require.NotNil(t, notifications[0].Amount)
	assert.True(t, notifications[0].Amount.Equal(amount))

	require.NoError(t, st.CreateTransaction(ctx, &schema.Transaction{
		UserID:   alice.ID,
		Type:     domain.TransactionTypeCredit,
		Activity: domain.ActivityTypeNFTSale,
		Amount:   decimal.NewFromInt(6),
		Chain:    domain.CHAIN_ETHEREUM,
	}))
	transactions, total, err := st.ListTransactions(ctx, alice.ID, 10, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, transactions, 1)
	assert.Equal(t, domain.ActivityTypeNFTSale, transactions[0].Activity)

	empty, total, err := st.ListTransactions(ctx, 999, 10, 0)
	require.NoError(t, err)
	assert.Zero(t, total)
	assert.Empty(t, empty)
}

// =============================================================================
// Test: Queries
// =============================================================================

func testListArtworks(t *testing.T, st store.Store, fx *storetest.Fixtures) {
	ctx := context.Background()

	alice := fx.User(aliceAddress)
	bob := fx.User(bobAddress)
	collection := fx.Collection(alice, domain.CHAIN_ETHEREUM, "Genesis", "0x3333333333333333333333333333333333333333")

	first := fx.Artwork(storetest.ArtworkOptions{Creator: alice, Collection: collection, TokenID: "1"})
	second := fx.Artwork(storetest.ArtworkOptions{Creator: alice, TokenID: "2"})
	fx.Artwork(storetest.ArtworkOptions{Creator: bob, TokenID: "3"})
	openAuction(t, st, second, "1", 1)

	artworks, total, err := st.ListArtworks(ctx, store.ArtworkFilter{CreatorID: &alice.ID}, 10, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	require.Len(t, artworks, 2)
	assert.Equal(t, second.ID, artworks[0].ID)
	assert.Equal(t, first.ID, artworks[1].ID)

	open := true
	artworks, total, err = st.ListArtworks(ctx, store.ArtworkFilter{IsAuctionOpen: &open}, 10, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	assert.Equal(t, second.ID, artworks[0].ID)

	artworks, total, err = st.ListArtworks(ctx, store.ArtworkFilter{CollectionID: &collection.ID}, 10, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	assert.Equal(t, first.ID, artworks[0].ID)

	artworks, total, err = st.ListArtworks(ctx, store.ArtworkFilter{}, 1, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	assert.Len(t, artworks, 1)

	withCollection, err := st.GetArtworkWithCollection(ctx, first.ID)
	require.NoError(t, err)
	require.NotNil(t, withCollection.Collection)
	assert.Equal(t, "Genesis", withCollection.Collection.Name)

	views, err := st.IncrementArtworkViews(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), views)

	_, err = st.IncrementArtworkViews(ctx, 999)
	assert.Error(t, err)
}

func testListAuctions(t *testing.T, st store.Store, fx *storetest.Fixtures) {
	ctx := context.Background()

	alice := fx.User(aliceAddress)
	bob := fx.User(bobAddress)
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	past := now.Add(-time.Hour)
	future := now.Add(time.Hour)

	expired := fx.Artwork(storetest.ArtworkOptions{Creator: alice, TokenID: "1"})
	running := fx.Artwork(storetest.ArtworkOptions{Creator: alice, TokenID: "2"})
	won := fx.Artwork(storetest.ArtworkOptions{Creator: alice, TokenID: "3"})

	for _, tc := range []struct {
		artwork *schema.Artwork
		id      string
		end     time.Time
	}{
		{expired, "1", past},
		{running, "2", future},
		{won, "3", past},
	} {
		_, err := st.OpenAuction(ctx, store.OpenAuctionInput{
			Chain:         domain.CHAIN_ETHEREUM,
			ContractAucID: tc.id,
			ArtworkID:     tc.artwork.ID,
			InitialPrice:  decimal.NewFromInt(1),
			EndTime:       &tc.end,
		})
		require.NoError(t, err)
	}
	_, err := st.ClaimAuctionByBidder(ctx, store.ClaimAuctionInput{
		Chain:         domain.CHAIN_ETHEREUM,
		ContractAucID: "3",
		NewOwnerID:    bob.ID,
		Amount:        decimal.NewFromInt(2),
	})
	require.NoError(t, err)

	status := domain.AuctionStatusOpen
	unclaimed := false
	auctions, total, err := st.ListAuctions(ctx, store.AuctionFilter{
		OwnerID:   &alice.ID,
		Status:    &status,
		NFTClaim:  &unclaimed,
		EndBefore: &now,
	}, 10, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, auctions, 1)
	assert.Equal(t, "1", auctions[0].ContractAucID)

	claimed := true
	auctions, total, err = st.ListAuctions(ctx, store.AuctionFilter{WinnerID: &bob.ID, NFTClaim: &claimed}, 10, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	assert.Equal(t, "3", auctions[0].ContractAucID)

	byID, err := st.GetAuctionByID(ctx, auctions[0].ID)
	require.NoError(t, err)
	require.NotNil(t, byID)
	assert.Equal(t, won.ID, byID.ArtworkID)

	missing, err := st.GetAuctionByID(ctx, 999)
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func testSocialProjections(t *testing.T, st store.Store, fx *storetest.Fixtures) {
	ctx := context.Background()

	alice := fx.User(aliceAddress)
	bob := fx.User(bobAddress)
	carol := fx.User(carolAddress)
	artwork := fx.Artwork(storetest.ArtworkOptions{Creator: alice})
	fx.Collection(alice, domain.CHAIN_ETHEREUM, "One", "")
	fx.Collection(alice, domain.CHAIN_ETHEREUM, "Two", "")

	require.NoError(t, fx.DB.Create(&schema.UserFollow{FollowerID: bob.ID, FolloweeID: alice.ID}).Error)
	require.NoError(t, fx.DB.Create(&schema.UserFollow{FollowerID: carol.ID, FolloweeID: alice.ID}).Error)
	require.NoError(t, fx.DB.Create(&schema.FavouriteArtwork{UserID: bob.ID, ArtworkID: artwork.ID}).Error)

	followers, total, err := st.ListFollowers(ctx, alice.ID, 10, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	assert.Len(t, followers, 2)

	following, total, err := st.ListFollowing(ctx, bob.ID, 10, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, following, 1)
	assert.Equal(t, alice.ID, following[0].ID)

	favourites, total, err := st.ListFavouriteArtworks(ctx, bob.ID, 10, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, favourites, 1)
	assert.Equal(t, artwork.ID, favourites[0].ID)

	collections, total, err := st.ListCollections(ctx, alice.ID, 10, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	require.Len(t, collections, 2)
	assert.Equal(t, "One", collections[0].Name)
	assert.Equal(t, "Two", collections[1].Name)
}
