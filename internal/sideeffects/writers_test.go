package sideeffects_test

import (
	"context"
	"encoding/json"
	"os"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/feral-file/ff-marketplace/internal/dispatcher"
	"github.com/feral-file/ff-marketplace/internal/domain"
	"github.com/feral-file/ff-marketplace/internal/logger"
	"github.com/feral-file/ff-marketplace/internal/sideeffects"
	"github.com/feral-file/ff-marketplace/internal/store/schema"
	"github.com/feral-file/ff-marketplace/internal/store/storetest"
)

func TestMain(m *testing.M) {
	if err := logger.Initialize(logger.Config{Debug: false}); err != nil {
		panic(err)
	}

	code := m.Run()
	os.Exit(code)
}

func setup(t *testing.T) (dispatcher.Dispatcher, *storetest.Fixtures) {
	st, fx := storetest.NewStore(t)

	d := dispatcher.New(dispatcher.Config{Workers: 2})
	t.Cleanup(d.Close)
	sideeffects.Register(d, st)

	return d, fx
}

func TestWriters_History(t *testing.T) {
	d, fx := setup(t)
	alice := fx.User("0x00000000000000000000000000000000000000a1")
	artwork := fx.Artwork(storetest.ArtworkOptions{Creator: alice})

	report := d.Dispatch(context.Background(), sideeffects.HistoryMessage(sideeffects.History{
		Type:      domain.HistoryTypeArtworkCreated,
		Message:   "Artwork minted",
		ArtworkID: &artwork.ID,
		OwnerID:   &alice.ID,
		EventKey:  "ethereum:0xtx:1",
	}))
	require.True(t, report.OK(), "%v", report.Failures)

	var histories []schema.History
	require.NoError(t, fx.DB.Find(&histories).Error)
	require.Len(t, histories, 1)
	assert.Equal(t, domain.HistoryTypeArtworkCreated, histories[0].Type)
	assert.Equal(t, artwork.ID, *histories[0].ArtworkID)
	assert.Equal(t, alice.ID, *histories[0].OwnerID)
	assert.Nil(t, histories[0].AuctionID)

	var payload map[string]any
	require.NoError(t, json.Unmarshal(histories[0].Payload, &payload))
	assert.Equal(t, "ethereum:0xtx:1", payload["event_key"])
}

func TestWriters_NotificationAndTransaction(t *testing.T) {
	d, fx := setup(t)
	alice := fx.User("0x00000000000000000000000000000000000000a1")
	auctionID := int64(7)
	amount := decimal.RequireFromString("2.5")

	report := d.Dispatch(context.Background(),
		sideeffects.NotificationMessage(sideeffects.Notification{
			UserID:    alice.ID,
			Type:      domain.NotificationTypeNewBid,
			Message:   "New bid",
			Amount:    &amount,
			AuctionID: &auctionID,
		}),
		sideeffects.TransactionMessage(sideeffects.Transaction{
			UserID:    alice.ID,
			Type:      domain.TransactionTypeCredit,
			Activity:  domain.ActivityTypeNFTSale,
			Amount:    amount,
			Chain:     domain.CHAIN_POLYGON,
			AuctionID: &auctionID,
		}),
	)
	require.True(t, report.OK(), "%v", report.Failures)
	assert.Equal(t, 2, report.Delivered)

	var notification schema.Notification
	require.NoError(t, fx.DB.First(&notification).Error)
	assert.Equal(t, alice.ID, notification.UserID)
	assert.Equal(t, domain.NotificationTypeNewBid, notification.Type)
	require.NotNil(t, notification.Amount)
	assert.True(t, amount.Equal(*notification.Amount))
	assert.False(t, notification.Read)

	var extra map[string]any
	require.NoError(t, json.Unmarshal(notification.ExtraData, &extra))
	assert.Equal(t, float64(7), extra["auction_id"])
	assert.NotContains(t, extra, "artwork_id")

	var transaction schema.Transaction
	require.NoError(t, fx.DB.First(&transaction).Error)
	assert.Equal(t, domain.TransactionTypeCredit, transaction.Type)
	assert.Equal(t, domain.ActivityTypeNFTSale, transaction.Activity)
	assert.Equal(t, domain.CHAIN_POLYGON, transaction.Chain)
	assert.True(t, amount.Equal(transaction.Amount))
}

func TestWriters_Stats(t *testing.T) {
	d, fx := setup(t)
	alice := fx.User("0x00000000000000000000000000000000000000a1")
	bob := fx.User("0x00000000000000000000000000000000000000b2")

	report := d.Dispatch(context.Background(),
		sideeffects.StatsMessage(sideeffects.Stats{UserID: alice.ID, Update: domain.StatsUpdateOwnedArts}),
		sideeffects.StatsMessage(sideeffects.Stats{UserID: alice.ID, Update: domain.StatsUpdatePurchasedArts, Amount: decimal.RequireFromString("3")}),
		sideeffects.StatsMessage(sideeffects.Stats{UserID: bob.ID, Update: domain.StatsUpdateSoldArts, Amount: decimal.RequireFromString("3")}),
	)
	require.True(t, report.OK(), "%v", report.Failures)

	var aliceStats, bobStats schema.Stats
	require.NoError(t, fx.DB.First(&aliceStats, "user_id = ?", alice.ID).Error)
	require.NoError(t, fx.DB.First(&bobStats, "user_id = ?", bob.ID).Error)

	assert.Equal(t, int64(2), aliceStats.OwnedArts)
	assert.Equal(t, int64(1), aliceStats.PurchasedArts)
	assert.True(t, decimal.RequireFromString("3").Equal(aliceStats.TotalPurchasesAmount))
	assert.True(t, decimal.RequireFromString("3").Equal(aliceStats.BiggestPurchase))

	assert.Equal(t, int64(0), bobStats.OwnedArts)
	assert.Equal(t, int64(1), bobStats.SoldArts)
	assert.True(t, decimal.RequireFromString("3").Equal(bobStats.TotalSoldAmount))
}

func TestWriters_RejectsMalformedPayload(t *testing.T) {
	d, fx := setup(t)

	report := d.Dispatch(context.Background(),
		dispatcher.NewMessage(dispatcher.KindStats, map[string]any{"user_id": "not-a-number", "update": "ownedArts"}),
		dispatcher.NewMessage(dispatcher.KindHistory, map[string]any{"message": "no type"}),
	)

	require.Len(t, report.Failures, 2)
	handlers := []string{report.Failures[0].Handler, report.Failures[1].Handler}
	assert.ElementsMatch(t, []string{sideeffects.StatsUpdater, sideeffects.HistoryWriter}, handlers)
	assert.Equal(t, int64(0), fx.Count(&schema.History{}, ""))
	assert.Equal(t, int64(0), fx.Count(&schema.Stats{}, ""))
}
