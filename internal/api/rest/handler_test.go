package rest_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang/mock/gomock"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/feral-file/ff-marketplace/internal/api/rest"
	"github.com/feral-file/ff-marketplace/internal/domain"
	"github.com/feral-file/ff-marketplace/internal/logger"
	"github.com/feral-file/ff-marketplace/internal/mocks"
	"github.com/feral-file/ff-marketplace/internal/query"
	"github.com/feral-file/ff-marketplace/internal/store/schema"
	"github.com/feral-file/ff-marketplace/internal/store/storetest"
)

func TestMain(m *testing.M) {
	// Initialize logger for tests
	err := logger.Initialize(logger.Config{
		Debug: false,
	})
	if err != nil {
		panic(err)
	}

	gin.SetMode(gin.TestMode)
	m.Run()
}

type testAPI struct {
	router *gin.Engine
	fx     *storetest.Fixtures
	alice  *schema.User
	bob    *schema.User
}

func setupTestAPI(t *testing.T) *testAPI {
	t.Helper()

	ctrl := gomock.NewController(t)
	clock := mocks.NewMockClock(ctrl)
	clock.EXPECT().Now().Return(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)).AnyTimes()

	st, fx := storetest.NewStore(t)

	router := gin.New()
	rest.SetupRoutes(router, rest.NewHandler(query.New(st, clock)))

	return &testAPI{
		router: router,
		fx:     fx,
		alice:  fx.User("0xa11ce00000000000000000000000000000000001"),
		bob:    fx.User("0xb0b0000000000000000000000000000000000002"),
	}
}

func (a *testAPI) do(t *testing.T, method, path string) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(method, path, nil)
	rec := httptest.NewRecorder()
	a.router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()

	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v))
	return v
}

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details"`
}

func TestHealthCheck(t *testing.T) {
	api := setupTestAPI(t)

	rec := api.do(t, http.MethodGet, "/health")
	require.Equal(t, http.StatusOK, rec.Code)

	body := decode[map[string]string](t, rec)
	assert.Equal(t, "ok", body["status"])
}

func TestListArtworks(t *testing.T) {
	api := setupTestAPI(t)

	api.fx.Artwork(storetest.ArtworkOptions{Creator: api.alice})
	api.fx.Artwork(storetest.ArtworkOptions{Creator: api.alice})
	api.fx.Artwork(storetest.ArtworkOptions{Creator: api.bob})

	t.Run("filtered by owner", func(t *testing.T) {
		rec := api.do(t, http.MethodGet, "/api/v1/artworks?owner_id="+itoa(api.alice.ID)+"&limit=1")
		require.Equal(t, http.StatusOK, rec.Code)

		list := decode[query.List[query.ArtworkResponse]](t, rec)
		assert.Equal(t, int64(2), list.Total)
		require.Len(t, list.Items, 1)
		assert.Equal(t, api.alice.ID, *list.Items[0].OwnerID)
	})

	t.Run("empty result", func(t *testing.T) {
		rec := api.do(t, http.MethodGet, "/api/v1/artworks?is_auction_open=true")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `{"items":[],"total":0}`, rec.Body.String())
	})

	tests := []struct {
		name  string
		query string
	}{
		{name: "unknown type", query: "type=sculpture"},
		{name: "negative limit", query: "limit=-1"},
		{name: "negative offset", query: "offset=-3"},
		{name: "malformed bool", query: "open_for_sale=maybe"},
		{name: "malformed id", query: "creator_id=abc"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := api.do(t, http.MethodGet, "/api/v1/artworks?"+tt.query)
			require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
			assert.Equal(t, "validation_failed", decode[errorBody](t, rec).Code)
		})
	}
}

func TestGetArtwork(t *testing.T) {
	api := setupTestAPI(t)

	collection := api.fx.Collection(api.alice, domain.CHAIN_ETHEREUM, "Genesis", "0x3333333333333333333333333333333333333333")
	artwork := api.fx.Artwork(storetest.ArtworkOptions{Creator: api.alice, Collection: collection, TokenID: "5"})

	rec := api.do(t, http.MethodGet, "/api/v1/artworks/"+itoa(artwork.ID))
	require.Equal(t, http.StatusOK, rec.Code)

	resp := decode[query.ArtworkResponse](t, rec)
	assert.Equal(t, artwork.ID, resp.ID)
	require.NotNil(t, resp.TokenID)
	assert.Equal(t, "5", *resp.TokenID)
	require.NotNil(t, resp.Collection)
	assert.Equal(t, "Genesis", resp.Collection.Name)

	rec = api.do(t, http.MethodGet, "/api/v1/artworks/999")
	require.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "not_found", decode[errorBody](t, rec).Code)

	rec = api.do(t, http.MethodGet, "/api/v1/artworks/abc")
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "bad_request", decode[errorBody](t, rec).Code)

	rec = api.do(t, http.MethodGet, "/api/v1/artworks/0")
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestIncrementArtworkViews(t *testing.T) {
	api := setupTestAPI(t)

	artwork := api.fx.Artwork(storetest.ArtworkOptions{Creator: api.alice})

	rec := api.do(t, http.MethodPost, "/api/v1/artworks/"+itoa(artwork.ID)+"/views")
	require.Equal(t, http.StatusOK, rec.Code)
	rec = api.do(t, http.MethodPost, "/api/v1/artworks/"+itoa(artwork.ID)+"/views")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"views":2}`, rec.Body.String())

	rec = api.do(t, http.MethodPost, "/api/v1/artworks/424242/views")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestListAuctionBids(t *testing.T) {
	api := setupTestAPI(t)

	artwork := api.fx.Artwork(storetest.ArtworkOptions{Creator: api.alice})
	auction := &schema.Auction{
		Chain:         domain.CHAIN_ETHEREUM,
		ContractAucID: "1",
		ArtworkID:     artwork.ID,
		OwnerID:       api.alice.ID,
		CreatorID:     api.alice.ID,
		InitialPrice:  decimal.NewFromInt(1),
		Status:        domain.AuctionStatusOpen,
	}
	require.NoError(t, api.fx.DB.Create(auction).Error)

	for i, amount := range []int64{2, 5, 3} {
		require.NoError(t, api.fx.DB.Create(&schema.Bid{
			AuctionID: auction.ID,
			ArtworkID: artwork.ID,
			BidderID:  api.bob.ID,
			OwnerID:   api.alice.ID,
			Amount:    decimal.NewFromInt(amount),
			EventKey:  "ethereum:0xbid:" + itoa(int64(i)),
		}).Error)
	}

	rec := api.do(t, http.MethodGet, "/api/v1/auctions/"+itoa(auction.ID)+"/bids?limit=2")
	require.Equal(t, http.StatusOK, rec.Code)

	list := decode[query.List[query.BidResponse]](t, rec)
	assert.Equal(t, int64(3), list.Total)
	require.Len(t, list.Items, 2)
	assert.True(t, list.Items[0].Amount.Equal(decimal.NewFromInt(5)))
	assert.True(t, list.Items[1].Amount.Equal(decimal.NewFromInt(3)))

	rec = api.do(t, http.MethodGet, "/api/v1/auctions/77/bids")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestUserProjections(t *testing.T) {
	api := setupTestAPI(t)

	require.NoError(t, api.fx.DB.Create(&schema.Notification{
		UserID:  api.alice.ID,
		Type:    domain.NotificationTypeNewBid,
		Message: "New bid",
	}).Error)

	paths := []string{
		"/notifications",
		"/transactions",
		"/auctions/won",
		"/auctions/sold",
		"/auctions/expired",
		"/collections",
		"/favourites",
		"/followers",
		"/following",
	}

	for _, path := range paths {
		t.Run(path, func(t *testing.T) {
			rec := api.do(t, http.MethodGet, "/api/v1/users/"+itoa(api.alice.ID)+path)
			require.Equal(t, http.StatusOK, rec.Code)

			rec = api.do(t, http.MethodGet, "/api/v1/users/999"+path)
			require.Equal(t, http.StatusNotFound, rec.Code)
			assert.Equal(t, "not_found", decode[errorBody](t, rec).Code)

			rec = api.do(t, http.MethodGet, "/api/v1/users/x"+path)
			require.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}

	rec := api.do(t, http.MethodGet, "/api/v1/users/"+itoa(api.alice.ID)+"/notifications")
	list := decode[query.List[query.NotificationResponse]](t, rec)
	require.Len(t, list.Items, 1)
	assert.Equal(t, "New bid", list.Items[0].Message)
}

func TestGetUserStats(t *testing.T) {
	api := setupTestAPI(t)

	rec := api.do(t, http.MethodGet, "/api/v1/users/"+itoa(api.bob.ID)+"/stats")
	require.Equal(t, http.StatusOK, rec.Code)

	stats := decode[query.StatsResponse](t, rec)
	assert.Equal(t, api.bob.ID, stats.UserID)
	assert.Zero(t, stats.OwnedArts)
	assert.True(t, stats.TotalSoldAmount.IsZero())

	rec = api.do(t, http.MethodGet, "/api/v1/users/31337/stats")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func itoa(n int64) string {
	return strconv.FormatInt(n, 10)
}
