package rest

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/feral-file/ff-marketplace/internal/query"
)

// Handler defines the interface for REST API handlers
type Handler interface {
	// ListArtworks retrieves artworks with optional filters
	// GET /api/v1/artworks?type=<type>&is_auction_open=<bool>&open_for_sale=<bool>&creator_id=<id>&owner_id=<id>&collection_id=<id>&genre=<genre>&limit=<limit>&offset=<offset>
	ListArtworks(c *gin.Context)

	// GetArtwork retrieves an artwork with its collection and open auction or sale
	// GET /api/v1/artworks/:id
	GetArtwork(c *gin.Context)

	// IncrementArtworkViews counts a view of an artwork
	// POST /api/v1/artworks/:id/views
	IncrementArtworkViews(c *gin.Context)

	// ListArtworkHistory retrieves the history of an artwork
	// GET /api/v1/artworks/:id/history?limit=<limit>&offset=<offset>
	ListArtworkHistory(c *gin.Context)

	// ListAuctionBids retrieves the bids of an auction, highest first
	// GET /api/v1/auctions/:id/bids?limit=<limit>&offset=<offset>
	ListAuctionBids(c *gin.Context)

	// ListUserNotifications retrieves the notifications of a user
	// GET /api/v1/users/:id/notifications?limit=<limit>&offset=<offset>
	ListUserNotifications(c *gin.Context)

	// ListUserTransactions retrieves the transactions of a user
	// GET /api/v1/users/:id/transactions?limit=<limit>&offset=<offset>
	ListUserTransactions(c *gin.Context)

	// GetUserStats retrieves the trading counters of a user
	// GET /api/v1/users/:id/stats
	GetUserStats(c *gin.Context)

	// ListWonAuctions retrieves auctions the user won
	// GET /api/v1/users/:id/auctions/won
	ListWonAuctions(c *gin.Context)

	// ListSoldAuctions retrieves auctions the user sold
	// GET /api/v1/users/:id/auctions/sold
	ListSoldAuctions(c *gin.Context)

	// ListExpiredAuctions retrieves open auctions of the user past their end time
	// GET /api/v1/users/:id/auctions/expired
	ListExpiredAuctions(c *gin.Context)

	// ListUserCollections retrieves the collections of a user
	// GET /api/v1/users/:id/collections
	ListUserCollections(c *gin.Context)

	// ListFavouriteArtworks retrieves artworks the user liked
	// GET /api/v1/users/:id/favourites
	ListFavouriteArtworks(c *gin.Context)

	// ListFollowers retrieves users following the user
	// GET /api/v1/users/:id/followers
	ListFollowers(c *gin.Context)

	// ListFollowing retrieves users the user follows
	// GET /api/v1/users/:id/following
	ListFollowing(c *gin.Context)

	// HealthCheck returns the health status of the API
	// GET /health
	HealthCheck(c *gin.Context)
}

// handler implements the Handler interface
type handler struct {
	service query.Service
}

// NewHandler creates a new REST API handler on top of the query service
func NewHandler(service query.Service) Handler {
	return &handler{service: service}
}

// ListArtworks retrieves artworks with optional filters
func (h *handler) ListArtworks(c *gin.Context) {
	params, err := ParseListArtworksQuery(c)
	if err != nil {
		respondValidationError(c, err.Error())
		return
	}

	list, err := h.service.ListArtworks(c.Request.Context(), params.Filter(), params.Page())
	if err != nil {
		respondQueryError(c, err, "Failed to list artworks")
		return
	}

	c.JSON(http.StatusOK, list)
}

// GetArtwork retrieves a single artwork by its id
func (h *handler) GetArtwork(c *gin.Context) {
	id, err := parseID(c, "id")
	if err != nil {
		respondBadRequest(c, "Invalid artwork id", err.Error())
		return
	}

	artwork, err := h.service.GetArtwork(c.Request.Context(), id)
	if err != nil {
		respondQueryError(c, err, "Failed to retrieve artwork")
		return
	}

	c.JSON(http.StatusOK, artwork)
}

// IncrementArtworkViews counts a view of an artwork
func (h *handler) IncrementArtworkViews(c *gin.Context) {
	id, err := parseID(c, "id")
	if err != nil {
		respondBadRequest(c, "Invalid artwork id", err.Error())
		return
	}

	views, err := h.service.IncrementViews(c.Request.Context(), id)
	if err != nil {
		respondQueryError(c, err, "Failed to count artwork view")
		return
	}

	c.JSON(http.StatusOK, gin.H{"views": views})
}

// ListArtworkHistory retrieves the history of an artwork
func (h *handler) ListArtworkHistory(c *gin.Context) {
	listByID(c, "Invalid artwork id", "Failed to list artwork history", h.service.ListArtworkHistory)
}

// ListAuctionBids retrieves the bids of an auction
func (h *handler) ListAuctionBids(c *gin.Context) {
	listByID(c, "Invalid auction id", "Failed to list auction bids", h.service.ListAuctionBids)
}

// ListUserNotifications retrieves the notifications of a user
func (h *handler) ListUserNotifications(c *gin.Context) {
	listByID(c, "Invalid user id", "Failed to list notifications", h.service.ListUserNotifications)
}

// ListUserTransactions retrieves the transactions of a user
func (h *handler) ListUserTransactions(c *gin.Context) {
	listByID(c, "Invalid user id", "Failed to list transactions", h.service.ListUserTransactions)
}

// GetUserStats retrieves the trading counters of a user
func (h *handler) GetUserStats(c *gin.Context) {
	id, err := parseID(c, "id")
	if err != nil {
		respondBadRequest(c, "Invalid user id", err.Error())
		return
	}

	stats, err := h.service.GetUserStats(c.Request.Context(), id)
	if err != nil {
		respondQueryError(c, err, "Failed to retrieve user stats")
		return
	}

	c.JSON(http.StatusOK, stats)
}

// ListWonAuctions retrieves auctions the user won
func (h *handler) ListWonAuctions(c *gin.Context) {
	listByID(c, "Invalid user id", "Failed to list won auctions", h.service.ListWonAuctions)
}

// ListSoldAuctions retrieves auctions the user sold
func (h *handler) ListSoldAuctions(c *gin.Context) {
	listByID(c, "Invalid user id", "Failed to list sold auctions", h.service.ListSoldAuctions)
}

// ListExpiredAuctions retrieves expired auctions of the user
func (h *handler) ListExpiredAuctions(c *gin.Context) {
	listByID(c, "Invalid user id", "Failed to list expired auctions", h.service.ListExpiredAuctions)
}

// ListUserCollections retrieves the collections of a user
func (h *handler) ListUserCollections(c *gin.Context) {
	listByID(c, "Invalid user id", "Failed to list collections", h.service.ListCollections)
}

// ListFavouriteArtworks retrieves artworks the user liked
func (h *handler) ListFavouriteArtworks(c *gin.Context) {
	listByID(c, "Invalid user id", "Failed to list favourite artworks", h.service.ListFavouriteArtworks)
}

// ListFollowers retrieves users following the user
func (h *handler) ListFollowers(c *gin.Context) {
	listByID(c, "Invalid user id", "Failed to list followers", h.service.ListFollowers)
}

// ListFollowing retrieves users the user follows
func (h *handler) ListFollowing(c *gin.Context) {
	listByID(c, "Invalid user id", "Failed to list following", h.service.ListFollowing)
}

// HealthCheck returns the health status of the API
func (h *handler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"service": "ff-marketplace-api",
	})
}

// listByID serves a paginated projection scoped by the :id path parameter
func listByID[T any](
	c *gin.Context,
	invalidID string,
	failure string,
	list func(ctx context.Context, id int64, page query.Page) (*query.List[T], error),
) {
	id, err := parseID(c, "id")
	if err != nil {
		respondBadRequest(c, invalidID, err.Error())
		return
	}

	params, err := ParsePageQuery(c)
	if err != nil {
		respondValidationError(c, err.Error())
		return
	}

	result, err := list(c.Request.Context(), id, params.Page())
	if err != nil {
		respondQueryError(c, err, failure)
		return
	}

	c.JSON(http.StatusOK, result)
}
