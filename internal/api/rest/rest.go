package rest

import (
	"github.com/gin-gonic/gin"
)

// SetupRoutes configures all REST API routes
func SetupRoutes(router *gin.Engine, handler Handler) {
	// Health check endpoint (no version prefix)
	router.GET("/health", handler.HealthCheck)

	// API v1 routes
	v1 := router.Group("/api/v1")
	{
		// Artwork endpoints
		v1.GET("/artworks", handler.ListArtworks)
		v1.GET("/artworks/:id", handler.GetArtwork)
		v1.POST("/artworks/:id/views", handler.IncrementArtworkViews)
		v1.GET("/artworks/:id/history", handler.ListArtworkHistory)

		// Auction endpoints
		v1.GET("/auctions/:id/bids", handler.ListAuctionBids)

		// User projections
		users := v1.Group("/users/:id")
		users.GET("/notifications", handler.ListUserNotifications)
		users.GET("/transactions", handler.ListUserTransactions)
		users.GET("/stats", handler.GetUserStats)
		users.GET("/auctions/won", handler.ListWonAuctions)
		users.GET("/auctions/sold", handler.ListSoldAuctions)
		users.GET("/auctions/expired", handler.ListExpiredAuctions)
		users.GET("/collections", handler.ListUserCollections)
		users.GET("/favourites", handler.ListFavouriteArtworks)
		users.GET("/followers", handler.ListFollowers)
		users.GET("/following", handler.ListFollowing)
	}
}
