package rest

import (
	"fmt"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/feral-file/ff-marketplace/internal/domain"
	"github.com/feral-file/ff-marketplace/internal/query"
	"github.com/feral-file/ff-marketplace/internal/store"
)

// PageQueryParams holds the pagination query parameters shared by list endpoints
type PageQueryParams struct {
	Limit  int `form:"limit,default=20"`
	Offset int `form:"offset,default=0"`
}

// Page converts the parameters into a query page
func (p PageQueryParams) Page() query.Page {
	return query.Page{Offset: p.Offset, Limit: p.Limit}
}

// ListArtworksQueryParams holds query parameters for GET /artworks
type ListArtworksQueryParams struct {
	PageQueryParams

	// Filters
	Type          string `form:"type"`
	IsAuctionOpen *bool  `form:"is_auction_open"`
	OpenForSale   *bool  `form:"open_for_sale"`
	CreatorID     *int64 `form:"creator_id"`
	OwnerID       *int64 `form:"owner_id"`
	CollectionID  *int64 `form:"collection_id"`
	Genre         string `form:"genre"`
}

// ParsePageQuery parses the pagination query parameters
func ParsePageQuery(c *gin.Context) (*PageQueryParams, error) {
	var params PageQueryParams
	if err := c.ShouldBindQuery(&params); err != nil {
		return nil, err
	}
	if err := params.validate(); err != nil {
		return nil, err
	}
	return &params, nil
}

// ParseListArtworksQuery parses query parameters for GET /artworks
func ParseListArtworksQuery(c *gin.Context) (*ListArtworksQueryParams, error) {
	var params ListArtworksQueryParams
	if err := c.ShouldBindQuery(&params); err != nil {
		return nil, err
	}
	if err := params.validate(); err != nil {
		return nil, err
	}
	if params.Type != "" && !domain.ArtworkType(params.Type).IsValid() {
		return nil, fmt.Errorf("invalid artwork type: %s", params.Type)
	}
	return &params, nil
}

// Filter converts the parameters into a store filter
func (p *ListArtworksQueryParams) Filter() store.ArtworkFilter {
	filter := store.ArtworkFilter{
		IsAuctionOpen: p.IsAuctionOpen,
		OpenForSale:   p.OpenForSale,
		CreatorID:     p.CreatorID,
		OwnerID:       p.OwnerID,
		CollectionID:  p.CollectionID,
	}
	if p.Type != "" {
		artworkType := domain.ArtworkType(p.Type)
		filter.ArtworkType = &artworkType
	}
	if p.Genre != "" {
		genre := p.Genre
		filter.Genre = &genre
	}
	return filter
}

// validate rejects negative windows; the query service caps the limit
func (p PageQueryParams) validate() error {
	if p.Limit < 0 {
		return fmt.Errorf("limit must not be negative")
	}
	if p.Offset < 0 {
		return fmt.Errorf("offset must not be negative")
	}
	return nil
}

// parseID parses a positive numeric path parameter
func parseID(c *gin.Context, name string) (int64, error) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid %s: %q", name, c.Param(name))
	}
	return id, nil
}
