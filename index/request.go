package index

import (
	"time"
)

// settings
type RequestSettings struct {
	Timeout time.Duration
}

// requests
type SearchRestaurantsRequest struct {
	Boundary  string `query:"boundary"`
	ZoomLevel *int   `query:"zoomLevel"`
}

type SearchPlacesRequest struct {
	CenterLat   *float64 `query:"centerLat"`
	CenterLon   *float64 `query:"centerLon"`
	Keyword     *string  `query:"keyword"`
	Category    *string  `query:"category"`
	SortBy      *string  `query:"sortBy"`
	MaxDistance *int     `query:"maxDistance"`
}

type SortBy string

const (
	SortByDistance    SortBy = "distance"
	SortByRating      SortBy = "rating"
	SortByReviewCount SortBy = "reviewCount"
)

const (
	DefaultMaxDistance = 500
	PlacesLimit        = 50
)
