package index

// PlaceQuery is a validated radius search handed to the store
type PlaceQuery struct {
	Cells       []string
	CenterLat   float64
	CenterLon   float64
	MaxDistance int
	// Keyword and MainCategory are skipped when empty
	Keyword      string
	MainCategory string
	SortBy       SortBy
	Limit        int
}

// PlaceRow is one radius search hit before post-processing
type PlaceRow struct {
	ManagementNumber string
	Name             string
	MainCategory     *string
	DetailCategory   *string
	Address          *string
	Distance         int
	AverageRating    float64
	ReviewCount      int
	PriceMinimum     *int
	PriceMaximum     *int
	Latitude         float64
	Longitude        float64
}
