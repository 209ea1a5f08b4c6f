package index

import (
	"math"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/usktea/lunch-indexer/cells"
	"github.com/usktea/lunch-indexer/models"
)

// Parsing

// ParseBoundary reads a viewport given as "seLon;seLat;nwLon;nwLat"
func ParseBoundary(str string) (cells.BoundingBox, error) {
	parts := strings.Split(strings.TrimSpace(str), ";")
	if len(parts) != 4 {
		return cells.BoundingBox{}, badRequest("boundary must be seLon;seLat;nwLon;nwLat, got %q", str)
	}
	var v [4]float64
	for i, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			return cells.BoundingBox{}, badRequest("invalid boundary value %q", p)
		}
		v[i] = f
	}
	box := cells.BoundingBox{
		SouthEast: cells.LatLng{Lat: v[1], Lng: v[0]},
		NorthWest: cells.LatLng{Lat: v[3], Lng: v[2]},
	}
	if !box.Valid() {
		return cells.BoundingBox{}, badRequest("boundary out of range: %q", str)
	}
	return box, nil
}

func ParseSortBy(str *string) (SortBy, error) {
	if str == nil || *str == "" {
		return SortByDistance, nil
	}
	switch s := SortBy(*str); s {
	case SortByDistance, SortByRating, SortByReviewCount:
		return s, nil
	default:
		return "", badRequest("sortBy must be one of distance, rating, reviewCount")
	}
}

// Scanning
func ScanMarker(row pgx.Row) (*models.Restaurant, error) {
	var r models.Restaurant
	err := row.Scan(&r.ManagementNumber, &r.Name, &r.MainCategory, &r.DetailCategory,
		&r.Longitude, &r.Latitude, &r.H3Indices)
	if err != nil {
		return nil, err
	}
	r.Status = models.StatusOpen
	return &r, nil
}

func ScanRestaurant(row pgx.Row) (*models.Restaurant, error) {
	var r models.Restaurant
	var status string
	var minimum, maximum *int
	err := row.Scan(&r.ManagementNumber, &r.Name, &r.Contact,
		&r.Sido, &r.Sigungu, &r.Dongmyun, &r.Ri, &r.Road, &r.BuildingNumber, &r.Address,
		&r.Longitude, &r.Latitude, &status, &r.H3Indices,
		&r.ExternalLink, &r.MainCategory, &r.DetailCategory,
		&r.BusinessHours, &r.Menus, &r.Summary, &minimum, &maximum)
	if err != nil {
		return nil, err
	}
	r.Status = models.BusinessStatus(status)
	if minimum != nil && maximum != nil {
		r.PriceRange = &models.PriceRange{Minimum: *minimum, Maximum: *maximum}
	}
	return &r, nil
}

func ScanPlace(row pgx.Row) (*PlaceRow, error) {
	var p PlaceRow
	err := row.Scan(&p.ManagementNumber, &p.Name, &p.MainCategory, &p.DetailCategory, &p.Address,
		&p.Distance, &p.AverageRating, &p.ReviewCount, &p.PriceMinimum, &p.PriceMaximum,
		&p.Latitude, &p.Longitude)
	if err != nil {
		return nil, err
	}
	return &p, nil
}
