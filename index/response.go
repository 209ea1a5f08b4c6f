package index

import (
	"fmt"

	"github.com/usktea/lunch-indexer/models"
)

// responses
type Coordinate struct {
	// X is the longitude, Y the latitude
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

type RestaurantMarker struct {
	RestaurantManagementNumber string     `json:"restaurantManagementNumber"`
	Name                       string     `json:"name"`
	Coordinate                 Coordinate `json:"coordinate"`
	MainCategory               *string    `json:"mainCategory"`
	DetailCategory             *string    `json:"detailCategory"`
}

type Cluster struct {
	H3Index     string             `json:"h3Index"`
	Center      Coordinate         `json:"center"`
	Boundary    []Coordinate       `json:"boundary"`
	Restaurants []RestaurantMarker `json:"restaurants"`
}

type SearchRestaurantsResponse struct {
	Clusters []Cluster `json:"clusters"`
}

type Place struct {
	ManagementNumber string   `json:"managementNumber"`
	Name             string   `json:"name"`
	MainCategory     *string  `json:"mainCategory"`
	DetailCategory   *string  `json:"detailCategory"`
	Address          *string  `json:"address"`
	Distance         int      `json:"distance"`
	WalkTime         int      `json:"walkTime"`
	AverageRating    *float64 `json:"averageRating"`
	ReviewCount      int      `json:"reviewCount"`
	AveragePrice     *int     `json:"averagePrice"`
	Latitude         float64  `json:"latitude"`
	Longitude        float64  `json:"longitude"`
}

type SearchPlacesResponse struct {
	Places []Place `json:"places"`
}

type BusinessInfoResponse struct {
	RestaurantManagementNumber string                `json:"restaurantManagementNumber"`
	Name                       string                `json:"name"`
	Contact                    *string               `json:"contact"`
	Link                       *string               `json:"link"`
	BusinessHours              []models.BusinessHour `json:"businessHours"`
	Menus                      []models.Menu         `json:"menus"`
	Summary                    *string               `json:"summary"`
	PriceRange                 *models.PriceRange    `json:"priceRange"`
	MainCategory               *string               `json:"mainCategory"`
	DetailCategory             *string               `json:"detailCategory"`
}

// errors
type RequestError struct {
	Message string `json:"error"`
	Code    int    `json:"code"`
}

func (r RequestError) Error() string {
	return fmt.Sprintf("Error %d: %s", r.Code, r.Message)
}

func badRequest(format string, args ...any) RequestError {
	return RequestError{Message: fmt.Sprintf(format, args...), Code: 400}
}
