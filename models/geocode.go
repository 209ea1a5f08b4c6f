package models

import (
	"fmt"
	"slices"
	"strconv"
)

// Address element types of the geocoding provider
const (
	ElementSido           = "SIDO"
	ElementSigugun        = "SIGUGUN"
	ElementDongmyun       = "DONGMYUN"
	ElementRi             = "RI"
	ElementRoadName       = "ROAD_NAME"
	ElementBuildingNumber = "BUILDING_NUMBER"
)

// GeocodeResponse is the body of a Naver Maps geocode v2 call
type GeocodeResponse struct {
	Status       string           `json:"status"`
	Meta         GeocodeMeta      `json:"meta"`
	Addresses    []GeocodeAddress `json:"addresses"`
	ErrorMessage string           `json:"errorMessage,omitempty"`
}

type GeocodeMeta struct {
	TotalCount int `json:"totalCount"`
	Page       int `json:"page"`
	Count      int `json:"count"`
}

type GeocodeAddress struct {
	RoadAddress     string           `json:"roadAddress"`
	JibunAddress    string           `json:"jibunAddress"`
	EnglishAddress  string           `json:"englishAddress"`
	AddressElements []AddressElement `json:"addressElements"`
	// X is the longitude and Y the latitude, both as decimal strings
	X        string  `json:"x"`
	Y        string  `json:"y"`
	Distance float64 `json:"distance"`
}

type AddressElement struct {
	Types     []string `json:"types"`
	LongName  string   `json:"longName"`
	ShortName string   `json:"shortName"`
	Code      string   `json:"code"`
}

// First returns the best candidate, if any
func (r *GeocodeResponse) First() (*GeocodeAddress, bool) {
	if r == nil || len(r.Addresses) == 0 {
		return nil, false
	}
	return &r.Addresses[0], true
}

// Element returns the long name of the first element tagged with typ
func (a *GeocodeAddress) Element(typ string) *string {
	for _, e := range a.AddressElements {
		if slices.Contains(e.Types, typ) {
			name := e.LongName
			return &name
		}
	}
	return nil
}

// Coordinates parses the candidate position
func (a *GeocodeAddress) Coordinates() (lng, lat float64, err error) {
	lng, err = strconv.ParseFloat(a.X, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("parse x %q: %w", a.X, err)
	}
	lat, err = strconv.ParseFloat(a.Y, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("parse y %q: %w", a.Y, err)
	}
	return lng, lat, nil
}
