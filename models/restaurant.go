package models

import (
	"fmt"
	"strconv"
	"strings"
)

// BusinessStatus is the lifecycle state of a mirrored restaurant
type BusinessStatus string

const (
	StatusOpen    BusinessStatus = "OPEN"
	StatusClosed  BusinessStatus = "CLOSED"
	StatusUnknown BusinessStatus = "UNKNOWN"
)

// StatusFromTradeState maps the registry trade-state code to a BusinessStatus
func StatusFromTradeState(code string) BusinessStatus {
	switch code {
	case "01":
		return StatusOpen
	case "03":
		return StatusClosed
	default:
		return StatusUnknown
	}
}

// Restaurant is a row of lunch.restaurant
type Restaurant struct {
	ManagementNumber string
	Name             string
	Contact          *string

	Sido           *string
	Sigungu        *string
	Dongmyun       *string
	Ri             *string
	Road           *string
	BuildingNumber *string
	Address        *string

	// Longitude and Latitude of the point geometry, SRID 4326
	Longitude float64
	Latitude  float64

	Status BusinessStatus

	// H3Indices holds one cell per indexed resolution, coarsest first
	H3Indices []string

	ExternalLink   *string
	MainCategory   *string
	DetailCategory *string
	BusinessHours  []BusinessHour
	Menus          []Menu
	Summary        *string
	PriceRange     *PriceRange
}

// PointWKT renders the location as well-known text, x being the longitude
func (r *Restaurant) PointWKT() string {
	return fmt.Sprintf("POINT(%s %s)",
		strconv.FormatFloat(r.Longitude, 'f', -1, 64),
		strconv.FormatFloat(r.Latitude, 'f', -1, 64))
}

type PriceRange struct {
	Minimum int `json:"minimum"`
	Maximum int `json:"maximum"`
}

type Menu struct {
	Name             string `json:"name"`
	Price            int    `json:"price"`
	IsRepresentative bool   `json:"isRepresentative"`
}

type BusinessHour struct {
	Day              Day     `json:"day"`
	OpenAt           string  `json:"openAt"`
	CloseAt          string  `json:"closeAt"`
	BreakTimeStartAt *string `json:"breakTimeStartAt"`
	BreakTimeEndAt   *string `json:"breakTimeEndAt"`
	IsOpen           bool    `json:"isOpen"`
}

// Day of week, ordered from Sunday
type Day string

const (
	Sunday    Day = "SUN"
	Monday    Day = "MON"
	Tuesday   Day = "TUE"
	Wednesday Day = "WED"
	Thursday  Day = "THU"
	Friday    Day = "FRI"
	Saturday  Day = "SAT"
)

var dayOrder = map[Day]int{
	Sunday: 0, Monday: 1, Tuesday: 2, Wednesday: 3, Thursday: 4, Friday: 5, Saturday: 6,
}

// Order returns the position of the day in a Sunday-first week; unknown days sort last.
func (d Day) Order() int {
	if o, ok := dayOrder[d]; ok {
		return o
	}
	return len(dayOrder)
}

// Category is the main food category filter of place search
type Category string

const (
	Korean   Category = "KOREAN"
	Chinese  Category = "CHINESE"
	Japanese Category = "JAPANESE"
	Western  Category = "WESTERN"
)

var categoryLabels = map[Category]string{
	Korean:   "한식",
	Chinese:  "중식",
	Japanese: "일식",
	Western:  "양식",
}

// ParseCategory accepts the enum name in any letter case
func ParseCategory(s string) (Category, error) {
	c := Category(strings.ToUpper(strings.TrimSpace(s)))
	if _, ok := categoryLabels[c]; !ok {
		return "", fmt.Errorf("unknown category %q", s)
	}
	return c, nil
}

// Label is the value stored in lunch.restaurant.main_category
func (c Category) Label() string {
	return categoryLabels[c]
}
