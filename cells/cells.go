// Package cells maps coordinates onto the H3 hexagonal grid used to index restaurants.
package cells

import (
	"fmt"
	"math"
	"strconv"

	"github.com/uber/h3-go/v4"
)

// Resolutions stored on every restaurant, coarsest first
var Resolutions = []int{7, 8, 9, 10, 11}

// LatLng is a coordinate in degrees
type LatLng struct {
	Lat float64
	Lng float64
}

// BoundingBox is a map viewport given by its south-east and north-west corners
type BoundingBox struct {
	SouthEast LatLng
	NorthWest LatLng
}

// Valid reports whether both corners are finite and inside the coordinate ranges
func (b BoundingBox) Valid() bool {
	return validCoordinate(b.SouthEast.Lat, b.SouthEast.Lng) && validCoordinate(b.NorthWest.Lat, b.NorthWest.Lng)
}

// CellAt returns the cell containing the coordinate at resolution res
func CellAt(lat, lng float64, res int) (string, error) {
	if !validCoordinate(lat, lng) {
		return "", fmt.Errorf("invalid coordinate (%v, %v)", lat, lng)
	}
	c, err := h3.LatLngToCell(h3.NewLatLng(lat, lng), res)
	if err != nil {
		return "", fmt.Errorf("cell at res %d: %w", res, err)
	}
	return c.String(), nil
}

// Ladder returns the cell of the coordinate at each of Resolutions
func Ladder(lat, lng float64) ([]string, error) {
	ladder := make([]string, 0, len(Resolutions))
	for _, res := range Resolutions {
		c, err := CellAt(lat, lng, res)
		if err != nil {
			return nil, err
		}
		ladder = append(ladder, c)
	}
	return ladder, nil
}

// ZoomResolution maps a map zoom level to the resolution clusters are built at.
//
//	zoom | res | cell edge
//	  14 |  7  | ~1.2km
//	  15 |  8  | ~460m
//	  16 |  9  | ~170m
//	  17 | 10  | ~65m
//	  18 | 10  | ~65m
//	  19 | 11  | ~25m
func ZoomResolution(zoom int) int {
	switch zoom {
	case 14:
		return 7
	case 15:
		return 8
	case 16:
		return 9
	case 17, 18:
		return 10
	case 19:
		return 11
	default:
		return 10
	}
}

// MaxRadius is the largest search radius in meters RadiusParams accepts
const MaxRadius = 20000

// average cell edge in meters at resolutions 7 and 8
const (
	res7EdgeM = 1406.475763
	res8EdgeM = 531.414010
)

// RadiusParams picks the resolution and ring count of a radius search. The disk always
// covers more than maxDistance; the store filters the surplus by true distance.
func RadiusParams(maxDistance int) (res, k int) {
	switch {
	case maxDistance <= 300:
		return 9, 2
	case maxDistance <= 500:
		return 9, 3
	case maxDistance <= 1000:
		return 8, 3
	case maxDistance <= 2000:
		return 8, 4
	case maxDistance <= 5000:
		return 8, rings(maxDistance, res8EdgeM)
	default:
		return 7, rings(maxDistance, res7EdgeM)
	}
}

// rings bounds the grid distance of any cell holding a point within d meters. That cell's
// center is at most d plus two circumradii away, and every ring steps at least 1.5 edges
// outwards. Edges are scaled by 1.25 and 0.75 for cell size distortion.
func rings(d int, edge float64) int {
	return int(math.Ceil((float64(d) + 2.5*edge) / (1.125 * edge)))
}

// Covering returns every cell at res overlapping the box
func Covering(box BoundingBox, res int) ([]string, error) {
	if !box.Valid() {
		return nil, fmt.Errorf("invalid bounding box %+v", box)
	}
	se, nw := box.SouthEast, box.NorthWest
	polygon := h3.GeoPolygon{
		GeoLoop: h3.GeoLoop{
			h3.NewLatLng(se.Lat, nw.Lng), // south-west
			h3.NewLatLng(se.Lat, se.Lng),
			h3.NewLatLng(nw.Lat, se.Lng), // north-east
			h3.NewLatLng(nw.Lat, nw.Lng),
		},
	}
	found, err := h3.PolygonToCellsExperimental(polygon, res, h3.ContainmentOverlapping)
	if err != nil {
		return nil, fmt.Errorf("covering at res %d: %w", res, err)
	}
	return toStrings(found), nil
}

// Disk returns the cells within k steps of the cell containing the coordinate
func Disk(lat, lng float64, res, k int) ([]string, error) {
	if !validCoordinate(lat, lng) {
		return nil, fmt.Errorf("invalid coordinate (%v, %v)", lat, lng)
	}
	origin, err := h3.LatLngToCell(h3.NewLatLng(lat, lng), res)
	if err != nil {
		return nil, fmt.Errorf("cell at res %d: %w", res, err)
	}
	disk, err := origin.GridDisk(k)
	if err != nil {
		return nil, fmt.Errorf("grid disk k=%d: %w", k, err)
	}
	return toStrings(disk), nil
}

// Center returns the centroid of a cell
func Center(cell string) (LatLng, error) {
	c, err := parse(cell)
	if err != nil {
		return LatLng{}, err
	}
	ll, err := c.LatLng()
	if err != nil {
		return LatLng{}, fmt.Errorf("center of %s: %w", cell, err)
	}
	return LatLng{Lat: ll.Lat, Lng: ll.Lng}, nil
}

// Boundary returns the vertices of a cell
func Boundary(cell string) ([]LatLng, error) {
	c, err := parse(cell)
	if err != nil {
		return nil, err
	}
	b, err := c.Boundary()
	if err != nil {
		return nil, fmt.Errorf("boundary of %s: %w", cell, err)
	}
	out := make([]LatLng, 0, len(b))
	for _, v := range b {
		out = append(out, LatLng{Lat: v.Lat, Lng: v.Lng})
	}
	return out, nil
}

// Resolution returns the resolution of a cell
func Resolution(cell string) (int, error) {
	c, err := parse(cell)
	if err != nil {
		return 0, err
	}
	return c.Resolution(), nil
}

func parse(cell string) (h3.Cell, error) {
	v, err := strconv.ParseUint(cell, 16, 64)
	if err != nil {
		return 0, fmt.Errorf("parse cell %q: %w", cell, err)
	}
	c := h3.Cell(v)
	if !c.IsValid() {
		return 0, fmt.Errorf("invalid cell %q", cell)
	}
	return c, nil
}

func toStrings(cs []h3.Cell) []string {
	out := make([]string, 0, len(cs))
	for _, c := range cs {
		if c == 0 {
			continue
		}
		out = append(out, c.String())
	}
	return out
}

func validCoordinate(lat, lng float64) bool {
	if math.IsNaN(lat) || math.IsNaN(lng) || math.IsInf(lat, 0) || math.IsInf(lng, 0) {
		return false
	}
	return lat >= -90 && lat <= 90 && lng >= -180 && lng <= 180
}
