package cells

import (
	"math"
	"slices"
	"testing"
)

const (
	gangnamLat = 37.50
	gangnamLng = 127.05
)

func TestLadder_DeterministicAndDistinct(t *testing.T) {
	first, err := Ladder(gangnamLat, gangnamLng)
	if err != nil {
		t.Fatalf("ladder: %v", err)
	}
	second, err := Ladder(gangnamLat, gangnamLng)
	if err != nil {
		t.Fatalf("ladder: %v", err)
	}
	if len(first) != len(Resolutions) {
		t.Fatalf("expected %d cells, got %d", len(Resolutions), len(first))
	}
	if !slices.Equal(first, second) {
		t.Errorf("ladder is not deterministic: %v vs %v", first, second)
	}

	seen := map[string]bool{}
	for i, c := range first {
		if seen[c] {
			t.Errorf("duplicate cell %s in ladder", c)
		}
		seen[c] = true

		res, err := Resolution(c)
		if err != nil {
			t.Fatalf("resolution of %s: %v", c, err)
		}
		if res != Resolutions[i] {
			t.Errorf("cell %d: expected resolution %d, got %d", i, Resolutions[i], res)
		}
	}
}

func TestCellAt_InvalidCoordinate(t *testing.T) {
	if _, err := CellAt(91, 0, 9); err == nil {
		t.Error("expected error for latitude 91")
	}
	if _, err := CellAt(math.NaN(), 127, 9); err == nil {
		t.Error("expected error for NaN latitude")
	}
}

func TestZoomResolution(t *testing.T) {
	cases := map[int]int{
		3: 10, 13: 10, 14: 7, 15: 8, 16: 9, 17: 10, 18: 10, 19: 11, 20: 10,
	}
	for zoom, want := range cases {
		if got := ZoomResolution(zoom); got != want {
			t.Errorf("zoom %d: expected %d, got %d", zoom, want, got)
		}
	}
}

func TestRadiusParams(t *testing.T) {
	cases := []struct {
		distance int
		res, k   int
	}{
		{100, 9, 2},
		{300, 9, 2},
		{301, 9, 3},
		{500, 9, 3},
		{1000, 8, 3},
		{1001, 8, 4},
		{2000, 8, 4},
		{2001, 8, 6},
		{3000, 8, 8},
		{5000, 8, 11},
		{5001, 7, 6},
		{MaxRadius, 7, 15},
	}
	for _, c := range cases {
		res, k := RadiusParams(c.distance)
		if res != c.res || k != c.k {
			t.Errorf("distance %d: expected (%d,%d), got (%d,%d)", c.distance, c.res, c.k, res, k)
		}
	}
}

func TestDisk(t *testing.T) {
	res, k := RadiusParams(300)
	disk, err := Disk(gangnamLat, gangnamLng, res, k)
	if err != nil {
		t.Fatalf("disk: %v", err)
	}
	// 1 + 6 + 12 away from pentagons
	if len(disk) != 19 {
		t.Errorf("expected 19 cells, got %d", len(disk))
	}

	origin, _ := CellAt(gangnamLat, gangnamLng, res)
	if !slices.Contains(disk, origin) {
		t.Errorf("disk does not contain origin %s", origin)
	}
}

// destination walks distance meters from (lat, lng) along bearing degrees on a sphere
func destination(lat, lng, bearing, distance float64) (float64, float64) {
	const earthRadius = 6371008.8
	lat1, lng1, theta := lat*math.Pi/180, lng*math.Pi/180, bearing*math.Pi/180
	delta := distance / earthRadius
	lat2 := math.Asin(math.Sin(lat1)*math.Cos(delta) + math.Cos(lat1)*math.Sin(delta)*math.Cos(theta))
	lng2 := lng1 + math.Atan2(math.Sin(theta)*math.Sin(delta)*math.Cos(lat1), math.Cos(delta)-math.Sin(lat1)*math.Sin(lat2))
	return lat2 * 180 / math.Pi, lng2 * 180 / math.Pi
}

func TestDisk_CoversRadius(t *testing.T) {
	var centers []LatLng
	for i := 0; i < 5; i++ {
		for j := 0; j < 4; j++ {
			centers = append(centers, LatLng{Lat: 37.45 + 0.037*float64(i), Lng: 126.85 + 0.083*float64(j)})
		}
	}

	for _, maxDistance := range []int{300, 500, 1000, 2000, 3000, 5000, 10000, MaxRadius} {
		res, k := RadiusParams(maxDistance)
		misses := 0
		for _, c := range centers {
			disk, err := Disk(c.Lat, c.Lng, res, k)
			if err != nil {
				t.Fatalf("disk: %v", err)
			}
			inDisk := make(map[string]bool, len(disk))
			for _, cell := range disk {
				inDisk[cell] = true
			}

			for bearing := 0; bearing < 360; bearing += 5 {
				lat, lng := destination(c.Lat, c.Lng, float64(bearing), 0.999*float64(maxDistance))
				ladder, err := Ladder(lat, lng)
				if err != nil {
					t.Fatalf("ladder: %v", err)
				}
				if !slices.ContainsFunc(ladder, func(cell string) bool { return inDisk[cell] }) {
					misses++
				}
			}
		}
		if misses > 0 {
			t.Errorf("%dm: (res %d, k %d) misses %d of %d points", maxDistance, res, k, misses, len(centers)*72)
		}
	}
}

func TestCenterAndBoundary(t *testing.T) {
	cell, err := CellAt(gangnamLat, gangnamLng, 9)
	if err != nil {
		t.Fatalf("cell: %v", err)
	}

	center, err := Center(cell)
	if err != nil {
		t.Fatalf("center: %v", err)
	}
	back, err := CellAt(center.Lat, center.Lng, 9)
	if err != nil {
		t.Fatalf("cell of center: %v", err)
	}
	if back != cell {
		t.Errorf("center of %s maps to %s", cell, back)
	}

	boundary, err := Boundary(cell)
	if err != nil {
		t.Fatalf("boundary: %v", err)
	}
	if len(boundary) != 6 {
		t.Errorf("expected a hexagon, got %d vertices", len(boundary))
	}
}

func TestCovering_ContainsInteriorCells(t *testing.T) {
	box := BoundingBox{
		SouthEast: LatLng{Lat: 37.495, Lng: 127.055},
		NorthWest: LatLng{Lat: 37.505, Lng: 127.045},
	}
	covering, err := Covering(box, 9)
	if err != nil {
		t.Fatalf("covering: %v", err)
	}
	if len(covering) == 0 {
		t.Fatal("expected a non-empty covering")
	}

	for _, p := range []LatLng{
		{gangnamLat, gangnamLng},
		box.SouthEast,
		box.NorthWest,
	} {
		c, _ := CellAt(p.Lat, p.Lng, 9)
		if !slices.Contains(covering, c) {
			t.Errorf("covering misses cell %s of (%v, %v)", c, p.Lat, p.Lng)
		}
	}
}

func TestCovering_InvalidBox(t *testing.T) {
	box := BoundingBox{SouthEast: LatLng{Lat: 37.5, Lng: 181}, NorthWest: LatLng{Lat: 37.6, Lng: 127}}
	if _, err := Covering(box, 9); err == nil {
		t.Error("expected error for longitude 181")
	}
}

func TestParse_Invalid(t *testing.T) {
	if _, err := Center("not-a-cell"); err == nil {
		t.Error("expected error for malformed cell")
	}
	if _, err := Boundary("0"); err == nil {
		t.Error("expected error for zero cell")
	}
}
