package index

import (
	"context"
	"errors"
	"slices"
	"strings"
	"testing"

	"github.com/usktea/lunch-indexer/cells"
	"github.com/usktea/lunch-indexer/models"
)

type fakeReader struct {
	restaurants []models.Restaurant
	places      []PlaceRow
	lastQuery   PlaceQuery
	lastCells   []string
}

func (f *fakeReader) FindOpenByCells(_ context.Context, cellIDs []string) ([]models.Restaurant, error) {
	f.lastCells = cellIDs
	want := map[string]bool{}
	for _, c := range cellIDs {
		want[c] = true
	}
	var out []models.Restaurant
	for _, r := range f.restaurants {
		if r.Status != models.StatusOpen {
			continue
		}
		for _, idx := range r.H3Indices {
			if want[idx] {
				out = append(out, r)
				break
			}
		}
	}
	return out, nil
}

func (f *fakeReader) SearchPlaces(_ context.Context, q PlaceQuery) ([]PlaceRow, error) {
	f.lastQuery = q
	return f.places, nil
}

func (f *fakeReader) FindByManagementNumber(_ context.Context, managementNumber string) (*models.Restaurant, error) {
	for _, r := range f.restaurants {
		if r.ManagementNumber == managementNumber {
			return &r, nil
		}
	}
	return nil, ErrNotFound
}

func restaurantAt(t *testing.T, id string, lat, lng float64, status models.BusinessStatus) models.Restaurant {
	t.Helper()
	ladder, err := cells.Ladder(lat, lng)
	if err != nil {
		t.Fatalf("ladder: %v", err)
	}
	return models.Restaurant{
		ManagementNumber: id,
		Name:             "restaurant " + id,
		Latitude:         lat,
		Longitude:        lng,
		Status:           status,
		H3Indices:        ladder,
	}
}

func ptr[T any](v T) *T { return &v }

const testBoundary = "127.06;37.49;127.04;37.51"

func TestSearchRestaurants_GroupsByCell(t *testing.T) {
	reader := &fakeReader{restaurants: []models.Restaurant{
		restaurantAt(t, "A", 37.5000, 127.0500, models.StatusOpen),
		restaurantAt(t, "B", 37.5000, 127.0500, models.StatusOpen),
		restaurantAt(t, "C", 37.5050, 127.0450, models.StatusOpen),
		restaurantAt(t, "D", 37.5000, 127.0500, models.StatusClosed),
	}}
	engine := NewEngine(reader, RequestSettings{})

	resp, err := engine.SearchRestaurants(context.Background(), testBoundary, 16)
	if err != nil {
		t.Fatalf("search: %v", err)
	}

	members := map[string]bool{}
	for i, c := range resp.Clusters {
		if i > 0 && resp.Clusters[i-1].H3Index >= c.H3Index {
			t.Errorf("clusters not sorted: %s before %s", resp.Clusters[i-1].H3Index, c.H3Index)
		}
		res, err := cells.Resolution(c.H3Index)
		if err != nil {
			t.Fatalf("resolution: %v", err)
		}
		if res != 9 {
			t.Errorf("zoom 16 should cluster at resolution 9, got %d", res)
		}
		if len(c.Boundary) != 6 {
			t.Errorf("expected 6 boundary vertices, got %d", len(c.Boundary))
		}
		for _, m := range c.Restaurants {
			members[m.RestaurantManagementNumber] = true
		}
	}
	if !members["A"] || !members["B"] || !members["C"] {
		t.Errorf("expected A, B and C among members, got %v", members)
	}
	if members["D"] {
		t.Error("closed restaurant must not be clustered")
	}

	cellA, _ := cells.CellAt(37.5000, 127.0500, 9)
	for _, c := range resp.Clusters {
		if c.H3Index != cellA {
			continue
		}
		if len(c.Restaurants) != 2 {
			t.Errorf("expected A and B in cell %s, got %d members", cellA, len(c.Restaurants))
		}
		if c.Center.X < 127 || c.Center.Y < 37 {
			t.Errorf("center should be x=lng, y=lat, got %+v", c.Center)
		}
	}
}

func TestSearchRestaurants_ClusterUnionMatchesMarkers(t *testing.T) {
	reader := &fakeReader{restaurants: []models.Restaurant{
		restaurantAt(t, "A", 37.5000, 127.0500, models.StatusOpen),
		restaurantAt(t, "B", 37.5020, 127.0480, models.StatusOpen),
		restaurantAt(t, "C", 37.4950, 127.0550, models.StatusOpen),
	}}
	engine := NewEngine(reader, RequestSettings{})

	union := func(zoom int) []string {
		resp, err := engine.SearchRestaurants(context.Background(), testBoundary, zoom)
		if err != nil {
			t.Fatalf("search zoom %d: %v", zoom, err)
		}
		seen := map[string]bool{}
		var out []string
		for _, c := range resp.Clusters {
			for _, m := range c.Restaurants {
				if !seen[m.RestaurantManagementNumber] {
					seen[m.RestaurantManagementNumber] = true
					out = append(out, m.RestaurantManagementNumber)
				}
			}
		}
		slices.Sort(out)
		return out
	}

	if a, b := union(16), union(17); !slices.Equal(a, b) {
		t.Errorf("zoom 16 members %v differ from zoom 17 members %v", a, b)
	}
}

func TestSearchRestaurants_BadBoundary(t *testing.T) {
	engine := NewEngine(&fakeReader{}, RequestSettings{})

	for _, boundary := range []string{"", "1;2;3", "a;b;c;d", "127;37;127;NaN", "127;95;127;37"} {
		_, err := engine.SearchRestaurants(context.Background(), boundary, 16)
		var reqErr RequestError
		if !errors.As(err, &reqErr) || reqErr.Code != 400 {
			t.Errorf("boundary %q: expected 400, got %v", boundary, err)
		}
	}
}

func TestSearchPlaces_TierAndFilters(t *testing.T) {
	reader := &fakeReader{}
	engine := NewEngine(reader, RequestSettings{})

	_, err := engine.SearchPlaces(context.Background(), SearchPlacesRequest{
		CenterLat:   ptr(37.50),
		CenterLon:   ptr(127.04),
		MaxDistance: ptr(300),
		Keyword:     ptr("  국밥 "),
		Category:    ptr("korean"),
	})
	if err != nil {
		t.Fatalf("search: %v", err)
	}

	q := reader.lastQuery
	if len(q.Cells) != 19 {
		t.Errorf("300m should search a k=2 disk of 19 cells, got %d", len(q.Cells))
	}
	res, _ := cells.Resolution(q.Cells[0])
	if res != 9 {
		t.Errorf("300m should search at resolution 9, got %d", res)
	}
	if q.Keyword != "국밥" {
		t.Errorf("expected trimmed keyword, got %q", q.Keyword)
	}
	if q.MainCategory != "한식" {
		t.Errorf("expected category label 한식, got %q", q.MainCategory)
	}
	if q.SortBy != SortByDistance || q.Limit != PlacesLimit || q.MaxDistance != 300 {
		t.Errorf("unexpected defaults: %+v", q)
	}
}

func TestSearchPlaces_Validation(t *testing.T) {
	engine := NewEngine(&fakeReader{}, RequestSettings{})
	cases := map[string]SearchPlacesRequest{
		"missing center": {},
		"latitude":       {CenterLat: ptr(91.0), CenterLon: ptr(127.0)},
		"longitude":      {CenterLat: ptr(37.0), CenterLon: ptr(-181.0)},
		"distance":       {CenterLat: ptr(37.0), CenterLon: ptr(127.0), MaxDistance: ptr(0)},
		"far":            {CenterLat: ptr(37.0), CenterLon: ptr(127.0), MaxDistance: ptr(cells.MaxRadius + 1)},
		"sort":           {CenterLat: ptr(37.0), CenterLon: ptr(127.0), SortBy: ptr("price")},
		"category":       {CenterLat: ptr(37.0), CenterLon: ptr(127.0), Category: ptr("THAI")},
	}
	for name, req := range cases {
		_, err := engine.SearchPlaces(context.Background(), req)
		var reqErr RequestError
		if !errors.As(err, &reqErr) || reqErr.Code != 400 {
			t.Errorf("%s: expected 400, got %v", name, err)
		}
	}
}

func TestSearchPlaces_PostProcessing(t *testing.T) {
	reader := &fakeReader{places: []PlaceRow{
		{ManagementNumber: "A", Distance: 250, AverageRating: 4.26, ReviewCount: 3, PriceMinimum: ptr(8000), PriceMaximum: ptr(12001)},
		{ManagementNumber: "B", Distance: 10, AverageRating: 0, ReviewCount: 0, PriceMinimum: ptr(8000)},
	}}
	engine := NewEngine(reader, RequestSettings{})

	resp, err := engine.SearchPlaces(context.Background(), SearchPlacesRequest{CenterLat: ptr(37.5), CenterLon: ptr(127.04)})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(resp.Places) != 2 {
		t.Fatalf("expected 2 places, got %d", len(resp.Places))
	}

	a, b := resp.Places[0], resp.Places[1]
	if a.WalkTime != 3 {
		t.Errorf("250m: expected walk time 3, got %d", a.WalkTime)
	}
	if a.AverageRating == nil || *a.AverageRating != 4.3 {
		t.Errorf("expected rating 4.3, got %v", a.AverageRating)
	}
	if a.AveragePrice == nil || *a.AveragePrice != 10000 {
		t.Errorf("expected average price 10000, got %v", a.AveragePrice)
	}
	if b.WalkTime != 1 {
		t.Errorf("10m: expected walk time 1, got %d", b.WalkTime)
	}
	if b.AverageRating != nil {
		t.Errorf("expected null rating without reviews, got %v", *b.AverageRating)
	}
	if b.AveragePrice != nil {
		t.Errorf("expected null price with a missing bound, got %v", *b.AveragePrice)
	}
}

func TestGetBusinessInfo(t *testing.T) {
	r := restaurantAt(t, "A", 37.5, 127.05, models.StatusOpen)
	r.BusinessHours = []models.BusinessHour{
		{Day: models.Saturday, OpenAt: "10:00"},
		{Day: models.Monday, OpenAt: "11:00"},
		{Day: models.Sunday, OpenAt: "12:00"},
	}
	r.Menus = []models.Menu{
		{Name: "냉면", Price: 11000},
		{Name: "갈비", Price: 30000, IsRepresentative: true},
		{Name: "만두", Price: 8000},
		{Name: "불고기", Price: 20000, IsRepresentative: true},
	}
	engine := NewEngine(&fakeReader{restaurants: []models.Restaurant{r}}, RequestSettings{})

	info, err := engine.GetBusinessInfo(context.Background(), "A")
	if err != nil {
		t.Fatalf("business info: %v", err)
	}

	var days []models.Day
	for _, h := range info.BusinessHours {
		days = append(days, h.Day)
	}
	if !slices.Equal(days, []models.Day{models.Sunday, models.Monday, models.Saturday}) {
		t.Errorf("unexpected day order %v", days)
	}

	var names []string
	for _, m := range info.Menus {
		names = append(names, m.Name)
	}
	if !slices.Equal(names, []string{"갈비", "불고기", "냉면", "만두"}) {
		t.Errorf("unexpected menu order %v", names)
	}

	_, err = engine.GetBusinessInfo(context.Background(), "missing")
	var reqErr RequestError
	if !errors.As(err, &reqErr) || reqErr.Code != 404 {
		t.Errorf("expected 404, got %v", err)
	}
}

func TestBuildPlacesQuery(t *testing.T) {
	query, args := buildPlacesQuery(PlaceQuery{
		Cells:        []string{"8930e1d8a43ffff"},
		CenterLat:    37.5,
		CenterLon:    127.04,
		MaxDistance:  300,
		Keyword:      "50%",
		MainCategory: "한식",
		SortBy:       SortByRating,
		Limit:        50,
	})
	if len(args) != 6 {
		t.Fatalf("expected 6 args, got %d", len(args))
	}
	if args[4] != `50\%` {
		t.Errorf("expected escaped keyword, got %v", args[4])
	}
	for _, fragment := range []string{
		"r.name ilike '%' || $5 || '%'",
		"r.main_category = $6",
		"order by coalesce(avg(rv.rating), 0) desc",
		"limit 50",
	} {
		if !strings.Contains(query, fragment) {
			t.Errorf("query lacks %q:\n%s", fragment, query)
		}
	}
}
