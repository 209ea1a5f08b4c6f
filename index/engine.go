package index

import (
	"cmp"
	"context"
	"errors"
	"math"
	"slices"
	"strings"
	"time"

	mapset "github.com/deckarep/golang-set/v2"
	log "github.com/sirupsen/logrus"

	"github.com/usktea/lunch-indexer/cells"
	"github.com/usktea/lunch-indexer/metrics"
	"github.com/usktea/lunch-indexer/models"
)

// average walking pace in meters per minute
const walkingPace = 80.0

// RestaurantReader is the read side of the restaurant store
type RestaurantReader interface {
	FindOpenByCells(ctx context.Context, cellIDs []string) ([]models.Restaurant, error)
	SearchPlaces(ctx context.Context, q PlaceQuery) ([]PlaceRow, error)
	FindByManagementNumber(ctx context.Context, managementNumber string) (*models.Restaurant, error)
}

// Engine answers spatial queries. It holds no state besides its reader and is safe for
// concurrent use.
type Engine struct {
	reader   RestaurantReader
	settings RequestSettings
}

func NewEngine(reader RestaurantReader, settings RequestSettings) *Engine {
	return &Engine{reader: reader, settings: settings}
}

func (e *Engine) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if e.settings.Timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, e.settings.Timeout)
}

func observe(kind string, start time.Time, err error) {
	outcome := "ok"
	var reqErr RequestError
	switch {
	case errors.As(err, &reqErr):
		outcome = "rejected"
	case err != nil:
		outcome = "error"
	}
	metrics.SearchRequests.WithLabelValues(kind, outcome).Inc()
	metrics.SearchDuration.WithLabelValues(kind).Observe(time.Since(start).Seconds())
}

// SearchRestaurants clusters the open restaurants of a viewport by the cells of the
// resolution matching zoomLevel. A restaurant appears in every covering cell listed in
// its own cell ladder.
func (e *Engine) SearchRestaurants(ctx context.Context, boundary string, zoomLevel int) (resp *SearchRestaurantsResponse, err error) {
	defer func(start time.Time) { observe("bbox", start, err) }(time.Now())

	box, err := ParseBoundary(boundary)
	if err != nil {
		return nil, err
	}
	res := cells.ZoomResolution(zoomLevel)
	covering, err := cells.Covering(box, res)
	if err != nil {
		return nil, badRequest("cannot cover boundary: %v", err)
	}
	metrics.SearchCells.WithLabelValues("bbox").Observe(float64(len(covering)))
	if len(covering) == 0 {
		return &SearchRestaurantsResponse{Clusters: []Cluster{}}, nil
	}

	qctx, cancel := e.withTimeout(ctx)
	defer cancel()
	restaurants, err := e.reader.FindOpenByCells(qctx, covering)
	if err != nil {
		return nil, err
	}

	coveringSet := mapset.NewThreadUnsafeSet(covering...)
	groups := map[string][]RestaurantMarker{}
	for _, r := range restaurants {
		marker := RestaurantMarker{
			RestaurantManagementNumber: r.ManagementNumber,
			Name:                       r.Name,
			Coordinate:                 Coordinate{X: r.Longitude, Y: r.Latitude},
			MainCategory:               r.MainCategory,
			DetailCategory:             r.DetailCategory,
		}
		for _, idx := range r.H3Indices {
			if coveringSet.Contains(idx) {
				groups[idx] = append(groups[idx], marker)
			}
		}
	}

	clusters := make([]Cluster, 0, len(groups))
	for idx, members := range groups {
		cluster, err := buildCluster(idx, members)
		if err != nil {
			log.WithField("h3_index", idx).WithError(err).Warn("skipping cluster with invalid cell")
			continue
		}
		clusters = append(clusters, cluster)
	}
	slices.SortFunc(clusters, func(a, b Cluster) int { return cmp.Compare(a.H3Index, b.H3Index) })

	return &SearchRestaurantsResponse{Clusters: clusters}, nil
}

func buildCluster(idx string, members []RestaurantMarker) (Cluster, error) {
	center, err := cells.Center(idx)
	if err != nil {
		return Cluster{}, err
	}
	vertices, err := cells.Boundary(idx)
	if err != nil {
		return Cluster{}, err
	}
	boundary := make([]Coordinate, 0, len(vertices))
	for _, v := range vertices {
		boundary = append(boundary, Coordinate{X: v.Lng, Y: v.Lat})
	}
	return Cluster{
		H3Index:     idx,
		Center:      Coordinate{X: center.Lng, Y: center.Lat},
		Boundary:    boundary,
		Restaurants: members,
	}, nil
}

// SearchPlaces ranks the open restaurants within maxDistance meters of the center
func (e *Engine) SearchPlaces(ctx context.Context, req SearchPlacesRequest) (resp *SearchPlacesResponse, err error) {
	defer func(start time.Time) { observe("radius", start, err) }(time.Now())

	q, err := buildPlaceQuery(req)
	if err != nil {
		return nil, err
	}
	res, k := cells.RadiusParams(q.MaxDistance)
	q.Cells, err = cells.Disk(q.CenterLat, q.CenterLon, res, k)
	if err != nil {
		return nil, badRequest("invalid center: %v", err)
	}
	metrics.SearchCells.WithLabelValues("radius").Observe(float64(len(q.Cells)))

	qctx, cancel := e.withTimeout(ctx)
	defer cancel()
	rows, err := e.reader.SearchPlaces(qctx, q)
	if err != nil {
		return nil, err
	}

	places := make([]Place, 0, len(rows))
	for _, row := range rows {
		places = append(places, toPlace(row))
	}
	return &SearchPlacesResponse{Places: places}, nil
}

func buildPlaceQuery(req SearchPlacesRequest) (PlaceQuery, error) {
	q := PlaceQuery{MaxDistance: DefaultMaxDistance, Limit: PlacesLimit}

	if req.CenterLat == nil || req.CenterLon == nil {
		return q, badRequest("centerLat and centerLon are required")
	}
	q.CenterLat, q.CenterLon = *req.CenterLat, *req.CenterLon
	if math.IsNaN(q.CenterLat) || q.CenterLat < -90 || q.CenterLat > 90 {
		return q, badRequest("centerLat must be within [-90, 90]")
	}
	if math.IsNaN(q.CenterLon) || q.CenterLon < -180 || q.CenterLon > 180 {
		return q, badRequest("centerLon must be within [-180, 180]")
	}
	if req.MaxDistance != nil {
		if *req.MaxDistance <= 0 {
			return q, badRequest("maxDistance must be positive")
		}
		if *req.MaxDistance > cells.MaxRadius {
			return q, badRequest("maxDistance must be at most %d", cells.MaxRadius)
		}
		q.MaxDistance = *req.MaxDistance
	}

	sortBy, err := ParseSortBy(req.SortBy)
	if err != nil {
		return q, err
	}
	q.SortBy = sortBy

	if req.Keyword != nil {
		q.Keyword = strings.TrimSpace(*req.Keyword)
	}
	if req.Category != nil && *req.Category != "" {
		c, err := models.ParseCategory(*req.Category)
		if err != nil {
			return q, badRequest("category must be one of KOREAN, CHINESE, JAPANESE, WESTERN")
		}
		q.MainCategory = c.Label()
	}
	return q, nil
}

func toPlace(row PlaceRow) Place {
	p := Place{
		ManagementNumber: row.ManagementNumber,
		Name:             row.Name,
		MainCategory:     row.MainCategory,
		DetailCategory:   row.DetailCategory,
		Address:          row.Address,
		Distance:         row.Distance,
		WalkTime:         WalkTime(row.Distance),
		ReviewCount:      row.ReviewCount,
		AveragePrice:     AveragePrice(row.PriceMinimum, row.PriceMaximum),
		Latitude:         row.Latitude,
		Longitude:        row.Longitude,
	}
	if row.ReviewCount > 0 {
		rating := math.Round(row.AverageRating*10) / 10
		p.AverageRating = &rating
	}
	return p
}

// WalkTime converts meters to whole minutes on foot, at least one
func WalkTime(distance int) int {
	return max(1, int(math.Round(float64(distance)/walkingPace)))
}

// AveragePrice is the midpoint of the price range, absent unless both bounds are known
func AveragePrice(minimum, maximum *int) *int {
	if minimum == nil || maximum == nil {
		return nil
	}
	avg := (*minimum + *maximum) / 2
	return &avg
}

// GetBusinessInfo returns the details page of one restaurant
func (e *Engine) GetBusinessInfo(ctx context.Context, managementNumber string) (resp *BusinessInfoResponse, err error) {
	defer func(start time.Time) { observe("business_info", start, err) }(time.Now())

	qctx, cancel := e.withTimeout(ctx)
	defer cancel()
	r, err := e.reader.FindByManagementNumber(qctx, managementNumber)
	if errors.Is(err, ErrNotFound) {
		return nil, RequestError{Message: "restaurant not found", Code: 404}
	}
	if err != nil {
		return nil, err
	}

	hours := slices.Clone(r.BusinessHours)
	slices.SortStableFunc(hours, func(a, b models.BusinessHour) int {
		return cmp.Compare(a.Day.Order(), b.Day.Order())
	})
	menus := slices.Clone(r.Menus)
	slices.SortStableFunc(menus, func(a, b models.Menu) int {
		if a.IsRepresentative != b.IsRepresentative {
			if a.IsRepresentative {
				return -1
			}
			return 1
		}
		return cmp.Compare(a.Name, b.Name)
	})
	if hours == nil {
		hours = []models.BusinessHour{}
	}
	if menus == nil {
		menus = []models.Menu{}
	}

	return &BusinessInfoResponse{
		RestaurantManagementNumber: r.ManagementNumber,
		Name:                       r.Name,
		Contact:                    r.Contact,
		Link:                       r.ExternalLink,
		BusinessHours:              hours,
		Menus:                      menus,
		Summary:                    r.Summary,
		PriceRange:                 r.PriceRange,
		MainCategory:               r.MainCategory,
		DetailCategory:             r.DetailCategory,
	}, nil
}
