// Package enrich turns registry insert events into indexed restaurants: it geocodes the
// address, computes the cell ladder and writes the batch with insert-or-ignore semantics.
package enrich

import (
	"context"
	"errors"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/usktea/lunch-indexer/cells"
	"github.com/usktea/lunch-indexer/geocode"
	"github.com/usktea/lunch-indexer/metrics"
	"github.com/usktea/lunch-indexer/models"
)

// Drop reasons, also used as metric labels
const (
	DropNoAddress     = "no_address"
	DropGeocodeError  = "geocode_error"
	DropNoResult      = "no_result"
	DropBadCoordinate = "bad_coordinate"
	DropCellError     = "cell_error"
)

// Store persists enriched restaurants. Existing management numbers are left untouched.
type Store interface {
	InsertRestaurants(ctx context.Context, restaurants []models.Restaurant) (int64, error)
}

type Config struct {
	// Concurrency bounds the geocoding calls in flight for one batch
	Concurrency    int
	GeocodeTimeout time.Duration
	UpsertTimeout  time.Duration
}

func (c *Config) applyDefaults() {
	if c.Concurrency <= 0 {
		c.Concurrency = 8
	}
	if c.GeocodeTimeout <= 0 {
		c.GeocodeTimeout = 5 * time.Second
	}
	if c.UpsertTimeout <= 0 {
		c.UpsertTimeout = 10 * time.Second
	}
}

// Result summarizes one Ingest call
type Result struct {
	Received int
	Dropped  map[string]int
	Inserted int64
}

func (r Result) DroppedTotal() int {
	n := 0
	for _, v := range r.Dropped {
		n += v
	}
	return n
}

type Indexer struct {
	geocoder geocode.Geocoder
	store    Store
	config   Config
}

func NewIndexer(geocoder geocode.Geocoder, store Store, cfg Config) *Indexer {
	cfg.applyDefaults()
	return &Indexer{geocoder: geocoder, store: store, config: cfg}
}

// Ingest enriches the events and bulk-inserts the survivors. A failed event is dropped
// and logged; only a store failure is returned.
func (ix *Indexer) Ingest(ctx context.Context, events []models.SeoulRestaurantEvent) (Result, error) {
	result := Result{Received: len(events), Dropped: map[string]int{}}
	if len(events) == 0 {
		return result, nil
	}

	batchKeys := make([]string, 0, len(events))
	for _, ev := range events {
		batchKeys = append(batchKeys, ev.ManagementNumber)
	}

	// slots keep the output in event order regardless of completion order
	slots := make([]*models.Restaurant, len(events))
	reasons := make([]string, len(events))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(ix.config.Concurrency)
	for i := range events {
		ev := events[i]
		address, ok := ev.Address()
		if !ok {
			reasons[i] = DropNoAddress
			log.WithField("management_number", ev.ManagementNumber).Warn("dropping event without address")
			continue
		}
		g.Go(func() error {
			r, reason := ix.enrich(gctx, ev, address, batchKeys)
			slots[i], reasons[i] = r, reason
			return nil
		})
	}
	// workers never fail the group
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return result, err
	}

	restaurants := make([]models.Restaurant, 0, len(events))
	for i, r := range slots {
		if r != nil {
			restaurants = append(restaurants, *r)
			continue
		}
		result.Dropped[reasons[i]]++
		metrics.EnrichmentDropped.WithLabelValues(reasons[i]).Inc()
	}
	if len(restaurants) == 0 {
		return result, nil
	}

	uctx, cancel := context.WithTimeout(ctx, ix.config.UpsertTimeout)
	defer cancel()
	inserted, err := ix.store.InsertRestaurants(uctx, restaurants)
	if err != nil {
		return result, fmt.Errorf("insert %d restaurants: %w", len(restaurants), err)
	}
	result.Inserted = inserted
	metrics.RestaurantsInserted.Add(float64(inserted))

	log.WithFields(log.Fields{
		"received": result.Received,
		"dropped":  result.DroppedTotal(),
		"inserted": inserted,
	}).Debug("ingested restaurant batch")
	return result, nil
}

// enrich resolves one event. It returns the restaurant, or nil and the drop reason.
func (ix *Indexer) enrich(ctx context.Context, ev models.SeoulRestaurantEvent, address string, batchKeys []string) (*models.Restaurant, string) {
	fields := log.Fields{"management_number": ev.ManagementNumber, "address": address}

	gctx, cancel := context.WithTimeout(ctx, ix.config.GeocodeTimeout)
	resp, err := ix.geocoder.Geocode(gctx, address)
	cancel()
	if err != nil {
		reason := DropGeocodeError
		if errors.Is(err, geocode.ErrNoResult) {
			reason = DropNoResult
		}
		log.WithFields(fields).WithField("batch", batchKeys).WithError(err).Error("failed to geocode address")
		return nil, reason
	}

	candidate, ok := resp.First()
	if !ok {
		log.WithFields(fields).Warn("dropping event, geocoder returned no candidate")
		return nil, DropNoResult
	}

	lng, lat, err := candidate.Coordinates()
	if err != nil {
		log.WithFields(fields).WithError(err).Warn("dropping event with unparsable coordinate")
		return nil, DropBadCoordinate
	}

	ladder, err := cells.Ladder(lat, lng)
	if err != nil {
		log.WithFields(fields).WithError(err).Warn("dropping event, cannot index coordinate")
		return nil, DropCellError
	}

	resolved := address
	if candidate.RoadAddress != "" {
		resolved = candidate.RoadAddress
	}

	return &models.Restaurant{
		ManagementNumber: ev.ManagementNumber,
		Name:             ev.BusinessPlaceName,
		Contact:          ev.SiteTel,
		Sido:             candidate.Element(models.ElementSido),
		Sigungu:          candidate.Element(models.ElementSigugun),
		Dongmyun:         candidate.Element(models.ElementDongmyun),
		Ri:               candidate.Element(models.ElementRi),
		Road:             candidate.Element(models.ElementRoadName),
		BuildingNumber:   candidate.Element(models.ElementBuildingNumber),
		Address:          &resolved,
		Longitude:        lng,
		Latitude:         lat,
		Status:           models.StatusFromTradeState(ev.TradeStateCode),
		H3Indices:        ladder,
	}, ""
}
