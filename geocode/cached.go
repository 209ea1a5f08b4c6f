package geocode

import (
	"context"
	"errors"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/usktea/lunch-indexer/cache"
	"github.com/usktea/lunch-indexer/metrics"
	"github.com/usktea/lunch-indexer/models"
)

const defaultCacheTTL = 30 * 24 * time.Hour

// CachedGeocoder remembers successful lookups in Redis. A redelivered transaction is then
// enriched without spending provider quota again.
type CachedGeocoder struct {
	next  Geocoder
	cache *cache.Cache[models.GeocodeResponse]
	ttl   time.Duration
}

func NewCachedGeocoder(next Geocoder, c *cache.Cache[models.GeocodeResponse], ttl time.Duration) *CachedGeocoder {
	if ttl == 0 {
		ttl = defaultCacheTTL
	}
	return &CachedGeocoder{next: next, cache: c, ttl: ttl}
}

func (g *CachedGeocoder) Geocode(ctx context.Context, query string) (*models.GeocodeResponse, error) {
	key := cacheKey(query)

	cached, err := g.cache.GetEx(ctx, key, g.ttl)
	switch {
	case err == nil:
		metrics.GeocodeCache.WithLabelValues("hit").Inc()
		return &cached, nil
	case !errors.Is(err, cache.ErrNotFound):
		log.WithField("query", query).WithError(err).Warn("geocode cache lookup failed")
	}
	metrics.GeocodeCache.WithLabelValues("miss").Inc()

	resp, err := g.next.Geocode(ctx, query)
	if err != nil {
		return nil, err
	}
	// empty results are not cached, the provider may learn the address later
	if len(resp.Addresses) > 0 {
		if err := g.cache.Set(ctx, key, *resp, g.ttl); err != nil {
			log.WithField("query", query).WithError(err).Warn("geocode cache store failed")
		}
	}
	return resp, nil
}

// cacheKey collapses whitespace so trivially different spellings share an entry
func cacheKey(query string) string {
	return strings.Join(strings.Fields(query), " ")
}
