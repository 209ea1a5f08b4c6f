package geocode

import (
	"context"
	"errors"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/sony/gobreaker/v2"
	"github.com/usktea/lunch-indexer/metrics"
	"github.com/usktea/lunch-indexer/models"
)

// BreakerGeocoder stops calling the provider after repeated failures, so a provider outage
// drops events fast instead of stalling replication on timeouts.
type BreakerGeocoder struct {
	next Geocoder
	cb   *gobreaker.CircuitBreaker[*models.GeocodeResponse]
}

type BreakerConfig struct {
	Name string
	// ConsecutiveFailures opens the circuit. Defaults to 5.
	ConsecutiveFailures uint32
	// OpenTimeout is how long the circuit stays open before probing. Defaults to 30s.
	OpenTimeout time.Duration
}

func NewBreakerGeocoder(next Geocoder, cfg BreakerConfig) *BreakerGeocoder {
	if cfg.Name == "" {
		cfg.Name = "geocode"
	}
	if cfg.ConsecutiveFailures == 0 {
		cfg.ConsecutiveFailures = 5
	}
	if cfg.OpenTimeout == 0 {
		cfg.OpenTimeout = 30 * time.Second
	}
	metrics.CircuitBreakerState.WithLabelValues(cfg.Name).Set(0)

	cb := gobreaker.NewCircuitBreaker[*models.GeocodeResponse](gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     cfg.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.ConsecutiveFailures
		},
		// a shutdown or an unknown address must not count against the provider
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled) || errors.Is(err, ErrNoResult)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.WithFields(log.Fields{"breaker": name, "from": from.String(), "to": to.String()}).Warn("circuit breaker state change")
			metrics.CircuitBreakerState.WithLabelValues(name).Set(stateValue(to))
		},
	})

	return &BreakerGeocoder{next: next, cb: cb}
}

func (b *BreakerGeocoder) Geocode(ctx context.Context, query string) (*models.GeocodeResponse, error) {
	return b.cb.Execute(func() (*models.GeocodeResponse, error) {
		return b.next.Geocode(ctx, query)
	})
}

func (b *BreakerGeocoder) State() gobreaker.State {
	return b.cb.State()
}

func stateValue(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return 0
	}
}
