// Package geocode resolves free-text addresses to coordinates through the Naver Maps
// geocoding API.
package geocode

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/usktea/lunch-indexer/metrics"
	"github.com/usktea/lunch-indexer/models"
)

const DefaultBaseURL = "https://maps.apigw.ntruss.com"

var ErrNoResult = errors.New("geocode: no address candidates")

// Geocoder resolves an address query
type Geocoder interface {
	Geocode(ctx context.Context, query string) (*models.GeocodeResponse, error)
}

// StatusError is returned for a non-200 response
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("geocode: status %d: %s", e.Code, e.Body)
}

// Temporary reports whether retrying the request may succeed
func (e *StatusError) Temporary() bool {
	return e.Code == http.StatusTooManyRequests || e.Code >= 500
}

type ClientConfig struct {
	BaseURL string
	KeyID   string
	Key     string
	Timeout time.Duration
}

// Client calls the geocode v2 endpoint
type Client struct {
	endpoint string
	keyID    string
	key      string
	client   *http.Client
	retry    RetryPolicy
}

// NewClient creates a Client. A nil retry policy means a single attempt.
func NewClient(cfg ClientConfig, retry RetryPolicy) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 5 * time.Second
	}
	if retry == nil {
		retry = NoRetry{}
	}
	return &Client{
		endpoint: strings.TrimRight(cfg.BaseURL, "/") + "/map-geocode/v2/geocode",
		keyID:    cfg.KeyID,
		key:      cfg.Key,
		client: &http.Client{
			Transport: &http.Transport{MaxIdleConns: 32, MaxIdleConnsPerHost: 16},
			Timeout:   cfg.Timeout,
		},
		retry: retry,
	}
}

func (c *Client) Geocode(ctx context.Context, query string) (*models.GeocodeResponse, error) {
	var resp *models.GeocodeResponse
	err := c.retry.Do(ctx, func() error {
		r, err := c.do(ctx, query)
		if err != nil {
			return err
		}
		resp = r
		return nil
	})
	if err != nil {
		return nil, err
	}
	return resp, nil
}

func (c *Client) do(ctx context.Context, query string) (*models.GeocodeResponse, error) {
	start := time.Now()
	defer func() { metrics.GeocodeDuration.Observe(time.Since(start).Seconds()) }()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint+"?query="+url.QueryEscape(query), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("x-ncp-apigw-api-key-id", c.keyID)
	req.Header.Set("x-ncp-apigw-api-key", c.key)

	res, err := c.client.Do(req)
	if err != nil {
		metrics.GeocodeRequests.WithLabelValues("error").Inc()
		return nil, err
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		metrics.GeocodeRequests.WithLabelValues("error").Inc()
		body, _ := io.ReadAll(io.LimitReader(res.Body, 512))
		return nil, &StatusError{Code: res.StatusCode, Body: string(body)}
	}

	var out models.GeocodeResponse
	if err := json.NewDecoder(res.Body).Decode(&out); err != nil {
		metrics.GeocodeRequests.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("decode geocode response: %w", err)
	}
	if out.Status != "" && out.Status != "OK" {
		metrics.GeocodeRequests.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("geocode: status %s: %s", out.Status, out.ErrorMessage)
	}

	if len(out.Addresses) == 0 {
		metrics.GeocodeRequests.WithLabelValues("empty").Inc()
		return nil, fmt.Errorf("%w: %q", ErrNoResult, query)
	}

	metrics.GeocodeRequests.WithLabelValues("ok").Inc()
	return &out, nil
}
