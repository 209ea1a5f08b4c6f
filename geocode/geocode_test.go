package geocode

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/sony/gobreaker/v2"

	"github.com/usktea/lunch-indexer/cache"
	"github.com/usktea/lunch-indexer/models"
)

const okBody = `{
  "status": "OK",
  "meta": {"totalCount": 1, "page": 1, "count": 1},
  "addresses": [{
    "roadAddress": "서울특별시 강남구 테헤란로 1",
    "jibunAddress": "서울특별시 강남구 역삼동 1",
    "englishAddress": "1, Teheran-ro, Gangnam-gu, Seoul",
    "addressElements": [
      {"types": ["SIDO"], "longName": "서울특별시", "shortName": "서울특별시", "code": ""},
      {"types": ["SIGUGUN"], "longName": "강남구", "shortName": "강남구", "code": ""},
      {"types": ["ROAD_NAME"], "longName": "테헤란로", "shortName": "", "code": ""}
    ],
    "x": "127.05",
    "y": "37.50",
    "distance": 0.0
  }],
  "errorMessage": ""
}`

func newServer(t *testing.T, handler http.HandlerFunc) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return srv
}

func TestClient_Geocode(t *testing.T) {
	var gotQuery, gotKeyID, gotKey, gotPath string
	srv := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotQuery = r.URL.Query().Get("query")
		gotKeyID = r.Header.Get("x-ncp-apigw-api-key-id")
		gotKey = r.Header.Get("x-ncp-apigw-api-key")
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(okBody))
	})

	c := NewClient(ClientConfig{BaseURL: srv.URL, KeyID: "id", Key: "secret"}, nil)
	resp, err := c.Geocode(context.Background(), "서울시 강남구 테헤란로 1")
	if err != nil {
		t.Fatalf("geocode: %v", err)
	}

	if gotPath != "/map-geocode/v2/geocode" {
		t.Errorf("unexpected path %s", gotPath)
	}
	if gotQuery != "서울시 강남구 테헤란로 1" {
		t.Errorf("unexpected query %q", gotQuery)
	}
	if gotKeyID != "id" || gotKey != "secret" {
		t.Errorf("credentials not sent: %q %q", gotKeyID, gotKey)
	}

	first, ok := resp.First()
	if !ok {
		t.Fatal("expected a candidate")
	}
	lng, lat, err := first.Coordinates()
	if err != nil || lng != 127.05 || lat != 37.50 {
		t.Errorf("unexpected coordinates (%v, %v, %v)", lng, lat, err)
	}
	if s := first.Element(models.ElementSigugun); s == nil || *s != "강남구" {
		t.Errorf("unexpected SIGUGUN %v", s)
	}
	if first.Element(models.ElementRi) != nil {
		t.Error("expected no RI element")
	}
}

func TestClient_EmptyResult(t *testing.T) {
	srv := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status":"OK","meta":{"totalCount":0},"addresses":[]}`))
	})

	c := NewClient(ClientConfig{BaseURL: srv.URL}, nil)
	_, err := c.Geocode(context.Background(), "nowhere")
	if !errors.Is(err, ErrNoResult) {
		t.Errorf("expected ErrNoResult, got %v", err)
	}
}

func TestClient_StatusError(t *testing.T) {
	srv := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
	})

	c := NewClient(ClientConfig{BaseURL: srv.URL}, nil)
	_, err := c.Geocode(context.Background(), "q")
	var se *StatusError
	if !errors.As(err, &se) || se.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 StatusError, got %v", err)
	}
	if se.Temporary() {
		t.Error("401 must not be temporary")
	}
}

func TestClient_DefaultPolicyMakesOneAttempt(t *testing.T) {
	var calls atomic.Int32
	srv := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	})

	c := NewClient(ClientConfig{BaseURL: srv.URL}, nil)
	if _, err := c.Geocode(context.Background(), "q"); err == nil {
		t.Fatal("expected error")
	}
	if n := calls.Load(); n != 1 {
		t.Errorf("expected 1 attempt, got %d", n)
	}
}

func TestClient_ExponentialRetry(t *testing.T) {
	var calls atomic.Int32
	srv := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(okBody))
	})

	retry := ExponentialRetry{MaxAttempts: 3, InitialInterval: time.Millisecond, MaxInterval: 5 * time.Millisecond}
	c := NewClient(ClientConfig{BaseURL: srv.URL}, retry)
	if _, err := c.Geocode(context.Background(), "q"); err != nil {
		t.Fatalf("expected success on the third attempt: %v", err)
	}
	if n := calls.Load(); n != 3 {
		t.Errorf("expected 3 attempts, got %d", n)
	}
}

func TestExponentialRetry_StopsOnPermanentError(t *testing.T) {
	retry := ExponentialRetry{MaxAttempts: 5, InitialInterval: time.Millisecond}

	attempts := 0
	err := retry.Do(context.Background(), func() error {
		attempts++
		return &StatusError{Code: http.StatusBadRequest}
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if attempts != 1 {
		t.Errorf("4xx must not be retried, got %d attempts", attempts)
	}

	attempts = 0
	_ = retry.Do(context.Background(), func() error {
		attempts++
		return ErrNoResult
	})
	if attempts != 1 {
		t.Errorf("empty result must not be retried, got %d attempts", attempts)
	}
}

type stubGeocoder struct {
	calls int
	resp  *models.GeocodeResponse
	err   error
}

func (s *stubGeocoder) Geocode(context.Context, string) (*models.GeocodeResponse, error) {
	s.calls++
	return s.resp, s.err
}

func TestBreaker_OpensAfterConsecutiveFailures(t *testing.T) {
	stub := &stubGeocoder{err: errors.New("boom")}
	b := NewBreakerGeocoder(stub, BreakerConfig{Name: "test-open", ConsecutiveFailures: 3, OpenTimeout: time.Minute})

	for i := 0; i < 3; i++ {
		if _, err := b.Geocode(context.Background(), "q"); err == nil {
			t.Fatal("expected error")
		}
	}
	if b.State() != gobreaker.StateOpen {
		t.Fatalf("expected open breaker, got %s", b.State())
	}

	_, err := b.Geocode(context.Background(), "q")
	if !errors.Is(err, gobreaker.ErrOpenState) {
		t.Errorf("expected ErrOpenState, got %v", err)
	}
	if stub.calls != 3 {
		t.Errorf("open breaker must not call through, got %d calls", stub.calls)
	}
}

func TestBreaker_IgnoresEmptyResults(t *testing.T) {
	stub := &stubGeocoder{err: ErrNoResult}
	b := NewBreakerGeocoder(stub, BreakerConfig{Name: "test-empty", ConsecutiveFailures: 2})

	for i := 0; i < 5; i++ {
		b.Geocode(context.Background(), "q")
	}
	if b.State() != gobreaker.StateClosed {
		t.Errorf("unknown addresses must not open the breaker, got %s", b.State())
	}
}

func newTestCache(t *testing.T) (*cache.Manager, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("failed to start miniredis: %v", err)
	}
	t.Cleanup(mr.Close)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return cache.NewManager(client, 0), mr
}

func TestCachedGeocoder_HitsRedis(t *testing.T) {
	manager, mr := newTestCache(t)
	stub := &stubGeocoder{resp: &models.GeocodeResponse{
		Status:    "OK",
		Addresses: []models.GeocodeAddress{{RoadAddress: "테헤란로 1", X: "127.05", Y: "37.50"}},
	}}
	g := NewCachedGeocoder(stub, manager.Geocodes, time.Hour)

	first, err := g.Geocode(context.Background(), "서울시  강남구 테헤란로 1")
	if err != nil {
		t.Fatalf("geocode: %v", err)
	}
	second, err := g.Geocode(context.Background(), " 서울시 강남구 테헤란로 1 ")
	if err != nil {
		t.Fatalf("geocode: %v", err)
	}
	if stub.calls != 1 {
		t.Errorf("expected one provider call, got %d", stub.calls)
	}
	if second.Addresses[0].RoadAddress != first.Addresses[0].RoadAddress {
		t.Errorf("cached response differs: %+v", second)
	}
	if !mr.Exists("geo:서울시 강남구 테헤란로 1") {
		t.Errorf("expected normalized cache key, have %v", mr.Keys())
	}
	if ttl := mr.TTL("geo:서울시 강남구 테헤란로 1"); ttl <= 0 || ttl > time.Hour {
		t.Errorf("unexpected ttl %v", ttl)
	}
}

func TestCachedGeocoder_DoesNotCacheErrors(t *testing.T) {
	manager, mr := newTestCache(t)
	stub := &stubGeocoder{err: ErrNoResult}
	g := NewCachedGeocoder(stub, manager.Geocodes, 0)

	for i := 0; i < 2; i++ {
		if _, err := g.Geocode(context.Background(), "nowhere"); !errors.Is(err, ErrNoResult) {
			t.Fatalf("expected ErrNoResult, got %v", err)
		}
	}
	if stub.calls != 2 {
		t.Errorf("expected every miss to reach the provider, got %d calls", stub.calls)
	}
	if len(mr.Keys()) != 0 {
		t.Errorf("expected empty cache, got %v", mr.Keys())
	}
}
