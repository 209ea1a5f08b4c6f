package repl

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jackc/pglogrepl"
	"github.com/usktea/lunch-indexer/cache"
	"github.com/usktea/lunch-indexer/metrics"
)

// CursorStore persists the acknowledged position of a replication slot so that a
// restarted consumer resumes where the last one stopped.
type CursorStore interface {
	Load(ctx context.Context, slot string) (pglogrepl.LSN, error)
	Save(ctx context.Context, slot string, lsn pglogrepl.LSN) error
}

// RedisCursorStore keeps one LSN per slot in Redis, in its textual X/Y form.
type RedisCursorStore struct {
	cursors *cache.Cache[string]
}

func NewRedisCursorStore(cursors *cache.Cache[string]) *RedisCursorStore {
	return &RedisCursorStore{cursors: cursors}
}

// Load returns 0 for a slot that was never acknowledged
func (s *RedisCursorStore) Load(ctx context.Context, slot string) (pglogrepl.LSN, error) {
	v, err := s.cursors.Get(ctx, slot)
	if err != nil {
		if errors.Is(err, cache.ErrNotFound) {
			return 0, nil
		}
		return 0, fmt.Errorf("load cursor: %w", err)
	}
	lsn, err := pglogrepl.ParseLSN(v)
	if err != nil {
		return 0, fmt.Errorf("parse cursor %q: %w", v, err)
	}
	return lsn, nil
}

func (s *RedisCursorStore) Save(ctx context.Context, slot string, lsn pglogrepl.LSN) error {
	return s.cursors.Set(ctx, slot, lsn.String(), 0)
}

// memoryCursorStore is used when no store is configured; restarts inside the same
// process still resume from the last acknowledged position.
type memoryCursorStore struct {
	mu      sync.Mutex
	cursors map[string]pglogrepl.LSN
}

func newMemoryCursorStore() *memoryCursorStore {
	return &memoryCursorStore{cursors: make(map[string]pglogrepl.LSN)}
}

func (s *memoryCursorStore) Load(_ context.Context, slot string) (pglogrepl.LSN, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cursors[slot], nil
}

func (s *memoryCursorStore) Save(_ context.Context, slot string, lsn pglogrepl.LSN) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cursors[slot] = lsn
	return nil
}

// DeadLetter describes a transaction whose batch handler failed
type DeadLetter struct {
	Slot     string    `json:"slot"`
	LSN      string    `json:"lsn"`
	Tables   []string  `json:"tables"`
	Keys     []string  `json:"keys,omitempty"`
	Messages int       `json:"messages"`
	Error    string    `json:"error"`
	FailedAt time.Time `json:"failed_at"`
}

// DeadLetterSink records failed transactions for later triage
type DeadLetterSink interface {
	Record(ctx context.Context, commit pglogrepl.LSN, letter DeadLetter) error
}

// RedisDeadLetters stores dead letters as JSON records of a per-slot journal scored by
// commit LSN
type RedisDeadLetters struct {
	journal *cache.Journal
}

func NewRedisDeadLetters(journal *cache.Journal) *RedisDeadLetters {
	return &RedisDeadLetters{journal: journal}
}

func (d *RedisDeadLetters) Record(ctx context.Context, commit pglogrepl.LSN, letter DeadLetter) error {
	data, err := json.Marshal(letter)
	if err != nil {
		return fmt.Errorf("encode dead letter: %w", err)
	}
	if err := d.journal.Append(ctx, letter.Slot, float64(commit), string(data)); err != nil {
		return fmt.Errorf("store dead letter: %w", err)
	}
	if n, err := d.journal.Len(ctx, letter.Slot); err == nil {
		metrics.DeadLetterBacklog.WithLabelValues(letter.Slot).Set(float64(n))
	}
	return nil
}

// List returns the recorded dead letters of a slot, oldest first
func (d *RedisDeadLetters) List(ctx context.Context, slot string) ([]DeadLetter, error) {
	entries, err := d.journal.Entries(ctx, slot)
	if err != nil {
		return nil, err
	}
	letters := make([]DeadLetter, 0, len(entries))
	for _, e := range entries {
		var letter DeadLetter
		if err := json.Unmarshal([]byte(e.Record), &letter); err != nil {
			continue
		}
		letters = append(letters, letter)
	}
	return letters, nil
}
