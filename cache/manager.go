package cache

import (
	"github.com/redis/go-redis/v9"

	"github.com/usktea/lunch-indexer/models"
)

// Manager groups the caches of the indexer over one Redis client.
//
// Key layout:
//
//	geo:<normalized address>  msgpack geocode response, expiring
//	lsn:<slot>                acknowledged LSN in X/Y form, persistent
//	dlq:<slot>                sorted set of failed transactions scored by commit LSN
type Manager struct {
	Geocodes    *Cache[models.GeocodeResponse]
	Cursors     *Cache[string]
	DeadLetters *Journal
}

// NewManager keeps at most deadLetterLimit dead letters per slot, or all of them when
// deadLetterLimit is zero.
func NewManager(client redis.Cmdable, deadLetterLimit int64) *Manager {
	return &Manager{
		Geocodes:    New[models.GeocodeResponse](client, "geo", Msgpack[models.GeocodeResponse]{}),
		Cursors:     New[string](client, "lsn", Text{}),
		DeadLetters: NewJournal(client, "dlq", deadLetterLimit),
	}
}
