package cache

import (
	"context"

	"github.com/redis/go-redis/v9"
)

// Entry is one journal record
type Entry struct {
	Score  float64
	Record string
}

// Journal is a capped, score-ordered log per key, kept in a Redis sorted set.
// Appending a record with the score of an existing one keeps both unless the records are equal.
type Journal struct {
	client redis.Cmdable
	ks     keyspace
	limit  int64
}

// NewJournal creates a Journal that keeps the limit highest-scored records per key.
// A limit of zero or less keeps everything.
func NewJournal(client redis.Cmdable, prefix string, limit int64) *Journal {
	return &Journal{client: client, ks: keyspace(prefix), limit: limit}
}

// Append adds a record and trims the key to the limit in one transaction
func (j *Journal) Append(ctx context.Context, key string, score float64, record string) error {
	k := j.ks.key(key)
	_, err := j.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.ZAdd(ctx, k, redis.Z{Score: score, Member: record})
		if j.limit > 0 {
			pipe.ZRemRangeByRank(ctx, k, 0, -(j.limit + 1))
		}
		return nil
	})
	return err
}

// Entries returns the records of key, lowest score first
func (j *Journal) Entries(ctx context.Context, key string) ([]Entry, error) {
	zs, err := j.client.ZRangeWithScores(ctx, j.ks.key(key), 0, -1).Result()
	if err != nil {
		return nil, err
	}
	entries := make([]Entry, 0, len(zs))
	for _, z := range zs {
		if s, ok := z.Member.(string); ok {
			entries = append(entries, Entry{Score: z.Score, Record: s})
		}
	}
	return entries, nil
}

func (j *Journal) Len(ctx context.Context, key string) (int64, error) {
	return j.client.ZCard(ctx, j.ks.key(key)).Result()
}
