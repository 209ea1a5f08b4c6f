package repl

import (
	"errors"
	"time"
)

// Config holds the configuration for the Replicator
type Config struct {
	// ConnectionString is the PostgreSQL connection string for replication.
	// Must include the replication=database parameter.
	ConnectionString string

	// SlotName is the logical replication slot to stream from.
	// Defaults to "seoul_restaurant".
	SlotName string

	// CreateSlot creates the slot with the wal2json plugin when it does not exist yet.
	// Otherwise the slot must be pre-existing.
	CreateSlot bool

	// TemporarySlot makes a created slot disappear with the connection
	TemporarySlot bool

	// Tables restricts the stream to the given "schema.table" names through the
	// wal2json add-tables option. Empty streams every table.
	Tables []string

	// KeyColumn is the source column whose values identify a row in logs and dead letters
	KeyColumn string

	// PollInterval bounds how long a single read waits for the next frame.
	// Defaults to 50ms.
	PollInterval time.Duration

	// StandbyMessageTimeout is how often to send standby status updates while idle.
	// Defaults to 10 seconds.
	StandbyMessageTimeout time.Duration

	// AdvanceOnFailure acknowledges a transaction even when its batch handler failed,
	// dropping its changes. When false the Replicator stops with the handler error and
	// the transaction is redelivered after a restart.
	AdvanceOnFailure bool
}

// Validate checks the configuration and returns an error if invalid
func (c *Config) Validate() error {
	if c.ConnectionString == "" {
		return errors.New("ConnectionString is required")
	}
	if c.PollInterval < 0 || c.StandbyMessageTimeout < 0 {
		return errors.New("intervals must not be negative")
	}
	return nil
}

// applyDefaults sets default values for optional configuration fields
func (c *Config) applyDefaults() {
	if c.SlotName == "" {
		c.SlotName = "seoul_restaurant"
	}
	if c.PollInterval == 0 {
		c.PollInterval = 50 * time.Millisecond
	}
	if c.StandbyMessageTimeout == 0 {
		c.StandbyMessageTimeout = 10 * time.Second
	}
}
