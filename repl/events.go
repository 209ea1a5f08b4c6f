package repl

import (
	"context"
	"fmt"

	"github.com/jackc/pglogrepl"
)

// Action is the wal2json format-version 2 action code of a frame
type Action string

const (
	Begin          Action = "B"
	Commit         Action = "C"
	Insert         Action = "I"
	Update         Action = "U"
	Delete         Action = "D"
	Truncate       Action = "T"
	LogicalMessage Action = "M"
)

// Column is a single column entry of a change frame
type Column struct {
	Name  string `json:"name"`
	Type  string `json:"type"`
	Value any    `json:"value"`
}

// Message is one decoded wal2json frame
type Message struct {
	Action Action `json:"action"`

	// Schema and Table are empty for begin and commit frames
	Schema string `json:"schema,omitempty"`
	Table  string `json:"table,omitempty"`

	// Columns holds the new row image for inserts and updates
	Columns []Column `json:"columns,omitempty"`

	// Identity holds the replica identity of the old row, populated for deletes
	Identity []Column `json:"identity,omitempty"`

	// LSN is the WAL start position of the frame that carried the message
	LSN pglogrepl.LSN `json:"-"`
}

// IsChange reports whether the message is a row change that belongs in a transaction buffer
func (m Message) IsChange() bool {
	switch m.Action {
	case Insert, Update, Delete:
		return true
	}
	return false
}

// QualifiedTable returns the table in "schema.table" format
func (m Message) QualifiedTable() string {
	if m.Schema == "" {
		return m.Table
	}
	return fmt.Sprintf("%s.%s", m.Schema, m.Table)
}

// Lookup returns the raw value of the named column from the row image the mapper would use
func (m Message) Lookup(column string) (any, bool) {
	cols := m.Columns
	if m.Action == Delete {
		cols = m.Identity
	}
	for _, c := range cols {
		if c.Name == column {
			return c.Value, true
		}
	}
	return nil, false
}

// BatchHandler receives the change messages of one committed transaction, in commit order.
type BatchHandler func(ctx context.Context, msgs []Message) error
