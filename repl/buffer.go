package repl

import (
	"context"
	"fmt"
	"slices"

	mapset "github.com/deckarep/golang-set/v2"
)

// transactionBuffer accumulates the row changes of the transaction currently being streamed.
// It is owned by the receive loop and never shared.
type transactionBuffer struct {
	msgs []Message
}

func (b *transactionBuffer) add(msg Message) {
	b.msgs = append(b.msgs, msg)
}

func (b *transactionBuffer) len() int {
	return len(b.msgs)
}

func (b *transactionBuffer) reset() {
	b.msgs = nil
}

// flush hands the buffered messages to handler and empties the buffer once the handler
// returns, whatever the outcome. A panicking handler is reported as an error.
func (b *transactionBuffer) flush(ctx context.Context, handler BatchHandler) (err error) {
	defer func() {
		b.reset()
		if r := recover(); r != nil {
			err = fmt.Errorf("batch handler panic: %v", r)
		}
	}()
	return handler(ctx, b.msgs)
}

// batchKeys collects the values of column across msgs, for logging
func batchKeys(msgs []Message, column string) []string {
	if column == "" {
		return nil
	}
	keys := make([]string, 0, len(msgs))
	for _, msg := range msgs {
		if v, ok := msg.Lookup(column); ok && v != nil {
			keys = append(keys, rawText(v))
		}
	}
	return keys
}

func batchTables(msgs []Message) []string {
	tables := mapset.NewThreadUnsafeSet[string]()
	for _, msg := range msgs {
		tables.Add(msg.QualifiedTable())
	}
	list := tables.ToSlice()
	slices.Sort(list)
	return list
}
