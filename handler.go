package main

import (
	"context"
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/usktea/lunch-indexer/enrich"
	"github.com/usktea/lunch-indexer/metrics"
	"github.com/usktea/lunch-indexer/models"
	"github.com/usktea/lunch-indexer/repl"
)

type Ingester interface {
	Ingest(ctx context.Context, events []models.SeoulRestaurantEvent) (enrich.Result, error)
}

// Handler routes the committed changes of the restaurant source table to the indexer
type Handler struct {
	indexer Ingester
	schema  string
	table   string
}

// NewHandler creates a Handler for schema.table. An empty schema matches the table in any schema.
func NewHandler(indexer Ingester, schema, table string) *Handler {
	return &Handler{indexer: indexer, schema: schema, table: table}
}

type actionGroup struct {
	action repl.Action
	events []models.SeoulRestaurantEvent
}

// HandleBatch is the repl.BatchHandler of the restaurant stream
func (h *Handler) HandleBatch(ctx context.Context, msgs []repl.Message) error {
	groups, err := h.group(msgs)
	if err != nil {
		return err
	}

	for _, g := range groups {
		metrics.DispatchedEvents.WithLabelValues(string(g.action)).Add(float64(len(g.events)))

		switch g.action {
		case repl.Insert:
			res, err := h.indexer.Ingest(ctx, g.events)
			if err != nil {
				return fmt.Errorf("ingest %d inserts: %w", len(g.events), err)
			}
			if res.DroppedTotal() > 0 {
				log.WithFields(log.Fields{
					"received": res.Received,
					"dropped":  res.Dropped,
					"inserted": res.Inserted,
				}).Info("inserted restaurants with drops")
			}
		default:
			// the search index only follows new registrations
			keys := make([]string, 0, len(g.events))
			for _, ev := range g.events {
				keys = append(keys, ev.ManagementNumber)
			}
			log.WithFields(log.Fields{
				"action":             g.action,
				"management_numbers": keys,
			}).Debug("ignoring restaurant changes")
		}
	}
	return nil
}

// group maps the messages of the source table to events, grouped by action in order of
// first appearance. Events keep their commit order inside a group.
func (h *Handler) group(msgs []repl.Message) ([]actionGroup, error) {
	var groups []actionGroup
	index := map[repl.Action]int{}

	for _, msg := range msgs {
		if !h.matches(msg) {
			continue
		}
		ev, err := models.NewSeoulRestaurantEvent(string(msg.Action), repl.ToFields(msg))
		if err != nil {
			key, _ := msg.Lookup("management_number")
			return nil, fmt.Errorf("map %s change at %s (management_number %v): %w",
				msg.QualifiedTable(), msg.LSN, key, err)
		}

		i, ok := index[msg.Action]
		if !ok {
			i = len(groups)
			index[msg.Action] = i
			groups = append(groups, actionGroup{action: msg.Action})
		}
		groups[i].events = append(groups[i].events, ev)
	}
	return groups, nil
}

func (h *Handler) matches(msg repl.Message) bool {
	if msg.Table != h.table {
		return false
	}
	return h.schema == "" || msg.Schema == h.schema
}
