package repl

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/jackc/pglogrepl"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgproto3"
	log "github.com/sirupsen/logrus"
	"github.com/usktea/lunch-indexer/metrics"
)

const outputPlugin = "wal2json"

// Replicator streams wal2json changes from a logical replication slot, buffers them per
// transaction and hands every committed transaction to a BatchHandler.
//
// It implements suture.Service: Serve runs one connection until the context is cancelled
// or the stream fails, and a restarted Serve resumes from the last acknowledged LSN.
type Replicator struct {
	config      Config
	handler     BatchHandler
	cursors     CursorStore
	deadLetters DeadLetterSink

	conn   *pgconn.PgConn
	buffer transactionBuffer
	inTxn  bool

	// received is the highest frame position read; a commit frame carries its end LSN.
	// acked is what the server was told.
	received pglogrepl.LSN
	acked    pglogrepl.LSN

	receive    func(ctx context.Context) (pgproto3.BackendMessage, error)
	sendStatus func(ctx context.Context, pos pglogrepl.LSN) error
	lastMsg    atomic.Int64
}

// Option customizes a Replicator
type Option func(*Replicator)

// WithCursorStore persists acknowledged positions in s
func WithCursorStore(s CursorStore) Option {
	return func(r *Replicator) { r.cursors = s }
}

// WithDeadLetters records failed transactions in s
func WithDeadLetters(s DeadLetterSink) Option {
	return func(r *Replicator) { r.deadLetters = s }
}

// NewReplicator creates a new Replicator with the given configuration
func NewReplicator(cfg Config, handler BatchHandler, opts ...Option) (*Replicator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if handler == nil {
		return nil, errors.New("batch handler is required")
	}

	cfg.applyDefaults()

	r := &Replicator{
		config:  cfg,
		handler: handler,
		cursors: newMemoryCursorStore(),
	}
	r.receive = r.receiveMessage
	r.sendStatus = r.sendStandbyStatus
	r.lastMsg.Store(time.Now().UnixMilli())
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

func (r *Replicator) String() string {
	return "replicator/" + r.config.SlotName
}

func (r *Replicator) TimeSinceLastMsg() time.Duration {
	lastTime := r.lastMsg.Load()
	return time.Since(time.UnixMilli(lastTime))
}

// Serve connects, starts streaming from the persisted cursor and processes frames until
// ctx is cancelled or an unrecoverable error occurs.
func (r *Replicator) Serve(ctx context.Context) error {
	if err := r.connect(ctx); err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	defer r.Close()

	if r.config.CreateSlot {
		if err := r.createReplicationSlot(ctx); err != nil {
			return fmt.Errorf("create replication slot: %w", err)
		}
	}

	start, err := r.cursors.Load(ctx, r.config.SlotName)
	if err != nil {
		return fmt.Errorf("load cursor: %w", err)
	}
	r.received, r.acked = start, start
	r.buffer.reset()
	r.inTxn = false

	if err := r.startReplication(ctx, start); err != nil {
		return fmt.Errorf("start replication: %w", err)
	}
	log.WithFields(log.Fields{"slot": r.config.SlotName, "lsn": start.String()}).Info("replication started")

	return r.receiveMessages(ctx)
}

// Close closes the replication connection
func (r *Replicator) Close() error {
	if r.conn == nil {
		return nil
	}
	err := r.conn.Close(context.Background())
	r.conn = nil
	return err
}

// connect establishes a replication connection to PostgreSQL
func (r *Replicator) connect(ctx context.Context) error {
	conn, err := pgconn.Connect(ctx, r.config.ConnectionString)
	if err != nil {
		return fmt.Errorf("connect to PostgreSQL: %w", err)
	}
	r.conn = conn
	r.lastMsg.Store(time.Now().UnixMilli())
	return nil
}

// createReplicationSlot creates the wal2json slot, tolerating an existing one
func (r *Replicator) createReplicationSlot(ctx context.Context) error {
	_, err := pglogrepl.CreateReplicationSlot(
		ctx,
		r.conn,
		r.config.SlotName,
		outputPlugin,
		pglogrepl.CreateReplicationSlotOptions{
			Temporary: r.config.TemporarySlot,
		},
	)
	if err != nil && !strings.Contains(err.Error(), "already exists") {
		return err
	}
	return nil
}

// startReplication requests format-version 2 output starting at startPos.
// A zero position lets the server start from the slot's confirmed position.
func (r *Replicator) startReplication(ctx context.Context, startPos pglogrepl.LSN) error {
	pluginArgs := []string{"\"format-version\" '2'"}
	if len(r.config.Tables) > 0 {
		pluginArgs = append(pluginArgs, fmt.Sprintf("\"add-tables\" '%s'", strings.Join(r.config.Tables, ",")))
	}

	return pglogrepl.StartReplication(
		ctx,
		r.conn,
		r.config.SlotName,
		startPos,
		pglogrepl.StartReplicationOptions{
			PluginArgs: pluginArgs,
		},
	)
}

// receiveMessages is the main loop. Each read waits at most PollInterval, and a read that
// times out only means no frame is pending.
func (r *Replicator) receiveMessages(ctx context.Context) error {
	nextStandbyDeadline := time.Now().Add(r.config.StandbyMessageTimeout)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if time.Now().After(nextStandbyDeadline) {
			if err := r.sendStatus(ctx, r.acked); err != nil {
				return fmt.Errorf("send standby status: %w", err)
			}
			nextStandbyDeadline = time.Now().Add(r.config.StandbyMessageTimeout)
		}

		msgCtx, cancel := context.WithTimeout(ctx, r.config.PollInterval)
		rawMsg, err := r.receive(msgCtx)
		cancel()

		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if pgconn.Timeout(err) || errors.Is(err, context.DeadlineExceeded) {
				continue
			}
			return fmt.Errorf("receive message: %w", err)
		}

		if errMsg, ok := rawMsg.(*pgproto3.ErrorResponse); ok {
			return fmt.Errorf("postgres error: %s", errMsg.Message)
		}
		r.lastMsg.Store(time.Now().UnixMilli())

		msg, ok := rawMsg.(*pgproto3.CopyData)
		if !ok {
			continue
		}
		replyRequested, err := r.handleCopyData(ctx, msg.Data)
		if err != nil {
			return err
		}
		if replyRequested {
			nextStandbyDeadline = time.Time{}
		}
	}
}

// handleCopyData processes one CopyData payload of the stream and reports whether the
// server asked for an immediate status update.
func (r *Replicator) handleCopyData(ctx context.Context, data []byte) (bool, error) {
	if len(data) == 0 {
		return false, nil
	}

	switch data[0] {
	case pglogrepl.PrimaryKeepaliveMessageByteID:
		pkm, err := pglogrepl.ParsePrimaryKeepaliveMessage(data[1:])
		if err != nil {
			return false, fmt.Errorf("parse keepalive: %w", err)
		}
		// outside a transaction everything up to the server's sent position is processed
		if !r.inTxn && r.buffer.len() == 0 && pkm.ServerWALEnd > r.acked {
			r.received = pkm.ServerWALEnd
			r.acked = pkm.ServerWALEnd
		}
		return pkm.ReplyRequested, nil

	case pglogrepl.XLogDataByteID:
		xld, err := pglogrepl.ParseXLogData(data[1:])
		if err != nil {
			return false, fmt.Errorf("parse xlog data: %w", err)
		}
		if xld.WALStart > r.received {
			r.received = xld.WALStart
		}
		return false, r.handleFrame(ctx, xld.WALData, xld.WALStart)
	}
	return false, nil
}

// handleFrame decodes one wal2json frame and folds it into the current transaction.
// A frame that cannot be decoded is logged and skipped.
func (r *Replicator) handleFrame(ctx context.Context, data []byte, lsn pglogrepl.LSN) error {
	if len(data) == 0 {
		return nil
	}

	msg, err := parseMessage(data)
	if err != nil {
		metrics.ReplicationMalformedFrames.Inc()
		log.WithFields(log.Fields{"slot": r.config.SlotName, "lsn": lsn.String()}).WithError(err).Warn("skipping malformed frame")
		return nil
	}
	msg.LSN = lsn
	metrics.ReplicationFrames.WithLabelValues(string(msg.Action)).Inc()

	switch {
	case msg.Action == Begin:
		r.inTxn = true
	case msg.Action == Commit:
		return r.commit(ctx, msg)
	case msg.IsChange():
		r.buffer.add(msg)
	}
	return nil
}

// commit hands the buffered transaction to the handler and acknowledges it.
// The buffer is always cleared. A failed transaction is only acknowledged when
// AdvanceOnFailure is set.
func (r *Replicator) commit(ctx context.Context, frame Message) error {
	r.inTxn = false
	pending := r.buffer.msgs
	metrics.TransactionSize.Observe(float64(len(pending)))

	err := r.buffer.flush(ctx, r.handler)
	if ctx.Err() != nil {
		// shutting down mid-transaction: leave it unacknowledged so it is redelivered
		return ctx.Err()
	}

	if err != nil {
		metrics.Transactions.WithLabelValues("failed").Inc()
		keys := batchKeys(pending, r.config.KeyColumn)
		log.WithFields(log.Fields{
			"slot":     r.config.SlotName,
			"lsn":      frame.LSN.String(),
			"messages": len(pending),
			"keys":     keys,
		}).WithError(err).Error("failed to process transaction")

		r.recordDeadLetter(ctx, frame.LSN, pending, keys, err)

		if !r.config.AdvanceOnFailure {
			return fmt.Errorf("handle transaction at %s: %w", frame.LSN, err)
		}
	} else {
		metrics.Transactions.WithLabelValues("ok").Inc()
	}

	return r.acknowledge(ctx, r.received)
}

func (r *Replicator) recordDeadLetter(ctx context.Context, commitLSN pglogrepl.LSN, msgs []Message, keys []string, cause error) {
	if r.deadLetters == nil {
		return
	}
	letter := DeadLetter{
		Slot:     r.config.SlotName,
		LSN:      commitLSN.String(),
		Tables:   batchTables(msgs),
		Keys:     keys,
		Messages: len(msgs),
		Error:    cause.Error(),
		FailedAt: time.Now().UTC(),
	}
	if err := r.deadLetters.Record(ctx, commitLSN, letter); err != nil {
		log.WithField("lsn", commitLSN.String()).WithError(err).Warn("failed to record dead letter")
		return
	}
	metrics.DeadLetters.Inc()
}

// acknowledge reports pos as written, flushed and applied, then persists it.
func (r *Replicator) acknowledge(ctx context.Context, pos pglogrepl.LSN) error {
	if pos > r.acked {
		r.acked = pos
	}
	if err := r.sendStatus(ctx, r.acked); err != nil {
		return fmt.Errorf("send standby status: %w", err)
	}
	if err := r.cursors.Save(ctx, r.config.SlotName, r.acked); err != nil {
		log.WithField("slot", r.config.SlotName).WithError(err).Warn("failed to persist replication cursor")
	}
	metrics.AcknowledgedLSN.WithLabelValues(r.config.SlotName).Set(float64(r.acked))
	return nil
}

func (r *Replicator) receiveMessage(ctx context.Context) (pgproto3.BackendMessage, error) {
	if r.conn == nil {
		return nil, errors.New("not connected")
	}
	return r.conn.ReceiveMessage(ctx)
}

func (r *Replicator) sendStandbyStatus(ctx context.Context, pos pglogrepl.LSN) error {
	if r.conn == nil {
		return errors.New("not connected")
	}
	return pglogrepl.SendStandbyStatusUpdate(ctx, r.conn, pglogrepl.StandbyStatusUpdate{
		WALWritePosition: pos,
		WALFlushPosition: pos,
		WALApplyPosition: pos,
		ClientTime:       time.Now(),
	})
}
