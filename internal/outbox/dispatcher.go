package outbox

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/lib/pq"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/baechuer/orderflow/internal/metrics"
	"github.com/baechuer/orderflow/internal/tracing"
)

// undefinedTableSQLState is Postgres SQLSTATE 42P01: the outbox table does
// not exist yet (e.g. migrations haven't run). The dispatcher tolerates
// this during startup races instead of crash-looping.
const undefinedTableSQLState = "42P01"

// Dispatcher is the C3 polling loop: claim a batch, commit, deliver each
// row through its Sink, and record the outcome in its own transaction.
// Running it concurrently with other dispatcher instances is safe — SKIP
// LOCKED in ClaimBatch guarantees disjoint claims.
type Dispatcher struct {
	db       *sql.DB
	repo     *Repository
	sink     Sink
	log      zerolog.Logger
	metrics  *metrics.Metrics
	interval time.Duration
	batch    int
}

func NewDispatcher(db *sql.DB, repo *Repository, sink Sink, log zerolog.Logger, m *metrics.Metrics, pollInterval time.Duration, batchSize int) *Dispatcher {
	if batchSize < 1 {
		batchSize = 1
	}
	return &Dispatcher{
		db:       db,
		repo:     repo,
		sink:     sink,
		log:      log.With().Str("component", "outbox_dispatcher").Logger(),
		metrics:  m,
		interval: pollInterval,
		batch:    batchSize,
	}
}

// Run polls until ctx is cancelled. It never returns an error — transient
// failures are logged and retried on the next tick.
func (d *Dispatcher) Run(ctx context.Context) {
	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	for {
		d.tick(ctx)

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (d *Dispatcher) tick(ctx context.Context) {
	ctx, span := tracing.Tracer("outbox.dispatcher").Start(ctx, "outbox.tick")
	defer span.End()

	rows, err := d.claim(ctx)
	if err != nil {
		if isUndefinedTable(err) {
			d.log.Warn().Msg("outbox table not present yet, skipping tick")
			return
		}
		d.log.Error().Err(err).Msg("claim batch failed")
		span.RecordError(err)
		span.SetStatus(codes.Error, "claim failed")
		return
	}

	if d.metrics != nil && len(rows) > 0 {
		d.metrics.OutboxClaimedTotal.Add(float64(len(rows)))
	}

	for _, row := range rows {
		d.deliverOne(ctx, row)
	}
}

func (d *Dispatcher) claim(ctx context.Context) ([]Row, error) {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}

	rows, err := d.repo.ClaimBatch(ctx, tx, d.batch)
	if err != nil {
		_ = tx.Rollback()
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return rows, nil
}

func (d *Dispatcher) deliverOne(ctx context.Context, row Row) {
	ctx, span := tracing.Tracer("outbox.dispatcher").Start(ctx, "outbox.deliver")
	span.SetAttributes(
		attribute.String("outbox.event_id", row.ID),
		attribute.String("outbox.event_type", row.EventType),
	)
	defer span.End()

	deliverErr := d.sink.Deliver(ctx, row.EventType, row.Payload)

	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		d.log.Error().Err(err).Str("event_id", row.ID).Msg("begin outcome tx failed")
		span.RecordError(err)
		return
	}

	if deliverErr != nil {
		span.RecordError(deliverErr)
		span.SetStatus(codes.Error, "delivery failed")
		if err := d.repo.MarkFailed(ctx, tx, row.ID, row.Attempts, deliverErr.Error()); err != nil {
			_ = tx.Rollback()
			d.log.Error().Err(err).Str("event_id", row.ID).Msg("mark failed failed")
			return
		}
		if err := tx.Commit(); err != nil {
			d.log.Error().Err(err).Str("event_id", row.ID).Msg("commit mark failed failed")
			return
		}
		if d.metrics != nil {
			d.metrics.OutboxFailedTotal.Inc()
		}
		d.log.Warn().Str("event_id", row.ID).Err(deliverErr).Msg("event delivery failed, rescheduled")
		return
	}

	if err := d.repo.MarkSent(ctx, tx, row.ID); err != nil {
		_ = tx.Rollback()
		d.log.Error().Err(err).Str("event_id", row.ID).Msg("mark sent failed")
		return
	}
	if err := tx.Commit(); err != nil {
		d.log.Error().Err(err).Str("event_id", row.ID).Msg("commit mark sent failed")
		return
	}
	if d.metrics != nil {
		d.metrics.OutboxSentTotal.Inc()
	}
}

func isUndefinedTable(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == undefinedTableSQLState
	}
	return false
}
