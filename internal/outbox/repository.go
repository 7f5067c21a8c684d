package outbox

import (
	"context"
	"database/sql"
)

const insertOutboxSQL = `
INSERT INTO outbox (id, event_type, payload, status, attempts, available_at, created_at, updated_at)
VALUES ($1, $2, $3::jsonb, 'pending', 0, now(), now(), now())
`

// claimBatchSQL selects up to $1 claimable rows and flips them to
// 'processing' in one statement. SKIP LOCKED means concurrent dispatchers
// never observe the same row; ORDER BY created_at, id gives best-effort
// FIFO with a deterministic tiebreak.
const claimBatchSQL = `
WITH claimed AS (
	SELECT id
	FROM outbox
	WHERE status = 'pending' AND available_at <= now()
	ORDER BY created_at ASC, id ASC
	LIMIT $1
	FOR UPDATE SKIP LOCKED
)
UPDATE outbox
SET status = 'processing', locked_at = now(), updated_at = now()
FROM claimed
WHERE outbox.id = claimed.id
RETURNING outbox.id, outbox.event_type, outbox.payload, outbox.status, outbox.attempts
`

const markSentSQL = `
UPDATE outbox
SET status = 'sent', updated_at = now()
WHERE id = $1 AND status = 'processing'
`

const markFailedSQL = `
UPDATE outbox
SET status = 'pending',
    attempts = $2,
    available_at = now() + ($3 || ' seconds')::interval,
    last_error = $4,
    updated_at = now()
WHERE id = $1 AND status = 'processing'
`

// Repository is the C2 data-access contract: enqueue, claim-batch,
// mark-sent, mark-failed, backed by database/sql + lib/pq.
type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// Enqueue inserts a pending outbox row within the caller's transaction —
// producer-side atomicity with whatever domain write shares that tx.
func (r *Repository) Enqueue(ctx context.Context, tx *sql.Tx, ev Event) error {
	_, err := tx.ExecContext(ctx, insertOutboxSQL, ev.ID, ev.EventType, ev.Payload)
	return err
}

// ClaimBatch atomically claims up to limit pending rows within tx,
// transitioning them to 'processing'.
func (r *Repository) ClaimBatch(ctx context.Context, tx *sql.Tx, limit int) ([]Row, error) {
	rows, err := tx.QueryContext(ctx, claimBatchSQL, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Row
	for rows.Next() {
		var row Row
		if err := rows.Scan(&row.ID, &row.EventType, &row.Payload, &row.Status, &row.Attempts); err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

// MarkSent transitions a claimed row to its terminal SENT state.
func (r *Repository) MarkSent(ctx context.Context, tx *sql.Tx, id string) error {
	_, err := tx.ExecContext(ctx, markSentSQL, id)
	return err
}

// MarkFailed returns a claimed row to PENDING, bumping attempts and
// scheduling the next claim eligibility via Backoff.
func (r *Repository) MarkFailed(ctx context.Context, tx *sql.Tx, id string, priorAttempts int, lastError string) error {
	attempts := priorAttempts + 1
	delaySeconds := int(Backoff(attempts).Seconds())
	truncated := truncateError(lastError, 2048)
	_, err := tx.ExecContext(ctx, markFailedSQL, id, attempts, delaySeconds, truncated)
	return err
}

func truncateError(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}
