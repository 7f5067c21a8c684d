package idempotency

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/baechuer/orderflow/internal/domain"
	"github.com/baechuer/orderflow/internal/tracing"
)

// HeaderKey is the request header carrying the client-supplied retry token.
const HeaderKey = "Idempotency-Key"

const (
	statusInProgress = "IN_PROGRESS"
	statusCompleted  = "COMPLETED"
)

const insertClaimSQL = `
INSERT INTO idempotency_keys (endpoint, idempotency_key, request_hash, status, created_at, updated_at)
VALUES ($1, $2, $3, 'IN_PROGRESS', now(), now())
ON CONFLICT (endpoint, idempotency_key) DO NOTHING
`

const completeClaimSQL = `
UPDATE idempotency_keys
SET status = 'COMPLETED', response_status = $3, response_body = $4, updated_at = now()
WHERE endpoint = $1 AND idempotency_key = $2
`

const selectClaimForUpdateSQL = `
SELECT request_hash, status, response_status, response_body
FROM idempotency_keys
WHERE endpoint = $1 AND idempotency_key = $2
FOR UPDATE
`

// Operation is the caller-supplied unit of work run inside the claim
// transaction. Its response type S must be both json.Marshal-able and
// json.Unmarshal-able, since a replayed request deserializes it back from
// the stored response_body.
type Operation[S any] func(tx *sql.Tx) (httpStatus int, response S, err error)

// ExtractKey trims the Idempotency-Key header; an empty result means "no
// idempotency bookkeeping for this request".
func ExtractKey(headers http.Header) string {
	return strings.TrimSpace(headers.Get(HeaderKey))
}

// canonicalHash hashes the key-sorted JSON encoding of v. Round-tripping
// through a generic map[string]any forces encoding/json's deterministic,
// lexicographically-sorted map key ordering regardless of the original
// struct's field order — this is the "fixed canonical order" the spec's
// open question calls for.
func canonicalHash(v any) (string, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	var generic any
	if err := json.Unmarshal(raw, &generic); err != nil {
		return "", err
	}
	canonical, err := json.Marshal(generic)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(canonical)
	return hex.EncodeToString(sum[:]), nil
}

// WithIdempotency implements the claim/complete/replay protocol from the
// spec: a missing key runs op in a bare transaction with no bookkeeping; a
// present key enforces at-most-one concurrent executor per
// (endpoint, key), replays a COMPLETED response byte-for-byte, and surfaces
// a CONFLICT for a hash mismatch or a still-running original.
func WithIdempotency[S any](ctx context.Context, db *sql.DB, headers http.Header, endpoint string, request any, op Operation[S]) (int, S, error) {
	var zero S

	tracer := tracing.Tracer("idempotency")
	ctx, span := tracer.Start(ctx, "idempotency.with_idempotency",
		trace.WithAttributes(attribute.String("endpoint", endpoint)),
	)
	defer span.End()

	key := ExtractKey(headers)
	if key == "" {
		return runWithoutIdempotency(ctx, db, op)
	}
	span.SetAttributes(attribute.Bool("idempotency.key_present", true))

	hash, err := canonicalHash(request)
	if err != nil {
		return 0, zero, domain.ErrInternal("hash request: " + err.Error())
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return 0, zero, domain.ErrInternal("begin transaction: " + err.Error())
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx, insertClaimSQL, endpoint, key, hash)
	if err != nil {
		return 0, zero, domain.ErrInternal("claim idempotency key: " + err.Error())
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, zero, domain.ErrInternal("claim idempotency key: " + err.Error())
	}

	if affected == 1 {
		return completeClaim(ctx, tx, endpoint, key, op)
	}
	return replayOrConflict(ctx, tx, endpoint, key, hash)
}

func runWithoutIdempotency[S any](ctx context.Context, db *sql.DB, op Operation[S]) (int, S, error) {
	var zero S

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return 0, zero, domain.ErrInternal("begin transaction: " + err.Error())
	}

	status, resp, err := op(tx)
	if err != nil {
		_ = tx.Rollback()
		return 0, zero, err
	}
	if err := tx.Commit(); err != nil {
		return 0, zero, domain.ErrInternal("commit transaction: " + err.Error())
	}
	return status, resp, nil
}

func completeClaim[S any](ctx context.Context, tx *sql.Tx, endpoint, key string, op Operation[S]) (int, S, error) {
	var zero S

	status, resp, err := op(tx)
	if err != nil {
		// Rolling back here discards both the IN_PROGRESS claim row and any
		// writes op performed in the same transaction, freeing the slot for
		// retry. This is the composition property that makes co-enqueuing an
		// outbox row safe.
		_ = tx.Rollback()
		return 0, zero, err
	}

	body, err := json.Marshal(resp)
	if err != nil {
		_ = tx.Rollback()
		return 0, zero, domain.ErrInternal("serialize response: " + err.Error())
	}

	if _, err := tx.ExecContext(ctx, completeClaimSQL, endpoint, key, status, body); err != nil {
		_ = tx.Rollback()
		return 0, zero, domain.ErrInternal("complete idempotency key: " + err.Error())
	}

	if err := tx.Commit(); err != nil {
		return 0, zero, domain.ErrInternal("commit transaction: " + err.Error())
	}
	return status, resp, nil
}

func replayOrConflict[S any](ctx context.Context, tx *sql.Tx, endpoint, key, hash string) (int, S, error) {
	var zero S

	var existingHash, existingStatus string
	var respStatus sql.NullInt64
	var respBody []byte

	row := tx.QueryRowContext(ctx, selectClaimForUpdateSQL, endpoint, key)
	if err := row.Scan(&existingHash, &existingStatus, &respStatus, &respBody); err != nil {
		_ = tx.Rollback()
		return 0, zero, domain.ErrInternal("read idempotency key: " + err.Error())
	}
	// Read-only path: this request performed no writes, so rolling back is
	// just releasing the row lock.
	_ = tx.Rollback()

	if existingHash != hash {
		return 0, zero, &domain.AppError{
			Code:    domain.CodeConflict,
			Message: "Idempotency-Key reuse with different request payload",
			Details: map[string]string{"reason": "hash_mismatch"},
		}
	}
	if existingStatus == statusInProgress {
		return 0, zero, &domain.AppError{
			Code:    domain.CodeConflict,
			Message: "Request in progress for this Idempotency-Key; retry shortly",
			Details: map[string]string{"reason": "in_progress"},
		}
	}

	if err := json.Unmarshal(respBody, &zero); err != nil {
		return 0, zero, domain.ErrInternal("deserialize stored response: " + err.Error())
	}
	return int(respStatus.Int64), zero, nil
}
