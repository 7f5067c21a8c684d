package orders

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/baechuer/orderflow/internal/domain"
	"github.com/baechuer/orderflow/internal/idempotency"
	"github.com/baechuer/orderflow/internal/metrics"
	"github.com/baechuer/orderflow/internal/outbox"
)

const eventTypeOrderCreated = "order.created"

// uniqueViolationSQLState is Postgres SQLSTATE 23505.
const uniqueViolationSQLState = "23505"

const insertOrderSQL = `
INSERT INTO orders (id, external_id, item_count, total_qty, created_at)
VALUES ($1, $2, $3, $4, now())
`

const selectOrderByIDSQL = `
SELECT id, external_id, item_count, total_qty, created_at
FROM orders
WHERE id = $1
`

// CreateOrderResponse is the wire shape returned by a successful create and
// replayed byte-for-byte by the idempotency engine on retry.
type CreateOrderResponse struct {
	ID         string `json:"id"`
	ExternalID string `json:"external_id"`
	ItemCount  int    `json:"item_count"`
	TotalQty   int    `json:"total_qty"`
}

type orderCreatedPayload struct {
	OrderID    string `json:"order_id"`
	ExternalID string `json:"external_id"`
	ItemCount  int    `json:"item_count"`
	TotalQty   int    `json:"total_qty"`
}

// Service implements the order write and read paths: validation, the
// idempotent create, and a plain lookup by id.
type Service struct {
	db      *sql.DB
	outbox  *outbox.Repository
	metrics *metrics.Metrics
}

func NewService(db *sql.DB, outboxRepo *outbox.Repository, m *metrics.Metrics) *Service {
	return &Service{db: db, outbox: outboxRepo, metrics: m}
}

// Validate checks a create-order request without touching the store.
func (s *Service) Validate(req domain.CreateOrderRequest) (domain.Normalized, error) {
	return domain.Validate(req)
}

// Create runs the full write path: validate, then under the idempotency
// engine, insert the order row and co-enqueue its outbox event in one
// transaction. A duplicate external_id surfaces as CONFLICT rather than a
// raw driver error.
func (s *Service) Create(ctx context.Context, headers http.Header, req domain.CreateOrderRequest) (int, CreateOrderResponse, error) {
	normalized, err := domain.Validate(req)
	if err != nil {
		var zero CreateOrderResponse
		return 0, zero, err
	}

	status, resp, err := idempotency.WithIdempotency[CreateOrderResponse](
		ctx, s.db, headers, "POST:/api/v1/orders", req,
		func(tx *sql.Tx) (int, CreateOrderResponse, error) {
			return s.create(ctx, tx, normalized)
		},
	)
	if err != nil {
		if s.metrics != nil {
			if ae, ok := err.(*domain.AppError); ok && ae.Code == domain.CodeConflict {
				if reason := ae.Details["reason"]; reason != "" {
					s.metrics.IdempotencyConflictsTotal.WithLabelValues(reason).Inc()
				}
			}
		}
		return status, resp, err
	}
	if s.metrics != nil && status == http.StatusCreated {
		s.metrics.OrdersCreatedTotal.Inc()
	}
	return status, resp, nil
}

func (s *Service) create(ctx context.Context, tx *sql.Tx, normalized domain.Normalized) (int, CreateOrderResponse, error) {
	id := uuid.NewString()

	_, err := tx.ExecContext(ctx, insertOrderSQL, id, normalized.ExternalID, normalized.ItemCount, normalized.TotalQty)
	if err != nil {
		var zero CreateOrderResponse
		if isUniqueViolation(err) {
			return 0, zero, domain.ErrConflict("an order with this external_id already exists")
		}
		return 0, zero, domain.ErrInternal("insert order: " + err.Error())
	}

	payload, err := json.Marshal(orderCreatedPayload{
		OrderID:    id,
		ExternalID: normalized.ExternalID,
		ItemCount:  normalized.ItemCount,
		TotalQty:   normalized.TotalQty,
	})
	if err != nil {
		var zero CreateOrderResponse
		return 0, zero, domain.ErrInternal("marshal outbox payload: " + err.Error())
	}

	if err := s.outbox.Enqueue(ctx, tx, outbox.Event{
		ID:        uuid.NewString(),
		EventType: eventTypeOrderCreated,
		Payload:   payload,
	}); err != nil {
		var zero CreateOrderResponse
		return 0, zero, domain.ErrInternal("enqueue outbox event: " + err.Error())
	}

	return http.StatusCreated, CreateOrderResponse{
		ID:         id,
		ExternalID: normalized.ExternalID,
		ItemCount:  normalized.ItemCount,
		TotalQty:   normalized.TotalQty,
	}, nil
}

// Get looks up an order by id. A malformed id is a client error (400), a
// well-formed but absent id is NOT_FOUND (404).
func (s *Service) Get(ctx context.Context, id string) (CreateOrderResponse, error) {
	var zero CreateOrderResponse

	if _, err := uuid.Parse(id); err != nil {
		return zero, domain.ErrBadRequest("id must be a valid UUID")
	}

	var row CreateOrderResponse
	var createdAt sql.NullTime
	err := s.db.QueryRowContext(ctx, selectOrderByIDSQL, id).Scan(&row.ID, &row.ExternalID, &row.ItemCount, &row.TotalQty, &createdAt)
	if err == sql.ErrNoRows {
		return zero, domain.ErrNotFound("order not found")
	}
	if err != nil {
		return zero, domain.ErrInternal("select order: " + err.Error())
	}
	return row, nil
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == uniqueViolationSQLState
	}
	return false
}
