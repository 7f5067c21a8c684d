package orders

import (
	"context"
	"database/sql"
	"net/http"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/baechuer/orderflow/internal/domain"
	"github.com/baechuer/orderflow/internal/outbox"
)

func TestService_Create_HappyPath(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	svc := NewService(db, outbox.NewRepository(db), nil)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO orders").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO outbox").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	req := domain.CreateOrderRequest{
		ExternalID: "ext-1",
		Items:      []domain.Item{{SKU: "sku-1", Qty: 2}},
	}

	status, resp, err := svc.Create(context.Background(), http.Header{}, req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusCreated, status)
	assert.Equal(t, "ext-1", resp.ExternalID)
	assert.Equal(t, 1, resp.ItemCount)
	assert.Equal(t, 2, resp.TotalQty)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestService_Create_InvalidRequest_NeverTouchesStore(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	svc := NewService(db, outbox.NewRepository(db), nil)

	_, _, err = svc.Create(context.Background(), http.Header{}, domain.CreateOrderRequest{})
	require.Error(t, err)

	var ae *domain.AppError
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, domain.CodeValidationError, ae.Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestService_Get_MalformedID_ReturnsBadRequest(t *testing.T) {
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	svc := NewService(db, outbox.NewRepository(db), nil)

	_, err = svc.Get(context.Background(), "not-a-uuid")
	require.Error(t, err)

	var ae *domain.AppError
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, domain.CodeBadRequest, ae.Code)
}

func TestService_Get_AbsentID_ReturnsNotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	svc := NewService(db, outbox.NewRepository(db), nil)

	id := "123e4567-e89b-12d3-a456-426614174000"
	mock.ExpectQuery("SELECT id, external_id, item_count, total_qty, created_at").
		WithArgs(id).
		WillReturnError(sql.ErrNoRows)

	_, err = svc.Get(context.Background(), id)
	require.Error(t, err)

	var ae *domain.AppError
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, domain.CodeNotFound, ae.Code)
}
