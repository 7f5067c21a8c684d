package idempotency

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/baechuer/orderflow/internal/domain"
)

type testResponse struct {
	ID string `json:"id"`
}

func TestWithIdempotency_NoKey_RunsOpWithoutBookkeeping(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectCommit()

	called := false
	status, resp, err := WithIdempotency[testResponse](context.Background(), db, http.Header{}, "POST:/api/v1/orders", map[string]string{}, func(tx *sql.Tx) (int, testResponse, error) {
		called = true
		return http.StatusCreated, testResponse{ID: "order-1"}, nil
	})

	assert.NoError(t, err)
	assert.True(t, called)
	assert.Equal(t, http.StatusCreated, status)
	assert.Equal(t, "order-1", resp.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWithIdempotency_Claimed_CommitsAndReturnsResponse(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	headers := http.Header{}
	headers.Set(HeaderKey, "key-1")

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO idempotency_keys").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE idempotency_keys").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	status, resp, err := WithIdempotency[testResponse](context.Background(), db, headers, "POST:/api/v1/orders", map[string]string{"a": "b"}, func(tx *sql.Tx) (int, testResponse, error) {
		return http.StatusCreated, testResponse{ID: "order-2"}, nil
	})

	assert.NoError(t, err)
	assert.Equal(t, http.StatusCreated, status)
	assert.Equal(t, "order-2", resp.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWithIdempotency_OpFails_RollsBackAndFreesSlot(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	headers := http.Header{}
	headers.Set(HeaderKey, "key-1")

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO idempotency_keys").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectRollback()

	_, _, err = WithIdempotency[testResponse](context.Background(), db, headers, "POST:/api/v1/orders", map[string]string{}, func(tx *sql.Tx) (int, testResponse, error) {
		return 0, testResponse{}, domain.ErrInternal("boom")
	})

	assert.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWithIdempotency_HashMismatch_ReturnsConflict(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	headers := http.Header{}
	headers.Set(HeaderKey, "key-1")

	body, _ := json.Marshal(testResponse{ID: "order-1"})
	rows := sqlmock.NewRows([]string{"request_hash", "status", "response_status", "response_body"}).
		AddRow("different-hash", statusCompleted, 201, body)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO idempotency_keys").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("SELECT request_hash, status, response_status, response_body").WillReturnRows(rows)
	mock.ExpectRollback()

	_, _, err = WithIdempotency[testResponse](context.Background(), db, headers, "POST:/api/v1/orders", map[string]string{"a": "b"}, func(tx *sql.Tx) (int, testResponse, error) {
		t.Fatal("op must not run when the key was not claimed")
		return 0, testResponse{}, nil
	})

	require.Error(t, err)
	var ae *domain.AppError
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, domain.CodeConflict, ae.Code)
	assert.Equal(t, "hash_mismatch", ae.Details["reason"])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWithIdempotency_InProgress_ReturnsConflict(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	headers := http.Header{}
	headers.Set(HeaderKey, "key-1")

	req := map[string]string{"a": "b"}
	hash, err := canonicalHash(req)
	require.NoError(t, err)

	rows := sqlmock.NewRows([]string{"request_hash", "status", "response_status", "response_body"}).
		AddRow(hash, statusInProgress, nil, nil)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO idempotency_keys").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("SELECT request_hash, status, response_status, response_body").WillReturnRows(rows)
	mock.ExpectRollback()

	_, _, err = WithIdempotency[testResponse](context.Background(), db, headers, "POST:/api/v1/orders", req, func(tx *sql.Tx) (int, testResponse, error) {
		t.Fatal("op must not run when the key was not claimed")
		return 0, testResponse{}, nil
	})

	require.Error(t, err)
	var ae *domain.AppError
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, "in_progress", ae.Details["reason"])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWithIdempotency_Completed_ReplaysStoredResponse(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	headers := http.Header{}
	headers.Set(HeaderKey, "key-1")

	req := map[string]string{"a": "b"}
	hash, err := canonicalHash(req)
	require.NoError(t, err)

	body, _ := json.Marshal(testResponse{ID: "order-1"})
	rows := sqlmock.NewRows([]string{"request_hash", "status", "response_status", "response_body"}).
		AddRow(hash, statusCompleted, 201, body)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO idempotency_keys").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("SELECT request_hash, status, response_status, response_body").WillReturnRows(rows)
	mock.ExpectRollback()

	status, resp, err := WithIdempotency[testResponse](context.Background(), db, headers, "POST:/api/v1/orders", req, func(tx *sql.Tx) (int, testResponse, error) {
		t.Fatal("op must not run on replay")
		return 0, testResponse{}, nil
	})

	require.NoError(t, err)
	assert.Equal(t, 201, status)
	assert.Equal(t, "order-1", resp.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCanonicalHash_IsOrderIndependent(t *testing.T) {
	type reqA struct {
		B string `json:"b"`
		A string `json:"a"`
	}
	type reqB struct {
		A string `json:"a"`
		B string `json:"b"`
	}

	h1, err := canonicalHash(reqA{B: "2", A: "1"})
	require.NoError(t, err)
	h2, err := canonicalHash(reqB{A: "1", B: "2"})
	require.NoError(t, err)

	assert.Equal(t, h1, h2)
}
