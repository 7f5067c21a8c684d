package outbox

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSink struct {
	calls []string
	err   error
}

func (f *fakeSink) Deliver(ctx context.Context, eventType string, payload []byte) error {
	f.calls = append(f.calls, eventType)
	return f.err
}

func TestDispatcher_Tick_DeliversClaimedRowAndMarksSent(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewRepository(db)
	sink := &fakeSink{}
	d := NewDispatcher(db, repo, sink, zerolog.Nop(), nil, 0, 10)

	rows := sqlmock.NewRows([]string{"id", "event_type", "payload", "status", "attempts"}).
		AddRow("evt-1", "order.created", []byte(`{}`), "processing", 0)

	mock.ExpectBegin()
	mock.ExpectQuery("WITH claimed AS").WithArgs(10).WillReturnRows(rows)
	mock.ExpectCommit()

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE outbox").WithArgs("evt-1").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	d.tick(context.Background())

	assert.Equal(t, []string{"order.created"}, sink.calls)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDispatcher_Tick_DeliveryFailureMarksFailed(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewRepository(db)
	sink := &fakeSink{err: errors.New("broker unreachable")}
	d := NewDispatcher(db, repo, sink, zerolog.Nop(), nil, 0, 10)

	rows := sqlmock.NewRows([]string{"id", "event_type", "payload", "status", "attempts"}).
		AddRow("evt-1", "order.created", []byte(`{}`), "processing", 1)

	mock.ExpectBegin()
	mock.ExpectQuery("WITH claimed AS").WithArgs(10).WillReturnRows(rows)
	mock.ExpectCommit()

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE outbox").
		WithArgs("evt-1", 2, 2, "broker unreachable").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	d.tick(context.Background())

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDispatcher_Tick_NoClaimableRowsDeliversNothing(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewRepository(db)
	sink := &fakeSink{}
	d := NewDispatcher(db, repo, sink, zerolog.Nop(), nil, 0, 10)

	rows := sqlmock.NewRows([]string{"id", "event_type", "payload", "status", "attempts"})

	mock.ExpectBegin()
	mock.ExpectQuery("WITH claimed AS").WithArgs(10).WillReturnRows(rows)
	mock.ExpectCommit()

	d.tick(context.Background())

	assert.Empty(t, sink.calls)
	assert.NoError(t, mock.ExpectationsWereMet())
}
