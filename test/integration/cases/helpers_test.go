//go:build integration

package cases

import (
	"context"
	"database/sql"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/baechuer/orderflow/internal/metrics"
	"github.com/baechuer/orderflow/internal/orders"
	"github.com/baechuer/orderflow/internal/outbox"
	"github.com/baechuer/orderflow/internal/transport/http/handlers"
	"github.com/baechuer/orderflow/internal/transport/http/router"
	"github.com/baechuer/orderflow/test/integration/infra"
)

// sharedMetrics registers the process-wide metrics once; metrics.New panics
// on a second registration, and every test here builds its own server.
var sharedMetrics = sync.OnceValue(metrics.New)

func newTestServer(t *testing.T) (*httptest.Server, *sql.DB, func()) {
	t.Helper()
	ctx := context.Background()

	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	if _, err := testcontainers.NewDockerClientWithOpts(ctx); err != nil {
		t.Skipf("docker unavailable: %v", err)
	}

	pgContainer, err := postgres.RunContainer(ctx,
		testcontainers.WithImage("postgres:17"),
		postgres.WithDatabase("orderflow_test"),
		postgres.WithUsername("orderflow"),
		postgres.WithPassword("orderflow"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	require.NoError(t, err)

	connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	db, err := infra.OpenDB(connStr)
	require.NoError(t, err)
	require.NoError(t, infra.PingDB(db))
	require.NoError(t, infra.ApplyMigrations(db, "../../../migrations"))

	m := sharedMetrics()
	outboxRepo := outbox.NewRepository(db)
	orderSvc := orders.NewService(db, outboxRepo, m)
	ordersHandler := handlers.NewOrdersHandler(orderSvc)
	healthHandler := handlers.NewHealthHandler(db)

	httpHandler := router.New(ordersHandler, healthHandler, m, zerolog.Nop())
	srv := httptest.NewServer(httpHandler)

	cleanup := func() {
		srv.Close()
		_ = db.Close()
		_ = pgContainer.Terminate(ctx)
	}
	return srv, db, cleanup
}

func doJSON(t *testing.T, method, url, idempotencyKey, body string) *http.Response {
	t.Helper()

	var req *http.Request
	var err error
	if body != "" {
		req, err = http.NewRequest(method, url, strings.NewReader(body))
	} else {
		req, err = http.NewRequest(method, url, nil)
	}
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if idempotencyKey != "" {
		req.Header.Set("Idempotency-Key", idempotencyKey)
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	return resp
}
