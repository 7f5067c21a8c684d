//go:build integration

package cases

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHealthz_AlwaysOK(t *testing.T) {
	srv, _, cleanup := newTestServer(t)
	defer cleanup()

	resp := doJSON(t, http.MethodGet, srv.URL+"/healthz", "", "")
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestReadyz_OKWhenDBReachable(t *testing.T) {
	srv, _, cleanup := newTestServer(t)
	defer cleanup()

	resp := doJSON(t, http.MethodGet, srv.URL+"/readyz", "", "")
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
}
