// internal/lifecycle/helpers_test.go
package lifecycle

import (
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/altuslabsxyz/rentflow/internal/history"
	"github.com/altuslabsxyz/rentflow/internal/historyapi"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// startHistoryAPI serves store over HTTP and returns a client for it.
func startHistoryAPI(t *testing.T, store history.Store) (*historyapi.Client, func()) {
	t.Helper()
	srv, err := historyapi.New(historyapi.Config{Store: store})
	require.NoError(t, err)
	ts := httptest.NewServer(srv.Handler())
	client, err := historyapi.NewClient(ts.URL, ts.Client())
	require.NoError(t, err)
	return client, ts.Close
}
