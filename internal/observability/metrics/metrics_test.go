package metrics

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"plugintree/pkg/logger"
	"plugintree/pkg/plugin"
)

func TestCollector_TracksRegistry(t *testing.T) {
	c := New("plugintree")
	reg := plugin.NewRegistry(plugin.WithLogger(logger.Discard()), plugin.WithObserver(c))

	a, err := reg.Register(context.Background(), "pkg.a", plugin.NopModule, nil)
	require.NoError(t, err)
	_, err = reg.Register(context.Background(), "pkg.b", plugin.NopModule, nil)
	require.NoError(t, err)
	require.NoError(t, reg.Unregister(a))

	assert.Equal(t, float64(1), testutil.ToFloat64(c.loaded.WithLabelValues(noManager)))
	assert.Equal(t, float64(2), testutil.ToFloat64(c.registrations.WithLabelValues(noManager)))
	assert.Equal(t, float64(1), testutil.ToFloat64(c.unregistrations.WithLabelValues(noManager)))
}

func TestCollector_HTTPHandler(t *testing.T) {
	c := New("plugintree")
	c.ObserveHTTPRequest("plugins", http.MethodGet, http.StatusOK, 20*time.Millisecond)
	c.ObserveHTTPRequest("plugins", http.MethodGet, http.StatusNotFound, time.Millisecond)

	assert.Equal(t, float64(1), testutil.ToFloat64(c.requests.WithLabelValues("plugins", "GET", "404")))
	assert.Equal(t, 1, testutil.CollectAndCount(c.latency))

	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, `plugintree_http_requests_total{code="200",handler="plugins",method="GET"} 1`)
	assert.Contains(t, body, "plugintree_http_request_duration_seconds_bucket")
	assert.Contains(t, body, "go_goroutines")
}
