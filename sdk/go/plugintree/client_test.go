package plugintree

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	client, err := NewClient(srv.URL+"/prefix", srv.Client())
	require.NoError(t, err)
	return client
}

func TestClient_GetPluginAndOwner(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/prefix/api/v1/plugins/weather:alerts":
			_ = json.NewEncoder(w).Encode(Plugin{ID: "weather:alerts", Name: "alerts", FullPath: []string{"weather", "alerts"}})
		case "/prefix/api/v1/plugins/owner":
			assert.Equal(t, "subpkg.alerts.rules", r.URL.Query().Get("module"))
			_ = json.NewEncoder(w).Encode(Plugin{ID: "weather:alerts", Module: "subpkg.alerts"})
		default:
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"code":"PLUGIN_NOT_FOUND","message":"插件不存在"}`))
		}
	})

	p, err := client.GetPlugin(context.Background(), "weather:alerts")
	require.NoError(t, err)
	assert.Equal(t, []string{"weather", "alerts"}, p.FullPath)

	owner, err := client.Owner(context.Background(), "subpkg.alerts.rules")
	require.NoError(t, err)
	assert.Equal(t, "subpkg.alerts", owner.Module)

	_, err = client.GetPlugin(context.Background(), "missing")
	require.Error(t, err)
	assert.True(t, IsNotFound(err))
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "PLUGIN_NOT_FOUND", apiErr.Code)
}

func TestClient_LedgerQuery(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/prefix/api/v1/ledger", r.URL.Path)
		q := r.URL.Query()
		assert.Equal(t, "5", q.Get("limit"))
		assert.Equal(t, "echo", q.Get("plugin"))
		assert.Equal(t, "register", q.Get("action"))
		_ = json.NewEncoder(w).Encode([]LedgerEntry{{ID: "1", Action: "register", PluginID: "echo"}})
	})

	entries, err := client.Ledger(context.Background(), LedgerQuery{Limit: 5, PluginID: "echo", Action: "register"})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "echo", entries[0].PluginID)
}

func TestClient_PlainTextError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "流水存储未启用", http.StatusServiceUnavailable)
	})
	_, err := client.Ledger(context.Background(), LedgerQuery{})
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusServiceUnavailable, apiErr.StatusCode)
	assert.Equal(t, "流水存储未启用", apiErr.Message)
	assert.False(t, IsNotFound(err))
}

func TestClient_AvailableAndHealth(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/prefix/api/v1/plugins/available":
			_, _ = w.Write([]byte(`{"names":["echo"],"full_paths":[["weather","radar"]]}`))
		case "/prefix/healthz":
			_, _ = w.Write([]byte(`{"status":"ok","plugins":2,"managers":1}`))
		case "/prefix/api/v1/plugins":
			_, _ = w.Write([]byte(`[{"id":"echo"}]`))
		}
	})

	avail, err := client.Available(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Available{Names: []string{"echo"}, FullPaths: [][]string{{"weather", "radar"}}}, avail)

	health, err := client.Health(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Health{Status: "ok", Plugins: 2, Managers: 1}, health)

	list, err := client.ListPlugins(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []Plugin{{ID: "echo"}}, list)
}

func TestNewClient_RejectsRelativeURL(t *testing.T) {
	_, err := NewClient("localhost:8080", nil)
	assert.Error(t, err)
	_, err = NewClient("://bad", nil)
	assert.Error(t, err)
}

func TestClient_GetPluginEscapesID(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/prefix/api/v1/plugins/odd%3Fname%23x%25", r.URL.EscapedPath())
		assert.Empty(t, r.URL.RawQuery)
		_ = json.NewEncoder(w).Encode(Plugin{ID: "odd?name#x%"})
	})

	p, err := client.GetPlugin(context.Background(), "odd?name#x%")
	require.NoError(t, err)
	assert.Equal(t, "odd?name#x%", p.ID)
}
