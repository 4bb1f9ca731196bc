package alerting

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	xerrors "plugintree/internal/errors"
	"plugintree/pkg/logger"
)

type recordingNotifier struct {
	channel Channel
	events  []Event
	err     error
}

func (r *recordingNotifier) Channel() Channel { return r.channel }

func (r *recordingNotifier) Notify(_ context.Context, event Event) error {
	r.events = append(r.events, event)
	return r.err
}

func TestNewEvent_CarriesCodeAndMetadata(t *testing.T) {
	err := xerrors.Wrap(xerrors.CodeInitFailure, errors.New("boom"), "init plugin weather",
		xerrors.WithMetadata("plugin_id", "weather"))
	event := NewEvent("main", "plugins.weather", err)

	assert.Equal(t, xerrors.CodeInitFailure, event.Code)
	assert.Equal(t, xerrors.SeverityWarning, event.Severity)
	assert.Equal(t, "main", event.Manager)
	assert.Equal(t, map[string]string{"plugin_id": "weather"}, event.Metadata)
	assert.Contains(t, event.Message, "boom")
}

func TestFanoutDispatcher_JoinsErrorsAndFilters(t *testing.T) {
	ok := &recordingNotifier{channel: ChannelLog}
	bad := &recordingNotifier{channel: ChannelWebhook, err: errors.New("down")}
	d := NewFanout(ok, bad, nil)
	assert.Equal(t, []Channel{ChannelLog, ChannelWebhook}, d.Channels())

	err := d.Notify(context.Background(), Event{Severity: xerrors.SeverityWarning})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "channel webhook")
	assert.Len(t, ok.events, 1)

	d.WithMinimumSeverity(xerrors.SeverityCritical)
	require.NoError(t, d.Notify(context.Background(), Event{Severity: xerrors.SeverityWarning}))
	assert.Len(t, ok.events, 1)

	var nilDispatcher *FanoutDispatcher
	assert.NoError(t, nilDispatcher.Notify(context.Background(), Event{}))
}

func TestWebhookNotifier_PostsJSON(t *testing.T) {
	var got Event
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	n := &WebhookNotifier{URL: srv.URL, Client: srv.Client()}
	require.NoError(t, n.Notify(context.Background(), Event{Code: xerrors.CodeImportFailure, Module: "pkg.ghost"}))
	assert.Equal(t, "pkg.ghost", got.Module)

	failing := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer failing.Close()
	n.URL = failing.URL
	assert.Error(t, n.Notify(context.Background(), Event{}))
}

func TestHook_DispatchesEvent(t *testing.T) {
	rec := &recordingNotifier{channel: ChannelWebhook}
	hook := Hook(NewFanout(rec, &LogNotifier{Logger: logger.Discard()}), "sub")
	hook(context.Background(), "subpkg.alerts", xerrors.New(xerrors.CodeImportFailure, "import module subpkg.alerts"))

	require.Len(t, rec.events, 1)
	assert.Equal(t, "subpkg.alerts", rec.events[0].Module)
	assert.Equal(t, "sub", rec.events[0].Manager)
}
