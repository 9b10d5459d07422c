package web

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JonMunkholm/menas/internal/config"
	"github.com/JonMunkholm/menas/internal/core"
	"github.com/JonMunkholm/menas/internal/eventbus"
	"github.com/JonMunkholm/menas/internal/store"
)

func conformanceEvent(t *testing.T, id, dataset string) eventbus.Event {
	t.Helper()
	payload, err := json.Marshal(core.ConformanceUpdated{ID: id, Dataset: dataset, DatasetVersion: 1})
	require.NoError(t, err)
	return eventbus.Event{
		ID:      id,
		Topic:   eventbus.TopicConformance,
		Type:    eventbus.EventUpdated,
		Payload: payload,
	}
}

func TestHubStreamsFilteredEvents(t *testing.T) {
	hub := NewHub(slog.New(slog.NewTextHandler(io.Discard, nil)))
	ts := httptest.NewServer(hub)
	defer ts.Close()
	defer hub.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, "ws"+strings.TrimPrefix(ts.URL, "http")+"?dataset=people", nil)
	require.NoError(t, err)
	defer conn.CloseNow()

	require.Eventually(t, func() bool { return hub.Len() == 1 }, time.Second, 10*time.Millisecond)

	require.NoError(t, hub.HandleEvent(ctx, conformanceEvent(t, "evt-1", "orders")))
	require.NoError(t, hub.HandleEvent(ctx, conformanceEvent(t, "evt-2", "people")))

	var got eventbus.Event
	require.NoError(t, wsjson.Read(ctx, conn, &got))
	assert.Equal(t, "evt-2", got.ID)

	upd, err := eventbus.DecodeConformanceUpdated(got)
	require.NoError(t, err)
	assert.Equal(t, "people", upd.Dataset)
}

func TestHubDropsSlowClients(t *testing.T) {
	hub := NewHub(slog.New(slog.NewTextHandler(io.Discard, nil)))
	c := &client{send: make(chan eventbus.Event, 1)}
	require.True(t, hub.add(c))

	ctx := context.Background()
	require.NoError(t, hub.HandleEvent(ctx, conformanceEvent(t, "a", "people")))
	assert.Equal(t, 1, hub.Len())

	require.NoError(t, hub.HandleEvent(ctx, conformanceEvent(t, "b", "people")))
	assert.Equal(t, 0, hub.Len())

	evt, ok := <-c.send
	assert.True(t, ok)
	assert.Equal(t, "a", evt.ID)
	_, ok = <-c.send
	assert.False(t, ok, "channel closed once the client is dropped")
}

func TestHubRefusesAfterClose(t *testing.T) {
	hub := NewHub(nil)
	hub.Close()
	assert.False(t, hub.add(&client{send: make(chan eventbus.Event, 1)}))
}

func TestConformanceStreamAuth(t *testing.T) {
	vars := map[string]string{"REQUIRE_API_KEY": "true", "API_KEYS": "secret"}
	cfg, err := config.LoadFrom(func(k string) (string, bool) {
		v, ok := vars[k]
		return v, ok
	})
	require.NoError(t, err)

	mem := store.NewMemory()
	hub := NewHub(slog.New(slog.NewTextHandler(io.Discard, nil)))
	srv := NewServer(cfg, Deps{
		Catalog:  mem,
		Lists:    core.NewDatasetLists(mem),
		Editors:  core.NewEditorManager(core.SessionDeps{Tables: core.NewResolver(mem, mem), Store: mem}, 0, 0),
		Hub:      hub,
		Gatherer: prometheus.NewRegistry(),
	})
	ts := httptest.NewServer(srv.Router())
	defer ts.Close()
	defer srv.Shutdown(context.Background())

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws/conformance"

	tests := []struct {
		name   string
		query  string
		origin string
		want   int
	}{
		{name: "no key", want: http.StatusUnauthorized},
		{name: "wrong key", query: "?api_key=nope", want: http.StatusForbidden},
		{name: "cross-site origin", query: "?api_key=secret", origin: "https://elsewhere.example", want: http.StatusForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := &websocket.DialOptions{HTTPHeader: http.Header{}}
			if tt.origin != "" {
				opts.HTTPHeader.Set("Origin", tt.origin)
			}
			conn, resp, err := websocket.Dial(ctx, url+tt.query, opts)
			if conn != nil {
				conn.CloseNow()
			}
			require.Error(t, err)
			require.NotNil(t, resp)
			assert.Equal(t, tt.want, resp.StatusCode)
		})
	}

	t.Run("valid key", func(t *testing.T) {
		conn, _, err := websocket.Dial(ctx, url+"?api_key=secret", nil)
		require.NoError(t, err)
		defer conn.CloseNow()
		require.Eventually(t, func() bool { return hub.Len() == 1 }, time.Second, 10*time.Millisecond)
	})
}

func TestHubAllowsConfiguredOrigins(t *testing.T) {
	hub := NewHub(nil, "console.example")
	ts := httptest.NewServer(hub)
	defer ts.Close()
	defer hub.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, "ws"+strings.TrimPrefix(ts.URL, "http"), &websocket.DialOptions{
		HTTPHeader: http.Header{"Origin": {"https://console.example"}},
	})
	require.NoError(t, err)
	conn.CloseNow()
}
