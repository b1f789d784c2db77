package httpx

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/splax/umd/internal/domain"
	"github.com/splax/umd/internal/service/users"
)

func TestEventsStreamDeliversNotifications(t *testing.T) {
	env := newTestEnv(t)
	id, token := env.startAPISession(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	req := httptest.NewRequest(http.MethodGet, "/events", nil).WithContext(ctx)
	req.Header.Set("Authorization", "Bearer "+token)
	recorder := newStreamRecorder()
	done := make(chan struct{})
	go func() {
		env.router.ServeHTTP(recorder, req)
		close(done)
	}()

	require.Eventually(t, func() bool { return strings.Contains(recorder.body(), ": ping") }, 2*time.Second, 5*time.Millisecond)
	require.Eventually(t, func() bool { return env.hub.Subscribers(id) == 1 }, time.Second, 5*time.Millisecond)

	rec := env.request(http.MethodPost, "/api/users", jsonBody(t, users.Input{
		Name: "Live Update", Email: "live@x.io", Role: "Admin",
	}), bearer(token))
	require.Equal(t, http.StatusCreated, rec.Code)

	require.Eventually(t, func() bool { return len(extractSSEPayloads(recorder.body())) > 0 }, 2*time.Second, 5*time.Millisecond)
	payload := extractSSEPayloads(recorder.body())[0]
	assert.Equal(t, "User added successfully", payload["title"])
	assert.Equal(t, "Live Update has been added to the system.", payload["description"])
	assert.Contains(t, recorder.body(), "event: notification\n")

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("event stream did not exit after context cancel")
	}
	assert.Equal(t, "text/event-stream", recorder.Header().Get("Content-Type"))
	assert.Equal(t, "no-cache", recorder.Header().Get("Cache-Control"))
	assert.Positive(t, recorder.flushCount())
	require.Eventually(t, func() bool { return env.hub.Subscribers(id) == 0 }, time.Second, 5*time.Millisecond)
}

func TestEventsStreamEndsWithSession(t *testing.T) {
	env := newTestEnv(t)
	id, token := env.startAPISession(t)

	req := httptest.NewRequest(http.MethodGet, "/events", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	recorder := newStreamRecorder()
	done := make(chan struct{})
	go func() {
		env.router.ServeHTTP(recorder, req)
		close(done)
	}()
	require.Eventually(t, func() bool { return env.hub.Subscribers(id) == 1 }, 2*time.Second, 5*time.Millisecond)

	env.registry.End(id)
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("event stream did not exit after session end")
	}
}

func TestEventsRequiresSessionAndFlusher(t *testing.T) {
	env := newTestEnv(t)
	rec := env.request(http.MethodGet, "/events", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	space, _ := env.registry.Open("")
	req := httptest.NewRequest(http.MethodGet, "/events", nil)
	req = req.WithContext(context.WithValue(req.Context(), sessionContextKey{}, space))
	plain := httptest.NewRecorder()
	env.router.handleEvents(noFlushRecorder{rec: plain}, req)
	assert.Equal(t, http.StatusInternalServerError, plain.Code)
	assert.Equal(t, "streaming unsupported", parseError(t, plain.Body.String()))

	missing := httptest.NewRecorder()
	env.router.handleEvents(missing, httptest.NewRequest(http.MethodGet, "/events", nil))
	assert.Equal(t, "session context missing", parseError(t, missing.Body.String()))
}

func TestNotificationsWebsocket(t *testing.T) {
	env := newTestEnv(t)
	id, token := env.startAPISession(t)
	srv := httptest.NewServer(env.router)
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/notifications"
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, http.Header{"Authorization": []string{"Bearer " + token}})
	require.NoError(t, err)
	defer conn.Close()
	assert.Equal(t, http.StatusSwitchingProtocols, resp.StatusCode)
	require.Eventually(t, func() bool { return env.hub.Subscribers(id) == 1 }, 2*time.Second, 5*time.Millisecond)

	rec := env.request(http.MethodDelete, "/api/users/5", nil, bearer(token))
	require.Equal(t, http.StatusNoContent, rec.Code)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, raw, err := conn.ReadMessage()
	require.NoError(t, err)
	var n domain.Notification
	require.NoError(t, json.Unmarshal(raw, &n))
	assert.Equal(t, "User deleted", n.Title)
	assert.Equal(t, domain.VariantDestructive, n.Variant)
	assert.NotEmpty(t, n.ID)

	env.registry.End(id)
	_, _, err = conn.ReadMessage()
	assert.Error(t, err, "ending the session closes its sockets")
}

func TestNotificationsWebsocketRejectsForeignOrigin(t *testing.T) {
	env := newTestEnv(t)
	_, token := env.startAPISession(t)
	srv := httptest.NewServer(env.router)
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/notifications"
	header := http.Header{
		"Authorization": []string{"Bearer " + token},
		"Origin":        []string{"https://evil.test"},
	}
	_, resp, err := websocket.DefaultDialer.Dial(wsURL, header)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}
