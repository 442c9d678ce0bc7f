package websocket

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tubetrack-backend/internal/middleware"
	"tubetrack-backend/internal/models"
)

func withUser(userID string, next http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if userID != "" {
			r = r.WithContext(context.WithValue(r.Context(), middleware.UserIDKey, userID))
		}
		next(w, r)
	})
}

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestHub_SendToUser(t *testing.T) {
	h := NewHub(nil, nil)
	defer h.Close()

	u1 := httptest.NewServer(withUser("u1", h.HandleWebSocket))
	defer u1.Close()
	anon := httptest.NewServer(withUser("", h.HandleWebSocket))
	defer anon.Close()

	c1 := dial(t, u1)
	c2 := dial(t, anon)
	require.Eventually(t, func() bool {
		return h.connectionCount("u1") == 1 && h.connectionCount("") == 1
	}, time.Second, 10*time.Millisecond)

	h.SendToUser("u1", models.WSMessage{Type: models.EventCreditsChanged, Payload: models.CreditsEvent{Credits: 85, Action: "search"}})

	c1.SetReadDeadline(time.Now().Add(time.Second))
	var msg models.WSMessage
	require.NoError(t, c1.ReadJSON(&msg))
	assert.Equal(t, models.EventCreditsChanged, msg.Type)

	// The anonymous channel does not see the signed-in user's events.
	c2.SetReadDeadline(time.Now().Add(100 * time.Millisecond))
	_, _, err := c2.ReadMessage()
	assert.Error(t, err)
}

func TestHub_UnregistersOnDisconnect(t *testing.T) {
	h := NewHub(nil, nil)
	defer h.Close()

	srv := httptest.NewServer(withUser("u1", h.HandleWebSocket))
	defer srv.Close()

	conn := dial(t, srv)
	require.Eventually(t, func() bool { return h.connectionCount("u1") == 1 }, time.Second, 10*time.Millisecond)

	conn.Close()
	require.Eventually(t, func() bool { return h.connectionCount("u1") == 0 }, time.Second, 10*time.Millisecond)
}
