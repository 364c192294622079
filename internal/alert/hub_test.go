package alert

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"trainhub/internal/model"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// dialTestHub stands up an HTTP server that upgrades and subscribes the
// connection under accountID, then dials it.
func dialTestHub(t *testing.T, hub *Hub, accountID uint) *websocket.Conn {
	t.Helper()

	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		require.NoError(t, err)
		hub.Subscribe(accountID, conn)
	}))
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	// Wait for the server side to register the subscription.
	require.Eventually(t, func() bool {
		return hub.SubscriberCount(accountID) == 1
	}, time.Second, 5*time.Millisecond)

	return conn
}

func TestHubPublishReachesSubscriber(t *testing.T) {
	hub := NewHub(zap.NewNop())
	conn := dialTestHub(t, hub, 1)

	hub.Publish(1, MessageTypeAlert, model.Alert{
		ID:        3,
		AccountID: 1,
		Type:      model.AlertTypeGraduation,
		Title:     "Graduated",
	})

	conn.SetReadDeadline(time.Now().Add(time.Second))
	var msg struct {
		Type    string      `json:"type"`
		Payload model.Alert `json:"payload"`
	}
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, MessageTypeAlert, msg.Type)
	assert.Equal(t, uint(3), msg.Payload.ID)
	assert.Equal(t, model.AlertTypeGraduation, msg.Payload.Type)
}

func TestHubPublishIsAccountScoped(t *testing.T) {
	hub := NewHub(zap.NewNop())
	conn := dialTestHub(t, hub, 2)

	// A publish for another account must not reach this subscriber.
	hub.Publish(1, MessageTypeUnread, UnreadPayload{Count: 5})

	conn.SetReadDeadline(time.Now().Add(100 * time.Millisecond))
	var msg Message
	err := conn.ReadJSON(&msg)
	assert.Error(t, err)
}

func TestHubUnsubscribe(t *testing.T) {
	hub := NewHub(zap.NewNop())

	upgrader := websocket.Upgrader{}
	conns := make(chan *websocket.Conn, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		require.NoError(t, err)
		hub.Subscribe(4, conn)
		conns <- conn
	}))
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	client, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })

	server := <-conns
	require.Equal(t, 1, hub.SubscriberCount(4))

	hub.Unsubscribe(4, server)
	assert.Equal(t, 0, hub.SubscriberCount(4))

	// Double unsubscribe is a no-op.
	hub.Unsubscribe(4, server)
	assert.Equal(t, 0, hub.SubscriberCount(4))
}
