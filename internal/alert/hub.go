package alert

import (
	"sync"

	"trainhub/prometheus"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// WebSocket message types pushed to subscribers.
const (
	MessageTypeAlert  = "alert"
	MessageTypeUnread = "unread"
)

// Message is the envelope written to alert subscribers.
type Message struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

// UnreadPayload carries the unread counter on read-state changes.
type UnreadPayload struct {
	Count int64 `json:"count"`
}

// Hub is the in-process registry of alert subscriptions, one set of
// connections per account. It exists so deployments can replace the
// 1-second poll with push; the poll endpoints keep working either way.
type Hub struct {
	mu     sync.Mutex
	subs   map[uint]map[*websocket.Conn]bool
	logger *zap.Logger
}

// NewHub creates an empty subscription registry.
func NewHub(logger *zap.Logger) *Hub {
	return &Hub{
		subs:   make(map[uint]map[*websocket.Conn]bool),
		logger: logger,
	}
}

// Subscribe registers a connection under the account id.
func (h *Hub) Subscribe(accountID uint, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.subs[accountID] == nil {
		h.subs[accountID] = make(map[*websocket.Conn]bool)
	}
	h.subs[accountID][conn] = true
	prometheus.SubscriberConnected(1)

	h.logger.Debug("alert subscriber connected", zap.Uint("account_id", accountID))
}

// Unsubscribe removes a connection. Safe to call for connections that were
// already pruned by a failed write.
func (h *Hub) Unsubscribe(accountID uint, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.remove(accountID, conn)
}

// Publish writes a message to every live subscriber of the account.
// Connections that fail the write are closed and dropped.
func (h *Hub) Publish(accountID uint, messageType string, payload interface{}) {
	h.mu.Lock()
	defer h.mu.Unlock()

	conns := h.subs[accountID]
	if len(conns) == 0 {
		return
	}

	msg := Message{Type: messageType, Payload: payload}
	for conn := range conns {
		if err := conn.WriteJSON(msg); err != nil {
			h.logger.Debug("dropping dead alert subscriber",
				zap.Uint("account_id", accountID),
				zap.Error(err))
			conn.Close()
			h.remove(accountID, conn)
		}
	}
}

// SubscriberCount returns the number of live connections for an account.
func (h *Hub) SubscriberCount(accountID uint) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs[accountID])
}

// remove deletes a connection; callers must hold the mutex.
func (h *Hub) remove(accountID uint, conn *websocket.Conn) {
	conns := h.subs[accountID]
	if conns == nil {
		return
	}
	if _, ok := conns[conn]; !ok {
		return
	}
	delete(conns, conn)
	if len(conns) == 0 {
		delete(h.subs, accountID)
	}
	prometheus.SubscriberConnected(-1)
}
