package websocket

import (
	"net/http"
	"strings"
	"sync"
	"time"

	"auction-ledger/internal/auth"
	"auction-ledger/internal/domain"
	"auction-ledger/pkg/logger"

	"github.com/gorilla/websocket"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// WebSocketHandler serves the read-only ledger feed. Bids go through the REST API.
type WebSocketHandler struct {
	connManager domain.ConnectionManager
	jwtSecret   string
	log         logger.Logger
}

func NewWebSocketHandler(connManager domain.ConnectionManager, jwtSecret string, log logger.Logger) *WebSocketHandler {
	return &WebSocketHandler{
		connManager: connManager,
		jwtSecret:   jwtSecret,
		log:         log,
	}
}

func (h *WebSocketHandler) HandleConnection(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.authenticate(r)
	if !ok {
		http.Error(w, "valid token required", http.StatusUnauthorized)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Error("Failed to upgrade connection", "error", err)
		return
	}

	wsConn := NewWebSocketConnection(conn, userID, h.log)

	if err := h.connManager.RegisterConnection(userID, wsConn); err != nil {
		h.log.Error("Failed to register connection", "error", err)
		conn.Close()
		return
	}

	done := make(chan struct{})
	go h.keepAlive(wsConn, done)
	go h.handleMessages(wsConn, done)
}

// Browsers cannot set headers on a websocket handshake, so the token may also come as a query parameter.
func (h *WebSocketHandler) authenticate(r *http.Request) (string, bool) {
	token := r.URL.Query().Get("token")
	if header := r.Header.Get("Authorization"); header != "" {
		token = strings.TrimPrefix(header, "Bearer ")
	}
	if token == "" {
		return "", false
	}

	claims, err := auth.ParseJWT(h.jwtSecret, token)
	if err != nil {
		h.log.Debug("Rejected feed connection", "error", err)
		return "", false
	}
	return string(claims.Bidder), true
}

func (h *WebSocketHandler) handleMessages(conn *WebSocketConnection, done chan struct{}) {
	defer func() {
		close(done)
		h.connManager.UnregisterConnection(conn.UserID(), conn)
		conn.Close()
	}()

	conn.conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.conn.SetPongHandler(func(string) error {
		return conn.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var msg map[string]interface{}
		if err := conn.conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.log.Error("Failed to read message", "user_id", conn.UserID(), "error", err)
			}
			return
		}

		msgType, ok := msg["type"].(string)
		if !ok {
			continue
		}

		switch msgType {
		case "ping":
			conn.Send(map[string]string{"type": "pong"})
		default:
			conn.Send(map[string]string{"type": "error", "message": "the feed is read-only"})
		}
	}
}

func (h *WebSocketHandler) keepAlive(conn *WebSocketConnection, done chan struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := conn.ping(); err != nil {
				return
			}
		case <-done:
			return
		}
	}
}

// WebSocketConnection serializes writes; gorilla allows one concurrent writer per connection.
type WebSocketConnection struct {
	conn   *websocket.Conn
	userID string
	mu     sync.Mutex
	log    logger.Logger
}

func NewWebSocketConnection(conn *websocket.Conn, userID string, log logger.Logger) *WebSocketConnection {
	return &WebSocketConnection{
		conn:   conn,
		userID: userID,
		log:    log,
	}
}

func (wsc *WebSocketConnection) Send(message interface{}) error {
	wsc.mu.Lock()
	defer wsc.mu.Unlock()

	wsc.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return wsc.conn.WriteJSON(message)
}

func (wsc *WebSocketConnection) ping() error {
	wsc.mu.Lock()
	defer wsc.mu.Unlock()

	return wsc.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait))
}

func (wsc *WebSocketConnection) Close() error {
	return wsc.conn.Close()
}

func (wsc *WebSocketConnection) UserID() string {
	return wsc.userID
}
