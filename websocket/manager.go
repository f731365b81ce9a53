package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"openfashion/logger"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 30 * time.Second
	maxMessageSize = 512
	sendBuffer     = 256
)

// Envelope is the frame every server message uses.
type Envelope struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

type delivery struct {
	userID string
	msg    []byte
}

// Manager is the per-user hub. One user may hold several connections.
type Manager struct {
	clients    map[string]map[*Client]bool
	direct     chan delivery
	register   chan *Client
	unregister chan *Client
	done       chan struct{}
	mu         sync.RWMutex
}

type Client struct {
	conn    *websocket.Conn
	userID  string
	send    chan []byte
	manager *Manager
}

func NewManager() *Manager {
	return &Manager{
		clients:    make(map[string]map[*Client]bool),
		direct:     make(chan delivery, sendBuffer),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
	}
}

// Start runs the hub until ctx is cancelled.
func (m *Manager) Start(ctx context.Context) {
	log := logger.Get()
	for {
		select {
		case <-ctx.Done():
			close(m.done)
			m.closeAll()
			return

		case client := <-m.register:
			m.mu.Lock()
			if m.clients[client.userID] == nil {
				m.clients[client.userID] = make(map[*Client]bool)
			}
			m.clients[client.userID][client] = true
			m.mu.Unlock()
			log.Debug("[WebSocket] client registered", zap.String("user", client.userID), zap.Int("clients", m.GetConnectedUsers()))

		case client := <-m.unregister:
			m.drop(client)
			log.Debug("[WebSocket] client unregistered", zap.String("user", client.userID), zap.Int("clients", m.GetConnectedUsers()))

		case d := <-m.direct:
			m.mu.RLock()
			var slow []*Client
			for client := range m.clients[d.userID] {
				select {
				case client.send <- d.msg:
				default:
					slow = append(slow, client)
				}
			}
			m.mu.RUnlock()
			for _, client := range slow {
				m.drop(client)
			}
		}
	}
}

func (m *Manager) drop(client *Client) {
	m.mu.Lock()
	defer m.mu.Unlock()
	conns := m.clients[client.userID]
	if _, ok := conns[client]; !ok {
		return
	}
	delete(conns, client)
	close(client.send)
	if len(conns) == 0 {
		delete(m.clients, client.userID)
	}
}

func (m *Manager) closeAll() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for userID, conns := range m.clients {
		for client := range conns {
			close(client.send)
		}
		delete(m.clients, userID)
	}
}

// SendToUser queues a typed message for every connection of userID. It
// never blocks; when the hub is backed up the message is dropped.
func (m *Manager) SendToUser(userID, msgType string, payload interface{}) {
	msg, err := json.Marshal(Envelope{Type: msgType, Payload: payload})
	if err != nil {
		logger.Get().Error("[WebSocket] marshal failed", zap.Error(err))
		return
	}
	select {
	case m.direct <- delivery{userID: userID, msg: msg}:
	default:
		logger.Get().Warn("[WebSocket] hub busy, message dropped", zap.String("user", userID), zap.String("type", msgType))
	}
}

// GetConnectedUsers counts users with at least one open connection.
func (m *Manager) GetConnectedUsers() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.clients)
}

// TokenValidator resolves a bearer token to a user id.
type TokenValidator func(token string) (string, error)

// WebSocketHandler upgrades callers whose ?token= validates.
func WebSocketHandler(manager *Manager, validate TokenValidator, allowOrigin func(origin string) bool) http.HandlerFunc {
	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			return origin == "" || allowOrigin == nil || allowOrigin(origin)
		},
	}

	return func(w http.ResponseWriter, r *http.Request) {
		log := logger.Get()
		token := r.URL.Query().Get("token")
		if token == "" {
			http.Error(w, "Token required", http.StatusUnauthorized)
			return
		}
		userID, err := validate(token)
		if err != nil {
			log.Debug("[WebSocket] token rejected", zap.Error(err))
			http.Error(w, "Invalid token", http.StatusUnauthorized)
			return
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Warn("[WebSocket] upgrade failed", zap.Error(err))
			return
		}

		client := &Client{
			conn:    conn,
			userID:  userID,
			send:    make(chan []byte, sendBuffer),
			manager: manager,
		}
		select {
		case manager.register <- client:
		case <-manager.done:
			conn.Close()
			return
		}

		client.reply("connected", map[string]interface{}{
			"user_id": userID,
			"time":    time.Now().Unix(),
		})

		go client.writePump()
		go client.readPump()
	}
}

func (c *Client) readPump() {
	defer func() {
		select {
		case c.manager.unregister <- c:
		case <-c.manager.done:
		}
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logger.Get().Debug("[WebSocket] read error", zap.Error(err))
			}
			return
		}

		var data struct {
			Type string `json:"type"`
		}
		if err := json.Unmarshal(message, &data); err != nil {
			continue
		}
		if data.Type == "ping" {
			c.reply("pong", map[string]interface{}{"time": time.Now().Unix()})
		}
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// reply goes through the hub so it cannot race with drop closing send.
func (c *Client) reply(msgType string, payload interface{}) {
	msg, err := json.Marshal(Envelope{Type: msgType, Payload: payload})
	if err != nil {
		return
	}
	select {
	case c.manager.direct <- delivery{userID: c.userID, msg: msg}:
	default:
	}
}
