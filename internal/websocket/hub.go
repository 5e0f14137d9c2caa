package websocket

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/amitpo23/medici-web03012026-sub000/internal/logger"

	"go.uber.org/zap"
)

// ErrHubFull is returned when the broadcast queue cannot take another message.
var ErrHubFull = errors.New("websocket broadcast queue is full")

const heartbeatInterval = 30 * time.Second

// Hub maintains the set of active clients and broadcasts messages to them.
type Hub struct {
	clients map[*Client]bool

	broadcast  chan []byte
	register   chan *Client
	unregister chan *Client
	quit       chan struct{}
	stopOnce   sync.Once

	mu  sync.RWMutex
	log *zap.Logger

	totalConnections atomic.Int64
	messagesSent     atomic.Int64
}

// HubStats 连接统计
type HubStats struct {
	ConnectedClients int   `json:"connected_clients"`
	TotalConnections int64 `json:"total_connections"`
	MessagesSent     int64 `json:"messages_sent"`
}

func NewHub(log *zap.Logger) *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan []byte, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client, 16),
		quit:       make(chan struct{}),
		log:        logger.OrNop(log),
	}
}

// Run handles registration and fan-out until Stop is called.
func (h *Hub) Run() {
	h.log.Info("WebSocket hub started")

	ticker := time.NewTicker(heartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case client := <-h.register:
			h.registerClient(client)

		case client := <-h.unregister:
			h.unregisterClient(client)

		case message := <-h.broadcast:
			h.broadcastMessage(message)

		case <-ticker.C:
			h.sendHeartbeat()

		case <-h.quit:
			h.closeAll()
			h.log.Info("WebSocket hub stopped")
			return
		}
	}
}

// Stop closes every client connection and ends Run.
func (h *Hub) Stop() {
	h.stopOnce.Do(func() { close(h.quit) })
}

func (h *Hub) registerClient(client *Client) {
	h.mu.Lock()
	h.clients[client] = true
	count := len(h.clients)
	h.mu.Unlock()

	h.totalConnections.Add(1)
	h.log.Info("WebSocket client connected",
		zap.String("client_id", client.ID),
		zap.String("remote_addr", client.RemoteAddr),
		zap.Int("connected_clients", count))

	welcome, err := Message{
		Type: MessageTypeConnection,
		Data: map[string]interface{}{
			"status":    "connected",
			"client_id": client.ID,
		},
	}.ToJSON()
	if err == nil {
		client.send <- welcome
	}
}

func (h *Hub) unregisterClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[client]; ok {
		delete(h.clients, client)
		close(client.send)
		h.log.Info("WebSocket client disconnected",
			zap.String("client_id", client.ID),
			zap.Int("connected_clients", len(h.clients)))
	}
}

// broadcastMessage runs on the hub goroutine, so slow clients are dropped
// in place instead of through the unregister queue.
func (h *Hub) broadcastMessage(message []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for client := range h.clients {
		select {
		case client.send <- message:
		default:
			delete(h.clients, client)
			close(client.send)
			h.log.Warn("WebSocket client too slow, dropped", zap.String("client_id", client.ID))
		}
	}
	h.messagesSent.Add(1)

	h.log.Debug("Message broadcasted to WebSocket clients",
		zap.Int("message_size", len(message)),
		zap.Int("clients", len(h.clients)))
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for client := range h.clients {
		delete(h.clients, client)
		close(client.send)
	}
}

func (h *Hub) sendHeartbeat() {
	data, err := Message{
		Type: MessageTypeHeartbeat,
		Data: map[string]interface{}{"clients": h.ClientCount()},
	}.ToJSON()
	if err != nil {
		return
	}
	h.broadcastMessage(data)
}

// BroadcastToAll queues a message for every connected client.
func (h *Hub) BroadcastToAll(message Message) error {
	data, err := message.ToJSON()
	if err != nil {
		return fmt.Errorf("failed to encode websocket message: %w", err)
	}
	select {
	case h.broadcast <- data:
		return nil
	default:
		h.log.Warn("Broadcast channel is full, message dropped", zap.String("type", message.Type))
		return ErrHubFull
	}
}

// Broadcast queues a typed message; it satisfies notify.Broadcaster.
func (h *Hub) Broadcast(msgType string, data map[string]interface{}) error {
	return h.BroadcastToAll(Message{Type: msgType, Data: data})
}

func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) Stats() HubStats {
	return HubStats{
		ConnectedClients: h.ClientCount(),
		TotalConnections: h.totalConnections.Load(),
		MessagesSent:     h.messagesSent.Load(),
	}
}
