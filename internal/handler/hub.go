package handler

import (
	"context"
	"encoding/json"
	"sync"

	"quest-server/internal/quest"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

var _ quest.EventSink = (*Hub)(nil)

// Client одно WebSocket соединение кошелька.
type Client struct {
	Wallet string
	Conn   *websocket.Conn
	send   chan []byte
}

// Hub держит по одному потоку событий на кошелек и раздает им события сессий.
type Hub struct {
	clients    map[string]*Client
	register   chan *Client
	unregister chan *Client
	done       chan struct{}
	closeOnce  sync.Once
	mu         sync.RWMutex
	logger     *zap.Logger
}

// NewHub создает и запускает хаб.
func NewHub(logger *zap.Logger) *Hub {
	h := &Hub{
		clients:    make(map[string]*Client),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		logger:     logger.Named("WSHub"),
	}
	go h.run()
	return h
}

func (h *Hub) run() {
	h.logger.Info("WebSocket hub started")
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			// новое соединение вытесняет старое
			if old, ok := h.clients[client.Wallet]; ok {
				h.logger.Info("Replacing WebSocket connection", zap.String("wallet", client.Wallet))
				close(old.send)
				wsConnections.Dec()
			}
			h.clients[client.Wallet] = client
			wsConnections.Inc()
			h.mu.Unlock()

		case client := <-h.unregister:
			h.mu.Lock()
			if current, ok := h.clients[client.Wallet]; ok && current == client {
				delete(h.clients, client.Wallet)
				close(client.send)
				wsConnections.Dec()
				h.logger.Debug("WebSocket client unregistered", zap.String("wallet", client.Wallet))
			}
			h.mu.Unlock()

		case <-h.done:
			h.mu.Lock()
			for wallet, client := range h.clients {
				close(client.send)
				delete(h.clients, wallet)
				wsConnections.Dec()
			}
			h.mu.Unlock()
			h.logger.Info("WebSocket hub stopped")
			return
		}
	}
}

// Register подключает клиента.
func (h *Hub) Register(client *Client) {
	select {
	case h.register <- client:
	case <-h.done:
		close(client.send)
	}
}

// Unregister отключает клиента, если он все еще текущий для кошелька.
func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

// Disconnect закрывает поток событий кошелька.
func (h *Hub) Disconnect(wallet string) {
	h.mu.RLock()
	client, ok := h.clients[wallet]
	h.mu.RUnlock()
	if ok {
		h.Unregister(client)
	}
}

// Close останавливает хаб и закрывает все потоки.
func (h *Hub) Close() {
	h.closeOnce.Do(func() { close(h.done) })
}

// Connected сообщает, есть ли открытый поток у кошелька.
func (h *Hub) Connected(wallet string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.clients[wallet]
	return ok
}

// SendToWallet ставит сообщение в очередь клиента. false, если клиента нет или очередь полна.
func (h *Hub) SendToWallet(wallet string, message []byte) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	client, ok := h.clients[wallet]
	if !ok {
		return false
	}
	select {
	case client.send <- message:
		return true
	default:
		h.logger.Warn("WebSocket send queue is full, dropping event", zap.String("wallet", wallet))
		return false
	}
}

// Publish реализует quest.EventSink. Событие без подключенного клиента отбрасывается.
func (h *Hub) Publish(_ context.Context, ev quest.Event) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	h.SendToWallet(ev.Wallet, body)
	return nil
}
