package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"quest-server/internal/auth"
	"quest-server/internal/quest"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	// Время, разрешенное для записи сообщения клиенту.
	writeWait = 10 * time.Second
	// Время ожидания следующего pong от клиента.
	pongWait = 60 * time.Second
	// Период пингов. Должен быть меньше pongWait.
	pingPeriod = (pongWait * 9) / 10
	// Клиент ничего не присылает, кроме управляющих кадров.
	maxMessageSize = 512
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Origin проверяет CORS middleware до апгрейда.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// serveWS открывает поток событий квеста. Первым сообщением уходит снимок сессии.
func (h *QuestHandler) serveWS(c *gin.Context) {
	wallet := auth.WalletFromContext(c)
	s, ok := h.session(c)
	if !ok {
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Error("Failed to upgrade connection", zap.String("wallet", wallet), zap.Error(err))
		return
	}
	log := h.logger.With(zap.String("wallet", wallet))
	log.Info("WebSocket connection established")

	client := &Client{Wallet: wallet, Conn: conn, send: make(chan []byte, 256)}
	if snapshot, err := json.Marshal(quest.Event{
		Type:   quest.EventStateChanged,
		Wallet: wallet,
		At:     time.Now(),
		State:  s.State(),
		Data:   map[string]interface{}{"view": s.View()},
	}); err == nil {
		client.send <- snapshot
	}
	h.hub.Register(client)

	go client.writePump(log)
	go client.readPump(h.hub, log)
}

// readPump читает управляющие кадры до закрытия соединения.
func (c *Client) readPump(hub *Hub, logger *zap.Logger) {
	defer func() {
		hub.Unregister(c)
		_ = c.Conn.Close()
		logger.Debug("readPump finished")
	}()
	c.Conn.SetReadLimit(maxMessageSize)
	_ = c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		_ = c.Conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, _, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logger.Warn("WebSocket read error", zap.Error(err))
			}
			return
		}
		logger.Debug("Ignoring message from client")
	}
}

// writePump отправляет события из очереди и пингует клиента.
func (c *Client) writePump(logger *zap.Logger) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.Conn.Close()
		logger.Debug("writePump finished")
	}()
	for {
		select {
		case message, ok := <-c.send:
			_ = c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				logger.Warn("Failed to write event", zap.Error(err))
				return
			}

		case <-ticker.C:
			_ = c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				logger.Debug("Failed to send ping", zap.Error(err))
				return
			}
		}
	}
}
