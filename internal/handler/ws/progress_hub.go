package ws

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"Screener/internal/domain/models"
	applogger "Screener/pkg/logger"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 50 * time.Second
)

type subscriber struct {
	conn *websocket.Conn
	send chan []byte
}

// ProgressHub streams sync progress events to WebSocket subscribers.
// Slow subscribers miss events instead of stalling the sync loop.
type ProgressHub struct {
	upgrader websocket.Upgrader
	log      *applogger.Logger
	buffer   int

	mu   sync.RWMutex
	subs map[*subscriber]struct{}
}

func NewProgressHub(l *applogger.Logger) *ProgressHub {
	if l == nil {
		l = applogger.Nop()
	}
	return &ProgressHub{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		log:    l,
		buffer: 64,
		subs:   make(map[*subscriber]struct{}),
	}
}

func (h *ProgressHub) RegisterRoutes(e *echo.Echo) {
	e.GET("/ws/progress", h.Serve)
}

// Serve upgrades the request and keeps the subscription until the peer goes away.
func (h *ProgressHub) Serve(c echo.Context) error {
	conn, err := h.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		h.log.Warn("websocket upgrade failed", applogger.Error(err))
		return nil
	}
	s := &subscriber{conn: conn, send: make(chan []byte, h.buffer)}
	h.add(s)
	defer h.remove(s)

	go h.writeLoop(s)
	h.readLoop(s)
	return nil
}

// PublishProgress implements usecase.ProgressPublisher.
func (h *ProgressHub) PublishProgress(p models.SyncProgress) {
	b, err := json.Marshal(p)
	if err != nil {
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for s := range h.subs {
		select {
		case s.send <- b:
		default:
		}
	}
}

// Subscribers returns the number of connected clients.
func (h *ProgressHub) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// Close disconnects every subscriber.
func (h *ProgressHub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for s := range h.subs {
		close(s.send)
		delete(h.subs, s)
	}
}

func (h *ProgressHub) add(s *subscriber) {
	h.mu.Lock()
	h.subs[s] = struct{}{}
	n := len(h.subs)
	h.mu.Unlock()
	h.log.Debug("progress subscriber connected", applogger.Int("subscribers", n))
}

func (h *ProgressHub) remove(s *subscriber) {
	h.mu.Lock()
	if _, ok := h.subs[s]; ok {
		delete(h.subs, s)
		close(s.send)
	}
	h.mu.Unlock()
	_ = s.conn.Close()
}

// readLoop drains client frames so pongs and close frames are processed.
func (h *ProgressHub) readLoop(s *subscriber) {
	s.conn.SetReadLimit(512)
	_ = s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := s.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *ProgressHub) writeLoop(s *subscriber) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case msg, ok := <-s.send:
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = s.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := s.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
