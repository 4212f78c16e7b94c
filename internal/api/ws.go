package api

import (
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/hutanwatch/forest-monitor/internal/hub"
	"go.uber.org/zap"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxInboundSize = 512
)

// ObserverHub is the registry side the WebSocket endpoint needs.
type ObserverHub interface {
	Register(o hub.Observer)
	Unregister(o hub.Observer)
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// The dashboard is served from another origin; access control is not
	// this endpoint's concern.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// wsObserver is one live dashboard connection. Frames flow one way: the
// registry enqueues, the write pump delivers in order. The read pump exists
// only to notice the peer going away.
type wsObserver struct {
	id       uuid.UUID
	conn     *websocket.Conn
	send     chan []byte
	registry ObserverHub
	logger   *zap.Logger

	mu     sync.Mutex
	closed bool
}

// Enqueue implements hub.Observer. It never blocks; a full send buffer
// means this observer is too slow and the frame is dropped for it alone.
// The mutex orders Enqueue against close so a frame is never sent on a
// closed channel.
func (o *wsObserver) Enqueue(frame []byte) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.closed {
		return false
	}
	select {
	case o.send <- frame:
		return true
	default:
		return false
	}
}

func (o *wsObserver) close() {
	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return
	}
	o.closed = true
	o.mu.Unlock()

	o.registry.Unregister(o)
	close(o.send)
	o.conn.Close()
	o.logger.Info("observer disconnected", zap.String("observer_id", o.id.String()))
}

// readPump discards inbound frames; its only job is detecting disconnects,
// which trigger this observer's removal from the registry.
func (o *wsObserver) readPump() {
	defer o.close()

	o.conn.SetReadLimit(maxInboundSize)
	o.conn.SetReadDeadline(time.Now().Add(pongWait))
	o.conn.SetPongHandler(func(string) error {
		return o.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := o.conn.ReadMessage(); err != nil {
			return
		}
	}
}

// writePump delivers queued frames in order and keeps the connection alive
// with pings.
func (o *wsObserver) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		o.close()
	}()

	for {
		select {
		case frame, ok := <-o.send:
			o.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				o.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := o.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				return
			}
		case <-ticker.C:
			o.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := o.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// handleObserver upgrades the connection and registers it for live events.
func (h *Handler) handleObserver(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	observer := &wsObserver{
		id:       uuid.New(),
		conn:     conn,
		send:     make(chan []byte, h.wsBuffer),
		registry: h.hub,
		logger:   h.logger,
	}

	h.hub.Register(observer)
	h.logger.Info("observer connected", zap.String("observer_id", observer.id.String()))

	go observer.writePump()
	go observer.readPump()
}
