package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/vodforge/vodforge/internal/events"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Progress events are not sensitive; the API has no browser origin
	// restrictions.
	CheckOrigin: func(r *http.Request) bool { return true },
}

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

// EventStream upgrades the connection and streams pipeline events to the
// client. An optional video_id query parameter restricts the stream to one
// video's job.
func (h *Handlers) EventStream(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", "error", err)
		return
	}

	videoID := c.Query("video_id")
	send := make(chan events.Event, 64)

	sub, err := h.eventBus.Subscribe(events.EventFilter{}, "websocket:"+c.ClientIP(),
		func(ev events.Event) error {
			if videoID != "" && ev.Data["video_id"] != videoID {
				return nil
			}
			select {
			case send <- ev:
			default:
				// Slow consumer; drop rather than stall the bus.
			}
			return nil
		})
	if err != nil {
		h.logger.Error("websocket subscription failed", "error", err)
		conn.Close()
		return
	}

	go h.writeLoop(conn, send, sub.ID)
	h.readLoop(conn)
}

// readLoop discards client messages and keeps the pong deadline fresh; its
// return signals the connection is gone.
func (h *Handlers) readLoop(conn *websocket.Conn) {
	conn.SetReadLimit(512)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Handlers) writeLoop(conn *websocket.Conn, send <-chan events.Event, subscriptionID string) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = h.eventBus.Unsubscribe(subscriptionID)
		conn.Close()
	}()

	for {
		select {
		case ev := <-send:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(ev); err != nil {
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
