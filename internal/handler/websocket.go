package handler

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"orderdesk/internal/model"
	"orderdesk/internal/store"
)

// LiveHandler streams full replacement snapshots of a filtered collection
// over a websocket for as long as the client stays connected.
type LiveHandler struct {
	Store *store.Store
}

type clientMessage struct {
	Type string `json:"type"`
}

// LiveMessage is the server to client frame of the live collection feed.
type LiveMessage struct {
	Type   string        `json:"type"`
	Orders []model.Order `json:"orders,omitempty"`
	Error  string        `json:"error,omitempty"`
}

const (
	LiveTypeSnapshot = "snapshot"
	LiveTypeError    = "error"
	LiveTypePong     = "pong"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

type wsWriter struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (w *wsWriter) WriteJSON(v any) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	_ = w.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
	return w.conn.WriteJSON(v)
}

func (w *wsWriter) Close() error {
	return w.conn.Close()
}

func (h *LiveHandler) Serve(c *gin.Context) {
	name := c.Param("name")
	filter := model.Filter{
		Field: c.Query("field"),
		Op:    c.Query("op"),
		Value: c.Query("value"),
	}
	if _, err := store.ValidateFilter(name, filter); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}
	w := &wsWriter{conn: ws}
	defer func() { _ = w.Close() }()

	ws.SetReadLimit(64 * 1024)
	const pongWait = 60 * time.Second
	const writeWait = 10 * time.Second
	pingPeriod := (pongWait * 9) / 10

	_ = ws.SetReadDeadline(time.Now().Add(pongWait))
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	live := newLiveConn(w)
	defer func() { _ = live.Close() }()
	go live.run()

	unsubscribe, err := h.Store.Subscribe(name, filter, live)
	if err != nil {
		_ = w.WriteJSON(LiveMessage{Type: LiveTypeError, Error: err.Error()})
		return
	}
	defer unsubscribe()

	done := make(chan struct{})
	var closeOnce sync.Once
	closeDone := func() {
		closeOnce.Do(func() {
			close(done)
		})
	}
	defer closeDone()

	go func() {
		ticker := time.NewTicker(pingPeriod)
		defer ticker.Stop()

		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				deadline := time.Now().Add(writeWait)
				if err := ws.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
					_ = ws.Close()
					return
				}
			}
		}
	}()

	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			return
		}

		var msg clientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			continue
		}
		if msg.Type == "ping" {
			_ = w.WriteJSON(LiveMessage{Type: LiveTypePong})
		}
	}
}
