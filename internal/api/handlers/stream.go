package handlers

import (
	"context"
	"encoding/json"
	"fleet-tracking-service/internal/api/dto"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = pongWait * 9 / 10
	maxMessageSize = 4096
	selectTimeout  = 5 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// StreamHandler pushes the overlay scene to a map client and accepts its
// marker clicks.
type StreamHandler struct {
	Tracker FleetTracker
	Scene   Scene
}

func (h *StreamHandler) Serve(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("websocket upgrade failed: remote=%s err=%v", r.RemoteAddr, err)
		return
	}
	defer conn.Close()

	scene, ops, cancel := h.Scene.Subscribe()
	defer cancel()

	log.Printf("map client connected: remote=%s overlays=%d", r.RemoteAddr, len(scene))

	done := make(chan struct{})
	go h.read(conn, done)

	conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteJSON(dto.StreamMessage{Type: "scene", Overlays: scene}); err != nil {
		return
	}

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			log.Printf("map client disconnected: remote=%s", r.RemoteAddr)
			return
		case op, ok := <-ops:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// Dropped as too slow; the client reconnects for a fresh scene.
				conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseTryAgainLater, "resync"))
				return
			}
			if err := conn.WriteJSON(dto.StreamMessage{Type: "op", Op: &op}); err != nil {
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

// read handles client messages until the connection breaks. Bad messages
// are logged and skipped.
func (h *StreamHandler) read(conn *websocket.Conn, done chan<- struct{}) {
	defer close(done)

	conn.SetReadLimit(maxMessageSize)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("map client read failed: err=%v", err)
			}
			return
		}

		var msg dto.ClientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			log.Printf("map client sent invalid json: err=%v", err)
			continue
		}
		if err := validate.Struct(msg); err != nil {
			log.Printf("map client sent invalid message: err=%v", err)
			continue
		}

		ctx, cancel := context.WithTimeout(context.Background(), selectTimeout)
		if err := h.Tracker.SelectCourier(ctx, msg.CourierID); err != nil {
			log.Printf("map client select failed: courier_id=%s err=%v", msg.CourierID, err)
		}
		cancel()
	}
}
