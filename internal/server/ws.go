package server

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

const wsWriteWait = 10 * time.Second

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

func registerWSRoute(mux *http.ServeMux, hub *Hub, practice Practice, logger *slog.Logger) {
	mux.HandleFunc("GET /ws", func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logger.Warn("ws upgrade error", "error", err)
			return
		}
		defer func() { _ = conn.Close() }()

		ch := hub.Subscribe()
		defer hub.Unsubscribe(ch)

		now := time.Now().UTC()
		writeEvent(conn, ConnectionEvent{Event: newEvent("connection", now), Connected: true})
		if practice != nil {
			writeEvent(conn, SessionStateEvent{Event: newEvent("session_state", now), Session: practice.Snapshot()})
		}

		closed := make(chan struct{})
		go func() {
			defer close(closed)
			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					return
				}
			}
		}()

		for {
			select {
			case msg := <-ch:
				if err := writeMessage(conn, msg); err != nil {
					logger.Debug("ws client dropped", "error", err)
					return
				}
			case <-closed:
				return
			}
		}
	})
}

func writeEvent(conn *websocket.Conn, event any) {
	payload, err := json.Marshal(event)
	if err == nil {
		_ = writeMessage(conn, payload)
	}
}

func writeMessage(conn *websocket.Conn, msg []byte) error {
	_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
	return conn.WriteMessage(websocket.TextMessage, msg)
}
