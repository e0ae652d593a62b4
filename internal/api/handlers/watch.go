package handlers

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	// Training dashboards are served from other origins in development.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// watchInterval is how often the status document is pushed.
const watchInterval = time.Second

// Watch streams the session status document over a websocket until the
// session reaches a terminal state or the client disconnects. It spares
// polling UIs the HTTP round-trips during long training runs.
// GET /ws/train/{session_id}
func (h *TrainingHandler) Watch(w http.ResponseWriter, r *http.Request) {
	sessionID := mux.Vars(r)["session_id"]

	sess, err := h.store.Load(sessionID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to load session")
		return
	}
	if sess == nil {
		respondError(w, http.StatusNotFound, "session not found")
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.WithError(err).Warn("Websocket upgrade failed")
		return
	}
	defer conn.Close()

	// Reads only surface client close; discard them in the background.
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(watchInterval)
	defer ticker.Stop()

	for {
		sess, err := h.store.Load(sessionID)
		if err != nil || sess == nil {
			return
		}

		conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
		if err := conn.WriteJSON(sess); err != nil {
			return
		}

		if sess.Terminal() {
			conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, string(sess.Status)))
			return
		}

		select {
		case <-r.Context().Done():
			return
		case <-ticker.C:
		}
	}
}
