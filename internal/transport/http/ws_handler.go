package http

import (
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"quizhub-service/internal/app"
)

// WSHandler streams the global leaderboard: one snapshot on connect, then
// a fresh top list every time any session completes.
type WSHandler struct {
	boards   *app.LeaderboardService
	upgrader websocket.Upgrader
}

func NewWSHandler(boards *app.LeaderboardService) *WSHandler {
	return &WSHandler{
		boards: boards,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

type outboundMessage struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

// Serve upgrades the connection and pumps leaderboard updates until the
// client goes away. Writes happen from this goroutine only.
func (h *WSHandler) Serve(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("ws upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	updates, cancel, err := h.boards.Subscribe(c.Request.Context())
	if err != nil {
		_ = conn.WriteJSON(outboundMessage{Type: "error", Payload: gin.H{"message": err.Error()}})
		return
	}
	defer cancel()

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
		case entries, ok := <-updates:
			if !ok {
				return
			}
			if err := conn.WriteJSON(outboundMessage{Type: "leaderboard", Payload: entries}); err != nil {
				return
			}
		case <-closed:
			return
		}
	}
}
