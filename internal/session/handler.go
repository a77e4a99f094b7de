package session

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

// pongWait bounds how long a connection may go silent before it is
// considered dead; pingPeriod keeps it well under pongWait so the
// server always has a live ping in flight.
const (
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	// The spec's external interface is served from the same origin as
	// the REST API behind this service's own auth boundary, so the
	// default same-origin check is relaxed for the browser clients the
	// course platform serves; this is not a public unauthenticated
	// relay — the API's WebSocket handler verifies the token passed as
	// a query parameter before an upgrade reaches here.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// directedMessage is the inbound envelope a connected client may send
// to route a message to another client, mirroring the original
// ConnectionManager's {"to": ..., "content": ...} shape.
type directedMessage struct {
	To      string `json:"to"`
	Content string `json:"content"`
}

// Handler upgrades an HTTP request to a WebSocket connection, registers
// it under clientID, and pumps inbound frames until the connection
// closes. It blocks for the lifetime of the connection, so callers run
// it directly from a Gin handler goroutine.
func (r *Registry) Handler(c *gin.Context, clientID string) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		r.log.Warn().Err(err).Str("client_id", clientID).Msg("websocket upgrade failed")
		return
	}

	client := r.Register(clientID, conn)
	defer func() {
		r.Unregister(clientID, client)
		r.Broadcast(mustJSON(directedMessage{Content: clientID + " left"}))
	}()

	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				r.log.Debug().Err(err).Str("client_id", clientID).Msg("websocket read error")
			}
			return
		}
		r.dispatch(clientID, raw)
	}
}

// dispatch echoes the inbound frame back to its sender and, if it
// decodes as a directed message with a non-empty "to", relays it.
// Malformed payloads are treated as plain chat text (no "to" routing),
// matching the original handler's tolerant json.loads-or-ignore shape.
func (r *Registry) dispatch(senderID string, raw []byte) {
	r.SendTo(senderID, mustJSON(directedMessage{Content: "echo: " + string(raw)}))

	var msg directedMessage
	if err := json.Unmarshal(raw, &msg); err != nil || msg.To == "" {
		return
	}
	if !r.SendTo(msg.To, mustJSON(msg)) {
		r.log.Debug().Str("from", senderID).Str("to", msg.To).Msg("directed message target not connected")
	}
}

func mustJSON(v any) []byte {
	b, err := json.Marshal(v)
	if err != nil {
		return []byte(`{}`)
	}
	return b
}
