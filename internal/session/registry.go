// Package session implements the WebSocket session registry (C4):
// a live connection is registered under its client id, messages are
// delivered to one client (sendTo) or fanned out to all (broadcast),
// and a disconnect unregisters the client and notifies the rest.
//
// Grounded on the original FastAPI ConnectionManager
// (core/websocket.py — a client-id-keyed dict with connect/disconnect/
// send_to_user/broadcast) for the registry shape, and on the
// adred-codev/ws_poc Client type for the Go delivery mechanism: each
// connection owns a buffered outbound channel drained by one writer
// goroutine, so concurrent senders never write to the same
// *websocket.Conn from two goroutines at once (gorilla/websocket
// requires a single writer per connection).
package session

import (
	"context"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"medschool-core/internal/metrics"
)

// outboxSize bounds how far a client may lag before messages to it are
// dropped rather than let one slow reader back-pressure every sender.
const outboxSize = 256

// writeWait bounds a single frame write so one stuck client can't
// block its writer goroutine indefinitely.
const writeWait = 10 * time.Second

// Client is one registered WebSocket connection.
type Client struct {
	ID   string
	conn *websocket.Conn

	outbox    chan []byte
	closeOnce sync.Once
	done      chan struct{}
}

func newClient(id string, conn *websocket.Conn) *Client {
	return &Client{
		ID:     id,
		conn:   conn,
		outbox: make(chan []byte, outboxSize),
		done:   make(chan struct{}),
	}
}

// writePump is the client's single writer goroutine: it is the only
// goroutine that ever calls conn.Write*, so concurrent sendTo/
// broadcast calls — and the keepalive ping — never race on the
// connection.
func (c *Client) writePump(log zerolog.Logger) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()
	for {
		select {
		case msg, ok := <-c.outbox:
			if !ok {
				_ = c.conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(writeWait))
				return
			}
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				log.Debug().Err(err).Str("client_id", c.ID).Msg("write failed, dropping client")
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.done:
			return
		}
	}
}

// enqueue attempts a non-blocking send to the client's outbox. A full
// outbox means the client is too slow to keep up; the message is
// dropped (and reported as such) rather than let it stall delivery to
// everyone else, and the client stays registered.
func (c *Client) enqueue(msg []byte) (dropped bool) {
	select {
	case c.outbox <- msg:
		return false
	default:
		return true
	}
}

func (c *Client) close() {
	c.closeOnce.Do(func() { close(c.done) })
}

// Registry is the process-local directory of live WebSocket
// connections, keyed by client id.
type Registry struct {
	mu      sync.RWMutex
	clients map[string]*Client
	log     zerolog.Logger
}

// New builds an empty Registry.
func New(log zerolog.Logger) *Registry {
	return &Registry{
		clients: make(map[string]*Client),
		log:     log.With().Str("component", "session").Logger(),
	}
}

// Register binds conn under clientID, evicting any previous
// connection already registered under the same id (a reconnect
// supersedes the stale one rather than stacking two live writers).
func (r *Registry) Register(clientID string, conn *websocket.Conn) *Client {
	client := newClient(clientID, conn)

	r.mu.Lock()
	old, hadPrior := r.clients[clientID]
	if hadPrior {
		old.close()
	}
	r.clients[clientID] = client
	r.mu.Unlock()

	if !hadPrior {
		metrics.SessionsConnected.Inc()
	}

	go client.writePump(r.log)
	return client
}

// Unregister removes clientID from the registry and stops its writer
// goroutine. It is a no-op if client is no longer the registered
// connection for this id (superseded by a newer reconnect).
func (r *Registry) Unregister(clientID string, client *Client) {
	r.mu.Lock()
	current, ok := r.clients[clientID]
	removed := ok && current == client
	if removed {
		delete(r.clients, clientID)
	}
	r.mu.Unlock()
	if removed {
		metrics.SessionsConnected.Dec()
	}
	client.close()
}

// SendTo delivers payload to exactly one client. It returns false if
// clientID has no live connection (the caller's "to" target is
// offline) or its outbox is full.
func (r *Registry) SendTo(clientID string, payload []byte) bool {
	r.mu.RLock()
	client, ok := r.clients[clientID]
	r.mu.RUnlock()
	if !ok {
		return false
	}
	if dropped := client.enqueue(payload); dropped {
		r.log.Warn().Str("client_id", clientID).Msg("outbox full, dropping message")
		return false
	}
	return true
}

// Broadcast fans payload out to every currently registered client.
func (r *Registry) Broadcast(payload []byte) {
	r.mu.RLock()
	targets := make([]*Client, 0, len(r.clients))
	for _, c := range r.clients {
		targets = append(targets, c)
	}
	r.mu.RUnlock()

	for _, c := range targets {
		if dropped := c.enqueue(payload); dropped {
			r.log.Warn().Str("client_id", c.ID).Msg("outbox full during broadcast, dropping message")
		}
	}
}

// Count reports the number of live connections, used as the recipient
// count of a broadcast.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.clients)
}

// ClientIDs lists every currently registered client id, for the
// operator CLI's "list live sessions" command.
func (r *Registry) ClientIDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.clients))
	for id := range r.clients {
		ids = append(ids, id)
	}
	return ids
}

// CloseAll disconnects every registered client — used on server
// shutdown so connections receive a clean close frame rather than a
// reset.
func (r *Registry) CloseAll(ctx context.Context) {
	r.mu.Lock()
	targets := make([]*Client, 0, len(r.clients))
	for id, c := range r.clients {
		targets = append(targets, c)
		delete(r.clients, id)
	}
	r.mu.Unlock()

	metrics.SessionsConnected.Sub(float64(len(targets)))
	for _, c := range targets {
		c.close()
	}
}
