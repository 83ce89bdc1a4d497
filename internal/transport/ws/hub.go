// Package ws is the push transport: a websocket endpoint where clients
// drive the room with typed events and receive the fan-out the moment a
// transition lands. The hub doubles as the manager's Notifier.
package ws

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"go.uber.org/zap"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/vcporto/sketchdash/pkg/gamedto"
)

const (
	sendBuffer  = 16
	writeBudget = 5 * time.Second
)

// Envelope is the wire frame in both directions.
type Envelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

func envelope(typ string, data any) (Envelope, error) {
	if data == nil {
		return Envelope{Type: typ}, nil
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return Envelope{}, err
	}
	return Envelope{Type: typ, Data: raw}, nil
}

type client struct {
	conn   *websocket.Conn
	send   chan Envelope
	closed chan struct{}
	once   sync.Once

	mu       sync.Mutex
	code     string
	playerID string
}

func (c *client) bind(code, playerID string) {
	c.mu.Lock()
	c.code, c.playerID = code, playerID
	c.mu.Unlock()
}

func (c *client) binding() (string, string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.code, c.playerID
}

// enqueue drops the frame when the client's buffer is full; a stalled
// consumer must not block the room.
func (c *client) enqueue(ev Envelope) bool {
	select {
	case <-c.closed:
		return false
	case c.send <- ev:
		return true
	default:
		return false
	}
}

func (c *client) shutdown() {
	c.once.Do(func() { close(c.closed) })
}

// writeLoop owns the connection for writes; wsjson does not allow
// concurrent writers.
func (c *client) writeLoop(logger *zap.Logger) {
	for {
		select {
		case <-c.closed:
			return
		case ev := <-c.send:
			ctx, cancel := context.WithTimeout(context.Background(), writeBudget)
			err := wsjson.Write(ctx, c.conn, ev)
			cancel()
			if err != nil {
				logger.Debug("ws_write_error", zap.String("type", ev.Type), zap.Error(err))
				c.shutdown()
				return
			}
		}
	}
}

// hub tracks which clients sit in which room.
type hub struct {
	mu    sync.RWMutex
	rooms map[string]map[*client]struct{}
}

func newHub() *hub {
	return &hub{rooms: make(map[string]map[*client]struct{})}
}

func (h *hub) join(code string, c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	set, ok := h.rooms[code]
	if !ok {
		set = make(map[*client]struct{})
		h.rooms[code] = set
	}
	set[c] = struct{}{}
}

func (h *hub) leave(code string, c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if set, ok := h.rooms[code]; ok {
		delete(set, c)
		if len(set) == 0 {
			delete(h.rooms, code)
		}
	}
}

func (h *hub) members(code string) []*client {
	h.mu.RLock()
	defer h.mu.RUnlock()
	set := h.rooms[code]
	out := make([]*client, 0, len(set))
	for c := range set {
		out = append(out, c)
	}
	return out
}

// broadcast sends to every client in the room; when only is non-nil,
// delivery is restricted to those player ids.
func (h *hub) broadcast(code string, ev Envelope, only map[string]bool) {
	for _, c := range h.members(code) {
		if only != nil {
			_, pid := c.binding()
			if !only[pid] {
				continue
			}
		}
		c.enqueue(ev)
	}
}

// Notifier fan-out, called by the manager after each transition.

func (s *Server) RoomUpdated(code string, view *gamedto.RoomView) {
	ev, err := envelope("room:update", view)
	if err != nil {
		return
	}
	s.hub.broadcast(code, ev, nil)
}

func (s *Server) CardDealt(code string, recipients []string, card *gamedto.CardPayload) {
	if card == nil {
		return
	}
	ev, err := envelope("round:card", card)
	if err != nil {
		return
	}
	only := make(map[string]bool, len(recipients))
	for _, id := range recipients {
		only[id] = true
	}
	s.hub.broadcast(code, ev, only)
}

func (s *Server) RoundEnded(code string, res *gamedto.RoundEnded) {
	ev, err := envelope("round:ended", res)
	if err != nil {
		return
	}
	s.hub.broadcast(code, ev, nil)
}

func (s *Server) WinnerDeclared(code string, w *gamedto.Winner) {
	ev, err := envelope("game:winner", w)
	if err != nil {
		return
	}
	s.hub.broadcast(code, ev, nil)
}

func (s *Server) RoomClosed(code string) {
	ev, _ := envelope("room:closed", nil)
	for _, c := range s.hub.members(code) {
		c.enqueue(ev)
		c.shutdown()
		s.hub.leave(code, c)
	}
}
