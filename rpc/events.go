package rpc

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"nhooyr.io/websocket"

	"moxieprotocol/core/events"
	"moxieprotocol/core/types"
)

const (
	wsWriteTimeout       = 10 * time.Second
	subscriberBufferSize = 256
)

// EventHub fans committed protocol events out to websocket subscribers.
// Register it with protocol.Subscribe. A subscriber that falls behind by
// more than its buffer is disconnected rather than stalling the writer.
type EventHub struct {
	mu   sync.Mutex
	next int
	subs map[int]chan *types.Event
}

func NewEventHub() *EventHub {
	return &EventHub{subs: make(map[int]chan *types.Event)}
}

// Emit implements events.Emitter. It never blocks.
func (h *EventHub) Emit(evt events.Event) {
	payload, ok := evt.(events.Payload)
	if !ok || payload.Event() == nil {
		return
	}
	raw := payload.Event()
	h.mu.Lock()
	defer h.mu.Unlock()
	for id, ch := range h.subs {
		select {
		case ch <- raw:
		default:
			close(ch)
			delete(h.subs, id)
		}
	}
}

// Subscribe registers a new listener. The returned cancel func is safe to
// call more than once.
func (h *EventHub) Subscribe() (<-chan *types.Event, func()) {
	h.mu.Lock()
	defer h.mu.Unlock()
	id := h.next
	h.next++
	ch := make(chan *types.Event, subscriberBufferSize)
	h.subs[id] = ch
	return ch, func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		if _, ok := h.subs[id]; ok {
			close(ch)
			delete(h.subs, id)
		}
	}
}

// Subscribers returns the number of live listeners.
func (h *EventHub) Subscribers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

type eventMessage struct {
	Type       string            `json:"type"`
	Attributes map[string]string `json:"attributes"`
}

// handleEvents streams committed events as JSON text frames. ?module=curve
// restricts the stream to one module's events.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	if s.cfg.Events == nil {
		writeError(w, http.StatusServiceUnavailable, "event stream disabled")
		return
	}
	module := strings.TrimSpace(r.URL.Query().Get("module"))
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{OriginPatterns: []string{"*"}})
	if err != nil {
		return
	}
	defer conn.Close(websocket.StatusNormalClosure, "stream closed")

	// The client never sends; CloseRead handles its close frame.
	ctx := conn.CloseRead(r.Context())
	if err := s.streamEvents(ctx, conn, module); err != nil {
		if websocket.CloseStatus(err) == -1 {
			_ = conn.Close(websocket.StatusInternalError, "stream error")
		}
	}
}

func (s *Server) streamEvents(ctx context.Context, conn *websocket.Conn, module string) error {
	updates, cancel := s.cfg.Events.Subscribe()
	defer cancel()
	s.logger.Debug("event subscriber attached", "module", module)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case evt, ok := <-updates:
			if !ok {
				_ = conn.Close(websocket.StatusTryAgainLater, "subscriber too slow")
				return nil
			}
			if module != "" && !strings.HasPrefix(evt.Type, module+".") {
				continue
			}
			if err := writeEvent(ctx, conn, evt); err != nil {
				return err
			}
		}
	}
}

func writeEvent(ctx context.Context, conn *websocket.Conn, evt *types.Event) error {
	data, err := json.Marshal(eventMessage{Type: evt.Type, Attributes: evt.Attributes})
	if err != nil {
		return err
	}
	writeCtx, cancel := context.WithTimeout(ctx, wsWriteTimeout)
	defer cancel()
	return conn.Write(writeCtx, websocket.MessageText, data)
}
