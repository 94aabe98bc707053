package events

import (
	"sync"

	"moxieprotocol/core/types"
)

// Buffer collects events emitted while a transaction executes. Events are
// only forwarded once the transaction commits; a reverted transaction drops
// them together with its state writes.
type Buffer struct {
	mu     sync.Mutex
	events []Event
}

// Emit implements Emitter.
func (b *Buffer) Emit(evt Event) {
	if b == nil || evt == nil {
		return
	}
	b.mu.Lock()
	b.events = append(b.events, evt)
	b.mu.Unlock()
}

// Mark returns the current buffer length so a caller can truncate back to it.
func (b *Buffer) Mark() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.events)
}

// Truncate discards every event recorded after mark.
func (b *Buffer) Truncate(mark int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if mark >= 0 && mark < len(b.events) {
		b.events = b.events[:mark]
	}
}

// Drain returns the buffered events and resets the buffer.
func (b *Buffer) Drain() []Event {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := b.events
	b.events = nil
	return out
}

// Len reports the number of buffered events.
func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.events)
}

// Raw extracts the attribute payloads of the supplied events, skipping events
// that do not expose one.
func Raw(evts []Event) []*types.Event {
	out := make([]*types.Event, 0, len(evts))
	for _, evt := range evts {
		if p, ok := evt.(Payload); ok && p.Event() != nil {
			out = append(out, p.Event())
		}
	}
	return out
}

// Fanout forwards each event to every configured emitter.
type Fanout []Emitter

// Emit implements Emitter.
func (f Fanout) Emit(evt Event) {
	for _, emitter := range f {
		if emitter != nil {
			emitter.Emit(evt)
		}
	}
}
