package events

import "moxieprotocol/core/types"

// Event represents a structured state change emitted by the protocol.
type Event interface {
	EventType() string
}

// Emitter broadcasts events to downstream subscribers (e.g. RPC, indexers).
type Emitter interface {
	Emit(Event)
}

// NoopEmitter is a helper that satisfies the Emitter interface while discarding
// all events. It is useful when a component wants to optionally expose events.
type NoopEmitter struct{}

// Emit implements the Emitter interface.
func (NoopEmitter) Emit(Event) {}

// Payload is implemented by events that carry a raw attribute payload.
type Payload interface {
	Event() *types.Event
}

// Envelope adapts a raw *types.Event to the Event interface.
type Envelope struct {
	Evt *types.Event
}

// Wrap converts a raw event payload into the emitter-friendly envelope.
func Wrap(evt *types.Event) Event { return Envelope{Evt: evt} }

// EventType implements Event.
func (e Envelope) EventType() string {
	if e.Evt == nil {
		return ""
	}
	return e.Evt.Type
}

// Event returns the wrapped payload.
func (e Envelope) Event() *types.Event { return e.Evt }
