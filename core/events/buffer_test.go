package events

import (
	"testing"

	"moxieprotocol/core/types"
)

func TestBufferTruncateAndDrain(t *testing.T) {
	var buf Buffer
	buf.Emit(Wrap(&types.Event{Type: "a"}))
	mark := buf.Mark()
	buf.Emit(Wrap(&types.Event{Type: "b"}))
	buf.Emit(Wrap(&types.Event{Type: "c"}))
	buf.Truncate(mark)
	if buf.Len() != 1 {
		t.Fatalf("expected 1 event after truncate, got %d", buf.Len())
	}
	drained := buf.Drain()
	if len(drained) != 1 || drained[0].EventType() != "a" {
		t.Fatalf("unexpected drained events: %+v", drained)
	}
	if buf.Len() != 0 {
		t.Fatalf("expected empty buffer after drain")
	}
}

func TestRawSkipsEventsWithoutPayload(t *testing.T) {
	raw := Raw([]Event{Wrap(&types.Event{Type: "x"}), Envelope{}, plainEvent{}})
	if len(raw) != 1 || raw[0].Type != "x" {
		t.Fatalf("unexpected raw events: %+v", raw)
	}
}

type plainEvent struct{}

func (plainEvent) EventType() string { return "plain" }

func TestFanout(t *testing.T) {
	var a, b Buffer
	Fanout{&a, nil, &b}.Emit(Wrap(&types.Event{Type: "x"}))
	if a.Len() != 1 || b.Len() != 1 {
		t.Fatalf("expected both buffers to receive the event")
	}
}
