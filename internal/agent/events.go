package agent

// Event is the interface for all loop events.
// The orchestrator handles events via type switch.
type Event interface {
	isEvent()
}

// TextEvent is emitted for each incremental text fragment the model produces.
type TextEvent struct {
	Delta string
}

func (TextEvent) isEvent() {}

// MessageEndEvent is emitted when one model message is complete, so the
// consumer can finalize its cumulative text before the next message starts.
type MessageEndEvent struct{}

func (MessageEndEvent) isEvent() {}
