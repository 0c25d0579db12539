package chat

import "sync"

// Recorder buffers tool-event messages produced inside a single turn until the
// orchestrator drains them into the output stream. One Recorder is created per
// in-flight turn, so concurrent turns never interleave each other's events.
//
// Tool calls complete on the agent loop's goroutine while the stream consumer
// drains from another, hence the mutex.
type Recorder struct {
	mu     sync.Mutex
	events []Message
}

// NewRecorder creates an empty per-turn recorder.
func NewRecorder() *Recorder {
	return &Recorder{}
}

// Record appends one tool-event message stamped with the current time.
func (r *Recorder) Record(content string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, NewMessage(RoleTool, content))
}

// Drain returns the buffered events in recording order and clears the buffer.
func (r *Recorder) Drain() []Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	events := r.events
	r.events = nil
	return events
}
