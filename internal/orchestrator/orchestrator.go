// Package orchestrator turns one user prompt into an ordered stream of
// transcript messages and persists the completed turn.
package orchestrator

import (
	"context"
	"log/slog"
	"time"

	"github.com/Cyclone1070/sandchat/internal/agent"
	"github.com/Cyclone1070/sandchat/internal/chat"
	"github.com/Cyclone1070/sandchat/internal/tool"
)

// historyStore is the store seam: replay history and append completed turns.
type historyStore interface {
	Messages(ctx context.Context) ([]chat.Message, error)
	AddTurn(ctx context.Context, blob []byte) error
}

// turnRunner is the agent loop seam.
type turnRunner interface {
	Run(ctx context.Context, prompt string, history []chat.Message, rec tool.Recorder, events chan<- agent.Event) ([]chat.Message, error)
}

// Orchestrator coordinates one turn at a time: replay history, stream the
// model's answer with tool-events interleaved, then persist the turn as a
// single atomic blob. Stream consumers observe messages in a fixed order:
// the echoed user message first, then tool-events always ahead of the model
// text they preceded.
type Orchestrator struct {
	store    historyStore
	loop     turnRunner
	debounce time.Duration
	logger   *slog.Logger
}

// New creates an Orchestrator. debounce is the minimum interval between
// intermediate model-text emissions; tool-events and final messages are
// never debounced.
func New(store historyStore, loop turnRunner, debounce time.Duration, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		store:    store,
		loop:     loop,
		debounce: debounce,
		logger:   logger.With("component", "orchestrator"),
	}
}

// Run starts one turn. The message channel carries the echoed user message,
// tool-event messages, and cumulative model-text snapshots, closing when the
// turn ends. The error channel delivers at most one error after the message
// channel closes; a nil receive (channel closed empty) means the turn
// completed and was persisted.
//
// Cancelling ctx abandons the turn without persisting anything.
func (o *Orchestrator) Run(ctx context.Context, prompt string) (<-chan chat.Message, <-chan error) {
	out := make(chan chat.Message)
	errc := make(chan error, 1)

	go func() {
		defer close(errc)
		defer close(out)
		if err := o.runTurn(ctx, prompt, out); err != nil {
			errc <- err
		}
	}()

	return out, errc
}

// History replays the persisted transcript.
func (o *Orchestrator) History(ctx context.Context) ([]chat.Message, error) {
	return o.store.Messages(ctx)
}

func (o *Orchestrator) runTurn(ctx context.Context, prompt string, out chan<- chat.Message) error {
	history, err := o.store.Messages(ctx)
	if err != nil {
		return err
	}

	userMsg := chat.NewMessage(chat.RoleUser, prompt)
	if err := send(ctx, out, userMsg); err != nil {
		return err
	}

	rec := chat.NewRecorder()
	events := make(chan agent.Event, 16)

	type loopResult struct {
		messages []chat.Message
		err      error
	}
	resc := make(chan loopResult, 1)
	go func() {
		messages, err := o.loop.Run(ctx, prompt, history, rec, events)
		close(events)
		resc <- loopResult{messages: messages, err: err}
	}()

	// Intermediate snapshots are throttled; each snapshot carries the full
	// cumulative text of the in-progress model message, so a consumer only
	// ever needs the latest one. All snapshots of one message share its
	// start timestamp, which is what lets consumers key them together.
	var text string
	var started time.Time
	var lastEmit time.Time
	for evt := range events {
		switch e := evt.(type) {
		case agent.TextEvent:
			if text == "" {
				started = time.Now().UTC()
			}
			text += e.Delta
			if time.Since(lastEmit) < o.debounce {
				continue
			}
			if err := o.flush(ctx, out, rec, text, started); err != nil {
				return err
			}
			lastEmit = time.Now()
		case agent.MessageEndEvent:
			// Final snapshot for this model message, never suppressed.
			if err := o.flush(ctx, out, rec, text, started); err != nil {
				return err
			}
			text = ""
			lastEmit = time.Time{}
		}
	}

	res := <-resc

	// Tool calls that produced no model text afterwards still surface.
	if err := drain(ctx, out, rec); err != nil {
		return err
	}
	if res.err != nil {
		return res.err
	}

	turn := make([]chat.Message, 0, len(res.messages)+1)
	turn = append(turn, userMsg)
	turn = append(turn, res.messages...)
	blob, err := chat.EncodeTurn(turn)
	if err != nil {
		return err
	}
	if err := o.store.AddTurn(ctx, blob); err != nil {
		o.logger.Error("persisting turn", "error", err)
		return err
	}
	o.logger.Debug("turn persisted", "messages", len(turn))
	return nil
}

// flush emits any buffered tool-events followed by a cumulative model-text
// snapshot. Tool-events always precede the model text they interrupted.
func (o *Orchestrator) flush(ctx context.Context, out chan<- chat.Message, rec *chat.Recorder, text string, started time.Time) error {
	if err := drain(ctx, out, rec); err != nil {
		return err
	}
	return send(ctx, out, chat.Message{Role: chat.RoleModel, Timestamp: started, Content: text})
}

func drain(ctx context.Context, out chan<- chat.Message, rec *chat.Recorder) error {
	for _, evt := range rec.Drain() {
		if err := send(ctx, out, evt); err != nil {
			return err
		}
	}
	return nil
}

func send(ctx context.Context, out chan<- chat.Message, msg chat.Message) error {
	select {
	case out <- msg:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
