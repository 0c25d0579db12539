package orchestrator

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Cyclone1070/sandchat/internal/agent"
	"github.com/Cyclone1070/sandchat/internal/chat"
	"github.com/Cyclone1070/sandchat/internal/tool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockStore struct {
	messagesFunc func(ctx context.Context) ([]chat.Message, error)
	addTurnFunc  func(ctx context.Context, blob []byte) error
}

func (m *mockStore) Messages(ctx context.Context) ([]chat.Message, error) {
	if m.messagesFunc != nil {
		return m.messagesFunc(ctx)
	}
	return nil, nil
}

func (m *mockStore) AddTurn(ctx context.Context, blob []byte) error {
	if m.addTurnFunc != nil {
		return m.addTurnFunc(ctx, blob)
	}
	return nil
}

type mockLoop struct {
	runFunc func(ctx context.Context, prompt string, history []chat.Message, rec tool.Recorder, events chan<- agent.Event) ([]chat.Message, error)
}

func (m *mockLoop) Run(ctx context.Context, prompt string, history []chat.Message, rec tool.Recorder, events chan<- agent.Event) ([]chat.Message, error) {
	return m.runFunc(ctx, prompt, history, rec, events)
}

// collect drains both channels of a started turn.
func collect(t *testing.T, out <-chan chat.Message, errc <-chan error) ([]chat.Message, error) {
	t.Helper()
	var messages []chat.Message
	for msg := range out {
		messages = append(messages, msg)
	}
	return messages, <-errc
}

func TestRun_UserMessageFirst(t *testing.T) {
	ml := &mockLoop{
		runFunc: func(ctx context.Context, prompt string, history []chat.Message, rec tool.Recorder, events chan<- agent.Event) ([]chat.Message, error) {
			events <- agent.TextEvent{Delta: "hello"}
			events <- agent.MessageEndEvent{}
			return []chat.Message{chat.NewMessage(chat.RoleModel, "hello")}, nil
		},
	}

	o := New(&mockStore{}, ml, 0, nil)
	out, errc := o.Run(context.Background(), "hi")
	messages, err := collect(t, out, errc)

	require.NoError(t, err)
	require.NotEmpty(t, messages)
	assert.Equal(t, chat.RoleUser, messages[0].Role)
	assert.Equal(t, "hi", messages[0].Content)
	last := messages[len(messages)-1]
	assert.Equal(t, chat.RoleModel, last.Role)
	assert.Equal(t, "hello", last.Content)
}

func TestRun_CumulativeSnapshots(t *testing.T) {
	ml := &mockLoop{
		runFunc: func(ctx context.Context, prompt string, history []chat.Message, rec tool.Recorder, events chan<- agent.Event) ([]chat.Message, error) {
			events <- agent.TextEvent{Delta: "The"}
			events <- agent.TextEvent{Delta: " answer"}
			events <- agent.MessageEndEvent{}
			return []chat.Message{chat.NewMessage(chat.RoleModel, "The answer")}, nil
		},
	}

	o := New(&mockStore{}, ml, 0, nil)
	out, errc := o.Run(context.Background(), "hi")
	messages, err := collect(t, out, errc)

	require.NoError(t, err)
	var snapshots []string
	for _, m := range messages {
		if m.Role == chat.RoleModel {
			snapshots = append(snapshots, m.Content)
		}
	}
	// Each snapshot repeats everything emitted so far, plus a final one.
	assert.Equal(t, []string{"The", "The answer", "The answer"}, snapshots)
}

func TestRun_SnapshotsShareTimestamp(t *testing.T) {
	ml := &mockLoop{
		runFunc: func(ctx context.Context, prompt string, history []chat.Message, rec tool.Recorder, events chan<- agent.Event) ([]chat.Message, error) {
			events <- agent.TextEvent{Delta: "a"}
			events <- agent.TextEvent{Delta: "b"}
			events <- agent.MessageEndEvent{}
			return []chat.Message{chat.NewMessage(chat.RoleModel, "ab")}, nil
		},
	}

	o := New(&mockStore{}, ml, 0, nil)
	out, errc := o.Run(context.Background(), "hi")
	messages, err := collect(t, out, errc)

	require.NoError(t, err)
	var stamps []time.Time
	for _, m := range messages {
		if m.Role == chat.RoleModel {
			stamps = append(stamps, m.Timestamp)
		}
	}
	require.Len(t, stamps, 3)
	assert.Equal(t, stamps[0], stamps[1])
	assert.Equal(t, stamps[0], stamps[2])
}

func TestRun_DebounceSuppressesIntermediates(t *testing.T) {
	ml := &mockLoop{
		runFunc: func(ctx context.Context, prompt string, history []chat.Message, rec tool.Recorder, events chan<- agent.Event) ([]chat.Message, error) {
			for _, delta := range []string{"a", "b", "c", "d"} {
				events <- agent.TextEvent{Delta: delta}
			}
			events <- agent.MessageEndEvent{}
			return []chat.Message{chat.NewMessage(chat.RoleModel, "abcd")}, nil
		},
	}

	o := New(&mockStore{}, ml, time.Second, nil)
	out, errc := o.Run(context.Background(), "hi")
	messages, err := collect(t, out, errc)

	require.NoError(t, err)
	var snapshots []string
	for _, m := range messages {
		if m.Role == chat.RoleModel {
			snapshots = append(snapshots, m.Content)
		}
	}
	// First delta flushes immediately, the rest fold into the final flush.
	assert.Equal(t, []string{"a", "abcd"}, snapshots)
}

func TestRun_ToolEventsPrecedeModelText(t *testing.T) {
	ml := &mockLoop{
		runFunc: func(ctx context.Context, prompt string, history []chat.Message, rec tool.Recorder, events chan<- agent.Event) ([]chat.Message, error) {
			rec.Record("read_file(/sandbox/a) -- ALLOWED (5 bytes read)")
			events <- agent.TextEvent{Delta: "The file says hello."}
			events <- agent.MessageEndEvent{}
			return []chat.Message{chat.NewMessage(chat.RoleModel, "The file says hello.")}, nil
		},
	}

	o := New(&mockStore{}, ml, 0, nil)
	out, errc := o.Run(context.Background(), "hi")
	messages, err := collect(t, out, errc)

	require.NoError(t, err)
	var order []chat.Role
	for _, m := range messages {
		order = append(order, m.Role)
	}
	require.Len(t, messages, 4)
	assert.Equal(t, []chat.Role{chat.RoleUser, chat.RoleTool, chat.RoleModel, chat.RoleModel}, order)
	assert.Contains(t, messages[1].Content, "ALLOWED")
}

func TestRun_TrailingToolEventsStillSurface(t *testing.T) {
	ml := &mockLoop{
		runFunc: func(ctx context.Context, prompt string, history []chat.Message, rec tool.Recorder, events chan<- agent.Event) ([]chat.Message, error) {
			rec.Record("read_file(/etc/passwd) -- BLOCKED by sandbox (permission denied)")
			return nil, nil
		},
	}

	o := New(&mockStore{}, ml, 0, nil)
	out, errc := o.Run(context.Background(), "hi")
	messages, err := collect(t, out, errc)

	require.NoError(t, err)
	require.Len(t, messages, 2)
	assert.Equal(t, chat.RoleTool, messages[1].Role)
	assert.Contains(t, messages[1].Content, "BLOCKED")
}

func TestRun_PersistsTurnOnce(t *testing.T) {
	var blobs [][]byte
	ms := &mockStore{
		addTurnFunc: func(ctx context.Context, blob []byte) error {
			blobs = append(blobs, blob)
			return nil
		},
	}
	ml := &mockLoop{
		runFunc: func(ctx context.Context, prompt string, history []chat.Message, rec tool.Recorder, events chan<- agent.Event) ([]chat.Message, error) {
			events <- agent.TextEvent{Delta: "done"}
			events <- agent.MessageEndEvent{}
			return []chat.Message{chat.NewMessage(chat.RoleModel, "done")}, nil
		},
	}

	o := New(ms, ml, 0, nil)
	out, errc := o.Run(context.Background(), "hi")
	_, err := collect(t, out, errc)

	require.NoError(t, err)
	require.Len(t, blobs, 1)

	turn, err := chat.DecodeTurn(blobs[0])
	require.NoError(t, err)
	require.Len(t, turn, 2)
	assert.Equal(t, chat.RoleUser, turn[0].Role)
	assert.Equal(t, "hi", turn[0].Content)
	assert.Equal(t, chat.RoleModel, turn[1].Role)
	assert.Equal(t, "done", turn[1].Content)
}

func TestRun_PersistedTurnExcludesToolEvents(t *testing.T) {
	var persisted []chat.Message
	ms := &mockStore{
		addTurnFunc: func(ctx context.Context, blob []byte) error {
			var err error
			persisted, err = chat.DecodeTurn(blob)
			return err
		},
	}
	ml := &mockLoop{
		runFunc: func(ctx context.Context, prompt string, history []chat.Message, rec tool.Recorder, events chan<- agent.Event) ([]chat.Message, error) {
			rec.Record("read_file(/sandbox/a) -- ALLOWED (5 bytes read)")
			events <- agent.TextEvent{Delta: "hello"}
			events <- agent.MessageEndEvent{}
			return []chat.Message{chat.NewMessage(chat.RoleModel, "hello")}, nil
		},
	}

	o := New(ms, ml, 0, nil)
	out, errc := o.Run(context.Background(), "hi")
	_, err := collect(t, out, errc)

	require.NoError(t, err)
	for _, m := range persisted {
		assert.NotEqual(t, chat.RoleTool, m.Role)
	}
}

func TestRun_HistoryReplayedToLoop(t *testing.T) {
	stored := []chat.Message{
		chat.NewMessage(chat.RoleUser, "earlier"),
		chat.NewMessage(chat.RoleModel, "reply"),
	}
	ms := &mockStore{
		messagesFunc: func(ctx context.Context) ([]chat.Message, error) {
			return stored, nil
		},
	}
	var gotHistory []chat.Message
	ml := &mockLoop{
		runFunc: func(ctx context.Context, prompt string, history []chat.Message, rec tool.Recorder, events chan<- agent.Event) ([]chat.Message, error) {
			gotHistory = history
			return nil, nil
		},
	}

	o := New(ms, ml, 0, nil)
	out, errc := o.Run(context.Background(), "hi")
	_, err := collect(t, out, errc)

	require.NoError(t, err)
	assert.Equal(t, stored, gotHistory)
}

func TestRun_LoopErrorSkipsPersistence(t *testing.T) {
	boom := errors.New("provider down")
	addCalled := false
	ms := &mockStore{
		addTurnFunc: func(ctx context.Context, blob []byte) error {
			addCalled = true
			return nil
		},
	}
	ml := &mockLoop{
		runFunc: func(ctx context.Context, prompt string, history []chat.Message, rec tool.Recorder, events chan<- agent.Event) ([]chat.Message, error) {
			return nil, boom
		},
	}

	o := New(ms, ml, 0, nil)
	out, errc := o.Run(context.Background(), "hi")
	_, err := collect(t, out, errc)

	assert.ErrorIs(t, err, boom)
	assert.False(t, addCalled)
}

func TestRun_StoreFailureSurfaces(t *testing.T) {
	boom := errors.New("disk full")
	ms := &mockStore{
		addTurnFunc: func(ctx context.Context, blob []byte) error {
			return boom
		},
	}
	ml := &mockLoop{
		runFunc: func(ctx context.Context, prompt string, history []chat.Message, rec tool.Recorder, events chan<- agent.Event) ([]chat.Message, error) {
			return []chat.Message{chat.NewMessage(chat.RoleModel, "hello")}, nil
		},
	}

	o := New(ms, ml, 0, nil)
	out, errc := o.Run(context.Background(), "hi")
	_, err := collect(t, out, errc)

	assert.ErrorIs(t, err, boom)
}

func TestRun_CancelledContextSkipsPersistence(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	addCalled := false
	ms := &mockStore{
		addTurnFunc: func(ctx context.Context, blob []byte) error {
			addCalled = true
			return nil
		},
	}
	ml := &mockLoop{
		runFunc: func(ctx context.Context, prompt string, history []chat.Message, rec tool.Recorder, events chan<- agent.Event) ([]chat.Message, error) {
			cancel()
			<-ctx.Done()
			return nil, ctx.Err()
		},
	}

	o := New(ms, ml, 0, nil)
	out, errc := o.Run(ctx, "hi")
	_, err := collect(t, out, errc)

	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, addCalled)
}
