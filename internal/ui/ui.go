// Package ui is a terminal client for the chat server, built on Bubble Tea.
package ui

import (
	"context"
	"strings"

	"github.com/Cyclone1070/sandchat/internal/chat"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
)

var (
	userStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("12")).Bold(true)
	toolStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("11")).Faint(true)
	errorStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
)

// chatClient is the server seam for the TUI.
type chatClient interface {
	History(ctx context.Context) ([]chat.Message, error)
	Send(ctx context.Context, prompt string) (<-chan chat.Message, <-chan error)
}

// markdownRenderer renders model output. Satisfied by *glamour.TermRenderer.
type markdownRenderer interface {
	Render(in string) (string, error)
}

// Model is the Bubble Tea model for the chat client.
type Model struct {
	client   chatClient
	renderer markdownRenderer

	viewport viewport.Model
	input    textinput.Model
	spinner  spinner.Model

	messages []chat.Message
	waiting  bool
	err      error

	// Live stream of the in-flight turn, nil when idle.
	stream <-chan chat.Message
	errc   <-chan error
}

type historyMsg []chat.Message
type streamMsg chat.Message
type streamDoneMsg struct{ err error }
type errMsg struct{ err error }

// NewModel creates the TUI model. renderer may be nil, in which case model
// text is shown unrendered.
func NewModel(client chatClient, renderer markdownRenderer) Model {
	ti := textinput.New()
	ti.Placeholder = "Ask about a file..."
	ti.Focus()

	sp := spinner.New()
	sp.Spinner = spinner.Dot

	return Model{
		client:   client,
		renderer: renderer,
		viewport: viewport.New(80, 20),
		input:    ti,
		spinner:  sp,
	}
}

// NewMarkdownRenderer builds the default glamour renderer.
func NewMarkdownRenderer() (markdownRenderer, error) {
	return glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(78),
	)
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(
		textinput.Blink,
		m.spinner.Tick,
		m.loadHistory(),
	)
}

func (m Model) loadHistory() tea.Cmd {
	return func() tea.Msg {
		messages, err := m.client.History(context.Background())
		if err != nil {
			return errMsg{err: err}
		}
		return historyMsg(messages)
	}
}

func (m Model) startTurn(prompt string) (Model, tea.Cmd) {
	stream, errc := m.client.Send(context.Background(), prompt)
	m.stream = stream
	m.errc = errc
	m.waiting = true
	return m, listenStream(stream, errc)
}

// listenStream delivers the next streamed message, or the turn's final error
// once the stream closes.
func listenStream(stream <-chan chat.Message, errc <-chan error) tea.Cmd {
	return func() tea.Msg {
		msg, ok := <-stream
		if !ok {
			return streamDoneMsg{err: <-errc}
		}
		return streamMsg(msg)
	}
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			return m, tea.Quit
		case tea.KeyEnter:
			prompt := strings.TrimSpace(m.input.Value())
			if prompt == "" || m.waiting {
				return m, nil
			}
			m.input.Reset()
			return m.startTurn(prompt)
		}

	case tea.WindowSizeMsg:
		m.viewport.Width = msg.Width
		m.viewport.Height = msg.Height - 3
		m.refresh()

	case historyMsg:
		m.messages = msg
		m.refresh()

	case streamMsg:
		m.apply(chat.Message(msg))
		m.refresh()
		return m, listenStream(m.stream, m.errc)

	case streamDoneMsg:
		m.waiting = false
		m.stream = nil
		m.errc = nil
		m.err = msg.err
		m.refresh()

	case errMsg:
		m.err = msg.err

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	var cmds []tea.Cmd
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	cmds = append(cmds, cmd)
	m.viewport, cmd = m.viewport.Update(msg)
	cmds = append(cmds, cmd)
	return m, tea.Batch(cmds...)
}

// apply appends a message, or replaces the previous one when it is a newer
// cumulative snapshot of the same model message. Snapshots share role and
// timestamp.
func (m *Model) apply(msg chat.Message) {
	if n := len(m.messages); n > 0 {
		last := m.messages[n-1]
		if last.Role == msg.Role && last.Timestamp.Equal(msg.Timestamp) {
			m.messages[n-1] = msg
			return
		}
	}
	m.messages = append(m.messages, msg)
}

func (m *Model) refresh() {
	var b strings.Builder
	for _, msg := range m.messages {
		switch msg.Role {
		case chat.RoleUser:
			b.WriteString(userStyle.Render("You: "+msg.Content) + "\n")
		case chat.RoleTool:
			b.WriteString(toolStyle.Render("  "+msg.Content) + "\n")
		case chat.RoleModel:
			b.WriteString(m.renderModel(msg.Content))
		}
	}
	if m.err != nil {
		b.WriteString(errorStyle.Render("error: "+m.err.Error()) + "\n")
	}
	m.viewport.SetContent(b.String())
	m.viewport.GotoBottom()
}

func (m *Model) renderModel(content string) string {
	if m.renderer == nil {
		return content + "\n"
	}
	rendered, err := m.renderer.Render(content)
	if err != nil {
		return content + "\n"
	}
	return rendered
}

func (m Model) View() string {
	status := ""
	if m.waiting {
		status = m.spinner.View() + " thinking"
	}
	return m.viewport.View() + "\n" + m.input.View() + " " + status
}

// Run starts the interactive program.
func Run(client chatClient) error {
	renderer, err := NewMarkdownRenderer()
	if err != nil {
		renderer = nil
	}
	p := tea.NewProgram(NewModel(client, renderer), tea.WithAltScreen())
	_, err = p.Run()
	return err
}
