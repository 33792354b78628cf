package main

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/gosuda/chat-client/chat"
)

var (
	titleStyle        = lipgloss.NewStyle().Bold(true)
	connectedStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	disconnectedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	connectingStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	errorStyle        = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	ownNameStyle      = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39"))
	otherNameStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("170"))
	timestampStyle    = lipgloss.NewStyle().Faint(true)
	hintStyle         = lipgloss.NewStyle().Faint(true)
)

type snapshotMsg chat.Snapshot

type streamClosedMsg struct{}

func waitSnapshot(ch <-chan chat.Snapshot) tea.Cmd {
	return func() tea.Msg {
		s, ok := <-ch
		if !ok {
			return streamClosedMsg{}
		}
		return snapshotMsg(s)
	}
}

type model struct {
	c       client
	addr    string
	updates <-chan chat.Snapshot

	snap     chat.Snapshot
	input    textinput.Model
	viewport viewport.Model
	ready    bool

	// pending is the line handed to Send and not yet confirmed by a snapshot.
	pending string
}

func newModel(c client, addr string, updates <-chan chat.Snapshot) model {
	ti := textinput.New()
	ti.Placeholder = "Type a message, /nick <name>, /connect"
	ti.CharLimit = 2000
	ti.Focus()
	return model{
		c:       c,
		addr:    addr,
		updates: updates,
		snap:    c.Snapshot(),
		input:   ti,
	}
}

func (m model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, waitSnapshot(m.updates))
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		// header, status, error, input
		height := msg.Height - 5
		if height < 1 {
			height = 1
		}
		if !m.ready {
			m.viewport = viewport.New(msg.Width, height)
			m.ready = true
		} else {
			m.viewport.Width = msg.Width
			m.viewport.Height = height
		}
		m.input.Width = msg.Width - 4
		m.refreshLog()
		return m, nil

	case snapshotMsg:
		m.snap = chat.Snapshot(msg)
		m.settleSend()
		m.refreshLog()
		return m, waitSnapshot(m.updates)

	case streamClosedMsg:
		return m, tea.Quit

	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			return m, tea.Quit
		case tea.KeyCtrlR:
			m.c.Connect()
			return m, nil
		case tea.KeyEnter:
			m.submit()
			return m, nil
		case tea.KeyPgUp, tea.KeyPgDown:
			var cmd tea.Cmd
			m.viewport, cmd = m.viewport.Update(msg)
			return m, cmd
		}
	}

	before := m.input.Value()
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	if after := m.input.Value(); after != before {
		m.pending = ""
		m.c.UpdateComposedText(after)
	}
	return m, cmd
}

// submit handles the compose line: commands or a send request.
func (m *model) submit() {
	line := m.input.Value()
	switch {
	case strings.HasPrefix(line, "/nick "):
		m.c.SetIdentity(strings.TrimSpace(strings.TrimPrefix(line, "/nick ")))
		m.clearInput()
	case strings.TrimSpace(line) == "/connect":
		m.c.Connect()
		m.clearInput()
	default:
		m.pending = line
		m.c.Send()
	}
}

// settleSend clears the compose line once the dispatcher has taken the
// pending draft. A rejected send leaves the draft, and the line, in place.
func (m *model) settleSend() {
	if m.pending == "" {
		return
	}
	switch m.snap.Draft {
	case "":
		if m.input.Value() == m.pending {
			m.input.Reset()
		}
		m.pending = ""
	case m.pending:
		if m.snap.Status != chat.StatusConnected {
			m.pending = ""
		}
	}
}

func (m *model) clearInput() {
	m.input.Reset()
	m.c.UpdateComposedText("")
}

func (m *model) refreshLog() {
	if !m.ready {
		return
	}
	var b strings.Builder
	for _, msg := range m.snap.Messages {
		name := otherNameStyle.Render(msg.Username)
		if m.snap.IsOwn(msg) {
			name = ownNameStyle.Render(msg.Username)
		}
		b.WriteString(name)
		if msg.Timestamp != nil {
			b.WriteString(timestampStyle.Render(" - " + *msg.Timestamp))
		}
		b.WriteString("\n  ")
		b.WriteString(msg.Text)
		b.WriteString("\n")
	}
	m.viewport.SetContent(b.String())
	m.viewport.GotoBottom()
}

func (m model) View() string {
	if !m.ready {
		return "starting..."
	}
	var status string
	switch m.snap.Status {
	case chat.StatusConnected:
		status = connectedStyle.Render("connected to " + m.addr)
	case chat.StatusConnecting:
		status = connectingStyle.Render("connecting to " + m.addr + "...")
	default:
		status = disconnectedStyle.Render("not connected") + hintStyle.Render("  ctrl+r or /connect to reconnect")
	}
	errLine := ""
	if m.snap.LastError != "" {
		errLine = errorStyle.Render("error: " + m.snap.LastError)
	}
	header := fmt.Sprintf("%s  %s", titleStyle.Render("chat"), hintStyle.Render("as "+m.snap.Identity))
	return strings.Join([]string{
		header,
		status,
		m.viewport.View(),
		errLine,
		m.input.View(),
	}, "\n")
}

// runUI runs the terminal UI until the user quits or ctx is cancelled.
func runUI(ctx context.Context, c client, addr string) error {
	updates, cancel := c.Subscribe()
	defer cancel()

	p := tea.NewProgram(newModel(c, addr, updates), tea.WithAltScreen(), tea.WithContext(ctx))
	if _, err := p.Run(); err != nil && !(errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil) {
		return fmt.Errorf("ui: %w", err)
	}
	return nil
}
