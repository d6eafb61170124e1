// Package ui is the terminal front end: a live chart of every channel,
// plus list and latest-point views, driven by render frames.
package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/yourorg/liveview/internal/buffer"
	"github.com/yourorg/liveview/internal/ingest"
	"github.com/yourorg/liveview/internal/render"
)

// ViewMode tracks which view is active
type ViewMode int

const (
	ViewChart ViewMode = iota
	ViewList
	ViewLatest
)

func (v ViewMode) String() string {
	switch v {
	case ViewList:
		return "list"
	case ViewLatest:
		return "latest"
	default:
		return "chart"
	}
}

// FrameMsg delivers a new frame to the UI
type FrameMsg render.Frame

// SessionMsg reports the session state after a toggle
type SessionMsg struct {
	Running bool
}

// Controller starts and stops ingestion
type Controller interface {
	Toggle() bool
	Running() bool
	Uptime() time.Duration
}

// Reader gives the list and latest views direct store access
type Reader interface {
	Channels() []buffer.ChannelID
	SnapshotRecent(ch buffer.ChannelID, n int) []buffer.Sample
	Latest(ch buffer.ChannelID) (buffer.Sample, bool)
	Stats() ingest.Stats
}

// Options configure a new model
type Options struct {
	Axis   render.AxisPolicy
	Recent int
	Theme  *Theme
	Keys   *KeyMap
}

// Model is the root bubbletea model
type Model struct {
	width  int
	height int

	mode ViewMode
	axis render.AxisPolicy

	frame  render.Frame
	frames <-chan render.Frame

	controller Controller
	reader     Reader
	running    bool
	toggling   bool
	recent     int

	keys   KeyMap
	help   help.Model
	styles styles
}

// New creates a UI model reading frames from frames
func New(frames <-chan render.Frame, controller Controller, reader Reader, opts Options) Model {
	theme := DefaultTheme
	if opts.Theme != nil {
		theme = *opts.Theme
	}
	keys := DefaultKeyMap
	if opts.Keys != nil {
		keys = *opts.Keys
	}
	if opts.Recent <= 0 {
		opts.Recent = 10
	}

	return Model{
		axis:       opts.Axis,
		frames:     frames,
		controller: controller,
		reader:     reader,
		running:    controller.Running(),
		recent:     opts.Recent,
		keys:       keys,
		help:       help.New(),
		styles:     newStyles(theme),
	}
}

// WaitForFrame returns a tea.Cmd that waits for the next frame.
// Returns tea.Quit if the channel is closed.
func WaitForFrame(ch <-chan render.Frame) tea.Cmd {
	return func() tea.Msg {
		frame, ok := <-ch
		if !ok {
			return tea.Quit()
		}
		return FrameMsg(frame)
	}
}

func toggleSession(c Controller) tea.Cmd {
	return func() tea.Msg {
		return SessionMsg{Running: c.Toggle()}
	}
}

func (m Model) Init() tea.Cmd {
	return WaitForFrame(m.frames)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width
		return m, nil

	case FrameMsg:
		m.frame = render.Frame(msg)
		return m, WaitForFrame(m.frames)

	case SessionMsg:
		m.running = msg.Running
		m.toggling = false
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)
	}

	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.Toggle):
		// Stopping joins the worker, so it runs off the update loop.
		if m.toggling {
			return m, nil
		}
		m.toggling = true
		return m, toggleSession(m.controller)
	case key.Matches(msg, m.keys.Chart):
		m.mode = ViewChart
	case key.Matches(msg, m.keys.List):
		m.mode = ViewList
	case key.Matches(msg, m.keys.Latest):
		m.mode = ViewLatest
	case key.Matches(msg, m.keys.Axis):
		m.axis = m.axis.Next()
	case key.Matches(msg, m.keys.Help):
		m.help.ShowAll = !m.help.ShowAll
	}
	return m, nil
}

func (m Model) View() string {
	if m.width == 0 || m.height == 0 {
		return "Initializing..."
	}

	header := m.renderHeader()
	footer := m.help.View(m.keys)

	contentHeight := m.height - lipgloss.Height(header) - lipgloss.Height(footer)
	if contentHeight < 1 {
		contentHeight = 1
	}

	var content string
	switch m.mode {
	case ViewList:
		content = m.renderList(contentHeight)
	case ViewLatest:
		content = m.renderLatest(contentHeight)
	default:
		content = m.renderChart(m.width, contentHeight)
	}

	// Pad content so the footer stays at the bottom
	if lines := lipgloss.Height(content); lines < contentHeight {
		content += strings.Repeat("\n", contentHeight-lines)
	}

	return lipgloss.JoinVertical(lipgloss.Left, header, content, footer)
}

func (m Model) renderHeader() string {
	state := m.styles.stopped.Render("STOPPED")
	if m.running {
		state = m.styles.running.Render("RUNNING") +
			m.styles.faint.Render(" "+m.controller.Uptime().Truncate(time.Second).String())
	}
	if m.toggling {
		state = m.styles.faint.Render("...")
	}

	stats := m.reader.Stats()
	field := func(name string, value any) string {
		return m.styles.faint.Render(name+" ") + m.styles.headerValue.Render(fmt.Sprint(value))
	}

	return strings.Join([]string{
		m.styles.header.Render("liveview"),
		state,
		field("channels", stats.Channels),
		field("ingested", stats.Ingested),
		field("dropped", stats.Dropped),
		field("axis", m.axis),
		field("view", m.mode),
		field("frame", m.frame.Seq),
	}, "  ")
}
