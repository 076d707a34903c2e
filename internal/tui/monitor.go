// Package tui provides a live terminal view of the tracking registry: a
// table of tracked entries refreshed from registry snapshots, plus a feed
// of lifecycle and anomaly events from the bus.
package tui

import (
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/softcask/filetrack/internal/event"
	"github.com/softcask/filetrack/internal/registry"
)

const maxFeedLines = 8

type tickMsg time.Time

type busMsg struct{ ev event.Event }

// Model is the bubbletea model for the registry monitor.
type Model struct {
	reg      *registry.Registry
	bus      *event.Bus
	subID    uint64
	events   chan event.Event
	table    table.Model
	feed     []string
	width    int
	height   int
	quitting bool
}

// New creates a monitor over reg, fed by bus.
func New(reg *registry.Registry, bus *event.Bus) *Model {
	columns := []table.Column{
		{Title: "File", Width: 32},
		{Title: "Mode", Width: 8},
		{Title: "State", Width: 8},
		{Title: "Opened via", Width: 10},
		{Title: "Open site", Width: 24},
		{Title: "Closed via", Width: 10},
	}

	t := table.New(
		table.WithColumns(columns),
		table.WithFocused(true),
		table.WithHeight(12),
	)
	t.SetStyles(tableStyles())

	m := &Model{
		reg:    reg,
		bus:    bus,
		events: make(chan event.Event, 64),
		table:  t,
	}
	m.subID = bus.SubscribeAll(func(e event.Event) {
		select {
		case m.events <- e:
		default: // drop rather than block a publisher
		}
	})
	return m
}

// Init implements tea.Model.
func (m *Model) Init() tea.Cmd {
	return tea.Batch(m.tick(), m.waitForEvent())
}

func (m *Model) tick() tea.Cmd {
	return tea.Tick(500*time.Millisecond, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m *Model) waitForEvent() tea.Cmd {
	return func() tea.Msg {
		return busMsg{ev: <-m.events}
	}
}

// Update implements tea.Model.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			m.quitting = true
			m.bus.Unsubscribe(m.subID)
			return m, tea.Quit
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.table.SetWidth(msg.Width - 4)

	case tickMsg:
		m.refresh()
		return m, m.tick()

	case busMsg:
		m.feed = append(m.feed, describeEvent(msg.ev))
		if len(m.feed) > maxFeedLines {
			m.feed = m.feed[len(m.feed)-maxFeedLines:]
		}
		m.refresh()
		return m, m.waitForEvent()
	}

	var cmd tea.Cmd
	m.table, cmd = m.table.Update(msg)
	return m, cmd
}

func (m *Model) refresh() {
	entries := m.reg.Snapshot()
	rows := make([]table.Row, 0, len(entries))
	for _, e := range entries {
		state := "open"
		closedVia := ""
		if e.Closed {
			state = "closed"
			closedVia = e.CloseKind.String()
		}
		rows = append(rows, table.Row{
			e.Filename, e.Mode, state, e.OpenKind.String(),
			e.OpenSite.String(), closedVia,
		})
	}
	m.table.SetRows(rows)
}

// View implements tea.Model.
func (m *Model) View() string {
	if m.quitting {
		return ""
	}

	s := titleStyle.Render("filetrack monitor") + "\n\n"
	s += m.table.View() + "\n\n"
	s += feedTitleStyle.Render("activity") + "\n"
	if len(m.feed) == 0 {
		s += feedStyle.Render("  (no events yet)") + "\n"
	}
	for _, line := range m.feed {
		s += feedStyle.Render("  "+line) + "\n"
	}
	s += "\n" + helpStyle.Render("q: quit")
	return s
}

func describeEvent(e event.Event) string {
	ts := e.Timestamp().Format("15:04:05")
	switch ev := e.(type) {
	case event.HandleOpenedEvent:
		return fmt.Sprintf("%s opened %s (%s, via %s) at %s",
			ts, ev.Filename, ev.Mode, ev.OpenKind, ev.Site)
	case event.HandleModeChangedEvent:
		return fmt.Sprintf("%s mode change %s -> %s at %s", ts, ev.Filename, ev.Mode, ev.Site)
	case event.HandleClosedEvent:
		return fmt.Sprintf("%s closed %s (via %s) at %s", ts, ev.Filename, ev.CloseKind, ev.Site)
	case event.DoubleCloseEvent:
		return fmt.Sprintf("%s DOUBLE CLOSE %s: first %s, again %s",
			ts, ev.Filename, ev.FirstClose, ev.Reclose)
	case event.HandleLeakedEvent:
		return fmt.Sprintf("%s LEAK %s (%s, opened at %s)", ts, ev.Filename, ev.Mode, ev.OpenSite)
	case event.AnomalyEvent:
		return fmt.Sprintf("%s anomaly in %s: %s", ts, ev.Op, ev.Detail)
	case event.RemoveRefusedEvent:
		return fmt.Sprintf("%s remove refused: %s is still open", ts, ev.Filename)
	case event.ExternalChangeEvent:
		return fmt.Sprintf("%s EXTERNAL %s of %s while handle open", ts, ev.Op, ev.Filename)
	default:
		return fmt.Sprintf("%s %s", ts, e.EventType())
	}
}
