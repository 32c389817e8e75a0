// Package tui draws the presence badge in the terminal with Bubble Tea.
//
// The badge and card are in-memory [dom.Node] surfaces driven by a
// [presence.Widget]. Mouse hover over the badge or card (tracked with
// bubblezone) and keyboard focus map onto the widget's interaction events;
// the view reads back whatever the widget wrote.
package tui

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	zone "github.com/lrstanley/bubblezone"
	"tools.zach/dev/badgecord/internal/dom"
	"tools.zach/dev/badgecord/internal/presence"
)

// Zone ids for mouse hit testing.
const (
	zoneBadge = "badge"
	zoneCard  = "card"
)

// DefaultDoubleClick is the double-click window when none is configured.
const DefaultDoubleClick = 400 * time.Millisecond

// flashDuration is how long a status line stays visible.
const flashDuration = 2 * time.Second

// ///////////////////////////////////////////////
// Messages
// ///////////////////////////////////////////////

// changedMsg signals that the widget wrote to a surface.
type changedMsg struct{}

// refreshedMsg carries the result of a manual refresh.
type refreshedMsg struct{ result presence.Result }

// copiedMsg reports a clipboard write.
type copiedMsg struct {
	link string
	err  error
}

// flashExpiredMsg clears the status line if it is still the one scheduled.
type flashExpiredMsg struct{ seq int }

// reconfigureMsg applies new display settings.
type reconfigureMsg struct {
	theme       string
	doubleClick time.Duration
}

// ///////////////////////////////////////////////
// Sender
// ///////////////////////////////////////////////

// sender forwards messages to the running program. Sends are asynchronous
// because widget callbacks may fire from inside Update.
type sender struct {
	mu   sync.Mutex
	send func(tea.Msg)
}

func (s *sender) Send(msg tea.Msg) {
	s.mu.Lock()
	f := s.send
	s.mu.Unlock()
	if f != nil {
		go f(msg)
	}
}

func (s *sender) attach(f func(tea.Msg)) {
	s.mu.Lock()
	s.send = f
	s.mu.Unlock()
}

// reportingClipboard tells the model about each copy.
type reportingClipboard struct {
	inner presence.Clipboard
	out   *sender
}

func (c reportingClipboard) WriteText(text string) error {
	err := c.inner.WriteText(text)
	c.out.Send(copiedMsg{link: text, err: err})
	return err
}

// ///////////////////////////////////////////////
// Model
// ///////////////////////////////////////////////

// Options configures the UI.
type Options struct {
	Context context.Context
	// Presence configures the widget. OnChange and Clipboard are managed by
	// the model.
	Presence presence.Options
	// Clipboard receives copied profile links. Nil disables copying.
	Clipboard   presence.Clipboard
	Theme       string
	DoubleClick time.Duration
}

// surfaces are the nodes the widget writes to.
type surfaces struct {
	badge, card, avatar, name, activity, status, details *dom.Node
}

func newSurfaces() *surfaces {
	s := &surfaces{
		badge:    dom.NewNode("class", "discord-presence-badge"),
		card:     dom.NewNode("class", "discord-presence-card"),
		avatar:   dom.NewNode("class", "discord-avatar"),
		name:     dom.NewNode("class", "discord-username"),
		activity: dom.NewNode("class", "discord-activity"),
		status:   dom.NewNode("class", "discord-status-icon invisible"),
		details:  dom.NewNode("class", "discord-details"),
	}
	s.name.SetText("Loading...")
	s.activity.SetText("Loading...")
	return s
}

func (s *surfaces) presence() presence.Surfaces {
	return presence.Surfaces{
		Badge:      s.badge,
		Card:       s.card,
		Avatar:     s.avatar,
		Name:       s.name,
		Activity:   s.activity,
		StatusIcon: s.status,
		Details:    s.details,
	}
}

// Model is the root Bubble Tea model.
type Model struct {
	ctx    context.Context
	widget *presence.Widget
	nodes  *surfaces
	out    *sender
	zones  *zone.Manager
	// hit reports whether msg falls inside the named zone.
	hit func(id string, msg tea.MouseMsg) bool
	now func() time.Time

	keys   keyMap
	help   help.Model
	theme  Theme
	styles Styles

	doubleClick time.Duration
	lastClick   time.Time
	overBadge   bool
	overCard    bool

	flash    string
	flashErr bool
	flashSeq int
}

// New creates the model and its widget. The widget is not started.
func New(opts Options) Model {
	ctx := opts.Context
	if ctx == nil {
		ctx = context.Background()
	}
	if opts.DoubleClick <= 0 {
		opts.DoubleClick = DefaultDoubleClick
	}

	m := Model{
		ctx:         ctx,
		nodes:       newSurfaces(),
		out:         &sender{},
		zones:       zone.New(),
		now:         time.Now,
		keys:        defaultKeyMap(),
		help:        help.New(),
		theme:       GetTheme(opts.Theme),
		doubleClick: opts.DoubleClick,
	}
	m.styles = m.theme.Styles()
	zones := m.zones
	m.hit = func(id string, msg tea.MouseMsg) bool {
		return zones.Get(id).InBounds(msg)
	}

	wopts := opts.Presence
	out := m.out
	wopts.OnChange = func() { out.Send(changedMsg{}) }
	wopts.Clipboard = nil
	if opts.Clipboard != nil {
		wopts.Clipboard = reportingClipboard{inner: opts.Clipboard, out: out}
	}
	m.widget = presence.New(m.nodes.presence(), wopts)
	return m
}

// Widget returns the widget driving the badge.
func (m Model) Widget() *presence.Widget { return m.widget }

// Close releases the zone manager.
func (m Model) Close() { m.zones.Close() }

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return tea.SetWindowTitle("badgecord")
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.MouseMsg:
		return m.handleMouse(msg)

	case tea.WindowSizeMsg:
		m.help.Width = msg.Width
		return m, nil

	case changedMsg:
		return m, nil

	case refreshedMsg:
		if msg.result.Outcome != presence.OK {
			return m.setFlash("Refresh failed: "+msg.result.Outcome.String(), true)
		}
		return m, nil

	case copiedMsg:
		if msg.err != nil {
			return m.setFlash("Copy failed", true)
		}
		return m.setFlash("Copied "+msg.link, false)

	case flashExpiredMsg:
		if msg.seq == m.flashSeq {
			m.flash = ""
		}
		return m, nil

	case reconfigureMsg:
		m.theme = GetTheme(msg.theme)
		m.styles = m.theme.Styles()
		if msg.doubleClick > 0 {
			m.doubleClick = msg.doubleClick
		}
		return m, nil
	}
	return m, nil
}

// handleKey processes keyboard input.
func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit

	case key.Matches(msg, m.keys.Help):
		m.help.ShowAll = !m.help.ShowAll
		return m, nil

	case key.Matches(msg, m.keys.Focus):
		if m.nodes.badge.Focused() {
			m.nodes.badge.Blur()
			m.widget.Dispatch(presence.EventBlur)
		} else {
			m.nodes.badge.Focus()
			m.widget.Dispatch(presence.EventFocus)
		}
		return m, nil

	case key.Matches(msg, m.keys.Escape):
		m.widget.Dispatch(presence.EventEscape)
		return m, nil

	case key.Matches(msg, m.keys.Copy):
		if m.widget.ProfileLink() == "" {
			return m.setFlash("Nothing to copy yet", true)
		}
		m.widget.Dispatch(presence.EventDoubleActivate)
		return m, nil

	case key.Matches(msg, m.keys.Refresh):
		w, ctx := m.widget, m.ctx
		return m, func() tea.Msg {
			return refreshedMsg{result: w.Refresh(ctx)}
		}
	}
	return m, nil
}

// handleMouse turns pointer motion into enter/leave events and detects
// double-clicks on the badge. Leaves are dispatched before enters so moving
// from the badge onto the card cancels the pending hide.
func (m Model) handleMouse(msg tea.MouseMsg) (tea.Model, tea.Cmd) {
	overBadge := m.hit(zoneBadge, msg)
	overCard := m.cardVisible() && m.hit(zoneCard, msg)

	if m.overBadge && !overBadge {
		m.widget.Dispatch(presence.EventBadgeLeave)
	}
	if m.overCard && !overCard {
		m.widget.Dispatch(presence.EventCardLeave)
	}
	if !m.overBadge && overBadge {
		m.widget.Dispatch(presence.EventBadgeEnter)
	}
	if !m.overCard && overCard {
		m.widget.Dispatch(presence.EventCardEnter)
	}
	m.overBadge, m.overCard = overBadge, overCard

	if overBadge && msg.Action == tea.MouseActionPress && msg.Button == tea.MouseButtonLeft {
		now := m.now()
		if !m.lastClick.IsZero() && now.Sub(m.lastClick) <= m.doubleClick {
			m.lastClick = time.Time{}
			m.widget.Dispatch(presence.EventDoubleActivate)
		} else {
			m.lastClick = now
		}
	}
	return m, nil
}

func (m Model) setFlash(text string, isErr bool) (tea.Model, tea.Cmd) {
	m.flashSeq++
	m.flash, m.flashErr = text, isErr
	seq := m.flashSeq
	return m, tea.Tick(flashDuration, func(time.Time) tea.Msg {
		return flashExpiredMsg{seq: seq}
	})
}

func (m Model) cardVisible() bool {
	return dom.HasClass(m.nodes.card, "visible")
}

// statusClass returns the status part of the icon's class list.
func (m Model) statusClass() string {
	v, _ := m.nodes.status.Attr("class")
	for _, c := range strings.Fields(v) {
		if c != "discord-status-icon" {
			return c
		}
	}
	return "invisible"
}

// ///////////////////////////////////////////////
// View
// ///////////////////////////////////////////////

// View implements tea.Model.
func (m Model) View() string {
	parts := []string{m.zones.Mark(zoneBadge, m.renderBadge())}
	if m.cardVisible() {
		parts = append(parts, m.zones.Mark(zoneCard, m.renderCard()))
	}
	if m.flash != "" {
		style := m.styles.Flash
		if m.flashErr {
			style = m.styles.Error
		}
		parts = append(parts, style.Render(m.flash))
	}
	parts = append(parts, m.help.View(m.keys))
	return m.zones.Scan(lipgloss.JoinVertical(lipgloss.Left, parts...))
}

func (m Model) renderBadge() string {
	style := m.styles.Badge
	if m.nodes.badge.Focused() {
		style = m.styles.BadgeFocused
	}
	return style.Render(m.theme.StatusDot(m.statusClass()) + " " + m.nodes.name.Text())
}

func (m Model) renderCard() string {
	lines := []string{
		m.styles.Name.Render(m.nodes.name.Text()),
		m.styles.Activity.Render(m.nodes.activity.Text()),
	}
	if d := m.nodes.details.Text(); d != "" {
		lines = append(lines, m.styles.Details.Render(d))
	}
	if src, _ := m.nodes.avatar.Attr("src"); src != "" {
		lines = append(lines, m.styles.Faint.Render(src))
	}
	return m.styles.Card.Render(strings.Join(lines, "\n"))
}
