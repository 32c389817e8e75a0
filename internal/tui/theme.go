package tui

import "github.com/charmbracelet/lipgloss"

// Theme defines the badge palette.
type Theme struct {
	Name string

	Surface string
	Border  string
	Focus   string
	Text    string
	Muted   string
	Accent  string
	Danger  string

	// StatusColors maps a status class to its dot color.
	StatusColors map[string]string
}

var themes = map[string]Theme{
	"dark": {
		Name:    "dark",
		Surface: "#2b2d31",
		Border:  "#4e5058",
		Focus:   "#5865f2",
		Text:    "#f2f3f5",
		Muted:   "#949ba4",
		Accent:  "#00a8fc",
		Danger:  "#f23f43",
		StatusColors: map[string]string{
			"online":    "#23a55a",
			"idle":      "#f0b232",
			"dnd":       "#f23f43",
			"invisible": "#80848e",
		},
	},
	"light": {
		Name:    "light",
		Surface: "#ffffff",
		Border:  "#c4c9ce",
		Focus:   "#5865f2",
		Text:    "#060607",
		Muted:   "#5c5e66",
		Accent:  "#006ce7",
		Danger:  "#da373c",
		StatusColors: map[string]string{
			"online":    "#1a8a4a",
			"idle":      "#c98a00",
			"dnd":       "#da373c",
			"invisible": "#747f8d",
		},
	},
}

// GetTheme returns the named theme, falling back to dark.
func GetTheme(name string) Theme {
	if t, ok := themes[name]; ok {
		return t
	}
	return themes["dark"]
}

// Styles holds the lipgloss styles derived from a theme.
type Styles struct {
	Badge        lipgloss.Style
	BadgeFocused lipgloss.Style
	Card         lipgloss.Style
	Name         lipgloss.Style
	Activity     lipgloss.Style
	Details      lipgloss.Style
	Faint        lipgloss.Style
	Flash        lipgloss.Style
	Error        lipgloss.Style
}

// Styles returns lipgloss styles for this theme.
func (t Theme) Styles() Styles {
	box := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color(t.Border)).
		Foreground(lipgloss.Color(t.Text)).
		Padding(0, 1)

	return Styles{
		Badge:        box,
		BadgeFocused: box.BorderForeground(lipgloss.Color(t.Focus)),
		Card:         box.Width(44),
		Name:         lipgloss.NewStyle().Foreground(lipgloss.Color(t.Text)).Bold(true),
		Activity:     lipgloss.NewStyle().Foreground(lipgloss.Color(t.Accent)),
		Details:      lipgloss.NewStyle().Foreground(lipgloss.Color(t.Muted)),
		Faint:        lipgloss.NewStyle().Foreground(lipgloss.Color(t.Muted)).Faint(true),
		Flash:        lipgloss.NewStyle().Foreground(lipgloss.Color(t.Accent)).Italic(true),
		Error:        lipgloss.NewStyle().Foreground(lipgloss.Color(t.Danger)),
	}
}

// StatusDot returns the colored status indicator for class.
func (t Theme) StatusDot(class string) string {
	c, ok := t.StatusColors[class]
	if !ok {
		c = t.StatusColors["invisible"]
	}
	return lipgloss.NewStyle().Foreground(lipgloss.Color(c)).Render("●")
}
