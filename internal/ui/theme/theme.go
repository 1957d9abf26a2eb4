// Package theme holds the terminal styles.
package theme

import "github.com/charmbracelet/lipgloss"

// Palette is the set of colors a theme is compiled from.
type Palette struct {
	Foreground string
	Muted      string
	Primary    string
	Accent     string
	StatusFg   string
	StatusBg   string
	Error      string
	Warning    string
	Online     string
	Away       string
	DND        string
	Offline    string
}

// Styles contains the compiled lipgloss styles
type Styles struct {
	Header lipgloss.Style

	PresenceOnline  lipgloss.Style
	PresenceAway    lipgloss.Style
	PresenceDND     lipgloss.Style
	PresenceOffline lipgloss.Style

	ChatTimestamp   lipgloss.Style
	ChatMyNick      lipgloss.Style
	ChatTheirNick   lipgloss.Style
	ChatBody        lipgloss.Style
	ChatPending     lipgloss.Style
	ChatFailed      lipgloss.Style
	ChatSystem      lipgloss.Style
	ChatSystemWarn  lipgloss.Style
	ChatSystemError lipgloss.Style

	StatusBar     lipgloss.Style
	StatusAccount lipgloss.Style
	StatusTarget  lipgloss.Style

	CommandPrompt lipgloss.Style
	CommandInput  lipgloss.Style
}

// DefaultPalette is the dark palette used when nothing else is configured.
func DefaultPalette() Palette {
	return Palette{
		Foreground: "#c0caf5",
		Muted:      "#565f89",
		Primary:    "#7aa2f7",
		Accent:     "#bb9af7",
		StatusFg:   "#c0caf5",
		StatusBg:   "#1f2335",
		Error:      "#f7768e",
		Warning:    "#e0af68",
		Online:     "#9ece6a",
		Away:       "#e0af68",
		DND:        "#f7768e",
		Offline:    "#565f89",
	}
}

// Default returns the styles for DefaultPalette.
func Default() *Styles {
	return Compile(DefaultPalette())
}

// Compile builds lipgloss styles from p.
func Compile(p Palette) *Styles {
	color := func(c string) lipgloss.Color { return lipgloss.Color(c) }
	s := &Styles{}

	s.Header = lipgloss.NewStyle().
		Foreground(color(p.Primary)).
		Bold(true).
		Padding(0, 1)

	s.PresenceOnline = lipgloss.NewStyle().Foreground(color(p.Online))
	s.PresenceAway = lipgloss.NewStyle().Foreground(color(p.Away))
	s.PresenceDND = lipgloss.NewStyle().Foreground(color(p.DND))
	s.PresenceOffline = lipgloss.NewStyle().Foreground(color(p.Offline))

	s.ChatTimestamp = lipgloss.NewStyle().Foreground(color(p.Muted))
	s.ChatMyNick = lipgloss.NewStyle().
		Foreground(color(p.Primary)).
		Bold(true)
	s.ChatTheirNick = lipgloss.NewStyle().
		Foreground(color(p.Accent)).
		Bold(true)
	s.ChatBody = lipgloss.NewStyle().Foreground(color(p.Foreground))
	s.ChatPending = lipgloss.NewStyle().Foreground(color(p.Muted))
	s.ChatFailed = lipgloss.NewStyle().Foreground(color(p.Error))
	s.ChatSystem = lipgloss.NewStyle().
		Foreground(color(p.Muted)).
		Italic(true)
	s.ChatSystemWarn = s.ChatSystem.Foreground(color(p.Warning))
	s.ChatSystemError = s.ChatSystem.Foreground(color(p.Error))

	s.StatusBar = lipgloss.NewStyle().
		Foreground(color(p.StatusFg)).
		Background(color(p.StatusBg))
	s.StatusAccount = lipgloss.NewStyle().
		Foreground(color(p.Primary)).
		Background(color(p.StatusBg)).
		Bold(true)
	s.StatusTarget = lipgloss.NewStyle().
		Foreground(color(p.Accent)).
		Background(color(p.StatusBg))

	s.CommandPrompt = lipgloss.NewStyle().
		Foreground(color(p.Primary)).
		Bold(true)
	s.CommandInput = lipgloss.NewStyle().Foreground(color(p.Foreground))

	return s
}
