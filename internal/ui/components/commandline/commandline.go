package commandline

import (
	"sort"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/meszmate/wsroster/internal/ui/theme"
)

// CommandMsg is sent when a line starting with "/" is entered.
type CommandMsg struct {
	Command string
	Args    []string
}

// SubmitMsg is sent when a chat line is entered.
type SubmitMsg struct {
	Text string
}

// Command describes a slash command for help and completion.
type Command struct {
	Name        string
	Description string
	Usage       string
}

// Model represents the input line. Text is kept as runes so the cursor moves
// by character.
type Model struct {
	input      []rune
	cursorPos  int
	prompt     string
	width      int
	styles     *theme.Styles
	commands   map[string]Command
	history    []string
	historyPos int
}

// New creates a new input line
func New(styles *theme.Styles) Model {
	return Model{
		styles:     styles,
		prompt:     "> ",
		commands:   make(map[string]Command),
		historyPos: -1,
	}
}

// SetWidth sets the input line width
func (m Model) SetWidth(width int) Model {
	m.width = width
	return m
}

// SetPrompt sets the text shown before the input.
func (m Model) SetPrompt(prompt string) Model {
	m.prompt = prompt
	return m
}

// Value returns the current input.
func (m Model) Value() string {
	return string(m.input)
}

// RegisterCommand registers a slash command
func (m Model) RegisterCommand(cmd Command) Model {
	commands := make(map[string]Command, len(m.commands)+1)
	for k, v := range m.commands {
		commands[k] = v
	}
	commands[cmd.Name] = cmd
	m.commands = commands
	return m
}

// Commands returns the registered commands sorted by name.
func (m Model) Commands() []Command {
	out := make([]Command, 0, len(m.commands))
	for _, c := range m.commands {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Update handles key input
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	key, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}

	switch key.Type {
	case tea.KeyRunes:
		m = m.insert(key.Runes)

	case tea.KeySpace:
		m = m.insert([]rune{' '})

	case tea.KeyBackspace:
		if m.cursorPos > 0 {
			m.input = append(m.input[:m.cursorPos-1:m.cursorPos-1], m.input[m.cursorPos:]...)
			m.cursorPos--
		}

	case tea.KeyDelete:
		if m.cursorPos < len(m.input) {
			m.input = append(m.input[:m.cursorPos:m.cursorPos], m.input[m.cursorPos+1:]...)
		}

	case tea.KeyLeft:
		if m.cursorPos > 0 {
			m.cursorPos--
		}

	case tea.KeyRight:
		if m.cursorPos < len(m.input) {
			m.cursorPos++
		}

	case tea.KeyHome, tea.KeyCtrlA:
		m.cursorPos = 0

	case tea.KeyEnd, tea.KeyCtrlE:
		m.cursorPos = len(m.input)

	case tea.KeyUp:
		if m.historyPos < len(m.history)-1 {
			m.historyPos++
			m = m.set(m.history[len(m.history)-1-m.historyPos])
		}

	case tea.KeyDown:
		if m.historyPos > 0 {
			m.historyPos--
			m = m.set(m.history[len(m.history)-1-m.historyPos])
		} else if m.historyPos == 0 {
			m.historyPos = -1
			m = m.set("")
		}

	case tea.KeyTab:
		m = m.complete()

	case tea.KeyCtrlU:
		m.input = append([]rune(nil), m.input[m.cursorPos:]...)
		m.cursorPos = 0

	case tea.KeyCtrlW:
		pos := m.cursorPos
		for pos > 0 && m.input[pos-1] == ' ' {
			pos--
		}
		for pos > 0 && m.input[pos-1] != ' ' {
			pos--
		}
		m.input = append(m.input[:pos:pos], m.input[m.cursorPos:]...)
		m.cursorPos = pos

	case tea.KeyEnter:
		line := strings.TrimSpace(string(m.input))
		if line == "" {
			return m, nil
		}
		m.history = append(m.history, line)
		m.historyPos = -1
		m = m.set("")

		if strings.HasPrefix(line, "/") {
			parts := strings.Fields(line[1:])
			if len(parts) == 0 {
				return m, nil
			}
			cmd := CommandMsg{Command: parts[0], Args: parts[1:]}
			return m, func() tea.Msg { return cmd }
		}
		return m, func() tea.Msg { return SubmitMsg{Text: line} }
	}

	return m, nil
}

func (m Model) insert(r []rune) Model {
	input := make([]rune, 0, len(m.input)+len(r))
	input = append(input, m.input[:m.cursorPos]...)
	input = append(input, r...)
	input = append(input, m.input[m.cursorPos:]...)
	m.input = input
	m.cursorPos += len(r)
	return m
}

func (m Model) set(s string) Model {
	m.input = []rune(s)
	m.cursorPos = len(m.input)
	return m
}

// complete finishes a slash command name when exactly one matches.
func (m Model) complete() Model {
	line := string(m.input)
	if !strings.HasPrefix(line, "/") || strings.Contains(line, " ") {
		return m
	}
	prefix := line[1:]

	var match string
	for name := range m.commands {
		if !strings.HasPrefix(name, prefix) {
			continue
		}
		if match != "" {
			return m
		}
		match = name
	}
	if match == "" {
		return m
	}
	return m.set("/" + match + " ")
}

// View renders the input line
func (m Model) View() string {
	prompt := m.styles.CommandPrompt.Render(m.prompt)

	before := string(m.input[:m.cursorPos])
	cursorChar := " "
	after := ""
	if m.cursorPos < len(m.input) {
		cursorChar = string(m.input[m.cursorPos])
		after = string(m.input[m.cursorPos+1:])
	}
	cursor := lipgloss.NewStyle().Reverse(true).Render(cursorChar)

	return prompt + m.styles.CommandInput.Render(before) + cursor + m.styles.CommandInput.Render(after)
}
