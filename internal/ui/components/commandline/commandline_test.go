package commandline

import (
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meszmate/wsroster/internal/ui/theme"
)

func typeText(m Model, s string) Model {
	m, _ = m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)})
	return m
}

func press(m Model, k tea.KeyType) (Model, tea.Cmd) {
	return m.Update(tea.KeyMsg{Type: k})
}

func TestEnterEmitsCommandOrSubmit(t *testing.T) {
	m := New(theme.Default())

	m = typeText(m, "/presence away  lunch")
	m, cmd := press(m, tea.KeyEnter)
	require.NotNil(t, cmd)
	assert.Equal(t, CommandMsg{Command: "presence", Args: []string{"away", "lunch"}}, cmd())
	assert.Empty(t, m.Value())

	m = typeText(m, "  hello there ")
	m, cmd = press(m, tea.KeyEnter)
	require.NotNil(t, cmd)
	assert.Equal(t, SubmitMsg{Text: "hello there"}, cmd())

	_, cmd = press(m, tea.KeyEnter)
	assert.Nil(t, cmd)
}

func TestEditing(t *testing.T) {
	m := New(theme.Default())

	m = typeText(m, "héllo")
	m, _ = press(m, tea.KeyLeft)
	m, _ = press(m, tea.KeyBackspace)
	assert.Equal(t, "hélo", m.Value())

	m, _ = press(m, tea.KeyHome)
	m, _ = press(m, tea.KeyDelete)
	assert.Equal(t, "élo", m.Value())

	m, _ = press(m, tea.KeyEnd)
	m, _ = press(m, tea.KeySpace)
	m = typeText(m, "world")
	m, _ = press(m, tea.KeyCtrlW)
	assert.Equal(t, "élo ", m.Value())

	m, _ = press(m, tea.KeyCtrlU)
	assert.Empty(t, m.Value())
}

func TestHistory(t *testing.T) {
	m := New(theme.Default())
	m = typeText(m, "one")
	m, _ = press(m, tea.KeyEnter)
	m = typeText(m, "two")
	m, _ = press(m, tea.KeyEnter)

	m, _ = press(m, tea.KeyUp)
	assert.Equal(t, "two", m.Value())
	m, _ = press(m, tea.KeyUp)
	assert.Equal(t, "one", m.Value())
	m, _ = press(m, tea.KeyDown)
	assert.Equal(t, "two", m.Value())
	m, _ = press(m, tea.KeyDown)
	assert.Empty(t, m.Value())
}

func TestComplete(t *testing.T) {
	m := New(theme.Default()).
		RegisterCommand(Command{Name: "presence"}).
		RegisterCommand(Command{Name: "quit"}).
		RegisterCommand(Command{Name: "disconnect"}).
		RegisterCommand(Command{Name: "debug"})

	m = typeText(m, "/pr")
	m, _ = press(m, tea.KeyTab)
	assert.Equal(t, "/presence ", m.Value())

	m, _ = press(m, tea.KeyCtrlU)
	m = typeText(m, "/d")
	m, _ = press(m, tea.KeyTab)
	assert.Equal(t, "/d", m.Value(), "ambiguous prefix is left alone")

	assert.Equal(t, "debug", m.Commands()[0].Name)
}
