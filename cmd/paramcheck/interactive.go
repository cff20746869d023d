package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/unbound-force/paramcheck/internal/taxonomy"
)

// keyMap defines keybindings for the interactive TUI.
type keyMap struct {
	Up       key.Binding
	Down     key.Binding
	PageUp   key.Binding
	PageDown key.Binding
	NextFile key.Binding
	PrevFile key.Binding
	Quit     key.Binding
	Help     key.Binding
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Up, k.Down, k.NextFile, k.Quit, k.Help}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Up, k.Down, k.PageUp, k.PageDown},
		{k.NextFile, k.PrevFile},
		{k.Quit, k.Help},
	}
}

var defaultKeyMap = keyMap{
	Up:       key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("^/k", "up")),
	Down:     key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("v/j", "down")),
	PageUp:   key.NewBinding(key.WithKeys("pgup", "ctrl+u"), key.WithHelp("pgup", "page up")),
	PageDown: key.NewBinding(key.WithKeys("pgdown", "ctrl+d"), key.WithHelp("pgdn", "page down")),
	NextFile: key.NewBinding(key.WithKeys("n", "tab"), key.WithHelp("n", "next file")),
	PrevFile: key.NewBinding(key.WithKeys("p", "shift+tab"), key.WithHelp("p", "previous file")),
	Quit:     key.NewBinding(key.WithKeys("q", "ctrl+c", "esc"), key.WithHelp("q", "quit")),
	Help:     key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "help")),
}

// Styles for the TUI.
var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("63"))

	statusStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241"))

	tuiHeaderStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("63"))

	codeStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("75"))
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	warningStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("220"))
)

// checkModel is the Bubble Tea model for browsing diagnostics.
type checkModel struct {
	result   *taxonomy.Result
	viewport viewport.Model
	help     help.Model
	keys     keyMap
	ready    bool
	content  string

	// fileLines holds the content line of each file header.
	fileLines []int
}

func newCheckModel(result *taxonomy.Result) checkModel {
	content, fileLines := renderCheckContent(result)
	return checkModel{
		result:    result,
		help:      help.New(),
		keys:      defaultKeyMap,
		content:   content,
		fileLines: fileLines,
	}
}

// renderCheckContent renders the diagnostics grouped by file and
// returns the line index of every file header.
func renderCheckContent(result *taxonomy.Result) (string, []int) {
	var lines []string
	var fileLines []int

	lines = append(lines,
		titleStyle.Render(fmt.Sprintf("paramcheck: %d error(s), %d warning(s) in %d test(s)",
			result.Summary.Errors, result.Summary.Warnings, result.Metadata.TestsAnalyzed)),
		"")

	if len(result.Diagnostics) == 0 {
		lines = append(lines, statusStyle.Render("No problems found."))
	}

	for i, d := range result.Diagnostics {
		if i == 0 || d.Location.File != result.Diagnostics[i-1].Location.File {
			if i > 0 {
				lines = append(lines, "")
			}
			fileLines = append(fileLines, len(lines))
			lines = append(lines, tuiHeaderStyle.Render(fmt.Sprintf("=== %s ===", d.Location.File)))
		}
		sev := errorStyle
		if d.Severity == taxonomy.SeverityWarning {
			sev = warningStyle
		}
		lines = append(lines, fmt.Sprintf("  %s %s %s",
			statusStyle.Render(fmt.Sprintf("%d:%d", d.Location.Line, d.Location.Column)),
			sev.Render(string(d.Severity)+":"),
			codeStyle.Render("["+string(d.Code)+"]")))
		lines = append(lines, "      "+d.Message)
		if d.Test != "" {
			lines = append(lines, statusStyle.Render("      in "+d.Test))
		}
	}

	for _, w := range result.Metadata.Warnings {
		lines = append(lines, "", statusStyle.Render("warning: "+w))
	}

	return strings.Join(lines, "\n") + "\n", fileLines
}

// nextFileLine returns the first file header after offset, or the
// last one before it when forward is false.
func nextFileLine(fileLines []int, offset int, forward bool) (int, bool) {
	if forward {
		for _, l := range fileLines {
			if l > offset {
				return l, true
			}
		}
		return 0, false
	}
	for i := len(fileLines) - 1; i >= 0; i-- {
		if fileLines[i] < offset {
			return fileLines[i], true
		}
	}
	return 0, false
}

func (m checkModel) Init() tea.Cmd {
	return nil
}

func (m checkModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		footerHeight := 2
		if !m.ready {
			m.viewport = viewport.New(msg.Width, msg.Height-footerHeight)
			m.viewport.SetContent(m.content)
			m.ready = true
		} else {
			m.viewport.Width = msg.Width
			m.viewport.Height = msg.Height - footerHeight
		}

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Quit):
			return m, tea.Quit
		case key.Matches(msg, m.keys.Help):
			m.help.ShowAll = !m.help.ShowAll
		case key.Matches(msg, m.keys.NextFile), key.Matches(msg, m.keys.PrevFile):
			forward := key.Matches(msg, m.keys.NextFile)
			if line, ok := nextFileLine(m.fileLines, m.viewport.YOffset, forward); ok {
				m.viewport.SetYOffset(line)
			}
			return m, nil
		}
	}

	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

func (m checkModel) View() string {
	if !m.ready {
		return "Initializing..."
	}

	footer := statusStyle.Render(
		fmt.Sprintf(" %3.f%% ", m.viewport.ScrollPercent()*100)) +
		" " + m.help.View(m.keys)

	return m.viewport.View() + "\n" + footer
}

// runInteractiveCheck launches the Bubble Tea TUI for browsing
// diagnostics.
func runInteractiveCheck(result *taxonomy.Result) error {
	model := newCheckModel(result)
	p := tea.NewProgram(model, tea.WithAltScreen(), tea.WithMouseCellMotion())
	_, err := p.Run()
	return err
}
