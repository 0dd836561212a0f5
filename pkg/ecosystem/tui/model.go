// Package tui implements the full-screen workflow browser.
package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/ormasoftchile/rulekit/pkg/kernel/resolve"
	"github.com/ormasoftchile/rulekit/pkg/kernel/rule"
	"github.com/ormasoftchile/rulekit/pkg/render"
)

var (
	headerStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39"))
	selectedStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("51"))
	dimStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	keyStyle      = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("252"))
	keyDescStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
)

// resolvedMsg carries the outcome of a resolve or expand request.
type resolvedMsg struct {
	Rule string
	Job  *rule.Job
	Err  error
}

// Model is the Bubble Tea model for the workflow browser. The left column
// lists rules; the detail pane shows the selected rule's templates, or the
// last job expanded.
type Model struct {
	resolver  *resolve.Resolver
	name      string
	rules     []*rule.Rule
	selected  int
	input     textinput.Model
	prompting bool
	job       *rule.Job
	err       error
	width     int
	height    int
}

// NewModel creates a browser over the resolver's workflow. name labels the
// header, usually the workflow file.
func NewModel(r *resolve.Resolver, name string) Model {
	ti := textinput.New()
	ti.Prompt = "path> "
	ti.Placeholder = "results/{sample}.txt name=value ..."
	ti.CharLimit = 512
	return Model{
		resolver: r,
		name:     name,
		rules:    r.Workflow().Rules(),
		input:    ti,
		width:    80,
	}
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return nil
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case resolvedMsg:
		m.err = msg.Err
		m.job = msg.Job
		if msg.Err == nil {
			m.selectRule(msg.Rule)
		}
		return m, nil

	case tea.KeyMsg:
		if m.prompting {
			return m.updatePrompt(msg)
		}
		switch {
		case key.Matches(msg, keys.Quit):
			return m, tea.Quit
		case key.Matches(msg, keys.Up):
			if m.selected > 0 {
				m.selected--
			}
			m.job, m.err = nil, nil
		case key.Matches(msg, keys.Down):
			if m.selected < len(m.rules)-1 {
				m.selected++
			}
			m.job, m.err = nil, nil
		case key.Matches(msg, keys.Expand):
			if r := m.current(); r != nil {
				return m, m.expand(r.Name)
			}
		case key.Matches(msg, keys.Resolve):
			m.prompting = true
			m.input.SetValue("")
			return m, m.input.Focus()
		case key.Matches(msg, keys.Clear):
			m.job, m.err = nil, nil
		}
	}
	return m, nil
}

func (m Model) updatePrompt(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, keys.Expand):
		line := m.input.Value()
		m.prompting = false
		m.input.Blur()
		if strings.TrimSpace(line) == "" {
			return m, nil
		}
		return m, m.resolve(line)
	case key.Matches(msg, keys.Clear):
		m.prompting = false
		m.input.Blur()
		return m, nil
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// resolve matches a "path [name=value ...]" line and expands its producer.
func (m Model) resolve(line string) tea.Cmd {
	return func() tea.Msg {
		fields := strings.Fields(line)
		hint, err := resolve.ParseWildcards(fields[1:])
		if err != nil {
			return resolvedMsg{Err: err}
		}
		res, err := m.resolver.Resolve(fields[0], hint)
		if err != nil {
			return resolvedMsg{Err: err}
		}
		return resolvedMsg{Rule: res.Rule.Name, Job: res.Job}
	}
}

// expand expands a rule that declares no wildcards.
func (m Model) expand(name string) tea.Cmd {
	return func() tea.Msg {
		job, err := m.resolver.Expand(name, nil)
		if err != nil {
			return resolvedMsg{Err: err}
		}
		return resolvedMsg{Rule: name, Job: job}
	}
}

func (m *Model) selectRule(name string) {
	for i, r := range m.rules {
		if r.Name == name {
			m.selected = i
			return
		}
	}
}

func (m Model) current() *rule.Rule {
	if m.selected < 0 || m.selected >= len(m.rules) {
		return nil
	}
	return m.rules[m.selected]
}

// View implements tea.Model.
func (m Model) View() string {
	var b strings.Builder

	b.WriteString(headerStyle.Render(fmt.Sprintf("  rulekit: %s (%d rules)", m.name, len(m.rules))))
	b.WriteString("\n\n")

	if len(m.rules) == 0 {
		b.WriteString(dimStyle.Render("  No rules defined."))
		b.WriteString("\n")
	}
	for i, r := range m.rules {
		glyph := render.GlyphRule
		if r.IsCheckpoint {
			glyph = "◇"
		}
		line := fmt.Sprintf("%s %s", glyph, r.Name)
		if names := r.WildcardNames(); len(names) > 0 {
			line += dimStyle.Render(" {" + strings.Join(names, ", ") + "}")
		}
		if i == m.selected {
			b.WriteString(selectedStyle.Render("▸ " + line))
		} else {
			b.WriteString("  " + line)
		}
		b.WriteString("\n")
	}
	b.WriteString("\n")

	switch {
	case m.prompting:
		b.WriteString("  " + m.input.View())
	case m.err != nil:
		b.WriteString("  " + render.Error(fmt.Sprintf("%s: %v", resolve.Kind(m.err), m.err)))
	case m.job != nil:
		b.WriteString(render.Job(m.job))
	default:
		if r := m.current(); r != nil {
			b.WriteString(render.Describe(r, m.width))
		}
	}

	b.WriteString("\n\n  ")
	b.WriteString(keyBarText(m.prompting))
	return b.String()
}
