// Package render formats workflows, jobs and validation results for the
// terminal.
package render

import "github.com/charmbracelet/lipgloss"

// Status glyphs convey meaning without relying on color alone.
const (
	GlyphOK      = "✓"
	GlyphError   = "✗"
	GlyphWarning = "!"
	GlyphRule    = "◆"
)

var (
	colorGreen  = lipgloss.Color("42")
	colorRed    = lipgloss.Color("196")
	colorYellow = lipgloss.Color("214")
	colorCyan   = lipgloss.Color("51")
	colorDim    = lipgloss.Color("240")
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(colorCyan)

	headerStyle = lipgloss.NewStyle().
			Bold(true)

	labelStyle = lipgloss.NewStyle().
			Foreground(colorDim)

	okStyle = lipgloss.NewStyle().
			Foreground(colorGreen)

	errorStyle = lipgloss.NewStyle().
			Foreground(colorRed)

	warningStyle = lipgloss.NewStyle().
			Foreground(colorYellow)

	panelStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(colorDim).
			Padding(0, 1)
)

// Title styles a section heading.
func Title(s string) string { return titleStyle.Render(s) }

// Label styles a field label.
func Label(s string) string { return labelStyle.Render(s) }

// OK styles a success line.
func OK(s string) string { return okStyle.Render(GlyphOK + " " + s) }

// Error styles an error line.
func Error(s string) string { return errorStyle.Render(GlyphError + " " + s) }

// Warning styles a warning line.
func Warning(s string) string { return warningStyle.Render(GlyphWarning + " " + s) }

// Panel draws a rounded border around s.
func Panel(s string) string { return panelStyle.Render(s) }

func header(s string) string { return headerStyle.Render(s) }
