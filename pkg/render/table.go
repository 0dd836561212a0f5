package render

import (
	"strings"

	"github.com/mattn/go-runewidth"
)

// Table lays out rows in columns padded to their display width. Cells may
// hold several lines; a row is as tall as its tallest cell. Cells must be
// plain text.
func Table(headers []string, rows [][]string) string {
	return table(headers, rows, nil)
}

// table is Table with an optional style per column.
func table(headers []string, rows [][]string, styles []func(string) string) string {
	cols := len(headers)
	for _, r := range rows {
		cols = max(cols, len(r))
	}
	widths := make([]int, cols)
	measure := func(cells []string) {
		for i, c := range cells {
			for _, line := range strings.Split(c, "\n") {
				widths[i] = max(widths[i], runewidth.StringWidth(line))
			}
		}
	}
	measure(headers)
	for _, r := range rows {
		measure(r)
	}

	var b strings.Builder
	if len(headers) > 0 {
		writeRow(&b, headers, widths, repeat(header, cols))
		sep := make([]string, cols)
		for i, w := range widths {
			sep[i] = strings.Repeat("─", w)
		}
		writeRow(&b, sep, widths, repeat(Label, cols))
	}
	for _, r := range rows {
		writeRow(&b, r, widths, styles)
	}
	return b.String()
}

func repeat(style func(string) string, n int) []func(string) string {
	out := make([]func(string) string, n)
	for i := range out {
		out[i] = style
	}
	return out
}

func writeRow(b *strings.Builder, cells []string, widths []int, styles []func(string) string) {
	height := 1
	split := make([][]string, len(widths))
	for i := range widths {
		if i < len(cells) {
			split[i] = strings.Split(cells[i], "\n")
		}
		height = max(height, len(split[i]))
	}
	for line := 0; line < height; line++ {
		var parts []string
		for i, w := range widths {
			text := ""
			if line < len(split[i]) {
				text = split[i][line]
			}
			pad := strings.Repeat(" ", w-runewidth.StringWidth(text))
			if i < len(styles) && styles[i] != nil && text != "" {
				text = styles[i](text)
			}
			parts = append(parts, text+pad)
		}
		b.WriteString(strings.TrimRight(strings.Join(parts, "  "), " "))
		b.WriteByte('\n')
	}
}

// KeyValues aligns label/value pairs.
func KeyValues(pairs [][2]string) string {
	w := 0
	for _, p := range pairs {
		w = max(w, runewidth.StringWidth(p[0]))
	}
	var b strings.Builder
	for _, p := range pairs {
		pad := strings.Repeat(" ", w-runewidth.StringWidth(p[0]))
		b.WriteString(Label(p[0]) + pad + "  " + p[1] + "\n")
	}
	return b.String()
}

// Truncate shortens s to width display cells, marking the cut with "…".
func Truncate(s string, width int) string {
	return runewidth.Truncate(s, width, "…")
}
