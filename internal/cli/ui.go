package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"WaveSentinel/internal/model"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#7C3AED")).
			Padding(0, 1)

	boxStyle = lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#3B82F6")).
			Padding(0, 1)

	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#3B82F6"))
	dimStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#6B7280"))

	// A-share convention: red is up, green is down.
	upStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#EF4444")).Bold(true)
	downStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#10B981")).Bold(true)
	warnStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#F59E0B")).Bold(true)
)

func printTitle(w io.Writer, title string) {
	fmt.Fprintln(w, titleStyle.Render(title))
}

func printBox(w io.Writer, body string) {
	fmt.Fprintln(w, boxStyle.Render(body))
}

// signed colours a percentage by sign.
func signed(v float64) string {
	s := fmt.Sprintf("%+.2f%%", v*100)
	switch {
	case v > 0:
		return upStyle.Render(s)
	case v < 0:
		return downStyle.Render(s)
	}
	return s
}

func statusText(s model.Status) string {
	switch s {
	case model.StatusBuy:
		return upStyle.Render(string(s))
	case model.StatusSell:
		return downStyle.Render(string(s))
	case model.StatusWait:
		return warnStyle.Render(string(s))
	}
	return dimStyle.Render(string(s))
}

// table renders rows under a header with columns padded to display width.
func table(header []string, rows [][]string) string {
	widths := make([]int, len(header))
	for i, h := range header {
		widths[i] = lipgloss.Width(h)
	}
	for _, r := range rows {
		for i, c := range r {
			if i < len(widths) && lipgloss.Width(c) > widths[i] {
				widths[i] = lipgloss.Width(c)
			}
		}
	}
	line := func(cells []string, style *lipgloss.Style) string {
		parts := make([]string, len(cells))
		for i, c := range cells {
			pad := widths[i] - lipgloss.Width(c)
			if style != nil {
				c = style.Render(c)
			}
			parts[i] = c + strings.Repeat(" ", pad)
		}
		return strings.TrimRight(strings.Join(parts, "  "), " ")
	}
	var b strings.Builder
	b.WriteString(line(header, &headerStyle))
	for _, r := range rows {
		b.WriteString("\n")
		b.WriteString(line(r, nil))
	}
	return b.String()
}
