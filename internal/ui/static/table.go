// Package static renders the non-interactive tables gr prints: repo
// status, griptrees, pull requests and link files.
package static

import (
	"strings"

	"charm.land/lipgloss/v2"
	"charm.land/lipgloss/v2/table"

	"github.com/raphi011/gitgrip/internal/ui/styles"
)

// columnGap separates columns.
const columnGap = 2

// RenderTable lays rows out under headers in borderless, left-aligned
// columns sized to their widest cell. Cells may carry ANSI styling.
// Trailing padding is trimmed from every line. No rows renders nothing.
func RenderTable(headers []string, rows [][]string) string {
	if len(rows) == 0 {
		return ""
	}
	last := len(headers) - 1
	header := lipgloss.NewStyle().Bold(true).Foreground(styles.Muted)

	t := table.New().
		Headers(headers...).
		Rows(rows...).
		Border(lipgloss.HiddenBorder()).
		BorderTop(false).
		BorderBottom(false).
		BorderLeft(false).
		BorderRight(false).
		BorderHeader(false).
		BorderColumn(false).
		StyleFunc(func(row, col int) lipgloss.Style {
			s := lipgloss.NewStyle()
			if col != last {
				s = s.PaddingRight(columnGap)
			}
			if row == table.HeaderRow {
				return s.Inherit(header)
			}
			return s
		})

	lines := strings.Split(t.String(), "\n")
	var b strings.Builder
	for _, l := range lines {
		b.WriteString(strings.TrimRight(l, " "))
		b.WriteByte('\n')
	}
	return b.String()
}
