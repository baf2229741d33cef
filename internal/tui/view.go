package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/elimika/auditlog/internal/audit"
	"github.com/elimika/auditlog/internal/logview"
)

const timeLayout = "2006-01-02 15:04:05"

const (
	colTime     = 19
	colEvent    = 26
	colActor    = 26
	colResource = 22
	colStatus   = 8
	colIP       = 15
)

func (m Model) View() string {
	if m.quitting {
		return ""
	}
	snap := m.ctrl.Snapshot()

	var b strings.Builder
	b.WriteString(m.renderTitle(snap))
	b.WriteString("\n")
	b.WriteString(m.renderFilterBar())
	b.WriteString("\n")
	b.WriteString(headerStyle.Render(fit(renderColumns(
		"  ",
		pad("Timestamp", colTime),
		pad("Event", colEvent),
		pad("Actor", colActor),
		pad("Resource", colResource),
		pad("Status", colStatus),
		pad("IP Address", colIP),
	), m.width)))
	b.WriteString("\n")
	for _, line := range m.renderBody(snap) {
		b.WriteString(line)
		b.WriteString("\n")
	}
	b.WriteString(m.renderStatusLine(snap))
	b.WriteString("\n")
	b.WriteString(m.help.View(m.keys))
	return b.String()
}

func (m Model) renderTitle(snap logview.Snapshot) string {
	title := titleStyle.Render("Audit log")
	count := fmt.Sprintf("%d entries loaded", len(snap.Entries))
	if snap.HasNextPage {
		count += ", more available"
	}
	return title + "  " + mutedStyle.Render(count)
}

func (m Model) renderFilterBar() string {
	if m.editing != "" {
		return m.input.View()
	}
	filters := m.ctrl.Filters()
	parts := make([]string, 0, len(logview.Fields()))
	for _, field := range logview.Fields() {
		value := filters.Get(field)
		label := filterLabelStyle.Render(fieldLabel(field) + ":")
		if value == "" {
			parts = append(parts, label+" "+placeholderStyle.Render("any"))
			continue
		}
		parts = append(parts, label+" "+filterActiveStyle.Render(value))
	}
	return fit(strings.Join(parts, filterValueStyle.Render("  ")), m.width)
}

// renderBody returns exactly viewportRows lines. Only the rows of the
// visible window are rendered.
func (m Model) renderBody(snap logview.Snapshot) []string {
	rows := m.viewportRows()
	lines := make([]string, 0, rows)
	total := 0
	switch {
	case len(snap.Entries) == 0 && snap.IsLoading:
		lines = append(lines, m.spin.View()+" Loading audit log…")
	case len(snap.Entries) == 0 && snap.Err != nil:
		lines = append(lines,
			toastErrorStyle.Render("Could not load audit entries: "+snap.Err.Error()),
			mutedStyle.Render("Press R to retry."))
	case len(snap.Entries) == 0 && snap.Pages > 0:
		lines = append(lines, "No audit entries match the current filters.")
		if m.ctrl.Filters() != m.ctrl.Defaults() {
			lines = append(lines, mutedStyle.Render("Press r to reset filters."))
		}
	case len(snap.Entries) > 0:
		win := logview.ComputeVisibleWindow(m.scrollTop*rowHeight, rows*rowHeight, rowHeight, m.overscan, len(snap.Entries))
		total = win.TotalHeight / rowHeight
		rendered := make([]string, 0, win.Len())
		for i := win.Start; i < win.End; i++ {
			rendered = append(rendered, renderRow(snap.Entries[i], i == m.cursor))
		}
		skip := (m.scrollTop*rowHeight - win.OffsetY) / rowHeight
		for i := skip; i >= 0 && i < len(rendered) && len(lines) < rows; i++ {
			lines = append(lines, rendered[i])
		}
		if snap.IsFetchingNextPage && len(lines) < rows {
			lines = append(lines, "  "+m.spin.View()+mutedStyle.Render(" Loading more…"))
		}
	}

	bar := scrollbar(rows, m.scrollTop, total)
	out := make([]string, rows)
	for i := range out {
		line := ""
		if i < len(lines) {
			line = lines[i]
		}
		out[i] = fit(line, m.width-1) + bar[i]
	}
	return out
}

func (m Model) renderStatusLine(snap logview.Snapshot) string {
	if m.toast.text != "" {
		style := toastInfoStyle
		switch m.toast.level {
		case toastSuccess:
			style = toastSuccessStyle
		case toastError:
			style = toastErrorStyle
		}
		return fit(style.Render(m.toast.text), m.width)
	}
	var status string
	switch {
	case snap.IsFetchingNextPage && len(snap.Entries) > 0:
		status = m.spin.View() + " Loading more…"
	case len(snap.Entries) > 0 && !snap.HasNextPage:
		status = fmt.Sprintf("Row %d of %d · end of audit log", m.cursor+1, len(snap.Entries))
	case len(snap.Entries) > 0:
		status = fmt.Sprintf("Row %d of %d", m.cursor+1, len(snap.Entries))
	}
	return fit(mutedStyle.Render(status), m.width)
}

func renderRow(e audit.LogEntry, selected bool) string {
	marker := "  "
	if selected {
		marker = "▸ "
	}
	line := renderColumns(
		marker,
		pad(e.CreatedAt.Local().Format(timeLayout), colTime),
		cell(e.Event, colEvent),
		cell(e.Actor.Display(), colActor),
		cell(e.Resource.Display(), colResource),
		statusCell(e.Status),
		cell(e.IPAddress, colIP),
	)
	if selected {
		return selectedRowStyle.Render(line)
	}
	return line
}

func renderColumns(marker string, cells ...string) string {
	return marker + strings.Join(cells, "  ")
}

func cell(value string, width int) string {
	if value == "" {
		return placeholderStyle.Render(pad(audit.Placeholder, width))
	}
	return pad(value, width)
}

func statusCell(status audit.Status) string {
	if status == "" {
		return cell("", colStatus)
	}
	return renderStatus(status, colStatus)
}

// pad truncates or right-pads value to exactly width cells.
func pad(value string, width int) string {
	if lipgloss.Width(value) > width {
		runes := []rune(value)
		for len(runes) > 0 && lipgloss.Width(string(runes))+1 > width {
			runes = runes[:len(runes)-1]
		}
		value = string(runes) + "…"
	}
	if gap := width - lipgloss.Width(value); gap > 0 {
		value += strings.Repeat(" ", gap)
	}
	return value
}

// fit clips a rendered line to width and pads it with spaces.
func fit(line string, width int) string {
	if width <= 0 {
		return ""
	}
	line = lipgloss.NewStyle().MaxWidth(width).Render(line)
	if gap := width - lipgloss.Width(line); gap > 0 {
		line += strings.Repeat(" ", gap)
	}
	return line
}

// scrollbar draws a track for rows lines. total is the content height in
// rows; no bar is drawn when everything fits.
func scrollbar(rows, offset, total int) []string {
	bar := make([]string, rows)
	if total <= rows || rows == 0 {
		for i := range bar {
			bar[i] = " "
		}
		return bar
	}
	size := max(1, rows*rows/total)
	pos := offset * rows / total
	if pos+size > rows {
		pos = rows - size
	}
	for i := range bar {
		if i >= pos && i < pos+size {
			bar[i] = scrollThumbStyle.Render("█")
		} else {
			bar[i] = scrollTrackStyle.Render("│")
		}
	}
	return bar
}
