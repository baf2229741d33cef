package tui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/elimika/auditlog/internal/audit"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("6"))
	filterLabelStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("8"))
	filterValueStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("15"))
	filterActiveStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(lipgloss.Color("6"))
	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("7")).
			Border(lipgloss.NormalBorder(), false, false, true, false).
			BorderForeground(lipgloss.Color("8"))
	selectedRowStyle = lipgloss.NewStyle().
				Background(lipgloss.Color("236")).
				Bold(true)
	placeholderStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("8"))
	scrollTrackStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("237"))
	scrollThumbStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("6"))
	mutedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("8")).
			Italic(true)

	toastInfoStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("0")).
			Background(lipgloss.Color("6")).
			Padding(0, 1)
	toastErrorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("15")).
			Background(lipgloss.Color("1")).
			Padding(0, 1)
	toastSuccessStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("0")).
				Background(lipgloss.Color("2")).
				Padding(0, 1)

	statusStyles = map[audit.Status]lipgloss.Style{
		audit.StatusSuccess: lipgloss.NewStyle().Foreground(lipgloss.Color("2")),
		audit.StatusFailed:  lipgloss.NewStyle().Foreground(lipgloss.Color("1")),
		audit.StatusDenied:  lipgloss.NewStyle().Foreground(lipgloss.Color("3")),
	}
)

func renderStatus(status audit.Status, width int) string {
	cell := pad(string(status), width)
	if style, ok := statusStyles[status]; ok {
		return style.Render(cell)
	}
	return cell
}
