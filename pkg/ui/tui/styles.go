package tui

import (
	"cpcscraper/pkg/models"

	"github.com/charmbracelet/lipgloss"
)

var (
	accent     = lipgloss.Color("#00B4D8")
	highlight  = lipgloss.Color("#F77F00")
	okGreen    = lipgloss.Color("#39FF14")
	warnOrange = lipgloss.Color("#FF6700")
	failRed    = lipgloss.Color("#FF3B30")
	valueGold  = lipgloss.Color("#FFD60A")
	dim        = lipgloss.Color("#B0B0B0")
	darkBg     = lipgloss.Color("#0A0E27")
	panelBg    = lipgloss.Color("#1A1E37")

	baseStyle = lipgloss.NewStyle().
			Background(darkBg).
			Foreground(dim)

	headerStyle = lipgloss.NewStyle().
			Foreground(accent).
			Bold(true).
			Padding(1, 2)

	panelStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(highlight).
			Background(panelBg).
			Padding(1, 2)

	titleStyle = lipgloss.NewStyle().
			Background(highlight).
			Foreground(darkBg).
			Bold(true).
			Padding(0, 1)

	labelStyle = lipgloss.NewStyle().
			Foreground(accent).
			Bold(true)

	valueStyle = lipgloss.NewStyle().
			Foreground(valueGold)

	dimStyle = lipgloss.NewStyle().
			Foreground(dim)

	activeStyle = lipgloss.NewStyle().
			Foreground(okGreen).
			Bold(true)

	emptyStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#333333"))

	successStyle = lipgloss.NewStyle().
			Foreground(okGreen).
			Bold(true)

	warningStyle = lipgloss.NewStyle().
			Foreground(warnOrange).
			Bold(true)

	errorStyle = lipgloss.NewStyle().
			Foreground(failRed).
			Bold(true)

	timestampStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#666666"))

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#626262")).
			Padding(1, 0, 0, 2)
)

// StatusStyle colors a download status.
func StatusStyle(s models.Status) lipgloss.Style {
	switch s {
	case models.StatusOK:
		return successStyle
	case models.StatusExists:
		return dimStyle
	case models.StatusNotImage:
		return warningStyle
	default:
		return errorStyle
	}
}
