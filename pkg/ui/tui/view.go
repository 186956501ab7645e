package tui

import (
	"fmt"
	"strings"
	"time"

	"cpcscraper/pkg/models"

	"github.com/charmbracelet/lipgloss"
)

// View renders the entire TUI
func (m *Model) View() string {
	if m.width == 0 || m.height == 0 {
		return "Initializing..."
	}

	width := (m.width - 4) / 2
	left := lipgloss.JoinVertical(lipgloss.Left,
		m.renderStatsPanel(width),
		m.renderActivePanel(width),
	)
	right := lipgloss.JoinVertical(lipgloss.Left,
		m.renderOutcomesPanel(width),
		m.renderLogsPanel(width),
	)

	sections := []string{
		m.renderHeader(),
		lipgloss.JoinHorizontal(lipgloss.Top, left, "  ", right),
	}
	if m.showHelp {
		sections = append(sections, m.renderHelp())
	} else {
		sections = append(sections, helpStyle.Render("p pause • q quit • ? help"))
	}

	return baseStyle.Width(m.width).Height(m.height).Render(
		lipgloss.JoinVertical(lipgloss.Left, sections...),
	)
}

func (m *Model) renderHeader() string {
	m.mu.RLock()
	stage := m.stage
	m.mu.RUnlock()

	title := headerStyle.Render("cpcscraper")
	if stage == "" {
		return title
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, title, "  ", labelStyle.Render(stage))
}

func (m *Model) renderStatsPanel(width int) string {
	finished, total, eta := m.Stats()

	ratio := 0.0
	if total > 0 {
		ratio = float64(finished) / float64(total)
	}

	m.mu.RLock()
	elapsed := time.Since(m.startTime)
	paused := m.isPaused
	m.mu.RUnlock()

	lines := []string{
		titleStyle.Render(" PROGRESS "),
		fmt.Sprintf("%s %s", labelStyle.Render("Elapsed:"), valueStyle.Render(formatDuration(elapsed))),
		fmt.Sprintf("%s %s", labelStyle.Render("Images:"), valueStyle.Render(fmt.Sprintf("%d/%d", finished, total))),
		fmt.Sprintf("%s %s", labelStyle.Render("ETA:"), valueStyle.Render(formatDuration(eta))),
		m.bar.ViewAs(ratio),
	}
	if paused {
		lines = append(lines, warningStyle.Render("⏸  PAUSED"))
	}
	return panelStyle.Width(width).Render(lipgloss.JoinVertical(lipgloss.Left, lines...))
}

func (m *Model) renderActivePanel(width int) string {
	title := titleStyle.Render(" ACTIVE ")
	active := m.ActiveDownloads()
	if len(active) == 0 {
		return panelStyle.Width(width).Render(
			lipgloss.JoinVertical(lipgloss.Left, title, dimStyle.Render("Idle")),
		)
	}

	rows := []string{title}
	for _, d := range active {
		row := fmt.Sprintf("%s %s %s", m.spinner.View(), activeStyle.Render(d.Filename), dimStyle.Render(d.Product))
		rows = append(rows, truncate(row, width-4))
	}
	return panelStyle.Width(width).Render(lipgloss.JoinVertical(lipgloss.Left, rows...))
}

func (m *Model) renderOutcomesPanel(width int) string {
	finished, _, _ := m.Stats()
	barWidth := width - 24
	if barWidth < 5 {
		barWidth = 5
	}

	rows := []string{titleStyle.Render(" OUTCOMES ")}
	for _, s := range models.Statuses {
		n := m.Count(s)
		filled := 0
		if finished > 0 {
			filled = n * barWidth / finished
		}
		style := StatusStyle(s)
		bar := style.Render(strings.Repeat("█", filled)) + emptyStyle.Render(strings.Repeat("░", barWidth-filled))
		rows = append(rows, fmt.Sprintf("%-10s %s %s", s, bar, style.Render(fmt.Sprint(n))))
	}
	for _, d := range m.RecentFailures(3) {
		rows = append(rows, errorStyle.Render(truncate("✗ "+d.Outcome.SourceURL, width-4)))
	}
	return panelStyle.Width(width).Render(lipgloss.JoinVertical(lipgloss.Left, rows...))
}

func (m *Model) renderLogsPanel(width int) string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	start := len(m.logMessages) - 10
	if start < 0 {
		start = 0
	}

	var logs []string
	for _, log := range m.logMessages[start:] {
		timestamp := timestampStyle.Render(log.Time.Format("15:04:05"))
		level := lipgloss.NewStyle().Foreground(log.Color).Bold(true).Render(fmt.Sprintf("[%-7s]", log.Level))
		logs = append(logs, fmt.Sprintf("%s %s %s", timestamp, level, truncate(log.Message, width-25)))
	}

	content := strings.Join(logs, "\n")
	if content == "" {
		content = dimStyle.Render("No logs yet...")
	}

	logsHeight := m.height - 20
	if logsHeight < 5 {
		logsHeight = 5
	}
	return panelStyle.Width(width).Height(logsHeight).Render(
		lipgloss.JoinVertical(lipgloss.Left, titleStyle.Render(" LOG "), content),
	)
}

func (m *Model) renderHelp() string {
	help := `
  q/Q      quit (cancels the run)
  p/P      pause or resume downloads
  ctrl+l   clear the log
  ?        toggle this help
`
	return panelStyle.Width(m.width).Render(help)
}

// truncate shortens s to n runes.
func truncate(s string, n int) string {
	if n <= 3 {
		return s
	}
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}

// formatDuration formats a duration as mm:ss or hh:mm:ss.
func formatDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	s := int(d.Seconds()) % 60
	if h > 0 {
		return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%02d:%02d", m, s)
}
