package tui

import (
	"fmt"
	"time"

	"cpcscraper/pkg/models"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
)

// StageMsg announces a discovery step.
type StageMsg struct{ Text string }

// TotalMsg updates the number of scheduled downloads.
type TotalMsg struct{ Total int }

// DownloadStartMsg is sent when a download starts
type DownloadStartMsg struct {
	ID       string
	Product  string
	Filename string
}

// DownloadDoneMsg carries a terminal outcome.
type DownloadDoneMsg struct {
	ID      string
	Outcome models.DownloadOutcome
}

// LogMsg is sent to add a log message
type LogMsg struct {
	Level   string
	Message string
}

// TickMsg is sent periodically to update the UI
type TickMsg time.Time

// Update handles all messages and updates the model
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKeyPress(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.bar.Width = max(10, (msg.Width-4)/2-12)
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case progress.FrameMsg:
		updated, cmd := m.bar.Update(msg)
		if bar, ok := updated.(progress.Model); ok {
			m.bar = bar
		}
		return m, cmd

	case TickMsg:
		return m, tickCmd()

	case StageMsg:
		m.SetStage(msg.Text)
		m.AddLogMessage("INFO", msg.Text)
		return m, nil

	case TotalMsg:
		m.SetTotal(msg.Total)
		return m, nil

	case DownloadStartMsg:
		m.StartDownload(msg.ID, msg.Product, msg.Filename)
		return m, nil

	case DownloadDoneMsg:
		m.FinishDownload(msg.ID, msg.Outcome)
		switch {
		case msg.Outcome.Status == models.StatusOK:
			m.AddLogMessage("SUCCESS", "Saved "+msg.Outcome.Path)
		case msg.Outcome.Status.Failed():
			m.AddLogMessage("ERROR", fmt.Sprintf("%s %s: %v", msg.Outcome.Status, msg.Outcome.SourceURL, msg.Outcome.Err))
		}
		return m, nil

	case LogMsg:
		m.AddLogMessage(msg.Level, msg.Message)
		return m, nil
	}

	return m, nil
}

// handleKeyPress handles keyboard input
func (m *Model) handleKeyPress(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "Q", "ctrl+c":
		return m, tea.Quit

	case "p", "P":
		if m.togglePause() {
			m.AddLogMessage("WARN", "Downloads paused")
		} else {
			m.AddLogMessage("INFO", "Downloads resumed")
		}
		return m, nil

	case "?":
		m.showHelp = !m.showHelp
		return m, nil

	case "ctrl+l":
		m.mu.Lock()
		m.logMessages = nil
		m.mu.Unlock()
		return m, nil
	}

	return m, nil
}

// tickCmd returns a command that sends a tick message
func tickCmd() tea.Cmd {
	return tea.Tick(200*time.Millisecond, func(t time.Time) tea.Msg {
		return TickMsg(t)
	})
}
