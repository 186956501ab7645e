package tui

import (
	"sync"
	"time"

	"cpcscraper/pkg/models"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// DownloadState represents the state of a download
type DownloadState int

const (
	DownloadActive DownloadState = iota
	DownloadDone
)

// DownloadItem represents a single download
type DownloadItem struct {
	ID        string
	Product   string
	Filename  string
	State     DownloadState
	StartTime time.Time
	Outcome   models.DownloadOutcome
}

// Model is the bubbletea model behind TUI.
type Model struct {
	spinner spinner.Model
	bar     progress.Model

	downloads     map[string]*DownloadItem
	downloadOrder []string
	total         int
	finished      int
	counts        map[models.Status]int
	stage         string
	startTime     time.Time

	width          int
	height         int
	showHelp       bool
	isPaused       bool
	logMessages    []LogMessage
	maxLogMessages int

	mu sync.RWMutex
}

// LogMessage represents a log entry
type LogMessage struct {
	Time    time.Time
	Level   string
	Message string
	Color   lipgloss.Color
}

// NewModel creates a new TUI model
func NewModel() Model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(accent)

	return Model{
		spinner:        s,
		bar:            progress.New(progress.WithDefaultGradient()),
		downloads:      make(map[string]*DownloadItem),
		counts:         make(map[models.Status]int),
		startTime:      time.Now(),
		maxLogMessages: 50,
	}
}

// Init initializes the model
func (m *Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, tickCmd())
}

// SetStage records the current discovery step.
func (m *Model) SetStage(stage string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stage = stage
}

// SetTotal sets the number of scheduled downloads.
func (m *Model) SetTotal(total int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.total = total
}

// StartDownload marks a download as active
func (m *Model) StartDownload(id, product, filename string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.downloads[id]; !ok {
		m.downloadOrder = append(m.downloadOrder, id)
	}
	m.downloads[id] = &DownloadItem{
		ID:        id,
		Product:   product,
		Filename:  filename,
		State:     DownloadActive,
		StartTime: time.Now(),
	}
}

// FinishDownload records a terminal outcome.
func (m *Model) FinishDownload(id string, outcome models.DownloadOutcome) {
	m.mu.Lock()
	defer m.mu.Unlock()

	item, ok := m.downloads[id]
	if !ok {
		item = &DownloadItem{ID: id, Filename: outcome.SourceURL}
		m.downloads[id] = item
		m.downloadOrder = append(m.downloadOrder, id)
	}
	if item.State == DownloadDone {
		return
	}
	item.State = DownloadDone
	item.Outcome = outcome
	m.finished++
	m.counts[outcome.Status]++
}

// AddLogMessage adds a log message
func (m *Model) AddLogMessage(level, message string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	color := dim
	switch level {
	case "ERROR":
		color = failRed
	case "WARN":
		color = warnOrange
	case "SUCCESS":
		color = okGreen
	case "INFO":
		color = accent
	}

	m.logMessages = append(m.logMessages, LogMessage{
		Time:    time.Now(),
		Level:   level,
		Message: message,
		Color:   color,
	})
	if len(m.logMessages) > m.maxLogMessages {
		m.logMessages = m.logMessages[len(m.logMessages)-m.maxLogMessages:]
	}
}

// Paused reports whether the user has held downloads.
func (m *Model) Paused() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.isPaused
}

func (m *Model) togglePause() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.isPaused = !m.isPaused
	return m.isPaused
}

// ActiveDownloads returns the in-flight downloads in start order.
func (m *Model) ActiveDownloads() []*DownloadItem {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.filter(func(d *DownloadItem) bool { return d.State == DownloadActive })
}

// RecentFailures returns up to n of the latest failed outcomes.
func (m *Model) RecentFailures(n int) []*DownloadItem {
	m.mu.RLock()
	defer m.mu.RUnlock()
	failed := m.filter(func(d *DownloadItem) bool {
		return d.State == DownloadDone && d.Outcome.Status.Failed()
	})
	if len(failed) > n {
		failed = failed[len(failed)-n:]
	}
	return failed
}

func (m *Model) filter(keep func(*DownloadItem) bool) []*DownloadItem {
	var out []*DownloadItem
	for _, id := range m.downloadOrder {
		if d := m.downloads[id]; d != nil && keep(d) {
			out = append(out, d)
		}
	}
	return out
}

// Stats returns finished and scheduled counts plus an ETA.
func (m *Model) Stats() (finished, total int, eta time.Duration) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	finished, total = m.finished, m.total
	if total < finished {
		total = finished
	}
	if finished > 0 && total > finished {
		perItem := time.Since(m.startTime) / time.Duration(finished)
		eta = perItem * time.Duration(total-finished)
	}
	return finished, total, eta
}

// Count returns the tally for one status.
func (m *Model) Count(s models.Status) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.counts[s]
}
