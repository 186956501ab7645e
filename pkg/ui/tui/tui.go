// Package tui is the full-screen progress display enabled by --tui.
package tui

import (
	"fmt"
	"sync"

	"cpcscraper/pkg/models"

	tea "github.com/charmbracelet/bubbletea"
)

// TUI runs a bubbletea program and implements ui.Progress and ui.Pauser.
type TUI struct {
	program *tea.Program
	model   *Model

	onQuit func()
	done   chan struct{}
	once   sync.Once
	err    error
}

// New creates a TUI. onQuit runs when the user quits from the keyboard,
// typically cancelling the run's context.
func New(onQuit func(), opts ...tea.ProgramOption) *TUI {
	model := NewModel()
	opts = append([]tea.ProgramOption{tea.WithAltScreen()}, opts...)
	return &TUI{
		program: tea.NewProgram(&model, opts...),
		model:   &model,
		onQuit:  onQuit,
		done:    make(chan struct{}),
	}
}

// Run starts the program in the background.
func (t *TUI) Run() {
	go func() {
		defer close(t.done)
		_, t.err = t.program.Run()
		if t.onQuit != nil {
			t.onQuit()
		}
	}()
}

// Close stops the program and waits for the terminal to be restored.
func (t *TUI) Close() {
	t.once.Do(func() {
		t.program.Quit()
		<-t.done
	})
}

// Err is the program's exit error, valid after Close.
func (t *TUI) Err() error {
	return t.err
}

func (t *TUI) Stage(format string, args ...interface{}) {
	t.program.Send(StageMsg{Text: fmt.Sprintf(format, args...)})
}

func (t *TUI) SetTotal(total int) {
	t.program.Send(TotalMsg{Total: total})
}

func (t *TUI) Start(id, product, filename string) {
	t.program.Send(DownloadStartMsg{ID: id, Product: product, Filename: filename})
}

func (t *TUI) Finish(id string, outcome models.DownloadOutcome) {
	t.program.Send(DownloadDoneMsg{ID: id, Outcome: outcome})
}

// Log adds a line to the log panel.
func (t *TUI) Log(level, format string, args ...interface{}) {
	t.program.Send(LogMsg{Level: level, Message: fmt.Sprintf(format, args...)})
}

// Paused reports whether the user pressed p.
func (t *TUI) Paused() bool {
	return t.model.Paused()
}
