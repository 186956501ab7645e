package ui

import "cpcscraper/pkg/models"

// Progress receives run events. Implementations must be safe for
// concurrent use because download workers report from their own goroutines.
type Progress interface {
	// Stage announces a discovery step such as resolving a category.
	Stage(format string, args ...interface{})
	// SetTotal sets the number of downloads scheduled so far.
	SetTotal(total int)
	Start(id, product, filename string)
	Finish(id string, outcome models.DownloadOutcome)
	// Close flushes the display once the run is over.
	Close()
}

// Pauser is implemented by displays that let the user hold downloads.
type Pauser interface {
	Paused() bool
}

// NopProgress discards every event.
type NopProgress struct{}

func (NopProgress) Stage(string, ...interface{})          {}
func (NopProgress) SetTotal(int)                          {}
func (NopProgress) Start(string, string, string)          {}
func (NopProgress) Finish(string, models.DownloadOutcome) {}
func (NopProgress) Close()                                {}
