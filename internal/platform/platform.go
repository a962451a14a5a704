// Package platform abstracts the single primitive the dispatcher needs
// from the host system on ECU Reset: a hard reset that does not return.
package platform

import (
	"log/slog"
	"os"
)

// Resetter performs a hard reset. A real embedded target never returns
// from this call; this responder's development target logs the intent
// and exits the process, which is the closest analogue a hosted
// platform has to a hardware reset.
type Resetter interface {
	Reset()
}

// ProcessResetter implements Resetter by exiting the current process.
type ProcessResetter struct {
	ExitCode int
}

// Reset logs the reset and exits the process.
func (p ProcessResetter) Reset() {
	slog.Warn("ECU reset requested, exiting process")
	os.Exit(p.ExitCode)
}

// NoopResetter implements Resetter without actually exiting, for tests
// that need to observe a reset occurred without killing the test binary.
type NoopResetter struct {
	Resets *int
}

// Reset increments the counter pointed to by Resets, if non-nil.
func (n NoopResetter) Reset() {
	if n.Resets != nil {
		*n.Resets++
	}
}
