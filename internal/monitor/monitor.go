// Package monitor runs the responder's one background producer: a
// periodic engine-temperature watchdog that raises
// dtcstore.EngineOverheatCode when the live reading crosses a
// configurable threshold. It is the concrete stand-in for the
// "optional periodic interrupt" the main dispatch loop otherwise never
// exercises outside of tests.
package monitor

import (
	"context"
	"log/slog"
	"time"

	"github.com/kbuckham/udsd/internal/did"
	"github.com/kbuckham/udsd/internal/dtcstore"
	"github.com/kbuckham/udsd/internal/sensor"
)

// DefaultInterval is how often the watchdog samples the engine
// temperature channel when no interval is configured.
const DefaultInterval = 1 * time.Second

// statusOnRaise is the status mask written each time a tick observes
// the threshold crossed: failed, pending, and this-cycle bits
// set, matching how a freshly-detected fault is reported before it has
// survived multiple drive cycles.
const statusOnRaise = dtcstore.StatusTestFailed |
	dtcstore.StatusTestFailedThisOperationCycle |
	dtcstore.StatusPendingDTC

// Watchdog samples Live on each tick and sets EngineOverheatCode in
// Catalogue once the reading exceeds Threshold. It does not clear the
// DTC when the temperature falls back below threshold; clearing is an
// operator action via SID 0x14, matching how the original firmware
// leaves DTC_Set as a one-way transition until Clear Diagnostic
// Information is invoked.
type Watchdog struct {
	Live      sensor.Reader
	Catalogue *dtcstore.Catalogue
	Channel   uint8
	Threshold uint16
	Interval  time.Duration
}

// NewWatchdog returns a Watchdog sampling the ENGINE_TEMP ADC channel
// against threshold, ticking at DefaultInterval.
func NewWatchdog(live sensor.Reader, catalogue *dtcstore.Catalogue, threshold uint16) *Watchdog {
	return &Watchdog{
		Live:      live,
		Catalogue: catalogue,
		Channel:   0, // ENGINE_TEMP is ADC channel 0 in did.DefaultRegistry
		Threshold: threshold,
		Interval:  DefaultInterval,
	}
}

// Run ticks until ctx is cancelled, sampling and raising the DTC as
// needed. It is meant to run in its own goroutine alongside the main
// dispatch loop.
func (w *Watchdog) Run(ctx context.Context) {
	interval := w.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.tick()
		}
	}
}

func (w *Watchdog) tick() {
	temp := w.Live.Read(w.Channel)
	if temp <= w.Threshold {
		return
	}

	now := time.Now()
	snapshot := &dtcstore.Snapshot{
		Temperature: clampToByte(temp),
		Day:         uint8(now.Day()),
		Month:       uint8(now.Month()),
		Year:        uint16(now.Year()),
	}
	if err := w.Catalogue.Set(dtcstore.EngineOverheatCode, uint8(statusOnRaise), snapshot); err != nil {
		slog.Error("monitor: failed to raise engine overheat DTC", "err", err)
		return
	}
	slog.Warn("monitor: engine overheat DTC raised",
		"temperature", temp, "threshold", w.Threshold, "did", did.EngineTemp)
}

func clampToByte(v uint16) uint8 {
	if v > 0xFF {
		return 0xFF
	}
	return uint8(v)
}
