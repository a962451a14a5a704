package monitor

import (
	"testing"

	"github.com/kbuckham/udsd/internal/dtcstore"
	"github.com/kbuckham/udsd/internal/sensor"
	"github.com/kbuckham/udsd/internal/store"
)

func newTestWatchdog(t *testing.T, threshold uint16) (*Watchdog, *sensor.StaticReader) {
	t.Helper()
	nvm := store.New(store.NewMemDriver(5 * dtcstore.SlotSize))
	catalogue := dtcstore.New(nvm, 0, 5)
	live := sensor.NewStaticReader(map[uint8]uint16{0: 0})
	w := NewWatchdog(live, catalogue, threshold)
	return w, live
}

func TestWatchdogTickBelowThresholdDoesNothing(t *testing.T) {
	w, _ := newTestWatchdog(t, 100)
	w.tick()

	_, recs, err := w.Catalogue.ActiveRecords()
	if err != nil {
		t.Fatalf("ActiveRecords: %v", err)
	}
	if len(recs) != 0 {
		t.Fatalf("expected no DTC raised, got %d", len(recs))
	}
}

func TestWatchdogTickAboveThresholdRaisesDTC(t *testing.T) {
	w, live := newTestWatchdog(t, 100)
	live.Set(0, 150)

	w.tick()

	idx, ok, err := w.Catalogue.Find(dtcstore.EngineOverheatCode)
	if err != nil {
		t.Fatalf("Find: %v", err)
	}
	if !ok {
		t.Fatal("expected EngineOverheatCode to be set")
	}
	rec, ok, err := w.Catalogue.Get(idx)
	if err != nil || !ok {
		t.Fatalf("Get: ok=%v err=%v", ok, err)
	}
	if rec.Snapshot.Temperature != 150 {
		t.Fatalf("Snapshot.Temperature = %d, want 150", rec.Snapshot.Temperature)
	}
	if !dtcstore.Status(rec.Status).Has(dtcstore.StatusTestFailed) {
		t.Fatalf("status %#x missing StatusTestFailed", rec.Status)
	}
}

func TestWatchdogRepeatedTicksUpdateSameSlot(t *testing.T) {
	w, live := newTestWatchdog(t, 100)
	live.Set(0, 150)
	w.tick()
	w.tick()

	_, recs, err := w.Catalogue.ActiveRecords()
	if err != nil {
		t.Fatalf("ActiveRecords: %v", err)
	}
	if len(recs) != 1 {
		t.Fatalf("expected exactly one active record after repeated ticks, got %d", len(recs))
	}
}
