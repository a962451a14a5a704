package uds

import (
	"testing"
	"time"

	"github.com/kbuckham/udsd/internal/canbus"
	"github.com/kbuckham/udsd/internal/did"
	"github.com/kbuckham/udsd/internal/dtcstore"
	"github.com/kbuckham/udsd/internal/isotp"
	"github.com/kbuckham/udsd/internal/platform"
	"github.com/kbuckham/udsd/internal/sensor"
	"github.com/kbuckham/udsd/internal/store"
)

func newBoundaryDispatcher(t *testing.T) (*Dispatcher, *canbus.MockTransport) {
	t.Helper()
	const (
		didMaxSize      = 8
		didCount        = 2
		dtcRegionOffset = didCount * didMaxSize
		dtcCount        = 5
	)
	nvm := store.New(store.NewMemDriver(dtcRegionOffset + dtcCount*dtcstore.SlotSize))
	catalogue := dtcstore.New(nvm, dtcRegionOffset, dtcCount)
	registry := did.DefaultRegistry(didMaxSize)

	tr := canbus.NewMockTransport()
	link := isotp.NewLink(tr, 0x768)

	d := &Dispatcher{
		Catalogue:   catalogue,
		NVM:         nvm,
		DIDRegistry: registry,
		Live:        sensor.NewStaticReader(map[uint8]uint16{0: 0x00AA, 1: 0x0001}),
		Resetter:    platform.NoopResetter{},
		Link:        link,
	}
	return d, tr
}

func lastFrame(t *testing.T, tr *canbus.MockTransport) canbus.Frame {
	t.Helper()
	sent := tr.Sent()
	if len(sent) == 0 {
		t.Fatal("no frame sent")
	}
	return sent[len(sent)-1]
}

func TestReportNumberOfDTCByStatusMaskShortLength(t *testing.T) {
	d, tr := newBoundaryDispatcher(t)

	// length_byte=1 covers only the SID: len(requestPDU)==2, DLC==2.
	if err := d.Dispatch([]byte{0x01, 0x19}); err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	f := lastFrame(t, tr)
	want := []byte{0x03, 0x7F, 0x19, NRCIncorrectMessageLengthOrFormat}
	if f.DLC != byte(len(want)) {
		t.Fatalf("DLC = %d, want %d", f.DLC, len(want))
	}
	for i, b := range want {
		if f.Data[i] != b {
			t.Fatalf("byte %d = %#x, want %#x", i, f.Data[i], b)
		}
	}
}

func TestWriteDataByIdentifierValueOutOfRange(t *testing.T) {
	d, tr := newBoundaryDispatcher(t)
	thresholdDID := []byte{0xF1, 0x92}

	// value = 0x1000, one over the 12-bit (4095) ceiling.
	req := []byte{0x05, 0x2E, thresholdDID[0], thresholdDID[1], 0x10, 0x00}
	if err := d.Dispatch(req); err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	f := lastFrame(t, tr)
	want := []byte{0x03, 0x7F, 0x2E, NRCRequestOutOfRange}
	assertFrameEquals(t, f, want)
}

func TestReadDataByIdentifierAllUnsupportedDIDs(t *testing.T) {
	d, tr := newBoundaryDispatcher(t)

	req := []byte{0x03, 0x22, 0xFF, 0xFF}
	if err := d.Dispatch(req); err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	f := lastFrame(t, tr)
	want := []byte{0x03, 0x7F, 0x22, NRCRequestOutOfRange}
	assertFrameEquals(t, f, want)
}

func TestReadDataByIdentifierMultiFramePositiveResponse(t *testing.T) {
	d, tr := newBoundaryDispatcher(t)

	// Three valid DID pairs force a >7-byte payload, requiring
	// multi-frame ISO-TP segmentation of the positive response.
	req := []byte{
		0x07, 0x22,
		0xF1, 0x90, // ENGINE_TEMP
		0xF1, 0x91, // ENGINE_LIGHT
		0xF1, 0x92, // THRESHOLD
	}
	done := make(chan error, 1)
	go func() { done <- d.Dispatch(req) }()

	time.Sleep(10 * time.Millisecond)
	tr.Inject(canbus.NewFrame(0x769, []byte{0x30, 0x00, 0x00, 0, 0, 0, 0, 0}))
	if err := <-done; err != nil {
		t.Fatalf("Dispatch: %v", err)
	}

	sent := tr.Sent()
	if len(sent) < 2 {
		t.Fatalf("expected at least FF + 1 CF, got %d frames", len(sent))
	}
	if sent[0].Data[0]>>4 != 0x1 {
		t.Fatalf("first frame PCI nibble = %#x, want First Frame (0x1)", sent[0].Data[0]>>4)
	}
}

func TestReportDTCSnapshotRecordNumberOutOfRange(t *testing.T) {
	d, tr := newBoundaryDispatcher(t)
	if err := d.Catalogue.Set(0x444444, 0x04, nil); err != nil {
		t.Fatalf("Set: %v", err)
	}

	req := []byte{0x06, 0x19, 0x04, 0x44, 0x44, 0x44, 0x02}
	if err := d.Dispatch(req); err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	f := lastFrame(t, tr)
	want := []byte{0x03, 0x7F, 0x19, NRCRequestOutOfRange}
	assertFrameEquals(t, f, want)
}

func TestECUResetSuppressedSendsNoFrameAndResets(t *testing.T) {
	d, tr := newBoundaryDispatcher(t)
	var resets int
	d.Resetter = platform.NoopResetter{Resets: &resets}

	req := []byte{0x02, 0x11, 0x81} // hard reset, suppressPosRsp set
	if err := d.Dispatch(req); err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if len(tr.Sent()) != 0 {
		t.Fatalf("suppressed reset sent %d frames, want 0", len(tr.Sent()))
	}
	if resets != 1 {
		t.Fatalf("Resetter.Reset not invoked exactly once, got %d", resets)
	}
}

func TestECUResetPositiveResponseResetsAfterSend(t *testing.T) {
	d, tr := newBoundaryDispatcher(t)
	var resets int
	d.Resetter = platform.NoopResetter{Resets: &resets}

	req := []byte{0x02, 0x11, 0x01}
	if err := d.Dispatch(req); err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	f := lastFrame(t, tr)
	want := []byte{0x02, 0x51, 0x01}
	assertFrameEquals(t, f, want)
	if resets != 1 {
		t.Fatalf("Resetter.Reset not invoked exactly once, got %d", resets)
	}
}

func TestClearDiagnosticInformationAllGroups(t *testing.T) {
	d, tr := newBoundaryDispatcher(t)
	if err := d.Catalogue.Set(0x111111, 0x02, nil); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := d.Catalogue.Set(0x222222, 0x02, nil); err != nil {
		t.Fatalf("Set: %v", err)
	}

	req := []byte{0x04, 0x14, 0xFF, 0xFF, 0xFF}
	if err := d.Dispatch(req); err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	f := lastFrame(t, tr)
	want := []byte{0x01, 0x54}
	assertFrameEquals(t, f, want)

	_, recs, err := d.Catalogue.ActiveRecords()
	if err != nil {
		t.Fatalf("ActiveRecords: %v", err)
	}
	if len(recs) != 0 {
		t.Fatalf("expected all DTCs cleared, got %d active", len(recs))
	}
}

func TestSecurityAccessRequestSeedThenSendKey(t *testing.T) {
	d, tr := newBoundaryDispatcher(t)

	if err := d.Dispatch([]byte{0x02, 0x27, 0x01}); err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	assertFrameEquals(t, lastFrame(t, tr), []byte{0x04, 0x67, 0x01, 0x00, 0x00})

	// fixedSeed is 0x0000, so the complement key is 0xFFFF.
	if err := d.Dispatch([]byte{0x04, 0x27, 0x02, 0xFF, 0xFF}); err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	assertFrameEquals(t, lastFrame(t, tr), []byte{0x02, 0x67, 0x02})
	if d.securityLevel != securityLevelUnlocked {
		t.Fatalf("securityLevel = %#x, want unlocked", d.securityLevel)
	}
}

func TestSecurityAccessSendKeyWrongKeyDenied(t *testing.T) {
	d, tr := newBoundaryDispatcher(t)

	if err := d.Dispatch([]byte{0x02, 0x27, 0x01}); err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	assertFrameEquals(t, lastFrame(t, tr), []byte{0x04, 0x67, 0x01, 0x00, 0x00})

	if err := d.Dispatch([]byte{0x04, 0x27, 0x02, 0xAA, 0xBB}); err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	assertFrameEquals(t, lastFrame(t, tr), []byte{0x7F, 0x27, NRCSecurityAccessDenied})
	if d.securityLevel == securityLevelUnlocked {
		t.Fatal("expected securityLevel to remain locked after a wrong key")
	}
}

func TestSecurityAccessSendKeyWithoutSeedDenied(t *testing.T) {
	d, tr := newBoundaryDispatcher(t)

	if err := d.Dispatch([]byte{0x04, 0x27, 0x02, 0xFF, 0xFF}); err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	assertFrameEquals(t, lastFrame(t, tr), []byte{0x7F, 0x27, NRCSecurityAccessDenied})
}

func assertFrameEquals(t *testing.T, f canbus.Frame, want []byte) {
	t.Helper()
	if f.DLC != byte(len(want)) {
		t.Fatalf("DLC = %d, want %d", f.DLC, len(want))
	}
	for i, b := range want {
		if f.Data[i] != b {
			t.Fatalf("byte %d = %#x, want %#x", i, f.Data[i], b)
		}
	}
}
