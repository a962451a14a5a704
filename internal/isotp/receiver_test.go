package isotp

import (
	"testing"
	"time"

	"github.com/kbuckham/udsd/internal/canbus"
)

func TestReassemblerSingleFrame(t *testing.T) {
	tr := canbus.NewMockTransport()
	r := NewReassembler(tr, 0x768)
	f := canbus.NewFrame(0x769, []byte{0x03, 0x22, 0xF1, 0x90})
	pdu, complete, err := r.Feed(f)
	if err != nil {
		t.Fatalf("Feed: %v", err)
	}
	if !complete {
		t.Fatal("expected a complete PDU from a single frame")
	}
	want := []byte{0x22, 0xF1, 0x90}
	if len(pdu) != len(want) {
		t.Fatalf("pdu = % 02X, want % 02X", pdu, want)
	}
	for i := range want {
		if pdu[i] != want[i] {
			t.Errorf("byte %d = %02X, want %02X", i, pdu[i], want[i])
		}
	}
}

func TestReassemblerFirstFrameSendsFlowControl(t *testing.T) {
	tr := canbus.NewMockTransport()
	r := NewReassembler(tr, 0x768)
	ff := canbus.NewFrame(0x769, []byte{0x10, 0x0A, 1, 2, 3, 4, 5, 6})
	_, complete, err := r.Feed(ff)
	if err != nil || complete {
		t.Fatalf("expected incomplete, no error; got complete=%v err=%v", complete, err)
	}
	sent := tr.Sent()
	if len(sent) != 1 {
		t.Fatalf("expected 1 FC frame sent, got %d", len(sent))
	}
	if sent[0].Data[0]>>4 != pciFlowControl {
		t.Errorf("expected flow control PCI, got %02X", sent[0].Data[0])
	}
}

func TestReassemblerMultiFrame(t *testing.T) {
	tr := canbus.NewMockTransport()
	r := NewReassembler(tr, 0x768)

	ff := canbus.NewFrame(0x769, []byte{0x10, 0x0A, 1, 2, 3, 4, 5, 6})
	if _, complete, err := r.Feed(ff); err != nil || complete {
		t.Fatalf("FF: complete=%v err=%v", complete, err)
	}
	cf1 := canbus.NewFrame(0x769, []byte{0x21, 7, 8, 9, 10, 0xAA, 0xAA, 0xAA})
	pdu, complete, err := r.Feed(cf1)
	if err != nil {
		t.Fatalf("CF1: %v", err)
	}
	if !complete {
		t.Fatal("expected reassembly to complete after CF1")
	}
	for i := 0; i < 10; i++ {
		if pdu[i] != byte(i+1) {
			t.Errorf("byte %d = %d, want %d", i, pdu[i], i+1)
		}
	}
}

func TestReassemblerSequenceMismatch(t *testing.T) {
	tr := canbus.NewMockTransport()
	r := NewReassembler(tr, 0x768)
	ff := canbus.NewFrame(0x769, []byte{0x10, 0x0A, 1, 2, 3, 4, 5, 6})
	r.Feed(ff)
	badCF := canbus.NewFrame(0x769, []byte{0x23, 7, 8, 9, 10, 0, 0, 0})
	_, _, err := r.Feed(badCF)
	te, ok := err.(*TransportError)
	if !ok || te.Kind != SequenceMismatch {
		t.Fatalf("expected SequenceMismatch, got %v", err)
	}
}

func TestReassemblerTimeout(t *testing.T) {
	tr := canbus.NewMockTransport()
	r := NewReassembler(tr, 0x768)
	r.nCr = 5 * time.Millisecond
	ff := canbus.NewFrame(0x769, []byte{0x10, 0x0A, 1, 2, 3, 4, 5, 6})
	r.Feed(ff)
	time.Sleep(10 * time.Millisecond)
	cf := canbus.NewFrame(0x769, []byte{0x21, 7, 8, 9, 10, 0, 0, 0})
	_, _, err := r.Feed(cf)
	te, ok := err.(*TransportError)
	if !ok || te.Kind != Timeout {
		t.Fatalf("expected Timeout, got %v", err)
	}
}

func TestReassemblerDiscardsAfterErrorAndAcceptsNextSF(t *testing.T) {
	tr := canbus.NewMockTransport()
	r := NewReassembler(tr, 0x768)
	ff := canbus.NewFrame(0x769, []byte{0x10, 0x0A, 1, 2, 3, 4, 5, 6})
	r.Feed(ff)
	badCF := canbus.NewFrame(0x769, []byte{0x23, 7, 8, 9, 10, 0, 0, 0})
	r.Feed(badCF)

	sf := canbus.NewFrame(0x769, []byte{0x02, 0x10, 0x01})
	pdu, complete, err := r.Feed(sf)
	if err != nil || !complete {
		t.Fatalf("expected clean SF after discard, got complete=%v err=%v", complete, err)
	}
	if len(pdu) != 2 || pdu[0] != 0x10 || pdu[1] != 0x01 {
		t.Errorf("unexpected pdu %v", pdu)
	}
}
