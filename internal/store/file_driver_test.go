package store

import (
	"path/filepath"
	"testing"
)

func TestFileDriverPersistsAcrossOpen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nvm.bin")

	d1, err := OpenFileDriver(path, 32)
	if err != nil {
		t.Fatalf("OpenFileDriver: %v", err)
	}
	if err := d1.WriteAt(4, []byte{0xAA, 0xBB}); err != nil {
		t.Fatalf("WriteAt: %v", err)
	}

	d2, err := OpenFileDriver(path, 32)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	got := make([]byte, 2)
	if err := d2.ReadAt(4, got); err != nil {
		t.Fatalf("ReadAt: %v", err)
	}
	if got[0] != 0xAA || got[1] != 0xBB {
		t.Errorf("got %02X, want AA BB", got)
	}
}

func TestFileDriverRejectsSizeMismatch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nvm.bin")
	if _, err := OpenFileDriver(path, 32); err != nil {
		t.Fatalf("OpenFileDriver: %v", err)
	}
	if _, err := OpenFileDriver(path, 64); err == nil {
		t.Fatal("expected size mismatch error")
	}
}
