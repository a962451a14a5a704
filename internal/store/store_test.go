package store

import "testing"

func TestNVMReadWriteRoundTrip(t *testing.T) {
	n := New(NewMemDriver(64))
	src := []byte{0x01, 0x02, 0x03, 0x04}
	if err := n.Write(8, src); err != nil {
		t.Fatalf("Write: %v", err)
	}
	got := make([]byte, 4)
	if err := n.Read(8, got); err != nil {
		t.Fatalf("Read: %v", err)
	}
	for i, b := range src {
		if got[i] != b {
			t.Errorf("byte %d = %02X, want %02X", i, got[i], b)
		}
	}
}

func TestNVMReadOutOfRange(t *testing.T) {
	n := New(NewMemDriver(16))
	err := n.Read(10, make([]byte, 10))
	if err == nil {
		t.Fatal("expected error for out-of-range read")
	}
	var ip *ErrInvalidParam
	if !asInvalidParam(err, &ip) {
		t.Errorf("expected ErrInvalidParam, got %T: %v", err, err)
	}
}

func TestNVMWriteOutOfRange(t *testing.T) {
	n := New(NewMemDriver(16))
	if err := n.Write(15, []byte{1, 2}); err == nil {
		t.Fatal("expected error for out-of-range write")
	}
}

func TestNVMErase(t *testing.T) {
	n := New(NewMemDriver(16))
	if err := n.Write(0, []byte{1, 2, 3, 4}); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := n.Erase(0, 4); err != nil {
		t.Fatalf("Erase: %v", err)
	}
	got := make([]byte, 4)
	n.Read(0, got)
	for i, b := range got {
		if b != 0xFF {
			t.Errorf("byte %d = %02X after erase, want 0xFF", i, b)
		}
	}
}

func TestNewMemDriverStartsErased(t *testing.T) {
	d := NewMemDriver(8)
	got := make([]byte, 8)
	d.ReadAt(0, got)
	for i, b := range got {
		if b != 0xFF {
			t.Errorf("byte %d = %02X, want 0xFF (erased)", i, b)
		}
	}
}

func asInvalidParam(err error, target **ErrInvalidParam) bool {
	ip, ok := err.(*ErrInvalidParam)
	if ok {
		*target = ip
	}
	return ok
}
