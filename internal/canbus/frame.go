// Package canbus abstracts the raw CAN mailbox driver behind the two
// primitives this responder actually consumes: send_frame and
// try_recv_frame. Mailbox register programming, clock trees, and pin mux
// live outside this module entirely.
package canbus

import "fmt"

// Frame is one classical-CAN frame: an 11-bit identifier, a data length
// code (0-8), and up to 8 payload bytes.
type Frame struct {
	ID   uint16
	DLC  uint8
	Data [8]byte
}

// Payload returns the frame's data trimmed to its DLC.
func (f Frame) Payload() []byte {
	n := f.DLC
	if n > 8 {
		n = 8
	}
	return f.Data[:n]
}

func (f Frame) String() string {
	return fmt.Sprintf("id=0x%03X dlc=%d data=% 02X", f.ID, f.DLC, f.Data[:f.DLC])
}

// NewFrame builds a Frame from an identifier and payload, padding or
// truncating the payload to fit the 8-byte data field and setting DLC to
// the payload's length.
func NewFrame(id uint16, payload []byte) Frame {
	var f Frame
	f.ID = id
	n := len(payload)
	if n > 8 {
		n = 8
	}
	f.DLC = uint8(n)
	copy(f.Data[:], payload[:n])
	return f
}
