package isotp

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/kbuckham/udsd/internal/canbus"
)

// TransportErrorKind classifies a reassembly failure. ISO-TP-level
// errors are handled locally and never become UDS negative responses.
type TransportErrorKind int

const (
	SequenceMismatch TransportErrorKind = iota
	LengthMismatch
	Timeout
)

func (k TransportErrorKind) String() string {
	switch k {
	case SequenceMismatch:
		return "sequence mismatch"
	case LengthMismatch:
		return "length mismatch"
	case Timeout:
		return "timeout"
	default:
		return "unknown"
	}
}

// TransportError reports why a partial PDU was discarded.
type TransportError struct {
	Kind TransportErrorKind
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("isotp: %s", e.Kind)
}

type reassemblerState int

const (
	stateIdle reassemblerState = iota
	stateWaitingCF
)

// defaultNCr is the per-frame Consecutive Frame timeout.
const defaultNCr = 1000 * time.Millisecond

// Reassembler implements the ISO-TP receive-side state machine: Idle,
// and Waiting_CF once a First Frame has been accepted. It enforces
// sequence-number continuity, total-length consistency against the
// First Frame's declared length, and a per-frame timeout.
type Reassembler struct {
	tx   canbus.Transport
	txID uint16

	state       reassemblerState
	expectedLen int
	buf         []byte
	expectedSN  byte
	deadline    time.Time
	nCr         time.Duration
}

// NewReassembler returns an idle Reassembler that emits Flow Control
// frames on txID via tx when a First Frame arrives.
func NewReassembler(tx canbus.Transport, txID uint16) *Reassembler {
	return &Reassembler{tx: tx, txID: txID, nCr: defaultNCr}
}

// Feed advances the state machine with one inbound CAN frame. It
// returns (pdu, true, nil) when a complete PDU has been reassembled,
// (nil, false, nil) when more frames are needed, and (nil, false, err)
// when the partial PDU was discarded due to a protocol violation; the
// caller should not reply to the UDS layer for a non-nil err.
func (r *Reassembler) Feed(f canbus.Frame) ([]byte, bool, error) {
	data := f.Payload()
	if len(data) == 0 {
		return nil, false, nil
	}

	if r.state == stateWaitingCF && time.Now().After(r.deadline) {
		r.reset()
		return nil, false, &TransportError{Kind: Timeout}
	}

	pciType := data[0] >> 4
	switch pciType {
	case pciSingleFrame:
		n := int(data[0] & 0x0F)
		if n == 0 || len(data) < 1+n {
			return nil, false, nil
		}
		r.reset()
		slog.Debug("isotp: single frame reassembled", "len", n)
		return append([]byte(nil), data[1:1+n]...), true, nil

	case pciFirstFrame:
		if len(data) < 2 {
			return nil, false, nil
		}
		length := int(data[0]&0x0F)<<8 | int(data[1])
		r.buf = make([]byte, 0, length)
		r.buf = append(r.buf, data[2:]...)
		r.expectedLen = length
		r.expectedSN = 1
		r.state = stateWaitingCF
		r.deadline = time.Now().Add(r.nCr)
		r.sendFlowControl()
		slog.Debug("isotp: first frame received, waiting for consecutive frames",
			"expected_len", length, "buffered", len(r.buf))
		return nil, false, nil

	case pciConsecutive:
		if r.state != stateWaitingCF {
			return nil, false, nil
		}
		sn := data[0] & 0x0F
		if sn != r.expectedSN {
			r.reset()
			return nil, false, &TransportError{Kind: SequenceMismatch}
		}
		need := r.expectedLen - len(r.buf)
		take := len(data) - 1
		if take > need {
			take = need
		}
		r.buf = append(r.buf, data[1:1+take]...)
		r.expectedSN = (r.expectedSN + 1) % 16
		r.deadline = time.Now().Add(r.nCr)

		if len(r.buf) > r.expectedLen {
			r.reset()
			return nil, false, &TransportError{Kind: LengthMismatch}
		}
		if len(r.buf) == r.expectedLen {
			pdu := r.buf
			r.reset()
			slog.Debug("isotp: multi-frame reassembly complete", "len", len(pdu))
			return pdu, true, nil
		}
		slog.Debug("isotp: consecutive frame accepted", "sn", sn, "buffered", len(r.buf), "expected_len", r.expectedLen)
		return nil, false, nil

	default:
		return nil, false, nil
	}
}

func (r *Reassembler) reset() {
	r.state = stateIdle
	r.buf = nil
	r.expectedLen = 0
	r.expectedSN = 0
}

// sendFlowControl emits a ClearToSend Flow Control frame with no block
// size limit and no enforced separation time.
func (r *Reassembler) sendFlowControl() {
	fc := []byte{byte(pciFlowControl<<4) | fsContinueToSend, 0x00, 0x00, 0, 0, 0, 0, 0}
	r.tx.Send(canbus.NewFrame(r.txID, fc))
}
