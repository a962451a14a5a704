package isotp

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/kbuckham/udsd/internal/canbus"
)

// defaultNBs is how long the transmitter waits for a Flow Control frame
// after sending a First Frame before giving up.
const defaultNBs = 1000 * time.Millisecond

// Link transmits ISO-TP PDUs over a canbus.Transport, serializing access
// the same way the teacher's ECU serializes its send+receive cycles with
// busMu — here so two Send calls on the same Link can never interleave
// their frames on the same CAN identifier.
type Link struct {
	tx      canbus.Transport
	txID    uint16
	busMu   sync.Mutex
	nBs     time.Duration
	sleepFn func(time.Duration)
}

// NewLink returns a Link sending frames with identifier txID over tx.
func NewLink(tx canbus.Transport, txID uint16) *Link {
	return &Link{tx: tx, txID: txID, nBs: defaultNBs, sleepFn: time.Sleep}
}

// Send segments payload and transmits it. Payloads of 7 bytes or fewer
// go out as a single Single Frame. Longer payloads are sent as a First
// Frame followed by Consecutive Frames, with real Flow Control parsing
// (FS/BS/STmin) between frames rather than a fixed delay.
func (l *Link) Send(payload []byte) error {
	if len(payload) > MaxPDULen {
		return fmt.Errorf("isotp: payload length %d exceeds max %d", len(payload), MaxPDULen)
	}

	l.busMu.Lock()
	defer l.busMu.Unlock()

	if len(payload) <= sfMaxLen {
		return l.sendSingleFrame(payload)
	}
	return l.sendMultiFrame(payload)
}

func (l *Link) sendSingleFrame(payload []byte) error {
	data := make([]byte, 1+len(payload))
	data[0] = byte(pciSingleFrame<<4) | byte(len(payload))
	copy(data[1:], payload)
	return l.tx.Send(canbus.NewFrame(l.txID, data))
}

func (l *Link) sendMultiFrame(payload []byte) error {
	data := make([]byte, 8)
	data[0] = byte(pciFirstFrame<<4) | byte((len(payload)>>8)&0x0F)
	data[1] = byte(len(payload) & 0xFF)
	copy(data[2:], payload[:ffDataLen])
	if err := l.tx.Send(canbus.NewFrame(l.txID, data)); err != nil {
		return fmt.Errorf("isotp: send first frame: %w", err)
	}
	slog.Debug("isotp: first frame sent", "total_len", len(payload))
	remaining := payload[ffDataLen:]

	sent := 0
	blockSize := 0
	stmin := time.Duration(0)
	sn := byte(1)
	awaitFC := true
	for len(remaining) > 0 {
		if awaitFC {
			fs, bs, st, err := l.awaitFlowControl()
			if err != nil {
				return err
			}
			switch fs {
			case fsOverflow:
				return fmt.Errorf("isotp: flow control reported overflow")
			case fsWait:
				continue
			}
			blockSize = int(bs)
			stmin = decodeSTmin(st)
			sent = 0
			awaitFC = false
		}

		n := cfDataLen
		if n > len(remaining) {
			n = len(remaining)
		}
		frame := make([]byte, 8)
		frame[0] = byte(pciConsecutive<<4) | (sn & 0x0F)
		copy(frame[1:1+n], remaining[:n])
		for i := 1 + n; i < 8; i++ {
			frame[i] = padByte
		}
		if err := l.tx.Send(canbus.NewFrame(l.txID, frame)); err != nil {
			return fmt.Errorf("isotp: send consecutive frame: %w", err)
		}
		remaining = remaining[n:]
		sn = (sn + 1) % 16
		sent++
		if blockSize > 0 && sent == blockSize {
			awaitFC = true
		}
		if len(remaining) > 0 {
			l.sleepFn(stmin)
		}
	}
	slog.Debug("isotp: multi-frame send complete", "total_len", len(payload))
	return nil
}

// awaitFlowControl polls the transport for an inbound Flow Control frame
// for up to nBs, returning its flow status, block size, and STmin byte.
func (l *Link) awaitFlowControl() (fs byte, bs byte, stmin byte, err error) {
	deadline := time.Now().Add(l.nBs)
	for time.Now().Before(deadline) {
		f, rerr := l.tx.TryRecv()
		if rerr != nil {
			l.sleepFn(time.Millisecond)
			continue
		}
		data := f.Payload()
		if len(data) < 3 || data[0]>>4 != pciFlowControl {
			continue
		}
		return data[0] & 0x0F, data[1], data[2], nil
	}
	return 0, 0, 0, fmt.Errorf("isotp: timed out waiting for flow control")
}

// decodeSTmin interprets an STmin byte per ISO 15765-2: 0x00-0x7F is
// 0-127 ms; 0xF1-0xF9 is 100-900 microseconds; other values are
// reserved and treated as 0.
func decodeSTmin(b byte) time.Duration {
	switch {
	case b <= 0x7F:
		return time.Duration(b) * time.Millisecond
	case b >= 0xF1 && b <= 0xF9:
		return time.Duration(b-0xF0) * 100 * time.Microsecond
	default:
		return 0
	}
}
