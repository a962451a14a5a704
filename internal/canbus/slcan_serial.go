package canbus

import (
	"bufio"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.bug.st/serial"
)

// DefaultSlcanBaudRate matches the baud rate most Lawicel-class
// slcan/USB-CAN adapters default to.
const DefaultSlcanBaudRate = 115200

// SlcanSerial is a Transport for serial-attached CAN adapters speaking
// the slcan ASCII line protocol: each standard-frame transmit/receive is
// a line of the form "tIIILDD...\r" (three hex ID digits, one length
// digit, L data bytes as hex pairs).
type SlcanSerial struct {
	mu       sync.Mutex
	port     serial.Port
	reader   *bufio.Reader
	portName string
	isOpen   bool
}

// NewSlcanSerial creates a connection to a slcan adapter on portName
// (not yet opened). The adapter's own CAN bitrate is configured out of
// band (e.g. via its own "Sxx" command or a prior utility); this
// transport only speaks the frame send/receive subset of the protocol.
func NewSlcanSerial(portName string) *SlcanSerial {
	return &SlcanSerial{portName: portName}
}

// Open opens the serial port at DefaultSlcanBaudRate, 8N1, and issues the
// slcan "open channel" command.
func (s *SlcanSerial) Open() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.isOpen {
		return nil
	}
	mode := &serial.Mode{
		BaudRate: DefaultSlcanBaudRate,
		DataBits: 8,
		StopBits: serial.OneStopBit,
		Parity:   serial.NoParity,
	}
	port, err := serial.Open(s.portName, mode)
	if err != nil {
		return fmt.Errorf("canbus: open slcan port %s: %w", s.portName, err)
	}
	if err := port.SetReadTimeout(200 * time.Millisecond); err != nil {
		port.Close()
		return fmt.Errorf("canbus: set slcan read timeout: %w", err)
	}
	if _, err := port.Write([]byte("O\r")); err != nil {
		port.Close()
		return fmt.Errorf("canbus: open slcan channel: %w", err)
	}
	s.port = port
	s.reader = bufio.NewReader(port)
	s.isOpen = true
	slog.Info("slcan port opened", "port", s.portName)
	return nil
}

// Send encodes f as a slcan "t" transmit line and writes it.
func (s *SlcanSerial) Send(f Frame) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.isOpen {
		return fmt.Errorf("canbus: slcan port not open")
	}
	var b strings.Builder
	fmt.Fprintf(&b, "t%03X%d", f.ID&0x7FF, f.DLC)
	for _, by := range f.Payload() {
		fmt.Fprintf(&b, "%02X", by)
	}
	b.WriteByte('\r')
	if _, err := s.port.Write([]byte(b.String())); err != nil {
		return fmt.Errorf("canbus: slcan write: %w", err)
	}
	return nil
}

// TryRecv reads and decodes the next slcan "t" frame line, if any is
// already buffered. It returns ErrNoFrame on a read timeout.
func (s *SlcanSerial) TryRecv() (Frame, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.isOpen {
		return Frame{}, fmt.Errorf("canbus: slcan port not open")
	}
	line, err := s.reader.ReadString('\r')
	if err != nil {
		return Frame{}, ErrNoFrame
	}
	return parseSlcanLine(strings.TrimSuffix(line, "\r"))
}

func parseSlcanLine(line string) (Frame, error) {
	if len(line) < 5 || line[0] != 't' {
		return Frame{}, ErrNoFrame
	}
	id, err := strconv.ParseUint(line[1:4], 16, 16)
	if err != nil {
		return Frame{}, fmt.Errorf("canbus: slcan id: %w", err)
	}
	dlc, err := strconv.ParseUint(line[4:5], 10, 8)
	if err != nil || dlc > 8 {
		return Frame{}, fmt.Errorf("canbus: slcan dlc: %w", err)
	}
	var f Frame
	f.ID = uint16(id)
	f.DLC = uint8(dlc)
	body := line[5:]
	for i := 0; i < int(dlc); i++ {
		if len(body) < (i+1)*2 {
			return Frame{}, fmt.Errorf("canbus: slcan truncated frame")
		}
		v, err := strconv.ParseUint(body[i*2:i*2+2], 16, 8)
		if err != nil {
			return Frame{}, fmt.Errorf("canbus: slcan data byte: %w", err)
		}
		f.Data[i] = byte(v)
	}
	return f, nil
}

// Close issues the slcan "close channel" command and closes the port.
func (s *SlcanSerial) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.isOpen {
		return nil
	}
	s.port.Write([]byte("C\r"))
	err := s.port.Close()
	s.isOpen = false
	s.port = nil
	slog.Info("slcan port closed", "port", s.portName)
	return err
}

// ListSlcanPorts returns available serial ports on the system.
func ListSlcanPorts() ([]string, error) {
	ports, err := serial.GetPortsList()
	if err != nil {
		return nil, fmt.Errorf("canbus: list serial ports: %w", err)
	}
	return ports, nil
}
