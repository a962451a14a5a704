//go:build !linux

package canbus

import "fmt"

// SocketCAN is the non-Linux build's stand-in: AF_CAN/PF_CAN sockets are
// a Linux kernel feature, so on every other platform OpenSocketCAN fails
// and slcan-over-serial (see NewSlcanSerial) is the usable transport.
type SocketCAN struct{}

// OpenSocketCAN always fails outside Linux.
func OpenSocketCAN(ifname string) (*SocketCAN, error) {
	return nil, fmt.Errorf("canbus: SocketCAN (%q) is only supported on linux; use --serial-port instead", ifname)
}

func (s *SocketCAN) Send(f Frame) error {
	return fmt.Errorf("canbus: SocketCAN unavailable on this platform")
}

func (s *SocketCAN) TryRecv() (Frame, error) {
	return Frame{}, fmt.Errorf("canbus: SocketCAN unavailable on this platform")
}

func (s *SocketCAN) Close() error {
	return nil
}
