//go:build linux

package canbus

import (
	"fmt"
	"unsafe"

	"golang.org/x/sys/unix"
)

// sockaddrCAN mirrors struct sockaddr_can for AF_CAN/PF_CAN sockets: a
// 16-bit family, the interface index resolved from its name, and the
// protocol-specific address union (unused for raw CAN_RAW sockets).
type sockaddrCAN struct {
	family  uint16
	ifindex int32
	addr    [16]byte
}

// canFrame mirrors struct can_frame from linux/can.h: a 32-bit ID (with
// the EFF/RTR/ERR flag bits folded in, unused here since this responder
// only ever deals in 11-bit identifiers), a length byte, 3 bytes of
// padding the kernel expects, and an 8-byte data payload.
type canFrame struct {
	id   uint32
	dlc  uint8
	pad  [3]byte
	data [8]byte
}

// SocketCAN is a Transport backed by a Linux AF_CAN/SOCK_RAW socket bound
// to a named CAN interface (e.g. "can0", or "vcan0" for the virtual CAN
// driver used in development).
type SocketCAN struct {
	fd int
}

// OpenSocketCAN binds a raw CAN_RAW socket to ifname.
func OpenSocketCAN(ifname string) (*SocketCAN, error) {
	fd, err := unix.Socket(unix.AF_CAN, unix.SOCK_RAW, unix.CAN_RAW)
	if err != nil {
		return nil, fmt.Errorf("canbus: socket: %w", err)
	}
	ifi, err := unix.IfNameToIndex(ifname)
	if err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("canbus: resolve interface %q: %w", ifname, err)
	}
	addr := sockaddrCAN{family: unix.AF_CAN, ifindex: int32(ifi)}
	_, _, errno := unix.Syscall(unix.SYS_BIND, uintptr(fd),
		uintptr(unsafe.Pointer(&addr)), unsafe.Sizeof(addr))
	if errno != 0 {
		unix.Close(fd)
		return nil, fmt.Errorf("canbus: bind %q: %w", ifname, errno)
	}
	if err := unix.SetNonblock(fd, true); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("canbus: set nonblock: %w", err)
	}
	return &SocketCAN{fd: fd}, nil
}

// Send transmits f as a single can_frame.
func (s *SocketCAN) Send(f Frame) error {
	var cf canFrame
	cf.id = uint32(f.ID) & unix.CAN_SFF_MASK
	cf.dlc = f.DLC
	copy(cf.data[:], f.Data[:])
	_, _, errno := unix.Syscall(unix.SYS_WRITE, uintptr(s.fd),
		uintptr(unsafe.Pointer(&cf)), unsafe.Sizeof(cf))
	if errno != 0 {
		return fmt.Errorf("canbus: write: %w", errno)
	}
	return nil
}

// TryRecv performs a non-blocking read of the next available can_frame.
// It returns ErrNoFrame when the socket has nothing queued.
func (s *SocketCAN) TryRecv() (Frame, error) {
	var cf canFrame
	n, _, errno := unix.Syscall(unix.SYS_READ, uintptr(s.fd),
		uintptr(unsafe.Pointer(&cf)), unsafe.Sizeof(cf))
	if errno == unix.EAGAIN || errno == unix.EWOULDBLOCK {
		return Frame{}, ErrNoFrame
	}
	if errno != 0 {
		return Frame{}, fmt.Errorf("canbus: read: %w", errno)
	}
	if int(n) < int(unsafe.Sizeof(cf)) {
		return Frame{}, ErrNoFrame
	}
	var f Frame
	f.ID = uint16(cf.id & unix.CAN_SFF_MASK)
	f.DLC = cf.dlc
	copy(f.Data[:], cf.data[:])
	return f, nil
}

// Close releases the underlying socket.
func (s *SocketCAN) Close() error {
	return unix.Close(s.fd)
}
