// Package store implements the bounded, offset-addressed persistent
// region the responder's DTC and DID state lives in: an emulated-EEPROM
// abstraction sitting on top of whatever flash driver a given platform
// provides.
package store

import (
	"fmt"
	"log/slog"
)

// ErrInvalidParam is returned when an operation's offset/length would
// read or write outside the region, or a destination/source buffer
// doesn't match the requested length.
type ErrInvalidParam struct {
	Op     string
	Offset int
	Len    int
	Size   int
}

func (e *ErrInvalidParam) Error() string {
	return fmt.Sprintf("store: invalid param for %s at offset %d len %d (region size %d)",
		e.Op, e.Offset, e.Len, e.Size)
}

// ErrDriver wraps a failure surfaced by the underlying Driver.
type ErrDriver struct {
	Op  string
	Err error
}

func (e *ErrDriver) Error() string {
	return fmt.Sprintf("store: driver error during %s: %v", e.Op, e.Err)
}

func (e *ErrDriver) Unwrap() error { return e.Err }

// Driver is the narrow flash/EEPROM primitive a platform must supply.
// Write is specified to handle any erase-before-write transparently;
// implementations on platforms with native block-erase primitives may
// substitute their own erase-then-program sequence, but callers of NVM
// never need to erase before writing.
type Driver interface {
	ReadAt(offset int, dest []byte) error
	WriteAt(offset int, src []byte) error
	EraseAt(offset, length int) error
	Size() int
}

// NVM is the bounded persistent store: it validates every request
// against the region size before delegating to the Driver, so handlers
// never need to reason about the underlying flash geometry.
type NVM struct {
	driver Driver
}

// New wraps driver in a validating NVM store.
func New(driver Driver) *NVM {
	return &NVM{driver: driver}
}

// Size returns the region's total addressable length in bytes.
func (n *NVM) Size() int {
	return n.driver.Size()
}

// Read fills dest with region bytes starting at offset.
func (n *NVM) Read(offset int, dest []byte) error {
	if offset < 0 || len(dest) < 0 || offset+len(dest) > n.driver.Size() {
		return &ErrInvalidParam{Op: "read", Offset: offset, Len: len(dest), Size: n.driver.Size()}
	}
	if err := n.driver.ReadAt(offset, dest); err != nil {
		return &ErrDriver{Op: "read", Err: err}
	}
	return nil
}

// Write replaces region bytes starting at offset with src, erasing the
// underlying flash first if the driver requires it.
func (n *NVM) Write(offset int, src []byte) error {
	if offset < 0 || offset+len(src) > n.driver.Size() {
		return &ErrInvalidParam{Op: "write", Offset: offset, Len: len(src), Size: n.driver.Size()}
	}
	if err := n.driver.WriteAt(offset, src); err != nil {
		return &ErrDriver{Op: "write", Err: err}
	}
	slog.Debug("store: write", "offset", offset, "len", len(src))
	return nil
}

// Erase sets length region bytes starting at offset to 0xFF.
func (n *NVM) Erase(offset, length int) error {
	if offset < 0 || length < 0 || offset+length > n.driver.Size() {
		return &ErrInvalidParam{Op: "erase", Offset: offset, Len: length, Size: n.driver.Size()}
	}
	if err := n.driver.EraseAt(offset, length); err != nil {
		return &ErrDriver{Op: "erase", Err: err}
	}
	slog.Debug("store: erase", "offset", offset, "len", length)
	return nil
}
