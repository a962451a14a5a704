// Package dtcstore implements the fixed-capacity DTC (Diagnostic
// Trouble Code) record catalogue: a slot-indexed table persisted in the
// responder's NVM region, with find/set/get/clear semantics and FIFO
// eviction once every slot is occupied.
package dtcstore

import "encoding/binary"

// CodeMask isolates the 24 significant bits of a DTC code; the top byte
// is reserved and ignored in all comparisons.
const CodeMask = 0x00FFFFFF

// Sentinel dtc_code values that mark a slot's state rather than naming
// an actual fault.
const (
	codeErased  = 0xFFFFFFFF
	codeCleared = 0x00000000
)

// SlotSize is the fixed on-disk size of one record, matching the
// original firmware's SLOT_SIZE. The live fields occupy the first 10
// bytes; the remainder is reserved and reads back as 0xFF in an erased
// slot.
const SlotSize = 32

// recordLiveBytes is the number of bytes actually (de)serialized by
// Marshal/Unmarshal; the rest of a SlotSize-byte slot is reserved.
const recordLiveBytes = 10

// Snapshot captures environmental data at the moment a DTC was set.
type Snapshot struct {
	Temperature uint8
	Day         uint8
	Month       uint8
	Year        uint16
}

// Record is one DTC catalogue entry as stored on disk.
type Record struct {
	Code     uint32
	Status   uint8
	Snapshot Snapshot
}

// Marshal serializes r into a SlotSize-byte slot. Per the original
// firmware's raw little-endian word layout, confirmed by find()'s
// explicit little-endian reconstruction, dtc_code is stored
// little-endian; the snapshot's year field is stored big-endian, per
// its "year_hi, year_lo" byte labeling. This mixed ordering is
// deliberate, not an inconsistency: it mirrors exactly how the two
// fields were written by the original implementation.
func (r Record) Marshal() []byte {
	buf := make([]byte, SlotSize)
	for i := recordLiveBytes; i < SlotSize; i++ {
		buf[i] = 0xFF
	}
	binary.LittleEndian.PutUint32(buf[0:4], r.Code)
	buf[4] = r.Status
	buf[5] = r.Snapshot.Temperature
	buf[6] = r.Snapshot.Day
	buf[7] = r.Snapshot.Month
	binary.BigEndian.PutUint16(buf[8:10], r.Snapshot.Year)
	return buf
}

// Unmarshal decodes a SlotSize-byte slot into a Record. It does not
// interpret slot state (erased/cleared/active); callers consult Code
// for that.
func Unmarshal(buf []byte) Record {
	var r Record
	r.Code = binary.LittleEndian.Uint32(buf[0:4])
	r.Status = buf[4]
	r.Snapshot.Temperature = buf[5]
	r.Snapshot.Day = buf[6]
	r.Snapshot.Month = buf[7]
	r.Snapshot.Year = binary.BigEndian.Uint16(buf[8:10])
	return r
}
