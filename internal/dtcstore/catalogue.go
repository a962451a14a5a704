package dtcstore

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/kbuckham/udsd/internal/store"
)

// StoreError wraps a persistence failure encountered while servicing a
// catalogue operation. The UDS dispatcher maps it to
// NRC_GeneralProgrammingFailure on write paths.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("dtcstore: %s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }

// Catalogue is a fixed-capacity, slot-indexed table of DTC records
// persisted inside an NVM region starting at baseOffset. The original
// firmware runs on a single-threaded cooperative loop and needs no
// locking of its own; this responder also runs a background overheat
// monitor goroutine (see internal/monitor) that can call Set
// concurrently with the main dispatch loop, so the catalogue guards its
// cursor and every NVM access with a mutex.
type Catalogue struct {
	mu            sync.Mutex
	nvm           *store.NVM
	baseOffset    int
	count         int
	nextOverwrite int
}

// New returns a Catalogue over count slots of the nvm region starting at
// baseOffset.
func New(nvm *store.NVM, baseOffset, count int) *Catalogue {
	return &Catalogue{nvm: nvm, baseOffset: baseOffset, count: count}
}

// Count returns the catalogue's static slot capacity.
func (c *Catalogue) Count() int {
	return c.count
}

func (c *Catalogue) slotOffset(index int) int {
	return c.baseOffset + index*SlotSize
}

func (c *Catalogue) readSlot(index int) (Record, error) {
	buf := make([]byte, SlotSize)
	if err := c.nvm.Read(c.slotOffset(index), buf); err != nil {
		return Record{}, &StoreError{Op: "read slot", Err: err}
	}
	return Unmarshal(buf), nil
}

func (c *Catalogue) writeSlot(index int, r Record) error {
	if err := c.nvm.Write(c.slotOffset(index), r.Marshal()); err != nil {
		return &StoreError{Op: "write slot", Err: err}
	}
	return nil
}

func (c *Catalogue) eraseSlot(index int) error {
	if err := c.nvm.Erase(c.slotOffset(index), SlotSize); err != nil {
		return &StoreError{Op: "erase slot", Err: err}
	}
	return nil
}

// find locates the first slot whose low-24 bits equal code & CodeMask,
// skipping erased and cleared slots. A slot's dtc_code is
// reconstructed little-endian from its raw bytes to mirror the
// original's word-addressed read.
func (c *Catalogue) find(code uint32) (int, bool, error) {
	want := code & CodeMask
	for i := 0; i < c.count; i++ {
		r, err := c.readSlot(i)
		if err != nil {
			return 0, false, err
		}
		if r.Code == codeErased || r.Code == codeCleared {
			continue
		}
		if r.Code&CodeMask == want {
			return i, true, nil
		}
	}
	return 0, false, nil
}

// findEmpty locates the first erased (0xFFFFFFFF) slot, separate from
// find to avoid overloading it with sentinel semantics.
func (c *Catalogue) findEmpty() (int, bool, error) {
	for i := 0; i < c.count; i++ {
		r, err := c.readSlot(i)
		if err != nil {
			return 0, false, err
		}
		if r.Code == codeErased {
			return i, true, nil
		}
	}
	return 0, false, nil
}

// Find returns the index of the active slot whose low-24 bits match
// code, or false if none matches.
func (c *Catalogue) Find(code uint32) (int, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.find(code)
}

// Set inserts or updates a record for code. If the code already occupies
// a slot, that slot is overwritten in place. Otherwise the first empty
// slot is used; if none is empty, the slot named by the FIFO
// next-overwrite cursor is reused and the cursor advances modulo Count.
// A nil snapshot zeroes the record's snapshot bytes.
func (c *Catalogue) Set(code uint32, status uint8, snapshot *Snapshot) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	rec := Record{Code: code, Status: status}
	if snapshot != nil {
		rec.Snapshot = *snapshot
	}

	if idx, ok, err := c.find(code); err != nil {
		return err
	} else if ok {
		slog.Debug("dtcstore: updating existing record", "code", fmt.Sprintf("%#06x", code&CodeMask), "slot", idx)
		return c.writeSlot(idx, rec)
	}

	if idx, ok, err := c.findEmpty(); err != nil {
		return err
	} else if ok {
		slog.Debug("dtcstore: setting new record", "code", fmt.Sprintf("%#06x", code&CodeMask), "slot", idx)
		return c.writeSlot(idx, rec)
	}

	idx := c.nextOverwrite
	c.nextOverwrite = (c.nextOverwrite + 1) % c.count
	slog.Debug("dtcstore: FIFO eviction", "code", fmt.Sprintf("%#06x", code&CodeMask), "slot", idx)
	return c.writeSlot(idx, rec)
}

// Get reads the record at index. It returns ok=false if the slot is
// erased or cleared, even though the underlying read succeeded.
func (c *Catalogue) Get(index int) (Record, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	r, err := c.readSlot(index)
	if err != nil {
		return Record{}, false, err
	}
	if r.Code == codeErased || r.Code == codeCleared {
		return Record{}, false, nil
	}
	return r, true, nil
}

// Clear erases DTCs matching codeOrGroup. A group value of 0xFFFFFF
// (ISO 14229-1's "all groups" sentinel) erases every slot; any other
// value erases only the single matching slot, if one exists. Clearing a
// DTC that isn't present is not an error.
func (c *Catalogue) Clear(codeOrGroup uint32) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if codeOrGroup&CodeMask == CodeMask {
		slog.Debug("dtcstore: clearing all groups")
		for i := 0; i < c.count; i++ {
			if err := c.eraseSlot(i); err != nil {
				return err
			}
		}
		return nil
	}

	idx, ok, err := c.find(codeOrGroup)
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}
	slog.Debug("dtcstore: clearing record", "code", fmt.Sprintf("%#06x", codeOrGroup&CodeMask), "slot", idx)
	return c.eraseSlot(idx)
}

// ActiveRecords returns every active (non-erased, non-cleared) record
// along with its slot index, in slot order.
func (c *Catalogue) ActiveRecords() ([]int, []Record, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var idxs []int
	var recs []Record
	for i := 0; i < c.count; i++ {
		r, err := c.readSlot(i)
		if err != nil {
			return nil, nil, err
		}
		if r.Code == codeErased || r.Code == codeCleared {
			continue
		}
		idxs = append(idxs, i)
		recs = append(recs, r)
	}
	return idxs, recs, nil
}
