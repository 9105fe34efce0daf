// Package proctable is the coordinator's bounded registry of worker slots.
package proctable

import (
	"errors"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/wesleyorama2/oss/internal/simclock"
)

// DefaultCapacity is the table ceiling used when none is configured.
const DefaultCapacity = 20

var (
	// ErrSlotFree is returned when releasing a slot that is not occupied.
	ErrSlotFree = errors.New("proctable: slot already free")
	// ErrSlotOccupied is returned when occupying a slot that is in use.
	ErrSlotOccupied = errors.New("proctable: slot occupied")
	// ErrSlotRange is returned for an index outside the table.
	ErrSlotRange = errors.New("proctable: slot out of range")
)

// PCB is one process control block. PID, StartTime and MessagesSent are
// only meaningful while Occupied is set.
type PCB struct {
	Occupied     bool
	PID          int
	StartTime    simclock.Time
	MessagesSent int
}

// Table is a fixed-capacity, ordered set of PCBs. It is owned by a single
// goroutine and does no locking.
type Table struct {
	entries  []PCB
	occupied int
}

// New creates an empty table with the given capacity.
func New(capacity int) *Table {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Table{entries: make([]PCB, capacity)}
}

// Capacity returns the number of slots.
func (t *Table) Capacity() int { return len(t.entries) }

// Occupied returns the number of occupied slots.
func (t *Table) Occupied() int { return t.occupied }

// Entry returns a copy of the PCB at slot.
func (t *Table) Entry(slot int) PCB {
	return t.entries[slot]
}

// FindFreeSlot returns the lowest free slot index.
func (t *Table) FindFreeSlot() (int, bool) {
	for i := range t.entries {
		if !t.entries[i].Occupied {
			return i, true
		}
	}
	return -1, false
}

// Occupy claims slot for pid, started at start.
func (t *Table) Occupy(slot, pid int, start simclock.Time) error {
	if err := t.check(slot); err != nil {
		return err
	}
	if t.entries[slot].Occupied {
		return fmt.Errorf("%w: slot %d held by %d", ErrSlotOccupied, slot, t.entries[slot].PID)
	}

	t.entries[slot] = PCB{Occupied: true, PID: pid, StartTime: start}
	t.occupied++
	return nil
}

// Release frees slot. Releasing a free slot returns ErrSlotFree and
// changes nothing.
func (t *Table) Release(slot int) error {
	if err := t.check(slot); err != nil {
		return err
	}
	if !t.entries[slot].Occupied {
		return fmt.Errorf("%w: slot %d", ErrSlotFree, slot)
	}

	t.entries[slot].Occupied = false
	t.occupied--
	return nil
}

// RecordMessage counts one message sent to the worker in slot.
func (t *Table) RecordMessage(slot int) {
	t.entries[slot].MessagesSent++
}

// FindByPID returns the occupied slot owned by pid.
func (t *Table) FindByPID(pid int) (int, bool) {
	for i := range t.entries {
		if t.entries[i].Occupied && t.entries[i].PID == pid {
			return i, true
		}
	}
	return -1, false
}

// NextOccupiedFrom scans circularly from index, wrapping once, and returns
// the first occupied slot. Callers resume from the slot after the one they
// serviced, which visits every occupied slot before any slot twice.
func (t *Table) NextOccupiedFrom(index int) (int, bool) {
	n := len(t.entries)
	if n == 0 {
		return -1, false
	}
	index = ((index % n) + n) % n
	for i := 0; i < n; i++ {
		slot := (index + i) % n
		if t.entries[slot].Occupied {
			return slot, true
		}
	}
	return -1, false
}

// WriteSnapshot renders every slot as an aligned table.
func (t *Table) WriteSnapshot(w io.Writer) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "Entry\tOccupied\tPID\tStartSec\tStartNano\tMessagesSent")
	for i, e := range t.entries {
		occupied := 0
		if e.Occupied {
			occupied = 1
		}
		fmt.Fprintf(tw, "%d\t%d\t%d\t%d\t%d\t%d\n",
			i, occupied, e.PID, e.StartTime.Seconds, e.StartTime.Nanos, e.MessagesSent)
	}
	return tw.Flush()
}

func (t *Table) check(slot int) error {
	if slot < 0 || slot >= len(t.entries) {
		return fmt.Errorf("%w: %d", ErrSlotRange, slot)
	}
	return nil
}
