package walstream

import (
	"errors"
	"fmt"
	"sync/atomic"
)

// SenderState is the advertised lifecycle state of one sender, published
// into its slot for monitoring (spec.md §3, §9).
type SenderState uint32

const (
	StateStartup SenderState = iota
	StateBackup
	StateCatchup
	StateStreaming
)

func (s SenderState) String() string {
	switch s {
	case StateStartup:
		return "STARTUP"
	case StateBackup:
		return "BACKUP"
	case StateCatchup:
		return "CATCHUP"
	case StateStreaming:
		return "STREAMING"
	default:
		return "UNKNOWN"
	}
}

// ErrOutOfSlots is returned by Allocate when every slot is in use,
// corresponding to spec.md §7's TooManySenders.
var ErrOutOfSlots = errors.New("walstream: no free sender slot (max_wal_senders exceeded)")

// Slot is one entry in the shared slot table: a record advertising a
// single sender's progress and state, guarded by its own spinlock so
// that readers never contend with other slots (spec.md §3, §4.B).
//
// PID is read lock-free (Allocate's scan, and the "pid != 0" filter in
// monitoring) precisely as the original's InitWalSnd/Kill do. SentPtr
// (logID/recOf) is only ever mutated or observed while holding mu, so a
// monitoring read sees both halves as of one instant. State is its own
// atomic word, written by SetState and read by Snapshot without mu, so
// a reader can pair a SentPtr with a State stored just before or after
// it; the two fields are not ordered relative to each other.
type Slot struct {
	mu    spinlock
	pid   atomic.Int32
	logID uint32
	recOf uint32
	state atomic.Uint32
	latch *Latch
}

// SlotRow is a point-in-time snapshot of one occupied slot, the shape
// spec.md §4.G's monitoring read and the original's
// pg_stat_get_wal_senders produce.
type SlotRow struct {
	PID     int32
	State   SenderState
	SentPtr LogPosition
}

// String renders the row as "pid=<pid> state=<state> sent=<pos>", with
// the position in the "logid/recoff" form pg_stat_get_wal_senders uses.
func (r SlotRow) String() string {
	return fmt.Sprintf("pid=%d state=%s sent=%s", r.PID, r.State, r.SentPtr)
}

// SlotTable is the fixed-size, process-wide array of slots (spec.md
// §3, §4.B). It has no table-wide lock: consistency is per-slot only.
type SlotTable struct {
	slots []Slot
}

// NewSlotTable allocates a table with room for maxSenders concurrent
// senders and a fresh, owned-by-nobody latch in each slot.
func NewSlotTable(maxSenders int) (*SlotTable, error) {
	t := &SlotTable{slots: make([]Slot, maxSenders)}
	for i := range t.slots {
		l, err := NewLatch()
		if err != nil {
			return nil, fmt.Errorf("walstream: init slot %d latch: %w", i, err)
		}
		t.slots[i].latch = l
	}
	return t, nil
}

// Close releases every slot's latch. Only safe once no sender is live.
func (t *SlotTable) Close() error {
	var firstErr error
	for i := range t.slots {
		if err := t.slots[i].latch.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Allocate claims the first slot whose pid is 0, the linear scan spec.md
// §4.B and the original's InitWalSnd both specify. Returns ErrOutOfSlots
// if none are free.
func (t *SlotTable) Allocate(pid int32) (*Slot, error) {
	for i := range t.slots {
		s := &t.slots[i]
		if s.pid.CompareAndSwap(0, pid) {
			s.mu.Lock()
			s.logID, s.recOf = 0, 0
			s.mu.Unlock()
			s.state.Store(uint32(StateStartup))
			s.latch.Own()
			return s, nil
		}
	}
	return nil, ErrOutOfSlots
}

// Release frees a slot for reuse: pid := 0, latch disowned. This is the
// graceful teardown path (spec.md §4.G Kill, §3 invariant on lifetimes);
// the emergency-abort path intentionally does not call Release (spec.md
// §3, §5 — the slot leaks pid until the supervisor resets shared state).
func (t *SlotTable) Release(s *Slot) {
	s.pid.Store(0)
	s.latch.Disown()
}

// WakeAll sets every slot's latch, unconditionally and without taking
// any spinlock — Set is safe to call concurrently on slots that aren't
// even occupied (spec.md §4.B).
func (t *SlotTable) WakeAll() {
	for i := range t.slots {
		t.slots[i].latch.Set()
	}
}

// Rows returns a snapshot of every occupied slot, taking and releasing
// each slot's spinlock in turn (spec.md §4.G's monitoring read). This is
// the Go analogue of pg_stat_get_wal_senders.
func (t *SlotTable) Rows() []SlotRow {
	rows := make([]SlotRow, 0, len(t.slots))
	for i := range t.slots {
		s := &t.slots[i]
		pid := s.pid.Load()
		if pid == 0 {
			continue
		}
		s.mu.Lock()
		row := SlotRow{PID: pid, State: SenderState(s.state.Load()), SentPtr: LogPosition{LogID: s.logID, RecOff: s.recOf}}
		s.mu.Unlock()
		rows = append(rows, row)
	}
	return rows
}

// Publish stores the sender's latest sent position under the slot's
// spinlock (spec.md §4.B). Callers must ensure SentPtr is never
// published past the sender's local, already-verified value (spec.md §3
// invariant: published sentPtr <= local sentPtr).
func (s *Slot) Publish(pos LogPosition) {
	s.mu.Lock()
	s.logID, s.recOf = pos.LogID, pos.RecOff
	s.mu.Unlock()
}

// SetState stores the slot's advertised state without taking the
// spinlock, returning early when the state hasn't changed — the same
// short-circuit as the original's `if (walsnd->state == state) return;`.
// That's only race-free here because state is its own atomic word
// rather than a plain field guarded by mu;
// logID/recOf still need the lock for their combined update in Publish.
func (s *Slot) SetState(state SenderState) {
	if s.state.Load() == uint32(state) {
		return
	}
	s.state.Store(uint32(state))
}

// Snapshot reads (SentPtr, State) as of one consistent instant for
// SentPtr; State is read separately since it's its own atomic word.
func (s *Slot) Snapshot() (LogPosition, SenderState) {
	s.mu.Lock()
	pos := LogPosition{LogID: s.logID, RecOff: s.recOf}
	s.mu.Unlock()
	return pos, SenderState(s.state.Load())
}

// Latch returns the slot's owned wake latch.
func (s *Slot) Latch() *Latch {
	return s.latch
}

// PID returns the slot's owning process id, 0 if free.
func (s *Slot) PID() int32 {
	return s.pid.Load()
}
