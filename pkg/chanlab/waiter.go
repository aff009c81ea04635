package chanlab

import (
	"sync"
	"sync/atomic"

	orderedmap "github.com/wk8/go-ordered-map/v2"
)

type direction int8

const (
	dirSend direction = iota
	dirRecv
)

// commitState resolves the "exactly one winner" race for a single waiter
// registration. For a rendezvous registration belonging to a plain blocking
// call it is never contended (only this channel's mutex ever touches it).
// For a select intent, the same *commitState is shared by every intent the
// select registered across however many channels, so it is the mechanism
// that makes "select commits at most one intent" hold even though the
// racing attempts are made under different channels' mutexes.
type commitState struct {
	state atomic.Int32 // 0 pending, 1 committed-success, 2 committed-closed
}

const (
	commitPending = int32(0)
	commitSuccess = int32(1)
	commitClosed  = int32(2)
)

func (c *commitState) tryCommitSuccess() bool { return c.state.CompareAndSwap(commitPending, commitSuccess) }
func (c *commitState) tryCommitClosed() bool  { return c.state.CompareAndSwap(commitPending, commitClosed) }
func (c *commitState) loaded() int32          { return c.state.Load() }

// selectShared is the rendezvous point a parked Select call sleeps on. It
// is independent of any one channel's mutex because a single select spans
// N channels; this is the "per-select signalling handle" the design calls
// for, visited via each target channel's waiter list.
type selectShared struct {
	mu     sync.Mutex
	cond   *sync.Cond
	commit commitState
	done   bool
	// gen counts state-change pokes from channels this select is parked
	// on. The parked goroutine snapshots it before each readiness scan and
	// only sleeps if it is unchanged afterwards, so a poke that lands
	// mid-scan is never lost.
	gen    uint64
	index  int
	status Status
}

func newSelectShared() *selectShared {
	s := &selectShared{}
	s.cond = sync.NewCond(&s.mu)
	return s
}

// poke tells a parked select that one of its channels changed state and a
// re-scan is worthwhile, without committing anything on its behalf. Safe
// to call from any channel's mutex.
func (s *selectShared) poke() {
	s.mu.Lock()
	s.gen++
	s.cond.Signal()
	s.mu.Unlock()
}

// resolve records the outcome for whichever intent won the commit race and
// wakes the parked select goroutine. Safe to call from any channel's mutex.
func (s *selectShared) resolve(index int, status Status) {
	s.mu.Lock()
	if !s.done {
		s.done = true
		s.index = index
		s.status = status
	}
	s.cond.Signal()
	s.mu.Unlock()
}

// waiter is one registration against a channel's send or receive waiter
// list: either a parked rendezvous call (zero-capacity direct send/receive,
// which has no buffer slot to rely on) or one intent of a multi-way select.
//
// For direct waiters, value carries the offered send value or, for a
// parked receiver, is filled in by whoever commits the hand-off. For
// select intents, value plays the same role but commit/resolve additionally
// goes through sel.
type waiter struct {
	id    uint64
	dir   direction
	value any
	flag  *commitState

	// sel/selIndex are nil/-1 for plain rendezvous waiters. When set, a
	// successful commit must also call sel.resolve(selIndex, status)
	// instead of relying on this channel's own condition variables, since
	// the select's goroutine is not necessarily waiting on this channel.
	sel      *selectShared
	selIndex int
}

func newRendezvousWaiter(dir direction, value any) *waiter {
	return &waiter{dir: dir, value: value, flag: &commitState{}, selIndex: -1}
}

func newSelectWaiter(dir direction, value any, flag *commitState, sel *selectShared, idx int) *waiter {
	return &waiter{dir: dir, value: value, flag: flag, sel: sel, selIndex: idx}
}

// notifySuccess records the outcome for a select waiter; a no-op for plain
// rendezvous waiters, which rely on the owning channel's broadcast instead.
func (w *waiter) notifySuccess() {
	if w.sel != nil {
		w.sel.resolve(w.selIndex, StatusSuccess)
	}
}

func (w *waiter) notifyClosed() {
	if w.sel != nil {
		w.sel.resolve(w.selIndex, StatusClosed)
	}
}

// waiterList is the ordered registry of pending waiters for one direction
// on one channel. Backed by an insertion-ordered map so FIFO tie-breaking
// among same-direction waiters on one channel falls out of iteration
// order, and removal during close/unregister is O(1).
type waiterList struct {
	om *orderedmap.OrderedMap[uint64, *waiter]
}

func newWaiterList() *waiterList {
	return &waiterList{om: orderedmap.New[uint64, *waiter]()}
}

func (l *waiterList) add(id uint64, w *waiter) {
	l.om.Set(id, w)
}

func (l *waiterList) remove(id uint64) {
	l.om.Delete(id)
}

// popFrontFor removes and returns the oldest registered waiter that is
// still pending and does not belong to exclude, garbage-collecting any
// already-resolved entries it passes along the way. exclude lets a select
// call skip its own registrations when scanning for a match: within one
// select, a SEND intent and a RECV intent on the same channel never
// rendezvous with each other, matching how a single select statement over
// an unbuffered channel never completes against its own other case.
func (l *waiterList) popFrontFor(exclude *selectShared) (*waiter, bool) {
	pair := l.om.Oldest()
	for pair != nil {
		w := pair.Value
		next := pair.Next()
		if w.flag.loaded() != commitPending {
			l.om.Delete(pair.Key)
			pair = next
			continue
		}
		if exclude != nil && w.sel == exclude {
			pair = next
			continue
		}
		l.om.Delete(pair.Key)
		return w, true
	}
	return nil, false
}

// hasLiveFor reports whether popFrontFor(exclude) would currently succeed,
// without removing or committing anything. Used by Select to decide
// whether a rendezvous is available before claiming the commit race.
func (l *waiterList) hasLiveFor(exclude *selectShared) bool {
	for pair := l.om.Oldest(); pair != nil; pair = pair.Next() {
		w := pair.Value
		if w.flag.loaded() != commitPending {
			continue
		}
		if exclude != nil && w.sel == exclude {
			continue
		}
		return true
	}
	return false
}

// each walks the list front-to-back without mutating it.
func (l *waiterList) each(fn func(*waiter)) {
	for pair := l.om.Oldest(); pair != nil; pair = pair.Next() {
		fn(pair.Value)
	}
}
