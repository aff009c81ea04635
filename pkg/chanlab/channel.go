// Package chanlab implements a typed, bounded (optionally zero-capacity)
// FIFO channel for opaque message values, shared by producer/consumer
// goroutines, plus a multi-way Select that commits exactly one ready
// send/receive intent from a list of candidates spanning possibly
// distinct channels.
//
// Message values are carried as any, mirroring the "opaque value
// reference" data model: the channel never interprets or owns its
// contents, and a nil payload is a legitimate message that round-trips
// like any other.
package chanlab

import (
	"sync"

	"github.com/cjcordosi/concurrencylab/internal/idregistry"
	"github.com/cjcordosi/concurrencylab/internal/ringbuf"
)

var registry = idregistry.New[*Channel]()

// Channel is a thread-safe, bounded FIFO conduit for opaque message
// values. A Channel of capacity 0 is a synchronous rendezvous: no value
// is ever visible in its buffer, send and receive commit together.
type Channel struct {
	id uint64

	mu       sync.Mutex
	notFull  *sync.Cond
	notEmpty *sync.Cond

	buf    *ringbuf.Buffer[any]
	closed bool

	nextWaiterID uint64
	sendWaiters  *waiterList // parked zero-cap senders + SEND select intents
	recvWaiters  *waiterList // parked zero-cap receivers + RECV select intents

	trace *traceLog
}

// New creates a channel with the given capacity. Capacity 0 is permitted
// and yields a zero-capacity rendezvous channel.
func New(capacity int) *Channel {
	c := &Channel{
		buf:         ringbuf.New[any](capacity),
		sendWaiters: newWaiterList(),
		recvWaiters: newWaiterList(),
	}
	c.notFull = sync.NewCond(&c.mu)
	c.notEmpty = sync.NewCond(&c.mu)
	c.id = registry.Register(c)
	if traceEnabled() {
		c.trace = newTraceLog()
	}
	return c
}

// sortKey is the stable identity Select uses to fix a global lock order
// across the channels named in one select call.
func (c *Channel) sortKey() uint64 { return c.id }

// Send blocks until v is delivered (buffered or, for a zero-capacity
// channel, handed directly to a parked receiver), the channel closes, or
// an error occurs.
func (c *Channel) Send(v any) error {
	if c == nil {
		return ErrGeneric
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.buf.Capacity() > 0 {
		for {
			if c.closed {
				return ErrClosed
			}
			if c.buf.Add(v) {
				c.logTrace("send", v)
				c.wakeAfterSend()
				return nil
			}
			c.notFull.Wait()
		}
	}

	// Zero-capacity rendezvous.
	if c.closed {
		return ErrClosed
	}
	if c.handOffToReceiver(v, nil) {
		c.logTrace("send", v)
		return nil
	}
	w := newRendezvousWaiter(dirSend, v)
	id := c.registerWaiter(c.sendWaiters, w)
	for w.flag.loaded() == commitPending && !c.closed {
		c.notFull.Wait()
	}
	switch w.flag.loaded() {
	case commitSuccess:
		c.logTrace("send", v)
		return nil
	case commitClosed:
		return ErrClosed
	default:
		// Closed before anyone committed us: claim it ourselves.
		if w.flag.tryCommitClosed() {
			c.sendWaiters.remove(id)
		}
		return ErrClosed
	}
}

// Receive blocks until a value is available, the channel closes, or an
// error occurs.
func (c *Channel) Receive() (any, error) {
	if c == nil {
		return nil, ErrGeneric
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.buf.Capacity() > 0 {
		for {
			// Closed takes precedence even over a non-empty buffer: the
			// hard-cutoff reading means nothing received after close, not
			// even values that were already buffered.
			if c.closed {
				return nil, ErrClosed
			}
			if v, ok := c.buf.Remove(); ok {
				c.logTrace("recv", v)
				c.wakeAfterReceive()
				return v, nil
			}
			c.notEmpty.Wait()
		}
	}

	// Zero-capacity rendezvous.
	if v, ok := c.takeFromSender(nil); ok {
		c.logTrace("recv", v)
		return v, nil
	}
	if c.closed {
		return nil, ErrClosed
	}
	w := newRendezvousWaiter(dirRecv, nil)
	id := c.registerWaiter(c.recvWaiters, w)
	for w.flag.loaded() == commitPending && !c.closed {
		c.notEmpty.Wait()
	}
	switch w.flag.loaded() {
	case commitSuccess:
		c.logTrace("recv", w.value)
		return w.value, nil
	case commitClosed:
		return nil, ErrClosed
	default:
		if w.flag.tryCommitClosed() {
			c.recvWaiters.remove(id)
		}
		return nil, ErrClosed
	}
}

// NonBlockingSend attempts to send without blocking. Returns ErrFull if
// the value cannot be delivered immediately, ErrClosed if closed.
func (c *Channel) NonBlockingSend(v any) error {
	if c == nil {
		return ErrGeneric
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrClosed
	}
	if c.buf.Capacity() > 0 {
		if !c.buf.Add(v) {
			return ErrFull
		}
		c.logTrace("send", v)
		c.wakeAfterSend()
		return nil
	}
	if !c.handOffToReceiver(v, nil) {
		return ErrFull
	}
	c.logTrace("send", v)
	return nil
}

// NonBlockingReceive attempts to receive without blocking. Returns
// ErrEmpty if no value is available immediately, ErrClosed if closed.
func (c *Channel) NonBlockingReceive() (any, error) {
	if c == nil {
		return nil, ErrGeneric
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.buf.Capacity() > 0 {
		if c.closed {
			return nil, ErrClosed
		}
		v, ok := c.buf.Remove()
		if !ok {
			return nil, ErrEmpty
		}
		c.logTrace("recv", v)
		c.wakeAfterReceive()
		return v, nil
	}
	if v, ok := c.takeFromSender(nil); ok {
		c.logTrace("recv", v)
		return v, nil
	}
	if c.closed {
		return nil, ErrClosed
	}
	return nil, ErrEmpty
}

// Close transitions the channel from open to closed, waking every direct
// blocked caller and select intent parked on it. Already-buffered values
// remain exactly as they were at close time but are no longer reachable
// by receive; they are discarded when the channel is destroyed.
func (c *Channel) Close() error {
	if c == nil {
		return ErrGeneric
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrClosed
	}
	c.closed = true

	c.sendWaiters.each(func(w *waiter) {
		if w.flag.tryCommitClosed() {
			w.notifyClosed()
		}
	})
	c.recvWaiters.each(func(w *waiter) {
		if w.flag.tryCommitClosed() {
			w.notifyClosed()
		}
	})
	c.sendWaiters = newWaiterList()
	c.recvWaiters = newWaiterList()

	c.notFull.Broadcast()
	c.notEmpty.Broadcast()
	return nil
}

// Destroy releases the channel. The channel must already be closed and no
// goroutine may still be operating on it; that ordering is the caller's
// responsibility.
func (c *Channel) Destroy() error {
	if c == nil {
		return ErrGeneric
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.closed {
		return ErrDestroyOnOpen
	}
	// Drop buffered values: a hard-cutoff close discards anything left.
	for {
		if _, ok := c.buf.Remove(); !ok {
			break
		}
	}
	registry.Forget(c.id)
	return nil
}

// registerWaiter assigns the next waiter ID on this channel, adds w to
// list, and returns the assigned ID.
func (c *Channel) registerWaiter(list *waiterList, w *waiter) uint64 {
	c.nextWaiterID++
	id := c.nextWaiterID
	w.id = id
	list.add(id, w)
	return id
}

// handOffToReceiver delivers v directly to the oldest eligible parked
// receiver (direct rendezvous wait or select RECV intent) on a
// zero-capacity channel. Must be called with c.mu held. exclude, when
// non-nil, skips registrations belonging to that select (see
// waiterList.popFrontFor). Returns false if no receiver is currently
// eligible.
func (c *Channel) handOffToReceiver(v any, exclude *selectShared) bool {
	for {
		w, ok := c.recvWaiters.popFrontFor(exclude)
		if !ok {
			return false
		}
		if !w.flag.tryCommitSuccess() {
			continue // already serviced through a different channel (select)
		}
		w.value = v
		w.notifySuccess()
		c.notEmpty.Broadcast()
		return true
	}
}

// takeFromSender is the receive-side mirror of handOffToReceiver.
func (c *Channel) takeFromSender(exclude *selectShared) (any, bool) {
	for {
		w, ok := c.sendWaiters.popFrontFor(exclude)
		if !ok {
			return nil, false
		}
		if !w.flag.tryCommitSuccess() {
			continue
		}
		w.notifySuccess()
		c.notFull.Broadcast()
		return w.value, true
	}
}

// hasEligibleReceiver peeks whether handOffToReceiver(_, exclude) would
// currently find a receiver, without popping or committing anything.
func (c *Channel) hasEligibleReceiver(exclude *selectShared) bool {
	return c.recvWaiters.hasLiveFor(exclude)
}

// hasEligibleSender is the mirror peek for takeFromSender.
func (c *Channel) hasEligibleSender(exclude *selectShared) bool {
	return c.sendWaiters.hasLiveFor(exclude)
}

// wakeAfterSend is called once a value has been committed into the buffer
// (capacity > 0 path only): wakes blocked direct receivers and every
// registered RECV select intent, since the channel just became non-empty.
func (c *Channel) wakeAfterSend() {
	c.notEmpty.Broadcast()
	c.recvWaiters.each(func(w *waiter) {
		if w.sel != nil {
			w.sel.poke()
		}
	})
}

// wakeAfterReceive is the mirror of wakeAfterSend: the buffer just freed a
// slot, so blocked direct senders and SEND select intents may now proceed.
func (c *Channel) wakeAfterReceive() {
	c.notFull.Broadcast()
	c.sendWaiters.each(func(w *waiter) {
		if w.sel != nil {
			w.sel.poke()
		}
	})
}

func (c *Channel) logTrace(op string, v any) {
	if c.trace != nil {
		c.trace.log(c.id, op, v)
	}
}

// TraceDump returns the channel's buffered state-transition history,
// oldest line first. Always empty unless trace-level logging was enabled
// when the channel was created.
func (c *Channel) TraceDump() string {
	if c == nil || c.trace == nil {
		return ""
	}
	return c.trace.Dump()
}
