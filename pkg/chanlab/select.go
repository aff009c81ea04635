package chanlab

import "sort"

// Direction names which half of a rendezvous an Intent describes.
type Direction int8

const (
	// SendIntent offers Send as the value to deliver.
	SendIntent Direction = iota
	// RecvIntent asks to receive a value, written back into Recv on success.
	RecvIntent
)

// Intent is one candidate operation in a Select call: a send or a receive
// against a single channel. Callers build a slice of Intents, one per
// case, in the order ties should be broken.
type Intent struct {
	Channel   *Channel
	Direction Direction

	// Send is the value offered when Direction is SendIntent. Ignored for
	// RecvIntent.
	Send any

	// Recv is set to the received value when this Intent is the one
	// Select commits and Direction is RecvIntent. Untouched otherwise.
	Recv any
}

// registration tracks one Intent's waiter-list entry during the parked
// phase of Select, so it can be unregistered once the call resolves.
type registration struct {
	channel *Channel
	dir     direction
	id      uint64
}

// Select blocks until exactly one of intents commits: a send delivers, a
// receive obtains a value, or the targeted channel is found closed. It
// returns the index of the committed intent and a nil error, or an index
// and ErrClosed if that intent's channel was closed, or (-1, ErrGeneric)
// if intents is empty or names no channel at all. Ties among
// simultaneously ready intents are broken in favor of the one listed
// first.
//
// A send intent and a receive intent in the same call that target the
// same zero-capacity channel never rendezvous with each other; Select
// only matches a call's intents against other goroutines' operations, the
// same way a single select statement over an unbuffered channel cannot
// complete against its own other case.
func Select(intents []Intent) (int, error) {
	if len(intents) == 0 {
		return -1, ErrGeneric
	}
	allNil := true
	for i := range intents {
		if intents[i].Channel != nil {
			allNil = false
			break
		}
	}
	if allNil {
		return -1, ErrGeneric
	}

	sel := newSelectShared()

	if i, status, ok := attemptPass(intents, sel); ok {
		return i, statusErr(status)
	}

	regs := registerAll(intents, sel)

	// Cover anything that became ready while we were registering.
	if i, status, ok := attemptPass(intents, sel); ok {
		unregisterAll(regs)
		return i, statusErr(status)
	}

	sel.mu.Lock()
	for !sel.done {
		gen := sel.gen
		sel.mu.Unlock()
		if i, status, ok := attemptPass(intents, sel); ok {
			unregisterAll(regs)
			return i, statusErr(status)
		}
		sel.mu.Lock()
		// Sleep only if no channel poked us while we were scanning;
		// otherwise loop straight back into another scan.
		for !sel.done && sel.gen == gen {
			sel.cond.Wait()
		}
	}
	idx, status := sel.index, sel.status
	sel.mu.Unlock()

	// A foreign goroutine committed one of our registered waiters directly
	// (rendezvous hand-off or close); the delivered value, if any, is in
	// that waiter, not in the intent yet.
	if status == StatusSuccess && intents[idx].Direction == RecvIntent {
		intents[idx].Recv = regs.valueFor(idx)
	}
	if status == StatusClosed {
		idx = firstClosedIndex(intents, idx)
	}
	unregisterAll(regs)
	return idx, statusErr(status)
}

// firstClosedIndex returns the index of the first intent in list order
// whose channel is closed. The close path records whichever of the
// select's registrations it reached first, which for duplicate intents
// on one channel is not necessarily the first-listed one; the reported
// index is defined by list position, so re-scan.
func firstClosedIndex(intents []Intent, fallback int) int {
	for i := range intents {
		ch := intents[i].Channel
		if ch == nil {
			continue
		}
		ch.mu.Lock()
		closed := ch.closed
		ch.mu.Unlock()
		if closed {
			return i
		}
	}
	return fallback
}

// attemptPass scans intents in list order, attempting to commit the first
// one that is immediately ready. A channel found closed commits as
// StatusClosed. The claim on sel (via sel.commit) happens strictly between
// confirming readiness and performing the channel-local mutation, so a
// losing race never consumes a value it cannot deliver.
func attemptPass(intents []Intent, sel *selectShared) (int, Status, bool) {
	for i := range intents {
		in := &intents[i]
		ch := in.Channel
		if ch == nil {
			continue
		}

		ch.mu.Lock()
		if ch.closed {
			ch.mu.Unlock()
			if sel.commit.tryCommitClosed() {
				sel.resolve(i, StatusClosed)
				return i, StatusClosed, true
			}
			// A foreign goroutine already committed one of our registered
			// waiters; the caller picks the recorded outcome up from sel
			// once resolve lands.
			return 0, 0, false
		}

		ready := intentReadyLocked(ch, in, sel)
		if !ready {
			ch.mu.Unlock()
			continue
		}
		if !sel.commit.tryCommitSuccess() {
			ch.mu.Unlock()
			return 0, 0, false
		}
		val, ok := commitIntentLocked(ch, in, sel)
		ch.mu.Unlock()
		if !ok {
			// Readiness was confirmed under the same uninterrupted lock
			// hold, so this should be unreachable; treat defensively as
			// "resolved, nothing to deliver" rather than panicking.
			sel.resolve(i, StatusSuccess)
			return i, StatusSuccess, true
		}
		if in.Direction == RecvIntent {
			in.Recv = val
		}
		sel.resolve(i, StatusSuccess)
		return i, StatusSuccess, true
	}
	return 0, 0, false
}

// intentReadyLocked is a pure peek: true if committing in would currently
// succeed. Must be called with ch.mu held.
func intentReadyLocked(ch *Channel, in *Intent, sel *selectShared) bool {
	switch in.Direction {
	case RecvIntent:
		if ch.buf.Capacity() > 0 {
			return !ch.buf.Empty()
		}
		return ch.hasEligibleSender(sel)
	case SendIntent:
		if ch.buf.Capacity() > 0 {
			return !ch.buf.Full()
		}
		return ch.hasEligibleReceiver(sel)
	}
	return false
}

// commitIntentLocked performs the actual send/receive. Must be called
// immediately after intentReadyLocked reported true, with ch.mu held
// continuously in between, so ok is always true in practice.
func commitIntentLocked(ch *Channel, in *Intent, sel *selectShared) (any, bool) {
	switch in.Direction {
	case RecvIntent:
		if ch.buf.Capacity() > 0 {
			v, ok := ch.buf.Remove()
			if ok {
				ch.wakeAfterReceive()
			}
			return v, ok
		}
		return ch.takeFromSender(sel)
	case SendIntent:
		if ch.buf.Capacity() > 0 {
			if ch.buf.Add(in.Send) {
				ch.wakeAfterSend()
				return nil, true
			}
			return nil, false
		}
		return nil, ch.handOffToReceiver(in.Send, sel)
	}
	return nil, false
}

// registrations collects, per intent index, the waiter registered (if any)
// and its delivered value once a foreign thread commits it directly.
type registrations struct {
	entries []registration
	waiters []*waiter // parallel to intents; nil where no registration exists
}

func (r *registrations) valueFor(idx int) any {
	if idx < 0 || idx >= len(r.waiters) || r.waiters[idx] == nil {
		return nil
	}
	return r.waiters[idx].value
}

// registerAll parks one waiter per intent across every distinct channel
// referenced, visiting channels in stable identity order. Since at most
// one channel's mutex is ever held at a time, this order isn't required
// for deadlock avoidance here, only for the same deterministic-ordering
// discipline the registry exists to support.
func registerAll(intents []Intent, sel *selectShared) *registrations {
	order := make([]int, len(intents))
	for i := range intents {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		ca, cb := intents[order[a]].Channel, intents[order[b]].Channel
		if ca == nil || cb == nil {
			return false
		}
		return ca.sortKey() < cb.sortKey()
	})

	regs := &registrations{waiters: make([]*waiter, len(intents))}
	for _, i := range order {
		in := &intents[i]
		ch := in.Channel
		if ch == nil {
			continue
		}
		dir := dirSend
		value := in.Send
		if in.Direction == RecvIntent {
			dir = dirRecv
			value = nil
		}
		w := newSelectWaiter(dir, value, &sel.commit, sel, i)
		ch.mu.Lock()
		list := ch.sendWaiters
		if dir == dirRecv {
			list = ch.recvWaiters
		}
		id := ch.registerWaiter(list, w)
		ch.mu.Unlock()
		regs.entries = append(regs.entries, registration{channel: ch, dir: dir, id: id})
		regs.waiters[i] = w
	}
	return regs
}

func unregisterAll(regs *registrations) {
	for _, r := range regs.entries {
		r.channel.mu.Lock()
		list := r.channel.sendWaiters
		if r.dir == dirRecv {
			list = r.channel.recvWaiters
		}
		list.remove(r.id)
		r.channel.mu.Unlock()
	}
}

func statusErr(status Status) error {
	switch status {
	case StatusSuccess:
		return nil
	case StatusClosed:
		return ErrClosed
	default:
		return ErrGeneric
	}
}
