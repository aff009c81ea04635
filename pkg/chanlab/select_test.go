package chanlab

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSelect_EmptyIntents(t *testing.T) {
	idx, err := Select(nil)
	assert.Equal(t, -1, idx)
	assert.ErrorIs(t, err, ErrGeneric)
}

func TestSelect_ImmediateReady_PicksReadyChannel(t *testing.T) {
	empty := New(1)
	ready := New(1)
	require.NoError(t, ready.Send("value"))

	intents := []Intent{
		{Channel: empty, Direction: RecvIntent},
		{Channel: ready, Direction: RecvIntent},
	}
	idx, err := Select(intents)
	require.NoError(t, err)
	assert.Equal(t, 1, idx)
	assert.Equal(t, "value", intents[1].Recv)
}

func TestSelect_TieBreak_FirstListedWins(t *testing.T) {
	a := New(1)
	b := New(1)
	require.NoError(t, a.Send("a-value"))
	require.NoError(t, b.Send("b-value"))

	intents := []Intent{
		{Channel: b, Direction: RecvIntent},
		{Channel: a, Direction: RecvIntent},
	}
	idx, err := Select(intents)
	require.NoError(t, err)
	assert.Equal(t, 0, idx)
	assert.Equal(t, "b-value", intents[0].Recv)
}

func TestSelect_ClosedChannel_ImmediateDetection(t *testing.T) {
	ch := New(1)
	require.NoError(t, ch.Close())

	idx, err := Select([]Intent{{Channel: ch, Direction: RecvIntent}})
	assert.Equal(t, 0, idx)
	assert.ErrorIs(t, err, ErrClosed)
}

func TestSelect_ClosedWhileParked(t *testing.T) {
	ch := New(0)

	go func() {
		time.Sleep(20 * time.Millisecond)
		require.NoError(t, ch.Close())
	}()

	idx, err := Select([]Intent{{Channel: ch, Direction: RecvIntent}})
	assert.Equal(t, 0, idx)
	assert.ErrorIs(t, err, ErrClosed)
}

func TestSelect_ZeroCapacity_ParksThenRendezvous(t *testing.T) {
	ch := New(0)

	go func() {
		time.Sleep(20 * time.Millisecond)
		require.NoError(t, ch.Send("hello"))
	}()

	intents := []Intent{{Channel: ch, Direction: RecvIntent}}
	idx, err := Select(intents)
	require.NoError(t, err)
	assert.Equal(t, 0, idx)
	assert.Equal(t, "hello", intents[0].Recv)
}

func TestSelect_SendIntent_RendezvousWithExternalReceiver(t *testing.T) {
	ch := New(0)
	received := make(chan any, 1)

	go func() {
		v, err := ch.Receive()
		if err == nil {
			received <- v
		}
	}()

	idx, err := Select([]Intent{{Channel: ch, Direction: SendIntent, Send: 42}})
	require.NoError(t, err)
	assert.Equal(t, 0, idx)

	select {
	case v := <-received:
		assert.Equal(t, 42, v)
	case <-time.After(time.Second):
		t.Fatal("external receiver never got the select's sent value")
	}
}

func TestSelect_DuplicateIntentsOnSameChannel(t *testing.T) {
	ch := New(1)
	require.NoError(t, ch.Send("only value"))

	intents := []Intent{
		{Channel: ch, Direction: RecvIntent},
		{Channel: ch, Direction: RecvIntent},
	}
	idx, err := Select(intents)
	require.NoError(t, err)
	assert.Equal(t, 0, idx)
	assert.Equal(t, "only value", intents[0].Recv)
	assert.Nil(t, intents[1].Recv)
}

// A select's own opposite-direction intents on the same zero-capacity
// channel must never rendezvous with each other, mirroring how a single
// select statement over an unbuffered channel cannot complete against its
// own other case.
func TestSelect_DoesNotRendezvousWithItself(t *testing.T) {
	ch := New(0)
	intents := []Intent{
		{Channel: ch, Direction: SendIntent, Send: "self"},
		{Channel: ch, Direction: RecvIntent},
	}

	resultIdx := make(chan int, 1)
	go func() {
		idx, err := Select(intents)
		require.NoError(t, err)
		resultIdx <- idx
	}()

	select {
	case <-resultIdx:
		t.Fatal("select resolved without any external party; it must not self-rendezvous")
	case <-time.After(50 * time.Millisecond):
	}

	v, err := ch.Receive()
	require.NoError(t, err)
	assert.Equal(t, "self", v)

	select {
	case idx := <-resultIdx:
		assert.Equal(t, 0, idx)
	case <-time.After(time.Second):
		t.Fatal("select never resolved after an external receiver arrived")
	}
}

func TestSelect_ThreeChannels_SendOnThirdWakesParked(t *testing.T) {
	chs := []*Channel{New(1), New(1), New(1)}
	intents := []Intent{
		{Channel: chs[0], Direction: RecvIntent},
		{Channel: chs[1], Direction: RecvIntent},
		{Channel: chs[2], Direction: RecvIntent},
	}

	type result struct {
		idx int
		err error
	}
	res := make(chan result, 1)
	go func() {
		idx, err := Select(intents)
		res <- result{idx, err}
	}()

	select {
	case r := <-res:
		t.Fatalf("select resolved before anything was sent: %+v", r)
	case <-time.After(50 * time.Millisecond):
	}

	require.NoError(t, chs[2].Send("M1"))

	select {
	case r := <-res:
		require.NoError(t, r.err)
		assert.Equal(t, 2, r.idx)
		assert.Equal(t, "M1", intents[2].Recv)
	case <-time.After(time.Second):
		t.Fatal("parked select never woke for the send on channel 2")
	}
}

func TestSelect_ThreeChannels_CloseWhileParkedReportsIndex(t *testing.T) {
	chs := []*Channel{New(1), New(1), New(1)}
	intents := []Intent{
		{Channel: chs[0], Direction: RecvIntent},
		{Channel: chs[1], Direction: RecvIntent},
		{Channel: chs[2], Direction: RecvIntent},
	}

	type result struct {
		idx int
		err error
	}
	res := make(chan result, 1)
	go func() {
		idx, err := Select(intents)
		res <- result{idx, err}
	}()

	time.Sleep(20 * time.Millisecond)
	require.NoError(t, chs[0].Close())

	select {
	case r := <-res:
		assert.ErrorIs(t, r.err, ErrClosed)
		assert.Equal(t, 0, r.idx)
	case <-time.After(time.Second):
		t.Fatal("parked select never woke for the close on channel 0")
	}
}

func TestSelect_CloseWithDuplicateIntents_ReportsFirstListed(t *testing.T) {
	ch := New(0)
	intents := []Intent{
		{Channel: ch, Direction: RecvIntent},
		{Channel: ch, Direction: SendIntent, Send: "x"},
	}

	type result struct {
		idx int
		err error
	}
	res := make(chan result, 1)
	go func() {
		idx, err := Select(intents)
		res <- result{idx, err}
	}()

	time.Sleep(20 * time.Millisecond)
	require.NoError(t, ch.Close())

	select {
	case r := <-res:
		assert.ErrorIs(t, r.err, ErrClosed)
		assert.Equal(t, 0, r.idx, "closed index is defined by list position, not registration order")
	case <-time.After(time.Second):
		t.Fatal("parked select never woke for the close")
	}
}

// Two selects parked on the same buffered channel: one send wakes and
// commits exactly one of them; a second send commits the other; no value
// is lost between them.
func TestSelect_TwoParkedSelects_TwoSendsCommitBoth(t *testing.T) {
	ch := New(1)
	results := make(chan any, 2)

	for i := 0; i < 2; i++ {
		go func() {
			intents := []Intent{{Channel: ch, Direction: RecvIntent}}
			if _, err := Select(intents); err == nil {
				results <- intents[0].Recv
			}
		}()
	}

	time.Sleep(20 * time.Millisecond)
	require.NoError(t, ch.Send("first"))

	var got []any
	select {
	case v := <-results:
		got = append(got, v)
	case <-time.After(time.Second):
		t.Fatal("no select committed after the first send")
	}
	select {
	case v := <-results:
		t.Fatalf("both selects committed after a single send, second got %v", v)
	case <-time.After(50 * time.Millisecond):
	}

	require.NoError(t, ch.Send("second"))
	select {
	case v := <-results:
		got = append(got, v)
	case <-time.After(time.Second):
		t.Fatal("remaining select never committed after the second send")
	}
	assert.ElementsMatch(t, []any{"first", "second"}, got)
}

func TestSelect_ExactlyOneWinnerAmongConcurrentSelects(t *testing.T) {
	const n = 5
	ch := New(0)
	var wg sync.WaitGroup
	winners := make(chan int, n)
	var winnerCount int32
	var mu sync.Mutex

	wg.Add(n)
	for i := 0; i < n; i++ {
		go func(i int) {
			defer wg.Done()
			idx, err := Select([]Intent{{Channel: ch, Direction: RecvIntent}})
			if err == nil {
				mu.Lock()
				winnerCount++
				mu.Unlock()
				winners <- idx
			}
		}(i)
	}

	time.Sleep(20 * time.Millisecond)
	require.NoError(t, ch.Send("only one rendezvous"))

	select {
	case <-winners:
	case <-time.After(time.Second):
		t.Fatal("no select ever won the rendezvous")
	}

	// Release the remaining parked selects so the goroutines can exit.
	require.NoError(t, ch.Close())

	done := make(chan struct{})
	go func() { wg.Wait(); close(done) }()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("losing selects never unparked after close")
	}

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, int32(1), winnerCount, "exactly one select must win the single rendezvous")
}
