// Package ringpass implements the ring-passing benchmark used to stress
// pkg/chanlab's throughput and delivery guarantees: a fixed pool of
// tokens circulates through a ring of worker goroutines, each connected
// to the next by a Channel, for a measured duration, then every token is
// checked back in exactly once.
package ringpass

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hedzr/go-ringbuf/v2/mpmc"
	"github.com/sirupsen/logrus"

	"github.com/cjcordosi/concurrencylab/internal/groutine"
	"github.com/cjcordosi/concurrencylab/pkg/chanlab"
)

// Scenario configures one ring-pass run.
type Scenario struct {
	// NumWorkers is the ring size.
	NumWorkers int `yaml:"num_workers"`
	// BufferSize is each worker channel's capacity.
	BufferSize int `yaml:"buffer_size"`
	// Load is the token-pool size as a fraction of the ring's total
	// absorbing capacity, NumWorkers*(BufferSize+1) tokens. Must be
	// strictly below 1: at 1 or above every worker parks in its
	// forwarding send before the start signals can land and the ring
	// wedges during seeding.
	Load float64 `yaml:"load"`
	// Duration is how long tokens keep circulating before the
	// measurement window closes.
	Duration time.Duration `yaml:"duration"`
	// LapHistory bounds how many LapSample records the reporting ring
	// buffer retains; older samples are overwritten once it fills.
	LapHistory uint32 `yaml:"lap_history"`
}

// LapSample records one token's check-in at the end of the benchmark.
type LapSample struct {
	Token int
	// Index is the monotonic order in which this token was checked in,
	// useful for a reporting goroutine consuming the ring concurrently
	// with the benchmark's own shutdown.
	Index int
}

// Result summarizes one ring-pass run.
type Result struct {
	TokensSent int
	TokensBack int
	// Duplicates and Dropped count message-delivery violations. A correct
	// channel implementation always reports both as zero.
	Duplicates int
	Dropped    int
	Samples    []LapSample
}

// Run circulates Scenario.Load's worth of tokens through a ring of
// Scenario.NumWorkers goroutines for Scenario.Duration, then verifies
// every token was returned exactly once.
func Run(ctx context.Context, logger *logrus.Logger, s Scenario) (*Result, error) {
	if logger == nil {
		logger = logrus.New()
	}
	if s.NumWorkers <= 0 {
		return nil, fmt.Errorf("ringpass: num_workers must be positive")
	}
	lapCap := s.LapHistory
	if lapCap == 0 {
		lapCap = 4096
	}

	numMsgs := int(float64(s.NumWorkers*(s.BufferSize+1)) * s.Load)
	if numMsgs <= 0 {
		return nil, fmt.Errorf("ringpass: load too small, computed 0 tokens")
	}
	if numMsgs >= s.NumWorkers*(s.BufferSize+1) {
		// Ring channels are not drained until the start signals land, and
		// each worker absorbs at most BufferSize+1 seeded tokens (fill the
		// next channel, then park in the forwarding send). Once every
		// worker is parked the start signals can never be delivered and
		// the ring wedges, so the token pool must stay strictly below
		// that bound: Load < 1.
		return nil, fmt.Errorf("ringpass: %d tokens saturate a ring of %d workers with capacity %d; lower the load below 1",
			numMsgs, s.NumWorkers, s.BufferSize)
	}

	channels := make([]*chanlab.Channel, s.NumWorkers)
	for i := range channels {
		channels[i] = chanlab.New(s.BufferSize)
	}
	mainCh := chanlab.New(s.BufferSize)

	var done atomic.Bool
	var started atomic.Int32
	laps := mpmc.NewOverlappedRingBuffer[LapSample](lapCap)
	var lapIndex atomic.Int64

	var wg sync.WaitGroup
	wg.Add(s.NumWorkers)
	for i := 0; i < s.NumWorkers; i++ {
		i := i
		next := i + 1
		if next >= s.NumWorkers {
			next = 0
		}
		groutine.Go(ctx, fmt.Sprintf("ring-pass-worker-%d", i), func(ctx context.Context) {
			defer wg.Done()
			worker(channels[i], channels[next], mainCh, &done, &started)
		})
	}

	for msg := 1; msg <= numMsgs; msg++ {
		if err := mainCh.Send(msg); err != nil {
			return nil, fmt.Errorf("ringpass: seeding token %d: %w", msg, err)
		}
	}
	for i := 0; i < s.NumWorkers; i++ {
		if err := mainCh.Send(nil); err != nil {
			return nil, fmt.Errorf("ringpass: sending start signal: %w", err)
		}
	}
	// Wait for every worker to leave the start phase before opening the
	// measurement window. Collecting tokens below must never race with a
	// worker still reading mainCh, or the collector could steal a start
	// signal and strand that worker.
	for started.Load() < int32(s.NumWorkers) {
		time.Sleep(time.Millisecond)
	}

	select {
	case <-time.After(s.Duration):
	case <-ctx.Done():
	}

	done.Store(true)

	seen := make(map[int]bool, numMsgs)
	res := &Result{TokensSent: numMsgs}
	for msg := 0; msg < numMsgs; msg++ {
		v, err := mainCh.Receive()
		if err != nil {
			logger.WithError(err).Warn("ringpass: collecting tokens")
			res.Dropped = numMsgs - res.TokensBack
			break
		}
		token, ok := v.(int)
		if !ok {
			continue
		}
		if seen[token] {
			res.Duplicates++
		} else {
			seen[token] = true
			res.TokensBack++
		}
		idx := int(lapIndex.Add(1))
		if overwritten, err := laps.EnqueueM(LapSample{Token: token, Index: idx}); err == nil && overwritten > 0 {
			logger.WithField("overwritten", overwritten).Debug("ringpass: lap history ring overwrote old samples")
		}
	}
	if res.TokensBack < res.TokensSent && res.Dropped == 0 {
		res.Dropped = res.TokensSent - res.TokensBack
	}

	for i := 0; i < s.NumWorkers; i++ {
		if err := channels[i].Send(nil); err != nil {
			logger.WithError(err).Warn("ringpass: sending stop signal")
		}
	}
	wg.Wait()

	for !laps.IsEmpty() {
		sample, err := laps.Dequeue()
		if err != nil {
			break
		}
		res.Samples = append(res.Samples, sample)
	}

	_ = mainCh.Close()
	_ = mainCh.Destroy()
	for _, ch := range channels {
		_ = ch.Close()
		_ = ch.Destroy()
	}

	return res, nil
}

// worker is one ring-pass node: during the warm-up it drains tokens and a
// nil start signal from mainCh; afterward it forwards whatever it
// receives on its own channel to the next worker, or back to mainCh once
// the benchmark's done flag is set, until it receives a nil stop signal.
func worker(own, next, mainCh *chanlab.Channel, done *atomic.Bool, started *atomic.Int32) {
	inRing := false
	for {
		var (
			v   any
			err error
		)
		if !inRing {
			v, err = mainCh.Receive()
		} else {
			v, err = own.Receive()
		}
		if err != nil {
			return
		}
		if !inRing {
			if v == nil {
				inRing = true
				started.Add(1)
				continue
			}
		} else if v == nil {
			return // stop signal
		}

		if done.Load() {
			if err := mainCh.Send(v); err != nil {
				return
			}
		} else {
			if err := next.Send(v); err != nil {
				return
			}
		}
	}
}
