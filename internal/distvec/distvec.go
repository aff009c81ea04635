// Package distvec is a distance-vector routing stress test for
// pkg/chanlab: one goroutine per topology node exchanges distance
// vectors with its neighbors over chanlab.Channel/chanlab.Select until
// the computed all-pairs distances converge, then checks the result
// against internal/topology.FloydWarshall's answer.
package distvec

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/hexops/gotextdiff"
	"github.com/hexops/gotextdiff/myers"
	"github.com/sirupsen/logrus"

	"github.com/cjcordosi/concurrencylab/internal/groutine"
	"github.com/cjcordosi/concurrencylab/internal/topology"
	"github.com/cjcordosi/concurrencylab/pkg/chanlab"
)

// Scenario configures one stress run.
type Scenario struct {
	Topology *topology.Matrix `yaml:"-"`
	// BufferSize is the per-neighbor channel capacity, ordinarily 0 or 1.
	BufferSize int `yaml:"buffer_size"`
	// Timeout bounds how long Run waits for convergence before giving up.
	Timeout time.Duration `yaml:"timeout"`
}

// Result summarizes one stress run's outcome.
type Result struct {
	Converged bool
	Rounds    int
	Computed  *topology.Matrix
	Expected  *topology.Matrix
	// Diff is a unified diff of Expected vs Computed, populated only when
	// they disagree.
	Diff string
}

// vector is one router's distance-vector broadcast. Once sent, a vector
// is never mutated again: every round builds a fresh one rather than
// reusing a buffer, since the channel hands the same value to whichever
// goroutine receives it.
type vector struct {
	src   int
	epoch int
	dist  []int
}

func newVector(src, epoch int, dist []int) *vector {
	cp := make([]int, len(dist))
	copy(cp, dist)
	return &vector{src: src, epoch: epoch, dist: cp}
}

// Run spawns one router goroutine per node in s.Topology, drives them to
// convergence (or s.Timeout, whichever comes first), and validates the
// result against the Floyd-Warshall oracle.
func Run(ctx context.Context, logger *logrus.Logger, s Scenario) (*Result, error) {
	if logger == nil {
		logger = logrus.New()
	}
	m := s.Topology
	if m == nil || m.N == 0 {
		return nil, fmt.Errorf("distvec: empty topology")
	}
	n := m.N

	channels := make([]*chanlab.Channel, n)
	for i := range channels {
		channels[i] = chanlab.New(s.BufferSize)
	}
	doneCh := chanlab.New(s.BufferSize)
	completedCh := chanlab.New(s.BufferSize)

	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		i := i
		groutine.Go(ctx, fmt.Sprintf("distvec-router-%d", i), func(ctx context.Context) {
			defer wg.Done()
			router(i, m, channels, doneCh, completedCh)
		})
	}

	timeout := s.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	deadline := time.Now().Add(timeout)

	var (
		converged bool
		computed  *topology.Matrix
		rounds    int
	)
	for time.Now().Before(deadline) {
		rounds++
		ok, comp, err := checkConverged(channels, completedCh, n)
		if err != nil {
			converged = false
			break
		}
		if ok {
			converged = true
			computed = comp
			break
		}
		time.Sleep(time.Millisecond)
	}

	// Close both channels a router can block on before waiting for the
	// routers to exit: a router parked in Select wakes through doneCh, one
	// mid-reply wakes through completedCh.
	if err := doneCh.Close(); err != nil {
		logger.WithError(err).Warn("distvec: closing done channel")
	}
	if err := completedCh.Close(); err != nil {
		logger.WithError(err).Warn("distvec: closing completed channel")
	}
	wg.Wait()
	_ = doneCh.Destroy()
	_ = completedCh.Destroy()
	for _, ch := range channels {
		if err := ch.Close(); err != nil {
			logger.WithError(err).Warn("distvec: closing node channel")
		}
		_ = ch.Destroy()
	}

	result := &Result{
		Converged: converged,
		Rounds:    rounds,
		Expected:  topology.FloydWarshall(m),
	}
	if converged {
		result.Computed = computed
		if !result.Expected.Equal(computed) {
			result.Diff = diffMatrices(result.Expected, computed)
		}
	}
	return result, nil
}

// checkConverged pings every node with a nil message twice, to confirm
// the epoch hasn't moved between the two rounds, then assembles the
// returned vectors into a distance matrix.
func checkConverged(channels []*chanlab.Channel, completed *chanlab.Channel, n int) (bool, *topology.Matrix, error) {
	first, ok, err := pingRound(channels, completed, n)
	if err != nil || !ok {
		return false, nil, err
	}
	second, ok, err := pingRound(channels, completed, n)
	if err != nil || !ok {
		return false, nil, err
	}
	for i := 0; i < n; i++ {
		if first[i].epoch != second[i].epoch {
			return false, nil, nil
		}
	}
	m := topology.NewMatrix(n)
	for i := 0; i < n; i++ {
		v := second[i]
		for j := 0; j < n; j++ {
			m.Set(i, j, clampInf(v.dist[j]))
		}
	}
	return true, m, nil
}

func pingRound(channels []*chanlab.Channel, completed *chanlab.Channel, n int) ([]*vector, bool, error) {
	for i := 0; i < n; i++ {
		if err := channels[i].Send(nil); err != nil {
			return nil, false, err
		}
	}
	// Drain every reply even after a router reports "not converged yet":
	// a reply left queued here would surface in the next round and pair
	// pings with stale answers.
	out := make([]*vector, n)
	allConverged := true
	for i := 0; i < n; i++ {
		v, err := completed.Receive()
		if err != nil {
			return nil, false, err
		}
		if v == nil {
			allConverged = false
			continue
		}
		vec := v.(*vector)
		out[vec.src] = vec
	}
	if !allConverged {
		return nil, false, nil
	}
	return out, true, nil
}

// router is one node's routing loop: broadcast its current distance
// vector to every live neighbor, fold incoming neighbor vectors into the
// next round's vector, and answer convergence pings on its own channel,
// all through a single Select so a shutdown on doneCh is never missed.
func router(index int, m *topology.Matrix, channels []*chanlab.Channel, doneCh, completedCh *chanlab.Channel) {
	n := m.N
	initial := make([]int, n)
	for i := 0; i < n; i++ {
		initial[i] = clampInf(m.Get(index, i))
	}
	curr := newVector(index, 2, initial)

	type neighbor struct{ idx int }
	var neighbors []neighbor
	for i := 0; i < n; i++ {
		if i != index && m.Get(index, i) < topology.Inf {
			neighbors = append(neighbors, neighbor{idx: i})
		}
	}

	total := 2 + len(neighbors)
	intents := make([]chanlab.Intent, total)
	intents[0] = chanlab.Intent{Channel: doneCh, Direction: chanlab.RecvIntent}
	intents[1] = chanlab.Intent{Channel: channels[index], Direction: chanlab.RecvIntent}
	for i, nb := range neighbors {
		intents[2+i] = chanlab.Intent{Channel: channels[nb.idx], Direction: chanlab.SendIntent, Send: curr}
	}

	changed := false
	next := make([]int, n)
	copy(next, curr.dist)
	selectCount := total

	for {
		idx, err := chanlab.Select(intents[:selectCount])
		if err != nil {
			return // doneCh closed: shut down
		}
		switch {
		case idx == 1:
			if intents[1].Recv != nil {
				nv := intents[1].Recv.(*vector)
				neighborDist := clampInf(m.Get(index, nv.src))
				for i := 0; i < n; i++ {
					cand := addClamped(neighborDist, nv.dist[i])
					if cand < next[i] {
						next[i] = cand
						changed = true
					}
				}
			} else {
				converged := selectCount == 2 && !changed
				var reply any
				if converged {
					reply = curr
				}
				if err := completedCh.Send(reply); err != nil {
					return
				}
			}
		default:
			// One of the broadcast sends completed: drop it from this
			// round by swapping it with the last live entry.
			selectCount--
			intents[selectCount], intents[idx] = intents[idx], intents[selectCount]
		}

		if selectCount == 2 && changed {
			curr = newVector(index, curr.epoch+1, next)
			selectCount = total
			for i := 2; i < selectCount; i++ {
				intents[i].Send = curr
			}
			changed = false
		}
	}
}

func clampInf(v int) int {
	if v < 0 || v >= topology.Inf {
		return topology.Inf
	}
	return v
}

func addClamped(a, b int) int {
	if a >= topology.Inf || b >= topology.Inf {
		return topology.Inf
	}
	return a + b
}

func diffMatrices(expected, computed *topology.Matrix) string {
	edits := myers.ComputeEdits("", expected.Format(), computed.Format())
	unified := gotextdiff.ToUnified("expected", "computed", expected.Format(), edits)
	return fmt.Sprint(unified)
}
