// Package cpuload implements the CPU-utilization and wake-latency
// measurement helpers the stress tests rely on to confirm blocked
// pkg/chanlab operations neither burn CPU nor sit unresponsive past a
// bounded quantum of the event that unblocks them.
package cpuload

import (
	"time"

	"golang.org/x/sys/unix"
)

// CPUSample is a point-in-time reading of this process's consumed CPU
// time, split into user and system components the way RUSAGE_SELF
// reports them.
type CPUSample struct {
	UserTime time.Duration
	SysTime  time.Duration
}

func (s CPUSample) total() time.Duration { return s.UserTime + s.SysTime }

// Sample reads the current process's cumulative CPU time via
// unix.Getrusage(RUSAGE_SELF).
func Sample() (CPUSample, error) {
	var ru unix.Rusage
	if err := unix.Getrusage(unix.RUSAGE_SELF, &ru); err != nil {
		return CPUSample{}, err
	}
	return CPUSample{
		UserTime: timevalToDuration(ru.Utime),
		SysTime:  timevalToDuration(ru.Stime),
	}, nil
}

func timevalToDuration(tv unix.Timeval) time.Duration {
	return time.Duration(tv.Sec)*time.Second + time.Duration(tv.Usec)*time.Microsecond
}

// Delta is the CPU time consumed between two samples.
func Delta(before, after CPUSample) time.Duration {
	return after.total() - before.total()
}

// Measure runs fn for window, sampling CPU time immediately before and
// after, and returns the CPU time consumed during the window. Intended
// use: run a pool of goroutines parked on blocked channel operations for
// `window` and confirm the returned duration stays negligible, since a
// correctly blocked goroutine burns no CPU while parked.
func Measure(window time.Duration, fn func(stop <-chan struct{})) (time.Duration, error) {
	before, err := Sample()
	if err != nil {
		return 0, err
	}
	stop := make(chan struct{})
	done := make(chan struct{})
	go func() {
		defer close(done)
		fn(stop)
	}()
	time.Sleep(window)
	close(stop)
	<-done
	after, err := Sample()
	if err != nil {
		return 0, err
	}
	return Delta(before, after), nil
}

// Around runs fn to completion, sampling CPU time immediately before and
// after, and returns the CPU time fn consumed. Unlike Measure, it doesn't
// impose its own window or stop signal: it's for wrapping a call that
// already manages its own duration (a stress/benchmark run), so the
// caller can report how much CPU a whole run spent rather than only a
// synthetic blocked-goroutine self-test.
func Around(fn func() error) (time.Duration, error) {
	before, err := Sample()
	if err != nil {
		return 0, err
	}
	runErr := fn()
	after, err := Sample()
	if err != nil {
		return 0, err
	}
	return Delta(before, after), runErr
}

// WakeLatency measures how long it takes for unblock to run and wake a
// blocked goroutine, returning the elapsed time from calling unblock to
// the blocked operation observing it. Intended use: assert it stays
// within a bounded quantum of the unblocking event.
func WakeLatency(blocked func(), unblock func()) time.Duration {
	done := make(chan struct{})
	go func() {
		blocked()
		close(done)
	}()
	// Give the blocked goroutine a chance to actually park before firing
	// the event that should wake it, so the measurement reflects wake
	// latency rather than scheduling latency.
	time.Sleep(time.Millisecond)
	start := time.Now()
	unblock()
	<-done
	return time.Since(start)
}
