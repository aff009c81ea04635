package chanlab

import (
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"
	"github.com/smallnest/ringbuffer"
)

// traceBufCap bounds how many bytes of recent trace lines a channel keeps
// in memory; older bytes are dropped to make room, matching a ring
// buffer's natural bounded-history behavior.
const traceBufCap = 4096

// traceEnabled reports whether channel operations should record trace
// lines, gated on the standard logger's level so a caller opts in the same
// way they would for any other trace-level logging.
func traceEnabled() bool {
	return logrus.IsLevelEnabled(logrus.TraceLevel)
}

// traceLog records a bounded history of send/receive events for one
// channel as newline-terminated text, for post-mortem inspection during
// debugging (e.g. a stress run that deadlocked). Writes never block: once
// full, log silently reads out and discards the oldest bytes to make room
// before writing, which is an acceptable loss for a debug aid.
type traceLog struct {
	mu  sync.Mutex
	buf *ringbuffer.RingBuffer
}

func newTraceLog() *traceLog {
	return &traceLog{buf: ringbuffer.New(traceBufCap)}
}

func (t *traceLog) log(chanID uint64, op string, v any) {
	if t == nil {
		return
	}
	line := fmt.Sprintf("chan=%d op=%s value=%v\n", chanID, op, v)
	logrus.WithField("chan", chanID).Tracef("%s %v", op, v)

	t.mu.Lock()
	defer t.mu.Unlock()
	if len(line) > traceBufCap {
		return
	}
	if free := t.buf.Free(); free < len(line) {
		// Drop the oldest bytes to make room; smallnest/ringbuffer only
		// accepts a whole write when enough space is free.
		drop := make([]byte, len(line)-free)
		_, _ = t.buf.Read(drop)
	}
	_, _ = t.buf.Write([]byte(line))
}

// Dump returns the currently buffered trace lines, oldest first, without
// consuming them.
func (t *traceLog) Dump() string {
	if t == nil {
		return ""
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return string(t.buf.Bytes(nil))
}
