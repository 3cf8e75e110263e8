// internal/budget/monitor.go
package budget

import (
	"runtime"
	"time"
)

// Limits configures a monitor. Zero or negative limits mean the host
// reported "unlimited"; the substitute values are used instead so a
// finite budget always exists.
type Limits struct {
	MemoryLimit          uint64
	TimeLimit            time.Duration
	UnlimitedMemoryLimit uint64
	UnlimitedTimeLimit   time.Duration
	MemoryThreshold      float64
	TimeThreshold        float64
}

// Monitor tracks elapsed time and heap usage within one batch job and
// answers whether the job should yield back to the queue. Thresholds
// are fractions below 1.0 so the job yields with headroom left for
// cleanup and the continuation enqueue.
type Monitor struct {
	memoryLimit     uint64
	timeLimit       time.Duration
	memoryThreshold float64
	timeThreshold   float64
	startedAt       time.Time

	now      func() time.Time
	heapUsed func() uint64
}

// NewMonitor starts a monitor clocked from the moment of construction.
func NewMonitor(l Limits) *Monitor {
	m := &Monitor{
		memoryLimit:     l.MemoryLimit,
		timeLimit:       l.TimeLimit,
		memoryThreshold: l.MemoryThreshold,
		timeThreshold:   l.TimeThreshold,
		now:             time.Now,
		heapUsed:        heapAlloc,
	}
	if m.memoryLimit == 0 {
		m.memoryLimit = l.UnlimitedMemoryLimit
	}
	if m.timeLimit <= 0 {
		m.timeLimit = l.UnlimitedTimeLimit
	}
	m.startedAt = m.now()
	return m
}

// ShouldYield reports whether either budget fraction has been consumed.
// Called after every message send; no I/O, O(1).
func (m *Monitor) ShouldYield() bool {
	if m.Elapsed() >= time.Duration(float64(m.timeLimit)*m.timeThreshold) {
		return true
	}
	return m.heapUsed() >= uint64(float64(m.memoryLimit)*m.memoryThreshold)
}

// Elapsed returns the wall time consumed so far.
func (m *Monitor) Elapsed() time.Duration {
	return m.now().Sub(m.startedAt)
}

func heapAlloc() uint64 {
	var stats runtime.MemStats
	runtime.ReadMemStats(&stats)
	return stats.Alloc
}
