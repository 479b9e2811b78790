package user

import (
	"sort"
	"sync"
	"time"
)

const latencySamples = 32

// latencyTracker keeps a running median of recent 2FA-send latencies.
// Failed sign-ins sleep for the median so "user does not exist" and
// "wrong password" are not distinguishable by response time from a
// sign-in that triggered a mail send.
type latencyTracker struct {
	mu      sync.Mutex
	samples []time.Duration
	next    int
	full    bool
}

func newLatencyTracker() *latencyTracker {
	return &latencyTracker{
		samples: make([]time.Duration, latencySamples),
	}
}

// Record adds one observed send latency to the ring.
func (t *latencyTracker) Record(d time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.samples[t.next] = d
	t.next = (t.next + 1) % len(t.samples)
	if t.next == 0 {
		t.full = true
	}
}

// Median returns the median of recorded samples, or 0 when nothing has
// been recorded yet.
func (t *latencyTracker) Median() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()

	n := t.next
	if t.full {
		n = len(t.samples)
	}
	if n == 0 {
		return 0
	}

	sorted := make([]time.Duration, n)
	copy(sorted, t.samples[:n])
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}
