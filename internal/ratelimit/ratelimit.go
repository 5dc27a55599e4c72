// Package ratelimit implements the partial-result Rate Limiter: a sliding
// window selector admitting at most one best candidate per window.
package ratelimit

import (
	"sync"
	"time"

	"realtime-backend/internal/types"
)

// DefaultWindow and DefaultMaxPerWindow match the component design defaults.
const (
	DefaultWindow       = 200 * time.Millisecond
	DefaultMaxPerWindow = 5
)

// Limiter buffers partial-result candidates for one sliding window and
// selects the single best one on flush. One instance lives per session,
// touched only from that session's owning task (see concurrency model).
type Limiter struct {
	mu         sync.Mutex
	window     time.Duration
	capacity   int
	candidates []types.PartialResult

	processed int64
	dropped   int64
}

// New constructs a Limiter with the given window and per-window capacity.
func New(window time.Duration, capacity int) *Limiter {
	if window <= 0 {
		window = DefaultWindow
	}
	if capacity <= 0 {
		capacity = DefaultMaxPerWindow
	}
	return &Limiter{window: window, capacity: capacity}
}

func score(p types.PartialResult) float64 {
	if !p.StabilityScore.Set {
		return 0
	}
	return p.StabilityScore.Value
}

// ShouldProcess appends result to the current window and always returns
// false: no candidate is forwarded immediately, only via FlushWindow once
// the window closes. If the window is already at capacity, the current
// worst candidate is evicted (counted as dropped) to admit the new one.
func (l *Limiter) ShouldProcess(p types.PartialResult) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if len(l.candidates) >= l.capacity {
		worstIdx := l.worstIndexLocked()
		l.candidates = append(l.candidates[:worstIdx], l.candidates[worstIdx+1:]...)
		l.dropped++
	}
	l.candidates = append(l.candidates, p)
	return false
}

func (l *Limiter) worstIndexLocked() int {
	worst := 0
	for i := 1; i < len(l.candidates); i++ {
		if lessCandidate(l.candidates[i], l.candidates[worst]) {
			worst = i
		}
	}
	return worst
}

// lessCandidate reports whether a ranks below b under (stabilityScore,
// timestamp) argmax, i.e. a is a worse candidate than b.
func lessCandidate(a, b types.PartialResult) bool {
	sa, sb := score(a), score(b)
	if sa != sb {
		return sa < sb
	}
	return a.Timestamp < b.Timestamp
}

// FlushWindow returns the best candidate in the current window — argmax by
// (stabilityScore, timestamp), missing score treated as 0 — and the count of
// other candidates it is discarding as dropped. The window is cleared.
// Returns ok=false if the window held nothing.
func (l *Limiter) FlushWindow() (best types.PartialResult, droppedThisFlush int, ok bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if len(l.candidates) == 0 {
		return types.PartialResult{}, 0, false
	}

	bestIdx := 0
	for i := 1; i < len(l.candidates); i++ {
		if lessCandidate(l.candidates[bestIdx], l.candidates[i]) {
			bestIdx = i
		}
	}
	best = l.candidates[bestIdx]
	droppedThisFlush = len(l.candidates) - 1

	l.processed++
	l.dropped += int64(droppedThisFlush)
	l.candidates = nil

	return best, droppedThisFlush, true
}

// Window reports the configured sliding-window duration, used by callers
// that drive FlushWindow off a ticker.
func (l *Limiter) Window() time.Duration {
	return l.window
}

// Stats reports cumulative processed/dropped counters.
func (l *Limiter) Stats() (processed, dropped int64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.processed, l.dropped
}
