// Package sentence implements the Sentence Boundary Detector: a heuristic for
// deciding whether an in-flight result is "ready to forward".
package sentence

import (
	"strings"
	"sync"
	"time"

	"realtime-backend/internal/types"
)

// terminators are the sentence-terminating punctuation runes recognized
// across the supported source languages.
var terminators = []string{".", "?", "!", "。", "？", "！"}

// Config carries the three tunable thresholds this detector consults.
type Config struct {
	PauseThreshold        time.Duration
	MaxBufferTimeout      time.Duration
	StabilityFallbackWait time.Duration
}

// DefaultConfig matches the component design's stated defaults.
func DefaultConfig() Config {
	return Config{
		PauseThreshold:        2 * time.Second,
		MaxBufferTimeout:      5 * time.Second,
		StabilityFallbackWait: 3 * time.Second,
	}
}

// Detector tracks one session's last-result time and evaluates completeness.
// Owned by exactly one session per the concurrency model.
type Detector struct {
	mu             sync.Mutex
	cfg            Config
	lastResultTime int64 // ms since epoch
}

// New constructs a Detector with the given config.
func New(cfg Config) *Detector {
	return &Detector{cfg: cfg}
}

// IsCompleteSentence implements the five-way OR from the component design.
func (d *Detector) IsCompleteSentence(result types.PartialResult, isFinal bool, buffered *types.BufferedResult, now int64) bool {
	if isFinal {
		return true
	}
	if endsWithTerminator(result.Text) {
		return true
	}

	d.mu.Lock()
	lastResultTime := d.lastResultTime
	d.mu.Unlock()

	if lastResultTime != 0 && now-lastResultTime >= d.cfg.PauseThreshold.Milliseconds() {
		return true
	}

	if buffered != nil {
		if now-buffered.AddedAt >= d.cfg.MaxBufferTimeout.Milliseconds() {
			return true
		}
		if !result.StabilityScore.Set && now-buffered.AddedAt >= d.cfg.StabilityFallbackWait.Milliseconds() {
			return true
		}
	}

	return false
}

func endsWithTerminator(text string) bool {
	trimmed := strings.TrimRight(text, " \t\n\r")
	for _, t := range terminators {
		if strings.HasSuffix(trimmed, t) {
			return true
		}
	}
	return false
}

// UpdateLastResultTime is called after a successful forward, per the
// Partial-Result Handler's "On successful forward, update
// sentenceDetector.lastResultTime = p.timestamp" rule.
func (d *Detector) UpdateLastResultTime(timestamp int64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.lastResultTime = timestamp
}

// LastResultTime returns the last recorded forward timestamp (0 if none).
func (d *Detector) LastResultTime() int64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.lastResultTime
}
