// Package translate implements the Parallel Translator (C8): fan-out
// translation over a set of target languages, cache-first, with per-target
// timeout and isolation.
package translate

import (
	"context"
	"sync"
	"time"

	"realtime-backend/internal/logging"
	"realtime-backend/internal/metrics"
	"realtime-backend/internal/resilience"
	"realtime-backend/internal/translationcache"
)

// Backend is the narrow external-collaborator interface for a machine
// translation provider, per the Design Notes' duck-typed-client guidance.
type Backend interface {
	Translate(ctx context.Context, source, target, text string) (string, error)
}

// DefaultPerTargetTimeout matches the component design default.
const DefaultPerTargetTimeout = 2 * time.Second

// Translator fans a single source text out to every requested target
// language concurrently.
type Translator struct {
	backend Backend
	cache   *translationcache.Cache
	timeout time.Duration
	dm      *resilience.DegradationManager
	log     logging.Logger
	m       metrics.Sink
}

// New constructs a Parallel Translator. dm may be nil, in which case
// per-target degradation is not recorded (used by tests).
func New(backend Backend, cache *translationcache.Cache, timeout time.Duration, dm *resilience.DegradationManager, log logging.Logger, m metrics.Sink) *Translator {
	if timeout <= 0 {
		timeout = DefaultPerTargetTimeout
	}
	return &Translator{backend: backend, cache: cache, timeout: timeout, dm: dm, log: log, m: m}
}

// TranslateToLanguages translates text from source into every target in
// targets, concurrently. A target whose translation errors or times out is
// omitted from the result; no target's failure affects any other.
func (t *Translator) TranslateToLanguages(ctx context.Context, source, text string, targets []string) map[string]string {
	type outcome struct {
		target string
		text   string
		ok     bool
	}

	results := make(chan outcome, len(targets))
	var wg sync.WaitGroup

	cacheHits := int64(0)
	var cacheMu sync.Mutex

	for _, target := range targets {
		wg.Add(1)
		go func(target string) {
			defer wg.Done()

			if cached, hit := t.cache.Get(source, target, text); hit {
				cacheMu.Lock()
				cacheHits++
				cacheMu.Unlock()
				results <- outcome{target: target, text: cached, ok: true}
				return
			}

			callCtx, cancel := context.WithTimeout(ctx, t.timeout)
			defer cancel()

			start := time.Now()
			translated, err := resilience.WithFallback(t.dm, "translate:"+target, func() (string, error) {
				return t.backend.Translate(callCtx, source, target, text)
			}, func(err error) (string, error) {
				t.log.Warn("translation failed for target",
					logging.String("target", target), logging.Err(err))
				t.m.IncrCounter("translation_failures_total", 1, "target", target)
				return "", err
			})
			t.m.ObserveHistogram("translation_latency_ms", float64(time.Since(start).Milliseconds()), "target", target)
			if err != nil {
				results <- outcome{target: target, ok: false}
				return
			}

			t.cache.Put(source, target, text, translated)
			results <- outcome{target: target, text: translated, ok: true}
		}(target)
	}

	go func() {
		wg.Wait()
		close(results)
	}()

	out := make(map[string]string, len(targets))
	for o := range results {
		if o.ok {
			out[o.target] = o.text
		}
	}

	if len(targets) > 0 {
		t.m.SetGauge("translation_batch_cache_hit_rate", float64(cacheHits)/float64(len(targets)))
	}
	return out
}
