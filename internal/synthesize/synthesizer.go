// Package synthesize implements the Parallel Synthesizer (C10): fan-out TTS
// over languages with bounded concurrency and per-call retry.
package synthesize

import (
	"context"
	"sync"

	"realtime-backend/internal/logging"
	"realtime-backend/internal/metrics"
	"realtime-backend/internal/resilience"
)

// Backend is the narrow external-collaborator interface for a speech
// synthesis provider. Voice selection for a language is the adapter's
// concern, matching the teacher's per-language defaultVoices table.
type Backend interface {
	Synthesize(ctx context.Context, markup, language string) ([]byte, error)
}

// DefaultMaxConcurrency matches the component design's broadcast semaphore
// default, reused here for the synthesis fan-out bound.
const DefaultMaxConcurrency = 100

// Synthesizer fans markup-per-language out to the synthesis backend.
type Synthesizer struct {
	backend     Backend
	retryCfg    resilience.RetryConfig
	concurrency int
	dm          *resilience.DegradationManager
	log         logging.Logger
	m           metrics.Sink
}

// New constructs a Parallel Synthesizer. dm may be nil, in which case
// per-language degradation is not recorded (used by tests).
func New(backend Backend, concurrency int, dm *resilience.DegradationManager, log logging.Logger, m metrics.Sink) *Synthesizer {
	if concurrency <= 0 {
		concurrency = DefaultMaxConcurrency
	}
	return &Synthesizer{
		backend:     backend,
		retryCfg:    resilience.DefaultRetryConfig(),
		concurrency: concurrency,
		dm:          dm,
		log:         log,
		m:           m,
	}
}

// SynthesizeToLanguages synthesizes audio for every (language, markup) pair
// concurrently, bounded by the configured concurrency limit. A language
// whose synthesis ultimately fails (after the retry budget) is omitted from
// the result; no language's failure affects any other.
func (s *Synthesizer) SynthesizeToLanguages(ctx context.Context, markupByLanguage map[string]string) map[string][]byte {
	type outcome struct {
		lang  string
		audio []byte
		ok    bool
	}

	sem := make(chan struct{}, s.concurrency)
	results := make(chan outcome, len(markupByLanguage))
	var wg sync.WaitGroup

	for lang, markup := range markupByLanguage {
		wg.Add(1)
		go func(lang, markup string) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			audio, err := resilience.WithFallback(s.dm, "synthesize:"+lang, func() ([]byte, error) {
				var audio []byte
				err := resilience.Retry(ctx, s.retryCfg, func(ctx context.Context) error {
					a, err := s.backend.Synthesize(ctx, markup, lang)
					if err != nil {
						return resilience.Retryable(err)
					}
					audio = a
					return nil
				})
				return audio, err
			}, func(err error) ([]byte, error) {
				s.log.Warn("synthesis failed for language", logging.String("language", lang), logging.Err(err))
				s.m.IncrCounter("synthesis_failures_total", 1, "language", lang)
				return nil, err
			})
			if err != nil {
				results <- outcome{lang: lang, ok: false}
				return
			}
			results <- outcome{lang: lang, audio: audio, ok: true}
		}(lang, markup)
	}

	go func() {
		wg.Wait()
		close(results)
	}()

	out := make(map[string][]byte, len(markupByLanguage))
	for o := range results {
		if o.ok {
			out[o.lang] = o.audio
		}
	}
	return out
}
