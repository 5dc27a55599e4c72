package transport

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"realtime-backend/internal/buffer"
	"realtime-backend/internal/dedup"
	"realtime-backend/internal/final"
	"realtime-backend/internal/logging"
	"realtime-backend/internal/metrics"
	"realtime-backend/internal/partial"
	"realtime-backend/internal/ratelimit"
	"realtime-backend/internal/sentence"
	"realtime-backend/internal/types"
)

// sessionPipeline bundles the per-speaker-session instances of C1-C6 (Result
// Buffer, Dedup Cache, Rate Limiter, Sentence Boundary Detector, Partial and
// Final Result Handlers) and runs the background flush/sweep loops that turn
// buffered partials into forwarded ones.
type sessionPipeline struct {
	sessionID       string
	partials        *partial.Handler
	finals          *final.Handler
	window          time.Duration
	orphan          time.Duration
	partialsEnabled bool
	log             logging.Logger

	finalsHandled atomic.Int64
}

func newSessionPipeline(sessionID, sourceLanguage string, minStability float64, capacityWords int, cfg pipelineConfig, forwarder partial.Forwarder, finalForwarder final.Forwarder, sharedDedup final.SharedDedup, partialsEnabled bool, log logging.Logger, m metrics.Sink) *sessionPipeline {
	buf := buffer.New(capacityWords, minStability)
	dedupCache := dedup.New(cfg.dedupTTL)
	limiter := ratelimit.New(cfg.rateWindow, cfg.rateCapacity)
	detector := sentence.New(sentence.Config{
		PauseThreshold:        cfg.pauseThreshold,
		MaxBufferTimeout:      cfg.maxBufferTimeout,
		StabilityFallbackWait: cfg.stabilityFallbackWait,
	})

	finals := final.New(sessionID, buf, dedupCache, finalForwarder, log, m)
	if sharedDedup != nil {
		finals.SetShared(sharedDedup)
	}

	return &sessionPipeline{
		sessionID:       sessionID,
		partials:        partial.New(sessionID, minStability, buf, dedupCache, limiter, detector, forwarder, log, m),
		finals:          finals,
		window:          cfg.rateWindow,
		orphan:          cfg.orphanTimeout,
		partialsEnabled: partialsEnabled,
		log:             log,
	}
}

type pipelineConfig struct {
	dedupTTL              time.Duration
	rateWindow            time.Duration
	rateCapacity          int
	pauseThreshold        time.Duration
	maxBufferTimeout      time.Duration
	stabilityFallbackWait time.Duration
	orphanTimeout         time.Duration
}

// run ticks the window-flush and orphan-sweep loops until ctx is cancelled.
func (p *sessionPipeline) run(ctx context.Context) {
	flushTicker := time.NewTicker(p.window)
	sweepTicker := time.NewTicker(p.orphan / 3)
	defer flushTicker.Stop()
	defer sweepTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-flushTicker.C:
			p.partials.FlushWindow(ctx, time.Now().UnixMilli())
		case <-sweepTicker.C:
			p.partials.SweepOrphans(ctx, time.Now().UnixMilli(), p.orphan)
		}
	}
}

func (p *sessionPipeline) handleASRText(ctx context.Context, sourceLanguage, text string, isPartial bool, stability types.Optional[float64]) {
	now := time.Now().UnixMilli()
	if isPartial {
		if !p.partialsEnabled {
			return
		}
		p.partials.ProcessPartial(types.PartialResult{
			ResultID:       uuid.NewString(),
			Text:           text,
			Timestamp:      now,
			StabilityScore: stability,
			SessionID:      p.sessionID,
			SourceLanguage: sourceLanguage,
		}, now)
		return
	}
	p.finals.ProcessFinal(ctx, types.FinalResult{
		ResultID:       uuid.NewString(),
		Text:           text,
		Timestamp:      now,
		SessionID:      p.sessionID,
		SourceLanguage: sourceLanguage,
	}, now)
	p.finalsHandled.Add(1)
}

// FinalsHandled reports how many final segments this pipeline has handed to
// the Final-Result Handler, used as the audit trail's forwarded-count.
func (p *sessionPipeline) FinalsHandled() int64 {
	return p.finalsHandled.Load()
}
