// Package partial implements the Partial-Result Handler (C5): applies the
// dedup cache, rate limiter, and sentence boundary detector to incoming
// partial ASR results, forwarding or buffering each one.
package partial

import (
	"context"
	"strings"
	"time"

	"realtime-backend/internal/buffer"
	"realtime-backend/internal/dedup"
	"realtime-backend/internal/logging"
	"realtime-backend/internal/metrics"
	"realtime-backend/internal/ratelimit"
	"realtime-backend/internal/sentence"
	"realtime-backend/internal/types"
)

// Forwarder is the narrow interface the handler calls to hand a forwarded
// transcript to the Pipeline Orchestrator (C12), avoiding a package cycle.
type Forwarder interface {
	Forward(ctx context.Context, sessionID, sourceLanguage, text string) error
}

// Handler is owned by exactly one session (concurrency model: per-session
// serialization of partial/final handling).
type Handler struct {
	sessionID    string
	minStability float64

	buf      *buffer.ResultBuffer
	dedup    *dedup.Cache
	limiter  *ratelimit.Limiter
	detector *sentence.Detector

	forwarder Forwarder
	log       logging.Logger
	m         metrics.Sink
}

// New constructs a Partial-Result Handler for one session.
func New(sessionID string, minStability float64, buf *buffer.ResultBuffer, dc *dedup.Cache, limiter *ratelimit.Limiter, detector *sentence.Detector, fwd Forwarder, log logging.Logger, m metrics.Sink) *Handler {
	return &Handler{
		sessionID:    sessionID,
		minStability: minStability,
		buf:          buf,
		dedup:        dc,
		limiter:      limiter,
		detector:     detector,
		forwarder:    fwd,
		log:          log,
		m:            m,
	}
}

// ProcessPartial applies the C5 decision table to one incoming partial. It
// never forwards the text itself — eligible candidates are admitted to the
// rate-limiter's sliding window; FlushWindow (driven by a ticker) performs
// the actual forward once a window closes.
func (h *Handler) ProcessPartial(p types.PartialResult, now int64) {
	if strings.TrimSpace(p.Text) == "" {
		h.log.Warn("dropping empty partial result", logging.String("sessionId", h.sessionID), logging.String("resultId", p.ResultID))
		h.m.IncrCounter("partial_results_dropped_total", 1, "reason", "empty_text")
		return
	}

	buffered, existed := h.buf.GetByID(p.ResultID)
	h.buf.Add(p, now)
	if !existed {
		h.m.IncrCounter("partial_results_buffered_total", 1)
	}

	var bufferedPtr *types.BufferedResult
	if existed {
		bufferedPtr = &buffered
	}

	isComplete := h.detector.IsCompleteSentence(p, false, bufferedPtr, now)
	stabilityOK := true
	if p.StabilityScore.Set && p.StabilityScore.Value < h.minStability {
		stabilityOK = false
	}

	if !isComplete || !stabilityOK {
		return
	}

	h.limiter.ShouldProcess(p)
}

// FlushWindow selects the best candidate of the current rate-limiter window
// (if any) and forwards it, subject to dedup suppression. Intended to be
// called by a ticker at the limiter's configured window interval.
func (h *Handler) FlushWindow(ctx context.Context, now int64) {
	best, dropped, ok := h.limiter.FlushWindow()
	if dropped > 0 {
		h.m.IncrCounter("partial_results_rate_limited_total", float64(dropped))
	}
	if !ok {
		return
	}

	if h.dedup.Contains(best.Text) {
		h.m.IncrCounter("partial_results_deduped_total", 1)
		return
	}

	if err := h.forwarder.Forward(ctx, h.sessionID, best.SourceLanguage, best.Text); err != nil {
		h.log.Warn("forward of partial result failed", logging.String("sessionId", h.sessionID), logging.Err(err))
		return
	}

	h.dedup.Add(best.Text)
	h.buf.MarkForwarded(best.ResultID)
	h.detector.UpdateLastResultTime(best.Timestamp)
	h.m.IncrCounter("partial_results_forwarded_total", 1)
}

// SweepOrphans flushes any buffered partial left unforwarded for longer than
// orphanTimeout, forwarding it as if complete and removing it from the
// buffer, matching the original orphan-cleanup behavior, redesigned here as
// an explicit ticker-driven pass rather than an opportunistic per-call check.
func (h *Handler) SweepOrphans(ctx context.Context, now int64, orphanTimeout time.Duration) {
	orphans := h.buf.GetOrphaned(now, int64(orphanTimeout.Seconds()))
	if len(orphans) == 0 {
		return
	}

	h.log.Warn("flushing orphaned partial results",
		logging.String("sessionId", h.sessionID),
		logging.Int("count", len(orphans)))
	h.m.IncrCounter("orphaned_results_flushed_total", float64(len(orphans)))

	for _, o := range orphans {
		if !h.dedup.Contains(o.Text) {
			if err := h.forwarder.Forward(ctx, h.sessionID, o.SourceLanguage, o.Text); err != nil {
				h.log.Warn("forward of orphaned result failed", logging.String("sessionId", h.sessionID), logging.Err(err))
			} else {
				h.dedup.Add(o.Text)
			}
		}
		h.buf.RemoveByID(o.ResultID)
	}
}
