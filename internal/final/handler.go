// Package final implements the Final-Result Handler (C6): reconciles a
// committed ASR segment against buffered partials, reports discrepancy, and
// forwards the final text if it is not a duplicate.
package final

import (
	"context"

	"realtime-backend/internal/buffer"
	"realtime-backend/internal/dedup"
	"realtime-backend/internal/logging"
	"realtime-backend/internal/metrics"
	"realtime-backend/internal/types"
)

// Forwarder is the narrow interface the handler calls to hand a forwarded
// transcript to the Pipeline Orchestrator (C12).
type Forwarder interface {
	Forward(ctx context.Context, sessionID, sourceLanguage, text string) error
}

// SharedDedup is an optional cross-instance extension of the Dedup Cache
// (C2), consulted alongside the per-session local cache when a gateway runs
// behind a Redis-backed deployment so a final already forwarded by a sibling
// instance isn't forwarded twice.
type SharedDedup interface {
	Add(ctx context.Context, textHash string) (bool, error)
}

// Handler is owned by exactly one session, mirroring the Partial-Result
// Handler's ownership model.
type Handler struct {
	sessionID string

	buf    *buffer.ResultBuffer
	dedup  *dedup.Cache
	shared SharedDedup

	forwarder Forwarder
	log       logging.Logger
	m         metrics.Sink
}

// New constructs a Final-Result Handler for one session.
func New(sessionID string, buf *buffer.ResultBuffer, dc *dedup.Cache, fwd Forwarder, log logging.Logger, m metrics.Sink) *Handler {
	return &Handler{sessionID: sessionID, buf: buf, dedup: dc, forwarder: fwd, log: log, m: m}
}

// SetShared wires the optional cross-instance dedup check. A nil shared
// (the default, when no Redis address is configured) leaves this handler
// relying solely on its local per-session cache.
func (h *Handler) SetShared(shared SharedDedup) {
	h.shared = shared
}

const discrepancyWindowMs = 5000

// ProcessFinal implements the four-step reconciliation from the component
// design. It never propagates an error to the caller; failures are logged
// and absorbed, matching the orchestrator's "never raise to the transport"
// policy.
func (h *Handler) ProcessFinal(ctx context.Context, f types.FinalResult, now int64) {
	removed := h.removeMatchingPartials(f)

	if h.dedup.Contains(f.Text) {
		h.m.IncrCounter("final_results_deduped_total", 1, "scope", "local")
		return
	}

	if h.shared != nil {
		isNew, err := h.shared.Add(ctx, dedup.Hash(f.Text))
		if err != nil {
			h.log.Warn("shared dedup check failed", logging.String("sessionId", h.sessionID), logging.Err(err))
		} else if !isNew {
			h.m.IncrCounter("final_results_deduped_total", 1, "scope", "shared")
			return
		}
	}

	if err := h.forwarder.Forward(ctx, h.sessionID, f.SourceLanguage, f.Text); err != nil {
		h.log.Warn("forward of final result failed", logging.String("sessionId", h.sessionID), logging.Err(err))
		return
	}
	h.dedup.Add(f.Text)
	h.m.IncrCounter("final_results_forwarded_total", 1)

	for _, p := range removed {
		if !p.Forwarded {
			continue
		}
		d := Discrepancy(p.Text, f.Text)
		if d > 20.0 {
			h.log.Warn("final result diverges from forwarded partial",
				logging.String("sessionId", h.sessionID),
				logging.String("partialText", p.Text),
				logging.String("finalText", f.Text),
				logging.Float64("discrepancyPercent", d))
			h.m.IncrCounter("final_result_discrepancies_total", 1)
		}
	}
}

// removeMatchingPartials removes buffered partials superseded by f: those
// named explicitly via ReplacesResultIDs, else those whose timestamp falls
// within [f.Timestamp-5s, f.Timestamp].
func (h *Handler) removeMatchingPartials(f types.FinalResult) []types.BufferedResult {
	var removed []types.BufferedResult

	if len(f.ReplacesResultIDs) > 0 {
		for _, id := range f.ReplacesResultIDs {
			if br, ok := h.buf.GetByID(id); ok {
				removed = append(removed, br)
				h.buf.RemoveByID(id)
			}
		}
		return removed
	}

	lower := f.Timestamp - discrepancyWindowMs
	for _, br := range h.buf.GetAll() {
		if br.Timestamp >= lower && br.Timestamp <= f.Timestamp {
			removed = append(removed, br)
			h.buf.RemoveByID(br.ResultID)
		}
	}
	return removed
}

// Discrepancy computes the rune-based Levenshtein edit distance between a and
// b, normalized by the longer string's rune length, expressed as a
// percentage. It is symmetric and zero for identical inputs by construction.
func Discrepancy(a, b string) float64 {
	ra, rb := []rune(a), []rune(b)
	maxLen := len(ra)
	if len(rb) > maxLen {
		maxLen = len(rb)
	}
	if maxLen == 0 {
		return 0
	}
	dist := levenshtein(ra, rb)
	return (float64(dist) / float64(maxLen)) * 100
}

func levenshtein(a, b []rune) int {
	la, lb := len(a), len(b)
	if la == 0 {
		return lb
	}
	if lb == 0 {
		return la
	}

	prev := make([]int, lb+1)
	curr := make([]int, lb+1)
	for j := 0; j <= lb; j++ {
		prev[j] = j
	}

	for i := 1; i <= la; i++ {
		curr[0] = i
		for j := 1; j <= lb; j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			curr[j] = min3(curr[j-1]+1, prev[j]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}
	return prev[lb]
}

func min3(a, b, c int) int {
	m := a
	if b < m {
		m = b
	}
	if c < m {
		m = c
	}
	return m
}
