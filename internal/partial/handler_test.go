package partial

import (
	"context"
	"errors"
	"testing"
	"time"

	"realtime-backend/internal/buffer"
	"realtime-backend/internal/dedup"
	"realtime-backend/internal/logging"
	"realtime-backend/internal/metrics"
	"realtime-backend/internal/ratelimit"
	"realtime-backend/internal/sentence"
	"realtime-backend/internal/types"
)

type fakeForwarder struct {
	forwarded []string
	err       error
}

func (f *fakeForwarder) Forward(ctx context.Context, sessionID, sourceLanguage, text string) error {
	if f.err != nil {
		return f.err
	}
	f.forwarded = append(f.forwarded, text)
	return nil
}

func newHandler(fwd Forwarder) (*Handler, *buffer.ResultBuffer) {
	buf := buffer.New(1000, 0.5)
	dc := dedup.New(time.Minute)
	limiter := ratelimit.New(time.Minute, 10) // window flushed manually in tests
	detector := sentence.New(sentence.DefaultConfig())
	m := metrics.NewRegistry()
	return New("sess1", 0.5, buf, dc, limiter, detector, fwd, logging.NewNop(), m), buf
}

func TestProcessPartialDropsEmptyText(t *testing.T) {
	fwd := &fakeForwarder{}
	h, buf := newHandler(fwd)
	h.ProcessPartial(types.PartialResult{ResultID: "r1", Text: "   "}, 1000)
	if buf.Size() != 0 {
		t.Errorf("empty-text partial should never be buffered")
	}
}

func TestProcessPartialAndFlushForwardsCompleteSentence(t *testing.T) {
	fwd := &fakeForwarder{}
	h, _ := newHandler(fwd)

	h.ProcessPartial(types.PartialResult{
		ResultID:       "r1",
		Text:           "hello there.",
		Timestamp:      1000,
		StabilityScore: types.Some(0.9),
		SourceLanguage: "en",
	}, 1000)

	h.FlushWindow(context.Background(), 2000)

	if len(fwd.forwarded) != 1 || fwd.forwarded[0] != "hello there." {
		t.Fatalf("forwarded = %v, want [\"hello there.\"]", fwd.forwarded)
	}
}

func TestProcessPartialWithheldBelowStabilityThreshold(t *testing.T) {
	fwd := &fakeForwarder{}
	h, _ := newHandler(fwd)

	h.ProcessPartial(types.PartialResult{
		ResultID:       "r1",
		Text:           "hello there.", // complete sentence, but low stability
		Timestamp:      1000,
		StabilityScore: types.Some(0.1),
	}, 1000)

	h.FlushWindow(context.Background(), 2000)

	if len(fwd.forwarded) != 0 {
		t.Errorf("low-stability candidate should not have been admitted to the rate limiter")
	}
}

func TestFlushWindowSkipsDuplicateText(t *testing.T) {
	fwd := &fakeForwarder{}
	h, _ := newHandler(fwd)
	h.dedup.Add("hello there.")

	h.ProcessPartial(types.PartialResult{
		ResultID:       "r1",
		Text:           "hello there.",
		Timestamp:      1000,
		StabilityScore: types.Some(0.9),
	}, 1000)
	h.FlushWindow(context.Background(), 2000)

	if len(fwd.forwarded) != 0 {
		t.Errorf("already-seen text should be suppressed by dedup, got %v", fwd.forwarded)
	}
}

func TestFlushWindowLogsAndKeepsGoingOnForwardError(t *testing.T) {
	fwd := &fakeForwarder{err: errors.New("boom")}
	h, _ := newHandler(fwd)

	h.ProcessPartial(types.PartialResult{
		ResultID:       "r1",
		Text:           "hello there.",
		Timestamp:      1000,
		StabilityScore: types.Some(0.9),
	}, 1000)

	h.FlushWindow(context.Background(), 2000) // must not panic
}

func TestSweepOrphansForwardsAndRemoves(t *testing.T) {
	fwd := &fakeForwarder{}
	h, buf := newHandler(fwd)

	h.ProcessPartial(types.PartialResult{
		ResultID:       "r1",
		Text:           "still speaking", // no terminator, not yet complete
		Timestamp:      1000,
		SourceLanguage: "en",
	}, 1000)

	h.SweepOrphans(context.Background(), 100000, 5*time.Second)

	if len(fwd.forwarded) != 1 || fwd.forwarded[0] != "still speaking" {
		t.Fatalf("forwarded = %v, want the orphaned partial forwarded", fwd.forwarded)
	}
	if buf.Size() != 0 {
		t.Errorf("orphan should have been removed from the buffer after sweep")
	}
}
