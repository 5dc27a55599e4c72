package transport

import (
	"context"
	"sync"
	"testing"
	"time"

	"realtime-backend/internal/logging"
	"realtime-backend/internal/metrics"
	"realtime-backend/internal/types"
)

type fakePipelineForwarder struct {
	mu   sync.Mutex
	text []string
}

func (f *fakePipelineForwarder) Forward(ctx context.Context, sessionID, sourceLanguage, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.text = append(f.text, text)
	return nil
}

func (f *fakePipelineForwarder) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.text)
}

func testPipelineConfig() pipelineConfig {
	return pipelineConfig{
		dedupTTL:              time.Second,
		rateWindow:            50 * time.Millisecond,
		rateCapacity:          5,
		pauseThreshold:        2 * time.Second,
		maxBufferTimeout:      5 * time.Second,
		stabilityFallbackWait: time.Second,
		orphanTimeout:         15 * time.Second,
	}
}

func TestHandleASRTextFinalIncrementsFinalsHandled(t *testing.T) {
	fwd := &fakePipelineForwarder{}
	p := newSessionPipeline("s1", "en", 0.85, 100, testPipelineConfig(), fwd, fwd, nil, true, logging.NewNop(), metrics.NewRegistry())

	if p.FinalsHandled() != 0 {
		t.Fatalf("FinalsHandled() = %d, want 0 before any finals", p.FinalsHandled())
	}
	p.handleASRText(context.Background(), "en", "hello world.", false, types.None[float64]())
	if p.FinalsHandled() != 1 {
		t.Errorf("FinalsHandled() = %d, want 1", p.FinalsHandled())
	}
	if fwd.count() != 1 {
		t.Errorf("forwarder received %d calls, want 1", fwd.count())
	}
}

func TestHandleASRTextPartialDoesNotIncrementFinalsHandled(t *testing.T) {
	fwd := &fakePipelineForwarder{}
	p := newSessionPipeline("s1", "en", 0.85, 100, testPipelineConfig(), fwd, fwd, nil, true, logging.NewNop(), metrics.NewRegistry())

	p.handleASRText(context.Background(), "en", "hello", true, types.Some(0.9))
	if p.FinalsHandled() != 0 {
		t.Errorf("FinalsHandled() = %d, want 0 for a partial", p.FinalsHandled())
	}
}

func TestHandleASRTextSkipsPartialsWhenDisabled(t *testing.T) {
	fwd := &fakePipelineForwarder{}
	p := newSessionPipeline("s1", "en", 0.85, 100, testPipelineConfig(), fwd, fwd, nil, false, logging.NewNop(), metrics.NewRegistry())

	p.handleASRText(context.Background(), "en", "hello", true, types.Some(0.9))
	if fwd.count() != 0 {
		t.Errorf("forwarder received %d calls, want 0 for a partial with partials disabled", fwd.count())
	}

	p.handleASRText(context.Background(), "en", "hello world.", false, types.None[float64]())
	if fwd.count() != 1 {
		t.Errorf("forwarder received %d calls, want 1 for the final even with partials disabled", fwd.count())
	}
}

func TestRunStopsOnContextCancel(t *testing.T) {
	fwd := &fakePipelineForwarder{}
	p := newSessionPipeline("s1", "en", 0.85, 100, testPipelineConfig(), fwd, fwd, nil, true, logging.NewNop(), metrics.NewRegistry())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		p.run(ctx)
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("run() did not return after context cancellation")
	}
}
