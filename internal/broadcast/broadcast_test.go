package broadcast

import (
	"context"
	"sync"
	"testing"

	"realtime-backend/internal/logging"
	"realtime-backend/internal/metrics"
)

type fakeTransport struct {
	mu      sync.Mutex
	results map[string]SendResult
	sent    map[string]int
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{results: make(map[string]SendResult), sent: make(map[string]int)}
}

func (f *fakeTransport) SendTo(ctx context.Context, connectionID string, data []byte) SendResult {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent[connectionID]++
	if res, ok := f.results[connectionID]; ok {
		return res
	}
	return SendResult{Status: SendOK}
}

type fakeListeners struct {
	conns []string
}

func (f *fakeListeners) GetListenersByLanguage(sessionID, targetLanguage string) []string {
	return f.conns
}

type fakeRemover struct {
	mu      sync.Mutex
	removed []string
}

func (f *fakeRemover) DeleteConnection(connectionID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.removed = append(f.removed, connectionID)
	return nil
}

type fakeListenerCounter struct {
	mu         sync.Mutex
	decrements int
}

func (f *fakeListenerCounter) DecrementListenerCount(sessionID string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.decrements++
	return 0, nil
}

func TestBroadcastToLanguageAllSucceed(t *testing.T) {
	transport := newFakeTransport()
	listeners := &fakeListeners{conns: []string{"c1", "c2", "c3"}}
	remover := &fakeRemover{}
	f := New(transport, listeners, remover, &fakeListenerCounter{}, 0, logging.NewNop(), metrics.NewRegistry())

	res := f.BroadcastToLanguage(context.Background(), "sess1", "ko", []byte("audio"))

	if res.SuccessCount != 3 {
		t.Errorf("SuccessCount = %d, want 3", res.SuccessCount)
	}
	if res.FailureCount != 0 || res.StaleRemoved != 0 {
		t.Errorf("unexpected failures/stale: %+v", res)
	}
}

func TestBroadcastToLanguageRemovesGoneConnections(t *testing.T) {
	transport := newFakeTransport()
	transport.results["c2"] = SendResult{Status: SendGone}
	listeners := &fakeListeners{conns: []string{"c1", "c2"}}
	remover := &fakeRemover{}
	f := New(transport, listeners, remover, &fakeListenerCounter{}, 0, logging.NewNop(), metrics.NewRegistry())

	res := f.BroadcastToLanguage(context.Background(), "sess1", "ko", []byte("audio"))

	if res.StaleRemoved != 1 {
		t.Errorf("StaleRemoved = %d, want 1", res.StaleRemoved)
	}
	if len(remover.removed) != 1 || remover.removed[0] != "c2" {
		t.Errorf("removed = %v, want [c2]", remover.removed)
	}
}

func TestBroadcastToLanguageDecrementsListenerCountOnStaleRemoval(t *testing.T) {
	transport := newFakeTransport()
	transport.results["c2"] = SendResult{Status: SendGone}
	listeners := &fakeListeners{conns: []string{"c1", "c2"}}
	remover := &fakeRemover{}
	counts := &fakeListenerCounter{}
	f := New(transport, listeners, remover, counts, 0, logging.NewNop(), metrics.NewRegistry())

	f.BroadcastToLanguage(context.Background(), "sess1", "ko", []byte("audio"))

	counts.mu.Lock()
	defer counts.mu.Unlock()
	if counts.decrements != 1 {
		t.Errorf("decrements = %d, want 1 for the single stale connection", counts.decrements)
	}
}

func TestBroadcastToLanguageNoListenersIsNoOp(t *testing.T) {
	transport := newFakeTransport()
	listeners := &fakeListeners{}
	remover := &fakeRemover{}
	f := New(transport, listeners, remover, &fakeListenerCounter{}, 0, logging.NewNop(), metrics.NewRegistry())

	res := f.BroadcastToLanguage(context.Background(), "sess1", "ko", []byte("audio"))
	if res.SuccessCount != 0 || res.FailureCount != 0 {
		t.Errorf("expected a no-op result, got %+v", res)
	}
}

func TestSendWithRetryExhaustsOnPersistentLimitExceeded(t *testing.T) {
	transport := newFakeTransport()
	transport.results["c1"] = SendResult{Status: SendLimitExceeded}
	listeners := &fakeListeners{conns: []string{"c1"}}
	remover := &fakeRemover{}
	f := New(transport, listeners, remover, &fakeListenerCounter{}, 0, logging.NewNop(), metrics.NewRegistry())

	res := f.BroadcastToLanguage(context.Background(), "sess1", "ko", []byte("audio"))

	if res.FailureCount != 1 {
		t.Errorf("FailureCount = %d, want 1 after exhausting retries", res.FailureCount)
	}
	if transport.sent["c1"] != f.maxRetries+1 {
		t.Errorf("sent[c1] = %d, want %d attempts", transport.sent["c1"], f.maxRetries+1)
	}
}
