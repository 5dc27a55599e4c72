// Package broadcast implements Broadcast Fan-out (C11): queries listeners by
// language, sends audio to each concurrently, and evicts stale connections.
package broadcast

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"realtime-backend/internal/logging"
	"realtime-backend/internal/metrics"
)

// SendStatus classifies the outcome of one Transport.SendTo call.
type SendStatus int

const (
	SendOK SendStatus = iota
	SendGone
	SendLimitExceeded
	SendError
)

// SendResult is Transport.sendTo's return value.
type SendResult struct {
	Status SendStatus
	Err    error
}

// Transport is the narrow external-collaborator interface for pushing bytes
// to one connection; out of scope per spec.md, specified as an interface.
type Transport interface {
	SendTo(ctx context.Context, connectionID string, data []byte) SendResult
}

// ListenerQuery resolves the listener connections for a (session, language)
// pair, backed by the Connection Store's language index (C14).
type ListenerQuery interface {
	GetListenersByLanguage(sessionID, targetLanguage string) []string
}

// ConnectionRemover removes a stale connection, backed by C14.
type ConnectionRemover interface {
	DeleteConnection(connectionID string) error
}

// ListenerCounter decrements a session's listener count with a floor at
// zero, backed by C13's conditional decrement.
type ListenerCounter interface {
	DecrementListenerCount(sessionID string) (int64, error)
}

// Result is broadcastToLanguage's aggregate return value.
type Result struct {
	SuccessCount int
	FailureCount int
	StaleRemoved int
	DurationMs   int64
}

// DefaultMaxConcurrent and DefaultMaxRetries match the component design.
const (
	DefaultMaxConcurrent = 100
	DefaultMaxRetries    = 2
	retryBaseDelay       = 100 * time.Millisecond
)

// Fanout performs the broadcast.
type Fanout struct {
	transport   Transport
	listeners   ListenerQuery
	connections ConnectionRemover
	counts      ListenerCounter
	concurrency int
	maxRetries  int
	log         logging.Logger
	m           metrics.Sink
}

// New constructs a Broadcast Fan-out.
func New(transport Transport, listeners ListenerQuery, connections ConnectionRemover, counts ListenerCounter, concurrency int, log logging.Logger, m metrics.Sink) *Fanout {
	if concurrency <= 0 {
		concurrency = DefaultMaxConcurrent
	}
	return &Fanout{
		transport:   transport,
		listeners:   listeners,
		connections: connections,
		counts:      counts,
		concurrency: concurrency,
		maxRetries:  DefaultMaxRetries,
		log:         log,
		m:           m,
	}
}

// BroadcastToLanguage sends audio to every listener of sessionID currently
// targeting targetLanguage. Per-listener failures never fail the broadcast.
func (f *Fanout) BroadcastToLanguage(ctx context.Context, sessionID, targetLanguage string, audio []byte) Result {
	start := time.Now()
	connIDs := f.listeners.GetListenersByLanguage(sessionID, targetLanguage)

	sem := make(chan struct{}, f.concurrency)
	var wg sync.WaitGroup
	var success, failure, staleRemoved atomic.Int64

	for _, connID := range connIDs {
		wg.Add(1)
		go func(connID string) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			switch f.sendWithRetry(ctx, connID, audio) {
			case SendOK:
				success.Add(1)
			case SendGone:
				if err := f.connections.DeleteConnection(connID); err != nil {
					f.log.Warn("failed to remove stale connection", logging.String("connectionId", connID), logging.Err(err))
				}
				if _, err := f.counts.DecrementListenerCount(sessionID); err != nil {
					f.log.Warn("failed to decrement listener count for stale connection",
						logging.String("sessionId", sessionID), logging.String("connectionId", connID), logging.Err(err))
				}
				staleRemoved.Add(1)
			default:
				failure.Add(1)
			}
		}(connID)
	}
	wg.Wait()

	f.m.IncrCounter("broadcast_success_total", float64(success.Load()), "language", targetLanguage)
	f.m.IncrCounter("broadcast_failure_total", float64(failure.Load()), "language", targetLanguage)
	f.m.IncrCounter("broadcast_stale_removed_total", float64(staleRemoved.Load()), "language", targetLanguage)

	return Result{
		SuccessCount: int(success.Load()),
		FailureCount: int(failure.Load()),
		StaleRemoved: int(staleRemoved.Load()),
		DurationMs:   time.Since(start).Milliseconds(),
	}
}

// sendWithRetry retries only on SendLimitExceeded, with exponential backoff
// doubling from retryBaseDelay, up to f.maxRetries retries after the first
// attempt.
func (f *Fanout) sendWithRetry(ctx context.Context, connID string, audio []byte) SendStatus {
	delay := retryBaseDelay
	for attempt := 0; attempt <= f.maxRetries; attempt++ {
		res := f.transport.SendTo(ctx, connID, audio)
		if res.Status != SendLimitExceeded {
			return res.Status
		}
		if attempt == f.maxRetries {
			return SendError
		}
		select {
		case <-ctx.Done():
			return SendError
		case <-time.After(delay):
		}
		delay *= 2
	}
	return SendError
}
