// Package sweeper implements the Timeout Sweeper (C16): a periodic scan that
// closes idle connections and triggers the disconnect cleanup path.
package sweeper

import (
	"context"
	"time"

	"realtime-backend/internal/connectionstore"
	"realtime-backend/internal/logging"
	"realtime-backend/internal/metrics"
	"realtime-backend/internal/sessionstore"
	"realtime-backend/internal/types"
)

// Notifier sends a best-effort connectionTimeout message and closes the
// underlying transport for one connection.
type Notifier interface {
	NotifyTimeout(connectionID string)
	CloseConnection(connectionID string)
}

// Summary is the per-tick metrics the sweep reports.
type Summary struct {
	Checked          int
	Idle             int
	Closed           int
	SpeakerTimeouts  int
	ListenerTimeouts int
}

// Sweeper periodically evicts idle connections.
type Sweeper struct {
	connections *connectionstore.Store
	sessions    *sessionstore.Store
	notifier    Notifier
	idleTimeout time.Duration
	interval    time.Duration
	log         logging.Logger
	m           metrics.Sink
}

// New constructs a Timeout Sweeper.
func New(connections *connectionstore.Store, sessions *sessionstore.Store, notifier Notifier, idleTimeout, interval time.Duration, log logging.Logger, m metrics.Sink) *Sweeper {
	return &Sweeper{
		connections: connections,
		sessions:    sessions,
		notifier:    notifier,
		idleTimeout: idleTimeout,
		interval:    interval,
		log:         log,
		m:           m,
	}
}

// Run blocks, ticking at the configured interval until ctx is cancelled.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.SweepOnce(time.Now().UnixMilli())
		}
	}
}

// SweepOnce runs a single pass, closing every connection idle for at least
// idleTimeout, and reports a per-tick summary.
func (s *Sweeper) SweepOnce(now int64) Summary {
	idle := s.connections.IdleConnections(now, s.idleTimeout.Milliseconds())

	summary := Summary{Checked: len(idle), Idle: len(idle)}
	for _, c := range idle {
		s.notifier.NotifyTimeout(c.ConnectionID)
		s.notifier.CloseConnection(c.ConnectionID)
		s.disconnect(c)
		summary.Closed++
		if c.Role == types.RoleSpeaker {
			summary.SpeakerTimeouts++
		} else {
			summary.ListenerTimeouts++
		}
	}

	s.m.IncrCounter("sweep_checked_total", float64(summary.Checked))
	s.m.IncrCounter("sweep_closed_total", float64(summary.Closed))
	s.log.Info("timeout sweep complete",
		logging.Int("checked", summary.Checked),
		logging.Int("closed", summary.Closed))

	return summary
}

// disconnect runs the cleanup cascade: decrement listener count for
// listeners, mark the session inactive for speakers, and always remove the
// connection record itself.
func (s *Sweeper) disconnect(c types.Connection) {
	if c.Role == types.RoleListener {
		if _, err := s.sessions.DecrementListenerCount(c.SessionID); err != nil {
			s.log.Warn("failed to decrement listener count on disconnect",
				logging.String("sessionId", c.SessionID), logging.Err(err))
		}
	} else {
		if err := s.sessions.MarkInactive(c.SessionID); err != nil {
			s.log.Warn("failed to mark session inactive on speaker disconnect",
				logging.String("sessionId", c.SessionID), logging.Err(err))
		}
	}
	_ = s.connections.DeleteConnection(c.ConnectionID)
}
