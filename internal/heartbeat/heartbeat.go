// Package heartbeat implements the Heartbeat / Refresh Engine (C15):
// per-connection age tracking that emits refresh-required and warning
// signals, driven by each connection's own inbound heartbeat message.
package heartbeat

import (
	"realtime-backend/internal/types"
)

// SignalKind names the outbound wire signals this engine can produce.
type SignalKind string

const (
	SignalHeartbeatAck         SignalKind = "heartbeatAck"
	SignalConnectionRefreshReq SignalKind = "connectionRefreshRequired"
	SignalConnectionWarning    SignalKind = "connectionWarning"
)

// Signal is one outbound message the caller (transport gateway) should send
// back to the connection that triggered this heartbeat.
type Signal struct {
	Kind             SignalKind
	SessionID        string
	Role             types.Role
	TargetLanguage   types.Optional[string]
	RemainingMinutes float64
}

// Config carries the two age thresholds and the session's hard duration
// limit (used to compute remainingMinutes).
type Config struct {
	RefreshMinutes int
	WarningMinutes int
	MaxHours       int
}

// Engine evaluates one heartbeat against a connection's age.
type Engine struct {
	cfg Config
}

// New constructs a Heartbeat / Refresh Engine.
func New(cfg Config) *Engine {
	return &Engine{cfg: cfg}
}

// HandleHeartbeat implements the component design's five-step sequence,
// steps 1 (ack) and 3-4 (refresh/warning), returned as Signals for the
// transport gateway to send. Step 5 (peer-gone detection) is the caller's
// responsibility since it depends on the transport's own delivery signal.
func (e *Engine) HandleHeartbeat(conn types.Connection, now int64) []Signal {
	signals := []Signal{{Kind: SignalHeartbeatAck}}

	ageMin := float64(now-conn.ConnectedAt) / 60000.0
	hardLimitMin := float64(e.cfg.MaxHours * 60)

	if ageMin >= float64(e.cfg.RefreshMinutes) && ageMin < hardLimitMin {
		signals = append(signals, Signal{
			Kind:           SignalConnectionRefreshReq,
			SessionID:      conn.SessionID,
			Role:           conn.Role,
			TargetLanguage: conn.TargetLanguage,
		})
	}

	if ageMin >= float64(e.cfg.WarningMinutes) {
		signals = append(signals, Signal{
			Kind:             SignalConnectionWarning,
			SessionID:        conn.SessionID,
			RemainingMinutes: hardLimitMin - ageMin,
		})
	}

	return signals
}
