package heartbeat

import (
	"testing"

	"realtime-backend/internal/types"
)

func TestHandleHeartbeatAlwaysAcks(t *testing.T) {
	e := New(Config{RefreshMinutes: 60, WarningMinutes: 110, MaxHours: 2})
	conn := types.Connection{ConnectedAt: 0}
	signals := e.HandleHeartbeat(conn, 1000)
	if signals[0].Kind != SignalHeartbeatAck {
		t.Fatalf("first signal = %v, want ack", signals[0].Kind)
	}
}

func TestHandleHeartbeatNoExtraSignalsWhenFresh(t *testing.T) {
	e := New(Config{RefreshMinutes: 60, WarningMinutes: 110, MaxHours: 2})
	conn := types.Connection{ConnectedAt: 0, SessionID: "s1"}
	signals := e.HandleHeartbeat(conn, 60000) // 1 minute old
	if len(signals) != 1 {
		t.Errorf("signals = %+v, want just the ack", signals)
	}
}

func TestHandleHeartbeatRefreshRequired(t *testing.T) {
	e := New(Config{RefreshMinutes: 60, WarningMinutes: 110, MaxHours: 2})
	conn := types.Connection{ConnectedAt: 0, SessionID: "s1", Role: types.RoleListener}
	now := int64(61 * 60 * 1000) // 61 minutes old
	signals := e.HandleHeartbeat(conn, now)

	found := false
	for _, s := range signals {
		if s.Kind == SignalConnectionRefreshReq {
			found = true
		}
	}
	if !found {
		t.Errorf("expected a refresh-required signal at 61 minutes, got %+v", signals)
	}
}

func TestHandleHeartbeatWarningNearHardLimit(t *testing.T) {
	e := New(Config{RefreshMinutes: 60, WarningMinutes: 110, MaxHours: 2})
	conn := types.Connection{ConnectedAt: 0, SessionID: "s1"}
	now := int64(115 * 60 * 1000) // 115 minutes old, hard limit is 120

	signals := e.HandleHeartbeat(conn, now)
	var warning *Signal
	for i := range signals {
		if signals[i].Kind == SignalConnectionWarning {
			warning = &signals[i]
		}
	}
	if warning == nil {
		t.Fatalf("expected a warning signal, got %+v", signals)
	}
	if warning.RemainingMinutes < 4.9 || warning.RemainingMinutes > 5.1 {
		t.Errorf("RemainingMinutes = %v, want ~5", warning.RemainingMinutes)
	}
}

func TestHandleHeartbeatNoRefreshPastHardLimit(t *testing.T) {
	e := New(Config{RefreshMinutes: 60, WarningMinutes: 110, MaxHours: 2})
	conn := types.Connection{ConnectedAt: 0, SessionID: "s1"}
	now := int64(125 * 60 * 1000) // past the 120-minute hard limit

	signals := e.HandleHeartbeat(conn, now)
	for _, s := range signals {
		if s.Kind == SignalConnectionRefreshReq {
			t.Errorf("should not request refresh past the hard limit")
		}
	}
}
