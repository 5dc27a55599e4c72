package sessionstore

import (
	"testing"

	"realtime-backend/internal/types"
)

func TestCreateSessionRejectsDuplicate(t *testing.T) {
	s := New()
	sess := types.Session{SessionID: "s1", IsActive: true}
	if err := s.CreateSession(sess); err != nil {
		t.Fatalf("first create: %v", err)
	}
	if err := s.CreateSession(sess); err != ErrAlreadyExists {
		t.Errorf("err = %v, want ErrAlreadyExists", err)
	}
}

func TestIncrementListenerCountRequiresActive(t *testing.T) {
	s := New()
	s.CreateSession(types.Session{SessionID: "s1", IsActive: false})
	if _, err := s.IncrementListenerCount("s1"); err != ErrInactive {
		t.Errorf("err = %v, want ErrInactive", err)
	}
}

func TestIncrementAndDecrementListenerCount(t *testing.T) {
	s := New()
	s.CreateSession(types.Session{SessionID: "s1", IsActive: true})

	count, err := s.IncrementListenerCount("s1")
	if err != nil || count != 1 {
		t.Fatalf("increment: count=%d err=%v", count, err)
	}
	count, _ = s.DecrementListenerCount("s1")
	if count != 0 {
		t.Errorf("count = %d, want 0", count)
	}
}

func TestDecrementListenerCountFloorsAtZero(t *testing.T) {
	s := New()
	s.CreateSession(types.Session{SessionID: "s1", IsActive: true})
	count, err := s.DecrementListenerCount("s1")
	if err != nil || count != 0 {
		t.Errorf("count=%d err=%v, want 0,nil", count, err)
	}
}

func TestMarkInactiveLeavesSessionDiscoverable(t *testing.T) {
	s := New()
	s.CreateSession(types.Session{SessionID: "s1", IsActive: true})
	s.MarkInactive("s1")

	sess, ok := s.GetSession("s1")
	if !ok {
		t.Fatalf("expected session still discoverable after MarkInactive")
	}
	if sess.IsActive {
		t.Errorf("expected IsActive false after MarkInactive")
	}
}

func TestUpdateBroadcastStateStampsTimestamp(t *testing.T) {
	s := New()
	s.CreateSession(types.Session{SessionID: "s1", IsActive: true})
	if err := s.UpdateBroadcastState("s1", types.BroadcastState{IsPaused: true}); err != nil {
		t.Fatalf("update: %v", err)
	}
	sess, _ := s.GetSession("s1")
	if !sess.BroadcastState.IsPaused {
		t.Errorf("expected IsPaused true")
	}
	if sess.BroadcastState.LastStateChange == 0 {
		t.Errorf("expected LastStateChange to be stamped")
	}
}

func TestListActiveSessionsExcludesInactiveAndPaginates(t *testing.T) {
	s := New()
	s.CreateSession(types.Session{SessionID: "a", IsActive: true})
	s.CreateSession(types.Session{SessionID: "b", IsActive: true})
	s.CreateSession(types.Session{SessionID: "c", IsActive: false})

	all := s.ListActiveSessions(0, 0)
	if len(all) != 2 {
		t.Fatalf("ListActiveSessions = %d, want 2", len(all))
	}

	page := s.ListActiveSessions(0, 1)
	if len(page) != 1 {
		t.Errorf("page size = %d, want 1", len(page))
	}

	empty := s.ListActiveSessions(10, 10)
	if empty != nil {
		t.Errorf("expected nil for out-of-range offset, got %v", empty)
	}
}

func TestOperationsOnUnknownSessionReturnNotFound(t *testing.T) {
	s := New()
	if _, err := s.IncrementListenerCount("nope"); err != ErrNotFound {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
	if err := s.MarkInactive("nope"); err != ErrNotFound {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}
