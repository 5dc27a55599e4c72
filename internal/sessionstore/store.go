// Package sessionstore implements the Session Store (C13): atomic session
// creation, listener-count increment/decrement with a non-negative floor,
// and broadcast-state updates.
//
// The underlying engine satisfies the narrow conditional-write primitives
// Design Notes section 9 calls for (conditional put, atomic add) without
// requiring an external dependency on the hot path; see DESIGN.md.
package sessionstore

import (
	"errors"
	"sort"
	"sync"
	"time"

	"realtime-backend/internal/types"
)

// ErrAlreadyExists is returned by CreateSession when sessionId collides,
// mirroring a DynamoDB ConditionalCheckFailedException; callers should
// regenerate the id and retry.
var ErrAlreadyExists = errors.New("sessionstore: session already exists")

// ErrNotFound is returned when an operation targets an unknown session.
var ErrNotFound = errors.New("sessionstore: session not found")

// ErrInactive is returned when a conditional operation requires an active
// session that is not (or no longer) active.
var ErrInactive = errors.New("sessionstore: session is not active")

// Store is the in-memory, conditionally-consistent Session Store.
type Store struct {
	mu       sync.Mutex
	sessions map[string]*types.Session
}

// New constructs an empty Session Store.
func New() *Store {
	return &Store{sessions: make(map[string]*types.Session)}
}

// CreateSession inserts s if no session with the same SessionID exists.
func (s *Store) CreateSession(sess types.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.sessions[sess.SessionID]; exists {
		return ErrAlreadyExists
	}
	cp := sess
	s.sessions[sess.SessionID] = &cp
	return nil
}

// IncrementListenerCount atomically adds 1, conditional on the session
// existing and being active. Returns the new count.
func (s *Store) IncrementListenerCount(sessionID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[sessionID]
	if !ok {
		return 0, ErrNotFound
	}
	if !sess.IsActive {
		return 0, ErrInactive
	}
	sess.ListenerCount++
	return sess.ListenerCount, nil
}

// DecrementListenerCount atomically subtracts 1 with a floor of 0: if the
// current count is already 0, this is a no-op returning 0. The result is
// never negative regardless of interleaving with concurrent increments.
func (s *Store) DecrementListenerCount(sessionID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[sessionID]
	if !ok {
		return 0, ErrNotFound
	}
	if sess.ListenerCount > 0 {
		sess.ListenerCount--
	}
	return sess.ListenerCount, nil
}

// UpdateSpeakerConnection reassigns the speaker's connection id, conditional
// on the session being active (supports transport refresh without dropping
// the logical session).
func (s *Store) UpdateSpeakerConnection(sessionID, newConnectionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[sessionID]
	if !ok {
		return ErrNotFound
	}
	if !sess.IsActive {
		return ErrInactive
	}
	sess.SpeakerConnectionID = newConnectionID
	return nil
}

// UpdateBroadcastState unconditionally upserts the nested broadcast-state
// record.
func (s *Store) UpdateBroadcastState(sessionID string, state types.BroadcastState) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[sessionID]
	if !ok {
		return ErrNotFound
	}
	state.LastStateChange = time.Now().UnixMilli()
	sess.BroadcastState = state
	return nil
}

// MarkInactive flips a session inactive, e.g. on speaker disconnect; it
// remains discoverable (GetSession still succeeds) until ExpiresAt.
func (s *Store) MarkInactive(sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[sessionID]
	if !ok {
		return ErrNotFound
	}
	sess.IsActive = false
	return nil
}

// GetSession returns a copy of the session, if present.
func (s *Store) GetSession(sessionID string) (types.Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[sessionID]
	if !ok {
		return types.Session{}, false
	}
	return *sess, true
}

// GetListenerCount returns the current listener count, or 0 if the session
// is unknown (used by the orchestrator's zero-listener short-circuit).
func (s *Store) GetListenerCount(sessionID string) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[sessionID]
	if !ok {
		return 0
	}
	return sess.ListenerCount
}

// ListActiveSessions returns every currently-active session, paginated by a
// simple offset/limit scan over a stable (insertion-order-independent, id
// sorted) listing.
func (s *Store) ListActiveSessions(offset, limit int) []types.Session {
	s.mu.Lock()
	defer s.mu.Unlock()

	var all []types.Session
	for _, sess := range s.sessions {
		if sess.IsActive {
			all = append(all, *sess)
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].SessionID < all[j].SessionID })
	if offset >= len(all) {
		return nil
	}
	end := offset + limit
	if limit <= 0 || end > len(all) {
		end = len(all)
	}
	return all[offset:end]
}
