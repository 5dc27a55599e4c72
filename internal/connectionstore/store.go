// Package connectionstore implements the Connection Store (C14): connection
// CRUD, a language index for fan-out queries, idle scans, and TTL.
package connectionstore

import (
	"errors"
	"sync"

	"realtime-backend/internal/types"
)

// ErrNotFound is returned when a connection id is unknown.
var ErrNotFound = errors.New("connectionstore: connection not found")

// Store is the in-memory Connection Store, indexed by (sessionId, language)
// for listener fan-out queries.
type Store struct {
	mu          sync.Mutex
	connections map[string]*types.Connection
}

// New constructs an empty Connection Store.
func New() *Store {
	return &Store{connections: make(map[string]*types.Connection)}
}

// CreateConnection inserts c; TTL is expected to already be set by the
// caller to sessionExpiresAt + 1h per the data model's teardown buffer.
func (s *Store) CreateConnection(c types.Connection) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := c
	s.connections[c.ConnectionID] = &cp
}

// GetConnection returns a copy of the connection, if present.
func (s *Store) GetConnection(connectionID string) (types.Connection, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.connections[connectionID]
	if !ok {
		return types.Connection{}, false
	}
	return *c, true
}

// DeleteConnection removes a connection; idempotent.
func (s *Store) DeleteConnection(connectionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.connections, connectionID)
	return nil
}

// UpdateLastActivity bumps a connection's liveness timestamp, used by the
// heartbeat/refresh engine and any inbound message on the transport.
func (s *Store) UpdateLastActivity(connectionID string, now int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.connections[connectionID]
	if !ok {
		return ErrNotFound
	}
	c.LastActivityTime = now
	return nil
}

// UpdateTargetLanguage changes a listener connection's target language
// in-place (the changeLanguage wire action).
func (s *Store) UpdateTargetLanguage(connectionID, targetLanguage string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.connections[connectionID]
	if !ok {
		return ErrNotFound
	}
	c.TargetLanguage = types.Some(targetLanguage)
	return nil
}

// GetListenersByLanguage returns every listener connection id for sessionID
// currently targeting targetLanguage, satisfying broadcast.ListenerQuery.
func (s *Store) GetListenersByLanguage(sessionID, targetLanguage string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []string
	for id, c := range s.connections {
		if c.SessionID == sessionID && c.Role == types.RoleListener &&
			c.TargetLanguage.Set && c.TargetLanguage.Value == targetLanguage {
			out = append(out, id)
		}
	}
	return out
}

// GetUniqueTargetLanguages projects TargetLanguage over every listener
// connection of sessionID, deduplicated.
func (s *Store) GetUniqueTargetLanguages(sessionID string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	seen := make(map[string]struct{})
	var out []string
	for _, c := range s.connections {
		if c.SessionID != sessionID || c.Role != types.RoleListener || !c.TargetLanguage.Set {
			continue
		}
		if _, ok := seen[c.TargetLanguage.Value]; !ok {
			seen[c.TargetLanguage.Value] = struct{}{}
			out = append(out, c.TargetLanguage.Value)
		}
	}
	return out
}

// GetLanguageDistribution counts listener connections per target language
// for sessionID, used by getSessionStatus's languageDistribution field.
func (s *Store) GetLanguageDistribution(sessionID string) map[string]int64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make(map[string]int64)
	for _, c := range s.connections {
		if c.SessionID != sessionID || c.Role != types.RoleListener || !c.TargetLanguage.Set {
			continue
		}
		out[c.TargetLanguage.Value]++
	}
	return out
}

// ScanAllConnections returns a paginated snapshot of every connection.
func (s *Store) ScanAllConnections(offset, limit int) []types.Connection {
	s.mu.Lock()
	defer s.mu.Unlock()

	var all []types.Connection
	for _, c := range s.connections {
		all = append(all, *c)
	}
	if offset >= len(all) {
		return nil
	}
	end := offset + limit
	if limit <= 0 || end > len(all) {
		end = len(all)
	}
	return all[offset:end]
}

// BatchDelete removes every id in ids, returning the subset that failed
// (always empty here since deletes are idempotent, but the signature mirrors
// a distributed store's partial-failure contract for the interface to hold).
func (s *Store) BatchDelete(ids []string) (failed []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range ids {
		delete(s.connections, id)
	}
	return nil
}

// IdleConnections returns every connection whose LastActivityTime is older
// than now-idleTimeoutMs, used by the Timeout Sweeper.
func (s *Store) IdleConnections(now, idleTimeoutMs int64) []types.Connection {
	s.mu.Lock()
	defer s.mu.Unlock()

	var idle []types.Connection
	for _, c := range s.connections {
		if now-c.LastActivityTime >= idleTimeoutMs {
			idle = append(idle, *c)
		}
	}
	return idle
}
