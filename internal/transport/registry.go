package transport

import (
	"context"
	"sync"
	"time"

	"github.com/gofiber/contrib/websocket"

	"realtime-backend/internal/broadcast"
)

// wsRegistry tracks live websocket connections by connection id and
// implements broadcast.Transport, serializing writes per connection (a
// *websocket.Conn is not safe for concurrent writers).
type wsRegistry struct {
	mu           sync.Mutex
	conns        map[string]*websocket.Conn
	writeMu      map[string]*sync.Mutex
	writeTimeout time.Duration
}

func newWSRegistry(writeTimeout time.Duration) *wsRegistry {
	return &wsRegistry{
		conns:        make(map[string]*websocket.Conn),
		writeMu:      make(map[string]*sync.Mutex),
		writeTimeout: writeTimeout,
	}
}

func (r *wsRegistry) add(connectionID string, conn *websocket.Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.conns[connectionID] = conn
	r.writeMu[connectionID] = &sync.Mutex{}
}

func (r *wsRegistry) remove(connectionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.conns, connectionID)
	delete(r.writeMu, connectionID)
}

func (r *wsRegistry) get(connectionID string) (*websocket.Conn, *sync.Mutex, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	conn, ok := r.conns[connectionID]
	if !ok {
		return nil, nil, false
	}
	return conn, r.writeMu[connectionID], true
}

// SendTo implements broadcast.Transport over a live websocket connection.
func (r *wsRegistry) SendTo(ctx context.Context, connectionID string, data []byte) broadcast.SendResult {
	conn, mu, ok := r.get(connectionID)
	if !ok {
		return broadcast.SendResult{Status: broadcast.SendGone}
	}

	mu.Lock()
	defer mu.Unlock()

	if err := conn.SetWriteDeadline(time.Now().Add(r.writeTimeout)); err != nil {
		return broadcast.SendResult{Status: broadcast.SendError, Err: err}
	}
	if err := conn.WriteMessage(websocket.BinaryMessage, data); err != nil {
		if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
			return broadcast.SendResult{Status: broadcast.SendGone, Err: err}
		}
		return broadcast.SendResult{Status: broadcast.SendError, Err: err}
	}
	return broadcast.SendResult{Status: broadcast.SendOK}
}
