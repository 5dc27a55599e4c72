// Package transport implements the Transport Gateway (C18): the websocket
// wire protocol that terminates speaker/listener connections, drives the
// per-session pipeline, and exposes health/metrics endpoints.
package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/google/uuid"

	"realtime-backend/internal/broadcast"
	"realtime-backend/internal/config"
	"realtime-backend/internal/connectionstore"
	"realtime-backend/internal/final"
	"realtime-backend/internal/heartbeat"
	"realtime-backend/internal/logging"
	"realtime-backend/internal/metrics"
	"realtime-backend/internal/orchestrator"
	"realtime-backend/internal/partial"
	"realtime-backend/internal/persistence/postgres"
	"realtime-backend/internal/providers/awsadapt"
	"realtime-backend/internal/resilience"
	"realtime-backend/internal/sessionstore"
	"realtime-backend/internal/types"
)

// Transcriber starts a streaming ASR session for one speaker connection.
// Narrowed to what the gateway needs so a fake can stand in for tests.
type Transcriber interface {
	StartStream(ctx context.Context, sessionID, language string, sampleRate int32, log logging.Logger) (*awsadapt.Stream, error)
}

// Gateway owns every live connection and session pipeline.
type Gateway struct {
	cfg *config.Config
	log logging.Logger
	m   metrics.Sink
	reg *wsRegistry

	sessions    *sessionstore.Store
	connections *connectionstore.Store
	transcriber Transcriber
	orch        *orchestrator.Orchestrator
	hb          *heartbeat.Engine
	audit       *postgres.Store
	sharedDedup final.SharedDedup
	dm          *resilience.DegradationManager

	pcfg pipelineConfig

	mu            sync.Mutex
	pipelines     map[string]*sessionPipeline
	cancels       map[string]context.CancelFunc
	peakListeners map[string]int64
}

// New constructs a Transport Gateway.
func New(cfg *config.Config, log logging.Logger, m metrics.Sink, sessions *sessionstore.Store, connections *connectionstore.Store, transcriber Transcriber, orch *orchestrator.Orchestrator) *Gateway {
	return &Gateway{
		cfg:         cfg,
		log:         log,
		m:           m,
		reg:         newWSRegistry(cfg.Server.WriteTimeout),
		sessions:    sessions,
		connections: connections,
		transcriber: transcriber,
		orch:        orch,
		hb: heartbeat.New(heartbeat.Config{
			RefreshMinutes: cfg.Session.ConnectionRefreshMinutes,
			WarningMinutes: cfg.Session.ConnectionWarningMinutes,
			MaxHours:       int(cfg.Session.SessionMaxDuration.Hours()),
		}),
		pcfg: pipelineConfig{
			dedupTTL:              cfg.Session.DedupCacheTTL,
			rateWindow:            cfg.Session.RateLimiterWindow,
			rateCapacity:          cfg.Session.MaxRatePerSecond,
			pauseThreshold:        2 * time.Second,
			maxBufferTimeout:      cfg.Session.MaxBufferTimeout,
			stabilityFallbackWait: 3 * time.Second,
			orphanTimeout:         cfg.Session.OrphanTimeout,
		},
		pipelines:     make(map[string]*sessionPipeline),
		cancels:       make(map[string]context.CancelFunc),
		peakListeners: make(map[string]int64),
	}
}

// SetAuditStore wires an optional Postgres audit trail. A nil store (the
// default when POSTGRES_DSN is unset) leaves session lifecycle recording
// disabled.
func (g *Gateway) SetAuditStore(store *postgres.Store) {
	g.audit = store
}

// SetSharedDedup wires an optional cross-instance Dedup Cache (C2) backed by
// Redis. A nil value (the default when REDIS_ADDR is unset) leaves every
// session's Final-Result Handler relying solely on its local in-memory cache.
func (g *Gateway) SetSharedDedup(shared final.SharedDedup) {
	g.sharedDedup = shared
}

// SetDegradationManager wires the process-wide degradation registry so a
// genuine ASR-start failure is reflected in /health instead of only ever
// reporting "healthy". A nil manager (the zero value default) leaves ASR
// failures reported solely through the per-connection error frame.
func (g *Gateway) SetDegradationManager(dm *resilience.DegradationManager) {
	g.dm = dm
}

// HandleWebSocket terminates one speaker or listener connection: handshake,
// action dispatch, and teardown, grounded on the teacher's AudioHandler.
func (g *Gateway) HandleWebSocket(c *websocket.Conn) {
	defer func() {
		if r := recover(); r != nil {
			g.log.Error("panic recovered in websocket handler", logging.String("panic", fmt.Sprint(r)))
		}
	}()

	connID := uuid.NewString()

	if err := c.SetReadDeadline(time.Now().Add(g.cfg.Audio.HandshakeTimeout)); err != nil {
		return
	}
	_, raw, err := c.ReadMessage()
	if err != nil {
		return
	}
	var msg controlMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		g.sendError(c, "", "BAD_HANDSHAKE", "first frame must be a JSON control message")
		return
	}
	_ = c.SetReadDeadline(time.Time{})

	switch msg.Action {
	case actionCreateSession:
		g.handleSpeaker(c, connID, msg)
	case actionJoinSession:
		g.handleListener(c, connID, msg)
	default:
		g.sendError(c, "", "UNKNOWN_ACTION", "first action must be createSession or joinSession")
	}
}

func (g *Gateway) handleSpeaker(c *websocket.Conn, connID string, msg controlMessage) {
	now := time.Now()
	sessionID := uuid.NewString()
	sourceLanguage := msg.SourceLanguage
	if sourceLanguage == "" {
		sourceLanguage = "en"
	}

	partialsEnabled := g.cfg.Session.PartialResultsEnabled
	if msg.PartialResults != nil {
		partialsEnabled = *msg.PartialResults
	}

	minStability := g.cfg.Session.MinStabilityThreshold
	if msg.MinStability != nil {
		if err := config.ValidateMinStabilityThreshold(*msg.MinStability); err != nil {
			g.sendError(c, "", "INVALID_PARAMETERS", err.Error())
			return
		}
		minStability = *msg.MinStability
	}

	maxBufferTimeout := g.cfg.Session.MaxBufferTimeout
	if msg.MaxBufferTimeout != nil {
		d := time.Duration(*msg.MaxBufferTimeout * float64(time.Second))
		if err := config.ValidateMaxBufferTimeout(d); err != nil {
			g.sendError(c, "", "INVALID_PARAMETERS", err.Error())
			return
		}
		maxBufferTimeout = d
	}

	sess := types.Session{
		SessionID:             sessionID,
		SpeakerConnectionID:   connID,
		SpeakerUserID:         msg.SpeakerUserID,
		SourceLanguage:        sourceLanguage,
		QualityTier:           msg.QualityTier,
		CreatedAt:             now.UnixMilli(),
		ExpiresAt:             now.Add(g.cfg.Session.SessionMaxDuration).Unix(),
		IsActive:              true,
		PartialResultsEnabled: partialsEnabled,
		MinStabilityThreshold: minStability,
		MaxBufferTimeout:      maxBufferTimeout,
	}
	if err := g.sessions.CreateSession(sess); err != nil {
		g.sendError(c, "", "SESSION_CREATE_FAILED", err.Error())
		return
	}
	if g.audit != nil {
		if err := g.audit.RecordSessionCreated(sess); err != nil {
			g.log.Warn("failed to record session creation", logging.String("sessionId", sessionID), logging.Err(err))
		}
	}

	conn := types.Connection{
		ConnectionID:     connID,
		SessionID:        sessionID,
		Role:             types.RoleSpeaker,
		ConnectedAt:      now.UnixMilli(),
		LastActivityTime: now.UnixMilli(),
		TTL:              sess.ExpiresAt + 3600,
	}
	g.connections.CreateConnection(conn)
	g.reg.add(connID, c)
	defer g.teardownSpeaker(connID, sessionID)

	pipeline := g.startPipeline(sess)

	if err := g.sendJSON(c, serverMessage{Type: msgTypeReady, SessionID: sessionID, Status: "ready"}); err != nil {
		return
	}

	if err := g.performAudioHandshake(c); err != nil {
		g.sendError(c, sessionID, "HANDSHAKE_FAILED", err.Error())
		return
	}

	ctx := context.Background()
	stream, err := resilience.WithFallback(g.dm, "asr", func() (*awsadapt.Stream, error) {
		return g.transcriber.StartStream(ctx, sessionID, sourceLanguage, 16000, g.log)
	}, func(err error) (*awsadapt.Stream, error) {
		return nil, err
	})
	if err != nil {
		g.sendError(c, sessionID, "ASR_START_FAILED", err.Error())
		return
	}
	defer stream.Close()

	go func() {
		for t := range stream.Results() {
			pipeline.handleASRText(ctx, sourceLanguage, t.Text, t.IsPartial, t.Stability)
		}
	}()

	g.receiveLoop(c, connID, sessionID, stream)
}

func (g *Gateway) performAudioHandshake(c *websocket.Conn) error {
	if err := c.SetReadDeadline(time.Now().Add(g.cfg.Audio.HandshakeTimeout)); err != nil {
		return err
	}
	messageType, data, err := c.ReadMessage()
	if err != nil {
		return err
	}
	if messageType != websocket.BinaryMessage {
		return fmt.Errorf("expected binary audio metadata frame, got type %d", messageType)
	}
	meta, err := parseMetadata(data)
	if err != nil {
		return err
	}
	if err := meta.validate(g.cfg.Audio); err != nil {
		return err
	}
	return c.SetReadDeadline(time.Time{})
}

// receiveLoop reads binary audio frames (forwarded to the ASR stream) and
// JSON control frames (heartbeat/controlSession/getSessionStatus) until the
// connection closes, adapted from the teacher's receiveLoop.
func (g *Gateway) receiveLoop(c *websocket.Conn, connID, sessionID string, stream *awsadapt.Stream) {
	for {
		messageType, msg, err := c.ReadMessage()
		if err != nil {
			return
		}
		_ = g.connections.UpdateLastActivity(connID, time.Now().UnixMilli())

		switch messageType {
		case websocket.BinaryMessage:
			if len(msg) == 0 {
				continue
			}
			if err := stream.SendAudio(msg); err != nil {
				g.log.Warn("failed to forward audio to asr stream", logging.String("sessionId", sessionID), logging.Err(err))
			}
		case websocket.TextMessage:
			var ctl controlMessage
			if err := json.Unmarshal(msg, &ctl); err != nil {
				continue
			}
			g.handleControlMessage(c, connID, sessionID, ctl)
		}
	}
}

func (g *Gateway) handleListener(c *websocket.Conn, connID string, msg controlMessage) {
	sess, ok := g.sessions.GetSession(msg.SessionID)
	if !ok || !sess.IsActive {
		g.sendError(c, "", "SESSION_NOT_FOUND", "session does not exist or is inactive")
		return
	}
	if int(sess.ListenerCount) >= g.cfg.Session.MaxListenersPerSession {
		g.sendError(c, sess.SessionID, "SESSION_FULL", "listener capacity reached")
		return
	}

	targetLanguage := msg.TargetLanguage
	if targetLanguage == "" {
		targetLanguage = sess.SourceLanguage
	}

	now := time.Now()
	conn := types.Connection{
		ConnectionID:     connID,
		SessionID:        sess.SessionID,
		Role:             types.RoleListener,
		TargetLanguage:   types.Some(targetLanguage),
		ConnectedAt:      now.UnixMilli(),
		LastActivityTime: now.UnixMilli(),
		TTL:              sess.ExpiresAt + 3600,
	}
	g.connections.CreateConnection(conn)
	g.reg.add(connID, c)
	if count, err := g.sessions.IncrementListenerCount(sess.SessionID); err != nil {
		g.log.Warn("failed to increment listener count", logging.String("sessionId", sess.SessionID), logging.Err(err))
	} else {
		g.recordPeakListeners(sess.SessionID, count)
	}
	defer g.teardownListener(connID, sess.SessionID)

	if err := g.sendJSON(c, serverMessage{Type: msgTypeReady, SessionID: sess.SessionID, Status: "ready"}); err != nil {
		return
	}

	g.listenerLoop(c, connID, sess.SessionID)
}

func (g *Gateway) listenerLoop(c *websocket.Conn, connID, sessionID string) {
	for {
		messageType, msg, err := c.ReadMessage()
		if err != nil {
			return
		}
		_ = g.connections.UpdateLastActivity(connID, time.Now().UnixMilli())
		if messageType != websocket.TextMessage {
			continue
		}
		var ctl controlMessage
		if err := json.Unmarshal(msg, &ctl); err != nil {
			continue
		}
		g.handleControlMessage(c, connID, sessionID, ctl)
	}
}

func (g *Gateway) handleControlMessage(c *websocket.Conn, connID, sessionID string, ctl controlMessage) {
	switch ctl.Action {
	case actionHeartbeat:
		conn, ok := g.connections.GetConnection(connID)
		if !ok {
			return
		}
		for _, sig := range g.hb.HandleHeartbeat(conn, time.Now().UnixMilli()) {
			g.sendHeartbeatSignal(c, sig)
		}
	case actionControlSession:
		g.handleControlSession(c, sessionID, ctl)
	case actionGetSessionStatus:
		g.handleGetSessionStatus(c, sessionID)
	case actionChangeLanguage:
		if err := g.connections.UpdateTargetLanguage(connID, ctl.TargetLanguage); err != nil {
			g.sendError(c, sessionID, "CHANGE_LANGUAGE_FAILED", err.Error())
		}
	}
}

func (g *Gateway) handleControlSession(c *websocket.Conn, sessionID string, ctl controlMessage) {
	sess, ok := g.sessions.GetSession(sessionID)
	if !ok {
		g.sendError(c, sessionID, "SESSION_NOT_FOUND", "unknown session")
		return
	}
	state := sess.BroadcastState
	if ctl.Paused != nil {
		state.IsPaused = *ctl.Paused
	}
	if ctl.Muted != nil {
		state.IsMuted = *ctl.Muted
	}
	if ctl.Volume != nil {
		state.Volume = *ctl.Volume
	}
	state.IsActive = true
	if err := g.sessions.UpdateBroadcastState(sessionID, state); err != nil {
		g.sendError(c, sessionID, "CONTROL_FAILED", err.Error())
	}
}

func (g *Gateway) handleGetSessionStatus(c *websocket.Conn, sessionID string) {
	sess, ok := g.sessions.GetSession(sessionID)
	if !ok {
		g.sendError(c, sessionID, "SESSION_NOT_FOUND", "unknown session")
		return
	}

	dist := g.connections.GetLanguageDistribution(sessionID)
	langs := make([]string, 0, len(dist))
	for lang := range dist {
		langs = append(langs, lang)
	}
	now := time.Now()

	_ = g.sendJSON(c, serverMessage{
		Type:                 msgTypeSessionStatus,
		SessionID:            sessionID,
		ListenerCount:        sess.ListenerCount,
		TargetLanguages:      langs,
		LanguageDistribution: dist,
		SessionDurationMs:    now.UnixMilli() - sess.CreatedAt,
		BroadcastState: &broadcastStateWire{
			IsActive: sess.BroadcastState.IsActive,
			IsPaused: sess.BroadcastState.IsPaused,
			IsMuted:  sess.BroadcastState.IsMuted,
			Volume:   sess.BroadcastState.Volume,
		},
		Timestamp: now.UnixMilli(),
	})
}

func (g *Gateway) startPipeline(sess types.Session) *sessionPipeline {
	ctx, cancel := context.WithCancel(context.Background())

	pcfg := g.pcfg
	pcfg.maxBufferTimeout = sess.MaxBufferTimeout

	pipeline := newSessionPipeline(sess.SessionID, sess.SourceLanguage, sess.MinStabilityThreshold, 0, pcfg,
		partialForwarderFunc(g.orch.Forward), finalForwarderFunc(g.orch.Forward), g.sharedDedup, sess.PartialResultsEnabled, g.log, g.m)

	g.mu.Lock()
	g.pipelines[sess.SessionID] = pipeline
	g.cancels[sess.SessionID] = cancel
	g.mu.Unlock()

	go pipeline.run(ctx)
	return pipeline
}

// partialForwarderFunc/finalForwarderFunc adapt orchestrator.Forward's method
// value to the partial/final Forwarder interfaces without an import cycle.
type partialForwarderFunc func(ctx context.Context, sessionID, sourceLanguage, text string) error

func (f partialForwarderFunc) Forward(ctx context.Context, sessionID, sourceLanguage, text string) error {
	return f(ctx, sessionID, sourceLanguage, text)
}

type finalForwarderFunc func(ctx context.Context, sessionID, sourceLanguage, text string) error

func (f finalForwarderFunc) Forward(ctx context.Context, sessionID, sourceLanguage, text string) error {
	return f(ctx, sessionID, sourceLanguage, text)
}

var _ partial.Forwarder = partialForwarderFunc(nil)
var _ final.Forwarder = finalForwarderFunc(nil)

func (g *Gateway) recordPeakListeners(sessionID string, count int64) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if count > g.peakListeners[sessionID] {
		g.peakListeners[sessionID] = count
	}
}

func (g *Gateway) teardownSpeaker(connID, sessionID string) {
	g.reg.remove(connID)
	_ = g.connections.DeleteConnection(connID)
	_ = g.sessions.MarkInactive(sessionID)

	g.mu.Lock()
	pipeline, hasPipeline := g.pipelines[sessionID]
	peak := g.peakListeners[sessionID]
	if cancel, ok := g.cancels[sessionID]; ok {
		cancel()
		delete(g.cancels, sessionID)
		delete(g.pipelines, sessionID)
	}
	delete(g.peakListeners, sessionID)
	g.mu.Unlock()

	if g.audit != nil {
		var forwarded int64
		if hasPipeline {
			forwarded = pipeline.FinalsHandled()
		}
		if err := g.audit.RecordSessionClosed(sessionID, peak, forwarded); err != nil {
			g.log.Warn("failed to record session closure", logging.String("sessionId", sessionID), logging.Err(err))
		}
	}
}

func (g *Gateway) teardownListener(connID, sessionID string) {
	g.reg.remove(connID)
	_ = g.connections.DeleteConnection(connID)
	if _, err := g.sessions.DecrementListenerCount(sessionID); err != nil {
		g.log.Warn("failed to decrement listener count on disconnect", logging.String("sessionId", sessionID), logging.Err(err))
	}
}

func (g *Gateway) sendHeartbeatSignal(c *websocket.Conn, sig heartbeat.Signal) {
	switch sig.Kind {
	case heartbeat.SignalHeartbeatAck:
		_ = g.sendJSON(c, serverMessage{Type: msgTypeHeartbeatAck})
	case heartbeat.SignalConnectionRefreshReq:
		_ = g.sendJSON(c, serverMessage{Type: msgTypeRefreshRequired, SessionID: sig.SessionID})
	case heartbeat.SignalConnectionWarning:
		_ = g.sendJSON(c, serverMessage{Type: msgTypeConnectionWarning, SessionID: sig.SessionID, RemainingMinutes: sig.RemainingMinutes})
	}
}

func (g *Gateway) sendJSON(c *websocket.Conn, v serverMessage) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_ = c.SetWriteDeadline(time.Now().Add(g.cfg.Server.WriteTimeout))
	return c.WriteMessage(websocket.TextMessage, data)
}

func (g *Gateway) sendError(c *websocket.Conn, sessionID, code, message string) {
	_ = g.sendJSON(c, serverMessage{Type: msgTypeError, SessionID: sessionID, Code: code, Message: message})
}

// Transport exposes the gateway's websocket connection registry as a
// broadcast.Transport, used to construct the Broadcast Fan-out before the
// orchestrator (which the gateway itself depends on) exists.
func (g *Gateway) Transport() broadcast.Transport {
	return g.reg
}

// SetOrchestrator wires the Pipeline Orchestrator once it has been built from
// this gateway's Transport(), breaking the gateway/orchestrator construction
// cycle in the composition root.
func (g *Gateway) SetOrchestrator(orch *orchestrator.Orchestrator) {
	g.orch = orch
}

// NotifyTimeout implements sweeper.Notifier: best-effort message, ignored if
// the connection already closed.
func (g *Gateway) NotifyTimeout(connectionID string) {
	conn, _, ok := g.reg.get(connectionID)
	if !ok {
		return
	}
	_ = g.sendJSON(conn, serverMessage{Type: msgTypeError, Code: "CONNECTION_TIMEOUT", Message: "idle timeout exceeded"})
}

// CloseConnection implements sweeper.Notifier: closes the underlying socket.
func (g *Gateway) CloseConnection(connectionID string) {
	conn, _, ok := g.reg.get(connectionID)
	if !ok {
		return
	}
	_ = conn.Close()
	g.reg.remove(connectionID)
}
