package transport

// controlMessage is the single inbound JSON envelope for every non-audio
// action a connection can send. Action selects which fields are read.
type controlMessage struct {
	Action           string   `json:"action"`
	SessionID        string   `json:"sessionId,omitempty"`
	SourceLanguage   string   `json:"sourceLanguage,omitempty"`
	TargetLanguage   string   `json:"targetLanguage,omitempty"`
	QualityTier      string   `json:"qualityTier,omitempty"`
	SpeakerUserID    string   `json:"speakerUserId,omitempty"`
	Paused           *bool    `json:"paused,omitempty"`
	Muted            *bool    `json:"muted,omitempty"`
	Volume           *float64 `json:"volume,omitempty"`
	PartialResults   *bool    `json:"partialResults,omitempty"`
	MinStability     *float64 `json:"minStability,omitempty"`
	MaxBufferTimeout *float64 `json:"maxBufferTimeout,omitempty"` // seconds
}

// broadcastStateWire is the wire projection of types.BroadcastState.
type broadcastStateWire struct {
	IsActive bool    `json:"isActive"`
	IsPaused bool    `json:"isPaused"`
	IsMuted  bool    `json:"isMuted"`
	Volume   float64 `json:"volume"`
}

// serverMessage is the single outbound JSON envelope for acks, status
// replies, and errors.
type serverMessage struct {
	Type                 string              `json:"type"`
	SessionID            string              `json:"sessionId,omitempty"`
	Status               string              `json:"status,omitempty"`
	Code                 string              `json:"code,omitempty"`
	Message              string              `json:"message,omitempty"`
	ListenerCount        int64               `json:"listenerCount,omitempty"`
	TargetLanguages      []string            `json:"targetLanguages,omitempty"`
	LanguageDistribution map[string]int64    `json:"languageDistribution,omitempty"`
	SessionDurationMs    int64               `json:"sessionDurationMs,omitempty"`
	BroadcastState       *broadcastStateWire `json:"broadcastState,omitempty"`
	Timestamp            int64               `json:"timestamp,omitempty"`
	RemainingMinutes     float64             `json:"remainingMinutes,omitempty"`
}

const (
	actionCreateSession    = "createSession"
	actionJoinSession      = "joinSession"
	actionHeartbeat        = "heartbeat"
	actionControlSession   = "controlSession"
	actionGetSessionStatus = "getSessionStatus"
	actionChangeLanguage   = "changeLanguage"
)

const (
	msgTypeReady             = "ready"
	msgTypeError             = "error"
	msgTypeHeartbeatAck      = "heartbeatAck"
	msgTypeRefreshRequired   = "connectionRefreshRequired"
	msgTypeConnectionWarning = "connectionWarning"
	msgTypeSessionStatus     = "sessionStatus"
)
