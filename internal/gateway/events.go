package gateway

import (
	"encoding/json"

	"github.com/victorivanov/retrostate/internal/snowflake"
)

// Op codes for gateway payloads.
const (
	OpDispatch       = 0
	OpHeartbeat      = 1
	OpIdentify       = 2
	OpPresenceUpdate = 3
	OpResume         = 6
	OpReconnect      = 7
	OpInvalidSession = 9
	OpHello          = 10
	OpHeartbeatAck   = 11
)

// Event names for DISPATCH payloads the client applies.
const (
	EventReady               = "READY"
	EventResumed             = "RESUMED"
	EventChannelCreate       = "CHANNEL_CREATE"
	EventChannelUpdate       = "CHANNEL_UPDATE"
	EventChannelDelete       = "CHANNEL_DELETE"
	EventChannelMemberAdd    = "CHANNEL_MEMBER_ADD"
	EventChannelMemberRemove = "CHANNEL_MEMBER_REMOVE"
	EventMessageCreate       = "MESSAGE_CREATE"
	EventPresenceUpdate      = "PRESENCE_UPDATE"
)

// GatewayPayload is the envelope for all gateway messages.
type GatewayPayload struct {
	Op       int             `json:"op"`
	Data     json.RawMessage `json:"d,omitempty"`
	Sequence *int64          `json:"s,omitempty"`
	Event    *string         `json:"t,omitempty"`
}

// IdentifyData is sent by the client in an Op 2 IDENTIFY.
type IdentifyData struct {
	Token string `json:"token"`
}

// ResumeData is sent by the client in an Op 6 RESUME.
type ResumeData struct {
	Token     string `json:"token"`
	SessionID string `json:"session_id"`
	Sequence  int64  `json:"seq"`
}

// HelloData is sent by the server after WebSocket connect.
type HelloData struct {
	HeartbeatInterval int `json:"heartbeat_interval"`
}

// ReadyData is sent by the server after a successful IDENTIFY.
type ReadyData struct {
	SessionID string       `json:"session_id"`
	UserID    snowflake.ID `json:"user_id"`
}

// ChannelDeleteData is the payload for CHANNEL_DELETE events.
type ChannelDeleteData struct {
	ID snowflake.ID `json:"id"`
}

// MemberEventData is the payload for CHANNEL_MEMBER_ADD and
// CHANNEL_MEMBER_REMOVE events.
type MemberEventData struct {
	ChannelID snowflake.ID `json:"channel_id"`
	UserID    snowflake.ID `json:"user_id"`
}

// PresenceUpdateData is the payload for PRESENCE_UPDATE events.
type PresenceUpdateData struct {
	UserID snowflake.ID `json:"user_id"`
	Status string       `json:"status"`
}

// ClientPresenceUpdate is sent by the client in an Op 3 PRESENCE_UPDATE.
type ClientPresenceUpdate struct {
	Status string `json:"status"`
}
