package core

import "encoding/json"

// MessageType discriminates bridge envelopes. Unrecognized types are ignored
// by receivers, never treated as errors.
type MessageType string

const (
	MsgSessionPush    MessageType = "session-push"
	MsgSessionRequest MessageType = "session-request"
	MsgSessionAck     MessageType = "session-ack"
	MsgDisconnect     MessageType = "disconnect"
	MsgDisconnectAck  MessageType = "disconnect-ack"
	MsgReady          MessageType = "ready"
	MsgMediaDetected  MessageType = "media-detected"
)

// Envelope is the unit of cross-context messaging. ID is the message identity
// used for deduplication when the same envelope arrives on more than one
// transport.
type Envelope struct {
	ID      string          `json:"id"`
	Type    MessageType     `json:"type"`
	From    string          `json:"from"` // originating context id
	Payload json.RawMessage `json:"payload,omitempty"`
	SentAt  int64           `json:"sentAt"`
}

// SessionPayload is the body of session-push envelopes. Token carries the
// signed form for transports that cross an origin boundary; Session is the
// bare form accepted only from in-process transports.
type SessionPayload struct {
	Session *Session `json:"session,omitempty"`
	Token   string   `json:"token,omitempty"`
}
