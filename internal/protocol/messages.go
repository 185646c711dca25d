// Package protocol defines the WebSocket message types and structures used
// for communication between platform adapters and the gateway. All messages
// are serialized as JSON and follow a consistent envelope format with a
// type discriminator.
package protocol

import (
	"encoding/json"
	"fmt"
)

// ---------------------------------------------------------------------------
// Message type constants
// ---------------------------------------------------------------------------

// Adapter -> Gateway message types.
const (
	TypeHello          = "hello"
	TypeInboundMessage = "inbound_message"
	TypeChoice         = "choice"
	TypePing           = "ping"
)

// Gateway -> Adapter message types.
const (
	TypeHelloAck       = "hello_ack"
	TypeDeleteOriginal = "delete_original"
	TypeSendPrompt     = "send_prompt"
	TypePostMessage    = "post_message"
	TypeError          = "error"
	TypePong           = "pong"
)

// ---------------------------------------------------------------------------
// Envelope — used for initial JSON parsing to extract the type discriminator.
// ---------------------------------------------------------------------------

// Envelope holds the message type and the raw JSON payload for deferred
// parsing into a concrete struct.
type Envelope struct {
	Type string          `json:"type"`
	Raw  json.RawMessage `json:"-"`
}

// UnmarshalJSON implements the json.Unmarshaler interface. It captures the
// full raw bytes and extracts only the "type" field so that the rest of
// the payload can be decoded later into the appropriate concrete struct.
func (e *Envelope) UnmarshalJSON(data []byte) error {
	// Capture the full raw message for deferred parsing.
	e.Raw = make(json.RawMessage, len(data))
	copy(e.Raw, data)

	// Extract only the type field.
	var partial struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &partial); err != nil {
		return fmt.Errorf("protocol: failed to unmarshal envelope: %w", err)
	}
	if partial.Type == "" {
		return fmt.Errorf("protocol: missing or empty \"type\" field")
	}
	e.Type = partial.Type
	return nil
}

// ---------------------------------------------------------------------------
// Adapter -> Gateway message structs
// ---------------------------------------------------------------------------

// HelloMsg is the first message an adapter sends after connecting. It names
// the adapter so the gateway can route commands back to it.
type HelloMsg struct {
	Type      string `json:"type"`
	AdapterID string `json:"adapter_id"`
}

// InboundMessageMsg forwards a guild message observed by the adapter for
// toxicity screening.
type InboundMessageMsg struct {
	Type      string `json:"type"`
	MessageID string `json:"message_id"`
	UserID    string `json:"user_id"`
	GuildID   string `json:"guild_id"`
	ChannelID string `json:"channel_id"`
	Content   string `json:"content"`
	Ts        int64  `json:"ts"`
}

// ChoiceMsg reports the author's reaction to a reflection prompt. Action is
// "post", "edit", or "cancel"; Payload is the replacement text for edit.
type ChoiceMsg struct {
	Type      string `json:"type"`
	SessionID string `json:"session_id"`
	Action    string `json:"action"`
	Payload   string `json:"payload,omitempty"`
}

// PingMsg is an adapter-initiated keepalive ping.
type PingMsg struct {
	Type string `json:"type"`
}

// ---------------------------------------------------------------------------
// Gateway -> Adapter message structs
// ---------------------------------------------------------------------------

// HelloAckMsg confirms adapter registration.
type HelloAckMsg struct {
	Type      string `json:"type"`
	AdapterID string `json:"adapter_id"`
}

// DeleteOriginalMsg instructs the adapter to delete the intercepted message
// from its channel.
type DeleteOriginalMsg struct {
	Type      string `json:"type"`
	MessageID string `json:"message_id"`
}

// SendPromptMsg instructs the adapter to deliver the private reflection
// prompt for a session to the author.
type SendPromptMsg struct {
	Type      string   `json:"type"`
	SessionID string   `json:"session_id"`
	UserID    string   `json:"user_id"`
	Questions []string `json:"questions"`
}

// PostMessageMsg instructs the adapter to post text to a channel on behalf
// of the author.
type PostMessageMsg struct {
	Type      string `json:"type"`
	ChannelID string `json:"channel_id"`
	Text      string `json:"text"`
}

// ErrorMsg is sent by the gateway to communicate an error condition.
type ErrorMsg struct {
	Type    string `json:"type"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// PongMsg is the gateway's response to an adapter ping.
type PongMsg struct {
	Type string `json:"type"`
}

// ---------------------------------------------------------------------------
// Helper functions
// ---------------------------------------------------------------------------

// ParseAdapterMessage parses raw WebSocket bytes into a typed adapter
// message. It returns the message type string, the decoded struct, and any
// error encountered during parsing. An error is returned for unknown or
// gateway-only message types.
func ParseAdapterMessage(data []byte) (string, interface{}, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return "", nil, fmt.Errorf("protocol: failed to parse message: %w", err)
	}

	var (
		msg interface{}
		err error
	)

	switch env.Type {
	case TypeHello:
		var m HelloMsg
		err = json.Unmarshal(env.Raw, &m)
		msg = m
	case TypeInboundMessage:
		var m InboundMessageMsg
		err = json.Unmarshal(env.Raw, &m)
		msg = m
	case TypeChoice:
		var m ChoiceMsg
		err = json.Unmarshal(env.Raw, &m)
		msg = m
	case TypePing:
		var m PingMsg
		err = json.Unmarshal(env.Raw, &m)
		msg = m
	default:
		return env.Type, nil, fmt.Errorf("protocol: unknown adapter message type: %q", env.Type)
	}

	if err != nil {
		return env.Type, nil, fmt.Errorf("protocol: failed to decode %q payload: %w", env.Type, err)
	}
	return env.Type, msg, nil
}

// NewGatewayMessage creates a JSON-encoded byte slice for a gateway
// message. The msgType is injected into the payload under the "type" key.
// The payload should be one of the gateway message structs; this function
// marshals it to JSON, injects the type field, and returns the final bytes.
func NewGatewayMessage(msgType string, payload interface{}) ([]byte, error) {
	// Marshal the payload struct to a generic map so we can ensure the
	// "type" field is present and correct.
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("protocol: failed to marshal payload: %w", err)
	}

	var m map[string]interface{}
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("protocol: failed to unmarshal payload into map: %w", err)
	}

	m["type"] = msgType

	out, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("protocol: failed to marshal gateway message: %w", err)
	}
	return out, nil
}
