// Package transport defines the messaging-platform surface the session
// core depends on: deleting the intercepted original, delivering the
// private reflection prompt, and posting a resolved message. The gateway
// service implements delivery; the core only publishes commands.
package transport

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/reflectpause/pausebot/internal/protocol"
	"github.com/reflectpause/pausebot/internal/session"
)

// Transport is the chat-platform collaborator. Implementations must be
// safe for concurrent use; calls are bounded by the caller's context.
type Transport interface {
	// DeleteOriginal removes the intercepted message from the channel.
	DeleteOriginal(ctx context.Context, ref session.MessageRef) error

	// SendReflection delivers the private reflection prompt for a session
	// to the author.
	SendReflection(ctx context.Context, adapterID, userID, sessionID string, prompts []string) error

	// PostMessage sends text to a channel on behalf of the author.
	PostMessage(ctx context.Context, adapterID, channelID, text string) error
}

// CommandPublisher is the messaging surface the NATS transport needs.
type CommandPublisher interface {
	PublishAdapterCommand(adapterID string, data []byte) error
}

// NATSTransport publishes protocol commands to pause.cmd.<adapter>, where
// the gateway relays them to the connected platform adapter.
type NATSTransport struct {
	pub CommandPublisher
}

// NewNATSTransport creates a transport that publishes through pub.
func NewNATSTransport(pub CommandPublisher) *NATSTransport {
	return &NATSTransport{pub: pub}
}

func (t *NATSTransport) publish(adapterID string, msg interface{}) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("transport: marshal command: %w", err)
	}
	if err := t.pub.PublishAdapterCommand(adapterID, data); err != nil {
		return fmt.Errorf("transport: publish command: %w", err)
	}
	return nil
}

// DeleteOriginal implements Transport.
func (t *NATSTransport) DeleteOriginal(_ context.Context, ref session.MessageRef) error {
	return t.publish(ref.AdapterID, protocol.DeleteOriginalMsg{
		Type:      protocol.TypeDeleteOriginal,
		MessageID: ref.MessageID,
	})
}

// SendReflection implements Transport.
func (t *NATSTransport) SendReflection(_ context.Context, adapterID, userID, sessionID string, prompts []string) error {
	return t.publish(adapterID, protocol.SendPromptMsg{
		Type:      protocol.TypeSendPrompt,
		SessionID: sessionID,
		UserID:    userID,
		Questions: prompts,
	})
}

// PostMessage implements Transport.
func (t *NATSTransport) PostMessage(_ context.Context, adapterID, channelID, text string) error {
	return t.publish(adapterID, protocol.PostMessageMsg{
		Type:      protocol.TypePostMessage,
		ChannelID: channelID,
		Text:      text,
	})
}
