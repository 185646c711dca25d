// Package messaging provides a NATS client wrapper for pub/sub messaging
// between the gateway, the session core, and the decisions recorder. It
// handles connection lifecycle, subject-based subscriptions, and
// convenience methods for the pause and decision channels.
package messaging

import (
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
)

// NATS subject patterns used across pausebot services.
const (
	SubjectInbound        = "pause.inbound"   // gateway -> core: flaggable message events
	SubjectChoice         = "pause.choice"    // gateway -> core: author choices
	SubjectAdapterCommand = "pause.cmd"       // + .<adapter_id> core -> gateway: transport commands
	SubjectDecisionRecord = "decision.record" // core -> recorder: anonymized outcomes
	SubjectDecisionStats  = "decision.stats"  // request/reply: per-guild aggregate lookups
)

// NATSClient wraps the NATS connection with helper methods for pub/sub.
type NATSClient struct {
	conn *nats.Conn
	mu   sync.Mutex
	subs map[string]*nats.Subscription
}

// NATSConfig holds NATS connection settings.
type NATSConfig struct {
	URL           string        // nats://localhost:4222
	Name          string        // client name for identification
	ReconnectWait time.Duration // time between reconnect attempts
	MaxReconnects int           // max reconnect attempts (-1 for infinite)
}

// DefaultNATSConfig returns sensible defaults.
func DefaultNATSConfig() NATSConfig {
	return NATSConfig{
		URL:           "nats://localhost:4222",
		Name:          "pausebot",
		ReconnectWait: 2 * time.Second,
		MaxReconnects: -1, // infinite reconnects
	}
}

// NewNATSClient connects to NATS with the given config and returns a ready
// client. It returns an error if the initial connection fails.
func NewNATSClient(config NATSConfig) (*NATSClient, error) {
	opts := []nats.Option{
		nats.Name(config.Name),
		nats.ReconnectWait(config.ReconnectWait),
		nats.MaxReconnects(config.MaxReconnects),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				log.Printf("[nats] disconnected: %v", err)
			} else {
				log.Printf("[nats] disconnected")
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Printf("[nats] reconnected to %s", nc.ConnectedUrl())
		}),
		nats.ClosedHandler(func(_ *nats.Conn) {
			log.Printf("[nats] connection closed")
		}),
	}

	nc, err := nats.Connect(config.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}

	log.Printf("[nats] connected to %s", nc.ConnectedUrl())

	return &NATSClient{
		conn: nc,
		subs: make(map[string]*nats.Subscription),
	}, nil
}

// Publish sends data to the given NATS subject.
func (c *NATSClient) Publish(subject string, data []byte) error {
	return c.conn.Publish(subject, data)
}

// Subscribe registers a handler for the given subject and stores the
// subscription internally for later cleanup.
func (c *NATSClient) Subscribe(subject string, handler func(msg *nats.Msg)) error {
	sub, err := c.conn.Subscribe(subject, handler)
	if err != nil {
		return fmt.Errorf("nats subscribe %s: %w", subject, err)
	}

	c.mu.Lock()
	c.subs[subject] = sub
	c.mu.Unlock()

	return nil
}

// PublishInbound publishes a flaggable message event to the session core.
func (c *NATSClient) PublishInbound(data []byte) error {
	return c.Publish(SubjectInbound, data)
}

// SubscribeInbound subscribes to flaggable message events from gateways.
func (c *NATSClient) SubscribeInbound(handler func(data []byte)) error {
	return c.Subscribe(SubjectInbound, func(msg *nats.Msg) {
		handler(msg.Data)
	})
}

// PublishChoice publishes an author's prompt choice to the session core.
func (c *NATSClient) PublishChoice(data []byte) error {
	return c.Publish(SubjectChoice, data)
}

// SubscribeChoice subscribes to author choice events from gateways.
func (c *NATSClient) SubscribeChoice(handler func(data []byte)) error {
	return c.Subscribe(SubjectChoice, func(msg *nats.Msg) {
		handler(msg.Data)
	})
}

// PublishAdapterCommand publishes a transport command for a specific
// platform adapter.
func (c *NATSClient) PublishAdapterCommand(adapterID string, data []byte) error {
	return c.Publish(SubjectAdapterCommand+"."+adapterID, data)
}

// SubscribeAdapterCommands subscribes to transport commands for a specific
// platform adapter.
func (c *NATSClient) SubscribeAdapterCommands(adapterID string, handler func(data []byte)) error {
	subject := SubjectAdapterCommand + "." + adapterID
	return c.Subscribe(subject, func(msg *nats.Msg) {
		handler(msg.Data)
	})
}

// UnsubscribeAdapterCommands unsubscribes an adapter's command subscription.
func (c *NATSClient) UnsubscribeAdapterCommands(adapterID string) error {
	return c.unsubscribe(SubjectAdapterCommand + "." + adapterID)
}

// PublishDecisionRecord publishes an anonymized decision record.
func (c *NATSClient) PublishDecisionRecord(data []byte) error {
	return c.Publish(SubjectDecisionRecord, data)
}

// SubscribeDecisionRecords subscribes to decision records from the core.
func (c *NATSClient) SubscribeDecisionRecords(handler func(data []byte)) error {
	return c.Subscribe(SubjectDecisionRecord, func(msg *nats.Msg) {
		handler(msg.Data)
	})
}

// SubscribeStatsRequests serves per-guild stats lookups over NATS
// request/reply. The handler returns the reply payload to send back.
func (c *NATSClient) SubscribeStatsRequests(handler func(data []byte) []byte) error {
	return c.Subscribe(SubjectDecisionStats, func(msg *nats.Msg) {
		reply := handler(msg.Data)
		if msg.Reply == "" {
			return
		}
		if err := msg.Respond(reply); err != nil {
			log.Printf("[nats] stats reply: %v", err)
		}
	})
}

// RequestStats sends a stats lookup request and waits for the reply.
func (c *NATSClient) RequestStats(data []byte, timeout time.Duration) ([]byte, error) {
	msg, err := c.conn.Request(SubjectDecisionStats, data, timeout)
	if err != nil {
		return nil, fmt.Errorf("nats request %s: %w", SubjectDecisionStats, err)
	}
	return msg.Data, nil
}

// Close drains all active subscriptions and closes the NATS connection.
func (c *NATSClient) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	for subject, sub := range c.subs {
		if err := sub.Drain(); err != nil {
			log.Printf("[nats] drain %s: %v", subject, err)
		}
	}
	c.subs = make(map[string]*nats.Subscription)

	if err := c.conn.Drain(); err != nil {
		log.Printf("[nats] connection drain: %v", err)
	}

	log.Printf("[nats] client closed")
}

// unsubscribe removes and unsubscribes from a specific subject.
func (c *NATSClient) unsubscribe(subject string) error {
	c.mu.Lock()
	sub, ok := c.subs[subject]
	if !ok {
		c.mu.Unlock()
		return fmt.Errorf("nats: no subscription for subject %s", subject)
	}
	delete(c.subs, subject)
	c.mu.Unlock()

	if err := sub.Unsubscribe(); err != nil {
		return fmt.Errorf("nats unsubscribe %s: %w", subject, err)
	}
	return nil
}
