package decision

import (
	"context"
	"encoding/json"
	"fmt"
)

// Sink accepts decision records. Implementations must be safe for
// concurrent use. A sink failure never blocks or reverses a resolution;
// the executor logs and drops.
type Sink interface {
	Record(ctx context.Context, rec Record) error
}

// Publisher is the messaging surface the NATS sink needs.
type Publisher interface {
	PublishDecisionRecord(data []byte) error
}

// NATSSink publishes records to the decision.record subject, fire and
// forget. The decisions service subscribes and persists them.
type NATSSink struct {
	pub Publisher
}

// NewNATSSink creates a sink that publishes through pub.
func NewNATSSink(pub Publisher) *NATSSink {
	return &NATSSink{pub: pub}
}

// Record marshals and publishes the record.
func (s *NATSSink) Record(_ context.Context, rec Record) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("decision: marshal record: %w", err)
	}
	if err := s.pub.PublishDecisionRecord(data); err != nil {
		return fmt.Errorf("decision: publish record: %w", err)
	}
	return nil
}
