// Package toxicity scores message text and decides whether a message
// should be intercepted for a reflection pause. Scoring is delegated to a
// pluggable engine (on-device keyword model or a remote API); the gate
// applies the threshold and the fail-open policy so that an engine outage
// can never block normal messaging.
package toxicity

import "context"

// Engine scores text for toxicity. Implementations return a score in
// [0, 1] where higher means more toxic. Calls must honor ctx cancellation.
type Engine interface {
	Score(ctx context.Context, text string) (float64, error)
}

// Engine selector values accepted in configuration.
const (
	EngineKeyword = "keyword"
	EngineRemote  = "remote"
)
