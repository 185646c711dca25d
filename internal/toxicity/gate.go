package toxicity

import (
	"context"
	"log"
	"time"

	"github.com/reflectpause/pausebot/internal/metrics"
)

// Verdict is the gate's decision for one message.
type Verdict struct {
	Toxic bool
	Score float64
}

// GateConfig holds the gate's tunables.
type GateConfig struct {
	Threshold   float64       // score at or above which a message is toxic
	CallTimeout time.Duration // bound on one engine call
}

// DefaultGateConfig returns the stock configuration.
func DefaultGateConfig() GateConfig {
	return GateConfig{
		Threshold:   0.7,
		CallTimeout: 2 * time.Second,
	}
}

// Gate wraps an Engine with the threshold decision and the fail-open
// policy: if the engine errors or exceeds CallTimeout the message is
// treated as non-toxic, so availability of normal messaging never depends
// on the scoring dependency.
type Gate struct {
	engine Engine
	config GateConfig
}

// NewGate creates a gate over the given engine.
func NewGate(engine Engine, config GateConfig) *Gate {
	return &Gate{engine: engine, config: config}
}

// Evaluate scores text and applies the threshold. threshold <= 0 uses the
// gate's configured default, letting per-guild overrides flow through.
func (g *Gate) Evaluate(ctx context.Context, text string, threshold float64) Verdict {
	if threshold <= 0 {
		threshold = g.config.Threshold
	}

	callCtx, cancel := context.WithTimeout(ctx, g.config.CallTimeout)
	defer cancel()

	start := time.Now()
	score, err := g.engine.Score(callCtx, text)
	metrics.GateLatency.Observe(time.Since(start).Seconds())

	if err != nil {
		// Fail open: never block a message because scoring is down.
		metrics.EngineFailures.Inc()
		log.Printf("[gate] engine unavailable, failing open: %v", err)
		return Verdict{Toxic: false, Score: 0}
	}

	return Verdict{Toxic: score >= threshold, Score: score}
}
