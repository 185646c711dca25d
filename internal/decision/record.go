// Package decision forwards and persists the anonymized outcome of each
// reflection session. Records carry only the decision category and coarse
// metadata; message content never reaches this package.
package decision

import (
	"crypto/sha256"
	"fmt"
	"time"

	"github.com/reflectpause/pausebot/internal/session"
)

// Decision categories, one per terminal session state.
const (
	CategoryPosted    = "posted"
	CategoryEdited    = "edited"
	CategoryCancelled = "cancelled"
	CategoryExpired   = "expired"
)

// Record is the content-free decision event published for every resolved
// session.
type Record struct {
	Category    string    `json:"category"`
	GuildID     string    `json:"guild_id"`
	UserHash    string    `json:"user_hash"`
	ScoreBucket string    `json:"score_bucket"`
	ResolvedAt  time.Time `json:"resolved_at"`
}

// CategoryFor maps a terminal session state to its decision category.
func CategoryFor(state session.State) string {
	switch state {
	case session.StatePosted:
		return CategoryPosted
	case session.StateEdited:
		return CategoryEdited
	case session.StateCancelled:
		return CategoryCancelled
	default:
		return CategoryExpired
	}
}

// HashUser returns a short SHA-256 prefix of the user ID so aggregate
// stats can distinguish users without storing identities.
func HashUser(userID string) string {
	h := sha256.Sum256([]byte(userID))
	return fmt.Sprintf("%x", h[:8]) // 16-char hex prefix
}

// BucketScore coarsens a toxicity score into one of four buckets so the
// stored metadata cannot reconstruct the gate's exact verdict.
func BucketScore(score float64) string {
	switch {
	case score < 0.5:
		return "low"
	case score < 0.7:
		return "medium"
	case score < 0.9:
		return "high"
	default:
		return "severe"
	}
}
