package decision

import (
	"context"
	"database/sql"
	"fmt"
)

// validCategories matches the CHECK constraint on the decisions table.
var validCategories = map[string]bool{
	CategoryPosted:    true,
	CategoryEdited:    true,
	CategoryCancelled: true,
	CategoryExpired:   true,
}

// Store persists decision records in PostgreSQL. It is used by the
// decisions service, never by the session core, so a database outage can
// only delay analytics, not resolutions.
type Store struct {
	db *sql.DB
}

// NewStore creates a decision store backed by the given database handle.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// Insert appends a decision record. The category is validated against the
// allowed set before insertion; insertion is idempotency-tolerant in the
// sense that duplicate records only inflate counts, never corrupt state.
func (s *Store) Insert(ctx context.Context, rec Record) error {
	if !validCategories[rec.Category] {
		return fmt.Errorf("decision: invalid category %q", rec.Category)
	}

	const query = `
		INSERT INTO decisions (category, guild_id, user_hash, score_bucket, resolved_at)
		VALUES ($1, $2, $3, $4, $5)`

	_, err := s.db.ExecContext(ctx, query,
		rec.Category,
		rec.GuildID,
		rec.UserHash,
		rec.ScoreBucket,
		rec.ResolvedAt,
	)
	if err != nil {
		return fmt.Errorf("decision: insert: %w", err)
	}
	return nil
}

// GuildStats aggregates decision counts for a guild.
type GuildStats struct {
	GuildID        string  `json:"guild_id"`
	TotalPrompts   int     `json:"total_prompts"`
	Posted         int     `json:"posted"`
	Edited         int     `json:"edited"`
	Cancelled      int     `json:"cancelled"`
	Expired        int     `json:"expired"`
	ReflectionRate float64 `json:"reflection_rate"` // share of prompts where the author edited or cancelled
}

// Stats returns aggregate counts for a guild.
func (s *Store) Stats(ctx context.Context, guildID string) (GuildStats, error) {
	const query = `
		SELECT
			COUNT(*),
			COUNT(*) FILTER (WHERE category = 'posted'),
			COUNT(*) FILTER (WHERE category = 'edited'),
			COUNT(*) FILTER (WHERE category = 'cancelled'),
			COUNT(*) FILTER (WHERE category = 'expired')
		FROM decisions
		WHERE guild_id = $1`

	stats := GuildStats{GuildID: guildID}
	err := s.db.QueryRowContext(ctx, query, guildID).Scan(
		&stats.TotalPrompts,
		&stats.Posted,
		&stats.Edited,
		&stats.Cancelled,
		&stats.Expired,
	)
	if err != nil {
		return GuildStats{}, fmt.Errorf("decision: guild stats: %w", err)
	}

	if stats.TotalPrompts > 0 {
		stats.ReflectionRate = float64(stats.Edited+stats.Cancelled) / float64(stats.TotalPrompts)
	}
	return stats, nil
}
