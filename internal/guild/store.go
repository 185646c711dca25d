// Package guild manages per-guild moderation settings. Settings are stored
// as a Redis hash per guild so every pausebot instance sees the same
// configuration:
//
//	Key:    guild:<guild_id>
//	Fields: enabled, threshold, locale
//
// Reads fail open: a Redis outage leaves interception running with
// defaults rather than switching the bot off or blocking messages.
package guild

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// GuildPrefix is the Redis key prefix for guild settings hashes.
const GuildPrefix = "guild:"

// Defaults applied when a guild has no stored settings.
const (
	DefaultEnabled   = true
	DefaultThreshold = 0.7
	DefaultLocale    = "en"
)

// Settings is one guild's moderation configuration.
type Settings struct {
	GuildID   string
	Enabled   bool
	Threshold float64
	Locale    string
}

// DefaultSettings returns the stock settings for a guild.
func DefaultSettings(guildID string) Settings {
	return Settings{
		GuildID:   guildID,
		Enabled:   DefaultEnabled,
		Threshold: DefaultThreshold,
		Locale:    DefaultLocale,
	}
}

// Store manages guild settings in Redis.
type Store struct {
	client *redis.Client

	// defaultLocale overrides DefaultLocale for guilds with no stored
	// locale. Set once at startup from configuration.
	defaultLocale string
}

// NewStore creates a guild settings store connected to Redis at redisAddr.
func NewStore(redisAddr string) (*Store, error) {
	client := redis.NewClient(&redis.Options{
		Addr: redisAddr,
	})

	// Verify connection.
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("guild: redis connection failed: %w", err)
	}

	return &Store{client: client}, nil
}

// NewStoreWithClient creates a store over an existing Redis client.
func NewStoreWithClient(client *redis.Client) *Store {
	return &Store{client: client}
}

// SetDefaultLocale sets the locale applied to guilds that have not stored
// one. Called once during startup, before any Get.
func (s *Store) SetDefaultLocale(locale string) {
	s.defaultLocale = locale
}

// defaults returns the stock settings with the store's locale override.
func (s *Store) defaults(guildID string) Settings {
	settings := DefaultSettings(guildID)
	if s.defaultLocale != "" {
		settings.Locale = s.defaultLocale
	}
	return settings
}

// Get retrieves a guild's settings, applying defaults for missing fields.
// On Redis errors it returns defaults (fail open) along with the error so
// callers can log it.
func (s *Store) Get(ctx context.Context, guildID string) (Settings, error) {
	key := GuildPrefix + guildID

	result, err := s.client.HGetAll(ctx, key).Result()
	if err != nil {
		return s.defaults(guildID), fmt.Errorf("guild: get settings: %w", err)
	}

	settings := s.defaults(guildID)
	if v, ok := result["enabled"]; ok {
		settings.Enabled = v == "true"
	}
	if v, ok := result["threshold"]; ok {
		if f, err := strconv.ParseFloat(v, 64); err == nil && f > 0 && f <= 1 {
			settings.Threshold = f
		}
	}
	if v, ok := result["locale"]; ok && v != "" {
		settings.Locale = v
	}
	return settings, nil
}

// SetEnabled switches interception on or off for a guild.
func (s *Store) SetEnabled(ctx context.Context, guildID string, enabled bool) error {
	key := GuildPrefix + guildID
	return s.client.HSet(ctx, key, "enabled", strconv.FormatBool(enabled)).Err()
}

// SetThreshold stores a guild's toxicity threshold override.
func (s *Store) SetThreshold(ctx context.Context, guildID string, threshold float64) error {
	if threshold <= 0 || threshold > 1 {
		return fmt.Errorf("guild: threshold %f out of range (0,1]", threshold)
	}
	key := GuildPrefix + guildID
	return s.client.HSet(ctx, key, "threshold", strconv.FormatFloat(threshold, 'f', -1, 64)).Err()
}

// SetLocale stores a guild's prompt locale.
func (s *Store) SetLocale(ctx context.Context, guildID string, locale string) error {
	key := GuildPrefix + guildID
	return s.client.HSet(ctx, key, "locale", locale).Err()
}

// Close closes the Redis connection.
func (s *Store) Close() error {
	return s.client.Close()
}

// Client returns the underlying Redis client for use by other packages.
func (s *Store) Client() *redis.Client {
	return s.client
}
