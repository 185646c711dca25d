package guild

import (
	"context"
	"testing"

	"github.com/redis/go-redis/v9"
)

// newTestStore creates a Store connected to a local Redis instance and
// flushes test guild keys before returning. Tests that call this helper
// require a running Redis on localhost:6379.
func newTestStore(t *testing.T) *Store {
	t.Helper()
	client := redis.NewClient(&redis.Options{Addr: "localhost:6379"})
	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		t.Skipf("redis not available: %v", err)
	}
	cleanup := func() {
		iter := client.Scan(ctx, 0, GuildPrefix+"test_*", 100).Iterator()
		for iter.Next(ctx) {
			client.Del(ctx, iter.Val())
		}
	}
	cleanup()
	t.Cleanup(func() {
		cleanup()
		client.Close()
	})
	return NewStoreWithClient(client)
}

func TestGet_Defaults(t *testing.T) {
	store := newTestStore(t)

	settings, err := store.Get(context.Background(), "test_unknown")
	if err != nil {
		t.Fatalf("Get() error: %v", err)
	}
	if !settings.Enabled {
		t.Error("expected interception enabled by default")
	}
	if settings.Threshold != DefaultThreshold {
		t.Errorf("Threshold = %f, want %f", settings.Threshold, DefaultThreshold)
	}
	if settings.Locale != DefaultLocale {
		t.Errorf("Locale = %q, want %q", settings.Locale, DefaultLocale)
	}
}

func TestSetEnabled(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if err := store.SetEnabled(ctx, "test_toggle", false); err != nil {
		t.Fatalf("SetEnabled() error: %v", err)
	}
	settings, err := store.Get(ctx, "test_toggle")
	if err != nil {
		t.Fatalf("Get() error: %v", err)
	}
	if settings.Enabled {
		t.Error("expected disabled after SetEnabled(false)")
	}

	if err := store.SetEnabled(ctx, "test_toggle", true); err != nil {
		t.Fatalf("SetEnabled() error: %v", err)
	}
	settings, err = store.Get(ctx, "test_toggle")
	if err != nil {
		t.Fatalf("Get() error: %v", err)
	}
	if !settings.Enabled {
		t.Error("expected enabled after SetEnabled(true)")
	}
}

func TestSetDefaultLocale(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	store.SetDefaultLocale("vi")

	// Guilds with no stored locale pick up the configured default.
	settings, err := store.Get(ctx, "test_default_locale")
	if err != nil {
		t.Fatalf("Get() error: %v", err)
	}
	if settings.Locale != "vi" {
		t.Errorf("Locale = %q, want configured default %q", settings.Locale, "vi")
	}

	// A stored locale still wins over the default.
	if err := store.SetLocale(ctx, "test_default_locale", "fr"); err != nil {
		t.Fatalf("SetLocale() error: %v", err)
	}
	settings, err = store.Get(ctx, "test_default_locale")
	if err != nil {
		t.Fatalf("Get() error: %v", err)
	}
	if settings.Locale != "fr" {
		t.Errorf("Locale = %q, want stored %q", settings.Locale, "fr")
	}
}

func TestSetThreshold(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if err := store.SetThreshold(ctx, "test_threshold", 0.85); err != nil {
		t.Fatalf("SetThreshold() error: %v", err)
	}
	settings, err := store.Get(ctx, "test_threshold")
	if err != nil {
		t.Fatalf("Get() error: %v", err)
	}
	if settings.Threshold != 0.85 {
		t.Errorf("Threshold = %f, want 0.85", settings.Threshold)
	}
}

func TestSetThreshold_OutOfRange(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	for _, bad := range []float64{0, -0.1, 1.5} {
		if err := store.SetThreshold(ctx, "test_bad_threshold", bad); err == nil {
			t.Errorf("SetThreshold(%f) should have been rejected", bad)
		}
	}
}

func TestSetLocale(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if err := store.SetLocale(ctx, "test_locale", "vi"); err != nil {
		t.Fatalf("SetLocale() error: %v", err)
	}
	settings, err := store.Get(ctx, "test_locale")
	if err != nil {
		t.Fatalf("Get() error: %v", err)
	}
	if settings.Locale != "vi" {
		t.Errorf("Locale = %q, want %q", settings.Locale, "vi")
	}
}

func TestGet_IgnoresCorruptThreshold(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	// Write a junk threshold directly; Get should fall back to the default.
	store.Client().HSet(ctx, GuildPrefix+"test_corrupt", "threshold", "not-a-number")

	settings, err := store.Get(ctx, "test_corrupt")
	if err != nil {
		t.Fatalf("Get() error: %v", err)
	}
	if settings.Threshold != DefaultThreshold {
		t.Errorf("Threshold = %f, want default %f", settings.Threshold, DefaultThreshold)
	}
}
