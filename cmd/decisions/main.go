package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	_ "github.com/lib/pq"

	"github.com/reflectpause/pausebot/internal/config"
	"github.com/reflectpause/pausebot/internal/decision"
	"github.com/reflectpause/pausebot/internal/messaging"
)

func main() {
	log.Println("Starting pausebot decisions recorder...")

	var cfg config.Decisions
	if err := config.Load(&cfg); err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	// --- Migrations ---
	m, err := migrate.New(cfg.MigrationsPath, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("failed to init migrations: %v", err)
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		log.Fatalf("failed to run migrations: %v", err)
	}
	m.Close()

	// --- PostgreSQL ---
	db, err := sql.Open("postgres", cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("failed to open database: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	if err := db.PingContext(ctx); err != nil {
		cancel()
		log.Fatalf("failed to connect to database: %v", err)
	}
	cancel()

	store := decision.NewStore(db)

	// --- NATS ---
	natsConfig := messaging.DefaultNATSConfig()
	natsConfig.URL = cfg.NATSURL
	natsConfig.Name = "pausebot-decisions"

	natsClient, err := messaging.NewNATSClient(natsConfig)
	if err != nil {
		log.Fatalf("failed to connect to NATS: %v", err)
	}

	err = natsClient.SubscribeDecisionRecords(func(data []byte) {
		var rec decision.Record
		if err := json.Unmarshal(data, &rec); err != nil {
			log.Printf("[decisions] bad record payload: %v", err)
			return
		}

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := store.Insert(ctx, rec); err != nil {
			log.Printf("[decisions] insert failed category=%s guild=%s: %v",
				rec.Category, rec.GuildID, err)
			return
		}
		log.Printf("[decisions] recorded category=%s guild=%s bucket=%s",
			rec.Category, rec.GuildID, rec.ScoreBucket)
	})
	if err != nil {
		log.Fatalf("failed to subscribe to decision records: %v", err)
	}

	err = natsClient.SubscribeStatsRequests(func(data []byte) []byte {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return store.ServeStats(ctx, data)
	})
	if err != nil {
		log.Fatalf("failed to subscribe to stats requests: %v", err)
	}

	log.Printf("pausebot decisions recorder running")
	log.Printf("  nats_url:     %s", cfg.NATSURL)
	log.Printf("  database_url: %s", cfg.DatabaseURL)

	// Graceful shutdown.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	log.Printf("received signal %v, shutting down...", sig)

	natsClient.Close()
	db.Close()
}
