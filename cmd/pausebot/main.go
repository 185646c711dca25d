package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/reflectpause/pausebot/internal/config"
	"github.com/reflectpause/pausebot/internal/core"
	"github.com/reflectpause/pausebot/internal/decision"
	"github.com/reflectpause/pausebot/internal/expiry"
	"github.com/reflectpause/pausebot/internal/guild"
	"github.com/reflectpause/pausebot/internal/messaging"
	"github.com/reflectpause/pausebot/internal/metrics"
	"github.com/reflectpause/pausebot/internal/prompts"
	"github.com/reflectpause/pausebot/internal/ratelimit"
	"github.com/reflectpause/pausebot/internal/resolution"
	"github.com/reflectpause/pausebot/internal/session"
	"github.com/reflectpause/pausebot/internal/toxicity"
	"github.com/reflectpause/pausebot/internal/transport"
)

func main() {
	log.Println("Starting pausebot session core...")

	var cfg config.Core
	if err := config.Load(&cfg); err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	// --- NATS ---
	natsConfig := messaging.DefaultNATSConfig()
	natsConfig.URL = cfg.NATSURL
	natsConfig.Name = "pausebot-core"

	natsClient, err := messaging.NewNATSClient(natsConfig)
	if err != nil {
		log.Fatalf("failed to connect to NATS: %v", err)
	}

	// --- Redis (guild settings + rate limits) ---
	guilds, err := guild.NewStore(cfg.RedisAddr)
	if err != nil {
		log.Fatalf("failed to connect to Redis: %v", err)
	}
	guilds.SetDefaultLocale(cfg.DefaultLocale)
	limiter := ratelimit.NewLimiter(guilds.Client())

	// --- Toxicity gate ---
	var engine toxicity.Engine
	switch cfg.Engine {
	case toxicity.EngineRemote:
		engine = toxicity.NewRemoteEngine(cfg.RemoteEngineURL, cfg.RemoteEngineKey, nil)
	default:
		engine = toxicity.NewKeywordEngine()
	}
	gate := toxicity.NewGate(engine, toxicity.GateConfig{
		Threshold:   cfg.Threshold,
		CallTimeout: cfg.EngineCallTimeout,
	})

	// --- Prompts ---
	provider := prompts.NewProvider(time.Now().UnixNano())
	if cfg.PromptBankFile != "" {
		if err := provider.LoadBankFile(cfg.PromptBankFile); err != nil {
			log.Fatalf("failed to load prompt bank: %v", err)
		}
	}

	// --- Session machinery ---
	store := session.NewStore(cfg.SessionTTL)
	tr := transport.NewNATSTransport(natsClient)
	sink := decision.NewNATSSink(natsClient)
	executor := resolution.NewExecutor(store, tr, sink)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var c *core.Core
	scheduler := expiry.NewScheduler(func(sessionID string) {
		c.HandleExpiry(sessionID)
	})
	c = core.New(gate, guilds, limiter, store, scheduler, executor, tr, provider)

	go scheduler.Run(ctx)

	// --- NATS subscriptions ---
	err = natsClient.SubscribeInbound(func(data []byte) {
		msg, err := core.DecodeInbound(data)
		if err != nil {
			log.Printf("[core] bad inbound payload: %v", err)
			return
		}
		c.HandleInbound(ctx, msg)
	})
	if err != nil {
		log.Fatalf("failed to subscribe to inbound messages: %v", err)
	}

	err = natsClient.SubscribeChoice(func(data []byte) {
		ev, err := core.DecodeChoice(data)
		if err != nil {
			log.Printf("[core] bad choice payload: %v", err)
			return
		}
		c.HandleChoice(ctx, ev)
	})
	if err != nil {
		log.Fatalf("failed to subscribe to choices: %v", err)
	}

	// --- Metrics ---
	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", metrics.Handler())
		if err := http.ListenAndServe(cfg.MetricsAddr, mux); err != nil {
			log.Printf("[metrics] server stopped: %v", err)
		}
	}()

	log.Printf("pausebot session core running")
	log.Printf("  nats_url:     %s", cfg.NATSURL)
	log.Printf("  redis_addr:   %s", cfg.RedisAddr)
	log.Printf("  engine:       %s", cfg.Engine)
	log.Printf("  threshold:    %.2f", cfg.Threshold)
	log.Printf("  session_ttl:  %s", cfg.SessionTTL)
	log.Printf("  metrics_addr: %s", cfg.MetricsAddr)

	// Graceful shutdown.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	log.Printf("received signal %v, shutting down...", sig)

	cancel()
	if forced := store.Drain(); forced > 0 {
		log.Printf("forced %d pending sessions to expired on shutdown", forced)
	}
	natsClient.Close()
	guilds.Close()
}
