package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/reflectpause/pausebot/internal/config"
	"github.com/reflectpause/pausebot/internal/gateway"
	"github.com/reflectpause/pausebot/internal/messaging"
)

func main() {
	log.Println("Starting pausebot adapter gateway...")

	var cfg config.Gateway
	if err := config.Load(&cfg); err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	natsConfig := messaging.DefaultNATSConfig()
	natsConfig.URL = cfg.NATSURL
	natsConfig.Name = "pausebot-gateway"

	natsClient, err := messaging.NewNATSClient(natsConfig)
	if err != nil {
		log.Fatalf("failed to connect to NATS: %v", err)
	}

	server := gateway.NewServer(gateway.ServerConfig{
		ListenAddr:   cfg.ListenAddr,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}, natsClient)

	if err := server.Start(); err != nil {
		log.Fatalf("failed to start gateway: %v", err)
	}

	log.Printf("pausebot adapter gateway running")
	log.Printf("  listen_addr: %s", cfg.ListenAddr)
	log.Printf("  nats_url:    %s", cfg.NATSURL)

	// Graceful shutdown.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	log.Printf("received signal %v, shutting down...", sig)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Printf("gateway shutdown: %v", err)
	}
	natsClient.Close()
}
