package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/mahaj/chat-relay/pkg/auth"
	"github.com/mahaj/chat-relay/pkg/config"
	"github.com/mahaj/chat-relay/pkg/db"
	"github.com/mahaj/chat-relay/pkg/fanout"
	"github.com/mahaj/chat-relay/pkg/presence"
	"github.com/mahaj/chat-relay/pkg/relay"
	"github.com/mahaj/chat-relay/pkg/snowflake"
	"github.com/mahaj/chat-relay/pkg/store"
	"github.com/redis/go-redis/v9"
)

func newMux(hub *Hub, engine *relay.Engine, authn *auth.Authenticator) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		serveWs(hub, engine, authn, w, r)
	})
	return mux
}

func openStore(cfg *config.Config) (store.Store, func(), error) {
	switch cfg.Store {
	case "memory":
		log.Println("Using in-memory message store")
		return store.NewMemory(), func() {}, nil
	case "scylla":
		session, err := db.NewSession(cfg.ScyllaHosts, cfg.ScyllaKeyspace)
		if err != nil {
			return nil, nil, fmt.Errorf("connect to ScyllaDB: %w", err)
		}
		return store.NewScylla(session), session.Close, nil
	}
	return nil, nil, fmt.Errorf("unknown store %q", cfg.Store)
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	if cfg.LogFile != "" {
		f, err := os.OpenFile(cfg.LogFile, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0666)
		if err != nil {
			log.Fatalf("error opening file: %v", err)
		}
		defer f.Close()
		log.SetOutput(f)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	messages, closeStore, err := openStore(cfg)
	if err != nil {
		log.Fatalf("Failed to open store: %v", err)
	}
	defer closeStore()

	// In production, node ID should be unique per instance (e.g., from env var or service discovery)
	node, err := snowflake.NewNode(cfg.NodeID)
	if err != nil {
		log.Fatalf("Failed to initialize snowflake node: %v", err)
	}

	rdb := redis.NewClient(&redis.Options{
		Addr: cfg.RedisAddr,
	})
	defer rdb.Close()

	hub := NewHub(node)
	registry := relay.NewRegistry()
	local := relay.NewLocalBroadcaster(registry, hub)

	var broadcaster relay.Broadcaster = local
	if cfg.Fanout == "kafka" {
		publisher := fanout.NewPublisher(cfg.KafkaBrokers, cfg.KafkaTopic)
		defer publisher.Close()
		broadcaster = publisher
		go consumeFanout(ctx, cfg.KafkaBrokers, cfg.KafkaTopic, local)
	}

	engine := relay.NewEngine(messages, registry, broadcaster,
		relay.WithPresence(presence.NewRedis(rdb)),
		relay.WithSweepConcurrency(cfg.SweepConcurrency),
	)

	srv := &http.Server{Addr: cfg.GatewayAddr, Handler: newMux(hub, engine, auth.New(cfg.JWTSecret))}
	go func() {
		<-ctx.Done()
		srv.Close()
	}()

	log.Printf("Gateway Service Starting on %s...", cfg.GatewayAddr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatal(err)
	}
}
