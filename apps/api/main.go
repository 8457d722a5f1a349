package main

import (
	"log"
	"net/http"

	"github.com/mahaj/chat-relay/pkg/auth"
	"github.com/mahaj/chat-relay/pkg/config"
	"github.com/mahaj/chat-relay/pkg/db"
	"github.com/mahaj/chat-relay/pkg/index"
	"github.com/mahaj/chat-relay/pkg/presence"
	"github.com/mahaj/chat-relay/pkg/store"
	"github.com/redis/go-redis/v9"
)

func CORSMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*") // Allow all for dev, or specific origin
		w.Header().Set("Access-Control-Allow-Methods", "POST, GET, OPTIONS, PUT, DELETE")
		w.Header().Set("Access-Control-Allow-Headers", "Accept, Content-Type, Content-Length, Accept-Encoding, X-CSRF-Token, Authorization")

		if r.Method == "OPTIONS" {
			return
		}

		next.ServeHTTP(w, r)
	})
}

type server struct {
	authn    *auth.Authenticator
	messages store.Store
	presence PresenceReader
	index    ConversationIndex
}

func (s *server) routes() *http.ServeMux {
	mux := http.NewServeMux()
	authed := func(h http.Handler) http.Handler {
		return CORSMiddleware(AuthMiddleware(s.authn, h))
	}

	// Public endpoint
	mux.Handle("/login", CORSMiddleware(LoginHandler(s.authn)))

	// Protected endpoints
	mux.Handle("/history", authed(NewHistoryHandler(s.messages)))
	// Route: /channels/{kind}:{id}/users
	mux.Handle("/channels/", authed(NewPresenceHandler(s.presence)))
	mux.Handle("/conversations", authed(ConversationsHandler(s.index)))
	mux.Handle("/conversations/read", authed(ReadHandler(s.index)))
	return mux
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	session, err := db.NewSession(cfg.ScyllaHosts, cfg.ScyllaKeyspace)
	if err != nil {
		log.Fatalf("Failed to connect to ScyllaDB: %v", err)
	}
	defer session.Close()

	rdb := redis.NewClient(&redis.Options{
		Addr: cfg.RedisAddr,
	})
	defer rdb.Close()

	s := &server{
		authn:    auth.New(cfg.JWTSecret),
		messages: store.NewScylla(session),
		presence: presence.NewRedis(rdb),
		index:    index.NewScylla(session),
	}

	log.Printf("API Service Starting on %s...", cfg.APIAddr)
	if err := http.ListenAndServe(cfg.APIAddr, s.routes()); err != nil {
		log.Fatal(err)
	}
}
