package main

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"strings"

	"github.com/mahaj/chat-relay/pkg/model"
)

type PresenceReader interface {
	Members(ctx context.Context, room model.Room) ([]string, error)
}

type PresenceHandler struct {
	presence PresenceReader
}

func NewPresenceHandler(p PresenceReader) *PresenceHandler {
	return &PresenceHandler{presence: p}
}

func (h *PresenceHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	// Extract room from URL path: /channels/{kind}:{id}/users
	pathParts := strings.Split(r.URL.Path, "/")
	if len(pathParts) < 4 || pathParts[3] != "users" {
		http.Error(w, "Invalid path", http.StatusBadRequest)
		return
	}
	room, err := model.ParseRoom(pathParts[2])
	if err != nil {
		http.Error(w, "Invalid room", http.StatusBadRequest)
		return
	}

	users, err := h.presence.Members(r.Context(), room)
	if err != nil {
		log.Printf("Failed to fetch presence for room %s: %v", room, err)
		http.Error(w, "Failed to fetch presence", http.StatusInternalServerError)
		return
	}
	if users == nil {
		users = []string{}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(users)
}
