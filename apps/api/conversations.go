package main

import (
	"context"
	"encoding/json"
	"log"
	"net/http"

	"github.com/mahaj/chat-relay/pkg/auth"
	"github.com/mahaj/chat-relay/pkg/index"
)

type ConversationIndex interface {
	List(ctx context.Context, userID string) ([]index.Conversation, error)
	ResetUnread(ctx context.Context, userID, conversationID string) error
}

func ConversationsHandler(idx ConversationIndex) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := r.Context().Value(auth.UserKey).(*auth.Claims)
		if !ok {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}

		conversations, err := idx.List(r.Context(), claims.UserID)
		if err != nil {
			log.Printf("Failed to list conversations: %v", err)
			http.Error(w, "Failed to list conversations", http.StatusInternalServerError)
			return
		}
		if conversations == nil {
			conversations = []index.Conversation{}
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(conversations)
	}
}
