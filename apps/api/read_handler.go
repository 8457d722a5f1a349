package main

import (
	"encoding/json"
	"log"
	"net/http"

	"github.com/mahaj/chat-relay/pkg/auth"
)

type ReadRequest struct {
	ConversationID string `json:"conversation_id"`
}

// ReadHandler clears the caller's unread counter for one conversation. It
// does not touch message status; that moves only through the relay.
func ReadHandler(idx ConversationIndex) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		claims, ok := r.Context().Value(auth.UserKey).(*auth.Claims)
		if !ok {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}

		var req ReadRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.ConversationID == "" {
			http.Error(w, "Invalid request body", http.StatusBadRequest)
			return
		}

		if err := idx.ResetUnread(r.Context(), claims.UserID, req.ConversationID); err != nil {
			log.Printf("Failed to reset unread count: %v", err)
			http.Error(w, "Failed to reset unread count", http.StatusInternalServerError)
			return
		}

		w.WriteHeader(http.StatusOK)
	}
}
