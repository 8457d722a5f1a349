// Package index keeps the per-user list of direct conversations and their
// unread counters. It is derived from the relay event stream and can be
// rebuilt from it.
package index

import (
	"context"
	"fmt"
	"time"

	"github.com/mahaj/chat-relay/pkg/db"
)

type Conversation struct {
	UserID         string    `json:"user_id"`
	OtherUserID    string    `json:"other_user_id"`
	ConversationID string    `json:"conversation_id"`
	LastUpdated    time.Time `json:"last_updated"`
	UnreadCount    int64     `json:"unread_count"`
}

type Scylla struct {
	db *db.Session
}

func NewScylla(session *db.Session) *Scylla {
	return &Scylla{db: session}
}

// Touch records that userID and otherUserID talked in conversationID at at.
func (s *Scylla) Touch(ctx context.Context, userID, otherUserID, conversationID string, at time.Time) error {
	q := `INSERT INTO ` + db.UserConversationsTable + ` (user_id, other_user_id, conversation_id, last_updated) VALUES (?, ?, ?, ?)`
	if err := s.db.Query(q, userID, otherUserID, conversationID, at).WithContext(ctx).Exec(); err != nil {
		return fmt.Errorf("update conversation for %s: %w", userID, err)
	}
	return nil
}

func (s *Scylla) IncrementUnread(ctx context.Context, userID, conversationID string) error {
	q := `UPDATE ` + db.ConversationCountersTable + ` SET unread_count = unread_count + 1 WHERE user_id = ? AND conversation_id = ?`
	if err := s.db.Query(q, userID, conversationID).WithContext(ctx).Exec(); err != nil {
		return fmt.Errorf("increment unread count for %s: %w", userID, err)
	}
	return nil
}

// ResetUnread deletes the counter row; deletion is how ScyllaDB counters
// are reset.
func (s *Scylla) ResetUnread(ctx context.Context, userID, conversationID string) error {
	q := `DELETE FROM ` + db.ConversationCountersTable + ` WHERE user_id = ? AND conversation_id = ?`
	if err := s.db.Query(q, userID, conversationID).WithContext(ctx).Exec(); err != nil {
		return fmt.Errorf("reset unread count for %s: %w", userID, err)
	}
	return nil
}

func (s *Scylla) List(ctx context.Context, userID string) ([]Conversation, error) {
	q := `SELECT user_id, other_user_id, conversation_id, last_updated FROM ` + db.UserConversationsTable + ` WHERE user_id = ?`
	iter := s.db.Query(q, userID).WithContext(ctx).Iter()

	var conversations []Conversation
	var c Conversation
	for iter.Scan(&c.UserID, &c.OtherUserID, &c.ConversationID, &c.LastUpdated) {
		// Fetch unread count for this conversation
		var count int64
		cq := `SELECT unread_count FROM ` + db.ConversationCountersTable + ` WHERE user_id = ? AND conversation_id = ?`
		if err := s.db.Query(cq, c.UserID, c.ConversationID).WithContext(ctx).Scan(&count); err == nil {
			c.UnreadCount = count
		} else {
			c.UnreadCount = 0
		}
		conversations = append(conversations, c)
	}

	if err := iter.Close(); err != nil {
		return nil, fmt.Errorf("list conversations for %s: %w", userID, err)
	}
	return conversations, nil
}
