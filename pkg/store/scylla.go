package store

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/gocql/gocql"
	"github.com/mahaj/chat-relay/pkg/db"
	"github.com/mahaj/chat-relay/pkg/model"
)

const messageColumns = `conversation_id, sequence_key, message_id, sender_id, receiver_id, content, media_ref, reply_to_id, status, liked, created_at`

// Scylla stores messages in one table per conversation kind. Conditional
// writes are lightweight transactions, so they serialize on the partition
// under SERIAL consistency.
type Scylla struct {
	db *db.Session
}

func NewScylla(session *db.Session) *Scylla {
	return &Scylla{db: session}
}

func table(kind model.ConversationKind) string {
	if kind == model.KindGroup {
		return db.GroupMessagesTable
	}
	return db.DirectMessagesTable
}

func unavailable(op string, err error) error {
	return fmt.Errorf("%w: %s: %v", ErrUnavailable, op, err)
}

func (s *Scylla) Get(ctx context.Context, key Key) (*model.Message, error) {
	q := `SELECT ` + messageColumns + ` FROM ` + table(key.Kind) + ` WHERE conversation_id = ? AND sequence_key = ?`

	m := &model.Message{ConversationKind: key.Kind}
	var status string
	err := s.db.Query(q, key.ConversationID, key.SequenceKey).WithContext(ctx).
		Scan(&m.ConversationID, &m.SequenceKey, &m.MessageID, &m.SenderID, &m.ReceiverID,
			&m.Content, &m.MediaRef, &m.ReplyToID, &status, &m.Liked, &m.CreatedAt)
	if errors.Is(err, gocql.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, unavailable("get", err)
	}
	m.Status = model.Status(status)
	return m, nil
}

func (s *Scylla) PutIfAbsent(ctx context.Context, m *model.Message) (bool, error) {
	q := `INSERT INTO ` + table(m.ConversationKind) + ` (` + messageColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?) IF NOT EXISTS`

	applied, err := s.db.Query(q, m.ConversationID, m.SequenceKey, m.MessageID, m.SenderID, m.ReceiverID,
		m.Content, m.MediaRef, m.ReplyToID, string(m.Status), m.Liked, m.CreatedAt).
		WithContext(ctx).MapScanCAS(map[string]interface{}{})
	if err != nil {
		return false, unavailable("conditional insert", err)
	}
	return applied, nil
}

func (s *Scylla) UpdateStatus(ctx context.Context, key Key, from, to model.Status) (bool, error) {
	q := `UPDATE ` + table(key.Kind) + ` SET status = ? WHERE conversation_id = ? AND sequence_key = ? IF status = ?`

	previous := map[string]interface{}{}
	applied, err := s.db.Query(q, string(to), key.ConversationID, key.SequenceKey, string(from)).
		WithContext(ctx).MapScanCAS(previous)
	if err != nil {
		return false, unavailable("conditional update", err)
	}
	if !applied {
		// A missing row reports status null.
		if cur, ok := previous["status"].(string); !ok || cur == "" {
			return false, ErrNotFound
		}
	}
	return applied, nil
}

func (s *Scylla) SetLiked(ctx context.Context, key Key, liked bool) error {
	q := `UPDATE ` + table(key.Kind) + ` SET liked = ? WHERE conversation_id = ? AND sequence_key = ? IF EXISTS`

	applied, err := s.db.Query(q, liked, key.ConversationID, key.SequenceKey).
		WithContext(ctx).MapScanCAS(map[string]interface{}{})
	if err != nil {
		return unavailable("set liked", err)
	}
	if !applied {
		return ErrNotFound
	}
	return nil
}

// FindByMessageID uses the message_id secondary index restricted to one
// partition.
func (s *Scylla) FindByMessageID(ctx context.Context, kind model.ConversationKind, conversationID, messageID string) (*model.Message, error) {
	q := `SELECT sequence_key FROM ` + table(kind) + ` WHERE conversation_id = ? AND message_id = ?`

	var key string
	err := s.db.Query(q, conversationID, messageID).WithContext(ctx).Scan(&key)
	if errors.Is(err, gocql.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, unavailable("find by message id", err)
	}
	return s.Get(ctx, Key{Kind: kind, ConversationID: conversationID, SequenceKey: key})
}

func (s *Scylla) Query(ctx context.Context, kind model.ConversationKind, conversationID string, pred Predicate) ([]*model.Message, error) {
	q := `SELECT ` + messageColumns + ` FROM ` + table(kind) + ` WHERE conversation_id = ?`
	iter := s.db.Query(q, conversationID).WithContext(ctx).Iter()

	var (
		out       []*model.Message
		status    string
		createdAt time.Time
	)
	for {
		m := &model.Message{ConversationKind: kind}
		if !iter.Scan(&m.ConversationID, &m.SequenceKey, &m.MessageID, &m.SenderID, &m.ReceiverID,
			&m.Content, &m.MediaRef, &m.ReplyToID, &status, &m.Liked, &createdAt) {
			break
		}
		m.Status = model.Status(status)
		m.CreatedAt = createdAt
		if pred == nil || pred(m) {
			out = append(out, m)
		}
	}
	if err := iter.Close(); err != nil {
		log.Printf("Failed to iterate %s messages for %s: %v", kind, conversationID, err)
		return nil, unavailable("query", err)
	}
	return out, nil
}
