// Package store holds chat messages keyed by (conversation, sequence key).
//
// Every mutation that must not race is a single conditional operation:
// PutIfAbsent for inserts and UpdateStatus for status moves. Callers never
// check then write.
package store

import (
	"context"
	"errors"

	"github.com/mahaj/chat-relay/pkg/model"
)

var (
	ErrNotFound = errors.New("message not found")
	// ErrUnavailable wraps transient backend failures.
	ErrUnavailable = errors.New("store unavailable")
)

// Key identifies one stored message.
type Key struct {
	Kind           model.ConversationKind
	ConversationID string
	SequenceKey    string
}

func KeyOf(m *model.Message) Key {
	return Key{Kind: m.ConversationKind, ConversationID: m.ConversationID, SequenceKey: m.SequenceKey}
}

// Predicate filters rows of a conversation partition.
type Predicate func(*model.Message) bool

func AddressedTo(userID string) Predicate {
	return func(m *model.Message) bool { return m.AddressedTo(userID) }
}

func WithStatus(s model.Status) Predicate {
	return func(m *model.Message) bool { return m.Status == s }
}

func WithMessageID(id string) Predicate {
	return func(m *model.Message) bool { return m.MessageID == id }
}

func All(preds ...Predicate) Predicate {
	return func(m *model.Message) bool {
		for _, p := range preds {
			if !p(m) {
				return false
			}
		}
		return true
	}
}

type Store interface {
	Get(ctx context.Context, key Key) (*model.Message, error)
	// PutIfAbsent inserts m unless a row already exists at its key. The
	// existence test and the write are one atomic operation.
	PutIfAbsent(ctx context.Context, m *model.Message) (bool, error)
	// UpdateStatus moves the row at key from one status to another only if
	// its current status equals from.
	UpdateStatus(ctx context.Context, key Key, from, to model.Status) (bool, error)
	// SetLiked overwrites the liked flag of an existing row.
	SetLiked(ctx context.Context, key Key, liked bool) error
	// FindByMessageID returns the row of a conversation carrying the given
	// client message id.
	FindByMessageID(ctx context.Context, kind model.ConversationKind, conversationID, messageID string) (*model.Message, error)
	// Query returns the rows of one conversation matching pred, ordered by
	// sequence key. A nil pred matches everything.
	Query(ctx context.Context, kind model.ConversationKind, conversationID string, pred Predicate) ([]*model.Message, error)
}
