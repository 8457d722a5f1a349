package model

import (
	"fmt"
	"time"
)

type ConversationKind string

const (
	KindDirect ConversationKind = "direct"
	KindGroup  ConversationKind = "group"
)

func (k ConversationKind) Valid() bool {
	return k == KindDirect || k == KindGroup
}

// Room names the broadcast scope of a conversation. Direct and group ids live
// in separate namespaces, so the kind is part of the key.
type Room struct {
	Kind ConversationKind
	ID   string
}

func DirectRoom(id string) Room { return Room{Kind: KindDirect, ID: id} }
func GroupRoom(id string) Room  { return Room{Kind: KindGroup, ID: id} }

func (r Room) String() string {
	return string(r.Kind) + ":" + r.ID
}

// ParseRoom is the inverse of Room.String.
func ParseRoom(s string) (Room, error) {
	for i := 0; i < len(s); i++ {
		if s[i] == ':' {
			r := Room{Kind: ConversationKind(s[:i]), ID: s[i+1:]}
			if !r.Kind.Valid() || r.ID == "" {
				break
			}
			return r, nil
		}
	}
	return Room{}, fmt.Errorf("invalid room %q", s)
}

// Message is the persisted record of one chat unit. It is keyed by
// (ConversationID, SequenceKey); MessageID is the client's idempotency token.
type Message struct {
	ConversationID   string           `json:"conversationId"`
	ConversationKind ConversationKind `json:"conversationKind"`
	SequenceKey      string           `json:"sequenceKey"`
	MessageID        string           `json:"messageId"`
	SenderID         string           `json:"senderId"`
	ReceiverID       string           `json:"receiverId,omitempty"`
	Content          string           `json:"content,omitempty"`
	MediaRef         string           `json:"mediaRef,omitempty"`
	ReplyToID        string           `json:"replyToId,omitempty"`
	Status           Status           `json:"status"`
	Liked            bool             `json:"liked"`
	CreatedAt        time.Time        `json:"createdAt"`
}

func (m *Message) Room() Room {
	return Room{Kind: m.ConversationKind, ID: m.ConversationID}
}

// AddressedTo reports whether userID is a recipient of m. Messages without an
// explicit receiver (groups, legacy direct rows) are addressed to everyone but
// the sender.
func (m *Message) AddressedTo(userID string) bool {
	if m.ReceiverID != "" {
		return m.ReceiverID == userID
	}
	return m.SenderID != userID
}

// CreationTime derives createdAt from a creation key. Keys that are not
// RFC 3339 timestamps are opaque tokens and fall back to now.
func CreationTime(key string, now time.Time) time.Time {
	if t, err := time.Parse(time.RFC3339Nano, key); err == nil {
		return t.UTC()
	}
	return now.UTC()
}
