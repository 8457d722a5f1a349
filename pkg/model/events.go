package model

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrInvalidMessage marks payloads missing identifying fields. They are
// rejected before any store access.
var ErrInvalidMessage = errors.New("invalid message")

// Inbound event names (client -> relay).
const (
	EventJoin                    = "join"
	EventJoinGroup               = "joinGroup"
	EventLeave                   = "leave"
	EventLeaveGroup              = "leaveGroup"
	EventSendMessage             = "sendMessage"
	EventSendGroupMessage        = "sendGroupMessage"
	EventLikeMessage             = "likeMessage"
	EventLikeGroupMessage        = "likeGroupMessage"
	EventMessageDelivered        = "messageDelivered"
	EventMessageRead             = "messageRead"
	EventMarkAsRead              = "markAsRead"
	EventMarkGroupMessagesAsRead = "markGroupMessagesAsRead"
)

// Outbound event names (relay -> room members).
const (
	EventNewMessage          = "newMessage"
	EventNewGroupMessage     = "newGroupMessage"
	EventMessageStatusUpdate = "messageStatusUpdate"
	EventMessageLiked        = "messageLiked"
	EventGroupMessageLiked   = "groupMessageLiked"
	EventMessagesRead        = "messagesRead"
	EventGroupMessagesRead   = "groupMessagesRead"
	EventError               = "error"
)

// Frame is the wire envelope in both directions. Data is decoded according
// to Event.
type Frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// Event is an outbound frame before encoding.
type Event struct {
	Name string `json:"event"`
	Data any    `json:"data"`
}

func (e Event) Encode() ([]byte, error) {
	return json.Marshal(e)
}

func NewMessageEvent(m *Message) Event {
	name := EventNewMessage
	if m.ConversationKind == KindGroup {
		name = EventNewGroupMessage
	}
	return Event{Name: name, Data: m}
}

type StatusUpdate struct {
	ConversationID string   `json:"conversationId"`
	SequenceKey    string   `json:"sequenceKey,omitempty"`
	SequenceKeys   []string `json:"sequenceKeys,omitempty"`
	Status         Status   `json:"status"`
}

func StatusUpdateEvent(u StatusUpdate) Event {
	return Event{Name: EventMessageStatusUpdate, Data: u}
}

type LikeUpdate struct {
	ConversationID string `json:"conversationId"`
	SequenceKey    string `json:"sequenceKey"`
	MessageID      string `json:"messageId,omitempty"`
	Liked          bool   `json:"liked"`
}

func LikeEvent(kind ConversationKind, u LikeUpdate) Event {
	if kind == KindGroup {
		return Event{Name: EventGroupMessageLiked, Data: u}
	}
	return Event{Name: EventMessageLiked, Data: u}
}

type ReadReceipt struct {
	ConversationID string `json:"conversationId"`
	ReaderID       string `json:"readerId"`
}

func ReadReceiptEvent(kind ConversationKind, r ReadReceipt) Event {
	if kind == KindGroup {
		return Event{Name: EventGroupMessagesRead, Data: r}
	}
	return Event{Name: EventMessagesRead, Data: r}
}

type ErrorNotice struct {
	Event   string `json:"event"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Typed inbound requests produced by DecodeInbound.

type JoinRequest struct {
	Room          Room
	ParticipantID string
}

type LeaveRequest struct {
	Room Room
}

type SendRequest struct {
	Message Message
}

type ReactionRequest struct {
	Room        Room
	SequenceKey string
	MessageID   string
	Liked       bool
}

type StatusRequest struct {
	Room        Room
	SequenceKey string
	Target      Status
	RequesterID string
}

type ReadRequest struct {
	Room     Room
	ReaderID string
}

// payload is the union of every inbound field. Group events name the
// conversation groupId; conversationId is accepted for them too.
type payload struct {
	ConversationID string `json:"conversationId"`
	GroupID        string `json:"groupId"`
	CreationKey    string `json:"creationKey"`
	MessageID      string `json:"messageId"`
	SenderID       string `json:"senderId"`
	ReceiverID     string `json:"receiverId"`
	Content        string `json:"content"`
	MediaRef       string `json:"mediaRef"`
	ImageURL       string `json:"imageUrl"`
	ReplyToID      string `json:"replyToId"`
	ParticipantID  string `json:"participantId"`
	RequesterID    string `json:"requesterId"`
	ReaderID       string `json:"readerId"`
	Liked          *bool  `json:"liked"`
}

func (p *payload) room(kind ConversationKind) (Room, error) {
	id := p.ConversationID
	if kind == KindGroup && p.GroupID != "" {
		id = p.GroupID
	}
	if id == "" {
		if kind == KindGroup {
			return Room{}, fmt.Errorf("%w: groupId is required", ErrInvalidMessage)
		}
		return Room{}, fmt.Errorf("%w: conversationId is required", ErrInvalidMessage)
	}
	return Room{Kind: kind, ID: id}, nil
}

func (p *payload) creationKey() (string, error) {
	if p.CreationKey == "" {
		return "", fmt.Errorf("%w: creationKey is required", ErrInvalidMessage)
	}
	return p.CreationKey, nil
}

// DecodeInbound parses a client frame into one of the typed requests above.
// Unknown events and payloads missing required fields fail with
// ErrInvalidMessage.
func DecodeInbound(raw []byte) (string, any, error) {
	var f Frame
	if err := json.Unmarshal(raw, &f); err != nil {
		return "", nil, fmt.Errorf("%w: %v", ErrInvalidMessage, err)
	}
	var p payload
	if len(f.Data) > 0 {
		if err := json.Unmarshal(f.Data, &p); err != nil {
			return f.Event, nil, fmt.Errorf("%w: %s: %v", ErrInvalidMessage, f.Event, err)
		}
	}

	req, err := decodePayload(f.Event, &p)
	return f.Event, req, err
}

func decodePayload(event string, p *payload) (any, error) {
	switch event {
	case EventJoin, EventJoinGroup:
		room, err := p.room(kindOf(event))
		if err != nil {
			return nil, err
		}
		return JoinRequest{Room: room, ParticipantID: p.ParticipantID}, nil

	case EventLeave, EventLeaveGroup:
		room, err := p.room(kindOf(event))
		if err != nil {
			return nil, err
		}
		return LeaveRequest{Room: room}, nil

	case EventSendMessage, EventSendGroupMessage:
		room, err := p.room(kindOf(event))
		if err != nil {
			return nil, err
		}
		key, err := p.creationKey()
		if err != nil {
			return nil, err
		}
		media := p.MediaRef
		if media == "" {
			media = p.ImageURL
		}
		msg := Message{
			ConversationID:   room.ID,
			ConversationKind: room.Kind,
			SequenceKey:      key,
			MessageID:        p.MessageID,
			SenderID:         p.SenderID,
			Content:          p.Content,
			MediaRef:         media,
			ReplyToID:        p.ReplyToID,
		}
		if room.Kind == KindDirect {
			msg.ReceiverID = p.ReceiverID
		}
		// senderId may be filled from the authenticated connection, so the
		// full check runs in the relay.
		return SendRequest{Message: msg}, nil

	case EventLikeMessage, EventLikeGroupMessage:
		room, err := p.room(kindOf(event))
		if err != nil {
			return nil, err
		}
		if p.CreationKey == "" && p.MessageID == "" {
			return nil, fmt.Errorf("%w: creationKey or messageId is required", ErrInvalidMessage)
		}
		if p.Liked == nil {
			return nil, fmt.Errorf("%w: liked is required", ErrInvalidMessage)
		}
		return ReactionRequest{Room: room, SequenceKey: p.CreationKey, MessageID: p.MessageID, Liked: *p.Liked}, nil

	case EventMessageDelivered, EventMessageRead:
		room, err := p.room(KindDirect)
		if err != nil {
			return nil, err
		}
		key, err := p.creationKey()
		if err != nil {
			return nil, err
		}
		target := StatusDelivered
		if event == EventMessageRead {
			target = StatusRead
		}
		return StatusRequest{Room: room, SequenceKey: key, Target: target, RequesterID: p.RequesterID}, nil

	case EventMarkAsRead, EventMarkGroupMessagesAsRead:
		kind := KindDirect
		if event == EventMarkGroupMessagesAsRead {
			kind = KindGroup
		}
		room, err := p.room(kind)
		if err != nil {
			return nil, err
		}
		return ReadRequest{Room: room, ReaderID: p.ReaderID}, nil
	}
	return nil, fmt.Errorf("%w: unknown event %q", ErrInvalidMessage, event)
}

func kindOf(event string) ConversationKind {
	switch event {
	case EventJoinGroup, EventLeaveGroup, EventSendGroupMessage, EventLikeGroupMessage:
		return KindGroup
	}
	return KindDirect
}

// ValidateNew checks the fields a message needs before it may be recorded.
func ValidateNew(m *Message) error {
	switch {
	case m.ConversationID == "":
		return fmt.Errorf("%w: conversationId is required", ErrInvalidMessage)
	case !m.ConversationKind.Valid():
		return fmt.Errorf("%w: unknown conversation kind %q", ErrInvalidMessage, m.ConversationKind)
	case m.SequenceKey == "":
		return fmt.Errorf("%w: creationKey is required", ErrInvalidMessage)
	case m.MessageID == "":
		return fmt.Errorf("%w: messageId is required", ErrInvalidMessage)
	case m.SenderID == "":
		return fmt.Errorf("%w: senderId is required", ErrInvalidMessage)
	case m.Content == "" && m.MediaRef == "":
		return fmt.Errorf("%w: content or mediaRef is required", ErrInvalidMessage)
	}
	return nil
}
