package relay

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/mahaj/chat-relay/pkg/model"
	"github.com/mahaj/chat-relay/pkg/store"
)

// Presence mirrors room membership by user into a shared view.
type Presence interface {
	Add(ctx context.Context, room model.Room, userID string) error
	Remove(ctx context.Context, room model.Room, userID string) error
}

type Option func(*Engine)

func WithPresence(p Presence) Option {
	return func(e *Engine) { e.presence = p }
}

func WithSweepConcurrency(n int) Option {
	return func(e *Engine) { e.sweepConcurrency = n }
}

// Engine handles inbound client events. Each call is independent: a failure
// is returned to the caller only and never broadcast to the room.
type Engine struct {
	store       store.Store
	guard       *Guard
	machine     *StateMachine
	registry    *Registry
	broadcaster Broadcaster
	presence    Presence

	sweepConcurrency int
}

func NewEngine(s store.Store, registry *Registry, broadcaster Broadcaster, opts ...Option) *Engine {
	e := &Engine{
		store:       s,
		guard:       NewGuard(s),
		registry:    registry,
		broadcaster: broadcaster,
	}
	for _, opt := range opts {
		opt(e)
	}
	e.machine = NewStateMachine(s, e.sweepConcurrency)
	return e
}

func (e *Engine) Registry() *Registry { return e.registry }

func (e *Engine) broadcast(ctx context.Context, room model.Room, ev model.Event) {
	if err := e.broadcaster.Broadcast(ctx, room, ev); err != nil {
		log.Printf("Failed to broadcast %s to %s: %v", ev.Name, room, err)
	}
}

// OnSend records m and announces it to the room, sender included. A duplicate
// is a silent success.
func (e *Engine) OnSend(ctx context.Context, m model.Message) (Outcome, error) {
	stored, outcome, err := e.guard.TryRecord(ctx, m)
	if err != nil {
		if !errors.Is(err, ErrInvalidMessage) {
			log.Printf("Failed to record message %s in %s: %v", m.MessageID, m.Room(), err)
		}
		return 0, err
	}
	if outcome == Inserted {
		log.Printf("Message %s recorded in %s at %s", stored.MessageID, stored.Room(), stored.SequenceKey)
		e.broadcast(ctx, stored.Room(), model.NewMessageEvent(stored))
	}
	return outcome, nil
}

// OnStatusRequest advances one message and announces the new status.
func (e *Engine) OnStatusRequest(ctx context.Context, room model.Room, sequenceKey string, target model.Status, requesterID string) error {
	if room.ID == "" || sequenceKey == "" {
		return fmt.Errorf("%w: conversation and creation key are required", ErrInvalidMessage)
	}
	key := store.Key{Kind: room.Kind, ConversationID: room.ID, SequenceKey: sequenceKey}
	m, err := e.machine.Advance(ctx, key, target, requesterID)
	if err != nil {
		log.Printf("Status request %s -> %s in %s by %s rejected: %v", sequenceKey, target, room, requesterID, err)
		return err
	}
	e.broadcast(ctx, room, model.StatusUpdateEvent(model.StatusUpdate{
		ConversationID: room.ID,
		SequenceKey:    m.SequenceKey,
		SequenceKeys:   []string{m.SequenceKey},
		Status:         m.Status,
	}))
	return nil
}

// OnReaction sets the liked flag, last write wins. The message may be named by
// sequence key or by client message id.
func (e *Engine) OnReaction(ctx context.Context, room model.Room, sequenceKey, messageID string, liked bool) error {
	if room.ID == "" || (sequenceKey == "" && messageID == "") {
		return fmt.Errorf("%w: conversation and creation key or message id are required", ErrInvalidMessage)
	}
	if sequenceKey == "" {
		m, err := e.store.FindByMessageID(ctx, room.Kind, room.ID, messageID)
		if err != nil {
			return err
		}
		sequenceKey = m.SequenceKey
	}

	key := store.Key{Kind: room.Kind, ConversationID: room.ID, SequenceKey: sequenceKey}
	if err := e.store.SetLiked(ctx, key, liked); err != nil {
		log.Printf("Failed to set liked on %s in %s: %v", sequenceKey, room, err)
		return err
	}
	e.broadcast(ctx, room, model.LikeEvent(room.Kind, model.LikeUpdate{
		ConversationID: room.ID,
		SequenceKey:    sequenceKey,
		MessageID:      messageID,
		Liked:          liked,
	}))
	return nil
}

// OnJoin subscribes connID to room. When the joining participant is known,
// messages waiting for them are swept from Sent to Delivered and the room is
// told once with every advanced key. It returns the number advanced.
func (e *Engine) OnJoin(ctx context.Context, connID string, room model.Room, participantID string) (int, error) {
	if room.ID == "" {
		return 0, fmt.Errorf("%w: conversation is required", ErrInvalidMessage)
	}
	if e.registry.Join(connID, room) {
		log.Printf("Connection %s joined %s", connID, room)
	}

	if user := e.registry.UserOf(connID); user != "" && e.presence != nil {
		if err := e.presence.Add(ctx, room, user); err != nil {
			log.Printf("Failed to set presence for %s in %s: %v", user, room, err)
		}
	}

	if participantID == "" {
		return 0, nil
	}
	return e.Sweep(ctx, room, participantID)
}

// Sweep marks everything in room addressed to recipientID as delivered.
func (e *Engine) Sweep(ctx context.Context, room model.Room, recipientID string) (int, error) {
	advanced, err := e.machine.AdvanceAllMatching(ctx, room, recipientID, model.StatusSent, model.StatusDelivered)
	if err != nil {
		log.Printf("Delivery sweep for %s in %s failed: %v", recipientID, room, err)
		return 0, err
	}
	if len(advanced) > 0 {
		e.broadcast(ctx, room, model.StatusUpdateEvent(model.StatusUpdate{
			ConversationID: room.ID,
			SequenceKeys:   advanced,
			Status:         model.StatusDelivered,
		}))
	}
	return len(advanced), nil
}

func (e *Engine) OnLeave(ctx context.Context, connID string, room model.Room) {
	if !e.registry.Leave(connID, room) {
		return
	}
	log.Printf("Connection %s left %s", connID, room)
	e.dropPresence(ctx, e.registry.UserOf(connID), room)
}

// OnDisconnect removes every membership of connID at once. In-flight
// operations of the connection still complete; their broadcasts simply no
// longer reach it.
func (e *Engine) OnDisconnect(ctx context.Context, connID string) {
	user, rooms := e.registry.Disconnect(connID)
	for _, room := range rooms {
		e.dropPresence(ctx, user, room)
	}
	log.Printf("Connection %s disconnected from %d rooms", connID, len(rooms))
}

func (e *Engine) dropPresence(ctx context.Context, user string, room model.Room) {
	if e.presence == nil || user == "" || e.registry.UserIn(room, user) {
		return
	}
	if err := e.presence.Remove(ctx, room, user); err != nil {
		log.Printf("Failed to delete presence for %s in %s: %v", user, room, err)
	}
}

// OnMarkRead relays a read receipt. Nothing is persisted per message.
func (e *Engine) OnMarkRead(ctx context.Context, room model.Room, readerID string) error {
	if room.ID == "" || readerID == "" {
		return fmt.Errorf("%w: conversation and reader are required", ErrInvalidMessage)
	}
	e.broadcast(ctx, room, model.ReadReceiptEvent(room.Kind, model.ReadReceipt{
		ConversationID: room.ID,
		ReaderID:       readerID,
	}))
	return nil
}
