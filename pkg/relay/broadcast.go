package relay

import (
	"context"
	"fmt"
	"log"

	"github.com/mahaj/chat-relay/pkg/model"
)

// Broadcaster sends an event to every connection joined to a room, wherever
// that connection is served.
type Broadcaster interface {
	Broadcast(ctx context.Context, room model.Room, ev model.Event) error
}

// Deliverer writes an encoded frame to one local connection. It returns false
// when the connection is gone or cannot keep up.
type Deliverer interface {
	Deliver(connID string, payload []byte) bool
}

// LocalBroadcaster fans out to the connections of this process.
type LocalBroadcaster struct {
	registry  *Registry
	deliverer Deliverer
}

func NewLocalBroadcaster(registry *Registry, deliverer Deliverer) *LocalBroadcaster {
	return &LocalBroadcaster{registry: registry, deliverer: deliverer}
}

func (b *LocalBroadcaster) Broadcast(_ context.Context, room model.Room, ev model.Event) error {
	payload, err := ev.Encode()
	if err != nil {
		return fmt.Errorf("encode %s: %w", ev.Name, err)
	}
	b.DeliverRaw(room, payload)
	return nil
}

// DeliverRaw writes an already encoded frame to the room's local members and
// returns how many accepted it. Members that disconnected since the lookup
// are skipped silently.
func (b *LocalBroadcaster) DeliverRaw(room model.Room, payload []byte) int {
	n := 0
	for _, connID := range b.registry.MembersOf(room) {
		if b.deliverer.Deliver(connID, payload) {
			n++
		} else {
			log.Printf("Dropped frame for %s in %s", connID, room)
		}
	}
	return n
}
