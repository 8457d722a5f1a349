package relay

import (
	"context"
	"sync"
	"testing"

	"github.com/mahaj/chat-relay/pkg/model"
	"github.com/mahaj/chat-relay/pkg/store"
	"github.com/stretchr/testify/require"
)

// recorder is a Broadcaster that keeps every event per room.
type recorder struct {
	mu     sync.Mutex
	events map[model.Room][]model.Event
}

func newRecorder() *recorder {
	return &recorder{events: make(map[model.Room][]model.Event)}
}

func (r *recorder) Broadcast(_ context.Context, room model.Room, ev model.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events[room] = append(r.events[room], ev)
	return nil
}

func (r *recorder) of(room model.Room) []model.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]model.Event(nil), r.events[room]...)
}

func (r *recorder) named(room model.Room, name string) []model.Event {
	var out []model.Event
	for _, ev := range r.of(room) {
		if ev.Name == name {
			out = append(out, ev)
		}
	}
	return out
}

// inbox is a Deliverer collecting frames per connection.
type inbox struct {
	mu     sync.Mutex
	frames map[string][][]byte
	closed map[string]bool
}

func newInbox() *inbox {
	return &inbox{frames: make(map[string][][]byte), closed: make(map[string]bool)}
}

func (b *inbox) Deliver(connID string, payload []byte) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed[connID] {
		return false
	}
	b.frames[connID] = append(b.frames[connID], payload)
	return true
}

func (b *inbox) count(connID string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.frames[connID])
}

// faultyStore fails UpdateStatus for chosen keys and optionally every call.
type faultyStore struct {
	store.Store
	failUpdate map[string]bool
	down       bool
}

func (s *faultyStore) UpdateStatus(ctx context.Context, key store.Key, from, to model.Status) (bool, error) {
	if s.down || s.failUpdate[key.SequenceKey] {
		return false, store.ErrUnavailable
	}
	return s.Store.UpdateStatus(ctx, key, from, to)
}

func (s *faultyStore) PutIfAbsent(ctx context.Context, m *model.Message) (bool, error) {
	if s.down {
		return false, store.ErrUnavailable
	}
	return s.Store.PutIfAbsent(ctx, m)
}

func (s *faultyStore) FindByMessageID(ctx context.Context, kind model.ConversationKind, conv, id string) (*model.Message, error) {
	if s.down {
		return nil, store.ErrUnavailable
	}
	return s.Store.FindByMessageID(ctx, kind, conv, id)
}

func directMessage(conv, key, id, sender, receiver string) model.Message {
	return model.Message{
		ConversationID:   conv,
		ConversationKind: model.KindDirect,
		SequenceKey:      key,
		MessageID:        id,
		SenderID:         sender,
		ReceiverID:       receiver,
		Content:          "hi",
	}
}

// seed inserts a message directly at the given status.
func seed(t *testing.T, s store.Store, m model.Message, status model.Status) {
	t.Helper()
	m.Status = status
	ok, err := s.PutIfAbsent(context.Background(), &m)
	require.NoError(t, err)
	require.True(t, ok)
}

func statusOf(t *testing.T, s store.Store, room model.Room, key string) model.Status {
	t.Helper()
	m, err := s.Get(context.Background(), store.Key{Kind: room.Kind, ConversationID: room.ID, SequenceKey: key})
	require.NoError(t, err)
	return m.Status
}
