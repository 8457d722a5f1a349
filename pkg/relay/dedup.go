package relay

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/mahaj/chat-relay/pkg/model"
	"github.com/mahaj/chat-relay/pkg/store"
)

type Outcome int

const (
	Inserted Outcome = iota + 1
	DuplicateSkipped
)

func (o Outcome) String() string {
	switch o {
	case Inserted:
		return "inserted"
	case DuplicateSkipped:
		return "duplicate"
	}
	return "unknown"
}

// Guard records each logical send at most once.
type Guard struct {
	store store.Store
	now   func() time.Time
}

func NewGuard(s store.Store) *Guard {
	return &Guard{store: s, now: time.Now}
}

// TryRecord validates m, stamps it as a fresh Sent message and inserts it
// with a single conditional write on (conversation, sequence key). A lost
// race is reported as DuplicateSkipped, the same as a retry. The returned
// message is the stored form on Inserted.
func (g *Guard) TryRecord(ctx context.Context, m model.Message) (*model.Message, Outcome, error) {
	if err := model.ValidateNew(&m); err != nil {
		return nil, 0, err
	}
	m.Status = model.StatusSent
	m.Liked = false
	m.CreatedAt = model.CreationTime(m.SequenceKey, g.now())

	// A retry that regenerated its creation key still carries the same
	// message id. This lookup is best effort; the key insert below is the
	// atomic guarantee.
	existing, err := g.store.FindByMessageID(ctx, m.ConversationKind, m.ConversationID, m.MessageID)
	switch {
	case err == nil:
		log.Printf("Duplicate message %s in %s (stored at %s)", m.MessageID, m.Room(), existing.SequenceKey)
		return nil, DuplicateSkipped, nil
	case !errors.Is(err, store.ErrNotFound):
		return nil, 0, fmt.Errorf("dedup lookup: %w", err)
	}

	applied, err := g.store.PutIfAbsent(ctx, &m)
	if err != nil {
		return nil, 0, fmt.Errorf("record message: %w", err)
	}
	if !applied {
		log.Printf("Duplicate message %s in %s at key %s", m.MessageID, m.Room(), m.SequenceKey)
		return nil, DuplicateSkipped, nil
	}
	return &m, Inserted, nil
}
