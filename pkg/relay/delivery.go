package relay

import (
	"context"
	"fmt"
	"log"
	"sort"
	"sync"

	"github.com/mahaj/chat-relay/pkg/model"
	"github.com/mahaj/chat-relay/pkg/store"
	"golang.org/x/sync/errgroup"
)

const defaultSweepConcurrency = 8

// StateMachine moves messages through Sent -> Delivered -> Read. Every move is
// a conditional update guarded on the predecessor status, so a late
// "delivered" can never overwrite "read".
type StateMachine struct {
	store       store.Store
	concurrency int
}

func NewStateMachine(s store.Store, concurrency int) *StateMachine {
	if concurrency <= 0 {
		concurrency = defaultSweepConcurrency
	}
	return &StateMachine{store: s, concurrency: concurrency}
}

// Advance moves one message to target on behalf of requesterID, who must be
// a recipient of the message.
func (sm *StateMachine) Advance(ctx context.Context, key store.Key, target model.Status, requesterID string) (*model.Message, error) {
	from, ok := target.Prev()
	if !ok {
		return nil, fmt.Errorf("%w: %q has no predecessor", ErrInvalidTransition, target)
	}

	m, err := sm.store.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	if requesterID == "" || requesterID == m.SenderID || !m.AddressedTo(requesterID) {
		return nil, fmt.Errorf("%w: %q cannot mark message %s %s", ErrNotAuthorized, requesterID, key.SequenceKey, target)
	}
	if m.Status != from {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, m.Status, target)
	}

	applied, err := sm.store.UpdateStatus(ctx, key, from, target)
	if err != nil {
		return nil, err
	}
	if !applied {
		// Another writer moved it between the read and the update.
		return nil, fmt.Errorf("%w: %s is no longer %s", ErrInvalidTransition, key.SequenceKey, from)
	}
	m.Status = target
	return m, nil
}

// AdvanceAllMatching moves every message of the conversation addressed to
// recipientID from one status to the next. Messages advance independently;
// ones lost to concurrent writers are skipped. It returns the sequence keys
// actually advanced.
func (sm *StateMachine) AdvanceAllMatching(ctx context.Context, room model.Room, recipientID string, from, to model.Status) ([]string, error) {
	if !model.CanAdvance(from, to) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
	}

	candidates, err := sm.store.Query(ctx, room.Kind, room.ID, store.All(store.AddressedTo(recipientID), store.WithStatus(from)))
	if err != nil {
		return nil, err
	}

	var (
		mu       sync.Mutex
		advanced []string
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(sm.concurrency)
	for _, m := range candidates {
		key := store.KeyOf(m)
		g.Go(func() error {
			applied, err := sm.store.UpdateStatus(gctx, key, from, to)
			if err != nil {
				log.Printf("Sweep %s: failed to advance %s to %s: %v", room, key.SequenceKey, to, err)
				return nil
			}
			if applied {
				mu.Lock()
				advanced = append(advanced, key.SequenceKey)
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()

	sort.Strings(advanced)
	return advanced, nil
}
