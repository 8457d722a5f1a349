package store

import (
	"context"
	"sort"
	"sync"

	"github.com/mahaj/chat-relay/pkg/model"
)

type partition struct {
	kind model.ConversationKind
	id   string
}

// Memory is a process-local Store. It backs single-node development and tests.
type Memory struct {
	mu   sync.Mutex
	rows map[partition]map[string]*model.Message
}

func NewMemory() *Memory {
	return &Memory{rows: make(map[partition]map[string]*model.Message)}
}

func (s *Memory) Get(_ context.Context, key Key) (*model.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.rows[partition{key.Kind, key.ConversationID}][key.SequenceKey]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *m
	return &cp, nil
}

func (s *Memory) PutIfAbsent(_ context.Context, m *model.Message) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p := partition{m.ConversationKind, m.ConversationID}
	rows := s.rows[p]
	if rows == nil {
		rows = make(map[string]*model.Message)
		s.rows[p] = rows
	}
	if _, exists := rows[m.SequenceKey]; exists {
		return false, nil
	}
	cp := *m
	rows[m.SequenceKey] = &cp
	return true, nil
}

func (s *Memory) UpdateStatus(_ context.Context, key Key, from, to model.Status) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.rows[partition{key.Kind, key.ConversationID}][key.SequenceKey]
	if !ok {
		return false, ErrNotFound
	}
	if m.Status != from {
		return false, nil
	}
	m.Status = to
	return true, nil
}

func (s *Memory) SetLiked(_ context.Context, key Key, liked bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.rows[partition{key.Kind, key.ConversationID}][key.SequenceKey]
	if !ok {
		return ErrNotFound
	}
	m.Liked = liked
	return nil
}

func (s *Memory) Query(_ context.Context, kind model.ConversationKind, conversationID string, pred Predicate) ([]*model.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []*model.Message
	for _, m := range s.rows[partition{kind, conversationID}] {
		if pred != nil && !pred(m) {
			continue
		}
		cp := *m
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SequenceKey < out[j].SequenceKey })
	return out, nil
}

func (s *Memory) FindByMessageID(ctx context.Context, kind model.ConversationKind, conversationID, messageID string) (*model.Message, error) {
	rows, err := s.Query(ctx, kind, conversationID, WithMessageID(messageID))
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, ErrNotFound
	}
	return rows[0], nil
}
