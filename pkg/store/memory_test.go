package store

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/mahaj/chat-relay/pkg/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func message(conv, key, sender, receiver string, status model.Status) *model.Message {
	return &model.Message{
		ConversationID:   conv,
		ConversationKind: model.KindDirect,
		SequenceKey:      key,
		MessageID:        "id-" + key,
		SenderID:         sender,
		ReceiverID:       receiver,
		Content:          "hello",
		Status:           status,
	}
}

func TestMemoryPutIfAbsent(t *testing.T) {
	ctx := context.Background()
	s := NewMemory()

	ok, err := s.PutIfAbsent(ctx, message("m1", "t1", "A", "B", model.StatusSent))
	require.NoError(t, err)
	assert.True(t, ok)

	dup := message("m1", "t1", "A", "B", model.StatusSent)
	dup.Content = "overwrite"
	ok, err = s.PutIfAbsent(ctx, dup)
	require.NoError(t, err)
	assert.False(t, ok)

	got, err := s.Get(ctx, Key{model.KindDirect, "m1", "t1"})
	require.NoError(t, err)
	assert.Equal(t, "hello", got.Content)

	// Same key in a group partition is a different row.
	grp := message("m1", "t1", "A", "", model.StatusSent)
	grp.ConversationKind = model.KindGroup
	ok, err = s.PutIfAbsent(ctx, grp)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestMemoryPutIfAbsentConcurrent(t *testing.T) {
	ctx := context.Background()
	s := NewMemory()

	var inserted atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := s.PutIfAbsent(ctx, message("m1", "t1", "A", "B", model.StatusSent))
			if err == nil && ok {
				inserted.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), inserted.Load())
	rows, err := s.Query(ctx, model.KindDirect, "m1", nil)
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}

func TestMemoryUpdateStatus(t *testing.T) {
	ctx := context.Background()
	s := NewMemory()
	key := Key{model.KindDirect, "m1", "t1"}

	_, err := s.UpdateStatus(ctx, key, model.StatusSent, model.StatusDelivered)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = s.PutIfAbsent(ctx, message("m1", "t1", "A", "B", model.StatusSent))
	require.NoError(t, err)

	ok, err := s.UpdateStatus(ctx, key, model.StatusSent, model.StatusDelivered)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.UpdateStatus(ctx, key, model.StatusSent, model.StatusDelivered)
	require.NoError(t, err)
	assert.False(t, ok, "guard on stale status must fail")

	got, err := s.Get(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, model.StatusDelivered, got.Status)
}

func TestMemorySetLiked(t *testing.T) {
	ctx := context.Background()
	s := NewMemory()
	key := Key{model.KindDirect, "m1", "t1"}

	assert.ErrorIs(t, s.SetLiked(ctx, key, true), ErrNotFound)

	_, err := s.PutIfAbsent(ctx, message("m1", "t1", "A", "B", model.StatusRead))
	require.NoError(t, err)
	require.NoError(t, s.SetLiked(ctx, key, true))
	require.NoError(t, s.SetLiked(ctx, key, false))

	got, err := s.Get(ctx, key)
	require.NoError(t, err)
	assert.False(t, got.Liked)
	assert.Equal(t, model.StatusRead, got.Status)
}

func TestMemoryQuery(t *testing.T) {
	ctx := context.Background()
	s := NewMemory()
	for _, m := range []*model.Message{
		message("m1", "t3", "B", "U2", model.StatusSent),
		message("m1", "t1", "A", "U2", model.StatusSent),
		message("m1", "t2", "A", "U2", model.StatusDelivered),
		message("m1", "t4", "U2", "A", model.StatusSent),
		message("m2", "t1", "A", "U2", model.StatusSent),
	} {
		_, err := s.PutIfAbsent(ctx, m)
		require.NoError(t, err)
	}

	rows, err := s.Query(ctx, model.KindDirect, "m1", All(AddressedTo("U2"), WithStatus(model.StatusSent)))
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "t1", rows[0].SequenceKey)
	assert.Equal(t, "t3", rows[1].SequenceKey)

	rows, err = s.Query(ctx, model.KindDirect, "m1", WithMessageID("id-t4"))
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "U2", rows[0].SenderID)

	// Returned rows are copies.
	rows[0].Status = model.StatusRead
	got, err := s.Get(ctx, Key{model.KindDirect, "m1", "t4"})
	require.NoError(t, err)
	assert.Equal(t, model.StatusSent, got.Status)
}

func TestMemoryFindByMessageID(t *testing.T) {
	ctx := context.Background()
	s := NewMemory()
	_, err := s.PutIfAbsent(ctx, message("m1", "t1", "A", "B", model.StatusSent))
	require.NoError(t, err)

	got, err := s.FindByMessageID(ctx, model.KindDirect, "m1", "id-t1")
	require.NoError(t, err)
	assert.Equal(t, "t1", got.SequenceKey)

	_, err = s.FindByMessageID(ctx, model.KindDirect, "m1", "missing")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = s.FindByMessageID(ctx, model.KindGroup, "m1", "id-t1")
	assert.ErrorIs(t, err, ErrNotFound)
}
