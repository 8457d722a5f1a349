package main

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/mahaj/chat-relay/pkg/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingIndex struct {
	calls []string
}

func (r *recordingIndex) Touch(_ context.Context, userID, otherUserID, conversationID string, _ time.Time) error {
	r.calls = append(r.calls, fmt.Sprintf("touch %s %s %s", userID, otherUserID, conversationID))
	return nil
}

func (r *recordingIndex) IncrementUnread(_ context.Context, userID, conversationID string) error {
	r.calls = append(r.calls, fmt.Sprintf("incr %s %s", userID, conversationID))
	return nil
}

func (r *recordingIndex) ResetUnread(_ context.Context, userID, conversationID string) error {
	r.calls = append(r.calls, fmt.Sprintf("reset %s %s", userID, conversationID))
	return nil
}

func frame(t *testing.T, ev model.Event) []byte {
	t.Helper()
	b, err := ev.Encode()
	require.NoError(t, err)
	return b
}

func TestConsumerApply(t *testing.T) {
	idx := &recordingIndex{}
	c := &Consumer{index: idx}
	ctx := context.Background()
	room := model.DirectRoom("m1")

	msg := &model.Message{ConversationID: "m1", ConversationKind: model.KindDirect, SequenceKey: "T0", MessageID: "x1", SenderID: "A", ReceiverID: "B", Content: "hi"}
	c.apply(ctx, room, frame(t, model.NewMessageEvent(msg)))
	c.apply(ctx, room, frame(t, model.ReadReceiptEvent(model.KindDirect, model.ReadReceipt{ConversationID: "m1", ReaderID: "B"})))

	// Ignored: status updates, group traffic, receiverless messages, garbage.
	c.apply(ctx, room, frame(t, model.StatusUpdateEvent(model.StatusUpdate{ConversationID: "m1", SequenceKey: "T0", Status: model.StatusRead})))
	group := &model.Message{ConversationID: "g1", ConversationKind: model.KindGroup, SenderID: "A", Content: "hi"}
	c.apply(ctx, model.GroupRoom("g1"), frame(t, model.NewMessageEvent(group)))
	legacy := *msg
	legacy.ReceiverID = ""
	c.apply(ctx, room, frame(t, model.NewMessageEvent(&legacy)))
	c.apply(ctx, room, []byte("garbage"))

	assert.Equal(t, []string{
		"touch A B m1",
		"touch B A m1",
		"incr B m1",
		"reset B m1",
	}, idx.calls)
}
