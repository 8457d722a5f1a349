package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatusTransitions(t *testing.T) {
	tests := []struct {
		from, to Status
		want     bool
	}{
		{StatusSent, StatusDelivered, true},
		{StatusDelivered, StatusRead, true},
		{StatusSent, StatusRead, false},
		{StatusRead, StatusDelivered, false},
		{StatusDelivered, StatusSent, false},
		{StatusRead, StatusRead, false},
		{Status("bogus"), StatusSent, false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, CanAdvance(tt.from, tt.to), "%s -> %s", tt.from, tt.to)
	}

	_, ok := StatusSent.Prev()
	assert.False(t, ok)
	prev, ok := StatusRead.Prev()
	require.True(t, ok)
	assert.Equal(t, StatusDelivered, prev)
	_, ok = StatusRead.Next()
	assert.False(t, ok)

	_, err := ParseStatus("archived")
	assert.Error(t, err)
}

func TestRoomRoundTrip(t *testing.T) {
	r := GroupRoom("g1")
	assert.Equal(t, "group:g1", r.String())

	parsed, err := ParseRoom(r.String())
	require.NoError(t, err)
	assert.Equal(t, r, parsed)

	for _, bad := range []string{"", "g1", "channel:g1", "direct:"} {
		_, err := ParseRoom(bad)
		assert.Error(t, err, bad)
	}
}

func TestAddressedTo(t *testing.T) {
	direct := Message{SenderID: "A", ReceiverID: "B"}
	assert.True(t, direct.AddressedTo("B"))
	assert.False(t, direct.AddressedTo("A"))
	assert.False(t, direct.AddressedTo("C"))

	group := Message{SenderID: "A"}
	assert.True(t, group.AddressedTo("C"))
	assert.False(t, group.AddressedTo("A"))
}

func TestCreationTime(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2025, 3, 4, 5, 6, 7, 0, time.UTC), CreationTime("2025-03-04T05:06:07Z", now))
	assert.Equal(t, now, CreationTime("T0", now))
}

func TestDecodeInbound(t *testing.T) {
	event, req, err := DecodeInbound([]byte(`{"event":"sendMessage","data":{"conversationId":"m1","creationKey":"T0","messageId":"x1","senderId":"A","content":"hi"}}`))
	require.NoError(t, err)
	assert.Equal(t, EventSendMessage, event)
	send, ok := req.(SendRequest)
	require.True(t, ok)
	assert.Equal(t, "m1", send.Message.ConversationID)
	assert.Equal(t, KindDirect, send.Message.ConversationKind)
	assert.Equal(t, "T0", send.Message.SequenceKey)

	_, req, err = DecodeInbound([]byte(`{"event":"sendGroupMessage","data":{"groupId":"g1","creationKey":"T1","messageId":"x2","senderId":"A","imageUrl":"s3://a.png"}}`))
	require.NoError(t, err)
	send = req.(SendRequest)
	assert.Equal(t, GroupRoom("g1"), send.Message.Room())
	assert.Equal(t, "s3://a.png", send.Message.MediaRef)

	_, req, err = DecodeInbound([]byte(`{"event":"messageRead","data":{"conversationId":"m1","creationKey":"T0","requesterId":"B"}}`))
	require.NoError(t, err)
	assert.Equal(t, StatusRequest{Room: DirectRoom("m1"), SequenceKey: "T0", Target: StatusRead, RequesterID: "B"}, req)

	_, req, err = DecodeInbound([]byte(`{"event":"likeGroupMessage","data":{"groupId":"g1","messageId":"x2","liked":false}}`))
	require.NoError(t, err)
	assert.Equal(t, ReactionRequest{Room: GroupRoom("g1"), MessageID: "x2", Liked: false}, req)
}

func TestDecodeInboundRejectsMalformed(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"not json", `hello`},
		{"unknown event", `{"event":"typing","data":{}}`},
		{"join without room", `{"event":"join","data":{}}`},
		{"joinGroup without group", `{"event":"joinGroup","data":{"participantId":"A"}}`},
		{"send without key", `{"event":"sendMessage","data":{"conversationId":"m1","messageId":"x"}}`},
		{"delivered without key", `{"event":"messageDelivered","data":{"conversationId":"m1"}}`},
		{"like without liked", `{"event":"likeMessage","data":{"conversationId":"m1","creationKey":"T0"}}`},
		{"like without target", `{"event":"likeMessage","data":{"conversationId":"m1","liked":true}}`},
		{"bad data", `{"event":"join","data":"m1"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := DecodeInbound([]byte(tt.raw))
			assert.ErrorIs(t, err, ErrInvalidMessage)
		})
	}
}

func TestValidateNew(t *testing.T) {
	valid := Message{ConversationID: "m1", ConversationKind: KindDirect, SequenceKey: "T0", MessageID: "x1", SenderID: "A", Content: "hi"}
	require.NoError(t, ValidateNew(&valid))

	mediaOnly := valid
	mediaOnly.Content = ""
	mediaOnly.MediaRef = "s3://img"
	require.NoError(t, ValidateNew(&mediaOnly))

	for name, mutate := range map[string]func(*Message){
		"conversation": func(m *Message) { m.ConversationID = "" },
		"kind":         func(m *Message) { m.ConversationKind = "" },
		"key":          func(m *Message) { m.SequenceKey = "" },
		"messageId":    func(m *Message) { m.MessageID = "" },
		"sender":       func(m *Message) { m.SenderID = "" },
		"body":         func(m *Message) { m.Content = "" },
	} {
		m := valid
		mutate(&m)
		assert.ErrorIs(t, ValidateNew(&m), ErrInvalidMessage, name)
	}
}
