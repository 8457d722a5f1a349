package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/mahaj/chat-relay/pkg/auth"
	"github.com/mahaj/chat-relay/pkg/index"
	"github.com/mahaj/chat-relay/pkg/model"
	"github.com/mahaj/chat-relay/pkg/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePresence map[model.Room][]string

func (p fakePresence) Members(_ context.Context, room model.Room) ([]string, error) {
	if room.ID == "broken" {
		return nil, errors.New("redis down")
	}
	return p[room], nil
}

type fakeIndex struct {
	rows  map[string][]index.Conversation
	reset []string
}

func (f *fakeIndex) List(_ context.Context, userID string) ([]index.Conversation, error) {
	return f.rows[userID], nil
}

func (f *fakeIndex) ResetUnread(_ context.Context, userID, conversationID string) error {
	f.reset = append(f.reset, userID+"/"+conversationID)
	return nil
}

func newTestServer(t *testing.T) (*server, *fakeIndex) {
	t.Helper()
	messages := store.NewMemory()
	for _, key := range []string{"T1", "T0"} {
		_, err := messages.PutIfAbsent(context.Background(), &model.Message{
			ConversationID: "m1", ConversationKind: model.KindDirect, SequenceKey: key,
			MessageID: "x" + key, SenderID: "A", ReceiverID: "B", Content: "hi", Status: model.StatusSent,
		})
		require.NoError(t, err)
	}
	idx := &fakeIndex{rows: map[string][]index.Conversation{
		"B": {{UserID: "B", OtherUserID: "A", ConversationID: "m1", LastUpdated: time.Unix(100, 0).UTC(), UnreadCount: 2}},
	}}
	return &server{
		authn:    auth.New("secret"),
		messages: messages,
		presence: fakePresence{model.GroupRoom("g1"): {"A", "C"}},
		index:    idx,
	}, idx
}

func login(t *testing.T, h http.Handler, user string) string {
	t.Helper()
	body, _ := json.Marshal(LoginRequest{UserID: user})
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/login", bytes.NewReader(body)))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp LoginResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	return resp.Token
}

func get(h http.Handler, token, path string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHistory(t *testing.T) {
	s, _ := newTestServer(t)
	h := s.routes()
	token := login(t, h, "B")

	rec := get(h, token, "/history?conversation_id=m1")
	require.Equal(t, http.StatusOK, rec.Code)
	var messages []model.Message
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&messages))
	require.Len(t, messages, 2)
	assert.Equal(t, "T0", messages[0].SequenceKey)
	assert.Equal(t, "T1", messages[1].SequenceKey)

	rec = get(h, token, "/history?conversation_id=g9&kind=group")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())

	assert.Equal(t, http.StatusBadRequest, get(h, token, "/history").Code)
	assert.Equal(t, http.StatusBadRequest, get(h, token, "/history?conversation_id=m1&kind=channel").Code)
	assert.Equal(t, http.StatusUnauthorized, get(h, "", "/history?conversation_id=m1").Code)
	assert.Equal(t, http.StatusUnauthorized, get(h, "junk", "/history?conversation_id=m1").Code)
}

func TestLoginRequiresUser(t *testing.T) {
	s, _ := newTestServer(t)
	rec := httptest.NewRecorder()
	s.routes().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/login", bytes.NewBufferString(`{}`)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPresence(t *testing.T) {
	s, _ := newTestServer(t)
	h := s.routes()
	token := login(t, h, "A")

	rec := get(h, token, "/channels/group:g1/users")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `["A","C"]`, rec.Body.String())

	rec = get(h, token, "/channels/direct:empty/users")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())

	assert.Equal(t, http.StatusBadRequest, get(h, token, "/channels/g1/users").Code)
	assert.Equal(t, http.StatusBadRequest, get(h, token, "/channels/group:g1/members").Code)
	assert.Equal(t, http.StatusInternalServerError, get(h, token, "/channels/group:broken/users").Code)
}

func TestConversationsAndRead(t *testing.T) {
	s, idx := newTestServer(t)
	h := s.routes()
	token := login(t, h, "B")

	rec := get(h, token, "/conversations")
	require.Equal(t, http.StatusOK, rec.Code)
	var convs []index.Conversation
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&convs))
	require.Len(t, convs, 1)
	assert.Equal(t, int64(2), convs[0].UnreadCount)

	req := httptest.NewRequest(http.MethodPost, "/conversations/read", bytes.NewBufferString(`{"conversation_id":"m1"}`))
	req.Header.Set("Authorization", "Bearer "+token)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"B/m1"}, idx.reset)

	assert.Equal(t, http.StatusMethodNotAllowed, get(h, token, "/conversations/read").Code)
}
