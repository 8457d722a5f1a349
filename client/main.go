package main

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/mahaj/chat-relay/pkg/model"
	"github.com/spf13/cobra"
)

type LoginResponse struct {
	Token string `json:"token"`
}

type options struct {
	addr   string
	api    string
	user   string
	dm     string
	group  string
	convID string
}

func login(apiAddr, userID string) (string, error) {
	reqBody, _ := json.Marshal(map[string]string{"user_id": userID})
	resp, err := http.Post(apiAddr+"/login", "application/json", bytes.NewBuffer(reqBody))
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("login failed: %s", string(body))
	}

	var loginResp LoginResponse
	if err := json.NewDecoder(resp.Body).Decode(&loginResp); err != nil {
		return "", err
	}

	return loginResp.Token, nil
}

// session serializes writes to the socket; gorilla allows one writer at a time.
type session struct {
	mu   sync.Mutex
	conn *websocket.Conn
	opts *options
}

func (s *session) emit(event string, data map[string]any) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn.WriteJSON(model.Frame{Event: event, Data: raw})
}

func (s *session) room() map[string]any {
	if s.opts.group != "" {
		return map[string]any{"groupId": s.opts.group}
	}
	return map[string]any{"conversationId": s.opts.convID}
}

func (s *session) with(extra map[string]any) map[string]any {
	out := s.room()
	for k, v := range extra {
		out[k] = v
	}
	return out
}

func (s *session) render(raw []byte) {
	var f model.Frame
	if err := json.Unmarshal(raw, &f); err != nil {
		log.Printf("Received raw: %s", raw)
		return
	}

	switch f.Event {
	case model.EventNewMessage, model.EventNewGroupMessage:
		var msg model.Message
		if err := json.Unmarshal(f.Data, &msg); err != nil {
			return
		}
		body := msg.Content
		if body == "" {
			body = "[media] " + msg.MediaRef
		}
		fmt.Printf("\r[%s] %s: %s\n> ", msg.SequenceKey, msg.SenderID, body)
		// We are online and looking at the room, so it is delivered.
		if msg.ConversationKind == model.KindDirect && msg.AddressedTo(s.opts.user) {
			if err := s.emit(model.EventMessageDelivered, s.with(map[string]any{"creationKey": msg.SequenceKey})); err != nil {
				log.Println("write:", err)
			}
		}
	case model.EventMessageStatusUpdate:
		var u model.StatusUpdate
		if err := json.Unmarshal(f.Data, &u); err == nil {
			keys := u.SequenceKeys
			if len(keys) == 0 {
				keys = []string{u.SequenceKey}
			}
			fmt.Printf("\r%s: %s\n> ", strings.Join(keys, ", "), u.Status)
		}
	case model.EventMessageLiked, model.EventGroupMessageLiked:
		var u model.LikeUpdate
		if err := json.Unmarshal(f.Data, &u); err == nil {
			fmt.Printf("\r[%s] liked=%t\n> ", u.SequenceKey, u.Liked)
		}
	case model.EventMessagesRead, model.EventGroupMessagesRead:
		var r model.ReadReceipt
		if err := json.Unmarshal(f.Data, &r); err == nil {
			fmt.Printf("\r%s read the conversation\n> ", r.ReaderID)
		}
	case model.EventError:
		var e model.ErrorNotice
		if err := json.Unmarshal(f.Data, &e); err == nil {
			fmt.Printf("\rerror (%s): %s %s\n> ", e.Event, e.Code, e.Message)
		}
	default:
		fmt.Printf("\r%s: %s\n> ", f.Event, f.Data)
	}
}

// command turns one input line into an event. It reports false for /quit.
func (s *session) command(text string) (bool, error) {
	fields := strings.Fields(text)
	group := s.opts.group != ""
	switch {
	case text == "/quit":
		return false, nil
	case fields[0] == "/read" && len(fields) == 2 && !group:
		return true, s.emit(model.EventMessageRead, s.with(map[string]any{"creationKey": fields[1]}))
	case (fields[0] == "/like" || fields[0] == "/unlike") && len(fields) == 2:
		event := model.EventLikeMessage
		if group {
			event = model.EventLikeGroupMessage
		}
		return true, s.emit(event, s.with(map[string]any{"creationKey": fields[1], "liked": fields[0] == "/like"}))
	case fields[0] == "/markread":
		event := model.EventMarkAsRead
		if group {
			event = model.EventMarkGroupMessagesAsRead
		}
		return true, s.emit(event, s.room())
	case fields[0] == "/image" && len(fields) == 2:
		return true, s.send(map[string]any{"mediaRef": fields[1]})
	case strings.HasPrefix(text, "/"):
		fmt.Println("commands: /read <key> /like <key> /unlike <key> /markread /image <ref> /quit")
		return true, nil
	}
	return true, s.send(map[string]any{"content": text})
}

func (s *session) send(body map[string]any) error {
	body["creationKey"] = time.Now().UTC().Format(time.RFC3339Nano)
	body["messageId"] = uuid.NewString()
	event := model.EventSendGroupMessage
	if s.opts.group == "" {
		event = model.EventSendMessage
		body["receiverId"] = s.opts.dm
	}
	return s.emit(event, s.with(body))
}

func run(opts *options) error {
	if opts.dm == "" && opts.group == "" {
		return fmt.Errorf("one of --dm or --group is required")
	}
	if opts.dm != "" {
		// Sort user IDs to ensure consistent conversation ID
		u1, u2 := opts.user, opts.dm
		if u1 > u2 {
			u1, u2 = u2, u1
		}
		opts.convID = fmt.Sprintf("dm:%s:%s", u1, u2)
	}

	// 1. Login to get token
	log.Printf("Logging in as %s...", opts.user)
	token, err := login(opts.api, opts.user)
	if err != nil {
		return fmt.Errorf("login: %w", err)
	}

	// 2. Connect to WebSocket with token
	u := url.URL{Scheme: "ws", Host: opts.addr, Path: "/ws"}
	log.Printf("connecting to %s", u.String())

	header := http.Header{}
	header.Add("Authorization", "Bearer "+token)
	c, _, err := websocket.DefaultDialer.Dial(u.String(), header)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	defer c.Close()

	s := &session{conn: c, opts: opts}
	join := model.EventJoin
	if opts.group != "" {
		join = model.EventJoinGroup
	}
	if err := s.emit(join, s.room()); err != nil {
		return fmt.Errorf("join: %w", err)
	}

	done := make(chan struct{})

	// 3. Start goroutine to read frames
	go func() {
		defer close(done)
		for {
			_, message, err := c.ReadMessage()
			if err != nil {
				log.Println("read:", err)
				return
			}
			s.render(message)
		}
	}()

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt)
	quit := make(chan struct{})

	// 4. Read from stdin and send events
	go func() {
		defer close(quit)
		scanner := bufio.NewScanner(os.Stdin)
		fmt.Print("> ")
		for scanner.Scan() {
			text := strings.TrimSpace(scanner.Text())
			if text == "" {
				fmt.Print("> ")
				continue
			}
			more, err := s.command(text)
			if err != nil {
				log.Println("write:", err)
				return
			}
			if !more {
				return
			}
			fmt.Print("> ")
		}
	}()

	select {
	case <-done:
		return nil
	case <-interrupt:
		log.Println("interrupt")
	case <-quit:
	}

	// Cleanly close the connection by sending a close message and then
	// waiting (with timeout) for the server to close the connection.
	s.mu.Lock()
	err = c.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	s.mu.Unlock()
	if err != nil {
		return fmt.Errorf("write close: %w", err)
	}
	select {
	case <-done:
	case <-time.After(time.Second):
	}
	return nil
}

func main() {
	opts := &options{}
	cmd := &cobra.Command{
		Use:   "client",
		Short: "Interactive chat client for the relay gateway",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(opts)
		},
		SilenceUsage: true,
	}
	cmd.Flags().StringVar(&opts.addr, "addr", "localhost:8080", "gateway service address")
	cmd.Flags().StringVar(&opts.api, "api", "http://localhost:8081", "api service address")
	cmd.Flags().StringVar(&opts.user, "user", "user1", "user id")
	cmd.Flags().StringVar(&opts.dm, "dm", "", "user id to dm")
	cmd.Flags().StringVar(&opts.group, "group", "", "group id to join")

	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
