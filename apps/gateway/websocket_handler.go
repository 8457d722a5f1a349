package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/mahaj/chat-relay/pkg/auth"
	"github.com/mahaj/chat-relay/pkg/model"
	"github.com/mahaj/chat-relay/pkg/relay"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	maxMessageSize = 64 * 1024

	// Time allowed for the relay to handle one inbound event.
	handleTimeout = 10 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins for now
	},
}

// Client is a middleman between the websocket connection and the relay.
type Client struct {
	hub    *Hub
	engine *relay.Engine

	// The websocket connection.
	conn *websocket.Conn

	// Buffered channel of outbound frames.
	send chan []byte

	mu     sync.Mutex
	closed bool

	// Connection ID, unique per socket.
	ID string

	// Authenticated user behind the socket.
	UserID string
}

func (c *Client) enqueue(payload []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.send <- payload:
		return true
	default:
		log.Printf("Client %s is not keeping up; closing", c.ID)
		c.closed = true
		close(c.send)
		return false
	}
}

func (c *Client) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

// readPump pumps events from the websocket connection to the relay. Events of
// one connection are handled in the order received.
func (c *Client) readPump() {
	defer func() {
		c.engine.OnDisconnect(context.Background(), c.ID)
		c.hub.unregister(c)
		c.conn.Close()
	}()
	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error { c.conn.SetReadDeadline(time.Now().Add(pongWait)); return nil })
	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("error: %v", err)
			}
			break
		}

		ctx, cancel := context.WithTimeout(context.Background(), handleTimeout)
		event, err := c.handle(ctx, message)
		cancel()
		if err != nil {
			c.reject(event, err)
		}
	}
}

// identity resolves a user id claimed in a payload against the
// authenticated one. An empty claim means the connection's user.
func (c *Client) identity(claimed string) (string, error) {
	if claimed == "" || claimed == c.UserID {
		return c.UserID, nil
	}
	return "", fmt.Errorf("%w: connection belongs to %s, not %s", relay.ErrNotAuthorized, c.UserID, claimed)
}

func (c *Client) handle(ctx context.Context, raw []byte) (string, error) {
	event, req, err := model.DecodeInbound(raw)
	if err != nil {
		return event, err
	}

	switch req := req.(type) {
	case model.JoinRequest:
		participant, err := c.identity(req.ParticipantID)
		if err != nil {
			return event, err
		}
		_, err = c.engine.OnJoin(ctx, c.ID, req.Room, participant)
		return event, err

	case model.LeaveRequest:
		c.engine.OnLeave(ctx, c.ID, req.Room)
		return event, nil

	case model.SendRequest:
		msg := req.Message
		if msg.SenderID, err = c.identity(msg.SenderID); err != nil {
			return event, err
		}
		_, err = c.engine.OnSend(ctx, msg)
		return event, err

	case model.ReactionRequest:
		return event, c.engine.OnReaction(ctx, req.Room, req.SequenceKey, req.MessageID, req.Liked)

	case model.StatusRequest:
		requester, err := c.identity(req.RequesterID)
		if err != nil {
			return event, err
		}
		return event, c.engine.OnStatusRequest(ctx, req.Room, req.SequenceKey, req.Target, requester)

	case model.ReadRequest:
		reader, err := c.identity(req.ReaderID)
		if err != nil {
			return event, err
		}
		return event, c.engine.OnMarkRead(ctx, req.Room, reader)
	}
	return event, fmt.Errorf("%w: unhandled event %q", relay.ErrInvalidMessage, event)
}

// reject reports a failed event to this connection only.
func (c *Client) reject(event string, err error) {
	if !errors.Is(err, relay.ErrInvalidTransition) {
		log.Printf("Event %q from %s failed: %v", event, c.ID, err)
	}
	frame, encErr := model.Event{Name: model.EventError, Data: model.ErrorNotice{
		Event:   event,
		Code:    relay.Code(err),
		Message: err.Error(),
	}}.Encode()
	if encErr != nil {
		log.Printf("Failed to encode error frame: %v", encErr)
		return
	}
	c.enqueue(frame)
}

// writePump pumps frames from the hub to the websocket connection.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()
	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// The hub closed the channel.
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			// One frame per websocket message; clients decode each as JSON.
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// serveWs handles websocket requests from the peer.
func serveWs(hub *Hub, engine *relay.Engine, authn *auth.Authenticator, w http.ResponseWriter, r *http.Request) {
	// Extract User ID from Auth Token
	tokenString := r.Header.Get("Authorization")
	if tokenString == "" {
		// Try query param as fallback (standard for some WS clients)
		tokenString = r.URL.Query().Get("token")
	}

	if tokenString == "" {
		log.Println("Unauthorized: No token provided")
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	claims, err := authn.ValidateToken(auth.BearerToken(tokenString))
	if err != nil {
		log.Printf("Unauthorized: Invalid token: %v", err)
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Println(err)
		return
	}

	client := &Client{
		hub:    hub,
		engine: engine,
		conn:   conn,
		send:   make(chan []byte, 256),
		ID:     hub.nextID(),
		UserID: claims.UserID,
	}
	engine.Registry().Connect(client.ID, client.UserID)
	hub.register(client)

	// Allow collection of memory referenced by the caller by doing all work in
	// new goroutines.
	go client.writePump()
	go client.readPump()
}
