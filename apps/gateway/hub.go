package main

import (
	"context"
	"log"
	"strconv"
	"sync"

	"github.com/google/uuid"
	"github.com/mahaj/chat-relay/pkg/fanout"
	"github.com/mahaj/chat-relay/pkg/model"
	"github.com/mahaj/chat-relay/pkg/relay"
	"github.com/mahaj/chat-relay/pkg/snowflake"
)

// Hub owns the websocket clients served by this gateway and writes frames to
// them. Room membership lives in the engine's registry.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]*Client // connection id -> client
	ids     *snowflake.Node
}

func NewHub(node *snowflake.Node) *Hub {
	return &Hub{
		clients: make(map[string]*Client),
		ids:     node,
	}
}

func (h *Hub) nextID() string {
	return strconv.FormatInt(h.ids.Generate(), 10)
}

func (h *Hub) register(c *Client) {
	h.mu.Lock()
	h.clients[c.ID] = c
	h.mu.Unlock()
	log.Printf("Client registered: %s (user %s)", c.ID, c.UserID)
}

func (h *Hub) unregister(c *Client) {
	h.mu.Lock()
	if _, ok := h.clients[c.ID]; ok {
		delete(h.clients, c.ID)
		c.close()
	}
	h.mu.Unlock()
	log.Printf("Client unregistered: %s (user %s)", c.ID, c.UserID)
}

// Deliver implements relay.Deliverer. A client whose buffer is full is
// closed and the frame dropped.
func (h *Hub) Deliver(connID string, payload []byte) bool {
	h.mu.RLock()
	c, ok := h.clients[connID]
	h.mu.RUnlock()
	if !ok {
		return false
	}
	return c.enqueue(payload)
}

// consumeFanout delivers records published by every gateway (this one
// included) to local room members. The consumer group is unique to this
// instance so each gateway sees the whole topic.
func consumeFanout(ctx context.Context, brokers []string, topic string, local *relay.LocalBroadcaster) {
	sub := fanout.NewSubscriber(brokers, topic, "gateway-group-"+uuid.NewString(), true)
	defer sub.Close()

	err := sub.Run(ctx, func(room model.Room, payload []byte) {
		local.DeliverRaw(room, payload)
	})
	if err != nil && ctx.Err() == nil {
		log.Printf("Gateway consumer error: %v", err)
	}
}
