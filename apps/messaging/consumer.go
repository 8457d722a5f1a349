package main

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/mahaj/chat-relay/pkg/fanout"
	"github.com/mahaj/chat-relay/pkg/model"
)

type ConversationIndex interface {
	Touch(ctx context.Context, userID, otherUserID, conversationID string, at time.Time) error
	IncrementUnread(ctx context.Context, userID, conversationID string) error
	ResetUnread(ctx context.Context, userID, conversationID string) error
}

// Consumer turns relay broadcasts into conversation index updates.
type Consumer struct {
	sub   *fanout.Subscriber
	index ConversationIndex
}

func NewConsumer(brokers []string, topic string, groupID string, idx ConversationIndex) *Consumer {
	return &Consumer{
		sub:   fanout.NewSubscriber(brokers, topic, groupID, false),
		index: idx,
	}
}

func (c *Consumer) Consume(ctx context.Context) error {
	return c.sub.Run(ctx, func(room model.Room, payload []byte) {
		c.apply(ctx, room, payload)
	})
}

func (c *Consumer) apply(ctx context.Context, room model.Room, payload []byte) {
	// Group conversations are not indexed per user.
	if room.Kind != model.KindDirect {
		return
	}

	var f model.Frame
	if err := json.Unmarshal(payload, &f); err != nil {
		log.Printf("Failed to unmarshal frame for %s: %v", room, err)
		return
	}

	switch f.Event {
	case model.EventNewMessage:
		var msg model.Message
		if err := json.Unmarshal(f.Data, &msg); err != nil {
			log.Printf("Failed to unmarshal message for %s: %v", room, err)
			return
		}
		if msg.ReceiverID == "" {
			log.Printf("Skipping index update for %s: message %s has no receiver", room, msg.MessageID)
			return
		}

		sender, recipient := msg.SenderID, msg.ReceiverID
		if err := c.index.Touch(ctx, sender, recipient, room.ID, msg.CreatedAt); err != nil {
			log.Printf("Failed to update conversation: %v", err)
		}
		if err := c.index.Touch(ctx, recipient, sender, room.ID, msg.CreatedAt); err != nil {
			log.Printf("Failed to update conversation: %v", err)
		}
		if err := c.index.IncrementUnread(ctx, recipient, room.ID); err != nil {
			log.Printf("Failed to increment unread count: %v", err)
		}

	case model.EventMessagesRead:
		var receipt model.ReadReceipt
		if err := json.Unmarshal(f.Data, &receipt); err != nil {
			log.Printf("Failed to unmarshal read receipt for %s: %v", room, err)
			return
		}
		if err := c.index.ResetUnread(ctx, receipt.ReaderID, room.ID); err != nil {
			log.Printf("Failed to reset unread count: %v", err)
		}
	}
}

func (c *Consumer) Close() error {
	return c.sub.Close()
}
