// Package fanout carries room broadcasts between gateway instances over a
// Kafka topic. Every gateway reads the whole topic with its own consumer group
// and delivers frames to the room members it serves locally.
package fanout

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/mahaj/chat-relay/pkg/model"
	"github.com/segmentio/kafka-go"
)

// Envelope is the Kafka record value: an encoded outbound frame and the room
// it is addressed to.
type Envelope struct {
	Room    string          `json:"room"`
	Payload json.RawMessage `json:"payload"`
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type messageReader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
	Close() error
}

// Publisher is a relay.Broadcaster backed by Kafka. Records are keyed by room
// so one room's events stay ordered within a partition.
type Publisher struct {
	writer messageWriter
}

func NewPublisher(brokers []string, topic string) *Publisher {
	return &Publisher{writer: &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
	}}
}

func (p *Publisher) Broadcast(ctx context.Context, room model.Room, ev model.Event) error {
	payload, err := ev.Encode()
	if err != nil {
		return fmt.Errorf("encode %s: %w", ev.Name, err)
	}
	value, err := json.Marshal(Envelope{Room: room.String(), Payload: payload})
	if err != nil {
		return fmt.Errorf("encode envelope: %w", err)
	}

	err = p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(room.String()),
		Value: value,
		Time:  time.Now(),
	})
	if err != nil {
		return fmt.Errorf("publish %s to %s: %w", ev.Name, room, err)
	}
	return nil
}

func (p *Publisher) Close() error {
	return p.writer.Close()
}

// Handler receives each decoded record.
type Handler func(room model.Room, payload []byte)

type Subscriber struct {
	reader  messageReader
	backoff time.Duration
}

// NewSubscriber reads topic as groupID. Gateways pass a group unique to the
// instance and start at the newest offset; services that must see every
// record share a stable group.
func NewSubscriber(brokers []string, topic, groupID string, latest bool) *Subscriber {
	start := kafka.FirstOffset
	if latest {
		start = kafka.LastOffset
	}
	return &Subscriber{
		reader: kafka.NewReader(kafka.ReaderConfig{
			Brokers:     brokers,
			Topic:       topic,
			GroupID:     groupID,
			StartOffset: start,
			MinBytes:    1,
			MaxBytes:    10e6, // 10MB
		}),
		backoff: time.Second,
	}
}

// Run consumes until ctx is done. Undecodable records are logged and
// skipped; read errors are retried.
func (s *Subscriber) Run(ctx context.Context, handle Handler) error {
	for {
		m, err := s.reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			log.Printf("Error reading fanout record: %v. Retrying in %s...", err, s.backoff)
			select {
			case <-time.After(s.backoff):
				continue
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		room, payload, err := Decode(m.Value)
		if err != nil {
			log.Printf("Skipping fanout record at offset %d: %v", m.Offset, err)
			continue
		}
		handle(room, payload)
	}
}

func (s *Subscriber) Close() error {
	return s.reader.Close()
}

func Decode(value []byte) (model.Room, []byte, error) {
	var env Envelope
	if err := json.Unmarshal(value, &env); err != nil {
		return model.Room{}, nil, fmt.Errorf("decode envelope: %w", err)
	}
	room, err := model.ParseRoom(env.Room)
	if err != nil {
		return model.Room{}, nil, err
	}
	if len(env.Payload) == 0 {
		return model.Room{}, nil, fmt.Errorf("empty payload for %s", room)
	}
	return room, env.Payload, nil
}
