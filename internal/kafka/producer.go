package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"ms-event-tickets/internal/config"
	"ms-event-tickets/internal/logger"
	"ms-event-tickets/internal/models"

	"github.com/segmentio/kafka-go"
)

// MessageWriter is the part of *kafka.Writer the producer uses.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type Producer struct {
	Writer MessageWriter
	Topics config.TopicConfig
	Logger *logger.Logger
}

func NewProducer(brokers []string, topics config.TopicConfig, log *logger.Logger) *Producer {
	writer := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireOne,
		AllowAutoTopicCreation: true,
		BatchTimeout:           10 * time.Millisecond,
	}
	return &Producer{Writer: writer, Topics: topics, Logger: log}
}

// Publish writes one message. Messages for the same key land on the same
// partition, so events for one ticket stay ordered.
func (p *Producer) Publish(ctx context.Context, topic, key string, value []byte) error {
	err := p.Writer.WriteMessages(ctx, kafka.Message{
		Topic: topic,
		Key:   []byte(key),
		Value: value,
	})
	if err != nil {
		return fmt.Errorf("publish to %s: %w", topic, err)
	}
	if p.Logger != nil {
		p.Logger.LogKafka("PUBLISH", topic, key)
	}
	return nil
}

func (p *Producer) PublishTicketIssued(ctx context.Context, ticket models.Ticket) error {
	return p.publishTicket(ctx, p.Topics.TicketIssued, ticket)
}

func (p *Producer) PublishTicketValidated(ctx context.Context, ticket models.Ticket) error {
	return p.publishTicket(ctx, p.Topics.TicketValidated, ticket)
}

func (p *Producer) PublishTicketCancelled(ctx context.Context, ticket models.Ticket) error {
	return p.publishTicket(ctx, p.Topics.TicketCancelled, ticket)
}

func (p *Producer) publishTicket(ctx context.Context, topic string, ticket models.Ticket) error {
	msgBytes, err := json.Marshal(models.NewTicketEvent(ticket, time.Now().UTC()))
	if err != nil {
		return err
	}
	return p.Publish(ctx, topic, ticket.ID, msgBytes)
}

func (p *Producer) Close() error {
	return p.Writer.Close()
}
