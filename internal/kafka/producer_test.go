package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"ms-event-tickets/internal/config"
	"ms-event-tickets/internal/models"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingWriter struct {
	messages []kafka.Message
	err      error
}

func (w *recordingWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.messages = append(w.messages, msgs...)
	return nil
}

func (w *recordingWriter) Close() error { return nil }

func testTopics() config.TopicConfig {
	return config.TopicConfig{
		TicketIssued:    "issued",
		TicketValidated: "validated",
		TicketCancelled: "cancelled",
	}
}

func TestPublishTicketEvents(t *testing.T) {
	writer := &recordingWriter{}
	p := &Producer{Writer: writer, Topics: testTopics()}
	ctx := context.Background()

	ticket := models.Ticket{ID: "t-1", EventID: "e-1", Status: models.TicketStatusAvailable, Price: 25}

	require.NoError(t, p.PublishTicketIssued(ctx, ticket))
	ticket.Status = models.TicketStatusValidated
	require.NoError(t, p.PublishTicketValidated(ctx, ticket))
	ticket.Status = models.TicketStatusCancelled
	require.NoError(t, p.PublishTicketCancelled(ctx, ticket))

	require.Len(t, writer.messages, 3)
	assert.Equal(t, "issued", writer.messages[0].Topic)
	assert.Equal(t, "validated", writer.messages[1].Topic)
	assert.Equal(t, "cancelled", writer.messages[2].Topic)

	for _, msg := range writer.messages {
		assert.Equal(t, []byte("t-1"), msg.Key)
	}

	var payload models.TicketEvent
	require.NoError(t, json.Unmarshal(writer.messages[0].Value, &payload))
	assert.Equal(t, "t-1", payload.TicketID)
	assert.Equal(t, "e-1", payload.EventID)
	assert.Equal(t, models.TicketStatusAvailable, payload.Status)
	assert.Equal(t, 25.0, payload.Price)
	assert.False(t, payload.OccurredAt.IsZero())
}

func TestPublishWrapsWriterError(t *testing.T) {
	writer := &recordingWriter{err: errors.New("broker down")}
	p := &Producer{Writer: writer, Topics: testTopics()}

	err := p.PublishTicketIssued(context.Background(), models.Ticket{ID: "t-1"})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "issued")
	assert.Contains(t, err.Error(), "broker down")
}
