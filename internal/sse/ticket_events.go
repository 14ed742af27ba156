package sse

import (
	"context"
	"sync"
	"time"

	"ms-event-tickets/internal/models"
)

const clientBuffer = 10

// TicketEventEmitter fans ticket lifecycle changes out to the clients
// watching each event.
type TicketEventEmitter struct {
	mu      sync.RWMutex
	clients map[string][]chan models.TicketEvent
}

func NewTicketEventEmitter() *TicketEventEmitter {
	return &TicketEventEmitter{
		clients: make(map[string][]chan models.TicketEvent),
	}
}

// SubscribeToEvent returns a channel of ticket changes for eventID. The
// channel is closed once ctx is done.
func (e *TicketEventEmitter) SubscribeToEvent(ctx context.Context, eventID string) <-chan models.TicketEvent {
	clientChan := make(chan models.TicketEvent, clientBuffer)

	e.mu.Lock()
	e.clients[eventID] = append(e.clients[eventID], clientChan)
	e.mu.Unlock()

	go func() {
		<-ctx.Done()
		e.removeClient(eventID, clientChan)
	}()
	return clientChan
}

// Emit broadcasts to every subscriber of the ticket's event. Slow clients
// whose buffer is full miss the message.
func (e *TicketEventEmitter) Emit(evt models.TicketEvent) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	for _, clientChan := range e.clients[evt.EventID] {
		select {
		case clientChan <- evt:
		default:
		}
	}
}

func (e *TicketEventEmitter) PublishTicketIssued(_ context.Context, ticket models.Ticket) error {
	e.Emit(models.NewTicketEvent(ticket, time.Now().UTC()))
	return nil
}

func (e *TicketEventEmitter) PublishTicketValidated(_ context.Context, ticket models.Ticket) error {
	e.Emit(models.NewTicketEvent(ticket, time.Now().UTC()))
	return nil
}

func (e *TicketEventEmitter) PublishTicketCancelled(_ context.Context, ticket models.Ticket) error {
	e.Emit(models.NewTicketEvent(ticket, time.Now().UTC()))
	return nil
}

func (e *TicketEventEmitter) removeClient(eventID string, clientChan chan models.TicketEvent) {
	e.mu.Lock()
	defer e.mu.Unlock()

	clients := e.clients[eventID]
	for i, ch := range clients {
		if ch == clientChan {
			e.clients[eventID] = append(clients[:i], clients[i+1:]...)
			close(clientChan)
			break
		}
	}
	if len(e.clients[eventID]) == 0 {
		delete(e.clients, eventID)
	}
}

// ClientCount returns the number of clients currently watching eventID.
func (e *TicketEventEmitter) ClientCount(eventID string) int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.clients[eventID])
}
