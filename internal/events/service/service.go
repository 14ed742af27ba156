package events

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"ms-event-tickets/internal/models"

	"github.com/google/uuid"
)

type EventDBLayer interface {
	CreateEvent(ctx context.Context, event *models.Event) error
	GetEvent(ctx context.Context, id string) (*models.Event, error)
	ListEvents(ctx context.Context) ([]models.Event, error)
}

// EventService manages event records. It never changes SoldCount; that
// belongs to ticket issuance.
type EventService struct {
	DB  EventDBLayer
	now func() time.Time
}

func NewEventService(db EventDBLayer) *EventService {
	return &EventService{
		DB:  db,
		now: func() time.Time { return time.Now().UTC() },
	}
}

func (s *EventService) CreateEvent(ctx context.Context, req models.CreateEventRequest) (*models.Event, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, fmt.Errorf("%w: name is required", models.ErrInvalidEvent)
	}
	if req.TotalCapacity < 0 {
		return nil, fmt.Errorf("%w: total_capacity must be non-negative", models.ErrInvalidEvent)
	}
	if req.Date.IsZero() {
		return nil, fmt.Errorf("%w: date is required", models.ErrInvalidEvent)
	}

	event := &models.Event{
		ID:            uuid.NewString(),
		Name:          name,
		Location:      req.Location,
		Description:   req.Description,
		Date:          req.Date.UTC(),
		TotalCapacity: req.TotalCapacity,
		SoldCount:     0,
		CreatedAt:     s.now(),
	}
	if err := s.DB.CreateEvent(ctx, event); err != nil {
		return nil, fmt.Errorf("failed to create event: %w", err)
	}
	return event, nil
}

func (s *EventService) GetEvent(ctx context.Context, id string) (*models.Event, error) {
	event, err := s.DB.GetEvent(ctx, id)
	if err != nil {
		if errors.Is(err, models.ErrEventNotFound) {
			return nil, fmt.Errorf("event %s: %w", id, models.ErrEventNotFound)
		}
		return nil, fmt.Errorf("failed to get event %s: %w", id, err)
	}
	return event, nil
}

func (s *EventService) ListEvents(ctx context.Context) ([]models.Event, error) {
	events, err := s.DB.ListEvents(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list events: %w", err)
	}
	return events, nil
}
