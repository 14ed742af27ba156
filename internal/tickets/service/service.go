package tickets

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"ms-event-tickets/internal/logger"
	"ms-event-tickets/internal/models"

	"github.com/google/uuid"
)

// TicketDBLayer is the storage the issuance protocol relies on. CommitIssuance
// must take one unit of capacity and insert the ticket atomically, returning
// models.ErrCapacityExhausted when no capacity is left at commit time.
type TicketDBLayer interface {
	GetEvent(ctx context.Context, id string) (*models.Event, error)
	CommitIssuance(ctx context.Context, ticket *models.Ticket) error
	ListTicketsWithEvent(ctx context.Context) ([]models.Ticket, error)
	GetTicketByID(ctx context.Context, id string) (*models.Ticket, error)
	ValidateByCode(ctx context.Context, code string, at time.Time) (*models.Ticket, error)
	CancelTicket(ctx context.Context, id string) (*models.Ticket, error)
	GetTotalTicketsCount(ctx context.Context) (int, error)
}

// IdempotencyStore remembers which ticket an idempotency key produced.
// Reserve returns reserved=true when the caller owns the key; otherwise
// ticketID is the ticket already issued for it, or empty while the first
// request is still running.
type IdempotencyStore interface {
	Reserve(ctx context.Context, key string) (ticketID string, reserved bool, err error)
	Complete(ctx context.Context, key, ticketID string) error
	Release(ctx context.Context, key string) error
}

type EventPublisher interface {
	PublishTicketIssued(ctx context.Context, ticket models.Ticket) error
	PublishTicketValidated(ctx context.Context, ticket models.Ticket) error
	PublishTicketCancelled(ctx context.Context, ticket models.Ticket) error
}

// Publishers sends every lifecycle event to each publisher in turn and
// reports all failures together.
type Publishers []EventPublisher

func (ps Publishers) PublishTicketIssued(ctx context.Context, ticket models.Ticket) error {
	return ps.each(func(p EventPublisher) error { return p.PublishTicketIssued(ctx, ticket) })
}

func (ps Publishers) PublishTicketValidated(ctx context.Context, ticket models.Ticket) error {
	return ps.each(func(p EventPublisher) error { return p.PublishTicketValidated(ctx, ticket) })
}

func (ps Publishers) PublishTicketCancelled(ctx context.Context, ticket models.Ticket) error {
	return ps.each(func(p EventPublisher) error { return p.PublishTicketCancelled(ctx, ticket) })
}

func (ps Publishers) each(send func(EventPublisher) error) error {
	var errs []error
	for _, p := range ps {
		if err := send(p); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

type TicketService struct {
	DB          TicketDBLayer
	Idempotency IdempotencyStore
	Publisher   EventPublisher
	Logger      *logger.Logger

	now     func() time.Time
	newID   func() string
	newCode func() string
}

type Option func(*TicketService)

func WithIdempotencyStore(store IdempotencyStore) Option {
	return func(s *TicketService) { s.Idempotency = store }
}

func WithPublisher(p EventPublisher) Option {
	return func(s *TicketService) { s.Publisher = p }
}

func WithLogger(l *logger.Logger) Option {
	return func(s *TicketService) {
		if l != nil {
			s.Logger = l
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *TicketService) { s.now = now }
}

// WithIDGenerators overrides how ticket ids and allocation codes are made.
func WithIDGenerators(newID, newCode func() string) Option {
	return func(s *TicketService) {
		if newID != nil {
			s.newID = newID
		}
		if newCode != nil {
			s.newCode = newCode
		}
	}
}

func NewTicketService(db TicketDBLayer, opts ...Option) *TicketService {
	s := &TicketService{
		DB:      db,
		Logger:  logger.NewWithWriter(io.Discard),
		now:     func() time.Time { return time.Now().UTC() },
		newID:   uuid.NewString,
		newCode: newAllocationCode,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// newAllocationCode returns a random (v4) uuid. The database enforces
// uniqueness, so a collision fails the commit instead of duplicating a code.
func newAllocationCode() string {
	return uuid.New().String()
}

type IssueRequest struct {
	EventID        string
	OwnerName      *string
	Price          *float64
	IdempotencyKey string
}

// Issue allocates one ticket against the event's remaining capacity.
func (s *TicketService) Issue(ctx context.Context, req IssueRequest) (*models.Ticket, error) {
	price := 0.0
	if req.Price != nil {
		price = *req.Price
	}
	if !models.ValidPrice(price) {
		return nil, fmt.Errorf("%w: %v", models.ErrInvalidPrice, price)
	}

	if req.IdempotencyKey != "" && s.Idempotency != nil {
		existingID, reserved, err := s.Idempotency.Reserve(ctx, req.IdempotencyKey)
		if err != nil {
			return nil, fmt.Errorf("%w: reserve idempotency key: %w", models.ErrIssuanceFailed, err)
		}
		if !reserved {
			if existingID == "" {
				return nil, models.ErrIssuanceInProgress
			}
			existing, err := s.FindByID(ctx, existingID)
			if err != nil {
				return nil, err
			}
			if existing.EventID != req.EventID {
				return nil, fmt.Errorf("key %s issued ticket %s for event %s: %w",
					req.IdempotencyKey, existing.ID, existing.EventID, models.ErrIdempotencyKeyReused)
			}
			s.Logger.LogTicket("REPLAY", existingID, fmt.Sprintf("idempotency key %s already issued", req.IdempotencyKey))
			return existing, nil
		}
	}

	ticket, err := s.issue(ctx, req.EventID, req.OwnerName, price)

	if req.IdempotencyKey != "" && s.Idempotency != nil {
		// The outcome is settled; bookkeeping must not be cut short by the caller.
		bg := context.WithoutCancel(ctx)
		if err != nil {
			if relErr := s.Idempotency.Release(bg, req.IdempotencyKey); relErr != nil {
				s.Logger.Warn("IDEMPOTENCY", fmt.Sprintf("Failed to release key %s: %v", req.IdempotencyKey, relErr))
			}
		} else if compErr := s.Idempotency.Complete(bg, req.IdempotencyKey, ticket.ID); compErr != nil {
			s.Logger.Warn("IDEMPOTENCY", fmt.Sprintf("Failed to record key %s: %v", req.IdempotencyKey, compErr))
		}
	}
	if err != nil {
		return nil, err
	}

	s.publish(ctx, "ISSUED", ticket.ID, func(ctx context.Context, p EventPublisher) error {
		return p.PublishTicketIssued(ctx, *ticket)
	})
	return ticket, nil
}

func (s *TicketService) issue(ctx context.Context, eventID string, ownerName *string, price float64) (*models.Ticket, error) {
	event, err := s.DB.GetEvent(ctx, eventID)
	if err != nil {
		if errors.Is(err, models.ErrEventNotFound) {
			return nil, fmt.Errorf("event %s: %w", eventID, models.ErrEventNotFound)
		}
		return nil, fmt.Errorf("%w: load event %s: %w", models.ErrIssuanceFailed, eventID, err)
	}

	if event.IsSoldOut() {
		s.Logger.LogTicket("REJECTED", eventID, fmt.Sprintf("sold out (%d/%d)", event.SoldCount, event.TotalCapacity))
		return nil, fmt.Errorf("event %s: %w", eventID, models.ErrCapacityExhausted)
	}

	ticket := &models.Ticket{
		ID:           s.newID(),
		EventID:      event.ID,
		Code:         s.newCode(),
		OwnerName:    ownerName,
		Price:        price,
		Status:       models.TicketStatusAvailable,
		PurchaseDate: s.now(),
	}

	if err := s.DB.CommitIssuance(ctx, ticket); err != nil {
		switch {
		case errors.Is(err, models.ErrCapacityExhausted):
			s.Logger.LogTicket("REJECTED", eventID, "capacity taken by a concurrent issuance")
			return nil, fmt.Errorf("event %s: %w", eventID, models.ErrCapacityExhausted)
		case errors.Is(err, models.ErrEventNotFound):
			return nil, fmt.Errorf("event %s: %w", eventID, models.ErrEventNotFound)
		default:
			s.Logger.Error("TICKET", fmt.Sprintf("Issuance commit failed for event %s: %v", eventID, err))
			return nil, fmt.Errorf("%w: %w", models.ErrIssuanceFailed, err)
		}
	}
	s.Logger.LogTicket("ISSUED", ticket.ID, fmt.Sprintf("event %s", eventID))

	persisted, err := s.DB.GetTicketByID(ctx, ticket.ID)
	if err != nil {
		s.Logger.Warn("TICKET", fmt.Sprintf("Issued ticket %s but could not reload it: %v", ticket.ID, err))
		return ticket, nil
	}
	return persisted, nil
}

// ListAll returns every ticket with its event resolved.
func (s *TicketService) ListAll(ctx context.Context) ([]models.Ticket, error) {
	tickets, err := s.DB.ListTicketsWithEvent(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list tickets: %w", err)
	}
	return tickets, nil
}

func (s *TicketService) FindByID(ctx context.Context, ticketID string) (*models.Ticket, error) {
	ticket, err := s.DB.GetTicketByID(ctx, ticketID)
	if err != nil {
		if errors.Is(err, models.ErrTicketNotFound) {
			return nil, fmt.Errorf("ticket %s: %w", ticketID, models.ErrTicketNotFound)
		}
		return nil, fmt.Errorf("failed to get ticket %s: %w", ticketID, err)
	}
	return ticket, nil
}

// Validate checks a ticket in by its allocation code.
func (s *TicketService) Validate(ctx context.Context, code string) (*models.Ticket, error) {
	ticket, err := s.DB.ValidateByCode(ctx, code, s.now())
	if err != nil {
		if errors.Is(err, models.ErrTicketNotFound) {
			return nil, fmt.Errorf("ticket code: %w", models.ErrTicketNotFound)
		}
		return nil, fmt.Errorf("failed to validate ticket: %w", err)
	}
	s.Logger.LogTicket("VALIDATED", ticket.ID, "checked in")
	s.publish(ctx, "VALIDATED", ticket.ID, func(ctx context.Context, p EventPublisher) error {
		return p.PublishTicketValidated(ctx, *ticket)
	})
	return ticket, nil
}

// Cancel cancels an available ticket and returns its place to the event.
func (s *TicketService) Cancel(ctx context.Context, ticketID string) (*models.Ticket, error) {
	ticket, err := s.DB.CancelTicket(ctx, ticketID)
	if err != nil {
		if errors.Is(err, models.ErrTicketNotFound) {
			return nil, fmt.Errorf("ticket %s: %w", ticketID, models.ErrTicketNotFound)
		}
		return nil, fmt.Errorf("failed to cancel ticket: %w", err)
	}
	s.Logger.LogTicket("CANCELLED", ticket.ID, "capacity returned")
	s.publish(ctx, "CANCELLED", ticket.ID, func(ctx context.Context, p EventPublisher) error {
		return p.PublishTicketCancelled(ctx, *ticket)
	})
	return ticket, nil
}

// publish sends a lifecycle event after the change has committed. Failures
// are logged only: the ticket state is already durable.
func (s *TicketService) publish(ctx context.Context, action, ticketID string, send func(context.Context, EventPublisher) error) {
	if s.Publisher == nil {
		return
	}
	if err := send(context.WithoutCancel(ctx), s.Publisher); err != nil {
		s.Logger.Error("KAFKA", fmt.Sprintf("Failed to publish %s event for ticket %s: %v", action, ticketID, err))
	}
}

// GetTotalTicketsCount returns the total count of tickets
func (s *TicketService) GetTotalTicketsCount(ctx context.Context) (int, error) {
	return s.DB.GetTotalTicketsCount(ctx)
}
