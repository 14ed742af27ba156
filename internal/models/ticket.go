package models

import (
	"math"
	"time"

	"github.com/uptrace/bun"
)

type TicketStatus string

const (
	TicketStatusAvailable TicketStatus = "available"
	TicketStatusValidated TicketStatus = "validated"
	TicketStatusCancelled TicketStatus = "cancelled"
)

// CanTransitionTo reports whether a ticket in status s may move to next.
// Only available tickets move; validated and cancelled are terminal.
func (s TicketStatus) CanTransitionTo(next TicketStatus) bool {
	switch s {
	case TicketStatusAvailable:
		return next == TicketStatusValidated || next == TicketStatusCancelled
	case TicketStatusValidated, TicketStatusCancelled:
		return false
	default:
		return false
	}
}

// CountsAgainstCapacity reports whether a ticket in this status occupies a
// place in its event's capacity.
func (s TicketStatus) CountsAgainstCapacity() bool {
	return s != TicketStatusCancelled
}

// MaxPrice is the largest price the NUMERIC(12, 2) price column holds.
const MaxPrice = 9999999999.99

// ValidPrice reports whether p can be stored exactly: non-negative, within
// MaxPrice, with at most two decimal places.
func ValidPrice(p float64) bool {
	if p < 0 || p > MaxPrice {
		return false
	}
	return math.Round(p*100)/100 == p
}

type Ticket struct {
	bun.BaseModel `bun:"table:tickets"`

	ID             string       `bun:"id,pk" json:"id"`
	EventID        string       `bun:"event_id,notnull" json:"event_id"`
	Code           string       `bun:"code,notnull,unique" json:"code"`
	OwnerName      *string      `bun:"owner_name" json:"owner_name,omitempty"`
	Price          float64      `bun:"price,notnull" json:"price"`
	Status         TicketStatus `bun:"status,notnull" json:"status"`
	PurchaseDate   time.Time    `bun:"purchase_date,notnull" json:"purchase_date"`
	ValidationDate *time.Time   `bun:"validation_date" json:"validation_date"`

	Event *Event `bun:"rel:belongs-to,join:event_id=id" json:"event,omitempty"`
}

type IssueTicketRequest struct {
	EventID   string   `json:"event_id" validate:"required,uuid"`
	OwnerName *string  `json:"owner_name,omitempty" validate:"omitempty,max=200"`
	Price     *float64 `json:"price,omitempty" validate:"omitempty,price"`
}

type ValidateTicketRequest struct {
	Code        string `json:"code,omitempty" validate:"required_without=EncryptedQR"`
	EncryptedQR string `json:"encrypted_qr,omitempty" validate:"required_without=Code"`
}

// TicketEvent is the payload published to Kafka on ticket lifecycle changes.
type TicketEvent struct {
	TicketID   string       `json:"ticket_id"`
	EventID    string       `json:"event_id"`
	Status     TicketStatus `json:"status"`
	Price      float64      `json:"price"`
	OccurredAt time.Time    `json:"occurred_at"`
}

func NewTicketEvent(ticket Ticket, at time.Time) TicketEvent {
	return TicketEvent{
		TicketID:   ticket.ID,
		EventID:    ticket.EventID,
		Status:     ticket.Status,
		Price:      ticket.Price,
		OccurredAt: at,
	}
}
