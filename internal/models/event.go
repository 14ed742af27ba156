package models

import (
	"time"

	"github.com/uptrace/bun"
)

// Event is a ticketed event with a fixed capacity. SoldCount is owned by the
// issuance protocol and is only ever changed through a conditional update.
type Event struct {
	bun.BaseModel `bun:"table:events"`

	ID            string    `bun:"id,pk" json:"id"`
	Name          string    `bun:"name,notnull" json:"name"`
	Location      string    `bun:"location" json:"location"`
	Description   string    `bun:"description" json:"description"`
	Date          time.Time `bun:"date,notnull" json:"date"`
	TotalCapacity int       `bun:"total_capacity,notnull" json:"total_capacity"`
	SoldCount     int       `bun:"sold_count,notnull" json:"sold_count"`
	CreatedAt     time.Time `bun:"created_at,notnull" json:"created_at"`
}

// Remaining returns the number of tickets that can still be issued.
func (e *Event) Remaining() int {
	if e.SoldCount >= e.TotalCapacity {
		return 0
	}
	return e.TotalCapacity - e.SoldCount
}

// IsSoldOut reports whether no capacity remains.
func (e *Event) IsSoldOut() bool {
	return e.Remaining() == 0
}

type CreateEventRequest struct {
	Name          string    `json:"name" validate:"required,max=200"`
	Location      string    `json:"location" validate:"max=200"`
	Description   string    `json:"description"`
	Date          time.Time `json:"date" validate:"required"`
	TotalCapacity int       `json:"total_capacity" validate:"gte=0"`
}
