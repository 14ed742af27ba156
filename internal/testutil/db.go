package testutil

import (
	"context"
	"testing"
	"time"

	"ms-event-tickets/internal/database"
	"ms-event-tickets/internal/models"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// NewSQLiteDB returns a fresh in-memory database with the schema applied.
// Each call gets its own database.
func NewSQLiteDB(t *testing.T) *bun.DB {
	t.Helper()

	sqldb, err := database.OpenSQLite(":memory:")
	if err != nil {
		t.Fatalf("Failed to connect to in-memory database: %v", err)
	}

	bunDB := database.NewBun(sqldb, database.DriverSQLite)
	t.Cleanup(func() { bunDB.Close() })

	if err := database.CreateSchema(context.Background(), bunDB); err != nil {
		t.Fatalf("Failed to create schema: %v", err)
	}
	return bunDB
}

// SeedEvent inserts an event with the given capacity and sold count.
func SeedEvent(t *testing.T, db bun.IDB, capacity, sold int) *models.Event {
	t.Helper()

	event := &models.Event{
		ID:            uuid.NewString(),
		Name:          "Test Event",
		Location:      "Test Location",
		Description:   "Test Description",
		Date:          time.Now().Add(7 * 24 * time.Hour).UTC(),
		TotalCapacity: capacity,
		SoldCount:     sold,
		CreatedAt:     time.Now().UTC(),
	}
	if _, err := db.NewInsert().Model(event).Exec(context.Background()); err != nil {
		t.Fatalf("Failed to seed event: %v", err)
	}
	return event
}

// ReloadEvent reads the event's current row.
func ReloadEvent(t *testing.T, db bun.IDB, id string) *models.Event {
	t.Helper()

	var event models.Event
	if err := db.NewSelect().Model(&event).Where("id = ?", id).Scan(context.Background()); err != nil {
		t.Fatalf("Failed to reload event %s: %v", id, err)
	}
	return &event
}

// CountActiveTickets counts the event's tickets that still hold a place.
func CountActiveTickets(t *testing.T, db bun.IDB, eventID string) int {
	t.Helper()

	count, err := db.NewSelect().
		Model((*models.Ticket)(nil)).
		Where("event_id = ?", eventID).
		Where("status != ?", models.TicketStatusCancelled).
		Count(context.Background())
	if err != nil {
		t.Fatalf("Failed to count tickets for event %s: %v", eventID, err)
	}
	return count
}
