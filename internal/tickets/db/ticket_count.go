package db

import (
	"context"
	"fmt"

	"ms-event-tickets/internal/models"
)

// GetTotalTicketsCount returns the number of tickets ever issued, in any status.
func (d *DB) GetTotalTicketsCount(ctx context.Context) (int, error) {
	count, err := d.Bun.NewSelect().
		Model((*models.Ticket)(nil)).
		Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("count tickets: %w", err)
	}
	return count, nil
}

// FindCapacityDrift lists events whose sold_count differs from their count of
// non-cancelled tickets. An empty result means the counters are consistent.
func (d *DB) FindCapacityDrift(ctx context.Context) ([]models.CapacityDrift, error) {
	const activeTickets = "(SELECT COUNT(*) FROM tickets AS t WHERE t.event_id = e.id AND t.status != ?)"

	drift := make([]models.CapacityDrift, 0)
	err := d.Bun.NewSelect().
		TableExpr("events AS e").
		ColumnExpr("e.id AS event_id").
		ColumnExpr("e.sold_count").
		ColumnExpr("e.total_capacity").
		ColumnExpr(activeTickets+" AS active_tickets", models.TicketStatusCancelled).
		Where("e.sold_count != "+activeTickets, models.TicketStatusCancelled).
		OrderExpr("e.id").
		Scan(ctx, &drift)
	if err != nil {
		return nil, fmt.Errorf("find capacity drift: %w", err)
	}
	return drift, nil
}
