package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"ms-event-tickets/internal/models"

	"github.com/uptrace/bun"
)

type DB struct {
	Bun *bun.DB
}

// GetEvent loads an event without locking it. Callers must not use the
// returned SoldCount to decide a write; CommitIssuance re-checks it.
func (d *DB) GetEvent(ctx context.Context, id string) (*models.Event, error) {
	return getEvent(ctx, d.Bun, id)
}

func getEvent(ctx context.Context, idb bun.IDB, id string) (*models.Event, error) {
	var event models.Event
	err := idb.NewSelect().
		Model(&event).
		Where("id = ?", id).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, models.ErrEventNotFound
		}
		return nil, fmt.Errorf("get event: %w", err)
	}
	return &event, nil
}

// CommitIssuance takes one unit of capacity from the ticket's event and
// inserts the ticket in a single transaction. The capacity check and the
// increment are one conditional UPDATE, so two concurrent callers can never
// both observe the last free place.
func (d *DB) CommitIssuance(ctx context.Context, ticket *models.Ticket) error {
	return d.Bun.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		res, err := tx.NewUpdate().
			Model((*models.Event)(nil)).
			Set("sold_count = sold_count + 1").
			Where("id = ?", ticket.EventID).
			Where("sold_count < total_capacity").
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("increment sold count: %w", err)
		}

		affected, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("increment sold count: %w", err)
		}
		if affected == 0 {
			// Either the event vanished or someone took the last place.
			if _, err := getEvent(ctx, tx, ticket.EventID); err != nil {
				return err
			}
			return models.ErrCapacityExhausted
		}

		if _, err := tx.NewInsert().Model(ticket).Exec(ctx); err != nil {
			return fmt.Errorf("insert ticket: %w", err)
		}
		return nil
	})
}

// ListTicketsWithEvent returns every ticket joined with its event in one query.
func (d *DB) ListTicketsWithEvent(ctx context.Context) ([]models.Ticket, error) {
	tickets := make([]models.Ticket, 0)
	err := d.Bun.NewSelect().
		Model(&tickets).
		Relation("Event").
		Order("ticket.purchase_date", "ticket.id").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("list tickets: %w", err)
	}
	return tickets, nil
}

func (d *DB) GetTicketByID(ctx context.Context, id string) (*models.Ticket, error) {
	return getTicket(ctx, d.Bun, "ticket.id = ?", id)
}

func getTicket(ctx context.Context, idb bun.IDB, where string, arg string) (*models.Ticket, error) {
	var ticket models.Ticket
	err := idb.NewSelect().
		Model(&ticket).
		Relation("Event").
		Where(where, arg).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, models.ErrTicketNotFound
		}
		return nil, fmt.Errorf("get ticket: %w", err)
	}
	return &ticket, nil
}

// ValidateByCode moves an available ticket to validated and stamps the
// validation date.
func (d *DB) ValidateByCode(ctx context.Context, code string, at time.Time) (*models.Ticket, error) {
	var validated *models.Ticket
	err := d.Bun.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		ticket, err := getTicket(ctx, tx, "ticket.code = ?", code)
		if err != nil {
			return err
		}
		if err := moveTicket(ctx, tx, ticket, models.TicketStatusValidated, &at); err != nil {
			return err
		}
		validated, err = getTicket(ctx, tx, "ticket.id = ?", ticket.ID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return validated, nil
}

// CancelTicket moves an available ticket to cancelled and hands its place
// back to the event in the same transaction.
func (d *DB) CancelTicket(ctx context.Context, id string) (*models.Ticket, error) {
	var cancelled *models.Ticket
	err := d.Bun.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		ticket, err := getTicket(ctx, tx, "ticket.id = ?", id)
		if err != nil {
			return err
		}
		if err := moveTicket(ctx, tx, ticket, models.TicketStatusCancelled, nil); err != nil {
			return err
		}
		cancelled, err = getTicket(ctx, tx, "ticket.id = ?", id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return cancelled, nil
}

// moveTicket applies one step of the ticket state machine inside tx. The
// update only matches the status that was read, so a concurrent change to
// the same ticket turns it into ErrInvalidTransition. A step that stops the
// ticket counting against capacity releases its place.
func moveTicket(ctx context.Context, tx bun.Tx, ticket *models.Ticket, next models.TicketStatus, validatedAt *time.Time) error {
	if !ticket.Status.CanTransitionTo(next) {
		return fmt.Errorf("ticket %s is %s: %w", ticket.ID, ticket.Status, models.ErrInvalidTransition)
	}

	q := tx.NewUpdate().
		Model((*models.Ticket)(nil)).
		Set("status = ?", next).
		Where("id = ?", ticket.ID).
		Where("status = ?", ticket.Status)
	if validatedAt != nil {
		q = q.Set("validation_date = ?", *validatedAt)
	}

	res, err := q.Exec(ctx)
	if err != nil {
		return fmt.Errorf("move ticket to %s: %w", next, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("move ticket to %s: %w", next, err)
	}
	if affected == 0 {
		return fmt.Errorf("ticket %s changed concurrently: %w", ticket.ID, models.ErrInvalidTransition)
	}

	if ticket.Status.CountsAgainstCapacity() && !next.CountsAgainstCapacity() {
		_, err = tx.NewUpdate().
			Model((*models.Event)(nil)).
			Set("sold_count = sold_count - 1").
			Where("id = ?", ticket.EventID).
			Where("sold_count > 0").
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("release capacity: %w", err)
		}
	}
	return nil
}
