package database

import (
	"context"
	"fmt"

	"ms-event-tickets/internal/models"

	"github.com/uptrace/bun"
)

// sqliteSchema mirrors migrations/000001_create_events_tickets.up.sql,
// including its CHECK constraints, in sqlite types.
var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS "events" (
		"id"             VARCHAR NOT NULL PRIMARY KEY,
		"name"           VARCHAR NOT NULL,
		"location"       VARCHAR NOT NULL DEFAULT '',
		"description"    VARCHAR NOT NULL DEFAULT '',
		"date"           TIMESTAMP NOT NULL,
		"total_capacity" INTEGER NOT NULL CHECK ("total_capacity" >= 0),
		"sold_count"     INTEGER NOT NULL DEFAULT 0,
		"created_at"     TIMESTAMP NOT NULL,
		CONSTRAINT "events_sold_within_capacity" CHECK ("sold_count" >= 0 AND "sold_count" <= "total_capacity")
	)`,
	`CREATE TABLE IF NOT EXISTS "tickets" (
		"id"              VARCHAR NOT NULL PRIMARY KEY,
		"event_id"        VARCHAR NOT NULL REFERENCES "events" ("id"),
		"code"            VARCHAR NOT NULL UNIQUE,
		"owner_name"      VARCHAR,
		"price"           REAL NOT NULL DEFAULT 0 CHECK ("price" >= 0),
		"status"          VARCHAR NOT NULL DEFAULT 'available'
		                  CHECK ("status" IN ('available', 'validated', 'cancelled')),
		"purchase_date"   TIMESTAMP NOT NULL,
		"validation_date" TIMESTAMP
	)`,
	`CREATE INDEX IF NOT EXISTS "tickets_event_id_idx" ON "tickets" ("event_id")`,
}

// CreateSchema creates the events and tickets tables on sqlite. Postgres
// deployments use the SQL migrations instead; this path serves sqlite and
// tests.
func CreateSchema(ctx context.Context, db *bun.DB) error {
	for _, stmt := range sqliteSchema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("create schema: %w", err)
		}
	}
	return nil
}

func DropSchema(ctx context.Context, db *bun.DB) error {
	for _, m := range []interface{}{(*models.Ticket)(nil), (*models.Event)(nil)} {
		if _, err := db.NewDropTable().Model(m).IfExists().Exec(ctx); err != nil {
			return fmt.Errorf("drop table for %T: %w", m, err)
		}
	}
	return nil
}
