package database

import (
	"context"
	"io"
	"testing"
	"time"

	"ms-event-tickets/internal/config"
	"ms-event-tickets/internal/logger"
	"ms-event-tickets/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun/dialect"
)

func TestConnectSQLiteAndSchema(t *testing.T) {
	ctx := context.Background()
	bunDB, err := Connect(ctx, config.DatabaseConfig{
		Driver:         DriverSQLite,
		DSN:            ":memory:",
		ConnectRetries: 1,
	}, logger.NewWithWriter(io.Discard))
	require.NoError(t, err)
	defer bunDB.Close()

	assert.Equal(t, dialect.SQLite, bunDB.Dialect().Name())

	require.NoError(t, CreateSchema(ctx, bunDB))
	require.NoError(t, CreateSchema(ctx, bunDB), "schema creation is repeatable")

	event := &models.Event{ID: "e1", Name: "n", Date: time.Now(), TotalCapacity: 1, CreatedAt: time.Now()}
	_, err = bunDB.NewInsert().Model(event).Exec(ctx)
	require.NoError(t, err)

	require.NoError(t, DropSchema(ctx, bunDB))
	_, err = bunDB.NewSelect().Model((*models.Event)(nil)).Count(ctx)
	assert.Error(t, err)
}

func TestConnectRejectsUnknownDriver(t *testing.T) {
	_, err := Connect(context.Background(), config.DatabaseConfig{
		Driver:         "oracle",
		ConnectRetries: 1,
		RetryDelay:     time.Millisecond,
	}, logger.NewWithWriter(io.Discard))
	assert.Error(t, err)
}

func TestSQLiteSchemaEnforcesConstraints(t *testing.T) {
	ctx := context.Background()
	bunDB, err := Connect(ctx, config.DatabaseConfig{
		Driver:         DriverSQLite,
		DSN:            ":memory:",
		ConnectRetries: 1,
	}, logger.NewWithWriter(io.Discard))
	require.NoError(t, err)
	defer bunDB.Close()
	require.NoError(t, CreateSchema(ctx, bunDB))

	now := time.Now().UTC()
	event := &models.Event{ID: "e1", Name: "n", Date: now, TotalCapacity: 1, CreatedAt: now}
	_, err = bunDB.NewInsert().Model(event).Exec(ctx)
	require.NoError(t, err)

	oversold := &models.Event{ID: "e2", Name: "n", Date: now, TotalCapacity: 1, SoldCount: 2, CreatedAt: now}
	_, err = bunDB.NewInsert().Model(oversold).Exec(ctx)
	assert.Error(t, err, "sold_count above capacity")

	_, err = bunDB.NewUpdate().Model((*models.Event)(nil)).
		Set("sold_count = sold_count + 2").
		Where("id = ?", "e1").
		Exec(ctx)
	assert.Error(t, err, "sold_count pushed above capacity")

	tests := []struct {
		name   string
		ticket models.Ticket
	}{
		{"negative price", models.Ticket{ID: "t1", EventID: "e1", Code: "c1", Price: -1, Status: models.TicketStatusAvailable, PurchaseDate: now}},
		{"unknown status", models.Ticket{ID: "t2", EventID: "e1", Code: "c2", Status: "refunded", PurchaseDate: now}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := bunDB.NewInsert().Model(&tt.ticket).Exec(ctx)
			assert.Error(t, err)
		})
	}

	ok := &models.Ticket{ID: "t3", EventID: "e1", Code: "c3", Price: 12.5, Status: models.TicketStatusAvailable, PurchaseDate: now}
	_, err = bunDB.NewInsert().Model(ok).Exec(ctx)
	require.NoError(t, err)
}
