package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"ms-event-tickets/internal/config"
	"ms-event-tickets/internal/database"
	"ms-event-tickets/internal/database/migrations"
	event_db "ms-event-tickets/internal/events/db"
	events "ms-event-tickets/internal/events/service"
	"ms-event-tickets/internal/logger"
	"ms-event-tickets/internal/models"

	"github.com/joho/godotenv"
	"github.com/uptrace/bun"
)

func main() {
	down := flag.Bool("down", false, "drop the schema instead of creating it")
	seed := flag.Bool("seed", false, "insert sample events after migrating")
	flag.Parse()

	log := logger.NewLogger()
	defer log.Close()

	if err := godotenv.Load(); err != nil {
		log.Warn("CONFIG", ".env file not found, using environment variables")
	}

	cfg := config.Load()
	ctx := context.Background()

	bunDB, err := database.Connect(ctx, cfg.Database, log)
	if err != nil {
		log.Fatal("DATABASE", err.Error())
	}
	defer bunDB.Close()

	if *down {
		log.Info("MIGRATE", "Dropping tables...")
		if err := migrateDown(ctx, bunDB, cfg.Database, log); err != nil {
			log.Fatal("MIGRATE", err.Error())
		}
		log.Info("MIGRATE", "✅ Done.")
		return
	}

	log.Info("MIGRATE", "Creating tables...")
	if err := migrateUp(ctx, bunDB, cfg.Database, log); err != nil {
		log.Fatal("MIGRATE", err.Error())
	}

	if *seed {
		log.Info("MIGRATE", "Seeding sample data...")
		if err := seedData(ctx, bunDB, log); err != nil {
			log.Fatal("MIGRATE", err.Error())
		}
	}
	log.Info("MIGRATE", "✅ Done.")
}

func migrateUp(ctx context.Context, bunDB *bun.DB, cfg config.DatabaseConfig, log *logger.Logger) error {
	if cfg.Driver == database.DriverSQLite {
		return database.CreateSchema(ctx, bunDB)
	}
	runner := migrations.NewRunner(bunDB, migrations.MigrateOptions{MigrationsDir: cfg.MigrationsDir}, log)
	defer runner.Close()
	return runner.MigrateUp()
}

func migrateDown(ctx context.Context, bunDB *bun.DB, cfg config.DatabaseConfig, log *logger.Logger) error {
	if cfg.Driver == database.DriverSQLite {
		return database.DropSchema(ctx, bunDB)
	}
	runner := migrations.NewRunner(bunDB, migrations.MigrateOptions{MigrationsDir: cfg.MigrationsDir}, log)
	defer runner.Close()
	return runner.MigrateDown()
}

func seedData(ctx context.Context, bunDB *bun.DB, log *logger.Logger) error {
	svc := events.NewEventService(&event_db.DB{Bun: bunDB})
	samples := []models.CreateEventRequest{
		{
			Name:          "Summer Fest",
			Location:      "Riverside Park",
			Description:   "Annual summer music festival.",
			Date:          time.Now().AddDate(0, 1, 0),
			TotalCapacity: 500,
		},
		{
			Name:          "Go Meetup",
			Location:      "Community Hall",
			Description:   "Evening talks and lightning sessions.",
			Date:          time.Now().AddDate(0, 0, 14),
			TotalCapacity: 40,
		},
	}

	for _, req := range samples {
		event, err := svc.CreateEvent(ctx, req)
		if err != nil {
			return fmt.Errorf("seed %q: %w", req.Name, err)
		}
		log.Info("MIGRATE", fmt.Sprintf("Seeded event %s (%s, capacity %d)", event.ID, event.Name, event.TotalCapacity))
	}
	return nil
}

func init() {
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "usage: migrate [-down] [-seed]\n")
		flag.PrintDefaults()
	}
}
