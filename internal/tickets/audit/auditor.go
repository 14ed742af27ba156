package audit

import (
	"context"
	"fmt"
	"time"

	"ms-event-tickets/internal/logger"
	"ms-event-tickets/internal/models"

	"github.com/go-co-op/gocron/v2"
)

type DriftFinder interface {
	FindCapacityDrift(ctx context.Context) ([]models.CapacityDrift, error)
}

// Auditor periodically checks that every event's sold_count matches its
// non-cancelled tickets. It only reports; it never rewrites counters.
type Auditor struct {
	Finder  DriftFinder
	Logger  *logger.Logger
	Timeout time.Duration

	scheduler gocron.Scheduler
}

func NewAuditor(finder DriftFinder, log *logger.Logger) *Auditor {
	return &Auditor{
		Finder:  finder,
		Logger:  log,
		Timeout: 30 * time.Second,
	}
}

// Run performs one audit pass and returns the drifted events.
func (a *Auditor) Run(ctx context.Context) ([]models.CapacityDrift, error) {
	drift, err := a.Finder.FindCapacityDrift(ctx)
	if err != nil {
		a.Logger.Error("AUDIT", fmt.Sprintf("Capacity audit failed: %v", err))
		return nil, err
	}

	if len(drift) == 0 {
		a.Logger.Debug("AUDIT", "Capacity counters consistent")
		return drift, nil
	}
	for _, d := range drift {
		a.Logger.LogSecurity("CAPACITY_DRIFT", fmt.Sprintf("event %s sold_count=%d active_tickets=%d capacity=%d",
			d.EventID, d.SoldCount, d.ActiveTickets, d.TotalCapacity))
	}
	return drift, nil
}

// Start schedules Run every interval until Stop is called.
func (a *Auditor) Start(interval time.Duration) error {
	s, err := gocron.NewScheduler()
	if err != nil {
		return fmt.Errorf("create audit scheduler: %w", err)
	}

	_, err = s.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(func() {
			ctx, cancel := context.WithTimeout(context.Background(), a.Timeout)
			defer cancel()
			_, _ = a.Run(ctx)
		}),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		_ = s.Shutdown()
		return fmt.Errorf("schedule capacity audit: %w", err)
	}

	a.scheduler = s
	s.Start()
	a.Logger.Info("AUDIT", fmt.Sprintf("✅ Capacity audit scheduled every %s", interval))
	return nil
}

func (a *Auditor) Stop() error {
	if a.scheduler == nil {
		return nil
	}
	return a.scheduler.Shutdown()
}
