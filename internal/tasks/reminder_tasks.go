package tasks

import (
	"context"
	"errors"
	"log"
	"os"
	"time"

	"gorm.io/gorm"

	"github.com/wajihaissa/fahamni/internal/models"
	"github.com/wajihaissa/fahamni/internal/repository"
	"github.com/wajihaissa/fahamni/internal/services"
)

// SendRemindersTaskDef is the hourly sweep that emails the 24h pre-seance
// reminder to accepted and paid reservations.
type SendRemindersTaskDef struct{}

// TaskID returns the unique identifier for this task
func (t *SendRemindersTaskDef) TaskID() string {
	return "send_reservation_reminders"
}

// CreateTask builds the recurring ScheduledTask record for the sweep
func (t *SendRemindersTaskDef) CreateTask(due time.Time) (*models.ScheduledTask, error) {
	interval := "FREQ=HOURLY;INTERVAL=1"
	return BuildScheduledTask(t.TaskID(), map[string]any{}, due, &interval, models.ScheduledTaskTypeRecurring, 1)
}

// HandleExecution runs one reminder sweep
func (t *SendRemindersTaskDef) HandleExecution(ctx context.Context, db *gorm.DB, args map[string]any) (map[string]any, error) {
	store := repository.NewReservationRepository(db)
	mailer := services.NewEmailService()

	var locker services.SweepLocker
	if redisURL := os.Getenv("REDIS_URL"); redisURL != "" {
		cache, err := services.NewRedisCache(redisURL)
		if err != nil {
			log.Printf("Redis unavailable, running sweep without claim: %v", err)
		} else {
			defer cache.Close()
			locker = cache
		}
	}

	sweep := services.NewReminderService(store, mailer, locker)
	result, err := sweep.Sweep(ctx, time.Now())
	if errors.Is(err, services.ErrSweepLocked) {
		return map[string]any{"skipped": "another sweep holds the claim"}, nil
	}

	out := map[string]any{
		"candidates": result.Candidates,
		"sent":       result.Sent,
		"failed":     result.Failed,
	}
	if len(result.Errors) > 0 {
		errs := make([]string, 0, len(result.Errors))
		for _, e := range result.Errors {
			errs = append(errs, e.Err.Error())
		}
		out["errors"] = errs
	}

	return out, err
}

// SendRemindersTask is the singleton instance of SendRemindersTaskDef
var SendRemindersTask = &SendRemindersTaskDef{}
