package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/wajihaissa/fahamni/internal/models"
)

// The reminder goes out when the seance starts between 23 and 24 hours
// from the sweep, lower bound exclusive, upper bound inclusive. A seance
// whose window already passed before any sweep ran is never reminded.
const (
	reminderWindowLower = 23 * time.Hour
	reminderWindowUpper = 24 * time.Hour
)

// Claim TTL: long enough to cover a full sweep, short enough that a
// crashed holder does not block the next scheduled run.
const sweepLockTTL = 10 * time.Minute

// ErrSweepLocked is returned when another instance currently holds the
// sweep claim. Callers should treat it as "nothing to do".
var ErrSweepLocked = errors.New("reminder sweep already running elsewhere")

// ReminderStore selects and persists reminder candidates.
type ReminderStore interface {
	DueForReminder(ctx context.Context, windowStart, windowEnd time.Time) ([]*models.Reservation, error)
	SaveAll(ctx context.Context, reservations []*models.Reservation) error
}

// ReminderMailer sends the pre-seance reminder email.
type ReminderMailer interface {
	SendReservationReminder(ctx context.Context, r *models.Reservation) error
}

// SweepLocker serializes sweeps across instances. Optional: a nil locker
// means a single-instance deployment.
type SweepLocker interface {
	AcquireSweepLock(ctx context.Context, ttl time.Duration) (bool, error)
	ReleaseSweepLock(ctx context.Context) error
}

// SweepError ties a send failure to the reservation it happened on.
type SweepError struct {
	ReservationID uint
	Err           error
}

// SweepResult is the tally of one reminder sweep.
type SweepResult struct {
	Candidates int
	Sent       int
	Failed     int
	Errors     []SweepError
}

// ReminderService runs the periodic reminder sweep.
type ReminderService struct {
	store  ReminderStore
	mailer ReminderMailer
	locker SweepLocker
}

func NewReminderService(store ReminderStore, mailer ReminderMailer, locker SweepLocker) *ReminderService {
	return &ReminderService{store: store, mailer: mailer, locker: locker}
}

// Sweep finds reservations whose seance starts within the reminder window,
// emails each one, and records the send so it never repeats. Failures are
// isolated per reservation: the batch keeps going, the failed rows keep a
// null sent-timestamp and are retried on the next sweep. All successful
// sends are persisted in one commit; when any send failed the sweep still
// commits the successes and returns a non-nil error alongside the tally.
func (s *ReminderService) Sweep(ctx context.Context, now time.Time) (SweepResult, error) {
	var result SweepResult

	if s.locker != nil {
		acquired, err := s.locker.AcquireSweepLock(ctx, sweepLockTTL)
		if err != nil {
			return result, fmt.Errorf("acquire sweep lock: %w", err)
		}
		if !acquired {
			return result, ErrSweepLocked
		}
		defer func() {
			if err := s.locker.ReleaseSweepLock(ctx); err != nil {
				log.Printf("Failed to release sweep lock: %v", err)
			}
		}()
	}

	windowStart := now.Add(reminderWindowLower)
	windowEnd := now.Add(reminderWindowUpper)

	candidates, err := s.store.DueForReminder(ctx, windowStart, windowEnd)
	if err != nil {
		return result, fmt.Errorf("select reminder candidates: %w", err)
	}

	sent := make([]*models.Reservation, 0, len(candidates))
	for _, reservation := range candidates {
		if reservation.ReminderEmailSentAt != nil {
			continue
		}
		startAt := reservation.Seance.StartAt
		if !startAt.After(windowStart) || startAt.After(windowEnd) {
			continue
		}
		result.Candidates++

		if err := s.mailer.SendReservationReminder(ctx, reservation); err != nil {
			result.Failed++
			result.Errors = append(result.Errors, SweepError{ReservationID: reservation.ID, Err: err})
			log.Printf("Reminder failed for reservation %d: %v", reservation.ID, err)
			continue
		}

		sentAt := now
		reservation.ReminderEmailSentAt = &sentAt
		sent = append(sent, reservation)
		result.Sent++
	}

	if result.Sent > 0 {
		if err := s.store.SaveAll(ctx, sent); err != nil {
			return result, fmt.Errorf("persist reminder sends: %w", err)
		}
	}

	if result.Failed > 0 {
		return result, fmt.Errorf("reminder sweep: %d of %d sends failed", result.Failed, result.Candidates)
	}
	return result, nil
}
