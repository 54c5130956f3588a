package services

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/wajihaissa/fahamni/internal/models"
)

// ErrSeanceFull rejects a booking against a seance with no remaining
// capacity.
var ErrSeanceFull = errors.New("seance has no remaining capacity")

// ReservationMailer sends the booking lifecycle emails.
type ReservationMailer interface {
	SendReservationCreated(ctx context.Context, r *models.Reservation) error
	SendReservationAccepted(ctx context.Context, r *models.Reservation) error
}

// ReservationService owns the booking lifecycle: creation, tutor
// acceptance and cancellation, with the one-shot lifecycle emails.
type ReservationService struct {
	store  ReservationStore
	mailer ReservationMailer
}

func NewReservationService(store ReservationStore, mailer ReservationMailer) *ReservationService {
	return &ReservationService{store: store, mailer: mailer}
}

// Create books the seance for the participant. The reservation starts
// pending; the confirmation email is sent once and its timestamp recorded.
// An email failure does not fail the booking, the timestamp just stays
// empty.
func (s *ReservationService) Create(ctx context.Context, seance *models.Seance, participant *models.User) (*models.Reservation, error) {
	if seance.Capacity > 0 {
		active, err := s.store.CountActiveBySeance(ctx, seance.ID)
		if err != nil {
			return nil, err
		}
		if active >= int64(seance.Capacity) {
			return nil, ErrSeanceFull
		}
	}

	now := time.Now()
	reservation := &models.Reservation{
		Status:        models.ReservationStatusPending,
		ReservedAt:    now,
		SeanceID:      seance.ID,
		ParticipantID: participant.ID,
	}
	if err := s.store.Create(ctx, reservation); err != nil {
		return nil, err
	}

	// Attach the already-loaded relations for the emails and the response;
	// only the foreign keys go through the insert.
	reservation.Seance = *seance
	reservation.Participant = *participant

	if s.mailer != nil && reservation.ConfirmationEmailSentAt == nil {
		if err := s.mailer.SendReservationCreated(ctx, reservation); err != nil {
			log.Printf("Confirmation email failed for reservation %d: %v", reservation.ID, err)
		} else {
			sentAt := time.Now()
			reservation.ConfirmationEmailSentAt = &sentAt
			if err := s.store.Save(ctx, reservation); err != nil {
				return nil, err
			}
		}
	}

	return reservation, nil
}

// Accept marks the reservation accepted by the tutor and sends the
// acceptance email once.
func (s *ReservationService) Accept(ctx context.Context, reservation *models.Reservation) error {
	reservation.MarkAccepted()
	if err := s.store.Save(ctx, reservation); err != nil {
		return err
	}

	if s.mailer != nil && reservation.AcceptanceEmailSentAt == nil {
		if err := s.mailer.SendReservationAccepted(ctx, reservation); err != nil {
			log.Printf("Acceptance email failed for reservation %d: %v", reservation.ID, err)
		} else {
			sentAt := time.Now()
			reservation.AcceptanceEmailSentAt = &sentAt
			if err := s.store.Save(ctx, reservation); err != nil {
				return err
			}
		}
	}

	return nil
}

// Cancel records the cancellation timestamp. The status stays whatever it
// was, including paid.
func (s *ReservationService) Cancel(ctx context.Context, reservation *models.Reservation, at time.Time) error {
	reservation.Cancel(at)
	return s.store.Save(ctx, reservation)
}
