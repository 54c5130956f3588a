package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/wajihaissa/fahamni/internal/models"
)

// ReservationRepository persists reservations and answers the queries the
// booking and reminder services need.
type ReservationRepository struct {
	db *gorm.DB
}

func NewReservationRepository(db *gorm.DB) *ReservationRepository {
	return &ReservationRepository{db: db}
}

// Writes omit associations: preloaded Seance/Participant structs must never
// be upserted alongside the reservation row.
func (r *ReservationRepository) Create(ctx context.Context, reservation *models.Reservation) error {
	return r.db.WithContext(ctx).Omit(clause.Associations).Create(reservation).Error
}

func (r *ReservationRepository) Save(ctx context.Context, reservation *models.Reservation) error {
	return r.db.WithContext(ctx).Omit(clause.Associations).Save(reservation).Error
}

// SaveAll persists a batch of reservations in a single transaction. The
// reminder sweep relies on this being one commit, not one per row.
func (r *ReservationRepository) SaveAll(ctx context.Context, reservations []*models.Reservation) error {
	if len(reservations) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, reservation := range reservations {
			if err := tx.Omit(clause.Associations).Save(reservation).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

func (r *ReservationRepository) FindByID(ctx context.Context, id uint) (*models.Reservation, error) {
	var reservation models.Reservation
	err := r.db.WithContext(ctx).
		Preload("Seance").
		Preload("Seance.Tuteur").
		Preload("Participant").
		First(&reservation, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &reservation, nil
}

// CountActiveBySeance counts reservations that still hold a spot on the
// seance: any status, as long as they are not canceled.
func (r *ReservationRepository) CountActiveBySeance(ctx context.Context, seanceID uint) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.Reservation{}).
		Where("seance_id = ? AND cancell_at IS NULL", seanceID).
		Count(&count).Error
	return count, err
}

// DueForReminder selects accepted or paid reservations that have not been
// reminded yet and whose seance starts inside (windowStart, windowEnd],
// ordered by seance start time ascending.
func (r *ReservationRepository) DueForReminder(ctx context.Context, windowStart, windowEnd time.Time) ([]*models.Reservation, error) {
	var reservations []*models.Reservation
	err := r.db.WithContext(ctx).
		Joins("JOIN seances ON seances.id = reservations.seance_id").
		Where("reservations.status IN ?", []int{models.ReservationStatusAccepted, models.ReservationStatusPaid}).
		Where("reservations.reminder_email_sent_at IS NULL").
		Where("seances.start_at > ? AND seances.start_at <= ?", windowStart, windowEnd).
		Order("seances.start_at ASC").
		Preload("Seance").
		Preload("Seance.Tuteur").
		Preload("Participant").
		Find(&reservations).Error
	return reservations, err
}
