package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/wajihaissa/fahamni/internal/models"
)

// PaymentTransactionRepository persists the payment audit trail.
type PaymentTransactionRepository struct {
	db *gorm.DB
}

func NewPaymentTransactionRepository(db *gorm.DB) *PaymentTransactionRepository {
	return &PaymentTransactionRepository{db: db}
}

func (r *PaymentTransactionRepository) Create(ctx context.Context, tx *models.PaymentTransaction) error {
	return r.db.WithContext(ctx).Omit(clause.Associations).Create(tx).Error
}

func (r *PaymentTransactionRepository) Save(ctx context.Context, tx *models.PaymentTransaction) error {
	return r.db.WithContext(ctx).Omit(clause.Associations).Save(tx).Error
}

func (r *PaymentTransactionRepository) ExistsByCheckoutSessionID(ctx context.Context, checkoutSessionID string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.PaymentTransaction{}).
		Where("checkout_session_id = ?", checkoutSessionID).
		Count(&count).Error
	return count > 0, err
}

func (r *PaymentTransactionRepository) FindByCheckoutSessionID(ctx context.Context, checkoutSessionID string) (*models.PaymentTransaction, error) {
	var tx models.PaymentTransaction
	err := r.db.WithContext(ctx).
		Where("checkout_session_id = ?", checkoutSessionID).
		First(&tx).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &tx, nil
}

// LatestPendingByReservation returns the pending transaction with the
// highest id for the reservation, or nil when there is none. This is the
// transaction checkout retries should reuse.
func (r *PaymentTransactionRepository) LatestPendingByReservation(ctx context.Context, reservationID uint) (*models.PaymentTransaction, error) {
	var tx models.PaymentTransaction
	err := r.db.WithContext(ctx).
		Where("reservation_id = ? AND status = ?", reservationID, models.TransactionStatusPending).
		Order("id DESC").
		First(&tx).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &tx, nil
}

// LatestByReservation returns the most recent transaction for the
// reservation regardless of status, or nil when there is none.
func (r *PaymentTransactionRepository) LatestByReservation(ctx context.Context, reservationID uint) (*models.PaymentTransaction, error) {
	var tx models.PaymentTransaction
	err := r.db.WithContext(ctx).
		Where("reservation_id = ?", reservationID).
		Order("id DESC").
		First(&tx).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &tx, nil
}
