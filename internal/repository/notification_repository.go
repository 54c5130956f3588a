package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/wajihaissa/fahamni/internal/models"
)

// NotificationRepository persists in-app notifications.
type NotificationRepository struct {
	db *gorm.DB
}

func NewNotificationRepository(db *gorm.DB) *NotificationRepository {
	return &NotificationRepository{db: db}
}

func (r *NotificationRepository) Create(ctx context.Context, n *models.InAppNotification) error {
	return r.db.WithContext(ctx).Omit(clause.Associations).Create(n).Error
}

func (r *NotificationRepository) Save(ctx context.Context, n *models.InAppNotification) error {
	return r.db.WithContext(ctx).Omit(clause.Associations).Save(n).Error
}

func (r *NotificationRepository) FindByID(ctx context.Context, id uint) (*models.InAppNotification, error) {
	var n models.InAppNotification
	err := r.db.WithContext(ctx).First(&n, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &n, nil
}

func (r *NotificationRepository) FindByRecipientAndEventKey(ctx context.Context, recipientID uint, eventKey string) (*models.InAppNotification, error) {
	var n models.InAppNotification
	err := r.db.WithContext(ctx).
		Where("recipient_id = ? AND event_key = ?", recipientID, eventKey).
		First(&n).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &n, nil
}

func (r *NotificationRepository) CountUnread(ctx context.Context, recipientID uint) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.InAppNotification{}).
		Where("recipient_id = ? AND is_read = ?", recipientID, false).
		Count(&count).Error
	return count, err
}

// ListLatest returns the recipient's notifications newest first, ordered
// by created_at then id so pagination stays stable when timestamps tie.
func (r *NotificationRepository) ListLatest(ctx context.Context, recipientID uint, limit int) ([]models.InAppNotification, error) {
	var notifications []models.InAppNotification
	err := r.db.WithContext(ctx).
		Where("recipient_id = ?", recipientID).
		Order("created_at DESC, id DESC").
		Limit(limit).
		Find(&notifications).Error
	return notifications, err
}

// MarkAllRead flips every unread notification for the recipient in one
// update and returns the number of rows affected.
func (r *NotificationRepository) MarkAllRead(ctx context.Context, recipientID uint, at time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&models.InAppNotification{}).
		Where("recipient_id = ? AND is_read = ?", recipientID, false).
		Updates(map[string]any{"is_read": true, "read_at": at})
	return result.RowsAffected, result.Error
}
