package services

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	"github.com/wajihaissa/fahamni/internal/models"
)

const (
	defaultNotificationLimit = 20
	maxNotificationLimit     = 100
)

// NotificationStore is the persistence contract for in-app notifications.
type NotificationStore interface {
	Create(ctx context.Context, n *models.InAppNotification) error
	Save(ctx context.Context, n *models.InAppNotification) error
	FindByID(ctx context.Context, id uint) (*models.InAppNotification, error)
	FindByRecipientAndEventKey(ctx context.Context, recipientID uint, eventKey string) (*models.InAppNotification, error)
	CountUnread(ctx context.Context, recipientID uint) (int64, error)
	ListLatest(ctx context.Context, recipientID uint, limit int) ([]models.InAppNotification, error)
	MarkAllRead(ctx context.Context, recipientID uint, at time.Time) (int64, error)
}

// PushSender fans a freshly recorded notification out to the recipient's
// devices. Best effort: failures are logged, never propagated.
type PushSender interface {
	SendToRecipient(ctx context.Context, recipientID uint, title, message string, data map[string]string) error
}

// NotificationService delivers each logical event to a recipient at most
// once, keyed by (recipient, event key).
type NotificationService struct {
	store NotificationStore
	push  PushSender
}

func NewNotificationService(store NotificationStore, push PushSender) *NotificationService {
	return &NotificationService{store: store, push: push}
}

// Record stores a notification unless the same event was already recorded
// for the recipient, in which case the existing notification is returned
// unchanged. The boolean reports whether a new row was created.
func (s *NotificationService) Record(ctx context.Context, recipientID uint, notifType, eventKey, title, message string, data map[string]any) (*models.InAppNotification, bool, error) {
	existing, err := s.store.FindByRecipientAndEventKey(ctx, recipientID, eventKey)
	if err != nil {
		return nil, false, err
	}
	if existing != nil {
		return existing, false, nil
	}

	n := &models.InAppNotification{
		RecipientID: recipientID,
		Type:        notifType,
		EventKey:    eventKey,
		Title:       title,
		Message:     message,
		Data:        data,
		IsRead:      false,
		CreatedAt:   time.Now(),
	}
	if err := s.store.Create(ctx, n); err != nil {
		return nil, false, err
	}

	if s.push != nil {
		if err := s.push.SendToRecipient(ctx, recipientID, title, message, pushData(data)); err != nil {
			log.Printf("Push delivery failed for notification %d: %v", n.ID, err)
		}
	}

	return n, true, nil
}

// MarkRead marks one notification read. No-op when already read.
func (s *NotificationService) MarkRead(ctx context.Context, n *models.InAppNotification, at time.Time) error {
	if n.IsRead {
		return nil
	}
	n.MarkRead(at)
	return s.store.Save(ctx, n)
}

// MarkAllRead marks every unread notification for the recipient read and
// returns how many were affected.
func (s *NotificationService) MarkAllRead(ctx context.Context, recipientID uint, at time.Time) (int64, error) {
	return s.store.MarkAllRead(ctx, recipientID, at)
}

// CountUnread returns the recipient's unread notification count.
func (s *NotificationService) CountUnread(ctx context.Context, recipientID uint) (int64, error) {
	return s.store.CountUnread(ctx, recipientID)
}

// ListLatest returns the recipient's notifications newest first. The limit
// is clamped to [1, 100]; non-positive values fall back to the default
// page size.
func (s *NotificationService) ListLatest(ctx context.Context, recipientID uint, limit int) ([]models.InAppNotification, error) {
	if limit <= 0 {
		limit = defaultNotificationLimit
	}
	if limit > maxNotificationLimit {
		limit = maxNotificationLimit
	}
	return s.store.ListLatest(ctx, recipientID, limit)
}

// NotifyTutorPaymentReceived records the "payment received" notification
// for the seance's tutor, keyed so provider callback replays cannot
// produce duplicates.
func (s *NotificationService) NotifyTutorPaymentReceived(ctx context.Context, r *models.Reservation, tx *models.PaymentTransaction, provider, externalRef string, paidAt time.Time) error {
	tutorID := r.Seance.TuteurID
	if tutorID == 0 || r.ID == 0 {
		return nil
	}

	eventSuffix := strings.TrimSpace(externalRef)
	if eventSuffix == "" && tx.PaymentIntentID != nil {
		eventSuffix = strings.TrimSpace(*tx.PaymentIntentID)
	}
	if eventSuffix == "" {
		eventSuffix = "tx-" + strconv.FormatUint(uint64(tx.ID), 10)
	}
	eventKey := fmt.Sprintf("payment_paid:%d:%s", r.ID, eventSuffix)

	studentName := strings.TrimSpace(r.Participant.FullName)
	if studentName == "" {
		studentName = "Un etudiant"
	}
	matiere := strings.TrimSpace(r.Seance.Matiere)
	if matiere == "" {
		matiere = "Seance"
	}
	currency := strings.ToUpper(tx.Currency)
	providerLabel := strings.ToUpper(strings.TrimSpace(provider))
	if providerLabel == "" {
		providerLabel = "PAYMENT"
	}

	title := "Nouveau paiement recu"
	message := fmt.Sprintf("%s a paye la reservation \"%s\" (%.2f %s) via %s.",
		studentName, matiere, float64(tx.AmountCents)/100, currency, providerLabel)

	data := map[string]any{
		"reservationId": r.ID,
		"seanceId":      r.SeanceID,
		"matiere":       matiere,
		"studentName":   studentName,
		"provider":      providerLabel,
		"externalRef":   eventSuffix,
		"amountCents":   tx.AmountCents,
		"currency":      currency,
		"paidAt":        paidAt.Format(time.RFC3339),
		"route":         "/seances",
	}

	_, _, err := s.Record(ctx, tutorID, models.NotificationTypePaymentReceived, eventKey, title, message, data)
	return err
}

func pushData(data map[string]any) map[string]string {
	if len(data) == 0 {
		return nil
	}
	out := make(map[string]string, len(data))
	for k, v := range data {
		out[k] = fmt.Sprintf("%v", v)
	}
	return out
}
