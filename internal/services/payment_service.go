package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/wajihaissa/fahamni/internal/models"
)

var (
	// ErrDuplicateCheckoutSession is returned when a checkout session id is
	// already recorded; the caller should surface it as a conflict.
	ErrDuplicateCheckoutSession = errors.New("checkout session id already used")
	// ErrInvalidTransactionState is returned when a transaction cannot be
	// captured because it is no longer pending. Webhook replays hit this and
	// should treat it as a benign duplicate, not a hard failure.
	ErrInvalidTransactionState = errors.New("transaction is not pending")
	// ErrReservationAlreadyPaid rejects opening a checkout for a
	// reservation that is already paid.
	ErrReservationAlreadyPaid = errors.New("reservation is already paid")
	// ErrTransactionNotFound is returned when a provider callback
	// references an unknown checkout session.
	ErrTransactionNotFound = errors.New("payment transaction not found")
)

// How long a pending checkout is considered reusable before a new provider
// session is opened.
const pendingCheckoutReuseWindow = 20 * time.Minute

// TransactionStore is the persistence contract for payment transactions.
type TransactionStore interface {
	Create(ctx context.Context, tx *models.PaymentTransaction) error
	Save(ctx context.Context, tx *models.PaymentTransaction) error
	ExistsByCheckoutSessionID(ctx context.Context, checkoutSessionID string) (bool, error)
	FindByCheckoutSessionID(ctx context.Context, checkoutSessionID string) (*models.PaymentTransaction, error)
	LatestPendingByReservation(ctx context.Context, reservationID uint) (*models.PaymentTransaction, error)
	LatestByReservation(ctx context.Context, reservationID uint) (*models.PaymentTransaction, error)
}

// ReservationStore is the slice of reservation persistence the payment and
// booking services depend on.
type ReservationStore interface {
	Create(ctx context.Context, reservation *models.Reservation) error
	Save(ctx context.Context, reservation *models.Reservation) error
	FindByID(ctx context.Context, id uint) (*models.Reservation, error)
	CountActiveBySeance(ctx context.Context, seanceID uint) (int64, error)
}

// CheckoutSession is what a payment gateway hands back when a checkout is
// opened: the provider's reference plus where to send the student.
type CheckoutSession struct {
	ExternalRef string
	RedirectURL string
	AmountCents int64
	Currency    string
}

// CheckoutGateway abstracts the external payment provider.
type CheckoutGateway interface {
	ProviderName() string
	Currency() string
	CreateCheckoutSession(ctx context.Context, r *models.Reservation) (*CheckoutSession, error)
}

// TutorNotifier surfaces a successful payment to the tutor.
type TutorNotifier interface {
	NotifyTutorPaymentReceived(ctx context.Context, r *models.Reservation, tx *models.PaymentTransaction, provider, externalRef string, paidAt time.Time) error
}

// PaymentService maintains the payment audit trail and composes the
// checkout flow around it.
type PaymentService struct {
	transactions TransactionStore
	reservations ReservationStore
	gateway      CheckoutGateway
	notifier     TutorNotifier
}

func NewPaymentService(transactions TransactionStore, reservations ReservationStore, gateway CheckoutGateway, notifier TutorNotifier) *PaymentService {
	return &PaymentService{
		transactions: transactions,
		reservations: reservations,
		gateway:      gateway,
		notifier:     notifier,
	}
}

// Open records a new pending transaction for the reservation. The checkout
// session id must not have been used by any transaction before.
func (s *PaymentService) Open(ctx context.Context, r *models.Reservation, checkoutSessionID string, amountCents int64, currency, studentEmail string) (*models.PaymentTransaction, error) {
	exists, err := s.transactions.ExistsByCheckoutSessionID(ctx, checkoutSessionID)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, fmt.Errorf("checkout session %q: %w", checkoutSessionID, ErrDuplicateCheckoutSession)
	}

	tx := &models.PaymentTransaction{
		ReservationID:     r.ID,
		CheckoutSessionID: checkoutSessionID,
		AmountCents:       amountCents,
		Currency:          currency,
		Status:            models.TransactionStatusPending,
		StudentEmail:      studentEmail,
	}
	if err := s.transactions.Create(ctx, tx); err != nil {
		return nil, err
	}
	return tx, nil
}

// LatestPending resolves the in-flight transaction for a reservation, if any.
func (s *PaymentService) LatestPending(ctx context.Context, r *models.Reservation) (*models.PaymentTransaction, error) {
	return s.transactions.LatestPendingByReservation(ctx, r.ID)
}

// Latest resolves the most recent transaction regardless of status, for
// status display.
func (s *PaymentService) Latest(ctx context.Context, r *models.Reservation) (*models.PaymentTransaction, error) {
	return s.transactions.LatestByReservation(ctx, r.ID)
}

// MarkPaid captures a pending transaction. Capturing anything else fails
// with ErrInvalidTransactionState so a double webhook cannot overwrite
// PaidAt.
func (s *PaymentService) MarkPaid(ctx context.Context, tx *models.PaymentTransaction, paymentIntentID string, at time.Time) error {
	if tx.Status != models.TransactionStatusPending {
		return fmt.Errorf("transaction %d is %s: %w", tx.ID, tx.Status, ErrInvalidTransactionState)
	}

	tx.Status = models.TransactionStatusPaid
	if paymentIntentID != "" {
		tx.PaymentIntentID = &paymentIntentID
	}
	tx.PaidAt = &at
	return s.transactions.Save(ctx, tx)
}

// MarkFailed moves the transaction to its terminal failure state. Marking
// an already-failed transaction again is a no-op, and a captured payment is
// never downgraded: a stale failure callback arriving after the payment
// settled is treated as benign, like a webhook replay.
func (s *PaymentService) MarkFailed(ctx context.Context, tx *models.PaymentTransaction, errorMessage string, at time.Time) error {
	if tx.Status == models.TransactionStatusFailed {
		return nil
	}
	if tx.Status == models.TransactionStatusPaid {
		log.Printf("Ignoring failure callback for settled transaction %d", tx.ID)
		return nil
	}

	tx.Status = models.TransactionStatusFailed
	tx.ErrorMessage = &errorMessage
	tx.UpdatedAt = at
	return s.transactions.Save(ctx, tx)
}

// CreateCheckoutForReservation starts (or resumes) a checkout and returns
// the URL the student should be redirected to. A fresh pending transaction
// in the same currency is reused instead of opening a second provider
// session for an in-flight payment.
func (s *PaymentService) CreateCheckoutForReservation(ctx context.Context, r *models.Reservation) (string, error) {
	if r.Status == models.ReservationStatusPaid {
		return "", ErrReservationAlreadyPaid
	}

	pending, err := s.transactions.LatestPendingByReservation(ctx, r.ID)
	if err != nil {
		return "", err
	}
	if pending != nil && pending.CreatedAt.After(time.Now().Add(-pendingCheckoutReuseWindow)) && s.matchesGateway(pending) {
		if url := reusableRedirectURL(pending); url != "" {
			return url, nil
		}
	}

	session, err := s.gateway.CreateCheckoutSession(ctx, r)
	if err != nil {
		return "", fmt.Errorf("create checkout session: %w", err)
	}

	tx, err := s.Open(ctx, r, session.ExternalRef, session.AmountCents, session.Currency, r.Participant.Email)
	if err != nil {
		return "", err
	}

	tx.Metadata = map[string]any{
		"provider":       s.gateway.ProviderName(),
		"redirect_url":   session.RedirectURL,
		"reservation_id": r.ID,
		"seance_id":      r.SeanceID,
	}
	if err := s.transactions.Save(ctx, tx); err != nil {
		return "", err
	}

	return session.RedirectURL, nil
}

// HandleCompletedCheckout is the webhook entry point for a successful
// payment: capture the transaction, mark the reservation paid and notify
// the tutor. Duplicate callbacks resolve to a no-op.
func (s *PaymentService) HandleCompletedCheckout(ctx context.Context, checkoutSessionID, paymentIntentID string, at time.Time) error {
	tx, err := s.transactions.FindByCheckoutSessionID(ctx, checkoutSessionID)
	if err != nil {
		return err
	}
	if tx == nil {
		return fmt.Errorf("checkout session %q: %w", checkoutSessionID, ErrTransactionNotFound)
	}

	if err := s.MarkPaid(ctx, tx, paymentIntentID, at); err != nil {
		if errors.Is(err, ErrInvalidTransactionState) {
			log.Printf("Ignoring duplicate payment callback for checkout session %s", checkoutSessionID)
			return nil
		}
		return err
	}

	reservation, err := s.reservations.FindByID(ctx, tx.ReservationID)
	if err != nil {
		return err
	}
	if reservation == nil {
		return fmt.Errorf("reservation %d for transaction %d not found", tx.ReservationID, tx.ID)
	}

	reservation.MarkPaid()
	if err := s.reservations.Save(ctx, reservation); err != nil {
		return err
	}

	if s.notifier != nil {
		externalRef := checkoutSessionID
		if paymentIntentID != "" {
			externalRef = paymentIntentID
		}
		if err := s.notifier.NotifyTutorPaymentReceived(ctx, reservation, tx, providerOf(tx), externalRef, at); err != nil {
			log.Printf("Failed to notify tutor for reservation %d: %v", reservation.ID, err)
		}
	}

	return nil
}

// HandleFailedCheckout is the webhook entry point for a failed or expired
// payment.
func (s *PaymentService) HandleFailedCheckout(ctx context.Context, checkoutSessionID, reason string, at time.Time) error {
	tx, err := s.transactions.FindByCheckoutSessionID(ctx, checkoutSessionID)
	if err != nil {
		return err
	}
	if tx == nil {
		return fmt.Errorf("checkout session %q: %w", checkoutSessionID, ErrTransactionNotFound)
	}
	return s.MarkFailed(ctx, tx, reason, at)
}

// matchesGateway reports whether the pending transaction was opened by the
// currently configured provider in the currently configured currency. A
// provider or currency change mid-flight must not resume a stale checkout.
func (s *PaymentService) matchesGateway(tx *models.PaymentTransaction) bool {
	if providerOf(tx) != s.gateway.ProviderName() {
		return false
	}
	return strings.EqualFold(tx.Currency, s.gateway.Currency())
}

func reusableRedirectURL(tx *models.PaymentTransaction) string {
	if tx.Metadata == nil {
		return ""
	}
	url, _ := tx.Metadata["redirect_url"].(string)
	return url
}

func providerOf(tx *models.PaymentTransaction) string {
	if tx.Metadata != nil {
		if provider, ok := tx.Metadata["provider"].(string); ok && provider != "" {
			return provider
		}
	}
	return "payment"
}
