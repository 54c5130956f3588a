package models

import (
	"time"
)

// TransactionStatus represents the state of a checkout attempt
type TransactionStatus string

const (
	TransactionStatusPending TransactionStatus = "pending"
	TransactionStatusPaid    TransactionStatus = "paid"
	TransactionStatusFailed  TransactionStatus = "failed"
)

// PaymentTransaction records one checkout attempt against a reservation.
// Rows are never deleted (audit ledger); they only go away when the parent
// reservation is deleted, through the cascade on the foreign key. A
// reservation can accumulate several transactions across retries, but only
// the pending one with the highest id counts as "live".
type PaymentTransaction struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	ReservationID uint `gorm:"index;not null" json:"reservation_id"`

	CheckoutSessionID string            `gorm:"type:varchar(191);uniqueIndex;not null" json:"checkout_session_id"`
	PaymentIntentID   *string           `gorm:"type:varchar(191)" json:"payment_intent_id,omitempty"`
	AmountCents       int64             `gorm:"not null" json:"amount_cents"`
	Currency          string            `gorm:"type:varchar(3);not null" json:"currency"`
	Status            TransactionStatus `gorm:"type:varchar(20);index" json:"status"`
	StudentEmail      string            `gorm:"type:varchar(255)" json:"student_email"`
	ErrorMessage      *string           `gorm:"type:text" json:"error_message,omitempty"`
	Metadata          map[string]any    `gorm:"serializer:json" json:"metadata,omitempty"`
	PaidAt            *time.Time        `json:"paid_at,omitempty"`

	// Relationships
	Reservation *Reservation `gorm:"foreignKey:ReservationID;constraint:OnDelete:CASCADE" json:"reservation,omitempty"`
}

// IsPending reports whether the transaction is still awaiting a provider
// callback.
func (t *PaymentTransaction) IsPending() bool {
	return t.Status == TransactionStatusPending
}
