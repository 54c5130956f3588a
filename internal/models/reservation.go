package models

import (
	"time"

	"gorm.io/gorm"
)

// Reservation status values. Cancellation is tracked separately through
// CancellAt: a reservation can be accepted or paid and still be canceled,
// so every "active" check must look at both fields.
const (
	ReservationStatusPending  = 0
	ReservationStatusAccepted = 1
	ReservationStatusPaid     = 2
)

// Reservation is a participant's booking against a Seance
type Reservation struct {
	ID        uint           `gorm:"primarykey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`

	Status     int        `gorm:"not null;default:0;index" json:"status"`
	ReservedAt time.Time  `json:"reserved_at"`
	CancellAt  *time.Time `json:"cancell_at,omitempty"`
	Notes      string     `gorm:"type:text" json:"notes,omitempty"`

	// Each email is sent at most once; the timestamp doubles as the
	// de-duplication guard and is never cleared.
	ConfirmationEmailSentAt *time.Time `json:"confirmation_email_sent_at,omitempty"`
	AcceptanceEmailSentAt   *time.Time `json:"acceptance_email_sent_at,omitempty"`
	ReminderEmailSentAt     *time.Time `json:"reminder_email_sent_at,omitempty"`

	SeanceID      uint `gorm:"index;not null" json:"seance_id"`
	ParticipantID uint `gorm:"index;not null" json:"participant_id"`

	// Relationships
	Seance              Seance               `gorm:"foreignKey:SeanceID" json:"seance,omitempty"`
	Participant         User                 `gorm:"foreignKey:ParticipantID" json:"participant,omitempty"`
	PaymentTransactions []PaymentTransaction `gorm:"foreignKey:ReservationID;constraint:OnDelete:CASCADE" json:"payment_transactions,omitempty"`
}

// MarkAccepted moves the reservation to the accepted status. No transition
// guard: a canceled reservation can still be accepted.
func (r *Reservation) MarkAccepted() {
	r.Status = ReservationStatusAccepted
}

// MarkPaid moves the reservation to the paid status. No transition guard,
// same as MarkAccepted.
func (r *Reservation) MarkPaid() {
	r.Status = ReservationStatusPaid
}

// Cancel records the cancellation timestamp. Status is left untouched.
func (r *Reservation) Cancel(at time.Time) {
	r.CancellAt = &at
}

// IsCanceled reports whether a cancellation timestamp has been recorded.
func (r *Reservation) IsCanceled() bool {
	return r.CancellAt != nil
}

// IsActiveAndUpcoming reports whether the reservation is accepted or paid,
// not canceled, and its seance starts after ref. The Seance relation must
// be loaded.
func (r *Reservation) IsActiveAndUpcoming(ref time.Time) bool {
	if r.Status != ReservationStatusAccepted && r.Status != ReservationStatusPaid {
		return false
	}
	if r.CancellAt != nil {
		return false
	}
	return r.Seance.StartAt.After(ref)
}
