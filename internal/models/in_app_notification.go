package models

import (
	"time"
)

// Notification type tags
const (
	NotificationTypePaymentReceived = "payment_received"
)

// InAppNotification surfaces a logical event to a recipient at most once.
// The (recipient, event key) pair is unique; the service layer checks for
// an existing row before inserting so a duplicate event is a no-op rather
// than a constraint violation.
type InAppNotification struct {
	ID uint `gorm:"primarykey" json:"id"`

	RecipientID uint           `gorm:"not null;uniqueIndex:uniq_notif_recipient_event,priority:1;index:idx_notif_recipient_read,priority:1" json:"recipient_id"`
	Type        string         `gorm:"type:varchar(60)" json:"type"`
	EventKey    string         `gorm:"type:varchar(191);not null;uniqueIndex:uniq_notif_recipient_event,priority:2" json:"event_key"`
	Title       string         `gorm:"type:varchar(180)" json:"title"`
	Message     string         `gorm:"type:text" json:"message"`
	Data        map[string]any `gorm:"serializer:json" json:"data,omitempty"`

	IsRead    bool       `gorm:"default:false;index:idx_notif_recipient_read,priority:2" json:"is_read"`
	CreatedAt time.Time  `gorm:"index" json:"created_at"`
	ReadAt    *time.Time `json:"read_at,omitempty"`

	// Relationships
	Recipient User `gorm:"foreignKey:RecipientID;constraint:OnDelete:CASCADE" json:"recipient,omitempty"`
}

// MarkRead flips the read flag. Calling it on an already-read notification
// keeps the original ReadAt.
func (n *InAppNotification) MarkRead(at time.Time) {
	if n.IsRead {
		return
	}
	n.IsRead = true
	n.ReadAt = &at
}
