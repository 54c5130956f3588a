package models

import (
	"time"

	"gorm.io/gorm"
)

// UserRole represents the role of a user on the platform
type UserRole string

const (
	UserRoleStudent UserRole = "student"
	UserRoleTutor   UserRole = "tutor"
	UserRoleAdmin   UserRole = "admin"
)

// User represents a platform account (student, tutor or admin)
type User struct {
	ID        uint           `gorm:"primarykey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`

	FullName string   `gorm:"type:varchar(255)" json:"full_name"`
	Email    string   `gorm:"type:varchar(255);uniqueIndex" json:"email"`
	Role     UserRole `gorm:"type:varchar(20);default:'student'" json:"role"`

	// Relationships
	Reservations  []Reservation       `gorm:"foreignKey:ParticipantID" json:"reservations,omitempty"`
	Seances       []Seance            `gorm:"foreignKey:TuteurID" json:"seances,omitempty"`
	Notifications []InAppNotification `gorm:"foreignKey:RecipientID" json:"notifications,omitempty"`
}
