package models

import (
	"time"

	"gorm.io/gorm"
)

// Seance represents a tutoring slot offered by a tutor
type Seance struct {
	ID        uint           `gorm:"primarykey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`

	TuteurID    uint      `gorm:"index" json:"tuteur_id"`
	Matiere     string    `gorm:"type:varchar(255)" json:"matiere"`
	StartAt     time.Time `gorm:"index" json:"start_at"`
	DurationMin int       `gorm:"default:60" json:"duration_min"`
	Capacity    int       `gorm:"default:1" json:"capacity"`

	// Relationships
	Tuteur       User          `gorm:"foreignKey:TuteurID" json:"tuteur,omitempty"`
	Reservations []Reservation `gorm:"foreignKey:SeanceID" json:"reservations,omitempty"`
}
