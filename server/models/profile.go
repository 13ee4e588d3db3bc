package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Profile is the per-user record created implicitly at signup. Its id doubles
// as the auth identity, so there is no separate created_at column.
type Profile struct {
	ID           string    `json:"id" gorm:"primaryKey"`
	Email        string    `json:"email" validate:"required,email" gorm:"not null;unique"`
	FirstName    string    `json:"first_name"`
	LastName     string    `json:"last_name"`
	PasswordHash string    `json:"-" gorm:"not null"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func (profile *Profile) BeforeCreate(tx *gorm.DB) error {
	if profile.ID == "" {
		profile.ID = uuid.NewString()
	}
	return nil
}
