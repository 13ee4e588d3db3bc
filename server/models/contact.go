package models

type Contact struct {
	UUIDModel
	OwnerID      string `json:"owner_id" gorm:"not null;index"`
	Name         string `json:"name" validate:"required" gorm:"not null"`
	Email        string `json:"email,omitempty" validate:"omitempty,email"`
	Phone        string `json:"phone,omitempty"`
	LinkedUserID string `json:"linked_user_id,omitempty"`
}
