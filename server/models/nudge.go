package models

import "time"

type Nudge struct {
	ID            uint      `json:"id" gorm:"primarykey"`
	CreatedBy     string    `json:"created_by" gorm:"index"`
	Text          string    `json:"text" validate:"required"`
	UpvotesCount  int       `json:"upvotes_count"`
	NudgeTargetID *string   `json:"nudge_target_id,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`

	CreatorProfile *Profile `json:"creator_profile,omitempty" gorm:"foreignKey:CreatedBy"`
}

// NudgeUpvote records one upvote per (user, nudge) pair,
// enforced by the composite unique index.
type NudgeUpvote struct {
	ID        uint      `json:"id" gorm:"primarykey"`
	NudgeID   uint      `json:"nudge_id" gorm:"not null;uniqueIndex:idx_nudge_user"`
	UserID    string    `json:"user_id" gorm:"not null;uniqueIndex:idx_nudge_user"`
	CreatedAt time.Time `json:"created_at"`
}

// NudgeSend is the per-contact fan-out record created alongside a nudge when
// a target is specified. The delivery worker fills in sent_at; completed_at
// is set when the contact replies to the SMS.
type NudgeSend struct {
	UUIDModel
	NudgeID     uint       `json:"nudge_id" gorm:"not null;index"`
	ContactID   string     `json:"contact_id" gorm:"not null"`
	SentAt      *time.Time `json:"sent_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`

	Contact *Contact `json:"contact,omitempty" gorm:"constraint:OnDelete:CASCADE;"`
}
