package models

import "gorm.io/datatypes"

// NudgeTarget is a named person-or-group the owner intends to reach out to.
// Whether it is a group is never stored; it's derived from the contact count.
type NudgeTarget struct {
	UUIDModel
	OwnerID           string         `json:"owner_id" gorm:"not null;index"`
	Name              string         `json:"name" validate:"required" gorm:"not null"`
	RecurrencePattern datatypes.JSON `json:"recurrence_pattern,omitempty"`
	ImageURI          string         `json:"image_uri,omitempty"`

	TargetContacts []NudgeTargetContact `json:"-" gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;"`
}

// NudgeTargetContact joins a target to one of its contacts. The composite
// unique index is what turns a duplicate attach into a DUPLICATE error.
type NudgeTargetContact struct {
	UUIDModel
	NudgeTargetID string `json:"nudge_target_id" gorm:"not null;uniqueIndex:idx_target_contact"`
	ContactID     string `json:"contact_id" gorm:"not null;uniqueIndex:idx_target_contact"`

	Contact *Contact `json:"contact,omitempty" gorm:"constraint:OnDelete:CASCADE;"`
}
