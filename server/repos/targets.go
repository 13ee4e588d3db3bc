package repos

import (
	"encoding/json"
	"time"

	"github.com/nudgelabs/nudged/server/apperrors"
	"github.com/nudgelabs/nudged/server/models"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type CreateTargetDto struct {
	Name              string          `json:"name" validate:"required"`
	RecurrencePattern json.RawMessage `json:"recurrence_pattern"`
	ContactIDs        []string        `json:"contact_ids"`
}

var targetUpdatableFields = map[string]bool{
	"name":               true,
	"recurrence_pattern": true,
	"image_uri":          true,
}

type TargetsRepo struct {
	db *gorm.DB
}

func NewTargetsRepo(db *gorm.DB) *TargetsRepo {
	return &TargetsRepo{db: db}
}

// List returns the owner's targets, newest first, with their contact joins
// flattened. An empty owner id short-circuits to an empty list.
func (r *TargetsRepo) List(ownerID string) ([]TargetWithContacts, error) {
	if ownerID == "" {
		return []TargetWithContacts{}, nil
	}

	targets := []models.NudgeTarget{}
	err := r.db.Preload("TargetContacts.Contact").
		Where("owner_id = ?", ownerID).Order("created_at desc").Find(&targets).Error
	if err != nil {
		return nil, apperrors.FromDB(err)
	}

	return projectTargets(targets), nil
}

func (r *TargetsRepo) Get(id string) (*TargetWithContacts, error) {
	target := models.NudgeTarget{}
	err := r.db.Preload("TargetContacts.Contact").First(&target, "id = ?", id).Error
	if err != nil {
		return nil, apperrors.FromDBAs(err, "nudge target")
	}

	projected := projectTarget(target)
	return &projected, nil
}

// Create inserts the target row and its contact joins in one transaction,
// so a bad contact id can't leave an orphaned target behind.
// The returned target carries no contact relations; callers re-fetch via Get.
func (r *TargetsRepo) Create(actorID string, dto CreateTargetDto) (*models.NudgeTarget, error) {
	if actorID == "" {
		return nil, apperrors.Authentication("")
	}

	target := models.NudgeTarget{
		OwnerID:           actorID,
		Name:              dto.Name,
		RecurrencePattern: datatypes.JSON(dto.RecurrencePattern),
	}

	err := r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&target).Error; err != nil {
			return err
		}

		if len(dto.ContactIDs) == 0 {
			return nil
		}

		joins := make([]models.NudgeTargetContact, 0, len(dto.ContactIDs))
		for _, contactID := range dto.ContactIDs {
			joins = append(joins, models.NudgeTargetContact{
				NudgeTargetID: target.ID,
				ContactID:     contactID,
			})
		}

		return tx.Create(&joins).Error
	})
	if err != nil {
		return nil, apperrors.FromDB(err)
	}

	return &target, nil
}

func (r *TargetsRepo) Update(id string, fields map[string]interface{}) (*models.NudgeTarget, error) {
	removeUnknownFields(fields, targetUpdatableFields)
	if len(fields) == 0 {
		return nil, apperrors.Validation("no updatable fields provided")
	}
	fields["updated_at"] = time.Now()

	res := r.db.Model(&models.NudgeTarget{}).Where("id = ?", id).Updates(fields)
	if res.Error != nil {
		return nil, apperrors.FromDB(res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, apperrors.NotFound("nudge target")
	}

	target := models.NudgeTarget{}
	if err := r.db.First(&target, "id = ?", id).Error; err != nil {
		return nil, apperrors.FromDBAs(err, "nudge target")
	}

	return &target, nil
}

func (r *TargetsRepo) Delete(id string) error {
	err := r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("nudge_target_id = ?", id).Delete(&models.NudgeTargetContact{}).Error; err != nil {
			return err
		}

		res := tx.Delete(&models.NudgeTarget{}, "id = ?", id)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return apperrors.NotFound("nudge target")
		}

		return nil
	})

	return apperrors.FromDB(err)
}

// AttachContact adds a contact to a target. Attaching the same contact
// twice surfaces as DUPLICATE via the composite unique index.
func (r *TargetsRepo) AttachContact(targetID, contactID string) error {
	err := r.db.Create(&models.NudgeTargetContact{
		NudgeTargetID: targetID,
		ContactID:     contactID,
	}).Error

	return apperrors.FromDB(err)
}

// DetachContact removes the join row by its natural key. Deleting zero rows
// is not an error, so detach is idempotent.
func (r *TargetsRepo) DetachContact(targetID, contactID string) error {
	err := r.db.Where("nudge_target_id = ? AND contact_id = ?", targetID, contactID).
		Delete(&models.NudgeTargetContact{}).Error

	return apperrors.FromDB(err)
}

// WithRecurrence returns targets that have a recurrence pattern set,
// for the dispatch scheduler.
func (r *TargetsRepo) WithRecurrence() ([]models.NudgeTarget, error) {
	targets := []models.NudgeTarget{}
	err := r.db.Where("recurrence_pattern IS NOT NULL").Find(&targets).Error
	if err != nil {
		return nil, apperrors.FromDB(err)
	}

	return targets, nil
}
