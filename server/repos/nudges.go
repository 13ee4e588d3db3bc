package repos

import (
	"time"

	"github.com/nudgelabs/nudged/server/apperrors"
	"github.com/nudgelabs/nudged/server/models"
	"gorm.io/gorm"
)

type CreateNudgeDto struct {
	Text          string  `json:"text" validate:"required"`
	NudgeTargetID *string `json:"nudge_target_id"`
}

var nudgeUpdatableFields = map[string]bool{
	"text": true,
}

type NudgesRepo struct {
	db *gorm.DB
}

func NewNudgesRepo(db *gorm.DB) *NudgesRepo {
	return &NudgesRepo{db: db}
}

// List returns every nudge, newest first, with the creator's name flattened
// in. When a viewer id is given, a second query over that viewer's upvote
// rows (restricted to the listed nudges) stamps user_has_upvoted; without a
// viewer everything is stamped false.
func (r *NudgesRepo) List(viewerID string) ([]NudgeWithDetails, error) {
	nudges := []models.Nudge{}
	err := r.db.Preload("CreatorProfile").Order("created_at desc").Find(&nudges).Error
	if err != nil {
		return nil, apperrors.FromDB(err)
	}

	upvotedIDs, err := r.upvotedNudgeIDs(viewerID, nudges)
	if err != nil {
		return nil, err
	}

	return projectNudges(nudges, upvotedIDs), nil
}

// ListByCreator returns the given user's own nudges, newest first.
// An empty user id short-circuits to an empty list.
func (r *NudgesRepo) ListByCreator(userID string) ([]NudgeWithDetails, error) {
	if userID == "" {
		return []NudgeWithDetails{}, nil
	}

	nudges := []models.Nudge{}
	err := r.db.Preload("CreatorProfile").
		Where("created_by = ?", userID).Order("created_at desc").Find(&nudges).Error
	if err != nil {
		return nil, apperrors.FromDB(err)
	}

	upvotedIDs, err := r.upvotedNudgeIDs(userID, nudges)
	if err != nil {
		return nil, err
	}

	return projectNudges(nudges, upvotedIDs), nil
}

func (r *NudgesRepo) Get(id uint, viewerID string) (*NudgeWithDetails, error) {
	nudge := models.Nudge{}
	err := r.db.Preload("CreatorProfile").First(&nudge, "id = ?", id).Error
	if err != nil {
		return nil, apperrors.FromDBAs(err, "nudge")
	}

	upvoted := false
	if viewerID != "" {
		var count int64
		err = r.db.Model(&models.NudgeUpvote{}).
			Where("nudge_id = ? AND user_id = ?", id, viewerID).Count(&count).Error
		if err != nil {
			return nil, apperrors.FromDB(err)
		}
		upvoted = count > 0
	}

	projected := projectNudge(nudge, upvoted)
	return &projected, nil
}

// Create inserts the nudge and, when a target is referenced, the per-contact
// fan-out records, in one transaction. The returned nudge carries no
// relations; callers re-fetch via Get/List.
func (r *NudgesRepo) Create(actorID string, dto CreateNudgeDto) (*models.Nudge, error) {
	if actorID == "" {
		return nil, apperrors.Authentication("")
	}

	nudge := models.Nudge{
		CreatedBy:     actorID,
		Text:          dto.Text,
		UpvotesCount:  0,
		NudgeTargetID: dto.NudgeTargetID,
	}

	err := r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&nudge).Error; err != nil {
			return err
		}

		if dto.NudgeTargetID == nil {
			return nil
		}

		joins := []models.NudgeTargetContact{}
		err := tx.Where("nudge_target_id = ?", *dto.NudgeTargetID).Find(&joins).Error
		if err != nil {
			return err
		}

		if len(joins) == 0 {
			return nil
		}

		sends := make([]models.NudgeSend, 0, len(joins))
		for _, join := range joins {
			sends = append(sends, models.NudgeSend{
				NudgeID:   nudge.ID,
				ContactID: join.ContactID,
			})
		}

		return tx.Create(&sends).Error
	})
	if err != nil {
		return nil, apperrors.FromDB(err)
	}

	return &nudge, nil
}

func (r *NudgesRepo) Update(id uint, fields map[string]interface{}) (*models.Nudge, error) {
	removeUnknownFields(fields, nudgeUpdatableFields)
	if len(fields) == 0 {
		return nil, apperrors.Validation("no updatable fields provided")
	}
	fields["updated_at"] = time.Now()

	res := r.db.Model(&models.Nudge{}).Where("id = ?", id).Updates(fields)
	if res.Error != nil {
		return nil, apperrors.FromDB(res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, apperrors.NotFound("nudge")
	}

	nudge := models.Nudge{}
	if err := r.db.First(&nudge, "id = ?", id).Error; err != nil {
		return nil, apperrors.FromDBAs(err, "nudge")
	}

	return &nudge, nil
}

func (r *NudgesRepo) Delete(id uint) error {
	err := r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("nudge_id = ?", id).Delete(&models.NudgeUpvote{}).Error; err != nil {
			return err
		}
		if err := tx.Where("nudge_id = ?", id).Delete(&models.NudgeSend{}).Error; err != nil {
			return err
		}

		res := tx.Delete(&models.Nudge{}, "id = ?", id)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return apperrors.NotFound("nudge")
		}

		return nil
	})

	return apperrors.FromDB(err)
}

// Upvote records one upvote for (nudge, user) and bumps the denormalized
// counter in the same transaction. A second upvote by the same user
// surfaces as DUPLICATE via the composite unique index.
func (r *NudgesRepo) Upvote(nudgeID uint, userID string) error {
	if userID == "" {
		return apperrors.Authentication("")
	}

	err := r.db.Transaction(func(tx *gorm.DB) error {
		err := tx.Create(&models.NudgeUpvote{NudgeID: nudgeID, UserID: userID}).Error
		if err != nil {
			return err
		}

		return tx.Model(&models.Nudge{}).Where("id = ?", nudgeID).
			UpdateColumn("upvotes_count", gorm.Expr("upvotes_count + 1")).Error
	})

	return apperrors.FromDB(err)
}

// RemoveUpvote deletes the (nudge, user) upvote row if present; removing an
// upvote that doesn't exist is a no-op. The counter only moves when a row
// was actually deleted.
func (r *NudgesRepo) RemoveUpvote(nudgeID uint, userID string) error {
	if userID == "" {
		return apperrors.Authentication("")
	}

	err := r.db.Transaction(func(tx *gorm.DB) error {
		res := tx.Where("nudge_id = ? AND user_id = ?", nudgeID, userID).Delete(&models.NudgeUpvote{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return nil
		}

		return tx.Model(&models.Nudge{}).Where("id = ? AND upvotes_count > 0", nudgeID).
			UpdateColumn("upvotes_count", gorm.Expr("upvotes_count - 1")).Error
	})

	return apperrors.FromDB(err)
}

// UnsentSends returns fan-out records the delivery worker has yet to pick up.
func (r *NudgesRepo) UnsentSends(limit int) ([]models.NudgeSend, error) {
	sends := []models.NudgeSend{}
	err := r.db.Where("sent_at IS NULL").Order("created_at").Limit(limit).Find(&sends).Error
	if err != nil {
		return nil, apperrors.FromDB(err)
	}

	return sends, nil
}

func (r *NudgesRepo) GetSend(id string) (*models.NudgeSend, error) {
	send := models.NudgeSend{}
	err := r.db.First(&send, "id = ?", id).Error
	if err != nil {
		return nil, apperrors.FromDBAs(err, "nudge send")
	}

	return &send, nil
}

func (r *NudgesRepo) MarkSendDelivered(id string) error {
	now := time.Now()
	res := r.db.Model(&models.NudgeSend{}).Where("id = ?", id).Update("sent_at", &now)
	if res.Error != nil {
		return apperrors.FromDB(res.Error)
	}
	if res.RowsAffected == 0 {
		return apperrors.NotFound("nudge send")
	}

	return nil
}

// CompleteSendForContact marks the contact's most recent delivered-but-open
// send as completed; used when the contact replies to the SMS.
func (r *NudgesRepo) CompleteSendForContact(contactID string) error {
	send := models.NudgeSend{}
	err := r.db.Where("contact_id = ? AND sent_at IS NOT NULL AND completed_at IS NULL", contactID).
		Order("sent_at desc").First(&send).Error
	if err != nil {
		return apperrors.FromDBAs(err, "nudge send")
	}

	now := time.Now()
	return apperrors.FromDB(r.db.Model(&send).Update("completed_at", &now).Error)
}

func (r *NudgesRepo) upvotedNudgeIDs(viewerID string, nudges []models.Nudge) (map[uint]bool, error) {
	upvotedIDs := map[uint]bool{}
	if viewerID == "" || len(nudges) == 0 {
		return upvotedIDs, nil
	}

	nudgeIDs := make([]uint, 0, len(nudges))
	for _, nudge := range nudges {
		nudgeIDs = append(nudgeIDs, nudge.ID)
	}

	ids := []uint{}
	err := r.db.Model(&models.NudgeUpvote{}).
		Where("user_id = ? AND nudge_id IN ?", viewerID, nudgeIDs).
		Pluck("nudge_id", &ids).Error
	if err != nil {
		return nil, apperrors.FromDB(err)
	}

	for _, id := range ids {
		upvotedIDs[id] = true
	}

	return upvotedIDs, nil
}
