package repos

import (
	"time"

	"github.com/nudgelabs/nudged/server/apperrors"
	"github.com/nudgelabs/nudged/server/models"
	"gorm.io/gorm"
)

var profileUpdatableFields = map[string]bool{
	"email":      true,
	"first_name": true,
	"last_name":  true,
}

type ProfilesRepo struct {
	db *gorm.DB
}

func NewProfilesRepo(db *gorm.DB) *ProfilesRepo {
	return &ProfilesRepo{db: db}
}

func (r *ProfilesRepo) Get(userID string) (*models.Profile, error) {
	profile := models.Profile{}
	err := r.db.First(&profile, "id = ?", userID).Error
	if err != nil {
		return nil, apperrors.FromDBAs(err, "profile")
	}

	return &profile, nil
}

func (r *ProfilesRepo) FindByEmail(email string) (*models.Profile, error) {
	profile := models.Profile{}
	err := r.db.First(&profile, "email = ?", email).Error
	if err != nil {
		return nil, apperrors.FromDBAs(err, "profile")
	}

	return &profile, nil
}

// Create inserts the profile row made implicitly at signup.
func (r *ProfilesRepo) Create(profile *models.Profile) error {
	return apperrors.FromDB(r.db.Create(profile).Error)
}

func (r *ProfilesRepo) Update(userID string, fields map[string]interface{}) (*models.Profile, error) {
	removeUnknownFields(fields, profileUpdatableFields)
	if len(fields) == 0 {
		return nil, apperrors.Validation("no updatable fields provided")
	}
	fields["updated_at"] = time.Now()

	res := r.db.Model(&models.Profile{}).Where("id = ?", userID).Updates(fields)
	if res.Error != nil {
		return nil, apperrors.FromDB(res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, apperrors.NotFound("profile")
	}

	return r.Get(userID)
}
