package repos

import (
	"time"

	"github.com/nudgelabs/nudged/server/apperrors"
	"github.com/nudgelabs/nudged/server/models"
	"gorm.io/gorm"
)

type CreateContactDto struct {
	Name         string `json:"name" validate:"required"`
	Email        string `json:"email" validate:"omitempty,email"`
	Phone        string `json:"phone" validate:"omitempty,phone_number"`
	LinkedUserID string `json:"linked_user_id"`
}

var contactUpdatableFields = map[string]bool{
	"name":           true,
	"email":          true,
	"phone":          true,
	"linked_user_id": true,
}

type ContactsRepo struct {
	db *gorm.DB
}

func NewContactsRepo(db *gorm.DB) *ContactsRepo {
	return &ContactsRepo{db: db}
}

// List returns the owner's contacts, newest first. An empty owner id
// short-circuits to an empty list without touching the database.
func (r *ContactsRepo) List(ownerID string) ([]models.Contact, error) {
	contacts := []models.Contact{}
	if ownerID == "" {
		return contacts, nil
	}

	err := r.db.Where("owner_id = ?", ownerID).Order("created_at desc").Find(&contacts).Error
	if err != nil {
		return nil, apperrors.FromDB(err)
	}

	return contacts, nil
}

func (r *ContactsRepo) Get(id string) (*models.Contact, error) {
	contact := models.Contact{}
	err := r.db.First(&contact, "id = ?", id).Error
	if err != nil {
		return nil, apperrors.FromDBAs(err, "contact")
	}

	return &contact, nil
}

// ListByPhone returns every contact with the given phone number across
// owners. The SMS webhook has no owner scope, the sender is just a number.
func (r *ContactsRepo) ListByPhone(phone string) ([]models.Contact, error) {
	contacts := []models.Contact{}
	err := r.db.Where("phone = ?", phone).Find(&contacts).Error
	if err != nil {
		return nil, apperrors.FromDB(err)
	}

	return contacts, nil
}

func (r *ContactsRepo) FindByPhone(ownerID, phone string) (*models.Contact, error) {
	contact := models.Contact{}
	err := r.db.First(&contact, "owner_id = ? AND phone = ?", ownerID, phone).Error
	if err != nil {
		return nil, apperrors.FromDBAs(err, "contact")
	}

	return &contact, nil
}

func (r *ContactsRepo) Create(actorID string, dto CreateContactDto) (*models.Contact, error) {
	if actorID == "" {
		return nil, apperrors.Authentication("")
	}

	contact := models.Contact{
		OwnerID:      actorID,
		Name:         dto.Name,
		Email:        dto.Email,
		Phone:        dto.Phone,
		LinkedUserID: dto.LinkedUserID,
	}

	err := r.db.Create(&contact).Error
	if err != nil {
		return nil, apperrors.FromDB(err)
	}

	return &contact, nil
}

// Update overwrites the given fields plus updated_at, and returns the
// updated row or NOT_FOUND when the id doesn't exist.
func (r *ContactsRepo) Update(id string, fields map[string]interface{}) (*models.Contact, error) {
	removeUnknownFields(fields, contactUpdatableFields)
	if len(fields) == 0 {
		return nil, apperrors.Validation("no updatable fields provided")
	}
	fields["updated_at"] = time.Now()

	res := r.db.Model(&models.Contact{}).Where("id = ?", id).Updates(fields)
	if res.Error != nil {
		return nil, apperrors.FromDB(res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, apperrors.NotFound("contact")
	}

	return r.Get(id)
}

// Delete removes the contact, reporting NOT_FOUND when no row matched.
func (r *ContactsRepo) Delete(id string) error {
	res := r.db.Delete(&models.Contact{}, "id = ?", id)
	if res.Error != nil {
		return apperrors.FromDB(res.Error)
	}
	if res.RowsAffected == 0 {
		return apperrors.NotFound("contact")
	}

	return nil
}

func removeUnknownFields(args map[string]interface{}, validFields map[string]bool) {
	for key := range args {
		if !validFields[key] {
			delete(args, key)
		}
	}
}
