package query

import (
	"github.com/nudgelabs/nudged/server/cache"
	"github.com/nudgelabs/nudged/server/models"
	"github.com/nudgelabs/nudged/server/repos"
)

type ContactQueries struct {
	repo  *repos.ContactsRepo
	store *cache.Store
}

func contactListKey(ownerID string) cache.Key {
	return cache.NewKey(contactsDomain, "list", ownerID)
}

func contactDetailKey(id string) cache.Key {
	return cache.NewKey(contactsDomain, "detail", id)
}

// List serves the owner's contacts through the cache. An empty owner id
// never issues a fetch.
func (q *ContactQueries) List(ownerID string) ([]models.Contact, error) {
	if ownerID == "" {
		return []models.Contact{}, nil
	}

	value, err := q.store.Fetch(contactListKey(ownerID), func() (interface{}, error) {
		return q.repo.List(ownerID)
	})
	if err != nil {
		return nil, err
	}

	return value.([]models.Contact), nil
}

func (q *ContactQueries) Get(id string) (*models.Contact, error) {
	if id == "" {
		return nil, nil
	}

	value, err := q.store.Fetch(contactDetailKey(id), func() (interface{}, error) {
		return q.repo.Get(id)
	})
	if err != nil {
		return nil, err
	}

	return value.(*models.Contact), nil
}

func (q *ContactQueries) Create(actorID string, dto repos.CreateContactDto) (*models.Contact, error) {
	contact, err := q.repo.Create(actorID, dto)
	if err != nil {
		return nil, err
	}

	q.store.Invalidate(cache.NewKey(contactsDomain, "list"))
	return contact, nil
}

// Update writes the returned entity straight to its detail key and
// invalidates the list subtree.
func (q *ContactQueries) Update(id string, fields map[string]interface{}) (*models.Contact, error) {
	contact, err := q.repo.Update(id, fields)
	if err != nil {
		return nil, err
	}

	q.store.Set(contactDetailKey(contact.ID), contact)
	q.store.Invalidate(cache.NewKey(contactsDomain, "list"))
	return contact, nil
}

// Delete invalidates the list subtree and evicts the detail key entirely.
func (q *ContactQueries) Delete(id string) error {
	if err := q.repo.Delete(id); err != nil {
		return err
	}

	q.store.Invalidate(cache.NewKey(contactsDomain, "list"))
	q.store.Remove(contactDetailKey(id))
	return nil
}
