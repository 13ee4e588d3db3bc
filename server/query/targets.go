package query

import (
	"github.com/nudgelabs/nudged/server/cache"
	"github.com/nudgelabs/nudged/server/models"
	"github.com/nudgelabs/nudged/server/repos"
)

type TargetQueries struct {
	repo  *repos.TargetsRepo
	store *cache.Store
}

func targetListKey(ownerID string) cache.Key {
	return cache.NewKey(targetsDomain, "list", ownerID)
}

func targetDetailKey(id string) cache.Key {
	return cache.NewKey(targetsDomain, "detail", id)
}

func (q *TargetQueries) List(ownerID string) ([]repos.TargetWithContacts, error) {
	if ownerID == "" {
		return []repos.TargetWithContacts{}, nil
	}

	value, err := q.store.Fetch(targetListKey(ownerID), func() (interface{}, error) {
		return q.repo.List(ownerID)
	})
	if err != nil {
		return nil, err
	}

	return value.([]repos.TargetWithContacts), nil
}

func (q *TargetQueries) Get(id string) (*repos.TargetWithContacts, error) {
	if id == "" {
		return nil, nil
	}

	value, err := q.store.Fetch(targetDetailKey(id), func() (interface{}, error) {
		return q.repo.Get(id)
	})
	if err != nil {
		return nil, err
	}

	return value.(*repos.TargetWithContacts), nil
}

func (q *TargetQueries) Create(actorID string, dto repos.CreateTargetDto) (*models.NudgeTarget, error) {
	target, err := q.repo.Create(actorID, dto)
	if err != nil {
		return nil, err
	}

	q.store.Invalidate(cache.NewKey(targetsDomain, "list"))
	return target, nil
}

func (q *TargetQueries) Update(id string, fields map[string]interface{}) (*models.NudgeTarget, error) {
	target, err := q.repo.Update(id, fields)
	if err != nil {
		return nil, err
	}

	// the update response carries no contact relations, so the detail key is
	// invalidated rather than overwritten with a thinner shape
	q.store.Remove(targetDetailKey(target.ID))
	q.store.Invalidate(cache.NewKey(targetsDomain, "list"))
	return target, nil
}

func (q *TargetQueries) Delete(id string) error {
	if err := q.repo.Delete(id); err != nil {
		return err
	}

	q.store.Invalidate(cache.NewKey(targetsDomain, "list"))
	q.store.Remove(targetDetailKey(id))
	return nil
}

// AttachContact and DetachContact change join rows that feed both the list
// and detail shapes, so they invalidate the whole domain subtree.
func (q *TargetQueries) AttachContact(targetID, contactID string) error {
	if err := q.repo.AttachContact(targetID, contactID); err != nil {
		return err
	}

	q.store.Invalidate(cache.NewKey(targetsDomain))
	return nil
}

func (q *TargetQueries) DetachContact(targetID, contactID string) error {
	if err := q.repo.DetachContact(targetID, contactID); err != nil {
		return err
	}

	q.store.Invalidate(cache.NewKey(targetsDomain))
	return nil
}
