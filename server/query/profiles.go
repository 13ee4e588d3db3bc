package query

import (
	"github.com/nudgelabs/nudged/server/cache"
	"github.com/nudgelabs/nudged/server/models"
	"github.com/nudgelabs/nudged/server/repos"
)

type ProfileQueries struct {
	repo  *repos.ProfilesRepo
	store *cache.Store
}

func profileDetailKey(userID string) cache.Key {
	return cache.NewKey(profilesDomain, "detail", userID)
}

func (q *ProfileQueries) Get(userID string) (*models.Profile, error) {
	if userID == "" {
		return nil, nil
	}

	value, err := q.store.Fetch(profileDetailKey(userID), func() (interface{}, error) {
		return q.repo.Get(userID)
	})
	if err != nil {
		return nil, err
	}

	return value.(*models.Profile), nil
}

func (q *ProfileQueries) Update(userID string, fields map[string]interface{}) (*models.Profile, error) {
	profile, err := q.repo.Update(userID, fields)
	if err != nil {
		return nil, err
	}

	q.store.Set(profileDetailKey(userID), profile)
	return profile, nil
}
