package query

import (
	"fmt"

	"github.com/nudgelabs/nudged/server/cache"
	"github.com/nudgelabs/nudged/server/models"
	"github.com/nudgelabs/nudged/server/repos"
)

type NudgeQueries struct {
	repo  *repos.NudgesRepo
	store *cache.Store
}

// The community feed is cached per viewer, since the upvote
// stamps differ between viewers.
func nudgeListKey(viewerID string) cache.Key {
	return cache.NewKey(nudgesDomain, "list", viewerID)
}

// Detail entries are keyed per viewer as well, since the cached shape
// carries that viewer's upvote stamp. Mutations invalidate the whole
// per-nudge subtree via nudgeDetailPrefix.
func nudgeDetailKey(id uint, viewerID string) cache.Key {
	return cache.NewKey(nudgesDomain, "detail", fmt.Sprint(id), viewerID)
}

func nudgeDetailPrefix(id uint) cache.Key {
	return cache.NewKey(nudgesDomain, "detail", fmt.Sprint(id))
}

func nudgeUserKey(userID string) cache.Key {
	return cache.NewKey(nudgesDomain, "user", userID)
}

// List serves the community feed. Unlike owner-scoped lists, an empty
// viewer id still fetches; it just stamps user_has_upvoted false.
func (q *NudgeQueries) List(viewerID string) ([]repos.NudgeWithDetails, error) {
	value, err := q.store.Fetch(nudgeListKey(viewerID), func() (interface{}, error) {
		return q.repo.List(viewerID)
	})
	if err != nil {
		return nil, err
	}

	return value.([]repos.NudgeWithDetails), nil
}

func (q *NudgeQueries) ListByCreator(userID string) ([]repos.NudgeWithDetails, error) {
	if userID == "" {
		return []repos.NudgeWithDetails{}, nil
	}

	value, err := q.store.Fetch(nudgeUserKey(userID), func() (interface{}, error) {
		return q.repo.ListByCreator(userID)
	})
	if err != nil {
		return nil, err
	}

	return value.([]repos.NudgeWithDetails), nil
}

func (q *NudgeQueries) Get(id uint, viewerID string) (*repos.NudgeWithDetails, error) {
	if id == 0 {
		return nil, nil
	}

	value, err := q.store.Fetch(nudgeDetailKey(id, viewerID), func() (interface{}, error) {
		return q.repo.Get(id, viewerID)
	})
	if err != nil {
		return nil, err
	}

	return value.(*repos.NudgeWithDetails), nil
}

func (q *NudgeQueries) Create(actorID string, dto repos.CreateNudgeDto) (*models.Nudge, error) {
	nudge, err := q.repo.Create(actorID, dto)
	if err != nil {
		return nil, err
	}

	q.store.Invalidate(cache.NewKey(nudgesDomain, "list"))
	q.store.Invalidate(nudgeUserKey(actorID))
	return nudge, nil
}

func (q *NudgeQueries) Update(id uint, fields map[string]interface{}) (*models.Nudge, error) {
	nudge, err := q.repo.Update(id, fields)
	if err != nil {
		return nil, err
	}

	// detail shape carries viewer stamps the bare row doesn't, so invalidate
	q.store.Invalidate(nudgeDetailPrefix(nudge.ID))
	q.store.Invalidate(cache.NewKey(nudgesDomain, "list"))
	q.store.Invalidate(nudgeUserKey(nudge.CreatedBy))
	return nudge, nil
}

func (q *NudgeQueries) Delete(id uint) error {
	if err := q.repo.Delete(id); err != nil {
		return err
	}

	q.store.Invalidate(cache.NewKey(nudgesDomain, "list"))
	q.store.Invalidate(cache.NewKey(nudgesDomain, "user"))
	q.store.Invalidate(nudgeDetailPrefix(id))
	return nil
}

// Upvotes change the count every viewer sees and the stamp the voter sees,
// so both list flavors and the detail subtree go stale. The creator's own
// list is cached under their id, not the voter's, hence the prefix-wide
// user invalidation.
func (q *NudgeQueries) Upvote(nudgeID uint, userID string) error {
	if err := q.repo.Upvote(nudgeID, userID); err != nil {
		return err
	}

	q.store.Invalidate(cache.NewKey(nudgesDomain, "list"))
	q.store.Invalidate(cache.NewKey(nudgesDomain, "user"))
	q.store.Invalidate(nudgeDetailPrefix(nudgeID))
	return nil
}

func (q *NudgeQueries) RemoveUpvote(nudgeID uint, userID string) error {
	if err := q.repo.RemoveUpvote(nudgeID, userID); err != nil {
		return err
	}

	q.store.Invalidate(cache.NewKey(nudgesDomain, "list"))
	q.store.Invalidate(cache.NewKey(nudgesDomain, "user"))
	q.store.Invalidate(nudgeDetailPrefix(nudgeID))
	return nil
}
