package query

import (
	"testing"

	"github.com/nudgelabs/nudged/server/cache"
	"github.com/nudgelabs/nudged/server/models"
	"github.com/nudgelabs/nudged/server/repos"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestBindings(t *testing.T) (*Bindings, *cache.Store, *repos.Registry) {
	t.Helper()

	db, err := models.OpenTest()
	require.Nil(t, err)

	registry := repos.NewRegistry(db)
	store := cache.NewStore()

	return NewBindings(registry, store), store, registry
}

func seedProfile(t *testing.T, registry *repos.Registry) *models.Profile {
	t.Helper()

	profile := &models.Profile{ID: "u1", Email: "u1@example.com", FirstName: "Jane", PasswordHash: "x"}
	require.Nil(t, registry.Profiles.Create(profile))

	return profile
}

func TestListIsServedFromCacheUntilMutation(t *testing.T) {
	bindings, _, registry := newTestBindings(t)
	owner := seedProfile(t, registry)

	_, err := bindings.Contacts.Create(owner.ID, repos.CreateContactDto{Name: "Jane"})
	require.Nil(t, err)

	first, err := bindings.Contacts.List(owner.ID)
	require.Nil(t, err)
	assert.Len(t, first, 1)

	// write behind the cache's back; the cached list must not see it
	_, err = registry.Contacts.Create(owner.ID, repos.CreateContactDto{Name: "John"})
	require.Nil(t, err)

	cached, err := bindings.Contacts.List(owner.ID)
	require.Nil(t, err)
	assert.Len(t, cached, 1, "list should still come from cache")

	// a mutation through the binding invalidates and the next read refetches
	_, err = bindings.Contacts.Create(owner.ID, repos.CreateContactDto{Name: "Mary"})
	require.Nil(t, err)

	fresh, err := bindings.Contacts.List(owner.ID)
	require.Nil(t, err)
	assert.Len(t, fresh, 3)
}

func TestEmptyScopeNeverFetches(t *testing.T) {
	bindings, store, _ := newTestBindings(t)

	contacts, err := bindings.Contacts.List("")
	assert.Nil(t, err)
	assert.Empty(t, contacts)

	targets, err := bindings.Targets.List("")
	assert.Nil(t, err)
	assert.Empty(t, targets)

	profile, err := bindings.Profiles.Get("")
	assert.Nil(t, err)
	assert.Nil(t, profile)

	assert.Equal(t, 0, store.Len(), "no cache entries should have been created")
}

func TestUpdateWritesDetailKeyDirectly(t *testing.T) {
	bindings, store, registry := newTestBindings(t)
	owner := seedProfile(t, registry)

	contact, err := bindings.Contacts.Create(owner.ID, repos.CreateContactDto{Name: "Old"})
	require.Nil(t, err)

	updated, err := bindings.Contacts.Update(contact.ID, map[string]interface{}{"name": "New"})
	require.Nil(t, err)

	// the detail read must be satisfied by the direct cache write,
	// not a refetch
	value, err := store.Fetch(cache.NewKey("contacts", "detail", contact.ID), func() (interface{}, error) {
		t.Fatal("detail key should already be populated")
		return nil, nil
	})
	require.Nil(t, err)
	assert.Equal(t, updated, value)
}

func TestDeleteEvictsDetailAndInvalidatesList(t *testing.T) {
	bindings, store, registry := newTestBindings(t)
	owner := seedProfile(t, registry)

	contact, err := bindings.Contacts.Create(owner.ID, repos.CreateContactDto{Name: "Jane"})
	require.Nil(t, err)

	_, err = bindings.Contacts.Get(contact.ID)
	require.Nil(t, err)
	_, err = bindings.Contacts.List(owner.ID)
	require.Nil(t, err)

	require.Nil(t, bindings.Contacts.Delete(contact.ID))
	assert.Equal(t, 0, store.Len(), "both detail and list entries should be gone")
}

func TestAttachInvalidatesWholeTargetDomain(t *testing.T) {
	bindings, _, registry := newTestBindings(t)
	owner := seedProfile(t, registry)

	jane, err := bindings.Contacts.Create(owner.ID, repos.CreateContactDto{Name: "Jane"})
	require.Nil(t, err)
	john, err := bindings.Contacts.Create(owner.ID, repos.CreateContactDto{Name: "John"})
	require.Nil(t, err)

	target, err := bindings.Targets.Create(owner.ID, repos.CreateTargetDto{Name: "Club", ContactIDs: []string{jane.ID}})
	require.Nil(t, err)

	// warm both target shapes
	_, err = bindings.Targets.Get(target.ID)
	require.Nil(t, err)
	_, err = bindings.Targets.List(owner.ID)
	require.Nil(t, err)

	require.Nil(t, bindings.Targets.AttachContact(target.ID, john.ID))

	fetched, err := bindings.Targets.Get(target.ID)
	require.Nil(t, err)
	assert.Len(t, fetched.Contacts, 2)
	assert.True(t, fetched.IsGroup)
}

func TestDetailStampIsScopedToViewer(t *testing.T) {
	bindings, _, registry := newTestBindings(t)
	voter := seedProfile(t, registry)
	require.Nil(t, registry.Profiles.Create(&models.Profile{ID: "u2", Email: "u2@example.com", PasswordHash: "x"}))

	nudge, err := bindings.Nudges.Create(voter.ID, repos.CreateNudgeDto{Text: "Call mom"})
	require.Nil(t, err)
	require.Nil(t, bindings.Nudges.Upvote(nudge.ID, voter.ID))

	// The voter warms the detail cache with their own stamp.
	mine, err := bindings.Nudges.Get(nudge.ID, voter.ID)
	require.Nil(t, err)
	assert.True(t, mine.UserHasUpvoted)

	theirs, err := bindings.Nudges.Get(nudge.ID, "u2")
	require.Nil(t, err)
	assert.False(t, theirs.UserHasUpvoted, "one viewer's stamp must not leak to another")
	assert.Equal(t, 1, theirs.UpvotesCount)
}

func TestUpvoteRefreshesCreatorsOwnList(t *testing.T) {
	bindings, _, registry := newTestBindings(t)
	user := seedProfile(t, registry)

	nudge, err := bindings.Nudges.Create(user.ID, repos.CreateNudgeDto{Text: "Call mom"})
	require.Nil(t, err)

	mine, err := bindings.Nudges.ListByCreator(user.ID)
	require.Nil(t, err)
	require.Len(t, mine, 1)
	assert.False(t, mine[0].UserHasUpvoted)

	require.Nil(t, bindings.Nudges.Upvote(nudge.ID, user.ID))

	mine, err = bindings.Nudges.ListByCreator(user.ID)
	require.Nil(t, err)
	require.Len(t, mine, 1)
	assert.True(t, mine[0].UserHasUpvoted)
	assert.Equal(t, 1, mine[0].UpvotesCount)
}

func TestUpvoteInvalidatesFeed(t *testing.T) {
	bindings, _, registry := newTestBindings(t)
	user := seedProfile(t, registry)

	nudge, err := bindings.Nudges.Create(user.ID, repos.CreateNudgeDto{Text: "Call mom"})
	require.Nil(t, err)

	feed, err := bindings.Nudges.List(user.ID)
	require.Nil(t, err)
	assert.False(t, feed[0].UserHasUpvoted)

	require.Nil(t, bindings.Nudges.Upvote(nudge.ID, user.ID))

	feed, err = bindings.Nudges.List(user.ID)
	require.Nil(t, err)
	assert.True(t, feed[0].UserHasUpvoted)
	assert.Equal(t, 1, feed[0].UpvotesCount)
}
