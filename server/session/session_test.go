package session

import (
	"testing"
	"time"

	"github.com/nudgelabs/nudged/server/auth"
	"github.com/nudgelabs/nudged/server/auth/key"
	"github.com/nudgelabs/nudged/server/logger"
	"github.com/nudgelabs/nudged/server/models"
	"github.com/nudgelabs/nudged/server/repos"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestManager(t *testing.T) (*Manager, *auth.Service) {
	t.Helper()

	db, err := models.OpenTest()
	require.NoError(t, err)

	profiles := repos.NewProfilesRepo(db)
	keyPair, err := key.NewEphemeralKeyPair()
	require.NoError(t, err)

	authService := auth.NewService(profiles, keyPair)
	return NewManager(authService, profiles, logger.NewNopLogger()), authService
}

func TestManagerStartsSignedOut(t *testing.T) {
	manager, _ := newTestManager(t)

	assert.True(t, manager.IsLoading())

	manager.Start()
	defer manager.Stop()

	assert.False(t, manager.IsLoading())
	assert.False(t, manager.IsAuthenticated())
	assert.Nil(t, manager.Session())
	assert.Nil(t, manager.Profile())
}

func TestManagerFollowsSignInAndSignOut(t *testing.T) {
	manager, authService := newTestManager(t)
	manager.Start()
	defer manager.Stop()

	session, err := authService.SignUp(auth.SignUpDto{
		Email:     "ada@example.com",
		Password:  "s3cret-password",
		FirstName: "Ada",
	})
	require.NoError(t, err)

	assert.Eventually(t, func() bool {
		return manager.IsAuthenticated() && manager.Profile() != nil
	}, 2*time.Second, 10*time.Millisecond)

	assert.Equal(t, session.UserID, manager.Session().UserID)
	assert.Equal(t, "Ada", manager.Profile().FirstName)
	assert.False(t, manager.IsLoading())

	authService.SignOut()

	assert.Eventually(t, func() bool {
		return !manager.IsAuthenticated() && manager.Profile() == nil
	}, 2*time.Second, 10*time.Millisecond)
}

func TestManagerStopDetaches(t *testing.T) {
	manager, authService := newTestManager(t)
	manager.Start()
	manager.Stop()

	_, err := authService.SignUp(auth.SignUpDto{Email: "ada@example.com", Password: "s3cret-password"})
	require.NoError(t, err)

	// Events after Stop are not applied.
	time.Sleep(50 * time.Millisecond)
	assert.False(t, manager.IsAuthenticated())
}
