package session

import (
	"sync"

	"github.com/nudgelabs/nudged/server/auth"
	"github.com/nudgelabs/nudged/server/models"
	"github.com/nudgelabs/nudged/server/repos"
	"go.uber.org/zap"
)

// Manager tracks the current auth session and the profile behind it.
// It subscribes to auth state changes once at Start and refetches the
// profile whenever the session reference changes, so callers only ever
// read resolved state.
type Manager struct {
	authService *auth.Service
	profiles    *repos.ProfilesRepo
	logger      *zap.SugaredLogger

	mu      sync.RWMutex
	session *auth.Session
	profile *models.Profile
	loading bool

	unsubscribe func()
	done        chan struct{}
}

func NewManager(authService *auth.Service, profiles *repos.ProfilesRepo, logger *zap.SugaredLogger) *Manager {
	return &Manager{
		authService: authService,
		profiles:    profiles,
		logger:      logger,
		loading:     true,
	}
}

// Start resolves initial state and begins following auth events.
func (manager *Manager) Start() {
	events, unsubscribe := manager.authService.Subscribe()
	manager.unsubscribe = unsubscribe
	manager.done = make(chan struct{})

	// Nothing is signed in at boot; initial resolution is an empty session.
	manager.apply(nil)

	go func() {
		defer close(manager.done)
		for session := range events {
			manager.apply(session)
		}
	}()
}

// Stop detaches from the auth event stream and waits for the follower
// goroutine to drain.
func (manager *Manager) Stop() {
	if manager.unsubscribe == nil {
		return
	}
	manager.unsubscribe()
	<-manager.done
}

func (manager *Manager) apply(session *auth.Session) {
	manager.mu.Lock()
	manager.session = session
	manager.loading = session != nil
	manager.mu.Unlock()

	if session == nil {
		manager.setProfile(nil)
		return
	}

	profile, err := manager.profiles.Get(session.UserID)
	if err != nil {
		manager.logger.Errorf("session: unable to load profile for %v: %v", session.UserID, err)
		profile = nil
	}
	manager.setProfile(profile)
}

func (manager *Manager) setProfile(profile *models.Profile) {
	manager.mu.Lock()
	manager.profile = profile
	manager.loading = false
	manager.mu.Unlock()
}

func (manager *Manager) Session() *auth.Session {
	manager.mu.RLock()
	defer manager.mu.RUnlock()
	return manager.session
}

func (manager *Manager) Profile() *models.Profile {
	manager.mu.RLock()
	defer manager.mu.RUnlock()
	return manager.profile
}

func (manager *Manager) IsLoading() bool {
	manager.mu.RLock()
	defer manager.mu.RUnlock()
	return manager.loading
}

func (manager *Manager) IsAuthenticated() bool {
	manager.mu.RLock()
	defer manager.mu.RUnlock()
	return manager.session != nil
}
