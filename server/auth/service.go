package auth

import (
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt"
	"github.com/nudgelabs/nudged/server/apperrors"
	"github.com/nudgelabs/nudged/server/auth/key"
	"github.com/nudgelabs/nudged/server/models"
	"github.com/nudgelabs/nudged/server/repos"
	"github.com/nudgelabs/nudged/utils"
)

const DefaultTokenTTL = 24 * time.Hour

// Session is the authenticated state handed to subscribers. A nil
// *Session on the event stream means signed out.
type Session struct {
	Token     string    `json:"token"`
	UserID    string    `json:"user_id"`
	Email     string    `json:"email"`
	ExpiresAt time.Time `json:"expires_at"`
}

type SignUpDto struct {
	Email     string `json:"email"`
	Password  string `json:"password"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

// Service owns credentials & tokens. Auth state transitions are pushed
// to subscribers so interested components react to sign-in/sign-out
// without polling.
type Service struct {
	profiles *repos.ProfilesRepo
	keyPair  *key.KeyPair
	tokenTTL time.Duration

	mu          sync.Mutex
	nextSubID   int
	subscribers map[int]chan *Session
}

func NewService(profiles *repos.ProfilesRepo, keyPair *key.KeyPair) *Service {
	return &Service{
		profiles:    profiles,
		keyPair:     keyPair,
		tokenTTL:    DefaultTokenTTL,
		subscribers: make(map[int]chan *Session),
	}
}

func (service *Service) KeyPair() *key.KeyPair {
	return service.keyPair
}

// Subscribe registers for auth state changes. The returned func
// unsubscribes and closes the channel; call it on shutdown.
func (service *Service) Subscribe() (<-chan *Session, func()) {
	service.mu.Lock()
	defer service.mu.Unlock()

	id := service.nextSubID
	service.nextSubID++

	events := make(chan *Session, 8)
	service.subscribers[id] = events

	return events, func() {
		service.mu.Lock()
		defer service.mu.Unlock()

		if ch, ok := service.subscribers[id]; ok {
			delete(service.subscribers, id)
			close(ch)
		}
	}
}

func (service *Service) broadcast(session *Session) {
	service.mu.Lock()
	defer service.mu.Unlock()

	for _, events := range service.subscribers {
		select {
		case events <- session:
		default:
			// Subscriber is not draining; drop rather than block auth.
		}
	}
}

// SignUp creates the credential and its profile in one go, then signs
// the new account in.
func (service *Service) SignUp(data SignUpDto) (*Session, error) {
	email := strings.ToLower(strings.TrimSpace(data.Email))
	if utils.IsBlank(email) || utils.IsBlank(data.Password) {
		return nil, apperrors.Validation("email and password are required")
	}
	if len(data.Password) < 8 {
		return nil, apperrors.Validation("password must be at least 8 characters")
	}

	passwordHash, err := HashPassword(data.Password)
	if err != nil {
		return nil, apperrors.Unknown(err)
	}

	profile := &models.Profile{
		Email:        email,
		FirstName:    data.FirstName,
		LastName:     data.LastName,
		PasswordHash: passwordHash,
	}
	if err := service.profiles.Create(profile); err != nil {
		if apperrors.IsCode(err, apperrors.CodeDuplicate) {
			return nil, apperrors.Duplicate("an account with this email already exists")
		}
		return nil, err
	}

	return service.issueSession(profile)
}

func (service *Service) SignIn(email, password string) (*Session, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	profile, err := service.profiles.FindByEmail(email)
	if err != nil {
		if apperrors.IsCode(err, apperrors.CodeNotFound) {
			return nil, apperrors.Authentication("invalid email or password")
		}
		return nil, err
	}

	if !CheckPasswordHash(password, profile.PasswordHash) {
		return nil, apperrors.Authentication("invalid email or password")
	}

	return service.issueSession(profile)
}

// SignOut clears auth state. Tokens are not revoked server-side; the
// nil broadcast tells subscribers to drop theirs.
func (service *Service) SignOut() {
	service.broadcast(nil)
}

// GetSession validates a token and rebuilds the session it represents.
func (service *Service) GetSession(token string) (*Session, error) {
	claims, err := DecodeJWT(token, service.keyPair)
	if err != nil {
		return nil, apperrors.Authentication("invalid or expired token")
	}

	// The account may have been deleted since the token was minted.
	if _, err := service.profiles.Get(claims.Subject); err != nil {
		if apperrors.IsCode(err, apperrors.CodeNotFound) {
			return nil, apperrors.Authentication("account no longer exists")
		}
		return nil, err
	}

	return &Session{
		Token:     token,
		UserID:    claims.Subject,
		Email:     claims.Email,
		ExpiresAt: time.Unix(claims.ExpiresAt, 0),
	}, nil
}

func (service *Service) issueSession(profile *models.Profile) (*Session, error) {
	expiresAt := time.Now().Add(service.tokenTTL)

	claims := NudgedTokenClaims{
		FirstName: profile.FirstName,
		LastName:  profile.LastName,
		Email:     profile.Email,
		StandardClaims: jwt.StandardClaims{
			Subject:   profile.ID,
			ExpiresAt: expiresAt.Unix(),
			IssuedAt:  time.Now().Unix(),
			Issuer:    "nudged",
		},
	}

	token, err := EncodeJWT(claims, service.keyPair)
	if err != nil {
		return nil, apperrors.Unknown(err)
	}

	session := &Session{
		Token:     token,
		UserID:    profile.ID,
		Email:     profile.Email,
		ExpiresAt: expiresAt,
	}
	service.broadcast(session)

	return session, nil
}
