// Package auth covers password hashing and login sessions.
package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"chitieu/internal/storage"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrEmailTaken         = errors.New("email already registered")
	ErrSessionExpired     = errors.New("session expired")
	ErrWeakPassword       = errors.New("password must be at least 8 characters")
	ErrInvalidEmail       = errors.New("invalid email address")
)

// SessionStore is the subset of the repository the manager needs.
type SessionStore interface {
	CreateUser(ctx context.Context, u storage.User) error
	GetUserByEmail(ctx context.Context, email string) (storage.User, error)
	GetUserByID(ctx context.Context, id string) (storage.User, error)
	CreateSession(ctx context.Context, s storage.Session) error
	GetSession(ctx context.Context, token string) (storage.Session, error)
	TouchSession(ctx context.Context, token string, expiresAt time.Time) error
	DeleteSession(ctx context.Context, token string) error
}

// Manager registers users and issues sessions.
type Manager struct {
	store SessionStore
	ttl   time.Duration
}

func NewManager(store SessionStore, ttl time.Duration) *Manager {
	return &Manager{store: store, ttl: ttl}
}

// Register creates a new identity with a hashed password and returns its id.
func (m *Manager) Register(ctx context.Context, email, password string) (string, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	if !strings.Contains(email, "@") || len(email) < 3 {
		return "", ErrInvalidEmail
	}
	if len(password) < 8 {
		return "", ErrWeakPassword
	}

	if _, err := m.store.GetUserByEmail(ctx, email); err == nil {
		return "", ErrEmailTaken
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}

	id := uuid.NewString()
	if err := m.store.CreateUser(ctx, storage.User{
		ID:           id,
		Email:        email,
		PasswordHash: string(hash),
	}); err != nil {
		return "", err
	}
	return id, nil
}

// SignIn verifies credentials and opens a session.
func (m *Manager) SignIn(ctx context.Context, email, password string) (storage.Session, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	user, err := m.store.GetUserByEmail(ctx, email)
	if err != nil {
		// Burn a comparison so a missing account costs the same as a
		// wrong password.
		bcrypt.CompareHashAndPassword([]byte("$2a$10$0123456789012345678901"), []byte(password))
		return storage.Session{}, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return storage.Session{}, ErrInvalidCredentials
	}

	session := storage.Session{
		Token:     uuid.NewString(),
		UserID:    user.ID,
		ExpiresAt: time.Now().Add(m.ttl),
	}
	if err := m.store.CreateSession(ctx, session); err != nil {
		return storage.Session{}, err
	}
	return session, nil
}

// Resolve maps a session token to its user, rolling the expiry forward.
func (m *Manager) Resolve(ctx context.Context, token string) (storage.User, error) {
	session, err := m.store.GetSession(ctx, token)
	if err != nil {
		return storage.User{}, ErrSessionExpired
	}
	if time.Now().After(session.ExpiresAt) {
		m.store.DeleteSession(ctx, token)
		return storage.User{}, ErrSessionExpired
	}

	if err := m.store.TouchSession(ctx, token, time.Now().Add(m.ttl)); err != nil {
		return storage.User{}, err
	}
	return m.store.GetUserByID(ctx, session.UserID)
}

// SignOut drops the session. Unknown tokens are not an error.
func (m *Manager) SignOut(ctx context.Context, token string) error {
	return m.store.DeleteSession(ctx, token)
}
