// Package auth issues opaque owner identifiers and session tokens. The
// ledger and valuation code only ever see the owner id; nothing below the
// web layer knows who is "logged in".
package auth

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/avicke/foliotrack/internal/logger"
	"github.com/avicke/foliotrack/internal/storage"
)

var (
	ErrMissingFields      = errors.New("all fields are required")
	ErrPasswordMismatch   = errors.New("passwords do not match")
	ErrUsernameTaken      = errors.New("username already taken")
	ErrInvalidCredentials = errors.New("invalid username or password")
)

// UserStore is the slice of the repository auth needs.
type UserStore interface {
	CreateUser(user *storage.User) error
	GetUserByUsername(username string) (*storage.User, error)
}

type session struct {
	ownerID string
	expires time.Time
}

type Service struct {
	store    UserStore
	ttl      time.Duration
	logger   *logger.Logger
	mu       sync.Mutex
	sessions map[string]session
}

func NewService(store UserStore, ttl time.Duration, log *logger.Logger) *Service {
	return &Service{
		store:    store,
		ttl:      ttl,
		logger:   log,
		sessions: make(map[string]session),
	}
}

func (s *Service) Register(username, password, confirmation string) (*storage.User, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" || confirmation == "" {
		return nil, ErrMissingFields
	}
	if password != confirmation {
		return nil, ErrPasswordMismatch
	}

	existing, err := s.store.GetUserByUsername(username)
	if err != nil {
		return nil, fmt.Errorf("look up username: %w", err)
	}
	if existing != nil {
		return nil, ErrUsernameTaken
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user := &storage.User{
		ID:           uuid.NewString(),
		Username:     username,
		PasswordHash: string(hash),
	}
	if err := s.store.CreateUser(user); err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}

	s.logger.Info("user registered", "username", username)
	return user, nil
}

// Login verifies credentials and returns a session token.
func (s *Service) Login(username, password string) (string, error) {
	user, err := s.store.GetUserByUsername(strings.TrimSpace(username))
	if err != nil {
		return "", fmt.Errorf("look up username: %w", err)
	}
	if user == nil {
		return "", ErrInvalidCredentials
	}
	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
		return "", ErrInvalidCredentials
	}

	token := uuid.NewString()
	s.mu.Lock()
	s.sessions[token] = session{ownerID: user.ID, expires: time.Now().Add(s.ttl)}
	s.mu.Unlock()

	s.logger.Info("user logged in", "username", user.Username)
	return token, nil
}

func (s *Service) Logout(token string) {
	s.mu.Lock()
	delete(s.sessions, token)
	s.mu.Unlock()
}

// OwnerForToken resolves a session token to an owner id; expired sessions
// are dropped on access.
func (s *Service) OwnerForToken(token string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[token]
	if !ok {
		return "", false
	}
	if time.Now().After(sess.expires) {
		delete(s.sessions, token)
		return "", false
	}
	return sess.ownerID, true
}
