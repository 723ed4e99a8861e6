// Package auth handles email and password accounts and the session persisted on this device.
package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"go.uber.org/zap"

	"listou/internal/apperr"
	"listou/internal/kvstore"
	"listou/internal/logger"
)

// Messages shown to the user as-is.
const (
	MsgEmailExists        = "Email already exists"
	MsgInvalidCredentials = "Invalid credentials"
)

// DefaultSessionTTL is how long a login stays valid.
const DefaultSessionTTL = 30 * 24 * time.Hour

// Identity is the logged-in user.
type Identity struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

// DisplayName is the local part of the email. It attributes added items and saved lists.
func (i Identity) DisplayName() string {
	name, _, _ := strings.Cut(i.Email, "@")
	return name
}

// session is what is persisted under the user key.
type session struct {
	Identity
	Token string `json:"token"`
}

// SessionStore persists the session on the device.
type SessionStore interface {
	GetJSON(ctx context.Context, key string, v any) bool
	SetJSON(ctx context.Context, key string, v any) error
	Delete(ctx context.Context, key string) error
}

// Users stores accounts.
type Users interface {
	Create(ctx context.Context, u User) error
	GetByEmail(ctx context.Context, email string) (User, error)
}

type credentials struct {
	Email    string `validate:"required,email"`
	Password string `validate:"required,min=6"`
}

// Service signs users up and in.
type Service struct {
	users    Users
	tokens   *TokenManager
	sessions SessionStore
	validate *validator.Validate
	log      *zap.Logger
	hashCost int

	mu      sync.Mutex
	current *Identity
}

// NewService creates a Service.
func NewService(users Users, tokens *TokenManager, sessions SessionStore, log *zap.Logger) *Service {
	return &Service{
		users:    users,
		tokens:   tokens,
		sessions: sessions,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		log:      logger.OrNop(log),
		hashCost: bcrypt.DefaultCost,
	}
}

// Signup creates an account and logs it in.
func (s *Service) Signup(ctx context.Context, email, password string) (Identity, error) {
	c, err := s.credentials(email, password)
	if err != nil {
		return Identity{}, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(c.Password), s.hashCost)
	if err != nil {
		return Identity{}, fmt.Errorf("failed to hash password: %w", err)
	}

	u := User{ID: uuid.NewString(), Email: c.Email, PasswordHash: string(hash), CreatedAt: time.Now()}
	if err := s.users.Create(ctx, u); err != nil {
		if errors.Is(err, ErrEmailTaken) {
			return Identity{}, apperr.Auth(MsgEmailExists)
		}
		return Identity{}, fmt.Errorf("failed to create account: %w", err)
	}

	s.log.Info("account created", zap.String("user_id", u.ID))
	return s.start(ctx, Identity{ID: u.ID, Email: u.Email})
}

// Login checks the password and persists a new session.
func (s *Service) Login(ctx context.Context, email, password string) (Identity, error) {
	c, err := s.credentials(email, password)
	if err != nil {
		return Identity{}, apperr.Auth(MsgInvalidCredentials)
	}

	u, err := s.users.GetByEmail(ctx, c.Email)
	if errors.Is(err, ErrUserNotFound) {
		return Identity{}, apperr.Auth(MsgInvalidCredentials)
	}
	if err != nil {
		return Identity{}, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(c.Password)); err != nil {
		return Identity{}, apperr.Auth(MsgInvalidCredentials)
	}

	return s.start(ctx, Identity{ID: u.ID, Email: u.Email})
}

// Logout forgets the session.
func (s *Service) Logout(ctx context.Context) error {
	s.mu.Lock()
	s.current = nil
	s.mu.Unlock()

	if err := s.sessions.Delete(ctx, kvstore.KeyUser); err != nil {
		return fmt.Errorf("failed to clear session: %w", err)
	}
	return nil
}

// Current returns the logged-in user. A missing, malformed or expired session reads as logged out.
func (s *Service) Current(ctx context.Context) (Identity, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current != nil {
		return *s.current, true
	}

	var sess session
	if !s.sessions.GetJSON(ctx, kvstore.KeyUser, &sess) {
		return Identity{}, false
	}
	id, err := s.tokens.Parse(sess.Token)
	if err != nil {
		s.log.Warn("ignoring stored session", zap.Error(err))
		return Identity{}, false
	}
	s.current = &id
	return id, true
}

func (s *Service) start(ctx context.Context, id Identity) (Identity, error) {
	token, err := s.tokens.Issue(id)
	if err != nil {
		return Identity{}, err
	}
	if err := s.sessions.SetJSON(ctx, kvstore.KeyUser, session{Identity: id, Token: token}); err != nil {
		return Identity{}, fmt.Errorf("failed to persist session: %w", err)
	}

	s.mu.Lock()
	s.current = &id
	s.mu.Unlock()
	return id, nil
}

func (s *Service) credentials(email, password string) (credentials, error) {
	c := credentials{Email: strings.ToLower(strings.TrimSpace(email)), Password: password}
	if err := s.validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && verrs[0].Field() == "Email" {
			return c, apperr.Auth("Invalid email")
		}
		return c, apperr.Auth("Password must have at least 6 characters")
	}
	return c, nil
}
