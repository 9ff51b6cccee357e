package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"messagely/internal/domain"
	"messagely/internal/metrics"
	"messagely/internal/security"
)

// AuthService handles registration and login.
type AuthService struct {
	users  domain.UserRepository
	tokens *security.TokenService
	hash   *security.PasswordHasher
	roster RosterCache
	clock  Clock
	log    *slog.Logger

	dummyOnce sync.Once
	dummyHash string
}

// NewAuthService wires the auth flow. roster, clock and log may be nil.
func NewAuthService(
	users domain.UserRepository,
	tokens *security.TokenService,
	hash *security.PasswordHasher,
	roster RosterCache,
	clock Clock,
	log *slog.Logger,
) *AuthService {
	if clock == nil {
		clock = systemClock{}
	}
	if log == nil {
		log = slog.Default()
	}
	return &AuthService{
		users:  users,
		tokens: tokens,
		hash:   hash,
		roster: roster,
		clock:  clock,
		log:    log,
	}
}

type RegisterInput struct {
	Username  string `json:"username" validate:"required,max=50,username"`
	Password  string `json:"password" validate:"required"`
	FirstName string `json:"first_name" validate:"required,max=100"`
	LastName  string `json:"last_name" validate:"required,max=100"`
	Phone     string `json:"phone" validate:"required,max=30"`
}

type LoginInput struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (s *AuthService) Register(ctx context.Context, in RegisterInput) (*domain.User, error) {
	if err := validateInput(in); err != nil {
		metrics.AuthAttemptsTotal.WithLabelValues("register", "invalid").Inc()
		return nil, err
	}

	hashed, err := s.hash.Hash(in.Password)
	if errors.Is(err, security.ErrPasswordTooLong) {
		metrics.AuthAttemptsTotal.WithLabelValues("register", "invalid").Inc()
		return nil, fmt.Errorf("%w: password must be at most %d bytes", domain.ErrInvalidInput, security.MaxPasswordBytes)
	}
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user, err := s.users.Create(ctx, domain.NewUser{
		Username:     in.Username,
		PasswordHash: hashed,
		FirstName:    in.FirstName,
		LastName:     in.LastName,
		Phone:        in.Phone,
		JoinAt:       s.clock.Now(),
	})
	if err != nil {
		if errors.Is(err, domain.ErrDuplicateUser) {
			metrics.AuthAttemptsTotal.WithLabelValues("register", "duplicate").Inc()
			return nil, err
		}
		return nil, fmt.Errorf("create user: %w", err)
	}

	if s.roster != nil {
		if err := s.roster.InvalidateRoster(ctx); err != nil {
			s.log.Warn("roster cache invalidate failed", "error", err)
		}
	}

	metrics.AuthAttemptsTotal.WithLabelValues("register", "success").Inc()
	s.log.Info("user registered", "username", user.Username)
	return user, nil
}

// RegisterAndIssue registers a user and returns a token for them.
func (s *AuthService) RegisterAndIssue(ctx context.Context, in RegisterInput) (string, error) {
	user, err := s.Register(ctx, in)
	if err != nil {
		return "", err
	}
	token, err := s.tokens.Issue(domain.Identity{Username: user.Username})
	if err != nil {
		return "", fmt.Errorf("create token: %w", err)
	}
	return token, nil
}

// Authenticate reports whether password matches the stored hash. An unknown
// user returns ErrUserNotFound after a comparison of the same cost, so the
// two cases take similar time.
func (s *AuthService) Authenticate(ctx context.Context, username, password string) (bool, error) {
	hashed, err := s.users.PasswordHash(ctx, username)
	if errors.Is(err, domain.ErrUserNotFound) {
		s.hash.Verify(password, s.dummy())
		return false, err
	}
	if err != nil {
		return false, fmt.Errorf("get password hash: %w", err)
	}
	return s.hash.Verify(password, hashed), nil
}

// Login verifies credentials, stamps last_login_at and returns a token.
// Unknown users and wrong passwords both yield ErrInvalidCredentials.
func (s *AuthService) Login(ctx context.Context, in LoginInput) (string, error) {
	ok, err := s.Authenticate(ctx, in.Username, in.Password)
	if err != nil && !errors.Is(err, domain.ErrUserNotFound) {
		metrics.AuthAttemptsTotal.WithLabelValues("login", "error").Inc()
		return "", err
	}
	if !ok {
		metrics.AuthAttemptsTotal.WithLabelValues("login", "failure").Inc()
		s.log.Info("login rejected", "username", in.Username)
		return "", domain.ErrInvalidCredentials
	}

	if _, err := s.users.UpdateLoginTimestamp(ctx, in.Username, s.clock.Now()); err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			metrics.AuthAttemptsTotal.WithLabelValues("login", "failure").Inc()
			return "", domain.ErrInvalidCredentials
		}
		return "", fmt.Errorf("update login timestamp: %w", err)
	}

	token, err := s.tokens.Issue(domain.Identity{Username: in.Username})
	if err != nil {
		return "", fmt.Errorf("create token: %w", err)
	}
	metrics.AuthAttemptsTotal.WithLabelValues("login", "success").Inc()
	return token, nil
}

func (s *AuthService) dummy() string {
	s.dummyOnce.Do(func() {
		h, err := s.hash.Hash("messagely-timing-equalizer")
		if err != nil {
			s.log.Error("dummy hash failed", "error", err)
			return
		}
		s.dummyHash = h
	})
	return s.dummyHash
}
