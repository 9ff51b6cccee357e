package service

import (
	"context"
	"fmt"
	"log/slog"

	"messagely/internal/access"
	"messagely/internal/domain"
	"messagely/internal/security"
)

// UserService serves the roster and per-user views. Every user-scoped call
// is checked before the store is touched.
type UserService struct {
	users     domain.UserRepository
	roster    RosterCache
	encryptor *security.Encryptor
	log       *slog.Logger
}

func NewUserService(users domain.UserRepository, roster RosterCache, encryptor *security.Encryptor, log *slog.Logger) *UserService {
	if log == nil {
		log = slog.Default()
	}
	return &UserService{users: users, roster: roster, encryptor: encryptor, log: log}
}

func (s *UserService) Roster(ctx context.Context, who domain.Identity) ([]domain.UserSummary, error) {
	if err := access.ViewRoster(who); err != nil {
		return nil, err
	}

	fill := false
	var gen int64
	if s.roster != nil {
		cached, g, err := s.roster.Roster(ctx)
		switch {
		case err != nil:
			s.log.Warn("roster cache read failed", "error", err)
		case cached != nil:
			return cached, nil
		default:
			fill, gen = true, g
		}
	}

	list, err := s.users.All(ctx)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}

	if fill {
		if err := s.roster.SetRoster(ctx, gen, list); err != nil {
			s.log.Warn("roster cache write failed", "error", err)
		}
	}
	return list, nil
}

func (s *UserService) Profile(ctx context.Context, who domain.Identity, username string) (*domain.User, error) {
	if err := access.ViewUser(who, username); err != nil {
		return nil, err
	}
	return s.users.Get(ctx, username)
}

// Sent lists messages username has sent, oldest first.
func (s *UserService) Sent(ctx context.Context, who domain.Identity, username string) ([]domain.SentMessage, error) {
	if err := access.ViewUser(who, username); err != nil {
		return nil, err
	}
	msgs, err := s.users.MessagesFrom(ctx, username)
	if err != nil {
		return nil, fmt.Errorf("list sent messages: %w", err)
	}
	for i := range msgs {
		if msgs[i].Body, err = s.encryptor.Decrypt(msgs[i].Body); err != nil {
			return nil, fmt.Errorf("decrypt message %s: %w", msgs[i].ID, err)
		}
	}
	return msgs, nil
}

// Received lists messages addressed to username, oldest first.
func (s *UserService) Received(ctx context.Context, who domain.Identity, username string) ([]domain.ReceivedMessage, error) {
	if err := access.ViewUser(who, username); err != nil {
		return nil, err
	}
	msgs, err := s.users.MessagesTo(ctx, username)
	if err != nil {
		return nil, fmt.Errorf("list received messages: %w", err)
	}
	for i := range msgs {
		if msgs[i].Body, err = s.encryptor.Decrypt(msgs[i].Body); err != nil {
			return nil, fmt.Errorf("decrypt message %s: %w", msgs[i].ID, err)
		}
	}
	return msgs, nil
}
