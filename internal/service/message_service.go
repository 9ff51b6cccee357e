package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"messagely/internal/access"
	"messagely/internal/domain"
	"messagely/internal/metrics"
	"messagely/internal/security"
)

type MessageService struct {
	messages  domain.MessageRepository
	encryptor *security.Encryptor
	notifier  Notifier
	clock     Clock
	log       *slog.Logger
}

// NewMessageService wires message operations. notifier, clock and log may be nil.
func NewMessageService(
	messages domain.MessageRepository,
	encryptor *security.Encryptor,
	notifier Notifier,
	clock Clock,
	log *slog.Logger,
) *MessageService {
	if notifier == nil {
		notifier = nopNotifier{}
	}
	if clock == nil {
		clock = systemClock{}
	}
	if log == nil {
		log = slog.Default()
	}
	return &MessageService{
		messages:  messages,
		encryptor: encryptor,
		notifier:  notifier,
		clock:     clock,
		log:       log,
	}
}

type SendInput struct {
	ToUsername string `json:"to_username" validate:"required,max=50"`
	Body       string `json:"body" validate:"required,max=5000"`
}

// Send stores a message from the caller and notifies the recipient.
func (s *MessageService) Send(ctx context.Context, who domain.Identity, in SendInput) (*domain.Message, error) {
	if err := access.Send(who); err != nil {
		return nil, err
	}
	if err := validateInput(in); err != nil {
		return nil, err
	}
	if in.ToUsername == who.Username {
		return nil, fmt.Errorf("%w: cannot send a message to yourself", domain.ErrInvalidInput)
	}

	encrypted, err := s.encryptor.Encrypt(in.Body)
	if err != nil {
		return nil, fmt.Errorf("encrypt body: %w", err)
	}

	msg, err := s.messages.Create(ctx, domain.NewMessage{
		FromUsername: who.Username,
		ToUsername:   in.ToUsername,
		Body:         encrypted,
		SentAt:       s.clock.Now(),
	})
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("create message: %w", err)
	}
	msg.Body = in.Body

	metrics.MessagesSentTotal.Inc()
	s.log.Debug("message sent", "id", msg.ID, "from", msg.FromUsername, "to", msg.ToUsername)
	s.notifier.Notify(msg.ToUsername, domain.Event{Type: domain.EventMessage, Data: msg})
	return msg, nil
}

// Get returns a message to its sender or recipient. A missing message and
// one the caller may not see both return ErrForbidden.
func (s *MessageService) Get(ctx context.Context, who domain.Identity, id string) (*domain.MessageDetail, error) {
	msg, err := s.lookup(ctx, access.OpViewMessage, id)
	if err != nil {
		return nil, err
	}
	if err := access.ViewMessage(who, msg.FromUser.Username, msg.ToUser.Username); err != nil {
		return nil, err
	}
	if msg.Body, err = s.encryptor.Decrypt(msg.Body); err != nil {
		return nil, fmt.Errorf("decrypt message %s: %w", msg.ID, err)
	}
	return msg, nil
}

// MarkRead stamps read_at for the recipient. The first read time is kept on
// repeat calls.
func (s *MessageService) MarkRead(ctx context.Context, who domain.Identity, id string) (*domain.ReadReceipt, error) {
	msg, err := s.lookup(ctx, access.OpMarkRead, id)
	if err != nil {
		return nil, err
	}
	if err := access.MarkRead(who, msg.ToUser.Username); err != nil {
		return nil, err
	}

	updated, err := s.messages.MarkRead(ctx, id, s.clock.Now())
	if err != nil {
		if errors.Is(err, domain.ErrMessageNotFound) {
			return nil, access.Deny(access.OpMarkRead)
		}
		return nil, fmt.Errorf("mark read: %w", err)
	}
	if updated.ReadAt == nil {
		return nil, fmt.Errorf("mark read %s: read_at not set", id)
	}

	receipt := &domain.ReadReceipt{ID: updated.ID, ReadAt: *updated.ReadAt}
	metrics.MessagesMarkedReadTotal.Inc()
	s.notifier.Notify(updated.FromUsername, domain.Event{Type: domain.EventMessageRead, Data: receipt})
	return receipt, nil
}

func (s *MessageService) lookup(ctx context.Context, op, id string) (*domain.MessageDetail, error) {
	msg, err := s.messages.Get(ctx, id)
	if errors.Is(err, domain.ErrMessageNotFound) {
		return nil, access.Deny(op)
	}
	if err != nil {
		return nil, fmt.Errorf("get message: %w", err)
	}
	return msg, nil
}
