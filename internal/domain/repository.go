package domain

import (
	"context"
	"time"
)

// UserRepository defines persistence operations for users.
type UserRepository interface {
	Create(ctx context.Context, u NewUser) (*User, error)
	PasswordHash(ctx context.Context, username string) (string, error)
	UpdateLoginTimestamp(ctx context.Context, username string, at time.Time) (*User, error)
	All(ctx context.Context) ([]UserSummary, error)
	Get(ctx context.Context, username string) (*User, error)
	MessagesFrom(ctx context.Context, username string) ([]SentMessage, error)
	MessagesTo(ctx context.Context, username string) ([]ReceivedMessage, error)
}

// MessageRepository defines persistence operations for messages.
type MessageRepository interface {
	Create(ctx context.Context, m NewMessage) (*Message, error)
	Get(ctx context.Context, id string) (*MessageDetail, error)
	MarkRead(ctx context.Context, id string, at time.Time) (*Message, error)
}
