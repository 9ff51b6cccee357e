package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"messagely/internal/domain"
)

type MessageRepo struct {
	db *sql.DB
}

func NewMessageRepo(db *sql.DB) *MessageRepo {
	return &MessageRepo{db: db}
}

var _ domain.MessageRepository = (*MessageRepo)(nil)

func (r *MessageRepo) Create(ctx context.Context, m domain.NewMessage) (*domain.Message, error) {
	created := &domain.Message{}
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO messages (id, from_username, to_username, body, sent_at, read_at)
		VALUES ($1, $2, $3, $4, $5, NULL)
		RETURNING id, from_username, to_username, body, sent_at, read_at
	`, uuid.NewString(), m.FromUsername, m.ToUsername, m.Body, m.SentAt,
	).Scan(&created.ID, &created.FromUsername, &created.ToUsername, &created.Body, &created.SentAt, &created.ReadAt)
	if sqlState(err) == sqlStateForeignKeyViolation {
		return nil, domain.ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("insert message: %w", err)
	}
	return created, nil
}

func (r *MessageRepo) Get(ctx context.Context, id string) (*domain.MessageDetail, error) {
	if _, err := uuid.Parse(id); err != nil {
		// Postgres rejects malformed uuids with an error; treat them as absent.
		return nil, domain.ErrMessageNotFound
	}
	m := &domain.MessageDetail{}
	err := r.db.QueryRowContext(ctx, `
		SELECT m.id, m.body, m.sent_at, m.read_at,
		       f.username, f.first_name, f.last_name, f.phone,
		       t.username, t.first_name, t.last_name, t.phone
		FROM messages m
		JOIN users f ON f.username = m.from_username
		JOIN users t ON t.username = m.to_username
		WHERE m.id = $1
	`, id).Scan(
		&m.ID, &m.Body, &m.SentAt, &m.ReadAt,
		&m.FromUser.Username, &m.FromUser.FirstName, &m.FromUser.LastName, &m.FromUser.Phone,
		&m.ToUser.Username, &m.ToUser.FirstName, &m.ToUser.LastName, &m.ToUser.Phone,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrMessageNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get message: %w", err)
	}
	return m, nil
}

// MarkRead stamps read_at unless it is already set; the first read wins.
func (r *MessageRepo) MarkRead(ctx context.Context, id string, at time.Time) (*domain.Message, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, domain.ErrMessageNotFound
	}
	m := &domain.Message{}
	err := r.db.QueryRowContext(ctx, `
		UPDATE messages SET read_at = COALESCE(read_at, $1)
		WHERE id = $2
		RETURNING id, from_username, to_username, body, sent_at, read_at
	`, at, id).Scan(&m.ID, &m.FromUsername, &m.ToUsername, &m.Body, &m.SentAt, &m.ReadAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrMessageNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("mark read: %w", err)
	}
	return m, nil
}
