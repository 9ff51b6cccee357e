package sqlite

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
	id := uuid.NewString()
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO messages (id, from_username, to_username, body, sent_at, read_at)
		VALUES (?, ?, ?, ?, ?, NULL)
	`, id, m.FromUsername, m.ToUsername, m.Body, m.SentAt)
	if isForeignKeyViolation(err) {
		return nil, domain.ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("insert message: %w", err)
	}
	return &domain.Message{
		ID:           id,
		FromUsername: m.FromUsername,
		ToUsername:   m.ToUsername,
		Body:         m.Body,
		SentAt:       m.SentAt,
	}, nil
}

func (r *MessageRepo) Get(ctx context.Context, id string) (*domain.MessageDetail, error) {
	m := &domain.MessageDetail{}
	err := r.db.QueryRowContext(ctx, `
		SELECT m.id, m.body, m.sent_at, m.read_at,
		       f.username, f.first_name, f.last_name, f.phone,
		       t.username, t.first_name, t.last_name, t.phone
		FROM messages m
		JOIN users f ON f.username = m.from_username
		JOIN users t ON t.username = m.to_username
		WHERE m.id = ?
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
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin mark read tx: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `UPDATE messages SET read_at = COALESCE(read_at, ?) WHERE id = ?`, at, id)
	if err != nil {
		return nil, fmt.Errorf("mark read: %w", err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return nil, fmt.Errorf("rows affected: %w", err)
	} else if n == 0 {
		return nil, domain.ErrMessageNotFound
	}

	m := &domain.Message{}
	if err := tx.QueryRowContext(ctx, `
		SELECT id, from_username, to_username, body, sent_at, read_at
		FROM messages WHERE id = ?
	`, id).Scan(&m.ID, &m.FromUsername, &m.ToUsername, &m.Body, &m.SentAt, &m.ReadAt); err != nil {
		return nil, fmt.Errorf("reload message: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit mark read tx: %w", err)
	}
	return m, nil
}
