package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"messagely/internal/domain"
)

type UserRepo struct {
	db *sql.DB
}

func NewUserRepo(db *sql.DB) *UserRepo {
	return &UserRepo{db: db}
}

var _ domain.UserRepository = (*UserRepo)(nil)

const userColumns = `username, first_name, last_name, phone, join_at, last_login_at`

func (r *UserRepo) Create(ctx context.Context, u domain.NewUser) (*domain.User, error) {
	row := r.db.QueryRowContext(ctx, `
		INSERT INTO users (username, password, first_name, last_name, phone, join_at, last_login_at)
		VALUES ($1, $2, $3, $4, $5, $6, $6)
		RETURNING `+userColumns,
		u.Username, u.PasswordHash, u.FirstName, u.LastName, u.Phone, u.JoinAt,
	)
	created, err := r.scanUser(row)
	if sqlState(err) == sqlStateUniqueViolation {
		return nil, domain.ErrDuplicateUser
	}
	if err != nil {
		return nil, fmt.Errorf("insert user: %w", err)
	}
	return created, nil
}

func (r *UserRepo) PasswordHash(ctx context.Context, username string) (string, error) {
	var hash string
	err := r.db.QueryRowContext(ctx, `SELECT password FROM users WHERE username = $1`, username).Scan(&hash)
	if errors.Is(err, sql.ErrNoRows) {
		return "", domain.ErrUserNotFound
	}
	if err != nil {
		return "", fmt.Errorf("select password: %w", err)
	}
	return hash, nil
}

func (r *UserRepo) UpdateLoginTimestamp(ctx context.Context, username string, at time.Time) (*domain.User, error) {
	return r.scanUser(r.db.QueryRowContext(ctx, `
		UPDATE users SET last_login_at = $1
		WHERE username = $2
		RETURNING `+userColumns,
		at, username,
	))
}

func (r *UserRepo) All(ctx context.Context) ([]domain.UserSummary, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT username, first_name, last_name
		FROM users
		ORDER BY last_name, first_name, username
	`)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	users := make([]domain.UserSummary, 0)
	for rows.Next() {
		var u domain.UserSummary
		if err := rows.Scan(&u.Username, &u.FirstName, &u.LastName); err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

func (r *UserRepo) Get(ctx context.Context, username string) (*domain.User, error) {
	return r.scanUser(r.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE username = $1`, username))
}

func (r *UserRepo) MessagesFrom(ctx context.Context, username string) ([]domain.SentMessage, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT m.id, m.body, m.sent_at, m.read_at,
		       u.username, u.first_name, u.last_name, u.phone
		FROM messages m
		JOIN users u ON u.username = m.to_username
		WHERE m.from_username = $1
		ORDER BY m.sent_at, m.id
	`, username)
	if err != nil {
		return nil, fmt.Errorf("list sent messages: %w", err)
	}
	defer rows.Close()

	res := make([]domain.SentMessage, 0)
	for rows.Next() {
		var m domain.SentMessage
		if err := rows.Scan(
			&m.ID, &m.Body, &m.SentAt, &m.ReadAt,
			&m.ToUser.Username, &m.ToUser.FirstName, &m.ToUser.LastName, &m.ToUser.Phone,
		); err != nil {
			return nil, fmt.Errorf("scan sent message: %w", err)
		}
		res = append(res, m)
	}
	return res, rows.Err()
}

func (r *UserRepo) MessagesTo(ctx context.Context, username string) ([]domain.ReceivedMessage, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT m.id, m.body, m.sent_at, m.read_at,
		       u.username, u.first_name, u.last_name, u.phone
		FROM messages m
		JOIN users u ON u.username = m.from_username
		WHERE m.to_username = $1
		ORDER BY m.sent_at, m.id
	`, username)
	if err != nil {
		return nil, fmt.Errorf("list received messages: %w", err)
	}
	defer rows.Close()

	res := make([]domain.ReceivedMessage, 0)
	for rows.Next() {
		var m domain.ReceivedMessage
		if err := rows.Scan(
			&m.ID, &m.Body, &m.SentAt, &m.ReadAt,
			&m.FromUser.Username, &m.FromUser.FirstName, &m.FromUser.LastName, &m.FromUser.Phone,
		); err != nil {
			return nil, fmt.Errorf("scan received message: %w", err)
		}
		res = append(res, m)
	}
	return res, rows.Err()
}

// ── helpers ──────────────────────────────────────────────────────────────────

func (r *UserRepo) scanUser(row *sql.Row) (*domain.User, error) {
	u := &domain.User{}
	err := row.Scan(&u.Username, &u.FirstName, &u.LastName, &u.Phone, &u.JoinAt, &u.LastLoginAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan user: %w", err)
	}
	return u, nil
}
