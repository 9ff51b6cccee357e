package domain

import "time"

// Identity is the username asserted by a verified token.
type Identity struct {
	Username string
}

// User is a full profile. The password hash never leaves the store.
type User struct {
	Username    string    `json:"username"`
	FirstName   string    `json:"first_name"`
	LastName    string    `json:"last_name"`
	Phone       string    `json:"phone"`
	JoinAt      time.Time `json:"join_at"`
	LastLoginAt time.Time `json:"last_login_at"`
}

// NewUser carries the fields needed to insert a user row.
type NewUser struct {
	Username     string
	PasswordHash string
	FirstName    string
	LastName     string
	Phone        string
	JoinAt       time.Time
}

// UserSummary is a roster row.
type UserSummary struct {
	Username  string `json:"username"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

// Party is the user summary embedded in message views.
type Party struct {
	Username  string `json:"username"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Phone     string `json:"phone"`
}

// Message is a stored direct message.
type Message struct {
	ID           string     `json:"id"`
	FromUsername string     `json:"from_username"`
	ToUsername   string     `json:"to_username"`
	Body         string     `json:"body"`
	SentAt       time.Time  `json:"sent_at"`
	ReadAt       *time.Time `json:"read_at"`
}

// NewMessage carries the fields needed to insert a message row.
type NewMessage struct {
	FromUsername string
	ToUsername   string
	Body         string
	SentAt       time.Time
}

// MessageDetail is a message joined with both parties.
type MessageDetail struct {
	ID       string     `json:"id"`
	Body     string     `json:"body"`
	SentAt   time.Time  `json:"sent_at"`
	ReadAt   *time.Time `json:"read_at"`
	FromUser Party      `json:"from_user"`
	ToUser   Party      `json:"to_user"`
}

// SentMessage is an entry in a user's outbox.
type SentMessage struct {
	ID     string     `json:"id"`
	Body   string     `json:"body"`
	SentAt time.Time  `json:"sent_at"`
	ReadAt *time.Time `json:"read_at"`
	ToUser Party      `json:"to_user"`
}

// ReceivedMessage is an entry in a user's inbox.
type ReceivedMessage struct {
	ID       string     `json:"id"`
	Body     string     `json:"body"`
	SentAt   time.Time  `json:"sent_at"`
	ReadAt   *time.Time `json:"read_at"`
	FromUser Party      `json:"from_user"`
}

// ReadReceipt reports when a message was first read.
type ReadReceipt struct {
	ID     string    `json:"id"`
	ReadAt time.Time `json:"read_at"`
}

// Realtime event types pushed to connected users.
const (
	EventMessage     = "message"
	EventMessageRead = "message_read"
)

// Event is a realtime notification.
type Event struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}
