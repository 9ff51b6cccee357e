package service_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/fernet/fernet-go"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"messagely/internal/domain"
	"messagely/internal/security"
)

type MockUserRepo struct {
	mock.Mock
}

func (m *MockUserRepo) Create(ctx context.Context, u domain.NewUser) (*domain.User, error) {
	args := m.Called(ctx, u)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.User), args.Error(1)
}

func (m *MockUserRepo) PasswordHash(ctx context.Context, username string) (string, error) {
	args := m.Called(ctx, username)
	return args.String(0), args.Error(1)
}

func (m *MockUserRepo) UpdateLoginTimestamp(ctx context.Context, username string, at time.Time) (*domain.User, error) {
	args := m.Called(ctx, username, at)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.User), args.Error(1)
}

func (m *MockUserRepo) All(ctx context.Context) ([]domain.UserSummary, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.UserSummary), args.Error(1)
}

func (m *MockUserRepo) Get(ctx context.Context, username string) (*domain.User, error) {
	args := m.Called(ctx, username)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.User), args.Error(1)
}

func (m *MockUserRepo) MessagesFrom(ctx context.Context, username string) ([]domain.SentMessage, error) {
	args := m.Called(ctx, username)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.SentMessage), args.Error(1)
}

func (m *MockUserRepo) MessagesTo(ctx context.Context, username string) ([]domain.ReceivedMessage, error) {
	args := m.Called(ctx, username)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.ReceivedMessage), args.Error(1)
}

type MockMessageRepo struct {
	mock.Mock
}

func (m *MockMessageRepo) Create(ctx context.Context, msg domain.NewMessage) (*domain.Message, error) {
	args := m.Called(ctx, msg)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Message), args.Error(1)
}

func (m *MockMessageRepo) Get(ctx context.Context, id string) (*domain.MessageDetail, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.MessageDetail), args.Error(1)
}

func (m *MockMessageRepo) MarkRead(ctx context.Context, id string, at time.Time) (*domain.Message, error) {
	args := m.Called(ctx, id, at)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Message), args.Error(1)
}

type MockRosterCache struct {
	mock.Mock
}

func (m *MockRosterCache) Roster(ctx context.Context) ([]domain.UserSummary, int64, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Get(1).(int64), args.Error(2)
	}
	return args.Get(0).([]domain.UserSummary), args.Get(1).(int64), args.Error(2)
}

func (m *MockRosterCache) SetRoster(ctx context.Context, gen int64, list []domain.UserSummary) error {
	return m.Called(ctx, gen, list).Error(0)
}

func (m *MockRosterCache) InvalidateRoster(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

type fixedClock struct{ t time.Time }

func (c fixedClock) Now() time.Time { return c.t }

type sentEvent struct {
	To    string
	Event domain.Event
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []sentEvent
}

func (n *recordingNotifier) Notify(username string, ev domain.Event) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, sentEvent{To: username, Event: ev})
}

func (n *recordingNotifier) Events() []sentEvent {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]sentEvent(nil), n.events...)
}

var (
	alice  = domain.Identity{Username: "alice"}
	bob    = domain.Identity{Username: "bob"}
	carol  = domain.Identity{Username: "carol"}
	now    = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	testID = "6f1c1c5e-8d1a-4a57-9a56-2f4b3c1d9e01"
)

func newEncryptor(t *testing.T) *security.Encryptor {
	t.Helper()
	var k fernet.Key
	require.NoError(t, k.Generate())
	enc, err := security.NewEncryptor(k.Encode(), nil)
	require.NoError(t, err)
	return enc
}

func seal(t *testing.T, enc *security.Encryptor, plain string) string {
	t.Helper()
	s, err := enc.Encrypt(plain)
	require.NoError(t, err)
	return s
}
