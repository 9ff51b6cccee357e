package service_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"messagely/internal/domain"
	"messagely/internal/logging"
	"messagely/internal/security"
	"messagely/internal/service"
)

func newMessages(t *testing.T) (*service.MessageService, *MockMessageRepo, *recordingNotifier, *security.Encryptor) {
	t.Helper()
	repo := new(MockMessageRepo)
	notifier := &recordingNotifier{}
	enc := newEncryptor(t)
	return service.NewMessageService(repo, enc, notifier, fixedClock{now}, logging.Discard()), repo, notifier, enc
}

func detail(t *testing.T, enc *security.Encryptor, readAt *time.Time) *domain.MessageDetail {
	return &domain.MessageDetail{
		ID:       testID,
		Body:     seal(t, enc, "hi"),
		SentAt:   now,
		ReadAt:   readAt,
		FromUser: domain.Party{Username: "alice"},
		ToUser:   domain.Party{Username: "bob"},
	}
}

func TestSend(t *testing.T) {
	svc, repo, notifier, enc := newMessages(t)

	repo.On("Create", mock.Anything, mock.MatchedBy(func(m domain.NewMessage) bool {
		plain, err := enc.Decrypt(m.Body)
		return err == nil && plain == "hi" && m.FromUsername == "alice" && m.ToUsername == "bob" && m.SentAt.Equal(now)
	})).Return(&domain.Message{ID: testID, FromUsername: "alice", ToUsername: "bob", Body: "sealed", SentAt: now}, nil)

	msg, err := svc.Send(context.Background(), alice, service.SendInput{ToUsername: "bob", Body: "hi"})
	require.NoError(t, err)
	assert.Equal(t, "hi", msg.Body)
	assert.Nil(t, msg.ReadAt)

	events := notifier.Events()
	require.Len(t, events, 1)
	assert.Equal(t, "bob", events[0].To)
	assert.Equal(t, domain.EventMessage, events[0].Event.Type)
}

func TestSend_Rejections(t *testing.T) {
	cases := []struct {
		name string
		who  domain.Identity
		in   service.SendInput
		want error
	}{
		{"unauthenticated", domain.Identity{}, service.SendInput{ToUsername: "bob", Body: "hi"}, domain.ErrForbidden},
		{"self", alice, service.SendInput{ToUsername: "alice", Body: "hi"}, domain.ErrInvalidInput},
		{"empty body", alice, service.SendInput{ToUsername: "bob"}, domain.ErrInvalidInput},
		{"no recipient", alice, service.SendInput{Body: "hi"}, domain.ErrInvalidInput},
		{"too long", alice, service.SendInput{ToUsername: "bob", Body: strings.Repeat("é", 5001)}, domain.ErrInvalidInput},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			svc, repo, notifier, _ := newMessages(t)
			_, err := svc.Send(context.Background(), tc.who, tc.in)
			assert.ErrorIs(t, err, tc.want)
			repo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
			assert.Empty(t, notifier.Events())
		})
	}
}

func TestSend_MaxLengthCountsRunes(t *testing.T) {
	svc, repo, _, _ := newMessages(t)
	repo.On("Create", mock.Anything, mock.Anything).Return(&domain.Message{ID: testID, ToUsername: "bob"}, nil)

	_, err := svc.Send(context.Background(), alice, service.SendInput{ToUsername: "bob", Body: strings.Repeat("é", 5000)})
	assert.NoError(t, err)
}

func TestSend_UnknownRecipient(t *testing.T) {
	svc, repo, notifier, _ := newMessages(t)
	repo.On("Create", mock.Anything, mock.Anything).Return(nil, domain.ErrUserNotFound)

	_, err := svc.Send(context.Background(), alice, service.SendInput{ToUsername: "ghost", Body: "hi"})
	assert.ErrorIs(t, err, domain.ErrUserNotFound)
	assert.Empty(t, notifier.Events())
}

func TestGet_PartiesOnly(t *testing.T) {
	svc, repo, _, enc := newMessages(t)

	for _, who := range []domain.Identity{alice, bob} {
		repo.On("Get", mock.Anything, testID).Return(detail(t, enc, nil), nil).Once()
		m, err := svc.Get(context.Background(), who, testID)
		require.NoError(t, err)
		assert.Equal(t, "hi", m.Body)
	}

	repo.On("Get", mock.Anything, testID).Return(detail(t, enc, nil), nil).Once()
	_, err := svc.Get(context.Background(), carol, testID)
	assert.ErrorIs(t, err, domain.ErrForbidden)
}

func TestGet_MissingLooksForbidden(t *testing.T) {
	svc, repo, _, _ := newMessages(t)
	repo.On("Get", mock.Anything, "nope").Return(nil, domain.ErrMessageNotFound)

	_, err := svc.Get(context.Background(), alice, "nope")
	assert.Equal(t, domain.ErrForbidden, err)
}

func TestGet_StoreFailure(t *testing.T) {
	svc, repo, _, _ := newMessages(t)
	repo.On("Get", mock.Anything, testID).Return(nil, errors.New("db down"))

	_, err := svc.Get(context.Background(), alice, testID)
	assert.Error(t, err)
	assert.NotErrorIs(t, err, domain.ErrForbidden)
}

func TestMarkRead_Recipient(t *testing.T) {
	svc, repo, notifier, enc := newMessages(t)
	repo.On("Get", mock.Anything, testID).Return(detail(t, enc, nil), nil)
	readAt := now
	repo.On("MarkRead", mock.Anything, testID, now).
		Return(&domain.Message{ID: testID, FromUsername: "alice", ToUsername: "bob", ReadAt: &readAt}, nil)

	receipt, err := svc.MarkRead(context.Background(), bob, testID)
	require.NoError(t, err)
	assert.Equal(t, testID, receipt.ID)
	assert.True(t, receipt.ReadAt.Equal(now))

	events := notifier.Events()
	require.Len(t, events, 1)
	assert.Equal(t, "alice", events[0].To)
	assert.Equal(t, domain.EventMessageRead, events[0].Event.Type)
}

func TestMarkRead_SenderAndStrangerForbidden(t *testing.T) {
	svc, repo, notifier, enc := newMessages(t)
	repo.On("Get", mock.Anything, testID).Return(detail(t, enc, nil), nil)

	for _, who := range []domain.Identity{alice, carol} {
		_, err := svc.MarkRead(context.Background(), who, testID)
		assert.ErrorIs(t, err, domain.ErrForbidden)
	}
	repo.AssertNotCalled(t, "MarkRead", mock.Anything, mock.Anything, mock.Anything)
	assert.Empty(t, notifier.Events())
}

func TestMarkRead_MissingLooksForbidden(t *testing.T) {
	svc, repo, _, _ := newMessages(t)
	repo.On("Get", mock.Anything, "nope").Return(nil, domain.ErrMessageNotFound)

	_, err := svc.MarkRead(context.Background(), bob, "nope")
	assert.Equal(t, domain.ErrForbidden, err)
	repo.AssertNotCalled(t, "MarkRead", mock.Anything, mock.Anything, mock.Anything)
}

func TestMarkRead_KeepsFirstTimestamp(t *testing.T) {
	svc, repo, _, enc := newMessages(t)
	first := now.Add(-time.Hour)
	repo.On("Get", mock.Anything, testID).Return(detail(t, enc, &first), nil)
	repo.On("MarkRead", mock.Anything, testID, now).
		Return(&domain.Message{ID: testID, FromUsername: "alice", ToUsername: "bob", ReadAt: &first}, nil)

	receipt, err := svc.MarkRead(context.Background(), bob, testID)
	require.NoError(t, err)
	assert.True(t, receipt.ReadAt.Equal(first))
}
