package service_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"messagely/internal/cache"
	"messagely/internal/domain"
	"messagely/internal/logging"
	"messagely/internal/service"
)

var roster = []domain.UserSummary{
	{Username: "amy", FirstName: "Amy", LastName: "Adams"},
	{Username: "bob", FirstName: "Bob", LastName: "Brown"},
}

func TestRoster_NoCache(t *testing.T) {
	repo := new(MockUserRepo)
	svc := service.NewUserService(repo, nil, newEncryptor(t), logging.Discard())
	repo.On("All", mock.Anything).Return(roster, nil)

	got, err := svc.Roster(context.Background(), carol)
	require.NoError(t, err)
	assert.Equal(t, roster, got)
}

func TestRoster_Unauthenticated(t *testing.T) {
	repo := new(MockUserRepo)
	svc := service.NewUserService(repo, nil, newEncryptor(t), logging.Discard())

	_, err := svc.Roster(context.Background(), domain.Identity{})
	assert.ErrorIs(t, err, domain.ErrForbidden)
	repo.AssertNotCalled(t, "All", mock.Anything)
}

func TestRoster_CacheHitSkipsStore(t *testing.T) {
	repo := new(MockUserRepo)
	cache := new(MockRosterCache)
	svc := service.NewUserService(repo, cache, newEncryptor(t), logging.Discard())
	cache.On("Roster", mock.Anything).Return(roster, int64(3), nil)

	got, err := svc.Roster(context.Background(), alice)
	require.NoError(t, err)
	assert.Equal(t, roster, got)
	repo.AssertNotCalled(t, "All", mock.Anything)
}

func TestRoster_CacheMissFillsCache(t *testing.T) {
	repo := new(MockUserRepo)
	cache := new(MockRosterCache)
	svc := service.NewUserService(repo, cache, newEncryptor(t), logging.Discard())
	cache.On("Roster", mock.Anything).Return(nil, int64(3), nil)
	repo.On("All", mock.Anything).Return(roster, nil)
	cache.On("SetRoster", mock.Anything, int64(3), roster).Return(nil)

	got, err := svc.Roster(context.Background(), alice)
	require.NoError(t, err)
	assert.Equal(t, roster, got)
	cache.AssertExpectations(t)
}

func TestRoster_CacheErrorFallsThrough(t *testing.T) {
	repo := new(MockUserRepo)
	cache := new(MockRosterCache)
	svc := service.NewUserService(repo, cache, newEncryptor(t), logging.Discard())
	cache.On("Roster", mock.Anything).Return(nil, int64(0), errors.New("redis down"))
	repo.On("All", mock.Anything).Return(roster, nil)

	got, err := svc.Roster(context.Background(), alice)
	require.NoError(t, err)
	assert.Equal(t, roster, got)
	cache.AssertNotCalled(t, "SetRoster", mock.Anything, mock.Anything, mock.Anything)
}

func TestRoster_CacheWriteFailureIsIgnored(t *testing.T) {
	repo := new(MockUserRepo)
	cache := new(MockRosterCache)
	svc := service.NewUserService(repo, cache, newEncryptor(t), logging.Discard())
	cache.On("Roster", mock.Anything).Return(nil, int64(0), nil)
	repo.On("All", mock.Anything).Return(roster, nil)
	cache.On("SetRoster", mock.Anything, int64(0), roster).Return(errors.New("redis down"))

	got, err := svc.Roster(context.Background(), alice)
	require.NoError(t, err)
	assert.Equal(t, roster, got)
}

func TestRoster_RegistrationDuringReadIsNotCachedStale(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })
	rc := cache.NewRosterCache(rdb, time.Minute)

	repo := new(MockUserRepo)
	svc := service.NewUserService(repo, rc, newEncryptor(t), logging.Discard())
	stale := roster[:1]
	repo.On("All", mock.Anything).Return(stale, nil).Once().Run(func(args mock.Arguments) {
		// bob registers between the listing and the cache fill.
		require.NoError(t, rc.InvalidateRoster(context.Background()))
	})
	repo.On("All", mock.Anything).Return(roster, nil).Once()

	got, err := svc.Roster(context.Background(), alice)
	require.NoError(t, err)
	assert.Equal(t, stale, got)

	got, err = svc.Roster(context.Background(), alice)
	require.NoError(t, err)
	assert.Equal(t, roster, got)
	repo.AssertExpectations(t)
}

func TestProfile_SelfOnly(t *testing.T) {
	repo := new(MockUserRepo)
	svc := service.NewUserService(repo, nil, newEncryptor(t), logging.Discard())
	repo.On("Get", mock.Anything, "alice").Return(&domain.User{Username: "alice"}, nil)

	u, err := svc.Profile(context.Background(), alice, "alice")
	require.NoError(t, err)
	assert.Equal(t, "alice", u.Username)

	_, err = svc.Profile(context.Background(), bob, "alice")
	assert.ErrorIs(t, err, domain.ErrForbidden)

	// Denial happens before lookup, so unknown names look the same.
	_, err = svc.Profile(context.Background(), bob, "ghost")
	assert.ErrorIs(t, err, domain.ErrForbidden)
	repo.AssertNumberOfCalls(t, "Get", 1)
}

func TestSent_DecryptsBodies(t *testing.T) {
	enc := newEncryptor(t)
	repo := new(MockUserRepo)
	svc := service.NewUserService(repo, nil, enc, logging.Discard())
	repo.On("MessagesFrom", mock.Anything, "alice").Return([]domain.SentMessage{
		{ID: testID, Body: seal(t, enc, "hi bob"), SentAt: now, ToUser: domain.Party{Username: "bob"}},
	}, nil)

	msgs, err := svc.Sent(context.Background(), alice, "alice")
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, "hi bob", msgs[0].Body)
	assert.Equal(t, "bob", msgs[0].ToUser.Username)
}

func TestReceived_DecryptsBodies(t *testing.T) {
	enc := newEncryptor(t)
	repo := new(MockUserRepo)
	svc := service.NewUserService(repo, nil, enc, logging.Discard())
	repo.On("MessagesTo", mock.Anything, "bob").Return([]domain.ReceivedMessage{
		{ID: testID, Body: seal(t, enc, "hi bob"), SentAt: now, FromUser: domain.Party{Username: "alice"}},
	}, nil)

	msgs, err := svc.Received(context.Background(), bob, "bob")
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, "hi bob", msgs[0].Body)
}

func TestMessageLists_DeniedWithoutStoreCall(t *testing.T) {
	repo := new(MockUserRepo)
	svc := service.NewUserService(repo, nil, newEncryptor(t), logging.Discard())

	_, err := svc.Sent(context.Background(), carol, "alice")
	assert.ErrorIs(t, err, domain.ErrForbidden)
	_, err = svc.Received(context.Background(), carol, "bob")
	assert.ErrorIs(t, err, domain.ErrForbidden)

	repo.AssertNotCalled(t, "MessagesFrom", mock.Anything, mock.Anything)
	repo.AssertNotCalled(t, "MessagesTo", mock.Anything, mock.Anything)
}

func TestReceived_UndecryptableBody(t *testing.T) {
	repo := new(MockUserRepo)
	svc := service.NewUserService(repo, nil, newEncryptor(t), logging.Discard())
	repo.On("MessagesTo", mock.Anything, "bob").Return([]domain.ReceivedMessage{
		{ID: testID, Body: "plaintext"},
	}, nil)

	_, err := svc.Received(context.Background(), bob, "bob")
	assert.Error(t, err)
}
