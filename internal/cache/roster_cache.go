package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"messagely/internal/domain"
)

const (
	keyRoster    = "messagely:roster"
	keyRosterGen = "messagely:roster:gen"
)

// rosterEntry stamps a cached roster with the generation it was read under.
type rosterEntry struct {
	Gen   int64                `json:"gen"`
	Users []domain.UserSummary `json:"users"`
}

// RosterCache caches the user roster in Redis. Every invalidation bumps a
// generation counter; an entry written under an older generation is a miss.
type RosterCache struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewRosterCache(rdb *redis.Client, ttl time.Duration) *RosterCache {
	return &RosterCache{rdb: rdb, ttl: ttl}
}

// Roster returns the cached roster, or nil on a miss, together with the
// current generation to pass back to SetRoster.
func (c *RosterCache) Roster(ctx context.Context) ([]domain.UserSummary, int64, error) {
	vals, err := c.rdb.MGet(ctx, keyRoster, keyRosterGen).Result()
	if err != nil {
		return nil, 0, err
	}

	var gen int64
	if s, ok := vals[1].(string); ok {
		if gen, err = strconv.ParseInt(s, 10, 64); err != nil {
			return nil, 0, fmt.Errorf("parse roster generation: %w", err)
		}
	}

	s, ok := vals[0].(string)
	if !ok {
		return nil, gen, nil
	}
	var entry rosterEntry
	if err := json.Unmarshal([]byte(s), &entry); err != nil {
		return nil, gen, err
	}
	if entry.Gen != gen {
		return nil, gen, nil
	}
	if entry.Users == nil {
		entry.Users = []domain.UserSummary{}
	}
	return entry.Users, gen, nil
}

// SetRoster stores list as read under gen.
func (c *RosterCache) SetRoster(ctx context.Context, gen int64, list []domain.UserSummary) error {
	if list == nil {
		list = []domain.UserSummary{}
	}
	b, err := json.Marshal(rosterEntry{Gen: gen, Users: list})
	if err != nil {
		return err
	}
	return c.rdb.Set(ctx, keyRoster, b, c.ttl).Err()
}

// InvalidateRoster drops the cached roster after a user is added. Bumping the
// generation also voids any read that started before the write.
func (c *RosterCache) InvalidateRoster(ctx context.Context) error {
	_, err := c.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Incr(ctx, keyRosterGen)
		pipe.Del(ctx, keyRoster)
		return nil
	})
	return err
}
