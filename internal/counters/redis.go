package counters

import (
	"context"
	"fmt"
	"slices"
	"strconv"

	"github.com/go-redis/redis/v8"
	"github.com/samber/lo"

	"github.com/Shivanand-hulikatti/gathering-registration/internal/model"
)

const (
	setOpened     = "opened"
	setRegistered = "registered"
	setCheckedIn  = "checked_in"
	setAdmins     = "admins"
	setInitiated  = "accommodation_initiated"
)

// RedisStore keeps each counter as a Redis set under a common prefix.
type RedisStore struct {
	c      *redis.Client
	prefix string
}

// NewRedisStore returns a store using keys "<prefix><set>".
func NewRedisStore(c *redis.Client, prefix string) *RedisStore {
	return &RedisStore{c: c, prefix: prefix}
}

func (s *RedisStore) key(set string) string { return s.prefix + set }

// Load reads every set.
func (s *RedisStore) Load(ctx context.Context) (model.Counters, error) {
	var (
		c   model.Counters
		err error
	)
	if c.Opened, err = s.users(ctx, setOpened); err != nil {
		return model.Counters{}, err
	}
	if c.Registered, err = s.users(ctx, setRegistered); err != nil {
		return model.Counters{}, err
	}
	if c.Admins, err = s.users(ctx, setAdmins); err != nil {
		return model.Counters{}, err
	}
	if c.AccommodationInitiated, err = s.users(ctx, setInitiated); err != nil {
		return model.Counters{}, err
	}
	if c.CheckedIn, err = s.c.SMembers(ctx, s.key(setCheckedIn)).Result(); err != nil {
		return model.Counters{}, fmt.Errorf("read %s: %w", setCheckedIn, err)
	}
	slices.Sort(c.CheckedIn)
	return c, nil
}

func (s *RedisStore) users(ctx context.Context, set string) ([]model.UserID, error) {
	members, err := s.c.SMembers(ctx, s.key(set)).Result()
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", set, err)
	}
	ids := make([]model.UserID, 0, len(members))
	for _, m := range members {
		id, err := strconv.ParseInt(m, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("read %s: member %q: %w", set, m, err)
		}
		ids = append(ids, model.UserID(id))
	}
	slices.Sort(ids)
	return ids, nil
}

// Save replaces every set atomically.
func (s *RedisStore) Save(ctx context.Context, c model.Counters) error {
	sets := map[string][]string{
		setOpened:     userMembers(c.Opened),
		setRegistered: userMembers(c.Registered),
		setCheckedIn:  c.CheckedIn,
		setAdmins:     userMembers(c.Admins),
		setInitiated:  userMembers(c.AccommodationInitiated),
	}

	_, err := s.c.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for set, members := range sets {
			pipe.Del(ctx, s.key(set))
			if len(members) > 0 {
				pipe.SAdd(ctx, s.key(set), lo.ToAnySlice(members)...)
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("write counters: %w", err)
	}
	return nil
}

func userMembers(ids []model.UserID) []string {
	return lo.Map(ids, func(id model.UserID, _ int) string {
		return strconv.FormatInt(int64(id), 10)
	})
}
