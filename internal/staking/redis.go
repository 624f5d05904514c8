package staking

import (
	"context"
	"fmt"

	platformredis "agora/internal/platform/redis"
)

// RedisSetStore keeps registration membership in Redis sets, one set per
// proposal. Survives process restarts, unlike the in-memory store.
type RedisSetStore struct {
	client *platformredis.Client
}

// NewRedisSetStore creates a Redis-backed membership store.
func NewRedisSetStore(client *platformredis.Client) *RedisSetStore {
	return &RedisSetStore{client: client}
}

func registrationKey(proposalID string) string {
	return "agora:registrations:" + proposalID
}

func (s *RedisSetStore) Add(ctx context.Context, proposalID, agent string) (bool, error) {
	added, err := s.client.SAdd(ctx, registrationKey(proposalID), agent).Result()
	if err != nil {
		return false, fmt.Errorf("adding registration: %w", err)
	}
	return added > 0, nil
}

func (s *RedisSetStore) Contains(ctx context.Context, proposalID, agent string) (bool, error) {
	ok, err := s.client.SIsMember(ctx, registrationKey(proposalID), agent).Result()
	if err != nil {
		return false, fmt.Errorf("checking registration: %w", err)
	}
	return ok, nil
}

func (s *RedisSetStore) Members(ctx context.Context, proposalID string) ([]string, error) {
	members, err := s.client.SMembers(ctx, registrationKey(proposalID)).Result()
	if err != nil {
		return nil, fmt.Errorf("listing registrations: %w", err)
	}
	return members, nil
}
