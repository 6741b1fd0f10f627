package store

import (
	"context"
	"slices"

	"github.com/redis/go-redis/v9"

	compliance "secutoken/internal/compliance/models"
	id "secutoken/pkg/domain"
	"secutoken/pkg/platform/sentinel"
)

const rolesKeyPrefix = "trust:roles:"

// RedisStore keeps one set of role names per address.
type RedisStore struct {
	client *redis.Client
}

func NewRedis(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func rolesKey(addr id.Address) string {
	return rolesKeyPrefix + addr.String()
}

func (s *RedisStore) Add(ctx context.Context, addr id.Address, role compliance.Role) error {
	return s.client.SAdd(ctx, rolesKey(addr), string(role)).Err()
}

func (s *RedisStore) Remove(ctx context.Context, addr id.Address, role compliance.Role) error {
	n, err := s.client.SRem(ctx, rolesKey(addr), string(role)).Result()
	if err != nil {
		return err
	}
	if n == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *RedisStore) Has(ctx context.Context, addr id.Address, role compliance.Role) (bool, error) {
	return s.client.SIsMember(ctx, rolesKey(addr), string(role)).Result()
}

func (s *RedisStore) Roles(ctx context.Context, addr id.Address) ([]compliance.Role, error) {
	members, err := s.client.SMembers(ctx, rolesKey(addr)).Result()
	if err != nil {
		return nil, err
	}
	out := make([]compliance.Role, 0, len(members))
	for _, m := range members {
		out = append(out, compliance.Role(m))
	}
	slices.Sort(out)
	return out, nil
}
