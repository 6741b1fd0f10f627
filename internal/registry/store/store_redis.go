package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	compliance "secutoken/internal/compliance/models"
	"secutoken/internal/registry/models"
	id "secutoken/pkg/domain"
	"secutoken/pkg/platform/sentinel"
)

const (
	investorKeyPrefix = "registry:investor:"
	walletKeyPrefix   = "registry:wallet:"
	investorIndexKey  = "registry:investors"
	specialWalletsKey = "registry:special"
)

// RedisStore keeps the registry in Redis so several engine instances share
// one view. Investors are JSON strings; wallet ownership is a key per wallet
// and special wallets live in one hash.
type RedisStore struct {
	client *redis.Client
}

func NewRedis(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func investorKey(investorID id.InvestorID) string {
	return investorKeyPrefix + investorID.String()
}

func walletKey(wallet id.Address) string {
	return walletKeyPrefix + wallet.String()
}

func (s *RedisStore) Create(ctx context.Context, inv *models.Investor) error {
	data, err := json.Marshal(inv)
	if err != nil {
		return fmt.Errorf("encode investor: %w", err)
	}
	ok, err := s.client.SetNX(ctx, investorKey(inv.ID), data, 0).Result()
	if err != nil {
		return err
	}
	if !ok {
		return sentinel.ErrConflict
	}
	return s.client.SAdd(ctx, investorIndexKey, inv.ID.String()).Err()
}

func (s *RedisStore) FindByID(ctx context.Context, investorID id.InvestorID) (*models.Investor, error) {
	data, err := s.client.Get(ctx, investorKey(investorID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	var inv models.Investor
	if err := json.Unmarshal(data, &inv); err != nil {
		return nil, fmt.Errorf("decode investor %s: %w", investorID, err)
	}
	return &inv, nil
}

func (s *RedisStore) Save(ctx context.Context, inv *models.Investor) error {
	data, err := json.Marshal(inv)
	if err != nil {
		return fmt.Errorf("encode investor: %w", err)
	}
	ok, err := s.client.SetXX(ctx, investorKey(inv.ID), data, 0).Result()
	if err != nil {
		return err
	}
	if !ok {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *RedisStore) List(ctx context.Context) ([]*models.Investor, error) {
	ids, err := s.client.SMembers(ctx, investorIndexKey).Result()
	if err != nil {
		return nil, err
	}
	out := make([]*models.Investor, 0, len(ids))
	for _, raw := range ids {
		inv, err := s.FindByID(ctx, id.InvestorID(raw))
		if errors.Is(err, sentinel.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, inv)
	}
	return out, nil
}

func (s *RedisStore) InvestorOf(ctx context.Context, wallet id.Address) (id.InvestorID, error) {
	raw, err := s.client.Get(ctx, walletKey(wallet)).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return id.InvestorID(raw), nil
}

// AssignWallet moves a wallet to investorID. The previous owner's record and
// the new owner's record are rewritten in one MULTI/EXEC.
func (s *RedisStore) AssignWallet(ctx context.Context, wallet id.Address, investorID id.InvestorID) error {
	next, err := s.FindByID(ctx, investorID)
	if err != nil {
		return err
	}
	prevID, err := s.InvestorOf(ctx, wallet)
	if err != nil {
		return err
	}

	var prev *models.Investor
	if !prevID.IsNil() && prevID != investorID {
		prev, err = s.FindByID(ctx, prevID)
		if err != nil && !errors.Is(err, sentinel.ErrNotFound) {
			return err
		}
	}
	if !next.HasWallet(wallet) {
		next.Wallets = append(next.Wallets, wallet)
	}

	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		if prev != nil {
			prev.Wallets = removeAddress(prev.Wallets, wallet)
			data, err := json.Marshal(prev)
			if err != nil {
				return err
			}
			pipe.Set(ctx, investorKey(prev.ID), data, 0)
		}
		data, err := json.Marshal(next)
		if err != nil {
			return err
		}
		pipe.Set(ctx, investorKey(next.ID), data, 0)
		pipe.Set(ctx, walletKey(wallet), investorID.String(), 0)
		return nil
	})
	return err
}

func (s *RedisStore) RemoveWallet(ctx context.Context, wallet id.Address) error {
	prevID, err := s.InvestorOf(ctx, wallet)
	if err != nil {
		return err
	}
	if prevID.IsNil() {
		return sentinel.ErrNotFound
	}
	prev, err := s.FindByID(ctx, prevID)
	if err != nil && !errors.Is(err, sentinel.ErrNotFound) {
		return err
	}
	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		if prev != nil {
			prev.Wallets = removeAddress(prev.Wallets, wallet)
			data, err := json.Marshal(prev)
			if err != nil {
				return err
			}
			pipe.Set(ctx, investorKey(prev.ID), data, 0)
		}
		pipe.Del(ctx, walletKey(wallet))
		return nil
	})
	return err
}

func (s *RedisStore) SpecialKind(ctx context.Context, wallet id.Address) (compliance.SpecialKind, error) {
	raw, err := s.client.HGet(ctx, specialWalletsKey, wallet.String()).Result()
	if errors.Is(err, redis.Nil) {
		return compliance.SpecialNone, nil
	}
	if err != nil {
		return compliance.SpecialNone, err
	}
	return compliance.SpecialKind(raw), nil
}

func (s *RedisStore) SetSpecialKind(ctx context.Context, wallet id.Address, kind compliance.SpecialKind) error {
	if kind == compliance.SpecialNone {
		return s.client.HDel(ctx, specialWalletsKey, wallet.String()).Err()
	}
	return s.client.HSet(ctx, specialWalletsKey, wallet.String(), string(kind)).Err()
}
