package redisinfra

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/gram-sevak/internal/domain"
	"github.com/gram-sevak/internal/pkg/clock"
	"github.com/redis/go-redis/v9"
)

const keyPrefix = "otp:"

// ExpiredRetention keeps a key alive past its code's expiry so a late
// verification is reported as expired rather than missing.
const ExpiredRetention = 10 * time.Minute

// consumeScript deletes the key only when it still holds the expected value.
var consumeScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

type record struct {
	Code        string `json:"code"`
	ExpiresAtMs int64  `json:"expires_at_ms"`
}

func encode(rec domain.CredentialRecord) (string, error) {
	b, err := json.Marshal(record{Code: rec.Code, ExpiresAtMs: rec.ExpiresAt.UnixMilli()})
	if err != nil {
		return "", fmt.Errorf("marshal credential: %w", err)
	}
	return string(b), nil
}

func decode(s string) (domain.CredentialRecord, error) {
	var r record
	if err := json.Unmarshal([]byte(s), &r); err != nil {
		return domain.CredentialRecord{}, fmt.Errorf("unmarshal credential: %w", err)
	}
	return domain.CredentialRecord{Code: r.Code, ExpiresAt: time.UnixMilli(r.ExpiresAtMs)}, nil
}

// CredentialStore keeps one JSON value per identity under "otp:<identity>".
type CredentialStore struct {
	client *redis.Client
	clock  clock.Clock
}

func NewCredentialStore(client *redis.Client, c clock.Clock) *CredentialStore {
	return &CredentialStore{client: client, clock: c}
}

func (s *CredentialStore) Put(ctx context.Context, identity string, rec domain.CredentialRecord) error {
	val, err := encode(rec)
	if err != nil {
		return err
	}
	ttl := rec.ExpiresAt.Sub(s.clock.Now()) + ExpiredRetention
	if ttl <= 0 {
		ttl = ExpiredRetention
	}
	if err := s.client.Set(ctx, keyPrefix+identity, val, ttl).Err(); err != nil {
		return fmt.Errorf("redis set credential: %w", err)
	}
	return nil
}

func (s *CredentialStore) Get(ctx context.Context, identity string) (domain.CredentialRecord, bool, error) {
	val, err := s.client.Get(ctx, keyPrefix+identity).Result()
	if errors.Is(err, redis.Nil) {
		return domain.CredentialRecord{}, false, nil
	}
	if err != nil {
		return domain.CredentialRecord{}, false, fmt.Errorf("redis get credential: %w", err)
	}
	rec, err := decode(val)
	if err != nil {
		return domain.CredentialRecord{}, false, err
	}
	return rec, true, nil
}

func (s *CredentialStore) Delete(ctx context.Context, identity string) error {
	if err := s.client.Del(ctx, keyPrefix+identity).Err(); err != nil {
		return fmt.Errorf("redis delete credential: %w", err)
	}
	return nil
}

// Consume removes the record for identity only if it still equals rec.
func (s *CredentialStore) Consume(ctx context.Context, identity string, rec domain.CredentialRecord) (bool, error) {
	val, err := encode(rec)
	if err != nil {
		return false, err
	}
	n, err := consumeScript.Run(ctx, s.client, []string{keyPrefix + identity}, val).Int()
	if err != nil {
		return false, fmt.Errorf("redis consume credential: %w", err)
	}
	return n == 1, nil
}
