package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"

	"nutriauth/internal/domain/entity"
	"nutriauth/internal/domain/repository"
)

// challengeKeyPrefix namespaces MFA challenge keys in the shared Redis. Each
// challenge has a companion attempts key advanced with INCR so concurrent
// wrong guesses are counted atomically.
const (
	challengeKeyPrefix = "mfa:"
	attemptsKeySuffix  = ":attempts"
)

// redisChallengeStore implements the ChallengeStore interface on Redis.
// Redis key TTL enforces challenge expiry, and SET replaces any pending
// challenge so a reissue supersedes the old code atomically.
type redisChallengeStore struct {
	client *redis.Client
}

// NewChallengeStore is the constructor for redisChallengeStore.
func NewChallengeStore(client *redis.Client) repository.ChallengeStore {
	return &redisChallengeStore{client: client}
}

// Put stores a challenge under the subject with the given TTL.
func (s *redisChallengeStore) Put(ctx context.Context, subject string, challenge *entity.MfaChallenge, ttl time.Duration) error {
	if ttl <= 0 {
		// A non-positive TTL means the challenge already expired.
		return s.Delete(ctx, subject)
	}

	payload, err := json.Marshal(challenge)
	if err != nil {
		return errors.Wrap(err, "marshal mfa challenge")
	}

	pipe := s.client.TxPipeline()
	pipe.Set(ctx, challengeKeyPrefix+subject, payload, ttl)
	pipe.Del(ctx, challengeKeyPrefix+subject+attemptsKeySuffix)
	if _, err := pipe.Exec(ctx); err != nil {
		return errors.Wrap(err, "set mfa challenge")
	}

	return nil
}

// Get retrieves the pending challenge for a subject.
func (s *redisChallengeStore) Get(ctx context.Context, subject string) (*entity.MfaChallenge, error) {
	payload, err := s.client.Get(ctx, challengeKeyPrefix+subject).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, repository.ErrChallengeNotFound
		}

		return nil, errors.Wrap(err, "get mfa challenge")
	}

	var challenge entity.MfaChallenge
	if err := json.Unmarshal(payload, &challenge); err != nil {
		return nil, errors.Wrap(err, "unmarshal mfa challenge")
	}

	return &challenge, nil
}

// IncrAttempts advances the failed-verification counter with a single INCR,
// so two concurrent wrong guesses can never observe the same count.
func (s *redisChallengeStore) IncrAttempts(ctx context.Context, subject string, ttl time.Duration) (int64, error) {
	key := challengeKeyPrefix + subject + attemptsKeySuffix

	count, err := s.client.Incr(ctx, key).Result()
	if err != nil {
		return 0, errors.Wrap(err, "incr mfa attempts")
	}
	if count == 1 && ttl > 0 {
		if err := s.client.Expire(ctx, key, ttl).Err(); err != nil {
			return count, errors.Wrap(err, "expire mfa attempts")
		}
	}

	return count, nil
}

// Delete removes the pending challenge for a subject. The attempt counter is
// left to its TTL so in-flight guesses keep counting against the cap.
func (s *redisChallengeStore) Delete(ctx context.Context, subject string) error {
	if err := s.client.Del(ctx, challengeKeyPrefix+subject).Err(); err != nil {
		return errors.Wrap(err, "delete mfa challenge")
	}

	return nil
}
