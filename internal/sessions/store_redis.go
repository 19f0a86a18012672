package sessions

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisMaxTxRetries = 10

// RedisStore keeps each session as a JSON document under prefix+id.
// Updates use WATCH/MULTI so concurrent writers never lose a field.
type RedisStore struct {
	Client *redis.Client
	Prefix string
	Now    func() time.Time
}

// NewRedisClient dials addr and verifies connectivity.
func NewRedisClient(ctx context.Context, addr string) (*redis.Client, error) {
	if addr == "" {
		return nil, fmt.Errorf("REDIS_ADDR is empty")
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:        addr,
		DialTimeout: 5 * time.Second,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return rdb, nil
}

func (s *RedisStore) key(id string) string {
	return s.Prefix + id
}

func (s *RedisStore) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now().UTC()
}

// Create stores a new session, failing when the id exists.
func (s *RedisStore) Create(ctx context.Context, sess Session) (Session, error) {
	if sess.ID == "" {
		return Session{}, ErrValidation
	}
	now := s.now()
	if sess.CreatedAt.IsZero() {
		sess.CreatedAt = now
	}
	sess.UpdatedAt = now
	payload, err := json.Marshal(sess)
	if err != nil {
		return Session{}, fmt.Errorf("encode session: %w", err)
	}
	ok, err := s.Client.SetNX(ctx, s.key(sess.ID), payload, 0).Result()
	if err != nil {
		return Session{}, fmt.Errorf("redis create session: %w", err)
	}
	if !ok {
		return Session{}, ErrDuplicateID
	}
	return sess, nil
}

// Get returns a session by id.
func (s *RedisStore) Get(ctx context.Context, id string) (Session, error) {
	payload, err := s.Client.Get(ctx, s.key(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return Session{}, ErrNotFound
	}
	if err != nil {
		return Session{}, fmt.Errorf("redis get session: %w", err)
	}
	return decodeSession(payload)
}

// Update applies p inside an optimistic transaction, retrying when another writer wins.
func (s *RedisStore) Update(ctx context.Context, id string, p Patch) (Session, error) {
	key := s.key(id)
	var updated Session

	txf := func(tx *redis.Tx) error {
		payload, err := tx.Get(ctx, key).Bytes()
		if errors.Is(err, redis.Nil) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		current, err := decodeSession(payload)
		if err != nil {
			return err
		}
		next, err := p.Apply(current, s.now())
		if err != nil {
			return err
		}
		encoded, err := json.Marshal(next)
		if err != nil {
			return fmt.Errorf("encode session: %w", err)
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, encoded, 0)
			return nil
		})
		if err == nil {
			updated = next
		}
		return err
	}

	for attempt := 0; attempt < redisMaxTxRetries; attempt++ {
		err := s.Client.Watch(ctx, txf, key)
		if err == nil {
			return updated, nil
		}
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if errors.Is(err, ErrNotFound) || errors.Is(err, ErrConflict) {
			return Session{}, err
		}
		return Session{}, fmt.Errorf("redis update session: %w", err)
	}
	return Session{}, fmt.Errorf("redis update session %s: too much contention", id)
}

func decodeSession(payload []byte) (Session, error) {
	var sess Session
	if err := json.Unmarshal(payload, &sess); err != nil {
		return Session{}, fmt.Errorf("decode session: %w", err)
	}
	return sess, nil
}

var _ Store = (*RedisStore)(nil)
