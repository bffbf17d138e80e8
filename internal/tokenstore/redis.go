package tokenstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"dfp-neo/backend/internal/autherr"
)

// DefaultGrace is how long Redis keeps an entry past its expiry so reads in that window
// report autherr.ErrExpired rather than autherr.ErrNotFound.
const DefaultGrace = 10 * time.Minute

const maxUpdateRetries = 8

type redisPayload[T Record] struct {
	Value     T         `json:"v"`
	ExpiresAt time.Time `json:"exp"`
}

// RedisStore is a Store shared by every server instance. Entries are JSON documents
// under prefix+key; Update uses WATCH/MULTI so concurrent consumers of the same key
// serialize across processes.
type RedisStore[T Record] struct {
	client redis.UniversalClient
	prefix string
	grace  time.Duration
	nowF   func() time.Time
}

// NewRedisStore returns a store that namespaces its keys under prefix (e.g. "dfp:session:").
func NewRedisStore[T Record](client redis.UniversalClient, prefix string) *RedisStore[T] {
	return &RedisStore[T]{
		client: client,
		prefix: prefix,
		grace:  DefaultGrace,
		nowF:   time.Now,
	}
}

// WithClock replaces the store's clock. Tests only.
func (s *RedisStore[T]) WithClock(now func() time.Time) *RedisStore[T] {
	s.nowF = now
	return s
}

func (s *RedisStore[T]) k(key string) string { return s.prefix + key }

func (s *RedisStore[T]) decode(raw []byte) (redisPayload[T], error) {
	var p redisPayload[T]
	if err := json.Unmarshal(raw, &p); err != nil {
		return p, fmt.Errorf("tokenstore: decode: %w", err)
	}
	return p, nil
}

// Put writes rec with a Redis TTL of ttl plus the grace window.
func (s *RedisStore[T]) Put(ctx context.Context, key string, rec T, ttl time.Duration) (time.Time, error) {
	if err := checkPut(key, rec, ttl); err != nil {
		return time.Time{}, err
	}
	expiresAt := s.nowF().UTC().Add(ttl)
	raw, err := json.Marshal(redisPayload[T]{Value: rec, ExpiresAt: expiresAt})
	if err != nil {
		return time.Time{}, autherr.Internal(err)
	}
	if err := s.client.Set(ctx, s.k(key), raw, ttl+s.grace).Err(); err != nil {
		return time.Time{}, autherr.Internal(fmt.Errorf("tokenstore: set: %w", err))
	}
	return expiresAt, nil
}

// Get returns the entry for key, deleting it when expired.
func (s *RedisStore[T]) Get(ctx context.Context, key string) (Entry[T], error) {
	if err := checkKey(key); err != nil {
		return Entry[T]{}, err
	}
	raw, err := s.client.Get(ctx, s.k(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return Entry[T]{}, autherr.ErrNotFound
	}
	if err != nil {
		return Entry[T]{}, autherr.Internal(fmt.Errorf("tokenstore: get: %w", err))
	}
	p, err := s.decode(raw)
	if err != nil {
		return Entry[T]{}, autherr.Internal(err)
	}
	if s.nowF().After(p.ExpiresAt) {
		if err := s.client.Del(ctx, s.k(key)).Err(); err != nil {
			return Entry[T]{}, autherr.Internal(fmt.Errorf("tokenstore: evict: %w", err))
		}
		return Entry[T]{}, autherr.ErrExpired
	}
	return Entry[T]{Value: p.Value, ExpiresAt: p.ExpiresAt}, nil
}

// Delete removes key.
func (s *RedisStore[T]) Delete(ctx context.Context, key string) error {
	if err := checkKey(key); err != nil {
		return err
	}
	if err := s.client.Del(ctx, s.k(key)).Err(); err != nil {
		return autherr.Internal(fmt.Errorf("tokenstore: del: %w", err))
	}
	return nil
}

// Update applies fn inside an optimistic transaction, retrying when another client
// touches the key between WATCH and EXEC.
func (s *RedisStore[T]) Update(ctx context.Context, key string, fn UpdateFunc[T]) (Entry[T], error) {
	if err := checkKey(key); err != nil {
		return Entry[T]{}, err
	}
	rk := s.k(key)
	var out Entry[T]
	txf := func(tx *redis.Tx) error {
		raw, err := tx.Get(ctx, rk).Bytes()
		if errors.Is(err, redis.Nil) {
			return autherr.ErrNotFound
		}
		if err != nil {
			return err
		}
		p, err := s.decode(raw)
		if err != nil {
			return err
		}
		if s.nowF().After(p.ExpiresAt) {
			_, err := tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.Del(ctx, rk)
				return nil
			})
			if err != nil {
				return err
			}
			return autherr.ErrExpired
		}
		next, err := fn(p.Value)
		if err != nil {
			return err
		}
		if err := checkRecord(next); err != nil {
			return err
		}
		p.Value = next
		enc, err := json.Marshal(p)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, rk, enc, redis.KeepTTL)
			return nil
		})
		if err != nil {
			return err
		}
		out = Entry[T]{Value: next, ExpiresAt: p.ExpiresAt}
		return nil
	}
	for i := 0; i < maxUpdateRetries; i++ {
		err := s.client.Watch(ctx, txf, rk)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil {
			return Entry[T]{}, autherr.Internal(err)
		}
		return out, nil
	}
	return Entry[T]{}, autherr.Internal(errors.New("tokenstore: update: too much contention"))
}

// scan walks every key under the prefix and calls visit with the decoded payload.
// Keys that vanish or fail to decode between SCAN and GET are skipped.
func (s *RedisStore[T]) scan(ctx context.Context, visit func(key string, p redisPayload[T]) bool) (int, error) {
	iter := s.client.Scan(ctx, 0, s.prefix+"*", 200).Iterator()
	n := 0
	for iter.Next(ctx) {
		rk := iter.Val()
		raw, err := s.client.Get(ctx, rk).Bytes()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			return n, autherr.Internal(fmt.Errorf("tokenstore: scan get: %w", err))
		}
		p, err := s.decode(raw)
		if err != nil {
			continue
		}
		if !visit(rk[len(s.prefix):], p) {
			continue
		}
		deleted, err := s.client.Del(ctx, rk).Result()
		if err != nil {
			return n, autherr.Internal(fmt.Errorf("tokenstore: scan del: %w", err))
		}
		n += int(deleted)
	}
	if err := iter.Err(); err != nil {
		return n, autherr.Internal(fmt.Errorf("tokenstore: scan: %w", err))
	}
	return n, nil
}

// DeleteMatching scans the prefix and removes entries for which match returns true.
func (s *RedisStore[T]) DeleteMatching(ctx context.Context, match func(key string, rec T) bool) (int, error) {
	return s.scan(ctx, func(key string, p redisPayload[T]) bool {
		return match(key, p.Value)
	})
}

// Sweep removes entries already past expiry but still inside the grace window.
func (s *RedisStore[T]) Sweep(ctx context.Context) (int, error) {
	now := s.nowF()
	return s.scan(ctx, func(_ string, p redisPayload[T]) bool {
		return now.After(p.ExpiresAt)
	})
}
