package session

import (
	"context"
	"errors"
	"time"

	"github.com/Sakin08/Doctors-Appointment/libs/auth"
	"github.com/redis/go-redis/v9"
)

// RedisStore keeps the token under "<prefix>:token". JWTs expire with their exp claim.
type RedisStore struct {
	client redis.Cmdable
	key    string
	now    func() time.Time
}

func NewRedisStore(client redis.Cmdable, prefix string) *RedisStore {
	if prefix == "" {
		prefix = "patientctl"
	}
	return &RedisStore{client: client, key: prefix + ":" + Key, now: time.Now}
}

func (r *RedisStore) Load(ctx context.Context) (string, error) {
	v, err := r.client.Get(ctx, r.key).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrNotFound
	}
	return v, err
}

func (r *RedisStore) Save(ctx context.Context, token string) error {
	var ttl time.Duration
	if exp, ok := auth.ExpiresAt(token); ok {
		ttl = exp.Sub(r.now())
		if ttl <= 0 {
			return r.Delete(ctx)
		}
	}
	return r.client.Set(ctx, r.key, token, ttl).Err()
}

func (r *RedisStore) Delete(ctx context.Context) error {
	return r.client.Del(ctx, r.key).Err()
}
