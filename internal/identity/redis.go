package identity

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Hash fields used by RedisStore.
const (
	fieldUserID = "user_id"
	fieldToken  = "access_token"
	fieldExpiry = "expiry"
)

// hashClient is the subset of redis commands RedisStore needs.
type hashClient interface {
	HGetAll(ctx context.Context, key string) *redis.MapStringStringCmd
	HSet(ctx context.Context, key string, values ...interface{}) *redis.IntCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

// RedisStore keeps the identity in a redis hash shared with the web session.
type RedisStore struct {
	client hashClient
	key    string
}

// NewRedisStore creates a store reading the hash "<prefix>:<name>".
func NewRedisStore(client redis.Cmdable, prefix, name string) *RedisStore {
	return newRedisStore(client, prefix, name)
}

func newRedisStore(client hashClient, prefix, name string) *RedisStore {
	return &RedisStore{client: client, key: Key(prefix, name)}
}

// Key returns the hash key for a session name.
func Key(prefix, name string) string {
	if prefix == "" {
		return name
	}
	return prefix + ":" + name
}

// Load reads the identity hash.
func (r *RedisStore) Load(ctx context.Context) (Identity, error) {
	fields, err := r.client.HGetAll(ctx, r.key).Result()
	if err != nil {
		return Identity{}, fmt.Errorf("read identity %s: %w", r.key, err)
	}

	id := Identity{
		UserID: fields[fieldUserID],
		Token:  fields[fieldToken],
	}
	if raw := fields[fieldExpiry]; raw != "" {
		expiry, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return Identity{}, fmt.Errorf("parse identity expiry: %w", err)
		}
		id.Expiry = expiry
	}
	if id.IsZero() {
		return Identity{}, ErrNoIdentity
	}
	return id, nil
}

// Save writes the identity hash.
func (r *RedisStore) Save(ctx context.Context, id Identity) error {
	values := []interface{}{fieldUserID, id.UserID, fieldToken, id.Token}
	if !id.Expiry.IsZero() {
		values = append(values, fieldExpiry, id.Expiry.UTC().Format(time.RFC3339))
	}
	if err := r.client.HSet(ctx, r.key, values...).Err(); err != nil {
		return fmt.Errorf("write identity %s: %w", r.key, err)
	}
	return nil
}

// Delete removes the identity hash.
func (r *RedisStore) Delete(ctx context.Context) error {
	if err := r.client.Del(ctx, r.key).Err(); err != nil {
		return fmt.Errorf("delete identity %s: %w", r.key, err)
	}
	return nil
}
