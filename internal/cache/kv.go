package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/emrgen/plm/internal/compress"
	redis "github.com/redis/go-redis/v9"
)

// KV stores JSON values in redis, compressed with the configured encoder.
type KV struct {
	client  *redis.Client
	encoder compress.Compress
}

func NewKV(client *redis.Client, encoder compress.Compress) *KV {
	if encoder == nil {
		encoder = compress.NewNop()
	}

	return &KV{client: client, encoder: encoder}
}

func (kv *KV) Set(ctx context.Context, key string, v any, ttl time.Duration) error {
	value, err := json.Marshal(v)
	if err != nil {
		return err
	}

	encoded, err := kv.encoder.Encode(value)
	if err != nil {
		return err
	}

	return kv.client.Set(ctx, key, encoded, ttl).Err()
}

// Get decodes the value at key into v. It reports false on a cache miss.
func (kv *KV) Get(ctx context.Context, key string, v any) (bool, error) {
	res := kv.client.Get(ctx, key)
	if res.Err() != nil {
		if errors.Is(res.Err(), redis.Nil) {
			return false, nil
		}
		return false, res.Err()
	}

	buf, err := res.Bytes()
	if err != nil {
		return false, err
	}

	decoded, err := kv.encoder.Decode(buf)
	if err != nil {
		return false, err
	}

	return true, json.Unmarshal(decoded, v)
}

func (kv *KV) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}

	return kv.client.Del(ctx, keys...).Err()
}
