package cache

import (
	"context"
	"time"

	"github.com/emrgen/plm/internal/compress"
	"github.com/emrgen/plm/internal/model"
	redis "github.com/redis/go-redis/v9"
)

const componentsTTL = time.Hour

// NewRedisClient connects to redis at addr.
func NewRedisClient(addr, password string, db int) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
		Protocol: 2,
	})
}

var _ ComponentCache = (*Redis)(nil)

// Redis is the shared component cache used when several server instances run.
type Redis struct {
	kv *KV
}

func NewRedis(client *redis.Client) *Redis {
	return &Redis{kv: NewKV(client, compress.NewGZip())}
}

func (r *Redis) GetComponents(ctx context.Context, code string) ([]*model.Component, bool, error) {
	var components []*model.Component
	ok, err := r.kv.Get(ctx, componentsKey(code), &components)
	if err != nil || !ok {
		return nil, false, err
	}

	return components, true, nil
}

func (r *Redis) SetComponents(ctx context.Context, code string, components []*model.Component) error {
	return r.kv.Set(ctx, componentsKey(code), components, componentsTTL)
}

func (r *Redis) InvalidateComponents(ctx context.Context, codes ...string) error {
	keys := make([]string, 0, len(codes))
	for _, code := range codes {
		keys = append(keys, componentsKey(code))
	}

	return r.kv.Delete(ctx, keys...)
}
