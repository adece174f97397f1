// Package cache stores frame descriptions in redis so a rerun of the same
// frames, instructions and model serves identical results without spending
// tokens again. Entries are keyed by a content hash provided by the caller
// and carry the full description result, token counts included.
package cache

import (
	"context"
	"time"

	"github.com/bytedance/sonic"
	"github.com/redis/go-redis/v9"

	"github.com/semdiff/videodiff/internal/models"
)

const keyPrefix = "videodiff:desc:"

type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisCache(addr, password string, db int, ttl time.Duration) *RedisCache {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	return &RedisCache{
		client: rdb,
		ttl:    ttl,
	}
}

// Get returns the stored result for key. A missing key is not an error; an
// entry that no longer decodes is reported as a miss with the decode error so
// the caller refetches instead of failing the run.
func (r *RedisCache) Get(ctx context.Context, key string) (models.DescriptionResult, bool, error) {
	val, err := r.client.Get(ctx, keyPrefix+key).Result()
	if err == redis.Nil {
		return models.DescriptionResult{}, false, nil
	}
	if err != nil {
		return models.DescriptionResult{}, false, err
	}
	res, err := decodeResult(val)
	if err != nil {
		return models.DescriptionResult{}, false, err
	}
	return res, true, nil
}

func (r *RedisCache) Set(ctx context.Context, key string, res models.DescriptionResult) error {
	data, err := encodeResult(res)
	if err != nil {
		return err
	}
	return r.client.Set(ctx, keyPrefix+key, data, r.ttl).Err()
}

func encodeResult(res models.DescriptionResult) (string, error) {
	return sonic.MarshalString(res)
}

func decodeResult(data string) (models.DescriptionResult, error) {
	var res models.DescriptionResult
	if err := sonic.UnmarshalString(data, &res); err != nil {
		return models.DescriptionResult{}, err
	}
	return res, nil
}
