package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fleet-tracking-service/internal/domain"
	"fleet-tracking-service/internal/platform/obs"
	"fleet-tracking-service/internal/ports"
	"fmt"
	"log"

	"github.com/redis/go-redis/v9"
)

const defaultGeocodeHash = "fleet:geocode"

// RedisGeocodeCache stores coordinates in a single Redis hash keyed by address.
type RedisGeocodeCache struct {
	Client *redis.Client
	Hash   string
}

var _ ports.GeocodeStore = (*RedisGeocodeCache)(nil)

func NewRedisGeocodeCache(client *redis.Client) *RedisGeocodeCache {
	return &RedisGeocodeCache{Client: client, Hash: defaultGeocodeHash}
}

// NewRedisClient connects and pings before returning.
func NewRedisClient(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("connect redis %s: %w", addr, err)
	}

	log.Printf("redis connected addr=%s db=%d", addr, db)
	return client, nil
}

func (s *RedisGeocodeCache) GetMany(
	ctx context.Context,
	addresses []string,
) (_ map[string]domain.Coordinates, err error) {
	defer obs.Time(ctx, "geocode.redis.GetMany")(&err)

	if s.Client == nil {
		return nil, errors.New("geocode cache: redis client is nil")
	}

	uniq := uniqueAddresses(addresses)
	if len(uniq) == 0 {
		return map[string]domain.Coordinates{}, nil
	}

	vals, err := s.Client.HMGet(ctx, s.Hash, uniq...).Result()
	if err != nil {
		return nil, fmt.Errorf("get geocode cache: hmget: %w", err)
	}

	out := make(map[string]domain.Coordinates, len(uniq))
	for i, v := range vals {
		raw, ok := v.(string)
		if !ok {
			continue
		}
		var c domain.Coordinates
		if err := json.Unmarshal([]byte(raw), &c); err != nil {
			log.Printf("geocode cache: skip corrupt entry address=%q err=%v", uniq[i], err)
			continue
		}
		out[uniq[i]] = c
	}

	return out, nil
}

func (s *RedisGeocodeCache) PutMany(ctx context.Context, results map[string]domain.Coordinates) error {
	if s.Client == nil {
		return errors.New("geocode cache: redis client is nil")
	}

	if len(results) == 0 {
		return nil
	}

	pipe := s.Client.TxPipeline()
	for addr, c := range results {
		if addr == "" {
			return fmt.Errorf("insert geocode cache: empty address key")
		}
		b, err := json.Marshal(c)
		if err != nil {
			return fmt.Errorf("insert geocode cache address=%q: %w", addr, err)
		}
		pipe.HSetNX(ctx, s.Hash, addr, string(b))
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("insert geocode cache: exec: %w", err)
	}

	return nil
}
