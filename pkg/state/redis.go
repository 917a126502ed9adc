package state

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
)

// DefaultRedisPrefix is the table name records are stored under.
const DefaultRedisPrefix = "GNS3CP_DEPLOYMENT"

// RedisStore keeps each reservation as a hash at "<prefix>|<reservation>"
// whose fields are node IDs and values are JSON records.
type RedisStore struct {
	client *redis.Client
	prefix string
}

// NewRedisStore connects to the Redis server at addr.
func NewRedisStore(addr string, db int, prefix string) (*RedisStore, error) {
	if addr == "" {
		return nil, fmt.Errorf("state: redis address is required")
	}
	if prefix == "" {
		prefix = DefaultRedisPrefix
	}
	s := &RedisStore{
		client: redis.NewClient(&redis.Options{Addr: addr, DB: db}),
		prefix: prefix,
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.client.Ping(ctx).Err(); err != nil {
		s.client.Close()
		return nil, fmt.Errorf("state: connect to redis %s: %w", addr, err)
	}
	return s, nil
}

func (s *RedisStore) key(reservation string) string {
	return s.prefix + "|" + reservation
}

func (s *RedisStore) Save(ctx context.Context, r *Record) error {
	r.Updated = time.Now().UTC()
	data, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("state: marshal record: %w", err)
	}
	if err := s.client.HSet(ctx, s.key(r.Reservation), r.NodeID, data).Err(); err != nil {
		return fmt.Errorf("state: save %s/%s: %w", r.Reservation, r.NodeID, err)
	}
	return nil
}

func (s *RedisStore) Load(ctx context.Context, reservation, nodeID string) (*Record, error) {
	val, err := s.client.HGet(ctx, s.key(reservation), nodeID).Result()
	if err == redis.Nil {
		return nil, notFound(reservation, nodeID)
	}
	if err != nil {
		return nil, fmt.Errorf("state: load %s/%s: %w", reservation, nodeID, err)
	}
	var r Record
	if err := json.Unmarshal([]byte(val), &r); err != nil {
		return nil, fmt.Errorf("state: parse %s/%s: %w", reservation, nodeID, err)
	}
	return &r, nil
}

func (s *RedisStore) List(ctx context.Context, reservation string) ([]*Record, error) {
	keys := []string{s.key(reservation)}
	if reservation == "" {
		var err error
		keys, err = s.scanKeys(ctx)
		if err != nil {
			return nil, err
		}
	}

	var out []*Record
	for _, key := range keys {
		vals, err := s.client.HGetAll(ctx, key).Result()
		if err != nil {
			return nil, fmt.Errorf("state: read %s: %w", key, err)
		}
		for field, val := range vals {
			var r Record
			if err := json.Unmarshal([]byte(val), &r); err != nil {
				return nil, fmt.Errorf("state: parse %s/%s: %w", strings.TrimPrefix(key, s.prefix+"|"), field, err)
			}
			out = append(out, &r)
		}
	}
	sortRecords(out)
	return out, nil
}

func (s *RedisStore) scanKeys(ctx context.Context) ([]string, error) {
	var keys []string
	iter := s.client.Scan(ctx, 0, s.prefix+"|*", 100).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("state: scan %s: %w", s.prefix, err)
	}
	return keys, nil
}

func (s *RedisStore) Delete(ctx context.Context, reservation, nodeID string) error {
	if err := s.client.HDel(ctx, s.key(reservation), nodeID).Err(); err != nil {
		return fmt.Errorf("state: delete %s/%s: %w", reservation, nodeID, err)
	}
	return nil
}

func (s *RedisStore) DeleteReservation(ctx context.Context, reservation string) error {
	if err := s.client.Del(ctx, s.key(reservation)).Err(); err != nil {
		return fmt.Errorf("state: delete %s: %w", reservation, err)
	}
	return nil
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}
