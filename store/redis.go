package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// RedisConfig configures the Redis-backed store.
type RedisConfig struct {
	Addr      string `yaml:"addr" mapstructure:"addr"`
	Password  string `yaml:"password" mapstructure:"password"`
	DB        int    `yaml:"db" mapstructure:"db"`
	KeyPrefix string `yaml:"key_prefix" mapstructure:"key_prefix"`
}

// ApplyDefaults applies default values to the Redis configuration.
func (c *RedisConfig) ApplyDefaults() {
	if c.Addr == "" {
		c.Addr = "localhost:6379"
	}
	if c.KeyPrefix == "" {
		c.KeyPrefix = "pipekit"
	}
}

// Redis is a Store backed by Redis. State is stored as JSON under
// "{prefix}:{pipeline}:{stage}". Redis serializes commands per key, which
// satisfies the same-key write contract.
type Redis struct {
	rdb       *goredis.Client
	keyPrefix string
}

// NewRedis creates a Redis store from configuration.
func NewRedis(cfg RedisConfig) *Redis {
	cfg.ApplyDefaults()
	rdb := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	return &Redis{rdb: rdb, keyPrefix: cfg.KeyPrefix}
}

// NewRedisFromClient wraps an existing go-redis client.
func NewRedisFromClient(rdb *goredis.Client, keyPrefix string) *Redis {
	return &Redis{rdb: rdb, keyPrefix: keyPrefix}
}

type redisState struct {
	Value     json.RawMessage `json:"value"`
	Timestamp time.Time       `json:"timestamp"`
}

// Get reads the stored state for a (pipeline, stage) key. The returned value
// is json.RawMessage; use Decode to unmarshal it.
func (r *Redis) Get(ctx context.Context, pipelineID, stageID string) (StoredState, bool, error) {
	raw, err := r.rdb.Get(ctx, r.fullKey(pipelineID, stageID)).Result()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return StoredState{}, false, nil
		}
		return StoredState{}, false, fmt.Errorf("store: redis get %s/%s: %w", pipelineID, stageID, err)
	}

	var rs redisState
	if err := json.Unmarshal([]byte(raw), &rs); err != nil {
		return StoredState{}, false, fmt.Errorf("store: redis unmarshal %s/%s: %w", pipelineID, stageID, err)
	}
	return StoredState{Value: rs.Value, Timestamp: rs.Timestamp}, true, nil
}

// Put serializes the value to JSON and stores it without expiration; state
// lifecycle is owned by the caller, never by the store.
func (r *Redis) Put(ctx context.Context, pipelineID, stageID string, value any, ts time.Time) error {
	raw, err := marshalValue(value)
	if err != nil {
		return err
	}
	data, err := json.Marshal(redisState{Value: raw, Timestamp: ts})
	if err != nil {
		return fmt.Errorf("store: redis marshal %s/%s: %w", pipelineID, stageID, err)
	}
	if err := r.rdb.Set(ctx, r.fullKey(pipelineID, stageID), string(data), 0).Err(); err != nil {
		return fmt.Errorf("store: redis set %s/%s: %w", pipelineID, stageID, err)
	}
	return nil
}

// Close releases the underlying client.
func (r *Redis) Close() error {
	return r.rdb.Close()
}

func (r *Redis) fullKey(pipelineID, stageID string) string {
	if r.keyPrefix == "" {
		return stateKey(pipelineID, stageID)
	}
	return r.keyPrefix + ":" + stateKey(pipelineID, stageID)
}
