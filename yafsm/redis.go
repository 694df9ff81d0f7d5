package yafsm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/YaCodeDev/GoVKTeamsBot/yaerrors"
	"github.com/redis/go-redis/v9"
	"github.com/vmihailenco/msgpack/v5"
)

const defaultKeyPrefix = "vkteamsbot"

// RedisStorageConfig tunes the Redis backend. Zero TTLs mean "no expiry";
// state and data may expire independently.
type RedisStorageConfig struct {
	KeyPrefix string
	StateTTL  time.Duration
	DataTTL   time.Duration
}

// RedisStorage is the durable Storage backend for multi-process deployments.
// State is stored as a plain string, the data bag as msgpack. Clearing
// deletes the underlying keys, so a cleared record reads back exactly like a
// missing one.
type RedisStorage struct {
	client    redis.UniversalClient
	keyPrefix string
	stateTTL  time.Duration
	dataTTL   time.Duration
}

// NewRedisStorage wraps an existing go-redis client. A nil config selects
// the default key prefix and no expiry.
func NewRedisStorage(client redis.UniversalClient, config *RedisStorageConfig) *RedisStorage {
	if config == nil {
		config = &RedisStorageConfig{}
	}

	prefix := config.KeyPrefix
	if prefix == "" {
		prefix = defaultKeyPrefix
	}

	return &RedisStorage{
		client:    client,
		keyPrefix: prefix,
		stateTTL:  config.StateTTL,
		dataTTL:   config.DataTTL,
	}
}

func (r *RedisStorage) makeKey(key StorageKey, part string) string {
	return fmt.Sprintf(
		"%s:fsm:%s:%s:%s:%s:%s",
		r.keyPrefix, key.BotID, key.ChatID, key.UserID, key.Destiny, part,
	)
}

func (r *RedisStorage) SetState(
	ctx context.Context,
	key StorageKey,
	state string,
) yaerrors.Error {
	redisKey := r.makeKey(key, "state")

	if state == NoState {
		if err := r.client.Del(ctx, redisKey).Err(); err != nil {
			return yaerrors.FromError(
				http.StatusInternalServerError,
				err,
				"[REDIS FSM] failed to clear state",
			)
		}

		return nil
	}

	if err := r.client.Set(ctx, redisKey, state, r.stateTTL).Err(); err != nil {
		return yaerrors.FromError(
			http.StatusInternalServerError,
			err,
			"[REDIS FSM] failed to set state",
		)
	}

	return nil
}

func (r *RedisStorage) GetState(
	ctx context.Context,
	key StorageKey,
) (string, yaerrors.Error) {
	state, err := r.client.Get(ctx, r.makeKey(key, "state")).Result()
	if errors.Is(err, redis.Nil) {
		return NoState, nil
	}

	if err != nil {
		return NoState, yaerrors.FromError(
			http.StatusInternalServerError,
			err,
			"[REDIS FSM] failed to get state",
		)
	}

	return state, nil
}

func (r *RedisStorage) SetData(
	ctx context.Context,
	key StorageKey,
	data map[string]any,
) yaerrors.Error {
	redisKey := r.makeKey(key, "data")

	if len(data) == 0 {
		if err := r.client.Del(ctx, redisKey).Err(); err != nil {
			return yaerrors.FromError(
				http.StatusInternalServerError,
				err,
				"[REDIS FSM] failed to clear data",
			)
		}

		return nil
	}

	raw, err := msgpack.Marshal(data)
	if err != nil {
		return yaerrors.FromError(
			http.StatusInternalServerError,
			err,
			"[REDIS FSM] failed to marshal data",
		)
	}

	if err := r.client.Set(ctx, redisKey, raw, r.dataTTL).Err(); err != nil {
		return yaerrors.FromError(
			http.StatusInternalServerError,
			err,
			"[REDIS FSM] failed to set data",
		)
	}

	return nil
}

func (r *RedisStorage) GetData(
	ctx context.Context,
	key StorageKey,
) (map[string]any, yaerrors.Error) {
	raw, err := r.client.Get(ctx, r.makeKey(key, "data")).Bytes()
	if errors.Is(err, redis.Nil) {
		return map[string]any{}, nil
	}

	if err != nil {
		return nil, yaerrors.FromError(
			http.StatusInternalServerError,
			err,
			"[REDIS FSM] failed to get data",
		)
	}

	var data map[string]any
	if err := msgpack.Unmarshal(raw, &data); err != nil {
		return nil, yaerrors.FromError(
			http.StatusInternalServerError,
			err,
			"[REDIS FSM] failed to unmarshal data",
		)
	}

	return data, nil
}

// Close releases the underlying client connection.
func (r *RedisStorage) Close() yaerrors.Error {
	if err := r.client.Close(); err != nil {
		return yaerrors.FromError(
			http.StatusInternalServerError,
			err,
			"[REDIS FSM] failed to close client",
		)
	}

	return nil
}
