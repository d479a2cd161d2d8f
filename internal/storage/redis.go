package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/statewire/pushgate/internal/config"
	"github.com/statewire/pushgate/internal/connection"
)

var _ connection.Store = (*RedisStore)(nil)

// Hash field names for one connection record.
const (
	fieldData      = "data"
	fieldCreatedAt = "created_at"
	fieldExpiresAt = "expires_at"
)

// RedisStore keeps each connection record in a Redis hash under
// <namespace>:<id>. Records with an expiry also get an engine-level
// PEXPIREAT so abandoned keys eventually vanish on their own; the
// lifecycle still treats expiry lazily on read.
type RedisStore struct {
	client    *redis.Client
	namespace string
}

// NewRedisStore creates a store on an existing Redis client.
func NewRedisStore(client *redis.Client, namespace string) *RedisStore {
	return &RedisStore{
		client:    client,
		namespace: namespace,
	}
}

// NewRedisClient connects to Redis and verifies the connection.
func NewRedisClient(cfg config.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	return client, nil
}

func (s *RedisStore) key(id string) string {
	return fmt.Sprintf("%s:%s", s.namespace, id)
}

// Get returns the record for id, or (nil, nil) when absent.
func (s *RedisStore) Get(ctx context.Context, id string) (*connection.Connection, error) {
	fields, err := s.client.HGetAll(ctx, s.key(id)).Result()
	if err != nil {
		return nil, fmt.Errorf("read connection %s: %w", id, err)
	}
	if len(fields) == 0 {
		return nil, nil
	}

	rec, err := recordFromHash(id, fields)
	if err != nil {
		return nil, fmt.Errorf("decode connection %s: %w", id, err)
	}
	return rec, nil
}

// Put replaces the whole record in one transaction, dropping any fields
// a previous version may have carried.
func (s *RedisStore) Put(ctx context.Context, conn *connection.Connection) error {
	fields, err := hashFromRecord(conn)
	if err != nil {
		return fmt.Errorf("encode connection %s: %w", conn.ID, err)
	}

	key := s.key(conn.ID)
	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, key)
		pipe.HSet(ctx, key, fields)
		if !conn.ExpiresAt.IsZero() {
			pipe.PExpireAt(ctx, key, conn.ExpiresAt)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("write connection %s: %w", conn.ID, err)
	}
	return nil
}

// UpdateData rewrites only the data field of the record's hash. When no
// record exists this leaves a partial hash behind, mirroring partial
// upsert semantics; Get tolerates the missing fields.
func (s *RedisStore) UpdateData(ctx context.Context, id string, data connection.Data) error {
	encoded, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("encode data for %s: %w", id, err)
	}

	if err := s.client.HSet(ctx, s.key(id), fieldData, encoded).Err(); err != nil {
		return fmt.Errorf("update connection %s: %w", id, err)
	}
	return nil
}

// Delete removes the record for id. Deleting an absent record is not an
// error.
func (s *RedisStore) Delete(ctx context.Context, id string) error {
	if err := s.client.Del(ctx, s.key(id)).Err(); err != nil {
		return fmt.Errorf("delete connection %s: %w", id, err)
	}
	return nil
}

// hashFromRecord flattens a record into Redis hash fields.
func hashFromRecord(conn *connection.Connection) (map[string]interface{}, error) {
	data, err := json.Marshal(conn.Data)
	if err != nil {
		return nil, err
	}

	fields := map[string]interface{}{
		fieldData:      string(data),
		fieldCreatedAt: conn.CreatedAt.UTC().Format(time.RFC3339Nano),
	}
	if !conn.ExpiresAt.IsZero() {
		fields[fieldExpiresAt] = conn.ExpiresAt.UTC().Format(time.RFC3339Nano)
	}
	return fields, nil
}

// recordFromHash rebuilds a record from Redis hash fields. Missing
// fields map to zero values so partially written hashes still read.
func recordFromHash(id string, fields map[string]string) (*connection.Connection, error) {
	rec := &connection.Connection{ID: id}

	if raw, ok := fields[fieldData]; ok && raw != "" {
		if err := json.Unmarshal([]byte(raw), &rec.Data); err != nil {
			return nil, fmt.Errorf("parse data: %w", err)
		}
	}
	if raw, ok := fields[fieldCreatedAt]; ok && raw != "" {
		t, err := time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			return nil, fmt.Errorf("parse created_at: %w", err)
		}
		rec.CreatedAt = t
	}
	if raw, ok := fields[fieldExpiresAt]; ok && raw != "" {
		t, err := time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			return nil, fmt.Errorf("parse expires_at: %w", err)
		}
		rec.ExpiresAt = t
	}
	return rec, nil
}
