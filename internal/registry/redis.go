package registry

import (
	"context"
	"fmt"

	"github.com/go-redis/redis/v8"
)

var _ Registry = (*RedisRegistry)(nil)

// RedisRegistry keeps subscriptions in Redis sets so every gateway
// instance sees the same membership. Each pair lives in two sets, one
// per lookup direction:
//
//	<namespace>:conn:<connection_id>  -> topics
//	<namespace>:topic:<topic>         -> connection ids
type RedisRegistry struct {
	client    *redis.Client
	namespace string
}

// NewRedisRegistry creates a registry on an existing Redis client.
func NewRedisRegistry(client *redis.Client, namespace string) *RedisRegistry {
	return &RedisRegistry{
		client:    client,
		namespace: namespace,
	}
}

func (r *RedisRegistry) connKey(connectionID string) string {
	return fmt.Sprintf("%s:conn:%s", r.namespace, connectionID)
}

func (r *RedisRegistry) topicKey(topic string) string {
	return fmt.Sprintf("%s:topic:%s", r.namespace, topic)
}

// Subscribe adds the pair to both sets in one round trip.
func (r *RedisRegistry) Subscribe(ctx context.Context, connectionID, topic string) error {
	_, err := r.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.SAdd(ctx, r.connKey(connectionID), topic)
		pipe.SAdd(ctx, r.topicKey(topic), connectionID)
		return nil
	})
	if err != nil {
		return fmt.Errorf("subscribe %s to %s: %w", connectionID, topic, err)
	}
	return nil
}

// Unsubscribe removes the pair from both sets in one round trip.
func (r *RedisRegistry) Unsubscribe(ctx context.Context, connectionID, topic string) error {
	_, err := r.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.SRem(ctx, r.connKey(connectionID), topic)
		pipe.SRem(ctx, r.topicKey(topic), connectionID)
		return nil
	})
	if err != nil {
		return fmt.Errorf("unsubscribe %s from %s: %w", connectionID, topic, err)
	}
	return nil
}

// UnsubscribeAll reads the connection's topic set, then removes the
// connection from every topic set and drops the connection set itself.
func (r *RedisRegistry) UnsubscribeAll(ctx context.Context, connectionID string) error {
	topics, err := r.client.SMembers(ctx, r.connKey(connectionID)).Result()
	if err != nil {
		return fmt.Errorf("read topics for %s: %w", connectionID, err)
	}

	_, err = r.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, topic := range topics {
			pipe.SRem(ctx, r.topicKey(topic), connectionID)
		}
		pipe.Del(ctx, r.connKey(connectionID))
		return nil
	})
	if err != nil {
		return fmt.Errorf("unsubscribe all for %s: %w", connectionID, err)
	}
	return nil
}

// Subscribers returns the members of the topic set.
func (r *RedisRegistry) Subscribers(ctx context.Context, topic string) ([]string, error) {
	ids, err := r.client.SMembers(ctx, r.topicKey(topic)).Result()
	if err != nil {
		return nil, fmt.Errorf("read subscribers for %s: %w", topic, err)
	}
	return ids, nil
}

// Topics returns the members of the connection set.
func (r *RedisRegistry) Topics(ctx context.Context, connectionID string) ([]string, error) {
	topics, err := r.client.SMembers(ctx, r.connKey(connectionID)).Result()
	if err != nil {
		return nil, fmt.Errorf("read topics for %s: %w", connectionID, err)
	}
	return topics, nil
}
