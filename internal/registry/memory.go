package registry

import (
	"context"
	"sort"
	"sync"
)

var _ Registry = (*MemoryRegistry)(nil)

// MemoryRegistry keeps subscriptions in process memory, indexed both by
// connection and by topic so lookups in either direction stay O(1).
type MemoryRegistry struct {
	mu           sync.RWMutex
	byConnection map[string]map[string]struct{}
	byTopic      map[string]map[string]struct{}
}

// NewMemoryRegistry creates an empty in-memory registry.
func NewMemoryRegistry() *MemoryRegistry {
	return &MemoryRegistry{
		byConnection: make(map[string]map[string]struct{}),
		byTopic:      make(map[string]map[string]struct{}),
	}
}

// Subscribe records a connection/topic pair in both indexes.
func (r *MemoryRegistry) Subscribe(ctx context.Context, connectionID, topic string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.byConnection[connectionID] == nil {
		r.byConnection[connectionID] = make(map[string]struct{})
	}
	r.byConnection[connectionID][topic] = struct{}{}

	if r.byTopic[topic] == nil {
		r.byTopic[topic] = make(map[string]struct{})
	}
	r.byTopic[topic][connectionID] = struct{}{}

	return nil
}

// Unsubscribe removes a connection/topic pair from both indexes.
func (r *MemoryRegistry) Unsubscribe(ctx context.Context, connectionID, topic string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.removeLocked(connectionID, topic)
	return nil
}

// UnsubscribeAll removes every subscription held by the connection.
func (r *MemoryRegistry) UnsubscribeAll(ctx context.Context, connectionID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for topic := range r.byConnection[connectionID] {
		r.removeLocked(connectionID, topic)
	}
	return nil
}

// Subscribers returns connection ids subscribed to topic, sorted.
func (r *MemoryRegistry) Subscribers(ctx context.Context, topic string) ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return sortedKeys(r.byTopic[topic]), nil
}

// Topics returns the topics the connection subscribes to, sorted.
func (r *MemoryRegistry) Topics(ctx context.Context, connectionID string) ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return sortedKeys(r.byConnection[connectionID]), nil
}

// removeLocked deletes one pair from both indexes and drops empty sets.
// Callers hold the write lock.
func (r *MemoryRegistry) removeLocked(connectionID, topic string) {
	if topics := r.byConnection[connectionID]; topics != nil {
		delete(topics, topic)
		if len(topics) == 0 {
			delete(r.byConnection, connectionID)
		}
	}
	if conns := r.byTopic[topic]; conns != nil {
		delete(conns, connectionID)
		if len(conns) == 0 {
			delete(r.byTopic, topic)
		}
	}
}

func sortedKeys(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
