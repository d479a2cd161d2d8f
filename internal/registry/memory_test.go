package registry

import (
	"context"
	"fmt"
	"reflect"
	"sync"
	"testing"
)

func TestMemoryRegistry_Subscribe(t *testing.T) {
	ctx := context.Background()
	r := NewMemoryRegistry()

	mustSubscribe(t, r, "conn-1", "news")
	mustSubscribe(t, r, "conn-1", "scores")
	mustSubscribe(t, r, "conn-2", "news")

	// Duplicate subscribe is a no-op.
	mustSubscribe(t, r, "conn-1", "news")

	subs, err := r.Subscribers(ctx, "news")
	if err != nil {
		t.Fatalf("Subscribers failed: %v", err)
	}
	if want := []string{"conn-1", "conn-2"}; !reflect.DeepEqual(subs, want) {
		t.Errorf("Subscribers(news) = %v, want %v", subs, want)
	}

	topics, err := r.Topics(ctx, "conn-1")
	if err != nil {
		t.Fatalf("Topics failed: %v", err)
	}
	if want := []string{"news", "scores"}; !reflect.DeepEqual(topics, want) {
		t.Errorf("Topics(conn-1) = %v, want %v", topics, want)
	}
}

func TestMemoryRegistry_Unsubscribe(t *testing.T) {
	ctx := context.Background()
	r := NewMemoryRegistry()

	mustSubscribe(t, r, "conn-1", "news")
	mustSubscribe(t, r, "conn-2", "news")

	if err := r.Unsubscribe(ctx, "conn-1", "news"); err != nil {
		t.Fatalf("Unsubscribe failed: %v", err)
	}

	subs, _ := r.Subscribers(ctx, "news")
	if want := []string{"conn-2"}; !reflect.DeepEqual(subs, want) {
		t.Errorf("Subscribers(news) = %v, want %v", subs, want)
	}
	if topics, _ := r.Topics(ctx, "conn-1"); len(topics) != 0 {
		t.Errorf("Topics(conn-1) = %v, want empty", topics)
	}

	// Removing a pair that does not exist is not an error.
	if err := r.Unsubscribe(ctx, "conn-9", "nothing"); err != nil {
		t.Errorf("Unsubscribe of unknown pair failed: %v", err)
	}
}

func TestMemoryRegistry_UnsubscribeAll(t *testing.T) {
	ctx := context.Background()
	r := NewMemoryRegistry()

	mustSubscribe(t, r, "conn-1", "news")
	mustSubscribe(t, r, "conn-1", "scores")
	mustSubscribe(t, r, "conn-2", "news")

	if err := r.UnsubscribeAll(ctx, "conn-1"); err != nil {
		t.Fatalf("UnsubscribeAll failed: %v", err)
	}

	if topics, _ := r.Topics(ctx, "conn-1"); len(topics) != 0 {
		t.Errorf("Topics(conn-1) = %v, want empty", topics)
	}
	subs, _ := r.Subscribers(ctx, "news")
	if want := []string{"conn-2"}; !reflect.DeepEqual(subs, want) {
		t.Errorf("Subscribers(news) = %v, want %v", subs, want)
	}
	if subs, _ := r.Subscribers(ctx, "scores"); len(subs) != 0 {
		t.Errorf("Subscribers(scores) = %v, want empty", subs)
	}

	// A second teardown pass finds nothing and succeeds.
	if err := r.UnsubscribeAll(ctx, "conn-1"); err != nil {
		t.Errorf("repeat UnsubscribeAll failed: %v", err)
	}
}

func TestMemoryRegistry_Concurrent(t *testing.T) {
	ctx := context.Background()
	r := NewMemoryRegistry()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := fmt.Sprintf("conn-%d", i)
			for j := 0; j < 10; j++ {
				topic := fmt.Sprintf("topic-%d", j)
				r.Subscribe(ctx, id, topic)
				r.Topics(ctx, id)
				r.Subscribers(ctx, topic)
			}
			r.UnsubscribeAll(ctx, id)
		}(i)
	}
	wg.Wait()

	for j := 0; j < 10; j++ {
		topic := fmt.Sprintf("topic-%d", j)
		if subs, _ := r.Subscribers(ctx, topic); len(subs) != 0 {
			t.Errorf("Subscribers(%s) = %v, want empty after teardown", topic, subs)
		}
	}
}

func mustSubscribe(t *testing.T, r *MemoryRegistry, connectionID, topic string) {
	t.Helper()
	if err := r.Subscribe(context.Background(), connectionID, topic); err != nil {
		t.Fatalf("Subscribe(%s, %s) failed: %v", connectionID, topic, err)
	}
}
