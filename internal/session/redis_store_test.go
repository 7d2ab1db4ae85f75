package session

import (
	"context"
	stdErrors "errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestRedisStore(t *testing.T) *RedisStore {
	t.Helper()
	srv := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	store := NewRedisStoreWithClient(client, "test:sessions", time.Minute)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestRedisStoreRoundTrip(t *testing.T) {
	store := newTestRedisStore(t)
	ctx := context.Background()

	if _, err := store.Get(ctx, "session-1"); !stdErrors.Is(err, ErrStateNotFound) {
		t.Fatalf("expected ErrStateNotFound, got %v", err)
	}

	if err := store.Put(ctx, "session-1", sampleState()); err != nil {
		t.Fatalf("put: %v", err)
	}

	got, err := store.Get(ctx, "session-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Intent.Action != "transfer" || len(got.Missing) != 1 {
		t.Fatalf("unexpected state: %+v", got)
	}
	if got.Missing[0].Name != "recipient" {
		t.Fatalf("missing specs must survive the round trip: %+v", got.Missing)
	}

	if err := store.Delete(ctx, "session-1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := store.Get(ctx, "session-1"); !stdErrors.Is(err, ErrStateNotFound) {
		t.Fatalf("expected ErrStateNotFound after delete, got %v", err)
	}
}
