package storage

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"taskboard/domain"
)

func redisClient(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("start miniredis: %v", err)
	}
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func TestRedisBackendLifecycle(t *testing.T) {
	_, client := redisClient(t)
	exerciseBackend(t, NewRedisBackend(client, "test:state", 0))
}

func TestRedisBackendDefaultsKey(t *testing.T) {
	mr, client := redisClient(t)
	backend := NewRedisBackend(client, "", 0)

	if err := backend.Write(context.Background(), []byte(`{"version":"3.0"}`)); err != nil {
		t.Fatalf("write: %v", err)
	}
	if !mr.Exists(DocumentKey) {
		t.Fatalf("expected document under %q", DocumentKey)
	}
}

func TestRedisBackendAppliesTTL(t *testing.T) {
	mr, client := redisClient(t)
	backend := NewRedisBackend(client, "test:state", time.Minute)

	if err := backend.Write(context.Background(), []byte(`{"version":"3.0"}`)); err != nil {
		t.Fatalf("write: %v", err)
	}
	if ttl := mr.TTL("test:state"); ttl <= 0 || ttl > time.Minute {
		t.Fatalf("unexpected TTL: %v", ttl)
	}

	mr.FastForward(2 * time.Minute)
	if _, found, err := backend.Read(context.Background()); err != nil || found {
		t.Fatalf("expected expired document, found=%v err=%v", found, err)
	}
}

func TestRedisStoreRoundTrip(t *testing.T) {
	_, client := redisClient(t)
	store := New(NewRedisBackend(client, "", 0), testLogger())
	ctx := context.Background()

	state := workState(t)
	if !store.Save(ctx, state) {
		t.Fatal("save failed")
	}
	loaded := store.Load(ctx, domain.EmptyState())
	if len(loaded.Boards) != 1 || loaded.Boards[0].Name != "Work" {
		t.Fatalf("unexpected reloaded state: %#v", loaded.Boards)
	}
}

func TestNewRedisBackendNilClientPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic on nil client")
		}
	}()
	NewRedisBackend(nil, "", 0)
}
