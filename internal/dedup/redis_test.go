package dedup

import (
	"context"
	"strconv"
	"testing"

	"github.com/alicebob/miniredis/v2"
)

func newTestRedisStore(t *testing.T) *RedisStore {
	t.Helper()
	mr := miniredis.RunT(t)
	store, err := NewRedisStore("redis://" + mr.Addr())
	if err != nil {
		t.Fatalf("NewRedisStore: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestRedisStoreAddAndContains(t *testing.T) {
	store := newTestRedisStore(t)

	if store.Contains(1, "https://x.com/foo/1") {
		t.Fatal("expected key to be absent before Add")
	}
	store.Add(1, "https://x.com/foo/1")
	if !store.Contains(1, "https://x.com/foo/1") {
		t.Fatal("expected key to be present after Add")
	}
}

func TestRedisStoreIsolatedPerChannel(t *testing.T) {
	store := newTestRedisStore(t)

	store.Add(1, "k")
	if store.Contains(2, "k") {
		t.Fatal("expected key in channel 1 not to leak into channel 2")
	}
}

func TestRedisStoreEvictsOverflow(t *testing.T) {
	store := newTestRedisStore(t)

	for i := 0; i < MaxLinksPerChannel+10; i++ {
		store.Add(1, strconv.Itoa(i))
	}

	count, err := store.client.SCard(context.Background(), keyspace(1)).Result()
	if err != nil {
		t.Fatalf("SCard: %v", err)
	}
	if count > MaxLinksPerChannel {
		t.Errorf("channel set size = %d, want <= %d", count, MaxLinksPerChannel)
	}
}
