package session

import (
	"context"
	"net"
	"os"
	"strconv"
	"testing"
	"time"

	"traitor/internal/config"
	"traitor/internal/redis"
)

func TestRedisStoreRoundTrip(t *testing.T) {
	client := newRedisClient(t)
	defer client.Close()

	store := NewRedisStore(client, time.Minute)
	ctx := context.Background()
	sid := "redis-store-test"
	_ = client.Del(ctx, redisKey(sid))

	if _, ok, err := store.Load(ctx, sid); err != nil || ok {
		t.Fatalf("expected empty session, ok=%v err=%v", ok, err)
	}
	if err := store.Save(ctx, sid, "token-1"); err != nil {
		t.Fatalf("Save: %v", err)
	}
	token, ok, err := store.Load(ctx, sid)
	if err != nil || !ok || token != "token-1" {
		t.Fatalf("Load: %q ok=%v err=%v", token, ok, err)
	}
	ttl, err := client.Raw().TTL(ctx, redisKey(sid)).Result()
	if err != nil || ttl <= 0 || ttl > time.Minute {
		t.Fatalf("unexpected ttl %v err=%v", ttl, err)
	}
	_ = client.Del(ctx, redisKey(sid))
}

func TestRedisKeyUsesTokenKey(t *testing.T) {
	if got := redisKey("abc"); got != "traitor:session:abc:sessionToken" {
		t.Fatalf("unexpected redis key %q", got)
	}
}

func newRedisClient(t *testing.T) *redis.Client {
	t.Helper()
	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("set TEST_REDIS_ADDR to run redis-backed session tests")
	}
	host, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		t.Fatalf("split host port: %v", err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		t.Fatalf("atoi port: %v", err)
	}
	client, err := redis.NewRedisClient(config.RedisConfig{Host: host, Port: port})
	if err != nil {
		t.Fatalf("redis client: %v", err)
	}
	return client
}
