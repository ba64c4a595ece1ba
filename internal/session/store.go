package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"traitor/internal/redis"
)

// Store keeps the session token for each session id.
type Store interface {
	// Load returns the token of the session, ok is false when none is stored.
	Load(ctx context.Context, sessionID string) (token string, ok bool, err error)
	// Save associates token with the session, replacing any previous value.
	Save(ctx context.Context, sessionID, token string) error
}

// MemoryStore is a process-local Store. Entries expire lazily on Load and are
// swept every sweepEvery saves.
type MemoryStore struct {
	ttl     time.Duration
	mu      sync.RWMutex
	entries map[string]memoryEntry
	saves   int
}

const sweepEvery = 1024

type memoryEntry struct {
	token     string
	expiresAt time.Time
}

// NewMemoryStore builds a MemoryStore. A non-positive ttl keeps entries forever.
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return &MemoryStore{ttl: ttl, entries: make(map[string]memoryEntry)}
}

func (s *MemoryStore) Load(_ context.Context, sessionID string) (string, bool, error) {
	s.mu.RLock()
	entry, ok := s.entries[sessionID]
	s.mu.RUnlock()
	if !ok {
		return "", false, nil
	}
	if !entry.expiresAt.IsZero() && time.Now().After(entry.expiresAt) {
		s.mu.Lock()
		delete(s.entries, sessionID)
		s.mu.Unlock()
		return "", false, nil
	}
	return entry.token, true, nil
}

func (s *MemoryStore) Save(_ context.Context, sessionID, token string) error {
	now := time.Now()
	entry := memoryEntry{token: token}
	if s.ttl > 0 {
		entry.expiresAt = now.Add(s.ttl)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[sessionID] = entry
	s.saves++
	if s.ttl > 0 && s.saves%sweepEvery == 0 {
		for id, e := range s.entries {
			if now.After(e.expiresAt) {
				delete(s.entries, id)
			}
		}
	}
	return nil
}

const redisKeyPrefix = "traitor:session:"

// RedisStore keeps session tokens in redis so several instances can share them.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisStore builds a Store on top of the shared redis client.
func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{client: client, ttl: ttl}
}

func (s *RedisStore) Load(ctx context.Context, sessionID string) (string, bool, error) {
	token, err := s.client.Get(ctx, redisKey(sessionID))
	if err != nil {
		if errors.Is(err, redis.ErrCacheMiss) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("load session: %w", err)
	}
	return token, token != "", nil
}

func (s *RedisStore) Save(ctx context.Context, sessionID, token string) error {
	if err := s.client.Set(ctx, redisKey(sessionID), token, s.ttl); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

func redisKey(sessionID string) string {
	return redisKeyPrefix + sessionID + ":" + TokenKey
}
