package campaign

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// SessionStore хранит ожидаемый ввод пользователя с TTL.
// Истёкшая или отсутствующая запись читается как PendingNone.
type SessionStore interface {
	Get(ctx context.Context, userID int64) (PendingInput, error)
	Set(ctx context.Context, userID int64, p PendingInput) error
	Clear(ctx context.Context, userID int64) error
}

type memoryEntry struct {
	pending   PendingInput
	expiresAt time.Time
}

// MemorySessions — ожидание ввода в памяти процесса.
type MemorySessions struct {
	mu      sync.RWMutex
	entries map[int64]memoryEntry
	ttl     time.Duration
	now     func() time.Time
}

func NewMemorySessions(ttl time.Duration) *MemorySessions {
	return &MemorySessions{
		entries: make(map[int64]memoryEntry),
		ttl:     ttl,
		now:     time.Now,
	}
}

func (m *MemorySessions) Get(_ context.Context, userID int64) (PendingInput, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	e, ok := m.entries[userID]
	if !ok || m.now().After(e.expiresAt) {
		return PendingNone, nil
	}
	return e.pending, nil
}

func (m *MemorySessions) Set(ctx context.Context, userID int64, p PendingInput) error {
	if p == PendingNone {
		return m.Clear(ctx, userID)
	}
	if !p.valid() {
		return fmt.Errorf("неизвестный тип ввода %q", p)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[userID] = memoryEntry{pending: p, expiresAt: m.now().Add(m.ttl)}
	return nil
}

func (m *MemorySessions) Clear(_ context.Context, userID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, userID)
	return nil
}

// Purge удаляет истёкшие записи и возвращает их количество (вызывается из cron).
func (m *MemorySessions) Purge() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	n := 0
	for id, e := range m.entries {
		if now.After(e.expiresAt) {
			delete(m.entries, id)
			n++
		}
	}
	return n
}

// RedisSessions — ожидание ввода в Redis, TTL ставит сам Redis.
type RedisSessions struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewRedisSessions(rdb *redis.Client, ttl time.Duration) *RedisSessions {
	return &RedisSessions{rdb: rdb, ttl: ttl}
}

func sessionKey(userID int64) string {
	return "airdrop:pending:" + strconv.FormatInt(userID, 10)
}

func (r *RedisSessions) Get(ctx context.Context, userID int64) (PendingInput, error) {
	val, err := r.rdb.Get(ctx, sessionKey(userID)).Result()
	if errors.Is(err, redis.Nil) {
		return PendingNone, nil
	}
	if err != nil {
		return PendingNone, fmt.Errorf("redis get: %w", err)
	}
	p := PendingInput(val)
	if !p.valid() {
		return PendingNone, nil
	}
	return p, nil
}

func (r *RedisSessions) Set(ctx context.Context, userID int64, p PendingInput) error {
	if p == PendingNone {
		return r.Clear(ctx, userID)
	}
	if !p.valid() {
		return fmt.Errorf("неизвестный тип ввода %q", p)
	}
	if err := r.rdb.Set(ctx, sessionKey(userID), string(p), r.ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

func (r *RedisSessions) Clear(ctx context.Context, userID int64) error {
	if err := r.rdb.Del(ctx, sessionKey(userID)).Err(); err != nil {
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}
