package telegram

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// ReplyIndex remembers which session a forwarded Telegram message belongs
// to, so an operator reply can be routed back.
type ReplyIndex interface {
	Remember(ctx context.Context, messageID int, sessionID string) error
	Lookup(ctx context.Context, messageID int) (string, bool, error)
}

type memoryReplyIndex struct {
	mu    sync.Mutex
	ttl   time.Duration
	items map[int]replyEntry
}

type replyEntry struct {
	sessionID string
	expires   time.Time
}

// NewMemoryReplyIndex keeps the index in process memory; it is lost on restart.
func NewMemoryReplyIndex(ttl time.Duration) ReplyIndex {
	return &memoryReplyIndex{ttl: ttl, items: make(map[int]replyEntry)}
}

func (m *memoryReplyIndex) Remember(_ context.Context, messageID int, sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now()
	for id, e := range m.items {
		if now.After(e.expires) {
			delete(m.items, id)
		}
	}
	m.items[messageID] = replyEntry{sessionID: sessionID, expires: now.Add(m.ttl)}
	return nil
}

func (m *memoryReplyIndex) Lookup(_ context.Context, messageID int) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.items[messageID]
	if !ok {
		return "", false, nil
	}
	if time.Now().After(e.expires) {
		delete(m.items, messageID)
		return "", false, nil
	}
	return e.sessionID, true, nil
}

// redisKV is the part of *redis.Client the index uses.
type redisKV interface {
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Get(ctx context.Context, key string) *redis.StringCmd
}

type redisReplyIndex struct {
	client redisKV
	prefix string
	ttl    time.Duration
}

// NewRedisReplyIndex stores the index in redis so it survives restarts and is
// shared between instances. It returns nil when client is nil.
func NewRedisReplyIndex(client *redis.Client, ttl time.Duration) ReplyIndex {
	if client == nil {
		return nil
	}
	return newRedisReplyIndex(client, ttl)
}

func newRedisReplyIndex(client redisKV, ttl time.Duration) *redisReplyIndex {
	return &redisReplyIndex{client: client, prefix: "tg:reply:", ttl: ttl}
}

func (r *redisReplyIndex) key(messageID int) string {
	return r.prefix + strconv.Itoa(messageID)
}

func (r *redisReplyIndex) Remember(ctx context.Context, messageID int, sessionID string) error {
	return r.client.Set(ctx, r.key(messageID), sessionID, r.ttl).Err()
}

func (r *redisReplyIndex) Lookup(ctx context.Context, messageID int) (string, bool, error) {
	sid, err := r.client.Get(ctx, r.key(messageID)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return sid, true, nil
}
