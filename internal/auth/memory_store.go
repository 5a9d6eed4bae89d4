package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/coocood/freecache"
)

// DefaultMemoryStoreSize is the freecache size in bytes.
const DefaultMemoryStoreSize = 8 * 1024 * 1024

var _ SessionStore = (*MemorySessionStore)(nil)

type MemorySessionStore struct {
	cache *freecache.Cache
	ttl   time.Duration
}

func NewMemorySessionStore(cacheSize int, ttl time.Duration) *MemorySessionStore {
	return &MemorySessionStore{
		cache: freecache.NewCache(cacheSize),
		ttl:   ttl,
	}
}

func newMemorySessionStoreWithTimer(cacheSize int, ttl time.Duration, timer freecache.Timer) *MemorySessionStore {
	return &MemorySessionStore{
		cache: freecache.NewCacheCustomTimer(cacheSize, timer),
		ttl:   ttl,
	}
}

func (s *MemorySessionStore) Save(_ context.Context, session *Session) error {
	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}
	if err := s.cache.Set([]byte(session.Token), data, int(s.ttl.Seconds())); err != nil {
		return fmt.Errorf("cache session: %w", err)
	}
	return nil
}

func (s *MemorySessionStore) Get(_ context.Context, token string) (*Session, error) {
	data, err := s.cache.Get([]byte(token))
	if errors.Is(err, freecache.ErrNotFound) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}

	var session Session
	if err := json.Unmarshal(data, &session); err != nil {
		return nil, fmt.Errorf("unmarshal session: %w", err)
	}
	return &session, nil
}

func (s *MemorySessionStore) Delete(_ context.Context, token string) error {
	s.cache.Del([]byte(token))
	return nil
}

func (s *MemorySessionStore) Count(context.Context) (int64, error) {
	return s.cache.EntryCount(), nil
}
