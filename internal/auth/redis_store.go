package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	log "github.com/sirupsen/logrus"
)

const (
	sessionKeyPrefix = "mergington-session||"
	tokensSetKey     = "mergington-sessions"
)

var _ SessionStore = (*RedisSessionStore)(nil)

// RedisSessionStore keeps each session under its own key with a TTL, and
// tracks live tokens in a set so they can be counted and pruned.
type RedisSessionStore struct {
	redisClient *redis.Client
	ttl         time.Duration
}

func NewRedisSessionStore(redisClient *redis.Client, ttl time.Duration) *RedisSessionStore {
	return &RedisSessionStore{
		redisClient: redisClient,
		ttl:         ttl,
	}
}

func sessionKey(token string) string {
	return sessionKeyPrefix + token
}

func (s *RedisSessionStore) Save(ctx context.Context, session *Session) error {
	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}

	if err := s.redisClient.Set(ctx, sessionKey(session.Token), string(data), s.ttl).Err(); err != nil {
		return fmt.Errorf("set session: %w", err)
	}

	if err := s.redisClient.SAdd(ctx, tokensSetKey, session.Token).Err(); err != nil {
		return fmt.Errorf("add session token: %w", err)
	}

	return nil
}

func (s *RedisSessionStore) Get(ctx context.Context, token string) (*Session, error) {
	data, err := s.redisClient.Get(ctx, sessionKey(token)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}

	var session Session
	if err := json.Unmarshal([]byte(data), &session); err != nil {
		return nil, fmt.Errorf("unmarshal session: %w", err)
	}
	return &session, nil
}

func (s *RedisSessionStore) Delete(ctx context.Context, token string) error {
	if err := s.redisClient.Del(ctx, sessionKey(token)).Err(); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	if err := s.redisClient.SRem(ctx, tokensSetKey, token).Err(); err != nil {
		return fmt.Errorf("remove session token: %w", err)
	}
	return nil
}

func (s *RedisSessionStore) Count(ctx context.Context) (int64, error) {
	return s.redisClient.SCard(ctx, tokensSetKey).Result()
}

// ScanAndClean removes tokens from the sessions set whose session key has
// already expired. It returns the number of removed tokens.
func (s *RedisSessionStore) ScanAndClean(ctx context.Context) int {
	tokens, err := s.redisClient.SMembers(ctx, tokensSetKey).Result()
	if err != nil {
		log.Errorf("!!! session store, scan and clean, get sessions: %s", err)
		return 0
	}

	if len(tokens) == 0 {
		log.Debugln("=> session store, scan and clean abort, no sessions")
		return 0
	}

	log.Debugf("=> session store, scan and clean [%d sessions] start ...", len(tokens))
	removed := 0
	for _, token := range tokens {
		exists, err := s.redisClient.Exists(ctx, sessionKey(token)).Result()
		if err != nil {
			log.Errorf("=> session store, scan and clean token: %s", err)
			continue
		}
		if exists > 0 {
			continue
		}

		if err := s.redisClient.SRem(ctx, tokensSetKey, token).Err(); err != nil {
			log.Errorf("=> session store, clean token: %s", err)
			continue
		}
		removed++
	}

	return removed
}

// RunCleanup calls ScanAndClean every interval until ctx is done.
func (s *RedisSessionStore) RunCleanup(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Debugln("session store cleanup stopped")
			return
		case <-ticker.C:
			if removed := s.ScanAndClean(ctx); removed > 0 {
				log.Infof("session store cleanup: removed %d expired tokens", removed)
			}
		}
	}
}
