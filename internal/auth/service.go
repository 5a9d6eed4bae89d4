package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/2beens/mergington/pkg"
)

const (
	DefaultTTL  = 24 * time.Hour
	tokenLength = 32
)

type Service struct {
	credentials *CredentialStore
	sessions    SessionStore
	ttl         time.Duration
	// ability to inject random string generator func for tokens (for unit and dev testing)
	RandStringFunc func(s int) (string, error)
	NowFunc        func() time.Time
}

func NewService(
	credentials *CredentialStore,
	sessions SessionStore,
	ttl time.Duration,
) *Service {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Service{
		credentials:    credentials,
		sessions:       sessions,
		ttl:            ttl,
		RandStringFunc: pkg.GenerateRandomString,
		NowFunc:        time.Now,
	}
}

func (s *Service) TTL() time.Duration {
	return s.ttl
}

func (s *Service) Sessions() SessionStore {
	return s.sessions
}

// Login checks the credentials of username under roleName and opens a new
// session for them.
func (s *Service) Login(ctx context.Context, username, password, roleName string) (*Session, error) {
	role, err := ParseRole(roleName)
	if err != nil {
		return nil, ErrInvalidCredentials
	}
	if !s.credentials.Verify(role, username, password) {
		return nil, ErrInvalidCredentials
	}

	token, err := s.RandStringFunc(tokenLength)
	if err != nil {
		return nil, fmt.Errorf("generate session token: %w", err)
	}

	session := &Session{
		Token:     token,
		Username:  username,
		Role:      role,
		CreatedAt: s.NowFunc().UTC(),
	}
	if err := s.sessions.Save(ctx, session); err != nil {
		return nil, err
	}

	return session, nil
}

// Logout drops the session behind token. A missing session is not an error.
func (s *Service) Logout(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	return s.sessions.Delete(ctx, token)
}

func (s *Service) CurrentUser(ctx context.Context, token string) (*Identity, error) {
	if token == "" {
		return nil, ErrUnauthorized
	}

	session, err := s.sessions.Get(ctx, token)
	if errors.Is(err, ErrSessionNotFound) {
		return nil, ErrUnauthorized
	}
	if err != nil {
		return nil, fmt.Errorf("resolve session: %w", err)
	}

	if session.Username == "" || !session.Role.Valid() {
		log.Warnf("auth service: dropping malformed session for user [%s]", session.Username)
		return nil, ErrUnauthorized
	}

	identity := session.Identity()
	return &identity, nil
}
