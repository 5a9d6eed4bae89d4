package auth

import (
	"context"
	"time"
)

// SessionCookieName is the cookie carrying the session token.
const SessionCookieName = "session"

type Identity struct {
	Username string `json:"username"`
	Role     Role   `json:"role"`
}

type Session struct {
	Token     string    `json:"token"`
	Username  string    `json:"username"`
	Role      Role      `json:"role"`
	CreatedAt time.Time `json:"created_at"`
}

func (s *Session) Identity() Identity {
	return Identity{Username: s.Username, Role: s.Role}
}

//go:generate mockgen -source=$GOFILE -destination=session_store_mock.go -package=auth

type SessionStore interface {
	Save(ctx context.Context, session *Session) error
	// Get returns ErrSessionNotFound for unknown or expired tokens.
	Get(ctx context.Context, token string) (*Session, error)
	Delete(ctx context.Context, token string) error
	Count(ctx context.Context) (int64, error)
}
