package middleware

import (
	"context"
	"errors"
	"net/http"

	log "github.com/sirupsen/logrus"

	"github.com/2beens/mergington/internal/auth"
)

//go:generate mockgen -source=$GOFILE -destination=session_mocks_test.go -package=middleware_test

type sessionResolver interface {
	CurrentUser(ctx context.Context, token string) (*auth.Identity, error)
}

// Session resolves the session cookie into an identity stored in the request
// context. It never rejects a request; handlers decide what needs a session.
func Session(resolver sessionResolver) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			cookie, err := r.Cookie(auth.SessionCookieName)
			if err != nil || cookie.Value == "" {
				next.ServeHTTP(w, r)
				return
			}

			identity, err := resolver.CurrentUser(r.Context(), cookie.Value)
			switch {
			case err == nil:
				r = r.WithContext(auth.WithIdentity(r.Context(), identity))
			case errors.Is(err, auth.ErrUnauthorized):
				log.Tracef("session middleware: stale session cookie on [%s]", r.URL.Path)
			default:
				log.Warnf("session middleware: resolve session on [%s]: %s", r.URL.Path, err)
			}

			next.ServeHTTP(w, r)
		})
	}
}
