package middleware

import "net/http"

var clientAddrHeaders = []string{"X-Real-Ip", "X-Forwarded-For"}

// ProxyHeaders drops the client address headers unless they are trusted, i.e.
// the service runs behind a reverse proxy that overwrites them.
func ProxyHeaders(trusted bool) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if trusted {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			for _, h := range clientAddrHeaders {
				r.Header.Del(h)
			}
			next.ServeHTTP(w, r)
		})
	}
}
