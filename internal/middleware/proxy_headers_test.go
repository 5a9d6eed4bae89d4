package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/2beens/mergington/pkg"
)

func TestProxyHeaders(t *testing.T) {
	testCases := []struct {
		name       string
		trusted    bool
		expectedIP string
	}{
		{name: "Untrusted", trusted: false, expectedIP: "192.0.2.1"},
		{name: "Trusted", trusted: true, expectedIP: "10.0.0.7"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			var seenIP string
			handler := ProxyHeaders(tc.trusted)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				seenIP = pkg.ReadUserIP(r)
			}))

			req := httptest.NewRequest(http.MethodPost, "/auth/login", nil)
			req.RemoteAddr = "192.0.2.1:1234"
			req.Header.Set("X-Real-Ip", "10.0.0.7")
			req.Header.Set("X-Forwarded-For", "10.0.0.8, 10.0.0.9")
			handler.ServeHTTP(httptest.NewRecorder(), req)

			assert.Equal(t, tc.expectedIP, seenIP)
		})
	}
}

func TestProxyHeaders_RotatingAddressStillLimited(t *testing.T) {
	limiter := &testRedisRateLimiter{
		Limits: map[string]int{"login||192.0.2.1": 2},
	}
	handler := ProxyHeaders(false)(
		RateLimit(NewRedisRateLimiter(limiter, 2), "login", nil)(
			http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}),
		),
	)

	codes := make([]int, 0, 3)
	for _, ip := range []string{"10.0.0.1", "10.0.0.2", "10.0.0.3"} {
		rr := serveLimited(t, handler, ip)
		codes = append(codes, rr.Code)
	}
	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)
}
