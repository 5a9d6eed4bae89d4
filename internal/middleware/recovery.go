package middleware

import (
	"fmt"
	"net/http"
	"runtime/debug"

	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/trace"

	"github.com/2beens/mergington/internal/auth"
	"github.com/2beens/mergington/internal/telemetry/metrics"
	"github.com/2beens/mergington/internal/telemetry/tracing"
	"github.com/2beens/mergington/pkg"
)

// PanicRecovery turns a panicking handler into a 500 response. The panic is
// logged together with the caller, counted, and recorded on the request span.
func PanicRecovery(metricsManager *metrics.Manager) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(respWriter http.ResponseWriter, req *http.Request) {
			defer func() {
				r := recover()
				if r == nil {
					return
				}

				fields := log.Fields{
					"method": req.Method,
					"path":   req.URL.Path,
				}
				if identity := auth.IdentityFromContext(req.Context()); identity != nil {
					fields["user"] = identity.Username
					fields["role"] = identity.Role.String()
				}
				log.WithFields(fields).Errorf("http: panic serving request: %v\n%s", r, debug.Stack())

				tracing.Fail(trace.SpanFromContext(req.Context()), fmt.Errorf("panic: %v", r))
				if metricsManager != nil {
					metricsManager.CounterHandleRequestPanic.Inc()
				}
				pkg.WriteDetail(respWriter, http.StatusInternalServerError, "internal server error")
			}()

			next.ServeHTTP(respWriter, req)
		})
	}
}
