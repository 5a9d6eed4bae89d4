package activities

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/2beens/mergington/internal/auth"
	"github.com/2beens/mergington/internal/telemetry/metrics"
	"github.com/2beens/mergington/internal/telemetry/tracing"
	"github.com/2beens/mergington/pkg"
)

//go:generate mockgen -source=$GOFILE -destination=handler_mocks_test.go -package=activities_test

type directory interface {
	List() map[string]Activity
	Get(name string) (Activity, error)
	Signup(name, email string) error
	Unregister(name, email string) error
}

type authorizer interface {
	Require(identity *auth.Identity, action auth.Action) (auth.Role, error)
}

type Handler struct {
	directory      directory
	guard          authorizer
	metricsManager *metrics.Manager
}

func NewHandler(directory directory, guard authorizer, metricsManager *metrics.Manager) *Handler {
	return &Handler{
		directory:      directory,
		guard:          guard,
		metricsManager: metricsManager,
	}
}

func (handler *Handler) SetupRoutes(mainRouter *mux.Router) {
	mainRouter.HandleFunc("/activities", handler.HandleList).Methods("GET", "OPTIONS").Name("list-activities")
	mainRouter.HandleFunc("/activities/{name}/signup", handler.HandleSignup).Methods("POST", "OPTIONS").Name("activity-signup")
	mainRouter.HandleFunc("/activities/{name}/unregister", handler.HandleUnregister).Methods("DELETE", "OPTIONS").Name("activity-unregister")
}

func (handler *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	_, span := tracing.GlobalTracer.Start(r.Context(), "activitiesHandler.list")
	defer span.End()

	if r.Method == http.MethodOptions {
		w.Header().Add("Allow", "GET, OPTIONS")
		w.WriteHeader(http.StatusOK)
		return
	}

	list := handler.directory.List()
	span.SetAttributes(attribute.Int("activities.count", len(list)))
	pkg.WriteJSON(w, http.StatusOK, list)
}

func (handler *Handler) HandleSignup(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "activitiesHandler.signup")
	defer span.End()

	if r.Method == http.MethodOptions {
		w.Header().Add("Allow", "POST, OPTIONS")
		w.WriteHeader(http.StatusOK)
		return
	}

	counter := handler.metricsManager.CounterSignups
	name := mux.Vars(r)["name"]
	span.SetAttributes(attribute.String("activity", name))

	if !handler.activityExists(w, span, name, counter) {
		return
	}

	identity := auth.IdentityFromContext(ctx)
	if _, err := handler.guard.Require(identity, auth.ActionSignup); err != nil {
		writeAccessError(w, err, counter)
		return
	}

	email := r.URL.Query().Get("email")
	if email == "" {
		counter.WithLabelValues(metrics.ResultBadRequest).Inc()
		pkg.WriteDetail(w, http.StatusBadRequest, "email is required")
		return
	}

	err := handler.directory.Signup(name, email)
	switch {
	case err == nil:
	case errors.Is(err, ErrNotFound):
		counter.WithLabelValues(metrics.ResultNotFound).Inc()
		pkg.WriteDetail(w, http.StatusNotFound, "Activity not found")
		return
	case errors.Is(err, ErrAlreadyRegistered):
		counter.WithLabelValues(metrics.ResultConflict).Inc()
		pkg.WriteDetail(w, http.StatusBadRequest, "Student is already signed up")
		return
	case errors.Is(err, ErrActivityFull):
		counter.WithLabelValues(metrics.ResultConflict).Inc()
		pkg.WriteDetail(w, http.StatusBadRequest, "Activity is full")
		return
	default:
		tracing.Fail(span, err)
		log.Errorf("signup %s for %s: %s", email, name, err)
		counter.WithLabelValues(metrics.ResultError).Inc()
		pkg.WriteDetail(w, http.StatusInternalServerError, "internal server error")
		return
	}

	counter.WithLabelValues(metrics.ResultSuccess).Inc()
	log.Infof("[%s/%s] signed up %s for %s", identity.Role, identity.Username, email, name)
	pkg.WriteMessage(w, fmt.Sprintf("Signed up %s for %s", email, name))
}

func (handler *Handler) HandleUnregister(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "activitiesHandler.unregister")
	defer span.End()

	if r.Method == http.MethodOptions {
		w.Header().Add("Allow", "DELETE, OPTIONS")
		w.WriteHeader(http.StatusOK)
		return
	}

	counter := handler.metricsManager.CounterUnregisters
	name := mux.Vars(r)["name"]
	span.SetAttributes(attribute.String("activity", name))

	if !handler.activityExists(w, span, name, counter) {
		return
	}

	identity := auth.IdentityFromContext(ctx)
	if _, err := handler.guard.Require(identity, auth.ActionUnregister); err != nil {
		writeAccessError(w, err, counter)
		return
	}

	email := r.URL.Query().Get("email")
	if email == "" {
		counter.WithLabelValues(metrics.ResultBadRequest).Inc()
		pkg.WriteDetail(w, http.StatusBadRequest, "email is required")
		return
	}

	err := handler.directory.Unregister(name, email)
	switch {
	case err == nil:
	case errors.Is(err, ErrNotFound):
		counter.WithLabelValues(metrics.ResultNotFound).Inc()
		pkg.WriteDetail(w, http.StatusNotFound, "Activity not found")
		return
	case errors.Is(err, ErrNotRegistered):
		counter.WithLabelValues(metrics.ResultConflict).Inc()
		pkg.WriteDetail(w, http.StatusBadRequest, "Student is not signed up for this activity")
		return
	default:
		tracing.Fail(span, err)
		log.Errorf("unregister %s from %s: %s", email, name, err)
		counter.WithLabelValues(metrics.ResultError).Inc()
		pkg.WriteDetail(w, http.StatusInternalServerError, "internal server error")
		return
	}

	counter.WithLabelValues(metrics.ResultSuccess).Inc()
	log.Infof("[%s/%s] unregistered %s from %s", identity.Role, identity.Username, email, name)
	pkg.WriteMessage(w, fmt.Sprintf("Unregistered %s from %s", email, name))
}

// activityExists writes the failure response itself when it returns false.
func (handler *Handler) activityExists(w http.ResponseWriter, span trace.Span, name string, counter *prometheus.CounterVec) bool {
	activity, err := handler.directory.Get(name)
	if errors.Is(err, ErrNotFound) {
		counter.WithLabelValues(metrics.ResultNotFound).Inc()
		pkg.WriteDetail(w, http.StatusNotFound, "Activity not found")
		return false
	}
	if err != nil {
		tracing.Fail(span, err)
		log.Errorf("get activity %s: %s", name, err)
		counter.WithLabelValues(metrics.ResultError).Inc()
		pkg.WriteDetail(w, http.StatusInternalServerError, "internal server error")
		return false
	}
	span.SetAttributes(attribute.Int("activity.participants", len(activity.Participants)))
	return true
}

func writeAccessError(w http.ResponseWriter, err error, counter *prometheus.CounterVec) {
	switch {
	case errors.Is(err, auth.ErrUnauthorized):
		counter.WithLabelValues(metrics.ResultUnauthorized).Inc()
		pkg.WriteDetail(w, http.StatusUnauthorized, "Authentication required")
	case errors.Is(err, auth.ErrForbidden):
		counter.WithLabelValues(metrics.ResultForbidden).Inc()
		pkg.WriteDetail(w, http.StatusForbidden, "Insufficient role permissions")
	default:
		log.Errorf("authorize request: %s", err)
		counter.WithLabelValues(metrics.ResultError).Inc()
		pkg.WriteDetail(w, http.StatusInternalServerError, "internal server error")
	}
}
