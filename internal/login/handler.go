package login

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"

	"github.com/2beens/mergington/internal/auth"
	"github.com/2beens/mergington/internal/middleware"
	"github.com/2beens/mergington/internal/telemetry/metrics"
	"github.com/2beens/mergington/internal/telemetry/tracing"
	"github.com/2beens/mergington/pkg"
)

//go:generate mockgen -source=$GOFILE -destination=handler_mocks_test.go -package=login_test

type authService interface {
	Login(ctx context.Context, username, password, roleName string) (*auth.Session, error)
	Logout(ctx context.Context, token string) error
	TTL() time.Duration
}

type Request struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

type Response struct {
	Message string        `json:"message"`
	User    auth.Identity `json:"user"`
}

type Handler struct {
	authService    authService
	cookieSecure   bool
	metricsManager *metrics.Manager
}

func NewHandler(authService authService, cookieSecure bool, metricsManager *metrics.Manager) *Handler {
	return &Handler{
		authService:    authService,
		cookieSecure:   cookieSecure,
		metricsManager: metricsManager,
	}
}

func (handler *Handler) SetupRoutes(
	mainRouter *mux.Router,
	rateLimiter middleware.RequestRateLimiter,
) {
	authRouter := mainRouter.PathPrefix("/auth").Subrouter()

	// rate limit the /login endpoint to slow down password guessing
	limitedLogin := middleware.RateLimit(rateLimiter, "login", handler.metricsManager)(
		http.HandlerFunc(handler.HandleLogin),
	)
	authRouter.Handle("/login", limitedLogin).Methods("POST", "OPTIONS").Name("login")
	authRouter.HandleFunc("/logout", handler.HandleLogout).Methods("POST", "OPTIONS").Name("logout")
	authRouter.HandleFunc("/me", handler.HandleMe).Methods("GET", "OPTIONS").Name("me")
}

func (handler *Handler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "loginHandler.login")
	defer span.End()

	if r.Method == http.MethodOptions {
		w.Header().Add("Allow", "POST, OPTIONS")
		w.WriteHeader(http.StatusOK)
		return
	}

	loginReq, err := readLoginRequest(r)
	if err != nil {
		log.Debugf("login, read request: %s", err)
		pkg.WriteDetail(w, http.StatusBadRequest, "invalid login request")
		return
	}

	roleLabel := "unknown"
	if role, err := auth.ParseRole(loginReq.Role); err == nil {
		roleLabel = role.String()
	}
	span.SetAttributes(attribute.String("login.role", roleLabel))

	session, err := handler.authService.Login(ctx, loginReq.Username, loginReq.Password, loginReq.Role)
	if errors.Is(err, auth.ErrInvalidCredentials) {
		log.Infof("failed login attempt for user [%s] as [%s]", loginReq.Username, roleLabel)
		handler.metricsManager.CounterLogins.WithLabelValues(roleLabel, metrics.ResultFailure).Inc()
		pkg.WriteDetail(w, http.StatusUnauthorized, "Invalid username, password, or role")
		return
	}
	if err != nil {
		tracing.Fail(span, err)
		log.Errorf("login failed for user [%s]: %s", loginReq.Username, err)
		handler.metricsManager.CounterLogins.WithLabelValues(roleLabel, metrics.ResultError).Inc()
		pkg.WriteDetail(w, http.StatusInternalServerError, "internal server error")
		return
	}

	// a new login replaces whatever session the client held before
	if old, err := r.Cookie(auth.SessionCookieName); err == nil && old.Value != "" && old.Value != session.Token {
		if err := handler.authService.Logout(ctx, old.Value); err != nil {
			log.Warnf("login, drop previous session: %s", err)
		}
	}

	http.SetCookie(w, handler.sessionCookie(session.Token, int(handler.authService.TTL().Seconds())))
	handler.metricsManager.CounterLogins.WithLabelValues(roleLabel, metrics.ResultSuccess).Inc()
	log.Infof("login success for user [%s] as [%s]", session.Username, session.Role)

	pkg.WriteJSON(w, http.StatusOK, Response{
		Message: "Logged in successfully",
		User:    session.Identity(),
	})
}

func (handler *Handler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "loginHandler.logout")
	defer span.End()

	if r.Method == http.MethodOptions {
		w.Header().Add("Allow", "POST, OPTIONS")
		w.WriteHeader(http.StatusOK)
		return
	}

	if cookie, err := r.Cookie(auth.SessionCookieName); err == nil && cookie.Value != "" {
		if err := handler.authService.Logout(ctx, cookie.Value); err != nil {
			log.Warnf("logout, delete session: %s", err)
		}
	}

	http.SetCookie(w, handler.sessionCookie("", -1))
	if identity := auth.IdentityFromContext(ctx); identity != nil {
		log.Infof("logout for user [%s] success", identity.Username)
	}
	pkg.WriteMessage(w, "Logged out successfully")
}

func (handler *Handler) HandleMe(w http.ResponseWriter, r *http.Request) {
	_, span := tracing.GlobalTracer.Start(r.Context(), "loginHandler.me")
	defer span.End()

	if r.Method == http.MethodOptions {
		w.Header().Add("Allow", "GET, OPTIONS")
		w.WriteHeader(http.StatusOK)
		return
	}

	identity := auth.IdentityFromContext(r.Context())
	if identity == nil || identity.Username == "" || !identity.Role.Valid() {
		pkg.WriteDetail(w, http.StatusUnauthorized, "Not logged in")
		return
	}

	pkg.WriteJSON(w, http.StatusOK, identity)
}

func (handler *Handler) sessionCookie(token string, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     auth.SessionCookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   handler.cookieSecure,
		SameSite: http.SameSiteLaxMode,
	}
}

func readLoginRequest(r *http.Request) (Request, error) {
	var loginReq Request
	if strings.HasPrefix(r.Header.Get("Content-Type"), "application/x-www-form-urlencoded") {
		if err := r.ParseForm(); err != nil {
			return loginReq, err
		}
		return Request{
			Username: r.Form.Get("username"),
			Password: r.Form.Get("password"),
			Role:     r.Form.Get("role"),
		}, nil
	}

	if r.Body == nil {
		return loginReq, errors.New("empty body")
	}
	if err := json.NewDecoder(r.Body).Decode(&loginReq); err != nil {
		return loginReq, err
	}
	return loginReq, nil
}
