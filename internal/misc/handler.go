package misc

import (
	"context"
	"net/http"
	"os"
	"path/filepath"

	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"

	"github.com/2beens/mergington/internal/telemetry/tracing"
	"github.com/2beens/mergington/pkg"
)

const indexPath = "/static/index.html"

// HealthCheck reports an error when a dependency of the service is unusable.
type HealthCheck func(ctx context.Context) error

type Handler struct {
	versionInfo string
	staticDir   string
	healthCheck HealthCheck
}

func NewHandler(versionInfo, staticDir string, healthCheck HealthCheck) *Handler {
	return &Handler{
		versionInfo: versionInfo,
		staticDir:   staticDir,
		healthCheck: healthCheck,
	}
}

func (handler *Handler) SetupRoutes(mainRouter *mux.Router) {
	mainRouter.HandleFunc("/", handler.handleRoot).Methods("GET").Name("root")
	mainRouter.HandleFunc("/version", handler.handleGetVersionInfo).Methods("GET").Name("version")
	mainRouter.HandleFunc("/healthz", handler.handleHealthz).Methods("GET").Name("healthz")

	if handler.staticDir == "" {
		return
	}
	if exists, err := pkg.PathExists(handler.staticDir, true); err != nil || !exists {
		log.Warnf("static dir [%s] not found, static files will not be served", handler.staticDir)
		return
	}
	// registered before the prefix, FileServer would redirect index.html to the dir
	mainRouter.HandleFunc(indexPath, handler.handleIndex).Methods("GET").Name("static-index")
	mainRouter.PathPrefix("/static/").
		Handler(http.StripPrefix("/static/", http.FileServer(http.Dir(handler.staticDir)))).
		Methods("GET").
		Name("static")
}

func (handler *Handler) handleRoot(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, indexPath, http.StatusTemporaryRedirect)
}

func (handler *Handler) handleIndex(w http.ResponseWriter, r *http.Request) {
	f, err := os.Open(filepath.Join(handler.staticDir, "index.html"))
	if err != nil {
		http.NotFound(w, r)
		return
	}
	defer f.Close()

	stat, err := f.Stat()
	if err != nil {
		log.Errorf("stat index.html: %s", err)
		http.NotFound(w, r)
		return
	}
	http.ServeContent(w, r, "index.html", stat.ModTime(), f)
}

func (handler *Handler) handleGetVersionInfo(w http.ResponseWriter, _ *http.Request) {
	pkg.WriteTextResponseOK(w, handler.versionInfo)
}

func (handler *Handler) handleHealthz(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "miscHandler.healthz")
	defer span.End()

	if handler.healthCheck != nil {
		if err := handler.healthCheck(ctx); err != nil {
			tracing.Fail(span, err)
			log.Errorf("health check failed: %s", err)
			pkg.WriteResponse(w, pkg.ContentType.Text, "unhealthy", http.StatusServiceUnavailable)
			return
		}
	}

	pkg.WriteTextResponseOK(w, "ok")
}
