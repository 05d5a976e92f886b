package app

import (
	"io/fs"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/inkwell-press/inkwell/internal/articles"
	"github.com/inkwell-press/inkwell/internal/auth"
	"github.com/inkwell-press/inkwell/internal/platform/httpx"
	"github.com/inkwell-press/inkwell/internal/rbac"
	"github.com/inkwell-press/inkwell/internal/shared"
	"github.com/inkwell-press/inkwell/internal/users"
	"github.com/inkwell-press/inkwell/web"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger          *slog.Logger
	Config          *Config
	SessionManager  *shared.SessionManager
	CSRFManager     *shared.CSRFManager
	AuthHandler     *auth.Handler
	ArticlesHandler *articles.Handler
	UsersHandler    *users.Handler
	RBACMiddleware  rbac.Middleware
}

// NewRouter constructs the chi.Router with Inkwell defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:         params.Logger,
		Config:         params.Config,
		SessionManager: params.SessionManager,
		CSRFManager:    params.CSRFManager,
		RBAC:           params.RBACMiddleware,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		httpx.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	// The front page lists the whole catalog with an optional date-range
	// filter. No sign-in required.
	r.Get("/", params.ArticlesHandler.Home)

	r.Route("/auth", params.AuthHandler.MountRoutes)
	r.Route("/articles", params.ArticlesHandler.MountRoutes)
	if params.UsersHandler != nil {
		r.Route("/admin/users", params.UsersHandler.MountRoutes)
	}

	staticFS, err := fs.Sub(web.Static, "static")
	if err != nil {
		params.Logger.Error("create static sub filesystem", slog.Any("error", err))
	} else {
		fileServer := http.StripPrefix("/static/", http.FileServer(http.FS(staticFS)))
		r.Handle("/static/*", staticCacheHandler(fileServer))
	}

	return r
}

// staticCacheHandler wraps a file server with Cache-Control headers so
// browsers keep assets for an hour.
func staticCacheHandler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "public, max-age=3600")
		next.ServeHTTP(w, r)
	})
}

// NewServer builds the HTTP server around the router.
func NewServer(cfg *Config, handler http.Handler) *http.Server {
	readTimeout := 15 * time.Second
	writeTimeout := 15 * time.Second
	if cfg != nil {
		if cfg.AppReadTimeout > 0 {
			readTimeout = cfg.AppReadTimeout
		}
		if cfg.AppWriteTimeout > 0 {
			writeTimeout = cfg.AppWriteTimeout
		}
	}
	return &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      handler,
		ReadTimeout:  readTimeout,
		WriteTimeout: writeTimeout,
	}
}
