package httpapi

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"imagequeue/internal/http/handlers"
	"imagequeue/internal/middleware"
)

// Options configures the router beyond the handlers themselves.
type Options struct {
	Logger          zerolog.Logger
	AdminToken      string
	RateLimitPerMin int
	// StaticDir, when set, is served under /static for filesystem artifacts.
	StaticDir string
}

func NewRouter(app *handlers.App, opts Options) http.Handler {
	r := chi.NewRouter()

	r.Use(
		middleware.RequestID,
		chimw.RealIP,
		chimw.Recoverer,
		middleware.Logger(opts.Logger),
	)

	// Health
	r.Get("/v1/healthz", app.Health)

	r.Route("/v1/jobs", func(r chi.Router) {
		r.With(middleware.RateLimit(opts.RateLimitPerMin, time.Minute)).Post("/", app.CreateJob)
		r.Get("/{id}", app.GetJob)
		r.Post("/{id}/process", app.ProcessJob)
	})

	r.Route("/v1/admin", func(r chi.Router) {
		r.Use(middleware.AdminToken(opts.AdminToken))
		r.Post("/queue/clear", app.ClearQueue)
		r.Post("/jobs/purge", app.PurgeJobs)
	})

	if dir := strings.TrimSpace(opts.StaticDir); dir != "" {
		r.Handle("/static/*", http.StripPrefix("/static/", http.FileServer(http.Dir(dir))))
	}

	return r
}
