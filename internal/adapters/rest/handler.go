package rest

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/ewilliams-labs/moodlist/internal/core/services"
	"github.com/ewilliams-labs/moodlist/internal/logging"
	"github.com/ewilliams-labs/moodlist/internal/worker"
)

// FrameQueue accepts frames for background classification.
type FrameQueue interface {
	Submit(job worker.Job) bool
}

// BreakerState exposes the playlist store's circuit breaker.
type BreakerState interface {
	State() gobreaker.State
}

// Options tunes the HTTP layer.
type Options struct {
	CORSOrigins []string
	// FrameRateLimit caps frame uploads per client IP per FrameRateWindow.
	FrameRateLimit  int
	FrameRateWindow time.Duration
	// StoreBreaker is reported by /health when the store is guarded.
	StoreBreaker BreakerState
}

// Handler manages the HTTP interface for our application.
type Handler struct {
	svc      *services.Orchestrator
	sessions *services.SessionManager
	frames   FrameQueue // nil when frames are classified client-side
	opts     Options
	router   chi.Router
	logger   zerolog.Logger
}

// NewHandler initializes the HTTP adapter and sets up routes.
func NewHandler(svc *services.Orchestrator, sessions *services.SessionManager, frames FrameQueue, opts Options) *Handler {
	if len(opts.CORSOrigins) == 0 {
		opts.CORSOrigins = []string{"*"}
	}
	if opts.FrameRateLimit <= 0 {
		opts.FrameRateLimit = 20
	}
	if opts.FrameRateWindow <= 0 {
		opts.FrameRateWindow = time.Second
	}
	h := &Handler{
		svc:      svc,
		sessions: sessions,
		frames:   frames,
		opts:     opts,
		router:   chi.NewRouter(),
		logger:   logging.Component("rest"),
	}
	h.routes()
	return h
}

// ServeHTTP satisfies the http.Handler interface.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.router.ServeHTTP(w, r)
}

func (h *Handler) routes() {
	r := h.router
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(h.accessLog)
	r.Use(chimiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: h.opts.CORSOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-ID"},
		MaxAge:         300,
	}))

	r.Get("/health", h.HealthCheck)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	// Playlist management
	r.Route("/playlists", func(r chi.Router) {
		r.Get("/", h.ListPlaylists)
		r.Post("/", h.CreatePlaylist)
		r.Post("/seed", h.SeedPlaylists)
		r.Get("/{id}", h.GetPlaylist)
		r.Post("/{id}/songs", h.AddSong)
	})
	r.Get("/recommendations", h.Recommend)

	// Detection sessions
	r.Route("/sessions", func(r chi.Router) {
		r.Post("/", h.CreateSession)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", h.GetSession)
			r.Delete("/", h.DeleteSession)
			r.Post("/start", h.StartSession)
			r.Post("/reset", h.ResetSession)
			r.Post("/expressions", h.PostExpressions)
			r.With(httprate.Limit(
				h.opts.FrameRateLimit,
				h.opts.FrameRateWindow,
				httprate.WithKeyFuncs(httprate.KeyByIP),
				httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
					writeErrorWithCode(w, http.StatusTooManyRequests, "frame rate limit exceeded", codeRateLimited)
				}),
			)).Post("/frames", h.PostFrame)
			r.Get("/recommendations", h.SessionRecommendations)
		})
	})
}

// HealthCheck verifies the API is running. An open store breaker marks the
// service degraded; it still answers 200 so the process is not restarted
// for a dependency outage.
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	body := map[string]any{"status": "ok"}
	if h.sessions != nil {
		body["sessions"] = h.sessions.Len()
	}
	if b := h.opts.StoreBreaker; b != nil {
		state := b.State()
		body["store_breaker"] = state.String()
		if state == gobreaker.StateOpen {
			body["status"] = "degraded"
		}
	}
	writeJSON(w, http.StatusOK, body)
}

func (h *Handler) accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		h.logger.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("duration", time.Since(start)).
			Str("request_id", chimiddleware.GetReqID(r.Context())).
			Msg("request")
	})
}
