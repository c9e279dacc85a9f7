// Package server assembles the HTTP surface: middleware, session control,
// media serving, overlay CRUD, health and metrics.
package server

import (
	"log/slog"
	"net/http"
	"time"

	"rtsp-overlay/internal/overlay"
	"rtsp-overlay/internal/platform/httpx"
	"rtsp-overlay/internal/platform/logger"
	"rtsp-overlay/internal/platform/metrics"
	"rtsp-overlay/internal/stream"

	"github.com/go-chi/chi/v5"
)

// Deps are the components the router exposes. Metrics may be nil.
type Deps struct {
	Log      *slog.Logger
	Metrics  *metrics.Metrics
	Stream   *stream.Handler
	Session  *stream.Controller
	Overlays *overlay.Handler

	CORSOrigins []string

	// ControlRateLimit caps session control requests per IP per minute.
	// Zero disables the limit.
	ControlRateLimit int
}

type healthResponse struct {
	Status  string        `json:"status"`
	Message string        `json:"message"`
	Session sessionHealth `json:"session"`
}

type sessionHealth struct {
	Running bool `json:"running"`
}

// NewRouter returns the chi router for the whole API.
func NewRouter(d Deps) *chi.Mux {
	r := chi.NewRouter()
	r.Use(logger.RequestLogger(d.Log))
	r.Use(metrics.RequestMiddleware(d.Metrics))
	r.Use(httpx.CORS(d.CORSOrigins))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		httpx.WriteJSON(w, http.StatusOK, healthResponse{
			Status:  "healthy",
			Message: "RTSP Overlay API is running",
			Session: sessionHealth{Running: d.Session.Running()},
		})
	})
	if d.Metrics != nil {
		r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
			d.Metrics.Handler(func() { d.Metrics.SetActiveSession(d.Session.Running()) }).ServeHTTP(w, r)
		})
	}

	limit := httpx.RateLimit(d.ControlRateLimit, time.Minute)
	r.Route("/session", func(r chi.Router) {
		r.Get("/status", d.Stream.SessionStatus)
		r.Group(func(r chi.Router) {
			r.Use(limit)
			r.Post("/", d.Stream.StartSession)
			r.Delete("/", d.Stream.StopSession)
			r.Post("/test", d.Stream.TestSource)
		})
	})
	r.Get(stream.MediaPrefix+"/{name}", d.Stream.ServeMedia)

	r.Route("/overlays", func(r chi.Router) {
		r.Post("/", d.Overlays.Create)
		r.Get("/", d.Overlays.List)
		r.Put("/{id}", d.Overlays.Update)
		r.Delete("/{id}", d.Overlays.Delete)
	})

	return r
}
