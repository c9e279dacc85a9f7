package stream

import (
	"errors"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"rtsp-overlay/internal/platform/httpx"
	"rtsp-overlay/internal/platform/metrics"

	"github.com/go-chi/chi/v5"
)

const (
	playlistContentType = "application/vnd.apple.mpegurl"
	segmentContentType  = "video/mp2t"

	// Segments are immutable once listed but are deleted as the window
	// slides, so they are only cached briefly.
	segmentCacheControl = "public, max-age=10"
)

// Handler exposes the session control and media endpoints using go-chi.
type Handler struct {
	ctrl     *Controller
	prober   *Prober
	mediaDir string
	log      *slog.Logger
	metrics  *metrics.Metrics
}

// NewHandler returns a Handler serving media from mediaDir. Metrics may be
// nil to disable metric recording (e.g. in tests).
func NewHandler(ctrl *Controller, prober *Prober, mediaDir string, log *slog.Logger, m *metrics.Metrics) *Handler {
	return &Handler{ctrl: ctrl, prober: prober, mediaDir: mediaDir, log: log, metrics: m}
}

// sourceRequest is the body of POST /session and POST /session/test.
// rtsp_url is the legacy name of sourceUri.
type sourceRequest struct {
	SourceURI      string  `json:"sourceUri"`
	LegacyURL      string  `json:"rtsp_url"`
	TimeoutSeconds float64 `json:"timeoutSeconds"`
}

func (r sourceRequest) source() string {
	if s := strings.TrimSpace(r.SourceURI); s != "" {
		return s
	}
	return strings.TrimSpace(r.LegacyURL)
}

func (h *Handler) decodeSource(w http.ResponseWriter, r *http.Request) (sourceRequest, bool) {
	var req sourceRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		h.log.Debug("invalid session body", slog.String("error", err.Error()))
		httpx.WriteError(w, http.StatusBadRequest, "ValidationError", "", "Request body must be a JSON object")
		return req, false
	}
	if req.source() == "" {
		httpx.WriteError(w, http.StatusBadRequest, "ValidationError", "", ErrInvalidSource.Error())
		return req, false
	}
	return req, true
}

// StartSession handles POST /session.
// Body: { "sourceUri": "rtsp://camera/stream" }.
func (h *Handler) StartSession(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decodeSource(w, r)
	if !ok {
		return
	}

	res, err := h.ctrl.Start(r.Context(), req.source())
	if err != nil {
		h.writeError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, res)
}

// StopSession handles DELETE /session.
func (h *Handler) StopSession(w http.ResponseWriter, r *http.Request) {
	if err := h.ctrl.Stop(); err != nil {
		h.writeError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, struct{}{})
}

// SessionStatus handles GET /session/status.
func (h *Handler) SessionStatus(w http.ResponseWriter, r *http.Request) {
	httpx.WriteJSON(w, http.StatusOK, h.ctrl.Status())
}

// TestSource handles POST /session/test.
// Body: { "sourceUri": "rtsp://camera/stream", "timeoutSeconds": 5 }.
func (h *Handler) TestSource(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decodeSource(w, r)
	if !ok {
		return
	}

	timeout := time.Duration(req.TimeoutSeconds * float64(time.Second))
	if err := h.prober.Test(r.Context(), req.source(), timeout); err != nil {
		h.writeError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, struct{}{})
}

// ServeMedia handles GET /media/{name}. Playlists are normalized on every
// read and never cached; a playlist that does not exist yet is served as a
// header-only live playlist so players keep polling. Segments are served
// from disk as-is.
func (h *Handler) ServeMedia(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if !validMediaName(name) {
		httpx.WriteError(w, http.StatusNotFound, "NotFound", "", ErrMediaNotFound.Error())
		return
	}
	path := filepath.Join(h.mediaDir, name)

	switch filepath.Ext(name) {
	case ".m3u8":
		body := Normalize(path)
		w.Header().Set("Content-Type", playlistContentType)
		w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
		w.Header().Set("Pragma", "no-cache")
		w.Header().Set("Expires", "0")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(body))
		h.metrics.IncPlaylistsServed()

	case ".ts":
		f, err := os.Open(path)
		if err != nil {
			httpx.WriteError(w, http.StatusNotFound, "NotFound", "", ErrMediaNotFound.Error())
			return
		}
		defer f.Close()

		info, err := f.Stat()
		if err != nil || info.IsDir() {
			httpx.WriteError(w, http.StatusNotFound, "NotFound", "", ErrMediaNotFound.Error())
			return
		}
		w.Header().Set("Content-Type", segmentContentType)
		w.Header().Set("Cache-Control", segmentCacheControl)
		http.ServeContent(w, r, name, info.ModTime(), f)
		h.metrics.IncSegmentsServed()

	default:
		httpx.WriteError(w, http.StatusNotFound, "NotFound", "", ErrMediaNotFound.Error())
	}
}

// validMediaName accepts a bare file name inside the media directory.
func validMediaName(name string) bool {
	if name == "" || strings.HasPrefix(name, ".") {
		return false
	}
	if strings.ContainsAny(name, `/\`) {
		return false
	}
	return filepath.Base(name) == name
}

// writeError maps controller and prober errors to status codes. It is the
// only place where stream errors become HTTP statuses.
func (h *Handler) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrInvalidSource):
		httpx.WriteError(w, http.StatusBadRequest, "ValidationError", "", err.Error())
	case errors.Is(err, ErrAlreadyRunning):
		httpx.WriteError(w, http.StatusBadRequest, "ConflictError", "AlreadyRunning", "Stream is already running")
	case errors.Is(err, ErrNotRunning):
		httpx.WriteError(w, http.StatusBadRequest, "ConflictError", "NotRunning", "No active stream to stop")
	case errors.Is(err, ErrStreamStartFailed):
		httpx.WriteError(w, http.StatusInternalServerError, "StreamStartFailed", "", withDetail("Failed to start stream", err))
	case errors.Is(err, ErrStreamStopFailed):
		httpx.WriteError(w, http.StatusInternalServerError, "StreamStopFailed", "", withDetail("Failed to stop stream", err))
	case errors.Is(err, ErrProbeTimeout):
		httpx.WriteError(w, http.StatusRequestTimeout, "ProbeTimeout", "", "Connection timeout")
	case errors.Is(err, ErrProbeFailed):
		httpx.WriteError(w, http.StatusBadRequest, "ProbeFailed", "", withDetail("Connection failed", err))
	default:
		h.log.Error("unhandled stream error", slog.String("error", err.Error()))
		httpx.WriteError(w, http.StatusInternalServerError, "InternalError", "", "Internal server error")
	}
}

func withDetail(msg string, err error) string {
	if d := Detail(err); d != "" {
		return msg + ": " + d
	}
	return msg
}
