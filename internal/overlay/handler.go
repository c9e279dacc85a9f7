package overlay

import (
	"errors"
	"log/slog"
	"net/http"

	"rtsp-overlay/internal/platform/httpx"

	"github.com/go-chi/chi/v5"
)

// Handler exposes the overlay CRUD endpoints using go-chi.
type Handler struct {
	svc *Service
	log *slog.Logger
}

// NewHandler returns a Handler that uses the given Service and Logger.
func NewHandler(svc *Service, log *slog.Logger) *Handler {
	return &Handler{svc: svc, log: log}
}

// Create handles POST /overlays.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	f, ok := h.decode(w, r)
	if !ok {
		return
	}
	o, err := h.svc.Create(r.Context(), f)
	if err != nil {
		h.writeError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, o)
}

// List handles GET /overlays.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	res, err := h.svc.List(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, res)
}

// Update handles PUT /overlays/{id}.
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	f, ok := h.decode(w, r)
	if !ok {
		return
	}
	if err := h.svc.Update(r.Context(), chi.URLParam(r, "id"), f); err != nil {
		h.writeError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, struct{}{})
}

// Delete handles DELETE /overlays/{id}.
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.writeError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, struct{}{})
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request) (Fields, bool) {
	var f Fields
	if err := httpx.DecodeJSON(r, &f); err != nil {
		h.log.Debug("invalid overlay body", slog.String("error", err.Error()))
		httpx.WriteError(w, http.StatusBadRequest, "ValidationError", "", "No data provided")
		return nil, false
	}
	return f, true
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	var verr *ValidationError
	switch {
	case errors.As(err, &verr):
		httpx.WriteError(w, http.StatusBadRequest, "ValidationError", verr.Field, verr.Message)
	case errors.Is(err, ErrNotFound):
		httpx.WriteError(w, http.StatusNotFound, "NotFound", "", "Overlay not found")
	default:
		h.log.Error("overlay store error", slog.String("error", err.Error()))
		httpx.WriteError(w, http.StatusInternalServerError, "StoreError", "", "Overlay store unavailable")
	}
}
