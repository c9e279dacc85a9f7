package overlay

import (
	"context"
	"log/slog"

	"rtsp-overlay/internal/platform/metrics"
)

// Operation labels recorded in metrics.
const (
	opCreate = "create"
	opList   = "list"
	opUpdate = "update"
	opDelete = "delete"
)

// Service validates overlay requests and delegates storage to a Store.
type Service struct {
	store   Store
	log     *slog.Logger
	metrics *metrics.Metrics
}

// NewService returns a Service backed by store. m may be nil.
func NewService(store Store, log *slog.Logger, m *metrics.Metrics) *Service {
	return &Service{store: store, log: log, metrics: m}
}

// Create validates f and stores the resulting overlay.
func (s *Service) Create(ctx context.Context, f Fields) (Overlay, error) {
	o, err := NewFromFields(f)
	if err != nil {
		return Overlay{}, err
	}
	o, err = s.store.Create(ctx, o)
	if err != nil {
		return Overlay{}, err
	}
	s.metrics.IncOverlayOp(opCreate)
	s.log.Info("overlay created", slog.String("id", o.ID.Hex()), slog.String("type", string(o.Type)))
	return o, nil
}

// List returns all overlays.
func (s *Service) List(ctx context.Context) (ListResult, error) {
	overlays, err := s.store.List(ctx)
	if err != nil {
		return ListResult{}, err
	}
	s.metrics.IncOverlayOp(opList)
	return ListResult{Data: overlays, Count: len(overlays)}, nil
}

// Update applies the allowed fields of f to the overlay with the given id.
func (s *Service) Update(ctx context.Context, rawID string, f Fields) error {
	id, err := ParseID(rawID)
	if err != nil {
		return err
	}
	patch, err := BuildPatch(f)
	if err != nil {
		return err
	}
	if err := s.store.Update(ctx, id, patch); err != nil {
		return err
	}
	s.metrics.IncOverlayOp(opUpdate)
	s.log.Info("overlay updated", slog.String("id", rawID), slog.Int("fields", len(patch)))
	return nil
}

// Delete removes the overlay with the given id.
func (s *Service) Delete(ctx context.Context, rawID string) error {
	id, err := ParseID(rawID)
	if err != nil {
		return err
	}
	if err := s.store.Delete(ctx, id); err != nil {
		return err
	}
	s.metrics.IncOverlayOp(opDelete)
	s.log.Info("overlay deleted", slog.String("id", rawID))
	return nil
}
