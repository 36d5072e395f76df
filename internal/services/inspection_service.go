package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"qcdash/internal/core"
)

// ErrInvalidInspection wraps every validation failure returned by
// InspectionService.
var ErrInvalidInspection = errors.New("invalid inspection")

// InspectionStore performs writes against the upstream API.
type InspectionStore interface {
	Create(ctx context.Context, rec core.InspectionRecord) (core.InspectionRecord, error)
	Update(ctx context.Context, id string, rec core.InspectionRecord) (core.InspectionRecord, error)
	Delete(ctx context.Context, id string) error
}

// Publisher announces that the inspection set changed.
type Publisher interface {
	PublishUpdate(ctx context.Context, id string) error
}

// InspectionService validates and forwards writes, then refreshes the
// dashboard snapshot and notifies other instances.
type InspectionService struct {
	store     InspectionStore
	dashboard *DashboardService
	publisher Publisher
	logger    *slog.Logger
}

// NewInspectionService builds the service. publisher may be nil.
func NewInspectionService(store InspectionStore, dashboard *DashboardService, publisher Publisher, logger *slog.Logger) *InspectionService {
	if logger == nil {
		logger = slog.Default()
	}
	return &InspectionService{
		store:     store,
		dashboard: dashboard,
		publisher: publisher,
		logger:    logger,
	}
}

// Prepare derives the status label from the outcome flags and validates the
// result.
func Prepare(rec core.InspectionRecord) (core.InspectionRecord, error) {
	if status := core.DeriveStatus(rec); status != "" {
		rec.InspectionStatus = status
	}
	if err := rec.Validate(); err != nil {
		return rec, fmt.Errorf("%w: %w", ErrInvalidInspection, err)
	}
	return rec, nil
}

// Create stores a new inspection.
func (s *InspectionService) Create(ctx context.Context, rec core.InspectionRecord) (core.InspectionRecord, error) {
	rec, err := Prepare(rec)
	if err != nil {
		return core.InspectionRecord{}, err
	}
	saved, err := s.store.Create(ctx, rec)
	if err != nil {
		return core.InspectionRecord{}, fmt.Errorf("create inspection: %w", err)
	}
	s.changed(ctx, saved.ID)
	return saved, nil
}

// Update replaces the inspection identified by id.
func (s *InspectionService) Update(ctx context.Context, id string, rec core.InspectionRecord) (core.InspectionRecord, error) {
	rec, err := Prepare(rec)
	if err != nil {
		return core.InspectionRecord{}, err
	}
	saved, err := s.store.Update(ctx, id, rec)
	if err != nil {
		return core.InspectionRecord{}, fmt.Errorf("update inspection %s: %w", id, err)
	}
	if saved.ID == "" {
		saved.ID = id
	}
	s.changed(ctx, id)
	return saved, nil
}

// Delete removes the inspection identified by id.
func (s *InspectionService) Delete(ctx context.Context, id string) error {
	if err := s.store.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete inspection %s: %w", id, err)
	}
	s.changed(ctx, id)
	return nil
}

// changed refreshes the local snapshot and publishes the update event. The
// write already succeeded upstream, so failures here are only logged.
func (s *InspectionService) changed(ctx context.Context, id string) {
	if s.dashboard != nil {
		if _, err := s.dashboard.Invalidate(ctx); err != nil {
			s.logger.WarnContext(ctx, "Refresh after write failed", "id", id, "error", err)
		}
	}

	if s.publisher == nil {
		s.logger.DebugContext(ctx, "No publisher configured, skipping update event", "id", id)
		return
	}
	if err := s.publisher.PublishUpdate(ctx, id); err != nil {
		s.logger.ErrorContext(ctx, "Failed to publish update event", "id", id, "error", err)
	}
}
