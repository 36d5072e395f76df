// Package worker reacts to change events from other dashboard instances and
// from the upstream push channel.
package worker

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"qcdash/internal/amqp"
	"qcdash/internal/services"
)

// Invalidator starts a fetch that supersedes any in flight.
type Invalidator interface {
	Invalidate(ctx context.Context) (services.Status, error)
}

// UpdateWorker refreshes the snapshot when a change event arrives.
type UpdateWorker struct {
	dashboard Invalidator
	logger    *slog.Logger

	processed atomic.Int64
	failed    atomic.Int64
}

// NewUpdateWorker returns a worker refreshing dashboard.
func NewUpdateWorker(dashboard Invalidator, logger *slog.Logger) *UpdateWorker {
	if logger == nil {
		logger = slog.Default()
	}
	return &UpdateWorker{dashboard: dashboard, logger: logger}
}

// HandleUpdateMessage processes an inspection:update event from AMQP.
func (w *UpdateWorker) HandleUpdateMessage(ctx context.Context, msg *amqp.UpdateMessage) error {
	w.logger.InfoContext(ctx, "Processing update message",
		"id", msg.ID,
		"source", msg.Source,
		"lag_ms", time.Since(msg.Timestamp).Milliseconds())
	return w.refresh(ctx, "amqp")
}

// HandlePush processes an update frame from the upstream push channel.
func (w *UpdateWorker) HandlePush(ctx context.Context) error {
	return w.refresh(ctx, "push")
}

func (w *UpdateWorker) refresh(ctx context.Context, trigger string) error {
	st, err := w.dashboard.Invalidate(ctx)
	if err != nil {
		w.failed.Add(1)
		return fmt.Errorf("refresh after %s event: %w", trigger, err)
	}
	w.processed.Add(1)
	w.logger.DebugContext(ctx, "Snapshot refreshed after event",
		"trigger", trigger,
		"generation", st.Generation)
	return nil
}

// Stats reports processed and failed events.
func (w *UpdateWorker) Stats() (processed, failed int64) {
	return w.processed.Load(), w.failed.Load()
}
