package worker

import (
	"context"
	"errors"
	"testing"

	"qcdash/internal/amqp"
	"qcdash/internal/services"
)

type fakeDashboard struct {
	calls int
	err   error
}

func (d *fakeDashboard) Invalidate(context.Context) (services.Status, error) {
	d.calls++
	if d.err != nil {
		return services.Status{}, d.err
	}
	return services.Status{Generation: uint64(d.calls)}, nil
}

func TestHandleUpdateMessageRefreshes(t *testing.T) {
	dash := &fakeDashboard{}
	w := NewUpdateWorker(dash, nil)

	if err := w.HandleUpdateMessage(context.Background(), amqp.NewUpdateMessage("42", "other")); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if err := w.HandlePush(context.Background()); err != nil {
		t.Fatalf("push: %v", err)
	}
	if dash.calls != 2 {
		t.Fatalf("invalidate calls = %d", dash.calls)
	}
	if processed, failed := w.Stats(); processed != 2 || failed != 0 {
		t.Fatalf("stats = %d/%d", processed, failed)
	}
}

func TestHandleUpdateMessageReportsFailure(t *testing.T) {
	boom := errors.New("api down")
	w := NewUpdateWorker(&fakeDashboard{err: boom}, nil)

	err := w.HandleUpdateMessage(context.Background(), amqp.NewUpdateMessage("42", "other"))
	if !errors.Is(err, boom) {
		t.Fatalf("expected wrapped error, got %v", err)
	}
	if processed, failed := w.Stats(); processed != 0 || failed != 1 {
		t.Fatalf("stats = %d/%d", processed, failed)
	}
}
