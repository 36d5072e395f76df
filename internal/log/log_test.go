package log

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func newBufferLogger(level slog.Level) (*Logger, *bytes.Buffer) {
	var buf bytes.Buffer
	return New(Config{Level: level, Component: ComponentHTTP, Output: &buf}), &buf
}

func TestLoggerStampsComponent(t *testing.T) {
	logger, buf := newBufferLogger(slog.LevelInfo)
	logger.Info("hello", "k", "v")
	logger.WithComponent(ComponentAMQP).Warn("careful")
	logger.Debug("hidden")

	out := buf.String()
	if !strings.Contains(out, "component=http") || !strings.Contains(out, "k=v") {
		t.Errorf("missing fields in %q", out)
	}
	if !strings.Contains(out, "component=amqp") {
		t.Errorf("component override missing in %q", out)
	}
	if strings.Contains(out, "hidden") {
		t.Errorf("debug record emitted at info level")
	}
}

func TestFromContextDefaults(t *testing.T) {
	if l := FromContext(context.Background()); l.Component() != "unknown" {
		t.Errorf("component = %q", l.Component())
	}
}

func TestMiddlewareChain(t *testing.T) {
	logger, buf := newBufferLogger(slog.LevelDebug)
	h := Middleware(logger)(RequestIDMiddleware(func(context.Context) string { return "req_1" })(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			FromContext(r.Context()).InfoContext(r.Context(), "inside")
		})))

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	if out := buf.String(); !strings.Contains(out, "request_id=req_1") || !strings.Contains(out, "inside") {
		t.Errorf("request id not propagated: %q", out)
	}
}

func TestStructuredLogger(t *testing.T) {
	logger, buf := newBufferLogger(slog.LevelInfo)
	sl := NewStructuredLogger(logger)
	sl.LogInspectionWritten(context.Background(), OpCreate, "64f", "INS-1", "Omar")
	sl.LogError(context.Background(), "refresh failed", errors.New("boom"), OpRefresh, nil)

	out := buf.String()
	for _, want := range []string{"inspection_id=64f", "inspector=Omar", "operation=create", "error=boom", "operation=refresh"} {
		if !strings.Contains(out, want) {
			t.Errorf("missing %q in %q", want, out)
		}
	}
}
