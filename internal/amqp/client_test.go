package amqp

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"qcdash/internal/core"
)

func TestExponentialBackoff(t *testing.T) {
	tests := []struct {
		attempt  int
		expected time.Duration
	}{
		{-1, 1 * time.Second},
		{0, 1 * time.Second},
		{1, 2 * time.Second},
		{2, 4 * time.Second},
		{3, 8 * time.Second},
		{4, 16 * time.Second},
		{5, 30 * time.Second},  // capped at 30s
		{10, 30 * time.Second}, // capped at 30s
		{64, 30 * time.Second}, // no overflow
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("attempt_%d", tt.attempt), func(t *testing.T) {
			if got := exponentialBackoff(tt.attempt); got != tt.expected {
				t.Errorf("exponentialBackoff(%d) = %v, want %v", tt.attempt, got, tt.expected)
			}
		})
	}
}

func TestIsConnectionError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{"nil error", nil, false},
		{"connection refused", errors.New("dial tcp: connection refused"), true},
		{"EOF", errors.New("unexpected EOF"), true},
		{"broken pipe", errors.New("write: broken pipe"), true},
		{"closed network connection", errors.New("use of closed network connection"), true},
		{"other error", errors.New("some other error"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isConnectionError(tt.err); got != tt.expected {
				t.Errorf("isConnectionError(%v) = %v, want %v", tt.err, got, tt.expected)
			}
		})
	}
}

func TestClient_CircuitBreaker(t *testing.T) {
	client := &Client{exchangeName: "test_exchange"}

	t.Run("initial state is closed", func(t *testing.T) {
		if client.isCircuitOpen() {
			t.Error("circuit breaker should be closed initially")
		}
	})

	t.Run("multiple failures open circuit", func(t *testing.T) {
		for i := 0; i < maxFailures; i++ {
			client.recordFailure()
		}
		if !client.isCircuitOpen() {
			t.Error("circuit breaker should be open after max failures")
		}
	})

	t.Run("circuit transitions to half-open after timeout", func(t *testing.T) {
		client.lastFailure = time.Now().Add(-openTimeout - time.Second)
		if client.isCircuitOpen() {
			t.Error("circuit should be half-open after timeout")
		}
		if atomic.LoadInt32(&client.state) != StateHalfOpen {
			t.Error("state should be StateHalfOpen after timeout")
		}
	})

	t.Run("failure while half-open reopens", func(t *testing.T) {
		client.recordFailure()
		if atomic.LoadInt32(&client.state) != StateOpen {
			t.Error("state should be StateOpen after half-open failure")
		}
	})

	t.Run("success resets state", func(t *testing.T) {
		client.recordSuccess()
		if client.isCircuitOpen() || atomic.LoadInt64(&client.failureCount) != 0 {
			t.Error("circuit breaker should be closed and reset after success")
		}
	})
}

func TestClient_PublishUpdate_Guards(t *testing.T) {
	client := &Client{exchangeName: "test_exchange"}

	t.Run("publish fails when circuit is open", func(t *testing.T) {
		atomic.StoreInt32(&client.state, StateOpen)
		client.lastFailure = time.Now()

		err := client.PublishUpdate(context.Background(), "abc")
		if err == nil || !strings.Contains(err.Error(), "circuit breaker is open") {
			t.Errorf("expected circuit breaker error, got %v", err)
		}
	})

	t.Run("publish respects context cancellation", func(t *testing.T) {
		client.recordSuccess()
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		if err := client.PublishUpdate(ctx, "abc"); err != context.Canceled {
			t.Errorf("expected context.Canceled, got %v", err)
		}
	})
}

func TestUpdateMessage_JSON(t *testing.T) {
	msg := NewUpdateMessage("64f0c", "host-1")
	if msg.Event != core.EventInspectionUpdate || msg.Timestamp.IsZero() {
		t.Fatalf("unexpected message %+v", msg)
	}

	data, err := msg.ToJSON()
	if err != nil {
		t.Fatalf("ToJSON() error = %v", err)
	}
	if !strings.Contains(string(data), `"event":"inspection:update"`) {
		t.Fatalf("event name missing from %s", data)
	}

	parsed, err := UpdateMessageFromJSON(data)
	if err != nil {
		t.Fatalf("UpdateMessageFromJSON() error = %v", err)
	}
	if parsed.ID != msg.ID || parsed.Source != msg.Source || !parsed.Timestamp.Equal(msg.Timestamp) {
		t.Errorf("parsed = %+v, want %+v", parsed, msg)
	}
}

func TestUpdateMessage_Invalid(t *testing.T) {
	for _, body := range []string{`{"event":`, `{"event":"expense:sync"}`, `{}`} {
		if _, err := UpdateMessageFromJSON([]byte(body)); err == nil {
			t.Errorf("UpdateMessageFromJSON(%s) should fail", body)
		}
	}
}

type fakeAck struct {
	acked, nacked, requeued int
}

func (a *fakeAck) Ack(bool) error { a.acked++; return nil }

func (a *fakeAck) Nack(_, requeue bool) error {
	a.nacked++
	if requeue {
		a.requeued++
	}
	return nil
}

func TestDispatch(t *testing.T) {
	client := &Client{instanceID: "me"}
	body := func(source string) []byte {
		data, _ := NewUpdateMessage("1", source).ToJSON()
		return data
	}

	tests := []struct {
		name       string
		body       []byte
		handlerErr error
		wantCalls  int
		wantAck    int
		wantNack   int
	}{
		{"delivered", body("other"), nil, 1, 1, 0},
		{"own event skipped", body("me"), nil, 0, 1, 0},
		{"handler failure dropped", body("other"), errors.New("refresh failed"), 1, 0, 1},
		{"garbage dropped", []byte("nope"), nil, 0, 0, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			calls := 0
			ack := &fakeAck{}
			client.dispatch(context.Background(), tt.body, ack, func(context.Context, *UpdateMessage) error {
				calls++
				return tt.handlerErr
			})
			if calls != tt.wantCalls || ack.acked != tt.wantAck || ack.nacked != tt.wantNack {
				t.Errorf("calls=%d ack=%d nack=%d", calls, ack.acked, ack.nacked)
			}
			if ack.requeued != 0 {
				t.Errorf("events must not be requeued")
			}
		})
	}
}
