package resilience

import (
	"context"
	"errors"
	"testing"
	"time"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time { return c.t }

func newTestBreaker(threshold int) (*CircuitBreaker, *fakeClock) {
	clock := &fakeClock{t: time.Date(2024, 3, 20, 10, 0, 0, 0, time.UTC)}
	cb := NewCircuitBreaker("nse", CircuitBreakerConfig{
		FailureThreshold: threshold,
		SuccessThreshold: 1,
		Cooldown:         30 * time.Second,
	})
	cb.SetClock(clock.Now)
	return cb, clock
}

var errUpstream = errors.New("upstream down")

func fail(context.Context) error { return errUpstream }
func ok(context.Context) error { return nil }

func TestCircuitBreaker_OpensAfterThreshold(t *testing.T) {
	cb, _ := newTestBreaker(2)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if err := cb.Execute(ctx, fail); !errors.Is(err, errUpstream) {
			t.Fatalf("call %d: err = %v", i, err)
		}
	}
	if cb.State() != CircuitOpen {
		t.Fatalf("state = %v, want OPEN", cb.State())
	}

	called := false
	err := cb.Execute(ctx, func(context.Context) error { called = true; return nil })
	if !errors.Is(err, ErrCircuitOpen) || called {
		t.Errorf("open circuit should reject without calling: err = %v called = %v", err, called)
	}
	if s := cb.Stats(); s.TotalRejected != 1 || s.TotalFailures != 2 {
		t.Errorf("stats = %+v", s)
	}
}

func TestCircuitBreaker_HalfOpenRecovery(t *testing.T) {
	cb, clock := newTestBreaker(1)
	ctx := context.Background()

	_ = cb.Execute(ctx, fail)
	clock.t = clock.t.Add(31 * time.Second)

	if err := cb.Execute(ctx, ok); err != nil {
		t.Fatalf("trial call err = %v", err)
	}
	if cb.State() != CircuitClosed {
		t.Errorf("state = %v, want CLOSED after successful trial", cb.State())
	}
}

func TestCircuitBreaker_HalfOpenFailureReopens(t *testing.T) {
	cb, clock := newTestBreaker(1)
	ctx := context.Background()

	_ = cb.Execute(ctx, fail)
	clock.t = clock.t.Add(31 * time.Second)
	_ = cb.Execute(ctx, fail)

	if cb.State() != CircuitOpen {
		t.Errorf("state = %v, want OPEN", cb.State())
	}
	if err := cb.Execute(ctx, ok); !errors.Is(err, ErrCircuitOpen) {
		t.Errorf("cooldown should restart: err = %v", err)
	}
}

func TestCircuitBreaker_IgnoresCancellation(t *testing.T) {
	cb, _ := newTestBreaker(1)

	err := cb.Execute(context.Background(), func(context.Context) error { return context.Canceled })
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v", err)
	}
	if cb.State() != CircuitClosed {
		t.Errorf("cancellation should not trip the circuit")
	}
}

func TestCircuitBreaker_IgnoresCallerDeadline(t *testing.T) {
	cb, _ := newTestBreaker(1)

	ctx, cancel := context.WithTimeout(context.Background(), time.Millisecond)
	defer cancel()
	err := cb.Execute(ctx, func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("err = %v", err)
	}
	if cb.State() != CircuitClosed {
		t.Errorf("caller deadline should not trip the circuit")
	}
}

func TestCircuitBreaker_UpstreamTimeoutTrips(t *testing.T) {
	cb, _ := newTestBreaker(1)

	// A deadline inside fn with the caller's context still live is an upstream failure.
	_ = cb.Execute(context.Background(), func(context.Context) error { return context.DeadlineExceeded })
	if cb.State() != CircuitOpen {
		t.Errorf("state = %v, want open", cb.State())
	}
}

func TestCircuitBreaker_SuccessResetsFailures(t *testing.T) {
	cb, _ := newTestBreaker(2)
	ctx := context.Background()

	_ = cb.Execute(ctx, fail)
	_ = cb.Execute(ctx, ok)
	_ = cb.Execute(ctx, fail)

	if cb.State() != CircuitClosed {
		t.Errorf("non-consecutive failures should not open the circuit")
	}
}

func TestExecuteWithResult(t *testing.T) {
	cb, _ := newTestBreaker(3)
	got, err := ExecuteWithResult(context.Background(), cb, func(context.Context) (int, error) { return 42, nil })
	if err != nil || got != 42 {
		t.Errorf("got %d, %v", got, err)
	}
}

func TestHealthMonitor_WorstStatusWins(t *testing.T) {
	m := NewHealthMonitor()
	cb, _ := newTestBreaker(1)
	_ = cb.Execute(context.Background(), fail)

	m.RegisterComponent("nse", CircuitHealthCheck(cb))
	m.RegisterComponent("journal", DatabaseHealthCheck(func(context.Context) error { return nil }))

	h := m.Check(context.Background())
	if h.Status != HealthStatusDegraded {
		t.Errorf("status = %v, want degraded", h.Status)
	}
	if len(h.Components) != 2 || h.Components[0].Name != "journal" {
		t.Errorf("components = %+v", h.Components)
	}

	m.RegisterComponent("journal", DatabaseHealthCheck(func(context.Context) error { return errors.New("locked") }))
	if h := m.Check(context.Background()); h.Status != HealthStatusUnhealthy {
		t.Errorf("status = %v, want unhealthy", h.Status)
	}
}
