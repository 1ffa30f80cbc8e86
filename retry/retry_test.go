package retry

import (
	"context"
	"errors"
	"testing"
	"time"
)

func fastPolicy() Policy {
	return Policy{
		MaxAttempts:    3,
		BaseDelay:      time.Millisecond,
		MaxDelay:       5 * time.Millisecond,
		Multiplier:     2.0,
		JitterFraction: 0.1,
	}
}

func TestDo_SucceedsAfterTransientFailures(t *testing.T) {
	calls := 0
	result, err := Do(context.Background(), fastPolicy(), func(ctx context.Context) (string, error) {
		calls++
		if calls < 3 {
			return "", Transient(errors.New("overloaded"))
		}
		return "ok", nil
	})
	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if result != "ok" {
		t.Errorf("result = %q", result)
	}
	if calls != 3 {
		t.Errorf("expected exactly 3 attempts, got %d", calls)
	}
}

func TestDo_ExhaustsCeiling(t *testing.T) {
	calls := 0
	_, err := Do(context.Background(), fastPolicy(), func(ctx context.Context) (int, error) {
		calls++
		return 0, Transient(errors.New("still overloaded"))
	})
	if calls != 3 {
		t.Errorf("expected exactly 3 attempts, got %d", calls)
	}
	var exhausted *ExhaustedError
	if !errors.As(err, &exhausted) {
		t.Fatalf("expected ExhaustedError, got %v", err)
	}
	if exhausted.Attempts != 3 {
		t.Errorf("exhausted.Attempts = %d", exhausted.Attempts)
	}
}

func TestDo_NonTransientPropagatesImmediately(t *testing.T) {
	calls := 0
	fatal := errors.New("unknown tool")
	_, err := Do(context.Background(), fastPolicy(), func(ctx context.Context) (int, error) {
		calls++
		return 0, fatal
	})
	if calls != 1 {
		t.Errorf("non-transient error must not be retried, got %d attempts", calls)
	}
	if !errors.Is(err, fatal) {
		t.Errorf("expected original error, got %v", err)
	}
}

func TestDo_ContextCancelledDuringBackoff(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	policy := fastPolicy()
	policy.BaseDelay = time.Second
	policy.MaxDelay = 0 // keep the backoff longer than the cancel window
	calls := 0
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()
	_, err := Do(ctx, policy, func(ctx context.Context) (int, error) {
		calls++
		return 0, Transient(errors.New("busy"))
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if calls != 1 {
		t.Errorf("expected 1 attempt before cancellation, got %d", calls)
	}
}

func TestIsTransient(t *testing.T) {
	if IsTransient(nil) {
		t.Error("nil must not be transient")
	}
	if !IsTransient(Transient(errors.New("x"))) {
		t.Error("wrapped transient not detected")
	}
	if !IsTransient(context.DeadlineExceeded) {
		t.Error("deadline expiry must be transient")
	}
	if IsTransient(errors.New("bad arguments")) {
		t.Error("plain error must not be transient")
	}
	// Transience survives wrapping.
	wrapped := errors.Join(errors.New("call failed"), Transient(errors.New("503")))
	if !IsTransient(wrapped) {
		t.Error("transience lost through wrapping")
	}
}

func TestDelayDoubles(t *testing.T) {
	p := Policy{MaxAttempts: 3, BaseDelay: 10 * time.Millisecond, Multiplier: 2.0}
	d0 := p.Delay(0)
	d1 := p.Delay(1)
	if d0 != 10*time.Millisecond || d1 != 20*time.Millisecond {
		t.Errorf("delays = %v, %v", d0, d1)
	}
	// Jitter stays within 10% of the current delay.
	p.JitterFraction = 0.1
	for i := 0; i < 50; i++ {
		d := p.Delay(1)
		if d < 20*time.Millisecond || d > 22*time.Millisecond {
			t.Fatalf("jittered delay out of bounds: %v", d)
		}
	}
}
