package resilience

import (
	"errors"
	"testing"
	"time"
)

func TestBreakerOpensAfterThreshold(t *testing.T) {
	b := NewBreaker("test", BreakerConfig{FailureThreshold: 3, ResetTimeout: time.Hour})
	boom := errors.New("boom")

	for i := 0; i < 3; i++ {
		if err := b.Execute(func() error { return boom }); !errors.Is(err, boom) {
			t.Fatalf("attempt %d: err = %v, want the call's own error", i, err)
		}
	}
	if b.CurrentState() != StateOpen {
		t.Fatalf("state = %v, want open after threshold failures", b.CurrentState())
	}

	err := b.Execute(func() error {
		t.Fatal("call executed while circuit open")
		return nil
	})
	if !errors.Is(err, ErrCircuitOpen) {
		t.Errorf("err = %v, want ErrCircuitOpen", err)
	}
}

func TestBreakerSuccessResetsFailureCount(t *testing.T) {
	b := NewBreaker("test", BreakerConfig{FailureThreshold: 2, ResetTimeout: time.Hour})
	boom := errors.New("boom")

	b.Execute(func() error { return boom })
	b.Execute(func() error { return nil })
	b.Execute(func() error { return boom })

	if b.CurrentState() != StateClosed {
		t.Errorf("state = %v, want closed: success resets the streak", b.CurrentState())
	}
}

func TestBreakerHalfOpenProbeRecovers(t *testing.T) {
	b := NewBreaker("test", BreakerConfig{FailureThreshold: 1, ResetTimeout: 10 * time.Millisecond})
	b.Execute(func() error { return errors.New("boom") })
	if b.CurrentState() != StateOpen {
		t.Fatalf("state = %v, want open", b.CurrentState())
	}

	time.Sleep(20 * time.Millisecond)
	if err := b.Execute(func() error { return nil }); err != nil {
		t.Fatalf("probe: %v", err)
	}
	if b.CurrentState() != StateClosed {
		t.Errorf("state = %v, want closed after a successful probe", b.CurrentState())
	}
}

func TestBreakerFailedProbeReopens(t *testing.T) {
	b := NewBreaker("test", BreakerConfig{FailureThreshold: 1, ResetTimeout: 10 * time.Millisecond})
	boom := errors.New("boom")
	b.Execute(func() error { return boom })

	time.Sleep(20 * time.Millisecond)
	if err := b.Execute(func() error { return boom }); !errors.Is(err, boom) {
		t.Fatalf("probe err = %v, want the call's own error", err)
	}
	if b.CurrentState() != StateOpen {
		t.Errorf("state = %v, want open again after a failed probe", b.CurrentState())
	}

	if err := b.Execute(func() error { return nil }); !errors.Is(err, ErrCircuitOpen) {
		t.Errorf("err = %v, want fail-fast while re-opened", err)
	}
}

func TestBreakerDefaults(t *testing.T) {
	b := NewBreaker("test", BreakerConfig{})
	if b.cfg.FailureThreshold != 5 {
		t.Errorf("threshold = %d, want default 5", b.cfg.FailureThreshold)
	}
	if b.cfg.ResetTimeout != 30*time.Second {
		t.Errorf("reset timeout = %v, want default 30s", b.cfg.ResetTimeout)
	}
}
