package resilience

import (
	"errors"
	"testing"
	"time"
)

var errTest = errors.New("journal unavailable")

func TestClosedStateAllowsCalls(t *testing.T) {
	b := NewBreaker(3, time.Second)

	called := false
	err := b.Execute(func() error {
		called = true
		return nil
	})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if !called {
		t.Fatal("expected function to be called")
	}
}

func TestOpensAfterMaxFailures(t *testing.T) {
	b := NewBreaker(3, time.Second)

	for i := 0; i < 3; i++ {
		if err := b.Execute(func() error { return errTest }); !errors.Is(err, errTest) {
			t.Fatalf("call %d: expected errTest, got %v", i, err)
		}
	}

	err := b.Execute(func() error { return nil })
	if !errors.Is(err, ErrCircuitOpen) {
		t.Fatalf("expected ErrCircuitOpen, got %v", err)
	}
}

func TestTransitionsToHalfOpenAfterTimeout(t *testing.T) {
	b := NewBreaker(1, time.Second)

	now := time.Now()
	b.now = func() time.Time { return now }

	if err := b.Execute(func() error { return errTest }); !errors.Is(err, errTest) {
		t.Fatalf("expected errTest, got %v", err)
	}
	if err := b.Execute(func() error { return nil }); !errors.Is(err, ErrCircuitOpen) {
		t.Fatalf("expected ErrCircuitOpen while open, got %v", err)
	}

	now = now.Add(2 * time.Second)

	if err := b.Execute(func() error { return nil }); err != nil {
		t.Fatalf("expected probe to succeed, got %v", err)
	}
	if b.state != stateClosed {
		t.Fatalf("expected closed after successful probe, got %v", b.state)
	}
}

func TestHalfOpenFailureReopens(t *testing.T) {
	b := NewBreaker(1, time.Second)

	now := time.Now()
	b.now = func() time.Time { return now }

	if err := b.Execute(func() error { return errTest }); !errors.Is(err, errTest) {
		t.Fatalf("expected errTest, got %v", err)
	}

	now = now.Add(2 * time.Second)

	if err := b.Execute(func() error { return errTest }); !errors.Is(err, errTest) {
		t.Fatalf("expected errTest from probe, got %v", err)
	}
	if b.state != stateOpen {
		t.Fatalf("expected re-opened circuit, got %v", b.state)
	}
	if err := b.Execute(func() error { return nil }); !errors.Is(err, ErrCircuitOpen) {
		t.Fatalf("expected ErrCircuitOpen, got %v", err)
	}
}

func TestSuccessResetsFailureCount(t *testing.T) {
	b := NewBreaker(3, time.Second)

	for i := 0; i < 2; i++ {
		if err := b.Execute(func() error { return errTest }); !errors.Is(err, errTest) {
			t.Fatalf("expected errTest, got %v", err)
		}
	}
	if err := b.Execute(func() error { return nil }); err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if b.failures != 0 {
		t.Fatalf("expected failure count reset, got %d", b.failures)
	}

	// Two more failures must not open the circuit after the reset.
	for i := 0; i < 2; i++ {
		if err := b.Execute(func() error { return errTest }); !errors.Is(err, errTest) {
			t.Fatalf("expected errTest, got %v", err)
		}
	}
	if b.state != stateClosed {
		t.Fatalf("expected closed state, got %v", b.state)
	}
}
