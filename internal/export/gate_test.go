package export

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestGateReadyAfterExactlyNSignals(t *testing.T) {
	for n := 1; n <= 5; n++ {
		var g Gate
		tk := g.Begin(n)
		for i := 0; i < n; i++ {
			if g.State() != Pending {
				t.Fatalf("n=%d: Expected pending after %d signals, got %s", n, i, g.State())
			}
			if !g.Signal(tk) {
				t.Fatalf("n=%d: signal %d was not counted", n, i)
			}
		}
		if g.State() != Ready {
			t.Errorf("n=%d: Expected ready, got %s", n, g.State())
		}
		if g.Signal(tk) {
			t.Errorf("n=%d: extra signal counted", n)
		}
		if p := g.Progress(); p.Loaded != n || p.Total != n {
			t.Errorf("n=%d: progress %+v", n, p)
		}
	}
}

func TestGateEmptySessionNeverReady(t *testing.T) {
	var g Gate
	tk := g.Begin(0)
	if g.Signal(tk) {
		t.Error("signal counted for an empty session")
	}
	if g.State() != Pending {
		t.Errorf("Expected pending, got %s", g.State())
	}
}

func TestGateIgnoresStaleTickets(t *testing.T) {
	var g Gate
	old := g.Begin(2)
	g.Signal(old)
	g.Reset()
	if g.State() != Idle || g.Progress().Loaded != 0 {
		t.Fatalf("Expected idle with no progress, got %+v", g.Progress())
	}
	if g.Signal(old) {
		t.Error("signal counted while idle")
	}

	cur := g.Begin(2)
	if g.Signal(old) || g.Signal(old) {
		t.Error("stale signal counted toward the new session")
	}
	if p := g.Progress(); p.State != Pending || p.Loaded != 0 {
		t.Fatalf("stale signals leaked: %+v", p)
	}
	g.Signal(cur)
	g.Signal(cur)
	if g.State() != Ready {
		t.Errorf("Expected ready, got %s", g.State())
	}
}

func TestGateBeginReplacesSession(t *testing.T) {
	var g Gate
	first := g.Begin(1)
	second := g.Begin(1)
	if g.Signal(first) {
		t.Error("first session's signal counted")
	}
	if !g.Signal(second) || g.State() != Ready {
		t.Errorf("Expected second session ready, got %s", g.State())
	}
}

func TestGateWait(t *testing.T) {
	ctx := context.Background()
	var g Gate
	if err := g.Wait(ctx); !errors.Is(err, ErrNoSession) {
		t.Errorf("Expected ErrNoSession, got %v", err)
	}

	tk := g.Begin(1)
	errc := make(chan error, 1)
	go func() { errc <- g.Wait(ctx) }()
	g.Signal(tk)
	if err := <-errc; err != nil {
		t.Errorf("Expected nil, got %v", err)
	}

	g.Begin(1)
	go func() { errc <- g.Wait(ctx) }()
	time.Sleep(10 * time.Millisecond)
	g.Reset()
	if err := <-errc; !errors.Is(err, ErrReset) {
		t.Errorf("Expected ErrReset, got %v", err)
	}

	g.Begin(1)
	cctx, cancel := context.WithTimeout(ctx, 10*time.Millisecond)
	defer cancel()
	if err := g.Wait(cctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Expected deadline exceeded, got %v", err)
	}
}

func TestStateMarshalText(t *testing.T) {
	for s, want := range map[State]string{Idle: "idle", Pending: "pending", Ready: "ready"} {
		b, _ := s.MarshalText()
		if string(b) != want {
			t.Errorf("Expected %s, got %s", want, b)
		}
	}
}
