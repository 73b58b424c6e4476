package server

import (
	"context"
	"errors"
	"testing"
	"time"
)

// awaitInput drives the broker the way sessionIO does: mark the request
// outstanding, then park until a value or teardown.
func awaitInput(ctx context.Context, r *Run) (string, error) {
	if err := r.BeginInput(); err != nil {
		return "", err
	}
	return r.WaitInput(ctx)
}

func currentRun(g *Registry, id string) (*Run, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	run, ok := g.runs[id]
	return run, ok
}

func TestRegistry_DeliverWithoutRequest(t *testing.T) {
	g := NewRegistry()
	g.Create("s1", nil)

	if g.Deliver("s1", "ignored") {
		t.Error("expected delivery with no outstanding request to be dropped")
	}
	if g.Deliver("unknown", "ignored") {
		t.Error("expected delivery for unknown session to be dropped")
	}
}

func TestRegistry_AwaitAndDeliver(t *testing.T) {
	g := NewRegistry()
	run := g.Create("s1", nil)

	got := make(chan string, 1)
	errCh := make(chan error, 1)
	go func() {
		v, err := awaitInput(context.Background(), run)
		errCh <- err
		got <- v
	}()

	// Deliver is rejected until the run is actually waiting.
	deadline := time.After(2 * time.Second)
	for !g.Deliver("s1", "42") {
		select {
		case <-deadline:
			t.Fatal("delivery never accepted")
		case <-time.After(time.Millisecond):
		}
	}

	if err := <-errCh; err != nil {
		t.Fatalf("awaitInput: %v", err)
	}
	if v := <-got; v != "42" {
		t.Errorf("got %q, want %q", v, "42")
	}
}

func TestRegistry_SecondDeliveryDropped(t *testing.T) {
	g := NewRegistry()
	run := g.Create("s1", nil)

	done := make(chan string, 1)
	go func() {
		v, _ := awaitInput(context.Background(), run)
		done <- v
	}()

	deadline := time.After(2 * time.Second)
	for !g.Deliver("s1", "first") {
		select {
		case <-deadline:
			t.Fatal("delivery never accepted")
		case <-time.After(time.Millisecond):
		}
	}
	if g.Deliver("s1", "second") {
		t.Error("expected second delivery to be dropped")
	}

	if v := <-done; v != "first" {
		t.Errorf("got %q, want %q", v, "first")
	}
}

func TestRegistry_RemoveUnblocksWait(t *testing.T) {
	g := NewRegistry()
	run := g.Create("s1", nil)

	errCh := make(chan error, 1)
	go func() {
		_, err := awaitInput(context.Background(), run)
		errCh <- err
	}()

	// Give the goroutine a moment to park, then tear the session down.
	time.Sleep(10 * time.Millisecond)
	g.Remove("s1")

	select {
	case err := <-errCh:
		if !errors.Is(err, ErrSessionClosed) {
			t.Errorf("got %v, want ErrSessionClosed", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("awaitInput still blocked after Remove")
	}

	if _, ok := currentRun(g, "s1"); ok {
		t.Error("expected session to be removed")
	}
}

func TestRegistry_CreateReplacesPrior(t *testing.T) {
	g := NewRegistry()

	cancelled := false
	run1 := g.Create("s1", func() { cancelled = true })
	run2 := g.Create("s1", nil)

	if !cancelled {
		t.Error("expected prior run to be cancelled on replacement")
	}
	if cur, ok := currentRun(g, "s1"); !ok || cur != run2 {
		t.Error("expected the new run to be registered")
	}

	// The replaced run's input wait fails immediately.
	if _, err := awaitInput(context.Background(), run1); !errors.Is(err, ErrSessionClosed) {
		t.Errorf("got %v, want ErrSessionClosed", err)
	}
}

func TestRegistry_ReleaseKeepsReplacement(t *testing.T) {
	g := NewRegistry()
	run1 := g.Create("s1", nil)
	run2 := g.Create("s1", nil)

	// run1 finishing late must not unregister run2.
	g.Release(run1)

	if cur, ok := currentRun(g, "s1"); !ok || cur != run2 {
		t.Error("expected replacement run to survive release of the old run")
	}

	g.Release(run2)
	if _, ok := currentRun(g, "s1"); ok {
		t.Error("expected session to be removed")
	}
}

func TestRegistry_CloseAll(t *testing.T) {
	g := NewRegistry()
	run := g.Create("s1", nil)
	g.Create("s2", nil)

	g.CloseAll()

	if _, ok := currentRun(g, "s1"); ok {
		t.Error("expected all sessions to be cleared")
	}
	if _, err := awaitInput(context.Background(), run); !errors.Is(err, ErrSessionClosed) {
		t.Errorf("got %v, want ErrSessionClosed", err)
	}
}
