package download

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestOnlineGateStartsOpen(t *testing.T) {
	gate := NewOnlineGate()
	if !gate.Online() {
		t.Fatal("new gate must be online")
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := gate.Wait(ctx); err != nil {
		t.Fatalf("Wait on online gate: %v", err)
	}
}

func TestOnlineGateSuspendsAndReleases(t *testing.T) {
	gate := NewOnlineGate()
	gate.SetOffline()
	if gate.Online() {
		t.Fatal("gate must report offline")
	}

	released := make(chan error, 1)
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		released <- gate.Wait(ctx)
	}()

	select {
	case err := <-released:
		t.Fatalf("Wait returned while offline: %v", err)
	case <-time.After(50 * time.Millisecond):
	}

	gate.SetOnline()
	select {
	case err := <-released:
		if err != nil {
			t.Fatalf("Wait after SetOnline: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Wait did not release after SetOnline")
	}
}

func TestOnlineGateWaitHonorsContext(t *testing.T) {
	gate := NewOnlineGate()
	gate.SetOffline()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := gate.Wait(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected DeadlineExceeded, got %v", err)
	}
}

func TestOnlineGateIdempotentTransitions(t *testing.T) {
	gate := NewOnlineGate()
	gate.SetOnline()
	gate.SetOffline()
	gate.SetOffline()
	gate.SetOnline()
	gate.SetOnline()
	if !gate.Online() {
		t.Fatal("gate should settle online")
	}
}
