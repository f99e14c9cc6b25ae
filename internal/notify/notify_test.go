package notify

import (
	"context"
	"testing"
	"time"
)

func TestFireThenWait(t *testing.T) {
	n := New()
	n.Fire()
	if err := n.Wait(context.Background()); err != nil {
		t.Fatalf("Wait after Fire = %v, want nil", err)
	}
}

func TestWaitRespectsContext(t *testing.T) {
	n := New()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if err := n.Wait(ctx); err == nil {
		t.Fatalf("Wait on unfired notifier with expired context = nil, want an error")
	}
}

func TestFireIsIdempotent(t *testing.T) {
	n := New()
	n.Fire()
	n.Fire()
	if err := n.Wait(context.Background()); err != nil {
		t.Fatalf("Wait after double Fire = %v, want nil", err)
	}
}
