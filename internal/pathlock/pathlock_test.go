package pathlock_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/s3invsync/s3invsync/internal/pathlock"
)

func TestMutualExclusion(t *testing.T) {
	p := pathlock.New()
	ctx := context.Background()

	var active int32
	var maxActive int32
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			g, err := p.Lock(ctx, "/a/b")
			if err != nil {
				t.Errorf("Lock failed: %v", err)
				return
			}
			n := atomic.AddInt32(&active, 1)
			if n > atomic.LoadInt32(&maxActive) {
				atomic.StoreInt32(&maxActive, n)
			}
			time.Sleep(time.Millisecond)
			atomic.AddInt32(&active, -1)
			g.Unlock()
		}()
	}
	wg.Wait()
	if maxActive != 1 {
		t.Errorf("max concurrent holders = %d, want 1", maxActive)
	}
}

func TestDistinctPathsDontBlock(t *testing.T) {
	p := pathlock.New()
	ctx := context.Background()

	g1, err := p.Lock(ctx, "/a")
	if err != nil {
		t.Fatalf("Lock(/a) failed: %v", err)
	}
	defer g1.Unlock()

	done := make(chan struct{})
	go func() {
		g2, err := p.Lock(ctx, "/b")
		if err != nil {
			t.Errorf("Lock(/b) failed: %v", err)
			return
		}
		g2.Unlock()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Lock on a distinct path blocked unexpectedly")
	}
}

func TestLockRespectsContext(t *testing.T) {
	p := pathlock.New()
	g, err := p.Lock(context.Background(), "/a")
	if err != nil {
		t.Fatalf("Lock failed: %v", err)
	}
	defer g.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if _, err := p.Lock(ctx, "/a"); err == nil {
		t.Fatal("Lock should have failed once context expired")
	}
}
