package refresh

import (
	"sync"
	"testing"
	"time"
)

func TestCounterBumpAndLoad(t *testing.T) {
	var c Counter
	if c.Load() != 0 {
		t.Fatalf("initial = %d, want 0", c.Load())
	}
	c.Bump()
	c.Bump()
	c.Bump()
	if c.Load() != 3 {
		t.Errorf("Load = %d, want 3", c.Load())
	}
}

func TestCounterWatchReceivesGenerations(t *testing.T) {
	var c Counter
	ch := c.Watch()

	c.Bump()
	c.Bump()

	for want := uint64(1); want <= 2; want++ {
		select {
		case got := <-ch:
			if got != want {
				t.Errorf("generation = %d, want %d", got, want)
			}
		case <-time.After(time.Second):
			t.Fatal("timed out waiting for generation")
		}
	}
}

func TestCounterBumpNeverBlocks(t *testing.T) {
	var c Counter
	c.Watch() // never drained

	done := make(chan struct{})
	go func() {
		// More bumps than the watcher buffer holds.
		for i := 0; i < 100; i++ {
			c.Bump()
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Bump blocked on a full watcher")
	}
	if c.Load() != 100 {
		t.Errorf("Load = %d, want 100", c.Load())
	}
}

func TestCounterConcurrentBumps(t *testing.T) {
	var c Counter
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				c.Bump()
			}
		}()
	}
	wg.Wait()
	if c.Load() != 400 {
		t.Errorf("Load = %d, want 400", c.Load())
	}
}

func TestSignalsAreIndependent(t *testing.T) {
	var s Signals
	s.Anchors.Bump()
	s.Links.Bump()
	s.Links.Bump()

	if s.Anchors.Load() != 1 || s.Links.Load() != 2 || s.Content.Load() != 0 {
		t.Errorf("anchors=%d links=%d content=%d",
			s.Anchors.Load(), s.Links.Load(), s.Content.Load())
	}
}
