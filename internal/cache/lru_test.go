package cache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestLRU_EvictsLeastRecentlyUsed(t *testing.T) {
	c := NewLRU[int](2, time.Minute)
	c.Set("2024", 1)
	c.Set("2025", 2)
	c.Get("2024")
	c.Set("2026", 3)

	if _, ok := c.Get("2025"); ok {
		t.Error("2025 should have been evicted")
	}
	if v, ok := c.Get("2024"); !ok || v != 1 {
		t.Errorf("Get(2024) = %d, %v", v, ok)
	}
	if c.Len() != 2 {
		t.Errorf("Len() = %d, want 2", c.Len())
	}
}

func TestLRU_Expiry(t *testing.T) {
	now := time.Date(2024, 3, 4, 9, 0, 0, 0, time.UTC)
	c := NewLRU[string](10, time.Minute)
	c.now = func() time.Time { return now }

	c.Set("a", "x")
	c.Set("b", "y")
	now = now.Add(2 * time.Minute)

	if _, ok := c.Get("a"); ok {
		t.Error("expired entry returned")
	}
	if n := c.CleanExpired(); n != 1 {
		t.Errorf("CleanExpired() = %d, want 1", n)
	}
	if c.Len() != 0 {
		t.Errorf("Len() = %d, want 0", c.Len())
	}
}

func TestLRU_GetOrLoad(t *testing.T) {
	c := NewLRU[int](4, time.Minute)
	var calls atomic.Int32
	release := make(chan struct{})
	load := func(context.Context) (int, error) {
		calls.Add(1)
		<-release
		return 42, nil
	}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			v, err := c.GetOrLoad(context.Background(), "k", load)
			if err != nil || v != 42 {
				t.Errorf("GetOrLoad() = %d, %v", v, err)
			}
		}()
	}
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	if calls.Load() != 1 {
		t.Errorf("load called %d times, want 1", calls.Load())
	}
	if v, ok := c.Get("k"); !ok || v != 42 {
		t.Errorf("value not cached: %d %v", v, ok)
	}
}

func TestLRU_GetOrLoadError(t *testing.T) {
	c := NewLRU[int](4, time.Minute)
	boom := errors.New("db down")
	if _, err := c.GetOrLoad(context.Background(), "k", func(context.Context) (int, error) { return 0, boom }); !errors.Is(err, boom) {
		t.Fatalf("expected load error, got %v", err)
	}
	if c.Len() != 0 {
		t.Error("failed load must not be cached")
	}
}

func TestLRU_PurgeDuringLoad(t *testing.T) {
	c := NewLRU[int](4, time.Minute)
	started := make(chan struct{})
	release := make(chan struct{})

	done := make(chan struct{})
	go func() {
		defer close(done)
		c.GetOrLoad(context.Background(), "k", func(context.Context) (int, error) {
			close(started)
			<-release
			return 1, nil
		})
	}()

	<-started
	c.Purge()
	close(release)
	<-done

	if _, ok := c.Get("k"); ok {
		t.Error("load started before Purge must not be cached")
	}
}

func TestLRU_CallerAfterPurgeStartsFreshLoad(t *testing.T) {
	c := NewLRU[int](4, time.Minute)
	started := make(chan struct{})
	release := make(chan struct{})

	done := make(chan int)
	go func() {
		v, _ := c.GetOrLoad(context.Background(), "k", func(context.Context) (int, error) {
			close(started)
			<-release
			return 1, nil
		})
		done <- v
	}()

	<-started
	c.Purge()

	fresh := make(chan int)
	go func() {
		v, _ := c.GetOrLoad(context.Background(), "k", func(context.Context) (int, error) { return 2, nil })
		fresh <- v
	}()

	select {
	case v := <-fresh:
		if v != 2 {
			t.Errorf("GetOrLoad after Purge = %d, want the fresh value 2", v)
		}
	case <-time.After(2 * time.Second):
		t.Error("GetOrLoad after Purge joined the stale load")
	}

	close(release)
	if v := <-done; v != 1 {
		t.Errorf("stale caller got %d, want 1", v)
	}
	if v, ok := c.Get("k"); !ok || v != 2 {
		t.Errorf("cached value = %d, %v; want 2", v, ok)
	}
}

func TestJanitor(t *testing.T) {
	c := NewLRU[int](4, time.Millisecond)
	c.Set("a", 1)
	j := NewJanitor(c)
	j.Start(5 * time.Millisecond)
	defer j.Stop()

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if c.Len() == 0 {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("janitor did not sweep expired entry")
}
