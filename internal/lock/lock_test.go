package lock

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"
	"time"
)

func TestKeyedMutex_SerialisesSameKey(t *testing.T) {
	m := NewKeyedMutex()
	ctx := context.Background()

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		active  int
		maxSeen int
	)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			release, err := m.Lock(ctx, CashKey("2024-03-04"))
			if err != nil {
				t.Errorf("lock: %v", err)
				return
			}
			mu.Lock()
			active++
			if active > maxSeen {
				maxSeen = active
			}
			mu.Unlock()

			time.Sleep(time.Millisecond)

			mu.Lock()
			active--
			mu.Unlock()
			release()
		}()
	}
	wg.Wait()

	if maxSeen != 1 {
		t.Fatalf("expected at most one holder, saw %d", maxSeen)
	}
	if m.Size() != 0 {
		t.Fatalf("expected idle keys to be dropped, %d remain", m.Size())
	}
}

func TestKeyedMutex_IndependentKeys(t *testing.T) {
	m := NewKeyedMutex()
	ctx := context.Background()

	releaseA, err := m.Lock(ctx, ExpenseKey("a"))
	if err != nil {
		t.Fatal(err)
	}
	defer releaseA()

	ctx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	releaseB, err := m.Lock(ctx, ExpenseKey("b"))
	if err != nil {
		t.Fatalf("different key should not block: %v", err)
	}
	releaseB()
}

func TestKeyedMutex_ContextCancel(t *testing.T) {
	m := NewKeyedMutex()
	release, err := m.Lock(context.Background(), "k")
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := m.Lock(ctx, "k"); !errors.Is(err, ErrNotObtained) || !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected ErrNotObtained with deadline, got %v", err)
	}

	release()
	release() // second call is a no-op
	if m.Size() != 0 {
		t.Fatalf("expected no tracked keys, got %d", m.Size())
	}
}

func TestRedisLocker(t *testing.T) {
	addr := os.Getenv("REDIS_ADDRESS")
	if addr == "" {
		t.Skip("REDIS_ADDRESS not set")
	}
	ctx := context.Background()
	l, rdb, err := NewRedisLocker(ctx, addr, 5*time.Second)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer rdb.Close()

	release, err := l.Lock(ctx, CashKey("2024-03-04"))
	if err != nil {
		t.Fatalf("lock: %v", err)
	}

	waitCtx, cancel := context.WithTimeout(ctx, 200*time.Millisecond)
	defer cancel()
	if _, err := l.Lock(waitCtx, CashKey("2024-03-04")); !errors.Is(err, ErrNotObtained) {
		t.Fatalf("expected ErrNotObtained while held, got %v", err)
	}

	release()
	again, err := l.Lock(ctx, CashKey("2024-03-04"))
	if err != nil {
		t.Fatalf("lock after release: %v", err)
	}
	again()
}
