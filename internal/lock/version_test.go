package lock

import (
	"context"
	"errors"
	"strconv"
	"testing"

	"github.com/redis/go-redis/v9"
)

type fakeCounter struct {
	values map[string]int64
	err    error
}

func (f *fakeCounter) Get(_ context.Context, key string) *redis.StringCmd {
	if f.err != nil {
		return redis.NewStringResult("", f.err)
	}
	n, ok := f.values[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(strconv.FormatInt(n, 10), nil)
}

func (f *fakeCounter) Incr(_ context.Context, key string) *redis.IntCmd {
	if f.err != nil {
		return redis.NewIntResult(0, f.err)
	}
	f.values[key]++
	return redis.NewIntResult(f.values[key], nil)
}

func TestRedisVersion(t *testing.T) {
	ctx := context.Background()
	rdb := &fakeCounter{values: map[string]int64{}}
	v := NewRedisVersion(rdb, "holidays")

	if n, err := v.Current(ctx); err != nil || n != 0 {
		t.Fatalf("Current() on missing key = %d, %v; want 0", n, err)
	}
	for want := int64(1); want <= 3; want++ {
		if n, err := v.Bump(ctx); err != nil || n != want {
			t.Fatalf("Bump() = %d, %v; want %d", n, err, want)
		}
	}
	if n, err := v.Current(ctx); err != nil || n != 3 {
		t.Fatalf("Current() = %d, %v; want 3", n, err)
	}
	if _, ok := rdb.values["cashbook:version:holidays"]; !ok {
		t.Fatalf("unexpected keys %v", rdb.values)
	}
}

func TestRedisVersion_Errors(t *testing.T) {
	ctx := context.Background()
	down := errors.New("connection refused")
	v := NewRedisVersion(&fakeCounter{values: map[string]int64{}, err: down}, "holidays")

	if _, err := v.Current(ctx); !errors.Is(err, down) {
		t.Fatalf("Current() error = %v", err)
	}
	if _, err := v.Bump(ctx); !errors.Is(err, down) {
		t.Fatalf("Bump() error = %v", err)
	}
}
