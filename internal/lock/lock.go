// Package lock serialises writes that touch the same ledger key, such as
// one cash date or one expense.
package lock

import (
	"context"
	"errors"
	"sync"
)

// ErrNotObtained is returned when a lock could not be acquired in time.
var ErrNotObtained = errors.New("lock not obtained")

// Locker hands out exclusive access per key. The returned release func must
// be called exactly once.
type Locker interface {
	Lock(ctx context.Context, key string) (release func(), err error)
}

func CashKey(date string) string    { return "cash:" + date }
func ExpenseKey(id string) string   { return "expense:" + id }
func HolidayKey(date string) string { return "holiday:" + date }

// KeyedMutex is an in-process Locker. Entries are dropped once no goroutine
// holds or waits for them.
type KeyedMutex struct {
	mapMu sync.Mutex
	locks map[string]*keyLock
}

type keyLock struct {
	sem  chan struct{}
	refs int
}

func NewKeyedMutex() *KeyedMutex {
	return &KeyedMutex{locks: make(map[string]*keyLock)}
}

func (m *KeyedMutex) acquire(key string) *keyLock {
	m.mapMu.Lock()
	defer m.mapMu.Unlock()
	l, ok := m.locks[key]
	if !ok {
		l = &keyLock{sem: make(chan struct{}, 1)}
		m.locks[key] = l
	}
	l.refs++
	return l
}

func (m *KeyedMutex) drop(key string, l *keyLock) {
	m.mapMu.Lock()
	defer m.mapMu.Unlock()
	l.refs--
	if l.refs == 0 {
		delete(m.locks, key)
	}
}

func (m *KeyedMutex) Lock(ctx context.Context, key string) (func(), error) {
	l := m.acquire(key)
	select {
	case l.sem <- struct{}{}:
	case <-ctx.Done():
		m.drop(key, l)
		return nil, errors.Join(ErrNotObtained, ctx.Err())
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-l.sem
			m.drop(key, l)
		})
	}, nil
}

// Size reports how many keys are currently tracked.
func (m *KeyedMutex) Size() int {
	m.mapMu.Lock()
	defer m.mapMu.Unlock()
	return len(m.locks)
}
