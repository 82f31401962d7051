package keylock

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLockSerialisesSameKey(t *testing.T) {
	l := New[string]()

	const workers = 50
	var wg sync.WaitGroup
	counter := 0
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := l.Lock("room")
			defer unlock()
			v := counter
			time.Sleep(time.Microsecond)
			counter = v + 1
		}()
	}
	wg.Wait()

	assert.Equal(t, workers, counter)
	assert.Equal(t, 0, l.Len())
}

func TestDifferentKeysDoNotBlock(t *testing.T) {
	l := New[string]()
	unlockA := l.Lock("a")
	defer unlockA()

	done := make(chan struct{})
	go func() {
		unlockB := l.Lock("b")
		unlockB()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("lock on b blocked behind a")
	}
}

func TestUnlockIsIdempotent(t *testing.T) {
	l := New[int]()
	unlock := l.Lock(1)
	unlock()
	unlock()

	require.Equal(t, 0, l.Len())

	// Still usable afterwards
	unlock = l.Lock(1)
	assert.Equal(t, 1, l.Len())
	unlock()
}

func TestWaiterAcquiresAfterRelease(t *testing.T) {
	l := New[string]()
	unlock := l.Lock("k")

	acquired := make(chan struct{})
	go func() {
		u := l.Lock("k")
		close(acquired)
		u()
	}()

	select {
	case <-acquired:
		t.Fatal("acquired while held")
	case <-time.After(20 * time.Millisecond):
	}

	unlock()
	select {
	case <-acquired:
	case <-time.After(time.Second):
		t.Fatal("waiter never acquired")
	}
}

func TestTryLockFailsWhileHeld(t *testing.T) {
	l := New[string]()
	unlock := l.Lock("k")

	_, ok := l.TryLock("k")
	require.False(t, ok)

	other, ok := l.TryLock("other")
	require.True(t, ok)
	other()

	unlock()
	again, ok := l.TryLock("k")
	require.True(t, ok)
	assert.Equal(t, 1, l.Len())
	again()
	assert.Equal(t, 0, l.Len())
}

func TestTryLockBlocksLaterLock(t *testing.T) {
	l := New[string]()
	unlock, ok := l.TryLock("k")
	require.True(t, ok)

	acquired := make(chan struct{})
	go func() {
		u := l.Lock("k")
		close(acquired)
		u()
	}()

	select {
	case <-acquired:
		t.Fatal("acquired while held")
	case <-time.After(20 * time.Millisecond):
	}

	unlock()
	select {
	case <-acquired:
	case <-time.After(time.Second):
		t.Fatal("waiter never acquired")
	}
}
