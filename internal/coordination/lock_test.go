package coordination

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEngineLock_ReadersOverlap(t *testing.T) {
	lock := NewEngineLock()

	var active int64
	var peak int64
	var wg sync.WaitGroup

	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			lock.AcquireRead()
			defer lock.ReleaseRead()

			n := atomic.AddInt64(&active, 1)
			for {
				p := atomic.LoadInt64(&peak)
				if n <= p || atomic.CompareAndSwapInt64(&peak, p, n) {
					break
				}
			}
			time.Sleep(20 * time.Millisecond)
			atomic.AddInt64(&active, -1)
		}()
	}

	wg.Wait()
	assert.Greater(t, atomic.LoadInt64(&peak), int64(1), "readers should run concurrently")
}

func TestEngineLock_WriterExcludesReaders(t *testing.T) {
	lock := NewEngineLock()

	var inCritical int64
	var violations int64
	var wg sync.WaitGroup

	writer := func() {
		defer wg.Done()
		for i := 0; i < 50; i++ {
			lock.AcquireWrite()
			if atomic.AddInt64(&inCritical, 1) != 1 {
				atomic.AddInt64(&violations, 1)
			}
			atomic.AddInt64(&inCritical, -1)
			lock.ReleaseWrite()
		}
	}

	reader := func() {
		defer wg.Done()
		for i := 0; i < 50; i++ {
			lock.AcquireRead()
			if atomic.LoadInt64(&inCritical) != 0 {
				atomic.AddInt64(&violations, 1)
			}
			lock.ReleaseRead()
		}
	}

	wg.Add(4)
	go writer()
	go writer()
	go reader()
	go reader()
	wg.Wait()

	assert.Zero(t, atomic.LoadInt64(&violations), "no reader may observe an active writer")
}

func TestEngineLock_TryAcquireRead(t *testing.T) {
	lock := NewEngineLock()

	// Uncontended: try-read succeeds immediately.
	require.True(t, lock.TryAcquireRead())
	lock.ReleaseRead()

	// Writer held: try-read must fail without blocking.
	lock.AcquireWrite()
	assert.False(t, lock.TryAcquireRead())

	// The blocking path parks until the writer releases.
	acquired := make(chan struct{})
	go func() {
		lock.AcquireRead()
		close(acquired)
		lock.ReleaseRead()
	}()

	select {
	case <-acquired:
		t.Fatal("read acquired while writer held the lock")
	case <-time.After(50 * time.Millisecond):
	}

	lock.ReleaseWrite()

	select {
	case <-acquired:
	case <-time.After(time.Second):
		t.Fatal("read never acquired after writer released")
	}
}

func TestEngineLock_WriterWaitsForReaders(t *testing.T) {
	lock := NewEngineLock()

	lock.AcquireRead()

	done := make(chan struct{})
	go func() {
		lock.AcquireWrite()
		lock.ReleaseWrite()
		close(done)
	}()

	select {
	case <-done:
		t.Fatal("write acquired while a reader held the lock")
	case <-time.After(50 * time.Millisecond):
	}

	lock.ReleaseRead()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("write never acquired after readers drained")
	}
}
