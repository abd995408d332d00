package clock

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSeq_StartsAtZero(t *testing.T) {
	s := NewSeq()
	assert.Equal(t, int64(0), s.Current())
	assert.Equal(t, int64(1), s.Next())
	assert.Equal(t, int64(2), s.Next())
	assert.Equal(t, int64(2), s.Current())
}

func TestSeq_NewSeqAt(t *testing.T) {
	s := NewSeqAt(41)
	assert.Equal(t, int64(42), s.Next())
}

func TestSeq_ConcurrentNextIsUnique(t *testing.T) {
	s := NewSeq()
	const goroutines = 50
	const perGoroutine = 200

	var wg sync.WaitGroup
	out := make(chan int64, goroutines*perGoroutine)
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < perGoroutine; j++ {
				out <- s.Next()
			}
		}()
	}
	wg.Wait()
	close(out)

	seen := make(map[int64]bool, goroutines*perGoroutine)
	for v := range out {
		require.False(t, seen[v], "seq %d issued twice", v)
		seen[v] = true
	}
	assert.Len(t, seen, goroutines*perGoroutine)
	assert.Equal(t, int64(goroutines*perGoroutine), s.Current())
}

func TestSystem_AfterFuncStop(t *testing.T) {
	fired := make(chan struct{}, 1)
	timer := System{}.AfterFunc(time.Hour, func() { fired <- struct{}{} })
	assert.True(t, timer.Stop())

	select {
	case <-fired:
		t.Fatal("stopped timer fired")
	default:
	}
}
