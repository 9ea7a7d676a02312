// ABOUTME: Tests for the bounded seen-set used by the walk engine.
// ABOUTME: Validates marking, eviction order, unbounded mode, and concurrency safety.

package dedupe

import (
	"strconv"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSet_Check_NotSeen(t *testing.T) {
	s := New(100)

	assert.False(t, s.Check("never-seen-key"))
}

func TestSet_Mark(t *testing.T) {
	s := New(100)

	s.Mark("/a")
	s.Mark("/b")
	s.Mark("/a")

	assert.True(t, s.Check("/a"))
	assert.True(t, s.Check("/b"))
	assert.False(t, s.Check("/c"))
	assert.Equal(t, 2, s.Len())
}

func TestSet_CheckAndMark(t *testing.T) {
	s := New(100)

	assert.False(t, s.CheckAndMark("/data"), "first CheckAndMark should return false for new key")
	assert.True(t, s.Check("/data"), "key should be marked after CheckAndMark")
	assert.True(t, s.CheckAndMark("/data"), "second CheckAndMark should report a duplicate")
}

func TestSet_EvictionOrder(t *testing.T) {
	s := New(3)

	s.Mark("first")
	s.Mark("second")
	s.Mark("third")
	s.Mark("fourth")

	assert.False(t, s.Check("first"), "first should be evicted")
	assert.True(t, s.Check("second"))
	assert.True(t, s.Check("third"))
	assert.True(t, s.Check("fourth"))

	s.Mark("fifth")
	assert.False(t, s.Check("second"), "second should be evicted")
	assert.Equal(t, 3, s.Len())
}

func TestSet_Unbounded(t *testing.T) {
	s := New(0)

	for i := 0; i < 1000; i++ {
		s.Mark(strconv.Itoa(i))
	}

	assert.Equal(t, 1000, s.Len())
	assert.True(t, s.Check("0"))
}

func TestSet_CheckAndMark_Atomic(t *testing.T) {
	s := New(100)

	const numGoroutines = 100
	var winners atomic.Int32
	var wg sync.WaitGroup
	wg.Add(numGoroutines)

	for i := 0; i < numGoroutines; i++ {
		go func() {
			defer wg.Done()
			if !s.CheckAndMark("contested-key") {
				winners.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), winners.Load(), "exactly one goroutine should win the race for CheckAndMark")
}
