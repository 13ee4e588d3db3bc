package cache

import (
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFetchPopulatesAndReuses(t *testing.T) {
	store := NewStore()
	calls := 0

	fetch := func() (interface{}, error) {
		calls++
		return "value", nil
	}

	value, err := store.Fetch(NewKey("contacts", "list", "u1"), fetch)
	assert.Nil(t, err)
	assert.Equal(t, "value", value)

	value, err = store.Fetch(NewKey("contacts", "list", "u1"), fetch)
	assert.Nil(t, err)
	assert.Equal(t, "value", value)
	assert.Equal(t, 1, calls, "second fetch should be served from cache")
}

func TestFetchDoesNotCacheErrors(t *testing.T) {
	store := NewStore()
	calls := 0

	_, err := store.Fetch(NewKey("nudges", "list"), func() (interface{}, error) {
		calls++
		return nil, fmt.Errorf("boom")
	})
	assert.EqualError(t, err, "boom")

	value, err := store.Fetch(NewKey("nudges", "list"), func() (interface{}, error) {
		calls++
		return 42, nil
	})
	assert.Nil(t, err)
	assert.Equal(t, 42, value)
	assert.Equal(t, 2, calls)
}

func TestConcurrentFetchesShareOneFlight(t *testing.T) {
	store := NewStore()
	var calls int32
	gate := make(chan struct{})

	fetch := func() (interface{}, error) {
		atomic.AddInt32(&calls, 1)
		<-gate
		return "shared", nil
	}

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			value, err := store.Fetch(NewKey("targets", "detail", "t1"), fetch)
			assert.Nil(t, err)
			assert.Equal(t, "shared", value)
		}()
	}

	close(gate)
	wg.Wait()

	assert.LessOrEqual(t, atomic.LoadInt32(&calls), int32(2),
		"concurrent cold reads should collapse into a shared flight")
}

func TestInvalidateByPrefix(t *testing.T) {
	store := NewStore()
	store.Set(NewKey("contacts", "list", "u1"), 1)
	store.Set(NewKey("contacts", "list", "u2"), 2)
	store.Set(NewKey("contacts", "detail", "c1"), 3)
	store.Set(NewKey("nudges", "list"), 4)

	store.Invalidate(NewKey("contacts", "list"))
	assert.Equal(t, 2, store.Len())

	store.Invalidate(NewKey("contacts"))
	assert.Equal(t, 1, store.Len(), "only the nudges entry should survive")
}

func TestInvalidatePrefixDoesNotMatchPartialSegments(t *testing.T) {
	store := NewStore()
	store.Set(NewKey("nudge", "list"), 1)
	store.Set(NewKey("nudge-targets", "list"), 2)

	store.Invalidate(NewKey("nudge"))
	assert.Equal(t, 1, store.Len(), "prefix match must respect key segment boundaries")
}

func TestSetAndRemove(t *testing.T) {
	store := NewStore()
	key := NewKey("profiles", "detail", "u1")

	store.Set(key, "profile")
	value, err := store.Fetch(key, func() (interface{}, error) { return nil, fmt.Errorf("should not run") })
	assert.Nil(t, err)
	assert.Equal(t, "profile", value)

	store.Remove(key)
	assert.Equal(t, 0, store.Len())
}
