package cache

import (
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sevigo/graphwarden/internal/graph"
)

func TestGetOrLoad_LoadsOnceAndCaches(t *testing.T) {
	c := New()
	var loads int32

	entry, err := c.GetOrLoad(1, "main", func() (*Entry, error) {
		atomic.AddInt32(&loads, 1)
		return &Entry{Graph: graph.New()}, nil
	})
	require.NoError(t, err)
	require.NotNil(t, entry)

	again, err := c.GetOrLoad(1, "main", func() (*Entry, error) {
		atomic.AddInt32(&loads, 1)
		return &Entry{Graph: graph.New()}, nil
	})
	require.NoError(t, err)
	assert.Same(t, entry, again)
	assert.Equal(t, int32(1), atomic.LoadInt32(&loads))
}

func TestGetOrLoad_ConcurrentCallersCollapseToSingleLoad(t *testing.T) {
	c := New()
	var loads int32

	var wg sync.WaitGroup
	results := make([]*Entry, 20)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			entry, err := c.GetOrLoad(7, "feature", func() (*Entry, error) {
				atomic.AddInt32(&loads, 1)
				return &Entry{Graph: graph.New()}, nil
			})
			require.NoError(t, err)
			results[idx] = entry
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int32(1), atomic.LoadInt32(&loads))
	for _, r := range results {
		assert.Same(t, results[0], r)
	}
}

func TestGetOrLoad_PropagatesLoadError(t *testing.T) {
	c := New()
	_, err := c.GetOrLoad(2, "main", func() (*Entry, error) {
		return nil, assert.AnError
	})
	assert.Error(t, err)
	_, ok := c.Get(2, "main")
	assert.False(t, ok, "a failed load must not populate the cache")
}

func TestEvict(t *testing.T) {
	c := New()
	_, err := c.GetOrLoad(3, "main", func() (*Entry, error) {
		return &Entry{Graph: graph.New()}, nil
	})
	require.NoError(t, err)
	require.Equal(t, 1, c.Len())

	c.Evict(3, "main")
	_, ok := c.Get(3, "main")
	assert.False(t, ok)
	assert.Equal(t, 0, c.Len())
}

func TestEntry_LockingDoesNotDeadlock(t *testing.T) {
	e := &Entry{Graph: graph.New()}
	e.RLock()
	e.RUnlock()
	e.Lock()
	e.Unlock()
}
