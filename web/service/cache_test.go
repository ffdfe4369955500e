package service

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/atomic"
)

func TestSubscriptionCache_Invalidate(t *testing.T) {
	c, err := NewSubscriptionCache()
	require.NoError(t, err)

	c.Put(1, FormatLinks, &CachedConfig{GroupID: 10})
	c.Put(1, FormatJSON, &CachedConfig{GroupID: 10})
	c.Put(2, FormatLinks, &CachedConfig{GroupID: 20})
	c.Put(3, FormatClash, &CachedConfig{GroupID: 10})
	assert.Equal(t, 4, c.Len())

	c.InvalidateUser(1)
	_, ok := c.Get(1, FormatJSON)
	assert.False(t, ok)
	assert.Equal(t, 2, c.Len())

	c.InvalidateGroup(10)
	_, ok = c.Get(3, FormatClash)
	assert.False(t, ok)
	_, ok = c.Get(2, FormatLinks)
	assert.True(t, ok)

	c.Purge()
	assert.Equal(t, 0, c.Len())
}

func TestSubscriptionCache_DoCoalesces(t *testing.T) {
	c, err := NewSubscriptionCache()
	require.NoError(t, err)

	var calls atomic.Int64
	release := make(chan struct{})
	started := make(chan struct{}, 1)
	fn := func() (*ConfigDocument, error) {
		calls.Inc()
		select {
		case started <- struct{}{}:
		default:
		}
		<-release
		return &ConfigDocument{Body: []byte("x")}, nil
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, _ = c.Do(1, FormatLinks, 42, fn)
	}()
	<-started

	docs := make([]*ConfigDocument, 4)
	for i := range docs {
		wg.Add(1)
		go func() {
			defer wg.Done()
			docs[i], _ = c.Do(1, FormatLinks, 42, fn)
		}()
	}
	close(release)
	wg.Wait()

	for _, d := range docs {
		require.NotNil(t, d)
		assert.Equal(t, "x", string(d.Body))
	}
	assert.GreaterOrEqual(t, calls.Load(), int64(1))
	assert.LessOrEqual(t, calls.Load(), int64(5))
}

func TestSubscriptionCache_DoError(t *testing.T) {
	c, err := NewSubscriptionCache()
	require.NoError(t, err)

	boom := errors.New("boom")
	_, err = c.Do(1, FormatLinks, 1, func() (*ConfigDocument, error) { return nil, boom })
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 0, c.Len())
}
