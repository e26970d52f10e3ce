package geo

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCachingResolver(t *testing.T) {
	calls := 0
	next := ResolverFunc(func(_ context.Context, lat, _ float64) (string, error) {
		calls++
		if lat > 40 {
			return "NY", nil
		}
		return "", nil
	})
	c := NewCachingResolver(next, time.Minute)
	ctx := context.Background()

	code, err := c.RegionFor(ctx, 41.000001, -74)
	require.NoError(t, err)
	assert.Equal(t, "NY", code)

	// Rounds to the same key.
	code, err = c.RegionFor(ctx, 41.000002, -74)
	require.NoError(t, err)
	assert.Equal(t, "NY", code)
	assert.Equal(t, 1, calls)

	code, err = c.RegionFor(ctx, 10, -30)
	require.NoError(t, err)
	assert.Empty(t, code)
	_, _ = c.RegionFor(ctx, 10, -30)
	assert.Equal(t, 2, calls)
	assert.Equal(t, 2, c.Len())
}

func TestCachingResolver_ErrorsNotCached(t *testing.T) {
	calls := 0
	next := ResolverFunc(func(context.Context, float64, float64) (string, error) {
		calls++
		return "", errors.New("db down")
	})
	c := NewCachingResolver(next, 0)

	_, err := c.RegionFor(context.Background(), 1, 2)
	require.Error(t, err)
	_, err = c.RegionFor(context.Background(), 1, 2)
	require.Error(t, err)
	assert.Equal(t, 2, calls)
	assert.Equal(t, 0, c.Len())
}
