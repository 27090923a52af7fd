package capacity

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryCounterIncrementIsIdempotent(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCounter()

	require.NoError(t, c.Increment(ctx, "op-1", "conv-1"))
	require.NoError(t, c.Increment(ctx, "op-1", "conv-1"))
	require.NoError(t, c.Increment(ctx, "op-1", "conv-1"))

	count, err := c.ActiveCount(ctx, "op-1")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestMemoryCounterDecrementUnknownMember(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCounter()

	require.NoError(t, c.Increment(ctx, "op-1", "conv-1"))
	require.NoError(t, c.Decrement(ctx, "op-1", "conv-2"))

	count, err := c.ActiveCount(ctx, "op-1")
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	require.NoError(t, c.Decrement(ctx, "op-1", "conv-1"))
	count, err = c.ActiveCount(ctx, "op-1")
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}

func TestMemoryCounterListActive(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCounter()

	require.NoError(t, c.Increment(ctx, "op-1", "a"))
	require.NoError(t, c.Increment(ctx, "op-1", "b"))
	require.NoError(t, c.Increment(ctx, "op-2", "c"))

	active, err := c.ListActive(ctx, "op-1")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"a", "b"}, active)
}

func TestMemoryCounterConcurrentAccess(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCounter()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			conv := fmt.Sprintf("conv-%d", n%10)
			_ = c.Increment(ctx, "op-1", conv)
			_, _ = c.ActiveCount(ctx, "op-1")
		}(i)
	}
	wg.Wait()

	count, err := c.ActiveCount(ctx, "op-1")
	require.NoError(t, err)
	assert.Equal(t, 10, count)
}
