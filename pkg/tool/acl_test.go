package tool

import (
	"context"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fieldstack/orchestrator/pkg/model"
)

type countingChecker struct {
	calls   int32
	allowed bool
}

func (c *countingChecker) Allowed(context.Context, string, string, model.ToolName) (bool, error) {
	atomic.AddInt32(&c.calls, 1)
	return c.allowed, nil
}

func TestACLCacheHitsAfterFirstCheck(t *testing.T) {
	checker := &countingChecker{allowed: true}
	cache := newACLCache(checker)

	for i := 0; i < 5; i++ {
		allowed, err := cache.Allowed(context.Background(), "t1", "a1", model.ToolLLM)
		require.NoError(t, err)
		assert.True(t, allowed)
	}

	assert.EqualValues(t, 1, checker.calls)
}

func TestACLCacheInvalidateForcesRecheck(t *testing.T) {
	checker := &countingChecker{allowed: true}
	cache := newACLCache(checker)

	_, err := cache.Allowed(context.Background(), "t1", "a1", model.ToolLLM)
	require.NoError(t, err)
	cache.Invalidate("t1", "a1", model.ToolLLM)
	_, err = cache.Allowed(context.Background(), "t1", "a1", model.ToolLLM)
	require.NoError(t, err)

	assert.EqualValues(t, 2, checker.calls)
}

func TestACLCacheIsolatesByKey(t *testing.T) {
	checker := &countingChecker{allowed: true}
	cache := newACLCache(checker)

	_, _ = cache.Allowed(context.Background(), "t1", "a1", model.ToolLLM)
	_, _ = cache.Allowed(context.Background(), "t1", "a2", model.ToolLLM)
	_, _ = cache.Allowed(context.Background(), "t2", "a1", model.ToolLLM)
	_, _ = cache.Allowed(context.Background(), "t1", "a1", model.ToolGeocode)

	assert.EqualValues(t, 4, checker.calls)
}
