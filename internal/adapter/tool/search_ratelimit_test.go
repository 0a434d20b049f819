package tool

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"finnguide/internal/domain"
)

func TestNewRateLimitedBackendDisabled(t *testing.T) {
	inner := &fakeBackend{}
	assert.Same(t, inner, NewRateLimitedBackend(inner, 0, 1).(*fakeBackend))
}

func TestRateLimitedBackendDelegates(t *testing.T) {
	inner := &fakeBackend{results: []SearchResult{{Snippet: "ok"}}}
	b := NewRateLimitedBackend(inner, 60, 2)

	assert.Equal(t, "fake", b.Name())
	results, err := b.Search(context.Background(), "q", 3)
	require.NoError(t, err)
	assert.Len(t, results, 1)
	assert.Equal(t, []int{3}, inner.counts)
}

func TestRateLimitedBackendWaitPastDeadlineIsTimeout(t *testing.T) {
	inner := &fakeBackend{}
	b := NewRateLimitedBackend(inner, 1, 1)

	_, err := b.Search(context.Background(), "first", 1)
	require.NoError(t, err)

	// The next token is a minute away, far beyond the deadline.
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = b.Search(ctx, "second", 1)
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrTimeout), "got %v", err)
	assert.Equal(t, []string{"first"}, inner.calls())
}

func TestRateLimitedBackendCanceled(t *testing.T) {
	b := NewRateLimitedBackend(&fakeBackend{}, 1, 1)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := b.Search(ctx, "q", 1)
	require.Error(t, err)
	assert.False(t, errors.Is(err, domain.ErrTimeout))
}
