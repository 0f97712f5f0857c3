package worker

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromContext(t *testing.T) {
	_, err := FromContext(context.Background())
	assert.Equal(t, ErrNoWorker, err)

	_, err = FromContext(WithID(context.Background(), ""))
	assert.Equal(t, ErrNoWorker, err)

	id, err := FromContext(WithID(context.Background(), "w1"))
	require.NoError(t, err)
	assert.Equal(t, ID("w1"), id)
}

func TestLocal(t *testing.T) {
	l := NewLocal()
	ctx := WithID(context.Background(), "w1")

	_, found, err := l.Get(ctx)
	require.NoError(t, err)
	assert.False(t, found)

	stored, err := l.Add(ctx, "first")
	require.NoError(t, err)
	assert.Equal(t, "first", stored)
	stored, err = l.Add(ctx, "second")
	require.NoError(t, err)
	assert.Equal(t, "first", stored, "Add must not replace an existing value")

	require.NoError(t, l.Set(ctx, "third"))
	value, found, err := l.Get(ctx)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "third", value)
	assert.Equal(t, 1, l.Len())

	value, found, err = l.Delete(ctx)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "third", value)
	assert.Equal(t, 0, l.Len())

	_, found, err = l.Delete(ctx)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestLocalNoWorker(t *testing.T) {
	l := NewLocal()
	ctx := context.Background()
	_, _, err := l.Get(ctx)
	assert.Equal(t, ErrNoWorker, err)
	assert.Equal(t, ErrNoWorker, l.Set(ctx, 1))
	_, err = l.Add(ctx, 1)
	assert.Equal(t, ErrNoWorker, err)
	_, _, err = l.Delete(ctx)
	assert.Equal(t, ErrNoWorker, err)
}

func TestLocalIsolation(t *testing.T) {
	l := NewLocal()
	const workers = 20
	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func(i int) {
			defer wg.Done()
			ctx := WithID(context.Background(), ID(fmt.Sprintf("w%d", i)))
			_, err := l.Add(ctx, i)
			assert.NoError(t, err)
			value, found, err := l.Get(ctx)
			assert.NoError(t, err)
			assert.True(t, found)
			assert.Equal(t, i, value)
		}(i)
	}
	wg.Wait()
	assert.Equal(t, workers, l.Len())
}
