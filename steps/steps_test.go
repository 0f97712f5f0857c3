package steps

import (
	"context"
	"sync"
	"testing"

	"github.com/johnstarich/uiwatch/worker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppend(t *testing.T) {
	log := New()
	ctx := worker.WithID(context.Background(), "w1")

	require.NoError(t, log.Append(ctx, "  Go to login page "))
	require.NoError(t, log.Appendf(ctx, "Enter email: %s", "a@b.com"))
	assert.Equal(t, []string{"Go to login page", "Enter email: a@b.com"}, log.Snapshot(ctx))
}

func TestAppendBlankIsNoop(t *testing.T) {
	log := New()
	ctx := worker.WithID(context.Background(), "w1")
	require.NoError(t, log.Append(ctx, "first"))

	for _, text := range []string{"", "   ", "\t\n"} {
		require.NoError(t, log.Append(ctx, text))
	}
	assert.Equal(t, []string{"first"}, log.Snapshot(ctx))
}

func TestAppendNoWorker(t *testing.T) {
	log := New()
	assert.Equal(t, worker.ErrNoWorker, log.Append(context.Background(), "step"))
	assert.Equal(t, []string{}, log.Snapshot(context.Background()))
}

func TestSnapshotIsImmutable(t *testing.T) {
	log := New()
	ctx := worker.WithID(context.Background(), "w1")
	require.NoError(t, log.Append(ctx, "one"))

	snapshot := log.Snapshot(ctx)
	require.NoError(t, log.Append(ctx, "two"))
	snapshot[0] = "changed"

	assert.Equal(t, []string{"changed"}, snapshot)
	assert.Equal(t, []string{"one", "two"}, log.Snapshot(ctx))
}

func TestClear(t *testing.T) {
	log := New()
	ctx := worker.WithID(context.Background(), "w1")
	log.Clear(ctx) // clearing an empty log is fine
	require.NoError(t, log.Append(ctx, "one"))
	require.NoError(t, log.Append(ctx, "two"))

	log.Clear(ctx)
	assert.Empty(t, log.Snapshot(ctx))
}

func TestWorkersDoNotShareSteps(t *testing.T) {
	log := New()
	var wg sync.WaitGroup
	for _, id := range []worker.ID{"a", "b", "c"} {
		wg.Add(1)
		go func(id worker.ID) {
			defer wg.Done()
			ctx := worker.WithID(context.Background(), id)
			for i := 0; i < 50; i++ {
				assert.NoError(t, log.Append(ctx, string(id)))
			}
		}(id)
	}
	wg.Wait()

	for _, id := range []worker.ID{"a", "b", "c"} {
		snapshot := log.Snapshot(worker.WithID(context.Background(), id))
		require.Len(t, snapshot, 50)
		for _, step := range snapshot {
			assert.Equal(t, string(id), step)
		}
	}
}
