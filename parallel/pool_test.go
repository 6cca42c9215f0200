package parallel_test

import (
	"context"
	"testing"

	"github.com/jakobtroidl/chunkedgraph/parallel"
	"github.com/stretchr/testify/require"
)

func TestRunPreservesOrder(t *testing.T) {
	p := parallel.New(parallel.Config{MaxWorkers: 4})
	items := []int{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}

	results, errs := parallel.Run(context.Background(), p, items, func(_ context.Context, item int) (int, error) {
		return item * item, nil
	})

	for i, item := range items {
		require.NoError(t, errs[i])
		require.Equal(t, item*item, results[i])
	}
}

func TestRunEmpty(t *testing.T) {
	p := parallel.New(parallel.DefaultConfig())
	results, errs := parallel.Run(context.Background(), p, []int{}, func(_ context.Context, item int) (int, error) {
		return item, nil
	})
	require.Empty(t, results)
	require.Empty(t, errs)
}

func TestRunCancellation(t *testing.T) {
	p := parallel.New(parallel.Config{MaxWorkers: 2})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, errs := parallel.Run(ctx, p, []int{1, 2, 3}, func(ctx context.Context, item int) (int, error) {
		return item, nil
	})
	for _, err := range errs {
		require.Error(t, err)
	}
}

func TestChunk(t *testing.T) {
	items := []int{1, 2, 3, 4, 5, 6, 7}
	chunks := parallel.Chunk(items, 3)
	require.Len(t, chunks, 3)
	require.Equal(t, []int{1, 2, 3}, chunks[0])
	require.Equal(t, []int{4, 5, 6}, chunks[1])
	require.Equal(t, []int{7}, chunks[2])
}
