package chunkid_test

import (
	"testing"

	"github.com/jakobtroidl/chunkedgraph/chunkid"
	"github.com/stretchr/testify/require"
)

func testLayout(t *testing.T) chunkid.Layout {
	t.Helper()
	lay, err := chunkid.NewLayout(
		4, 2,
		[3]int64{64, 64, 64},
		[3]int64{8, 8, 8},
		8, 30, 26,
	)
	require.NoError(t, err)
	return lay
}

func TestNewLayoutValidation(t *testing.T) {
	_, err := chunkid.NewLayout(0, 2, [3]int64{1, 1, 1}, [3]int64{1, 1, 1}, 8, 30, 26)
	require.Error(t, err)

	_, err = chunkid.NewLayout(4, 2, [3]int64{1, 1, 1}, [3]int64{1, 1, 1}, 8, 30, 20)
	require.Error(t, err, "bit widths not summing to 64 must be rejected")

	_, err = chunkid.NewLayout(4, 2, [3]int64{1, 1, 1}, [3]int64{1, 1, 1}, 0, 38, 26)
	require.Error(t, err, "zero layerBits must be rejected")
}

func TestPackRoundTrip(t *testing.T) {
	lay := testLayout(t)

	cases := []struct {
		layer   int
		coord   chunkid.Coord
		segment uint64
	}{
		{1, chunkid.Coord{X: 0, Y: 0, Z: 0}, 0},
		{1, chunkid.Coord{X: 3, Y: 2, Z: 1}, 42},
		{2, chunkid.Coord{X: 1, Y: 1, Z: 0}, 7},
		{4, chunkid.Coord{X: 0, Y: 0, Z: 0}, 1},
	}
	for _, tc := range cases {
		id := lay.Pack(tc.layer, tc.coord, tc.segment)
		require.Equal(t, tc.layer, lay.Layer(id))
		require.Equal(t, tc.coord, lay.ChunkCoord(id))
		require.Equal(t, tc.segment, lay.Segment(id))
	}
}

func TestChunkIDZerosSegment(t *testing.T) {
	lay := testLayout(t)
	id := lay.Pack(1, chunkid.Coord{X: 1, Y: 1, Z: 1}, 99)
	chunkID := lay.ChunkID(id)
	require.Equal(t, uint64(0), lay.Segment(chunkID))
	require.Equal(t, lay.ChunkCoord(id), lay.ChunkCoord(chunkID))
}

func TestParentAndChildChunks(t *testing.T) {
	lay := testLayout(t)
	child := lay.Pack(1, chunkid.Coord{X: 3, Y: 2, Z: 1}, 0)
	parent := lay.ParentChunk(child)
	require.Equal(t, 2, lay.Layer(parent))
	require.Equal(t, chunkid.Coord{X: 1, Y: 1, Z: 0}, lay.ChunkCoord(parent))

	children := lay.ChildChunks(parent)
	require.Len(t, children, 8) // fanout^3 = 2^3

	found := false
	want := chunkid.Coord{X: 3, Y: 2, Z: 1}
	for _, c := range children {
		if lay.ChunkCoord(c) == want {
			found = true
		}
	}
	require.True(t, found, "original child chunk must be among ChildChunks(parent)")
}

func TestCrossChunkLayer(t *testing.T) {
	lay := testLayout(t)
	// Neighbouring chunks already agree once divided by fanout^1 = 2, so the answer is the smallest layer, 2.
	require.Equal(t, 2, lay.CrossChunkLayer(chunkid.Coord{X: 0, Y: 0, Z: 0}, chunkid.Coord{X: 1, Y: 0, Z: 0}))
	// These only agree once divided by fanout^2 = 4.
	require.Equal(t, 3, lay.CrossChunkLayer(chunkid.Coord{X: 0, Y: 0, Z: 0}, chunkid.Coord{X: 3, Y: 0, Z: 0}))
}

func TestChunkIntersects(t *testing.T) {
	lay := testLayout(t)
	id := lay.Pack(1, chunkid.Coord{X: 1, Y: 1, Z: 1}, 0)
	inside := chunkid.Box{Min: chunkid.Coord{X: 1, Y: 1, Z: 1}, Max: chunkid.Coord{X: 1, Y: 1, Z: 1}}
	outside := chunkid.Box{Min: chunkid.Coord{X: 5, Y: 5, Z: 5}, Max: chunkid.Coord{X: 6, Y: 6, Z: 6}}
	require.True(t, lay.ChunkIntersects(id, inside))
	require.False(t, lay.ChunkIntersects(id, outside))
}
