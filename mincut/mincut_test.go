package mincut_test

import (
	"math"
	"testing"

	"github.com/jakobtroidl/chunkedgraph/mincut"
	"github.com/stretchr/testify/require"
)

func containsCut(edges []mincut.Edge, u, v uint64) bool {
	for _, e := range edges {
		if (e.U == u && e.V == v) || (e.U == v && e.V == u) {
			return true
		}
	}
	return false
}

// TestMincutBridgeEdge reproduces spec.md §8 scenario 3: a merged
// graph {100-101-102-200-201} where (102,200) is the only bridge
// between the pre-merge halves. Splitting between 100 and 201 must
// find (102,200) as the unique cut.
func TestMincutBridgeEdge(t *testing.T) {
	edges := []mincut.Edge{
		{U: 100, V: 101, Affinity: 1.0},
		{U: 101, V: 102, Affinity: 0.5},
		{U: 102, V: 200, Affinity: 0.1},
		{U: 200, V: 201, Affinity: 0.9},
	}
	result, err := mincut.Mincut(edges, []uint64{100}, []uint64{201})
	require.NoError(t, err)
	require.False(t, result.Empty)
	require.Len(t, result.CutEdges, 1)
	require.True(t, containsCut(result.CutEdges, 102, 200))
}

// TestMincutInseparableFails reproduces spec.md §8 scenario 5: an
// infinite-affinity cross-chunk fuse between the source and sink sides
// makes the split impossible.
func TestMincutInseparableFails(t *testing.T) {
	edges := []mincut.Edge{
		{U: 100, V: 101, Affinity: 1.0},
		{U: 101, V: 102, Affinity: 0.5},
		{U: 102, V: 103, Affinity: math.Inf(1)},
	}
	_, err := mincut.Mincut(edges, []uint64{100}, []uint64{103})
	require.Error(t, err)
}

func TestMincutAlreadySeparatedIsNoOp(t *testing.T) {
	edges := []mincut.Edge{
		{U: 100, V: 101, Affinity: 1.0},
		{U: 200, V: 201, Affinity: 1.0},
	}
	result, err := mincut.Mincut(edges, []uint64{100}, []uint64{201})
	require.NoError(t, err)
	require.True(t, result.Empty)
	require.Empty(t, result.CutEdges)
}

func TestMincutRequiresNonEmptyTerminals(t *testing.T) {
	_, err := mincut.Mincut(nil, nil, []uint64{1})
	require.Error(t, err)
}

func TestDSUUnionByMinimum(t *testing.T) {
	d := mincut.NewDSU()
	d.Union(5, 3)
	d.Union(3, 9)
	require.Equal(t, d.Find(5), d.Find(9))
	require.Equal(t, uint64(3), d.Find(9))
}
