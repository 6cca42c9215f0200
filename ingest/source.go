// Package ingest builds the ChunkedGraph hierarchy from an external
// per-chunk edge source: layer 1 from raw segmentation edges and an
// agglomeration mapping, layer 2 from layer-1 active-edge components,
// and layers >= 3 by union-find over CrossChunkEdges, sequentially
// layer by layer (spec.md §4.4).
package ingest

import (
	"context"
	"math"

	"github.com/jakobtroidl/chunkedgraph/chunkid"
)

// posInf is the affinity value marking an edge inseparable (spec.md §3).
var posInf = math.Inf(1)

// LocalID is a raw segment id as it appears in the external
// segmentation source, local to one layer-1 chunk and not yet packed
// into the engine's 64-bit node id space.
type LocalID uint64

// RawEdge is one edge as read from the external source, before
// supervoxel ids are allocated. A's chunk is always the chunk the read
// was issued for; B's chunk differs for BetweenChunkEdges/CrossChunkEdges
// results and equals A's chunk for InChunkEdges results.
type RawEdge struct {
	AChunk, BChunk chunkid.Coord
	ALocal, BLocal LocalID
	Affinity       float64
	Area           int32
}

// ChunkSource is the builder's entire dependency on the external
// segmentation data (spec.md §4.4's "external source of per-chunk edge
// files"). It has no opinion on the storage format — FileSource and
// MemorySource are the two implementations the builder is tested
// against.
type ChunkSource interface {
	// Chunks enumerates every layer-1 chunk coordinate the source
	// covers.
	Chunks(ctx context.Context) ([]chunkid.Coord, error)

	// InChunkEdges returns edges whose endpoints both lie in chunk c.
	InChunkEdges(ctx context.Context, c chunkid.Coord) ([]RawEdge, error)

	// BetweenChunkEdges returns finite-weight edges whose other
	// endpoint lies in a face-adjacent layer-1 chunk.
	BetweenChunkEdges(ctx context.Context, c chunkid.Coord) ([]RawEdge, error)

	// CrossChunkEdges returns infinite-affinity (inseparable) edges
	// whose other endpoint may lie arbitrarily far away.
	CrossChunkEdges(ctx context.Context, c chunkid.Coord) ([]RawEdge, error)

	// AgglomerationMap returns, for chunk c, the component id every
	// local id with at least one incident edge or agglomeration record
	// belongs to. Two local ids with the same component id are the
	// "ground truth" that decides which in-chunk edges are active.
	AgglomerationMap(ctx context.Context, c chunkid.Coord) (map[LocalID]uint64, error)
}
