// Package chunkedgraph implements a ChunkedGraph: a versioned,
// chunked graph database for proofreading very large 3D neuron
// segmentations. Supervoxels (layer 1) agglomerate upward through a
// fixed-fanout chunk hierarchy to one or more roots; proofreaders
// merge and split components by editing the adjacency between
// supervoxels. A merge rewrites only the ancestor chains its two
// endpoints touch; a split rebuilds the hierarchy under the old root.
//
// The module is organized as:
//
//	chunkid/    — packed 64-bit node id layout (layer/chunk/segment bit fields)
//	config/     — ChunkedGraphMeta (write-once graph dimensioning) and RuntimeConfig
//	storage/    — the versioned wide-column Client interface, an in-memory fake, and
//	              the Bigtable binding
//	graphmodel/ — the closed attribute set, row-key encoding, and hierarchy traversal
//	ingest/     — the bulk, layer-by-layer hierarchy builder
//	mincut/     — the Dinic max-flow mincut used to find a split's separating edges
//	edit/       — Engine: AddEdge (merge) and RemoveEdges (split), root-lease locking,
//	              and coordinate-to-supervoxel resolution
//	cmd/chunkedgraph/ — the create-graph/ingest/inspect operator CLI
package chunkedgraph
