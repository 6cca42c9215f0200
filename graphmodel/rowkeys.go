// Package graphmodel implements the node/edge data model that sits
// between the identifier algebra (chunkid) and the storage client
// (storage): row-key encoding, the closed attribute set's read/write
// helpers, toggle-log adjacency materialization, and the hierarchy
// traversal (root walking, subgraph extraction) that both the edit
// engine and the ingest pipeline build on.
package graphmodel

import "encoding/binary"

// MetaKey is the fixed row key for the graph's ChunkedGraphMeta record.
var MetaKey = []byte("meta")

// OpCounterKey is the fixed row key for the global operation-id counter.
var OpCounterKey = []byte("op")

// RowKey encodes a node id as its big-endian byte representation, so
// that rows sort by (layer, chunk, segment) — the same order the id's
// bit layout imposes (spec.md §6 "serialized(node_id)").
func RowKey(id uint64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, id)
	return b
}

// ParseRowKey inverts RowKey.
func ParseRowKey(key []byte) uint64 {
	return binary.BigEndian.Uint64(key)
}

// ChunkCounterKey encodes the row key under which a chunk's atomic
// segment-id counter lives (spec.md §6 "serialized(chunk_id)").
func ChunkCounterKey(chunkID uint64) []byte {
	b := make([]byte, 9)
	b[0] = 'c'
	binary.BigEndian.PutUint64(b[1:], chunkID)
	return b
}

// OperationKey encodes the row key for one operation log entry
// (spec.md §6 "serialized(operation_id)").
func OperationKey(opID uint64) []byte {
	b := make([]byte, 9)
	b[0] = 'o'
	binary.BigEndian.PutUint64(b[1:], opID)
	return b
}
