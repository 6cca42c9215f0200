package storage

import (
	"encoding/binary"
	"fmt"
	"math"
)

// Family ids are fixed strings, per spec.md §6.
const (
	FamilyParentsChildren = "0"
	FamilyAdjacency       = "1"
	FamilyCrossChunk      = "2"
	FamilyControl         = "3"
)

// HistoryPolicy decides how many versions of a column a writer should
// retain. latestOnly columns are fully rewritten on every update (the
// newest cell supersedes all prior ones); unlimited columns are
// history-bearing and every write is a pure append (spec.md §4.3's
// toggle log, and time-travel queries over Parents/FormerRoots/
// NewRoots — spec.md §9 "Preserve this exactly").
type HistoryPolicy int

const (
	LatestOnly HistoryPolicy = iota
	Unlimited
)

// AttributeDescriptor is one entry in the closed set of recognized
// node/operation attributes (spec.md §3, and the "closed set of
// attribute descriptors" design note in spec.md §9 — this replaces the
// original system's dynamic per-attribute serialize/deserialize
// registry with a fixed table).
type AttributeDescriptor struct {
	Name    string
	Column  ColumnID
	History HistoryPolicy
}

var (
	AttrParents        = AttributeDescriptor{"Parents", ColumnID{FamilyParentsChildren, "parents"}, Unlimited}
	AttrChildren       = AttributeDescriptor{"Children", ColumnID{FamilyParentsChildren, "children"}, LatestOnly}
	AttrAtomicPartners = AttributeDescriptor{"AtomicPartners", ColumnID{FamilyAdjacency, "partners"}, LatestOnly}
	AttrConnected      = AttributeDescriptor{"Connected", ColumnID{FamilyAdjacency, "connected"}, Unlimited}
	AttrAffinities     = AttributeDescriptor{"Affinities", ColumnID{FamilyAdjacency, "affinities"}, LatestOnly}
	AttrAreas          = AttributeDescriptor{"Areas", ColumnID{FamilyAdjacency, "areas"}, LatestOnly}
	AttrFormerRoots    = AttributeDescriptor{"FormerRoots", ColumnID{FamilyControl, "former_roots"}, Unlimited}
	AttrNewRoots       = AttributeDescriptor{"NewRoots", ColumnID{FamilyControl, "new_roots"}, Unlimited}
	AttrOperationLog   = AttributeDescriptor{"OperationLog", ColumnID{FamilyControl, "op_log"}, LatestOnly}
	AttrLock           = AttributeDescriptor{"Concurrency.Lock", ColumnID{FamilyControl, "lock"}, LatestOnly}
	AttrCounter        = AttributeDescriptor{"Concurrency.Counter", ColumnID{FamilyControl, "counter"}, LatestOnly}
	AttrMeta           = AttributeDescriptor{"Meta", ColumnID{FamilyControl, "meta"}, LatestOnly}
)

// CrossChunkEdgesColumn returns the per-layer descriptor for
// CrossChunkEdges[layer] (spec.md §3 — one qualifier per layer).
func CrossChunkEdgesColumn(layer int) AttributeDescriptor {
	return AttributeDescriptor{
		Name:    fmt.Sprintf("CrossChunkEdges[%d]", layer),
		Column:  ColumnID{FamilyCrossChunk, fmt.Sprintf("xedges_%d", layer)},
		History: LatestOnly,
	}
}

// --- codecs ---
//
// Integers use little-endian fixed-width binary; variable-width arrays
// prefix a uint32 count (spec.md §4.6 "Serialization of all column
// values is attribute-driven ... integers use little-endian fixed-width
// binary; variable-width arrays prefix a count").

// EncodeUint64 serializes a single uint64.
func EncodeUint64(v uint64) []byte {
	b := make([]byte, 8)
	binary.LittleEndian.PutUint64(b, v)
	return b
}

// DecodeUint64 deserializes a single uint64.
func DecodeUint64(b []byte) (uint64, error) {
	if len(b) != 8 {
		return 0, fmt.Errorf("storage: DecodeUint64: want 8 bytes, got %d", len(b))
	}
	return binary.LittleEndian.Uint64(b), nil
}

// EncodeUint64Slice serializes a count-prefixed []uint64.
func EncodeUint64Slice(vs []uint64) []byte {
	b := make([]byte, 4+8*len(vs))
	binary.LittleEndian.PutUint32(b[:4], uint32(len(vs)))
	for i, v := range vs {
		binary.LittleEndian.PutUint64(b[4+8*i:], v)
	}
	return b
}

// DecodeUint64Slice deserializes a count-prefixed []uint64.
func DecodeUint64Slice(b []byte) ([]uint64, error) {
	if len(b) < 4 {
		return nil, fmt.Errorf("storage: DecodeUint64Slice: truncated count prefix")
	}
	n := binary.LittleEndian.Uint32(b[:4])
	want := 4 + 8*int(n)
	if len(b) != want {
		return nil, fmt.Errorf("storage: DecodeUint64Slice: want %d bytes for %d elements, got %d", want, n, len(b))
	}
	out := make([]uint64, n)
	for i := range out {
		out[i] = binary.LittleEndian.Uint64(b[4+8*i:])
	}
	return out, nil
}

// EncodeFloat64Slice serializes a count-prefixed []float64.
func EncodeFloat64Slice(vs []float64) []byte {
	bits := make([]uint64, len(vs))
	for i, v := range vs {
		bits[i] = math.Float64bits(v)
	}
	return EncodeUint64Slice(bits)
}

// DecodeFloat64Slice deserializes a count-prefixed []float64.
func DecodeFloat64Slice(b []byte) ([]float64, error) {
	bits, err := DecodeUint64Slice(b)
	if err != nil {
		return nil, err
	}
	out := make([]float64, len(bits))
	for i, bb := range bits {
		out[i] = math.Float64frombits(bb)
	}
	return out, nil
}

// EncodeString serializes a count-prefixed UTF-8 string.
func EncodeString(s string) []byte {
	b := make([]byte, 4+len(s))
	binary.LittleEndian.PutUint32(b[:4], uint32(len(s)))
	copy(b[4:], s)
	return b
}

// DecodeString deserializes a count-prefixed UTF-8 string, returning
// the string and the number of bytes consumed.
func DecodeString(b []byte) (string, int, error) {
	if len(b) < 4 {
		return "", 0, fmt.Errorf("storage: DecodeString: truncated count prefix")
	}
	n := int(binary.LittleEndian.Uint32(b[:4]))
	if len(b) < 4+n {
		return "", 0, fmt.Errorf("storage: DecodeString: want %d bytes, got %d", 4+n, len(b))
	}
	return string(b[4 : 4+n]), 4 + n, nil
}

// EncodeInt32Slice serializes a count-prefixed []int32 (used for
// Connected's toggle-log indices).
func EncodeInt32Slice(vs []int32) []byte {
	b := make([]byte, 4+4*len(vs))
	binary.LittleEndian.PutUint32(b[:4], uint32(len(vs)))
	for i, v := range vs {
		binary.LittleEndian.PutUint32(b[4+4*i:], uint32(v))
	}
	return b
}

// DecodeInt32Slice deserializes a count-prefixed []int32.
func DecodeInt32Slice(b []byte) ([]int32, error) {
	if len(b) < 4 {
		return nil, fmt.Errorf("storage: DecodeInt32Slice: truncated count prefix")
	}
	n := binary.LittleEndian.Uint32(b[:4])
	want := 4 + 4*int(n)
	if len(b) != want {
		return nil, fmt.Errorf("storage: DecodeInt32Slice: want %d bytes for %d elements, got %d", want, n, len(b))
	}
	out := make([]int32, n)
	for i := range out {
		out[i] = int32(binary.LittleEndian.Uint32(b[4+4*i:]))
	}
	return out, nil
}
