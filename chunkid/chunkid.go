// Package chunkid implements the identifier and chunk coordinate algebra
// described in spec.md §4.2: packing/unpacking a 64-bit node id into
// (layer, chunk coordinate, segment id) in O(1) bit operations, and the
// chunk-grid arithmetic (parent chunk, child chunks, bounding-box
// intersection, cross-chunk layer) that sits above it.
//
// The bit layout is fixed once, at graph-creation time, and stored
// verbatim in ChunkedGraphMeta (spec.md §4.2, §6) — callers build a
// Layout from that record and must never recompute one independently
// once a graph has data in it, or existing ids will decode incorrectly.
package chunkid

import "fmt"

// Coord is a chunk's integer grid coordinate at some layer.
type Coord struct {
	X, Y, Z int64
}

// Box is an axis-aligned bounding box in chunk-grid units at layer 1.
// Min/Max are both inclusive.
type Box struct {
	Min, Max Coord
}

// Layout captures the bit-packing scheme for one graph: how many bits
// are spent on the layer field, how many on the chunk-index field (a
// function of the grid extent at the widest layer), and how many on the
// per-chunk segment id. LayerBits + ChunkBits + SegmentBits must equal
// 64 for the packing to be lossless; NewLayout enforces this.
type Layout struct {
	LayerCount int // number of layers, including layer 1 and the root layer
	Fanout     int64 // linear branching factor between adjacent layers

	// ChunkDims is the voxel size of one layer-1 chunk along each axis.
	ChunkDims [3]int64

	// GridDims is the chunk-grid extent (in layer-1 chunks) along each axis.
	GridDims [3]int64

	LayerBits   uint
	ChunkBits   uint // bits per chunk-grid axis triple, i.e. total chunk-index width
	SegmentBits uint
}

// NewLayout validates and returns a Layout. It is the only place that
// should ever compute a bit split; everywhere else treats Layout as an
// opaque, already-decided scheme read back from ChunkedGraphMeta.
func NewLayout(layerCount int, fanout int64, chunkDims, gridDims [3]int64, layerBits, chunkBits, segmentBits uint) (Layout, error) {
	if layerCount < 1 {
		return Layout{}, fmt.Errorf("chunkid: layerCount must be >= 1, got %d", layerCount)
	}
	if fanout < 1 {
		return Layout{}, fmt.Errorf("chunkid: fanout must be >= 1, got %d", fanout)
	}
	if layerBits+chunkBits+segmentBits != 64 {
		return Layout{}, fmt.Errorf("chunkid: bit widths must sum to 64, got %d+%d+%d=%d",
			layerBits, chunkBits, segmentBits, layerBits+chunkBits+segmentBits)
	}
	if layerBits == 0 || segmentBits == 0 {
		return Layout{}, fmt.Errorf("chunkid: layerBits and segmentBits must be > 0")
	}
	if (1 << layerBits) <= uint64(layerCount) {
		return Layout{}, fmt.Errorf("chunkid: layerBits=%d cannot address %d layers", layerBits, layerCount)
	}
	return Layout{
		LayerCount:  layerCount,
		Fanout:      fanout,
		ChunkDims:   chunkDims,
		GridDims:    gridDims,
		LayerBits:   layerBits,
		ChunkBits:   chunkBits,
		SegmentBits: segmentBits,
	}, nil
}

// gridExtentAtLayer returns the chunk-grid extent at layer L, i.e. the
// layer-1 grid extent divided by fanout^(L-1), rounded up, floored at 1.
func (lay Layout) gridExtentAtLayer(layer int) [3]int64 {
	var out [3]int64
	divisor := int64(1)
	for i := 1; i < layer; i++ {
		divisor *= lay.Fanout
	}
	for axis := 0; axis < 3; axis++ {
		e := (lay.GridDims[axis] + divisor - 1) / divisor
		if e < 1 {
			e = 1
		}
		out[axis] = e
	}
	return out
}

// chunkIndex flattens a chunk coordinate at the given layer into a
// single integer in [0, extentX*extentY*extentZ), row-major in (Z,Y,X).
func (lay Layout) chunkIndex(layer int, c Coord) uint64 {
	ext := lay.gridExtentAtLayer(layer)
	return uint64(c.Z)*uint64(ext[0])*uint64(ext[1]) + uint64(c.Y)*uint64(ext[0]) + uint64(c.X)
}

// unflattenChunkIndex is the inverse of chunkIndex.
func (lay Layout) unflattenChunkIndex(layer int, idx uint64) Coord {
	ext := lay.gridExtentAtLayer(layer)
	x := idx % uint64(ext[0])
	rem := idx / uint64(ext[0])
	y := rem % uint64(ext[1])
	z := rem / uint64(ext[1])
	return Coord{X: int64(x), Y: int64(y), Z: int64(z)}
}

// Pack assembles a node id from its (layer, chunk coordinate, segment)
// components. Pack is total: it never fails on valid Layout/inputs, but
// panics if segment or the flattened chunk index overflow their field —
// this is a programmer error (caller exceeded the layout's capacity),
// not a runtime condition to recover from.
func (lay Layout) Pack(layer int, c Coord, segment uint64) uint64 {
	idx := lay.chunkIndex(layer, c)
	if idx >= (uint64(1) << lay.ChunkBits) {
		panic(fmt.Sprintf("chunkid: chunk index %d overflows %d-bit field", idx, lay.ChunkBits))
	}
	if segment >= (uint64(1) << lay.SegmentBits) {
		panic(fmt.Sprintf("chunkid: segment %d overflows %d-bit field", segment, lay.SegmentBits))
	}
	var id uint64
	id |= uint64(layer) << (lay.ChunkBits + lay.SegmentBits)
	id |= idx << lay.SegmentBits
	id |= segment
	return id
}

// Layer extracts the layer field from id.
func (lay Layout) Layer(id uint64) int {
	return int(id >> (lay.ChunkBits + lay.SegmentBits))
}

// Segment extracts the segment-id field from id.
func (lay Layout) Segment(id uint64) uint64 {
	mask := (uint64(1) << lay.SegmentBits) - 1
	return id & mask
}

// ChunkCoord extracts and unflattens the chunk coordinate of id.
func (lay Layout) ChunkCoord(id uint64) Coord {
	mask := (uint64(1) << lay.ChunkBits) - 1
	idx := (id >> lay.SegmentBits) & mask
	return lay.unflattenChunkIndex(lay.Layer(id), idx)
}

// ChunkID returns the id with its segment field zeroed — i.e. the
// identifier of the chunk (layer, coordinate) that id belongs to. This
// is the key used for the chunk's atomic counter row (spec.md §6).
func (lay Layout) ChunkID(id uint64) uint64 {
	mask := ^((uint64(1) << lay.SegmentBits) - 1)
	return id & mask
}

// ParentChunk returns the chunk id of the layer+1 chunk that contains
// the chunk chunkID belongs to, by dividing its coordinate by fanout.
// ParentChunk is undefined (returns 0) when chunkID is already at the
// top layer.
func (lay Layout) ParentChunk(chunkID uint64) uint64 {
	layer := lay.Layer(chunkID)
	if layer >= lay.LayerCount {
		return 0
	}
	c := lay.ChunkCoord(chunkID)
	parentCoord := Coord{X: c.X / lay.Fanout, Y: c.Y / lay.Fanout, Z: c.Z / lay.Fanout}
	return lay.Pack(layer+1, parentCoord, 0)
}

// ChildChunks enumerates the fanout^3 child-layer chunk ids aggregated
// into chunkID (a layer >= 2 chunk).
func (lay Layout) ChildChunks(chunkID uint64) []uint64 {
	layer := lay.Layer(chunkID)
	if layer < 2 {
		return nil
	}
	c := lay.ChunkCoord(chunkID)
	children := make([]uint64, 0, lay.Fanout*lay.Fanout*lay.Fanout)
	for dz := int64(0); dz < lay.Fanout; dz++ {
		for dy := int64(0); dy < lay.Fanout; dy++ {
			for dx := int64(0); dx < lay.Fanout; dx++ {
				child := Coord{X: c.X*lay.Fanout + dx, Y: c.Y*lay.Fanout + dy, Z: c.Z*lay.Fanout + dz}
				children = append(children, lay.Pack(layer-1, child, 0))
			}
		}
	}
	return children
}

// ChunkIntersects reports whether the region covered by chunkID
// intersects bbox. Both are measured in layer-1 chunk-grid coordinates,
// not voxels.
func (lay Layout) ChunkIntersects(chunkID uint64, bbox Box) bool {
	layer := lay.Layer(chunkID)
	c := lay.ChunkCoord(chunkID)
	span := int64(1)
	for i := 1; i < layer; i++ {
		span *= lay.Fanout
	}
	lo := Coord{X: c.X * span, Y: c.Y * span, Z: c.Z * span}
	hi := Coord{X: lo.X + span - 1, Y: lo.Y + span - 1, Z: lo.Z + span - 1}

	return lo.X <= bbox.Max.X && hi.X >= bbox.Min.X &&
		lo.Y <= bbox.Max.Y && hi.Y >= bbox.Min.Y &&
		lo.Z <= bbox.Max.Z && hi.Z >= bbox.Min.Z
}

// CrossChunkLayer computes the smallest layer L >= 2 at which the
// layer-1 chunks of u and v share a common ancestor chunk, by dividing
// both coordinates by fanout until they agree (spec.md §4.2).
func (lay Layout) CrossChunkLayer(u, v Coord) int {
	for layer := 2; layer <= lay.LayerCount; layer++ {
		div := int64(1)
		for i := 1; i < layer; i++ {
			div *= lay.Fanout
		}
		if u.X/div == v.X/div && u.Y/div == v.Y/div && u.Z/div == v.Z/div {
			return layer
		}
	}
	return lay.LayerCount
}

// VoxelToChunkCoord maps a voxel-space point to its layer-1 chunk
// coordinate given the configured chunk dimensions.
func (lay Layout) VoxelToChunkCoord(voxel [3]int64) Coord {
	return Coord{
		X: voxel[0] / lay.ChunkDims[0],
		Y: voxel[1] / lay.ChunkDims[1],
		Z: voxel[2] / lay.ChunkDims[2],
	}
}
