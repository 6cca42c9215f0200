package ingest

import (
	"context"

	"github.com/jakobtroidl/chunkedgraph/chunkid"
)

// MemorySource is an in-memory ChunkSource used by builder tests and
// by small synthetic graphs (spec.md §8's literal end-to-end
// scenarios).
type MemorySource struct {
	chunks       []chunkid.Coord
	inChunk      map[chunkid.Coord][]RawEdge
	betweenChunk map[chunkid.Coord][]RawEdge
	crossChunk   map[chunkid.Coord][]RawEdge
	agglomerate  map[chunkid.Coord]map[LocalID]uint64
}

// NewMemorySource returns an empty MemorySource; use the Add* methods
// to populate it before passing it to a Builder.
func NewMemorySource() *MemorySource {
	return &MemorySource{
		inChunk:      make(map[chunkid.Coord][]RawEdge),
		betweenChunk: make(map[chunkid.Coord][]RawEdge),
		crossChunk:   make(map[chunkid.Coord][]RawEdge),
		agglomerate:  make(map[chunkid.Coord]map[LocalID]uint64),
	}
}

// AddChunk registers a chunk coordinate so Chunks() enumerates it even
// if it has no edges yet.
func (m *MemorySource) AddChunk(c chunkid.Coord) {
	for _, existing := range m.chunks {
		if existing == c {
			return
		}
	}
	m.chunks = append(m.chunks, c)
}

// AddInChunkEdge registers an in-chunk edge.
func (m *MemorySource) AddInChunkEdge(c chunkid.Coord, u, v LocalID, affinity float64, area int32) {
	m.AddChunk(c)
	m.inChunk[c] = append(m.inChunk[c], RawEdge{AChunk: c, ALocal: u, BChunk: c, BLocal: v, Affinity: affinity, Area: area})
}

// AddBetweenChunkEdge registers a finite-weight edge crossing into a
// face-adjacent chunk.
func (m *MemorySource) AddBetweenChunkEdge(aChunk chunkid.Coord, aLocal LocalID, bChunk chunkid.Coord, bLocal LocalID, affinity float64, area int32) {
	m.AddChunk(aChunk)
	m.AddChunk(bChunk)
	m.betweenChunk[aChunk] = append(m.betweenChunk[aChunk], RawEdge{AChunk: aChunk, ALocal: aLocal, BChunk: bChunk, BLocal: bLocal, Affinity: affinity, Area: area})
}

// AddCrossChunkEdge registers an inseparable (infinite-affinity) edge.
func (m *MemorySource) AddCrossChunkEdge(aChunk chunkid.Coord, aLocal LocalID, bChunk chunkid.Coord, bLocal LocalID) {
	m.AddChunk(aChunk)
	m.AddChunk(bChunk)
	m.crossChunk[aChunk] = append(m.crossChunk[aChunk], RawEdge{AChunk: aChunk, ALocal: aLocal, BChunk: bChunk, BLocal: bLocal, Affinity: posInf})
}

// SetAgglomeration records which component local id belongs to within
// chunk c.
func (m *MemorySource) SetAgglomeration(c chunkid.Coord, local LocalID, component uint64) {
	m.AddChunk(c)
	if m.agglomerate[c] == nil {
		m.agglomerate[c] = make(map[LocalID]uint64)
	}
	m.agglomerate[c][local] = component
}

func (m *MemorySource) Chunks(ctx context.Context) ([]chunkid.Coord, error) {
	return append([]chunkid.Coord(nil), m.chunks...), nil
}

func (m *MemorySource) InChunkEdges(ctx context.Context, c chunkid.Coord) ([]RawEdge, error) {
	return m.inChunk[c], nil
}

func (m *MemorySource) BetweenChunkEdges(ctx context.Context, c chunkid.Coord) ([]RawEdge, error) {
	return m.betweenChunk[c], nil
}

func (m *MemorySource) CrossChunkEdges(ctx context.Context, c chunkid.Coord) ([]RawEdge, error) {
	return m.crossChunk[c], nil
}

func (m *MemorySource) AgglomerationMap(ctx context.Context, c chunkid.Coord) (map[LocalID]uint64, error) {
	return m.agglomerate[c], nil
}

var _ ChunkSource = (*MemorySource)(nil)
