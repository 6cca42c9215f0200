// Package config holds the two configuration records the engine reads:
// ChunkedGraphMeta, a write-once record of every dimensioning decision
// made when a graph is created (spec.md §6), and RuntimeConfig, the
// per-process settings (credentials, timeouts, cache sizes) layered on
// top via viper.
package config

import (
	"fmt"

	"github.com/jakobtroidl/chunkedgraph/chunkid"
)

// SkipConnectionPolicy records a graph's skip-connection setting
// (spec.md §4.4, §9 "Skip connections"). It is part of ChunkedGraphMeta
// so the setting is fixed for the life of a graph. The ingest builder
// never promotes a node past a layer under either value: every
// intermediate layer is built, and the policy only controls whether
// sole-child components are logged.
type SkipConnectionPolicy string

const (
	// SkipConnectionsDisabled builds every intermediate layer, even when
	// a node is its parent's sole child.
	SkipConnectionsDisabled SkipConnectionPolicy = "disabled"
	// SkipConnectionsEnabled builds the same hierarchy as
	// SkipConnectionsDisabled; ingest additionally logs each sole-child
	// component at debug level. No node is promoted upward.
	SkipConnectionsEnabled SkipConnectionPolicy = "enabled"
)

// ChunkedGraphMeta is written once at graph creation under the fixed
// row key "meta" (spec.md §6) and is read-only thereafter. Every field
// here is load-bearing for decoding existing ids — changing any of them
// on a graph with data silently corrupts every previously packed id.
type ChunkedGraphMeta struct {
	GraphID string

	LayerCount int
	Fanout     int64
	ChunkDims  [3]int64
	GridDims   [3]int64

	LayerBits   uint
	ChunkBits   uint
	SegmentBits uint

	// VoxelResolutionNM is the physical size of one voxel, in nanometers,
	// along each axis — used to convert caller-supplied 3D coordinates
	// into chunk/voxel space for GetAtomicIDsFromCoords (spec.md §4.1).
	VoxelResolutionNM [3]float64

	SkipConnections SkipConnectionPolicy
}

// MetaOption configures a ChunkedGraphMeta during construction.
type MetaOption func(*ChunkedGraphMeta)

// WithSkipConnections sets the skip-connection policy explicitly.
// Defaults to SkipConnectionsDisabled when not supplied.
func WithSkipConnections(p SkipConnectionPolicy) MetaOption {
	return func(m *ChunkedGraphMeta) { m.SkipConnections = p }
}

// WithVoxelResolution sets the physical voxel size in nanometers.
func WithVoxelResolution(nmX, nmY, nmZ float64) MetaOption {
	return func(m *ChunkedGraphMeta) { m.VoxelResolutionNM = [3]float64{nmX, nmY, nmZ} }
}

// NewMeta constructs a ChunkedGraphMeta and validates the bit layout by
// round-tripping it through chunkid.NewLayout. Fail here, at graph
// creation, rather than letting a bad layout surface later as silently
// wrong ids.
func NewMeta(graphID string, layerCount int, fanout int64, chunkDims, gridDims [3]int64, layerBits, chunkBits, segmentBits uint, opts ...MetaOption) (ChunkedGraphMeta, error) {
	if graphID == "" {
		return ChunkedGraphMeta{}, fmt.Errorf("config: graphID must not be empty")
	}
	if _, err := chunkid.NewLayout(layerCount, fanout, chunkDims, gridDims, layerBits, chunkBits, segmentBits); err != nil {
		return ChunkedGraphMeta{}, fmt.Errorf("config: invalid id layout: %w", err)
	}
	m := ChunkedGraphMeta{
		GraphID:         graphID,
		LayerCount:      layerCount,
		Fanout:          fanout,
		ChunkDims:       chunkDims,
		GridDims:        gridDims,
		LayerBits:       layerBits,
		ChunkBits:       chunkBits,
		SegmentBits:     segmentBits,
		SkipConnections: SkipConnectionsDisabled,
	}
	for _, opt := range opts {
		opt(&m)
	}
	return m, nil
}

// Layout derives the chunkid.Layout this meta record describes.
func (m ChunkedGraphMeta) Layout() chunkid.Layout {
	lay, err := chunkid.NewLayout(m.LayerCount, m.Fanout, m.ChunkDims, m.GridDims, m.LayerBits, m.ChunkBits, m.SegmentBits)
	if err != nil {
		// NewMeta already validated this layout; a failure here means the
		// meta record was mutated or decoded incorrectly after the fact.
		panic(fmt.Sprintf("config: stored ChunkedGraphMeta has an invalid layout: %v", err))
	}
	return lay
}
