// Package edit implements the public engine contract of spec.md §4.1:
// root-lease locking (§4.5.1), merge (§4.5.2), split (§4.5.3), and the
// read-only hierarchy/history queries, all built on graphmodel.Store,
// chunkid.Layout, and a caller-supplied SegmentationIndex for resolving
// 3D coordinates to supervoxels.
package edit

import (
	"context"
	"time"

	"github.com/jakobtroidl/chunkedgraph/chunkid"
	"github.com/jakobtroidl/chunkedgraph/clog"
	"github.com/jakobtroidl/chunkedgraph/config"
	"github.com/jakobtroidl/chunkedgraph/graphmodel"
)

// Engine is the top-level entry point a caller constructs once per
// graph and calls concurrently — every write serializes through the
// root-lease protocol (§4.5.1), not through any lock held by Engine
// itself; Engine holds no mutable state of its own beyond configuration.
type Engine struct {
	Store   *graphmodel.Store
	Meta    config.ChunkedGraphMeta
	Lay     chunkid.Layout
	Index   SegmentationIndex
	Locking config.LockingConfig

	log *clog.Logger
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithLockingConfig overrides the lease expiry/retry bounds. Defaults
// to config.DefaultRuntimeConfig().Locking.
func WithLockingConfig(lc config.LockingConfig) EngineOption {
	return func(e *Engine) { e.Locking = lc }
}

// WithLogger attaches a clog.Logger for lock/merge/split lifecycle
// events. Defaults to clog.Noop().
func WithLogger(log *clog.Logger) EngineOption {
	return func(e *Engine) { e.log = log }
}

// NewEngine constructs an Engine for meta's graph over store, resolving
// caller coordinates through index.
func NewEngine(store *graphmodel.Store, meta config.ChunkedGraphMeta, index SegmentationIndex, opts ...EngineOption) *Engine {
	e := &Engine{
		Store:   store,
		Meta:    meta,
		Lay:     meta.Layout(),
		Index:   index,
		Locking: config.DefaultRuntimeConfig().Locking,
		log:     clog.Noop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// GetRoot returns id's root as of at (the zero time means "now").
func (e *Engine) GetRoot(ctx context.Context, id uint64, at time.Time) (uint64, error) {
	return e.Store.GetRoot(ctx, id, at, e.Meta.LayerCount)
}

// GetChildren returns the current Children of a layer >= 2 node.
func (e *Engine) GetChildren(ctx context.Context, id uint64) ([]uint64, error) {
	return e.Store.GetChildren(ctx, id)
}

// GetParent returns id's parent as of at (the zero time means "now").
func (e *Engine) GetParent(ctx context.Context, id uint64, at time.Time) (uint64, error) {
	return e.Store.GetParent(ctx, id, at)
}

// GetSubgraph returns the deduplicated active edges under root whose
// endpoints' chunks intersect bbox (spec.md §4.3).
func (e *Engine) GetSubgraph(ctx context.Context, root uint64, bbox chunkid.Box) ([]graphmodel.SubgraphEdge, error) {
	return e.Store.GetSubgraph(ctx, e.Lay, root, bbox)
}

// GetFutureRootIDs walks NewRoots forward from root.
func (e *Engine) GetFutureRootIDs(ctx context.Context, root uint64) ([]uint64, error) {
	return e.Store.GetFutureRootIDs(ctx, root)
}

// GetPastRootIDs walks FormerRoots backward from root as of at.
func (e *Engine) GetPastRootIDs(ctx context.Context, root uint64, at time.Time) ([]uint64, error) {
	return e.Store.GetPastRootIDs(ctx, root, at)
}

// GetNodeTimestamps returns the creation timestamp of each id.
func (e *Engine) GetNodeTimestamps(ctx context.Context, ids []uint64) ([]time.Time, error) {
	return e.Store.GetNodeTimestamps(ctx, ids)
}
