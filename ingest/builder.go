package ingest

import (
	"context"
	"sort"

	"github.com/jakobtroidl/chunkedgraph/chunkederr"
	"github.com/jakobtroidl/chunkedgraph/chunkid"
	"github.com/jakobtroidl/chunkedgraph/clog"
	"github.com/jakobtroidl/chunkedgraph/config"
	"github.com/jakobtroidl/chunkedgraph/graphmodel"
	"github.com/jakobtroidl/chunkedgraph/parallel"
	"go.uber.org/zap"
)

// layerNode is one materialized node produced by a build step, carried
// forward as input to the next layer. Chunk is the node's nominal
// chunk coordinate for grouping purposes — always equal to
// chunkid.Layout.ChunkCoord(ID) in this implementation, since skip
// connections are not structurally elided (see DESIGN.md).
type layerNode struct {
	ID    uint64
	Chunk chunkid.Coord
}

// Builder runs the layer-by-layer hierarchy build of spec.md §4.4
// against one ChunkSource, writing rows through a graphmodel.Store.
// Grounded on builder.BuildGraph's single-orchestrator shape
// (resolve config, run constructors in order) — here the
// "constructors" are the fixed layer-1/2 pass and the per-layer
// passes for layer >= 3, always run in sequence, never in parallel
// across layers (spec.md §4.4: "never in parallel").
type Builder struct {
	source ChunkSource
	store  *graphmodel.Store
	meta   config.ChunkedGraphMeta
	lay    chunkid.Layout
	pool   *parallel.Pool
	log    *clog.Logger
}

// BuilderOption configures a Builder.
type BuilderOption func(*Builder)

// WithPool overrides the worker pool used for per-chunk fan-out.
// Defaults to parallel.New(parallel.DefaultConfig()).
func WithPool(pool *parallel.Pool) BuilderOption {
	return func(b *Builder) { b.pool = pool }
}

// WithLogger attaches a clog.Logger for skip-connection and progress
// diagnostics. Defaults to clog.Noop().
func WithLogger(log *clog.Logger) BuilderOption {
	return func(b *Builder) { b.log = log }
}

// NewBuilder constructs a Builder for meta's graph, reading raw edges
// from source and writing rows through store.
func NewBuilder(source ChunkSource, store *graphmodel.Store, meta config.ChunkedGraphMeta, opts ...BuilderOption) *Builder {
	b := &Builder{
		source: source,
		store:  store,
		meta:   meta,
		lay:    meta.Layout(),
		pool:   parallel.New(parallel.DefaultConfig()),
		log:    clog.Noop(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Build runs the full hierarchy construction: layer 1+2 from the
// external source, then every layer >= 3 in sequence.
func (b *Builder) Build(ctx context.Context) error {
	nodes, err := b.buildLayer1And2(ctx)
	if err != nil {
		return err
	}
	b.log.Info("ingest: layer 1+2 built", zap.Int("layer2_nodes", len(nodes)))

	for layer := 3; layer <= b.meta.LayerCount; layer++ {
		nodes, err = b.buildLayer(ctx, layer, nodes)
		if err != nil {
			return err
		}
		b.log.Info("ingest: layer built", zap.Int("layer", layer), zap.Int("nodes", len(nodes)))
	}
	return nil
}

func firstErr(errs []error) error {
	for _, e := range errs {
		if e != nil {
			return e
		}
	}
	return nil
}

func sortedLocalIDs(set map[LocalID]bool) []LocalID {
	out := make([]LocalID, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func sortedUint64Keys(set map[uint64]bool) []uint64 {
	out := make([]uint64, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func requireOK(ok bool, msg string) error {
	if !ok {
		return chunkederr.New(chunkederr.InternalInvariant, "ingest: "+msg)
	}
	return nil
}
