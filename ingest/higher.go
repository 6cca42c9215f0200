package ingest

import (
	"context"

	"github.com/jakobtroidl/chunkedgraph/chunkederr"
	"github.com/jakobtroidl/chunkedgraph/chunkid"
	"github.com/jakobtroidl/chunkedgraph/config"
	"github.com/jakobtroidl/chunkedgraph/graphmodel"
	"github.com/jakobtroidl/chunkedgraph/mincut"
	"github.com/jakobtroidl/chunkedgraph/parallel"
	"github.com/jakobtroidl/chunkedgraph/storage"
)

// buildLayer aggregates prevNodes (every node produced by layer L-1)
// into layer L, grouping them by parent chunk and union-finding each
// group's own stored CrossChunkEdges[L-1] column (spec.md §4.4: "layers
// >= 3 via union-find over CrossChunkEdges"). Runs strictly after
// layer L-1 has finished — never concurrently with another layer.
func (b *Builder) buildLayer(ctx context.Context, layer int, prevNodes []layerNode) ([]layerNode, error) {
	groups := make(map[chunkid.Coord][]layerNode)
	for _, n := range prevNodes {
		parent := parentChunkCoord(n.Chunk, b.lay.Fanout)
		groups[parent] = append(groups[parent], n)
	}
	parentKeys := sortedLayerGroupCoords(groups)

	// Phase 1: componentize and allocate within each parent-chunk group
	// independently; write Children/Parents immediately (both sides are
	// already known), and hand back the deferred cross-boundary edges
	// plus an oldID->newID map covering every node this group consumed.
	results, errs := parallel.Run(ctx, b.pool, parentKeys, func(ctx context.Context, parent chunkid.Coord) (layerGroupResult, error) {
		return b.buildLayerGroup(ctx, layer, parent, groups[parent])
	})
	if err := firstErr(errs); err != nil {
		return nil, err
	}

	globalRemap := make(map[uint64]uint64)
	var allNodes []layerNode
	var pending []storage.RowMutations
	type deferredWrite struct {
		newID   uint64
		oldNbrs []uint64
	}
	var deferred []deferredWrite
	for _, r := range results {
		allNodes = append(allNodes, r.nodes...)
		for old, nw := range r.remapped {
			globalRemap[old] = nw
		}
		for newID, nbrs := range r.remaining {
			deferred = append(deferred, deferredWrite{newID: newID, oldNbrs: nbrs})
		}
	}

	// Phase 2: translate each deferred neighbor through the now-complete
	// oldID->newID map and write CrossChunkEdges[layer].
	for _, d := range deferred {
		set := make(map[uint64]bool, len(d.oldNbrs))
		for _, old := range d.oldNbrs {
			newID, ok := globalRemap[old]
			if !ok {
				return nil, chunkederr.New(chunkederr.InternalInvariant, "ingest: cross-chunk neighbor was never assigned a node at this layer")
			}
			set[newID] = true
		}
		neighbors := sortedUint64Keys(set)
		pending = append(pending, storage.RowMutations{
			Key:       graphmodel.RowKey(d.newID),
			Mutations: []storage.Mutation{graphmodel.MutationSetCrossChunkEdges(layer, neighbors)},
		})
	}
	if len(pending) > 0 {
		if err := b.store.Client.BulkMutate(ctx, storage.ToBulkMutateMap(pending)); err != nil {
			return nil, chunkederr.Wrap(chunkederr.StorageFatal, "ingest: write cross-chunk edges", err)
		}
	}
	return allNodes, nil
}

// layerGroupResult is one parent-chunk group's contribution to layer
// L: its new nodes, the old-id neighbor lists still awaiting
// translation to new ids (remaining), and the old->new id mapping for
// every node this group consumed (remapped).
type layerGroupResult struct {
	nodes     []layerNode
	remaining map[uint64][]uint64
	remapped  map[uint64]uint64
}

func (b *Builder) buildLayerGroup(ctx context.Context, layer int, parent chunkid.Coord, members []layerNode) (layerGroupResult, error) {
	dsu := mincut.NewDSU()
	memberSet := make(map[uint64]bool, len(members))
	for _, m := range members {
		dsu.Find(m.ID)
		memberSet[m.ID] = true
	}

	ownEdges := make(map[uint64][]uint64, len(members))
	for _, m := range members {
		edges, err := b.store.GetCrossChunkEdges(ctx, m.ID, b.lay.Layer(m.ID))
		if err != nil {
			return layerGroupResult{}, err
		}
		ownEdges[m.ID] = edges
		for _, nb := range edges {
			if memberSet[nb] {
				dsu.Union(m.ID, nb)
			}
		}
	}

	componentMembers := make(map[uint64][]uint64)
	for _, m := range members {
		r := dsu.Find(m.ID)
		componentMembers[r] = append(componentMembers[r], m.ID)
	}
	reprs := sortedUint64Keys(reprSet(componentMembers))
	if b.meta.SkipConnections == config.SkipConnectionsEnabled {
		for _, r := range reprs {
			if len(componentMembers[r]) == 1 {
				b.log.Debug("ingest: sole-child component under skip-connections policy (not structurally elided)")
			}
		}
	}

	counterRow := graphmodel.ChunkCounterKey(b.lay.ChunkID(b.lay.Pack(layer, parent, 0)))
	total, err := b.store.Client.Increment(ctx, counterRow, storage.AttrCounter.Column, int64(len(reprs)))
	if err != nil {
		return layerGroupResult{}, chunkederr.Wrap(chunkederr.StorageFatal, "ingest: allocate layer ids", err)
	}
	start := uint64(total) - uint64(len(reprs)) + 1

	var rowMuts []storage.RowMutations
	result := layerGroupResult{remaining: make(map[uint64][]uint64), remapped: make(map[uint64]uint64)}
	for i, r := range reprs {
		newID := b.lay.Pack(layer, parent, start+uint64(i))
		children := append([]uint64(nil), componentMembers[r]...)
		sortUint64InPlace(children)

		var remainingForNode []uint64
		for _, child := range children {
			result.remapped[child] = newID
			for _, nb := range ownEdges[child] {
				if !memberSet[nb] {
					remainingForNode = append(remainingForNode, nb)
				}
			}
		}
		if len(remainingForNode) > 0 {
			result.remaining[newID] = remainingForNode
		}

		rowMuts = append(rowMuts, storage.RowMutations{Key: graphmodel.RowKey(newID), Mutations: []storage.Mutation{graphmodel.MutationSetChildren(children)}})
		for _, child := range children {
			rowMuts = append(rowMuts, storage.RowMutations{Key: graphmodel.RowKey(child), Mutations: []storage.Mutation{graphmodel.MutationAppendParent(newID)}})
		}
		result.nodes = append(result.nodes, layerNode{ID: newID, Chunk: parent})
	}

	if len(rowMuts) > 0 {
		if err := b.store.Client.BulkMutate(ctx, storage.ToBulkMutateMap(rowMuts)); err != nil {
			return layerGroupResult{}, chunkederr.Wrap(chunkederr.StorageFatal, "ingest: write layer rows", err)
		}
	}
	return result, nil
}

func sortedLayerGroupCoords(groups map[chunkid.Coord][]layerNode) []chunkid.Coord {
	out := make([]chunkid.Coord, 0, len(groups))
	for c := range groups {
		out = append(out, c)
	}
	sortCoordsSlice(out)
	return out
}

func sortCoordsSlice(out []chunkid.Coord) {
	// insertion sort is fine here: group counts per layer are small
	// relative to the chunk counts layer 1/2 already fanned out over.
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && coordLess(out[j], out[j-1]); j-- {
			out[j], out[j-1] = out[j-1], out[j]
		}
	}
}

func coordLess(a, b chunkid.Coord) bool {
	if a.Z != b.Z {
		return a.Z < b.Z
	}
	if a.Y != b.Y {
		return a.Y < b.Y
	}
	return a.X < b.X
}
