package ingest

import (
	"context"
	"sort"

	"github.com/jakobtroidl/chunkedgraph/chunkederr"
	"github.com/jakobtroidl/chunkedgraph/chunkid"
	"github.com/jakobtroidl/chunkedgraph/config"
	"github.com/jakobtroidl/chunkedgraph/graphmodel"
	"github.com/jakobtroidl/chunkedgraph/mincut"
	"github.com/jakobtroidl/chunkedgraph/parallel"
	"github.com/jakobtroidl/chunkedgraph/storage"
)

// chunkAllocation is the output of the first (id-allocation) pass over
// one layer-1 chunk: every local id that chunk's records mention, bound
// to a freshly minted packed supervoxel id.
type chunkAllocation struct {
	coord chunkid.Coord
	ids   map[LocalID]uint64
	agg   map[LocalID]uint64
}

// localIDsForChunk returns every LocalID chunk c's own records
// reference — the agglomeration map's keys, both endpoints of its
// in-chunk edges, and the A-side endpoint of its between- and
// cross-chunk edges. A local id that never appears in any of these is never
// allocated and any edge naming it is a caller error (spec.md §4.4
// requires every supervoxel to have an agglomeration entry, even
// isolated ones).
func localIDsForChunk(agg map[LocalID]uint64, inEdges, betweenEdges, crossEdges []RawEdge) map[LocalID]bool {
	set := make(map[LocalID]bool, len(agg))
	for id := range agg {
		set[id] = true
	}
	for _, e := range inEdges {
		set[e.ALocal] = true
		set[e.BLocal] = true
	}
	for _, e := range betweenEdges {
		set[e.ALocal] = true
	}
	for _, e := range crossEdges {
		set[e.ALocal] = true
	}
	return set
}

// allocateChunk runs the dense-id-allocation step for one layer-1
// chunk: a single Increment against that chunk's counter row reserves
// a contiguous segment-id block, which is then handed out to the
// chunk's local ids in ascending order — deterministic regardless of
// how many workers are racing across chunks (spec.md §4.4, §6).
func allocateChunk(ctx context.Context, source ChunkSource, lay chunkid.Layout, client storage.Client, c chunkid.Coord) (chunkAllocation, error) {
	agg, err := source.AgglomerationMap(ctx, c)
	if err != nil {
		return chunkAllocation{}, err
	}
	inEdges, err := source.InChunkEdges(ctx, c)
	if err != nil {
		return chunkAllocation{}, err
	}
	betweenEdges, err := source.BetweenChunkEdges(ctx, c)
	if err != nil {
		return chunkAllocation{}, err
	}
	crossEdges, err := source.CrossChunkEdges(ctx, c)
	if err != nil {
		return chunkAllocation{}, err
	}

	locals := sortedLocalIDs(localIDsForChunk(agg, inEdges, betweenEdges, crossEdges))
	ids := make(map[LocalID]uint64, len(locals))
	if len(locals) == 0 {
		return chunkAllocation{coord: c, ids: ids, agg: agg}, nil
	}

	chunkRowID := graphmodel.ChunkCounterKey(lay.ChunkID(lay.Pack(1, c, 0)))
	total, err := client.Increment(ctx, chunkRowID, storage.AttrCounter.Column, int64(len(locals)))
	if err != nil {
		return chunkAllocation{}, chunkederr.Wrap(chunkederr.StorageFatal, "ingest: allocate supervoxel ids", err)
	}
	start := uint64(total) - uint64(len(locals)) + 1
	for i, local := range locals {
		ids[local] = lay.Pack(1, c, start+uint64(i))
	}
	return chunkAllocation{coord: c, ids: ids, agg: agg}, nil
}

// supervoxelAdjacency accumulates one layer-1 node's atomic adjacency
// before it is flushed to AtomicPartners/Affinities/Areas/Connected.
type supervoxelAdjacency struct {
	partners   []uint64
	affinities []float64
	areas      []int32
	activeIdx  []int32
}

func (a *supervoxelAdjacency) add(partner uint64, affinity float64, area int32, active bool) {
	idx := int32(len(a.partners))
	a.partners = append(a.partners, partner)
	a.affinities = append(a.affinities, affinity)
	a.areas = append(a.areas, area)
	if active {
		a.activeIdx = append(a.activeIdx, idx)
	}
}

// buildLayer1And2 is the combined first step of spec.md §4.4: layer 1
// supervoxel rows from the raw source, and layer 2 components from
// layer-1 active-edge connectivity. Layer 2 groups several layer-1
// chunks under one parent (chunkid.Layout divides by Fanout at every
// layer boundary, including 1->2 — spec.md §4.2), so component-finding
// here spans every layer-1 chunk sharing a layer-2 parent, not just one
// chunk's own in-chunk edges.
func (b *Builder) buildLayer1And2(ctx context.Context) ([]layerNode, error) {
	chunks, err := b.source.Chunks(ctx)
	if err != nil {
		return nil, err
	}

	allocations, errs := parallel.Run(ctx, b.pool, chunks, func(ctx context.Context, c chunkid.Coord) (chunkAllocation, error) {
		return allocateChunk(ctx, b.source, b.lay, b.store.Client, c)
	})
	if err := firstErr(errs); err != nil {
		return nil, err
	}
	idRegistry := make(map[chunkid.Coord]map[LocalID]uint64, len(chunks))
	aggRegistry := make(map[chunkid.Coord]map[LocalID]uint64, len(chunks))
	for _, a := range allocations {
		idRegistry[a.coord] = a.ids
		aggRegistry[a.coord] = a.agg
	}

	// Phase B: for every chunk, build each of its supervoxels' atomic
	// adjacency (in-chunk + between-chunk + cross-chunk, all mirrored
	// to both endpoints when the other endpoint is also owned by this
	// chunk's own declarations) and a candidate CrossChunkEdges[1] list.
	// Between-chunk/cross-chunk edges are assumed declared symmetrically
	// by both chunks involved (spec.md §4.4 "(added)"), so no chunk ever
	// needs to write into a row it does not own.
	builds, errs2 := parallel.Run(ctx, b.pool, chunks, func(ctx context.Context, c chunkid.Coord) (supervoxelBuildResult, error) {
		return b.buildSupervoxels(ctx, c, idRegistry, aggRegistry)
	})
	if err := firstErr(errs2); err != nil {
		return nil, err
	}
	allRowMuts := make([]storage.RowMutations, 0)
	cross1 := make(map[uint64][]uint64)
	for _, bu := range builds {
		allRowMuts = append(allRowMuts, bu.rowMuts...)
		for id, nbs := range bu.cross1 {
			cross1[id] = nbs
		}
	}
	if err := b.store.Client.BulkMutate(ctx, storage.ToBulkMutateMap(allRowMuts)); err != nil {
		return nil, chunkederr.Wrap(chunkederr.StorageFatal, "ingest: write supervoxel rows", err)
	}

	// Layer 2: group chunks by their layer-2 parent, then componentize
	// each group by in-chunk active edges plus cross1 entries whose
	// neighbor also belongs to the group.
	groups := make(map[chunkid.Coord][]chunkid.Coord)
	for _, c := range chunks {
		parent := parentChunkCoord(c, b.lay.Fanout)
		groups[parent] = append(groups[parent], c)
	}
	parentKeys := sortedCoords(groups)

	nodeLists, errs3 := parallel.Run(ctx, b.pool, parentKeys, func(ctx context.Context, parent chunkid.Coord) ([]layerNode, error) {
		return b.buildLayer2Group(ctx, parent, groups[parent], idRegistry, cross1)
	})
	if err := firstErr(errs3); err != nil {
		return nil, err
	}
	var out []layerNode
	for _, ns := range nodeLists {
		out = append(out, ns...)
	}
	return out, nil
}

// supervoxelBuildResult is one layer-1 chunk's contribution to the
// Phase B pass: its supervoxel rows, ready to write, plus the
// CrossChunkEdges[1] candidate list layer 2 will consult.
type supervoxelBuildResult struct {
	rowMuts []storage.RowMutations
	cross1  map[uint64][]uint64 // supervoxel id -> candidate CrossChunkEdges[1]
}

func (b *Builder) buildSupervoxels(ctx context.Context, c chunkid.Coord, idRegistry, aggRegistry map[chunkid.Coord]map[LocalID]uint64) (supervoxelBuildResult, error) {
	ids := idRegistry[c]
	agg := aggRegistry[c]

	inEdges, err := b.source.InChunkEdges(ctx, c)
	if err != nil {
		return supervoxelBuildResult{}, err
	}
	betweenEdges, err := b.source.BetweenChunkEdges(ctx, c)
	if err != nil {
		return supervoxelBuildResult{}, err
	}
	crossEdges, err := b.source.CrossChunkEdges(ctx, c)
	if err != nil {
		return supervoxelBuildResult{}, err
	}

	adj := make(map[uint64]*supervoxelAdjacency, len(ids))
	getAdj := func(id uint64) *supervoxelAdjacency {
		a := adj[id]
		if a == nil {
			a = &supervoxelAdjacency{}
			adj[id] = a
		}
		return a
	}

	for _, e := range inEdges {
		u, uok := ids[e.ALocal]
		v, vok := ids[e.BLocal]
		if err := requireOK(uok && vok, "in-chunk edge references an id absent from the chunk's own allocation"); err != nil {
			return supervoxelBuildResult{}, err
		}
		active := agg[e.ALocal] == agg[e.BLocal]
		getAdj(u).add(v, e.Affinity, e.Area, active)
		getAdj(v).add(u, e.Affinity, e.Area, active)
	}

	cross1 := make(map[uint64][]uint64)
	addCross := func(from, to uint64) {
		cross1[from] = append(cross1[from], to)
	}

	for _, e := range betweenEdges {
		u, uok := ids[e.ALocal]
		if err := requireOK(uok, "between-chunk edge references an id absent from the chunk's own allocation"); err != nil {
			return supervoxelBuildResult{}, err
		}
		otherIDs := idRegistry[e.BChunk]
		otherAgg := aggRegistry[e.BChunk]
		v, vok := otherIDs[e.BLocal]
		if err := requireOK(vok, "between-chunk edge's remote endpoint was never declared by its own chunk"); err != nil {
			return supervoxelBuildResult{}, err
		}
		active := otherAgg[e.BLocal] == agg[e.ALocal]
		getAdj(u).add(v, e.Affinity, e.Area, active)
		if active {
			addCross(u, v)
		}
	}

	for _, e := range crossEdges {
		u, uok := ids[e.ALocal]
		otherIDs := idRegistry[e.BChunk]
		v, vok := otherIDs[e.BLocal]
		if err := requireOK(uok && vok, "cross-chunk (inseparable) edge references an undeclared id"); err != nil {
			return supervoxelBuildResult{}, err
		}
		getAdj(u).add(v, posInf, 0, true)
		addCross(u, v)
	}

	var rowMuts []storage.RowMutations
	for _, packed := range ids {
		a := adj[packed]
		var partners []uint64
		var affinities []float64
		var areas []int32
		var activeIdx []int32
		if a != nil {
			partners, affinities, areas, activeIdx = a.partners, a.affinities, a.areas, a.activeIdx
		}
		muts := []storage.Mutation{
			graphmodel.MutationSetAtomicPartners(partners),
			graphmodel.MutationSetAffinities(affinities),
			graphmodel.MutationSetAreas(areas),
		}
		if len(activeIdx) > 0 {
			muts = append(muts, graphmodel.MutationAppendConnected(activeIdx))
		}
		if nbs := cross1[packed]; len(nbs) > 0 {
			sortUint64InPlace(nbs)
			muts = append(muts, graphmodel.MutationSetCrossChunkEdges(1, nbs))
		}
		rowMuts = append(rowMuts, storage.RowMutations{Key: graphmodel.RowKey(packed), Mutations: muts})
	}

	return supervoxelBuildResult{rowMuts: rowMuts, cross1: cross1}, nil
}

// buildLayer2Group componentizes every supervoxel across a layer-2
// parent chunk's member chunks, allocates one layer-2 node per
// component, and writes Children/Parents mutations plus each new
// node's CrossChunkEdges[2] (the cross1 entries whose neighbor did not
// end up in this same component).
func (b *Builder) buildLayer2Group(ctx context.Context, parent chunkid.Coord, members []chunkid.Coord, idRegistry map[chunkid.Coord]map[LocalID]uint64, cross1 map[uint64][]uint64) ([]layerNode, error) {
	dsu := mincut.NewDSU()
	memberSet := make(map[uint64]bool)
	var allIDs []uint64
	for _, c := range members {
		for _, id := range idRegistry[c] {
			dsu.Find(id)
			memberSet[id] = true
			allIDs = append(allIDs, id)
		}
	}

	for _, c := range members {
		inEdges, err := b.source.InChunkEdges(ctx, c)
		if err != nil {
			return nil, err
		}
		agg, err := b.source.AgglomerationMap(ctx, c)
		if err != nil {
			return nil, err
		}
		ids := idRegistry[c]
		for _, e := range inEdges {
			if agg[e.ALocal] == agg[e.BLocal] {
				dsu.Union(ids[e.ALocal], ids[e.BLocal])
			}
		}
	}
	for _, id := range allIDs {
		for _, nb := range cross1[id] {
			if memberSet[nb] {
				dsu.Union(id, nb)
			}
		}
	}

	componentMembers := make(map[uint64][]uint64)
	for _, id := range allIDs {
		r := dsu.Find(id)
		componentMembers[r] = append(componentMembers[r], id)
	}
	reprs := sortedUint64Keys(reprSet(componentMembers))
	if len(reprs) == 0 {
		return nil, nil
	}

	counterRow := graphmodel.ChunkCounterKey(b.lay.ChunkID(b.lay.Pack(2, parent, 0)))
	total, err := b.store.Client.Increment(ctx, counterRow, storage.AttrCounter.Column, int64(len(reprs)))
	if err != nil {
		return nil, chunkederr.Wrap(chunkederr.StorageFatal, "ingest: allocate layer-2 ids", err)
	}
	start := uint64(total) - uint64(len(reprs)) + 1

	var rowMuts []storage.RowMutations
	var out []layerNode
	for i, r := range reprs {
		newID := b.lay.Pack(2, parent, start+uint64(i))
		children := append([]uint64(nil), componentMembers[r]...)
		sortUint64InPlace(children)

		crossSet := make(map[uint64]bool)
		for _, child := range children {
			for _, nb := range cross1[child] {
				if !memberSet[nb] {
					crossSet[nb] = true
				}
			}
		}
		crossList := sortedUint64Keys(crossSet)

		nodeMuts := []storage.Mutation{graphmodel.MutationSetChildren(children)}
		if len(crossList) > 0 {
			nodeMuts = append(nodeMuts, graphmodel.MutationSetCrossChunkEdges(2, crossList))
		}
		rowMuts = append(rowMuts, storage.RowMutations{Key: graphmodel.RowKey(newID), Mutations: nodeMuts})
		for _, child := range children {
			rowMuts = append(rowMuts, storage.RowMutations{Key: graphmodel.RowKey(child), Mutations: []storage.Mutation{graphmodel.MutationAppendParent(newID)}})
		}
		out = append(out, layerNode{ID: newID, Chunk: parent})
	}

	if err := b.store.Client.BulkMutate(ctx, storage.ToBulkMutateMap(rowMuts)); err != nil {
		return nil, chunkederr.Wrap(chunkederr.StorageFatal, "ingest: write layer-2 rows", err)
	}
	if b.meta.SkipConnections == config.SkipConnectionsEnabled {
		for _, r := range reprs {
			if len(componentMembers[r]) == 1 {
				b.log.Debug("ingest: sole-child layer-2 component under skip-connections policy (not structurally elided)")
			}
		}
	}
	return out, nil
}

func reprSet(componentMembers map[uint64][]uint64) map[uint64]bool {
	set := make(map[uint64]bool, len(componentMembers))
	for r := range componentMembers {
		set[r] = true
	}
	return set
}

func parentChunkCoord(c chunkid.Coord, fanout int64) chunkid.Coord {
	return chunkid.Coord{X: c.X / fanout, Y: c.Y / fanout, Z: c.Z / fanout}
}

func sortedCoords(groups map[chunkid.Coord][]chunkid.Coord) []chunkid.Coord {
	out := make([]chunkid.Coord, 0, len(groups))
	for c := range groups {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Z != b.Z {
			return a.Z < b.Z
		}
		if a.Y != b.Y {
			return a.Y < b.Y
		}
		return a.X < b.X
	})
	return out
}

func sortUint64InPlace(ids []uint64) {
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
}
