package edit

import (
	"context"
	"time"

	"github.com/jakobtroidl/chunkedgraph/chunkederr"
	"github.com/jakobtroidl/chunkedgraph/chunkid"
	"github.com/jakobtroidl/chunkedgraph/graphmodel"
	"github.com/jakobtroidl/chunkedgraph/mincut"
	"github.com/jakobtroidl/chunkedgraph/storage"
	"go.uber.org/zap"
)

// RemoveEdges splits the component shared by sourceCoords and
// sinkCoords by computing a local mincut and deactivating the edges it
// reports (spec.md §4.5.3). A cut that comes back empty means sources
// and sinks were already in separate components — a no-op returning
// the existing root. Returns every resulting root, oldest disposition
// first is not guaranteed; callers compare against FormerRoots/NewRoots
// for lineage.
func (e *Engine) RemoveEdges(ctx context.Context, sourceCoords, sinkCoords []Point3D, userID string) ([]uint64, error) {
	if len(sourceCoords) == 0 || len(sinkCoords) == 0 {
		return nil, chunkederr.New(chunkederr.InvalidInput, "edit: split requires at least one source and one sink coordinate")
	}

	sources, err := e.resolveUnconstrained(ctx, sourceCoords)
	if err != nil {
		return nil, err
	}
	sinks, err := e.resolveUnconstrained(ctx, sinkCoords)
	if err != nil {
		return nil, err
	}

	all := append(append([]uint64{}, sources...), sinks...)
	root, err := e.Store.GetRoot(ctx, all[0], time.Time{}, e.Meta.LayerCount)
	if err != nil {
		return nil, err
	}
	for _, id := range all[1:] {
		r, err := e.Store.GetRoot(ctx, id, time.Time{}, e.Meta.LayerCount)
		if err != nil {
			return nil, err
		}
		if r != root {
			return nil, chunkederr.New(chunkederr.InvalidInput, "edit: split endpoints do not all share one root")
		}
	}

	opID, err := e.allocateOperationID(ctx)
	if err != nil {
		return nil, err
	}
	log := e.log.WithOperation(opID)

	held, lease, err := e.lockRoots(ctx, []uint64{root}, opID)
	if err != nil {
		return nil, withOp(err, opID)
	}
	defer e.releaseAll(ctx, held, lease)
	if len(held) != 1 {
		return nil, withOp(chunkederr.Newf(chunkederr.InternalInvariant, "edit: expected exactly 1 locked root for a split, got %d", len(held)), opID)
	}
	liveRoot := held[0]

	allCoords := append(append([]Point3D{}, sourceCoords...), sinkCoords...)
	edges, err := e.localSubgraph(ctx, liveRoot, allCoords)
	if err != nil {
		return nil, withOp(err, opID)
	}

	mcEdges := make([]mincut.Edge, 0, len(edges))
	for _, edge := range edges {
		mcEdges = append(mcEdges, mincut.Edge{U: edge.U, V: edge.V, Affinity: edge.Affinity})
	}
	result, err := mincut.Mincut(mcEdges, sources, sinks)
	if err != nil {
		return nil, withOp(err, opID)
	}
	if result.Empty {
		log.Info("edit: split is a no-op, sources and sinks already separated")
		return []uint64{liveRoot}, nil
	}

	if err := e.deactivateCutEdges(ctx, result.CutEdges); err != nil {
		return nil, withOp(err, opID)
	}

	newRoots, err := e.rebuildFromSupervoxels(ctx, liveRoot)
	if err != nil {
		return nil, withOp(err, opID)
	}
	if len(newRoots) < 2 {
		return nil, withOp(chunkederr.Newf(chunkederr.InternalInvariant, "edit: split rebuild produced %d root(s), want >= 2", len(newRoots)), opID)
	}

	if err := e.writeSplitHistory(ctx, liveRoot, newRoots, userID, sources, sinks, opID); err != nil {
		return nil, withOp(err, opID)
	}

	log.Info("edit: split committed", zap.Int("new_roots", len(newRoots)))
	return newRoots, nil
}

func (e *Engine) resolveUnconstrained(ctx context.Context, coords []Point3D) ([]uint64, error) {
	out := make([]uint64, len(coords))
	for i, c := range coords {
		id, err := e.resolveCoord(ctx, c, 0, time.Time{})
		if err != nil {
			return nil, err
		}
		out[i] = id
	}
	return out, nil
}

// localSubgraph extracts the active supervoxel edges under root whose
// endpoints' chunks intersect a bounding box enclosing every input
// coordinate (spec.md §4.5.3 step 2).
func (e *Engine) localSubgraph(ctx context.Context, root uint64, coords []Point3D) ([]graphmodel.SubgraphEdge, error) {
	var bbox chunkid.Box
	for i, p := range coords {
		c := e.pointToChunkCoord(p)
		if i == 0 {
			bbox = chunkid.Box{Min: c, Max: c}
			continue
		}
		if c.X < bbox.Min.X {
			bbox.Min.X = c.X
		}
		if c.Y < bbox.Min.Y {
			bbox.Min.Y = c.Y
		}
		if c.Z < bbox.Min.Z {
			bbox.Min.Z = c.Z
		}
		if c.X > bbox.Max.X {
			bbox.Max.X = c.X
		}
		if c.Y > bbox.Max.Y {
			bbox.Max.Y = c.Y
		}
		if c.Z > bbox.Max.Z {
			bbox.Max.Z = c.Z
		}
	}
	return e.Store.GetSubgraph(ctx, e.Lay, root, bbox)
}

func (e *Engine) writeSplitHistory(ctx context.Context, oldRoot uint64, newRoots []uint64, userID string, sources, sinks []uint64, opID uint64) error {
	var muts []storage.RowMutations
	muts = append(muts, storage.RowMutations{Key: graphmodel.RowKey(oldRoot), Mutations: []storage.Mutation{graphmodel.MutationAppendNewRoots(newRoots)}})
	for _, nr := range newRoots {
		muts = append(muts, storage.RowMutations{Key: graphmodel.RowKey(nr), Mutations: []storage.Mutation{graphmodel.MutationAppendFormerRoots([]uint64{oldRoot})}})
	}
	muts = append(muts, storage.RowMutations{
		Key: graphmodel.OperationKey(opID),
		Mutations: []storage.Mutation{graphmodel.MutationOperationLog(graphmodel.OperationLogEntry{
			UserID:    userID,
			Kind:      "split",
			SourceIDs: sources,
			SinkIDs:   sinks,
			RootIDs:   newRoots,
			Timestamp: time.Now(),
		})},
	})
	if err := e.Store.Client.BulkMutate(ctx, storage.ToBulkMutateMap(muts)); err != nil {
		return chunkederr.Wrap(chunkederr.StorageFatal, "edit: write split history", err)
	}
	return nil
}
