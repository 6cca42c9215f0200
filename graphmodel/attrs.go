package graphmodel

import (
	"context"
	"sort"
	"time"

	"github.com/jakobtroidl/chunkedgraph/chunkederr"
	"github.com/jakobtroidl/chunkedgraph/storage"
)

// Store reads and writes the closed attribute set (spec.md §3) over a
// storage.Client. It holds no long-lived object graph — every method
// is a direct lookup against the column store (spec.md §9 "id-keyed
// tables ... never pointer graphs").
type Store struct {
	Client storage.Client
}

// NewStore wraps client as a Store.
func NewStore(client storage.Client) *Store {
	return &Store{Client: client}
}

// ParentEntry is one (parent id, timestamp) pair from the Parents
// history column, newest first.
type ParentEntry struct {
	ParentID  uint64
	Timestamp time.Time
}

func readSingleColumn(ctx context.Context, client storage.Client, row []byte, col storage.ColumnID, limit int) ([]storage.Cell, error) {
	rows, err := client.ReadRows(ctx, storage.ReadRowsRequest{
		Keys:    [][]byte{row},
		Columns: []storage.ColumnID{col},
		Limit:   limit,
	})
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[0].Columns[col], nil
}

// GetParents returns every (parent, timestamp) entry ever written for
// id, newest first.
func (s *Store) GetParents(ctx context.Context, id uint64) ([]ParentEntry, error) {
	cells, err := readSingleColumn(ctx, s.Client, RowKey(id), storage.AttrParents.Column, 0)
	if err != nil {
		return nil, err
	}
	out := make([]ParentEntry, 0, len(cells))
	for _, c := range cells {
		v, decErr := storage.DecodeUint64(c.Value)
		if decErr != nil {
			return nil, chunkederr.Wrap(chunkederr.InternalInvariant, "graphmodel: decode Parents cell", decErr)
		}
		out = append(out, ParentEntry{ParentID: v, Timestamp: c.Timestamp})
	}
	return out, nil
}

// GetParentAt returns the latest parent of id as of at (the newest
// entry with Timestamp <= at). A zero at means "now" — the newest
// entry overall. Returns chunkederr.NotFound if id has no parent
// record (i.e. id is a root, or does not exist).
func (s *Store) GetParentAt(ctx context.Context, id uint64, at time.Time) (uint64, time.Time, error) {
	entries, err := s.GetParents(ctx, id)
	if err != nil {
		return 0, time.Time{}, err
	}
	for _, e := range entries {
		if at.IsZero() || !e.Timestamp.After(at) {
			return e.ParentID, e.Timestamp, nil
		}
	}
	return 0, time.Time{}, chunkederr.New(chunkederr.NotFound, "graphmodel: no parent found at requested timestamp")
}

// GetChildren returns the current Children list of a layer >= 2 node.
func (s *Store) GetChildren(ctx context.Context, id uint64) ([]uint64, error) {
	cells, err := readSingleColumn(ctx, s.Client, RowKey(id), storage.AttrChildren.Column, 1)
	if err != nil {
		return nil, err
	}
	if len(cells) == 0 {
		return nil, nil
	}
	return storage.DecodeUint64Slice(cells[0].Value)
}

// GetCrossChunkEdges returns the current cross-chunk neighbor list for
// id at the given layer.
func (s *Store) GetCrossChunkEdges(ctx context.Context, id uint64, layer int) ([]uint64, error) {
	desc := storage.CrossChunkEdgesColumn(layer)
	cells, err := readSingleColumn(ctx, s.Client, RowKey(id), desc.Column, 1)
	if err != nil {
		return nil, err
	}
	if len(cells) == 0 {
		return nil, nil
	}
	return storage.DecodeUint64Slice(cells[0].Value)
}

// rootLinks decodes the accumulated id list of an Unlimited history
// column (FormerRoots/NewRoots) by concatenating every cell ever
// written, oldest first, matching how the links accrete across edits.
func (s *Store) rootLinks(ctx context.Context, id uint64, col storage.ColumnID) ([]uint64, error) {
	cells, err := readSingleColumn(ctx, s.Client, RowKey(id), col, 0)
	if err != nil {
		return nil, err
	}
	var out []uint64
	for i := len(cells) - 1; i >= 0; i-- { // cells are newest-first; walk oldest-first
		ids, decErr := storage.DecodeUint64Slice(cells[i].Value)
		if decErr != nil {
			return nil, chunkederr.Wrap(chunkederr.InternalInvariant, "graphmodel: decode root-link cell", decErr)
		}
		out = append(out, ids...)
	}
	return out, nil
}

// GetFormerRoots returns every root this root superseded, oldest first.
func (s *Store) GetFormerRoots(ctx context.Context, id uint64) ([]uint64, error) {
	return s.rootLinks(ctx, id, storage.AttrFormerRoots.Column)
}

// GetNewRoots returns every root this root was superseded by, oldest
// first.
func (s *Store) GetNewRoots(ctx context.Context, id uint64) ([]uint64, error) {
	return s.rootLinks(ctx, id, storage.AttrNewRoots.Column)
}

// GetNodeTimestamp returns the creation timestamp of id: the oldest
// Parents cell for a non-root, or the oldest Children cell for a root
// (roots never get a Parents cell).
func (s *Store) GetNodeTimestamp(ctx context.Context, id uint64) (time.Time, error) {
	parents, err := readSingleColumn(ctx, s.Client, RowKey(id), storage.AttrParents.Column, 0)
	if err != nil {
		return time.Time{}, err
	}
	if len(parents) > 0 {
		return parents[len(parents)-1].Timestamp, nil
	}
	children, err := readSingleColumn(ctx, s.Client, RowKey(id), storage.AttrChildren.Column, 0)
	if err != nil {
		return time.Time{}, err
	}
	if len(children) > 0 {
		return children[len(children)-1].Timestamp, nil
	}
	return time.Time{}, chunkederr.New(chunkederr.NotFound, "graphmodel: node has no Parents or Children cells")
}

// GetNodeTimestamps batches GetNodeTimestamp over ids, preserving
// order; entries for ids with no recorded timestamp are the zero time.
func (s *Store) GetNodeTimestamps(ctx context.Context, ids []uint64) ([]time.Time, error) {
	out := make([]time.Time, len(ids))
	for i, id := range ids {
		ts, err := s.GetNodeTimestamp(ctx, id)
		if err != nil {
			if chunkederr.OfKind(err, chunkederr.NotFound) {
				continue
			}
			return nil, err
		}
		out[i] = ts
	}
	return out, nil
}

// sortUint64 sorts ids ascending in place and is used wherever a
// deterministic, reproducible ordering is required for outputs (e.g.
// subgraph edge lists).
func sortUint64(ids []uint64) {
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
}
