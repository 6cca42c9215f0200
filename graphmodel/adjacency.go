package graphmodel

import (
	"context"
	"sort"

	"github.com/jakobtroidl/chunkedgraph/chunkederr"
	"github.com/jakobtroidl/chunkedgraph/storage"
)

// Adjacency is a supervoxel's materialized neighbor list: parallel
// Partners/Affinities/Areas arrays, restricted to partners whose
// Connected toggle count is odd (spec.md §4.3).
type Adjacency struct {
	Partners   []uint64
	Affinities []float64
	Areas      []int32
}

// GetAdjacency reads AtomicPartners/Connected/Affinities/Areas for a
// layer-1 id and returns the materialized, currently-active subset.
func (s *Store) GetAdjacency(ctx context.Context, id uint64) (Adjacency, error) {
	row := RowKey(id)
	partnersCells, err := readSingleColumn(ctx, s.Client, row, storage.AttrAtomicPartners.Column, 1)
	if err != nil {
		return Adjacency{}, err
	}
	affinitiesCells, err := readSingleColumn(ctx, s.Client, row, storage.AttrAffinities.Column, 1)
	if err != nil {
		return Adjacency{}, err
	}
	areasCells, err := readSingleColumn(ctx, s.Client, row, storage.AttrAreas.Column, 1)
	if err != nil {
		return Adjacency{}, err
	}
	connectedCells, err := readSingleColumn(ctx, s.Client, row, storage.AttrConnected.Column, 0)
	if err != nil {
		return Adjacency{}, err
	}

	var partners []uint64
	if len(partnersCells) > 0 {
		if partners, err = storage.DecodeUint64Slice(partnersCells[0].Value); err != nil {
			return Adjacency{}, chunkederr.Wrap(chunkederr.InternalInvariant, "graphmodel: decode AtomicPartners", err)
		}
	}
	var affinities []float64
	if len(affinitiesCells) > 0 {
		if affinities, err = storage.DecodeFloat64Slice(affinitiesCells[0].Value); err != nil {
			return Adjacency{}, chunkederr.Wrap(chunkederr.InternalInvariant, "graphmodel: decode Affinities", err)
		}
	}
	var areas []int32
	if len(areasCells) > 0 {
		if areas, err = storage.DecodeInt32Slice(areasCells[0].Value); err != nil {
			return Adjacency{}, chunkederr.Wrap(chunkederr.InternalInvariant, "graphmodel: decode Areas", err)
		}
	}

	active, err := ActivePartnerIndices(connectedCells)
	if err != nil {
		return Adjacency{}, err
	}

	out := Adjacency{
		Partners:   make([]uint64, 0, len(active)),
		Affinities: make([]float64, 0, len(active)),
		Areas:      make([]int32, 0, len(active)),
	}
	for _, idx := range active {
		if int(idx) >= len(partners) {
			return Adjacency{}, chunkederr.Newf(chunkederr.InternalInvariant, "graphmodel: Connected index %d out of range for %d partners", idx, len(partners))
		}
		out.Partners = append(out.Partners, partners[idx])
		if int(idx) < len(affinities) {
			out.Affinities = append(out.Affinities, affinities[idx])
		} else {
			out.Affinities = append(out.Affinities, 0)
		}
		if int(idx) < len(areas) {
			out.Areas = append(out.Areas, areas[idx])
		} else {
			out.Areas = append(out.Areas, 0)
		}
	}
	return out, nil
}

// RawPartners reads a layer-1 node's full AtomicPartners/Affinities/Areas
// triple, unfiltered by Connected — i.e. every partner ever recorded,
// active or not. The edit engine uses this to find (or learn it must
// append) a partner's index before toggling Connected (spec.md §4.5.2
// step 4, §4.5.3 step 5) without materializing the active-only view
// GetAdjacency returns.
func (s *Store) RawPartners(ctx context.Context, id uint64) (partners []uint64, affinities []float64, areas []int32, err error) {
	row := RowKey(id)
	partnersCells, err := readSingleColumn(ctx, s.Client, row, storage.AttrAtomicPartners.Column, 1)
	if err != nil {
		return nil, nil, nil, err
	}
	affinitiesCells, err := readSingleColumn(ctx, s.Client, row, storage.AttrAffinities.Column, 1)
	if err != nil {
		return nil, nil, nil, err
	}
	areasCells, err := readSingleColumn(ctx, s.Client, row, storage.AttrAreas.Column, 1)
	if err != nil {
		return nil, nil, nil, err
	}
	if len(partnersCells) > 0 {
		if partners, err = storage.DecodeUint64Slice(partnersCells[0].Value); err != nil {
			return nil, nil, nil, chunkederr.Wrap(chunkederr.InternalInvariant, "graphmodel: decode AtomicPartners", err)
		}
	}
	if len(affinitiesCells) > 0 {
		if affinities, err = storage.DecodeFloat64Slice(affinitiesCells[0].Value); err != nil {
			return nil, nil, nil, chunkederr.Wrap(chunkederr.InternalInvariant, "graphmodel: decode Affinities", err)
		}
	}
	if len(areasCells) > 0 {
		if areas, err = storage.DecodeInt32Slice(areasCells[0].Value); err != nil {
			return nil, nil, nil, chunkederr.Wrap(chunkederr.InternalInvariant, "graphmodel: decode Areas", err)
		}
	}
	return partners, affinities, areas, nil
}

// RawConnectedCells returns every Connected toggle-log cell ever
// written for id, newest first — the raw input to ActivePartnerIndices
// and IsActive.
func (s *Store) RawConnectedCells(ctx context.Context, id uint64) ([]storage.Cell, error) {
	return readSingleColumn(ctx, s.Client, RowKey(id), storage.AttrConnected.Column, 0)
}

// ActivePartnerIndices materializes the Connected toggle log: every
// cell is a count-prefixed []int32 of partner indices appended at one
// toggle event; an index is active iff it occurs an odd number of
// times across every cell ever written (spec.md §4.3, §9 "Toggle-log
// adjacency ... preserve this exactly").
func ActivePartnerIndices(cells []storage.Cell) ([]int32, error) {
	counts := make(map[int32]int)
	for _, c := range cells {
		idxs, err := storage.DecodeInt32Slice(c.Value)
		if err != nil {
			return nil, chunkederr.Wrap(chunkederr.InternalInvariant, "graphmodel: decode Connected cell", err)
		}
		for _, idx := range idxs {
			counts[idx]++
		}
	}
	var active []int32
	for idx, n := range counts {
		if n%2 == 1 {
			active = append(active, idx)
		}
	}
	// Deterministic order: ascending index, not map iteration order.
	sort.Slice(active, func(i, j int) bool { return active[i] < active[j] })
	return active, nil
}

// IsActive reports whether a single partner index is active given the
// same toggle-log cells ActivePartnerIndices consumes. Used by the
// split path to check one cut edge without materializing the whole
// adjacency.
func IsActive(cells []storage.Cell, partnerIdx int32) (bool, error) {
	count := 0
	for _, c := range cells {
		idxs, err := storage.DecodeInt32Slice(c.Value)
		if err != nil {
			return false, chunkederr.Wrap(chunkederr.InternalInvariant, "graphmodel: decode Connected cell", err)
		}
		for _, idx := range idxs {
			if idx == partnerIdx {
				count++
			}
		}
	}
	return count%2 == 1, nil
}
