package graphmodel

import (
	"context"

	"github.com/jakobtroidl/chunkedgraph/chunkederr"
	"github.com/jakobtroidl/chunkedgraph/config"
	"github.com/jakobtroidl/chunkedgraph/storage"
)

// WriteMeta writes meta under the fixed "meta" row. Intended for
// graph creation only (cmd/chunkedgraph create-graph) — the engine
// treats an existing meta record as immutable and never calls this
// after the first write (spec.md §6).
func (s *Store) WriteMeta(ctx context.Context, meta config.ChunkedGraphMeta) error {
	mut := storage.RowMutations{
		Key:       MetaKey,
		Mutations: []storage.Mutation{{Column: storage.AttrMeta.Column, Value: meta.Encode()}},
	}
	if err := s.Client.BulkMutate(ctx, storage.ToBulkMutateMap([]storage.RowMutations{mut})); err != nil {
		return chunkederr.Wrap(chunkederr.StorageFatal, "graphmodel: write meta", err)
	}
	return nil
}

// ReadMeta reads the graph's ChunkedGraphMeta record. Returns
// chunkederr.NotFound if the graph has never been created.
func (s *Store) ReadMeta(ctx context.Context) (config.ChunkedGraphMeta, error) {
	cells, err := readSingleColumn(ctx, s.Client, MetaKey, storage.AttrMeta.Column, 1)
	if err != nil {
		return config.ChunkedGraphMeta{}, err
	}
	if len(cells) == 0 {
		return config.ChunkedGraphMeta{}, chunkederr.New(chunkederr.NotFound, "graphmodel: no meta record written for this graph")
	}
	meta, decErr := config.DecodeMeta(cells[0].Value)
	if decErr != nil {
		return config.ChunkedGraphMeta{}, chunkederr.Wrap(chunkederr.InternalInvariant, "graphmodel: decode meta", decErr)
	}
	return meta, nil
}
