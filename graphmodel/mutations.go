package graphmodel

import (
	"time"

	"github.com/jakobtroidl/chunkedgraph/storage"
)

// Mutation builders below produce a single storage.Mutation each; they
// never call the storage client themselves. Callers (edit/ingest)
// collect them into one storage.RowMutations per row and commit them
// through BulkMutate. An edit issues several BulkMutate calls in
// sequence, so a failure part-way through leaves the earlier batches
// written.

// MutationAppendParent appends one (parent, timestamp) entry to
// Parents. Parents is Unlimited: every call is a pure append, never a
// rewrite (spec.md §3, §9).
func MutationAppendParent(parentID uint64) storage.Mutation {
	return storage.Mutation{Column: storage.AttrParents.Column, Value: storage.EncodeUint64(parentID)}
}

// MutationSetChildren rewrites Children (LatestOnly).
func MutationSetChildren(children []uint64) storage.Mutation {
	return storage.Mutation{Column: storage.AttrChildren.Column, Value: storage.EncodeUint64Slice(children)}
}

// MutationSetAtomicPartners rewrites AtomicPartners (LatestOnly). The
// partner list's index space is shared with Affinities, Areas, and the
// Connected toggle log — all four must be written together whenever
// the partner set grows.
func MutationSetAtomicPartners(partners []uint64) storage.Mutation {
	return storage.Mutation{Column: storage.AttrAtomicPartners.Column, Value: storage.EncodeUint64Slice(partners)}
}

// MutationSetAffinities rewrites Affinities (LatestOnly).
func MutationSetAffinities(affinities []float64) storage.Mutation {
	return storage.Mutation{Column: storage.AttrAffinities.Column, Value: storage.EncodeFloat64Slice(affinities)}
}

// MutationSetAreas rewrites Areas (LatestOnly).
func MutationSetAreas(areas []int32) storage.Mutation {
	return storage.Mutation{Column: storage.AttrAreas.Column, Value: storage.EncodeInt32Slice(areas)}
}

// MutationAppendConnected appends one toggle-log cell listing the
// partner indices being toggled in this write (spec.md §4.3, §9). A
// fresh node's initial active set and a later single-edge toggle both
// go through this same builder — the only difference is how many
// indices are in the slice.
func MutationAppendConnected(indices []int32) storage.Mutation {
	return storage.Mutation{Column: storage.AttrConnected.Column, Value: storage.EncodeInt32Slice(indices)}
}

// MutationSetCrossChunkEdges rewrites CrossChunkEdges[layer]
// (LatestOnly).
func MutationSetCrossChunkEdges(layer int, neighbors []uint64) storage.Mutation {
	desc := storage.CrossChunkEdgesColumn(layer)
	return storage.Mutation{Column: desc.Column, Value: storage.EncodeUint64Slice(neighbors)}
}

// MutationAppendFormerRoots appends one history cell to FormerRoots
// (Unlimited) — the set of roots this id superseded in one operation.
func MutationAppendFormerRoots(ids []uint64) storage.Mutation {
	return storage.Mutation{Column: storage.AttrFormerRoots.Column, Value: storage.EncodeUint64Slice(ids)}
}

// MutationAppendNewRoots appends one history cell to NewRoots
// (Unlimited) — the set of roots this id was superseded by in one
// operation.
func MutationAppendNewRoots(ids []uint64) storage.Mutation {
	return storage.Mutation{Column: storage.AttrNewRoots.Column, Value: storage.EncodeUint64Slice(ids)}
}

// OperationLogEntry is one row of the per-operation audit log
// (spec.md §3 OperationLog, §6 "serialized(operation_id)").
type OperationLogEntry struct {
	UserID    string
	Kind      string // "merge" or "split"
	SourceIDs []uint64
	SinkIDs   []uint64
	RootIDs   []uint64 // roots produced by this operation
	Timestamp time.Time
}

// MutationOperationLog encodes one OperationLogEntry as the
// OperationLog column's single LatestOnly cell.
func MutationOperationLog(entry OperationLogEntry) storage.Mutation {
	return storage.Mutation{Column: storage.AttrOperationLog.Column, Value: encodeOperationLogEntry(entry)}
}

// encodeOperationLogEntry packs an OperationLogEntry into a
// self-describing byte layout: kind+user as length-prefixed strings,
// then three count-prefixed uint64 id slices, then a unix-nano
// timestamp. This mirrors the count-prefix convention storage/codec.go
// uses for every other variable-width attribute.
func encodeOperationLogEntry(e OperationLogEntry) []byte {
	var b []byte
	b = appendString(b, e.Kind)
	b = appendString(b, e.UserID)
	b = append(b, storage.EncodeUint64Slice(e.SourceIDs)...)
	b = append(b, storage.EncodeUint64Slice(e.SinkIDs)...)
	b = append(b, storage.EncodeUint64Slice(e.RootIDs)...)
	b = append(b, storage.EncodeUint64(uint64(e.Timestamp.UnixNano()))...)
	return b
}

// DecodeOperationLogEntry inverts encodeOperationLogEntry.
func DecodeOperationLogEntry(b []byte) (OperationLogEntry, error) {
	var e OperationLogEntry
	var err error
	kind, rest, err := readString(b)
	if err != nil {
		return e, err
	}
	user, rest, err := readString(rest)
	if err != nil {
		return e, err
	}
	sources, rest, err := readUint64Slice(rest)
	if err != nil {
		return e, err
	}
	sinks, rest, err := readUint64Slice(rest)
	if err != nil {
		return e, err
	}
	roots, rest, err := readUint64Slice(rest)
	if err != nil {
		return e, err
	}
	ts, err := storage.DecodeUint64(rest)
	if err != nil {
		return e, err
	}
	e.Kind = kind
	e.UserID = user
	e.SourceIDs = sources
	e.SinkIDs = sinks
	e.RootIDs = roots
	e.Timestamp = time.Unix(0, int64(ts))
	return e, nil
}
