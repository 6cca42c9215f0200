// Package storage defines the engine's narrow contract over a
// versioned wide-column store (spec.md §4.6) and the closed set of
// attribute descriptors (spec.md §3, §9) that every family/qualifier in
// the column store is serialized through. Two implementations satisfy
// Client: storage/bigtable (a real Google Cloud Bigtable binding) and
// storage/memstore (an in-process fake used by edit/ingest tests).
package storage

import (
	"context"
	"time"
)

// Cell is one versioned column value: a single timestamped write.
type Cell struct {
	Timestamp time.Time
	Value     []byte
}

// Row is one row's columns, each holding its cells in reverse time
// order (newest first) — matching spec.md §4.6's read_rows contract.
type Row struct {
	Key     []byte
	Columns map[ColumnID][]Cell
}

// ColumnID names one column family+qualifier pair. Families are the
// fixed strings "0".."3" (spec.md §6); qualifiers are attribute-specific.
type ColumnID struct {
	Family    string
	Qualifier string
}

// TimeRange bounds a read to cells written in [Start, End). A zero
// value means "unbounded" on that side.
type TimeRange struct {
	Start, End time.Time
}

// ReadRowsRequest selects rows by explicit keys or by a [StartKey,
// EndKey) range (mutually exclusive — Keys takes precedence when both
// are set), optionally narrowed to specific columns and a TimeRange.
type ReadRowsRequest struct {
	Keys            [][]byte
	StartKey, EndKey []byte
	Columns         []ColumnID // empty means "all columns"
	Range           TimeRange
	// Limit caps the number of *cells* returned per column (0 = unbounded).
	// Used for "latest value only" reads.
	Limit int
}

// Mutation is one cell write or delete to apply within a row mutation.
type Mutation struct {
	Column    ColumnID
	Value     []byte // nil Value + Delete=true removes the column's cells
	Timestamp time.Time
	Delete    bool
}

// Filter is a server-side predicate evaluated against a row's current
// state before a ConditionalMutate's on_match/on_miss branch is chosen
// (spec.md §4.5.1's "conditional write ... server-side filter comparing
// cell timestamp to now - lock_expiry").
type Filter struct {
	Column ColumnID
	// CellTimestampAfter: filter matches if the column has a cell with
	// Timestamp >= CellTimestampAfter (used to detect an unexpired lease).
	CellTimestampAfter time.Time
	// ColumnEmpty, when true, ignores CellTimestampAfter and instead
	// matches when the column has no cells at all (used for "no lease
	// held" checks and conditional-create semantics).
	ColumnEmpty bool
}

// Client is the engine's entire dependency on the storage layer.
// Implementations MUST retry storage-transient errors internally
// (aborted, deadline_exceeded, unavailable) with exponential backoff,
// escalating to storage-fatal on exhaustion (spec.md §4.6, §7).
// storage/bigtable retries each call for at most 30 seconds
// (storage.Retry's default budget); the caller's remaining lease time
// is not passed down.
type Client interface {
	// ReadRows executes req and returns matching rows. Large requests
	// (many explicit keys) are split internally into bounded
	// sub-requests, which storage/bigtable sends one after another;
	// callers do not need to chunk themselves.
	ReadRows(ctx context.Context, req ReadRowsRequest) ([]Row, error)

	// ConditionalMutate atomically evaluates filter against row's
	// current state and applies onMatch if it matches, onMiss
	// otherwise, returning whether filter matched.
	ConditionalMutate(ctx context.Context, row []byte, filter Filter, onMatch, onMiss []Mutation) (matched bool, err error)

	// Increment atomically adds delta to counterColumn in row and
	// returns the new value. Used for per-chunk segment-id allocation
	// and the global operation-id counter (spec.md §3, §6).
	Increment(ctx context.Context, row []byte, counterColumn ColumnID, delta int64) (int64, error)

	// BulkMutate applies an unordered batch of per-row mutations.
	BulkMutate(ctx context.Context, rows map[string][]Mutation) error
}

// RowMutations is a convenience pairing of a row key with its mutation
// list, for callers assembling a BulkMutate batch.
type RowMutations struct {
	Key       []byte
	Mutations []Mutation
}

// ToBulkMutateMap flattens a []RowMutations into the map BulkMutate
// expects, keyed by the row key's string form.
func ToBulkMutateMap(rows []RowMutations) map[string][]Mutation {
	out := make(map[string][]Mutation, len(rows))
	for _, r := range rows {
		out[string(r.Key)] = r.Mutations
	}
	return out
}
