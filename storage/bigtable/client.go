// Package bigtable binds storage.Client to Google Cloud Bigtable — the
// versioned wide-column store the original system ran against
// (original_source/pychunkedgraph/graph/client/bigtable/client.go).
// One table per graph, row keys are raw 64-bit ids or control keys
// ("meta", "op"), column families are the fixed strings "0".."3"
// (spec.md §6).
package bigtable

import (
	"context"
	"encoding/binary"
	"time"

	"cloud.google.com/go/bigtable"
	"github.com/jakobtroidl/chunkedgraph/chunkederr"
	"github.com/jakobtroidl/chunkedgraph/storage"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Client wraps a *bigtable.Table as a storage.Client.
type Client struct {
	table *bigtable.Table

	// maxConcurrency is stored from Config.MaxConcurrency. ReadRows and
	// BulkMutate send their sub-requests one at a time and do not read
	// it.
	maxConcurrency int
	// readRowChunk bounds how many explicit row keys go into one
	// ReadRows sub-request (spec.md §4.6: "~20000").
	readRowChunk int
}

// Config configures Open.
type Config struct {
	ProjectID      string
	InstanceID     string
	Table          string
	MaxConcurrency int
	ReadRowChunk   int
}

// Open connects to Bigtable and returns a Client bound to one table.
func Open(ctx context.Context, cfg Config) (*Client, error) {
	btClient, err := bigtable.NewClient(ctx, cfg.ProjectID, cfg.InstanceID)
	if err != nil {
		return nil, chunkederr.Wrap(chunkederr.StorageFatal, "bigtable: connect", err)
	}
	maxConcurrency := cfg.MaxConcurrency
	if maxConcurrency <= 0 {
		maxConcurrency = 8
	}
	readRowChunk := cfg.ReadRowChunk
	if readRowChunk <= 0 {
		readRowChunk = 20000
	}
	return &Client{
		table:          btClient.Open(cfg.Table),
		maxConcurrency: maxConcurrency,
		readRowChunk:   readRowChunk,
	}, nil
}

// CreateTable creates the table and its column families. GC policy is
// set per family: every family that holds a history-bearing column
// (Parents, Connected, FormerRoots, NewRoots) keeps all versions, and
// the cross-chunk family, whose columns are all latest-only, keeps one.
// Intended for
// one-time graph creation (cmd/chunkedgraph create-graph), never called
// by the engine itself.
func CreateTable(ctx context.Context, admin *bigtable.AdminClient, table string) error {
	if err := admin.CreateTable(ctx, table); err != nil {
		return chunkederr.Wrap(chunkederr.StorageFatal, "bigtable: create table", err)
	}
	families := map[string]bigtable.GCPolicy{
		storage.FamilyParentsChildren: bigtable.NoGcPolicy(),
		storage.FamilyAdjacency:       bigtable.NoGcPolicy(),
		storage.FamilyCrossChunk:      bigtable.MaxVersionsPolicy(1),
		storage.FamilyControl:         bigtable.NoGcPolicy(),
	}
	for fam, gc := range families {
		if err := admin.CreateColumnFamily(ctx, table, fam); err != nil {
			return chunkederr.Wrap(chunkederr.StorageFatal, "bigtable: create family "+fam, err)
		}
		if err := admin.SetGCPolicy(ctx, table, fam, gc); err != nil {
			return chunkederr.Wrap(chunkederr.StorageFatal, "bigtable: set GC policy "+fam, err)
		}
	}
	return nil
}

// isTransient reports whether err is one of the gRPC status codes
// spec.md §4.6/§7 name as retryable (aborted, deadline_exceeded,
// unavailable). Everything else — including context cancellation and
// permanent failures like not_found or permission_denied — is treated
// as final.
func isTransient(err error) bool {
	if err == nil {
		return false
	}
	switch status.Code(err) {
	case codes.Aborted, codes.DeadlineExceeded, codes.Unavailable:
		return true
	default:
		return false
	}
}

// ReadRows implements storage.Client.
func (c *Client) ReadRows(ctx context.Context, req storage.ReadRowsRequest) ([]storage.Row, error) {
	var rowSets []bigtable.RowSet
	if len(req.Keys) > 0 {
		for start := 0; start < len(req.Keys); start += c.readRowChunk {
			end := start + c.readRowChunk
			if end > len(req.Keys) {
				end = len(req.Keys)
			}
			keys := make(bigtable.RowList, 0, end-start)
			for _, k := range req.Keys[start:end] {
				keys = append(keys, string(k))
			}
			rowSets = append(rowSets, keys)
		}
	} else {
		rowSets = append(rowSets, bigtable.NewRange(string(req.StartKey), string(req.EndKey)))
	}

	var opts []bigtable.ReadOption
	if filter := buildReadFilter(req); filter != nil {
		opts = append(opts, bigtable.RowFilter(filter))
	}
	if req.Limit > 0 {
		opts = append(opts, bigtable.LimitRows(0)) // row limit not used; cell limit enforced via filter above
	}

	var out []storage.Row
	var outErr error
	err := storage.Retry(ctx, 0, func(ctx context.Context) error {
		out = out[:0]
		for _, rs := range rowSets {
			walkErr := c.table.ReadRows(ctx, rs, func(row bigtable.Row) bool {
				out = append(out, convertRow(row))
				return true
			}, opts...)
			if walkErr != nil {
				if isTransient(walkErr) {
					return &storage.TransientError{Err: walkErr}
				}
				outErr = chunkederr.Wrap(chunkederr.StorageFatal, "bigtable: read rows", walkErr)
				return nil
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, outErr
}

func buildReadFilter(req storage.ReadRowsRequest) bigtable.Filter {
	var filters []bigtable.Filter
	if len(req.Columns) > 0 {
		var colFilters []bigtable.Filter
		for _, col := range req.Columns {
			colFilters = append(colFilters, bigtable.ChainFilters(
				bigtable.FamilyFilter(col.Family),
				bigtable.ColumnFilter(col.Qualifier),
			))
		}
		filters = append(filters, bigtable.InterleaveFilters(colFilters...))
	}
	if !req.Range.Start.IsZero() || !req.Range.End.IsZero() {
		filters = append(filters, bigtable.TimestampRangeFilter(req.Range.Start, req.Range.End))
	}
	if req.Limit > 0 {
		filters = append(filters, bigtable.LatestNFilter(req.Limit))
	}
	if len(filters) == 0 {
		return nil
	}
	return bigtable.ChainFilters(filters...)
}

func convertRow(row bigtable.Row) storage.Row {
	out := storage.Row{Key: []byte(row.Key()), Columns: make(map[storage.ColumnID][]storage.Cell)}
	for family, items := range row {
		for _, item := range items {
			col := storage.ColumnID{Family: family, Qualifier: qualifierOf(item.Column)}
			out.Columns[col] = append(out.Columns[col], storage.Cell{
				Timestamp: item.Timestamp.Time(),
				Value:     item.Value,
			})
		}
	}
	return out
}

// qualifierOf strips the "family:" prefix bigtable.Row's ReadItem
// carries on Column.
func qualifierOf(column string) string {
	for i, r := range column {
		if r == ':' {
			return column[i+1:]
		}
	}
	return column
}

// ConditionalMutate implements storage.Client.
func (c *Client) ConditionalMutate(ctx context.Context, row []byte, filter storage.Filter, onMatch, onMiss []storage.Mutation) (bool, error) {
	var predicate bigtable.Filter
	if filter.ColumnEmpty {
		predicate = bigtable.ChainFilters(
			bigtable.FamilyFilter(filter.Column.Family),
			bigtable.ColumnFilter(filter.Column.Qualifier),
		)
	} else {
		predicate = bigtable.ChainFilters(
			bigtable.FamilyFilter(filter.Column.Family),
			bigtable.ColumnFilter(filter.Column.Qualifier),
			bigtable.TimestampRangeFilter(filter.CellTimestampAfter, time.Time{}),
		)
	}

	mutTrue := toBigtableMutation(onMatch)
	mutFalse := toBigtableMutation(onMiss)
	// ColumnEmpty semantics invert bigtable's "filter matched" meaning:
	// a present+fresh cell means "matched" for ColumnEmpty=false, but for
	// ColumnEmpty=true we want "matched" to mean "column absent", i.e.
	// the predicate (which matches when present) selects the false-branch.
	if filter.ColumnEmpty {
		mutTrue, mutFalse = mutFalse, mutTrue
	}
	cond := bigtable.NewCondMutation(predicate, mutTrue, mutFalse)

	var matched bool
	err := storage.Retry(ctx, 0, func(ctx context.Context) error {
		applyErr := c.table.Apply(ctx, string(row), cond, bigtable.GetCondMutationResult(&matched))
		if applyErr != nil {
			if isTransient(applyErr) {
				return &storage.TransientError{Err: applyErr}
			}
			return chunkederr.Wrap(chunkederr.StorageFatal, "bigtable: conditional mutate", applyErr)
		}
		return nil
	})
	if err != nil {
		return false, err
	}
	if filter.ColumnEmpty {
		matched = !matched
	}
	return matched, nil
}

func toBigtableMutation(muts []storage.Mutation) *bigtable.Mutation {
	m := bigtable.NewMutation()
	for _, mut := range muts {
		if mut.Delete {
			m.DeleteCellsInColumn(mut.Column.Family, mut.Column.Qualifier)
			continue
		}
		ts := bigtable.Now()
		if !mut.Timestamp.IsZero() {
			ts = bigtable.Time(mut.Timestamp)
		}
		m.Set(mut.Column.Family, mut.Column.Qualifier, ts, mut.Value)
	}
	return m
}

// Increment implements storage.Client. Real Bigtable counter cells are
// big-endian int64, unlike the little-endian encoding storage/codec.go
// uses for ordinary attribute values — this is an artifact of the
// Bigtable wire protocol, confined entirely to this adapter.
func (c *Client) Increment(ctx context.Context, row []byte, col storage.ColumnID, delta int64) (int64, error) {
	rmw := bigtable.NewReadModifyWrite()
	rmw.Increment(col.Family, col.Qualifier, delta)

	var result int64
	err := storage.Retry(ctx, 0, func(ctx context.Context) error {
		r, applyErr := c.table.ApplyReadModifyWrite(ctx, string(row), rmw)
		if applyErr != nil {
			if isTransient(applyErr) {
				return &storage.TransientError{Err: applyErr}
			}
			return chunkederr.Wrap(chunkederr.StorageFatal, "bigtable: increment", applyErr)
		}
		items := r[col.Family]
		for _, item := range items {
			if qualifierOf(item.Column) == col.Qualifier && len(item.Value) == 8 {
				result = int64(binary.BigEndian.Uint64(item.Value))
			}
		}
		return nil
	})
	return result, err
}

// BulkMutate implements storage.Client.
func (c *Client) BulkMutate(ctx context.Context, rows map[string][]storage.Mutation) error {
	keys := make([]string, 0, len(rows))
	muts := make([]*bigtable.Mutation, 0, len(rows))
	for k, m := range rows {
		keys = append(keys, k)
		muts = append(muts, toBigtableMutation(m))
	}

	for start := 0; start < len(keys); start += c.readRowChunk {
		end := start + c.readRowChunk
		if end > len(keys) {
			end = len(keys)
		}
		batchKeys, batchMuts := keys[start:end], muts[start:end]
		err := storage.Retry(ctx, 0, func(ctx context.Context) error {
			errs, applyErr := c.table.ApplyBulk(ctx, batchKeys, batchMuts)
			if applyErr != nil {
				if isTransient(applyErr) {
					return &storage.TransientError{Err: applyErr}
				}
				return chunkederr.Wrap(chunkederr.StorageFatal, "bigtable: bulk mutate", applyErr)
			}
			for _, e := range errs {
				if e != nil && isTransient(e) {
					return &storage.TransientError{Err: e}
				}
			}
			return nil
		})
		if err != nil {
			return err
		}
	}
	return nil
}

var _ storage.Client = (*Client)(nil)
