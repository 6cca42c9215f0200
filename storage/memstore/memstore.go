// Package memstore is an in-process fake of storage.Client, used by
// edit/ingest tests and by the literal end-to-end scenarios in
// spec.md §8. It implements the same versioned-cell, conditional-
// mutation, atomic-increment semantics as the real Bigtable binding
// (storage/bigtable) so tests exercise the engine's actual read/write
// patterns rather than a simplified stand-in.
package memstore

import (
	"bytes"
	"context"
	"sort"
	"sync"
	"time"

	"github.com/jakobtroidl/chunkedgraph/storage"
)

var _ storage.Client = (*Store)(nil)

// Store is a thread-safe, versioned, in-memory column store.
type Store struct {
	mu   sync.Mutex
	rows map[string]map[storage.ColumnID][]storage.Cell // newest-first per column
	clk  int64                                            // last timestamp handed out, in Unix nanoseconds
}

// New returns an empty Store.
func New() *Store {
	return &Store{rows: make(map[string]map[storage.ColumnID][]storage.Cell)}
}

// now returns a strictly increasing wall-clock timestamp, so successive
// writes in a single test process never tie and lease cells compare
// correctly against filters built from time.Now (edit/lock.go).
func (s *Store) now() time.Time {
	n := time.Now().UnixNano()
	if n <= s.clk {
		n = s.clk + 1
	}
	s.clk = n
	return time.Unix(0, n)
}

func (s *Store) ReadRows(ctx context.Context, req storage.ReadRowsRequest) ([]storage.Row, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var keys [][]byte
	if len(req.Keys) > 0 {
		keys = req.Keys
	} else {
		for k := range s.rows {
			kb := []byte(k)
			if req.StartKey != nil && bytes.Compare(kb, req.StartKey) < 0 {
				continue
			}
			if req.EndKey != nil && bytes.Compare(kb, req.EndKey) >= 0 {
				continue
			}
			keys = append(keys, kb)
		}
		sort.Slice(keys, func(i, j int) bool { return bytes.Compare(keys[i], keys[j]) < 0 })
	}

	columnWanted := func(c storage.ColumnID) bool {
		if len(req.Columns) == 0 {
			return true
		}
		for _, w := range req.Columns {
			if w == c {
				return true
			}
		}
		return false
	}

	var out []storage.Row
	for _, k := range keys {
		cols, ok := s.rows[string(k)]
		if !ok {
			continue
		}
		row := storage.Row{Key: append([]byte(nil), k...), Columns: make(map[storage.ColumnID][]storage.Cell)}
		for col, cells := range cols {
			if !columnWanted(col) {
				continue
			}
			var filtered []storage.Cell
			for _, c := range cells {
				if !req.Range.Start.IsZero() && c.Timestamp.Before(req.Range.Start) {
					continue
				}
				if !req.Range.End.IsZero() && !c.Timestamp.Before(req.Range.End) {
					continue
				}
				filtered = append(filtered, c)
			}
			if req.Limit > 0 && len(filtered) > req.Limit {
				filtered = filtered[:req.Limit]
			}
			if len(filtered) > 0 {
				row.Columns[col] = filtered
			}
		}
		if len(row.Columns) > 0 {
			out = append(out, row)
		}
	}
	return out, nil
}

func (s *Store) ConditionalMutate(ctx context.Context, row []byte, filter storage.Filter, onMatch, onMiss []storage.Mutation) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cols := s.rows[string(row)]
	var matched bool
	if filter.ColumnEmpty {
		matched = len(cols[filter.Column]) == 0
	} else {
		matched = false
		for _, c := range cols[filter.Column] {
			if !c.Timestamp.Before(filter.CellTimestampAfter) {
				matched = true
				break
			}
		}
	}

	apply := onMiss
	if matched {
		apply = onMatch
	}
	s.applyMutationsLocked(string(row), apply)
	return matched, nil
}

func (s *Store) Increment(ctx context.Context, row []byte, col storage.ColumnID, delta int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := string(row)
	cols := s.rows[key]
	if cols == nil {
		cols = make(map[storage.ColumnID][]storage.Cell)
		s.rows[key] = cols
	}
	var cur int64
	if cells := cols[col]; len(cells) > 0 {
		v, err := storage.DecodeUint64(cells[0].Value)
		if err == nil {
			cur = int64(v)
		}
	}
	next := cur + delta
	cols[col] = []storage.Cell{{Timestamp: s.now(), Value: storage.EncodeUint64(uint64(next))}}
	return next, nil
}

func (s *Store) BulkMutate(ctx context.Context, rows map[string][]storage.Mutation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for key, muts := range rows {
		s.applyMutationsLocked(key, muts)
	}
	return nil
}

// applyMutationsLocked must be called with s.mu held.
func (s *Store) applyMutationsLocked(key string, muts []storage.Mutation) {
	if len(muts) == 0 {
		return
	}
	cols := s.rows[key]
	if cols == nil {
		cols = make(map[storage.ColumnID][]storage.Cell)
		s.rows[key] = cols
	}
	for _, m := range muts {
		if m.Delete {
			delete(cols, m.Column)
			continue
		}
		ts := m.Timestamp
		if ts.IsZero() {
			ts = s.now()
		}
		cell := storage.Cell{Timestamp: ts, Value: m.Value}
		// Newest-first: prepend.
		cols[m.Column] = append([]storage.Cell{cell}, cols[m.Column]...)
		sort.Slice(cols[m.Column], func(i, j int) bool {
			return cols[m.Column][i].Timestamp.After(cols[m.Column][j].Timestamp)
		})
	}
}
