package edit

import (
	"errors"
	"sort"

	"github.com/jakobtroidl/chunkedgraph/chunkederr"
)

func sortUint64InPlace(ids []uint64) {
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
}

func sortedUint64Keys(m map[uint64][]uint64) []uint64 {
	out := make([]uint64, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sortUint64InPlace(out)
	return out
}

// unionUint64 returns the sorted, deduplicated union of a and b.
func unionUint64(a, b []uint64) []uint64 {
	set := make(map[uint64]bool, len(a)+len(b))
	for _, x := range a {
		set[x] = true
	}
	for _, x := range b {
		set[x] = true
	}
	out := make([]uint64, 0, len(set))
	for x := range set {
		out = append(out, x)
	}
	sortUint64InPlace(out)
	return out
}

// removeUint64 returns ids with every occurrence of any of drop removed.
func removeUint64(ids []uint64, drop ...uint64) []uint64 {
	if len(drop) == 0 {
		return append([]uint64(nil), ids...)
	}
	skip := make(map[uint64]bool, len(drop))
	for _, d := range drop {
		skip[d] = true
	}
	out := make([]uint64, 0, len(ids))
	for _, id := range ids {
		if !skip[id] {
			out = append(out, id)
		}
	}
	return out
}

// withOp attaches opID to a *chunkederr.Error without disturbing any
// other error type, so callers can annotate every exit path of a
// locked operation with one line regardless of which layer raised it.
func withOp(err error, opID uint64) error {
	if err == nil {
		return nil
	}
	var ce *chunkederr.Error
	if errors.As(err, &ce) {
		return ce.WithOperation(opID)
	}
	return err
}
