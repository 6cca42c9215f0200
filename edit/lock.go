package edit

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/jakobtroidl/chunkedgraph/chunkederr"
	"github.com/jakobtroidl/chunkedgraph/graphmodel"
	"github.com/jakobtroidl/chunkedgraph/storage"
)

// leaseToken is the value written to a root's Concurrency.Lock cell
// (spec.md §4.5.1). SPEC_FULL.md §5 has the rationale: Token is a
// uuid.New() value distinct from OpID, so a renewed lease can be told
// apart from a stale one that happens to carry the same operation id
// after a crash-restart.
type leaseToken struct {
	OpID  uint64
	Token uuid.UUID
}

func encodeLease(l leaseToken) []byte {
	b := make([]byte, 24)
	copy(b[:8], storage.EncodeUint64(l.OpID))
	copy(b[8:], l.Token[:])
	return b
}

func decodeLease(b []byte) (leaseToken, error) {
	if len(b) != 24 {
		return leaseToken{}, chunkederr.Newf(chunkederr.InternalInvariant, "edit: lease cell has %d bytes, want 24", len(b))
	}
	opID, err := storage.DecodeUint64(b[:8])
	if err != nil {
		return leaseToken{}, chunkederr.Wrap(chunkederr.InternalInvariant, "edit: decode lease op id", err)
	}
	var tok uuid.UUID
	copy(tok[:], b[8:])
	return leaseToken{OpID: opID, Token: tok}, nil
}

// acquireLock attempts to take root's lease. The storage.Filter type
// can only express "does an unexpired cell exist", not a value
// comparison, so ownership verification on renew/release happens one
// layer up, via readLease plus an application-level equality check —
// a deliberate simplification of the narrower Filter primitive.
func (e *Engine) acquireLock(ctx context.Context, root uint64, lease leaseToken) (bool, error) {
	filter := storage.Filter{
		Column:             storage.AttrLock.Column,
		CellTimestampAfter: time.Now().Add(-e.Locking.LockExpiry),
	}
	onMiss := []storage.Mutation{{Column: storage.AttrLock.Column, Value: encodeLease(lease)}}
	matched, err := e.Store.Client.ConditionalMutate(ctx, graphmodel.RowKey(root), filter, nil, onMiss)
	if err != nil {
		return false, chunkederr.Wrap(chunkederr.StorageTransient, "edit: acquire lock", err)
	}
	return !matched, nil
}

func (e *Engine) readLease(ctx context.Context, root uint64) (leaseToken, error) {
	rows, err := e.Store.Client.ReadRows(ctx, storage.ReadRowsRequest{
		Keys:    [][]byte{graphmodel.RowKey(root)},
		Columns: []storage.ColumnID{storage.AttrLock.Column},
		Limit:   1,
	})
	if err != nil {
		return leaseToken{}, chunkederr.Wrap(chunkederr.StorageTransient, "edit: read lease", err)
	}
	if len(rows) == 0 {
		return leaseToken{}, chunkederr.New(chunkederr.NotFound, "edit: root has no lease cell")
	}
	cells := rows[0].Columns[storage.AttrLock.Column]
	if len(cells) == 0 {
		return leaseToken{}, chunkederr.New(chunkederr.NotFound, "edit: root has no lease cell")
	}
	return decodeLease(cells[0].Value)
}

// releaseLock drops root's lease iff it is still held by lease —
// best-effort ownership verification, since a release racing an
// expiry-then-reacquire by someone else must never clobber the new
// owner's lease.
func (e *Engine) releaseLock(ctx context.Context, root uint64, lease leaseToken) error {
	current, err := e.readLease(ctx, root)
	if err != nil {
		if chunkederr.OfKind(err, chunkederr.NotFound) {
			return nil
		}
		return err
	}
	if current.OpID != lease.OpID || current.Token != lease.Token {
		return nil // already superseded by a later lease; nothing to release
	}
	err = e.Store.Client.BulkMutate(ctx, map[string][]storage.Mutation{
		string(graphmodel.RowKey(root)): {{Column: storage.AttrLock.Column, Delete: true}},
	})
	if err != nil {
		return chunkederr.Wrap(chunkederr.StorageTransient, "edit: release lock", err)
	}
	return nil
}

func (e *Engine) releaseAll(ctx context.Context, roots []uint64, lease leaseToken) {
	for _, r := range roots {
		_ = e.releaseLock(ctx, r, lease) // best-effort: an unreleased lease just expires on its own
	}
}

// resolveLiveRoots replaces any superseded root id with its current
// live descendant(s) via GetFutureRootIDs, so a lock attempt racing a
// concurrent edit targets the roots that actually exist now (spec.md
// §4.5.1: "resolve via the FormerRoots/NewRoots chain before retrying").
func (e *Engine) resolveLiveRoots(ctx context.Context, ids []uint64) ([]uint64, error) {
	seen := make(map[uint64]bool, len(ids))
	var out []uint64
	for _, id := range ids {
		future, err := e.Store.GetFutureRootIDs(ctx, id)
		if err != nil {
			return nil, err
		}
		if len(future) == 0 {
			if !seen[id] {
				seen[id] = true
				out = append(out, id)
			}
			continue
		}
		for _, f := range future {
			if !seen[f] {
				seen[f] = true
				out = append(out, f)
			}
		}
	}
	sortUint64InPlace(out)
	return out, nil
}

// lockRoots acquires an exclusive lease on every live root descending
// from ids, retrying up to Locking.MaxTries times with exponential
// backoff on contention (spec.md §4.5.1). Every attempt re-resolves
// ids to their current live roots first, since a prior attempt's
// failure may have been caused by — or itself caused — a concurrent
// edit superseding one of them.
func (e *Engine) lockRoots(ctx context.Context, ids []uint64, opID uint64) ([]uint64, leaseToken, error) {
	lease := leaseToken{OpID: opID, Token: uuid.New()}
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 25 * time.Millisecond
	bo.MaxInterval = e.Locking.LockExpiry / 2

	var resolved []uint64
	for tries := 1; ; tries++ {
		var err error
		resolved, err = e.resolveLiveRoots(ctx, ids)
		if err != nil {
			return nil, leaseToken{}, err
		}

		held := make([]uint64, 0, len(resolved))
		ok := true
		for _, r := range resolved {
			got, err := e.acquireLock(ctx, r, lease)
			if err != nil {
				e.releaseAll(ctx, held, lease)
				return nil, leaseToken{}, err
			}
			if !got {
				ok = false
				break
			}
			held = append(held, r)
		}
		if ok {
			return held, lease, nil
		}
		e.releaseAll(ctx, held, lease)

		if tries >= e.Locking.MaxTries {
			return nil, leaseToken{}, chunkederr.Newf(chunkederr.LockingConflict, "edit: could not acquire locks on %v after %d tries", resolved, tries)
		}
		wait := bo.NextBackOff()
		if wait == backoff.Stop {
			wait = bo.MaxInterval
		}
		select {
		case <-ctx.Done():
			return nil, leaseToken{}, ctx.Err()
		case <-time.After(wait):
		}
	}
}
