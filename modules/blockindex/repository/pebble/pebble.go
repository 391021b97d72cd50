// Package pebble is an embedded index store for single node deployments.
//
// The Redis types are laid out over ordered keys:
//
//	("s", key)             -> value        string
//	("m", key, member)     -> ""           set member
//	("n", key)             -> length       list length
//	("l", key, index)      -> element      list element
//
// Tuples are encoded with orderedcode, so a key is never a byte prefix of a
// different key in the same family and list elements sort by index.
package pebble

import (
	"context"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/pebble"
	"github.com/gaze-network/ledger-indexer/common/errs"
	"github.com/gaze-network/ledger-indexer/modules/blockindex/datagateway"
	"github.com/google/orderedcode"
	"github.com/samber/lo"
)

const (
	familyString   = "s"
	familyMember   = "m"
	familyListLen  = "n"
	familyListElem = "l"
)

var _ datagateway.IndexDataGateway = (*Repository)(nil)

type Repository struct {
	db        *pebble.DB
	writeOpts *pebble.WriteOptions

	// mu serializes writers; list appends read the list length first.
	mu sync.Mutex
}

// Open opens (or creates) the store in dir.
func Open(dir string) (*Repository, error) {
	db, err := pebble.Open(dir, &pebble.Options{})
	if err != nil {
		return nil, errors.Wrapf(err, "can't open pebble store at %q", dir)
	}
	return NewRepository(db), nil
}

func NewRepository(db *pebble.DB) *Repository {
	return &Repository{
		db:        db,
		writeOpts: pebble.Sync,
	}
}

func (r *Repository) Set(ctx context.Context, key, value string) error {
	return r.Pipelined(ctx, func(w datagateway.IndexWriter) error {
		return w.Set(ctx, key, value)
	})
}

func (r *Repository) SAdd(ctx context.Context, key, member string) error {
	return r.Pipelined(ctx, func(w datagateway.IndexWriter) error {
		return w.SAdd(ctx, key, member)
	})
}

func (r *Repository) RPush(ctx context.Context, key, value string) error {
	return r.Pipelined(ctx, func(w datagateway.IndexWriter) error {
		return w.RPush(ctx, key, value)
	})
}

// Pipelined collects the writes of fn in one batch and commits it when fn returns.
// Nothing is committed if fn fails.
func (r *Repository) Pipelined(_ context.Context, fn func(w datagateway.IndexWriter) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	batch := r.db.NewIndexedBatch()
	defer batch.Close()

	if err := fn(&batchWriter{batch: batch}); err != nil {
		return errors.WithStack(err)
	}
	if err := batch.Commit(r.writeOpts); err != nil {
		return errors.Wrap(err, "failed to commit batch")
	}
	return nil
}

type batchWriter struct {
	batch *pebble.Batch
}

func (w *batchWriter) Set(_ context.Context, key, value string) error {
	return errors.WithStack(w.batch.Set(encodeKey(familyString, key), []byte(value), nil))
}

func (w *batchWriter) SAdd(_ context.Context, key, member string) error {
	return errors.WithStack(w.batch.Set(encodeKey(familyMember, key, member), nil, nil))
}

func (w *batchWriter) RPush(_ context.Context, key, value string) error {
	lenKey := encodeKey(familyListLen, key)
	n, err := getUint64(w.batch, lenKey)
	if err != nil {
		return errors.WithStack(err)
	}
	if err := w.batch.Set(encodeKey(familyListElem, key, n), []byte(value), nil); err != nil {
		return errors.WithStack(err)
	}
	return errors.WithStack(w.batch.Set(lenKey, encodeKey(n+1), nil))
}

func (r *Repository) Get(_ context.Context, key string) (string, error) {
	value, closer, err := r.db.Get(encodeKey(familyString, key))
	if err != nil {
		if errors.Is(err, pebble.ErrNotFound) {
			return "", errors.Wrapf(errs.NotFound, "key %q", key)
		}
		return "", errors.Wrapf(err, "failed to get %q", key)
	}
	defer closer.Close()
	return string(value), nil
}

func (r *Repository) SMembers(_ context.Context, key string) ([]string, error) {
	prefix := encodeKey(familyMember, key)
	iter, err := r.db.NewIter(&pebble.IterOptions{
		LowerBound: prefix,
		UpperBound: prefixEnd(prefix),
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to create iterator")
	}
	defer iter.Close()

	members := make([]string, 0)
	for iter.First(); iter.Valid(); iter.Next() {
		var family, k, member string
		if _, err := orderedcode.Parse(string(iter.Key()), &family, &k, &member); err != nil {
			return nil, errors.Wrapf(errs.InternalError, "malformed set member key: %v", err)
		}
		members = append(members, member)
	}
	return members, errors.WithStack(iter.Error())
}

func (r *Repository) LRange(_ context.Context, key string, start, stop int64) ([]string, error) {
	n, err := getUint64(r.db, encodeKey(familyListLen, key))
	if err != nil {
		return nil, errors.WithStack(err)
	}
	from, to, ok := datagateway.NormalizeRange(int64(n), start, stop)
	if !ok {
		return []string{}, nil
	}

	iter, err := r.db.NewIter(&pebble.IterOptions{
		LowerBound: encodeKey(familyListElem, key, uint64(from)),
		UpperBound: encodeKey(familyListElem, key, uint64(to)+1),
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to create iterator")
	}
	defer iter.Close()

	values := make([]string, 0, to-from+1)
	for iter.First(); iter.Valid(); iter.Next() {
		values = append(values, string(iter.Value()))
	}
	return values, errors.WithStack(iter.Error())
}

func (r *Repository) Del(_ context.Context, keys ...string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	batch := r.db.NewBatch()
	defer batch.Close()
	for _, key := range keys {
		memberPrefix := encodeKey(familyMember, key)
		elemPrefix := encodeKey(familyListElem, key)
		if err := errors.CombineErrors(
			batch.Delete(encodeKey(familyString, key), nil),
			batch.Delete(encodeKey(familyListLen, key), nil),
		); err != nil {
			return errors.WithStack(err)
		}
		if err := errors.CombineErrors(
			batch.DeleteRange(memberPrefix, prefixEnd(memberPrefix), nil),
			batch.DeleteRange(elemPrefix, prefixEnd(elemPrefix), nil),
		); err != nil {
			return errors.WithStack(err)
		}
	}
	if err := batch.Commit(r.writeOpts); err != nil {
		return errors.Wrap(err, "failed to commit delete batch")
	}
	return nil
}

func (r *Repository) SRem(_ context.Context, key string, members ...string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	batch := r.db.NewBatch()
	defer batch.Close()
	for _, member := range members {
		if err := batch.Delete(encodeKey(familyMember, key, member), nil); err != nil {
			return errors.WithStack(err)
		}
	}
	if err := batch.Commit(r.writeOpts); err != nil {
		return errors.Wrap(err, "failed to commit delete batch")
	}
	return nil
}

func (r *Repository) DelIfEquals(ctx context.Context, key, value string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	current, err := r.Get(ctx, key)
	if err != nil {
		if errors.Is(err, errs.NotFound) {
			return false, nil
		}
		return false, errors.WithStack(err)
	}
	if current != value {
		return false, nil
	}
	if err := r.db.Delete(encodeKey(familyString, key), r.writeOpts); err != nil {
		return false, errors.Wrapf(err, "failed to delete %q", key)
	}
	return true, nil
}

func (r *Repository) Close() error {
	return errors.WithStack(r.db.Close())
}

func encodeKey(items ...any) []byte {
	return lo.Must(orderedcode.Append(nil, items...))
}

// getUint64 reads an encoded counter, zero if it doesn't exist.
func getUint64(reader pebble.Reader, key []byte) (uint64, error) {
	value, closer, err := reader.Get(key)
	if err != nil {
		if errors.Is(err, pebble.ErrNotFound) {
			return 0, nil
		}
		return 0, errors.Wrap(err, "failed to get counter")
	}
	defer closer.Close()

	var n uint64
	if _, err := orderedcode.Parse(string(value), &n); err != nil {
		return 0, errors.Wrapf(errs.InternalError, "malformed counter: %v", err)
	}
	return n, nil
}

// prefixEnd returns the smallest key greater than every key with prefix.
func prefixEnd(prefix []byte) []byte {
	end := make([]byte, len(prefix))
	copy(end, prefix)
	for i := len(end) - 1; i >= 0; i-- {
		end[i]++
		if end[i] != 0 {
			return end[:i+1]
		}
	}
	// prefix is all 0xff, no upper bound
	return nil
}
