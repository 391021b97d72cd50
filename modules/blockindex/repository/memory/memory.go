// Package memory is an in-process index store with the key semantics of the
// Redis backend. It is used by tests and by local runs without a Redis server.
package memory

import (
	"context"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/gaze-network/ledger-indexer/common/errs"
	"github.com/gaze-network/ledger-indexer/modules/blockindex/datagateway"
	"github.com/gaze-network/ledger-indexer/modules/blockindex/internal/entity"
	"github.com/samber/lo"
)

var (
	_ datagateway.IndexDataGateway        = (*Repository)(nil)
	_ datagateway.IndexerStateDataGateway = (*Repository)(nil)
)

// ErrWrongType is returned when a command is applied to a key holding a different kind of value.
var ErrWrongType = errors.Wrap(errs.ConflictSetting, "operation against a key holding the wrong kind of value")

type Repository struct {
	mu sync.RWMutex

	// values holds string, set (map[string]struct{}) and list ([]string) entries.
	values map[string]any
	states []entity.IndexerState
}

func NewRepository() *Repository {
	return &Repository{
		values: make(map[string]any),
	}
}

func (r *Repository) Set(_ context.Context, key, value string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.values[key] = value
	return nil
}

func (r *Repository) SAdd(_ context.Context, key, member string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	set, err := r.set(key)
	if err != nil {
		return errors.Wrapf(err, "key %q", key)
	}
	if set == nil {
		set = make(map[string]struct{})
		r.values[key] = set
	}
	set[member] = struct{}{}
	return nil
}

func (r *Repository) RPush(_ context.Context, key, value string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	list, err := r.list(key)
	if err != nil {
		return errors.Wrapf(err, "key %q", key)
	}
	r.values[key] = append(list, value)
	return nil
}

// Pipelined runs fn directly against the repository; writes are applied as they are issued.
func (r *Repository) Pipelined(_ context.Context, fn func(w datagateway.IndexWriter) error) error {
	return fn(r)
}

func (r *Repository) Get(_ context.Context, key string) (string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	v, ok := r.values[key]
	if !ok {
		return "", errors.Wrapf(errs.NotFound, "key %q", key)
	}
	s, ok := v.(string)
	if !ok {
		return "", errors.Wrapf(ErrWrongType, "key %q", key)
	}
	return s, nil
}

func (r *Repository) SMembers(_ context.Context, key string) ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	set, err := r.set(key)
	if err != nil {
		return nil, errors.Wrapf(err, "key %q", key)
	}
	return lo.Keys(set), nil
}

func (r *Repository) LRange(_ context.Context, key string, start, stop int64) ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	list, err := r.list(key)
	if err != nil {
		return nil, errors.Wrapf(err, "key %q", key)
	}
	from, to, ok := datagateway.NormalizeRange(int64(len(list)), start, stop)
	if !ok {
		return []string{}, nil
	}
	out := make([]string, to-from+1)
	copy(out, list[from:to+1])
	return out, nil
}

func (r *Repository) Del(_ context.Context, keys ...string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, key := range keys {
		delete(r.values, key)
	}
	return nil
}

func (r *Repository) SRem(_ context.Context, key string, members ...string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	set, err := r.set(key)
	if err != nil {
		return errors.Wrapf(err, "key %q", key)
	}
	for _, member := range members {
		delete(set, member)
	}
	if set != nil && len(set) == 0 {
		delete(r.values, key)
	}
	return nil
}

func (r *Repository) DelIfEquals(_ context.Context, key, value string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if v, ok := r.values[key].(string); ok && v == value {
		delete(r.values, key)
		return true, nil
	}
	return false, nil
}

func (r *Repository) Close() error {
	return nil
}

// Keys returns every key currently stored.
func (r *Repository) Keys() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return lo.Keys(r.values)
}

func (r *Repository) GetLatestIndexerState(_ context.Context) (entity.IndexerState, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if len(r.states) == 0 {
		return entity.IndexerState{}, errors.WithStack(errs.NotFound)
	}
	return r.states[len(r.states)-1], nil
}

func (r *Repository) SetIndexerState(_ context.Context, state entity.IndexerState) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.states = append(r.states, state)
	return nil
}

// set returns the set at key, nil if the key does not exist.
func (r *Repository) set(key string) (map[string]struct{}, error) {
	v, ok := r.values[key]
	if !ok {
		return nil, nil
	}
	set, ok := v.(map[string]struct{})
	if !ok {
		return nil, errors.WithStack(ErrWrongType)
	}
	return set, nil
}

// list returns the list at key, nil if the key does not exist.
func (r *Repository) list(key string) ([]string, error) {
	v, ok := r.values[key]
	if !ok {
		return nil, nil
	}
	list, ok := v.([]string)
	if !ok {
		return nil, errors.WithStack(ErrWrongType)
	}
	return list, nil
}
