package datagateway

import (
	"context"
)

// IndexWriter is the write capability the block indexer depends on. Values are
// decimal strings; the store never interprets them.
type IndexWriter interface {
	// Set stores value at key, replacing any previous value.
	Set(ctx context.Context, key, value string) error
	// SAdd adds member to the set at key.
	SAdd(ctx context.Context, key, member string) error
	// RPush appends value to the tail of the list at key.
	RPush(ctx context.Context, key, value string) error
}

type IndexWriterDataGateway interface {
	IndexWriter

	// Pipelined calls fn with a writer that batches its writes and sends them in
	// issue order when fn returns. It returns the first failing write, if any.
	// Depending on the backend, writes of a failed batch may already be applied.
	Pipelined(ctx context.Context, fn func(w IndexWriter) error) error
}

type IndexReaderDataGateway interface {
	// Get returns the value at key. Returns errs.NotFound if the key does not exist.
	Get(ctx context.Context, key string) (string, error)
	// SMembers returns the members of the set at key in no particular order.
	SMembers(ctx context.Context, key string) ([]string, error)
	// LRange returns the elements of the list at key between start and stop
	// inclusive. Negative offsets count from the tail, -1 being the last element.
	LRange(ctx context.Context, key string, start, stop int64) ([]string, error)
}

type IndexPurgerDataGateway interface {
	// Del removes keys of any kind. Missing keys are ignored.
	Del(ctx context.Context, keys ...string) error
	// SRem removes members from the set at key.
	SRem(ctx context.Context, key string, members ...string) error
	// DelIfEquals removes key only if it holds value, and reports whether it did.
	DelIfEquals(ctx context.Context, key, value string) (bool, error)
}

// IndexDataGateway is a complete index store backend.
type IndexDataGateway interface {
	IndexWriterDataGateway
	IndexReaderDataGateway
	IndexPurgerDataGateway

	Close() error
}
