package datasources

import (
	"context"

	"github.com/gaze-network/ledger-indexer/core/types"
	"github.com/gaze-network/ledger-indexer/internal/subscription"
)

// Datasource is an interface for indexer data sources.
//
//   - from: height to start fetching, if -1, it will start from the first stored height
//   - to: height to stop fetching, if -1, it will fetch until the latest height
type Datasource[T any] interface {
	Name() string
	Fetch(ctx context.Context, from, to int64) ([]T, error)
	FetchAsync(ctx context.Context, from, to int64, ch chan<- []T) (*subscription.ClientSubscription[[]T], error)
	GetBlockHeader(ctx context.Context, height uint64) (types.BlockHeader, error)
}
