package indexer

import (
	"context"
	"time"

	"github.com/gaze-network/ledger-indexer/core/types"
)

// Input is a block-like value the indexer can order and link.
type Input interface {
	BlockHeader() types.BlockHeader
}

type IndexerWorker interface {
	Shutdown() error
	ShutdownWithContext(ctx context.Context) error
	ShutdownWithTimeout(timeout time.Duration) error
	Run(ctx context.Context) error
}

type Processor[T Input] interface {
	Name() string

	// Process processes the input data and indexes it.
	Process(ctx context.Context, inputs []T) error

	// CurrentBlock returns the latest indexed block header. Returns errs.NotFound if nothing is indexed yet.
	CurrentBlock(ctx context.Context) (types.BlockHeader, error)

	// RevertData removes indexed data from the specified height onward for re-indexing.
	RevertData(ctx context.Context, from uint64) error

	// VerifyStates verifies the states of the indexed data and repairs
	// an interrupted run before the indexer starts.
	VerifyStates(ctx context.Context) error

	// Shutdown gracefully stops the processor.
	Shutdown(ctx context.Context) error
}
