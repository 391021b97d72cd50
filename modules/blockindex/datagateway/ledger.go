package datagateway

import (
	"context"

	"github.com/gaze-network/ledger-indexer/core/types"
)

// LedgerDataGateway reads committed blocks from the ledger block storage.
type LedgerDataGateway interface {
	// GetBlock returns the block at height. Returns errs.NotFound if it is not stored.
	GetBlock(ctx context.Context, height uint64) (*types.Block, error)
	// GetBlocks returns the stored blocks with from <= height <= to in height order.
	GetBlocks(ctx context.Context, from, to uint64) ([]*types.Block, error)
	// GetBlockHeader returns the header of the block at height. Returns errs.NotFound if it is not stored.
	GetBlockHeader(ctx context.Context, height uint64) (types.BlockHeader, error)
}
