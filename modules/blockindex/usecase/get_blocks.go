package usecase

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/gaze-network/ledger-indexer/common/errs"
	"github.com/gaze-network/ledger-indexer/core/types"
)

// GetBlocksMaxRange is the largest number of blocks GetBlocks returns at once.
const GetBlocksMaxRange = 100

func (u *Usecase) GetBlocks(ctx context.Context, from, to uint64) ([]*types.Block, error) {
	if from > to {
		return nil, errors.Wrapf(errs.InvalidArgument, "from %d is greater than to %d", from, to)
	}
	if to-from >= GetBlocksMaxRange {
		return nil, errors.Wrapf(errs.InvalidArgument, "range %d-%d exceeds %d blocks", from, to, GetBlocksMaxRange)
	}
	blocks, err := u.ledgerDg.GetBlocks(ctx, from, to)
	if err != nil {
		return nil, errors.Wrap(err, "failed to get blocks")
	}
	return blocks, nil
}

// GetLatestBlock returns the header of the last indexed block. Returns errs.NotFound if nothing is indexed yet.
func (u *Usecase) GetLatestBlock(ctx context.Context) (types.BlockHeader, error) {
	state, err := u.stateDg.GetLatestIndexerState(ctx)
	if err != nil {
		return types.BlockHeader{}, errors.Wrap(err, "failed to get latest indexer state")
	}
	if state.LatestBlock == nil {
		return types.BlockHeader{}, errors.Wrap(errs.NotFound, "no block indexed yet")
	}
	return *state.LatestBlock, nil
}
