package usecase

import (
	"context"
	"slices"

	"github.com/cockroachdb/errors"
	"github.com/gaze-network/ledger-indexer/modules/blockindex/indexkey"
)

// GetAccountHeights returns the heights of the blocks holding transactions created by account, ascending.
func (u *Usecase) GetAccountHeights(ctx context.Context, account string) ([]uint64, error) {
	members, err := u.indexDg.SMembers(ctx, indexkey.Account(account))
	if err != nil {
		return nil, errors.Wrapf(err, "failed to get heights of account %s", account)
	}
	heights := make([]uint64, 0, len(members))
	for _, member := range members {
		height, err := parseHeight(member)
		if err != nil {
			return nil, errors.Wrapf(err, "account %s", account)
		}
		heights = append(heights, height)
	}
	slices.Sort(heights)
	return heights, nil
}

// GetAccountTxIndices returns the positions, in block order, of the transactions created by account in the block at height.
func (u *Usecase) GetAccountTxIndices(ctx context.Context, account string, height uint64) ([]uint32, error) {
	return u.txIndices(ctx, indexkey.AccountHeight(account, height))
}

// GetAccountAssetTxIndices returns the positions of the transactions created by account in the block at height
// that transfer asset to or from account.
func (u *Usecase) GetAccountAssetTxIndices(ctx context.Context, account string, height uint64, asset string) ([]uint32, error) {
	return u.txIndices(ctx, indexkey.AccountHeightAsset(account, height, asset))
}

func (u *Usecase) txIndices(ctx context.Context, key string) ([]uint32, error) {
	values, err := u.indexDg.LRange(ctx, key, 0, -1)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to get transaction indices of %s", key)
	}
	indices := make([]uint32, 0, len(values))
	for _, value := range values {
		index, err := parseTxIndex(value)
		if err != nil {
			return nil, errors.Wrapf(err, "key %s", key)
		}
		indices = append(indices, index)
	}
	return indices, nil
}
