package usecase

import (
	"context"
	"strconv"

	"github.com/cockroachdb/errors"
	"github.com/gaze-network/ledger-indexer/common/errs"
	"github.com/gaze-network/ledger-indexer/modules/blockindex/indexkey"
)

// GetTransactionHeight returns the height of the block holding the transaction. Returns errs.NotFound if the hash is not indexed.
func (u *Usecase) GetTransactionHeight(ctx context.Context, hash string) (uint64, error) {
	value, err := u.indexDg.Get(ctx, indexkey.TxHash(hash))
	if err != nil {
		return 0, errors.Wrapf(err, "failed to get height of transaction %s", hash)
	}
	height, err := parseHeight(value)
	if err != nil {
		return 0, errors.Wrapf(err, "transaction %s", hash)
	}
	return height, nil
}

func parseHeight(value string) (uint64, error) {
	height, err := strconv.ParseUint(value, 10, 64)
	if err != nil {
		return 0, errors.Wrapf(errs.InternalError, "malformed stored height %q", value)
	}
	return height, nil
}

func parseTxIndex(value string) (uint32, error) {
	index, err := strconv.ParseUint(value, 10, 32)
	if err != nil {
		return 0, errors.Wrapf(errs.InternalError, "malformed stored transaction index %q", value)
	}
	return uint32(index), nil
}
