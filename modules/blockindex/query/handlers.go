package query

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/gaze-network/ledger-indexer/common/errs"
	"github.com/gaze-network/ledger-indexer/core/types"
)

// Reader is the read path the default handlers are built on.
type Reader interface {
	GetTransactionHeight(ctx context.Context, hash string) (uint64, error)
	GetAccountHeights(ctx context.Context, account string) ([]uint64, error)
	GetAccountTxIndices(ctx context.Context, account string, height uint64) ([]uint32, error)
	GetAccountAssetTxIndices(ctx context.Context, account string, height uint64, asset string) ([]uint32, error)
	GetBlocks(ctx context.Context, from, to uint64) ([]*types.Block, error)
}

// RegisterDefaultHandlers registers a handler for every query kind of this package.
func RegisterDefaultHandlers(registry *Registry, reader Reader) error {
	handlers := map[Kind]Handler{
		KindGetTransactionHeight:        handleFor(reader, getTransactionHeight),
		KindGetAccountHeights:           handleFor(reader, getAccountHeights),
		KindGetAccountTransactions:      handleFor(reader, getAccountTransactions),
		KindGetAccountAssetTransactions: handleFor(reader, getAccountAssetTransactions),
		KindGetBlocks:                   handleFor(reader, getBlocks),
	}
	for kind, handler := range handlers {
		if err := registry.Register(kind, handler); err != nil {
			return errors.WithStack(err)
		}
	}
	return nil
}

// handleFor adapts a handler of one query variant to Handler.
func handleFor[Q Query](reader Reader, fn func(ctx context.Context, reader Reader, q Q, emit func(Response) error) error) Handler {
	return func(ctx context.Context, q Query, emit func(Response) error) error {
		typed, ok := q.(Q)
		if !ok {
			return errors.Wrapf(errs.InvalidArgument, "unexpected query type %T for %s", q, q.Kind())
		}
		return fn(ctx, reader, typed, emit)
	}
}

func getTransactionHeight(ctx context.Context, reader Reader, q GetTransactionHeight, emit func(Response) error) error {
	height, err := reader.GetTransactionHeight(ctx, q.Hash)
	if err != nil {
		return errors.WithStack(err)
	}
	return emit(TransactionHeightResponse{Hash: q.Hash, Height: height})
}

func getAccountHeights(ctx context.Context, reader Reader, q GetAccountHeights, emit func(Response) error) error {
	heights, err := reader.GetAccountHeights(ctx, q.AccountID)
	if err != nil {
		return errors.WithStack(err)
	}
	return emit(AccountHeightsResponse{AccountID: q.AccountID, Heights: heights})
}

func getAccountTransactions(ctx context.Context, reader Reader, q GetAccountTransactions, emit func(Response) error) error {
	indices, err := reader.GetAccountTxIndices(ctx, q.AccountID, q.Height)
	if err != nil {
		return errors.WithStack(err)
	}
	return emit(AccountTransactionsResponse{AccountID: q.AccountID, Height: q.Height, TxIndices: indices})
}

func getAccountAssetTransactions(ctx context.Context, reader Reader, q GetAccountAssetTransactions, emit func(Response) error) error {
	indices, err := reader.GetAccountAssetTxIndices(ctx, q.AccountID, q.Height, q.AssetID)
	if err != nil {
		return errors.WithStack(err)
	}
	return emit(AccountAssetTransactionsResponse{AccountID: q.AccountID, Height: q.Height, AssetID: q.AssetID, TxIndices: indices})
}

func getBlocks(ctx context.Context, reader Reader, q GetBlocks, emit func(Response) error) error {
	blocks, err := reader.GetBlocks(ctx, q.From, q.To)
	if err != nil {
		return errors.WithStack(err)
	}
	for _, block := range blocks {
		if err := emit(BlockResponse{Block: block}); err != nil {
			return errors.WithStack(err)
		}
	}
	return nil
}
