// Package query routes read queries over the block index to their handlers.
//
// A query whose kind has no registered handler is reported to the caller as
// errs.Unhandled. It is never dropped silently.
package query

import "github.com/gaze-network/ledger-indexer/core/types"

// Kind tags a query variant and the responses it produces.
type Kind string

const (
	KindGetTransactionHeight        Kind = "get_transaction_height"
	KindGetAccountHeights           Kind = "get_account_heights"
	KindGetAccountTransactions      Kind = "get_account_transactions"
	KindGetAccountAssetTransactions Kind = "get_account_asset_transactions"
	KindGetBlocks                   Kind = "get_blocks"
)

type Query interface {
	Kind() Kind
}

type Response interface {
	Kind() Kind
}

type GetTransactionHeight struct {
	Hash string
}

func (GetTransactionHeight) Kind() Kind { return KindGetTransactionHeight }

type GetAccountHeights struct {
	AccountID string
}

func (GetAccountHeights) Kind() Kind { return KindGetAccountHeights }

type GetAccountTransactions struct {
	AccountID string
	Height    uint64
}

func (GetAccountTransactions) Kind() Kind { return KindGetAccountTransactions }

type GetAccountAssetTransactions struct {
	AccountID string
	Height    uint64
	AssetID   string
}

func (GetAccountAssetTransactions) Kind() Kind { return KindGetAccountAssetTransactions }

// GetBlocks asks for the committed blocks with From <= height <= To.
// Its handler emits one BlockResponse per block.
type GetBlocks struct {
	From uint64
	To   uint64
}

func (GetBlocks) Kind() Kind { return KindGetBlocks }

type TransactionHeightResponse struct {
	Hash   string `json:"hash"`
	Height uint64 `json:"height"`
}

func (TransactionHeightResponse) Kind() Kind { return KindGetTransactionHeight }

type AccountHeightsResponse struct {
	AccountID string   `json:"accountId"`
	Heights   []uint64 `json:"heights"`
}

func (AccountHeightsResponse) Kind() Kind { return KindGetAccountHeights }

type AccountTransactionsResponse struct {
	AccountID string   `json:"accountId"`
	Height    uint64   `json:"height"`
	TxIndices []uint32 `json:"txIndices"`
}

func (AccountTransactionsResponse) Kind() Kind { return KindGetAccountTransactions }

type AccountAssetTransactionsResponse struct {
	AccountID string   `json:"accountId"`
	Height    uint64   `json:"height"`
	AssetID   string   `json:"assetId"`
	TxIndices []uint32 `json:"txIndices"`
}

func (AccountAssetTransactionsResponse) Kind() Kind { return KindGetAccountAssetTransactions }

type BlockResponse struct {
	Block *types.Block `json:"block"`
}

func (BlockResponse) Kind() Kind { return KindGetBlocks }
