package blockindex

import (
	"context"
	"slices"
	"strconv"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/gaze-network/ledger-indexer/common/errs"
	"github.com/gaze-network/ledger-indexer/core/types"
	"github.com/gaze-network/ledger-indexer/modules/blockindex/datagateway"
	"github.com/gaze-network/ledger-indexer/modules/blockindex/indexkey"
	"github.com/samber/lo"
)

// BlockIndexer writes the secondary index entries of committed blocks:
//
//	tx hash                  -> height                (SET)
//	account                  -> {height}              (SADD)
//	account:height           -> [tx index]            (RPUSH)
//	account:height:asset     -> [tx index]            (RPUSH)
//
// IndexBlock is not idempotent. Indexing the same height twice appends the
// tx indexes of that height again. Callers index each height at most once,
// in ascending order; Processor enforces this with its progress marker.
type BlockIndexer struct {
	store   datagateway.IndexWriterDataGateway
	metrics *Metrics
}

type BlockIndexerOption func(*BlockIndexer)

func WithMetrics(metrics *Metrics) BlockIndexerOption {
	return func(b *BlockIndexer) {
		b.metrics = metrics
	}
}

func NewBlockIndexer(store datagateway.IndexWriterDataGateway, opts ...BlockIndexerOption) *BlockIndexer {
	b := &BlockIndexer{
		store: store,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// IndexBlock writes the index entries of every transaction of block, in block order.
// Nothing is read back and failed writes are neither retried nor rolled back:
// on error the block is left partially indexed. Use PurgeBlock to clean it up.
func (b *BlockIndexer) IndexBlock(ctx context.Context, height uint64, block *types.Block) error {
	start := time.Now()
	heightValue := strconv.FormatUint(height, 10)
	for i, tx := range block.Transactions {
		if err := ctx.Err(); err != nil {
			b.observeFailure()
			return errors.Wrapf(err, "stopped before transaction #%d of block %d", i, height)
		}
		if err := b.indexTransaction(ctx, height, heightValue, i, tx); err != nil {
			b.observeFailure()
			return errors.Wrapf(err, "failed to index transaction #%d of block %d", i, height)
		}
	}

	if b.metrics != nil {
		b.metrics.Blocks.Inc()
		b.metrics.IndexedHeight.Set(float64(height))
		b.metrics.IndexDuration.Observe(time.Since(start).Seconds())
	}
	return nil
}

func (b *BlockIndexer) indexTransaction(ctx context.Context, height uint64, heightValue string, index int, tx *types.Transaction) error {
	var (
		creator    = tx.CreatorAccountID
		indexValue = strconv.Itoa(index)
		assets     = TransferredAssets(creator, tx.Commands)
	)
	err := b.store.Pipelined(ctx, func(w datagateway.IndexWriter) error {
		if err := w.Set(ctx, indexkey.TxHash(tx.Hash()), heightValue); err != nil {
			return errors.Wrap(err, "failed to set tx hash height")
		}
		if err := w.SAdd(ctx, indexkey.Account(creator), heightValue); err != nil {
			return errors.Wrap(err, "failed to add account height")
		}
		if err := w.RPush(ctx, indexkey.AccountHeight(creator, height), indexValue); err != nil {
			return errors.Wrap(err, "failed to push account tx index")
		}
		for _, asset := range assets {
			if err := w.RPush(ctx, indexkey.AccountHeightAsset(creator, height, asset), indexValue); err != nil {
				return errors.Wrapf(err, "failed to push account asset tx index, asset: %s", asset)
			}
		}
		return nil
	})
	if err != nil {
		return errors.WithStack(err)
	}

	if b.metrics != nil {
		b.metrics.Writes.WithLabelValues(FamilyTxHash).Inc()
		b.metrics.Writes.WithLabelValues(FamilyAccount).Inc()
		b.metrics.Writes.WithLabelValues(FamilyAccountHeight).Inc()
		b.metrics.Writes.WithLabelValues(FamilyAccountHeightAsset).Add(float64(len(assets)))
	}
	return nil
}

// PurgeBlock removes what IndexBlock(height, block) may have written, so the
// height can be indexed again from a clean state. A tx hash entry is only
// removed while it still points to height.
func (b *BlockIndexer) PurgeBlock(ctx context.Context, height uint64, block *types.Block) error {
	purger, ok := b.store.(datagateway.IndexPurgerDataGateway)
	if !ok {
		return errors.Wrap(errs.Unsupported, "index store can't purge entries")
	}

	heightValue := strconv.FormatUint(height, 10)
	creators := make([]string, 0, len(block.Transactions))
	listKeys := make([]string, 0, len(block.Transactions))
	for i, tx := range block.Transactions {
		if _, err := purger.DelIfEquals(ctx, indexkey.TxHash(tx.Hash()), heightValue); err != nil {
			return errors.Wrapf(err, "failed to delete tx hash of transaction #%d of block %d", i, height)
		}
		creator := tx.CreatorAccountID
		creators = append(creators, creator)
		listKeys = append(listKeys, indexkey.AccountHeight(creator, height))
		for _, asset := range TransferredAssets(creator, tx.Commands) {
			listKeys = append(listKeys, indexkey.AccountHeightAsset(creator, height, asset))
		}
	}

	for _, creator := range lo.Uniq(creators) {
		if err := purger.SRem(ctx, indexkey.Account(creator), heightValue); err != nil {
			return errors.Wrapf(err, "failed to remove height %d of account %s", height, creator)
		}
	}
	if keys := lo.Uniq(listKeys); len(keys) > 0 {
		if err := purger.Del(ctx, keys...); err != nil {
			return errors.Wrapf(err, "failed to delete tx index lists of block %d", height)
		}
	}

	if b.metrics != nil {
		b.metrics.Purges.Inc()
	}
	return nil
}

func (b *BlockIndexer) observeFailure() {
	if b.metrics != nil {
		b.metrics.Failures.Inc()
	}
}

// TransferredAssets returns the distinct assets, in ascending byte order, of
// the transfer commands that have account as source or destination.
func TransferredAssets(account string, commands []types.Command) []string {
	var assets []string
	for _, cmd := range commands {
		switch c := cmd.(type) {
		case types.TransferAsset:
			if c.Involves(account) {
				assets = append(assets, c.AssetID)
			}
		case types.AddAssetQuantity, types.SubtractAssetQuantity,
			types.CreateAccount, types.CreateAsset, types.SetAccountDetail:
			// no index entries
		}
	}
	if len(assets) < 2 {
		return assets
	}
	assets = lo.Uniq(assets)
	slices.Sort(assets)
	return assets
}
