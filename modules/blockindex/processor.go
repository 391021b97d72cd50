package blockindex

import (
	"cmp"
	"context"
	"slices"

	"github.com/cockroachdb/errors"
	"github.com/gaze-network/ledger-indexer/common/errs"
	"github.com/gaze-network/ledger-indexer/core/indexer"
	"github.com/gaze-network/ledger-indexer/core/types"
	"github.com/gaze-network/ledger-indexer/modules/blockindex/datagateway"
	"github.com/gaze-network/ledger-indexer/modules/blockindex/internal/entity"
	"github.com/gaze-network/ledger-indexer/pkg/logger"
	"github.com/gaze-network/ledger-indexer/pkg/logger/slogx"
	"github.com/samber/lo"
)

var _ indexer.Processor[*types.Block] = (*Processor)(nil)

// Processor feeds committed blocks to the BlockIndexer in height order and
// keeps the progress marker, so every height is indexed at most once.
//
// Before a block is indexed its height is recorded as pending. A pending
// height found by VerifyStates belongs to a run that failed mid-block; the
// block is purged from the index store and indexed again.
type Processor struct {
	blockIndexer *BlockIndexer
	stateDg      datagateway.IndexerStateDataGateway
	ledgerDg     datagateway.LedgerDataGateway

	cleanupFuncs []func(context.Context) error
}

func NewProcessor(blockIndexer *BlockIndexer, stateDg datagateway.IndexerStateDataGateway, ledgerDg datagateway.LedgerDataGateway, cleanupFuncs []func(context.Context) error) *Processor {
	return &Processor{
		blockIndexer: blockIndexer,
		stateDg:      stateDg,
		ledgerDg:     ledgerDg,
		cleanupFuncs: cleanupFuncs,
	}
}

func (p *Processor) Name() string {
	return "BlockIndex"
}

func (p *Processor) VerifyStates(ctx context.Context) error {
	state, err := p.stateDg.GetLatestIndexerState(ctx)
	if err != nil {
		if !errors.Is(err, errs.NotFound) {
			return errors.Wrap(err, "failed to get latest indexer state")
		}
		if err := p.stateDg.SetIndexerState(ctx, entity.IndexerState{DBVersion: DBVersion}); err != nil {
			return errors.Wrap(err, "failed to set indexer state")
		}
		return nil
	}

	if state.DBVersion != DBVersion {
		return errors.Wrapf(errs.ConflictSetting, "db version mismatch: current version is %d. Please upgrade to version %d", state.DBVersion, DBVersion)
	}

	if state.HasPending() {
		if err := p.recoverPending(ctx, state); err != nil {
			return errors.Wrap(err, "failed to recover partially indexed block")
		}
	}
	return nil
}

func (p *Processor) recoverPending(ctx context.Context, state entity.IndexerState) error {
	height := *state.PendingHeight
	logger.WarnContext(ctx, "Found partially indexed block, purging its index entries",
		slogx.String("event", "purge_pending_block"),
		slogx.Uint64("height", height),
	)

	block, err := p.ledgerDg.GetBlock(ctx, height)
	if err != nil {
		return errors.Wrapf(err, "failed to get pending block %d", height)
	}
	if err := p.blockIndexer.PurgeBlock(ctx, height, block); err != nil {
		return errors.WithStack(err)
	}

	state.PendingHeight = nil
	if err := p.stateDg.SetIndexerState(ctx, state); err != nil {
		return errors.Wrap(err, "failed to clear pending height")
	}
	return nil
}

func (p *Processor) CurrentBlock(ctx context.Context) (types.BlockHeader, error) {
	state, err := p.stateDg.GetLatestIndexerState(ctx)
	if err != nil {
		return types.BlockHeader{}, errors.Wrap(err, "failed to get latest indexer state")
	}
	if state.LatestBlock == nil {
		return types.BlockHeader{}, errors.Wrap(errs.NotFound, "no block indexed yet")
	}
	return *state.LatestBlock, nil
}

func (p *Processor) Process(ctx context.Context, blocks []*types.Block) error {
	if len(blocks) == 0 {
		return nil
	}
	blocks = slices.Clone(blocks)
	slices.SortFunc(blocks, func(a, b *types.Block) int {
		return cmp.Compare(a.Height(), b.Height())
	})

	state, err := p.stateDg.GetLatestIndexerState(ctx)
	if err != nil && !errors.Is(err, errs.NotFound) {
		return errors.Wrap(err, "failed to get latest indexer state")
	}
	if errors.Is(err, errs.NotFound) {
		state = entity.IndexerState{DBVersion: DBVersion}
	}
	if state.HasPending() {
		return errors.Wrapf(errs.ConflictSetting, "block %d is partially indexed, verify states before indexing", *state.PendingHeight)
	}

	for _, block := range blocks {
		height := block.Height()
		if state.LatestBlock != nil {
			if height <= state.LatestBlock.Height {
				return errors.Wrapf(errs.Duplicate, "block %d is already indexed, latest indexed block is %d", height, state.LatestBlock.Height)
			}
			if height != state.LatestBlock.Height+1 {
				return errors.Wrapf(errs.InvalidArgument, "block %d does not follow latest indexed block %d", height, state.LatestBlock.Height)
			}
		}

		state.PendingHeight = lo.ToPtr(height)
		if err := p.stateDg.SetIndexerState(ctx, state); err != nil {
			return errors.Wrapf(err, "failed to mark block %d as pending", height)
		}

		if err := p.blockIndexer.IndexBlock(ctx, height, block); err != nil {
			return errors.Wrapf(err, "failed to index block %d", height)
		}

		header := block.BlockHeader()
		state.LatestBlock = &header
		state.PendingHeight = nil
		if err := p.stateDg.SetIndexerState(ctx, state); err != nil {
			return errors.Wrapf(err, "failed to mark block %d as indexed", height)
		}
	}
	return nil
}

// RevertData purges the index entries of heights from and above, newest first,
// and moves the progress marker back to the block before from.
func (p *Processor) RevertData(ctx context.Context, from uint64) error {
	state, err := p.stateDg.GetLatestIndexerState(ctx)
	if err != nil {
		if errors.Is(err, errs.NotFound) {
			return nil
		}
		return errors.Wrap(err, "failed to get latest indexer state")
	}

	if state.HasPending() && *state.PendingHeight >= from {
		if err := p.recoverPending(ctx, state); err != nil {
			return errors.WithStack(err)
		}
		state.PendingHeight = nil
	}
	if state.LatestBlock == nil || state.LatestBlock.Height < from {
		return nil
	}

	heights := make([]uint64, 0, state.LatestBlock.Height-from+1)
	for h := state.LatestBlock.Height; ; h-- {
		heights = append(heights, h)
		if h == from {
			break
		}
	}
	for _, chunk := range lo.Chunk(heights, revertChunkSize) {
		// chunk is descending
		blocks, err := p.ledgerDg.GetBlocks(ctx, chunk[len(chunk)-1], chunk[0])
		if err != nil {
			return errors.Wrap(err, "failed to get blocks to revert")
		}
		if len(blocks) != len(chunk) {
			return errors.Wrapf(errs.NotFound, "ledger returned %d blocks for heights %d-%d", len(blocks), chunk[len(chunk)-1], chunk[0])
		}
		for i := len(blocks) - 1; i >= 0; i-- {
			block := blocks[i]
			if err := p.blockIndexer.PurgeBlock(ctx, block.Height(), block); err != nil {
				return errors.Wrapf(err, "failed to purge block %d", block.Height())
			}

			// keep the marker consistent with the store after every block
			state.LatestBlock = nil
			if block.Height() > 0 {
				if header, err := p.ledgerDg.GetBlockHeader(ctx, block.Height()-1); err == nil {
					state.LatestBlock = &header
				} else if !errors.Is(err, errs.NotFound) {
					return errors.Wrapf(err, "failed to get block header %d", block.Height()-1)
				}
			}
			if err := p.stateDg.SetIndexerState(ctx, state); err != nil {
				return errors.Wrap(err, "failed to rewind indexer state")
			}
		}
	}

	logger.InfoContext(ctx, "Reverted indexed blocks",
		slogx.String("event", "revert_data"),
		slogx.Uint64("from", from),
		slogx.Int("total_blocks", len(heights)),
	)
	return nil
}

func (p *Processor) Shutdown(ctx context.Context) error {
	var errs []error
	for _, cleanup := range p.cleanupFuncs {
		if err := cleanup(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.WithStack(errors.Join(errs...))
}
