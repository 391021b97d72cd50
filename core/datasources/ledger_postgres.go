package datasources

import (
	"context"
	"encoding/json"
	"math"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/gaze-network/ledger-indexer/common/errs"
	"github.com/gaze-network/ledger-indexer/core/types"
	"github.com/gaze-network/ledger-indexer/internal/postgres"
	"github.com/gaze-network/ledger-indexer/internal/subscription"
	"github.com/gaze-network/ledger-indexer/pkg/logger"
	"github.com/gaze-network/ledger-indexer/pkg/logger/slogx"
	"github.com/jackc/pgx/v5"
	cstream "github.com/planxnx/concurrent-stream"
	"github.com/samber/lo"
)

const (
	// ledgerFetchChunkSize is the number of heights fetched by one query.
	ledgerFetchChunkSize = 100

	// ledgerFetchConcurrency is the number of chunk queries in flight.
	ledgerFetchConcurrency = 8
)

const (
	getLatestBlockHeaderQuery = `SELECT height, hash, prev_hash, created_at FROM blocks ORDER BY height DESC LIMIT 1`
	getFirstBlockHeightQuery  = `SELECT height FROM blocks ORDER BY height ASC LIMIT 1`
	getBlockHeaderQuery       = `SELECT height, hash, prev_hash, created_at FROM blocks WHERE height = $1`
	getBlocksQuery            = `SELECT height, hash, prev_hash, created_at, transactions FROM blocks WHERE height >= $1 AND height <= $2 ORDER BY height ASC`
)

// Make sure to implement the Datasource interface
var _ Datasource[*types.Block] = (*LedgerPostgres)(nil)

// LedgerPostgres reads committed blocks from the block storage of the ledger.
type LedgerPostgres struct {
	db postgres.Queryable
}

func NewLedgerPostgres(db postgres.Queryable) *LedgerPostgres {
	return &LedgerPostgres{
		db: db,
	}
}

func (d LedgerPostgres) Name() string {
	return "LedgerPostgres"
}

func (d *LedgerPostgres) Fetch(ctx context.Context, from, to int64) ([]*types.Block, error) {
	ch := make(chan []*types.Block)
	subscription, err := d.FetchAsync(ctx, from, to, ch)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	defer subscription.Unsubscribe()

	blocks := make([]*types.Block, 0)
	for {
		select {
		case b := <-ch:
			blocks = append(blocks, b...)
		case <-subscription.Done():
			if err := ctx.Err(); err != nil {
				return nil, errors.Wrap(err, "context done")
			}
			select {
			case err := <-subscription.Err():
				return nil, errors.Wrap(err, "got error while fetch async")
			default:
			}
			return blocks, nil
		case err := <-subscription.Err():
			if err != nil {
				return nil, errors.Wrap(err, "got error while fetch async")
			}
		case <-ctx.Done():
			return nil, errors.Wrap(ctx.Err(), "context done")
		}
	}
}

// FetchAsync fetches blocks in chunks concurrently and delivers them in height order.
func (d *LedgerPostgres) FetchAsync(ctx context.Context, from, to int64, ch chan<- []*types.Block) (*subscription.ClientSubscription[[]*types.Block], error) {
	start, end, skip, err := d.prepareRange(ctx, from, to)
	if err != nil {
		return nil, errors.Wrap(err, "failed to prepare fetch range")
	}

	subscription := subscription.NewSubscription(ch)
	if skip {
		subscription.Close()
		return subscription.Client(), nil
	}

	// Create parallel stream
	out := make(chan []*types.Block)
	stream := cstream.NewStream(ctx, ledgerFetchConcurrency, out)

	heights := make([]uint64, 0, end-start+1)
	for h := start; h <= end; h++ {
		heights = append(heights, h)
	}

	// Wait for stream to finish and close out channel
	go func() {
		defer close(out)
		_ = stream.Wait()
	}()

	// Fan-out blocks to subscription channel
	go func() {
		defer subscription.Close()
		for {
			select {
			case data, ok := <-out:
				// stream closed
				if !ok {
					return
				}

				if len(data) == 0 {
					continue
				}

				if err := subscription.Send(ctx, data); err != nil {
					logger.ErrorContext(ctx, "Failed while dispatch blocks",
						slogx.Error(err),
						slogx.Uint64("start", data[0].Height()),
						slogx.Uint64("end", data[len(data)-1].Height()),
					)
				}
			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		defer stream.Close()
		done := subscription.Done()
		for _, chunk := range lo.Chunk(heights, ledgerFetchChunkSize) {
			chunk := chunk
			select {
			case <-done:
				return
			case <-ctx.Done():
				return
			default:
				stream.Go(func() []*types.Block {
					fromHeight, toHeight := chunk[0], chunk[len(chunk)-1]
					blocks, err := d.GetBlocks(ctx, fromHeight, toHeight)
					if err != nil {
						logger.ErrorContext(ctx, "Failed to get blocks",
							slogx.Error(err),
							slogx.Uint64("from_height", fromHeight),
							slogx.Uint64("to_height", toHeight),
						)
						if err := subscription.SendError(ctx, errors.Wrapf(err, "failed to get blocks: from_height: %d, to_height: %d", fromHeight, toHeight)); err != nil {
							logger.ErrorContext(ctx, "Failed to send error", slogx.Error(err))
						}
						return nil
					}
					return blocks
				})
			}
		}
	}()

	return subscription.Client(), nil
}

func (d *LedgerPostgres) GetBlockHeader(ctx context.Context, height uint64) (types.BlockHeader, error) {
	header, err := scanBlockHeader(d.db.QueryRow(ctx, getBlockHeaderQuery, int64(height)))
	if err != nil {
		return types.BlockHeader{}, errors.Wrapf(err, "failed to get block header, height: %d", height)
	}
	return header, nil
}

// GetLatestBlockHeader returns the header of the highest stored block. Returns errs.NotFound if the ledger is empty.
func (d *LedgerPostgres) GetLatestBlockHeader(ctx context.Context) (types.BlockHeader, error) {
	header, err := scanBlockHeader(d.db.QueryRow(ctx, getLatestBlockHeaderQuery))
	if err != nil {
		return types.BlockHeader{}, errors.Wrap(err, "failed to get latest block header")
	}
	return header, nil
}

// GetBlock returns the block at height. Returns errs.NotFound if it is not stored.
func (d *LedgerPostgres) GetBlock(ctx context.Context, height uint64) (*types.Block, error) {
	blocks, err := d.GetBlocks(ctx, height, height)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	if len(blocks) == 0 {
		return nil, errors.Wrapf(errs.NotFound, "block not found, height: %d", height)
	}
	return blocks[0], nil
}

// GetBlocks returns the stored blocks with from <= height <= to in height order.
func (d *LedgerPostgres) GetBlocks(ctx context.Context, from, to uint64) ([]*types.Block, error) {
	if from > to {
		return nil, errors.Wrapf(errs.InvalidArgument, "from %d is greater than to %d", from, to)
	}
	if to > math.MaxInt64 {
		return nil, errors.Wrapf(errs.InvalidArgument, "height %d is out of range", to)
	}

	rows, err := d.db.Query(ctx, getBlocksQuery, int64(from), int64(to))
	if err != nil {
		return nil, errors.Wrap(err, "failed to query blocks")
	}
	defer rows.Close()

	blocks := make([]*types.Block, 0, min(to-from+1, ledgerFetchChunkSize))
	for rows.Next() {
		var (
			height    int64
			header    types.BlockHeader
			createdAt time.Time
			rawTxs    []byte
		)
		if err := rows.Scan(&height, &header.Hash, &header.PrevHash, &createdAt, &rawTxs); err != nil {
			return nil, errors.Wrap(err, "failed to scan block")
		}
		header.Height = uint64(height)
		header.CreatedAt = createdAt

		var txs []*types.Transaction
		if len(rawTxs) > 0 {
			if err := json.Unmarshal(rawTxs, &txs); err != nil {
				return nil, errors.Wrapf(err, "failed to decode transactions of block %d", height)
			}
		}
		blocks = append(blocks, &types.Block{
			Header:       header,
			Transactions: txs,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "failed to iterate blocks")
	}
	return blocks, nil
}

// LatestHeight returns the height of the highest stored block. Returns errs.NotFound if the ledger is empty.
func (d *LedgerPostgres) LatestHeight(ctx context.Context) (uint64, error) {
	header, err := d.GetLatestBlockHeader(ctx)
	if err != nil {
		return 0, errors.WithStack(err)
	}
	return header.Height, nil
}

func (d *LedgerPostgres) prepareRange(ctx context.Context, fromHeight, toHeight int64) (start, end uint64, skip bool, err error) {
	latest, err := d.GetLatestBlockHeader(ctx)
	if err != nil {
		if errors.Is(err, errs.NotFound) {
			return 0, 0, true, nil
		}
		return 0, 0, false, errors.WithStack(err)
	}

	if fromHeight < 0 {
		var first int64
		if err := d.db.QueryRow(ctx, getFirstBlockHeightQuery).Scan(&first); err != nil {
			return 0, 0, false, errors.Wrap(err, "failed to get first block height")
		}
		fromHeight = first
	}

	// set end to latest height if
	// - end is -1
	// - end is greater than latest height
	end = latest.Height
	if toHeight >= 0 && uint64(toHeight) < end {
		end = uint64(toHeight)
	}
	start = uint64(fromHeight)

	// if start is greater than end, skip this round
	if start > end {
		return 0, 0, true, nil
	}
	return start, end, false, nil
}

func scanBlockHeader(row pgx.Row) (types.BlockHeader, error) {
	var (
		height int64
		header types.BlockHeader
	)
	if err := row.Scan(&height, &header.Hash, &header.PrevHash, &header.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return types.BlockHeader{}, errors.WithStack(errs.NotFound)
		}
		return types.BlockHeader{}, errors.WithStack(err)
	}
	header.Height = uint64(height)
	return header, nil
}
