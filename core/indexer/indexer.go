package indexer

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/gaze-network/ledger-indexer/common/errs"
	"github.com/gaze-network/ledger-indexer/core/datasources"
	"github.com/gaze-network/ledger-indexer/core/types"
	"github.com/gaze-network/ledger-indexer/pkg/logger"
	"github.com/gaze-network/ledger-indexer/pkg/logger/slogx"
)

const (
	// DefaultPollingInterval is the default polling interval for the indexer polling worker
	DefaultPollingInterval = 5 * time.Second

	shutdownTimeout = 180 * time.Second
)

var _ IndexerWorker = (*Indexer[*types.Block])(nil)

// Indexer generic indexer for fetching and processing data.
//
// Ledger blocks are final: an input that does not extend the last indexed
// block by height and hash is an error, never a fork to revert.
type Indexer[T Input] struct {
	Processor       Processor[T]
	Datasource      datasources.Datasource[T]
	PollingInterval time.Duration

	currentBlock types.BlockHeader
	hasCurrent   bool

	quitOnce sync.Once
	quit     chan struct{}
	done     chan struct{}
}

// New create new generic indexer
func New[T Input](processor Processor[T], datasource datasources.Datasource[T]) *Indexer[T] {
	return &Indexer[T]{
		Processor:       processor,
		Datasource:      datasource,
		PollingInterval: DefaultPollingInterval,

		quit: make(chan struct{}),
		done: make(chan struct{}),
	}
}

func (i *Indexer[T]) Shutdown() error {
	return i.ShutdownWithContext(context.Background())
}

func (i *Indexer[T]) ShutdownWithTimeout(timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	return i.ShutdownWithContext(ctx)
}

func (i *Indexer[T]) ShutdownWithContext(ctx context.Context) (err error) {
	i.quitOnce.Do(func() {
		close(i.quit)
		select {
		case <-i.done:
		case <-time.After(shutdownTimeout):
			err = errors.Wrap(errs.Timeout, "indexer shutdown timeout")
		case <-ctx.Done():
			err = errors.Wrap(ctx.Err(), "indexer shutdown context canceled")
		}
	})
	return
}

func (i *Indexer[T]) Run(ctx context.Context) (err error) {
	defer close(i.done)

	ctx = logger.WithContext(ctx,
		slog.String("package", "indexer"),
		slog.String("processor", i.Processor.Name()),
		slog.String("datasource", i.Datasource.Name()),
	)

	if err := i.Processor.VerifyStates(ctx); err != nil {
		return errors.Wrap(err, "can't verify processor states")
	}

	i.currentBlock, err = i.Processor.CurrentBlock(ctx)
	switch {
	case err == nil:
		i.hasCurrent = true
	case errors.Is(err, errs.NotFound):
		i.hasCurrent = false
	default:
		return errors.Wrap(err, "can't init state, failed to get indexer current block")
	}

	interval := i.PollingInterval
	if interval <= 0 {
		interval = DefaultPollingInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		if err := i.process(ctx); err != nil {
			logger.ErrorContext(ctx, "Indexer failed while processing", slogx.Error(err))
			return errors.Wrap(err, "process failed")
		}
		logger.DebugContext(ctx, "Waiting for next polling interval")

		select {
		case <-i.quit:
			logger.InfoContext(ctx, "Got quit signal, stopping indexer")
			if err := i.Processor.Shutdown(ctx); err != nil {
				logger.ErrorContext(ctx, "Failed to shutdown processor", slogx.Error(err))
				return errors.Wrap(err, "processor shutdown failed")
			}
			return nil
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

func (i *Indexer[T]) process(ctx context.Context) (err error) {
	// height range to fetch data, -1 starts from the first stored block
	from, to := int64(-1), int64(-1)
	if i.hasCurrent {
		from = int64(i.currentBlock.Height) + 1
	}

	logger.DebugContext(ctx, "Start fetching input data", slog.Int64("from", from))
	ch := make(chan []T)
	subscription, err := i.Datasource.FetchAsync(ctx, from, to, ch)
	if err != nil {
		return errors.Wrap(err, "failed to fetch input data")
	}
	defer subscription.Unsubscribe()

	for {
		select {
		case <-i.quit:
			return nil
		case inputs := <-ch:
			if len(inputs) == 0 {
				continue
			}

			startAt := time.Now()
			ctx := logger.WithContext(ctx,
				slogx.Uint64("from", inputs[0].BlockHeader().Height),
				slogx.Uint64("to", inputs[len(inputs)-1].BlockHeader().Height),
				slog.Int("total_inputs", len(inputs)),
			)

			if err := i.validate(inputs); err != nil {
				return errors.WithStack(err)
			}

			logger.InfoContext(ctx, "Processing inputs")
			if err := i.Processor.Process(ctx, inputs); err != nil {
				return errors.WithStack(err)
			}

			// Update current state
			i.currentBlock = inputs[len(inputs)-1].BlockHeader()
			i.hasCurrent = true

			logger.InfoContext(ctx, "Processed inputs successfully",
				slogx.String("event", "processed_inputs"),
				slogx.Uint64("current_block", i.currentBlock.Height),
				slogx.Duration("duration", time.Since(startAt)),
			)
		case <-subscription.Done():
			// end current round
			if err := ctx.Err(); err != nil {
				return errors.Wrap(err, "context done")
			}
			select {
			case err := <-subscription.Err():
				return errors.Wrap(err, "got error while fetch async")
			default:
			}
			return nil
		case <-ctx.Done():
			return errors.WithStack(ctx.Err())
		case err := <-subscription.Err():
			if err != nil {
				return errors.Wrap(err, "got error while fetch async")
			}
		}
	}
}

// validate checks that inputs continue the indexed chain by height and hash.
func (i *Indexer[T]) validate(inputs []T) error {
	prev, hasPrev := i.currentBlock, i.hasCurrent
	for n, input := range inputs {
		header := input.BlockHeader()
		if hasPrev {
			if header.Height != prev.Height+1 {
				return errors.Wrapf(errs.InternalError, "input is not continuous, input[%d] height: %d, previous height: %d", n, header.Height, prev.Height)
			}
			if header.PrevHash != prev.Hash {
				return errors.Wrapf(errs.ConflictSetting, "block %d does not link to block %d, prev_hash: %s, expected: %s", header.Height, prev.Height, header.PrevHash, prev.Hash)
			}
		}
		prev, hasPrev = header, true
	}
	return nil
}
