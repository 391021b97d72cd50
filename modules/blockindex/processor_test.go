package blockindex

import (
	"context"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/gaze-network/ledger-indexer/common/errs"
	"github.com/gaze-network/ledger-indexer/core/types"
	"github.com/gaze-network/ledger-indexer/modules/blockindex/internal/entity"
	"github.com/gaze-network/ledger-indexer/modules/blockindex/repository/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeLedger struct {
	blocks map[uint64]*types.Block
}

func newFakeLedger(blocks ...*types.Block) *fakeLedger {
	l := &fakeLedger{blocks: make(map[uint64]*types.Block)}
	for _, block := range blocks {
		l.blocks[block.Height()] = block
	}
	return l
}

func (l *fakeLedger) GetBlock(_ context.Context, height uint64) (*types.Block, error) {
	block, ok := l.blocks[height]
	if !ok {
		return nil, errors.Wrapf(errs.NotFound, "block %d", height)
	}
	return block, nil
}

func (l *fakeLedger) GetBlocks(_ context.Context, from, to uint64) ([]*types.Block, error) {
	blocks := make([]*types.Block, 0)
	for h := from; h <= to; h++ {
		if block, ok := l.blocks[h]; ok {
			blocks = append(blocks, block)
		}
	}
	return blocks, nil
}

func (l *fakeLedger) GetBlockHeader(ctx context.Context, height uint64) (types.BlockHeader, error) {
	block, err := l.GetBlock(ctx, height)
	if err != nil {
		return types.BlockHeader{}, err
	}
	return block.BlockHeader(), nil
}

func chain(n int) []*types.Block {
	blocks := make([]*types.Block, 0, n)
	for h := 1; h <= n; h++ {
		block := newBlock(uint64(h),
			newTx("alice", transfer("alice", "bob", "XON")),
			newTx("bob"),
		)
		if h > 1 {
			block.Header.PrevHash = blocks[h-2].Header.Hash
		}
		blocks = append(blocks, block)
	}
	return blocks
}

func TestProcessorVerifyStates(t *testing.T) {
	ctx := context.Background()

	t.Run("initializes_state", func(t *testing.T) {
		repo := memory.NewRepository()
		p := NewProcessor(NewBlockIndexer(repo), repo, newFakeLedger(), nil)
		require.NoError(t, p.VerifyStates(ctx))

		state, err := repo.GetLatestIndexerState(ctx)
		require.NoError(t, err)
		assert.Equal(t, int32(DBVersion), state.DBVersion)
		assert.Nil(t, state.LatestBlock)

		_, err = p.CurrentBlock(ctx)
		assert.ErrorIs(t, err, errs.NotFound)
	})

	t.Run("db_version_mismatch", func(t *testing.T) {
		repo := memory.NewRepository()
		require.NoError(t, repo.SetIndexerState(ctx, entity.IndexerState{DBVersion: DBVersion + 1}))
		p := NewProcessor(NewBlockIndexer(repo), repo, newFakeLedger(), nil)
		assert.ErrorIs(t, p.VerifyStates(ctx), errs.ConflictSetting)
	})

	t.Run("purges_pending_block", func(t *testing.T) {
		blocks := chain(2)
		ledger := newFakeLedger(blocks...)

		expected := memory.NewRepository()
		ep := NewProcessor(NewBlockIndexer(expected), expected, ledger, nil)
		require.NoError(t, ep.Process(ctx, blocks))

		repo := &recordingStore{Repository: memory.NewRepository()}
		p := NewProcessor(NewBlockIndexer(repo), repo.Repository, ledger, nil)
		require.NoError(t, p.Process(ctx, blocks[:1]))
		repo.failAt = len(repo.writes) + 3
		require.Error(t, p.Process(ctx, blocks[1:]))
		repo.failAt = 0

		state, err := repo.GetLatestIndexerState(ctx)
		require.NoError(t, err)
		require.True(t, state.HasPending())
		assert.Equal(t, uint64(2), *state.PendingHeight)
		assert.ErrorIs(t, p.Process(ctx, blocks[1:]), errs.ConflictSetting)

		require.NoError(t, p.VerifyStates(ctx))
		state, err = repo.GetLatestIndexerState(ctx)
		require.NoError(t, err)
		assert.False(t, state.HasPending())
		assert.Equal(t, uint64(1), state.LatestBlock.Height)

		require.NoError(t, p.Process(ctx, blocks[1:]))
		assert.ElementsMatch(t, expected.Keys(), repo.Keys())
		for _, key := range []string{"alice:2", "bob:2", "alice:2:XON"} {
			assert.Equal(t, lrange(t, expected, key), lrange(t, repo.Repository, key), key)
		}
	})
}

func TestProcessorProcess(t *testing.T) {
	ctx := context.Background()
	blocks := chain(3)

	t.Run("indexes_in_height_order", func(t *testing.T) {
		repo := memory.NewRepository()
		p := NewProcessor(NewBlockIndexer(repo), repo, newFakeLedger(blocks...), nil)
		require.NoError(t, p.VerifyStates(ctx))
		require.NoError(t, p.Process(ctx, []*types.Block{blocks[1], blocks[0], blocks[2]}))

		current, err := p.CurrentBlock(ctx)
		require.NoError(t, err)
		assert.Equal(t, blocks[2].BlockHeader(), current)
		assert.ElementsMatch(t, []string{"1", "2", "3"}, smembers(t, repo, "alice"))
	})

	t.Run("already_indexed", func(t *testing.T) {
		repo := memory.NewRepository()
		p := NewProcessor(NewBlockIndexer(repo), repo, newFakeLedger(blocks...), nil)
		require.NoError(t, p.Process(ctx, blocks[:2]))

		err := p.Process(ctx, blocks[1:2])
		assert.ErrorIs(t, err, errs.Duplicate)
		assert.Equal(t, []string{"0"}, lrange(t, repo, "alice:2"), "no list entry is duplicated")
	})

	t.Run("gap", func(t *testing.T) {
		repo := memory.NewRepository()
		p := NewProcessor(NewBlockIndexer(repo), repo, newFakeLedger(blocks...), nil)
		require.NoError(t, p.Process(ctx, blocks[:1]))
		assert.ErrorIs(t, p.Process(ctx, blocks[2:]), errs.InvalidArgument)
	})

	t.Run("empty", func(t *testing.T) {
		repo := memory.NewRepository()
		p := NewProcessor(NewBlockIndexer(repo), repo, newFakeLedger(), nil)
		require.NoError(t, p.Process(ctx, nil))
		assert.Empty(t, repo.Keys())
	})
}

func TestProcessorRevertData(t *testing.T) {
	ctx := context.Background()
	blocks := chain(5)
	ledger := newFakeLedger(blocks...)

	t.Run("rewinds_to_previous_block", func(t *testing.T) {
		expected := memory.NewRepository()
		require.NoError(t, NewProcessor(NewBlockIndexer(expected), expected, ledger, nil).Process(ctx, blocks[:2]))

		repo := memory.NewRepository()
		p := NewProcessor(NewBlockIndexer(repo), repo, ledger, nil)
		require.NoError(t, p.Process(ctx, blocks))
		require.NoError(t, p.RevertData(ctx, 3))

		current, err := p.CurrentBlock(ctx)
		require.NoError(t, err)
		assert.Equal(t, uint64(2), current.Height)
		assert.ElementsMatch(t, expected.Keys(), repo.Keys())
		assert.ElementsMatch(t, []string{"1", "2"}, smembers(t, repo, "alice"))

		require.NoError(t, p.Process(ctx, blocks[2:]))
		assert.Equal(t, []string{"0"}, lrange(t, repo, "alice:4:XON"))
	})

	t.Run("everything", func(t *testing.T) {
		repo := memory.NewRepository()
		p := NewProcessor(NewBlockIndexer(repo), repo, ledger, nil)
		require.NoError(t, p.Process(ctx, blocks))
		require.NoError(t, p.RevertData(ctx, 1))

		_, err := p.CurrentBlock(ctx)
		assert.ErrorIs(t, err, errs.NotFound)
		assert.Empty(t, repo.Keys())
	})

	t.Run("above_latest", func(t *testing.T) {
		repo := memory.NewRepository()
		p := NewProcessor(NewBlockIndexer(repo), repo, ledger, nil)
		require.NoError(t, p.Process(ctx, blocks[:2]))
		keys := repo.Keys()
		require.NoError(t, p.RevertData(ctx, 4))
		assert.ElementsMatch(t, keys, repo.Keys())
	})

	t.Run("missing_ledger_block", func(t *testing.T) {
		repo := memory.NewRepository()
		p := NewProcessor(NewBlockIndexer(repo), repo, newFakeLedger(blocks[0]), nil)
		require.NoError(t, p.Process(ctx, blocks[:2]))
		assert.ErrorIs(t, p.RevertData(ctx, 1), errs.NotFound)
	})
}

func TestProcessorShutdown(t *testing.T) {
	var calls []string
	cleanup := func(name string, err error) func(context.Context) error {
		return func(context.Context) error {
			calls = append(calls, name)
			return err
		}
	}
	repo := memory.NewRepository()
	p := NewProcessor(NewBlockIndexer(repo), repo, newFakeLedger(), []func(context.Context) error{
		cleanup("store", nil),
		cleanup("ledger", errs.InternalError),
		cleanup("metrics", nil),
	})

	err := p.Shutdown(context.Background())
	assert.ErrorIs(t, err, errs.InternalError)
	assert.Equal(t, []string{"store", "ledger", "metrics"}, calls)
	assert.Equal(t, "BlockIndex", p.Name())
}
