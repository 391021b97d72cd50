package query

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/gaze-network/ledger-indexer/common/errs"
	"github.com/gaze-network/ledger-indexer/core/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeReader struct {
	heights map[string]uint64
	blocks  []*types.Block
}

func (r fakeReader) GetTransactionHeight(_ context.Context, hash string) (uint64, error) {
	height, ok := r.heights[hash]
	if !ok {
		return 0, errors.Wrapf(errs.NotFound, "transaction %s", hash)
	}
	return height, nil
}

func (r fakeReader) GetAccountHeights(_ context.Context, account string) ([]uint64, error) {
	return []uint64{1, 10}, nil
}

func (r fakeReader) GetAccountTxIndices(_ context.Context, account string, height uint64) ([]uint32, error) {
	return []uint32{0, 2}, nil
}

func (r fakeReader) GetAccountAssetTxIndices(_ context.Context, account string, height uint64, asset string) ([]uint32, error) {
	return []uint32{2}, nil
}

func (r fakeReader) GetBlocks(_ context.Context, from, to uint64) ([]*types.Block, error) {
	blocks := make([]*types.Block, 0)
	for _, block := range r.blocks {
		if block.Height() >= from && block.Height() <= to {
			blocks = append(blocks, block)
		}
	}
	return blocks, nil
}

func newDefaultRegistry(t *testing.T) *Registry {
	reader := fakeReader{
		heights: map[string]uint64{"ab12": 10},
	}
	for h := uint64(1); h <= 20; h++ {
		reader.blocks = append(reader.blocks, &types.Block{Header: types.BlockHeader{Height: h}})
	}
	registry := NewRegistry()
	require.NoError(t, RegisterDefaultHandlers(registry, reader))
	return registry
}

func TestRegister(t *testing.T) {
	registry := NewRegistry()
	noop := func(context.Context, Query, func(Response) error) error { return nil }

	require.NoError(t, registry.Register(KindGetBlocks, noop))
	assert.ErrorIs(t, registry.Register(KindGetBlocks, noop), errs.Duplicate)
	assert.ErrorIs(t, registry.Register(KindGetAccountHeights, nil), errs.InvalidArgument)

	_, ok := registry.Lookup(KindGetBlocks)
	assert.True(t, ok)
	_, ok = registry.Lookup(KindGetAccountHeights)
	assert.False(t, ok)

	assert.ErrorIs(t, RegisterDefaultHandlers(registry, fakeReader{}), errs.Duplicate)
}

func TestDispatchUnhandled(t *testing.T) {
	var calls atomic.Int32
	registry := NewRegistry()
	require.NoError(t, registry.Register(KindGetBlocks, func(context.Context, Query, func(Response) error) error {
		calls.Add(1)
		return nil
	}))

	ch := make(chan Response, 1)
	sub, err := registry.Dispatch(context.Background(), GetAccountHeights{AccountID: "alice"}, ch)
	require.ErrorIs(t, err, errs.Unhandled)
	assert.Nil(t, sub)
	assert.Empty(t, ch)
	assert.Zero(t, calls.Load())

	_, err = registry.Collect(context.Background(), GetAccountHeights{AccountID: "alice"})
	assert.ErrorIs(t, err, errs.Unhandled)
	assert.Zero(t, calls.Load())
}

func TestDispatch(t *testing.T) {
	ctx := context.Background()

	t.Run("streams_in_order", func(t *testing.T) {
		registry := newDefaultRegistry(t)
		ch := make(chan Response)
		sub, err := registry.Dispatch(ctx, GetBlocks{From: 3, To: 17}, ch)
		require.NoError(t, err)

		heights := make([]uint64, 0)
		timeout := time.After(5 * time.Second)
	loop:
		for {
			select {
			case resp := <-ch:
				heights = append(heights, resp.(BlockResponse).Block.Height())
			case err := <-sub.Err():
				require.NoError(t, err)
			case <-sub.Done():
				break loop
			case <-timeout:
				t.Fatal("dispatch did not finish")
			}
		}
		require.Len(t, heights, 15)
		for i, height := range heights {
			assert.Equal(t, uint64(i+3), height)
		}
	})

	t.Run("handler_error", func(t *testing.T) {
		registry := newDefaultRegistry(t)
		_, err := registry.Collect(ctx, GetTransactionHeight{Hash: "ffff"})
		assert.ErrorIs(t, err, errs.NotFound)
	})

	t.Run("unsubscribe_stops_handler", func(t *testing.T) {
		registry := NewRegistry()
		emitErr := make(chan error, 1)
		require.NoError(t, registry.Register(KindGetBlocks, func(ctx context.Context, q Query, emit func(Response) error) error {
			for {
				if err := emit(BlockResponse{}); err != nil {
					emitErr <- err
					return err
				}
			}
		}))

		ch := make(chan Response)
		sub, err := registry.Dispatch(ctx, GetBlocks{}, ch)
		require.NoError(t, err)
		<-ch
		sub.Unsubscribe()

		select {
		case err := <-emitErr:
			assert.Error(t, err)
		case <-time.After(5 * time.Second):
			t.Fatal("handler kept emitting after unsubscribe")
		}
	})
}

func TestDefaultHandlers(t *testing.T) {
	ctx := context.Background()
	registry := newDefaultRegistry(t)

	type testCase struct {
		query    Query
		expected []Response
	}
	testCases := []testCase{
		{
			query:    GetTransactionHeight{Hash: "ab12"},
			expected: []Response{TransactionHeightResponse{Hash: "ab12", Height: 10}},
		},
		{
			query:    GetAccountHeights{AccountID: "alice"},
			expected: []Response{AccountHeightsResponse{AccountID: "alice", Heights: []uint64{1, 10}}},
		},
		{
			query:    GetAccountTransactions{AccountID: "alice", Height: 10},
			expected: []Response{AccountTransactionsResponse{AccountID: "alice", Height: 10, TxIndices: []uint32{0, 2}}},
		},
		{
			query:    GetAccountAssetTransactions{AccountID: "alice", Height: 10, AssetID: "XON"},
			expected: []Response{AccountAssetTransactionsResponse{AccountID: "alice", Height: 10, AssetID: "XON", TxIndices: []uint32{2}}},
		},
		{
			query:    GetBlocks{From: 30, To: 40},
			expected: []Response{},
		},
	}
	for _, tc := range testCases {
		t.Run(string(tc.query.Kind()), func(t *testing.T) {
			responses, err := registry.Collect(ctx, tc.query)
			require.NoError(t, err)
			assert.Equal(t, tc.expected, responses)
		})
	}
}
