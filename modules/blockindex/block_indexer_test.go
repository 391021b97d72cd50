package blockindex

import (
	"context"
	"fmt"
	"slices"
	"strconv"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/gaze-network/ledger-indexer/common/errs"
	"github.com/gaze-network/ledger-indexer/core/types"
	"github.com/gaze-network/ledger-indexer/modules/blockindex/datagateway"
	"github.com/gaze-network/ledger-indexer/modules/blockindex/indexkey"
	"github.com/gaze-network/ledger-indexer/modules/blockindex/repository/memory"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

var txCounter uint64

func newTx(creator string, cmds ...types.Command) *types.Transaction {
	txCounter++
	return &types.Transaction{
		CreatorAccountID: creator,
		CreatedAt:        time.UnixMilli(1_700_000_000_000).UTC(),
		Counter:          txCounter,
		Quorum:           1,
		Commands:         cmds,
	}
}

func transfer(src, dest, asset string) types.TransferAsset {
	return types.TransferAsset{
		SrcAccountID:  src,
		DestAccountID: dest,
		AssetID:       asset,
		Amount:        decimal.NewFromInt(1),
	}
}

func newBlock(height uint64, txs ...*types.Transaction) *types.Block {
	return &types.Block{
		Header: types.BlockHeader{
			Height: height,
			Hash:   fmt.Sprintf("block-%d", height),
		},
		Transactions: txs,
	}
}

func lrange(t require.TestingT, store *memory.Repository, key string) []string {
	values, err := store.LRange(context.Background(), key, 0, -1)
	require.NoError(t, err)
	return values
}

func smembers(t require.TestingT, store *memory.Repository, key string) []string {
	members, err := store.SMembers(context.Background(), key)
	require.NoError(t, err)
	slices.Sort(members)
	return members
}

func TestIndexBlock(t *testing.T) {
	ctx := context.Background()

	t.Run("alice_and_bob_at_height_10", func(t *testing.T) {
		store := memory.NewRepository()
		t0 := newTx("alice", transfer("alice", "bob", "XON"))
		t1 := newTx("bob")
		require.NoError(t, NewBlockIndexer(store).IndexBlock(ctx, 10, newBlock(10, t0, t1)))

		for _, tx := range []*types.Transaction{t0, t1} {
			height, err := store.Get(ctx, indexkey.TxHash(tx.Hash()))
			require.NoError(t, err)
			assert.Equal(t, "10", height)
		}
		assert.Equal(t, []string{"10"}, smembers(t, store, indexkey.Account("alice")))
		assert.Equal(t, []string{"10"}, smembers(t, store, indexkey.Account("bob")))
		assert.Equal(t, []string{"0"}, lrange(t, store, "alice:10"))
		assert.Equal(t, []string{"1"}, lrange(t, store, "bob:10"))
		assert.Equal(t, []string{"0"}, lrange(t, store, "alice:10:XON"))
		assert.Empty(t, lrange(t, store, "bob:10:XON"), "bob is the destination of T0 but the creator of T1 only")

		expectedKeys := []string{t0.Hash(), t1.Hash(), "alice", "bob", "alice:10", "bob:10", "alice:10:XON"}
		assert.ElementsMatch(t, expectedKeys, store.Keys())
	})

	t.Run("asset_entry_of_destination_creator", func(t *testing.T) {
		store := memory.NewRepository()
		tx := newTx("bob", transfer("alice", "bob", "XON"))
		require.NoError(t, NewBlockIndexer(store).IndexBlock(ctx, 10, newBlock(10, tx)))
		assert.Equal(t, []string{"0"}, lrange(t, store, "bob:10:XON"))
	})

	t.Run("transfer_not_involving_creator", func(t *testing.T) {
		store := memory.NewRepository()
		tx := newTx("carol", transfer("alice", "bob", "XON"))
		require.NoError(t, NewBlockIndexer(store).IndexBlock(ctx, 3, newBlock(3, tx)))
		assert.Empty(t, lrange(t, store, "carol:3:XON"))
		assert.Equal(t, []string{"0"}, lrange(t, store, "carol:3"))
	})

	t.Run("no_transfer_commands", func(t *testing.T) {
		store := memory.NewRepository()
		tx := newTx("alice",
			types.AddAssetQuantity{AccountID: "alice", AssetID: "XON", Amount: decimal.NewFromInt(5)},
			types.SetAccountDetail{AccountID: "alice", Key: "k", Value: "v"},
		)
		require.NoError(t, NewBlockIndexer(store).IndexBlock(ctx, 1, newBlock(1, tx)))
		assert.ElementsMatch(t, []string{tx.Hash(), "alice", "alice:1"}, store.Keys())
	})

	t.Run("same_asset_twice_in_one_transaction", func(t *testing.T) {
		store := memory.NewRepository()
		tx := newTx("alice",
			transfer("alice", "bob", "XON"),
			transfer("alice", "carol", "XON"),
			transfer("dave", "alice", "XON"),
		)
		require.NoError(t, NewBlockIndexer(store).IndexBlock(ctx, 2, newBlock(2, tx)))
		assert.Equal(t, []string{"0"}, lrange(t, store, "alice:2:XON"))
	})

	t.Run("account_with_separator", func(t *testing.T) {
		store := memory.NewRepository()
		tx := newTx("a:1", transfer("a:1", "b", "x:y"))
		require.NoError(t, NewBlockIndexer(store).IndexBlock(ctx, 23, newBlock(23, tx)))
		assert.Equal(t, []string{"0"}, lrange(t, store, indexkey.AccountHeight("a:1", 23)))
		assert.Equal(t, []string{"0"}, lrange(t, store, indexkey.AccountHeightAsset("a:1", 23, "x:y")))
		assert.Empty(t, lrange(t, store, "a:1:23"))
	})

	t.Run("empty_block", func(t *testing.T) {
		store := memory.NewRepository()
		require.NoError(t, NewBlockIndexer(store).IndexBlock(ctx, 1, newBlock(1)))
		assert.Empty(t, store.Keys())
	})

	t.Run("indexing_twice_duplicates_lists", func(t *testing.T) {
		// IndexBlock is not idempotent; the progress marker of Processor keeps
		// a height from being indexed twice.
		store := memory.NewRepository()
		indexer := NewBlockIndexer(store)
		block := newBlock(10, newTx("alice", transfer("alice", "bob", "XON")), newTx("alice"))
		require.NoError(t, indexer.IndexBlock(ctx, 10, block))
		require.NoError(t, indexer.IndexBlock(ctx, 10, block))

		assert.Equal(t, []string{"0", "1", "0", "1"}, lrange(t, store, "alice:10"))
		assert.Equal(t, []string{"0", "0"}, lrange(t, store, "alice:10:XON"))
		assert.Equal(t, []string{"10"}, smembers(t, store, "alice"), "set and hash families are unaffected")
	})
}

// recordingStore counts the writes sent to the store and can fail the n-th one.
type recordingStore struct {
	*memory.Repository
	writes []string
	failAt int
}

func (s *recordingStore) record(op, key string) error {
	s.writes = append(s.writes, op+" "+key)
	if s.failAt > 0 && len(s.writes) == s.failAt {
		return errors.Wrap(errs.InternalError, "connection reset")
	}
	return nil
}

func (s *recordingStore) Set(ctx context.Context, key, value string) error {
	if err := s.record("SET", key); err != nil {
		return err
	}
	return s.Repository.Set(ctx, key, value)
}

func (s *recordingStore) SAdd(ctx context.Context, key, member string) error {
	if err := s.record("SADD", key); err != nil {
		return err
	}
	return s.Repository.SAdd(ctx, key, member)
}

func (s *recordingStore) RPush(ctx context.Context, key, value string) error {
	if err := s.record("RPUSH", key); err != nil {
		return err
	}
	return s.Repository.RPush(ctx, key, value)
}

func (s *recordingStore) Pipelined(_ context.Context, fn func(w datagateway.IndexWriter) error) error {
	return fn(s)
}

func TestIndexBlockWrites(t *testing.T) {
	ctx := context.Background()

	t.Run("mutations_per_transaction", func(t *testing.T) {
		store := &recordingStore{Repository: memory.NewRepository()}
		tx := newTx("alice",
			transfer("alice", "bob", "YEN"),
			transfer("alice", "bob", "XON"),
			transfer("bob", "alice", "YEN"),
		)
		require.NoError(t, NewBlockIndexer(store).IndexBlock(ctx, 7, newBlock(7, tx)))
		assert.Equal(t, []string{
			"SET " + tx.Hash(),
			"SADD alice",
			"RPUSH alice:7",
			"RPUSH alice:7:XON",
			"RPUSH alice:7:YEN",
		}, store.writes, "3 writes plus one per distinct asset, assets in ascending order")
	})

	t.Run("first_failure_aborts", func(t *testing.T) {
		store := &recordingStore{Repository: memory.NewRepository(), failAt: 5}
		block := newBlock(4, newTx("alice"), newTx("bob"), newTx("carol"))
		err := NewBlockIndexer(store).IndexBlock(ctx, 4, block)
		require.Error(t, err)
		assert.True(t, errors.Is(err, errs.InternalError))
		assert.Contains(t, err.Error(), "transaction #1 of block 4")

		assert.Len(t, store.writes, 5, "no write after the failing one")
		assert.Equal(t, []string{"0"}, lrange(t, store.Repository, "alice:4"), "earlier writes are kept")
		assert.Empty(t, lrange(t, store.Repository, "carol:4"))
	})

	t.Run("canceled_context", func(t *testing.T) {
		store := &recordingStore{Repository: memory.NewRepository()}
		ctx, cancel := context.WithCancel(ctx)
		cancel()
		err := NewBlockIndexer(store).IndexBlock(ctx, 1, newBlock(1, newTx("alice")))
		require.ErrorIs(t, err, context.Canceled)
		assert.Empty(t, store.writes)
	})
}

func TestIndexBlockMetrics(t *testing.T) {
	metrics := NewMetrics(prometheus.NewRegistry())
	store := memory.NewRepository()
	block := newBlock(12,
		newTx("alice", transfer("alice", "bob", "XON"), transfer("alice", "bob", "YEN")),
		newTx("bob"),
	)
	require.NoError(t, NewBlockIndexer(store, WithMetrics(metrics)).IndexBlock(context.Background(), 12, block))

	assert.Equal(t, float64(2), testutil.ToFloat64(metrics.Writes.WithLabelValues(FamilyTxHash)))
	assert.Equal(t, float64(2), testutil.ToFloat64(metrics.Writes.WithLabelValues(FamilyAccountHeight)))
	assert.Equal(t, float64(2), testutil.ToFloat64(metrics.Writes.WithLabelValues(FamilyAccountHeightAsset)))
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.Blocks))
	assert.Equal(t, float64(12), testutil.ToFloat64(metrics.IndexedHeight))
}

func TestPurgeBlock(t *testing.T) {
	ctx := context.Background()

	t.Run("purge_then_index_equals_single_index", func(t *testing.T) {
		block := newBlock(10,
			newTx("alice", transfer("alice", "bob", "XON")),
			newTx("bob", transfer("alice", "bob", "XON")),
			newTx("alice"),
		)

		expected := memory.NewRepository()
		require.NoError(t, NewBlockIndexer(expected).IndexBlock(ctx, 10, block))

		store := &recordingStore{Repository: memory.NewRepository(), failAt: 6}
		indexer := NewBlockIndexer(store)
		require.Error(t, indexer.IndexBlock(ctx, 10, block))
		store.failAt = 0

		require.NoError(t, indexer.PurgeBlock(ctx, 10, block))
		assert.Empty(t, store.Keys())
		require.NoError(t, indexer.IndexBlock(ctx, 10, block))

		assert.ElementsMatch(t, expected.Keys(), store.Keys())
		for _, key := range []string{"alice:10", "bob:10", "alice:10:XON", "bob:10:XON"} {
			assert.Equal(t, lrange(t, expected, key), lrange(t, store.Repository, key), key)
		}
	})

	t.Run("keeps_other_heights", func(t *testing.T) {
		store := memory.NewRepository()
		indexer := NewBlockIndexer(store)
		b1 := newBlock(1, newTx("alice", transfer("alice", "bob", "XON")))
		b2 := newBlock(2, newTx("alice", transfer("alice", "bob", "XON")))
		require.NoError(t, indexer.IndexBlock(ctx, 1, b1))
		require.NoError(t, indexer.IndexBlock(ctx, 2, b2))

		require.NoError(t, indexer.PurgeBlock(ctx, 2, b2))
		assert.Equal(t, []string{"1"}, smembers(t, store, "alice"))
		assert.Equal(t, []string{"0"}, lrange(t, store, "alice:1:XON"))
		_, err := store.Get(ctx, b2.Transactions[0].Hash())
		assert.ErrorIs(t, err, errs.NotFound)
		height, err := store.Get(ctx, b1.Transactions[0].Hash())
		require.NoError(t, err)
		assert.Equal(t, "1", height)
	})

	t.Run("unsupported_store", func(t *testing.T) {
		indexer := NewBlockIndexer(writeOnlyStore{memory.NewRepository()})
		err := indexer.PurgeBlock(ctx, 1, newBlock(1, newTx("alice")))
		assert.ErrorIs(t, err, errs.Unsupported)
	})
}

type writeOnlyStore struct {
	repo *memory.Repository
}

func (s writeOnlyStore) Set(ctx context.Context, key, value string) error {
	return s.repo.Set(ctx, key, value)
}

func (s writeOnlyStore) SAdd(ctx context.Context, key, member string) error {
	return s.repo.SAdd(ctx, key, member)
}

func (s writeOnlyStore) RPush(ctx context.Context, key, value string) error {
	return s.repo.RPush(ctx, key, value)
}

func (s writeOnlyStore) Pipelined(ctx context.Context, fn func(w datagateway.IndexWriter) error) error {
	return s.repo.Pipelined(ctx, fn)
}

func TestTransferredAssets(t *testing.T) {
	commands := []types.Command{
		transfer("alice", "bob", "YEN"),
		types.CreateAsset{AssetName: "ZED", DomainID: "test", Precision: 2},
		transfer("carol", "alice", "ABC"),
		nil,
		transfer("carol", "bob", "XON"),
		transfer("bob", "alice", "YEN"),
	}
	assert.Equal(t, []string{"ABC", "YEN"}, TransferredAssets("alice", commands))
	assert.Equal(t, []string{"XON", "YEN"}, TransferredAssets("bob", commands))
	assert.Empty(t, TransferredAssets("dave", commands))
}

func TestIndexBlockProperties(t *testing.T) {
	accounts := []string{"alice", "bob", "carol", "a:1", `x\y`}
	assets := []string{"XON", "YEN", "1:23"}

	rapid.Check(t, func(t *rapid.T) {
		ctx := context.Background()
		height := rapid.Uint64Range(0, 1_000_000).Draw(t, "height")
		txCount := rapid.IntRange(0, 8).Draw(t, "txs")

		txs := make([]*types.Transaction, 0, txCount)
		for i := 0; i < txCount; i++ {
			creator := rapid.SampledFrom(accounts).Draw(t, "creator")
			cmdCount := rapid.IntRange(0, 4).Draw(t, "commands")
			cmds := make([]types.Command, 0, cmdCount)
			for j := 0; j < cmdCount; j++ {
				if rapid.Bool().Draw(t, "is_transfer") {
					cmds = append(cmds, transfer(
						rapid.SampledFrom(accounts).Draw(t, "src"),
						rapid.SampledFrom(accounts).Draw(t, "dest"),
						rapid.SampledFrom(assets).Draw(t, "asset"),
					))
				} else {
					cmds = append(cmds, types.SetAccountDetail{AccountID: creator, Key: "k", Value: "v"})
				}
			}
			txs = append(txs, newTx(creator, cmds...))
		}

		store := memory.NewRepository()
		require.NoError(t, NewBlockIndexer(store).IndexBlock(ctx, height, newBlock(height, txs...)))
		heightValue := strconv.FormatUint(height, 10)

		for _, tx := range txs {
			got, err := store.Get(ctx, indexkey.TxHash(tx.Hash()))
			require.NoError(t, err)
			assert.Equal(t, heightValue, got)
			assert.Contains(t, smembers(t, store, indexkey.Account(tx.CreatorAccountID)), heightValue)
		}

		for _, account := range accounts {
			var expected []string
			for i, tx := range txs {
				if tx.CreatorAccountID == account {
					expected = append(expected, strconv.Itoa(i))
				}
			}
			got := lrange(t, store, indexkey.AccountHeight(account, height))
			if len(expected) == 0 {
				assert.Empty(t, got)
			} else {
				assert.Equal(t, expected, got, "ascending, without duplicates")
			}

			for _, asset := range assets {
				var expectedAsset []string
				for i, tx := range txs {
					if tx.CreatorAccountID != account {
						continue
					}
					qualifies := lo.ContainsBy(tx.Commands, func(cmd types.Command) bool {
						c, ok := cmd.(types.TransferAsset)
						return ok && c.AssetID == asset && (c.SrcAccountID == account || c.DestAccountID == account)
					})
					if qualifies {
						expectedAsset = append(expectedAsset, strconv.Itoa(i))
					}
				}
				got := lrange(t, store, indexkey.AccountHeightAsset(account, height, asset))
				if len(expectedAsset) == 0 {
					assert.Empty(t, got)
				} else {
					assert.Equal(t, expectedAsset, got)
				}
			}
		}
	})
}
