// Package storetest holds the behaviour every index store backend must share.
package storetest

import (
	"context"
	"slices"
	"testing"

	"github.com/gaze-network/ledger-indexer/common/errs"
	"github.com/gaze-network/ledger-indexer/modules/blockindex/datagateway"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RunIndexStoreTests runs the shared index store tests against fresh stores built by newStore.
func RunIndexStoreTests(t *testing.T, newStore func(t *testing.T) datagateway.IndexDataGateway) {
	ctx := context.Background()

	t.Run("set_and_get", func(t *testing.T) {
		store := newStore(t)
		_, err := store.Get(ctx, "h1")
		require.ErrorIs(t, err, errs.NotFound)

		require.NoError(t, store.Set(ctx, "h1", "10"))
		require.NoError(t, store.Set(ctx, "h1", "11"))
		value, err := store.Get(ctx, "h1")
		require.NoError(t, err)
		assert.Equal(t, "11", value)
	})

	t.Run("set_members", func(t *testing.T) {
		store := newStore(t)
		members, err := store.SMembers(ctx, "alice")
		require.NoError(t, err)
		assert.Empty(t, members)

		for _, member := range []string{"10", "2", "10", "7"} {
			require.NoError(t, store.SAdd(ctx, "alice", member))
		}
		members, err = store.SMembers(ctx, "alice")
		require.NoError(t, err)
		slices.Sort(members)
		assert.Equal(t, []string{"10", "2", "7"}, members)

		require.NoError(t, store.SRem(ctx, "alice", "2", "99"))
		members, err = store.SMembers(ctx, "alice")
		require.NoError(t, err)
		slices.Sort(members)
		assert.Equal(t, []string{"10", "7"}, members)
	})

	t.Run("list_order", func(t *testing.T) {
		store := newStore(t)
		for _, value := range []string{"0", "3", "3", "12"} {
			require.NoError(t, store.RPush(ctx, "alice:10", value))
		}
		values, err := store.LRange(ctx, "alice:10", 0, -1)
		require.NoError(t, err)
		assert.Equal(t, []string{"0", "3", "3", "12"}, values)

		values, err = store.LRange(ctx, "alice:10", 1, 2)
		require.NoError(t, err)
		assert.Equal(t, []string{"3", "3"}, values)

		values, err = store.LRange(ctx, "alice:10", -1, -1)
		require.NoError(t, err)
		assert.Equal(t, []string{"12"}, values)

		values, err = store.LRange(ctx, "bob:10", 0, -1)
		require.NoError(t, err)
		assert.Empty(t, values)
	})

	t.Run("pipelined_keeps_order", func(t *testing.T) {
		store := newStore(t)
		err := store.Pipelined(ctx, func(w datagateway.IndexWriter) error {
			require.NoError(t, w.Set(ctx, "h1", "5"))
			require.NoError(t, w.SAdd(ctx, "alice", "5"))
			require.NoError(t, w.RPush(ctx, "alice:5", "0"))
			require.NoError(t, w.RPush(ctx, "alice:5", "1"))
			return w.RPush(ctx, "alice:5:XON", "1")
		})
		require.NoError(t, err)

		value, err := store.Get(ctx, "h1")
		require.NoError(t, err)
		assert.Equal(t, "5", value)
		values, err := store.LRange(ctx, "alice:5", 0, -1)
		require.NoError(t, err)
		assert.Equal(t, []string{"0", "1"}, values)
		values, err = store.LRange(ctx, "alice:5:XON", 0, -1)
		require.NoError(t, err)
		assert.Equal(t, []string{"1"}, values)
	})

	t.Run("keys_with_separators", func(t *testing.T) {
		store := newStore(t)
		require.NoError(t, store.RPush(ctx, `a\:1:23`, "0"))
		require.NoError(t, store.RPush(ctx, "a:1:23", "1"))
		values, err := store.LRange(ctx, `a\:1:23`, 0, -1)
		require.NoError(t, err)
		assert.Equal(t, []string{"0"}, values)
	})

	t.Run("del", func(t *testing.T) {
		store := newStore(t)
		require.NoError(t, store.RPush(ctx, "alice:1", "0"))
		require.NoError(t, store.RPush(ctx, "alice:10", "0"))
		require.NoError(t, store.SAdd(ctx, "alice", "1"))
		require.NoError(t, store.Del(ctx, "alice:1", "alice", "missing"))

		values, err := store.LRange(ctx, "alice:1", 0, -1)
		require.NoError(t, err)
		assert.Empty(t, values)
		members, err := store.SMembers(ctx, "alice")
		require.NoError(t, err)
		assert.Empty(t, members)

		values, err = store.LRange(ctx, "alice:10", 0, -1)
		require.NoError(t, err)
		assert.Equal(t, []string{"0"}, values, "keys sharing a prefix are kept")

		require.NoError(t, store.RPush(ctx, "alice:1", "4"))
		values, err = store.LRange(ctx, "alice:1", 0, -1)
		require.NoError(t, err)
		assert.Equal(t, []string{"4"}, values, "a deleted list starts over")
	})

	t.Run("del_if_equals", func(t *testing.T) {
		store := newStore(t)
		require.NoError(t, store.Set(ctx, "h1", "10"))

		deleted, err := store.DelIfEquals(ctx, "h1", "11")
		require.NoError(t, err)
		assert.False(t, deleted)
		value, err := store.Get(ctx, "h1")
		require.NoError(t, err)
		assert.Equal(t, "10", value)

		deleted, err = store.DelIfEquals(ctx, "h1", "10")
		require.NoError(t, err)
		assert.True(t, deleted)
		_, err = store.Get(ctx, "h1")
		assert.ErrorIs(t, err, errs.NotFound)

		deleted, err = store.DelIfEquals(ctx, "missing", "10")
		require.NoError(t, err)
		assert.False(t, deleted)
	})
}
