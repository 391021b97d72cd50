package httphandler_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/gaze-network/ledger-indexer/common/errs"
	"github.com/gaze-network/ledger-indexer/core/types"
	"github.com/gaze-network/ledger-indexer/modules/blockindex"
	"github.com/gaze-network/ledger-indexer/modules/blockindex/api/httphandler"
	"github.com/gaze-network/ledger-indexer/modules/blockindex/internal/entity"
	"github.com/gaze-network/ledger-indexer/modules/blockindex/query"
	"github.com/gaze-network/ledger-indexer/modules/blockindex/repository/memory"
	"github.com/gaze-network/ledger-indexer/modules/blockindex/usecase"
	"github.com/gaze-network/ledger-indexer/pkg/errorhandler"
	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type ledger []*types.Block

func (l ledger) GetBlock(_ context.Context, height uint64) (*types.Block, error) {
	for _, block := range l {
		if block.Height() == height {
			return block, nil
		}
	}
	return nil, errors.Wrapf(errs.NotFound, "block %d", height)
}

func (l ledger) GetBlocks(_ context.Context, from, to uint64) ([]*types.Block, error) {
	blocks := make([]*types.Block, 0)
	for _, block := range l {
		if block.Height() >= from && block.Height() <= to {
			blocks = append(blocks, block)
		}
	}
	return blocks, nil
}

func (l ledger) GetBlockHeader(ctx context.Context, height uint64) (types.BlockHeader, error) {
	block, err := l.GetBlock(ctx, height)
	if err != nil {
		return types.BlockHeader{}, err
	}
	return block.BlockHeader(), nil
}

type fixture struct {
	app    *fiber.App
	repo   *memory.Repository
	blocks ledger
}

func newFixture(t *testing.T, register func(*query.Registry, query.Reader) error) fixture {
	ctx := context.Background()
	tx := func(creator string, counter uint64, cmds ...types.Command) *types.Transaction {
		return &types.Transaction{CreatorAccountID: creator, CreatedAt: time.Unix(1_700_000_000, 0).UTC(), Counter: counter, Quorum: 1, Commands: cmds}
	}
	blocks := ledger{
		{Header: types.BlockHeader{Height: 1, Hash: "h1"}, Transactions: []*types.Transaction{tx("bob", 1)}},
		{Header: types.BlockHeader{Height: 2, Hash: "h2", PrevHash: "h1"}, Transactions: []*types.Transaction{
			tx("alice@test", 2, types.TransferAsset{SrcAccountID: "alice@test", DestAccountID: "bob", AssetID: "xon#test", Amount: decimal.NewFromInt(1)}),
			tx("bob", 3),
		}},
	}

	repo := memory.NewRepository()
	indexer := blockindex.NewBlockIndexer(repo)
	for _, block := range blocks {
		require.NoError(t, indexer.IndexBlock(ctx, block.Height(), block))
	}

	uc := usecase.New(repo, blocks, repo)
	registry := query.NewRegistry()
	require.NoError(t, register(registry, uc))

	app := fiber.New(fiber.Config{ErrorHandler: errorhandler.NewHTTPErrorHandler()})
	require.NoError(t, httphandler.New(registry, uc).Mount(app))
	return fixture{app: app, repo: repo, blocks: blocks}
}

func (f fixture) do(t *testing.T, method, path, body string) (int, map[string]any) {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	}
	resp, err := f.app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	var out map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return resp.StatusCode, out
}

func TestHttpHandler(t *testing.T) {
	f := newFixture(t, query.RegisterDefaultHandlers)
	hash := f.blocks[1].Transactions[1].Hash()

	t.Run("transaction_height", func(t *testing.T) {
		status, body := f.do(t, http.MethodGet, "/v1/blockindex/transactions/"+hash+"/height", "")
		assert.Equal(t, http.StatusOK, status)
		assert.Equal(t, map[string]any{"hash": hash, "height": float64(2)}, body["result"])

		status, _ = f.do(t, http.MethodGet, "/v1/blockindex/transactions/ffff/height", "")
		assert.Equal(t, http.StatusNotFound, status)

		status, _ = f.do(t, http.MethodGet, "/v1/blockindex/transactions/"+strings.Repeat("a", 65)+"/height", "")
		assert.Equal(t, http.StatusBadRequest, status)
	})

	t.Run("transaction_height_batch", func(t *testing.T) {
		status, body := f.do(t, http.MethodPost, "/v1/blockindex/transactions/heights/batch", `{"hashes":["`+hash+`","ffff","`+hash+`"]}`)
		require.Equal(t, http.StatusOK, status)
		list := body["result"].(map[string]any)["list"].([]any)
		require.Len(t, list, 3)
		assert.Equal(t, float64(2), list[0].(map[string]any)["height"])
		assert.Nil(t, list[1])
		assert.Equal(t, list[0], list[2])

		status, _ = f.do(t, http.MethodPost, "/v1/blockindex/transactions/heights/batch", `{"hashes":[]}`)
		assert.Equal(t, http.StatusBadRequest, status)
	})

	t.Run("account_heights", func(t *testing.T) {
		status, body := f.do(t, http.MethodGet, "/v1/blockindex/accounts/bob/heights", "")
		assert.Equal(t, http.StatusOK, status)
		assert.Equal(t, []any{float64(1), float64(2)}, body["result"].(map[string]any)["heights"])
	})

	t.Run("account_transactions", func(t *testing.T) {
		status, body := f.do(t, http.MethodGet, "/v1/blockindex/accounts/bob/heights/2/transactions", "")
		assert.Equal(t, http.StatusOK, status)
		assert.Equal(t, []any{float64(1)}, body["result"].(map[string]any)["txIndices"])

		status, _ = f.do(t, http.MethodGet, "/v1/blockindex/accounts/bob/heights/x/transactions", "")
		assert.Equal(t, http.StatusBadRequest, status)
	})

	t.Run("account_asset_transactions", func(t *testing.T) {
		status, body := f.do(t, http.MethodGet, "/v1/blockindex/accounts/alice@test/heights/2/assets/xon%23test/transactions", "")
		assert.Equal(t, http.StatusOK, status)
		result := body["result"].(map[string]any)
		assert.Equal(t, "xon#test", result["assetId"])
		assert.Equal(t, []any{float64(0)}, result["txIndices"])
	})

	t.Run("blocks", func(t *testing.T) {
		status, body := f.do(t, http.MethodGet, "/v1/blockindex/blocks?from=2&to=10", "")
		assert.Equal(t, http.StatusOK, status)
		list := body["result"].(map[string]any)["list"].([]any)
		require.Len(t, list, 1)

		status, _ = f.do(t, http.MethodGet, "/v1/blockindex/blocks?from=0&to=100", "")
		assert.Equal(t, http.StatusBadRequest, status)
		status, _ = f.do(t, http.MethodGet, "/v1/blockindex/blocks?from=5&to=1", "")
		assert.Equal(t, http.StatusBadRequest, status)
	})

	t.Run("current_block", func(t *testing.T) {
		status, _ := f.do(t, http.MethodGet, "/v1/blockindex/current-block", "")
		assert.Equal(t, http.StatusNotFound, status)

		header := f.blocks[1].BlockHeader()
		require.NoError(t, f.repo.SetIndexerState(context.Background(), entity.IndexerState{LatestBlock: &header, DBVersion: blockindex.DBVersion}))
		status, body := f.do(t, http.MethodGet, "/v1/blockindex/current-block", "")
		assert.Equal(t, http.StatusOK, status)
		assert.Equal(t, map[string]any{"hash": "h2", "height": float64(2)}, body["result"])
	})
}

func TestHttpHandlerUnhandledQuery(t *testing.T) {
	f := newFixture(t, func(registry *query.Registry, reader query.Reader) error {
		return nil
	})

	status, body := f.do(t, http.MethodGet, "/v1/blockindex/accounts/bob/heights", "")
	assert.Equal(t, http.StatusNotImplemented, status)
	assert.Equal(t, errs.Unhandled.Error(), body["error"])
}
