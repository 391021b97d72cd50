package httphandler

import (
	"net/url"

	"github.com/cockroachdb/errors"
	"github.com/gaze-network/ledger-indexer/common"
	"github.com/gaze-network/ledger-indexer/common/errs"
	"github.com/gaze-network/ledger-indexer/modules/blockindex/query"
	"github.com/gofiber/fiber/v2"
)

type getAccountHeightsRequest struct {
	Account string `params:"account"`
}

func (r *getAccountHeightsRequest) ParseAndValidate() error {
	account, err := url.PathUnescape(r.Account)
	if err != nil || account == "" {
		return errs.NewPublicError("'account' is invalid")
	}
	r.Account = account
	return nil
}

type getAccountHeightsResult struct {
	AccountID string   `json:"accountId"`
	Heights   []uint64 `json:"heights"`
}

type getAccountHeightsResponse = common.HttpResponse[getAccountHeightsResult]

func (h *HttpHandler) GetAccountHeights(ctx *fiber.Ctx) (err error) {
	var req getAccountHeightsRequest
	if err := ctx.ParamsParser(&req); err != nil {
		return errors.WithStack(err)
	}
	if err := req.ParseAndValidate(); err != nil {
		return errors.WithStack(err)
	}

	resp, err := collectOne[query.AccountHeightsResponse](ctx.UserContext(), h.registry, query.GetAccountHeights{AccountID: req.Account})
	if err != nil {
		return errors.Wrap(err, "error during GetAccountHeights")
	}

	return errors.WithStack(ctx.JSON(getAccountHeightsResponse{
		Result: &getAccountHeightsResult{
			AccountID: resp.AccountID,
			Heights:   resp.Heights,
		},
	}))
}

type getAccountTransactionsRequest struct {
	Account string `params:"account"`
	Height  uint64 `params:"height"`
	Asset   string `params:"asset"`
}

func (r *getAccountTransactionsRequest) ParseAndValidate(withAsset bool) error {
	var errList []error
	account, err := url.PathUnescape(r.Account)
	if err != nil || account == "" {
		errList = append(errList, errors.New("'account' is invalid"))
	}
	r.Account = account
	if withAsset {
		asset, err := url.PathUnescape(r.Asset)
		if err != nil || asset == "" {
			errList = append(errList, errors.New("'asset' is invalid"))
		}
		r.Asset = asset
	}
	return errs.WithPublicMessage(errors.Join(errList...), "validation error")
}

type getAccountTransactionsResult struct {
	AccountID string   `json:"accountId"`
	Height    uint64   `json:"height"`
	AssetID   string   `json:"assetId,omitempty"`
	TxIndices []uint32 `json:"txIndices"`
}

type getAccountTransactionsResponse = common.HttpResponse[getAccountTransactionsResult]

func (h *HttpHandler) GetAccountTransactions(ctx *fiber.Ctx) (err error) {
	var req getAccountTransactionsRequest
	if err := ctx.ParamsParser(&req); err != nil {
		return errs.NewPublicError("'height' must be a non-negative integer")
	}
	if err := req.ParseAndValidate(false); err != nil {
		return errors.WithStack(err)
	}

	resp, err := collectOne[query.AccountTransactionsResponse](ctx.UserContext(), h.registry, query.GetAccountTransactions{
		AccountID: req.Account,
		Height:    req.Height,
	})
	if err != nil {
		return errors.Wrap(err, "error during GetAccountTransactions")
	}

	return errors.WithStack(ctx.JSON(getAccountTransactionsResponse{
		Result: &getAccountTransactionsResult{
			AccountID: resp.AccountID,
			Height:    resp.Height,
			TxIndices: resp.TxIndices,
		},
	}))
}

func (h *HttpHandler) GetAccountAssetTransactions(ctx *fiber.Ctx) (err error) {
	var req getAccountTransactionsRequest
	if err := ctx.ParamsParser(&req); err != nil {
		return errs.NewPublicError("'height' must be a non-negative integer")
	}
	if err := req.ParseAndValidate(true); err != nil {
		return errors.WithStack(err)
	}

	resp, err := collectOne[query.AccountAssetTransactionsResponse](ctx.UserContext(), h.registry, query.GetAccountAssetTransactions{
		AccountID: req.Account,
		Height:    req.Height,
		AssetID:   req.Asset,
	})
	if err != nil {
		return errors.Wrap(err, "error during GetAccountAssetTransactions")
	}

	return errors.WithStack(ctx.JSON(getAccountTransactionsResponse{
		Result: &getAccountTransactionsResult{
			AccountID: resp.AccountID,
			Height:    resp.Height,
			AssetID:   resp.AssetID,
			TxIndices: resp.TxIndices,
		},
	}))
}
