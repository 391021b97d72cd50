package httphandler

import (
	"github.com/cockroachdb/errors"
	"github.com/gaze-network/ledger-indexer/common"
	"github.com/gaze-network/ledger-indexer/common/errs"
	"github.com/gaze-network/ledger-indexer/modules/blockindex/query"
	"github.com/gofiber/fiber/v2"
)

type getTransactionHeightRequest struct {
	Hash string `params:"hash"`
}

// hashStringSize is the hex length of a SHA3-256 transaction hash.
const hashStringSize = 64

func (r getTransactionHeightRequest) Validate() error {
	var errList []error
	if len(r.Hash) == 0 {
		errList = append(errList, errors.New("'hash' is required"))
	}
	if len(r.Hash) > hashStringSize {
		errList = append(errList, errors.Errorf("'hash' length must be less than or equal to %d characters", hashStringSize))
	}
	return errs.WithPublicMessage(errors.Join(errList...), "validation error")
}

type getTransactionHeightResult struct {
	Hash   string `json:"hash"`
	Height uint64 `json:"height"`
}

type getTransactionHeightResponse = common.HttpResponse[getTransactionHeightResult]

func (h *HttpHandler) GetTransactionHeight(ctx *fiber.Ctx) (err error) {
	var req getTransactionHeightRequest
	if err := ctx.ParamsParser(&req); err != nil {
		return errors.WithStack(err)
	}
	if err := req.Validate(); err != nil {
		return errors.WithStack(err)
	}

	resp, err := collectOne[query.TransactionHeightResponse](ctx.UserContext(), h.registry, query.GetTransactionHeight{Hash: req.Hash})
	if err != nil {
		if errors.Is(err, errs.NotFound) {
			return fiber.NewError(fiber.StatusNotFound, "transaction not found")
		}
		return errors.Wrap(err, "error during GetTransactionHeight")
	}

	return errors.WithStack(ctx.JSON(getTransactionHeightResponse{
		Result: &getTransactionHeightResult{
			Hash:   resp.Hash,
			Height: resp.Height,
		},
	}))
}
