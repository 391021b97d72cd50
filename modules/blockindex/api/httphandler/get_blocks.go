package httphandler

import (
	"github.com/cockroachdb/errors"
	"github.com/gaze-network/ledger-indexer/common"
	"github.com/gaze-network/ledger-indexer/common/errs"
	"github.com/gaze-network/ledger-indexer/core/types"
	"github.com/gaze-network/ledger-indexer/modules/blockindex/query"
	"github.com/gofiber/fiber/v2"
)

type getBlocksRequest struct {
	From uint64 `query:"from"`
	To   uint64 `query:"to"`
}

const getBlocksMaxRange = 100

func (r getBlocksRequest) Validate() error {
	var errList []error
	if r.From > r.To {
		errList = append(errList, errors.New("'from' must be less than or equal to 'to'"))
	} else if r.To-r.From >= getBlocksMaxRange {
		errList = append(errList, errors.Errorf("cannot exceed %d blocks", getBlocksMaxRange))
	}
	return errs.WithPublicMessage(errors.Join(errList...), "validation error")
}

type getBlocksResult struct {
	List []*types.Block `json:"list"`
}

type getBlocksResponse = common.HttpResponse[getBlocksResult]

func (h *HttpHandler) GetBlocks(ctx *fiber.Ctx) (err error) {
	var req getBlocksRequest
	if err := ctx.QueryParser(&req); err != nil {
		return errs.NewPublicError("'from' and 'to' must be non-negative integers")
	}
	if err := req.Validate(); err != nil {
		return errors.WithStack(err)
	}

	responses, err := h.registry.Collect(ctx.UserContext(), query.GetBlocks{From: req.From, To: req.To})
	if err != nil {
		return errors.Wrap(err, "error during GetBlocks")
	}

	blocks := make([]*types.Block, 0, len(responses))
	for _, resp := range responses {
		block, ok := resp.(query.BlockResponse)
		if !ok {
			return errors.Wrapf(errs.InternalError, "unexpected response type %T", resp)
		}
		blocks = append(blocks, block.Block)
	}

	return errors.WithStack(ctx.JSON(getBlocksResponse{
		Result: &getBlocksResult{
			List: blocks,
		},
	}))
}
