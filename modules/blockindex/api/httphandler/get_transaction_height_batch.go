package httphandler

import (
	"github.com/cockroachdb/errors"
	"github.com/gaze-network/ledger-indexer/common"
	"github.com/gaze-network/ledger-indexer/common/errs"
	"github.com/gaze-network/ledger-indexer/modules/blockindex/query"
	"github.com/gofiber/fiber/v2"
	"github.com/samber/lo"
	"golang.org/x/sync/errgroup"
)

type getTransactionHeightBatchRequest struct {
	Hashes []string `json:"hashes"`
}

const getTransactionHeightBatchMaxQueries = 100

func (r getTransactionHeightBatchRequest) Validate() error {
	var errList []error
	if len(r.Hashes) == 0 {
		errList = append(errList, errors.New("at least one hash is required"))
	}
	if len(r.Hashes) > getTransactionHeightBatchMaxQueries {
		errList = append(errList, errors.Errorf("cannot exceed %d hashes", getTransactionHeightBatchMaxQueries))
	}
	for i, hash := range r.Hashes {
		if hash == "" || len(hash) > hashStringSize {
			errList = append(errList, errors.Errorf("hashes[%d]: invalid hash", i))
		}
	}
	return errs.WithPublicMessage(errors.Join(errList...), "validation error")
}

type getTransactionHeightBatchResult struct {
	// List holds one entry per requested hash, nil for hashes that are not indexed.
	List []*getTransactionHeightResult `json:"list"`
}

type getTransactionHeightBatchResponse = common.HttpResponse[getTransactionHeightBatchResult]

func (h *HttpHandler) GetTransactionHeightBatch(ctx *fiber.Ctx) (err error) {
	var req getTransactionHeightBatchRequest
	if err := ctx.BodyParser(&req); err != nil {
		return errors.WithStack(err)
	}
	if err := req.Validate(); err != nil {
		return errors.WithStack(err)
	}

	hashes := lo.Uniq(req.Hashes)
	heights := make([]*getTransactionHeightResult, len(hashes))
	eg, ectx := errgroup.WithContext(ctx.UserContext())
	for i, hash := range hashes {
		i, hash := i, hash
		eg.Go(func() error {
			resp, err := collectOne[query.TransactionHeightResponse](ectx, h.registry, query.GetTransactionHeight{Hash: hash})
			if err != nil {
				if errors.Is(err, errs.NotFound) {
					return nil
				}
				return errors.Wrapf(err, "error during GetTransactionHeight for hash %s", hash)
			}
			heights[i] = &getTransactionHeightResult{Hash: resp.Hash, Height: resp.Height}
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return errors.WithStack(err)
	}

	byHash := make(map[string]*getTransactionHeightResult, len(hashes))
	for i, hash := range hashes {
		byHash[hash] = heights[i]
	}
	return errors.WithStack(ctx.JSON(getTransactionHeightBatchResponse{
		Result: &getTransactionHeightBatchResult{
			List: lo.Map(req.Hashes, func(hash string, _ int) *getTransactionHeightResult {
				return byHash[hash]
			}),
		},
	}))
}
