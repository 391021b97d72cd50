package httphandler

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/gaze-network/ledger-indexer/common/errs"
	"github.com/gaze-network/ledger-indexer/core/types"
	"github.com/gaze-network/ledger-indexer/modules/blockindex/query"
)

// LatestBlockReader returns the progress marker of the indexer.
type LatestBlockReader interface {
	GetLatestBlock(ctx context.Context) (types.BlockHeader, error)
}

type HttpHandler struct {
	registry *query.Registry
	latest   LatestBlockReader
}

func New(registry *query.Registry, latest LatestBlockReader) *HttpHandler {
	return &HttpHandler{
		registry: registry,
		latest:   latest,
	}
}

// collectOne runs a query that answers with exactly one response.
func collectOne[R query.Response](ctx context.Context, registry *query.Registry, q query.Query) (R, error) {
	var zero R
	responses, err := registry.Collect(ctx, q)
	if err != nil {
		return zero, errors.WithStack(err)
	}
	if len(responses) != 1 {
		return zero, errors.Wrapf(errs.InternalError, "expected one response for %s, got %d", q.Kind(), len(responses))
	}
	resp, ok := responses[0].(R)
	if !ok {
		return zero, errors.Wrapf(errs.InternalError, "unexpected response type %T for %s", responses[0], q.Kind())
	}
	return resp, nil
}
