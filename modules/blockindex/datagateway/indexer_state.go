package datagateway

import (
	"context"

	"github.com/gaze-network/ledger-indexer/modules/blockindex/internal/entity"
)

type IndexerStateDataGateway interface {
	// GetLatestIndexerState returns the last recorded indexer state. Returns errs.NotFound if no state was recorded yet.
	GetLatestIndexerState(ctx context.Context) (entity.IndexerState, error)
	SetIndexerState(ctx context.Context, state entity.IndexerState) error
}
