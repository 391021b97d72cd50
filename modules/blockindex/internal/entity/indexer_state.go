package entity

import (
	"time"

	"github.com/gaze-network/ledger-indexer/core/types"
)

// IndexerState is the progress marker of the block indexer.
type IndexerState struct {
	// LatestBlock is the last fully indexed block, nil if no block is indexed yet.
	LatestBlock *types.BlockHeader
	// PendingHeight is set while a block is being indexed. A state with a
	// pending height after a restart means the block may be partially indexed.
	PendingHeight *uint64
	DBVersion     int32
	CreatedAt     time.Time
}

// HasPending reports whether a block was left partially indexed.
func (s IndexerState) HasPending() bool {
	return s.PendingHeight != nil
}
