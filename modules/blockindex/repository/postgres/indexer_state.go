package postgres

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/gaze-network/ledger-indexer/common/errs"
	"github.com/gaze-network/ledger-indexer/core/types"
	"github.com/gaze-network/ledger-indexer/modules/blockindex/datagateway"
	"github.com/gaze-network/ledger-indexer/modules/blockindex/internal/entity"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

var _ datagateway.IndexerStateDataGateway = (*Repository)(nil)

const (
	getLatestIndexerStateQuery = `SELECT latest_height, latest_hash, latest_prev_hash, latest_created_at, pending_height, db_version, created_at
FROM blockindex_indexer_state ORDER BY id DESC LIMIT 1`

	setIndexerStateQuery = `INSERT INTO blockindex_indexer_state (latest_height, latest_hash, latest_prev_hash, latest_created_at, pending_height, db_version)
VALUES ($1, $2, $3, $4, $5, $6)`
)

type indexerStateModel struct {
	LatestHeight    pgtype.Int8
	LatestHash      pgtype.Text
	LatestPrevHash  pgtype.Text
	LatestCreatedAt pgtype.Timestamptz
	PendingHeight   pgtype.Int8
	DBVersion       int32
	CreatedAt       pgtype.Timestamptz
}

func (r *Repository) GetLatestIndexerState(ctx context.Context) (entity.IndexerState, error) {
	var model indexerStateModel
	err := r.db.QueryRow(ctx, getLatestIndexerStateQuery).Scan(
		&model.LatestHeight,
		&model.LatestHash,
		&model.LatestPrevHash,
		&model.LatestCreatedAt,
		&model.PendingHeight,
		&model.DBVersion,
		&model.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return entity.IndexerState{}, errors.WithStack(errs.NotFound)
		}
		return entity.IndexerState{}, errors.Wrap(err, "error during query")
	}
	return mapIndexerStateModelToType(model), nil
}

func (r *Repository) SetIndexerState(ctx context.Context, state entity.IndexerState) error {
	model := mapIndexerStateTypeToModel(state)
	if _, err := r.db.Exec(ctx, setIndexerStateQuery,
		model.LatestHeight,
		model.LatestHash,
		model.LatestPrevHash,
		model.LatestCreatedAt,
		model.PendingHeight,
		model.DBVersion,
	); err != nil {
		return errors.Wrap(err, "error during exec")
	}
	return nil
}

func mapIndexerStateModelToType(src indexerStateModel) entity.IndexerState {
	state := entity.IndexerState{
		DBVersion: src.DBVersion,
		CreatedAt: src.CreatedAt.Time,
	}
	if src.LatestHeight.Valid {
		state.LatestBlock = &types.BlockHeader{
			Height:    uint64(src.LatestHeight.Int64),
			Hash:      src.LatestHash.String,
			PrevHash:  src.LatestPrevHash.String,
			CreatedAt: src.LatestCreatedAt.Time,
		}
	}
	if src.PendingHeight.Valid {
		pending := uint64(src.PendingHeight.Int64)
		state.PendingHeight = &pending
	}
	return state
}

func mapIndexerStateTypeToModel(src entity.IndexerState) indexerStateModel {
	model := indexerStateModel{
		DBVersion: src.DBVersion,
	}
	if src.LatestBlock != nil {
		model.LatestHeight = pgtype.Int8{Int64: int64(src.LatestBlock.Height), Valid: true}
		model.LatestHash = pgtype.Text{String: src.LatestBlock.Hash, Valid: true}
		model.LatestPrevHash = pgtype.Text{String: src.LatestBlock.PrevHash, Valid: true}
		model.LatestCreatedAt = pgtype.Timestamptz{Time: src.LatestBlock.CreatedAt, Valid: !src.LatestBlock.CreatedAt.IsZero()}
	}
	if src.PendingHeight != nil {
		model.PendingHeight = pgtype.Int8{Int64: int64(*src.PendingHeight), Valid: true}
	}
	return model
}
