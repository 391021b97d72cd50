package postgres

import (
	"github.com/gaze-network/ledger-indexer/internal/postgres"
)

type Repository struct {
	db postgres.Queryable
}

func NewRepository(db postgres.Queryable) *Repository {
	return &Repository{
		db: db,
	}
}
