package usecase

import (
	"github.com/gaze-network/ledger-indexer/modules/blockindex/datagateway"
)

// Usecase reads the index families written by the block indexer.
type Usecase struct {
	indexDg  datagateway.IndexReaderDataGateway
	ledgerDg datagateway.LedgerDataGateway
	stateDg  datagateway.IndexerStateDataGateway
}

func New(indexDg datagateway.IndexReaderDataGateway, ledgerDg datagateway.LedgerDataGateway, stateDg datagateway.IndexerStateDataGateway) *Usecase {
	return &Usecase{
		indexDg:  indexDg,
		ledgerDg: ledgerDg,
		stateDg:  stateDg,
	}
}
