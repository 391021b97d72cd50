package blockindex

const (
	Version   = "v0.1.0"
	DBVersion = 1

	// revertChunkSize is the number of blocks read from the ledger at once while reverting.
	revertChunkSize = 100
)
