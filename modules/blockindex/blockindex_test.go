package blockindex

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/gaze-network/ledger-indexer/common/errs"
	"github.com/gaze-network/ledger-indexer/internal/config"
	blockindexconfig "github.com/gaze-network/ledger-indexer/modules/blockindex/config"
	"github.com/stretchr/testify/assert"
)

func TestNewProcessorFromConfigVolatileState(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "index")
	moduleConf := blockindexconfig.Default()
	moduleConf.Database = "pebble"
	moduleConf.Pebble.Dir = dir
	moduleConf.StateDatabase = "memory"

	conf := config.Config{Modules: config.Modules{BlockIndex: moduleConf}}
	_, err := NewProcessorFromConfig(context.Background(), conf)
	assert.ErrorIs(t, err, errs.InvalidArgument)

	_, statErr := os.Stat(dir)
	assert.True(t, os.IsNotExist(statErr), "no store is opened for a rejected configuration")
}
