// Package automaxprocs sets GOMAXPROCS to the CPU quota of the container the indexer runs in.
package automaxprocs

import (
	"context"
	"fmt"
	"os"
	"runtime"
	"sync"

	"github.com/Cleverse/go-utilities/utils"
	"github.com/cockroachdb/errors"
	"github.com/gaze-network/ledger-indexer/pkg/logger"
	"github.com/gaze-network/ledger-indexer/pkg/logger/slogx"
	"go.uber.org/automaxprocs/maxprocs"
)

var (
	mu sync.Mutex

	// undo reverts the last Init, nil before Init.
	undo func()

	// initialMaxProcs is GOMAXPROCS at startup.
	initialMaxProcs = Current()
)

// Init sets GOMAXPROCS from the Linux CPU quota, at least 1. It is a no-op without a quota
// or when the GOMAXPROCS environment variable is set.
func Init(ctx context.Context) error {
	mu.Lock()
	defer mu.Unlock()

	ctx = logger.WithContext(ctx,
		slogx.String("package", "automaxprocs"),
		slogx.String("event", "set_gomaxprocs"),
		slogx.Int("prev_maxprocs", Current()),
	)
	printf := func(format string, v ...any) {
		msg := fmt.Sprintf(format, v...)
		// maxprocs passes the value it set as the only argument
		if val, ok := utils.Optional(v); ok {
			if _, exists := os.LookupEnv("GOMAXPROCS"); exists {
				val = Current()
			}
			if n, ok := val.(int); ok {
				logger.InfoContext(ctx, msg, slogx.Int("set_maxprocs", n))
				return
			}
		}
		logger.InfoContext(ctx, msg)
	}

	revert, err := maxprocs.Set(maxprocs.Logger(printf), maxprocs.Min(1))
	if err != nil {
		return errors.Wrap(err, "can't set GOMAXPROCS")
	}
	undo = revert
	return nil
}

// Undo reverts Init, or restores the startup value if Init never ran. It returns the current GOMAXPROCS.
func Undo() int {
	mu.Lock()
	defer mu.Unlock()

	if undo != nil {
		undo()
		undo = nil
		return Current()
	}
	runtime.GOMAXPROCS(initialMaxProcs)
	return initialMaxProcs
}

// Current returns the current value of GOMAXPROCS.
func Current() int {
	return runtime.GOMAXPROCS(0)
}
