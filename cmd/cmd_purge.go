package cmd

import (
	"fmt"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/gaze-network/ledger-indexer/common"
	"github.com/gaze-network/ledger-indexer/internal/config"
	"github.com/gaze-network/ledger-indexer/modules/blockindex"
	"github.com/gaze-network/ledger-indexer/pkg/logger"
	"github.com/gaze-network/ledger-indexer/pkg/logger/slogx"
	"github.com/samber/lo"
	"github.com/spf13/cobra"
)

type purgeCmdOptions struct {
	From uint64
	Yes  bool
}

func NewPurgeCommand() *cobra.Command {
	opts := &purgeCmdOptions{}

	cmd := &cobra.Command{
		Use:     "purge",
		Short:   "Remove the index entries of blocks from the given height onwards",
		Example: `ledger-indexer purge --from 1200`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cmd.Flags().Changed("from") {
				return errors.New("--from is required")
			}
			return purgeHandler(opts, cmd, args)
		},
	}

	flags := cmd.Flags()
	flags.Uint64Var(&opts.From, "from", 0, "Lowest block height to purge. The indexer restarts from this height.")
	flags.BoolVar(&opts.Yes, "yes", false, "Confirm purge without prompt")

	return cmd
}

func purgeHandler(opts *purgeCmdOptions, cmd *cobra.Command, _ []string) error {
	conf := config.Load()
	ctx := logger.WithContext(cmd.Context(), slogx.String("module", common.ModuleBlockIndex.String()))

	if !opts.Yes {
		input := ""
		fmt.Printf("Are you sure you want to purge all indexed blocks from height %d? (y/N):", opts.From)
		fmt.Scanln(&input)
		if !lo.Contains([]string{"y", "yes"}, strings.ToLower(input)) {
			return nil
		}
	}

	processor, err := blockindex.NewProcessorFromConfig(ctx, conf)
	if err != nil {
		return errors.Wrap(err, "can't init block index processor")
	}
	defer func() {
		if err := processor.Shutdown(ctx); err != nil {
			logger.ErrorContext(ctx, "Failed to shutdown processor", slogx.Error(err))
		}
	}()

	if err := processor.RevertData(ctx, opts.From); err != nil {
		return errors.Wrapf(err, "failed to purge blocks from height %d", opts.From)
	}
	logger.InfoContext(ctx, "Purged indexed blocks", slogx.Uint64("from", opts.From))
	return nil
}
