package blockindex

import (
	"context"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/gaze-network/ledger-indexer/common/errs"
	"github.com/gaze-network/ledger-indexer/core/datasources"
	"github.com/gaze-network/ledger-indexer/core/indexer"
	"github.com/gaze-network/ledger-indexer/core/types"
	"github.com/gaze-network/ledger-indexer/internal/config"
	"github.com/gaze-network/ledger-indexer/internal/postgres"
	"github.com/gaze-network/ledger-indexer/internal/redis"
	"github.com/gaze-network/ledger-indexer/modules/blockindex/api/httphandler"
	"github.com/gaze-network/ledger-indexer/modules/blockindex/datagateway"
	"github.com/gaze-network/ledger-indexer/modules/blockindex/query"
	"github.com/gaze-network/ledger-indexer/modules/blockindex/repository/memory"
	blockindexpebble "github.com/gaze-network/ledger-indexer/modules/blockindex/repository/pebble"
	blockindexpostgres "github.com/gaze-network/ledger-indexer/modules/blockindex/repository/postgres"
	blockindexredis "github.com/gaze-network/ledger-indexer/modules/blockindex/repository/redis"
	"github.com/gaze-network/ledger-indexer/modules/blockindex/usecase"
	"github.com/gaze-network/ledger-indexer/pkg/logger"
	"github.com/gaze-network/ledger-indexer/pkg/logger/slogx"
	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/samber/do/v2"
	"github.com/samber/lo"
)

// components are the stores and readers the module is assembled from.
type components struct {
	indexDg      datagateway.IndexDataGateway
	stateDg      datagateway.IndexerStateDataGateway
	datasource   *datasources.LedgerPostgres
	cleanupFuncs []func(context.Context) error
}

func New(injector do.Injector) (indexer.IndexerWorker, error) {
	ctx := do.MustInvoke[context.Context](injector)
	conf := do.MustInvoke[config.Config](injector)
	registerer := do.MustInvoke[prometheus.Registerer](injector)

	c, err := newComponents(ctx, conf)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	metrics := NewMetrics(registerer)
	processor := NewProcessor(NewBlockIndexer(c.indexDg, WithMetrics(metrics)), c.stateDg, c.datasource, c.cleanupFuncs)
	if err := processor.VerifyStates(ctx); err != nil {
		return nil, errors.WithStack(err)
	}

	// Mount API
	apiHandlers := lo.Uniq(conf.Modules.BlockIndex.APIHandlers)
	for _, handler := range apiHandlers {
		switch handler {
		case "http":
			httpServer := do.MustInvoke[*fiber.App](injector)
			blockindexUsecase := usecase.New(c.indexDg, c.datasource, c.stateDg)
			registry := query.NewRegistry()
			if err := query.RegisterDefaultHandlers(registry, blockindexUsecase); err != nil {
				return nil, errors.Wrap(err, "can't register query handlers")
			}
			if err := httphandler.New(registry, blockindexUsecase).Mount(httpServer); err != nil {
				return nil, errors.Wrap(err, "can't mount BlockIndex API")
			}
			logger.InfoContext(ctx, "Mounted HTTP handler")
		default:
			return nil, errors.Wrapf(errs.Unsupported, "%q API handler is not supported", handler)
		}
	}

	return indexer.New[*types.Block](processor, c.datasource), nil
}

// NewProcessorFromConfig opens the configured stores and returns a processor over them, without
// metrics or API. The caller owns the processor and must Shutdown it.
func NewProcessorFromConfig(ctx context.Context, conf config.Config) (*Processor, error) {
	c, err := newComponents(ctx, conf)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	return NewProcessor(NewBlockIndexer(c.indexDg), c.stateDg, c.datasource, c.cleanupFuncs), nil
}

func newComponents(ctx context.Context, conf config.Config) (c components, err error) {
	moduleConf := conf.Modules.BlockIndex
	if err := moduleConf.Validate(); err != nil {
		return c, errors.WithStack(err)
	}
	defer func() {
		// release what was opened when a later store fails
		if err != nil {
			for _, cleanup := range c.cleanupFuncs {
				_ = cleanup(ctx)
			}
		}
	}()

	switch strings.ToLower(moduleConf.Datasource) {
	case "ledger-postgres", "postgres":
		pg, err := postgres.NewPool(ctx, conf.Ledger.Postgres)
		if err != nil {
			if errors.Is(err, errs.InvalidArgument) {
				return c, errors.Wrap(err, "Invalid Postgres configuration for ledger")
			}
			return c, errors.Wrap(err, "can't create ledger Postgres connection pool")
		}
		c.cleanupFuncs = append(c.cleanupFuncs, func(context.Context) error {
			pg.Close()
			return nil
		})
		c.datasource = datasources.NewLedgerPostgres(pg)
	default:
		return c, errors.Wrapf(errs.Unsupported, "%q datasource is not supported", moduleConf.Datasource)
	}

	switch strings.ToLower(moduleConf.Database) {
	case "redis":
		client, err := redis.New(ctx, moduleConf.Redis)
		if err != nil {
			return c, errors.Wrap(err, "can't create Redis client for index store")
		}
		repo := blockindexredis.NewRepository(client)
		c.cleanupFuncs = append(c.cleanupFuncs, func(context.Context) error {
			return repo.Close()
		})
		c.indexDg = repo
	case "pebble":
		repo, err := blockindexpebble.Open(moduleConf.Pebble.Dir)
		if err != nil {
			return c, errors.Wrap(err, "can't open pebble index store")
		}
		c.cleanupFuncs = append(c.cleanupFuncs, func(context.Context) error {
			return repo.Close()
		})
		c.indexDg = repo
	case "memory":
		logger.WarnContext(ctx, "Index store is in memory, the index is lost on shutdown",
			slogx.String("database", moduleConf.Database),
		)
		c.indexDg = memory.NewRepository()
	default:
		return c, errors.Wrapf(errs.Unsupported, "%q database for index store is not supported", moduleConf.Database)
	}

	switch strings.ToLower(moduleConf.StateDatabase) {
	case "postgresql", "postgres", "pg":
		pg, err := postgres.NewPool(ctx, moduleConf.Postgres)
		if err != nil {
			if errors.Is(err, errs.InvalidArgument) {
				return c, errors.Wrap(err, "Invalid Postgres configuration for indexer state")
			}
			return c, errors.Wrap(err, "can't create Postgres connection pool")
		}
		c.cleanupFuncs = append(c.cleanupFuncs, func(context.Context) error {
			pg.Close()
			return nil
		})
		c.stateDg = blockindexpostgres.NewRepository(pg)
	case "memory":
		c.stateDg = memory.NewRepository()
	default:
		return c, errors.Wrapf(errs.Unsupported, "%q database for indexer state is not supported", moduleConf.StateDatabase)
	}

	return c, nil
}
