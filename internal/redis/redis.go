package redis

import (
	"context"
	"time"

	"github.com/Cleverse/go-utilities/utils"
	"github.com/cockroachdb/errors"
	"github.com/gaze-network/ledger-indexer/common/errs"
	"github.com/gaze-network/ledger-indexer/pkg/logger"
	"github.com/gaze-network/ledger-indexer/pkg/logger/slogx"
	"github.com/redis/go-redis/v9"
)

const (
	DefaultAddr         = "127.0.0.1:6379"
	DefaultPoolSize     = 10
	DefaultMinIdleConns = 2
	DefaultDialTimeout  = 5 * time.Second
	DefaultReadTimeout  = 3 * time.Second
	DefaultWriteTimeout = 3 * time.Second
)

type Config struct {
	Addr     string `mapstructure:"addr"`     // Default is 127.0.0.1:6379
	Username string `mapstructure:"username"` // Default is empty
	Password string `mapstructure:"password"` // Default is empty
	DB       int    `mapstructure:"db"`       // Default is 0
	URL      string `mapstructure:"url"`      // If URL is provided, other connection fields are ignored

	PoolSize     int           `mapstructure:"pool_size"`      // Default is 10
	MinIdleConns int           `mapstructure:"min_idle_conns"` // Default is 2
	DialTimeout  time.Duration `mapstructure:"dial_timeout"`   // Default is 5s
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`   // Default is 3s
	WriteTimeout time.Duration `mapstructure:"write_timeout"`  // Default is 3s
}

// Options converts the configuration to go-redis client options.
func (conf Config) Options() (*redis.Options, error) {
	opts := &redis.Options{
		Addr:     utils.Default(conf.Addr, DefaultAddr),
		Username: conf.Username,
		Password: conf.Password,
		DB:       conf.DB,
	}
	if conf.URL != "" {
		parsed, err := redis.ParseURL(conf.URL)
		if err != nil {
			return nil, errors.Wrap(errs.InvalidArgument, err.Error())
		}
		opts = parsed
	}
	opts.PoolSize = utils.Default(conf.PoolSize, DefaultPoolSize)
	opts.MinIdleConns = utils.Default(conf.MinIdleConns, DefaultMinIdleConns)
	opts.DialTimeout = utils.Default(conf.DialTimeout, DefaultDialTimeout)
	opts.ReadTimeout = utils.Default(conf.ReadTimeout, DefaultReadTimeout)
	opts.WriteTimeout = utils.Default(conf.WriteTimeout, DefaultWriteTimeout)
	return opts, nil
}

// New creates a new Redis client and checks the connection.
func New(ctx context.Context, conf Config) (*redis.Client, error) {
	opts, err := conf.Options()
	if err != nil {
		return nil, errors.Wrap(err, "invalid redis configuration")
	}

	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, opts.DialTimeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, errors.Wrapf(err, "can't connect to redis at %q", opts.Addr)
	}

	logger.InfoContext(ctx, "Connected to Redis",
		slogx.String("addr", opts.Addr),
		slogx.Int("db", opts.DB),
	)
	return client, nil
}
