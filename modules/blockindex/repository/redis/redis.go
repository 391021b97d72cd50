package redis

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/gaze-network/ledger-indexer/common/errs"
	"github.com/gaze-network/ledger-indexer/modules/blockindex/datagateway"
	"github.com/redis/go-redis/v9"
)

var _ datagateway.IndexDataGateway = (*Repository)(nil)

// delIfEquals deletes KEYS[1] when it holds ARGV[1], atomically on the server.
var delIfEquals = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Repository stores the index families in Redis with their native types:
// strings for tx hashes, sets for account heights and lists for tx indexes.
type Repository struct {
	client redis.UniversalClient
}

func NewRepository(client redis.UniversalClient) *Repository {
	return &Repository{
		client: client,
	}
}

func (r *Repository) Set(ctx context.Context, key, value string) error {
	if err := r.client.Set(ctx, key, value, 0).Err(); err != nil {
		return errors.Wrapf(err, "error during SET %s", key)
	}
	return nil
}

func (r *Repository) SAdd(ctx context.Context, key, member string) error {
	if err := r.client.SAdd(ctx, key, member).Err(); err != nil {
		return errors.Wrapf(err, "error during SADD %s", key)
	}
	return nil
}

func (r *Repository) RPush(ctx context.Context, key, value string) error {
	if err := r.client.RPush(ctx, key, value).Err(); err != nil {
		return errors.Wrapf(err, "error during RPUSH %s", key)
	}
	return nil
}

// Pipelined queues the writes of fn and sends them in one round trip.
// Redis applies them in order; a failing command doesn't stop the ones after it.
func (r *Repository) Pipelined(ctx context.Context, fn func(w datagateway.IndexWriter) error) error {
	_, err := r.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		return fn(pipeWriter{pipe: pipe})
	})
	if err != nil {
		return errors.Wrap(err, "error during pipeline exec")
	}
	return nil
}

// pipeWriter queues commands; their results are known after exec.
type pipeWriter struct {
	pipe redis.Pipeliner
}

func (w pipeWriter) Set(ctx context.Context, key, value string) error {
	w.pipe.Set(ctx, key, value, 0)
	return nil
}

func (w pipeWriter) SAdd(ctx context.Context, key, member string) error {
	w.pipe.SAdd(ctx, key, member)
	return nil
}

func (w pipeWriter) RPush(ctx context.Context, key, value string) error {
	w.pipe.RPush(ctx, key, value)
	return nil
}

func (r *Repository) Get(ctx context.Context, key string) (string, error) {
	value, err := r.client.Get(ctx, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", errors.Wrapf(errs.NotFound, "key %q", key)
		}
		return "", errors.Wrapf(err, "error during GET %s", key)
	}
	return value, nil
}

func (r *Repository) SMembers(ctx context.Context, key string) ([]string, error) {
	members, err := r.client.SMembers(ctx, key).Result()
	if err != nil {
		return nil, errors.Wrapf(err, "error during SMEMBERS %s", key)
	}
	return members, nil
}

func (r *Repository) LRange(ctx context.Context, key string, start, stop int64) ([]string, error) {
	values, err := r.client.LRange(ctx, key, start, stop).Result()
	if err != nil {
		return nil, errors.Wrapf(err, "error during LRANGE %s", key)
	}
	return values, nil
}

func (r *Repository) Del(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	// one key per DEL, keys of different accounts may live in different cluster slots
	_, err := r.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, key := range keys {
			pipe.Del(ctx, key)
		}
		return nil
	})
	if err != nil {
		return errors.Wrap(err, "error during DEL")
	}
	return nil
}

func (r *Repository) SRem(ctx context.Context, key string, members ...string) error {
	if len(members) == 0 {
		return nil
	}
	args := make([]any, 0, len(members))
	for _, member := range members {
		args = append(args, member)
	}
	if err := r.client.SRem(ctx, key, args...).Err(); err != nil {
		return errors.Wrapf(err, "error during SREM %s", key)
	}
	return nil
}

func (r *Repository) DelIfEquals(ctx context.Context, key, value string) (bool, error) {
	deleted, err := delIfEquals.Run(ctx, r.client, []string{key}, value).Int64()
	if err != nil {
		return false, errors.Wrapf(err, "error during compare-and-delete %s", key)
	}
	return deleted > 0, nil
}

func (r *Repository) Close() error {
	return errors.WithStack(r.client.Close())
}
