package query

import (
	"context"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/gaze-network/ledger-indexer/common/errs"
	"github.com/gaze-network/ledger-indexer/internal/subscription"
	"github.com/gaze-network/ledger-indexer/pkg/logger"
	"github.com/gaze-network/ledger-indexer/pkg/logger/slogx"
)

// Handler answers q by calling emit for every response, in order.
// emit fails once the caller stops listening; the handler should return then.
type Handler func(ctx context.Context, q Query, emit func(Response) error) error

type Registry struct {
	mu       sync.RWMutex
	handlers map[Kind]Handler
}

func NewRegistry() *Registry {
	return &Registry{
		handlers: make(map[Kind]Handler),
	}
}

// Register binds handler to kind. Returns errs.Duplicate if kind already has a handler.
func (r *Registry) Register(kind Kind, handler Handler) error {
	if handler == nil {
		return errors.Wrapf(errs.InvalidArgument, "nil handler for %s", kind)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.handlers[kind]; ok {
		return errors.Wrapf(errs.Duplicate, "handler for %s is already registered", kind)
	}
	r.handlers[kind] = handler
	return nil
}

func (r *Registry) Lookup(kind Kind) (Handler, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	handler, ok := r.handlers[kind]
	return handler, ok
}

// Dispatch runs the handler of q in the background and streams its responses to ch.
// A handler error is delivered on Err, and Done is closed after the last response.
//
// If no handler is registered for the kind of q, Dispatch returns errs.Unhandled
// and nothing is sent to ch.
func (r *Registry) Dispatch(ctx context.Context, q Query, ch chan<- Response) (*subscription.ClientSubscription[Response], error) {
	if q == nil {
		return nil, errors.Wrap(errs.InvalidArgument, "nil query")
	}
	handler, ok := r.Lookup(q.Kind())
	if !ok {
		return nil, errors.Wrapf(errs.Unhandled, "no handler for query %s", q.Kind())
	}

	sub := subscription.NewSubscription(ch)
	go func() {
		defer sub.Close()
		emit := func(resp Response) error {
			return sub.Send(ctx, resp)
		}
		if err := handler(ctx, q, emit); err != nil {
			if err := sub.SendError(ctx, errors.WithStack(err)); err != nil {
				logger.DebugContext(ctx, "Query error is not delivered, caller stopped listening",
					slogx.String("query", string(q.Kind())),
					slogx.Error(err),
				)
			}
		}
	}()
	return sub.Client(), nil
}

// Collect dispatches q and waits for all of its responses.
func (r *Registry) Collect(ctx context.Context, q Query) ([]Response, error) {
	ch := make(chan Response)
	sub, err := r.Dispatch(ctx, q, ch)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	defer sub.Unsubscribe()

	responses := make([]Response, 0)
	for {
		select {
		case resp := <-ch:
			responses = append(responses, resp)
		case err := <-sub.Err():
			return nil, errors.WithStack(err)
		case <-sub.Done():
			select {
			case err := <-sub.Err():
				return nil, errors.WithStack(err)
			default:
			}
			return responses, nil
		case <-ctx.Done():
			return nil, errors.WithStack(ctx.Err())
		}
	}
}
