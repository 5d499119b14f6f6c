// Package grpcexec implements executor.Executor by forwarding every operation
// to a remote execution service over gRPC.
//
// Connections are pooled per endpoint. A multiplex fans its operations out
// concurrently, bounded by Options.MaxConcurrency, and writes each result
// into the slot of its request so the output order always matches the input.
package grpcexec

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	"google.golang.org/grpc/backoff"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	eventbus "github.com/hanpama/gqlmux/internal/eventbus"
	events "github.com/hanpama/gqlmux/internal/events"
	executor "github.com/hanpama/gqlmux/internal/executor"
	reqid "github.com/hanpama/gqlmux/internal/reqid"
)

// Executor is a remote executor.Executor with connection pooling and
// deadline propagation.
type Executor struct {
	opts *Options

	mu     sync.RWMutex
	pools  map[string]*connPool // key: endpoint
	closed atomic.Bool
}

var _ executor.Executor = (*Executor)(nil)

func New(opts ...Option) *Executor {
	o := defaultOptions()
	for _, f := range opts {
		f(o)
	}
	if len(o.DialOptions) == 0 {
		o.DialOptions = []grpc.DialOption{
			grpc.WithTransportCredentials(insecure.NewCredentials()),
			grpc.WithConnectParams(grpc.ConnectParams{Backoff: backoff.DefaultConfig}),
		}
	}
	return &Executor{
		opts:  o,
		pools: make(map[string]*connPool),
	}
}

func (e *Executor) Execute(ctx context.Context, req executor.Request) (*executor.Result, error) {
	return e.execute(ctx, 0, req)
}

func (e *Executor) Multiplex(ctx context.Context, reqs []executor.Request) ([]*executor.Result, error) {
	out := make([]*executor.Result, len(reqs))
	g, gctx := errgroup.WithContext(ctx)
	if e.opts.MaxConcurrency > 0 {
		g.SetLimit(e.opts.MaxConcurrency)
	}
	for i := range reqs {
		g.Go(func() error {
			res, err := e.execute(gctx, i, reqs[i])
			if err != nil {
				return fmt.Errorf("operation %d: %w", i, err)
			}
			out[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func (e *Executor) execute(ctx context.Context, index int, req executor.Request) (res *executor.Result, err error) {
	opType := ""
	if e.opts.Inspector != nil {
		if info, ierr := e.opts.Inspector.Inspect(req.Query, req.OperationName); ierr == nil {
			opType = string(info.Type)
		}
	}
	start := time.Now()
	eventbus.Publish(e.opts.Bus, ctx, events.OperationStart{Index: index, OperationName: req.OperationName, OperationType: opType})
	defer func() {
		n := 0
		if res != nil {
			n = len(res.Errors)
		}
		eventbus.Publish(e.opts.Bus, ctx, events.OperationFinish{
			Index:         index,
			OperationName: req.OperationName,
			OperationType: opType,
			ErrorCount:    n,
			Err:           err,
			Duration:      time.Since(start),
		})
	}()

	in, err := encodeRequest(req)
	if err != nil {
		return nil, err
	}
	out, err := e.call(ctx, index, in)
	if err != nil {
		return nil, err
	}
	return decodeResult(out), nil
}

func (e *Executor) call(ctx context.Context, index int, in *structpb.Struct) (*structpb.Struct, error) {
	if e.closed.Load() {
		return nil, ErrClosed
	}
	if e.opts.Provider == nil {
		return nil, ErrProviderMissing
	}
	if _, ok := ctx.Deadline(); !ok && e.opts.RPCTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.opts.RPCTimeout)
		defer cancel()
	}
	if id, ok := reqid.FromContext(ctx); ok {
		ctx = metadata.AppendToOutgoingContext(ctx, reqid.MetadataKey, id)
	}

	endpoints, err := e.opts.Provider.Endpoints(ctx, e.opts.Service)
	if err != nil {
		return nil, err
	}
	if len(endpoints) == 0 {
		return nil, ErrNoEndpoints
	}
	endpoint := endpoints[rand.Intn(len(endpoints))]

	pool := e.pool(endpoint)
	cc, err := pool.get()
	if err != nil {
		return nil, err
	}
	defer pool.put(cc)

	method := "/" + e.opts.Service + "/" + methodExecute
	start := time.Now()
	eventbus.Publish(e.opts.Bus, ctx, events.GRPCClientStart{Index: index, Method: method, Target: endpoint})
	out := new(structpb.Struct)
	err = cc.Invoke(ctx, method, in, out)
	eventbus.Publish(e.opts.Bus, ctx, events.GRPCClientFinish{
		Index:    index,
		Method:   method,
		Target:   endpoint,
		Code:     status.Code(err),
		Err:      err,
		Duration: time.Since(start),
	})
	if err != nil {
		e.opts.Logger.Debug().Err(err).Str("target", endpoint).Str("method", method).Msg("backend call failed")
		return nil, err
	}
	return out, nil
}

func (e *Executor) pool(endpoint string) *connPool {
	e.mu.RLock()
	p := e.pools[endpoint]
	e.mu.RUnlock()
	if p != nil {
		return p
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if p = e.pools[endpoint]; p == nil {
		p = newConnPool(endpoint, e.opts.MaxConnsPerEndpoint, e.opts.DialOptions)
		e.pools[endpoint] = p
		e.opts.Logger.Debug().Str("target", endpoint).Msg("connection pool created")
	}
	return p
}

// Close releases every pooled connection. Calls after Close fail with ErrClosed.
func (e *Executor) Close() error {
	if e.closed.Swap(true) {
		return nil
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, p := range e.pools {
		p.close()
	}
	e.pools = map[string]*connPool{}
	return nil
}
