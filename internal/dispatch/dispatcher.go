// Package dispatch turns a decoded GraphQL request body into executor calls.
//
// A payload carrying the BatchKey is a multiplex: every element becomes one
// executor.Request and the whole ordered list goes to Executor.Multiplex in a
// single call. Any other payload is one operation for Executor.Execute.
// Variables and extensions are normalized to mappings on the way (see
// Normalize). The dispatcher keeps no state between calls.
package dispatch

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	eventbus "github.com/hanpama/gqlmux/internal/eventbus"
	events "github.com/hanpama/gqlmux/internal/events"
	executor "github.com/hanpama/gqlmux/internal/executor"
)

// BatchKey marks a multiplexed payload. Transports wrap top-level JSON
// arrays under this key.
const BatchKey = "_json"

// Config is fixed at construction.
type Config struct {
	// DevelopmentMode makes Handle render errors as an ErrorEnvelope with
	// status 500 instead of returning them.
	DevelopmentMode bool

	Logger zerolog.Logger

	// Bus receives DispatchStart/DispatchFinish events. Nil disables them.
	Bus *eventbus.Bus
}

// Dispatcher routes payloads to an Executor. It is safe for concurrent use.
type Dispatcher struct {
	exec executor.Executor
	cfg  Config
}

// New creates a Dispatcher backed by exec.
func New(exec executor.Executor, cfg Config) *Dispatcher {
	return &Dispatcher{exec: exec, cfg: cfg}
}

// Handle dispatches p and applies the development-mode error policy.
// Outside development mode errors are returned untransformed.
func (d *Dispatcher) Handle(ctx context.Context, p Payload) (Reply, error) {
	resp, err := d.Dispatch(ctx, p)
	if err == nil {
		return Reply{Status: http.StatusOK, Body: resp}, nil
	}
	if !d.cfg.DevelopmentMode {
		return Reply{}, err
	}
	env := newErrorEnvelope(err)
	d.cfg.Logger.Error().
		Err(err).
		Strs("backtrace", env.Errors[0].Backtrace).
		Msg("graphql request failed")
	return Reply{Status: http.StatusInternalServerError, Body: env}, nil
}

// Dispatch runs p against the executor. Errors are *ParseError,
// *InvalidArgumentError or *ExecutionError (match with errors.As).
func (d *Dispatcher) Dispatch(ctx context.Context, p Payload) (Response, error) {
	if raw, ok := p[BatchKey]; ok {
		return d.dispatchBatch(ctx, raw)
	}
	return d.dispatchSingle(ctx, p)
}

func (d *Dispatcher) dispatchSingle(ctx context.Context, p Payload) (resp Response, err error) {
	start := time.Now()
	eventbus.Publish(d.cfg.Bus, ctx, events.DispatchStart{Mode: events.ModeSingle, Operations: 1})
	defer func() {
		eventbus.Publish(d.cfg.Bus, ctx, events.DispatchFinish{
			Mode:       events.ModeSingle,
			Operations: 1,
			Err:        err,
			Duration:   time.Since(start),
		})
	}()

	req, err := buildRequest("", p)
	if err != nil {
		return Response{}, err
	}
	res, err := d.exec.Execute(ctx, req)
	if err != nil {
		return Response{}, newExecutionError(err)
	}
	return Response{Single: res}, nil
}

func (d *Dispatcher) dispatchBatch(ctx context.Context, raw any) (resp Response, err error) {
	start := time.Now()
	ops, err := batchOperations(raw)
	n := len(ops)
	eventbus.Publish(d.cfg.Bus, ctx, events.DispatchStart{Mode: events.ModeBatch, Operations: n})
	defer func() {
		eventbus.Publish(d.cfg.Bus, ctx, events.DispatchFinish{
			Mode:       events.ModeBatch,
			Operations: n,
			Err:        err,
			Duration:   time.Since(start),
		})
	}()
	if err != nil {
		return Response{}, err
	}

	reqs := make([]executor.Request, n)
	for i, op := range ops {
		reqs[i], err = buildRequest(fmt.Sprintf("%s[%d]", BatchKey, i), op)
		if err != nil {
			return Response{}, err
		}
	}
	results, err := d.exec.Multiplex(ctx, reqs)
	if err != nil {
		return Response{}, newExecutionError(err)
	}
	if len(results) != n {
		return Response{}, newExecutionError(fmt.Errorf("executor returned %d results for %d operations", len(results), n))
	}
	return Response{Batch: results, batch: true}, nil
}

// batchOperations reads the ordered operation maps under BatchKey.
func batchOperations(raw any) ([]map[string]any, error) {
	switch list := raw.(type) {
	case []map[string]any:
		return list, nil
	case []Payload:
		out := make([]map[string]any, len(list))
		for i := range list {
			out[i] = list[i]
		}
		return out, nil
	case []any:
		out := make([]map[string]any, len(list))
		for i, item := range list {
			m, ok := item.(map[string]any)
			if !ok {
				return nil, newInvalidArgumentError(fmt.Sprintf("%s[%d]", BatchKey, i), item)
			}
			out[i] = m
		}
		return out, nil
	default:
		return nil, newInvalidArgumentError(BatchKey, raw)
	}
}

func buildRequest(prefix string, op map[string]any) (executor.Request, error) {
	query, err := stringField(prefix, op, "query")
	if err != nil {
		return executor.Request{}, err
	}
	name, err := stringField(prefix, op, "operationName")
	if err != nil {
		return executor.Request{}, err
	}
	vars, err := normalize(fieldPath(prefix, "variables"), op["variables"])
	if err != nil {
		return executor.Request{}, err
	}
	exts, err := normalize(fieldPath(prefix, "extensions"), op["extensions"])
	if err != nil {
		return executor.Request{}, err
	}
	return executor.Request{
		Query:         query,
		Variables:     vars,
		Context:       executor.Context{Extensions: exts},
		OperationName: name,
	}, nil
}

func stringField(prefix string, op map[string]any, key string) (string, error) {
	switch v := op[key].(type) {
	case nil:
		return "", nil
	case string:
		return v, nil
	default:
		return "", newInvalidArgumentError(fieldPath(prefix, key), v)
	}
}

func fieldPath(prefix, key string) string {
	if prefix == "" {
		return key
	}
	return prefix + "." + key
}
