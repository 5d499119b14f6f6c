// Package executor defines the contract between the request dispatcher and
// the GraphQL engine that actually validates and resolves operations.
//
// The dispatcher never looks inside a Result: it is produced by the engine
// and serialized as-is.
package executor

import (
	"context"

	"github.com/vektah/gqlparser/v2/gqlerror"
)

// Context is the execution context handed to the engine alongside each
// operation. Its contents are opaque to the dispatcher.
type Context struct {
	Extensions map[string]any `json:"extensions"`
}

// Request is one normalized GraphQL operation.
// Variables and Context.Extensions are never nil.
type Request struct {
	Query         string
	Variables     map[string]any
	Context       Context
	OperationName string
}

// Result is the engine's response for one operation.
type Result struct {
	Data       any            `json:"data"`
	Errors     gqlerror.List  `json:"errors,omitempty"`
	Extensions map[string]any `json:"extensions,omitempty"`
}

// Executor runs GraphQL operations.
//
// Multiplex must return exactly one result per request, in request order.
// Whether the requests run concurrently is up to the implementation.
// A returned error means the call as a whole failed; per-operation GraphQL
// errors belong in Result.Errors.
type Executor interface {
	Execute(ctx context.Context, req Request) (*Result, error)
	Multiplex(ctx context.Context, reqs []Request) ([]*Result, error)
}
