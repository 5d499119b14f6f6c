package executor

import (
	"context"
	"fmt"
	"sync"
)

// CallKind identifies which Executor method was invoked.
const (
	CallKindExecute   = "execute"
	CallKindMultiplex = "multiplex"
)

// Call records a single Executor invocation.
type Call struct {
	Kind     string
	Requests []Request
}

// MockResolver produces the result for one request.
type MockResolver func(ctx context.Context, req Request) (*Result, error)

// NewMockValueResolver returns a MockResolver that always yields data.
func NewMockValueResolver(data any) MockResolver {
	return func(ctx context.Context, req Request) (*Result, error) {
		return &Result{Data: data}, nil
	}
}

// NewMockErrorResolver returns a MockResolver that always fails with err.
func NewMockErrorResolver(err error) MockResolver {
	return func(ctx context.Context, req Request) (*Result, error) {
		return nil, err
	}
}

// EchoResolver answers every request with its own query text, which makes
// ordering visible in tests.
func EchoResolver(ctx context.Context, req Request) (*Result, error) {
	return &Result{Data: map[string]any{"query": req.Query}}, nil
}

// MockExecutor implements Executor with a single resolver and a call log.
// Multiplex resolves requests sequentially unless MultiplexFunc is set.
type MockExecutor struct {
	mu       sync.Mutex
	resolver MockResolver
	calls    []Call

	// MultiplexFunc overrides the default sequential Multiplex.
	MultiplexFunc func(ctx context.Context, reqs []Request) ([]*Result, error)
}

// NewMockExecutor creates a MockExecutor. A nil resolver defaults to EchoResolver.
func NewMockExecutor(resolver MockResolver) *MockExecutor {
	if resolver == nil {
		resolver = EchoResolver
	}
	return &MockExecutor{resolver: resolver}
}

func (m *MockExecutor) record(kind string, reqs []Request) {
	cp := make([]Request, len(reqs))
	copy(cp, reqs)
	m.mu.Lock()
	m.calls = append(m.calls, Call{Kind: kind, Requests: cp})
	m.mu.Unlock()
}

func (m *MockExecutor) Execute(ctx context.Context, req Request) (*Result, error) {
	m.record(CallKindExecute, []Request{req})
	return m.resolver(ctx, req)
}

func (m *MockExecutor) Multiplex(ctx context.Context, reqs []Request) ([]*Result, error) {
	m.record(CallKindMultiplex, reqs)
	if m.MultiplexFunc != nil {
		return m.MultiplexFunc(ctx, reqs)
	}
	out := make([]*Result, len(reqs))
	for i, req := range reqs {
		res, err := m.resolver(ctx, req)
		if err != nil {
			return nil, fmt.Errorf("operation %d: %w", i, err)
		}
		out[i] = res
	}
	return out, nil
}

// Calls returns a snapshot of recorded invocations.
func (m *MockExecutor) Calls() []Call {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Call, len(m.calls))
	copy(out, m.calls)
	return out
}
