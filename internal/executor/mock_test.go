package executor

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
	"github.com/vektah/gqlparser/v2/gqlerror"
)

func TestMockExecutorRecordsCalls(t *testing.T) {
	m := NewMockExecutor(nil)
	ctx := context.Background()

	res, err := m.Execute(ctx, Request{Query: "{a}"})
	require.NoError(t, err)
	require.Equal(t, map[string]any{"query": "{a}"}, res.Data)

	reqs := []Request{{Query: "{b}"}, {Query: "{c}"}}
	results, err := m.Multiplex(ctx, reqs)
	require.NoError(t, err)
	require.Len(t, results, 2)
	require.Equal(t, map[string]any{"query": "{c}"}, results[1].Data)

	reqs[0].Query = "mutated"
	want := []Call{
		{Kind: CallKindExecute, Requests: []Request{{Query: "{a}"}}},
		{Kind: CallKindMultiplex, Requests: []Request{{Query: "{b}"}, {Query: "{c}"}}},
	}
	if diff := cmp.Diff(want, m.Calls()); diff != "" {
		t.Fatalf("calls mismatch (-want +got):\n%s", diff)
	}
}

func TestMockExecutorMultiplexError(t *testing.T) {
	boom := errors.New("boom")
	m := NewMockExecutor(NewMockErrorResolver(boom))

	_, err := m.Multiplex(context.Background(), []Request{{Query: "{a}"}})
	require.ErrorIs(t, err, boom)
	require.EqualError(t, err, "operation 0: boom")
}

func TestMockExecutorMultiplexOverride(t *testing.T) {
	m := NewMockExecutor(nil)
	m.MultiplexFunc = func(ctx context.Context, reqs []Request) ([]*Result, error) {
		return []*Result{}, nil
	}
	results, err := m.Multiplex(context.Background(), []Request{{Query: "{a}"}})
	require.NoError(t, err)
	require.Empty(t, results)
	require.Len(t, m.Calls(), 1)
}

func TestResultJSON(t *testing.T) {
	b, err := json.Marshal(&Result{Data: map[string]any{"a": 1}})
	require.NoError(t, err)
	require.JSONEq(t, `{"data":{"a":1}}`, string(b))

	b, err = json.Marshal(&Result{Errors: gqlerror.List{{Message: "bad"}}})
	require.NoError(t, err)
	require.JSONEq(t, `{"data":null,"errors":[{"message":"bad"}]}`, string(b))
}
