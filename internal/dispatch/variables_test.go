package dispatch

import (
	"encoding/json"
	"fmt"
	"net/url"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
)

func TestNormalize_EmptyInputs(t *testing.T) {
	for _, in := range []any{nil, "", "   ", "null", "false", map[string]any(nil)} {
		got, err := Normalize(in)
		require.NoError(t, err, "input %#v", in)
		require.NotNil(t, got, "input %#v", in)
		require.Empty(t, got, "input %#v", in)
	}
}

func TestNormalize_Text(t *testing.T) {
	got, err := Normalize(`{"a":1,"b":{"c":[true,"x"]}}`)
	require.NoError(t, err)
	want := map[string]any{"a": json.Number("1"), "b": map[string]any{"c": []any{true, "x"}}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("normalize mismatch (-want +got):\n%s", diff)
	}
}

func TestNormalize_KeepsIntegerPrecision(t *testing.T) {
	got, err := Normalize(`{"id":9007199254740993,"ratio":0.5}`)
	require.NoError(t, err)
	require.Equal(t, map[string]any{
		"id":    json.Number("9007199254740993"),
		"ratio": json.Number("0.5"),
	}, got)
}

func TestNormalize_TrailingData(t *testing.T) {
	for _, in := range []string{`{"a":1} {"b":2}`, `{"a":1} x`} {
		_, err := Normalize(in)
		var pe *ParseError
		require.True(t, errors.As(err, &pe), "input %q: got %v", in, err)
	}
}

func TestNormalize_StructuredPassesThrough(t *testing.T) {
	in := map[string]any{"id": "1", "n": 2}
	got, err := Normalize(in)
	require.NoError(t, err)
	require.Equal(t, in, got)
}

func TestNormalize_FormValues(t *testing.T) {
	got, err := Normalize(url.Values{"id": {"7"}, "tags": {"a", "b"}})
	require.NoError(t, err)
	want := map[string]any{"id": "7", "tags": []any{"a", "b"}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("normalize mismatch (-want +got):\n%s", diff)
	}
}

func TestNormalize_MalformedText(t *testing.T) {
	_, err := Normalize(`{a:`)
	var pe *ParseError
	require.True(t, errors.As(err, &pe), "got %T: %v", err, err)
	require.Equal(t, `{a:`, pe.Text)
}

func TestNormalize_UnsupportedValues(t *testing.T) {
	for _, in := range []any{5, 3.5, true, []any{1}} {
		_, err := Normalize(in)
		var ie *InvalidArgumentError
		require.True(t, errors.As(err, &ie), "input %#v: got %v", in, err)
		require.Equal(t, in, ie.Value)
		require.Contains(t, err.Error(), "unexpected parameter")
	}
}

func TestNormalize_TruthyNonObjectText(t *testing.T) {
	for _, in := range []string{`0`, `5`, `""`, `"x"`, `true`, `[1,2]`} {
		_, err := Normalize(in)
		var ie *InvalidArgumentError
		require.True(t, errors.As(err, &ie), "input %q: got %v", in, err)
	}
}

func TestClassify(t *testing.T) {
	require.Equal(t, Empty{}, Classify(nil))
	require.Equal(t, Empty{}, Classify(""))
	require.Equal(t, Text(`{"a":1}`), Classify(`{"a":1}`))
	require.Equal(t, Structured{"a": 1}, Classify(map[string]any{"a": 1}))
	require.Equal(t, Unsupported{Value: 5}, Classify(5))
}

func TestBacktraceFromStack(t *testing.T) {
	_, err := Normalize(5)
	bt := Backtrace(err)
	require.NotEmpty(t, bt)
	require.Contains(t, bt[0], "errors.go")
	require.Nil(t, Backtrace(fmt.Errorf("plain")))
}
