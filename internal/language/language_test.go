package language

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestInspect(t *testing.T) {
	in, err := NewInspector(8)
	require.NoError(t, err)

	cases := []struct {
		query, name string
		want        OperationInfo
	}{
		{"{ ping }", "", OperationInfo{Type: Query}},
		{"mutation M { a }", "", OperationInfo{Name: "M", Type: Mutation}},
		{"query A { a } subscription B { b }", "B", OperationInfo{Name: "B", Type: Subscription}},
		{"query A { a } query B { b }", "", OperationInfo{}},
		{"query A { a }", "Missing", OperationInfo{Name: "Missing"}},
	}
	for _, tc := range cases {
		got, err := in.Inspect(tc.query, tc.name)
		require.NoError(t, err, tc.query)
		require.Equal(t, tc.want, got, tc.query)
	}
}

func TestInspectSyntaxError(t *testing.T) {
	in, err := NewInspector(0)
	require.NoError(t, err)
	_, err = in.Inspect("{ a", "")
	require.Error(t, err)
	require.Equal(t, 0, in.Len())
}

func TestInspectCaches(t *testing.T) {
	in, err := NewInspector(1)
	require.NoError(t, err)
	_, _ = in.Inspect("{ a }", "")
	_, _ = in.Inspect("{ a }", "")
	require.Equal(t, 1, in.Len())
	_, _ = in.Inspect("{ b }", "")
	require.Equal(t, 1, in.Len())
}
