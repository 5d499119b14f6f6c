package eventbus

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

type ping struct{ N int }
type pong struct{ N int }

func TestPublishRoutesByType(t *testing.T) {
	b := New()
	var pings, pongs []int
	Subscribe(b, func(_ context.Context, e ping) { pings = append(pings, e.N) })
	Subscribe(b, func(_ context.Context, e pong) { pongs = append(pongs, e.N) })

	Publish(b, context.Background(), ping{1})
	Publish(b, context.Background(), pong{2})
	Publish(b, context.Background(), ping{3})

	require.Equal(t, []int{1, 3}, pings)
	require.Equal(t, []int{2}, pongs)
}

func TestUnsubscribeRemovesOnlyThatHandler(t *testing.T) {
	b := New()
	var a, c int
	unsubA := Subscribe(b, func(_ context.Context, e ping) { a += e.N })
	Subscribe(b, func(_ context.Context, e ping) { c += e.N })

	Publish(b, context.Background(), ping{1})
	unsubA()
	unsubA()
	Publish(b, context.Background(), ping{10})

	require.Equal(t, 1, a)
	require.Equal(t, 11, c)
}

func TestNilBusIsNoop(t *testing.T) {
	var b *Bus
	called := false
	unsub := Subscribe(b, func(context.Context, ping) { called = true })
	Publish(b, context.Background(), ping{})
	unsub()
	require.False(t, called)
}
