package eventbus

import (
	"context"
	"reflect"
	"sync"
)

// Handler processes events of type T.
type Handler[T any] func(context.Context, T)

type subscription struct {
	fn func(context.Context, any)
}

// Bus is a simple in-process event dispatcher. A nil *Bus is valid and
// drops every event.
type Bus struct {
	mu       sync.RWMutex
	handlers map[reflect.Type][]*subscription
}

// New creates a new Bus.
func New() *Bus { return &Bus{handlers: make(map[reflect.Type][]*subscription)} }

func (b *Bus) subscribe(t reflect.Type, s *subscription) (unsubscribe func()) {
	b.mu.Lock()
	b.handlers[t] = append(b.handlers[t], s)
	b.mu.Unlock()
	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			hs := b.handlers[t]
			for i, cur := range hs {
				if cur == s {
					hs = append(hs[:i:i], hs[i+1:]...)
					break
				}
			}
			if len(hs) == 0 {
				delete(b.handlers, t)
			} else {
				b.handlers[t] = hs
			}
		})
	}
}

func (b *Bus) emit(ctx context.Context, t reflect.Type, e any) {
	b.mu.RLock()
	hs := b.handlers[t]
	b.mu.RUnlock()
	// hs is never mutated in place, so iterating outside the lock is safe.
	for _, s := range hs {
		s.fn(ctx, e)
	}
}

// Subscribe registers h on b for events of type T.
func Subscribe[T any](b *Bus, h Handler[T]) (unsubscribe func()) {
	if b == nil {
		return func() {}
	}
	t := reflect.TypeOf((*T)(nil)).Elem()
	return b.subscribe(t, &subscription{fn: func(ctx context.Context, v any) { h(ctx, v.(T)) }})
}

// Publish sends e to every handler subscribed on b for type T.
func Publish[T any](b *Bus, ctx context.Context, e T) {
	if b == nil {
		return
	}
	b.emit(ctx, reflect.TypeOf((*T)(nil)).Elem(), e)
}
