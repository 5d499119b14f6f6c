package otel

import (
	"context"
	"sync"

	eventbus "github.com/hanpama/gqlmux/internal/eventbus"
	events "github.com/hanpama/gqlmux/internal/events"
	reqid "github.com/hanpama/gqlmux/internal/reqid"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.17.0"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "github.com/hanpama/gqlmux"

// Setup configures OpenTelemetry and attaches bus subscribers.
// If endpoint is empty, no telemetry is configured.
func Setup(bus *eventbus.Bus, endpoint, service string) (func(context.Context) error, error) {
	if endpoint == "" {
		return func(context.Context) error { return nil }, nil
	}
	exp, err := otlptracegrpc.New(context.Background(),
		otlptracegrpc.WithEndpoint(endpoint),
		otlptracegrpc.WithInsecure())
	if err != nil {
		return nil, err
	}
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exp),
		sdktrace.WithResource(resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName(service),
		)),
	)
	otel.SetTracerProvider(tp)

	detach := Attach(bus, tp.Tracer(instrumentationName))
	return func(ctx context.Context) error {
		detach()
		return tp.Shutdown(ctx)
	}, nil
}

// spanKey identifies an in-flight span. Operations inside one multiplex
// share the request ID and are told apart by index.
type spanKey struct {
	rid   string
	index int
}

type subscriber struct {
	tracer    trace.Tracer
	httpSpans sync.Map // rid -> trace.Span
	dispSpans sync.Map // rid -> trace.Span
	opSpans   sync.Map // spanKey -> trace.Span
	rpcSpans  sync.Map // spanKey -> trace.Span
}

// Attach turns bus events into spans created by tracer. The returned
// function detaches every subscription.
func Attach(bus *eventbus.Bus, tracer trace.Tracer) (detach func()) {
	s := &subscriber{tracer: tracer}
	return s.register(bus)
}

func (s *subscriber) parent(ctx context.Context, rid string, maps ...*sync.Map) context.Context {
	for _, m := range maps {
		if v, ok := m.Load(rid); ok {
			return trace.ContextWithSpan(ctx, v.(trace.Span))
		}
	}
	return ctx
}

func endSpan(m *sync.Map, key any, err error, attrs ...attribute.KeyValue) {
	v, ok := m.LoadAndDelete(key)
	if !ok {
		return
	}
	span := v.(trace.Span)
	span.SetAttributes(attrs...)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

// register subscribes to every event type. Spans are keyed by request ID,
// so events without one are not traced.
func (s *subscriber) register(bus *eventbus.Bus) func() {
	var unsubs []func()
	add := func(u func()) { unsubs = append(unsubs, u) }

	add(eventbus.Subscribe(bus, func(ctx context.Context, e events.HTTPStart) {
		rid, ok := reqid.FromContext(ctx)
		if !ok || rid == "" {
			return
		}
		_, span := s.tracer.Start(ctx, "http.request")
		span.SetAttributes(
			semconv.HTTPMethodKey.String(e.Request.Method),
			attribute.String("http.target", e.Request.URL.Path),
			attribute.String("request.id", rid),
		)
		s.httpSpans.Store(rid, span)
	}))

	add(eventbus.Subscribe(bus, func(ctx context.Context, e events.HTTPFinish) {
		rid, _ := reqid.FromContext(ctx)
		endSpan(&s.httpSpans, rid, nil, semconv.HTTPStatusCodeKey.Int(e.Status))
	}))

	add(eventbus.Subscribe(bus, func(ctx context.Context, e events.DispatchStart) {
		rid, ok := reqid.FromContext(ctx)
		if !ok || rid == "" {
			return
		}
		_, span := s.tracer.Start(s.parent(ctx, rid, &s.httpSpans), "graphql.dispatch")
		span.SetAttributes(
			attribute.String("graphql.dispatch.mode", e.Mode),
			attribute.Int("graphql.dispatch.operations", e.Operations),
		)
		s.dispSpans.Store(rid, span)
	}))

	add(eventbus.Subscribe(bus, func(ctx context.Context, e events.DispatchFinish) {
		rid, _ := reqid.FromContext(ctx)
		endSpan(&s.dispSpans, rid, e.Err)
	}))

	add(eventbus.Subscribe(bus, func(ctx context.Context, e events.OperationStart) {
		rid, ok := reqid.FromContext(ctx)
		if !ok || rid == "" {
			return
		}
		_, span := s.tracer.Start(s.parent(ctx, rid, &s.dispSpans, &s.httpSpans), "graphql.operation")
		span.SetAttributes(
			attribute.String("graphql.operation.name", e.OperationName),
			attribute.String("graphql.operation.type", e.OperationType),
			attribute.Int("graphql.operation.index", e.Index),
		)
		s.opSpans.Store(spanKey{rid, e.Index}, span)
	}))

	add(eventbus.Subscribe(bus, func(ctx context.Context, e events.OperationFinish) {
		rid, _ := reqid.FromContext(ctx)
		endSpan(&s.opSpans, spanKey{rid, e.Index}, e.Err, attribute.Int("graphql.error_count", e.ErrorCount))
	}))

	add(eventbus.Subscribe(bus, func(ctx context.Context, e events.GRPCClientStart) {
		rid, ok := reqid.FromContext(ctx)
		if !ok || rid == "" {
			return
		}
		parent := ctx
		if v, ok := s.opSpans.Load(spanKey{rid, e.Index}); ok {
			parent = trace.ContextWithSpan(ctx, v.(trace.Span))
		}
		_, span := s.tracer.Start(parent, "grpc.client")
		span.SetAttributes(
			semconv.RPCMethodKey.String(e.Method),
			attribute.String("net.peer.name", e.Target),
		)
		s.rpcSpans.Store(spanKey{rid, e.Index}, span)
	}))

	add(eventbus.Subscribe(bus, func(ctx context.Context, e events.GRPCClientFinish) {
		rid, _ := reqid.FromContext(ctx)
		endSpan(&s.rpcSpans, spanKey{rid, e.Index}, e.Err, attribute.String("grpc.code", e.Code.String()))
	}))

	return func() {
		for _, u := range unsubs {
			u()
		}
	}
}
