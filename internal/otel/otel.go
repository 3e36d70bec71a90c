package otel

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"sync"

	astutil "github.com/hanpama/gqlguard/internal/astutil"
	eventbus "github.com/hanpama/gqlguard/internal/eventbus"
	events "github.com/hanpama/gqlguard/internal/events"
	reqid "github.com/hanpama/gqlguard/internal/reqid"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.17.0"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

const anonymousOperation = "Anonymous Query"

// Setup configures OpenTelemetry and attaches eventbus subscribers to b.
// If endpoint is empty, no telemetry is configured.
func Setup(b *eventbus.Bus, endpoint, service string) (func(context.Context) error, error) {
	if endpoint == "" {
		return func(context.Context) error { return nil }, nil
	}
	exp, err := otlptracegrpc.New(context.Background(),
		otlptracegrpc.WithEndpoint(endpoint),
		otlptracegrpc.WithDialOption(grpc.WithTransportCredentials(insecure.NewCredentials())))
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

	Register(b, tp.Tracer("gqlguard"))
	return tp.Shutdown, nil
}

// Register subscribes a span recorder using tracer to b. The returned
// function removes every subscription.
func Register(b *eventbus.Bus, tracer trace.Tracer) (unregister func()) {
	s := &subscriber{tracer: tracer}
	return s.register(b)
}

type opKey struct {
	rid int64
	op  int
}

type subscriber struct {
	tracer        trace.Tracer
	httpSpans     sync.Map // rid -> trace.Span
	upstreamSpans sync.Map // rid -> trace.Span
	gqlSpans      sync.Map // opKey -> trace.Span
	parseSpans    sync.Map // opKey -> trace.Span
	validateSpans sync.Map // opKey -> trace.Span
}

func keyOf(ctx context.Context) opKey {
	rid, _ := reqid.FromContext(ctx)
	return opKey{rid: rid, op: events.Operation(ctx)}
}

// parentOf returns ctx carrying the innermost open span of the request.
func (s *subscriber) parentOf(ctx context.Context, op bool) context.Context {
	if op {
		if v, ok := s.gqlSpans.Load(keyOf(ctx)); ok {
			return trace.ContextWithSpan(ctx, v.(trace.Span))
		}
	}
	rid, _ := reqid.FromContext(ctx)
	if v, ok := s.httpSpans.Load(rid); ok {
		return trace.ContextWithSpan(ctx, v.(trace.Span))
	}
	return ctx
}

func end(m *sync.Map, key any) (trace.Span, bool) {
	v, ok := m.LoadAndDelete(key)
	if !ok {
		return nil, false
	}
	return v.(trace.Span), true
}

func (s *subscriber) register(b *eventbus.Bus) func() {
	var unsubs []func()
	add := func(u func()) { unsubs = append(unsubs, u) }

	add(eventbus.SubscribeTo(b, func(ctx context.Context, e events.HTTPStart) {
		rid, _ := reqid.FromContext(ctx)
		_, span := s.tracer.Start(ctx, "http.request")
		span.SetAttributes(
			semconv.HTTPMethodKey.String(e.Request.Method),
			attribute.String("http.target", e.Request.URL.Path),
			attribute.Int64("http.request_id", rid),
		)
		s.httpSpans.Store(rid, span)
	}))

	add(eventbus.SubscribeTo(b, func(ctx context.Context, e events.HTTPFinish) {
		rid, _ := reqid.FromContext(ctx)
		span, ok := end(&s.httpSpans, rid)
		if !ok {
			return
		}
		span.SetAttributes(
			semconv.HTTPStatusCodeKey.Int(e.Status),
			attribute.Bool("gqlguard.forwarded", e.Forwarded),
		)
		if e.Status >= 500 {
			span.SetStatus(codes.Error, "")
		}
		span.End()
	}))

	add(eventbus.SubscribeTo(b, func(ctx context.Context, e events.OperationStart) {
		_, span := s.tracer.Start(s.parentOf(ctx, false), "graphql.operation")
		name := e.OperationName
		if name == "" {
			name = anonymousOperation
		}
		span.SetAttributes(
			attribute.String("graphql.operation.name", name),
			attribute.String("graphql.document", e.Query),
			attribute.String("resource.name", resourceName(e.OperationName, e.Query)),
		)
		s.gqlSpans.Store(keyOf(ctx), span)
	}))

	add(eventbus.SubscribeTo(b, func(ctx context.Context, e events.OperationFinish) {
		span, ok := end(&s.gqlSpans, keyOf(ctx))
		if !ok {
			return
		}
		span.SetAttributes(
			attribute.String("graphql.operation.type", e.OperationType),
			attribute.Int("graphql.error_count", len(e.Errors)),
		)
		for _, err := range e.Errors {
			span.RecordError(err)
		}
		span.End()
	}))

	add(eventbus.SubscribeTo(b, func(ctx context.Context, _ events.ParseStart) {
		_, span := s.tracer.Start(s.parentOf(ctx, true), "graphql.parse")
		s.parseSpans.Store(keyOf(ctx), span)
	}))

	add(eventbus.SubscribeTo(b, func(ctx context.Context, e events.ParseFinish) {
		span, ok := end(&s.parseSpans, keyOf(ctx))
		if !ok {
			return
		}
		if e.Err != nil {
			span.RecordError(e.Err)
			span.SetStatus(codes.Error, e.Err.Message)
		}
		span.End()
	}))

	add(eventbus.SubscribeTo(b, func(ctx context.Context, _ events.ValidationStart) {
		_, span := s.tracer.Start(s.parentOf(ctx, true), "graphql.validate")
		s.validateSpans.Store(keyOf(ctx), span)
	}))

	add(eventbus.SubscribeTo(b, func(ctx context.Context, e events.ValidationFinish) {
		span, ok := end(&s.validateSpans, keyOf(ctx))
		if !ok {
			return
		}
		span.SetAttributes(attribute.Int("graphql.error_count", len(e.Errors)))
		span.End()
	}))

	add(eventbus.SubscribeTo(b, func(ctx context.Context, e events.UpstreamStart) {
		rid, _ := reqid.FromContext(ctx)
		_, span := s.tracer.Start(s.parentOf(ctx, false), "upstream.request")
		span.SetAttributes(
			attribute.String("http.url", e.URL),
			attribute.Int("graphql.batch_size", e.Batch),
		)
		s.upstreamSpans.Store(rid, span)
	}))

	add(eventbus.SubscribeTo(b, func(ctx context.Context, e events.UpstreamFinish) {
		rid, _ := reqid.FromContext(ctx)
		span, ok := end(&s.upstreamSpans, rid)
		if !ok {
			return
		}
		if e.Status != 0 {
			span.SetAttributes(semconv.HTTPStatusCodeKey.Int(e.Status))
		}
		if e.Err != nil {
			span.RecordError(e.Err)
			span.SetStatus(codes.Error, e.Err.Error())
		}
		for _, ue := range e.Errors {
			if astutil.IsIntrospectionField(ue.Path) {
				continue
			}
			attrs := []attribute.KeyValue{attribute.String("message", ue.Message)}
			if ue.Path != nil {
				attrs = append(attrs, attribute.String("path", formatPath(ue.Path)))
			}
			span.AddEvent("graphql.error", trace.WithAttributes(attrs...))
		}
		span.End()
	}))

	return func() {
		for _, u := range unsubs {
			u()
		}
	}
}

// resourceName groups spans of the same document: "<operation>:<md5>", or
// the bare digest for anonymous operations.
func resourceName(operation, query string) string {
	if query == "" {
		return "query_missing"
	}
	if operation == "" {
		return queryHash(query)
	}
	return operation + ":" + queryHash(query)
}

func queryHash(q string) string {
	sum := md5.Sum([]byte(q))
	return hex.EncodeToString(sum[:])
}

func formatPath(p *astutil.Path) string {
	return p.ASTPath().String()
}
