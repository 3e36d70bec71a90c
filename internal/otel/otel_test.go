package otel

import (
	"context"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	astutil "github.com/hanpama/gqlguard/internal/astutil"
	eventbus "github.com/hanpama/gqlguard/internal/eventbus"
	events "github.com/hanpama/gqlguard/internal/events"
	reqid "github.com/hanpama/gqlguard/internal/reqid"
)

func setup(t *testing.T) (*eventbus.Bus, *tracetest.SpanRecorder) {
	t.Helper()
	rec := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec))
	b := eventbus.New()
	unregister := Register(b, tp.Tracer("test"))
	t.Cleanup(unregister)
	return b, rec
}

func spanNames(spans []sdktrace.ReadOnlySpan) []string {
	names := make([]string, len(spans))
	for i, s := range spans {
		names[i] = s.Name()
	}
	return names
}

func TestRequestSpans(t *testing.T) {
	b, rec := setup(t)
	ctx, _ := reqid.NewContext(context.Background())
	r := httptest.NewRequest("POST", "/graphql", nil)

	eventbus.PublishTo(ctx, b, events.HTTPStart{Request: r})
	opCtx := events.WithOperation(ctx, 0)
	eventbus.PublishTo(opCtx, b, events.OperationStart{Query: "{ a }"})
	eventbus.PublishTo(opCtx, b, events.ParseStart{})
	eventbus.PublishTo(opCtx, b, events.ParseFinish{})
	eventbus.PublishTo(opCtx, b, events.ValidationStart{})
	eventbus.PublishTo(opCtx, b, events.ValidationFinish{})
	eventbus.PublishTo(opCtx, b, events.OperationFinish{Query: "{ a }", OperationType: "query"})
	eventbus.PublishTo(ctx, b, events.UpstreamStart{URL: "http://upstream", Batch: 1})
	eventbus.PublishTo(ctx, b, events.UpstreamFinish{URL: "http://upstream", Status: 200})
	eventbus.PublishTo(ctx, b, events.HTTPFinish{Request: r, Status: 200})

	spans := rec.Ended()
	require.Equal(t, []string{"graphql.parse", "graphql.validate", "graphql.operation", "upstream.request", "http.request"}, spanNames(spans))

	httpSpan := spans[4]
	op := spans[2]
	require.Equal(t, httpSpan.SpanContext().SpanID(), op.Parent().SpanID())
	require.Equal(t, op.SpanContext().SpanID(), spans[0].Parent().SpanID())
	require.Equal(t, op.SpanContext().SpanID(), spans[1].Parent().SpanID())
	require.Equal(t, httpSpan.SpanContext().SpanID(), spans[3].Parent().SpanID())

	attrs := map[string]string{}
	for _, kv := range op.Attributes() {
		attrs[string(kv.Key)] = kv.Value.Emit()
	}
	require.Equal(t, "Anonymous Query", attrs["graphql.operation.name"])
	require.Equal(t, queryHash("{ a }"), attrs["resource.name"])
}

func TestResourceName(t *testing.T) {
	require.Equal(t, "query_missing", resourceName("A", ""))
	require.Equal(t, "A:"+queryHash("query A { a }"), resourceName("A", "query A { a }"))
	require.Len(t, resourceName("", "{ a }"), 32)
}

func TestUpstreamErrorsSkipIntrospection(t *testing.T) {
	b, rec := setup(t)
	ctx, _ := reqid.NewContext(context.Background())

	eventbus.PublishTo(ctx, b, events.UpstreamStart{URL: "http://upstream"})
	eventbus.PublishTo(ctx, b, events.UpstreamFinish{
		Status: 200,
		Errors: []events.UpstreamError{
			{Message: "boom", Path: (*astutil.Path)(nil).Add("user").Add("name")},
			{Message: "hidden", Path: (*astutil.Path)(nil).Add("__schema").Add("types")},
			{Message: "no path"},
		},
	})

	spans := rec.Ended()
	require.Len(t, spans, 1)
	evs := spans[0].Events()
	require.Len(t, evs, 2)
	require.Equal(t, "graphql.error", evs[0].Name)
	require.Equal(t, "boom", evs[0].Attributes[0].Value.AsString())
	require.Equal(t, "user.name", evs[0].Attributes[1].Value.AsString())
	require.Equal(t, "no path", evs[1].Attributes[0].Value.AsString())
}

func TestBatchedOperationsGetSeparateSpans(t *testing.T) {
	b, rec := setup(t)
	ctx, _ := reqid.NewContext(context.Background())

	first := events.WithOperation(ctx, 0)
	second := events.WithOperation(ctx, 1)
	eventbus.PublishTo(first, b, events.OperationStart{OperationName: "A"})
	eventbus.PublishTo(second, b, events.OperationStart{OperationName: "B"})
	eventbus.PublishTo(second, b, events.OperationFinish{OperationName: "B"})
	eventbus.PublishTo(first, b, events.OperationFinish{OperationName: "A"})

	spans := rec.Ended()
	require.Len(t, spans, 2)
	require.NotEqual(t, spans[0].SpanContext().SpanID(), spans[1].SpanContext().SpanID())
}

func TestSetupWithoutEndpoint(t *testing.T) {
	shutdown, err := Setup(eventbus.New(), "", "gqlguard")
	require.NoError(t, err)
	require.NoError(t, shutdown(context.Background()))
}
