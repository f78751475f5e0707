package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// TracerName names the tracer of the sync and import spans
const TracerName = "catalogsync"

// Span attribute keys shared by the services and the platform adapters
const (
	KeyPlatform   = attribute.Key("platform")
	KeySKU        = attribute.Key("sku")
	KeyItemID     = attribute.Key("erp.item_id")
	KeyProductID  = attribute.Key("storefront.product_id")
	KeyTitle      = attribute.Key("product.title")
	KeyBatchSize  = attribute.Key("import.batch_size")
	KeyAttempt    = attribute.Key("http.attempt")
	KeyStatusCode = attribute.Key("http.status_code")
	KeyURL        = attribute.Key("http.url")
)

// Start opens an internal span such as "shopify.update_price". The caller
// ends it.
func Start(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return start(ctx, name, trace.SpanKindInternal, attrs)
}

// StartClient opens a span for one outbound platform request
func StartClient(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return start(ctx, name, trace.SpanKindClient, attrs)
}

func start(ctx context.Context, name string, kind trace.SpanKind, attrs []attribute.KeyValue) (context.Context, trace.Span) {
	return otel.Tracer(TracerName).Start(ctx, name,
		trace.WithSpanKind(kind),
		trace.WithAttributes(attrs...),
	)
}

// RecordError marks span failed with err. Nil spans and errors are ignored.
func RecordError(span trace.Span, err error) {
	if span == nil || err == nil {
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}

// SetOK marks span successful
func SetOK(span trace.Span) {
	if span != nil {
		span.SetStatus(codes.Ok, "")
	}
}

// TraceID returns the trace ID of the span in ctx, "" without one
func TraceID(ctx context.Context) string {
	sc := trace.SpanContextFromContext(ctx)
	if !sc.HasTraceID() {
		return ""
	}
	return sc.TraceID().String()
}
