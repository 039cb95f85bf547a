package weftotel_test

import (
	"context"
	"io"

	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/weftlog/weft"
	"github.com/weftlog/weft/weftat"
	"github.com/weftlog/weft/weftbase"
	"github.com/weftlog/weft/weftnum"
	"github.com/weftlog/weft/weftotel"
)

// Example shows the whole pipeline: spans flow through the collector
// into an OTEL tracer provider and out through a standard exporter.
func Example() {
	exporter, err := stdouttrace.New(
		stdouttrace.WithWriter(io.Discard),
		stdouttrace.WithPrettyPrint(),
	)
	if err != nil {
		panic(err)
	}
	ctx := context.Background()
	provider := sdktrace.NewTracerProvider(sdktrace.WithBatcher(exporter))
	defer func() {
		_ = provider.Shutdown(ctx)
	}()

	collector := weftotel.New(ctx, provider)
	weft.WithCollector(collector, func() {
		cs := weft.NewCallsite(weftat.SpanKind, "checkout", "shop", weftnum.InfoLevel, "order")
		evCS := weft.NewCallsite(weftat.EventKind, "charge", "shop::billing", weftnum.InfoLevel)

		span := weft.NewSpan(cs, weftbase.Int("order", 1234))
		span.InScope(func() {
			weft.Event(evCS, "card charged")
		})
		span.Close()
	})
	_ = provider.ForceFlush(ctx)
	// Output:
}
