package weft_test

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weftlog/weft"
	"github.com/weftlog/weft/weftat"
	"github.com/weftlog/weft/weftnum"
	"github.com/weftlog/weft/weftrecorder"
)

func TestSpanContextRoundTrip(t *testing.T) {
	rec := weftrecorder.New()
	weft.WithCollector(rec, func() {
		cs := weft.NewCallsite(weftat.SpanKind, "ctx-span", "weft_test", weftnum.InfoLevel)
		span := weft.NewSpan(cs)
		defer span.Close()

		ctx := span.IntoContext(context.Background())
		got, ok := weft.SpanFromContext(ctx)
		require.True(t, ok)
		assert.Equal(t, span, got)

		_, ok = weft.SpanFromContext(context.Background())
		assert.False(t, ok)
		assert.True(t, weft.SpanFromContextOrDisabled(context.Background()).Disabled())
	})
}

func TestExplicitParentAcrossGoroutines(t *testing.T) {
	rec := weftrecorder.New()
	weft.WithCollector(rec, func() {
		cs := weft.NewCallsite(weftat.SpanKind, "cross", "weft_test", weftnum.InfoLevel)
		parent := weft.NewSpan(cs)
		ctx := parent.Retain().IntoContext(context.Background())

		var wg sync.WaitGroup
		wg.Add(1)
		go weft.WithCollector(rec, func() {
			defer wg.Done()
			p := weft.SpanFromContextOrDisabled(ctx)
			defer p.Close()
			child := weft.NewSpanWithParent(p.ID(), cs)
			child.Close()
		})
		wg.Wait()
		parent.Close()

		spans := rec.AllSpans()
		require.Len(t, spans, 2)
		require.NotNil(t, spans[1].Parent)
		assert.Equal(t, spans[0], spans[1].Parent, "explicit parent honored off-goroutine")
		assert.True(t, spans[0].Closed, "refcount reaches zero after both handles close")
	})
}
