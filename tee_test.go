package weft_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weftlog/weft"
	"github.com/weftlog/weft/weftat"
	"github.com/weftlog/weft/weftbase"
	"github.com/weftlog/weft/weftnum"
	"github.com/weftlog/weft/weftrecorder"
)

func TestTeeDegenerateCases(t *testing.T) {
	assert.Equal(t, weftbase.Discard.ID(), weft.Tee().ID(), "no collectors tees to discard")

	rec := weftrecorder.New()
	assert.Equal(t, rec.ID(), weft.Tee(rec).ID(), "single collector returned as-is")
	assert.Equal(t, rec.ID(), weft.Tee(rec, rec).ID(), "duplicates dropped by ID")
}

func TestTeeFanOut(t *testing.T) {
	left := weftrecorder.New()
	right := weftrecorder.New()
	tee := weft.Tee(left, right)

	weft.WithCollector(tee, func() {
		spanCS := weft.NewCallsite(weftat.SpanKind, "tee-span", "weft_test", weftnum.InfoLevel, "n")
		evCS := weft.NewCallsite(weftat.EventKind, "tee-ev", "weft_test", weftnum.InfoLevel)

		parent := weft.NewSpan(spanCS, weftbase.Int("n", 1))
		parent.InScope(func() {
			child := weft.NewSpan(spanCS, weftbase.Int("n", 2))
			weft.EventWithParent(child.ID(), evCS, "hello")
			child.Close()
		})
		parent.Close()
	})

	for name, rec := range map[string]*weftrecorder.Recorder{"left": left, "right": right} {
		assert.Equalf(t, 2, rec.CountSpans(), "%s sees both spans", name)
		assert.Equalf(t, 1, rec.CountEvents(), "%s sees the event", name)

		spans := rec.AllSpans()
		require.Lenf(t, spans, 2, "%s", name)
		child := spans[1]
		require.NotNilf(t, child.Parent, "%s child has a parent", name)
		assert.Equalf(t, spans[0], child.Parent, "%s parent translated into its own ID space", name)
		assert.Truef(t, spans[0].Closed && child.Closed, "%s spans closed", name)

		events := rec.AllEvents()
		require.Lenf(t, events, 1, "%s", name)
		assert.Equalf(t, child, events[0].Span, "%s event parent translated", name)
	}
}

func TestTeePartialInterest(t *testing.T) {
	eager := weftrecorder.New()
	picky := weftrecorder.New(weftrecorder.WithMinLevel(weftnum.WarnLevel))
	tee := weft.Tee(eager, picky)

	weft.WithCollector(tee, func() {
		infoCS := weft.NewCallsite(weftat.SpanKind, "info-span", "weft_test", weftnum.InfoLevel)
		span := weft.NewSpan(infoCS)
		assert.False(t, span.Disabled(), "one interested collector keeps the callsite live")
		span.Close()
	})

	assert.Equal(t, 1, eager.CountSpans())
	assert.Equal(t, 0, picky.CountSpans(), "uninterested collector skipped")
}

func TestTeeReferencesKept(t *testing.T) {
	rec := weftrecorder.New() // keeps references
	fmtLike := weftbase.Discard
	assert.True(t, weft.Tee(rec, fmtLike).ReferencesKept(), "any inner collector keeping references forces copies")
}
