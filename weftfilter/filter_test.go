package weftfilter_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weftlog/weft"
	"github.com/weftlog/weft/weftat"
	"github.com/weftlog/weft/weftbase"
	"github.com/weftlog/weft/weftfilter"
	"github.com/weftlog/weft/weftnum"
	"github.com/weftlog/weft/weftrecorder"
)

func TestParse(t *testing.T) {
	cases := []struct {
		input string
		count int
		bad   string
	}{
		{input: "", count: 0},
		{input: "warn", count: 1},
		{input: "mymod=debug", count: 1},
		{input: "mymod=debug,other::sub=trace,info", count: 3},
		{input: " mymod = debug , warn ", count: 2},
		{input: "mymod=loud", bad: `bad filter directive "mymod=loud"`},
		{input: "shout", bad: `bad filter directive "shout"`},
		{input: "=debug", bad: "empty target"},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.input, func(t *testing.T) {
			set, err := weftfilter.Parse(tc.input)
			if tc.bad != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tc.bad)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.count, set.Len())
		})
	}
}

func TestDirectiveMatching(t *testing.T) {
	set := weftfilter.MustParse("mymod=warn")
	assert.False(t, set.Enabled("mymod", weftnum.InfoLevel))
	assert.True(t, set.Enabled("mymod", weftnum.WarnLevel))
	assert.True(t, set.Enabled("mymod", weftnum.ErrorLevel))
	assert.True(t, set.Enabled("mymod::db", weftnum.WarnLevel), "prefix matches on module boundary")
	assert.False(t, set.Enabled("mymodule", weftnum.ErrorLevel), "no match mid-segment, no default")
}

func TestDirectivePrecedence(t *testing.T) {
	set := weftfilter.MustParse("mymod=warn,mymod::db=trace,info")
	assert.True(t, set.Enabled("mymod::db", weftnum.TraceLevel), "most specific target wins")
	assert.False(t, set.Enabled("mymod", weftnum.TraceLevel))
	assert.True(t, set.Enabled("unrelated", weftnum.InfoLevel), "bare level is the default")
	assert.False(t, set.Enabled("unrelated", weftnum.DebugLevel))
}

func TestEmptySetAllowsAll(t *testing.T) {
	var nilSet *weftfilter.Set
	assert.True(t, nilSet.Enabled("anything", weftnum.TraceLevel))
	assert.True(t, weftfilter.MustParse("").Enabled("anything", weftnum.TraceLevel))
}

func TestFilterSuppressesEvents(t *testing.T) {
	rec := weftrecorder.New()
	filtered := weftfilter.New(rec, weftfilter.MustParse("mymod=warn"))

	weft.WithCollector(filtered, func() {
		infoCS := weft.NewCallsite(weftat.EventKind, "info-ev", "mymod", weftnum.InfoLevel)
		errCS := weft.NewCallsite(weftat.EventKind, "err-ev", "mymod", weftnum.ErrorLevel)

		weft.Event(infoCS, "should be suppressed")
		weft.Event(errCS, "should be delivered")
	})

	assert.Equal(t, 0, rec.CountEvents(weftrecorder.MessageEquals("should be suppressed")))
	assert.Equal(t, 1, rec.CountEvents(weftrecorder.MessageEquals("should be delivered")))
}

func TestFilterReloadInvalidates(t *testing.T) {
	rec := weftrecorder.New()
	filtered := weftfilter.New(rec, weftfilter.MustParse("mymod=error"))

	weft.WithCollector(filtered, func() {
		cs := weft.NewCallsite(weftat.EventKind, "reload-ev", "mymod", weftnum.InfoLevel)
		weft.Event(cs, "before reload")
		assert.Equal(t, 0, rec.CountEvents(), "info suppressed under mymod=error")

		filtered.Reload(weftfilter.MustParse("mymod=info"))
		weft.Event(cs, "after reload")
		assert.Equal(t, 1, rec.CountEvents(), "reload re-enables the cached callsite")
	})
}

func TestFilterNarrowsInner(t *testing.T) {
	picky := weftrecorder.New(weftrecorder.WithMinLevel(weftnum.ErrorLevel))
	filtered := weftfilter.New(picky, weftfilter.MustParse("mymod=debug"))

	md := weftat.NewMetadata(weftat.EventKind, "ev", "mymod", weftnum.InfoLevel)
	assert.False(t, filtered.Enabled(md), "directives allow but the inner collector declines")
}

func TestAsLayer(t *testing.T) {
	rec := weftrecorder.New()
	layered := weftbase.Layered(rec, weftfilter.AsLayer(weftfilter.MustParse("mymod=warn")))
	filtered, ok := layered.(*weftfilter.Collector)
	require.True(t, ok)
	assert.Equal(t, rec.ID(), filtered.Inner().ID())
}

func TestFromEnv(t *testing.T) {
	t.Setenv(weftfilter.EnvVar, "mymod=debug,warn")
	set, err := weftfilter.FromEnv()
	require.NoError(t, err)
	assert.Equal(t, 2, set.Len())
	assert.True(t, set.Enabled("mymod", weftnum.DebugLevel))
	assert.False(t, set.Enabled("other", weftnum.InfoLevel))
}
