package weftnum_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weftlog/weft/weftnum"
)

func TestLevelString(t *testing.T) {
	cases := []struct {
		input string
		want  weftnum.Level
		bad   bool
	}{
		{input: "trace", want: weftnum.TraceLevel},
		{input: "debug", want: weftnum.DebugLevel},
		{input: "info", want: weftnum.InfoLevel},
		{input: "warn", want: weftnum.WarnLevel},
		{input: "warning", want: weftnum.WarnLevel},
		{input: "error", want: weftnum.ErrorLevel},
		{input: "ERROR", want: weftnum.ErrorLevel},
		{input: "Debug", want: weftnum.DebugLevel},
		{input: "1", want: weftnum.TraceLevel},
		{input: "2", want: weftnum.DebugLevel},
		{input: "3", want: weftnum.InfoLevel},
		{input: "4", want: weftnum.WarnLevel},
		{input: "5", want: weftnum.ErrorLevel},
		{input: "0", bad: true},
		{input: "6", bad: true},
		{input: "loud", bad: true},
		{input: "", bad: true},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.input, func(t *testing.T) {
			got, err := weftnum.LevelString(tc.input)
			if tc.bad {
				require.Error(t, err)
				assert.Contains(t, err.Error(), "does not belong to Level values")
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestLevelOrdering(t *testing.T) {
	assert.True(t, weftnum.TraceLevel < weftnum.DebugLevel)
	assert.True(t, weftnum.DebugLevel < weftnum.InfoLevel)
	assert.True(t, weftnum.InfoLevel < weftnum.WarnLevel)
	assert.True(t, weftnum.WarnLevel < weftnum.ErrorLevel)
	assert.Equal(t, weftnum.ErrorLevel, weftnum.Level(weftnum.MaxLevel))
}

func TestLevelRoundTrip(t *testing.T) {
	for _, level := range []weftnum.Level{
		weftnum.TraceLevel,
		weftnum.DebugLevel,
		weftnum.InfoLevel,
		weftnum.WarnLevel,
		weftnum.ErrorLevel,
	} {
		back, err := weftnum.LevelString(level.String())
		require.NoErrorf(t, err, "round trip %s", level)
		assert.Equal(t, level, back)
	}
}
