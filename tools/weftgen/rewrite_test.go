package main

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func rewrite(t *testing.T, src string) string {
	t.Helper()
	out, err := Rewrite("input.weftgo", []byte(src))
	require.NoError(t, err)
	return string(out)
}

func TestPlainInstrumentation(t *testing.T) {
	src := `package mymod

//weft:instrument
func f(a int, b bool) {
	work(a, b)
}

func work(int, bool) {}
`
	out := rewrite(t, src)
	assert.Contains(t, out, `var weftCallsiteF = weft.NewCallsite(weftat.SpanKind, "f", "mymod", weftnum.InfoLevel, "a", "b")`)
	assert.Contains(t, out, `weftSpan := weft.NewSpan(weftCallsiteF, weftbase.Debug("a", a), weftbase.Debug("b", b))`)
	assert.Contains(t, out, "defer weftSpan.Close()")
	assert.Contains(t, out, "weftScope := weftSpan.Enter()")
	assert.Contains(t, out, "defer weftScope.Exit()")
	assert.Contains(t, out, `"github.com/weftlog/weft"`)
	assert.Contains(t, out, `"github.com/weftlog/weft/weftnum"`)

	// the prologue lands before the original body
	assert.Less(t,
		strings.Index(out, "defer weftScope.Exit()"),
		strings.Index(out, "work(a, b)"))
}

func TestLevelAndTargetEitherOrder(t *testing.T) {
	for _, directive := range []string{
		`//weft:instrument level="debug" target="custom"`,
		`//weft:instrument target="custom" level="debug"`,
	} {
		src := "package mymod\n\n" + directive + "\nfunc f() {}\n"
		out := rewrite(t, src)
		assert.Contains(t, out, `"f", "custom", weftnum.DebugLevel`, "directive: %s", directive)
	}
}

func TestLevelSpellings(t *testing.T) {
	cases := map[string]string{
		"level=TRACE": "weftnum.TraceLevel",
		"level=2":     "weftnum.DebugLevel",
		"level=5":     "weftnum.ErrorLevel",
		"level=warn":  "weftnum.WarnLevel",
	}
	for arg, want := range cases {
		src := "package mymod\n\n//weft:instrument " + arg + "\nfunc f() {}\n"
		assert.Contains(t, rewrite(t, src), want, "arg: %s", arg)
	}
}

func TestNameOverride(t *testing.T) {
	src := "package mymod\n\n//weft:instrument name=\"frob\"\nfunc f() {}\n"
	assert.Contains(t, rewrite(t, src), `"frob", "mymod"`)
}

func TestDuplicateArgumentRejected(t *testing.T) {
	src := "package mymod\n\n//weft:instrument level=debug level=info\nfunc f() {}\n"
	_, err := Rewrite("input.weftgo", []byte(src))
	require.Error(t, err)
	assert.Contains(t, err.Error(), `expected only a single "level" argument`)
}

func TestBadLevelRejected(t *testing.T) {
	for _, arg := range []string{"level=loud", "level=0", "level=6"} {
		src := "package mymod\n\n//weft:instrument " + arg + "\nfunc f() {}\n"
		_, err := Rewrite("input.weftgo", []byte(src))
		require.Errorf(t, err, "arg: %s", arg)
		assert.Contains(t, err.Error(), "invalid level")
	}
}

func TestUnknownArgumentRejected(t *testing.T) {
	src := "package mymod\n\n//weft:instrument color=red\nfunc f() {}\n"
	_, err := Rewrite("input.weftgo", []byte(src))
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown instrument argument "color"`)
}

func TestSuspendingBodyWrapsReturns(t *testing.T) {
	src := `package mymod

//weft:instrument
func produce(n int) func() error {
	if n == 0 {
		return func() error { return nil }
	}
	return step(n)
}

func step(int) func() error { return nil }
`
	out := rewrite(t, src)
	assert.Contains(t, out, "weftSpan := weft.NewSpan(weftCallsiteProduce")
	assert.Contains(t, out, "defer weftSpan.Close()")
	assert.NotContains(t, out, "weftSpan.Enter()", "suspending bodies are not entered synchronously")
	assert.Contains(t, out, "return weftSpan.WrapErr(func() error { return nil })")
	assert.Contains(t, out, "return weftSpan.WrapErr(step(n))")
}

func TestSuspendingVoidComputation(t *testing.T) {
	src := `package mymod

//weft:instrument
func produce() func() {
	return func() {
		// inner returns stay untouched
		if done() {
			return
		}
	}
}

func done() bool { return true }
`
	out := rewrite(t, src)
	assert.Contains(t, out, "return weftSpan.Wrap(func() {")
	assert.Equal(t, 1, strings.Count(out, "weftSpan.Wrap("), "returns inside the literal are not wrapped")
}

func TestSuspendingNakedReturnRejected(t *testing.T) {
	src := `package mymod

//weft:instrument
func produce() (fn func()) {
	fn = func() {}
	return
}
`
	_, err := Rewrite("input.weftgo", []byte(src))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "naked return")
}

func TestMethodCallsiteNaming(t *testing.T) {
	src := `package mymod

type Conn struct{}

//weft:instrument
func (c *Conn) Send(payload string) {
	_ = payload
}
`
	out := rewrite(t, src)
	assert.Contains(t, out, `var weftCallsiteConnSend = weft.NewCallsite(weftat.SpanKind, "Send", "mymod", weftnum.InfoLevel, "payload")`)
}

func TestUninstrumentedSourceUntouched(t *testing.T) {
	src := "package mymod\n\nfunc f() {}\n"
	out, err := Rewrite("input.weftgo", []byte(src))
	require.NoError(t, err)
	assert.Equal(t, src, string(out), "no directive, no rewrite")
}
