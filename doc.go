// Package weft is a structured, span-based diagnostic framework.
// Instrumented code describes itself once per callsite (weftat), records
// typed field values (weftbase), and the span engine in this package
// routes lifecycle notifications -- new span, enter, exit, close, event
// -- to whichever collector is active.
//
// Collectors implement weftbase.Collector. A process installs one with
// SetGlobalCollector, or scopes one to the current goroutine with
// WithCollector. Callsites judged uninteresting by every active
// collector degrade to no-ops without allocating.
//
// The tools/weftgen command rewrites annotated functions so that each
// call runs inside an automatically created span.
package weft
