// Package weftbase defines the contract between the weft span engine
// and the collectors that consume trace data. There can be many
// Collector implementations; the engine holds them behind this
// interface and never looks inside.
package weftbase

import (
	"github.com/weftlog/weft/weftat"
)

// ID identifies a live span within one collector. IDs are assigned by
// the collector in NewSpan and are opaque to the engine; a collector
// may recycle an ID after it has been closed. The zero ID means "no
// span".
type ID uint64

func (id ID) IsZero() bool { return id == 0 }

// Attributes carries everything a collector needs to start a span.
type Attributes struct {
	Metadata *weftat.Metadata

	// Parent is the explicit parent span, if any.
	Parent ID

	// IsRoot marks a span that was deliberately created without a
	// parent. When neither Parent nor IsRoot is set the span is
	// contextual: Parent has already been resolved from the calling
	// goroutine's current-span stack by the engine.
	IsRoot bool

	Fields []Field
}

// EventData is an instantaneous record. It is constructed, dispatched,
// and discarded; collectors that keep it must copy what they need.
type EventData struct {
	Metadata *weftat.Metadata
	Parent   ID
	IsRoot   bool
	Message  string
	Fields   []Field
}

// Collector is the consumer half of weft -- the part that actually
// records trace data somewhere. All methods must return promptly and
// must not panic; a collector that fails internally swallows its own
// errors (see the SetErrorReporter convention on sink-backed
// collectors).
//
// Enter and Exit for a given ID arrive strictly paired and nested per
// goroutine. No cross-goroutine ordering is guaranteed. Collectors
// that aggregate state across goroutines do their own locking.
type Collector interface {
	// ID uniquely identifies the collector instance so that fan-out
	// configurations can de-duplicate.
	ID() string

	// Enabled answers an interest query for a callsite. It must be
	// cheap: the engine may call it on every invocation of a
	// callsite whose interest is "sometimes".
	Enabled(md *weftat.Metadata) bool

	// NewSpan registers a span and assigns its ID. The returned ID
	// stays unique among this collector's open spans until TryClose.
	NewSpan(attrs *Attributes) ID

	// Record adds field values to an open span.
	Record(id ID, fields []Field)

	// RecordFollowsFrom notes a non-lifecycle causal link: id was
	// caused by follows.
	RecordFollowsFrom(id ID, follows ID)

	// Event records an instantaneous event.
	Event(ev *EventData)

	Enter(id ID)
	Exit(id ID)

	// TryClose is called when the last engine handle for id is
	// dropped. It returns true once the collector has released its
	// own bookkeeping for the ID.
	TryClose(id ID) bool

	// ReferencesKept should return true if Any() field values are
	// not immediately serialized (the value is kept around and
	// serialized later). If references are kept, the engine makes
	// deep copies before recording.
	ReferencesKept() bool
}

// CallsiteRegisterer is implemented by collectors whose interest in a
// callsite can change at runtime (filters that reload directives).
// Collectors that do not implement it get AlwaysInterested or
// NeverInterested derived from Enabled.
type CallsiteRegisterer interface {
	RegisterCallsite(md *weftat.Metadata) weftat.Interest
}

// Layer wraps a Collector with additional behavior, forwarding what it
// does not handle to the inner collector. Layers compose: filters
// narrow interest, tees duplicate, formatters terminate the chain.
type Layer interface {
	Apply(inner Collector) Collector
}

// LayerFunc adapts a function to the Layer interface.
type LayerFunc func(inner Collector) Collector

func (f LayerFunc) Apply(inner Collector) Collector { return f(inner) }

// Layered applies layers to a terminal collector, outermost first:
// Layered(c, a, b) wires a -> b -> c.
func Layered(terminal Collector, layers ...Layer) Collector {
	c := terminal
	for i := len(layers) - 1; i >= 0; i-- {
		c = layers[i].Apply(c)
	}
	return c
}
