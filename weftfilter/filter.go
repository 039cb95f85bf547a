package weftfilter

import (
	"sync/atomic"

	"github.com/weftlog/weft/weftat"
	"github.com/weftlog/weft/weftbase"
)

// Collector filters notifications in front of an inner collector. Its
// directive set can be swapped at runtime with Reload; every cached
// interest decision is invalidated when that happens.
type Collector struct {
	inner weftbase.Collector
	set   atomic.Value // *Set
}

var _ weftbase.Collector = &Collector{}
var _ weftbase.CallsiteRegisterer = &Collector{}

// New wraps inner with a directive filter.
func New(inner weftbase.Collector, set *Set) *Collector {
	c := &Collector{inner: inner}
	c.set.Store(set)
	return c
}

// AsLayer packages the filter for use with weftbase.Layered.
func AsLayer(set *Set) weftbase.Layer {
	return weftbase.LayerFunc(func(inner weftbase.Collector) weftbase.Collector {
		return New(inner, set)
	})
}

// Reload replaces the directive set and invalidates all cached
// interest decisions so callsites disabled under the old directives
// get re-queried.
func (c *Collector) Reload(set *Set) {
	c.set.Store(set)
	weftat.DefaultRegistry().Invalidate()
}

func (c *Collector) current() *Set {
	return c.set.Load().(*Set)
}

// Inner returns the wrapped collector.
func (c *Collector) Inner() weftbase.Collector { return c.inner }

func (c *Collector) ID() string { return "filter:" + c.inner.ID() }

// Enabled narrows the inner collector's decision: both the directives
// and the inner collector must accept the callsite.
func (c *Collector) Enabled(md *weftat.Metadata) bool {
	if !c.current().Enabled(md.Target(), md.Level()) {
		return false
	}
	return c.inner.Enabled(md)
}

// RegisterCallsite never answers AlwaysInterested: the directive set
// is reloadable, so the decision must be rechecked at each invocation.
// The inner collector is still consulted before concluding Never.
func (c *Collector) RegisterCallsite(md *weftat.Metadata) weftat.Interest {
	var inner weftat.Interest
	if r, ok := c.inner.(weftbase.CallsiteRegisterer); ok {
		inner = r.RegisterCallsite(md)
	} else if c.inner.Enabled(md) {
		inner = weftat.AlwaysInterested
	}
	if inner == weftat.NeverInterested {
		return weftat.NeverInterested
	}
	return weftat.SometimesInterested
}

func (c *Collector) NewSpan(attrs *weftbase.Attributes) weftbase.ID {
	return c.inner.NewSpan(attrs)
}

func (c *Collector) Record(id weftbase.ID, fields []weftbase.Field) {
	c.inner.Record(id, fields)
}

func (c *Collector) RecordFollowsFrom(id weftbase.ID, follows weftbase.ID) {
	c.inner.RecordFollowsFrom(id, follows)
}

// Event drops events the directives reject. NewSpan is not similarly
// gated: the engine already consulted Enabled before constructing the
// span.
func (c *Collector) Event(ev *weftbase.EventData) {
	if !c.current().Enabled(ev.Metadata.Target(), ev.Metadata.Level()) {
		return
	}
	c.inner.Event(ev)
}

func (c *Collector) Enter(id weftbase.ID)        { c.inner.Enter(id) }
func (c *Collector) Exit(id weftbase.ID)         { c.inner.Exit(id) }
func (c *Collector) TryClose(id weftbase.ID) bool { return c.inner.TryClose(id) }
func (c *Collector) ReferencesKept() bool        { return c.inner.ReferencesKept() }
