package weft

import (
	"runtime"

	"github.com/weftlog/weft/weftat"
	"github.com/weftlog/weft/weftbase"
	"github.com/weftlog/weft/weftnum"
)

// NewCallsite registers an instrumentation point. Call it once per
// source location, from a package-level var or a sync.Once body; the
// registration is idempotent for a given Metadata but each call to
// NewCallsite creates a distinct one.
//
// fieldNames fixes the set of fields that may later be recorded at
// this callsite (at most weftat.MaxFields).
func NewCallsite(kind weftat.Kind, name string, target string, level weftnum.Level, fieldNames ...string) *weftat.Callsite {
	md := weftat.NewMetadata(kind, name, target, level, fieldNames...)
	if _, file, line, ok := runtime.Caller(1); ok {
		md.WithSource(file, line)
	}
	return weftat.DefaultRegistry().Register(md)
}

// interestOf returns the cached interest decision for cs, recomputing
// it if the collector set has changed since it was stored.
func interestOf(cs *weftat.Callsite) weftat.Interest {
	reg := weftat.DefaultRegistry()
	gen := reg.Generation()
	if i, ok := cs.CachedInterest(gen); ok {
		return i
	}
	i := computeInterest(cs.Metadata())
	cs.StoreInterest(i, gen)
	return i
}

// computeInterest polls every live collector. Opinions only combine to
// Always when they are unanimous: with a mix of Always and Never the
// notification may resolve to either collector depending on which
// goroutine fires the callsite, so the decision is downgraded to
// Sometimes and the active collector's Enabled is rechecked per
// invocation. A collector that declined a callsite never hears from it.
func computeInterest(md *weftat.Metadata) weftat.Interest {
	lowest := weftat.AlwaysInterested
	highest := weftat.NeverInterested
	polled := 0
	forEachActiveCollector(func(c weftbase.Collector) {
		polled++
		var i weftat.Interest
		if r, ok := c.(weftbase.CallsiteRegisterer); ok {
			i = r.RegisterCallsite(md)
		} else if c.Enabled(md) {
			i = weftat.AlwaysInterested
		}
		highest = highest.Combine(i)
		if i < lowest {
			lowest = i
		}
	})
	if polled == 0 {
		return weftat.NeverInterested
	}
	if highest == weftat.AlwaysInterested && lowest != weftat.AlwaysInterested {
		return weftat.SometimesInterested
	}
	return highest
}

// enabledCollector decides whether the callsite fires right now and,
// if so, against which collector. The NeverInterested path must stay
// allocation free: it is the common case for disabled instrumentation.
func enabledCollector(cs *weftat.Callsite) (weftbase.Collector, bool) {
	switch interestOf(cs) {
	case weftat.NeverInterested:
		return nil, false
	case weftat.AlwaysInterested:
		return ActiveCollector(), true
	default:
		c := ActiveCollector()
		return c, c.Enabled(cs.Metadata())
	}
}
