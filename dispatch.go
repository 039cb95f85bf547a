package weft

import (
	"sync"
	"sync/atomic"

	"github.com/pkg/errors"

	"github.com/weftlog/weft/internal/gstack"
	"github.com/weftlog/weft/weftat"
	"github.com/weftlog/weft/weftbase"
)

// ErrCollectorAlreadySet is returned by SetGlobalCollector after the
// global default has been installed. The existing default is left in
// place.
var ErrCollectorAlreadySet = errors.New("weft: global collector already set")

type collectorBox struct {
	c weftbase.Collector
}

var (
	globalLock      sync.Mutex
	globalInstalled bool
	globalCollector atomic.Value // collectorBox
)

// SetGlobalCollector installs c as the process-wide default collector.
// It succeeds exactly once per process; every later call returns
// ErrCollectorAlreadySet without changing anything. Libraries should
// never call this; it belongs to the program's main.
func SetGlobalCollector(c weftbase.Collector) error {
	globalLock.Lock()
	defer globalLock.Unlock()
	if globalInstalled {
		return ErrCollectorAlreadySet
	}
	globalCollector.Store(collectorBox{c: c})
	globalInstalled = true
	weftat.DefaultRegistry().Invalidate()
	return nil
}

// GlobalCollector returns the installed default, or weftbase.Discard
// if none has been set.
func GlobalCollector() weftbase.Collector {
	if v := globalCollector.Load(); v != nil {
		return v.(collectorBox).c
	}
	return weftbase.Discard
}

// WithCollector makes c the active collector for the calling goroutine
// for the duration of fn. The previous collector is restored on every
// exit path, including panic. Other goroutines are unaffected.
func WithCollector(c weftbase.Collector, fn func()) {
	st := gstack.Current()
	prev := st.SetOverride(c)
	weftat.DefaultRegistry().Invalidate()
	defer func() {
		st.SetOverride(prev)
		st.Release()
		weftat.DefaultRegistry().Invalidate()
	}()
	fn()
}

// ActiveCollector resolves the collector notifications should go to:
// the goroutine override if one is installed, else the global default,
// else the built-in discard collector.
func ActiveCollector() weftbase.Collector {
	if st := gstack.Peek(); st != nil {
		if c := st.Override(); c != nil {
			return c
		}
	}
	return GlobalCollector()
}

// forEachActiveCollector visits the global default plus every live
// goroutine override. Interest is combined over all of them so that a
// scoped collector on one goroutine cannot be starved by a cached
// NeverInterested computed elsewhere.
func forEachActiveCollector(f func(weftbase.Collector)) {
	if v := globalCollector.Load(); v != nil {
		f(v.(collectorBox).c)
	}
	gstack.ForEachOverride(f)
}
