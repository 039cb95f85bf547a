package weft

import (
	"sync"
	"sync/atomic"

	"github.com/mohae/deepcopy"

	"github.com/weftlog/weft/internal/gstack"
	"github.com/weftlog/weft/weftat"
	"github.com/weftlog/weft/weftbase"
)

// Span is a handle on a period of execution. Handles reference-count
// the underlying span: the collector's TryClose fires when the last
// handle is closed, which may be on a different goroutine than the one
// that created it.
//
// A Span with no ID is a valid, inert handle; every operation on it is
// a no-op. That is the shape a callsite produces when no collector is
// interested.
type Span struct {
	collector weftbase.Collector
	md        *weftat.Metadata
	id        weftbase.ID
	refs      int32
}

var disabledSpan = &Span{}

// NewSpan creates a span whose parent is the calling goroutine's
// current span (none if the goroutine has not entered any).
func NewSpan(cs *weftat.Callsite, fields ...weftbase.Field) *Span {
	return newSpan(cs, 0, false, fields)
}

// NewRootSpan creates a span with no parent regardless of what the
// calling goroutine has entered.
func NewRootSpan(cs *weftat.Callsite, fields ...weftbase.Field) *Span {
	return newSpan(cs, 0, true, fields)
}

// NewSpanWithParent creates a span under an explicit parent.
func NewSpanWithParent(parent weftbase.ID, cs *weftat.Callsite, fields ...weftbase.Field) *Span {
	return newSpan(cs, parent, false, fields)
}

func newSpan(cs *weftat.Callsite, parent weftbase.ID, isRoot bool, fields []weftbase.Field) *Span {
	c, ok := enabledCollector(cs)
	if !ok {
		return disabledSpan
	}
	md := cs.Metadata()
	if parent.IsZero() && !isRoot {
		if st := gstack.Peek(); st != nil {
			parent, _ = st.Top()
		}
	}
	id := c.NewSpan(&weftbase.Attributes{
		Metadata: md,
		Parent:   parent,
		IsRoot:   isRoot,
		Fields:   prepareFields(c, md, fields),
	})
	if id.IsZero() {
		return disabledSpan
	}
	return &Span{
		collector: c,
		md:        md,
		id:        id,
		refs:      1,
	}
}

// prepareFields drops fields whose names were not declared in the
// callsite's metadata (recording an undeclared name is ignored, not an
// error) and deep-copies Debug values when the collector keeps
// references instead of serializing immediately.
//
// The caller may retain its slice and pass it again, so the result is
// always a fresh allocation; never compact or rewrite in place.
func prepareFields(c weftbase.Collector, md *weftat.Metadata, fields []weftbase.Field) []weftbase.Field {
	if len(fields) == 0 {
		return nil
	}
	copyRefs := c.ReferencesKept()
	out := make([]weftbase.Field, 0, len(fields))
	for _, f := range fields {
		if !md.HasField(f.Key) {
			continue
		}
		if copyRefs && f.Kind == weftbase.DeferredKind && f.Any != nil {
			f.Any = deepcopy.Copy(f.Any)
		}
		out = append(out, f)
	}
	return out
}

// Disabled reports whether this handle is inert.
func (s *Span) Disabled() bool { return s.id.IsZero() }

// ID returns the collector-assigned identifier, zero for a disabled
// handle.
func (s *Span) ID() weftbase.ID { return s.id }

// Metadata returns the callsite metadata, nil for a disabled handle.
func (s *Span) Metadata() *weftat.Metadata { return s.md }

func (s *Span) alive() bool {
	return !s.id.IsZero() && atomic.LoadInt32(&s.refs) > 0
}

// Record adds field values to the span. Field names must have been
// declared at the callsite; undeclared names are ignored.
func (s *Span) Record(fields ...weftbase.Field) {
	if !s.alive() {
		return
	}
	s.collector.Record(s.id, prepareFields(s.collector, s.md, fields))
}

// FollowsFrom records a causal (non-lifecycle) link: this span was
// caused by the span identified by follows.
func (s *Span) FollowsFrom(follows weftbase.ID) {
	if !s.alive() || follows.IsZero() {
		return
	}
	s.collector.RecordFollowsFrom(s.id, follows)
}

// Entered is the scoped guard returned by Enter. Exit is idempotent
// and is typically deferred.
type Entered struct {
	span *Span
	st   *gstack.State
	done bool
}

// Enter pushes the span onto the calling goroutine's current-span
// stack and returns the guard that pops it. Entering an already
// entered span on the same goroutine is legal; the collector sees
// Enter only on the first entry and Exit only when the matching number
// of guards have been released.
func (s *Span) Enter() *Entered {
	if !s.alive() {
		return &Entered{}
	}
	st := gstack.Current()
	st.Push(s.id)
	if st.IncDepth(s.id) == 1 {
		s.collector.Enter(s.id)
	}
	return &Entered{span: s, st: st}
}

// Exit pops the span from the goroutine's stack. Exits pair LIFO with
// entries on the goroutine that entered; the guard must be released on
// that same goroutine.
func (e *Entered) Exit() {
	if e.done || e.span == nil {
		return
	}
	e.done = true
	e.st.Pop()
	if e.st.DecDepth(e.span.id) == 0 {
		e.span.collector.Exit(e.span.id)
	}
	e.st.Release()
}

// Retain adds a reference so the span outlives the current handle's
// Close. Each Retain needs a matching Close. Retain on a closed or
// disabled handle is a no-op.
func (s *Span) Retain() *Span {
	for {
		refs := atomic.LoadInt32(&s.refs)
		if refs <= 0 {
			return s
		}
		if atomic.CompareAndSwapInt32(&s.refs, refs, refs+1) {
			return s
		}
	}
}

// Close releases this handle. When the last reference is released the
// collector is told to close its bookkeeping for the ID; after that
// the engine never uses the ID again. Extra Closes are no-ops.
func (s *Span) Close() {
	if s.id.IsZero() {
		return
	}
	for {
		refs := atomic.LoadInt32(&s.refs)
		if refs <= 0 {
			return
		}
		if atomic.CompareAndSwapInt32(&s.refs, refs, refs-1) {
			if refs == 1 {
				s.collector.TryClose(s.id)
			}
			return
		}
	}
}

// InScope runs fn with the span entered, exiting on every return path.
func (s *Span) InScope(fn func()) {
	e := s.Enter()
	defer e.Exit()
	fn()
}

// Wrap adapts a deferred computation so that the span is entered
// around each invocation rather than around the call that produced it.
// A suspended computation may resume on another goroutine or another
// scheduling turn; entering synchronously there would misattribute or
// leak nesting.
//
// The wrapper holds its own reference, released after the wrapped
// function first completes.
func (s *Span) Wrap(fn func()) func() {
	if fn == nil {
		return nil
	}
	s.Retain()
	var once sync.Once
	return func() {
		defer once.Do(s.Close)
		e := s.Enter()
		defer e.Exit()
		fn()
	}
}

// WrapErr is Wrap for computations that return an error.
func (s *Span) WrapErr(fn func() error) func() error {
	if fn == nil {
		return nil
	}
	s.Retain()
	var once sync.Once
	return func() error {
		defer once.Do(s.Close)
		e := s.Enter()
		defer e.Exit()
		return fn()
	}
}

// CurrentSpanID returns the ID of the span the calling goroutine is
// executing in, or zero if it has not entered any.
func CurrentSpanID() weftbase.ID {
	if st := gstack.Peek(); st != nil {
		if id, ok := st.Top(); ok {
			return id
		}
	}
	return 0
}
