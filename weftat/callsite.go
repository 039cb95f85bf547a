package weftat

import (
	"sync"
	"sync/atomic"
)

// Interest is the cached decision of whether any active collector
// wants notifications from a callsite.
type Interest int32

const (
	NeverInterested     Interest = iota // never
	SometimesInterested                 // sometimes
	AlwaysInterested                    // always
)

func (i Interest) String() string {
	switch i {
	case AlwaysInterested:
		return "always"
	case SometimesInterested:
		return "sometimes"
	default:
		return "never"
	}
}

// Combine merges interest decisions from multiple collectors. Any
// collector's interest is enough to keep the callsite live.
func (i Interest) Combine(other Interest) Interest {
	if other > i {
		return other
	}
	return i
}

// Callsite pairs a Metadata with a cached interest decision. The cache
// carries the registry generation it was computed against; a stale
// generation forces a re-query so that a newly-interested collector is
// never hidden behind an old NeverInterested decision.
type Callsite struct {
	md         *Metadata
	interest   int32
	generation uint64
}

func (cs *Callsite) Metadata() *Metadata { return cs.md }

// CachedInterest returns the stored decision and whether it is still
// valid for generation gen.
func (cs *Callsite) CachedInterest(gen uint64) (Interest, bool) {
	if atomic.LoadUint64(&cs.generation) != gen {
		return NeverInterested, false
	}
	return Interest(atomic.LoadInt32(&cs.interest)), true
}

// StoreInterest records a freshly computed decision for generation gen.
func (cs *Callsite) StoreInterest(i Interest, gen uint64) {
	atomic.StoreInt32(&cs.interest, int32(i))
	atomic.StoreUint64(&cs.generation, gen)
}

// Registry tracks every registered callsite and the generation counter
// that invalidates their cached interest. The zero Registry is not
// usable; most programs use the package-level default.
type Registry struct {
	lock       sync.Mutex
	callsites  []*Callsite
	byIdentity map[*Metadata]*Callsite
	generation uint64
}

func NewRegistry() *Registry {
	return &Registry{
		byIdentity: make(map[*Metadata]*Callsite),
		generation: 1,
	}
}

var defaultRegistry = NewRegistry()

// DefaultRegistry returns the process-wide registry used by the weft
// facade package.
func DefaultRegistry() *Registry { return defaultRegistry }

// Register adds md to the registry, returning its Callsite. Registering
// the same Metadata again returns the original Callsite: callsites are
// statically placed so repeated registration must be idempotent.
func (r *Registry) Register(md *Metadata) *Callsite {
	r.lock.Lock()
	defer r.lock.Unlock()
	if cs, ok := r.byIdentity[md]; ok {
		return cs
	}
	cs := &Callsite{md: md}
	r.byIdentity[md] = cs
	r.callsites = append(r.callsites, cs)
	return cs
}

// Generation returns the current invalidation generation. Interest
// decisions cached against an older generation must be recomputed.
func (r *Registry) Generation() uint64 {
	return atomic.LoadUint64(&r.generation)
}

// Invalidate marks every cached interest decision stale. It is called
// whenever the set of active collectors changes or a filter reloads
// its directives.
func (r *Registry) Invalidate() {
	atomic.AddUint64(&r.generation, 1)
}

// Range calls f for each registered callsite until f returns false.
func (r *Registry) Range(f func(*Callsite) bool) {
	r.lock.Lock()
	callsites := make([]*Callsite, len(r.callsites))
	copy(callsites, r.callsites)
	r.lock.Unlock()
	for _, cs := range callsites {
		if !f(cs) {
			return
		}
	}
}

// Len reports how many callsites have been registered.
func (r *Registry) Len() int {
	r.lock.Lock()
	defer r.lock.Unlock()
	return len(r.callsites)
}
