package weft

import (
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/weftlog/weft/weftat"
	"github.com/weftlog/weft/weftbase"
)

// Tee fans notifications out to several collectors at once. Duplicate
// collectors (by ID) are dropped. With a single distinct collector the
// collector itself is returned; with none, the discard collector.
//
// Each inner collector assigns its own span IDs, so the tee keeps its
// own ID space and a per-span translation table.
func Tee(collectors ...weftbase.Collector) weftbase.Collector {
	distinct := make([]weftbase.Collector, 0, len(collectors))
	seen := make(map[string]struct{}, len(collectors))
	for _, c := range collectors {
		if _, ok := seen[c.ID()]; ok {
			continue
		}
		seen[c.ID()] = struct{}{}
		distinct = append(distinct, c)
	}
	switch len(distinct) {
	case 0:
		return weftbase.Discard
	case 1:
		return distinct[0]
	}
	return &tee{
		id:         "tee-" + uuid.New().String(),
		collectors: distinct,
		spans:      make(map[weftbase.ID][]weftbase.ID),
	}
}

type tee struct {
	id         string
	collectors []weftbase.Collector
	nextID     uint64
	lock       sync.Mutex
	spans      map[weftbase.ID][]weftbase.ID
}

var _ weftbase.Collector = &tee{}
var _ weftbase.CallsiteRegisterer = &tee{}

func (t *tee) ID() string { return t.id }

func (t *tee) Enabled(md *weftat.Metadata) bool {
	for _, c := range t.collectors {
		if c.Enabled(md) {
			return true
		}
	}
	return false
}

// RegisterCallsite combines the inner collectors' interest; any inner
// collector's interest keeps the callsite live.
func (t *tee) RegisterCallsite(md *weftat.Metadata) weftat.Interest {
	combined := weftat.NeverInterested
	for _, c := range t.collectors {
		if r, ok := c.(weftbase.CallsiteRegisterer); ok {
			combined = combined.Combine(r.RegisterCallsite(md))
		} else if c.Enabled(md) {
			combined = combined.Combine(weftat.AlwaysInterested)
		}
	}
	return combined
}

func (t *tee) inner(id weftbase.ID) []weftbase.ID {
	t.lock.Lock()
	defer t.lock.Unlock()
	return t.spans[id]
}

// translate maps a tee-space parent to collector i's space. A zero
// result means the inner collector never opened the parent.
func translate(inner []weftbase.ID, i int) weftbase.ID {
	if inner == nil || i >= len(inner) {
		return 0
	}
	return inner[i]
}

func (t *tee) NewSpan(attrs *weftbase.Attributes) weftbase.ID {
	id := weftbase.ID(atomic.AddUint64(&t.nextID, 1))
	parents := t.inner(attrs.Parent)
	inner := make([]weftbase.ID, len(t.collectors))
	for i, c := range t.collectors {
		if !c.Enabled(attrs.Metadata) {
			continue
		}
		a := *attrs
		a.Parent = translate(parents, i)
		inner[i] = c.NewSpan(&a)
	}
	t.lock.Lock()
	defer t.lock.Unlock()
	t.spans[id] = inner
	return id
}

func (t *tee) Record(id weftbase.ID, fields []weftbase.Field) {
	inner := t.inner(id)
	for i, c := range t.collectors {
		if cid := translate(inner, i); !cid.IsZero() {
			c.Record(cid, fields)
		}
	}
}

func (t *tee) RecordFollowsFrom(id weftbase.ID, follows weftbase.ID) {
	inner := t.inner(id)
	followsInner := t.inner(follows)
	for i, c := range t.collectors {
		cid := translate(inner, i)
		fid := translate(followsInner, i)
		if !cid.IsZero() && !fid.IsZero() {
			c.RecordFollowsFrom(cid, fid)
		}
	}
}

func (t *tee) Event(ev *weftbase.EventData) {
	parents := t.inner(ev.Parent)
	for i, c := range t.collectors {
		if !c.Enabled(ev.Metadata) {
			continue
		}
		e := *ev
		e.Parent = translate(parents, i)
		c.Event(&e)
	}
}

func (t *tee) Enter(id weftbase.ID) {
	inner := t.inner(id)
	for i, c := range t.collectors {
		if cid := translate(inner, i); !cid.IsZero() {
			c.Enter(cid)
		}
	}
}

func (t *tee) Exit(id weftbase.ID) {
	inner := t.inner(id)
	for i, c := range t.collectors {
		if cid := translate(inner, i); !cid.IsZero() {
			c.Exit(cid)
		}
	}
}

func (t *tee) TryClose(id weftbase.ID) bool {
	inner := t.inner(id)
	closed := true
	for i, c := range t.collectors {
		if cid := translate(inner, i); !cid.IsZero() {
			if !c.TryClose(cid) {
				closed = false
			}
		}
	}
	if closed {
		t.lock.Lock()
		defer t.lock.Unlock()
		delete(t.spans, id)
	}
	return closed
}

func (t *tee) ReferencesKept() bool {
	for _, c := range t.collectors {
		if c.ReferencesKept() {
			return true
		}
	}
	return false
}
