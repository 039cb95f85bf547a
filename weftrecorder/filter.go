package weftrecorder

import (
	"strings"

	"github.com/weftlog/weft/weftnum"
)

type EventPredicate struct {
	f    func(*Event) bool
	desc string
}

func (p EventPredicate) String() string { return p.desc }

func MessageEquals(msg string) EventPredicate {
	return EventPredicate{
		f: func(ev *Event) bool {
			return ev.Message == msg
		},
		desc: "message equals " + msg,
	}
}

func MessageContains(msg string) EventPredicate {
	return EventPredicate{
		f: func(ev *Event) bool {
			return strings.Contains(ev.Message, msg)
		},
		desc: "message contains " + msg,
	}
}

func EventLevel(level weftnum.Level) EventPredicate {
	return EventPredicate{
		f: func(ev *Event) bool {
			return ev.Level == level
		},
		desc: "level is " + level.String(),
	}
}

func EventTarget(target string) EventPredicate {
	return EventPredicate{
		f: func(ev *Event) bool {
			return ev.Target == target
		},
		desc: "target equals " + target,
	}
}

func HasField(key string) EventPredicate {
	return EventPredicate{
		f: func(ev *Event) bool {
			_, ok := ev.Fields[key]
			return ok
		},
		desc: "has field " + key,
	}
}

func (p SpanPredicate) EventPredicate() EventPredicate {
	return EventPredicate{
		f: func(ev *Event) bool {
			return ev.Span != nil && p.f(ev.Span)
		},
		desc: "span " + p.desc,
	}
}

func (rec *Recorder) FindEvents(predicates ...EventPredicate) []*Event {
	rec.lock.Lock()
	defer rec.lock.Unlock()
	var found []*Event
Event:
	for _, ev := range rec.Events {
		for _, predicate := range predicates {
			if !predicate.f(ev) {
				continue Event
			}
		}
		found = append(found, ev)
	}
	return found
}

func (rec *Recorder) CountEvents(predicates ...EventPredicate) int {
	return len(rec.FindEvents(predicates...))
}

type SpanPredicate struct {
	f    func(*Span) bool
	desc string
}

func (p SpanPredicate) String() string { return p.desc }

func NameEquals(name string) SpanPredicate {
	return SpanPredicate{
		f: func(span *Span) bool {
			return span.Name == name
		},
		desc: "name equals " + name,
	}
}

func TargetEquals(target string) SpanPredicate {
	return SpanPredicate{
		f: func(span *Span) bool {
			return span.Target == target
		},
		desc: "target equals " + target,
	}
}

func IsClosed() SpanPredicate {
	return SpanPredicate{
		f: func(span *Span) bool {
			return span.Closed
		},
		desc: "is closed",
	}
}

func SpanHasField(key string) SpanPredicate {
	return SpanPredicate{
		f: func(span *Span) bool {
			_, ok := span.Fields[key]
			return ok
		},
		desc: "has field " + key,
	}
}

// FindSpan returns the first recorded span matching every predicate,
// or nil.
func (rec *Recorder) FindSpan(predicates ...SpanPredicate) *Span {
	rec.lock.Lock()
	defer rec.lock.Unlock()
Span:
	for _, span := range rec.Spans {
		for _, predicate := range predicates {
			if !predicate.f(span) {
				continue Span
			}
		}
		return span
	}
	return nil
}

func (rec *Recorder) FindSpans(predicates ...SpanPredicate) []*Span {
	rec.lock.Lock()
	defer rec.lock.Unlock()
	var found []*Span
Span:
	for _, span := range rec.Spans {
		for _, predicate := range predicates {
			if !predicate.f(span) {
				continue Span
			}
		}
		found = append(found, span)
	}
	return found
}

func (rec *Recorder) CountSpans(predicates ...SpanPredicate) int {
	return len(rec.FindSpans(predicates...))
}
