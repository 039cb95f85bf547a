/*
Package weftrecorder provides an introspective weftbase.Collector. Every
notification is saved to memory and can be examined afterwards, which
makes it the collector of choice for tests. Memory is only freed when
the recorder itself is garbage collected.
*/
package weftrecorder

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/muir/list"
	"github.com/zoobzio/clockz"

	"github.com/weftlog/weft/weftat"
	"github.com/weftlog/weft/weftbase"
	"github.com/weftlog/weft/weftnum"
)

type NoteType int

const (
	SpanStart NoteType = iota
	SpanRecord
	SpanFollowsFrom
	SpanEnter
	SpanExit
	SpanDone
	EventNote
	CustomNote
)

func (t NoteType) String() string {
	switch t {
	case SpanStart:
		return "spanStart"
	case SpanRecord:
		return "spanRecord"
	case SpanFollowsFrom:
		return "spanFollowsFrom"
	case SpanEnter:
		return "spanEnter"
	case SpanExit:
		return "spanExit"
	case SpanDone:
		return "spanDone"
	case EventNote:
		return "event"
	case CustomNote:
		return "custom"
	default:
		return fmt.Sprintf("noteType(%d)", int(t))
	}
}

var _ weftbase.Collector = &Recorder{}
var _ weftbase.CallsiteRegisterer = &Recorder{}

type Opt func(*Recorder)

// WithClock substitutes the clock used to timestamp spans and events.
func WithClock(clock clockz.Clock) Opt {
	return func(rec *Recorder) {
		rec.clock = clock
	}
}

// WithMinLevel makes Enabled reject callsites below level, for tests
// that exercise interest and filtering.
func WithMinLevel(level weftnum.Level) Opt {
	return func(rec *Recorder) {
		rec.minLevel = level
	}
}

func New(opts ...Opt) *Recorder {
	rec := &Recorder{
		id:        "weftrecorder-" + uuid.New().String(),
		clock:     clockz.RealClock,
		SpanIndex: make(map[weftbase.ID]*Span),
	}
	for _, opt := range opts {
		opt(rec)
	}
	return rec
}

type Recorder struct {
	lock      sync.Mutex
	Spans     []*Span
	Events    []*Event
	Notes     []*Note
	SpanIndex map[weftbase.ID]*Span

	// Counters for lifecycle notifications, useful for asserting on
	// re-entrancy and refcount behavior.
	EnterCount    int
	ExitCount     int
	CloseCount    int
	RegisterCount int

	id       string
	clock    clockz.Clock
	minLevel weftnum.Level
	nextID   weftbase.ID
}

type Span struct {
	ID         weftbase.ID
	Name       string
	Target     string
	Level      weftnum.Level
	Parent     *Span
	IsRoot     bool
	Children   []*Span
	Events     []*Event
	Fields     map[string]interface{}
	FollowsIDs []weftbase.ID
	StartTime  time.Time
	EndTime    time.Time
	EnterCount int
	ExitCount  int
	Closed     bool
}

type Event struct {
	Span      *Span // nil for rootless events
	Name      string
	Target    string
	Level     weftnum.Level
	Message   string
	Fields    map[string]interface{}
	Timestamp time.Time
}

// Note is one entry in the global timeline: everything the recorder
// was told, in the order it was told.
type Note struct {
	Type  NoteType
	Span  *Span
	Event *Event
	Msg   string
}

// WithLock is provided for thread-safe introspection of the recorder.
func (rec *Recorder) WithLock(f func(*Recorder) error) error {
	rec.lock.Lock()
	defer rec.lock.Unlock()
	return f(rec)
}

// CustomNote injects a marker into the timeline so a test can assert
// on ordering relative to its own checkpoints.
func (rec *Recorder) CustomNote(msg string, args ...interface{}) {
	rec.lock.Lock()
	defer rec.lock.Unlock()
	rec.Notes = append(rec.Notes, &Note{
		Type: CustomNote,
		Msg:  fmt.Sprintf(msg, args...),
	})
}

func (rec *Recorder) ID() string { return rec.id }

// ReferencesKept is true: recorded field values are retained and
// examined after the fact, so deferred values must be copied up front.
func (rec *Recorder) ReferencesKept() bool { return true }

func (rec *Recorder) Enabled(md *weftat.Metadata) bool {
	return md.Level() >= rec.minLevel
}

// RegisterCallsite counts registrations so tests can verify the
// once-per-callsite caching contract.
func (rec *Recorder) RegisterCallsite(md *weftat.Metadata) weftat.Interest {
	rec.lock.Lock()
	rec.RegisterCount++
	rec.lock.Unlock()
	if md.Level() < rec.minLevel {
		return weftat.NeverInterested
	}
	return weftat.AlwaysInterested
}

// fieldCollector materializes fields into a map the way each value
// would have been rendered, exercising the visitor from the consuming
// side.
type fieldCollector struct {
	data map[string]interface{}
}

func (fc *fieldCollector) Int64(k string, v int64)     { fc.data[k] = v }
func (fc *fieldCollector) Uint64(k string, v uint64)   { fc.data[k] = v }
func (fc *fieldCollector) Float64(k string, v float64) { fc.data[k] = v }
func (fc *fieldCollector) Bool(k string, v bool)       { fc.data[k] = v }
func (fc *fieldCollector) String(k string, v string)   { fc.data[k] = v }
func (fc *fieldCollector) Error(k string, v error)     { fc.data[k] = v }
func (fc *fieldCollector) Formatted(k string, v string) { fc.data[k] = v }

func materialize(fields []weftbase.Field) map[string]interface{} {
	fc := &fieldCollector{data: make(map[string]interface{})}
	weftbase.VisitAll(fields, fc)
	return fc.data
}

func (rec *Recorder) NewSpan(attrs *weftbase.Attributes) weftbase.ID {
	rec.lock.Lock()
	defer rec.lock.Unlock()
	rec.nextID++
	span := &Span{
		ID:        rec.nextID,
		Name:      attrs.Metadata.Name(),
		Target:    attrs.Metadata.Target(),
		Level:     attrs.Metadata.Level(),
		IsRoot:    attrs.IsRoot,
		Fields:    materialize(attrs.Fields),
		StartTime: rec.clock.Now(),
	}
	if !attrs.Parent.IsZero() {
		if parent, ok := rec.SpanIndex[attrs.Parent]; ok {
			span.Parent = parent
			parent.Children = append(parent.Children, span)
		}
	}
	rec.Spans = append(rec.Spans, span)
	rec.SpanIndex[span.ID] = span
	rec.Notes = append(rec.Notes, &Note{Type: SpanStart, Span: span})
	return span.ID
}

func (rec *Recorder) Record(id weftbase.ID, fields []weftbase.Field) {
	rec.lock.Lock()
	defer rec.lock.Unlock()
	span, ok := rec.SpanIndex[id]
	if !ok {
		return
	}
	for k, v := range materialize(fields) {
		span.Fields[k] = v
	}
	rec.Notes = append(rec.Notes, &Note{Type: SpanRecord, Span: span})
}

func (rec *Recorder) RecordFollowsFrom(id weftbase.ID, follows weftbase.ID) {
	rec.lock.Lock()
	defer rec.lock.Unlock()
	span, ok := rec.SpanIndex[id]
	if !ok {
		return
	}
	span.FollowsIDs = append(span.FollowsIDs, follows)
	rec.Notes = append(rec.Notes, &Note{Type: SpanFollowsFrom, Span: span})
}

func (rec *Recorder) Event(ev *weftbase.EventData) {
	rec.lock.Lock()
	defer rec.lock.Unlock()
	event := &Event{
		Name:      ev.Metadata.Name(),
		Target:    ev.Metadata.Target(),
		Level:     ev.Metadata.Level(),
		Message:   ev.Message,
		Fields:    materialize(ev.Fields),
		Timestamp: rec.clock.Now(),
	}
	if !ev.Parent.IsZero() {
		if span, ok := rec.SpanIndex[ev.Parent]; ok {
			event.Span = span
			span.Events = append(span.Events, event)
		}
	}
	rec.Events = append(rec.Events, event)
	rec.Notes = append(rec.Notes, &Note{Type: EventNote, Event: event, Span: event.Span})
}

func (rec *Recorder) Enter(id weftbase.ID) {
	rec.lock.Lock()
	defer rec.lock.Unlock()
	rec.EnterCount++
	if span, ok := rec.SpanIndex[id]; ok {
		span.EnterCount++
		rec.Notes = append(rec.Notes, &Note{Type: SpanEnter, Span: span})
	}
}

func (rec *Recorder) Exit(id weftbase.ID) {
	rec.lock.Lock()
	defer rec.lock.Unlock()
	rec.ExitCount++
	if span, ok := rec.SpanIndex[id]; ok {
		span.ExitCount++
		rec.Notes = append(rec.Notes, &Note{Type: SpanExit, Span: span})
	}
}

func (rec *Recorder) TryClose(id weftbase.ID) bool {
	rec.lock.Lock()
	defer rec.lock.Unlock()
	rec.CloseCount++
	if span, ok := rec.SpanIndex[id]; ok {
		span.Closed = true
		span.EndTime = rec.clock.Now()
		rec.Notes = append(rec.Notes, &Note{Type: SpanDone, Span: span})
	}
	return true
}

// Timeline returns a copy of the note sequence so tests can range over
// it without holding the recorder lock.
func (rec *Recorder) Timeline() []*Note {
	rec.lock.Lock()
	defer rec.lock.Unlock()
	return list.Copy(rec.Notes)
}

// AllSpans returns a copy of the recorded span list.
func (rec *Recorder) AllSpans() []*Span {
	rec.lock.Lock()
	defer rec.lock.Unlock()
	return list.Copy(rec.Spans)
}

// AllEvents returns a copy of the recorded event list.
func (rec *Recorder) AllEvents() []*Event {
	rec.lock.Lock()
	defer rec.lock.Unlock()
	return list.Copy(rec.Events)
}
