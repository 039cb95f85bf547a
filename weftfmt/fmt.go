/*
Package weftfmt provides a weftbase.Collector that renders events as
single text lines:

	LEVEL target: message field=value field=value

Output goes through a WriterFactory so that sinks needing
synchronization (a shared buffer, a rotated file) can be constructed
lazily and shared safely across concurrent writers.
*/
package weftfmt

import (
	"io"
	"os"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/zoobzio/clockz"

	"github.com/weftlog/weft/weftat"
	"github.com/weftlog/weft/weftbase"
	"github.com/weftlog/weft/weftnum"
)

const timeFormat = "2006-01-02 15:04:05.00000000"

// WriterFactory creates the io.Writer an event is rendered to. The
// factory is queried fresh for each event; factories whose writers are
// expensive should cache internally.
type WriterFactory interface {
	Writer() io.Writer
}

// WriterFactoryFunc adapts a function to WriterFactory.
type WriterFactoryFunc func() io.Writer

func (f WriterFactoryFunc) Writer() io.Writer { return f() }

type fixedWriter struct{ w io.Writer }

func (f fixedWriter) Writer() io.Writer { return f.w }

type Opt func(*Logger)

// WithWriter renders everything to a single writer.
func WithWriter(w io.Writer) Opt {
	return func(log *Logger) {
		log.factory = fixedWriter{w: w}
	}
}

// WithFactory installs the sink factory queried per event.
func WithFactory(f WriterFactory) Opt {
	return func(log *Logger) {
		log.factory = f
	}
}

// WithClock substitutes the clock used for timestamps.
func WithClock(clock clockz.Clock) Opt {
	return func(log *Logger) {
		log.clock = clock
	}
}

// WithTimestamps prefixes each line with the event time.
func WithTimestamps(on bool) Opt {
	return func(log *Logger) {
		log.stamps = on
	}
}

// WithMinLevel rejects callsites below level in Enabled.
func WithMinLevel(level weftnum.Level) Opt {
	return func(log *Logger) {
		log.minLevel = level
	}
}

// WithSpanLines also renders span open/close lines, not just events.
func WithSpanLines(on bool) Opt {
	return func(log *Logger) {
		log.spanLines = on
	}
}

func New(opts ...Opt) *Logger {
	log := &Logger{
		factory:       fixedWriter{w: os.Stdout},
		clock:         clockz.RealClock,
		id:            "weftfmt-" + uuid.New().String(),
		errorReporter: func(error) {},
		spans:         make(map[weftbase.ID]*spanInfo),
	}
	for _, opt := range opts {
		opt(log)
	}
	return log
}

type Logger struct {
	factory       WriterFactory
	clock         clockz.Clock
	id            string
	minLevel      weftnum.Level
	stamps        bool
	spanLines     bool
	errorReporter func(error)
	nextID        uint64
	lock          sync.Mutex
	spans         map[weftbase.ID]*spanInfo
}

type spanInfo struct {
	md     *weftat.Metadata
	name   string
	start  time.Time
	fields []string
}

var _ weftbase.Collector = &Logger{}

// SetErrorReporter routes sink write failures somewhere useful. The
// collector never panics on a failed write.
func (log *Logger) SetErrorReporter(f func(error)) { log.errorReporter = f }

func (log *Logger) ID() string { return log.id }

func (log *Logger) Enabled(md *weftat.Metadata) bool {
	return md.Level() >= log.minLevel
}

func (log *Logger) ReferencesKept() bool { return false }

func (log *Logger) output(s string) {
	w := log.factory.Writer()
	if _, err := io.WriteString(w, s+"\n"); err != nil {
		log.errorReporter(err)
	}
}

func (log *Logger) line(md *weftat.Metadata, msg string, fields []weftbase.Field, extra []string) string {
	var sb strings.Builder
	if log.stamps {
		sb.WriteString(log.clock.Now().Format(timeFormat))
		sb.WriteByte(' ')
	}
	sb.WriteString(strings.ToUpper(md.Level().String()))
	sb.WriteByte(' ')
	sb.WriteString(md.Target())
	sb.WriteString(":")
	if msg != "" {
		sb.WriteByte(' ')
		sb.WriteString(msg)
	}
	v := &lineVisitor{sb: &sb}
	weftbase.VisitAll(fields, v)
	for _, e := range extra {
		sb.WriteByte(' ')
		sb.WriteString(e)
	}
	return sb.String()
}

type lineVisitor struct {
	sb *strings.Builder
}

func (v *lineVisitor) pair(k, val string) {
	v.sb.WriteByte(' ')
	v.sb.WriteString(k)
	v.sb.WriteByte('=')
	v.sb.WriteString(val)
}

func (v *lineVisitor) Int64(k string, val int64)     { v.pair(k, strconv.FormatInt(val, 10)) }
func (v *lineVisitor) Uint64(k string, val uint64)   { v.pair(k, strconv.FormatUint(val, 10)) }
func (v *lineVisitor) Float64(k string, val float64) { v.pair(k, strconv.FormatFloat(val, 'g', -1, 64)) }
func (v *lineVisitor) Bool(k string, val bool)       { v.pair(k, strconv.FormatBool(val)) }
func (v *lineVisitor) String(k string, val string)   { v.pair(k, val) }
func (v *lineVisitor) Formatted(k string, val string) { v.pair(k, val) }
func (v *lineVisitor) Error(k string, val error) {
	if val == nil {
		v.pair(k, "<nil>")
		return
	}
	v.pair(k, val.Error())
}

func (log *Logger) NewSpan(attrs *weftbase.Attributes) weftbase.ID {
	id := weftbase.ID(atomic.AddUint64(&log.nextID, 1))
	info := &spanInfo{
		md:    attrs.Metadata,
		name:  attrs.Metadata.Name(),
		start: log.clock.Now(),
	}
	log.lock.Lock()
	log.spans[id] = info
	log.lock.Unlock()
	if log.spanLines {
		extra := []string{"span=" + info.name}
		if !attrs.Parent.IsZero() {
			extra = append(extra, "parent="+strconv.FormatUint(uint64(attrs.Parent), 10))
		}
		log.output(log.line(attrs.Metadata, "span start", attrs.Fields, extra))
	}
	return id
}

func (log *Logger) Record(id weftbase.ID, fields []weftbase.Field) {
	log.lock.Lock()
	defer log.lock.Unlock()
	info, ok := log.spans[id]
	if !ok {
		return
	}
	for _, f := range fields {
		info.fields = append(info.fields, f.String())
	}
}

func (log *Logger) RecordFollowsFrom(id weftbase.ID, follows weftbase.ID) {
	log.lock.Lock()
	defer log.lock.Unlock()
	if info, ok := log.spans[id]; ok {
		info.fields = append(info.fields, "follows_from="+strconv.FormatUint(uint64(follows), 10))
	}
}

func (log *Logger) Event(ev *weftbase.EventData) {
	var extra []string
	if !ev.Parent.IsZero() {
		log.lock.Lock()
		if info, ok := log.spans[ev.Parent]; ok {
			extra = append(extra, "span="+info.name)
		}
		log.lock.Unlock()
	}
	log.output(log.line(ev.Metadata, ev.Message, ev.Fields, extra))
}

func (log *Logger) Enter(weftbase.ID) {}
func (log *Logger) Exit(weftbase.ID)  {}

func (log *Logger) TryClose(id weftbase.ID) bool {
	log.lock.Lock()
	info, ok := log.spans[id]
	delete(log.spans, id)
	log.lock.Unlock()
	if ok && log.spanLines {
		elapsed := log.clock.Now().Sub(info.start)
		extra := append([]string{"span=" + info.name, "elapsed=" + elapsed.String()}, info.fields...)
		log.output(log.line(info.md, "span done", nil, extra))
	}
	return true
}
