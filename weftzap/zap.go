// Package weftzap forwards events and span lifecycle to a zap logger
// so applications already invested in zap can consume trace output
// without a second sink. Note that the levels don't match exactly:
// Trace becomes Debug.
package weftzap

import (
	"strconv"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/weftlog/weft/weftat"
	"github.com/weftlog/weft/weftbase"
	"github.com/weftlog/weft/weftnum"
)

type Collector struct {
	zapLogger *zap.Logger
	id        string
	spanLines bool
	nextID    weftbase.ID
	lock      sync.Mutex
	spans     map[weftbase.ID]spanInfo
}

type spanInfo struct {
	name   string
	parent weftbase.ID
}

var _ weftbase.Collector = &Collector{}

type Opt func(*Collector)

// WithSpanLines controls whether span start/done are logged alongside
// events. On by default.
func WithSpanLines(on bool) Opt {
	return func(c *Collector) {
		c.spanLines = on
	}
}

// New wraps a zap logger so that it can function as a Collector.
func New(zapLogger *zap.Logger, opts ...Opt) *Collector {
	c := &Collector{
		zapLogger: zapLogger,
		id:        "weftzap-" + uuid.New().String(),
		spanLines: true,
		spans:     make(map[weftbase.ID]spanInfo),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Collector) ID() string { return c.id }

func zapLevel(level weftnum.Level) zapcore.Level {
	switch {
	case level <= weftnum.DebugLevel:
		return zapcore.DebugLevel
	case level <= weftnum.InfoLevel:
		return zapcore.InfoLevel
	case level <= weftnum.WarnLevel:
		return zapcore.WarnLevel
	default:
		return zapcore.ErrorLevel
	}
}

func (c *Collector) Enabled(md *weftat.Metadata) bool {
	return c.zapLogger.Core().Enabled(zapLevel(md.Level()))
}

func (c *Collector) ReferencesKept() bool { return false }

// zapVisitor converts visited field values into zap fields.
type zapVisitor struct {
	fields []zap.Field
}

func (v *zapVisitor) Int64(k string, val int64)      { v.fields = append(v.fields, zap.Int64(k, val)) }
func (v *zapVisitor) Uint64(k string, val uint64)    { v.fields = append(v.fields, zap.Uint64(k, val)) }
func (v *zapVisitor) Float64(k string, val float64)  { v.fields = append(v.fields, zap.Float64(k, val)) }
func (v *zapVisitor) Bool(k string, val bool)        { v.fields = append(v.fields, zap.Bool(k, val)) }
func (v *zapVisitor) String(k string, val string)    { v.fields = append(v.fields, zap.String(k, val)) }
func (v *zapVisitor) Error(k string, val error)      { v.fields = append(v.fields, zap.NamedError(k, val)) }
func (v *zapVisitor) Formatted(k string, val string) { v.fields = append(v.fields, zap.String(k, val)) }

func zapFields(fields []weftbase.Field, extra ...zap.Field) []zap.Field {
	v := &zapVisitor{fields: make([]zap.Field, 0, len(fields)+len(extra))}
	v.fields = append(v.fields, extra...)
	weftbase.VisitAll(fields, v)
	return v.fields
}

func (c *Collector) write(md *weftat.Metadata, msg string, fields []zap.Field) {
	if ce := c.zapLogger.Check(zapLevel(md.Level()), msg); ce != nil {
		ce.Write(fields...)
	}
}

func (c *Collector) NewSpan(attrs *weftbase.Attributes) weftbase.ID {
	c.lock.Lock()
	c.nextID++
	id := c.nextID
	c.spans[id] = spanInfo{name: attrs.Metadata.Name(), parent: attrs.Parent}
	c.lock.Unlock()
	if c.spanLines {
		extra := []zap.Field{
			zap.String("span", attrs.Metadata.Name()),
			zap.String("span_id", strconv.FormatUint(uint64(id), 10)),
		}
		if !attrs.Parent.IsZero() {
			extra = append(extra, zap.String("parent_id", strconv.FormatUint(uint64(attrs.Parent), 10)))
		}
		c.write(attrs.Metadata, "span start", zapFields(attrs.Fields, extra...))
	}
	return id
}

func (c *Collector) Record(id weftbase.ID, fields []weftbase.Field) {
	c.lock.Lock()
	info, ok := c.spans[id]
	c.lock.Unlock()
	if !ok {
		return
	}
	c.zapLogger.Debug("span record", zapFields(fields, zap.String("span", info.name))...)
}

func (c *Collector) RecordFollowsFrom(id weftbase.ID, follows weftbase.ID) {
	c.lock.Lock()
	info, ok := c.spans[id]
	c.lock.Unlock()
	if !ok {
		return
	}
	c.zapLogger.Debug("span follows from",
		zap.String("span", info.name),
		zap.String("follows_id", strconv.FormatUint(uint64(follows), 10)))
}

func (c *Collector) Event(ev *weftbase.EventData) {
	var extra []zap.Field
	extra = append(extra, zap.String("target", ev.Metadata.Target()))
	if !ev.Parent.IsZero() {
		c.lock.Lock()
		if info, ok := c.spans[ev.Parent]; ok {
			extra = append(extra, zap.String("span", info.name))
		}
		c.lock.Unlock()
	}
	c.write(ev.Metadata, ev.Message, zapFields(ev.Fields, extra...))
}

func (c *Collector) Enter(weftbase.ID) {}
func (c *Collector) Exit(weftbase.ID)  {}

func (c *Collector) TryClose(id weftbase.ID) bool {
	c.lock.Lock()
	info, ok := c.spans[id]
	delete(c.spans, id)
	c.lock.Unlock()
	if ok && c.spanLines {
		c.zapLogger.Debug("span done", zap.String("span", info.name))
	}
	_ = c.zapLogger.Sync() // what are you supposed to do with an error anyway?
	return true
}
