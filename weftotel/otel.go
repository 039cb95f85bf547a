/*
Package weftotel provides a gateway into OpenTelemetry using OTEL's
top-level APIs. Spans become OTEL spans, events become OTEL span
events, and field values become OTEL attributes.

OTEL supports fewer data types than the field model. Most values
convert cleanly; unsigned ints get formatted as strings because OTEL
has no unsigned attribute type. Events without a parent span are a
special case: OTEL events can only hang off a span, so parentless
events are wrapped in an ephemeral span that ends immediately.
*/
package weftotel

import (
	"context"
	"strconv"
	"sync"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	oteltrace "go.opentelemetry.io/otel/trace"

	"github.com/weftlog/weft/weftat"
	"github.com/weftlog/weft/weftbase"
	"github.com/weftlog/weft/weftnum"
)

var logMessageKey = attribute.Key("log.message")
var targetKey = attribute.Key("log.target")
var levelKey = attribute.Key("log.level")

type Collector struct {
	tracer oteltrace.Tracer
	ctx    context.Context
	id     string
	nextID weftbase.ID
	lock   sync.Mutex
	spans  map[weftbase.ID]*spanInfo
}

type spanInfo struct {
	span oteltrace.Span
	ctx  context.Context
}

var _ weftbase.Collector = &Collector{}

// New wraps an OTEL tracer provider so that it can function as a
// Collector. The context carries any ambient OTEL span to parent
// root spans under.
func New(ctx context.Context, provider oteltrace.TracerProvider) *Collector {
	return &Collector{
		tracer: provider.Tracer("github.com/weftlog/weft/weftotel"),
		ctx:    ctx,
		id:     "weftotel-" + uuid.New().String(),
		spans:  make(map[weftbase.ID]*spanInfo),
	}
}

func (c *Collector) ID() string { return c.id }

// ReferencesKept is true because attribute conversion happens when
// the batch exporter flushes, after the caller has moved on.
func (c *Collector) ReferencesKept() bool { return true }

func (c *Collector) Enabled(*weftat.Metadata) bool { return true }

// attrVisitor converts visited field values into OTEL attributes.
type attrVisitor struct {
	attrs []attribute.KeyValue
}

func (v *attrVisitor) Int64(k string, val int64) {
	v.attrs = append(v.attrs, attribute.Int64(k, val))
}

func (v *attrVisitor) Uint64(k string, val uint64) {
	v.attrs = append(v.attrs, attribute.String(k, strconv.FormatUint(val, 10)))
}

func (v *attrVisitor) Float64(k string, val float64) {
	v.attrs = append(v.attrs, attribute.Float64(k, val))
}

func (v *attrVisitor) Bool(k string, val bool) {
	v.attrs = append(v.attrs, attribute.Bool(k, val))
}

func (v *attrVisitor) String(k string, val string) {
	v.attrs = append(v.attrs, attribute.String(k, val))
}

func (v *attrVisitor) Error(k string, val error) {
	if val == nil {
		v.attrs = append(v.attrs, attribute.String(k, "<nil>"))
		return
	}
	v.attrs = append(v.attrs, attribute.String(k, val.Error()))
}

func (v *attrVisitor) Formatted(k string, val string) {
	v.attrs = append(v.attrs, attribute.String(k, val))
}

func attrs(fields []weftbase.Field, extra ...attribute.KeyValue) []attribute.KeyValue {
	v := &attrVisitor{attrs: make([]attribute.KeyValue, 0, len(fields)+len(extra))}
	v.attrs = append(v.attrs, extra...)
	weftbase.VisitAll(fields, v)
	return v.attrs
}

func (c *Collector) lookup(id weftbase.ID) *spanInfo {
	c.lock.Lock()
	defer c.lock.Unlock()
	return c.spans[id]
}

func (c *Collector) NewSpan(spanAttrs *weftbase.Attributes) weftbase.ID {
	parentCtx := c.ctx
	if !spanAttrs.IsRoot && !spanAttrs.Parent.IsZero() {
		if parent := c.lookup(spanAttrs.Parent); parent != nil {
			parentCtx = parent.ctx
		}
	}
	opts := []oteltrace.SpanStartOption{
		oteltrace.WithAttributes(attrs(spanAttrs.Fields,
			targetKey.String(spanAttrs.Metadata.Target()),
			levelKey.String(spanAttrs.Metadata.Level().String()),
		)...),
	}
	if spanAttrs.IsRoot {
		opts = append(opts, oteltrace.WithNewRoot())
	}
	ctx, span := c.tracer.Start(parentCtx, spanAttrs.Metadata.Name(), opts...)
	c.lock.Lock()
	defer c.lock.Unlock()
	c.nextID++
	c.spans[c.nextID] = &spanInfo{span: span, ctx: ctx}
	return c.nextID
}

func (c *Collector) Record(id weftbase.ID, fields []weftbase.Field) {
	info := c.lookup(id)
	if info == nil {
		return
	}
	info.span.SetAttributes(attrs(fields)...)
}

// RecordFollowsFrom has no direct OTEL equivalent after span creation
// (links are start-time only), so the relationship is recorded as an
// attribute naming the predecessor.
func (c *Collector) RecordFollowsFrom(id weftbase.ID, follows weftbase.ID) {
	info := c.lookup(id)
	if info == nil {
		return
	}
	var spanID string
	if f := c.lookup(follows); f != nil {
		spanID = f.span.SpanContext().SpanID().String()
	} else {
		spanID = strconv.FormatUint(uint64(follows), 10)
	}
	info.span.SetAttributes(attribute.String("follows_from", spanID))
}

func (c *Collector) Event(ev *weftbase.EventData) {
	kvs := attrs(ev.Fields,
		logMessageKey.String(ev.Message),
		targetKey.String(ev.Metadata.Target()),
	)
	if !ev.Parent.IsZero() {
		if info := c.lookup(ev.Parent); info != nil {
			info.span.AddEvent(ev.Metadata.Level().String(), oteltrace.WithAttributes(kvs...))
			if ev.Metadata.Level() >= weftnum.ErrorLevel {
				info.span.SetStatus(codes.Error, ev.Message)
			}
			return
		}
	}
	_, tmpSpan := c.tracer.Start(c.ctx, ev.Metadata.Name())
	tmpSpan.AddEvent(ev.Metadata.Level().String(), oteltrace.WithAttributes(kvs...))
	tmpSpan.End()
}

func (c *Collector) Enter(weftbase.ID) {}
func (c *Collector) Exit(weftbase.ID)  {}

func (c *Collector) TryClose(id weftbase.ID) bool {
	c.lock.Lock()
	info, ok := c.spans[id]
	delete(c.spans, id)
	c.lock.Unlock()
	if ok {
		info.span.End()
	}
	return true
}
