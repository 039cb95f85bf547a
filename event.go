package weft

import (
	"github.com/weftlog/weft/internal/gstack"
	"github.com/weftlog/weft/weftat"
	"github.com/weftlog/weft/weftbase"
)

// Event records an instantaneous event parented to the calling
// goroutine's current span. When no collector is interested in the
// callsite, nothing is constructed: field formatting closures are
// never invoked.
func Event(cs *weftat.Callsite, msg string, fields ...weftbase.Field) {
	emitEvent(cs, 0, false, msg, fields)
}

// EventWithParent records an event under an explicit parent span.
func EventWithParent(parent weftbase.ID, cs *weftat.Callsite, msg string, fields ...weftbase.Field) {
	emitEvent(cs, parent, false, msg, fields)
}

// RootEvent records an event with no parent span.
func RootEvent(cs *weftat.Callsite, msg string, fields ...weftbase.Field) {
	emitEvent(cs, 0, true, msg, fields)
}

func emitEvent(cs *weftat.Callsite, parent weftbase.ID, isRoot bool, msg string, fields []weftbase.Field) {
	c, ok := enabledCollector(cs)
	if !ok {
		return
	}
	md := cs.Metadata()
	if parent.IsZero() && !isRoot {
		if st := gstack.Peek(); st != nil {
			parent, _ = st.Top()
		}
	}
	c.Event(&weftbase.EventData{
		Metadata: md,
		Parent:   parent,
		IsRoot:   isRoot,
		Message:  msg,
		Fields:   prepareFields(c, md, fields),
	})
}
