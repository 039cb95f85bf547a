// Package weftat describes instrumentation points: the immutable
// metadata attached to each callsite and the process-wide registry of
// callsites with their cached interest decisions.
package weftat

import (
	"fmt"

	"github.com/weftlog/weft/weftnum"
)

// MaxFields is the largest number of field names a single callsite may
// declare.
const MaxFields = 32

type Kind int8

const (
	SpanKind  Kind = iota // span
	EventKind             // event
)

func (k Kind) String() string {
	if k == SpanKind {
		return "span"
	}
	return "event"
}

// Metadata is the static, process-lifetime description of one
// instrumentation point. It is read-only after construction; one
// Metadata exists per callsite.
type Metadata struct {
	name   string
	target string
	level  weftnum.Level
	file   string
	line   int
	fields []string
	kind   Kind
}

// NewMetadata builds the Metadata for a callsite. It panics if more
// than MaxFields field names are declared: field sets are fixed in
// source code, so an oversized set is a programmer error, not a
// runtime condition.
func NewMetadata(kind Kind, name string, target string, level weftnum.Level, fieldNames ...string) *Metadata {
	if len(fieldNames) > MaxFields {
		panic(fmt.Sprintf("weftat: callsite %s declares %d fields, limit is %d", name, len(fieldNames), MaxFields))
	}
	fields := make([]string, len(fieldNames))
	copy(fields, fieldNames)
	return &Metadata{
		name:   name,
		target: target,
		level:  level,
		fields: fields,
		kind:   kind,
	}
}

// WithSource records the file and line of the callsite. It must be
// called before the Metadata is registered.
func (md *Metadata) WithSource(file string, line int) *Metadata {
	md.file = file
	md.line = line
	return md
}

func (md *Metadata) Name() string         { return md.name }
func (md *Metadata) Target() string       { return md.target }
func (md *Metadata) Level() weftnum.Level { return md.level }
func (md *Metadata) Kind() Kind           { return md.kind }

// File returns the source file of the callsite, or "" if unknown.
func (md *Metadata) File() string { return md.file }

// Line returns the source line of the callsite, or 0 if unknown.
func (md *Metadata) Line() int { return md.line }

// FieldNames returns the declared field names in declaration order.
// Callers must not modify the returned slice.
func (md *Metadata) FieldNames() []string { return md.fields }

// HasField reports whether name was declared at metadata construction.
func (md *Metadata) HasField(name string) bool {
	for _, f := range md.fields {
		if f == name {
			return true
		}
	}
	return false
}

func (md *Metadata) String() string {
	return fmt.Sprintf("%s %s/%s[%s]", md.kind, md.target, md.name, md.level)
}
