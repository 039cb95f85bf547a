package weftbase

import (
	"fmt"
)

// FieldKind selects which payload slot of a Field is live.
type FieldKind int8

const (
	Int64Kind FieldKind = iota
	Uint64Kind
	Float64Kind
	BoolKind
	StringKind
	ErrorKind
	DeferredKind // debug/display formatted; formatting deferred until visited
)

// Field is one recorded key/value. Values are write-only from the
// engine's perspective: a collector consumes them through a
// FieldVisitor and the engine never reads them back.
//
// Debug and Display fields carry a closure instead of a rendered
// string so that formatting cost is paid only if a collector actually
// visits the field.
type Field struct {
	Key    string
	Kind   FieldKind
	Int    int64
	Uint   uint64
	Float  float64
	IsTrue bool
	Str    string
	Err    error

	// Any holds the raw value behind a Debug field. The engine
	// replaces it with a deep copy before recording when the
	// consuming collector keeps references.
	Any      interface{}
	Deferred func() string
}

// FieldVisitor receives field values, one method per primitive shape.
type FieldVisitor interface {
	Int64(k string, v int64)
	Uint64(k string, v uint64)
	Float64(k string, v float64)
	Bool(k string, v bool)
	String(k string, v string)
	Error(k string, v error)
	// Formatted receives debug- and display-shaped values, already
	// rendered.
	Formatted(k string, v string)
}

// Visit delivers the field's value to v through the matching method.
func (f Field) Visit(v FieldVisitor) {
	switch f.Kind {
	case Int64Kind:
		v.Int64(f.Key, f.Int)
	case Uint64Kind:
		v.Uint64(f.Key, f.Uint)
	case Float64Kind:
		v.Float64(f.Key, f.Float)
	case BoolKind:
		v.Bool(f.Key, f.IsTrue)
	case StringKind:
		v.String(f.Key, f.Str)
	case ErrorKind:
		v.Error(f.Key, f.Err)
	case DeferredKind:
		if f.Deferred != nil {
			v.Formatted(f.Key, f.Deferred())
		} else {
			v.Formatted(f.Key, fmt.Sprintf("%+v", f.Any))
		}
	}
}

// VisitAll delivers fields to v in order.
func VisitAll(fields []Field, v FieldVisitor) {
	for _, f := range fields {
		f.Visit(v)
	}
}

func Int64(k string, v int64) Field     { return Field{Key: k, Kind: Int64Kind, Int: v} }
func Int(k string, v int) Field         { return Int64(k, int64(v)) }
func Uint64(k string, v uint64) Field   { return Field{Key: k, Kind: Uint64Kind, Uint: v} }
func Float64(k string, v float64) Field { return Field{Key: k, Kind: Float64Kind, Float: v} }
func Bool(k string, v bool) Field       { return Field{Key: k, Kind: BoolKind, IsTrue: v} }
func String(k string, v string) Field   { return Field{Key: k, Kind: StringKind, Str: v} }
func Error(k string, v error) Field     { return Field{Key: k, Kind: ErrorKind, Err: v} }

// Debug records v through its %+v rendering. The rendering happens
// when a collector visits the field, not before.
func Debug(k string, v interface{}) Field {
	return Field{Key: k, Kind: DeferredKind, Any: v}
}

// Display records v through its Stringer rendering, deferred like
// Debug.
func Display(k string, v fmt.Stringer) Field {
	return Field{Key: k, Kind: DeferredKind, Deferred: v.String}
}

// DeferredString records a value whose rendering is supplied by f,
// invoked at most once per visiting collector.
func DeferredString(k string, f func() string) Field {
	return Field{Key: k, Kind: DeferredKind, Deferred: f}
}

// String renders the field eagerly. Intended for error messages and
// tests, not for the hot path.
func (f Field) String() string {
	switch f.Kind {
	case Int64Kind:
		return fmt.Sprintf("%s=%d", f.Key, f.Int)
	case Uint64Kind:
		return fmt.Sprintf("%s=%d", f.Key, f.Uint)
	case Float64Kind:
		return fmt.Sprintf("%s=%v", f.Key, f.Float)
	case BoolKind:
		return fmt.Sprintf("%s=%t", f.Key, f.IsTrue)
	case StringKind:
		return fmt.Sprintf("%s=%s", f.Key, f.Str)
	case ErrorKind:
		return fmt.Sprintf("%s=%v", f.Key, f.Err)
	case DeferredKind:
		if f.Deferred != nil {
			return fmt.Sprintf("%s=%s", f.Key, f.Deferred())
		}
		return fmt.Sprintf("%s=%+v", f.Key, f.Any)
	}
	return f.Key
}
