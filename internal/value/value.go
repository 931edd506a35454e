// Package value defines ComptimeValue, the immutable result type of
// compile-time evaluation. Values never change once produced; the
// interpreter's mutation happens in frame-local slots, and struct or array
// updates rebuild the spine copy-on-write.
package value

import (
	"encoding/gob"
	"fmt"
	"math"
	"strings"

	"github.com/lumelang/lume/internal/ast"
	"github.com/lumelang/lume/internal/typesystem"
)

type Kind string

const (
	INT_VAL     = "INT"
	FLOAT_VAL   = "FLOAT"
	BOOL_VAL    = "BOOL"
	CHAR_VAL    = "CHAR"
	STRING_VAL  = "STRING"
	UNIT_VAL    = "UNIT"
	ARRAY_VAL   = "ARRAY"
	STRUCT_VAL  = "STRUCT"
	ENUM_VAL    = "ENUM"
	TYPE_VAL    = "TYPE"
	CODE_VAL    = "CODE"
	CLOSURE_VAL = "CLOSURE"
)

func init() {
	// Register concrete values for gob; the on-disk cache stores entries
	// through interface fields.
	gob.Register(&Int{})
	gob.Register(&Float{})
	gob.Register(&Bool{})
	gob.Register(&Char{})
	gob.Register(&Str{})
	gob.Register(&Unit{})
	gob.Register(&Array{})
	gob.Register(&Struct{})
	gob.Register(&Enum{})
	gob.Register(&TypeHandle{})
	gob.Register(&Code{})
	gob.Register(&Closure{})
}

type Value interface {
	Kind() Kind
	Inspect() string
}

// Int is a fixed-width integer. Bits holds the raw two's-complement
// representation masked to Width; arithmetic wraps exactly like the
// corresponding runtime type.
type Int struct {
	Width  uint8
	Signed bool
	Bits   uint64
}

// NewInt masks v to the width of t.
func NewInt(t typesystem.Type, v uint64) *Int {
	w := t.Width()
	return &Int{Width: w, Signed: t.IsSigned(), Bits: v & Mask(w)}
}

// Mask returns the bit mask for a width.
func Mask(width uint8) uint64 {
	if width >= 64 {
		return ^uint64(0)
	}
	return (uint64(1) << width) - 1
}

// Int64 sign-extends the raw bits.
func (v *Int) Int64() int64 {
	shift := 64 - uint(v.Width)
	return int64(v.Bits<<shift) >> shift
}

func (v *Int) Kind() Kind { return INT_VAL }

func (v *Int) Inspect() string {
	if v.Signed {
		return fmt.Sprintf("%d", v.Int64())
	}
	return fmt.Sprintf("%d", v.Bits)
}

// Float is an f32 or f64. f32 values are stored rounded through float32 so
// comptime arithmetic matches runtime single precision.
type Float struct {
	Width uint8
	Val   float64
}

func NewFloat(width uint8, v float64) *Float {
	if width == 32 {
		v = float64(float32(v))
	}
	return &Float{Width: width, Val: v}
}

func (v *Float) Kind() Kind      { return FLOAT_VAL }
func (v *Float) Inspect() string { return fmt.Sprintf("%g", v.Val) }

type Bool struct {
	Val bool
}

func (v *Bool) Kind() Kind      { return BOOL_VAL }
func (v *Bool) Inspect() string { return fmt.Sprintf("%t", v.Val) }

type Char struct {
	Val rune
}

func (v *Char) Kind() Kind      { return CHAR_VAL }
func (v *Char) Inspect() string { return fmt.Sprintf("%q", v.Val) }

type Str struct {
	Val string
}

func (v *Str) Kind() Kind      { return STRING_VAL }
func (v *Str) Inspect() string { return fmt.Sprintf("%q", v.Val) }

type Unit struct{}

func (v *Unit) Kind() Kind      { return UNIT_VAL }
func (v *Unit) Inspect() string { return "()" }

type Array struct {
	Elems []Value
}

func (v *Array) Kind() Kind { return ARRAY_VAL }

func (v *Array) Inspect() string {
	parts := make([]string, len(v.Elems))
	for i, e := range v.Elems {
		parts[i] = e.Inspect()
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

// WithElem returns a copy with one element replaced. The receiver is
// never mutated.
func (v *Array) WithElem(idx int, e Value) *Array {
	elems := make([]Value, len(v.Elems))
	copy(elems, v.Elems)
	elems[idx] = e
	return &Array{Elems: elems}
}

// Struct is an immutable struct instance. Fields follow declared order;
// names resolve through the type table.
type Struct struct {
	Type   typesystem.TypeID
	Fields []Value
}

func (v *Struct) Kind() Kind { return STRUCT_VAL }

func (v *Struct) Inspect() string {
	parts := make([]string, len(v.Fields))
	for i, f := range v.Fields {
		parts[i] = f.Inspect()
	}
	return fmt.Sprintf("struct#%d { %s }", v.Type, strings.Join(parts, ", "))
}

// WithField returns a copy with one field replaced.
func (v *Struct) WithField(idx int, f Value) *Struct {
	fields := make([]Value, len(v.Fields))
	copy(fields, v.Fields)
	fields[idx] = f
	return &Struct{Type: v.Type, Fields: fields}
}

// Enum is an immutable enum instance: variant tag plus payload values.
type Enum struct {
	Type    typesystem.TypeID
	Variant int
	Payload []Value
}

func (v *Enum) Kind() Kind { return ENUM_VAL }

func (v *Enum) Inspect() string {
	if len(v.Payload) == 0 {
		return fmt.Sprintf("enum#%d::%d", v.Type, v.Variant)
	}
	parts := make([]string, len(v.Payload))
	for i, p := range v.Payload {
		parts[i] = p.Inspect()
	}
	return fmt.Sprintf("enum#%d::%d(%s)", v.Type, v.Variant, strings.Join(parts, ", "))
}

// TypeHandle is a first-class type identity, the currency of reflection.
type TypeHandle struct {
	ID typesystem.TypeID
}

func (v *TypeHandle) Kind() Kind      { return TYPE_VAL }
func (v *TypeHandle) Inspect() string { return fmt.Sprintf("type#%d", v.ID) }

// Code is a generated-code fragment: raw source text, pre-built items, or
// both. The insertion pipeline normalizes either form to items.
type Code struct {
	Text  string
	Items []ast.Item
}

func (v *Code) Kind() Kind { return CODE_VAL }

func (v *Code) Inspect() string {
	if len(v.Items) > 0 {
		return fmt.Sprintf("code(%d items)", len(v.Items))
	}
	return fmt.Sprintf("code(%q)", v.Text)
}

// Closure pairs a function identity with its captured environment.
type Closure struct {
	Func     typesystem.FuncID
	Captured []Value
}

func (v *Closure) Kind() Kind      { return CLOSURE_VAL }
func (v *Closure) Inspect() string { return fmt.Sprintf("closure(fn#%d)", v.Func) }

// FloatBits returns the canonical bit pattern used for hashing floats.
// Negative zero folds to positive zero so structurally equal values hash
// equally.
func FloatBits(f float64) uint64 {
	if f == 0 {
		f = 0
	}
	return math.Float64bits(f)
}
