package typesystem

import (
	"fmt"
	"strings"
)

// TypeID is an interned type identity assigned by the type checker.
type TypeID uint32

// FuncID is an interned function identity assigned by the resolver.
type FuncID uint32

// Kind discriminates the type representation.
type Kind uint8

const (
	KindI8 Kind = iota
	KindI16
	KindI32
	KindI64
	KindU8
	KindU16
	KindU32
	KindU64
	KindF32
	KindF64
	KindBool
	KindChar
	KindStr
	KindUnit
	KindArray
	KindStruct
	KindEnum
	KindType // first-class type handle, only legal in comptime positions
	KindCode // generated-code fragment, only legal in comptime positions
	KindFunc
)

// Type is the checker's view of a value type. Primitive kinds are
// self-contained; Array carries Elem/Len, Struct/Enum carry the interned ID.
type Type struct {
	Kind Kind
	Elem *Type  // Array element
	Len  int    // Array length
	ID   TypeID // Struct, Enum
}

var (
	I8   = Type{Kind: KindI8}
	I16  = Type{Kind: KindI16}
	I32  = Type{Kind: KindI32}
	I64  = Type{Kind: KindI64}
	U8   = Type{Kind: KindU8}
	U16  = Type{Kind: KindU16}
	U32  = Type{Kind: KindU32}
	U64  = Type{Kind: KindU64}
	F32  = Type{Kind: KindF32}
	F64  = Type{Kind: KindF64}
	Bool = Type{Kind: KindBool}
	Char = Type{Kind: KindChar}
	Str  = Type{Kind: KindStr}
	Unit = Type{Kind: KindUnit}
)

func StructType(id TypeID) Type { return Type{Kind: KindStruct, ID: id} }
func EnumType(id TypeID) Type   { return Type{Kind: KindEnum, ID: id} }

func ArrayType(elem Type, n int) Type {
	e := elem
	return Type{Kind: KindArray, Elem: &e, Len: n}
}

func (t Type) IsInteger() bool {
	return t.Kind <= KindU64
}

func (t Type) IsSigned() bool {
	return t.Kind <= KindI64
}

func (t Type) IsFloat() bool {
	return t.Kind == KindF32 || t.Kind == KindF64
}

// Width returns the bit width of a numeric type.
func (t Type) Width() uint8 {
	switch t.Kind {
	case KindI8, KindU8:
		return 8
	case KindI16, KindU16:
		return 16
	case KindI32, KindU32, KindF32:
		return 32
	case KindI64, KindU64, KindF64:
		return 64
	}
	return 0
}

func (t Type) String() string {
	switch t.Kind {
	case KindI8:
		return "i8"
	case KindI16:
		return "i16"
	case KindI32:
		return "i32"
	case KindI64:
		return "i64"
	case KindU8:
		return "u8"
	case KindU16:
		return "u16"
	case KindU32:
		return "u32"
	case KindU64:
		return "u64"
	case KindF32:
		return "f32"
	case KindF64:
		return "f64"
	case KindBool:
		return "bool"
	case KindChar:
		return "char"
	case KindStr:
		return "str"
	case KindUnit:
		return "()"
	case KindArray:
		return fmt.Sprintf("[%s; %d]", t.Elem.String(), t.Len)
	case KindStruct:
		return fmt.Sprintf("struct#%d", t.ID)
	case KindEnum:
		return fmt.Sprintf("enum#%d", t.ID)
	case KindType:
		return "type"
	case KindCode:
		return "code"
	case KindFunc:
		return "fn"
	}
	return "<invalid>"
}

// Display renders the type with user-facing names resolved via the table.
func (t Type) Display(tbl *Table) string {
	switch t.Kind {
	case KindStruct, KindEnum:
		if name, ok := tbl.TypeName(t.ID); ok {
			return name
		}
		return t.String()
	case KindArray:
		return fmt.Sprintf("[%s; %d]", t.Elem.Display(tbl), t.Len)
	default:
		return t.String()
	}
}

// DisplayList renders a parameter list, e.g. "i32, str".
func DisplayList(tbl *Table, types []Type) string {
	parts := make([]string, len(types))
	for i, t := range types {
		parts[i] = t.Display(tbl)
	}
	return strings.Join(parts, ", ")
}
