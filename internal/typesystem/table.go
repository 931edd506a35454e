package typesystem

import (
	"fmt"
	"sort"
)

// Field is one declared struct field.
type Field struct {
	Name string
	Type Type
}

// StructDef is the layout of a user struct as recorded by the type checker.
type StructDef struct {
	ID     TypeID
	Name   string
	Fields []Field
}

// Variant is one enum variant with its payload types, in declared order.
type Variant struct {
	Name    string
	Payload []Type
}

// EnumDef is the layout of a user enum.
type EnumDef struct {
	ID       TypeID
	Name     string
	Variants []Variant
}

// Method is a method signature attached to a type, as the checker sees it.
type Method struct {
	Name   string
	Params []Type
	Return Type
}

// Table is the read-only type table the checker hands the engine. The
// driver owns the single mutable extension point: Commit-time additions
// between insertion rounds go through the Add* methods while no evaluation
// is in flight; everything else only reads.
type Table struct {
	structs map[TypeID]*StructDef
	enums   map[TypeID]*EnumDef
	methods map[TypeID][]Method
	traits  map[TypeID]bool
	generic map[TypeID]bool
	nextID  TypeID
}

func NewTable() *Table {
	return &Table{
		structs: make(map[TypeID]*StructDef),
		enums:   make(map[TypeID]*EnumDef),
		methods: make(map[TypeID][]Method),
		traits:  make(map[TypeID]bool),
		generic: make(map[TypeID]bool),
		nextID:  16, // config.FirstUserTypeID; engine-reserved IDs sit below
	}
}

// AllocID hands out the next free type identity.
func (t *Table) AllocID() TypeID {
	id := t.nextID
	t.nextID++
	return id
}

func (t *Table) AddStruct(def *StructDef) {
	t.structs[def.ID] = def
	if def.ID >= t.nextID {
		t.nextID = def.ID + 1
	}
}

func (t *Table) AddEnum(def *EnumDef) {
	t.enums[def.ID] = def
	if def.ID >= t.nextID {
		t.nextID = def.ID + 1
	}
}

func (t *Table) AddMethod(id TypeID, m Method) {
	t.methods[id] = append(t.methods[id], m)
}

// MarkTrait flags a type identity as a trait object type.
func (t *Table) MarkTrait(id TypeID) { t.traits[id] = true }

// MarkGeneric flags a type identity as an uninstantiated generic.
func (t *Table) MarkGeneric(id TypeID) { t.generic[id] = true }

func (t *Table) Struct(id TypeID) (*StructDef, bool) {
	def, ok := t.structs[id]
	return def, ok
}

func (t *Table) Enum(id TypeID) (*EnumDef, bool) {
	def, ok := t.enums[id]
	return def, ok
}

func (t *Table) Methods(id TypeID) []Method {
	return t.methods[id]
}

func (t *Table) IsTrait(id TypeID) bool   { return t.traits[id] }
func (t *Table) IsGeneric(id TypeID) bool { return t.generic[id] }

// Known reports whether the identity resolves to any definition.
func (t *Table) Known(id TypeID) bool {
	if _, ok := t.structs[id]; ok {
		return true
	}
	_, ok := t.enums[id]
	return ok
}

func (t *Table) TypeName(id TypeID) (string, bool) {
	if def, ok := t.structs[id]; ok {
		return def.Name, true
	}
	if def, ok := t.enums[id]; ok {
		return def.Name, true
	}
	return "", false
}

// SizeOf computes the byte size of a type under the engine's layout rules:
// primitives at their natural width, str and fn as pointers, structs with
// field alignment padding, enums as an 8-byte discriminant plus the largest
// payload rounded up to 8.
func (t *Table) SizeOf(ty Type) (int, error) {
	switch ty.Kind {
	case KindI8, KindU8, KindBool:
		return 1, nil
	case KindI16, KindU16:
		return 2, nil
	case KindI32, KindU32, KindF32, KindChar:
		return 4, nil
	case KindI64, KindU64, KindF64, KindStr, KindFunc:
		return 8, nil
	case KindUnit:
		return 0, nil
	case KindArray:
		elem, err := t.SizeOf(*ty.Elem)
		if err != nil {
			return 0, err
		}
		return elem * ty.Len, nil
	case KindStruct:
		def, ok := t.structs[ty.ID]
		if !ok {
			return 0, fmt.Errorf("unknown struct type #%d", ty.ID)
		}
		size := 0
		maxAlign := 1
		for _, f := range def.Fields {
			fs, err := t.SizeOf(f.Type)
			if err != nil {
				return 0, err
			}
			fa, err := t.AlignOf(f.Type)
			if err != nil {
				return 0, err
			}
			size = align(size, fa) + fs
			if fa > maxAlign {
				maxAlign = fa
			}
		}
		return align(size, maxAlign), nil
	case KindEnum:
		def, ok := t.enums[ty.ID]
		if !ok {
			return 0, fmt.Errorf("unknown enum type #%d", ty.ID)
		}
		payload := 0
		for _, v := range def.Variants {
			sum := 0
			for _, p := range v.Payload {
				ps, err := t.SizeOf(p)
				if err != nil {
					return 0, err
				}
				sum += ps
			}
			if sum > payload {
				payload = sum
			}
		}
		return 8 + align(payload, 8), nil
	}
	return 0, fmt.Errorf("type %s has no size", ty.String())
}

// AlignOf computes the byte alignment of a type.
func (t *Table) AlignOf(ty Type) (int, error) {
	switch ty.Kind {
	case KindI8, KindU8, KindBool:
		return 1, nil
	case KindI16, KindU16:
		return 2, nil
	case KindI32, KindU32, KindF32, KindChar:
		return 4, nil
	case KindI64, KindU64, KindF64, KindStr, KindFunc, KindEnum:
		return 8, nil
	case KindUnit:
		return 1, nil
	case KindArray:
		return t.AlignOf(*ty.Elem)
	case KindStruct:
		def, ok := t.structs[ty.ID]
		if !ok {
			return 0, fmt.Errorf("unknown struct type #%d", ty.ID)
		}
		maxAlign := 1
		for _, f := range def.Fields {
			fa, err := t.AlignOf(f.Type)
			if err != nil {
				return 0, err
			}
			if fa > maxAlign {
				maxAlign = fa
			}
		}
		return maxAlign, nil
	}
	return 0, fmt.Errorf("type %s has no alignment", ty.String())
}

// AllStructs returns every struct definition sorted by ID. Used by the
// bundle codec and the reflection provider's deterministic walks.
func (t *Table) AllStructs() []*StructDef {
	out := make([]*StructDef, 0, len(t.structs))
	for _, def := range t.structs {
		out = append(out, def)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// AllEnums returns every enum definition sorted by ID.
func (t *Table) AllEnums() []*EnumDef {
	out := make([]*EnumDef, 0, len(t.enums))
	for _, def := range t.enums {
		out = append(out, def)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// MethodTable returns a copy of the method map. Bundle codec only.
func (t *Table) MethodTable() map[TypeID][]Method {
	out := make(map[TypeID][]Method, len(t.methods))
	for id, ms := range t.methods {
		out[id] = append([]Method(nil), ms...)
	}
	return out
}

// FlaggedTraits returns the trait-flagged identities sorted by ID.
func (t *Table) FlaggedTraits() []TypeID {
	return sortedIDs(t.traits)
}

// FlaggedGenerics returns the generic-flagged identities sorted by ID.
func (t *Table) FlaggedGenerics() []TypeID {
	return sortedIDs(t.generic)
}

func sortedIDs(m map[TypeID]bool) []TypeID {
	out := make([]TypeID, 0, len(m))
	for id := range m {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func align(n, a int) int {
	if a <= 1 {
		return n
	}
	return (n + a - 1) / a * a
}
