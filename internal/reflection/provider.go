// Package reflection exposes compiler type information to comptime code.
// TypeInfo snapshots are built once per type identity, cached for the rest
// of the compilation unit, and never mutated, so they can cross worker and
// cache boundaries freely.
package reflection

import (
	"sync"

	"github.com/lumelang/lume/internal/config"
	"github.com/lumelang/lume/internal/diagnostics"
	"github.com/lumelang/lume/internal/typesystem"
	"github.com/lumelang/lume/internal/value"
)

// FieldInfo is one declared field in declaration order.
type FieldInfo struct {
	Name string
	Type string
	Idx  int
}

// MethodInfo is one method signature.
type MethodInfo struct {
	Name   string
	Params []string
	Return string
}

// TypeInfo is the immutable reflective snapshot of one type.
type TypeInfo struct {
	Name      string
	Size      int
	Align     int
	Fields    []FieldInfo
	Methods   []MethodInfo
	IsStruct  bool
	IsEnum    bool
	IsTrait   bool
	IsGeneric bool
}

// Provider answers reflection intrinsics from the type table. All queries
// are pure functions of the table; the only state is the snapshot cache.
type Provider struct {
	table *typesystem.Table

	mu    sync.Mutex
	cache map[typesystem.TypeID]*TypeInfo
}

func NewProvider(table *typesystem.Table) *Provider {
	return &Provider{
		table: table,
		cache: make(map[typesystem.TypeID]*TypeInfo),
	}
}

// Reset drops cached snapshots. The driver calls it after each insertion
// round commits new types, so later reflection sees the refreshed table.
func (p *Provider) Reset(table *typesystem.Table) {
	p.mu.Lock()
	p.table = table
	p.cache = make(map[typesystem.TypeID]*TypeInfo)
	p.mu.Unlock()
}

// TypeInfo resolves a handle to its snapshot, building it on first use.
func (p *Provider) TypeInfo(id typesystem.TypeID) (*TypeInfo, *diagnostics.Diagnostic) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if info, ok := p.cache[id]; ok {
		return info, nil
	}
	info, diag := p.build(id)
	if diag != nil {
		return nil, diag
	}
	p.cache[id] = info
	return info, nil
}

func (p *Provider) build(id typesystem.TypeID) (*TypeInfo, *diagnostics.Diagnostic) {
	info := &TypeInfo{
		IsTrait:   p.table.IsTrait(id),
		IsGeneric: p.table.IsGeneric(id),
	}

	var ty typesystem.Type
	if def, ok := p.table.Struct(id); ok {
		info.Name = def.Name
		info.IsStruct = true
		ty = typesystem.StructType(id)
		for i, f := range def.Fields {
			info.Fields = append(info.Fields, FieldInfo{
				Name: f.Name,
				Type: f.Type.Display(p.table),
				Idx:  i,
			})
		}
	} else if def, ok := p.table.Enum(id); ok {
		info.Name = def.Name
		info.IsEnum = true
		ty = typesystem.EnumType(id)
	} else {
		return nil, diagnostics.New(diagnostics.ErrUnknownType, diagnostics.Span{},
			"type handle #%d does not resolve to a known type", id)
	}

	size, err := p.table.SizeOf(ty)
	if err != nil {
		return nil, diagnostics.New(diagnostics.ErrUnknownType, diagnostics.Span{}, "%s", err.Error())
	}
	alignment, err := p.table.AlignOf(ty)
	if err != nil {
		return nil, diagnostics.New(diagnostics.ErrUnknownType, diagnostics.Span{}, "%s", err.Error())
	}
	info.Size = size
	info.Align = alignment

	for _, m := range p.table.Methods(id) {
		mi := MethodInfo{Name: m.Name, Return: m.Return.Display(p.table)}
		for _, pt := range m.Params {
			mi.Params = append(mi.Params, pt.Display(p.table))
		}
		info.Methods = append(info.Methods, mi)
	}
	return info, nil
}

// SizeOf answers the size_of intrinsic.
func (p *Provider) SizeOf(id typesystem.TypeID) (int, *diagnostics.Diagnostic) {
	info, diag := p.TypeInfo(id)
	if diag != nil {
		return 0, diag
	}
	return info.Size, nil
}

// AlignOf answers the align_of intrinsic.
func (p *Provider) AlignOf(id typesystem.TypeID) (int, *diagnostics.Diagnostic) {
	info, diag := p.TypeInfo(id)
	if diag != nil {
		return 0, diag
	}
	return info.Align, nil
}

// TypeName answers the type_name intrinsic.
func (p *Provider) TypeName(id typesystem.TypeID) (string, *diagnostics.Diagnostic) {
	info, diag := p.TypeInfo(id)
	if diag != nil {
		return "", diag
	}
	return info.Name, nil
}

// AsValue lowers a snapshot into the builtin TypeInfo struct value that
// comptime code destructures. Field order is part of the language ABI:
// name, size, align, is_struct, is_enum, is_trait, is_generic,
// field_names, field_types, method_names.
func (info *TypeInfo) AsValue() *value.Struct {
	fieldNames := make([]value.Value, len(info.Fields))
	fieldTypes := make([]value.Value, len(info.Fields))
	for i, f := range info.Fields {
		fieldNames[i] = &value.Str{Val: f.Name}
		fieldTypes[i] = &value.Str{Val: f.Type}
	}
	methodNames := make([]value.Value, len(info.Methods))
	for i, m := range info.Methods {
		methodNames[i] = &value.Str{Val: m.Name}
	}
	return &value.Struct{
		Type: config.TypeInfoTypeID,
		Fields: []value.Value{
			&value.Str{Val: info.Name},
			&value.Int{Width: 64, Bits: uint64(info.Size)},
			&value.Int{Width: 64, Bits: uint64(info.Align)},
			&value.Bool{Val: info.IsStruct},
			&value.Bool{Val: info.IsEnum},
			&value.Bool{Val: info.IsTrait},
			&value.Bool{Val: info.IsGeneric},
			&value.Array{Elems: fieldNames},
			&value.Array{Elems: fieldTypes},
			&value.Array{Elems: methodNames},
		},
	}
}
