package reflection

import (
	"testing"

	"github.com/lumelang/lume/internal/diagnostics"
	"github.com/lumelang/lume/internal/typesystem"
)

func demoTable() *typesystem.Table {
	table := typesystem.NewTable()
	table.AddStruct(&typesystem.StructDef{
		ID:   20,
		Name: "Vec2",
		Fields: []typesystem.Field{
			{Name: "x", Type: typesystem.F32},
			{Name: "y", Type: typesystem.F32},
		},
	})
	table.AddEnum(&typesystem.EnumDef{
		ID:   21,
		Name: "Axis",
		Variants: []typesystem.Variant{
			{Name: "X"}, {Name: "Y"},
		},
	})
	table.AddMethod(20, typesystem.Method{Name: "len", Return: typesystem.F32})
	table.MarkTrait(21)
	return table
}

func TestTypeInfoStruct(t *testing.T) {
	p := NewProvider(demoTable())

	info, diag := p.TypeInfo(20)
	if diag != nil {
		t.Fatalf("TypeInfo: %s", diag.Error())
	}
	if info.Name != "Vec2" || !info.IsStruct || info.IsEnum {
		t.Errorf("wrong shape: %+v", info)
	}
	if info.Size != 8 || info.Align != 4 {
		t.Errorf("layout = (%d, %d), want (8, 4)", info.Size, info.Align)
	}
	if len(info.Fields) != 2 || info.Fields[1].Name != "y" || info.Fields[1].Type != "f32" {
		t.Errorf("fields = %+v", info.Fields)
	}
	if len(info.Methods) != 1 || info.Methods[0].Name != "len" {
		t.Errorf("methods = %+v", info.Methods)
	}
}

func TestTypeInfoEnumFlags(t *testing.T) {
	p := NewProvider(demoTable())

	info, diag := p.TypeInfo(21)
	if diag != nil {
		t.Fatalf("TypeInfo: %s", diag.Error())
	}
	if !info.IsEnum || !info.IsTrait || info.IsStruct {
		t.Errorf("wrong flags: %+v", info)
	}
	// No payload: 8-byte tag only.
	if info.Size != 8 {
		t.Errorf("size = %d, want 8", info.Size)
	}
}

func TestTypeInfoUnknown(t *testing.T) {
	p := NewProvider(demoTable())
	_, diag := p.TypeInfo(99)
	if diag == nil || diag.Code != diagnostics.ErrUnknownType {
		t.Fatalf("expected UnknownType, got %+v", diag)
	}
}

func TestSnapshotIsCached(t *testing.T) {
	p := NewProvider(demoTable())
	a, _ := p.TypeInfo(20)
	b, _ := p.TypeInfo(20)
	if a != b {
		t.Errorf("snapshot must be built once and reused")
	}
}

func TestResetSeesNewTypes(t *testing.T) {
	table := demoTable()
	p := NewProvider(table)
	if _, diag := p.TypeInfo(30); diag == nil {
		t.Fatalf("type 30 must be unknown before the round commits")
	}

	// An insertion round commits a new struct and the driver resets.
	table.AddStruct(&typesystem.StructDef{
		ID:     30,
		Name:   "Gen",
		Fields: []typesystem.Field{{Name: "n", Type: typesystem.I64}},
	})
	p.Reset(table)

	info, diag := p.TypeInfo(30)
	if diag != nil {
		t.Fatalf("TypeInfo after reset: %s", diag.Error())
	}
	if info.Name != "Gen" {
		t.Errorf("name = %q, want Gen", info.Name)
	}
}

func TestAsValueABIOrder(t *testing.T) {
	p := NewProvider(demoTable())
	info, _ := p.TypeInfo(20)
	v := info.AsValue()
	if len(v.Fields) != 10 {
		t.Fatalf("TypeInfo value must have 10 ABI fields, got %d", len(v.Fields))
	}
}
