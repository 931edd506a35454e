package mir

import (
	"encoding/gob"
	"fmt"
	"os"

	"github.com/lumelang/lume/internal/typesystem"
)

func init() {
	// Register node types for gob serialization.
	gob.Register(&Assign{})
	gob.Register(&StorageLive{})
	gob.Register(&StorageDead{})
	gob.Register(&Nop{})
	gob.Register(&FieldProj{})
	gob.Register(&IndexProj{})
	gob.Register(&DerefProj{})
	gob.Register(&Use{})
	gob.Register(&BinaryOp{})
	gob.Register(&UnaryOp{})
	gob.Register(&Aggregate{})
	gob.Register(&Discriminant{})
	gob.Register(&Cast{})
	gob.Register(&CopyOp{})
	gob.Register(&MoveOp{})
	gob.Register(&ConstOp{})
	gob.Register(&IntConst{})
	gob.Register(&FloatConst{})
	gob.Register(&BoolConst{})
	gob.Register(&CharConst{})
	gob.Register(&StrConst{})
	gob.Register(&UnitConst{})
	gob.Register(&FnConst{})
	gob.Register(&TypeConst{})
	gob.Register(&IntrinsicConst{})
	gob.Register(&Goto{})
	gob.Register(&SwitchInt{})
	gob.Register(&Return{})
	gob.Register(&Call{})
	gob.Register(&Unreachable{})
}

// Bundle is the serialized hand-off from the frontend to the comptime
// phase: the lowered program, the type table and the call sites to settle.
// The format mirrors the compiled-bundle approach of the VM backend.
type Bundle struct {
	// SourceFile is the original entry file, for error messages.
	SourceFile string

	Funcs []*Function
	Sites []CallSite

	Structs  []*typesystem.StructDef
	Enums    []*typesystem.EnumDef
	Methods  map[typesystem.TypeID][]typesystem.Method
	Traits   []typesystem.TypeID
	Generics []typesystem.TypeID
}

// NewBundle snapshots a program and table into serializable form.
func NewBundle(sourceFile string, prog *Program, table *typesystem.Table, sites []CallSite) *Bundle {
	return &Bundle{
		SourceFile: sourceFile,
		Funcs:      prog.Sorted(),
		Sites:      sites,
		Structs:    table.AllStructs(),
		Enums:      table.AllEnums(),
		Methods:    table.MethodTable(),
		Traits:     table.FlaggedTraits(),
		Generics:   table.FlaggedGenerics(),
	}
}

// Restore rebuilds the program and type table from the bundle.
func (b *Bundle) Restore() (*Program, *typesystem.Table) {
	prog := NewProgram()
	for _, fn := range b.Funcs {
		prog.Add(fn)
	}
	table := typesystem.NewTable()
	for _, s := range b.Structs {
		table.AddStruct(s)
	}
	for _, e := range b.Enums {
		table.AddEnum(e)
	}
	for id, ms := range b.Methods {
		for _, m := range ms {
			table.AddMethod(id, m)
		}
	}
	for _, id := range b.Traits {
		table.MarkTrait(id)
	}
	for _, id := range b.Generics {
		table.MarkGeneric(id)
	}
	return prog, table
}

// WriteBundle serializes a bundle to disk.
func WriteBundle(path string, b *Bundle) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating bundle %s: %w", path, err)
	}
	defer f.Close()
	if err := gob.NewEncoder(f).Encode(b); err != nil {
		return fmt.Errorf("encoding bundle %s: %w", path, err)
	}
	return nil
}

// ReadBundle deserializes a bundle from disk.
func ReadBundle(path string) (*Bundle, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening bundle %s: %w", path, err)
	}
	defer f.Close()
	b := &Bundle{}
	if err := gob.NewDecoder(f).Decode(b); err != nil {
		return nil, fmt.Errorf("decoding bundle %s: %w", path, err)
	}
	return b, nil
}
