// Package mir defines the typed mid-level IR the comptime engine executes.
// The engine does not build MIR itself; lowering happens upstream and the
// bodies arrive through the function table.
package mir

import (
	"sort"

	"github.com/lumelang/lume/internal/diagnostics"
	"github.com/lumelang/lume/internal/typesystem"
)

// Program is the function table: every lowered body keyed by identity.
// The driver extends it between insertion rounds; evaluations only read.
type Program struct {
	Funcs  map[typesystem.FuncID]*Function
	nextID typesystem.FuncID
}

func NewProgram() *Program {
	return &Program{Funcs: make(map[typesystem.FuncID]*Function), nextID: 1}
}

// AllocFuncID hands out the next free function identity.
func (p *Program) AllocFuncID() typesystem.FuncID {
	id := p.nextID
	p.nextID++
	return id
}

func (p *Program) Add(fn *Function) {
	p.Funcs[fn.ID] = fn
	if fn.ID >= p.nextID {
		p.nextID = fn.ID + 1
	}
}

func (p *Program) Func(id typesystem.FuncID) (*Function, bool) {
	fn, ok := p.Funcs[id]
	return fn, ok
}

// ByName finds a function by name. Linear; used by tests and the CLI, not
// by evaluation.
func (p *Program) ByName(name string) (*Function, bool) {
	for _, fn := range p.Sorted() {
		if fn.Name == name {
			return fn, true
		}
	}
	return nil, false
}

// Sorted returns the functions ordered by ID for deterministic walks.
func (p *Program) Sorted() []*Function {
	out := make([]*Function, 0, len(p.Funcs))
	for _, fn := range p.Funcs {
		out = append(out, fn)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Function is one lowered body.
//
// Local slot convention: slot 0 is the return place, slots 1..NumParams
// hold the arguments, the rest are temporaries. Block 0 is the entry.
type Function struct {
	ID        typesystem.FuncID
	Name      string
	NumParams int
	Locals    []Local
	Result    typesystem.Type
	Blocks    []Block
	Span      diagnostics.Span
}

// Local is one stack slot of a frame.
type Local struct {
	Name string
	Type typesystem.Type
}

// Block is a basic block: straight-line statements plus one terminator.
type Block struct {
	Stmts []Statement
	Term  Terminator
}

// Statement is a straight-line MIR instruction.
type Statement interface {
	stmtNode()
}

// Assign stores the rvalue into the place.
type Assign struct {
	Place  Place
	Rvalue Rvalue
}

// StorageLive marks a local as live. Codegen uses it for stack
// allocation; evaluation leaves the slot untouched because well-formed
// MIR initializes a live slot before reading it.
type StorageLive struct {
	Local int
}

// StorageDead marks a local as dead.
type StorageDead struct {
	Local int
}

// Nop does nothing. Lowering emits it where a statement was optimized out.
type Nop struct{}

func (*Assign) stmtNode()      {}
func (*StorageLive) stmtNode() {}
func (*StorageDead) stmtNode() {}
func (*Nop) stmtNode()         {}

// Place is an lvalue: a local slot plus an optional projection chain.
type Place struct {
	Local int
	Proj  []Projection
}

func LocalPlace(local int) Place {
	return Place{Local: local}
}

// Projection is one step of a place path.
type Projection interface {
	projNode()
}

// FieldProj selects a struct field by declared index.
type FieldProj struct {
	Index int
	Name  string
}

// IndexProj selects an array element; the index lives in another local.
type IndexProj struct {
	Local int
}

// DerefProj dereferences a reference. Comptime values are immutable
// snapshots, so evaluation treats this as the identity projection.
type DerefProj struct{}

func (*FieldProj) projNode() {}
func (*IndexProj) projNode() {}
func (*DerefProj) projNode() {}

// Rvalue is the right-hand side of an assignment.
type Rvalue interface {
	rvalueNode()
}

// Use copies an operand unchanged.
type Use struct {
	X Operand
}

// BinaryOp applies op to two operands of the same numeric type.
type BinaryOp struct {
	Op BinOp
	L  Operand
	R  Operand
}

// UnaryOp applies op to one operand.
type UnaryOp struct {
	Op UnOp
	X  Operand
}

// AggKind discriminates aggregate construction.
type AggKind uint8

const (
	AggArray AggKind = iota
	AggStruct
	AggEnum
)

// Aggregate builds an array, struct or enum value from operands. For
// structs the operands follow declared field order; for enums they are the
// payload of Variant.
type Aggregate struct {
	Kind    AggKind
	Type    typesystem.Type
	Variant int
	Ops     []Operand
}

// Discriminant reads an enum value's variant tag as i64.
type Discriminant struct {
	X Place
}

// Cast converts an operand to another primitive type.
type Cast struct {
	X  Operand
	To typesystem.Type
}

func (*Use) rvalueNode()          {}
func (*BinaryOp) rvalueNode()     {}
func (*UnaryOp) rvalueNode()      {}
func (*Aggregate) rvalueNode()    {}
func (*Discriminant) rvalueNode() {}
func (*Cast) rvalueNode()         {}

// Operand is a value usable inside an rvalue or call.
type Operand interface {
	operandNode()
}

// CopyOp reads a place, leaving it intact.
type CopyOp struct {
	P Place
}

// MoveOp reads a place; evaluation treats it like CopyOp since comptime
// values are immutable, but lowering keeps the distinction for borrowck.
type MoveOp struct {
	P Place
}

// ConstOp embeds a constant.
type ConstOp struct {
	C Constant
}

func (*CopyOp) operandNode()  {}
func (*MoveOp) operandNode()  {}
func (*ConstOp) operandNode() {}

// Constant is a literal embedded in MIR.
type Constant interface {
	constNode()
}

// IntConst carries the raw two's-complement bits at the declared width.
type IntConst struct {
	Type typesystem.Type
	Bits uint64
}

type FloatConst struct {
	Type typesystem.Type
	Val  float64
}

type BoolConst struct {
	Val bool
}

type CharConst struct {
	Val rune
}

type StrConst struct {
	Val string
}

type UnitConst struct{}

// FnConst references a function by identity; the callee of a direct call.
type FnConst struct {
	Func typesystem.FuncID
	Name string
}

// TypeConst is a first-class type handle, the argument of reflection
// intrinsics.
type TypeConst struct {
	ID typesystem.TypeID
}

// IntrinsicConst names a compiler intrinsic in callee position.
type IntrinsicConst struct {
	Name string
}

func (*IntConst) constNode()       {}
func (*FloatConst) constNode()     {}
func (*BoolConst) constNode()      {}
func (*CharConst) constNode()      {}
func (*StrConst) constNode()       {}
func (*UnitConst) constNode()      {}
func (*FnConst) constNode()        {}
func (*TypeConst) constNode()      {}
func (*IntrinsicConst) constNode() {}

// Terminator ends a basic block.
type Terminator interface {
	termNode()
}

// Goto jumps unconditionally.
type Goto struct {
	Target int
}

// SwitchInt compares the discriminant operand against Values and jumps to
// the matching target, or Otherwise. Booleans switch on 0/1; enum matches
// switch on the variant tag. An exhaustive match points Otherwise at an
// Unreachable block.
type SwitchInt struct {
	Discr     Operand
	Values    []int64
	Targets   []int
	Otherwise int
}

// Return yields local 0 to the caller.
type Return struct{}

// Call invokes the callee with arguments, stores the result into Dest and
// continues at Target.
type Call struct {
	Func   Operand
	Args   []Operand
	Dest   Place
	Target int
	Span   diagnostics.Span
}

// Unreachable aborts evaluation if reached. The type checker proves it
// dead for exhaustive matches; the interpreter still guards it.
type Unreachable struct{}

func (*Goto) termNode()        {}
func (*SwitchInt) termNode()   {}
func (*Return) termNode()      {}
func (*Call) termNode()        {}
func (*Unreachable) termNode() {}

// BinOp is a binary operator.
type BinOp uint8

const (
	OpAdd BinOp = iota
	OpSub
	OpMul
	OpDiv
	OpRem
	OpEq
	OpNe
	OpLt
	OpLe
	OpGt
	OpGe
	OpAnd
	OpOr
	OpBitAnd
	OpBitOr
	OpBitXor
	OpShl
	OpShr
)

var binOpNames = [...]string{
	OpAdd: "Add", OpSub: "Sub", OpMul: "Mul", OpDiv: "Div", OpRem: "Rem",
	OpEq: "Eq", OpNe: "Ne", OpLt: "Lt", OpLe: "Le", OpGt: "Gt", OpGe: "Ge",
	OpAnd: "And", OpOr: "Or", OpBitAnd: "BitAnd", OpBitOr: "BitOr",
	OpBitXor: "BitXor", OpShl: "Shl", OpShr: "Shr",
}

func (op BinOp) String() string {
	if int(op) < len(binOpNames) {
		return binOpNames[op]
	}
	return "BinOp?"
}

// UnOp is a unary operator.
type UnOp uint8

const (
	OpNeg UnOp = iota
	OpNot
)

func (op UnOp) String() string {
	if op == OpNeg {
		return "Neg"
	}
	return "Not"
}
