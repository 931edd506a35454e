package mir

import (
	"fmt"
	"strings"
)

// Dump renders the whole program in the textual MIR format used by the
// `lumec mir` command and by golden tests.
func (p *Program) Dump() string {
	var sb strings.Builder
	sb.WriteString("=== MIR Program ===\n\n")
	for _, fn := range p.Sorted() {
		sb.WriteString(fn.Dump())
		sb.WriteByte('\n')
	}
	return sb.String()
}

// Dump renders one function.
func (fn *Function) Dump() string {
	var sb strings.Builder

	params := make([]string, 0, fn.NumParams)
	for i := 1; i <= fn.NumParams && i < len(fn.Locals); i++ {
		params = append(params, fmt.Sprintf("%s: %s", fn.Locals[i].Name, fn.Locals[i].Type))
	}
	fmt.Fprintf(&sb, "fn %s(%s) -> %s {\n", fn.Name, strings.Join(params, ", "), fn.Result)

	if len(fn.Locals) > fn.NumParams+1 {
		sb.WriteString("  locals:\n")
		for i := fn.NumParams + 1; i < len(fn.Locals); i++ {
			fmt.Fprintf(&sb, "    _%d: %s // %s\n", i, fn.Locals[i].Type, fn.Locals[i].Name)
		}
		sb.WriteByte('\n')
	}

	for bi, b := range fn.Blocks {
		fmt.Fprintf(&sb, "  bb%d:\n", bi)
		for _, s := range b.Stmts {
			fmt.Fprintf(&sb, "    %s\n", stmtString(s))
		}
		fmt.Fprintf(&sb, "    %s\n\n", termString(b.Term))
	}

	sb.WriteString("}\n")
	return sb.String()
}

func stmtString(s Statement) string {
	switch s := s.(type) {
	case *Assign:
		return fmt.Sprintf("%s = %s", placeString(s.Place), rvalueString(s.Rvalue))
	case *StorageLive:
		return fmt.Sprintf("StorageLive(_%d)", s.Local)
	case *StorageDead:
		return fmt.Sprintf("StorageDead(_%d)", s.Local)
	case *Nop:
		return "nop"
	}
	return "<stmt?>"
}

func placeString(p Place) string {
	s := fmt.Sprintf("_%d", p.Local)
	for _, proj := range p.Proj {
		switch proj := proj.(type) {
		case *FieldProj:
			s = fmt.Sprintf("%s.%s", s, proj.Name)
		case *IndexProj:
			s = fmt.Sprintf("%s[_%d]", s, proj.Local)
		case *DerefProj:
			s = fmt.Sprintf("(*%s)", s)
		}
	}
	return s
}

func rvalueString(r Rvalue) string {
	switch r := r.(type) {
	case *Use:
		return operandString(r.X)
	case *BinaryOp:
		return fmt.Sprintf("%s(%s, %s)", r.Op, operandString(r.L), operandString(r.R))
	case *UnaryOp:
		return fmt.Sprintf("%s(%s)", r.Op, operandString(r.X))
	case *Aggregate:
		ops := make([]string, len(r.Ops))
		for i, op := range r.Ops {
			ops[i] = operandString(op)
		}
		switch r.Kind {
		case AggArray:
			return fmt.Sprintf("[%s]", strings.Join(ops, ", "))
		case AggEnum:
			return fmt.Sprintf("%s::%d(%s)", r.Type, r.Variant, strings.Join(ops, ", "))
		default:
			return fmt.Sprintf("%s { %s }", r.Type, strings.Join(ops, ", "))
		}
	case *Discriminant:
		return fmt.Sprintf("discriminant(%s)", placeString(r.X))
	case *Cast:
		return fmt.Sprintf("%s as %s", operandString(r.X), r.To)
	}
	return "<rvalue?>"
}

func operandString(o Operand) string {
	switch o := o.(type) {
	case *CopyOp:
		return "copy " + placeString(o.P)
	case *MoveOp:
		return "move " + placeString(o.P)
	case *ConstOp:
		return constString(o.C)
	}
	return "<operand?>"
}

func constString(c Constant) string {
	switch c := c.(type) {
	case *IntConst:
		if c.Type.IsSigned() {
			return fmt.Sprintf("%d", signExtend(c.Bits, c.Type.Width()))
		}
		return fmt.Sprintf("%d", c.Bits)
	case *FloatConst:
		return fmt.Sprintf("%g", c.Val)
	case *BoolConst:
		return fmt.Sprintf("%t", c.Val)
	case *CharConst:
		return fmt.Sprintf("%q", c.Val)
	case *StrConst:
		return fmt.Sprintf("%q", c.Val)
	case *UnitConst:
		return "()"
	case *FnConst:
		return "fn " + c.Name
	case *TypeConst:
		return fmt.Sprintf("type#%d", c.ID)
	case *IntrinsicConst:
		return "#" + c.Name
	}
	return "<const?>"
}

func termString(t Terminator) string {
	switch t := t.(type) {
	case *Goto:
		return fmt.Sprintf("goto -> bb%d", t.Target)
	case *SwitchInt:
		arms := make([]string, len(t.Values))
		for i, v := range t.Values {
			arms[i] = fmt.Sprintf("%d => bb%d", v, t.Targets[i])
		}
		return fmt.Sprintf("switchInt(%s) -> [%s; otherwise: bb%d]",
			operandString(t.Discr), strings.Join(arms, ", "), t.Otherwise)
	case *Return:
		return "return"
	case *Call:
		args := make([]string, len(t.Args))
		for i, a := range t.Args {
			args[i] = operandString(a)
		}
		return fmt.Sprintf("%s = %s(%s) -> bb%d",
			placeString(t.Dest), operandString(t.Func), strings.Join(args, ", "), t.Target)
	case *Unreachable:
		return "unreachable"
	}
	return "<terminator?>"
}

// signExtend interprets the low `width` bits of raw as a signed integer.
func signExtend(raw uint64, width uint8) int64 {
	shift := 64 - uint(width)
	return int64(raw<<shift) >> shift
}
