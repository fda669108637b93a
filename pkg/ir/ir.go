package ir

import (
	"fmt"
	"strings"
)

// Type is the primitive type attached to operands. Instructions themselves
// are untyped; the operands carry everything the backend needs.
type Type int

const (
	TypeNone Type = iota
	TypeInt
	TypeFloat
	TypeDouble
	TypeBool
	TypeString
)

func (t Type) String() string {
	switch t {
	case TypeInt:
		return "int"
	case TypeFloat:
		return "float"
	case TypeDouble:
		return "double"
	case TypeBool:
		return "bool"
	case TypeString:
		return "string"
	default:
		return "none"
	}
}

func (t Type) IsFloating() bool { return t == TypeFloat || t == TypeDouble }

type Opcode int

const (
	OpAdd Opcode = iota
	OpSub
	OpMul
	OpDiv
	OpMod
	OpNeg
	OpNot
	OpAnd
	OpOr
	OpEq
	OpNe
	OpLt
	OpLe
	OpGt
	OpGe
	OpCopy
	OpLabel
	OpGoto
	OpIfFalse
	OpRet
	OpRetVoid
	OpParam
	OpCall
	OpFuncBegin
	OpFuncEnd
	OpCast
	OpNop
)

var opNames = [...]string{
	OpAdd: "add", OpSub: "sub", OpMul: "mul", OpDiv: "div", OpMod: "mod",
	OpNeg: "neg", OpNot: "not", OpAnd: "and", OpOr: "or",
	OpEq: "eq", OpNe: "ne", OpLt: "lt", OpLe: "le", OpGt: "gt", OpGe: "ge",
	OpCopy: "copy", OpLabel: "label", OpGoto: "goto", OpIfFalse: "if_false",
	OpRet: "ret", OpRetVoid: "ret_void", OpParam: "param", OpCall: "call",
	OpFuncBegin: "func_begin", OpFuncEnd: "func_end", OpCast: "cast", OpNop: "nop",
}

func (op Opcode) String() string {
	if int(op) < len(opNames) && opNames[op] != "" {
		return opNames[op]
	}
	return fmt.Sprintf("op(%d)", int(op))
}

// Value is an instruction operand: a constant, a named variable, a
// compiler temporary, a jump label or a function reference.
type Value interface {
	isValue()
	Typ() Type
	String() string
}

// Constant holds a literal. Str keeps the source delimiters for string
// literals so the backend can emit them unchanged.
type Constant struct {
	Type  Type
	Int   int64
	Float float64
	Str   string
}

func (c *Constant) isValue()  {}
func (c *Constant) Typ() Type { return c.Type }
func (c *Constant) String() string {
	switch c.Type {
	case TypeInt:
		return fmt.Sprintf("%d:int", c.Int)
	case TypeFloat:
		return fmt.Sprintf("%s:float", formatFloat(c.Float))
	case TypeDouble:
		return fmt.Sprintf("%s:double", formatFloat(c.Float))
	case TypeBool:
		if c.Int != 0 {
			return "true"
		}
		return "false"
	case TypeString:
		return c.Str + ":string"
	default:
		return "<none>"
	}
}

// Variable is a named slot from the source program.
type Variable struct {
	Name string
	Type Type
}

func (v *Variable) isValue()       {}
func (v *Variable) Typ() Type      { return v.Type }
func (v *Variable) String() string { return fmt.Sprintf("%s:%s", v.Name, v.Type) }

// Temporary is a compiler-generated slot identified by a number.
type Temporary struct {
	ID   int
	Type Type
}

func (t *Temporary) isValue()       {}
func (t *Temporary) Typ() Type      { return t.Type }
func (t *Temporary) String() string { return fmt.Sprintf("%%%d:%s", t.ID, t.Type) }

// Label marks a jump target.
type Label struct {
	ID int
}

func (l *Label) isValue()       {}
func (l *Label) Typ() Type      { return TypeNone }
func (l *Label) String() string { return fmt.Sprintf("L%d", l.ID) }

// FuncRef names a callee.
type FuncRef struct {
	Name string
}

func (f *FuncRef) isValue()       {}
func (f *FuncRef) Typ() Type      { return TypeNone }
func (f *FuncRef) String() string { return f.Name }

func NewInt(v int64) *Constant       { return &Constant{Type: TypeInt, Int: v} }
func NewFloat(v float64) *Constant   { return &Constant{Type: TypeFloat, Float: v} }
func NewDouble(v float64) *Constant  { return &Constant{Type: TypeDouble, Float: v} }
func NewString(lit string) *Constant { return &Constant{Type: TypeString, Str: lit} }

func NewBool(v bool) *Constant {
	c := &Constant{Type: TypeBool}
	if v {
		c.Int = 1
	}
	return c
}

func NewVar(name string, t Type) *Variable { return &Variable{Name: name, Type: t} }
func NewTemp(id int, t Type) *Temporary    { return &Temporary{ID: id, Type: t} }
func NewFuncRef(name string) *FuncRef      { return &FuncRef{Name: name} }

// Instruction is one three-address operation. Nil operand slots mean the
// opcode does not use them.
type Instruction struct {
	Op   Opcode
	Ar1  Value
	Ar2  Value
	Res  Value
	Next *Instruction
}

// Program is a linear, singly linked instruction list. There is no control
// flow graph; jumps reference labels that appear somewhere in the list.
type Program struct {
	Head *Instruction
	Tail *Instruction

	nextLabel int
}

func NewProgram() *Program { return &Program{} }

func (p *Program) Append(inst *Instruction) *Instruction {
	if p.Head == nil {
		p.Head = inst
	} else {
		p.Tail.Next = inst
	}
	p.Tail = inst
	return inst
}

func (p *Program) Emit(op Opcode, ar1, ar2, res Value) *Instruction {
	return p.Append(&Instruction{Op: op, Ar1: ar1, Ar2: ar2, Res: res})
}

// NewLabel hands out labels with strictly increasing IDs.
func (p *Program) NewLabel() *Label {
	l := &Label{ID: p.nextLabel}
	p.nextLabel++
	return l
}

// ReserveLabel bumps the label counter past id, so labels parsed from text
// never collide with ones minted afterwards.
func (p *Program) ReserveLabel(id int) {
	if id >= p.nextLabel {
		p.nextLabel = id + 1
	}
}

func (i *Instruction) String() string {
	var sb strings.Builder
	switch {
	case i.Op == OpLabel:
		fmt.Fprintf(&sb, "%s %s", i.Op, i.Ar1)
	case i.Res != nil:
		fmt.Fprintf(&sb, "%s = %s", i.Res, i.Op)
		if i.Ar1 != nil {
			fmt.Fprintf(&sb, " %s", i.Ar1)
		}
		if i.Ar2 != nil {
			fmt.Fprintf(&sb, ", %s", i.Ar2)
		}
	default:
		sb.WriteString(i.Op.String())
		if i.Ar1 != nil {
			fmt.Fprintf(&sb, " %s", i.Ar1)
		}
		if i.Ar2 != nil {
			fmt.Fprintf(&sb, ", %s", i.Ar2)
		}
	}
	return sb.String()
}

// String dumps the program in the same textual form ParseText accepts.
func (p *Program) String() string {
	var sb strings.Builder
	for inst := p.Head; inst != nil; inst = inst.Next {
		sb.WriteString(inst.String())
		sb.WriteByte('\n')
	}
	return sb.String()
}

func formatFloat(f float64) string {
	s := fmt.Sprintf("%g", f)
	if !strings.ContainsAny(s, ".eE") {
		s += ".0"
	}
	return s
}
