package ir

import (
	"github.com/Blopaa/Orn-sub000/pkg/config"
	"github.com/Blopaa/Orn-sub000/pkg/util"
)

// Optimize runs the two IR passes in order: constant folding first, then
// forward constant propagation. Both mutate the program in place.
func Optimize(p *Program, cfg *config.Config) {
	if cfg.IsFeatureEnabled(config.FeatFold) {
		FoldConstants(p, cfg)
	}
	if cfg.IsFeatureEnabled(config.FeatCopyProp) {
		PropagateCopies(p)
	}
}

// FoldConstants rewrites every ADD/SUB/MUL/DIV whose operands are both
// constants into a COPY of the computed value. The result type picks the
// arithmetic: truncating machine division for ints, IEEE-754 for floats.
// A single forward pass; folded COPYs are never re-matched.
func FoldConstants(p *Program, cfg *config.Config) {
	for inst := p.Head; inst != nil; inst = inst.Next {
		switch inst.Op {
		case OpAdd, OpSub, OpMul, OpDiv:
		default:
			continue
		}
		a, aok := inst.Ar1.(*Constant)
		b, bok := inst.Ar2.(*Constant)
		if !aok || !bok || inst.Res == nil {
			continue
		}

		var folded *Constant
		switch rt := inst.Res.Typ(); rt {
		case TypeInt:
			if inst.Op == OpDiv && b.Int == 0 {
				// Folding would divide at compile time. Leave it for the
				// generated code to trap at run time instead.
				util.Warn(cfg, config.WarnDivByZero, "integer division by constant zero is not folded")
				continue
			}
			folded = NewInt(foldInt(inst.Op, a.Int, b.Int))
		case TypeFloat:
			folded = NewFloat(foldFloat32(inst.Op, a.Float, b.Float))
		case TypeDouble:
			folded = NewDouble(foldFloat64(inst.Op, a.Float, b.Float))
		default:
			continue
		}

		inst.Op = OpCopy
		inst.Ar1 = folded
		inst.Ar2 = nil
	}
}

func foldInt(op Opcode, a, b int64) int64 {
	switch op {
	case OpAdd:
		return a + b
	case OpSub:
		return a - b
	case OpMul:
		return a * b
	default:
		return a / b
	}
}

func foldFloat64(op Opcode, a, b float64) float64 {
	switch op {
	case OpAdd:
		return a + b
	case OpSub:
		return a - b
	case OpMul:
		return a * b
	default:
		return a / b
	}
}

func foldFloat32(op Opcode, a, b float64) float64 {
	return float64(float32(foldFloat64(op, float64(float32(a)), float64(float32(b)))))
}

// PropagateCopies scans forward from every `COPY var <- const`, replacing
// later uses of the variable with the constant until the variable is
// redefined or a function boundary is crossed. The scan is purely textual;
// it does not follow control flow, so a loop back-edge that reassigns the
// variable on a later line is not accounted for.
func PropagateCopies(p *Program) {
	for inst := p.Head; inst != nil; inst = inst.Next {
		if inst.Op != OpCopy {
			continue
		}
		dst, ok := inst.Res.(*Variable)
		if !ok {
			continue
		}
		c, ok := inst.Ar1.(*Constant)
		if !ok {
			continue
		}

		for use := inst.Next; use != nil; use = use.Next {
			if use.Op == OpFuncBegin || use.Op == OpFuncEnd {
				break
			}
			if v, ok := use.Ar1.(*Variable); ok && v.Name == dst.Name {
				use.Ar1 = c
			}
			if v, ok := use.Ar2.(*Variable); ok && v.Name == dst.Name {
				use.Ar2 = c
			}
			if v, ok := use.Res.(*Variable); ok && v.Name == dst.Name {
				break
			}
		}
	}
}
