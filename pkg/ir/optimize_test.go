package ir

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/Blopaa/Orn-sub000/pkg/config"
)

func TestFoldIntArithmetic(t *testing.T) {
	tests := []struct {
		name string
		op   Opcode
		a, b int64
		want int64
	}{
		{"add", OpAdd, 2, 3, 5},
		{"sub", OpSub, 2, 3, -1},
		{"mul", OpMul, 4, 3, 12},
		{"div", OpDiv, 7, 2, 3},
		{"div negative truncates", OpDiv, -7, 2, -3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewProgram()
			inst := p.Emit(tt.op, NewInt(tt.a), NewInt(tt.b), NewTemp(0, TypeInt))
			FoldConstants(p, config.NewConfig())

			if inst.Op != OpCopy {
				t.Fatalf("opcode = %s, want copy", inst.Op)
			}
			if inst.Ar2 != nil {
				t.Fatalf("ar2 = %s, want nil", inst.Ar2)
			}
			c, ok := inst.Ar1.(*Constant)
			if !ok || c.Int != tt.want {
				t.Errorf("folded value = %s, want %d", inst.Ar1, tt.want)
			}
		})
	}
}

func TestFoldDoubleArithmetic(t *testing.T) {
	p := NewProgram()
	inst := p.Emit(OpDiv, NewDouble(1.0), NewDouble(4.0), NewTemp(0, TypeDouble))
	FoldConstants(p, config.NewConfig())

	c, ok := inst.Ar1.(*Constant)
	if !ok || inst.Op != OpCopy {
		t.Fatalf("instruction not folded: %s", inst)
	}
	if c.Float != 0.25 {
		t.Errorf("folded value = %v, want 0.25", c.Float)
	}
}

func TestFoldFloatUsesSinglePrecision(t *testing.T) {
	p := NewProgram()
	inst := p.Emit(OpAdd, NewFloat(0.1), NewFloat(0.2), NewTemp(0, TypeFloat))
	FoldConstants(p, config.NewConfig())

	c := inst.Ar1.(*Constant)
	want := float64(float32(0.1) + float32(0.2))
	if c.Float != want {
		t.Errorf("folded value = %v, want %v", c.Float, want)
	}
}

func TestFoldIdempotent(t *testing.T) {
	src := `%0:int = add 2:int, 3:int
%1:int = mul %0:int, 4:int
x:double = div 1.0:double, 3.0:double
`
	p, err := ParseText(src)
	if err != nil {
		t.Fatal(err)
	}
	cfg := config.NewConfig()
	FoldConstants(p, cfg)
	once := p.String()
	FoldConstants(p, cfg)
	if diff := cmp.Diff(once, p.String()); diff != "" {
		t.Errorf("second fold changed the program (-once +twice):\n%s", diff)
	}
}

func TestFoldSkipsIntDivByZero(t *testing.T) {
	p := NewProgram()
	inst := p.Emit(OpDiv, NewInt(7), NewInt(0), NewTemp(0, TypeInt))
	cfg := config.NewConfig()
	cfg.SetWarning(config.WarnDivByZero, false)
	FoldConstants(p, cfg)

	if inst.Op != OpDiv {
		t.Errorf("opcode = %s, want div left unfolded", inst.Op)
	}
}

func TestFoldLeavesOtherOpcodes(t *testing.T) {
	p := NewProgram()
	mod := p.Emit(OpMod, NewInt(7), NewInt(2), NewTemp(0, TypeInt))
	cmpInst := p.Emit(OpLt, NewInt(1), NewInt(2), NewTemp(1, TypeBool))
	FoldConstants(p, config.NewConfig())

	if mod.Op != OpMod {
		t.Errorf("mod folded to %s", mod.Op)
	}
	if cmpInst.Op != OpLt {
		t.Errorf("comparison folded to %s", cmpInst.Op)
	}
}

func TestPropagationScope(t *testing.T) {
	x := func() *Variable { return NewVar("x", TypeInt) }
	p := NewProgram()
	p.Emit(OpCopy, NewInt(5), nil, x())
	first := p.Emit(OpAdd, x(), NewInt(1), NewVar("y", TypeInt))
	p.Emit(OpCopy, NewInt(7), nil, x())
	second := p.Emit(OpAdd, x(), NewInt(1), NewVar("z", TypeInt))

	PropagateCopies(p)

	c, ok := first.Ar1.(*Constant)
	if !ok || c.Int != 5 {
		t.Errorf("first use = %s, want constant 5", first.Ar1)
	}
	c, ok = second.Ar1.(*Constant)
	if !ok || c.Int != 7 {
		t.Errorf("use after redefinition = %s, want constant 7", second.Ar1)
	}
}

func TestPropagationStopsAtFunctionBoundary(t *testing.T) {
	p := NewProgram()
	p.Emit(OpCopy, NewInt(5), nil, NewVar("x", TypeInt))
	p.Emit(OpFuncBegin, NewFuncRef("f"), nil, nil)
	use := p.Emit(OpAdd, NewVar("x", TypeInt), NewInt(1), NewVar("y", TypeInt))

	PropagateCopies(p)

	if _, ok := use.Ar1.(*Variable); !ok {
		t.Errorf("use inside function rewritten to %s", use.Ar1)
	}
}

func TestOptimizeFeatureGates(t *testing.T) {
	src := "x:int = add 2:int, 3:int\n"
	p, err := ParseText(src)
	if err != nil {
		t.Fatal(err)
	}
	cfg := config.NewConfig()
	cfg.SetFeature(config.FeatFold, false)
	cfg.SetFeature(config.FeatCopyProp, false)
	Optimize(p, cfg)

	if diff := cmp.Diff(src, p.String()); diff != "" {
		t.Errorf("disabled passes changed the program (-in +out):\n%s", diff)
	}
}
