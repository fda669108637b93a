package codegen

import (
	"strings"
	"testing"

	"github.com/Blopaa/Orn-sub000/pkg/config"
	"github.com/Blopaa/Orn-sub000/pkg/ir"
)

func gen(t *testing.T, src string) string {
	t.Helper()
	prog, err := ir.ParseText(src)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	cfg := config.NewConfig()
	cfg.SetAllWarnings(false)
	out, err := (&AMD64Backend{}).Generate(prog, cfg)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	return out.String()
}

func wantContains(t *testing.T, asm string, snippets ...string) {
	t.Helper()
	for _, s := range snippets {
		if !strings.Contains(asm, s) {
			t.Errorf("assembly missing %q:\n%s", s, asm)
		}
	}
}

func TestSlotAllocation(t *testing.T) {
	ctx := newContext(config.NewConfig())
	offsets := []int64{
		ctx.resolveVar("a", ir.TypeInt),
		ctx.resolveVar("b", ir.TypeDouble),
		ctx.resolveTemp(0, ir.TypeInt),
		ctx.resolveTemp(1, ir.TypeBool),
	}
	seen := map[int64]bool{}
	for _, off := range offsets {
		if off >= 0 || off%8 != 0 {
			t.Errorf("offset %d not negative and 8-byte aligned", off)
		}
		if seen[off] {
			t.Errorf("offset %d assigned twice", off)
		}
		seen[off] = true
	}
	if again := ctx.resolveVar("a", ir.TypeInt); again != offsets[0] {
		t.Errorf("second lookup of 'a' moved: %d != %d", again, offsets[0])
	}
}

func TestSlotShadowing(t *testing.T) {
	ctx := newContext(config.NewConfig())
	global := ctx.resolveVar("x", ir.TypeInt)

	ctx.fn = &funcInfo{name: "f"}
	ctx.inFn = true
	local := ctx.resolveVar("x", ir.TypeInt)
	if local == global {
		t.Fatalf("function-local 'x' shares the global slot %d", global)
	}
	if found := ctx.resolveVar("x", ir.TypeInt); found != local {
		t.Errorf("lookup inside function = %d, want local slot %d", found, local)
	}

	ctx.fn, ctx.inFn = nil, false
	if found := ctx.resolveVar("x", ir.TypeInt); found != global {
		t.Errorf("lookup outside function = %d, want global slot %d", found, global)
	}
}

func TestLiteralDedup(t *testing.T) {
	ctx := newContext(config.NewConfig())
	if a, b := ctx.addStringLiteral(`"hi"`), ctx.addStringLiteral(`"hi"`); a != b {
		t.Errorf("same string got labels %s and %s", a, b)
	}
	if a, b := ctx.addDoubleLiteral(2.5), ctx.addDoubleLiteral(2.5); a != b {
		t.Errorf("same double got labels %s and %s", a, b)
	}
	if a, b := ctx.addFloatLiteral(1.5), ctx.addDoubleLiteral(1.5); a == b {
		t.Errorf("float and double pools share label %s", a)
	}
	if len(ctx.strPool) != 1 || len(ctx.floatPool) != 1 || len(ctx.doublePool) != 2 {
		t.Errorf("pool sizes = %d/%d/%d, want 1/1/2",
			len(ctx.strPool), len(ctx.floatPool), len(ctx.doublePool))
	}
}

func TestConstantProgram(t *testing.T) {
	src := `x:int = add 2:int, 3:int
param x:int
call print
`
	prog, err := ir.ParseText(src)
	if err != nil {
		t.Fatal(err)
	}
	cfg := config.NewConfig()
	ir.Optimize(prog, cfg)
	out, err := (&AMD64Backend{}).Generate(prog, cfg)
	if err != nil {
		t.Fatal(err)
	}
	wantContains(t, out.String(), "movq $5, %r10", "call print_int")
}

func TestPrintOverloads(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want string
	}{
		{"bool", "param true\ncall print\n", "call print_bool"},
		{"string", `param "hi":string` + "\ncall print\n", "call print_str_z"},
		{"double", "param 1.5:double\ncall print\n", "call print_float"},
		{"exit", "param 0:int\ncall exit\n", "call exit_program"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			wantContains(t, gen(t, tt.src), tt.want)
		})
	}
}

func TestCallArgRegisters(t *testing.T) {
	var sb strings.Builder
	for i := 0; i < 7; i++ {
		sb.WriteString("param 1:int\n")
	}
	sb.WriteString("call f\n")
	asm := gen(t, sb.String())

	for _, reg := range []string{"%rdi", "%rsi", "%rdx", "%rcx", "%r8", "%r9"} {
		wantContains(t, asm, "movq $1, "+reg)
	}
	wantContains(t, asm, "pushq %r10", "addq $8, %rsp")
}

func TestSharedParamCounter(t *testing.T) {
	asm := gen(t, "param 1:int\nparam 1.5:double\ncall f\n")
	// One positional counter across classes: the float is argument #1, so
	// it lands in %xmm1 even though it is the first floating argument.
	wantContains(t, asm, "movq $1, %rdi", "movsd .LC0(%rip), %xmm1")
}

func TestFloatArgumentsKeepRegisters(t *testing.T) {
	asm := gen(t, "param 1.5:double\nparam 2.5:double\ncall f\n")
	wantContains(t, asm, "movsd .LC0(%rip), %xmm0", "movsd .LC1(%rip), %xmm1")
	// The second argument must not be staged through %xmm0, which already
	// holds the first one.
	if strings.Contains(asm, "movsd %xmm0, %xmm1") {
		t.Errorf("second float argument clobbered %%xmm0:\n%s", asm)
	}
}

func TestCallResult(t *testing.T) {
	wantContains(t, gen(t, "%0:int = call f\n"), "call f\n\tmovq %rax,")
	wantContains(t, gen(t, "%0:double = call g\n"), "call g\n\tmovsd %xmm0,")
}

func TestLoopLowering(t *testing.T) {
	asm := gen(t, `label L1
%0:bool = lt i:int, 10:int
if_false %0:bool, L2
i:int = add i:int, 1:int
goto L1
label L2
`)
	head := strings.Index(asm, ".L1:")
	test := strings.Index(asm, "je .L2")
	back := strings.Index(asm, "jmp .L1")
	exit := strings.Index(asm, ".L2:")
	if head < 0 || test < 0 || back < 0 || exit < 0 {
		t.Fatalf("loop structure incomplete:\n%s", asm)
	}
	if !(head < test && test < back && back < exit) {
		t.Errorf("loop blocks out of order (%d %d %d %d):\n%s", head, test, back, exit, asm)
	}
}

func TestFloatArithmetic(t *testing.T) {
	asm := gen(t, "%0:double = add 1.5:double, 2.5:double\n")
	wantContains(t, asm, "addsd %xmm1, %xmm0", ".quad")

	asm = gen(t, "%0:float = mul 1.5:float, 2.0:float\n")
	wantContains(t, asm, "mulss %xmm1, %xmm0", ".long")
}

func TestIntDivision(t *testing.T) {
	asm := gen(t, "%0:int = div a:int, b:int\n%1:int = mod a:int, b:int\n")
	wantContains(t, asm, "cqo", "idivq %r11")
	if !strings.Contains(asm, "movq %rdx,") {
		t.Errorf("mod result not taken from %%rdx:\n%s", asm)
	}
}

func TestComparisonSignedness(t *testing.T) {
	wantContains(t, gen(t, "%0:bool = lt a:int, b:int\n"),
		"cmpq %r11, %r10", "setl %r10b", "movzbq %r10b, %r10")
	wantContains(t, gen(t, "%0:bool = lt a:double, b:double\n"),
		"ucomisd %xmm1, %xmm0", "setb %r10b")
	wantContains(t, gen(t, "%0:bool = ge a:float, b:float\n"),
		"ucomiss %xmm1, %xmm0", "setae %r10b")
}

func TestFloatNegation(t *testing.T) {
	asm := gen(t, "%0:double = neg a:double\n")
	wantContains(t, asm, "xorpd %xmm1, %xmm0")
	if strings.Contains(asm, "negq") {
		t.Errorf("floating negation used integer negate:\n%s", asm)
	}
	wantContains(t, gen(t, "%0:float = neg a:float\n"), "xorps %xmm1, %xmm0")
	wantContains(t, gen(t, "%0:int = neg a:int\n"), "negq %r10")
}

func TestCasts(t *testing.T) {
	wantContains(t, gen(t, "%0:double = cast a:int\n"), "cvtsi2sdq %r10, %xmm0")
	wantContains(t, gen(t, "%0:float = cast a:int\n"), "cvtsi2ssq %r10, %xmm0")
	wantContains(t, gen(t, "%0:int = cast a:double\n"), "cvttsd2siq %xmm0, %r10")
	wantContains(t, gen(t, "%0:double = cast a:float\n"), "cvtss2sd %xmm0, %xmm0")
	// Same-width reinterpretation degrades to a copy.
	wantContains(t, gen(t, "%0:int = cast a:bool\n"), "movq %r10,")
}

func TestStringLiteralAccess(t *testing.T) {
	asm := gen(t, `s:string = copy "hello":string`+"\n")
	wantContains(t, asm, "leaq .LC0(%rip), %r10", `.string "hello"`)
}

func TestNoMemoryToMemoryMoves(t *testing.T) {
	asm := gen(t, `x:int = copy 5:int
y:int = add x:int, x:int
%0:double = cast y:int
z:double = mul %0:double, 2.0:double
`)
	for _, line := range strings.Split(asm, "\n") {
		if strings.Count(line, "(%rbp)") > 1 {
			t.Errorf("memory-to-memory operation: %q", line)
		}
	}
}

func TestFunctionEmission(t *testing.T) {
	asm := gen(t, `func_begin f
ret 1:int
func_end f
`)
	wantContains(t, asm,
		".globl f", ".type f, @function", "f:",
		"pushq %rbp", "movq %rsp, %rbp", "subq $256, %rsp",
		"movq %rbp, %rsp", "popq %rbp", "ret")
	if strings.Contains(asm, "main:") {
		t.Errorf("no top-level code, but a main wrapper was emitted:\n%s", asm)
	}
}

func TestMainWrapper(t *testing.T) {
	asm := gen(t, "x:int = copy 1:int\n")
	wantContains(t, asm, ".globl main", "main:", "movq $0, %rax")

	mainAt := strings.Index(asm, "main:")
	bodyAt := strings.Index(asm, "movq $1, %r10")
	if bodyAt < mainAt {
		t.Errorf("top-level code outside the main wrapper:\n%s", asm)
	}
}

func TestIfFalseConditionKinds(t *testing.T) {
	wantContains(t, gen(t, "if_false a:bool, L0\nlabel L0\n"),
		"testq %r10, %r10", "je .L0")
	wantContains(t, gen(t, "if_false a:double, L0\nlabel L0\n"),
		"xorpd %xmm1, %xmm1", "ucomisd %xmm1, %xmm0", "je .L0")
}

func TestMalformedInstructionsDegrade(t *testing.T) {
	prog := ir.NewProgram()
	prog.Emit(ir.OpNeg, ir.NewInt(1), nil, nil)
	prog.Emit(ir.OpCast, nil, nil, ir.NewTemp(0, ir.TypeInt))
	prog.Emit(ir.OpParam, nil, nil, nil)
	prog.Emit(ir.OpIfFalse, nil, prog.NewLabel(), nil)

	cfg := config.NewConfig()
	cfg.SetAllWarnings(false)
	out, err := (&AMD64Backend{}).Generate(prog, cfg)
	if err != nil {
		t.Fatal(err)
	}
	if got := strings.Count(out.String(), "# Unknown instruction"); got != 4 {
		t.Errorf("placeholder count = %d, want 4:\n%s", got, out.String())
	}
}

func TestUnknownInstructionPlaceholder(t *testing.T) {
	prog := ir.NewProgram()
	prog.Emit(ir.Opcode(99), nil, nil, nil)
	cfg := config.NewConfig()
	cfg.SetAllWarnings(false)
	out, err := (&AMD64Backend{}).Generate(prog, cfg)
	if err != nil {
		t.Fatal(err)
	}
	wantContains(t, out.String(), "# Unknown instruction")
}

func TestEmptyProgramRejected(t *testing.T) {
	if _, err := (&AMD64Backend{}).Generate(ir.NewProgram(), config.NewConfig()); err == nil {
		t.Error("expected an error for an empty program")
	}
}
