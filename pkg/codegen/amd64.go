package codegen

import (
	"bytes"
	"fmt"

	"github.com/Blopaa/Orn-sub000/pkg/config"
	"github.com/Blopaa/Orn-sub000/pkg/ir"
	"github.com/Blopaa/Orn-sub000/pkg/util"
)

// AMD64Backend emits AT&T-syntax assembly for the Linux System V x86-64 ABI.
//
// The defining invariant is zero cross-instruction register residency: every
// operand is loaded from its stack slot into a scratch register (%r10/%r11
// for integers, %xmm0/%xmm1 for floats) immediately before use, and every
// result is stored back immediately after. No value survives in a register
// across an instruction boundary, so no liveness analysis is needed.
type AMD64Backend struct{}

func (b *AMD64Backend) Name() string { return "amd64" }

var intArgRegs = [...]string{"%rdi", "%rsi", "%rdx", "%rcx", "%r8", "%r9"}

func (b *AMD64Backend) Generate(prog *ir.Program, cfg *config.Config) (*bytes.Buffer, error) {
	if prog == nil || prog.Head == nil {
		return nil, fmt.Errorf("empty program")
	}
	ctx := newContext(cfg)

	for inst := prog.Head; inst != nil; inst = inst.Next {
		if cfg.IsFeatureEnabled(config.FeatComments) {
			ctx.emitComment("%s", inst)
		}
		genInstruction(ctx, inst)
	}
	if ctx.inFn {
		return nil, fmt.Errorf("function '%s' never ends", ctx.fn.name)
	}
	ctx.emitPools()

	out := &bytes.Buffer{}
	out.Write(ctx.data.Bytes())
	out.WriteString("\n")
	out.WriteString(".text\n")
	out.Write(ctx.text.Bytes())
	if ctx.main.Len() > 0 {
		out.WriteString(".globl main\n")
		out.WriteString(".type main, @function\n")
		out.WriteString("main:\n")
		out.WriteString("\tpushq %rbp\n")
		out.WriteString("\tmovq %rsp, %rbp\n")
		fmt.Fprintf(out, "\tsubq $%d, %%rsp\n", frameReserve)
		out.Write(ctx.main.Bytes())
		out.WriteString("\tmovq $0, %rax\n")
		out.WriteString("\tmovq %rbp, %rsp\n")
		out.WriteString("\tpopq %rbp\n")
		out.WriteString("\tret\n")
	}
	return out, nil
}

func genInstruction(ctx *Context, inst *ir.Instruction) {
	switch inst.Op {
	case ir.OpAdd, ir.OpSub, ir.OpMul, ir.OpDiv, ir.OpMod:
		genArith(ctx, inst)
	case ir.OpNeg:
		genNeg(ctx, inst)
	case ir.OpNot:
		genNot(ctx, inst)
	case ir.OpAnd, ir.OpOr:
		genLogical(ctx, inst)
	case ir.OpEq, ir.OpNe, ir.OpLt, ir.OpLe, ir.OpGt, ir.OpGe:
		genCompare(ctx, inst)
	case ir.OpCopy:
		genCopy(ctx, inst)
	case ir.OpCast:
		genCast(ctx, inst)
	case ir.OpLabel:
		genLabel(ctx, inst)
	case ir.OpGoto:
		genGoto(ctx, inst)
	case ir.OpIfFalse:
		genIfFalse(ctx, inst)
	case ir.OpRet:
		genReturn(ctx, inst)
	case ir.OpRetVoid:
		ctx.emitEpilogue()
	case ir.OpParam:
		genParam(ctx, inst)
	case ir.OpCall:
		genCall(ctx, inst)
	case ir.OpFuncBegin:
		genFuncBegin(ctx, inst)
	case ir.OpFuncEnd:
		genFuncEnd(ctx, inst)
	case ir.OpNop:
	default:
		ctx.emitComment("Unknown instruction")
		util.Warn(ctx.cfg, config.WarnUnknownInstr, "opcode %s lowered to a placeholder", inst.Op)
	}
}

// moveSuffix picks the SSE width suffix for a floating type.
func moveSuffix(t ir.Type) string {
	if t == ir.TypeDouble {
		return "sd"
	}
	return "ss"
}

// slotOf resolves an operand to its stack offset. Only variables and
// temporaries live in slots.
func slotOf(ctx *Context, v ir.Value) (int64, bool) {
	switch o := v.(type) {
	case *ir.Variable:
		return ctx.resolveVar(o.Name, o.Type), true
	case *ir.Temporary:
		return ctx.resolveTemp(o.ID, o.Type), true
	default:
		return 0, false
	}
}

// loadInt stages an integer-class operand into reg.
func loadInt(ctx *Context, v ir.Value, reg string) {
	switch o := v.(type) {
	case *ir.Constant:
		switch o.Type {
		case ir.TypeString:
			label := ctx.addStringLiteral(o.Str)
			ctx.emitf("leaq %s(%%rip), %s", label, reg)
		default:
			ctx.emitf("movq $%d, %s", o.Int, reg)
		}
	case *ir.Variable:
		ctx.emitf("movq %d(%%rbp), %s", ctx.resolveVar(o.Name, o.Type), reg)
	case *ir.Temporary:
		ctx.emitf("movq %d(%%rbp), %s", ctx.resolveTemp(o.ID, o.Type), reg)
	default:
		ctx.emitComment("Unknown instruction")
		util.Warn(ctx.cfg, config.WarnUnknownInstr, "operand %s cannot be staged", v)
	}
}

// storeInt writes reg back to the operand's stack slot.
func storeInt(ctx *Context, v ir.Value, reg string) {
	off, ok := slotOf(ctx, v)
	if !ok {
		ctx.emitComment("Unknown instruction")
		util.Warn(ctx.cfg, config.WarnUnknownInstr, "result %s has no storage", v)
		return
	}
	ctx.emitf("movq %s, %d(%%rbp)", reg, off)
}

// loadFloat stages a floating operand into an xmm register; constants go
// through the literal pools and RIP-relative loads.
func loadFloat(ctx *Context, v ir.Value, xmm string) {
	suffix := moveSuffix(v.Typ())
	switch o := v.(type) {
	case *ir.Constant:
		var label string
		if o.Type == ir.TypeDouble {
			label = ctx.addDoubleLiteral(o.Float)
		} else {
			label = ctx.addFloatLiteral(o.Float)
		}
		ctx.emitf("mov%s %s(%%rip), %s", suffix, label, xmm)
	case *ir.Variable:
		ctx.emitf("mov%s %d(%%rbp), %s", suffix, ctx.resolveVar(o.Name, o.Type), xmm)
	case *ir.Temporary:
		ctx.emitf("mov%s %d(%%rbp), %s", suffix, ctx.resolveTemp(o.ID, o.Type), xmm)
	default:
		ctx.emitComment("Unknown instruction")
		util.Warn(ctx.cfg, config.WarnUnknownInstr, "operand %s cannot be staged", v)
	}
}

func storeFloat(ctx *Context, v ir.Value, xmm string) {
	off, ok := slotOf(ctx, v)
	if !ok {
		ctx.emitComment("Unknown instruction")
		util.Warn(ctx.cfg, config.WarnUnknownInstr, "result %s has no storage", v)
		return
	}
	ctx.emitf("mov%s %s, %d(%%rbp)", moveSuffix(v.Typ()), xmm, off)
}

func genArith(ctx *Context, inst *ir.Instruction) {
	if inst.Ar1 == nil || inst.Ar2 == nil || inst.Res == nil {
		ctx.emitComment("Unknown instruction")
		util.Warn(ctx.cfg, config.WarnUnknownInstr, "%s is missing operands", inst.Op)
		return
	}

	if inst.Res.Typ().IsFloating() {
		suffix := moveSuffix(inst.Res.Typ())
		loadFloat(ctx, inst.Ar1, "%xmm0")
		loadFloat(ctx, inst.Ar2, "%xmm1")
		switch inst.Op {
		case ir.OpAdd:
			ctx.emitf("add%s %%xmm1, %%xmm0", suffix)
		case ir.OpSub:
			ctx.emitf("sub%s %%xmm1, %%xmm0", suffix)
		case ir.OpMul:
			ctx.emitf("mul%s %%xmm1, %%xmm0", suffix)
		default:
			ctx.emitf("div%s %%xmm1, %%xmm0", suffix)
		}
		storeFloat(ctx, inst.Res, "%xmm0")
		return
	}

	loadInt(ctx, inst.Ar1, "%r10")
	loadInt(ctx, inst.Ar2, "%r11")
	switch inst.Op {
	case ir.OpAdd:
		ctx.emitf("addq %%r11, %%r10")
		storeInt(ctx, inst.Res, "%r10")
	case ir.OpSub:
		ctx.emitf("subq %%r11, %%r10")
		storeInt(ctx, inst.Res, "%r10")
	case ir.OpMul:
		ctx.emitf("imulq %%r11, %%r10")
		storeInt(ctx, inst.Res, "%r10")
	case ir.OpDiv:
		ctx.emitf("movq %%r10, %%rax")
		ctx.emitf("cqo")
		ctx.emitf("idivq %%r11")
		storeInt(ctx, inst.Res, "%rax")
	case ir.OpMod:
		ctx.emitf("movq %%r10, %%rax")
		ctx.emitf("cqo")
		ctx.emitf("idivq %%r11")
		storeInt(ctx, inst.Res, "%rdx")
	}
}

func genNeg(ctx *Context, inst *ir.Instruction) {
	if inst.Ar1 == nil || inst.Res == nil {
		ctx.emitComment("Unknown instruction")
		util.Warn(ctx.cfg, config.WarnUnknownInstr, "neg is missing operands")
		return
	}
	t := inst.Res.Typ()
	if !t.IsFloating() {
		loadInt(ctx, inst.Ar1, "%r10")
		ctx.emitf("negq %%r10")
		storeInt(ctx, inst.Res, "%r10")
		return
	}

	// IEEE negation flips the sign bit; arithmetic negation would mishandle
	// zeroes and NaN payloads.
	loadFloat(ctx, inst.Ar1, "%xmm0")
	if t == ir.TypeDouble {
		ctx.emitf("movabsq $-9223372036854775808, %%r10")
		ctx.emitf("movq %%r10, %%xmm1")
		ctx.emitf("xorpd %%xmm1, %%xmm0")
	} else {
		ctx.emitf("movl $2147483648, %%r10d")
		ctx.emitf("movd %%r10d, %%xmm1")
		ctx.emitf("xorps %%xmm1, %%xmm0")
	}
	storeFloat(ctx, inst.Res, "%xmm0")
}

func genNot(ctx *Context, inst *ir.Instruction) {
	// Boolean complement, not a bitwise one: operands are normalized 0/1.
	loadInt(ctx, inst.Ar1, "%r10")
	ctx.emitf("xorq $1, %%r10")
	storeInt(ctx, inst.Res, "%r10")
}

func genLogical(ctx *Context, inst *ir.Instruction) {
	loadInt(ctx, inst.Ar1, "%r10")
	loadInt(ctx, inst.Ar2, "%r11")
	if inst.Op == ir.OpAnd {
		ctx.emitf("andq %%r11, %%r10")
	} else {
		ctx.emitf("orq %%r11, %%r10")
	}
	storeInt(ctx, inst.Res, "%r10")
}

// setccFor picks the conditional-set mnemonic. Float compares use the
// unsigned family because ucomis sets CF/ZF like an unsigned compare.
func setccFor(op ir.Opcode, floating bool) string {
	if floating {
		switch op {
		case ir.OpEq:
			return "sete"
		case ir.OpNe:
			return "setne"
		case ir.OpLt:
			return "setb"
		case ir.OpLe:
			return "setbe"
		case ir.OpGt:
			return "seta"
		default:
			return "setae"
		}
	}
	switch op {
	case ir.OpEq:
		return "sete"
	case ir.OpNe:
		return "setne"
	case ir.OpLt:
		return "setl"
	case ir.OpLe:
		return "setle"
	case ir.OpGt:
		return "setg"
	default:
		return "setge"
	}
}

func genCompare(ctx *Context, inst *ir.Instruction) {
	floating := inst.Ar1 != nil && inst.Ar1.Typ().IsFloating()
	if floating {
		loadFloat(ctx, inst.Ar1, "%xmm0")
		loadFloat(ctx, inst.Ar2, "%xmm1")
		ctx.emitf("ucomi%s %%xmm1, %%xmm0", moveSuffix(inst.Ar1.Typ()))
	} else {
		loadInt(ctx, inst.Ar1, "%r10")
		loadInt(ctx, inst.Ar2, "%r11")
		ctx.emitf("cmpq %%r11, %%r10")
	}
	ctx.emitf("%s %%r10b", setccFor(inst.Op, floating))
	ctx.emitf("movzbq %%r10b, %%r10")
	storeInt(ctx, inst.Res, "%r10")
}

func genCopy(ctx *Context, inst *ir.Instruction) {
	if inst.Res != nil && inst.Res.Typ().IsFloating() {
		loadFloat(ctx, inst.Ar1, "%xmm0")
		storeFloat(ctx, inst.Res, "%xmm0")
		return
	}
	loadInt(ctx, inst.Ar1, "%r10")
	storeInt(ctx, inst.Res, "%r10")
}

func genCast(ctx *Context, inst *ir.Instruction) {
	if inst.Ar1 == nil || inst.Res == nil {
		ctx.emitComment("Unknown instruction")
		util.Warn(ctx.cfg, config.WarnUnknownInstr, "cast is missing operands")
		return
	}
	from, to := inst.Ar1.Typ(), inst.Res.Typ()
	switch {
	case from == ir.TypeInt && to == ir.TypeFloat:
		loadInt(ctx, inst.Ar1, "%r10")
		ctx.emitf("cvtsi2ssq %%r10, %%xmm0")
		storeFloat(ctx, inst.Res, "%xmm0")
	case from == ir.TypeInt && to == ir.TypeDouble:
		loadInt(ctx, inst.Ar1, "%r10")
		ctx.emitf("cvtsi2sdq %%r10, %%xmm0")
		storeFloat(ctx, inst.Res, "%xmm0")
	case from == ir.TypeFloat && to == ir.TypeInt:
		loadFloat(ctx, inst.Ar1, "%xmm0")
		ctx.emitf("cvttss2siq %%xmm0, %%r10")
		storeInt(ctx, inst.Res, "%r10")
	case from == ir.TypeDouble && to == ir.TypeInt:
		loadFloat(ctx, inst.Ar1, "%xmm0")
		ctx.emitf("cvttsd2siq %%xmm0, %%r10")
		storeInt(ctx, inst.Res, "%r10")
	case from == ir.TypeFloat && to == ir.TypeDouble:
		loadFloat(ctx, inst.Ar1, "%xmm0")
		ctx.emitf("cvtss2sd %%xmm0, %%xmm0")
		storeFloat(ctx, inst.Res, "%xmm0")
	case from == ir.TypeDouble && to == ir.TypeFloat:
		loadFloat(ctx, inst.Ar1, "%xmm0")
		ctx.emitf("cvtsd2ss %%xmm0, %%xmm0")
		storeFloat(ctx, inst.Res, "%xmm0")
	default:
		// Same type or a same-width reinterpretation, e.g. bool to int.
		genCopy(ctx, inst)
	}
}

func genLabel(ctx *Context, inst *ir.Instruction) {
	if l, ok := inst.Ar1.(*ir.Label); ok {
		ctx.emitLabelNum(l.ID)
	}
}

func genGoto(ctx *Context, inst *ir.Instruction) {
	if l, ok := inst.Ar1.(*ir.Label); ok {
		ctx.emitf("jmp .L%d", l.ID)
	}
}

func genIfFalse(ctx *Context, inst *ir.Instruction) {
	l, ok := inst.Ar2.(*ir.Label)
	if !ok || inst.Ar1 == nil {
		ctx.emitComment("Unknown instruction")
		util.Warn(ctx.cfg, config.WarnUnknownInstr, "if_false is missing its condition or label")
		return
	}
	if inst.Ar1.Typ().IsFloating() {
		suffix := moveSuffix(inst.Ar1.Typ())
		loadFloat(ctx, inst.Ar1, "%xmm0")
		if suffix == "sd" {
			ctx.emitf("xorpd %%xmm1, %%xmm1")
		} else {
			ctx.emitf("xorps %%xmm1, %%xmm1")
		}
		ctx.emitf("ucomi%s %%xmm1, %%xmm0", suffix)
	} else {
		loadInt(ctx, inst.Ar1, "%r10")
		ctx.emitf("testq %%r10, %%r10")
	}
	ctx.emitf("je .L%d", l.ID)
}

func genReturn(ctx *Context, inst *ir.Instruction) {
	if inst.Ar1 != nil {
		if inst.Ar1.Typ().IsFloating() {
			loadFloat(ctx, inst.Ar1, "%xmm0")
		} else {
			loadInt(ctx, inst.Ar1, "%rax")
		}
	}
	ctx.emitEpilogue()
}

func genParam(ctx *Context, inst *ir.Instruction) {
	if inst.Ar1 == nil {
		ctx.emitComment("Unknown instruction")
		util.Warn(ctx.cfg, config.WarnUnknownInstr, "param is missing its operand")
		return
	}
	t := inst.Ar1.Typ()
	idx := ctx.paramIndex
	ctx.paramIndex++
	ctx.lastParamType = t

	if t.IsFloating() {
		ctx.sawFloatParam = true
		if idx < 8 {
			// Load straight into the argument register: %xmm0/%xmm1 are
			// arguments 0 and 1 themselves, so staging through them would
			// clobber arguments already in place.
			loadFloat(ctx, inst.Ar1, fmt.Sprintf("%%xmm%d", idx))
			return
		}
		loadFloat(ctx, inst.Ar1, "%xmm8")
		ctx.emitf("subq $8, %%rsp")
		ctx.emitf("mov%s %%xmm8, (%%rsp)", moveSuffix(t))
		ctx.pushedArgs++
		return
	}

	ctx.sawIntParam = true
	if idx < len(intArgRegs) {
		loadInt(ctx, inst.Ar1, intArgRegs[idx])
		return
	}
	loadInt(ctx, inst.Ar1, "%r10")
	ctx.emitf("pushq %%r10")
	ctx.pushedArgs++
}

// builtinSymbol maps source-level builtins onto runtime-support routines.
// print is overloaded on the type of its argument, resolved from the most
// recent PARAM.
func builtinSymbol(name string, lastParam ir.Type) (string, bool) {
	switch name {
	case "print":
		switch lastParam {
		case ir.TypeBool:
			return "print_bool", true
		case ir.TypeString:
			return "print_str_z", true
		case ir.TypeFloat, ir.TypeDouble:
			return "print_float", true
		default:
			return "print_int", true
		}
	case "exit":
		return "exit_program", true
	default:
		return "", false
	}
}

func genCall(ctx *Context, inst *ir.Instruction) {
	ref, ok := inst.Ar1.(*ir.FuncRef)
	if !ok {
		ctx.emitComment("Unknown instruction")
		util.Warn(ctx.cfg, config.WarnUnknownInstr, "call without a function reference")
		return
	}
	if ctx.sawIntParam && ctx.sawFloatParam {
		util.Warn(ctx.cfg, config.WarnMixedParams,
			"call to '%s' mixes integer and floating arguments; register assignment shares one positional counter", ref.Name)
	}

	symbol := ref.Name
	if builtin, ok := builtinSymbol(ref.Name, ctx.lastParamType); ok {
		symbol = builtin
	}
	ctx.emitf("call %s", symbol)
	if ctx.pushedArgs > 0 {
		ctx.emitf("addq $%d, %%rsp", int64(ctx.pushedArgs)*8)
	}
	ctx.paramIndex = 0
	ctx.pushedArgs = 0
	ctx.lastParamType = ir.TypeInt
	ctx.sawIntParam = false
	ctx.sawFloatParam = false

	if inst.Res != nil {
		if inst.Res.Typ().IsFloating() {
			storeFloat(ctx, inst.Res, "%xmm0")
		} else {
			storeInt(ctx, inst.Res, "%rax")
		}
	}
}

func genFuncBegin(ctx *Context, inst *ir.Instruction) {
	name := "anonymous"
	if ref, ok := inst.Ar1.(*ir.FuncRef); ok {
		name = ref.Name
	}
	ctx.fn = &funcInfo{name: name}
	ctx.inFn = true

	ctx.emitRaw(".globl %s", name)
	ctx.emitRaw(".type %s, @function", name)
	ctx.emitRaw("%s:", name)
	ctx.emitf("pushq %%rbp")
	ctx.emitf("movq %%rsp, %%rbp")
	ctx.emitf("subq $%d, %%rsp", frameReserve)
}

func genFuncEnd(ctx *Context, inst *ir.Instruction) {
	if !ctx.inFn {
		ctx.emitComment("Unknown instruction")
		util.Warn(ctx.cfg, config.WarnUnknownInstr, "func_end outside a function")
		return
	}
	used := util.AlignUp(-ctx.fn.nextOffset, 16)
	if used > frameReserve {
		util.Warn(ctx.cfg, config.WarnFrameOverflow,
			"function '%s' uses %d bytes of locals but the frame reserves %d", ctx.fn.name, used, frameReserve)
	}
	ctx.emitEpilogue()
	ctx.emitRaw("")
	ctx.fn = nil
	ctx.inFn = false
}
