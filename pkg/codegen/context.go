package codegen

import (
	"bytes"
	"fmt"
	"math"

	"github.com/Blopaa/Orn-sub000/pkg/config"
	"github.com/Blopaa/Orn-sub000/pkg/ir"
)

// frameReserve is the fixed stack frame reservation for every function,
// including the synthetic main wrapper. Frames are not sized from the
// function's actual variable count; a function whose locals outgrow the
// reservation triggers WarnFrameOverflow at its end.
const frameReserve = 256

type varLoc struct {
	name   string
	typ    ir.Type
	offset int64
}

type tempLoc struct {
	id     int
	typ    ir.Type
	offset int64
}

type poolEntry struct {
	strVal   string
	floatVal float64
	label    string
}

// funcInfo holds the storage state for one function. It is created at
// FUNC_BEGIN and discarded at FUNC_END, so slots from one function never
// leak into the next.
type funcInfo struct {
	name       string
	vars       []varLoc
	temps      []tempLoc
	nextOffset int64
}

// Context is exclusively owned by one Generate call. It carries the output
// buffers, the literal pools, the storage allocator state and the calling
// convention counters.
type Context struct {
	cfg *config.Config

	data bytes.Buffer // literal pools
	text bytes.Buffer // user functions
	main bytes.Buffer // top-level instructions wrapped into main

	strPool    []poolEntry
	floatPool  []poolEntry
	doublePool []poolEntry
	nextPool   int

	globalVars  []varLoc
	globalTemps []tempLoc
	globalNext  int64

	fn   *funcInfo
	inFn bool

	// Calling convention state between PARAM and CALL. paramIndex is one
	// counter shared by integer and floating arguments.
	paramIndex    int
	pushedArgs    int
	lastParamType ir.Type
	sawIntParam   bool
	sawFloatParam bool
}

func newContext(cfg *config.Config) *Context {
	return &Context{cfg: cfg, lastParamType: ir.TypeInt}
}

// resolveVar returns the stack offset of a named variable, carving a fresh
// 8-byte slot on first reference. Lookups search the newest entries first,
// function-local before global, so a redeclared name shadows older slots.
func (ctx *Context) resolveVar(name string, typ ir.Type) int64 {
	if ctx.inFn {
		for i := len(ctx.fn.vars) - 1; i >= 0; i-- {
			if ctx.fn.vars[i].name == name && ctx.fn.vars[i].typ == typ {
				return ctx.fn.vars[i].offset
			}
		}
	}
	for i := len(ctx.globalVars) - 1; i >= 0; i-- {
		if ctx.globalVars[i].name == name && ctx.globalVars[i].typ == typ {
			return ctx.globalVars[i].offset
		}
	}

	if ctx.inFn {
		ctx.fn.nextOffset -= 8
		ctx.fn.vars = append(ctx.fn.vars, varLoc{name, typ, ctx.fn.nextOffset})
		return ctx.fn.nextOffset
	}
	ctx.globalNext -= 8
	ctx.globalVars = append(ctx.globalVars, varLoc{name, typ, ctx.globalNext})
	return ctx.globalNext
}

// resolveTemp is resolveVar keyed by temporary id.
func (ctx *Context) resolveTemp(id int, typ ir.Type) int64 {
	if ctx.inFn {
		for i := len(ctx.fn.temps) - 1; i >= 0; i-- {
			if ctx.fn.temps[i].id == id && ctx.fn.temps[i].typ == typ {
				return ctx.fn.temps[i].offset
			}
		}
	}
	for i := len(ctx.globalTemps) - 1; i >= 0; i-- {
		if ctx.globalTemps[i].id == id && ctx.globalTemps[i].typ == typ {
			return ctx.globalTemps[i].offset
		}
	}

	if ctx.inFn {
		ctx.fn.nextOffset -= 8
		ctx.fn.temps = append(ctx.fn.temps, tempLoc{id, typ, ctx.fn.nextOffset})
		return ctx.fn.nextOffset
	}
	ctx.globalNext -= 8
	ctx.globalTemps = append(ctx.globalTemps, tempLoc{id, typ, ctx.globalNext})
	return ctx.globalNext
}

// newPoolLabel hands out .LC labels from one counter so labels never
// collide across the three pools.
func (ctx *Context) newPoolLabel() string {
	label := fmt.Sprintf(".LC%d", ctx.nextPool)
	ctx.nextPool++
	return label
}

// addStringLiteral interns a delimited string literal and returns its rodata
// label. The same literal always maps to the same entry.
func (ctx *Context) addStringLiteral(lit string) string {
	for _, e := range ctx.strPool {
		if e.strVal == lit {
			return e.label
		}
	}
	entry := poolEntry{strVal: lit, label: ctx.newPoolLabel()}
	ctx.strPool = append(ctx.strPool, entry)
	return entry.label
}

func (ctx *Context) addFloatLiteral(v float64) string {
	for _, e := range ctx.floatPool {
		if e.floatVal == v {
			return e.label
		}
	}
	entry := poolEntry{floatVal: v, label: ctx.newPoolLabel()}
	ctx.floatPool = append(ctx.floatPool, entry)
	return entry.label
}

func (ctx *Context) addDoubleLiteral(v float64) string {
	for _, e := range ctx.doublePool {
		if e.floatVal == v {
			return e.label
		}
	}
	entry := poolEntry{floatVal: v, label: ctx.newPoolLabel()}
	ctx.doublePool = append(ctx.doublePool, entry)
	return entry.label
}

// emitPools writes all three literal pools into the data buffer. Called
// once, after the instruction walk.
func (ctx *Context) emitPools() {
	if len(ctx.strPool)+len(ctx.floatPool)+len(ctx.doublePool) == 0 {
		return
	}
	ctx.data.WriteString(".section .rodata\n")
	for _, e := range ctx.strPool {
		fmt.Fprintf(&ctx.data, "%s:\n\t.string %s\n", e.label, e.strVal)
	}
	for _, e := range ctx.floatPool {
		fmt.Fprintf(&ctx.data, "%s:\n\t.long %d\n", e.label, math.Float32bits(float32(e.floatVal)))
	}
	for _, e := range ctx.doublePool {
		fmt.Fprintf(&ctx.data, "%s:\n\t.quad %d\n", e.label, math.Float64bits(e.floatVal))
	}
}
