package codegen

import (
	"bytes"
	"fmt"
)

// cur is the buffer instructions currently land in: the function body while
// between FUNC_BEGIN and FUNC_END, the synthetic main run otherwise.
func (ctx *Context) cur() *bytes.Buffer {
	if ctx.inFn {
		return &ctx.text
	}
	return &ctx.main
}

// emitf appends one tab-indented instruction line.
func (ctx *Context) emitf(format string, args ...interface{}) {
	fmt.Fprintf(ctx.cur(), "\t"+format+"\n", args...)
}

func (ctx *Context) emitComment(format string, args ...interface{}) {
	fmt.Fprintf(ctx.cur(), "\t# "+format+"\n", args...)
}

// emitLabelNum writes a numbered jump target, flush left.
func (ctx *Context) emitLabelNum(id int) {
	fmt.Fprintf(ctx.cur(), ".L%d:\n", id)
}

// emitRaw appends directives without indentation, e.g. function headers.
func (ctx *Context) emitRaw(format string, args ...interface{}) {
	fmt.Fprintf(ctx.cur(), format+"\n", args...)
}

func (ctx *Context) emitEpilogue() {
	ctx.emitf("movq %%rbp, %%rsp")
	ctx.emitf("popq %%rbp")
	ctx.emitf("ret")
}
