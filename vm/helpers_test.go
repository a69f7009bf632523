package vm

import (
	"testing"
)

// newTestRuntime returns a runtime, a context and a saved namespace.
func newTestRuntime(t *testing.T, cfg Config) (*Runtime, *Context, Value) {
	t.Helper()
	rt := NewRuntime(cfg)
	c := rt.NewContext()
	ns := c.NewHash()
	rt.Save(ns)
	return rt, c, ns
}

// asm builds a saved top-level function from hand-written bytecode.
type asm struct {
	t      *testing.T
	c      *Context
	b      *BytecodeBuilder
	consts []Value
	code   Code
}

func newAsm(t *testing.T, c *Context) *asm {
	return &asm{t: t, c: c, b: NewBytecodeBuilder(), code: Code{RestSym: Nil, File: Nil}}
}

// k adds a constant and returns its index.
func (a *asm) k(v Value) uint16 {
	a.consts = append(a.consts, v)
	return uint16(len(a.consts) - 1)
}

func (a *asm) op(ops ...Opcode) *asm {
	for _, op := range ops {
		a.b.Emit(op)
	}
	return a
}

func (a *asm) arg(op Opcode, n uint16) *asm {
	a.b.EmitUint16(op, n)
	return a
}

func (a *asm) num(f float64) *asm {
	return a.arg(OpPushConst, a.k(FromFloat64(f)))
}

func (a *asm) str(s string) *asm {
	return a.arg(OpPushConst, a.k(a.c.NewString(s)))
}

func (a *asm) sym(name string) uint16 {
	return a.k(a.c.Intern(name))
}

// fn finishes the code and binds it to ns. The function is saved.
func (a *asm) fn(file string, ns Value) Value {
	a.code.Bytecode = a.b.Bytes()
	a.code.Constants = a.consts
	a.code.File = a.c.Intern(file)
	code := a.c.NewCode(a.code)
	f := a.c.Bind(code, ns)
	a.c.Runtime().Save(f)
	return f
}

func mustCall(t *testing.T, c *Context, fn Value, args ...Value) Value {
	t.Helper()
	v, err := c.Call(fn, args, Nil, Nil)
	if err != nil {
		t.Fatalf("call failed: %v", FormatTrace(err))
	}
	return v
}

func callErr(t *testing.T, c *Context, fn Value, args ...Value) *RuntimeError {
	t.Helper()
	_, err := c.Call(fn, args, Nil, Nil)
	if err == nil {
		t.Fatal("expected a runtime error")
	}
	re, ok := err.(*RuntimeError)
	if !ok {
		t.Fatalf("error is %T, want *RuntimeError", err)
	}
	return re
}

func wantNum(t *testing.T, v Value, want float64) {
	t.Helper()
	if !v.IsNum() || v.Num() != want {
		t.Fatalf("got %016x, want number %v", uint64(v), want)
	}
}
