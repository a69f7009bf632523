package compiler

import (
	"math"

	"github.com/chazu/nasal/vm"
)

// ---------------------------------------------------------------------------
// Codegen: Compile AST to bytecode
// ---------------------------------------------------------------------------

const (
	maxConstants = 1 << 16
	maxJump      = math.MaxInt16
)

// loopContext is one entry of the loop stack used to resolve break and
// continue.
type loopContext struct {
	label     string
	breakL    *vm.Label
	continueL *vm.Label
}

// Compiler generates one Code object. Nested function literals get their
// own Compiler.
type Compiler struct {
	ctx     *vm.Context
	file    string
	fileVal vm.Value

	builder    *vm.BytecodeBuilder
	literals   []vm.Value
	literalMap map[interface{}]int // dedup literals
	lines      []vm.LineEntry
	lastLine   int
	loops      []*loopContext
}

// Compile compiles src into a Code value. The caller binds it to a
// namespace with Context.Bind before calling it.
func Compile(ctx *vm.Context, src []byte, file string) (code vm.Value, err error) {
	defer ctx.Acquire()()
	blk, err := Parse(src, file)
	if err != nil {
		return vm.Nil, err
	}

	defer func() {
		if r := recover(); r != nil {
			switch e := r.(type) {
			case *Error:
				err = e
			case *vm.RuntimeError:
				err = &Error{File: file, Message: e.Message}
			default:
				panic(r)
			}
			code = vm.Nil
		}
	}()
	c := newCompiler(ctx, file, ctx.NewString(file))
	return c.compileFunc(&FuncLit{pos: pos{1}, Body: blk}), nil
}

func newCompiler(ctx *vm.Context, file string, fileVal vm.Value) *Compiler {
	return &Compiler{
		ctx:        ctx,
		file:       file,
		fileVal:    fileVal,
		builder:    vm.NewBytecodeBuilder(),
		literalMap: make(map[interface{}]int),
	}
}

func (c *Compiler) errorf(line int, format string, args ...any) {
	throw(c.file, line, format, args...)
}

// compileFunc generates the body of fn and its parameter metadata.
func (c *Compiler) compileFunc(fn *FuncLit) vm.Value {
	code := vm.Code{File: c.fileVal, Name: fn.Name, RestSym: vm.Nil}
	if !fn.HasParams {
		code.HasRest = true
		code.RestSym = c.ctx.Intern("arg")
	}
	for _, p := range fn.Params {
		sym := c.ctx.Intern(p.Name)
		if p.Default == nil {
			code.ArgSyms = append(code.ArgSyms, sym)
			continue
		}
		code.OptSyms = append(code.OptSyms, sym)
		code.OptDefs = append(code.OptDefs, uint16(c.defaultConst(p)))
	}
	if fn.Rest != "" {
		code.HasRest = true
		code.RestSym = c.ctx.Intern(fn.Rest)
	}

	c.block(fn.Body)
	c.builder.Emit(vm.OpReturn)

	if c.builder.Len() > maxJump {
		c.errorf(fn.Line(), "function too large")
	}
	code.Bytecode = c.builder.Bytes()
	code.Constants = c.literals
	code.Lines = c.lines
	return c.ctx.NewCode(code)
}

// defaultConst returns the constant index of a parameter default, which
// must be a literal.
func (c *Compiler) defaultConst(p Param) int {
	switch d := p.Default.(type) {
	case *NumberLit:
		return c.numConst(d.Value)
	case *StringLit:
		return c.strConst(d.Value)
	case *NilLit:
		return c.addLiteral(vm.Nil, nilKey{})
	}
	c.errorf(p.Default.Line(), "default value of %s must be a constant", p.Name)
	return 0
}

// ---------------------------------------------------------------------------
// Literals
// ---------------------------------------------------------------------------

type (
	numKey uint64
	strKey string
	symKey string
	nilKey struct{}
)

func (c *Compiler) addLiteral(v vm.Value, key interface{}) int {
	if key != nil {
		if idx, ok := c.literalMap[key]; ok {
			return idx
		}
	}
	if len(c.literals) >= maxConstants {
		c.errorf(c.lastLine, "too many constants")
	}
	idx := len(c.literals)
	c.literals = append(c.literals, v)
	if key != nil {
		c.literalMap[key] = idx
	}
	return idx
}

func (c *Compiler) numConst(f float64) int {
	return c.addLiteral(vm.FromFloat64(f), numKey(math.Float64bits(f)))
}

func (c *Compiler) strConst(s string) int {
	if idx, ok := c.literalMap[strKey(s)]; ok {
		return idx
	}
	v := c.ctx.NewString(s)
	c.ctx.Runtime().Str(v).Freeze()
	return c.addLiteral(v, strKey(s))
}

// symConst interns an identifier so lookups hit the identity fast path.
func (c *Compiler) symConst(name string) uint16 {
	if idx, ok := c.literalMap[symKey(name)]; ok {
		return uint16(idx)
	}
	return uint16(c.addLiteral(c.ctx.Intern(name), symKey(name)))
}

// ---------------------------------------------------------------------------
// Emission helpers
// ---------------------------------------------------------------------------

func (c *Compiler) line(l int) {
	if l == c.lastLine || l == 0 {
		return
	}
	c.lastLine = l
	pc := c.builder.Len()
	if n := len(c.lines); n > 0 && c.lines[n-1].PC == pc {
		c.lines[n-1].Line = l
		return
	}
	c.lines = append(c.lines, vm.LineEntry{PC: pc, Line: l})
}

func (c *Compiler) emit(op vm.Opcode) { c.builder.Emit(op) }

func (c *Compiler) emitArg(op vm.Opcode, arg int) {
	c.builder.EmitUint16(op, uint16(arg))
}

func (c *Compiler) pushConst(idx int) {
	switch v := c.literals[idx]; {
	case v == vm.Nil:
		c.emit(vm.OpPushNil)
	case v.IsNum() && v.Num() == 0 && !math.Signbit(v.Num()):
		c.emit(vm.OpPushZero)
	case v.IsNum() && v.Num() == 1:
		c.emit(vm.OpPushOne)
	default:
		c.emitArg(vm.OpPushConst, idx)
	}
}

// ---------------------------------------------------------------------------
// Expressions
// ---------------------------------------------------------------------------

// block leaves the value of the last statement, or nil when empty.
func (c *Compiler) block(b *Block) {
	if len(b.Stmts) == 0 {
		c.emit(vm.OpPushNil)
		return
	}
	for i, s := range b.Stmts {
		if i > 0 {
			c.emit(vm.OpPOP)
		}
		c.expr(s)
	}
}

func (c *Compiler) expr(e Expr) {
	c.line(e.Line())
	switch e := e.(type) {
	case *NumberLit:
		c.pushConst(c.numConst(e.Value))
	case *StringLit:
		c.emitArg(vm.OpPushConst, c.strConst(e.Value))
	case *NilLit:
		c.emit(vm.OpPushNil)
	case *Ident:
		c.emitArg(vm.OpLocal, int(c.symConst(e.Name)))
	case *VectorLit:
		for _, el := range e.Elems {
			c.expr(el)
		}
		c.emitArg(vm.OpNewVec, len(e.Elems))
	case *HashLit:
		for i, k := range e.Keys {
			c.hashKey(k)
			c.expr(e.Values[i])
		}
		c.emitArg(vm.OpNewHash, len(e.Keys))
	case *FuncLit:
		sub := newCompiler(c.ctx, c.file, c.fileVal)
		code := sub.compileFunc(e)
		c.emitArg(vm.OpPushConst, c.addLiteral(code, nil))
	case *ListExpr:
		c.errorf(e.Line(), "comma list outside of an assignment")
	case *Unary:
		c.expr(e.X)
		if e.Op == TokenNot {
			c.emit(vm.OpNot)
		} else {
			c.emit(vm.OpNeg)
		}
	case *Binary:
		c.expr(e.L)
		c.expr(e.R)
		c.emit(binaryOps[e.Op])
	case *Logical:
		c.logical(e)
	case *Ternary:
		elseL, end := c.builder.NewLabel(), c.builder.NewLabel()
		c.expr(e.Cond)
		c.builder.EmitJump(vm.OpJifNotPop, elseL)
		c.expr(e.Then)
		c.builder.EmitJump(vm.OpJmp, end)
		c.builder.Mark(elseL)
		c.expr(e.Else)
		c.builder.Mark(end)
	case *Assign:
		c.assign(e)
	case *VarDecl:
		c.varDecl(e)
	case *Member:
		c.expr(e.X)
		c.emitArg(vm.OpMember, int(c.symConst(e.Name)))
	case *Index:
		c.index(e)
	case *Range:
		c.errorf(e.Line(), "slice range outside of an index")
	case *Call:
		c.call(e)
	case *If:
		c.ifExpr(e)
	case *While:
		c.while(e)
	case *For:
		c.forLoop(e)
	case *ForEach:
		c.forEach(e)
	case *Return:
		if e.X != nil {
			c.expr(e.X)
		} else {
			c.emit(vm.OpPushNil)
		}
		c.emit(vm.OpReturn)
	case *Break:
		c.jumpOut(e.Line(), e.Label, false)
	case *Continue:
		c.jumpOut(e.Line(), e.Label, true)
	case *Block:
		c.block(e)
	default:
		c.errorf(e.Line(), "cannot compile %T", e)
	}
}

var binaryOps = map[TokenType]vm.Opcode{
	TokenPlus:  vm.OpPlus,
	TokenMinus: vm.OpMinus,
	TokenMul:   vm.OpMul,
	TokenDiv:   vm.OpDiv,
	TokenCat:   vm.OpCat,
	TokenEq:    vm.OpEQ,
	TokenNeq:   vm.OpNEQ,
	TokenLt:    vm.OpLT,
	TokenLte:   vm.OpLTE,
	TokenGt:    vm.OpGT,
	TokenGte:   vm.OpGTE,
}

var compoundOps = map[TokenType]vm.Opcode{
	TokenPlusEq:  vm.OpPlus,
	TokenMinusEq: vm.OpMinus,
	TokenMulEq:   vm.OpMul,
	TokenDivEq:   vm.OpDiv,
	TokenCatEq:   vm.OpCat,
}

// hashKey pushes a literal key. String keys are interned so member access
// on the hash finds them by identity.
func (c *Compiler) hashKey(k Expr) {
	switch k := k.(type) {
	case *StringLit:
		c.emitArg(vm.OpPushConst, int(c.symConst(k.Value)))
	default:
		c.expr(k)
	}
}

// logical leaves the deciding operand: the left one when it settles the
// result, otherwise the right one.
func (c *Compiler) logical(e *Logical) {
	end := c.builder.NewLabel()
	c.expr(e.L)
	if e.Op == TokenAnd {
		c.builder.EmitJump(vm.OpJifNot, end)
	} else {
		c.builder.EmitJump(vm.OpJifTrue, end)
	}
	c.emit(vm.OpPOP)
	c.expr(e.R)
	c.builder.Mark(end)
}

// ---------------------------------------------------------------------------
// Assignment
// ---------------------------------------------------------------------------

func (c *Compiler) assign(e *Assign) {
	if fn, ok := e.Value.(*FuncLit); ok && fn.Name == "" {
		if id, ok := e.Target.(*Ident); ok {
			fn.Name = id.Name
		}
	}
	op, compound := compoundOps[e.Op]

	switch t := e.Target.(type) {
	case *Ident:
		sym := int(c.symConst(t.Name))
		if compound {
			c.emitArg(vm.OpLocal, sym)
			c.expr(e.Value)
			c.emit(op)
		} else {
			c.expr(e.Value)
		}
		c.line(e.Line())
		c.emitArg(vm.OpSetSym, sym)

	case *Member:
		sym := int(c.symConst(t.Name))
		c.expr(t.X)
		if compound {
			c.emit(vm.OpDUP)
			c.emitArg(vm.OpMember, sym)
			c.expr(e.Value)
			c.emit(op)
		} else {
			c.expr(e.Value)
		}
		c.line(e.Line())
		c.emitArg(vm.OpSetMember, sym)

	case *Index:
		if len(t.Keys) != 1 {
			c.errorf(e.Line(), "cannot assign to a slice")
		}
		if _, ok := t.Keys[0].(*Range); ok {
			c.errorf(e.Line(), "cannot assign to a slice")
		}
		c.expr(t.X)
		c.expr(t.Keys[0])
		if compound {
			c.emit(vm.OpDUP2)
			c.emit(vm.OpExtract)
			c.expr(e.Value)
			c.emit(op)
		} else {
			c.expr(e.Value)
		}
		c.line(e.Line())
		c.emit(vm.OpInsert)

	case *ListExpr:
		if compound {
			c.errorf(e.Line(), "compound assignment to a list")
		}
		syms := make([]int, len(t.Elems))
		for i, el := range t.Elems {
			id, ok := el.(*Ident)
			if !ok {
				c.errorf(e.Line(), "bad target in multiple assignment")
			}
			syms[i] = int(c.symConst(id.Name))
		}
		c.listValue(e.Value)
		c.unpack(syms, vm.OpSetSym)

	default:
		c.errorf(e.Line(), "bad lvalue")
	}
}

func (c *Compiler) varDecl(d *VarDecl) {
	if fn, ok := d.Value.(*FuncLit); ok && fn.Name == "" && !d.Multi {
		fn.Name = d.Names[0]
	}
	if !d.Multi {
		if d.Value != nil {
			c.expr(d.Value)
		} else {
			c.emit(vm.OpPushNil)
		}
		c.emitArg(vm.OpSetLocal, int(c.symConst(d.Names[0])))
		return
	}
	syms := make([]int, len(d.Names))
	for i, name := range d.Names {
		syms[i] = int(c.symConst(name))
	}
	c.listValue(d.Value)
	c.unpack(syms, vm.OpSetLocal)
}

// listValue pushes the right side of a multiple assignment as a vector.
func (c *Compiler) listValue(v Expr) {
	if l, ok := v.(*ListExpr); ok {
		for _, el := range l.Elems {
			c.expr(el)
		}
		c.emitArg(vm.OpNewVec, len(l.Elems))
		return
	}
	c.expr(v)
}

// unpack spreads the vector on top of the stack into syms, leaving the
// vector as the expression's value.
func (c *Compiler) unpack(syms []int, store vm.Opcode) {
	c.emit(vm.OpDUP)
	c.emitArg(vm.OpUnpack, len(syms))
	for i := len(syms) - 1; i >= 0; i-- {
		c.emitArg(store, syms[i])
		c.emit(vm.OpPOP)
	}
}

// ---------------------------------------------------------------------------
// Indexing and calls
// ---------------------------------------------------------------------------

func (c *Compiler) index(e *Index) {
	c.expr(e.X)
	if len(e.Keys) == 1 {
		if _, ok := e.Keys[0].(*Range); !ok {
			c.expr(e.Keys[0])
			c.emit(vm.OpExtract)
			return
		}
	}
	c.emitArg(vm.OpNewVec, 0)
	for _, k := range e.Keys {
		if r, ok := k.(*Range); ok {
			c.optional(r.From)
			c.optional(r.To)
			c.emit(vm.OpSlice2)
			continue
		}
		c.expr(k)
		c.emit(vm.OpSlice)
	}
	// [src result] -> [result]
	c.emit(vm.OpXCHG)
	c.emit(vm.OpPOP)
}

func (c *Compiler) optional(e Expr) {
	if e == nil {
		c.emit(vm.OpPushNil)
		return
	}
	c.expr(e)
}

func (c *Compiler) call(e *Call) {
	method := false
	if m, ok := e.Fn.(*Member); ok {
		method = true
		c.expr(m.X)
		c.emit(vm.OpDUP)
		c.emitArg(vm.OpMember, int(c.symConst(m.Name)))
	} else {
		c.expr(e.Fn)
	}

	if e.Named != nil {
		for _, a := range e.Named {
			c.emitArg(vm.OpPushConst, int(c.symConst(a.Name)))
			c.expr(a.Value)
		}
		c.emitArg(vm.OpNewHash, len(e.Named))
		c.line(e.Line())
		if method {
			c.emit(vm.OpMCallH)
		} else {
			c.emit(vm.OpFCallH)
		}
		return
	}

	for _, a := range e.Args {
		c.expr(a)
	}
	c.line(e.Line())
	if method {
		c.emitArg(vm.OpMCall, len(e.Args))
	} else {
		c.emitArg(vm.OpFCall, len(e.Args))
	}
}

// ---------------------------------------------------------------------------
// Control flow
// ---------------------------------------------------------------------------

func (c *Compiler) ifExpr(e *If) {
	end := c.builder.NewLabel()
	for i, cond := range e.Conds {
		next := c.builder.NewLabel()
		c.expr(cond)
		c.builder.EmitJump(vm.OpJifNotPop, next)
		c.block(e.Bodies[i])
		c.builder.EmitJump(vm.OpJmp, end)
		c.builder.Mark(next)
	}
	if e.Else != nil {
		c.block(e.Else)
	} else {
		c.emit(vm.OpPushNil)
	}
	c.builder.Mark(end)
}

func (c *Compiler) pushLoop(label string) *loopContext {
	for _, l := range c.loops {
		if label != "" && l.label == label {
			c.errorf(c.lastLine, "duplicate loop label %s", label)
		}
	}
	l := &loopContext{label: label, breakL: c.builder.NewLabel(), continueL: c.builder.NewLabel()}
	c.loops = append(c.loops, l)
	return l
}

func (c *Compiler) popLoop() {
	c.loops = c.loops[:len(c.loops)-1]
}

// loopBody runs the body and discards its value.
func (c *Compiler) loopBody(b *Block) {
	c.block(b)
	c.emit(vm.OpPOP)
}

// while:  MARK top: cond JIFNOTPOP end; body POP; JMPLOOP top; end: UNMARK PUSHNIL
func (c *Compiler) while(e *While) {
	l := c.pushLoop(e.Label)
	c.emit(vm.OpMark)
	top := c.builder.NewLabel()
	c.builder.Mark(top)
	c.builder.Mark(l.continueL)
	c.expr(e.Cond)
	c.builder.EmitJump(vm.OpJifNotPop, l.breakL)
	c.loopBody(e.Body)
	c.builder.EmitJump(vm.OpJmpLoop, top)
	c.builder.Mark(l.breakL)
	c.emit(vm.OpUnmark)
	c.emit(vm.OpPushNil)
	c.popLoop()
}

func (c *Compiler) forLoop(e *For) {
	if e.Init != nil {
		c.expr(e.Init)
		c.emit(vm.OpPOP)
	}
	l := c.pushLoop(e.Label)
	c.emit(vm.OpMark)
	top := c.builder.NewLabel()
	c.builder.Mark(top)
	if e.Cond != nil {
		c.expr(e.Cond)
		c.builder.EmitJump(vm.OpJifNotPop, l.breakL)
	}
	c.loopBody(e.Body)
	c.builder.Mark(l.continueL)
	if e.Post != nil {
		c.expr(e.Post)
		c.emit(vm.OpPOP)
	}
	c.builder.EmitJump(vm.OpJmpLoop, top)
	c.builder.Mark(l.breakL)
	c.emit(vm.OpUnmark)
	c.emit(vm.OpPushNil)
	c.popLoop()
}

// forEach keeps [vector cursor] on the stack below the loop mark.
func (c *Compiler) forEach(e *ForEach) {
	c.expr(e.Vector)
	c.emit(vm.OpPushZero)
	l := c.pushLoop(e.Label)
	c.emit(vm.OpMark)
	c.builder.Mark(l.continueL)
	if e.Index {
		c.emit(vm.OpIndex)
	} else {
		c.emit(vm.OpEach)
	}
	c.builder.EmitJump(vm.OpJifEnd, l.breakL)
	store := vm.OpSetSym
	if e.IsVar {
		store = vm.OpSetLocal
	}
	c.emitArg(store, int(c.symConst(e.Var)))
	c.emit(vm.OpPOP)
	c.loopBody(e.Body)
	c.builder.EmitJump(vm.OpJmpLoop, l.continueL)
	c.builder.Mark(l.breakL)
	c.emit(vm.OpUnmark)
	c.emit(vm.OpPOP)
	c.emit(vm.OpPOP)
	c.emit(vm.OpPushNil)
	c.popLoop()
}

// jumpOut compiles break/continue: one UNMARK per loop level crossed,
// BREAK to restore the target loop's stack depth, then the jump.
func (c *Compiler) jumpOut(line int, label string, cont bool) {
	target := -1
	for i := len(c.loops) - 1; i >= 0; i-- {
		if label == "" || c.loops[i].label == label {
			target = i
			break
		}
	}
	if target < 0 {
		if label != "" {
			c.errorf(line, "no enclosing loop labeled %s", label)
		}
		if cont {
			c.errorf(line, "continue outside of a loop")
		}
		c.errorf(line, "break outside of a loop")
	}
	for i := len(c.loops) - 1; i > target; i-- {
		c.emit(vm.OpUnmark)
	}
	c.emit(vm.OpBreak)
	l := c.loops[target]
	if cont {
		c.builder.EmitJump(vm.OpJmp, l.continueL)
	} else {
		c.builder.EmitJump(vm.OpJmp, l.breakL)
	}
}
