package vm

// ---------------------------------------------------------------------------
// Main interpreter loop
// ---------------------------------------------------------------------------

// run executes until the outermost frame returns and yields its result.
// Calls to script functions push frames on the same loop; native calls
// run inline.
func (c *Context) run() Value {
	rt := c.rt
	for {
		f := &c.frames[c.fp-1]
		bc := f.code.Bytecode
		c.temps = c.temps[:0]

		if f.ip >= len(bc) {
			// Fell off the end: return nil.
			c.push(Nil)
			if res, done := c.ret(f); done {
				return res
			}
			continue
		}

		op := Opcode(bc[f.ip])
		f.ip++

		switch op {
		// --- Stack operations ---
		case OpNOP:

		case OpPOP:
			c.sp--

		case OpDUP:
			c.push(c.top())

		case OpDUP2:
			c.push(c.stack[c.sp-2])
			c.push(c.stack[c.sp-2])

		case OpXCHG:
			c.stack[c.sp-1], c.stack[c.sp-2] = c.stack[c.sp-2], c.stack[c.sp-1]

		case OpXCHG2:
			t := c.stack[c.sp-1]
			c.stack[c.sp-1] = c.stack[c.sp-2]
			c.stack[c.sp-2] = c.stack[c.sp-3]
			c.stack[c.sp-3] = t

		// --- Constants ---
		case OpPushNil:
			c.push(Nil)

		case OpPushZero:
			c.push(FromFloat64(0))

		case OpPushOne:
			c.push(FromFloat64(1))

		case OpPushConst:
			k := f.code.Constants[f.u16()]
			if k.IsCode() {
				// Closure capture happens here, at evaluation time.
				k = c.newFunc(k, f.locals, f.fn)
			}
			c.push(k)

		// --- Arithmetic and comparison ---
		case OpPlus, OpMinus, OpMul, OpDiv:
			c.arith(op)

		case OpNeg:
			c.stack[c.sp-1] = FromFloat64(-c.num(c.stack[c.sp-1]))

		case OpCat:
			c.concat()

		case OpNot:
			c.stack[c.sp-1] = FromBool(!c.truthy(c.stack[c.sp-1]))

		case OpLT, OpLTE, OpGT, OpGTE:
			c.compare(op)

		case OpEQ, OpNEQ:
			eq := rt.Equal(c.stack[c.sp-2], c.stack[c.sp-1])
			c.sp--
			c.stack[c.sp-1] = FromBool(eq == (op == OpEQ))

		// --- Control flow ---
		case OpJmp:
			off := int(int16(f.u16()))
			f.ip += off

		case OpJmpLoop:
			off := int(int16(f.u16()))
			f.ip += off
			rt.safePoint()

		case OpJifTrue:
			off := int(int16(f.u16()))
			if c.truthy(c.top()) {
				f.ip += off
			}

		case OpJifNot:
			off := int(int16(f.u16()))
			if !c.truthy(c.top()) {
				f.ip += off
			}

		case OpJifNotPop:
			off := int(int16(f.u16()))
			if !c.truthy(c.pop()) {
				f.ip += off
			}

		case OpJifEnd:
			off := int(int16(f.u16()))
			if c.top().isEnd() {
				c.sp--
				f.ip += off
			}

		case OpEach, OpIndex:
			vec := rt.Vec(c.stack[c.sp-2])
			if vec == nil {
				c.raise("foreach enumeration of non-vector")
			}
			i := int(c.stack[c.sp-1].Num())
			if i >= vec.Len() {
				c.push(endMarker)
				break
			}
			c.stack[c.sp-1] = FromInt(i + 1)
			if op == OpEach {
				v, _ := vec.Get(i)
				c.push(v)
			} else {
				c.push(FromInt(i))
			}

		case OpMark:
			if c.mp >= len(c.marks) {
				c.raise("mark stack overflow")
			}
			c.marks[c.mp] = c.sp
			c.mp++

		case OpUnmark:
			c.mp--

		case OpBreak:
			c.sp = c.marks[c.mp-1]

		// --- Calls ---
		case OpFCall:
			c.callOp(f.u16(), false, false)

		case OpMCall:
			c.callOp(f.u16(), true, false)

		case OpFCallH:
			c.callOp(1, false, true)

		case OpMCallH:
			c.callOp(1, true, true)

		case OpReturn:
			if res, done := c.ret(f); done {
				return res
			}

		// --- Containers and symbols ---
		case OpNewVec:
			n := f.u16()
			v := c.newVector(c.stack[c.sp-n : c.sp])
			c.sp -= n
			c.push(v)

		case OpNewHash:
			n := f.u16()
			v := c.newHash()
			h := rt.Hash(v)
			base := c.sp - 2*n
			for i := base; i < c.sp; i += 2 {
				h.Set(c.stack[i], c.stack[i+1])
			}
			c.sp = base
			c.push(v)

		case OpLocal:
			sym := f.code.Constants[f.u16()]
			c.push(c.lookup(f, sym))

		case OpSetLocal:
			sym := f.code.Constants[f.u16()]
			rt.Hash(f.locals).Set(sym, c.top())

		case OpSetSym:
			sym := f.code.Constants[f.u16()]
			c.setSymbol(f, sym, c.top())

		case OpMember:
			sym := f.code.Constants[f.u16()]
			v, ok := c.member(c.top(), sym, 0)
			if !ok {
				c.raise("no such member: %s", rt.GoString(sym))
			}
			c.stack[c.sp-1] = v

		case OpSetMember:
			sym := f.code.Constants[f.u16()]
			h := rt.Hash(c.stack[c.sp-2])
			if h == nil {
				c.raise("non-object in member assignment of %s", rt.GoString(sym))
			}
			val := c.pop()
			h.Set(sym, val)
			c.stack[c.sp-1] = val

		case OpExtract:
			v := c.extract(c.stack[c.sp-2], c.stack[c.sp-1])
			c.sp--
			c.stack[c.sp-1] = v

		case OpInsert:
			val := c.stack[c.sp-1]
			c.insert(c.stack[c.sp-3], c.stack[c.sp-2], val)
			c.sp -= 2
			c.stack[c.sp-1] = val

		case OpSlice:
			c.slice(c.stack[c.sp-3], c.stack[c.sp-2], c.stack[c.sp-1])
			c.sp--

		case OpSlice2:
			c.slice2(c.stack[c.sp-4], c.stack[c.sp-3], c.stack[c.sp-2], c.stack[c.sp-1])
			c.sp -= 2

		case OpUnpack:
			n := f.u16()
			vec := rt.Vec(c.top())
			if vec == nil {
				c.raise("destructuring assignment from non-vector")
			}
			if vec.Len() != n {
				c.raise("wrong number of values in destructuring assignment (have %d need %d)", vec.Len(), n)
			}
			c.sp--
			for i := 0; i < n; i++ {
				v, _ := vec.Get(i)
				c.push(v)
			}

		default:
			c.raise("bad opcode 0x%02X", byte(op))
		}
	}
}

// ret pops the top frame, leaving the result on the caller's operand
// stack. done is true when the outermost frame returned.
func (c *Context) ret(f *Frame) (Value, bool) {
	res := c.stack[c.sp-1]
	c.mp = f.markBase
	c.sp = f.bp
	c.fp--
	if c.fp == 0 {
		return res, true
	}
	c.push(res)
	return Nil, false
}
