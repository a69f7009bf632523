package vm

// ---------------------------------------------------------------------------
// Call protocol
// ---------------------------------------------------------------------------

// Call runs fn with positional args. A non-nil self is bound as "me". When
// locals is a hash it becomes the callee's local namespace; with no args it
// is treated as a named-argument hash and validated against the parameter
// list.
//
// The result stays reachable until the next Call on c. A failure is
// returned as a *RuntimeError.
func (c *Context) Call(fn Value, args []Value, self, locals Value) (Value, error) {
	if c.running {
		return Nil, ErrContextBusy
	}
	defer c.acquire()()
	c.reset()
	c.running = true
	defer func() { c.running = false }()

	result := Nil
	err := c.protect(func() {
		if !fn.IsFunc() {
			c.raise("call of non-function %s", TypeOf(fn))
		}
		c.push(self)
		c.push(fn)
		for _, a := range args {
			c.push(a)
		}
		argv := c.stack[2:c.sp]
		if fn.Kind() == KindNative {
			c.callNative(fn, self, argv, 0)
			result = c.pop()
			return
		}
		named := locals.IsHash() && len(args) == 0
		c.enter(fn, self, !self.IsNil(), argv, locals, named, 0)
		result = c.run()
	})
	if err != nil {
		return Nil, err
	}
	c.result = result
	c.keep(result)
	return result, nil
}

// callOp dispatches the FCALL family. The stack holds
// [self] fn arg0..argN-1, or fn hash for named calls.
func (c *Context) callOp(argc int, method, named bool) {
	fnAt := c.sp - argc - 1
	bp := fnAt
	self := Nil
	if method {
		bp--
		self = c.stack[bp]
	}
	fn := c.stack[fnAt]
	args := c.stack[fnAt+1 : c.sp]

	switch fn.Kind() {
	case KindNative:
		c.callNative(fn, self, args, bp)
	case KindFunc:
		locals := Nil
		if named {
			locals = args[0]
			args = nil
		}
		c.enter(fn, self, method, args, locals, named, bp)
	default:
		c.raise("function call on uncallable %s", TypeOf(fn))
	}
}

// callNative runs a host function and replaces its operands with the
// result. While it runs the context is marked as inside a native call, so
// an error raised from it can later be continued.
func (c *Context) callNative(fn, self Value, args []Value, bp int) {
	n := c.rt.Native(fn)
	argv := make([]Value, len(args))
	copy(argv, args)

	c.nativeBase = bp
	res, err := n.Fn(c, self, argv)
	if err != nil {
		c.raiseErr(err)
	}
	c.nativeBase = -1

	c.sp = bp
	c.push(res)
}

// enter binds arguments and pushes a frame for a script function. The
// callee's operands start above its arguments, which stay on the stack
// (and so stay rooted) until RETURN truncates to bp.
func (c *Context) enter(fn, self Value, method bool, args []Value, locals Value, named bool, bp int) {
	if c.fp >= len(c.frames) {
		c.raise("call stack overflow")
	}
	f := c.rt.Func(fn)
	code := c.rt.Code(f.Code)

	if named {
		c.bindNamed(code, locals)
	} else {
		if !locals.IsHash() {
			locals = c.newHash()
		}
		c.bindPositional(code, locals, args)
	}
	if method {
		c.rt.Hash(locals).Set(c.rt.symMe, self)
	}

	c.frames[c.fp] = Frame{
		fn:       fn,
		code:     code,
		locals:   locals,
		bp:       bp,
		markBase: c.mp,
	}
	c.fp++
}

// bindPositional fills required parameters, then optional ones from the
// remaining arguments or their defaults, then the rest vector.
func (c *Context) bindPositional(code *Code, locals Value, args []Value) {
	h := c.rt.Hash(locals)
	nreq := len(code.ArgSyms)
	if len(args) < nreq {
		c.raise("too few function args (have %d need %d)", len(args), nreq)
	}
	for i, s := range code.ArgSyms {
		h.Set(s, args[i])
	}
	rest := args[nreq:]
	for i, s := range code.OptSyms {
		if i < len(rest) {
			h.Set(s, rest[i])
		} else {
			h.Set(s, code.Constants[code.OptDefs[i]])
		}
	}
	if len(rest) > len(code.OptSyms) {
		rest = rest[len(code.OptSyms):]
	} else {
		rest = nil
	}
	if code.HasRest || len(rest) > 0 {
		sym := code.RestSym
		if !code.HasRest {
			sym = c.rt.symArg
		}
		h.Set(sym, c.newVector(rest))
	}
}

// bindNamed validates a named-argument hash used directly as locals.
func (c *Context) bindNamed(code *Code, locals Value) {
	h := c.rt.Hash(locals)
	if h == nil {
		c.raise("named arguments must be a hash")
	}
	for _, s := range code.ArgSyms {
		if !h.Has(s) {
			c.raise("missing required argument: %s", c.rt.GoString(s))
		}
	}
	for i, s := range code.OptSyms {
		if !h.Has(s) {
			h.Set(s, code.Constants[code.OptDefs[i]])
		}
	}
	if code.HasRest && !h.Has(code.RestSym) {
		h.Set(code.RestSym, c.newVector(nil))
	}
}

// ---------------------------------------------------------------------------
// Sub-contexts and continuation
// ---------------------------------------------------------------------------

// SubContext returns a context for calling back into scripts from inside a
// native function. It shares the caller's hold on the runtime lock. Free it
// when done unless it was handed to Rethrow.
func (c *Context) SubContext() *Context {
	return c.rt.newContext(c)
}

// Free returns the context to the runtime's idle list. It is a no-op for a
// sub-context that a parent took over with Rethrow.
func (c *Context) Free() {
	defer c.acquire()()
	if c.heldBy != nil {
		return
	}
	if p := c.parent; p != nil && p.child == c {
		p.child = nil
	}
	c.rt.releaseContext(c)
}

// Rethrow raises sub's error in c. The trace lists sub's frames followed by
// c's own. c keeps sub so that Continue can resume it; it does not return.
func (c *Context) Rethrow(sub *Context) {
	se := sub.err
	if se == nil {
		c.raise("rethrow of a context without an error")
	}
	if c.child != nil && c.child != sub {
		c.releaseChild()
	}
	sub.heldBy = c
	c.child = sub
	tr := make([]TraceFrame, 0, len(se.Trace)+c.fp)
	tr = append(tr, se.Trace...)
	tr = append(tr, c.trace()...)
	panic(&RuntimeError{
		Message: se.Message,
		Value:   se.Value,
		Trace:   tr,
		cause:   se.cause,
	})
}

// Continue resumes a context whose last error was raised inside a native
// call. The native's operands are replaced by a result and execution goes
// on with the next instruction. The result is that of the rethrown child,
// itself continued first, or nil when the native failed on its own.
func (c *Context) Continue() (Value, error) {
	if c.running {
		return Nil, ErrContextBusy
	}
	if !c.suspended {
		return Nil, ErrNotContinuable
	}
	defer c.acquire()()
	c.running = true
	defer func() { c.running = false }()

	result := Nil
	err := c.protect(func() {
		c.suspended = false
		c.err = nil
		c.sp = c.resumeSP
		c.nativeBase = c.resumeSP

		v := Nil
		if ch := c.child; ch != nil && ch.heldBy == c {
			if ch.suspended {
				if _, err := ch.Continue(); err != nil {
					c.Rethrow(ch)
				}
				v = ch.result
			}
			c.releaseChild()
		}
		c.push(v)
		c.nativeBase = -1
		result = c.run()
	})
	if err != nil {
		return Nil, err
	}
	c.result = result
	c.keep(result)
	return result, nil
}
