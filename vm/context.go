package vm

// ---------------------------------------------------------------------------
// Context: one execution stack
// ---------------------------------------------------------------------------

// Frame is one active script function call.
type Frame struct {
	fn       Value // the Function being run
	code     *Code
	locals   Value // Hash
	ip       int
	bp       int // operand stack base; RETURN truncates to it
	markBase int
}

func (f *Frame) u16() int {
	v := int(f.code.Bytecode[f.ip]) | int(f.code.Bytecode[f.ip+1])<<8
	f.ip += 2
	return v
}

// Context is an interpreter execution stack. A context is driven by one
// goroutine at a time; contexts of different goroutines share the runtime
// through its lock.
type Context struct {
	rt *Runtime

	stack []Value
	sp    int

	frames []Frame
	fp     int // number of active frames

	marks []int
	mp    int

	// temps roots values handed out to natives and the host between
	// instructions. The run loop clears it at every instruction.
	temps []Value

	parent *Context
	child  *Context // sub-context kept alive by Rethrow
	heldBy *Context

	locked    bool // on the chain root: this chain holds the runtime lock
	running   bool
	suspended bool
	resumeSP  int
	// nativeBase is the operand base of the native call in progress in the
	// top frame, or -1.
	nativeBase int

	err    *RuntimeError
	result Value
}

func newContext(rt *Runtime) *Context {
	return &Context{
		rt:         rt,
		stack:      make([]Value, rt.cfg.OpStackSize),
		frames:     make([]Frame, rt.cfg.MaxFrames),
		marks:      make([]int, rt.cfg.MaxMarks),
		nativeBase: -1,
		result:     Nil,
	}
}

// Runtime returns the runtime the context belongs to.
func (c *Context) Runtime() *Runtime { return c.rt }

// Err returns the error of the last Call or Continue, if it failed.
func (c *Context) Err() *RuntimeError { return c.err }

// Suspended reports whether the last failure happened inside a native call
// and may be resumed with Continue.
func (c *Context) Suspended() bool { return c.suspended }

// Depth returns the number of active frames.
func (c *Context) Depth() int { return c.fp }

// reset drops all execution state and releases a held child.
func (c *Context) reset() {
	c.unwind()
	c.err = nil
	c.suspended = false
	c.resumeSP = 0
	c.nativeBase = -1
	c.result = Nil
	c.releaseChild()
}

// unwind discards frames, operands and marks.
func (c *Context) unwind() {
	c.sp = 0
	c.fp = 0
	c.mp = 0
}

func (c *Context) releaseChild() {
	ch := c.child
	if ch == nil {
		return
	}
	c.child = nil
	if ch.heldBy == c {
		ch.heldBy = nil
		c.rt.releaseContext(ch)
	}
}

func (c *Context) root() *Context {
	r := c
	for r.parent != nil {
		r = r.parent
	}
	return r
}

// markRoots marks everything the context keeps alive.
func (c *Context) markRoots(rt *Runtime) {
	for _, v := range c.stack[:c.sp] {
		rt.mark(v)
	}
	for i := 0; i < c.fp; i++ {
		rt.mark(c.frames[i].fn)
		rt.mark(c.frames[i].locals)
	}
	for _, v := range c.temps {
		rt.mark(v)
	}
	if c.err != nil {
		rt.mark(c.err.Value)
	}
	rt.mark(c.result)
}

// ---------------------------------------------------------------------------
// Operand stack
// ---------------------------------------------------------------------------

func (c *Context) push(v Value) {
	if c.sp >= len(c.stack) {
		c.raise("stack overflow")
	}
	c.stack[c.sp] = v
	c.sp++
}

func (c *Context) pop() Value {
	c.sp--
	return c.stack[c.sp]
}

func (c *Context) top() Value {
	return c.stack[c.sp-1]
}

// ---------------------------------------------------------------------------
// Allocation
// ---------------------------------------------------------------------------

func (rt *Runtime) allocString(data []byte) Value {
	i, s, ok := allocSlot(rt, rt.strs)
	if !ok {
		panic(errOutOfMemory())
	}
	s.data = data
	return makeRef(KindString, i)
}

func (c *Context) keep(v Value) Value {
	c.temps = append(c.temps, v)
	return v
}

func (c *Context) newString(data []byte) Value {
	return c.keep(c.rt.allocString(data))
}

func (c *Context) newVector(vals []Value) Value {
	i, v, ok := allocSlot(c.rt, c.rt.vecs)
	if !ok {
		panic(errOutOfMemory())
	}
	v.assign(vals)
	return c.keep(makeRef(KindVector, i))
}

func (c *Context) newHash() Value {
	i, h, ok := allocSlot(c.rt, c.rt.hashes)
	if !ok {
		panic(errOutOfMemory())
	}
	h.rt = c.rt
	return c.keep(makeRef(KindHash, i))
}

func (c *Context) newCode(code Code) Value {
	i, p, ok := allocSlot(c.rt, c.rt.codes)
	if !ok {
		panic(errOutOfMemory())
	}
	*p = code
	return c.keep(makeRef(KindCode, i))
}

func (c *Context) newFunc(code, ns, next Value) Value {
	i, f, ok := allocSlot(c.rt, c.rt.funcs)
	if !ok {
		panic(errOutOfMemory())
	}
	f.Code, f.Namespace, f.Next = code, ns, next
	return c.keep(makeRef(KindFunc, i))
}

func (c *Context) newNative(name string, fn NativeFunc) Value {
	i, n, ok := allocSlot(c.rt, c.rt.natives)
	if !ok {
		panic(errOutOfMemory())
	}
	n.Name, n.Fn = name, fn
	return c.keep(makeRef(KindNative, i))
}

func (c *Context) newGhost(typ *GhostType, ptr any) Value {
	i, g, ok := allocSlot(c.rt, c.rt.ghosts)
	if !ok {
		panic(errOutOfMemory())
	}
	g.Type, g.Ptr = typ, ptr
	return c.keep(makeRef(KindGhost, i))
}

// The exported constructors take the runtime lock unless this context
// chain already holds it. Values they return stay reachable until the next
// Call on the context; pin anything longer-lived with Runtime.Save.

// NewString allocates a string.
func (c *Context) NewString(s string) Value {
	defer c.acquire()()
	return c.newString([]byte(s))
}

// NewBytes allocates a string holding a copy of b.
func (c *Context) NewBytes(b []byte) Value {
	defer c.acquire()()
	return c.newString(append([]byte(nil), b...))
}

// NewVector allocates a vector holding vals.
func (c *Context) NewVector(vals ...Value) Value {
	defer c.acquire()()
	return c.newVector(vals)
}

// NewHash allocates an empty hash.
func (c *Context) NewHash() Value {
	defer c.acquire()()
	return c.newHash()
}

// NewCode allocates a Code object. Used by the compiler.
func (c *Context) NewCode(code Code) Value {
	defer c.acquire()()
	return c.newCode(code)
}

// NewNative wraps fn as a callable value.
func (c *Context) NewNative(name string, fn NativeFunc) Value {
	defer c.acquire()()
	return c.newNative(name, fn)
}

// NewGhost wraps a host resource. typ.Destroy runs once when the ghost is
// collected.
func (c *Context) NewGhost(typ *GhostType, ptr any) Value {
	defer c.acquire()()
	return c.newGhost(typ, ptr)
}

// Keep roots v in the context until the next instruction or Call.
func (c *Context) Keep(v Value) Value {
	defer c.acquire()()
	return c.keep(v)
}

// RegisterNative binds a host function under name in the namespace hash ns.
func RegisterNative(c *Context, ns Value, name string, fn NativeFunc) {
	defer c.acquire()()
	h := c.rt.Hash(ns)
	if h == nil {
		panic("vm: RegisterNative into non-hash namespace")
	}
	h.Set(c.rt.intern(name), c.newNative(name, fn))
}
