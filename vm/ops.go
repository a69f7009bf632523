package vm

import (
	"errors"
)

var errIndexOutOfBounds = errors.New("index out of bounds")

// ---------------------------------------------------------------------------
// Coercion
// ---------------------------------------------------------------------------

// num converts v for arithmetic. Numeric strings convert; nil, other
// strings and objects are errors.
func (c *Context) num(v Value) float64 {
	if v.IsNum() {
		return v.Num()
	}
	if s := c.rt.Str(v); s != nil {
		if n, ok := s.ToNum(); ok {
			return n
		}
		c.raise("non-numeric string in numeric context")
	}
	if v.IsNil() {
		c.raise("nil used in numeric context")
	}
	c.raise("%s used in numeric context", TypeOf(v))
	return 0
}

func (c *Context) index(v Value) int {
	return int(c.num(v))
}

// truthy is the boolean interpretation of v.
func (c *Context) truthy(v Value) bool {
	switch {
	case v.IsNil():
		return false
	case v.IsNum():
		return v.Num() != 0
	case v.IsString():
		s := c.rt.Str(v)
		if s.Len() == 0 {
			return false
		}
		if n, ok := s.ToNum(); ok {
			return n != 0
		}
		return true
	}
	c.raise("non-scalar used in boolean context")
	return false
}

// scalarBytes returns the string form of a number or string operand.
func (c *Context) scalarBytes(v Value) []byte {
	if v.IsNum() {
		return []byte(FormatNum(v.Num()))
	}
	if s := c.rt.Str(v); s != nil {
		return s.data
	}
	if v.IsNil() {
		c.raise("nil used in string context")
	}
	c.raise("non-scalar used in string context")
	return nil
}

// ---------------------------------------------------------------------------
// Arithmetic
// ---------------------------------------------------------------------------

func (c *Context) arith(op Opcode) {
	b := c.num(c.stack[c.sp-1])
	a := c.num(c.stack[c.sp-2])
	var r float64
	switch op {
	case OpPlus:
		r = a + b
	case OpMinus:
		r = a - b
	case OpMul:
		r = a * b
	case OpDiv:
		r = a / b
	}
	c.sp--
	c.stack[c.sp-1] = FromFloat64(r)
}

func (c *Context) compare(op Opcode) {
	b := c.num(c.stack[c.sp-1])
	a := c.num(c.stack[c.sp-2])
	var r bool
	switch op {
	case OpLT:
		r = a < b
	case OpLTE:
		r = a <= b
	case OpGT:
		r = a > b
	case OpGTE:
		r = a >= b
	}
	c.sp--
	c.stack[c.sp-1] = FromBool(r)
}

// concat joins the top two operands. Both stay on the stack until the new
// string exists so a collection cannot free their bytes.
func (c *Context) concat() {
	a := c.scalarBytes(c.stack[c.sp-2])
	b := c.scalarBytes(c.stack[c.sp-1])
	buf := make([]byte, 0, len(a)+len(b))
	buf = append(buf, a...)
	buf = append(buf, b...)
	v := c.newString(buf)
	c.sp--
	c.stack[c.sp-1] = v
}

// ---------------------------------------------------------------------------
// Symbols
// ---------------------------------------------------------------------------

// lookup resolves sym through the frame's locals and then the namespaces
// of the closure chain.
func (c *Context) lookup(f *Frame, sym Value) Value {
	if v, ok := c.rt.Hash(f.locals).Get(sym); ok {
		return v
	}
	for fn := f.fn; fn.IsRef(); {
		fo := c.rt.Func(fn)
		if ns := c.rt.Hash(fo.Namespace); ns != nil {
			if v, ok := ns.Get(sym); ok {
				return v
			}
		}
		fn = fo.Next
	}
	c.raise("undefined symbol: %s", c.rt.GoString(sym))
	return Nil
}

// setSymbol assigns to the innermost scope already defining sym, or
// creates a local.
func (c *Context) setSymbol(f *Frame, sym, val Value) {
	locals := c.rt.Hash(f.locals)
	if locals.TrySet(sym, val) {
		return
	}
	for fn := f.fn; fn.IsRef(); {
		fo := c.rt.Func(fn)
		if ns := c.rt.Hash(fo.Namespace); ns != nil && ns.TrySet(sym, val) {
			return
		}
		fn = fo.Next
	}
	locals.Set(sym, val)
}

// ---------------------------------------------------------------------------
// Members and containers
// ---------------------------------------------------------------------------

// member looks sym up in obj and then depth-first through its parents.
func (c *Context) member(obj, sym Value, depth int) (Value, bool) {
	if depth > c.rt.cfg.MaxParentDepth {
		c.raise("too many levels of parents")
	}
	h := c.rt.Hash(obj)
	if h == nil {
		if depth == 0 {
			c.raise("non-object in member lookup of %s", c.rt.GoString(sym))
		}
		c.raise("non-object in parents vector")
	}
	if v, ok := h.Get(sym); ok {
		return v, true
	}
	p, ok := h.Get(c.rt.symParents)
	if !ok {
		return Nil, false
	}
	pv := c.rt.Vec(p)
	if pv == nil {
		c.raise("parents field is not a vector")
	}
	for i := 0; i < pv.Len(); i++ {
		parent, _ := pv.Get(i)
		if v, ok := c.member(parent, sym, depth+1); ok {
			return v, true
		}
	}
	return Nil, false
}

func (c *Context) extract(box, key Value) Value {
	switch box.Kind() {
	case KindVector:
		vec := c.rt.Vec(box)
		i := c.index(key)
		v, ok := vec.Get(i)
		if !ok {
			c.raise("vector index %d out of bounds (size: %d)", i, vec.Len())
		}
		return v
	case KindHash:
		v, _ := c.rt.Hash(box).Get(key)
		return v
	case KindString:
		s := c.rt.Str(box)
		i := c.index(key)
		if i < 0 {
			i += s.Len()
		}
		if i < 0 || i >= s.Len() {
			c.raise("string index %d out of bounds (size: %d)", i, s.Len())
		}
		return FromInt(int(s.data[i]))
	}
	c.raise("extract from non-container")
	return Nil
}

func (c *Context) insert(box, key, val Value) {
	switch box.Kind() {
	case KindVector:
		vec := c.rt.Vec(box)
		i := c.index(key)
		if !vec.Set(i, val) {
			c.raise("vector index %d out of bounds (size: %d)", i, vec.Len())
		}
	case KindHash:
		c.rt.Hash(box).Set(key, val)
	case KindString:
		if err := c.rt.Str(box).SetByte(c.index(key), byte(c.index(val))); err != nil {
			c.raise("%s", err.Error())
		}
	default:
		c.raise("insert into non-container")
	}
}

// slice appends src[key] to the result vector.
func (c *Context) slice(src, res, key Value) {
	vec := c.rt.Vec(src)
	if vec == nil {
		c.raise("slice of non-vector")
	}
	i := c.index(key)
	v, ok := vec.Get(i)
	if !ok {
		c.raise("vector index %d out of bounds (size: %d)", i, vec.Len())
	}
	c.rt.Vec(res).Append(v)
}

// slice2 appends the inclusive range src[from..to]. A nil bound means the
// start or end of the vector.
func (c *Context) slice2(src, res, from, to Value) {
	vec := c.rt.Vec(src)
	if vec == nil {
		c.raise("slice of non-vector")
	}
	n := vec.Len()
	a, b := 0, n-1
	if !from.IsNil() {
		a = c.index(from)
	}
	if !to.IsNil() {
		b = c.index(to)
	}
	if a < 0 {
		a += n
	}
	if b < 0 {
		b += n
	}
	if a > b {
		return
	}
	if a < 0 || b >= n {
		c.raise("slice range [%d, %d] out of bounds (size: %d)", a, b, n)
	}
	out := c.rt.Vec(res)
	for i := a; i <= b; i++ {
		v, _ := vec.Get(i)
		out.Append(v)
	}
}
