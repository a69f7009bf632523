// Package lib provides the core native functions scripts expect to find in
// their namespace.
package lib

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/tliron/commonlog"

	"github.com/chazu/nasal/codec"
	"github.com/chazu/nasal/compiler"
	"github.com/chazu/nasal/vm"
)

var log = commonlog.GetLogger("nasal.lib")

// Register installs the library into ns, printing to stdout.
func Register(ctx *vm.Context, ns vm.Value) {
	RegisterTo(ctx, ns, os.Stdout)
}

// RegisterTo installs the library into ns with print writing to out.
func RegisterTo(ctx *vm.Context, ns vm.Value, out io.Writer) {
	natives := map[string]vm.NativeFunc{
		"print":       printer(out),
		"size":        size,
		"keys":        keys,
		"append":      appendFn,
		"pop":         pop,
		"setsize":     setsize,
		"subvec":      subvec,
		"delete":      deleteFn,
		"contains":    contains,
		"typeof":      typeOf,
		"die":         die,
		"call":        call,
		"streq":       streq,
		"substr":      substr,
		"num":         num,
		"id":          id,
		"compile":     compileFn,
		"bind":        bind,
		"closure":     closure,
		"sleep":       sleep,
		"cbor_encode": cborEncode,
		"cbor_decode": cborDecode,
	}
	for name, fn := range natives {
		vm.RegisterNative(ctx, ns, name, fn)
	}
	log.Debugf("registered %d natives", len(natives))
}

// arg returns args[i], or nil when the caller passed fewer.
func arg(args []vm.Value, i int) vm.Value {
	if i < len(args) {
		return args[i]
	}
	return vm.Nil
}

func intArg(args []vm.Value, i int, fn string) (int, error) {
	v := arg(args, i)
	if !v.IsNum() {
		return 0, vm.Errorf("%s: argument %d is not a number", fn, i+1)
	}
	return int(v.Num()), nil
}

func vecArg(c *vm.Context, args []vm.Value, i int, fn string) (*vm.Vector, error) {
	vec := c.Runtime().Vec(arg(args, i))
	if vec == nil {
		return nil, vm.Errorf("%s: argument %d is not a vector", fn, i+1)
	}
	return vec, nil
}

func hashArg(c *vm.Context, args []vm.Value, i int, fn string) (*vm.Hash, error) {
	h := c.Runtime().Hash(arg(args, i))
	if h == nil {
		return nil, vm.Errorf("%s: argument %d is not a hash", fn, i+1)
	}
	return h, nil
}

// ---------------------------------------------------------------------------
// Output and introspection
// ---------------------------------------------------------------------------

func printer(out io.Writer) vm.NativeFunc {
	return func(c *vm.Context, _ vm.Value, args []vm.Value) (vm.Value, error) {
		var buf []byte
		for _, a := range args {
			buf = append(buf, c.ToString(a)...)
		}
		s := c.NewBytes(buf)
		buf = append(buf, '\n')
		if _, err := out.Write(buf); err != nil {
			return vm.Nil, fmt.Errorf("print: %w", err)
		}
		return s, nil
	}
}

func size(c *vm.Context, _ vm.Value, args []vm.Value) (vm.Value, error) {
	rt := c.Runtime()
	v := arg(args, 0)
	switch {
	case v.IsVector():
		return vm.FromInt(rt.Vec(v).Len()), nil
	case v.IsHash():
		return vm.FromInt(rt.Hash(v).Len()), nil
	case v.IsString():
		return vm.FromInt(rt.Str(v).Len()), nil
	}
	return vm.Nil, vm.Errorf("size: object has no size (%s)", vm.TypeOf(v))
}

func typeOf(c *vm.Context, _ vm.Value, args []vm.Value) (vm.Value, error) {
	return c.Intern(vm.TypeOf(arg(args, 0))), nil
}

func id(c *vm.Context, _ vm.Value, args []vm.Value) (vm.Value, error) {
	v := arg(args, 0)
	if !v.IsRef() {
		return vm.Nil, vm.Errorf("id: argument is not a reference type")
	}
	return c.NewString(fmt.Sprintf("%s:%x", v.Kind(), uint64(v)&0xFFFFFFFFFFFF)), nil
}

// ---------------------------------------------------------------------------
// Vectors and hashes
// ---------------------------------------------------------------------------

func keys(c *vm.Context, _ vm.Value, args []vm.Value) (vm.Value, error) {
	h, err := hashArg(c, args, 0, "keys")
	if err != nil {
		return vm.Nil, err
	}
	return c.NewVector(h.Keys()...), nil
}

func appendFn(c *vm.Context, _ vm.Value, args []vm.Value) (vm.Value, error) {
	vec, err := vecArg(c, args, 0, "append")
	if err != nil {
		return vm.Nil, err
	}
	for _, a := range args[1:] {
		vec.Append(a)
	}
	return args[0], nil
}

func pop(c *vm.Context, _ vm.Value, args []vm.Value) (vm.Value, error) {
	vec, err := vecArg(c, args, 0, "pop")
	if err != nil {
		return vm.Nil, err
	}
	v, _ := vec.Pop()
	return v, nil
}

func setsize(c *vm.Context, _ vm.Value, args []vm.Value) (vm.Value, error) {
	vec, err := vecArg(c, args, 0, "setsize")
	if err != nil {
		return vm.Nil, err
	}
	n, err := intArg(args, 1, "setsize")
	if err != nil {
		return vm.Nil, err
	}
	if n < 0 {
		return vm.Nil, vm.Errorf("setsize: negative size %d", n)
	}
	if limit := c.Runtime().Config().MaxVectorLen; n > limit {
		return vm.Nil, vm.Errorf("setsize: size %d exceeds the limit of %d", n, limit)
	}
	vec.Resize(n)
	return args[0], nil
}

func subvec(c *vm.Context, _ vm.Value, args []vm.Value) (vm.Value, error) {
	vec, err := vecArg(c, args, 0, "subvec")
	if err != nil {
		return vm.Nil, err
	}
	start, err := intArg(args, 1, "subvec")
	if err != nil {
		return vm.Nil, err
	}
	vals := vec.Values()
	if start < 0 {
		start += len(vals)
	}
	if start < 0 || start > len(vals) {
		return vm.Nil, vm.Errorf("subvec: start %d out of range (size: %d)", start, len(vals))
	}
	end := len(vals)
	if !arg(args, 2).IsNil() {
		n, err := intArg(args, 2, "subvec")
		if err != nil {
			return vm.Nil, err
		}
		if n < 0 || start+n > len(vals) {
			return vm.Nil, vm.Errorf("subvec: length %d out of range", n)
		}
		end = start + n
	}
	return c.NewVector(vals[start:end]...), nil
}

func deleteFn(c *vm.Context, _ vm.Value, args []vm.Value) (vm.Value, error) {
	h, err := hashArg(c, args, 0, "delete")
	if err != nil {
		return vm.Nil, err
	}
	h.Delete(arg(args, 1))
	return args[0], nil
}

func contains(c *vm.Context, _ vm.Value, args []vm.Value) (vm.Value, error) {
	h, err := hashArg(c, args, 0, "contains")
	if err != nil {
		return vm.Nil, err
	}
	return vm.FromBool(h.Has(arg(args, 1))), nil
}

// ---------------------------------------------------------------------------
// Strings and numbers
// ---------------------------------------------------------------------------

func streq(c *vm.Context, _ vm.Value, args []vm.Value) (vm.Value, error) {
	a, b := arg(args, 0), arg(args, 1)
	if !a.IsScalar() || !b.IsScalar() {
		return vm.FromBool(false), nil
	}
	return vm.FromBool(c.ToString(a) == c.ToString(b)), nil
}

func substr(c *vm.Context, _ vm.Value, args []vm.Value) (vm.Value, error) {
	s := c.Runtime().Str(arg(args, 0))
	if s == nil {
		return vm.Nil, vm.Errorf("substr: argument 1 is not a string")
	}
	b := s.Bytes()
	start, err := intArg(args, 1, "substr")
	if err != nil {
		return vm.Nil, err
	}
	if start < 0 {
		start += len(b)
	}
	if start < 0 || start > len(b) {
		return vm.Nil, vm.Errorf("substr: start %d out of range (length: %d)", start, len(b))
	}
	end := len(b)
	if !arg(args, 2).IsNil() {
		n, err := intArg(args, 2, "substr")
		if err != nil {
			return vm.Nil, err
		}
		if n < 0 {
			return vm.Nil, vm.Errorf("substr: negative length %d", n)
		}
		if start+n < end {
			end = start + n
		}
	}
	return c.NewBytes(b[start:end]), nil
}

func num(c *vm.Context, _ vm.Value, args []vm.Value) (vm.Value, error) {
	v := arg(args, 0)
	if v.IsNum() {
		return v, nil
	}
	if s := c.Runtime().Str(v); s != nil {
		if f, ok := s.ToNum(); ok {
			return vm.FromFloat64(f), nil
		}
	}
	return vm.Nil, nil
}

// ---------------------------------------------------------------------------
// Errors and calls
// ---------------------------------------------------------------------------

func die(c *vm.Context, _ vm.Value, args []vm.Value) (vm.Value, error) {
	return vm.Nil, c.Die(arg(args, 0))
}

// call(fn, args=nil, me=nil, locals=nil, err=nil) runs fn in a
// sub-context. With an err vector a failure is recorded there (the error
// value, then file and line per frame) and call returns nil; otherwise
// the failure propagates.
func call(c *vm.Context, _ vm.Value, args []vm.Value) (vm.Value, error) {
	rt := c.Runtime()
	fn := arg(args, 0)
	var callArgs []vm.Value
	if v := arg(args, 1); !v.IsNil() {
		vec := rt.Vec(v)
		if vec == nil {
			return vm.Nil, vm.Errorf("call: argument 2 is not a vector")
		}
		callArgs = vec.Values()
	}
	me, locals := arg(args, 2), arg(args, 3)
	if !locals.IsNil() && !locals.IsHash() {
		return vm.Nil, vm.Errorf("call: argument 4 is not a hash")
	}
	errVec := rt.Vec(arg(args, 4))

	sub := c.SubContext()
	res, err := sub.Call(fn, callArgs, me, locals)
	if err == nil {
		c.Keep(res)
		sub.Free()
		return res, nil
	}
	if errVec == nil {
		c.Rethrow(sub)
	}

	re := sub.Err()
	if re == nil {
		sub.Free()
		return vm.Nil, err
	}
	ev := c.Keep(re.Value)
	if ev.IsNil() {
		ev = c.NewString(re.Message)
	}
	errVec.Append(ev)
	for _, f := range re.Trace {
		errVec.Append(c.NewString(f.File))
		errVec.Append(vm.FromInt(f.Line))
	}
	sub.Free()
	return vm.Nil, nil
}

// compile(src, file="<compile>") returns the code bound to a fresh
// namespace.
func compileFn(c *vm.Context, _ vm.Value, args []vm.Value) (vm.Value, error) {
	s := c.Runtime().Str(arg(args, 0))
	if s == nil {
		return vm.Nil, vm.Errorf("compile: argument 1 is not a string")
	}
	file := "<compile>"
	if f := c.Runtime().Str(arg(args, 1)); f != nil {
		file = f.String()
	}
	code, err := compiler.Compile(c, s.Bytes(), file)
	if err != nil {
		return vm.Nil, err
	}
	return c.Bind(code, c.NewHash()), nil
}

// bind(fn, ns) rebinds fn's code to the namespace hash ns.
func bind(c *vm.Context, _ vm.Value, args []vm.Value) (vm.Value, error) {
	rt := c.Runtime()
	fv, ns := arg(args, 0), arg(args, 1)
	if fv.Kind() != vm.KindFunc {
		return vm.Nil, vm.Errorf("bind: argument 1 is not a script function")
	}
	if !ns.IsHash() {
		return vm.Nil, vm.Errorf("bind: argument 2 is not a hash")
	}
	return c.Bind(rt.Func(fv).Code, ns), nil
}

// closure(fn, level=0) returns the namespace hash level steps up fn's
// closure chain, or nil past its end.
func closure(c *vm.Context, _ vm.Value, args []vm.Value) (vm.Value, error) {
	rt := c.Runtime()
	fv := arg(args, 0)
	if fv.Kind() != vm.KindFunc {
		return vm.Nil, vm.Errorf("closure: argument 1 is not a script function")
	}
	level := 0
	if !arg(args, 1).IsNil() {
		n, err := intArg(args, 1, "closure")
		if err != nil {
			return vm.Nil, err
		}
		level = n
	}
	f := rt.Func(fv)
	for ; level > 0; level-- {
		if f.Next.IsNil() {
			return vm.Nil, nil
		}
		f = rt.Func(f.Next)
	}
	return f.Namespace, nil
}

// sleep(secs) pauses without holding the runtime lock.
func sleep(c *vm.Context, _ vm.Value, args []vm.Value) (vm.Value, error) {
	v := arg(args, 0)
	if !v.IsNum() || v.Num() < 0 {
		return vm.Nil, vm.Errorf("sleep: argument must be a non-negative number")
	}
	d := time.Duration(v.Num() * float64(time.Second))
	c.Blocking(func() { time.Sleep(d) })
	return vm.Nil, nil
}

// ---------------------------------------------------------------------------
// Data interchange
// ---------------------------------------------------------------------------

func cborEncode(c *vm.Context, _ vm.Value, args []vm.Value) (vm.Value, error) {
	data, err := codec.Encode(c, arg(args, 0))
	if err != nil {
		return vm.Nil, err
	}
	return c.NewBytes(data), nil
}

func cborDecode(c *vm.Context, _ vm.Value, args []vm.Value) (vm.Value, error) {
	s := c.Runtime().Str(arg(args, 0))
	if s == nil {
		return vm.Nil, vm.Errorf("cbor_decode: argument 1 is not a string")
	}
	return codec.Decode(c, s.Bytes())
}
