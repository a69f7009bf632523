package vm

import (
	"strconv"
	"strings"
)

// TypeOf names the script-visible type of v.
func TypeOf(v Value) string {
	switch {
	case v.IsNil():
		return "nil"
	case v.IsNum(), v.IsString():
		return "scalar"
	case v.IsVector():
		return "vector"
	case v.IsHash():
		return "hash"
	case v.IsFunc():
		return "func"
	case v.IsCode():
		return "code"
	case v.IsGhost():
		return "ghost"
	}
	return "invalid"
}

// toString is the string conversion used by print and die: scalars as
// text, everything else in display form.
func (rt *Runtime) toString(v Value) string {
	switch {
	case v.IsNum():
		return FormatNum(v.Num())
	case v.IsString():
		return rt.GoString(v)
	}
	return rt.Format(v)
}

// ToString converts v the way print does.
func (c *Context) ToString(v Value) string {
	defer c.acquire()()
	return c.rt.toString(v)
}

// Format renders v for display. Strings inside containers are quoted and
// containers already being printed show as "...".
func (rt *Runtime) Format(v Value) string {
	var sb strings.Builder
	rt.format(&sb, v, make(map[Value]bool))
	return sb.String()
}

// Format renders v for display under the runtime lock.
func (c *Context) Format(v Value) string {
	defer c.acquire()()
	return c.rt.Format(v)
}

func (rt *Runtime) format(sb *strings.Builder, v Value, seen map[Value]bool) {
	switch v.Kind() {
	case KindNone:
		if v.IsNil() {
			sb.WriteString("nil")
		} else {
			sb.WriteString(FormatNum(v.Num()))
		}
	case KindString:
		sb.WriteString(strconv.Quote(rt.GoString(v)))
	case KindVector:
		if seen[v] {
			sb.WriteString("[...]")
			return
		}
		seen[v] = true
		sb.WriteByte('[')
		for i, e := range rt.Vec(v).Values() {
			if i > 0 {
				sb.WriteString(", ")
			}
			rt.format(sb, e, seen)
		}
		sb.WriteByte(']')
		delete(seen, v)
	case KindHash:
		if seen[v] {
			sb.WriteString("{...}")
			return
		}
		seen[v] = true
		sb.WriteByte('{')
		first := true
		rt.Hash(v).Each(func(k, val Value) bool {
			if !first {
				sb.WriteString(", ")
			}
			first = false
			if k.IsString() {
				sb.WriteString(rt.GoString(k))
			} else {
				rt.format(sb, k, seen)
			}
			sb.WriteString(": ")
			rt.format(sb, val, seen)
			return true
		})
		sb.WriteByte('}')
		delete(seen, v)
	case KindFunc:
		name := rt.Code(rt.Func(v).Code).Name
		if name == "" {
			name = "<anonymous>"
		}
		sb.WriteString("func " + name)
	case KindNative:
		sb.WriteString("native " + rt.Native(v).Name)
	case KindCode:
		sb.WriteString("code")
	case KindGhost:
		name := "?"
		if g := rt.Ghost(v); g.Type != nil {
			name = g.Type.Name
		}
		sb.WriteString("ghost " + name)
	}
}
